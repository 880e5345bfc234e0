package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	fetchCounter  otelmetric.Int64Counter
	fetchDuration otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	fetchCounter, _ := meter.Int64Counter(
		"details.fetched",
		otelmetric.WithDescription("Number of full detail records fetched"),
	)

	fetchDuration, _ := meter.Float64Histogram(
		"details.fetch.duration",
		otelmetric.WithDescription("Detail fetch duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		fetchCounter:  fetchCounter,
		fetchDuration: fetchDuration,
	}
}

// RecordFetch records one detail fetch with its outcome ("hit", "ok", "error").
func (o *Observability) RecordFetch(ctx context.Context, outcome string) {
	if o.fetchCounter != nil {
		o.fetchCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("outcome", outcome),
		))
	}
}

// RecordFetchDuration records how long one detail fetch took.
func (o *Observability) RecordFetchDuration(ctx context.Context, d time.Duration, outcome string) {
	if o.fetchDuration != nil {
		o.fetchDuration.Record(ctx, float64(d.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("outcome", outcome),
		))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.meterProvider.Shutdown(ctx); err != nil {
			log.Printf("Failed to shut down meter provider: %v", err)
		}
	}
}
