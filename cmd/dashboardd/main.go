// cmd/dashboardd/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"sigap-dashboard/internal/alerts"
	"sigap-dashboard/internal/backend"
	"sigap-dashboard/internal/cache"
	"sigap-dashboard/internal/common/config"
	"sigap-dashboard/internal/common/logger"
	"sigap-dashboard/internal/common/observability"
	"sigap-dashboard/internal/geocode"
	"sigap-dashboard/internal/prefetch"
	"sigap-dashboard/internal/server"
	"sigap-dashboard/internal/session"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New("info", "console")
		fallback.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting dashboard service...",
		zap.String("environment", cfg.App.Environment),
		zap.String("backend", cfg.Backend.BaseURL),
	)

	obs := observability.New("dashboardd")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Detail store ---
	var store cache.Store
	switch cfg.Cache.Backend {
	case "redis":
		redisStore := cache.NewRedisStore(cfg.Cache.Redis, log)
		err = retryWithBackoff(func() error {
			return redisStore.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redisStore.Close()
		store = redisStore
		zapLog.Info("Redis detail store connected")
	default:
		store = cache.NewMemoryStore()
		zapLog.Info("In-memory detail store initialized")
	}

	// --- Backend and geocoder clients ---
	apiClient := backend.NewClient(cfg.Backend, log)
	apiClient.SetObservability(obs)
	geocoder := geocode.NewClient(cfg.Geocoder, log)

	// --- Session ---
	engine := alerts.NewEngine(cfg.Alerts.TimeZone, cfg.Alerts.ExpiringWindowDays, nil)
	sess := session.New(apiClient, geocoder, store, engine, log, prefetch.Options{
		MaxConcurrent: cfg.Prefetch.MaxConcurrent,
		FetchTimeout:  time.Duration(cfg.Prefetch.Timeout) * time.Millisecond,
	})

	err = retryWithBackoff(func() error {
		loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		return sess.Load(loadCtx)
	}, 5, 2*time.Second, zapLog, "Initial portfolio load")
	if err != nil {
		zapLog.Fatal("initial load failed after retries", zap.Error(err))
	}

	// --- API server ---
	api := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: server.New(sess, log).Routes(),
	}
	go func() {
		zapLog.Info("API server listening", zap.String("address", cfg.Server.Address))
		if err := api.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("API server failed", zap.Error(err))
		}
	}()

	// --- Health/Metrics server ---
	go func() {
		http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status":      "ready",
				"prefetching": sess.Prefetching(),
				"time":        time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.MetricsAddress))
		if err := http.ListenAndServe(cfg.Server.MetricsAddress, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := api.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down API server", zap.Error(err))
	}
	sess.Wait()

	zapLog.Info("Dashboard service stopped gracefully")
}
