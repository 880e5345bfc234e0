// Package prefetch fills the detail store for every listed property that has
// no cached entry yet. The fan-out settles like "allSettled": individual
// fetch failures are dropped silently and the id stays absent for the next
// pass or an on-demand selection to retry.
package prefetch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"sigap-dashboard/internal/cache"
	apperrors "sigap-dashboard/internal/common/errors"
	"sigap-dashboard/internal/common/logger"
	"sigap-dashboard/internal/common/metrics"
	"sigap-dashboard/internal/models"
)

// Fetcher is the slice of the backend client the prefetcher needs.
type Fetcher interface {
	FetchPropertyFull(ctx context.Context, id string) (models.PropertyDetail, error)
}

// LiveSet reports whether an id is still part of the current property list.
// Results for ids that went away mid-flight are dropped instead of written,
// so a deletion can never be resurrected by a slow fetch.
type LiveSet func(id string) bool

type Options struct {
	MaxConcurrent int
	FetchTimeout  time.Duration
	// OnUnauthorized fires at most once per pass when the backend rejects
	// the session credential. Prefetch itself stays silent about every
	// other failure.
	OnUnauthorized func()
}

type Prefetcher struct {
	store   cache.Store
	fetcher Fetcher
	log     logger.Logger
	opts    Options

	passes atomic.Int32
}

func New(store cache.Store, fetcher Fetcher, log logger.Logger, opts Options) *Prefetcher {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 8
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	return &Prefetcher{store: store, fetcher: fetcher, log: log, opts: opts}
}

// InFlight reports whether any prefetch pass is currently running. Advisory
// only, for UI feedback.
func (p *Prefetcher) InFlight() bool {
	return p.passes.Load() > 0
}

// Run issues one fetch per id not already cached and merges each success as
// it arrives, then returns once the whole pass has settled. Re-entrant:
// presence is checked against the store at issue time, so a pass started
// while another is still running will not re-fetch what already landed. The
// narrow window where the same id is fetched twice is tolerated because the
// fetch is idempotent and the last write wins.
func (p *Prefetcher) Run(ctx context.Context, ids []string, live LiveSet) int {
	p.passes.Add(1)
	metrics.PrefetchInFlight.Inc()
	start := time.Now()
	defer func() {
		metrics.PrefetchInFlight.Dec()
		metrics.PrefetchPassDuration.Observe(time.Since(start).Seconds())
		p.passes.Add(-1)
	}()

	var (
		wg           sync.WaitGroup
		sem          = make(chan struct{}, p.opts.MaxConcurrent)
		added        atomic.Int32
		unauthorized atomic.Bool
	)

	for _, id := range ids {
		if p.store.Has(ctx, id) {
			metrics.PrefetchFetches.WithLabelValues("cached").Inc()
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()

			fetchCtx, cancel := context.WithTimeout(ctx, p.opts.FetchTimeout)
			defer cancel()

			detail, err := p.fetcher.FetchPropertyFull(fetchCtx, id)
			if err != nil {
				if apperrors.IsUnauthorized(err) {
					unauthorized.Store(true)
				}
				metrics.PrefetchFetches.WithLabelValues("error").Inc()
				p.log.Debug("prefetch fetch failed, id stays absent", map[string]interface{}{
					"id":    id,
					"error": err.Error(),
				})
				return
			}

			if live != nil && !live(id) {
				metrics.PrefetchFetches.WithLabelValues("dropped").Inc()
				p.log.Debug("dropping prefetch result for deleted property", map[string]interface{}{
					"id": id,
				})
				return
			}

			if err := p.store.Put(ctx, id, detail); err != nil {
				metrics.PrefetchFetches.WithLabelValues("store_error").Inc()
				p.log.Warn("failed to cache prefetched detail", map[string]interface{}{
					"id":    id,
					"error": err.Error(),
				})
				return
			}
			metrics.PrefetchFetches.WithLabelValues("ok").Inc()
			added.Add(1)
		}(id)
	}

	wg.Wait()

	if unauthorized.Load() && p.opts.OnUnauthorized != nil {
		p.opts.OnUnauthorized()
	}
	return int(added.Load())
}
