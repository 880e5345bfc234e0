package prefetch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigap-dashboard/internal/cache"
	apperrors "sigap-dashboard/internal/common/errors"
	"sigap-dashboard/internal/common/logger"
	"sigap-dashboard/internal/models"
)

// stubFetcher serves canned details and records which ids were fetched.
type stubFetcher struct {
	mu      sync.Mutex
	fetched []string
	fail    map[string]error
	delay   time.Duration
	block   chan struct{} // when set, fetches wait here before returning
}

func (f *stubFetcher) FetchPropertyFull(ctx context.Context, id string) (models.PropertyDetail, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, id)
	f.mu.Unlock()

	if f.block != nil {
		<-f.block
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err, ok := f.fail[id]; ok {
		return models.PropertyDetail{}, err
	}
	return models.PropertyDetail{ID: id, Documents: []models.Document{{ID: "d-" + id}}}, nil
}

func (f *stubFetcher) fetchedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

func TestPrefetcher_FillsMissingEntries(t *testing.T) {
	store := cache.NewMemoryStore()
	fetcher := &stubFetcher{}
	p := New(store, fetcher, logger.NewTestLogger(t), Options{MaxConcurrent: 4})

	added := p.Run(context.Background(), []string{"p1", "p2", "p3"}, nil)

	assert.Equal(t, 3, added)
	for _, id := range []string{"p1", "p2", "p3"} {
		assert.True(t, store.Has(context.Background(), id), id)
	}
}

func TestPrefetcher_SkipsAlreadyCached(t *testing.T) {
	store := cache.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), "p1", models.PropertyDetail{ID: "p1"}))
	fetcher := &stubFetcher{}
	p := New(store, fetcher, logger.NewTestLogger(t), Options{})

	added := p.Run(context.Background(), []string{"p1", "p2"}, nil)

	assert.Equal(t, 1, added)
	assert.NotContains(t, fetcher.fetchedIDs(), "p1")
}

func TestPrefetcher_SingleFailureDoesNotAbortOthers(t *testing.T) {
	store := cache.NewMemoryStore()
	fetcher := &stubFetcher{fail: map[string]error{
		"p2": apperrors.NewFetchFailedError("/properties/p2/full", context.DeadlineExceeded),
	}}
	p := New(store, fetcher, logger.NewTestLogger(t), Options{MaxConcurrent: 2})

	added := p.Run(context.Background(), []string{"p1", "p2", "p3"}, nil)

	assert.Equal(t, 2, added)
	assert.True(t, store.Has(context.Background(), "p1"))
	assert.False(t, store.Has(context.Background(), "p2"), "failed id stays absent")
	assert.True(t, store.Has(context.Background(), "p3"))
}

func TestPrefetcher_WriteAfterDeleteIsDropped(t *testing.T) {
	store := cache.NewMemoryStore()
	fetcher := &stubFetcher{}
	p := New(store, fetcher, logger.NewTestLogger(t), Options{})

	// The property disappears from the list while its fetch is in flight.
	live := func(id string) bool { return id != "p2" }
	p.Run(context.Background(), []string{"p1", "p2"}, live)

	assert.True(t, store.Has(context.Background(), "p1"))
	assert.False(t, store.Has(context.Background(), "p2"), "deleted id must not be resurrected")
}

func TestPrefetcher_InFlightSignal(t *testing.T) {
	store := cache.NewMemoryStore()
	fetcher := &stubFetcher{block: make(chan struct{})}
	p := New(store, fetcher, logger.NewTestLogger(t), Options{MaxConcurrent: 1})

	assert.False(t, p.InFlight())

	done := make(chan struct{})
	go func() {
		p.Run(context.Background(), []string{"p1"}, nil)
		close(done)
	}()

	require.Eventually(t, p.InFlight, time.Second, 5*time.Millisecond)
	close(fetcher.block)
	<-done
	assert.False(t, p.InFlight())
}

func TestPrefetcher_UnauthorizedFiresCallbackOnce(t *testing.T) {
	store := cache.NewMemoryStore()
	fetcher := &stubFetcher{fail: map[string]error{
		"p1": apperrors.NewUnauthorizedError("route: /properties/p1/full"),
		"p2": apperrors.NewUnauthorizedError("route: /properties/p2/full"),
	}}

	var calls atomic.Int32
	p := New(store, fetcher, logger.NewTestLogger(t), Options{
		OnUnauthorized: func() { calls.Add(1) },
	})

	p.Run(context.Background(), []string{"p1", "p2"}, nil)

	assert.Equal(t, int32(1), calls.Load())
}

func TestPrefetcher_ReentrantPassDoesNotDuplicateSettledFetches(t *testing.T) {
	store := cache.NewMemoryStore()
	fetcher := &stubFetcher{}
	p := New(store, fetcher, logger.NewTestLogger(t), Options{MaxConcurrent: 4})

	p.Run(context.Background(), []string{"p1", "p2"}, nil)
	p.Run(context.Background(), []string{"p1", "p2", "p3"}, nil)

	ids := fetchedCounts(fetcher.fetchedIDs())
	assert.Equal(t, 1, ids["p1"])
	assert.Equal(t, 1, ids["p2"])
	assert.Equal(t, 1, ids["p3"])
}

func fetchedCounts(ids []string) map[string]int {
	out := map[string]int{}
	for _, id := range ids {
		out[id]++
	}
	return out
}
