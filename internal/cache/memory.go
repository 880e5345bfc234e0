package cache

import (
	"context"
	"sync"

	"sigap-dashboard/internal/common/metrics"
	"sigap-dashboard/internal/models"
)

// MemoryStore is the default in-process detail store. Writes never mutate the
// current map: each one swaps in a copy, so a map handed out by Snapshot stays
// consistent while prefetch results keep arriving. Unbounded on purpose; the
// working set is one organization's portfolio.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]models.PropertyDetail
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]models.PropertyDetail{}}
}

func (s *MemoryStore) Get(_ context.Context, id string) (models.PropertyDetail, bool) {
	s.mu.RLock()
	detail, ok := s.entries[id]
	s.mu.RUnlock()
	if ok {
		metrics.CacheHits.Inc()
	} else {
		metrics.CacheMisses.Inc()
	}
	return detail, ok
}

func (s *MemoryStore) Put(_ context.Context, id string, detail models.PropertyDetail) error {
	s.mu.Lock()
	next := make(map[string]models.PropertyDetail, len(s.entries)+1)
	for k, v := range s.entries {
		next[k] = v
	}
	next[id] = detail
	s.entries = next
	metrics.CacheSize.Set(float64(len(next)))
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Invalidate(_ context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.entries[id]; ok {
		next := make(map[string]models.PropertyDetail, len(s.entries))
		for k, v := range s.entries {
			if k != id {
				next[k] = v
			}
		}
		s.entries = next
		metrics.CacheSize.Set(float64(len(next)))
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Has(_ context.Context, id string) bool {
	s.mu.RLock()
	_, ok := s.entries[id]
	s.mu.RUnlock()
	return ok
}

func (s *MemoryStore) Keys(_ context.Context) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}

func (s *MemoryStore) Snapshot(_ context.Context) map[string]models.PropertyDetail {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// The map is copy-on-write, handing it out directly is safe.
	return s.entries
}

func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	s.entries = map[string]models.PropertyDetail{}
	metrics.CacheSize.Set(0)
	s.mu.Unlock()
	return nil
}
