package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"sigap-dashboard/internal/common/config"
	apperrors "sigap-dashboard/internal/common/errors"
	"sigap-dashboard/internal/common/logger"
	"sigap-dashboard/internal/common/metrics"
	"sigap-dashboard/internal/models"
)

// RedisStore keeps the detail cache in redis so several dashboard replicas
// can share one session. Entries are JSON under a key prefix and carry no
// TTL, matching the invalidation-only lifecycle of the memory store. Redis
// being unreachable degrades to cache misses, never to request failures.
type RedisStore struct {
	client *redis.Client
	prefix string
	log    logger.Logger
}

func NewRedisStore(cfg config.RedisConfig, log logger.Logger) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})
	return &RedisStore{client: rdb, prefix: cfg.KeyPrefix, log: log}
}

// NewRedisStoreFromClient wraps an existing client, used by tests.
func NewRedisStoreFromClient(client *redis.Client, prefix string, log logger.Logger) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, log: log}
}

// Ping tests the redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return apperrors.NewCacheUnavailableError(err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) Get(ctx context.Context, id string) (models.PropertyDetail, bool) {
	raw, err := s.client.Get(ctx, s.key(id)).Result()
	if err == redis.Nil {
		metrics.CacheMisses.Inc()
		return models.PropertyDetail{}, false
	}
	if err != nil {
		s.log.Warn("redis get failed, treating as miss", map[string]interface{}{
			"id":    id,
			"error": err.Error(),
		})
		metrics.CacheMisses.Inc()
		return models.PropertyDetail{}, false
	}

	var detail models.PropertyDetail
	if err := json.Unmarshal([]byte(raw), &detail); err != nil {
		s.log.Warn("corrupt cache entry, invalidating", map[string]interface{}{
			"id":    id,
			"error": err.Error(),
		})
		_ = s.Invalidate(ctx, id)
		metrics.CacheMisses.Inc()
		return models.PropertyDetail{}, false
	}
	metrics.CacheHits.Inc()
	return detail, true
}

func (s *RedisStore) Put(ctx context.Context, id string, detail models.PropertyDetail) error {
	raw, err := json.Marshal(detail)
	if err != nil {
		return apperrors.Normalize(err)
	}
	if err := s.client.Set(ctx, s.key(id), raw, 0).Err(); err != nil {
		return apperrors.NewCacheUnavailableError(err)
	}
	return nil
}

func (s *RedisStore) Invalidate(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return apperrors.NewCacheUnavailableError(err)
	}
	return nil
}

func (s *RedisStore) Has(ctx context.Context, id string) bool {
	n, err := s.client.Exists(ctx, s.key(id)).Result()
	if err != nil {
		return false
	}
	return n > 0
}

func (s *RedisStore) Keys(ctx context.Context) []string {
	var ids []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		s.log.Warn("redis scan failed", map[string]interface{}{"error": err.Error()})
	}
	return ids
}

func (s *RedisStore) Snapshot(ctx context.Context) map[string]models.PropertyDetail {
	snapshot := map[string]models.PropertyDetail{}
	for _, id := range s.Keys(ctx) {
		if detail, ok := s.Get(ctx, id); ok {
			snapshot[id] = detail
		}
	}
	return snapshot
}

func (s *RedisStore) Reset(ctx context.Context) error {
	keys := s.Keys(ctx)
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, id := range keys {
		full[i] = s.key(id)
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return apperrors.NewCacheUnavailableError(err)
	}
	return nil
}
