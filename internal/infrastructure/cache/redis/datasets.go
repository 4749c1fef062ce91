// Package redis caches the knowledge-base dataset list so concurrent searches
// do not each hit the knowledge service for it.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
	"github.com/kirillkom/hybrid-legal-search/internal/core/ports"
)

const datasetsKey = "hybrid-search:datasets:v1"

var errCacheMiss = errors.New("cache miss")

// store is the subset of Redis the cache needs.
type store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type clientStore struct {
	client *goredis.Client
}

func (s clientStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", errCacheMiss
	}
	return val, err
}

func (s clientStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// DatasetCache serves ListDatasets from Redis and refills it from origin on a miss.
// Redis errors degrade to calling origin directly.
type DatasetCache struct {
	origin ports.DatasetLister
	store  store
	ttl    time.Duration
}

func NewDatasetCache(origin ports.DatasetLister, client *goredis.Client, ttl time.Duration) *DatasetCache {
	return newDatasetCache(origin, clientStore{client: client}, ttl)
}

func newDatasetCache(origin ports.DatasetLister, s store, ttl time.Duration) *DatasetCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DatasetCache{origin: origin, store: s, ttl: ttl}
}

func (c *DatasetCache) ListDatasets(ctx context.Context) ([]domain.Dataset, error) {
	raw, err := c.store.Get(ctx, datasetsKey)
	switch {
	case err == nil:
		var datasets []domain.Dataset
		if decodeErr := json.Unmarshal([]byte(raw), &datasets); decodeErr == nil {
			return datasets, nil
		}
		slog.Warn("dataset_cache_corrupt", "key", datasetsKey)
	case !errors.Is(err, errCacheMiss):
		slog.Warn("dataset_cache_unavailable", "error", err)
	}

	datasets, err := c.origin.ListDatasets(ctx)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(datasets)
	if err == nil {
		if setErr := c.store.Set(ctx, datasetsKey, string(encoded), c.ttl); setErr != nil {
			slog.Warn("dataset_cache_store_failed", "error", setErr)
		}
	}
	return datasets, nil
}
