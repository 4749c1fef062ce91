package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
)

type memoryStore struct {
	values map[string]string
	ttl    time.Duration
	getErr error
	setErr error
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", errCacheMiss
	}
	return v, nil
}

func (m *memoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[key] = value
	m.ttl = ttl
	return nil
}

type listerFake struct {
	calls    int
	datasets []domain.Dataset
	err      error
}

func (l *listerFake) ListDatasets(context.Context) ([]domain.Dataset, error) {
	l.calls++
	return l.datasets, l.err
}

func TestDatasetCacheFillsOnMissAndServesHits(t *testing.T) {
	origin := &listerFake{datasets: []domain.Dataset{{ID: "d1", Name: "民法", DocumentCount: 5}}}
	store := &memoryStore{}
	cache := newDatasetCache(origin, store, time.Minute)

	for i := 0; i < 3; i++ {
		got, err := cache.ListDatasets(context.Background())
		if err != nil {
			t.Fatalf("ListDatasets() error = %v", err)
		}
		if len(got) != 1 || got[0].Name != "民法" {
			t.Fatalf("unexpected datasets %+v", got)
		}
	}
	if origin.calls != 1 {
		t.Fatalf("expected one origin call, got %d", origin.calls)
	}
	if store.ttl != time.Minute {
		t.Fatalf("expected ttl to be passed through, got %s", store.ttl)
	}
}

func TestDatasetCacheFallsBackWhenRedisFails(t *testing.T) {
	origin := &listerFake{datasets: []domain.Dataset{{ID: "d1"}}}
	cache := newDatasetCache(origin, &memoryStore{getErr: errors.New("conn refused"), setErr: errors.New("conn refused")}, 0)

	got, err := cache.ListDatasets(context.Background())
	if err != nil {
		t.Fatalf("ListDatasets() error = %v", err)
	}
	if len(got) != 1 || origin.calls != 1 {
		t.Fatalf("expected origin result, got %+v (calls=%d)", got, origin.calls)
	}
}

func TestDatasetCacheDoesNotCacheErrors(t *testing.T) {
	origin := &listerFake{err: errors.New("ragflow down")}
	store := &memoryStore{}
	cache := newDatasetCache(origin, store, time.Minute)

	if _, err := cache.ListDatasets(context.Background()); err == nil {
		t.Fatalf("expected origin error")
	}
	if len(store.values) != 0 {
		t.Fatalf("errors must not be cached")
	}
}

func TestDatasetCacheIgnoresCorruptEntry(t *testing.T) {
	origin := &listerFake{datasets: []domain.Dataset{{ID: "fresh"}}}
	store := &memoryStore{values: map[string]string{datasetsKey: "{not json"}}
	cache := newDatasetCache(origin, store, time.Minute)

	got, err := cache.ListDatasets(context.Background())
	if err != nil {
		t.Fatalf("ListDatasets() error = %v", err)
	}
	if got[0].ID != "fresh" || origin.calls != 1 {
		t.Fatalf("expected refill from origin, got %+v", got)
	}
}
