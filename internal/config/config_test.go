package config

import (
	"testing"
	"time"
)

func TestLoadSearchDefaults(t *testing.T) {
	for _, key := range []string{"WEB_SEARCH_PROVIDER", "RAGFLOW_TIMEOUT", "SEARCH_QUERY_TIMEOUT", "WEB_SEARCH_TIMEOUT", "SEARCH_CONFIDENCE_THRESHOLD", "RETRY_MAX_ATTEMPTS", "NATS_SUBJECT"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.WebSearchProvider != "tavily" {
		t.Fatalf("expected default provider tavily, got %q", cfg.WebSearchProvider)
	}
	if cfg.RAGFlowTimeout != 90*time.Second {
		t.Fatalf("expected default ragflow timeout 90s, got %s", cfg.RAGFlowTimeout)
	}
	if cfg.SearchQueryTimeout != 60*time.Second {
		t.Fatalf("expected default query timeout 60s, got %s", cfg.SearchQueryTimeout)
	}
	if cfg.WebSearchTimeout != 30*time.Second {
		t.Fatalf("expected default web timeout 30s, got %s", cfg.WebSearchTimeout)
	}
	if cfg.SearchConfidenceThreshold != 0.7 {
		t.Fatalf("expected default confidence threshold 0.7, got %v", cfg.SearchConfidenceThreshold)
	}
	if cfg.RetryMaxAttempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", cfg.RetryMaxAttempts)
	}
	if cfg.NATSSubject != "search.completed" {
		t.Fatalf("unexpected subject %q", cfg.NATSSubject)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("WEB_SEARCH_PROVIDER", "Serper")
	t.Setenv("SERPER_API_KEY", "serper-key")
	t.Setenv("RAGFLOW_TIMEOUT", "45")
	t.Setenv("DATASET_CACHE_TTL", "2m")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("BREAKER_ENABLED", "false")

	cfg := Load()
	if cfg.WebSearchProvider != "serper" {
		t.Fatalf("expected lower-cased provider, got %q", cfg.WebSearchProvider)
	}
	if cfg.WebSearchAPIKey() != "serper-key" {
		t.Fatalf("expected serper key to be selected, got %q", cfg.WebSearchAPIKey())
	}
	if cfg.RAGFlowTimeout != 45*time.Second {
		t.Fatalf("expected bare seconds to parse, got %s", cfg.RAGFlowTimeout)
	}
	if cfg.DatasetCacheTTL != 2*time.Minute {
		t.Fatalf("expected 2m ttl, got %s", cfg.DatasetCacheTTL)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rps 2.5, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.BreakerEnabled {
		t.Fatalf("expected breaker disabled")
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("RETRY_MAX_ATTEMPTS", "three")
	t.Setenv("WEB_SEARCH_TIMEOUT", "-5s")

	cfg := Load()
	if cfg.RetryMaxAttempts != 3 {
		t.Fatalf("expected fallback attempts, got %d", cfg.RetryMaxAttempts)
	}
	if cfg.WebSearchTimeout != 30*time.Second {
		t.Fatalf("expected fallback timeout, got %s", cfg.WebSearchTimeout)
	}
}
