package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/hybrid-legal-search/internal/config"
	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
)

func TestNewWiresCoreWithoutOptionalInfrastructure(t *testing.T) {
	cfg := config.Config{
		RAGFlowURL:                "http://127.0.0.1:1",
		WebSearchProvider:         "tavily",
		SearchQueryTimeout:        time.Second,
		SearchConfidenceThreshold: 0.7,
		RetryMaxAttempts:          1,
	}
	app, err := New(context.Background(), cfg, Options{Service: "test", Registerer: prometheus.NewRegistry(), OpenAudit: true, PublishEvents: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if app.Search == nil || app.Knowledge == nil || app.Sessions == nil {
		t.Fatalf("core services must be wired")
	}
	if app.Audit != nil {
		t.Fatalf("audit store must stay nil without POSTGRES_DSN")
	}

	_, err = app.Search.HybridSearch(context.Background(), " ", domain.SearchOptions{})
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("expected invalid query, got %v", err)
	}
}

func TestNewRejectsMissingRulesFile(t *testing.T) {
	_, err := New(context.Background(), config.Config{RulesPath: "/nonexistent/rules.yaml"}, Options{})
	if err == nil {
		t.Fatalf("expected rules loading error")
	}
}

func TestNewWorkerRequiresInfrastructure(t *testing.T) {
	if _, err := NewWorker(context.Background(), config.Config{}); err == nil {
		t.Fatalf("expected configuration error")
	}
}

func TestResilienceConfigMapsKnobs(t *testing.T) {
	got := resilienceConfig(config.Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: 500 * time.Millisecond,
		BreakerEnabled:      true,
		BreakerMinRequests:  4,
		BreakerFailureRatio: 0.25,
	})
	if got.RetryMaxAttempts != 2 || got.RetryInitialBackoff != 500*time.Millisecond {
		t.Fatalf("retry knobs not mapped: %+v", got)
	}
	if !got.BreakerEnabled || got.BreakerMinRequests != 4 || got.BreakerFailureRatio != 0.25 {
		t.Fatalf("breaker knobs not mapped: %+v", got)
	}
}
