package ports

import (
	"context"
	"time"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
)

// WebSearcher executes one web search and normalizes the provider response.
type WebSearcher interface {
	Search(ctx context.Context, req domain.WebSearchRequest) (*domain.WebSearchResponse, error)
}

// DatasetLister lists the knowledge-base datasets.
type DatasetLister interface {
	ListDatasets(ctx context.Context) ([]domain.Dataset, error)
}

// HealthChecker issues a trivial call to a dependency.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// KnowledgeBase is the knowledge-base service boundary.
type KnowledgeBase interface {
	DatasetLister
	HealthChecker
	Ask(ctx context.Context, req domain.AskRequest) (*domain.AskResponse, error)
}

// KnowledgeSessions manages conversational sessions on the knowledge-base service.
type KnowledgeSessions interface {
	ListSessions(ctx context.Context) ([]domain.KnowledgeSession, error)
	DeleteSession(ctx context.Context, sessionID string) error
	CleanupSessions(ctx context.Context, maxAgeHours int) (*domain.SessionCleanupResult, error)
}

// SearchObserver receives per-orchestration measurements.
type SearchObserver interface {
	ObserveSearch(endpoint string, strategy domain.Strategy, modes []domain.SearchMode, confidence float64, duration time.Duration, err error)
	ObserveSourceFailure(mode domain.SearchMode)
}

// SearchEventPublisher emits audit events for completed searches.
type SearchEventPublisher interface {
	PublishSearchCompleted(ctx context.Context, event domain.SearchEvent) error
}

// SearchEventSubscriber consumes audit events.
type SearchEventSubscriber interface {
	SubscribeSearchCompleted(ctx context.Context, handler func(context.Context, domain.SearchEvent) error) error
}

// SearchAuditReader lists recent search audit events, newest first.
type SearchAuditReader interface {
	ListSearchEvents(ctx context.Context, limit int) ([]domain.SearchEvent, error)
}

// SearchAuditStore persists and reads search audit events.
type SearchAuditStore interface {
	SearchAuditReader
	SaveSearchEvent(ctx context.Context, event domain.SearchEvent) error
}
