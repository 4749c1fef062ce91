package ports

import (
	"context"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
)

// HybridSearchService is the inbound contract consumed by the presentation layer.
type HybridSearchService interface {
	HybridSearch(ctx context.Context, query string, opts domain.SearchOptions) (*domain.HybridSearchResult, error)
	IntelligentSearch(ctx context.Context, query string, opts domain.SearchOptions) (*domain.HybridSearchResult, error)
	Analyze(query string) (domain.QueryAnalysis, error)
	HealthCheck(ctx context.Context) domain.HealthStatus
}

// KnowledgeService is the inbound contract for direct knowledge-base access.
type KnowledgeService interface {
	AvailableDatasets(ctx context.Context) ([]domain.Dataset, error)
	Chat(ctx context.Context, messages []domain.ChatMessage, opts domain.KnowledgeOptions) (*domain.KnowledgeSearchResult, error)
	FormatAnswer(result *domain.KnowledgeSearchResult) string
}
