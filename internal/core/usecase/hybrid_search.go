package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
	"github.com/kirillkom/hybrid-legal-search/internal/core/fanout"
	"github.com/kirillkom/hybrid-legal-search/internal/core/ports"
)

const (
	endpointHybrid      = "hybrid"
	endpointIntelligent = "intelligent"
)

// KnowledgeSearcher is the slice of KnowledgeAgent the orchestrator needs.
type KnowledgeSearcher interface {
	SearchWithStrategy(ctx context.Context, question string, opts domain.KnowledgeOptions) (*domain.KnowledgeSearchResult, error)
}

type HybridSearchOptions struct {
	QueryTimeout     time.Duration
	KnowledgeTimeout time.Duration
	WebTimeout       time.Duration

	// ConfidenceThreshold above which knowledge-first skips the web entirely.
	ConfidenceThreshold     float64
	SupplementaryWebResults int

	Observer ports.SearchObserver
	Events   ports.SearchEventPublisher
}

// HybridSearchUseCase is the retrieval orchestrator. It holds no per-query
// state and is safe for concurrent use.
type HybridSearchUseCase struct {
	web             ports.WebSearcher
	knowledge       KnowledgeSearcher
	knowledgeHealth ports.HealthChecker
	classifier      *StrategyClassifier
	opts            HybridSearchOptions
}

func NewHybridSearchUseCase(
	web ports.WebSearcher,
	knowledge KnowledgeSearcher,
	knowledgeHealth ports.HealthChecker,
	classifier *StrategyClassifier,
	opts HybridSearchOptions,
) *HybridSearchUseCase {
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 60 * time.Second
	}
	if opts.KnowledgeTimeout <= 0 {
		opts.KnowledgeTimeout = 90 * time.Second
	}
	if opts.WebTimeout <= 0 {
		opts.WebTimeout = 30 * time.Second
	}
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = 0.7
	}
	if opts.SupplementaryWebResults <= 0 {
		opts.SupplementaryWebResults = 5
	}
	if classifier == nil {
		classifier = NewStrategyClassifier(nil)
	}
	return &HybridSearchUseCase{
		web:             web,
		knowledge:       knowledge,
		knowledgeHealth: knowledgeHealth,
		classifier:      classifier,
		opts:            opts,
	}
}

func (uc *HybridSearchUseCase) Analyze(query string) (domain.QueryAnalysis, error) {
	return uc.classifier.Classify(query)
}

// HybridSearch queries web and knowledge concurrently with the caller's options as given.
func (uc *HybridSearchUseCase) HybridSearch(ctx context.Context, query string, opts domain.SearchOptions) (*domain.HybridSearchResult, error) {
	started := time.Now()
	if err := validateQuery(query); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, uc.opts.QueryTimeout)
	defer cancel()

	result, err := uc.runHybrid(ctx, query, opts)
	uc.finish(ctx, endpointHybrid, query, domain.StrategyHybrid, nil, result, err, started)
	return result, err
}

// IntelligentSearch classifies the query, scales breadth to its complexity and
// runs the strategy the classifier picked.
func (uc *HybridSearchUseCase) IntelligentSearch(ctx context.Context, query string, opts domain.SearchOptions) (*domain.HybridSearchResult, error) {
	started := time.Now()
	if err := validateQuery(query); err != nil {
		return nil, err
	}
	analysis, err := uc.classifier.Classify(query)
	if err != nil {
		return nil, err
	}
	adjusted := AdjustForComplexity(opts, analysis.Complexity)

	ctx, cancel := context.WithTimeout(ctx, uc.opts.QueryTimeout)
	defer cancel()

	var result *domain.HybridSearchResult
	switch analysis.Strategy {
	case domain.StrategyKnowledgeFirst:
		result, err = uc.runKnowledgeFirst(ctx, query, adjusted)
	case domain.StrategyWebFirst:
		result, err = uc.runWebFirst(ctx, query, adjusted)
	default:
		result, err = uc.runHybrid(ctx, query, adjusted)
	}
	if result != nil {
		result.Analysis = &analysis
	}
	uc.finish(ctx, endpointIntelligent, query, analysis.Strategy, &analysis, result, err, started)
	return result, err
}

// HealthCheck probes both dependencies concurrently.
func (uc *HybridSearchUseCase) HealthCheck(ctx context.Context) domain.HealthStatus {
	kb, web := fanout.Pair(ctx,
		func(ctx context.Context) (bool, error) {
			if uc.knowledgeHealth == nil {
				return false, errors.New("knowledge health check is not configured")
			}
			return true, uc.knowledgeHealth.HealthCheck(ctx)
		},
		func(ctx context.Context) (bool, error) {
			_, err := uc.searchWeb(ctx, domain.WebSearchRequest{Query: "test", MaxResults: 1, Depth: domain.DepthBasic})
			return true, err
		},
	)
	if !kb.OK() {
		slog.Warn("health_check_failed", "dependency", "ragflow", "error", kb.Err)
	}
	if !web.OK() {
		slog.Warn("health_check_failed", "dependency", "web_search", "error", web.Err)
	}
	return domain.HealthStatus{RAGFlow: kb.OK() && kb.Value, WebSearch: web.OK() && web.Value}
}

func (uc *HybridSearchUseCase) runHybrid(ctx context.Context, query string, opts domain.SearchOptions) (*domain.HybridSearchResult, error) {
	webOut, kbOut := fanout.Pair(ctx,
		func(ctx context.Context) (*domain.WebSearchResponse, error) {
			return uc.searchWeb(ctx, webRequest(query, opts))
		},
		func(ctx context.Context) (*domain.KnowledgeSearchResult, error) {
			return uc.searchKnowledge(ctx, query, opts.Knowledge)
		},
	)
	if !webOut.OK() && !kbOut.OK() {
		return nil, domain.NewAllSourcesError(
			domain.SourceFailure{Mode: domain.ModeWeb, Err: webOut.Err},
			domain.SourceFailure{Mode: domain.ModeKnowledge, Err: kbOut.Err},
		)
	}
	return buildHybridResult(webOut.Value, kbOut.Value, opts.Prioritized(), opts.Combine()), nil
}

func (uc *HybridSearchUseCase) runKnowledgeFirst(ctx context.Context, query string, opts domain.SearchOptions) (*domain.HybridSearchResult, error) {
	knowledge, kbErr := uc.searchKnowledge(ctx, query, opts.Knowledge)
	if kbErr != nil {
		slog.Warn("knowledge_first_fallback_to_web", "error", kbErr)
		web, webErr := uc.searchWeb(ctx, webRequest(query, opts))
		if webErr != nil {
			return nil, domain.NewAllSourcesError(
				domain.SourceFailure{Mode: domain.ModeKnowledge, Err: kbErr},
				domain.SourceFailure{Mode: domain.ModeWeb, Err: webErr},
			)
		}
		return buildHybridResult(web, nil, false, opts.Combine()), nil
	}

	if knowledge.Confidence > uc.opts.ConfidenceThreshold {
		return buildHybridResult(nil, knowledge, true, opts.Combine()), nil
	}

	supplement := webRequest(query, opts)
	if supplement.MaxResults <= 0 || supplement.MaxResults > uc.opts.SupplementaryWebResults {
		supplement.MaxResults = uc.opts.SupplementaryWebResults
	}
	supplement.Depth = domain.DepthBasic
	web, webErr := uc.searchWeb(ctx, supplement)
	if webErr != nil {
		slog.Warn("supplementary_web_search_failed", "error", webErr)
		web = nil
	}
	return buildHybridResult(web, knowledge, true, opts.Combine()), nil
}

func (uc *HybridSearchUseCase) runWebFirst(ctx context.Context, query string, opts domain.SearchOptions) (*domain.HybridSearchResult, error) {
	web, webErr := uc.searchWeb(ctx, webRequest(query, opts))
	knowledge, kbErr := uc.searchKnowledge(ctx, query, opts.Knowledge)
	if kbErr != nil {
		slog.Warn("supplementary_knowledge_search_failed", "error", kbErr)
	}
	if webErr != nil && kbErr != nil {
		return nil, domain.NewAllSourcesError(
			domain.SourceFailure{Mode: domain.ModeWeb, Err: webErr},
			domain.SourceFailure{Mode: domain.ModeKnowledge, Err: kbErr},
		)
	}
	return buildHybridResult(web, knowledge, false, opts.Combine()), nil
}

func (uc *HybridSearchUseCase) searchWeb(ctx context.Context, req domain.WebSearchRequest) (*domain.WebSearchResponse, error) {
	if uc.web == nil {
		return nil, domain.WrapError(domain.ErrSearchProvider, "web search", errors.New("web searcher is not configured"))
	}
	ctx, cancel := context.WithTimeout(ctx, uc.opts.WebTimeout)
	defer cancel()

	resp, err := uc.web.Search(ctx, req)
	if err != nil {
		uc.sourceFailed(domain.ModeWeb, err)
		if !domain.IsKind(err, domain.ErrSearchProvider) {
			err = domain.WrapError(domain.ErrSearchProvider, "web search", err)
		}
		return nil, err
	}
	return resp, nil
}

func (uc *HybridSearchUseCase) searchKnowledge(ctx context.Context, query string, opts domain.KnowledgeOptions) (*domain.KnowledgeSearchResult, error) {
	if uc.knowledge == nil {
		return nil, domain.WrapError(domain.ErrKnowledgeSearchFailed, "knowledge search", errors.New("knowledge searcher is not configured"))
	}
	ctx, cancel := context.WithTimeout(ctx, uc.opts.KnowledgeTimeout)
	defer cancel()

	result, err := uc.knowledge.SearchWithStrategy(ctx, query, opts)
	if err != nil {
		uc.sourceFailed(domain.ModeKnowledge, err)
		return nil, err
	}
	return result, nil
}

func (uc *HybridSearchUseCase) sourceFailed(mode domain.SearchMode, err error) {
	slog.Warn("search_source_failed", "mode", string(mode), "error", err)
	if uc.opts.Observer != nil {
		uc.opts.Observer.ObserveSourceFailure(mode)
	}
}

func (uc *HybridSearchUseCase) finish(
	ctx context.Context,
	endpoint string,
	query string,
	strategy domain.Strategy,
	analysis *domain.QueryAnalysis,
	result *domain.HybridSearchResult,
	err error,
	started time.Time,
) {
	elapsed := time.Since(started)
	event := domain.SearchEvent{
		ID:        uuid.NewString(),
		Query:     query,
		Endpoint:  endpoint,
		Strategy:  strategy,
		ModesUsed: []domain.SearchMode{},
		CreatedAt: started.UTC(),
	}
	if analysis != nil {
		event.Complexity = analysis.Complexity
	}

	confidence := 0.0
	if result != nil {
		result.Duration = elapsed
		result.DurationMS = float64(elapsed.Microseconds()) / 1000.0
		event.ModesUsed = result.ModesUsed
		event.WebResultCount = len(result.WebResults)
		if result.KnowledgeResults != nil {
			confidence = result.KnowledgeResults.Confidence
			event.KnowledgeSourceCount = len(result.KnowledgeResults.Sources)
		}
	}
	event.Confidence = confidence
	event.DurationMS = float64(elapsed.Microseconds()) / 1000.0

	if err != nil {
		event.Error = err.Error()
		slog.Error("search_failed",
			"endpoint", endpoint,
			"strategy", string(strategy),
			"duration_ms", event.DurationMS,
			"error", err,
		)
	} else {
		slog.Info("search_completed",
			"endpoint", endpoint,
			"strategy", string(strategy),
			"modes", event.ModesUsed,
			"confidence", confidence,
			"web_results", event.WebResultCount,
			"knowledge_sources", event.KnowledgeSourceCount,
			"duration_ms", event.DurationMS,
		)
	}

	if uc.opts.Observer != nil {
		uc.opts.Observer.ObserveSearch(endpoint, strategy, event.ModesUsed, confidence, elapsed, err)
	}
	if uc.opts.Events != nil {
		publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if pubErr := uc.opts.Events.PublishSearchCompleted(publishCtx, event); pubErr != nil {
			slog.Warn("search_event_publish_failed", "event_id", event.ID, "error", pubErr)
		}
	}
}

func validateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return domain.WrapError(domain.ErrInvalidQuery, "search", errors.New("query is empty"))
	}
	return nil
}

func webRequest(query string, opts domain.SearchOptions) domain.WebSearchRequest {
	return domain.WebSearchRequest{
		Query:          query,
		MaxResults:     opts.WebMaxResults,
		Depth:          opts.WebSearchDepth,
		IncludeDomains: opts.IncludeDomains,
		ExcludeDomains: opts.ExcludeDomains,
	}
}
