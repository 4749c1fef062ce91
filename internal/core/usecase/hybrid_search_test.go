package usecase

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
)

type webSearcherFake struct {
	mu       sync.Mutex
	calls    atomic.Int32
	requests []domain.WebSearchRequest
	results  []domain.SearchResult
	err      error
	delay    time.Duration
}

func (f *webSearcherFake) Search(ctx context.Context, req domain.WebSearchRequest) (*domain.WebSearchResponse, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &domain.WebSearchResponse{Query: req.Query, Results: f.results}, nil
}

type knowledgeSearcherFake struct {
	calls  atomic.Int32
	result *domain.KnowledgeSearchResult
	err    error
	opts   domain.KnowledgeOptions
}

func (f *knowledgeSearcherFake) SearchWithStrategy(_ context.Context, _ string, opts domain.KnowledgeOptions) (*domain.KnowledgeSearchResult, error) {
	f.calls.Add(1)
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type healthFake struct{ err error }

func (f healthFake) HealthCheck(context.Context) error { return f.err }

type observerFake struct {
	mu       sync.Mutex
	searches []string
	failures []domain.SearchMode
}

func (o *observerFake) ObserveSearch(endpoint string, strategy domain.Strategy, _ []domain.SearchMode, _ float64, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.searches = append(o.searches, endpoint+"/"+string(strategy)+"/"+status)
}

func (o *observerFake) ObserveSourceFailure(mode domain.SearchMode) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = append(o.failures, mode)
}

type publisherFake struct {
	mu     sync.Mutex
	events []domain.SearchEvent
	err    error
}

func (p *publisherFake) PublishSearchCompleted(_ context.Context, event domain.SearchEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func webHits(n int) []domain.SearchResult {
	out := make([]domain.SearchResult, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.SearchResult{
			Title:   "Result " + string(rune('A'+i)),
			URL:     "https://news.example/" + string(rune('a'+i)),
			Content: "snippet",
		})
	}
	return out
}

func knowledgeHit(confidence float64) *domain.KnowledgeSearchResult {
	return &domain.KnowledgeSearchResult{
		Answer:      "Article 184 governs tort liability.",
		DatasetName: "民法總則",
		SessionID:   "s-1",
		Confidence:  confidence,
		Sources: []domain.KnowledgeSource{
			{DocumentName: "civil-code.pdf", Content: "Art. 184", Similarity: sim(0.9), DatasetName: "民法總則"},
		},
	}
}

func assertModes(t *testing.T, result *domain.HybridSearchResult, want ...domain.SearchMode) {
	t.Helper()
	if want == nil {
		want = []domain.SearchMode{}
	}
	if !reflect.DeepEqual(result.ModesUsed, want) {
		t.Fatalf("modes = %v, want %v", result.ModesUsed, want)
	}
	if (len(result.WebResults) > 0) != result.UsedMode(domain.ModeWeb) {
		t.Fatalf("web mode does not match web results")
	}
	if result.KnowledgeResults.Usable() != result.UsedMode(domain.ModeKnowledge) {
		t.Fatalf("knowledge mode does not match knowledge results")
	}
}

func TestIntelligentSearchKnowledgeFirstSkipsWebWhenConfident(t *testing.T) {
	web := &webSearcherFake{results: webHits(3)}
	kb := &knowledgeSearcherFake{result: knowledgeHit(0.85)}
	uc := NewHybridSearchUseCase(web, kb, healthFake{}, nil, HybridSearchOptions{})

	result, err := uc.IntelligentSearch(context.Background(), "民法第184條關於侵權行為的規定是什么？", domain.SearchOptions{})
	if err != nil {
		t.Fatalf("IntelligentSearch() error = %v", err)
	}
	if web.calls.Load() != 0 {
		t.Fatalf("expected zero web calls, got %d", web.calls.Load())
	}
	assertModes(t, result, domain.ModeKnowledge)
	if result.Analysis == nil || result.Analysis.Strategy != domain.StrategyKnowledgeFirst {
		t.Fatalf("expected knowledge-first analysis, got %+v", result.Analysis)
	}
	if result.CombinedAnswer != "Article 184 governs tort liability." {
		t.Fatalf("unexpected combined answer %q", result.CombinedAnswer)
	}
}

func TestIntelligentSearchKnowledgeFirstSupplementsWhenUnsure(t *testing.T) {
	web := &webSearcherFake{results: webHits(4)}
	kb := &knowledgeSearcherFake{result: knowledgeHit(0.5)}
	uc := NewHybridSearchUseCase(web, kb, healthFake{}, nil, HybridSearchOptions{})

	opts := domain.SearchOptions{IncludeDomains: []string{"law.moj.gov.tw"}}
	result, err := uc.IntelligentSearch(context.Background(), "民法第184條關於侵權行為的規定是什么？", opts)
	if err != nil {
		t.Fatalf("IntelligentSearch() error = %v", err)
	}
	if web.calls.Load() != 1 {
		t.Fatalf("expected one supplementary web call, got %d", web.calls.Load())
	}
	req := web.requests[0]
	if req.MaxResults != 5 || req.Depth != domain.DepthBasic {
		t.Fatalf("expected reduced basic web call, got %+v", req)
	}
	if len(req.IncludeDomains) != 1 {
		t.Fatalf("expected domain filters to be forwarded, got %+v", req)
	}
	assertModes(t, result, domain.ModeWeb, domain.ModeKnowledge)
	if !strings.HasPrefix(result.CombinedAnswer, "Article 184 governs tort liability.\n\n**Latest web information:**\n1. **Result A**") {
		t.Fatalf("unexpected combined answer %q", result.CombinedAnswer)
	}
	if strings.Contains(result.CombinedAnswer, "Result D") {
		t.Fatalf("knowledge-led answer should only carry the top 3 web results")
	}
	if result.Sources[0].Type != domain.SourceTypeKnowledge || result.Sources[0].DatasetName != "民法總則" {
		t.Fatalf("expected knowledge source first, got %+v", result.Sources[0])
	}
}

func TestIntelligentSearchKnowledgeFirstKeepsKnowledgeWhenWebFails(t *testing.T) {
	web := &webSearcherFake{err: errors.New("provider down")}
	kb := &knowledgeSearcherFake{result: knowledgeHit(0.4)}
	uc := NewHybridSearchUseCase(web, kb, healthFake{}, nil, HybridSearchOptions{})

	result, err := uc.IntelligentSearch(context.Background(), "民法第184條關於侵權行為的規定是什么？", domain.SearchOptions{})
	if err != nil {
		t.Fatalf("IntelligentSearch() error = %v", err)
	}
	assertModes(t, result, domain.ModeKnowledge)
}

func TestIntelligentSearchKnowledgeFirstFallsBackToWeb(t *testing.T) {
	web := &webSearcherFake{results: webHits(2)}
	kb := &knowledgeSearcherFake{err: domain.WrapError(domain.ErrKnowledgeSearchFailed, "ask", errors.New("503"))}
	uc := NewHybridSearchUseCase(web, kb, healthFake{}, nil, HybridSearchOptions{})

	result, err := uc.IntelligentSearch(context.Background(), "民法第184條關於侵權行為的規定是什么？", domain.SearchOptions{})
	if err != nil {
		t.Fatalf("IntelligentSearch() error = %v", err)
	}
	if kb.calls.Load() != 1 {
		t.Fatalf("expected knowledge to be tried once, got %d", kb.calls.Load())
	}
	assertModes(t, result, domain.ModeWeb)
	if result.KnowledgeResults != nil {
		t.Fatalf("expected no knowledge results")
	}
}

func TestIntelligentSearchWebFirstToleratesKnowledgeFailure(t *testing.T) {
	web := &webSearcherFake{results: webHits(6)}
	kb := &knowledgeSearcherFake{err: errors.New("kb down")}
	observer := &observerFake{}
	uc := NewHybridSearchUseCase(web, kb, healthFake{}, nil, HybridSearchOptions{Observer: observer})

	result, err := uc.IntelligentSearch(context.Background(), "2024年最新的AI法規政策有哪些？", domain.SearchOptions{})
	if err != nil {
		t.Fatalf("IntelligentSearch() error = %v", err)
	}
	if result.Analysis.Strategy != domain.StrategyWebFirst {
		t.Fatalf("expected web-first, got %s", result.Analysis.Strategy)
	}
	assertModes(t, result, domain.ModeWeb)
	// simple query: caller default of 10 capped at 8, basic depth
	if req := web.requests[0]; req.MaxResults != 8 || req.Depth != domain.DepthBasic {
		t.Fatalf("unexpected web request %+v", req)
	}
	if strings.Count(result.CombinedAnswer, "Source: ") != 5 {
		t.Fatalf("expected a 5-result web summary, got %q", result.CombinedAnswer)
	}
	if len(result.Sources) != 5 {
		t.Fatalf("expected at most 5 web sources, got %d", len(result.Sources))
	}
	if !reflect.DeepEqual(observer.failures, []domain.SearchMode{domain.ModeKnowledge}) {
		t.Fatalf("expected knowledge failure to be observed, got %v", observer.failures)
	}
}

func TestIntelligentSearchWebFirstAppendsKnowledgeInsight(t *testing.T) {
	web := &webSearcherFake{results: webHits(1)}
	kb := &knowledgeSearcherFake{result: knowledgeHit(0.6)}
	uc := NewHybridSearchUseCase(web, kb, healthFake{}, nil, HybridSearchOptions{})

	result, err := uc.IntelligentSearch(context.Background(), "2024年最新的AI法規政策有哪些？", domain.SearchOptions{})
	if err != nil {
		t.Fatalf("IntelligentSearch() error = %v", err)
	}
	if !strings.HasSuffix(result.CombinedAnswer, "**Knowledge-base insight:**\nArticle 184 governs tort liability.") {
		t.Fatalf("unexpected combined answer %q", result.CombinedAnswer)
	}
}

func TestIntelligentSearchHybridCallsEachSourceOnce(t *testing.T) {
	web := &webSearcherFake{results: webHits(2)}
	kb := &knowledgeSearcherFake{result: knowledgeHit(0.5)}
	uc := NewHybridSearchUseCase(web, kb, healthFake{}, nil, HybridSearchOptions{})

	result, err := uc.IntelligentSearch(context.Background(), "人工智能在法律服務中的應用前景如何？", domain.SearchOptions{})
	if err != nil {
		t.Fatalf("IntelligentSearch() error = %v", err)
	}
	if result.Analysis.Strategy != domain.StrategyHybrid {
		t.Fatalf("expected hybrid, got %s", result.Analysis.Strategy)
	}
	if web.calls.Load() != 1 || kb.calls.Load() != 1 {
		t.Fatalf("expected each source once, got web=%d knowledge=%d", web.calls.Load(), kb.calls.Load())
	}
	assertModes(t, result, domain.ModeWeb, domain.ModeKnowledge)
}

func TestSearchRejectsEmptyQueryBeforeAnyCall(t *testing.T) {
	web := &webSearcherFake{}
	kb := &knowledgeSearcherFake{}
	uc := NewHybridSearchUseCase(web, kb, healthFake{}, nil, HybridSearchOptions{})

	for _, q := range []string{"", "  "} {
		if _, err := uc.IntelligentSearch(context.Background(), q, domain.SearchOptions{}); !errors.Is(err, domain.ErrInvalidQuery) {
			t.Fatalf("IntelligentSearch(%q) expected invalid query, got %v", q, err)
		}
		if _, err := uc.HybridSearch(context.Background(), q, domain.SearchOptions{}); !errors.Is(err, domain.ErrInvalidQuery) {
			t.Fatalf("HybridSearch(%q) expected invalid query, got %v", q, err)
		}
	}
	if web.calls.Load() != 0 || kb.calls.Load() != 0 {
		t.Fatalf("expected no calls for empty query")
	}
}

func TestSearchBothSourcesFailRaisesSingleError(t *testing.T) {
	webErr := errors.New("web down")
	kbErr := errors.New("kb down")
	queries := []string{
		"民法第184條關於侵權行為的規定是什么？",
		"2024年最新的AI法規政策有哪些？",
		"人工智能在法律服務中的應用前景如何？",
	}
	for _, q := range queries {
		web := &webSearcherFake{err: webErr}
		kb := &knowledgeSearcherFake{err: kbErr}
		uc := NewHybridSearchUseCase(web, kb, healthFake{}, nil, HybridSearchOptions{})

		result, err := uc.IntelligentSearch(context.Background(), q, domain.SearchOptions{})
		if result != nil {
			t.Fatalf("expected no result for %q", q)
		}
		if !errors.Is(err, domain.ErrAllSourcesFailed) {
			t.Fatalf("expected all sources failed for %q, got %v", q, err)
		}
		var agg *domain.AllSourcesError
		if !errors.As(err, &agg) || len(agg.Failures) != 2 {
			t.Fatalf("expected aggregate with two causes, got %v", err)
		}
		if !errors.Is(err, webErr) || !errors.Is(err, kbErr) {
			t.Fatalf("expected causes to be preserved, got %v", err)
		}
	}
}

func TestHybridSearchSettlesBothBranches(t *testing.T) {
	t.Run("web fails", func(t *testing.T) {
		web := &webSearcherFake{err: errors.New("timeout")}
		kb := &knowledgeSearcherFake{result: knowledgeHit(0.5)}
		uc := NewHybridSearchUseCase(web, kb, healthFake{}, nil, HybridSearchOptions{})
		result, err := uc.HybridSearch(context.Background(), "q", domain.SearchOptions{})
		if err != nil {
			t.Fatalf("HybridSearch() error = %v", err)
		}
		assertModes(t, result, domain.ModeKnowledge)
		if result.CombinedAnswer != "Article 184 governs tort liability." {
			t.Fatalf("unexpected combined answer %q", result.CombinedAnswer)
		}
	})
	t.Run("knowledge fails", func(t *testing.T) {
		web := &webSearcherFake{results: webHits(2), delay: 20 * time.Millisecond}
		kb := &knowledgeSearcherFake{err: errors.New("boom")}
		uc := NewHybridSearchUseCase(web, kb, healthFake{}, nil, HybridSearchOptions{})
		result, err := uc.HybridSearch(context.Background(), "q", domain.SearchOptions{})
		if err != nil {
			t.Fatalf("HybridSearch() error = %v", err)
		}
		assertModes(t, result, domain.ModeWeb)
		if len(result.WebResults) != 2 {
			t.Fatalf("slow web branch must not be cancelled by the failed knowledge branch")
		}
	})
}

func TestHybridSearchUsesCallerOptions(t *testing.T) {
	web := &webSearcherFake{results: webHits(1)}
	kb := &knowledgeSearcherFake{result: knowledgeHit(0.5)}
	uc := NewHybridSearchUseCase(web, kb, healthFake{}, nil, HybridSearchOptions{})

	combine := false
	opts := domain.SearchOptions{
		WebMaxResults:  3,
		WebSearchDepth: domain.DepthBasic,
		ExcludeDomains: []string{"spam.example"},
		CombineResults: &combine,
		Knowledge:      domain.KnowledgeOptions{DatasetID: "ds-1", SearchStrategy: domain.DatasetStrategyMulti},
	}
	result, err := uc.HybridSearch(context.Background(), "q", opts)
	if err != nil {
		t.Fatalf("HybridSearch() error = %v", err)
	}
	req := web.requests[0]
	if req.MaxResults != 3 || req.Depth != domain.DepthBasic || req.ExcludeDomains[0] != "spam.example" {
		t.Fatalf("unexpected web request %+v", req)
	}
	if kb.opts.DatasetID != "ds-1" || kb.opts.SearchStrategy != domain.DatasetStrategyMulti {
		t.Fatalf("unexpected knowledge options %+v", kb.opts)
	}
	if result.CombinedAnswer != "" {
		t.Fatalf("expected no combined answer when combine is off")
	}
	if result.DurationMS < 0 || result.Analysis != nil {
		t.Fatalf("unexpected result metadata %+v", result)
	}
}

func TestUnusableKnowledgeIsNotAMode(t *testing.T) {
	web := &webSearcherFake{results: nil}
	kb := &knowledgeSearcherFake{result: &domain.KnowledgeSearchResult{DatasetName: "x", Confidence: 0.1}}
	uc := NewHybridSearchUseCase(web, kb, healthFake{}, nil, HybridSearchOptions{})

	result, err := uc.HybridSearch(context.Background(), "q", domain.SearchOptions{})
	if err != nil {
		t.Fatalf("HybridSearch() error = %v", err)
	}
	assertModes(t, result)
}

func TestSearchRecordsObservationAndEvent(t *testing.T) {
	web := &webSearcherFake{results: webHits(2)}
	kb := &knowledgeSearcherFake{result: knowledgeHit(0.5)}
	observer := &observerFake{}
	events := &publisherFake{err: errors.New("nats down")}
	uc := NewHybridSearchUseCase(web, kb, healthFake{}, nil, HybridSearchOptions{Observer: observer, Events: events})

	if _, err := uc.IntelligentSearch(context.Background(), "人工智能在法律服務中的應用前景如何？", domain.SearchOptions{}); err != nil {
		t.Fatalf("publish failures must not fail the search: %v", err)
	}
	if !reflect.DeepEqual(observer.searches, []string{"intelligent/hybrid/ok"}) {
		t.Fatalf("unexpected observations %v", observer.searches)
	}
	if len(events.events) != 1 {
		t.Fatalf("expected one event, got %d", len(events.events))
	}
	ev := events.events[0]
	if ev.ID == "" || ev.Endpoint != "intelligent" || ev.WebResultCount != 2 || ev.KnowledgeSourceCount != 1 || ev.Confidence != 0.5 {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestSearchHonorsQueryDeadline(t *testing.T) {
	web := &webSearcherFake{results: webHits(1), delay: time.Second}
	kb := &knowledgeSearcherFake{err: errors.New("boom")}
	uc := NewHybridSearchUseCase(web, kb, healthFake{}, nil, HybridSearchOptions{QueryTimeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := uc.HybridSearch(context.Background(), "q", domain.SearchOptions{})
	if !errors.Is(err, domain.ErrAllSourcesFailed) {
		t.Fatalf("expected all sources failed after deadline, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("deadline was not enforced")
	}
}

func TestHealthCheck(t *testing.T) {
	web := &webSearcherFake{results: webHits(1)}
	uc := NewHybridSearchUseCase(web, &knowledgeSearcherFake{}, healthFake{err: errors.New("down")}, nil, HybridSearchOptions{})

	status := uc.HealthCheck(context.Background())
	if status.RAGFlow || !status.WebSearch {
		t.Fatalf("unexpected status %+v", status)
	}
	if req := web.requests[0]; req.Query != "test" || req.MaxResults != 1 || req.Depth != domain.DepthBasic {
		t.Fatalf("unexpected probe %+v", req)
	}
}

func TestAnalyzeDelegatesToClassifier(t *testing.T) {
	uc := NewHybridSearchUseCase(nil, nil, nil, nil, HybridSearchOptions{})
	analysis, err := uc.Analyze("2024年最新的AI法規政策有哪些？")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if analysis.Strategy != domain.StrategyWebFirst {
		t.Fatalf("expected web-first, got %s", analysis.Strategy)
	}
}
