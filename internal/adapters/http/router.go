package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kirillkom/hybrid-legal-search/internal/core/ports"
	"github.com/kirillkom/hybrid-legal-search/internal/observability/metrics"
)

type Options struct {
	Service         string
	RateLimitRPS    float64
	RateLimitBurst  int
	MaxInFlight     int
	MaxInFlightWait time.Duration

	ModelID          string
	StreamChunkChars int
}

// Dependencies are the use cases behind the API. Sessions, Audit and Metrics
// are optional; their routes are not registered when nil.
type Dependencies struct {
	Search    ports.HybridSearchService
	Knowledge ports.KnowledgeService
	Sessions  ports.KnowledgeSessions
	Audit     ports.SearchAuditReader
	Metrics   *metrics.HTTPServerMetrics
}

type Router struct {
	opts      Options
	search    ports.HybridSearchService
	knowledge ports.KnowledgeService
	sessions  ports.KnowledgeSessions
	audit     ports.SearchAuditReader
	metrics   *metrics.HTTPServerMetrics
	validator *requestValidator
}

func NewRouter(opts Options, deps Dependencies) (*Router, error) {
	if deps.Search == nil || deps.Knowledge == nil {
		return nil, fmt.Errorf("http router: search and knowledge services are required")
	}
	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}
	if opts.Service == "" {
		opts.Service = "hybrid-search-api"
	}
	if opts.MaxInFlightWait <= 0 {
		opts.MaxInFlightWait = 250 * time.Millisecond
	}
	return &Router{
		opts:      opts,
		search:    deps.Search,
		knowledge: deps.Knowledge,
		sessions:  deps.Sessions,
		audit:     deps.Audit,
		metrics:   deps.Metrics,
		validator: validator,
	}, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("GET /v1/health", rt.health)
	mux.HandleFunc("GET /v1/datasets", rt.listDatasets)
	mux.HandleFunc("POST /v1/search/hybrid", rt.hybridSearch)
	mux.HandleFunc("POST /v1/search/intelligent", rt.intelligentSearch)
	mux.HandleFunc("POST /v1/search/analyze", rt.analyzeQuery)
	mux.HandleFunc("POST /v1/knowledge/chat", rt.knowledgeChat)
	mux.HandleFunc("GET /v1/models", rt.listModels)
	mux.HandleFunc("POST /v1/chat/completions", rt.chatCompletions)

	if rt.sessions != nil {
		mux.HandleFunc("GET /v1/knowledge/sessions", rt.listSessions)
		mux.HandleFunc("DELETE /v1/knowledge/sessions/{session_id}", rt.deleteSession)
		mux.HandleFunc("POST /v1/knowledge/sessions/cleanup", rt.cleanupSessions)
	}
	if rt.audit != nil {
		mux.HandleFunc("GET /v1/searches", rt.listSearches)
		mux.HandleFunc("GET /v1/searches/export", rt.exportSearches)
	}

	var onReject rejectionRecorder
	if rt.metrics != nil {
		onReject = func(reason string) { rt.metrics.RecordRejected(rt.opts.Service, reason) }
	}

	var handler http.Handler = mux
	handler = recoverMiddleware(handler)
	handler = backpressureMiddleware(handler, rt.opts.MaxInFlight, rt.opts.MaxInFlightWait, onReject)
	handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst, onReject)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.opts.Service, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
