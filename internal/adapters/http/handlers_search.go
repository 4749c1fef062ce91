package httpadapter

import (
	"net/http"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
)

type searchRequest struct {
	Query               string   `json:"query"`
	WebSearchDepth      string   `json:"web_search_depth"`
	WebMaxResults       int      `json:"web_max_results"`
	IncludeDomains      []string `json:"include_domains"`
	ExcludeDomains      []string `json:"exclude_domains"`
	PrioritizeKnowledge *bool    `json:"prioritize_knowledge"`
	CombineResults      *bool    `json:"combine_results"`
	DatasetID           string   `json:"dataset_id"`
	SessionID           string   `json:"session_id"`
	UserID              string   `json:"user_id"`
	SearchStrategy      string   `json:"search_strategy"`
}

func (req searchRequest) options() domain.SearchOptions {
	return domain.SearchOptions{
		WebSearchDepth:      domain.SearchDepth(req.WebSearchDepth),
		WebMaxResults:       req.WebMaxResults,
		IncludeDomains:      req.IncludeDomains,
		ExcludeDomains:      req.ExcludeDomains,
		PrioritizeKnowledge: req.PrioritizeKnowledge,
		CombineResults:      req.CombineResults,
		Knowledge: domain.KnowledgeOptions{
			DatasetID:      req.DatasetID,
			SessionID:      req.SessionID,
			UserID:         req.UserID,
			SearchStrategy: domain.DatasetStrategy(req.SearchStrategy),
		},
	}
}

func (rt *Router) hybridSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := rt.validator.decodeBody(w, r, schemaSearchRequest, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := rt.search.HybridSearch(r.Context(), req.Query, req.options())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) intelligentSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := rt.validator.decodeBody(w, r, schemaSearchRequest, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := rt.search.IntelligentSearch(r.Context(), req.Query, req.options())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) analyzeQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := rt.validator.decodeBody(w, r, schemaAnalyzeRequest, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	analysis, err := rt.search.Analyze(req.Query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	status := rt.search.HealthCheck(r.Context())
	code := http.StatusOK
	if !status.RAGFlow || !status.WebSearch {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}
