package domain

import "time"

type SearchMode string

const (
	ModeWeb       SearchMode = "web"
	ModeKnowledge SearchMode = "knowledge"
)

type Strategy string

const (
	StrategyKnowledgeFirst Strategy = "knowledge-first"
	StrategyWebFirst       Strategy = "web-first"
	StrategyHybrid         Strategy = "hybrid"
)

func (s Strategy) Valid() bool {
	switch s {
	case StrategyKnowledgeFirst, StrategyWebFirst, StrategyHybrid:
		return true
	default:
		return false
	}
}

type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

type SearchDepth string

const (
	DepthBasic    SearchDepth = "basic"
	DepthAdvanced SearchDepth = "advanced"
)

func (d SearchDepth) Valid() bool {
	return d == DepthBasic || d == DepthAdvanced
}

const (
	DefaultWebMaxResults = 10
	DefaultWebDepth      = DepthAdvanced
)

// SearchResult is one web document as returned by a search provider.
type SearchResult struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Content       string `json:"content"`
	PublishedDate string `json:"published_date,omitempty"`
}

// WebSearchRequest is the provider-neutral search call. Zero values take the documented defaults.
type WebSearchRequest struct {
	Query          string
	MaxResults     int
	Depth          SearchDepth
	IncludeDomains []string
	ExcludeDomains []string
}

func (r WebSearchRequest) Normalize() WebSearchRequest {
	out := r
	if out.MaxResults <= 0 {
		out.MaxResults = DefaultWebMaxResults
	}
	if !out.Depth.Valid() {
		out.Depth = DefaultWebDepth
	}
	return out
}

type WebSearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// SearchOptions are the caller-facing knobs of one orchestration call.
// Nil pointers mean "use the default".
type SearchOptions struct {
	WebSearchDepth      SearchDepth `json:"web_search_depth,omitempty"`
	WebMaxResults       int         `json:"web_max_results,omitempty"`
	IncludeDomains      []string    `json:"include_domains,omitempty"`
	ExcludeDomains      []string    `json:"exclude_domains,omitempty"`
	PrioritizeKnowledge *bool       `json:"prioritize_knowledge,omitempty"`
	CombineResults      *bool       `json:"combine_results,omitempty"`

	Knowledge KnowledgeOptions `json:"knowledge"`
}

func (o SearchOptions) Prioritized() bool {
	if o.PrioritizeKnowledge == nil {
		return true
	}
	return *o.PrioritizeKnowledge
}

func (o SearchOptions) Combine() bool {
	if o.CombineResults == nil {
		return true
	}
	return *o.CombineResults
}

type SourceType string

const (
	SourceTypeKnowledge SourceType = "knowledge"
	SourceTypeWeb       SourceType = "web"
)

// MergedSource is one entry of the presentation-ordered source list.
type MergedSource struct {
	Type          SourceType `json:"type"`
	Title         string     `json:"title,omitempty"`
	URL           string     `json:"url,omitempty"`
	Content       string     `json:"content,omitempty"`
	PublishedDate string     `json:"published_date,omitempty"`
	DocumentName  string     `json:"doc_name,omitempty"`
	ChunkID       string     `json:"chunk_id,omitempty"`
	Similarity    *float64   `json:"similarity,omitempty"`
	DatasetName   string     `json:"dataset_name,omitempty"`
}

// QueryAnalysis is the pure classification of a query.
type QueryAnalysis struct {
	Strategy          Strategy   `json:"strategy"`
	Category          string     `json:"category,omitempty"`
	Complexity        Complexity `json:"complexity"`
	ComplexityScore   int        `json:"complexity_score"`
	Reasoning         []string   `json:"reasoning"`
	MatchedKeywords   []string   `json:"matched_keywords"`
	ComplexityFactors []string   `json:"complexity_factors"`
}

type HybridSearchResult struct {
	WebResults       []SearchResult         `json:"web_results"`
	KnowledgeResults *KnowledgeSearchResult `json:"knowledge_results,omitempty"`
	CombinedAnswer   string                 `json:"combined_answer,omitempty"`
	Sources          []MergedSource         `json:"sources"`
	ModesUsed        []SearchMode           `json:"mode_used"`
	Analysis         *QueryAnalysis         `json:"analysis,omitempty"`
	Duration         time.Duration          `json:"-"`
	DurationMS       float64                `json:"duration_ms"`
}

func (r *HybridSearchResult) UsedMode(mode SearchMode) bool {
	if r == nil {
		return false
	}
	for _, m := range r.ModesUsed {
		if m == mode {
			return true
		}
	}
	return false
}

type HealthStatus struct {
	RAGFlow   bool `json:"ragflow"`
	WebSearch bool `json:"web_search"`
}
