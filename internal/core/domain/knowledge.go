package domain

import "time"

type Dataset struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	DocumentCount int    `json:"document_count"`
	ChunkCount    *int   `json:"chunk_count,omitempty"`
	TokenNum      *int   `json:"token_num,omitempty"`
	CreateTime    int64  `json:"create_time,omitempty"`
	Status        string `json:"status,omitempty"`
}

// DefaultSimilarity stands in for chunks the service returned without a score.
const DefaultSimilarity = 0.5

type KnowledgeSource struct {
	DocumentName string   `json:"doc_name,omitempty"`
	Content      string   `json:"content,omitempty"`
	ChunkID      string   `json:"chunk_id,omitempty"`
	Similarity   *float64 `json:"similarity,omitempty"`
	DatasetName  string   `json:"dataset_name,omitempty"`
}

// SimilarityOr returns the score or fallback when the chunk carries none.
func (s KnowledgeSource) SimilarityOr(fallback float64) float64 {
	if s.Similarity == nil {
		return fallback
	}
	return *s.Similarity
}

type KnowledgeSearchResult struct {
	Answer      string            `json:"answer"`
	Sources     []KnowledgeSource `json:"sources"`
	SessionID   string            `json:"session_id"`
	DatasetName string            `json:"dataset_name"`
	Confidence  float64           `json:"confidence"`
}

// Usable reports whether the result carries any evidence worth merging.
func (r *KnowledgeSearchResult) Usable() bool {
	if r == nil {
		return false
	}
	return r.Answer != "" || len(r.Sources) > 0
}

type DatasetStrategy string

const (
	DatasetStrategySingle      DatasetStrategy = "single"
	DatasetStrategyIntelligent DatasetStrategy = "intelligent"
	DatasetStrategyMulti       DatasetStrategy = "multi"
)

type KnowledgeOptions struct {
	DatasetID      string          `json:"dataset_id,omitempty"`
	SessionID      string          `json:"session_id,omitempty"`
	UserID         string          `json:"user_id,omitempty"`
	Quote          *bool           `json:"quote,omitempty"`
	Stream         bool            `json:"stream,omitempty"`
	SearchStrategy DatasetStrategy `json:"search_strategy,omitempty"`
}

func (o KnowledgeOptions) QuoteOrDefault() bool {
	if o.Quote == nil {
		return true
	}
	return *o.Quote
}

// AskRequest is one question against one dataset on the knowledge-base service.
type AskRequest struct {
	Question  string
	DatasetID string
	SessionID string
	UserID    string
	Quote     bool
	Stream    bool
}

type AskResponse struct {
	Answer    string
	Sources   []KnowledgeSource
	SessionID string
	ChatID    string
	Message   string
}

type KnowledgeSession struct {
	SessionID   string `json:"session_id"`
	ChatID      string `json:"chat_id"`
	DatasetID   string `json:"dataset_id"`
	DatasetName string `json:"dataset_name"`
	UserID      string `json:"user_id,omitempty"`
	CreatedAt   string `json:"created_at"`
	LastUsed    string `json:"last_used"`
}

type SessionCleanupResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	CleanedCount int    `json:"cleaned_count"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SearchEvent is the audit record of one orchestration call.
type SearchEvent struct {
	ID                   string       `json:"id"`
	Query                string       `json:"query"`
	Endpoint             string       `json:"endpoint"`
	Strategy             Strategy     `json:"strategy"`
	Complexity           Complexity   `json:"complexity,omitempty"`
	ModesUsed            []SearchMode `json:"modes_used"`
	Confidence           float64      `json:"confidence"`
	WebResultCount       int          `json:"web_result_count"`
	KnowledgeSourceCount int          `json:"knowledge_source_count"`
	DurationMS           float64      `json:"duration_ms"`
	Error                string       `json:"error,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
}
