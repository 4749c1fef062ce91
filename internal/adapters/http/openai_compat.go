package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
)

const (
	defaultModelID          = "hybrid-legal-search-v1"
	defaultStreamChunkChars = 120
)

type chatCompletionRequest struct {
	Model    string               `json:"model"`
	Messages []domain.ChatMessage `json:"messages"`
	Stream   bool                 `json:"stream"`
}

type chatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionChoice struct {
	Index        int                   `json:"index"`
	Message      chatCompletionMessage `json:"message"`
	FinishReason string                `json:"finish_reason"`
}

type chatCompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []chatCompletionChoice `json:"choices"`
	Usage   chatCompletionUsage    `json:"usage"`
	Search  *searchDebug           `json:"search,omitempty"`
}

// searchDebug exposes how the answer was produced without leaking sources' raw text.
type searchDebug struct {
	Strategy   domain.Strategy     `json:"strategy,omitempty"`
	ModesUsed  []domain.SearchMode `json:"mode_used"`
	SourceURLs []string            `json:"source_urls,omitempty"`
}

type chatCompletionDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type chatCompletionChunkChoice struct {
	Index        int                 `json:"index"`
	Delta        chatCompletionDelta `json:"delta"`
	FinishReason *string             `json:"finish_reason"`
}

type chatCompletionChunk struct {
	ID      string                      `json:"id"`
	Object  string                      `json:"object"`
	Created int64                       `json:"created"`
	Model   string                      `json:"model"`
	Choices []chatCompletionChunkChoice `json:"choices"`
}

func (rt *Router) listModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"object": "list",
		"data": []map[string]any{{
			"id":       rt.modelID(),
			"object":   "model",
			"owned_by": "hybrid-legal-search",
			"created":  time.Now().Unix(),
		}},
	})
}

// chatCompletions answers the latest user message with an intelligent search
// and returns the combined answer in chat-completion form.
func (rt *Router) chatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatCompletionRequest
	if err := rt.validator.decodeBody(w, r, schemaChatCompletionRequest, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	question, ok := latestUserMessage(req.Messages)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at least one user message with text content is required"})
		return
	}

	result, err := rt.search.IntelligentSearch(r.Context(), question, domain.SearchOptions{})
	if err != nil {
		writeError(w, r, err)
		return
	}

	modelID := strings.TrimSpace(req.Model)
	if modelID == "" {
		modelID = rt.modelID()
	}
	completionID := newCompletionID()
	created := time.Now().Unix()
	answer := answerText(result)

	if req.Stream {
		chunks := buildTextStreamChunks(completionID, created, modelID, answer, rt.opts.StreamChunkChars)
		if err := writeSSE(w, chunks); err != nil {
			writeError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, chatCompletionResponse{
		ID:      completionID,
		Object:  "chat.completion",
		Created: created,
		Model:   modelID,
		Choices: []chatCompletionChoice{{
			Index:        0,
			Message:      chatCompletionMessage{Role: "assistant", Content: answer},
			FinishReason: "stop",
		}},
		Usage:  estimateUsage(question, answer),
		Search: newSearchDebug(result),
	})
}

func (rt *Router) modelID() string {
	if rt.opts.ModelID != "" {
		return rt.opts.ModelID
	}
	return defaultModelID
}

func latestUserMessage(messages []domain.ChatMessage) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" && strings.TrimSpace(messages[i].Content) != "" {
			return messages[i].Content, true
		}
	}
	return "", false
}

// answerText falls back to the knowledge answer or a web digest when the
// caller disabled combination.
func answerText(result *domain.HybridSearchResult) string {
	if result == nil {
		return ""
	}
	if strings.TrimSpace(result.CombinedAnswer) != "" {
		return result.CombinedAnswer
	}
	if result.KnowledgeResults != nil && result.KnowledgeResults.Answer != "" {
		return result.KnowledgeResults.Answer
	}
	var b strings.Builder
	for i, res := range result.WebResults {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, res.Title, res.URL)
	}
	return strings.TrimSpace(b.String())
}

func newSearchDebug(result *domain.HybridSearchResult) *searchDebug {
	debug := &searchDebug{ModesUsed: result.ModesUsed}
	if result.Analysis != nil {
		debug.Strategy = result.Analysis.Strategy
	}
	for _, src := range result.Sources {
		if src.URL != "" {
			debug.SourceURLs = append(debug.SourceURLs, src.URL)
		}
	}
	return debug
}

func writeSSE(w http.ResponseWriter, chunks []chatCompletionChunk) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming is not supported by response writer")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for _, chunk := range chunks {
		payload, err := json.Marshal(chunk)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
	}

	if _, err := io.WriteString(w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func newCompletionID() string {
	return fmt.Sprintf("chatcmpl-%d", time.Now().UnixNano())
}

func buildTextStreamChunks(completionID string, created int64, modelID string, text string, chunkChars int) []chatCompletionChunk {
	if chunkChars <= 0 {
		chunkChars = defaultStreamChunkChars
	}

	parts := splitByRunes(text, chunkChars)
	chunks := make([]chatCompletionChunk, 0, len(parts)+1)
	for idx, part := range parts {
		delta := chatCompletionDelta{Content: part}
		if idx == 0 {
			delta.Role = "assistant"
		}
		chunks = append(chunks, chatCompletionChunk{
			ID:      completionID,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   modelID,
			Choices: []chatCompletionChunkChoice{{Index: 0, Delta: delta}},
		})
	}

	finishReason := "stop"
	chunks = append(chunks, chatCompletionChunk{
		ID:      completionID,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   modelID,
		Choices: []chatCompletionChunkChoice{{
			Index:        0,
			Delta:        chatCompletionDelta{},
			FinishReason: &finishReason,
		}},
	})

	return chunks
}

func splitByRunes(text string, chunkChars int) []string {
	if strings.TrimSpace(text) == "" {
		return []string{""}
	}
	if chunkChars <= 0 || utf8.RuneCountInString(text) <= chunkChars {
		return []string{text}
	}

	parts := make([]string, 0, utf8.RuneCountInString(text)/chunkChars+1)
	runes := []rune(text)
	for start := 0; start < len(runes); start += chunkChars {
		end := start + chunkChars
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[start:end]))
	}
	return parts
}

// estimateUsage counts runes for CJK text, where whitespace does not separate words.
func estimateUsage(prompt string, completion string) chatCompletionUsage {
	promptTokens := approxTokens(prompt)
	completionTokens := approxTokens(completion)
	return chatCompletionUsage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}

func approxTokens(text string) int {
	words := len(strings.Fields(text))
	if runes := utf8.RuneCountInString(text); runes > words*4 {
		return runes / 2
	}
	return words
}
