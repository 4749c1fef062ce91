package httpadapter

import (
	"net/http"
	"strings"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
)

type knowledgeChatRequest struct {
	Messages       []domain.ChatMessage `json:"messages"`
	DatasetID      string               `json:"dataset_id"`
	SessionID      string               `json:"session_id"`
	UserID         string               `json:"user_id"`
	SearchStrategy string               `json:"search_strategy"`
}

type knowledgeChatResponse struct {
	*domain.KnowledgeSearchResult
	FormattedAnswer string `json:"formatted_answer"`
}

func (rt *Router) listDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := rt.knowledge.AvailableDatasets(r.Context())
	if err != nil {
		writeError(w, r, domain.WrapError(domain.ErrKnowledgeUnavailable, "list datasets", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"datasets": datasets, "total": len(datasets)})
}

func (rt *Router) knowledgeChat(w http.ResponseWriter, r *http.Request) {
	var req knowledgeChatRequest
	if err := rt.validator.decodeBody(w, r, schemaKnowledgeChatRequest, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := rt.knowledge.Chat(r.Context(), req.Messages, domain.KnowledgeOptions{
		DatasetID:      req.DatasetID,
		SessionID:      req.SessionID,
		UserID:         req.UserID,
		SearchStrategy: domain.DatasetStrategy(req.SearchStrategy),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, knowledgeChatResponse{
		KnowledgeSearchResult: result,
		FormattedAnswer:       rt.knowledge.FormatAnswer(result),
	})
}

func (rt *Router) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := rt.sessions.ListSessions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions, "total": len(sessions)})
}

func (rt *Router) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("session_id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session id is required"})
		return
	}
	if err := rt.sessions.DeleteSession(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "session_id": id})
}

func (rt *Router) cleanupSessions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaxAgeHours int `json:"max_age_hours"`
	}
	if err := rt.validator.decodeBody(w, r, schemaSessionCleanupRequest, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := rt.sessions.CleanupSessions(r.Context(), req.MaxAgeHours)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
