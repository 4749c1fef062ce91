// Package ragflow talks to the knowledge-base proxy service (datasets, chat and sessions).
package ragflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
	"github.com/kirillkom/hybrid-legal-search/internal/infrastructure/resilience"
)

// EphemeralSessionPrefix marks client-minted placeholder session ids. Such ids
// are never forwarded so the service can create a real session.
const EphemeralSessionPrefix = "session-"

type Options struct {
	APIKey   string
	Timeout  time.Duration
	Executor *resilience.Executor
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     options.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.Executor,
	}
}

func (c *Client) HealthCheck(ctx context.Context) error {
	var status struct {
		Service string `json:"service"`
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/", nil, &status, "health"); err != nil {
		return domain.WrapError(domain.ErrKnowledgeUnavailable, "ragflow health", err)
	}
	return nil
}

type datasetDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	DocumentCount int    `json:"document_count"`
	ChunkCount    *int   `json:"chunk_count"`
	TokenNum      *int   `json:"token_num"`
	CreateTime    int64  `json:"create_time"`
	Status        string `json:"status"`
}

func (c *Client) ListDatasets(ctx context.Context) ([]domain.Dataset, error) {
	items, err := resilience.Do(ctx, c.executor, "ragflow.datasets", func(callCtx context.Context) ([]datasetDTO, error) {
		var out []datasetDTO
		if err := c.doJSON(callCtx, http.MethodGet, "/datasets", nil, &out, "datasets"); err != nil {
			return nil, err
		}
		return out, nil
	}, classifyRAGFlowError)
	if err != nil {
		return nil, wrapKnowledgeError("ragflow list datasets", err)
	}

	datasets := make([]domain.Dataset, 0, len(items))
	for _, item := range items {
		datasets = append(datasets, domain.Dataset{
			ID:            item.ID,
			Name:          item.Name,
			Description:   item.Description,
			DocumentCount: item.DocumentCount,
			ChunkCount:    item.ChunkCount,
			TokenNum:      item.TokenNum,
			CreateTime:    item.CreateTime,
			Status:        item.Status,
		})
	}
	return datasets, nil
}

type chatRequestDTO struct {
	Question  string `json:"question"`
	DatasetID string `json:"dataset_id"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Quote     bool   `json:"quote"`
	Stream    bool   `json:"stream"`
}

type sourceDTO struct {
	DocName      string   `json:"doc_name"`
	DocumentName string   `json:"document_name"`
	Content      string   `json:"content"`
	ChunkID      string   `json:"chunk_id"`
	Similarity   *float64 `json:"similarity"`
}

type chatResponseDTO struct {
	Success   *bool       `json:"success"`
	Answer    *string     `json:"answer"`
	Sources   []sourceDTO `json:"sources"`
	SessionID string      `json:"session_id"`
	ChatID    string      `json:"chat_id"`
	Message   string      `json:"message"`
}

func (c *Client) Ask(ctx context.Context, req domain.AskRequest) (*domain.AskResponse, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidQuery, "ragflow chat", errors.New("question is empty"))
	}
	if strings.TrimSpace(req.DatasetID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ragflow chat", errors.New("dataset id is empty"))
	}

	payload := chatRequestDTO{
		Question:  req.Question,
		DatasetID: req.DatasetID,
		SessionID: NormalizeSessionID(req.SessionID),
		UserID:    req.UserID,
		Quote:     req.Quote,
		Stream:    req.Stream,
	}

	resp, err := resilience.Do(ctx, c.executor, "ragflow.chat", func(callCtx context.Context) (*chatResponseDTO, error) {
		var out chatResponseDTO
		if err := c.doJSON(callCtx, http.MethodPost, "/chat", payload, &out, "chat"); err != nil {
			return nil, err
		}
		if err := validateChatResponse(&out); err != nil {
			return nil, err
		}
		return &out, nil
	}, classifyRAGFlowError)
	if err != nil {
		return nil, wrapKnowledgeError("ragflow chat", err)
	}

	sources := make([]domain.KnowledgeSource, 0, len(resp.Sources))
	for _, s := range resp.Sources {
		name := s.DocName
		if name == "" {
			name = s.DocumentName
		}
		sources = append(sources, domain.KnowledgeSource{
			DocumentName: name,
			Content:      s.Content,
			ChunkID:      s.ChunkID,
			Similarity:   s.Similarity,
		})
	}

	answer := ""
	if resp.Answer != nil {
		answer = *resp.Answer
	}
	return &domain.AskResponse{
		Answer:    answer,
		Sources:   sources,
		SessionID: resp.SessionID,
		ChatID:    resp.ChatID,
		Message:   resp.Message,
	}, nil
}

func (c *Client) ListSessions(ctx context.Context) ([]domain.KnowledgeSession, error) {
	sessions, err := resilience.Do(ctx, c.executor, "ragflow.sessions", func(callCtx context.Context) ([]domain.KnowledgeSession, error) {
		var out []domain.KnowledgeSession
		if err := c.doJSON(callCtx, http.MethodGet, "/sessions", nil, &out, "sessions"); err != nil {
			return nil, err
		}
		return out, nil
	}, classifyRAGFlowError)
	if err != nil {
		return nil, wrapKnowledgeError("ragflow list sessions", err)
	}
	return sessions, nil
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "ragflow delete session", errors.New("session id is empty"))
	}
	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	err := c.doJSON(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(sessionID), nil, &out, "delete session")
	if err != nil {
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return domain.WrapError(domain.ErrNotFound, "ragflow delete session", err)
		}
		return wrapKnowledgeError("ragflow delete session", err)
	}
	return nil
}

func (c *Client) CleanupSessions(ctx context.Context, maxAgeHours int) (*domain.SessionCleanupResult, error) {
	if maxAgeHours <= 0 {
		maxAgeHours = 24
	}
	var out domain.SessionCleanupResult
	payload := map[string]any{"max_age_hours": maxAgeHours}
	if err := c.doJSON(ctx, http.MethodPost, "/sessions/cleanup", payload, &out, "cleanup sessions"); err != nil {
		return nil, wrapKnowledgeError("ragflow cleanup sessions", err)
	}
	return &out, nil
}

// NormalizeSessionID drops empty and placeholder session ids.
func NormalizeSessionID(sessionID string) string {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || strings.HasPrefix(sessionID, EphemeralSessionPrefix) {
		return ""
	}
	return sessionID
}

func validateChatResponse(resp *chatResponseDTO) error {
	if resp.Success == nil && resp.Answer == nil {
		return fmt.Errorf("%w: response carries neither success nor answer", ErrInvalidResponse)
	}
	if resp.Success != nil && !*resp.Success {
		msg := strings.TrimSpace(resp.Message)
		if msg == "" {
			msg = "service reported failure"
		}
		return fmt.Errorf("%w: %s", ErrInvalidResponse, msg)
	}
	return nil
}

func wrapKnowledgeError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrKnowledgeUnavailable) || errors.Is(err, domain.ErrKnowledgeSearchFailed) {
		return err
	}
	if errors.Is(err, ErrInvalidResponse) {
		return domain.WrapError(domain.ErrKnowledgeSearchFailed, operation, err)
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) && !isRetryableHTTPStatus(statusErr.StatusCode) {
		return domain.WrapError(domain.ErrKnowledgeSearchFailed, operation, err)
	}
	return domain.WrapError(domain.ErrKnowledgeUnavailable, operation, err)
}
