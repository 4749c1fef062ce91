// Package websearch adapts third-party web search APIs to ports.WebSearcher.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
	"github.com/kirillkom/hybrid-legal-search/internal/core/ports"
	"github.com/kirillkom/hybrid-legal-search/internal/infrastructure/resilience"
)

const (
	ProviderTavily = "tavily"
	ProviderExa    = "exa"
	ProviderSerper = "serper"
)

type Options struct {
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	Executor *resilience.Executor
}

// New builds the provider registered under name.
func New(name string, options Options) (ports.WebSearcher, error) {
	if strings.TrimSpace(options.APIKey) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "websearch", fmt.Errorf("%s api key is not configured", name))
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ProviderTavily:
		return NewTavily(options), nil
	case ProviderExa:
		return NewExa(options), nil
	case ProviderSerper:
		return NewSerper(options), nil
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "websearch", fmt.Errorf("unknown provider %q", name))
	}
}

// Disabled is used when no provider is configured. Every search fails with
// ErrSearchProvider so the orchestrator falls back to the knowledge base.
func Disabled(reason string) ports.WebSearcher {
	return disabledSearcher{reason: reason}
}

type disabledSearcher struct {
	reason string
}

func (d disabledSearcher) Search(context.Context, domain.WebSearchRequest) (*domain.WebSearchResponse, error) {
	return nil, domain.WrapError(domain.ErrSearchProvider, "websearch", fmt.Errorf("web search disabled: %s", d.reason))
}

type transport struct {
	name       string
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func newTransport(name, defaultBaseURL string, options Options) transport {
	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return transport{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.Executor,
	}
}

type statusError struct {
	provider   string
	StatusCode int
	Status     string
	Body       string
}

func (e *statusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s status: %s", e.provider, e.Status)
	}
	return fmt.Sprintf("%s status: %s: %s", e.provider, e.Status, body)
}

// post sends one JSON request through the executor and decodes the reply into out.
func (t transport) post(ctx context.Context, path string, headers map[string]string, payload any, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", t.name, err)
	}

	call := func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, t.baseURL+path, bytes.NewReader(raw))
		if err != nil {
			return fmt.Errorf("create %s request: %w", t.name, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := t.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%s request: %w", t.name, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return &statusError{provider: t.name, StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", t.name, err)
		}
		return nil
	}

	if t.executor != nil {
		err = t.executor.Execute(ctx, t.name+".search", call, classifyProviderError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.WrapError(domain.ErrSearchProvider, t.name+" search", err)
	}
	return nil
}

func classifyProviderError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	var se *statusError
	if errors.As(err, &se) {
		if se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500 {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func validateRequest(req domain.WebSearchRequest) (domain.WebSearchRequest, error) {
	if strings.TrimSpace(req.Query) == "" {
		return req, domain.WrapError(domain.ErrInvalidQuery, "websearch", errors.New("query is empty"))
	}
	return req.Normalize(), nil
}

// finalize cleans snippets and trims the provider reply to the requested size.
func finalize(query string, results []domain.SearchResult, maxResults int) *domain.WebSearchResponse {
	out := make([]domain.SearchResult, 0, len(results))
	for _, r := range results {
		if strings.TrimSpace(r.URL) == "" {
			continue
		}
		r.Title = CleanSnippet(r.Title)
		r.Content = CleanSnippet(r.Content)
		out = append(out, r)
		if maxResults > 0 && len(out) == maxResults {
			break
		}
	}
	return &domain.WebSearchResponse{Query: query, Results: out}
}
