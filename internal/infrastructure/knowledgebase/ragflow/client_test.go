package ragflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
	"github.com/kirillkom/hybrid-legal-search/internal/infrastructure/resilience"
)

func fastExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})
}

func TestAskOmitsPlaceholderSessionID(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"success":true,"answer":"ok","sources":[{"document_name":"civil.pdf","content":"art 184","similarity":0.8}],"session_id":"real-1"}`))
	}))
	defer server.Close()

	client := New(server.URL, Options{})
	resp, err := client.Ask(context.Background(), domain.AskRequest{
		Question:  "q",
		DatasetID: "ds-1",
		SessionID: "session-123",
		Quote:     true,
	})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if _, ok := payload["session_id"]; ok {
		t.Fatalf("expected placeholder session id to be omitted, got %v", payload["session_id"])
	}
	if payload["quote"] != true || payload["dataset_id"] != "ds-1" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if resp.Answer != "ok" || resp.SessionID != "real-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].DocumentName != "civil.pdf" {
		t.Fatalf("expected document_name fallback, got %+v", resp.Sources)
	}
}

func TestAskForwardsRealSessionID(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_, _ = w.Write([]byte(`{"answer":"ok"}`))
	}))
	defer server.Close()

	client := New(server.URL, Options{})
	if _, err := client.Ask(context.Background(), domain.AskRequest{Question: "q", DatasetID: "ds", SessionID: "abc"}); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if payload["session_id"] != "abc" {
		t.Fatalf("expected session id to be forwarded, got %v", payload["session_id"])
	}
}

func TestAskRejectsResponseWithoutAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"sources":[]}`))
	}))
	defer server.Close()

	client := New(server.URL, Options{Executor: fastExecutor()})
	_, err := client.Ask(context.Background(), domain.AskRequest{Question: "q", DatasetID: "ds"})
	if !errors.Is(err, domain.ErrKnowledgeSearchFailed) {
		t.Fatalf("expected knowledge search failure, got %v", err)
	}
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected invalid response cause, got %v", err)
	}
}

func TestAskSuccessFalseIsInvalid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"dataset locked"}`))
	}))
	defer server.Close()

	client := New(server.URL, Options{})
	_, err := client.Ask(context.Background(), domain.AskRequest{Question: "q", DatasetID: "ds"})
	if !errors.Is(err, domain.ErrKnowledgeSearchFailed) {
		t.Fatalf("expected knowledge search failure, got %v", err)
	}
}

func TestAskRetriesServiceUnavailable(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"answer":"ready"}`))
	}))
	defer server.Close()

	client := New(server.URL, Options{Executor: fastExecutor()})
	resp, err := client.Ask(context.Background(), domain.AskRequest{Question: "q", DatasetID: "ds"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if resp.Answer != "ready" {
		t.Fatalf("unexpected answer %q", resp.Answer)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
}

func TestAskExhaustedRetriesIsUnavailable(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(server.URL, Options{Executor: fastExecutor()})
	_, err := client.Ask(context.Background(), domain.AskRequest{Question: "q", DatasetID: "ds"})
	if !errors.Is(err, domain.ErrKnowledgeUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestListDatasetsDecodesFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/datasets" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("unexpected authorization header %q", got)
		}
		_, _ = w.Write([]byte(`[{"id":"d1","name":"民法資料庫","description":"civil","document_count":120,"chunk_count":900}]`))
	}))
	defer server.Close()

	client := New(server.URL+"/", Options{APIKey: "secret"})
	datasets, err := client.ListDatasets(context.Background())
	if err != nil {
		t.Fatalf("ListDatasets() error = %v", err)
	}
	if len(datasets) != 1 {
		t.Fatalf("expected 1 dataset, got %d", len(datasets))
	}
	ds := datasets[0]
	if ds.ID != "d1" || ds.DocumentCount != 120 || ds.ChunkCount == nil || *ds.ChunkCount != 900 {
		t.Fatalf("unexpected dataset %+v", ds)
	}
	if ds.TokenNum != nil {
		t.Fatalf("expected missing token_num to stay nil")
	}
}

func TestDeleteSessionNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such session", http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, Options{})
	err := client.DeleteSession(context.Background(), "abc")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCleanupSessionsDefaultsMaxAge(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_, _ = w.Write([]byte(`{"success":true,"message":"done","cleaned_count":4}`))
	}))
	defer server.Close()

	client := New(server.URL, Options{})
	result, err := client.CleanupSessions(context.Background(), 0)
	if err != nil {
		t.Fatalf("CleanupSessions() error = %v", err)
	}
	if payload["max_age_hours"] != float64(24) {
		t.Fatalf("expected default max age 24, got %v", payload["max_age_hours"])
	}
	if result.CleanedCount != 4 {
		t.Fatalf("unexpected cleanup result %+v", result)
	}
}

func TestHealthCheckFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, Options{})
	if err := client.HealthCheck(context.Background()); !errors.Is(err, domain.ErrKnowledgeUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}
