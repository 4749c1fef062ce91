package httpadapter

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
	"github.com/kirillkom/hybrid-legal-search/internal/infrastructure/report/excel"
)

type sessionsFake struct {
	deleted    string
	deleteErr  error
	cleanupAge int
}

func (f *sessionsFake) ListSessions(context.Context) ([]domain.KnowledgeSession, error) {
	return []domain.KnowledgeSession{{SessionID: "s-1", DatasetName: "民法總則"}}, nil
}

func (f *sessionsFake) DeleteSession(_ context.Context, id string) error {
	f.deleted = id
	return f.deleteErr
}

func (f *sessionsFake) CleanupSessions(_ context.Context, maxAgeHours int) (*domain.SessionCleanupResult, error) {
	f.cleanupAge = maxAgeHours
	return &domain.SessionCleanupResult{Success: true, CleanedCount: 2}, nil
}

type auditFake struct {
	limit  int
	events []domain.SearchEvent
	err    error
}

func (f *auditFake) ListSearchEvents(_ context.Context, limit int) ([]domain.SearchEvent, error) {
	f.limit = limit
	return f.events, f.err
}

func TestKnowledgeChatReturnsFormattedAnswer(t *testing.T) {
	knowledge := &knowledgeServiceFake{}
	handler := newTestRouter(t, Options{}, Dependencies{Knowledge: knowledge})

	res := postJSON(t, handler, "/v1/knowledge/chat", map[string]any{
		"messages":        []map[string]string{{"role": "user", "content": "契約何時成立？"}},
		"search_strategy": "single",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	body := decodeBody(t, res)
	if body["answer"] != "契約成立要件" {
		t.Fatalf("expected embedded knowledge fields, got %v", body)
	}
	if body["formatted_answer"] != "契約成立要件\n\n*Knowledge base: 民法總則*" {
		t.Fatalf("unexpected formatted answer %q", body["formatted_answer"])
	}
	if len(knowledge.lastMessages) != 1 || knowledge.lastOpts.SearchStrategy != domain.DatasetStrategySingle {
		t.Fatalf("request not passed through: %+v %+v", knowledge.lastMessages, knowledge.lastOpts)
	}
}

func TestKnowledgeChatRejectsBadRole(t *testing.T) {
	handler := newTestRouter(t, Options{}, Dependencies{})

	res := postJSON(t, handler, "/v1/knowledge/chat", map[string]any{
		"messages": []map[string]string{{"role": "robot", "content": "hi"}},
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestListDatasetsMapsFailureTo503(t *testing.T) {
	handler := newTestRouter(t, Options{}, Dependencies{Knowledge: &knowledgeServiceFake{err: errors.New("connection refused")}})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/datasets", nil))
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestDeleteSessionMapsNotFound(t *testing.T) {
	sessions := &sessionsFake{deleteErr: domain.WrapError(domain.ErrNotFound, "delete session", errors.New("missing"))}
	handler := newTestRouter(t, Options{}, Dependencies{Sessions: sessions})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodDelete, "/v1/knowledge/sessions/s-9", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	if sessions.deleted != "s-9" {
		t.Fatalf("expected path value to reach the service, got %q", sessions.deleted)
	}
}

func TestCleanupSessionsAcceptsEmptyBody(t *testing.T) {
	sessions := &sessionsFake{}
	handler := newTestRouter(t, Options{}, Dependencies{Sessions: sessions})

	res := postJSON(t, handler, "/v1/knowledge/sessions/cleanup", "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if sessions.cleanupAge != 0 {
		t.Fatalf("expected zero age so the client applies its default, got %d", sessions.cleanupAge)
	}

	res = postJSON(t, handler, "/v1/knowledge/sessions/cleanup", map[string]any{"max_age_hours": 6})
	if res.Code != http.StatusOK || sessions.cleanupAge != 6 {
		t.Fatalf("expected age 6, got %d (status %d)", sessions.cleanupAge, res.Code)
	}
}

func TestSessionRoutesAbsentWithoutService(t *testing.T) {
	handler := newTestRouter(t, Options{}, Dependencies{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/knowledge/sessions", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestListSearchesHonoursLimit(t *testing.T) {
	audit := &auditFake{events: []domain.SearchEvent{{ID: "ev-1"}}}
	handler := newTestRouter(t, Options{}, Dependencies{Audit: audit})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/searches?limit=10", nil))
	if res.Code != http.StatusOK || audit.limit != 10 {
		t.Fatalf("expected limit 10 and 200, got %d / %d", audit.limit, res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/searches?limit=-1", nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative limit, got %d", res.Code)
	}
}

func TestExportSearchesReturnsWorkbook(t *testing.T) {
	audit := &auditFake{events: []domain.SearchEvent{{
		ID:        "ev-1",
		Query:     "民法",
		Strategy:  domain.StrategyKnowledgeFirst,
		CreatedAt: time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
	}}}
	handler := newTestRouter(t, Options{}, Dependencies{Audit: audit})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/searches/export", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get("Content-Type") != excel.ContentType {
		t.Fatalf("unexpected content type %q", res.Header().Get("Content-Type"))
	}
	if audit.limit != defaultExportLimit {
		t.Fatalf("expected export limit %d, got %d", defaultExportLimit, audit.limit)
	}

	f, err := excelize.OpenReader(bytes.NewReader(res.Body.Bytes()))
	if err != nil {
		t.Fatalf("open exported workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(excel.SheetName)
	if err != nil || len(rows) != 2 || rows[1][0] != "ev-1" {
		t.Fatalf("unexpected export rows %v (err=%v)", rows, err)
	}
}
