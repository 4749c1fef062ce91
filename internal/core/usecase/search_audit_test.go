package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
)

type auditStoreFake struct {
	saved []domain.SearchEvent
	err   error
}

func (f *auditStoreFake) SaveSearchEvent(_ context.Context, event domain.SearchEvent) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, event)
	return nil
}

func (f *auditStoreFake) ListSearchEvents(context.Context, int) ([]domain.SearchEvent, error) {
	return f.saved, nil
}

func TestSearchAuditRecordFillsDefaults(t *testing.T) {
	store := &auditStoreFake{}
	uc := NewSearchAuditUseCase(store)
	fixed := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	uc.now = func() time.Time { return fixed }

	if err := uc.Record(context.Background(), domain.SearchEvent{ID: "ev-1", Query: "q"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected one saved event")
	}
	got := store.saved[0]
	if !got.CreatedAt.Equal(fixed) || got.ModesUsed == nil {
		t.Fatalf("defaults not applied: %+v", got)
	}
}

func TestSearchAuditRecordRejectsMissingID(t *testing.T) {
	store := &auditStoreFake{}
	err := NewSearchAuditUseCase(store).Record(context.Background(), domain.SearchEvent{})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if len(store.saved) != 0 {
		t.Fatalf("nothing should be saved")
	}
}

func TestSearchAuditRecordWrapsStoreError(t *testing.T) {
	boom := errors.New("db down")
	err := NewSearchAuditUseCase(&auditStoreFake{err: boom}).Record(context.Background(), domain.SearchEvent{ID: "ev-1"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected store error in chain, got %v", err)
	}
}
