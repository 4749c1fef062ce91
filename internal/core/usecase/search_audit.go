package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
	"github.com/kirillkom/hybrid-legal-search/internal/core/ports"
)

// SearchAuditUseCase persists completed-search events consumed by the worker.
type SearchAuditUseCase struct {
	store ports.SearchAuditStore
	now   func() time.Time
}

func NewSearchAuditUseCase(store ports.SearchAuditStore) *SearchAuditUseCase {
	return &SearchAuditUseCase{store: store, now: time.Now}
}

func (uc *SearchAuditUseCase) Record(ctx context.Context, event domain.SearchEvent) error {
	if strings.TrimSpace(event.ID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "record search event", errors.New("event id is empty"))
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = uc.now().UTC()
	}
	if event.ModesUsed == nil {
		event.ModesUsed = []domain.SearchMode{}
	}
	if err := uc.store.SaveSearchEvent(ctx, event); err != nil {
		return fmt.Errorf("save search event %s: %w", event.ID, err)
	}
	return nil
}
