package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
)

const (
	defaultEventListLimit = 50
	maxEventListLimit     = 1000
)

type SearchEventRepository struct {
	db *sql.DB
}

func NewSearchEventRepository(db *sql.DB) *SearchEventRepository {
	return &SearchEventRepository{db: db}
}

func (r *SearchEventRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS search_events (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	endpoint TEXT NOT NULL,
	strategy TEXT NOT NULL,
	complexity TEXT,
	modes_used JSONB NOT NULL DEFAULT '[]'::jsonb,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	web_result_count INTEGER NOT NULL DEFAULT 0,
	knowledge_source_count INTEGER NOT NULL DEFAULT 0,
	duration_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_search_events_created_at ON search_events(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_search_events_strategy ON search_events(strategy);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// SaveSearchEvent is idempotent on event id so redelivered messages are harmless.
func (r *SearchEventRepository) SaveSearchEvent(ctx context.Context, event domain.SearchEvent) error {
	modes := event.ModesUsed
	if modes == nil {
		modes = []domain.SearchMode{}
	}
	modesJSON, err := json.Marshal(modes)
	if err != nil {
		return fmt.Errorf("marshal modes: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO search_events (
	id, query, endpoint, strategy, complexity, modes_used, confidence,
	web_result_count, knowledge_source_count, duration_ms, error_message, created_at
)
VALUES ($1,$2,$3,$4,$5,$6::jsonb,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO NOTHING
`,
		event.ID,
		event.Query,
		event.Endpoint,
		string(event.Strategy),
		nullIfEmpty(string(event.Complexity)),
		string(modesJSON),
		event.Confidence,
		event.WebResultCount,
		event.KnowledgeSourceCount,
		event.DurationMS,
		nullIfEmpty(event.Error),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save search event: %w", err)
	}
	return nil
}

// ListSearchEvents returns the newest events first.
func (r *SearchEventRepository) ListSearchEvents(ctx context.Context, limit int) ([]domain.SearchEvent, error) {
	if limit <= 0 {
		limit = defaultEventListLimit
	}
	if limit > maxEventListLimit {
		limit = maxEventListLimit
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, query, endpoint, strategy, complexity, modes_used, confidence,
	web_result_count, knowledge_source_count, duration_ms, error_message, created_at
FROM search_events
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list search events: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SearchEvent, 0)
	for rows.Next() {
		event, err := scanSearchEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search events: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSearchEvent(row rowScanner) (domain.SearchEvent, error) {
	var (
		event      domain.SearchEvent
		strategy   string
		complexity sql.NullString
		modesRaw   []byte
		errMessage sql.NullString
	)
	err := row.Scan(
		&event.ID,
		&event.Query,
		&event.Endpoint,
		&strategy,
		&complexity,
		&modesRaw,
		&event.Confidence,
		&event.WebResultCount,
		&event.KnowledgeSourceCount,
		&event.DurationMS,
		&errMessage,
		&event.CreatedAt,
	)
	if err != nil {
		return domain.SearchEvent{}, fmt.Errorf("scan search event: %w", err)
	}
	event.Strategy = domain.Strategy(strategy)
	event.Complexity = domain.Complexity(complexity.String)
	event.Error = errMessage.String
	event.ModesUsed = []domain.SearchMode{}
	if len(modesRaw) > 0 {
		if err := json.Unmarshal(modesRaw, &event.ModesUsed); err != nil {
			return domain.SearchEvent{}, fmt.Errorf("decode modes_used: %w", err)
		}
	}
	return event, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
