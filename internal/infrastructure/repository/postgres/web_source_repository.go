package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmkang/policy-qa-agent/internal/core/domain"
)

const webSourceColumns = "id, session_id, policy_id, query, url, title, snippet, score, provider, fetched_date, created_at"

type WebSourceRepository struct {
	db *sql.DB
}

func NewWebSourceRepository(db *sql.DB) *WebSourceRepository {
	return &WebSourceRepository{db: db}
}

// SaveWebSources records every web hit used for one answer. Failures
// here must not break the QA response, so callers log and continue.
func (r *WebSourceRepository) SaveWebSources(ctx context.Context, sessionID string, policyID int64, query string, sources []domain.WebResult) error {
	if len(sources) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin web sources tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, source := range sources {
		var score sql.NullFloat64
		if source.Score != nil {
			score = sql.NullFloat64{Float64: *source.Score, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO web_sources (session_id, policy_id, query, url, title, snippet, score, provider, fetched_date, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`, sessionID, policyID, query, source.URL, source.Title, source.Snippet, score, source.Provider, source.FetchedDate, now)
		if err != nil {
			return fmt.Errorf("insert web source: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit web sources tx: %w", err)
	}
	return nil
}

func (r *WebSourceRepository) GetWebSource(ctx context.Context, id int64) (*domain.WebSource, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+webSourceColumns+`
FROM web_sources
WHERE id = $1
`, id)

	source, err := scanWebSource(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.WrapError(domain.ErrWebSourceNotFound, "get web source", fmt.Errorf("id %d", id))
	}
	if err != nil {
		return nil, fmt.Errorf("get web source: %w", err)
	}
	return source, nil
}

// ListWebSources returns the newest stored rows first; empty filters
// mean "any".
func (r *WebSourceRepository) ListWebSources(ctx context.Context, sessionID string, policyID int64, limit int) ([]domain.WebSource, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
SELECT ` + webSourceColumns + `
FROM web_sources
WHERE 1=1`
	args := make([]any, 0, 3)
	if sessionID != "" {
		args = append(args, sessionID)
		query += fmt.Sprintf(" AND session_id = $%d", len(args))
	}
	if policyID > 0 {
		args = append(args, policyID)
		query += fmt.Sprintf(" AND policy_id = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list web sources: %w", err)
	}
	defer rows.Close()

	out := make([]domain.WebSource, 0, limit)
	for rows.Next() {
		source, err := scanWebSource(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan web source: %w", err)
		}
		out = append(out, *source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate web sources: %w", err)
	}
	return out, nil
}

func scanWebSource(scan func(dest ...any) error) (*domain.WebSource, error) {
	var source domain.WebSource
	var score sql.NullFloat64
	err := scan(&source.ID, &source.SessionID, &source.PolicyID, &source.Query, &source.URL,
		&source.Title, &source.Snippet, &score, &source.Provider, &source.FetchedDate, &source.CreatedAt)
	if err != nil {
		return nil, err
	}
	if score.Valid {
		source.Score = &score.Float64
	}
	return &source, nil
}
