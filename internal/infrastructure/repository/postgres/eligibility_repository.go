package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmkang/policy-qa-agent/internal/core/domain"
)

type EligibilityRepository struct {
	db *sql.DB
}

func NewEligibilityRepository(db *sql.DB) *EligibilityRepository {
	return &EligibilityRepository{db: db}
}

// SaveEligibilityCheck upserts the whole interview state as one JSONB
// document keyed by session id. The state is always written whole, so
// a crashed turn never leaves a half-updated interview behind.
func (r *EligibilityRepository) SaveEligibilityCheck(ctx context.Context, check *domain.EligibilityCheck) error {
	state, err := json.Marshal(check)
	if err != nil {
		return fmt.Errorf("encode eligibility state: %w", err)
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
INSERT INTO eligibility_checks (session_id, policy_id, state, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (session_id) DO UPDATE SET state = $3, updated_at = $4
`, check.SessionID, check.PolicyID, state, now)
	if err != nil {
		return fmt.Errorf("save eligibility check: %w", err)
	}
	return nil
}

func (r *EligibilityRepository) GetEligibilityCheck(ctx context.Context, sessionID string) (*domain.EligibilityCheck, error) {
	var state []byte
	err := r.db.QueryRowContext(ctx, `
SELECT state FROM eligibility_checks WHERE session_id = $1
`, sessionID).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "get eligibility check", fmt.Errorf("session %s", sessionID))
	}
	if err != nil {
		return nil, fmt.Errorf("get eligibility check: %w", err)
	}

	var check domain.EligibilityCheck
	if err := json.Unmarshal(state, &check); err != nil {
		return nil, fmt.Errorf("decode eligibility state: %w", err)
	}
	return &check, nil
}
