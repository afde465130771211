package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jmkang/policy-qa-agent/internal/core/domain"
)

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) EnsureSession(ctx context.Context, sessionID string, policyID int64) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO sessions (session_id, policy_id, created_at, updated_at)
VALUES ($1, $2, $3, $3)
ON CONFLICT (session_id) DO UPDATE SET updated_at = $3
`, sessionID, policyID, now)
	if err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}
	return nil
}

func (r *SessionRepository) AppendMessage(ctx context.Context, message domain.ChatMessage) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO chat_history (id, session_id, policy_id, role, content, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, message.ID, message.SessionID, message.PolicyID, string(message.Role), message.Content, message.CreatedAt)
	if err != nil {
		return fmt.Errorf("append chat message: %w", err)
	}
	return nil
}

func (r *SessionRepository) ListRecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, session_id, policy_id, role, content, created_at
FROM chat_history
WHERE session_id = $1
ORDER BY created_at DESC
LIMIT $2
`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ChatMessage, 0, limit)
	for rows.Next() {
		var msg domain.ChatMessage
		var role string
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.PolicyID, &role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recent message: %w", err)
		}
		msg.Role = domain.ChatRole(role)
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent messages: %w", err)
	}

	// Returned in descending order from SQL; reverse to keep chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ResetSession removes the session row (the transcript cascades with
// it) and any eligibility interview state stored under the same id.
func (r *SessionRepository) ResetSession(ctx context.Context, sessionID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin session reset tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	sessionRes, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	sessionsDeleted, err := sessionRes.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("count deleted sessions: %w", err)
	}

	eligRes, err := tx.ExecContext(ctx, `DELETE FROM eligibility_checks WHERE session_id = $1`, sessionID)
	if err != nil {
		return false, fmt.Errorf("delete eligibility state: %w", err)
	}
	checksDeleted, err := eligRes.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("count deleted eligibility state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit session reset tx: %w", err)
	}
	return sessionsDeleted > 0 || checksDeleted > 0, nil
}
