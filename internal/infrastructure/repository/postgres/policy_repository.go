package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/jmkang/policy-qa-agent/internal/core/domain"
)

type PolicyRepository struct {
	db *sql.DB
}

func NewPolicyRepository(db *sql.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *PolicyRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker/importer startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS policies (
	id BIGSERIAL PRIMARY KEY,
	program_id BIGINT NOT NULL,
	region TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	program_name TEXT NOT NULL,
	program_overview TEXT NOT NULL DEFAULT '',
	support_description TEXT NOT NULL DEFAULT '',
	support_budget BIGINT NOT NULL DEFAULT 0,
	support_scale TEXT NOT NULL DEFAULT '',
	supervising_ministry TEXT NOT NULL DEFAULT '',
	apply_target TEXT NOT NULL DEFAULT '',
	announcement_date TEXT NOT NULL DEFAULT '',
	application_method JSONB NOT NULL DEFAULT '[]'::jsonb,
	contact_agency JSONB NOT NULL DEFAULT '[]'::jsonb,
	contact_number JSONB NOT NULL DEFAULT '[]'::jsonb,
	required_documents JSONB NOT NULL DEFAULT '[]'::jsonb,
	collected_date TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_policies_region ON policies(region);
CREATE INDEX IF NOT EXISTS idx_policies_category ON policies(category);
CREATE INDEX IF NOT EXISTS idx_policies_announcement_date ON policies(announcement_date DESC);

CREATE TABLE IF NOT EXISTS policy_documents (
	id BIGSERIAL PRIMARY KEY,
	policy_id BIGINT NOT NULL REFERENCES policies(id) ON DELETE CASCADE,
	doc_type TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	storage_key TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_policy_documents_policy_id ON policy_documents(policy_id);

CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	policy_id BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_history (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
	policy_id BIGINT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_history_session_created ON chat_history(session_id, created_at DESC);

CREATE TABLE IF NOT EXISTS web_sources (
	id BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL,
	policy_id BIGINT NOT NULL,
	query TEXT NOT NULL,
	url TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	snippet TEXT NOT NULL DEFAULT '',
	score DOUBLE PRECISION,
	provider TEXT NOT NULL DEFAULT '',
	fetched_date TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_web_sources_session ON web_sources(session_id);

CREATE TABLE IF NOT EXISTS eligibility_checks (
	session_id TEXT PRIMARY KEY,
	policy_id BIGINT NOT NULL,
	state JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *PolicyRepository) Create(ctx context.Context, policy *domain.Policy) error {
	methodJSON, agencyJSON, numberJSON, docsJSON, err := marshalPolicyLists(policy)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if policy.CreatedAt.IsZero() {
		policy.CreatedAt = now
	}
	policy.UpdatedAt = now

	row := r.db.QueryRowContext(ctx, `
INSERT INTO policies (
	program_id, region, category, program_name, program_overview, support_description,
	support_budget, support_scale, supervising_ministry, apply_target, announcement_date,
	application_method, contact_agency, contact_number, required_documents, collected_date,
	created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
RETURNING id
`,
		policy.ProgramID, policy.Region, policy.Category, policy.ProgramName, policy.ProgramOverview,
		policy.SupportDescription, policy.SupportBudget, policy.SupportScale, policy.SupervisingMinistry,
		policy.ApplyTarget, policy.AnnouncementDate, methodJSON, agencyJSON, numberJSON, docsJSON,
		policy.CollectedDate, policy.CreatedAt, policy.UpdatedAt,
	)
	if err := row.Scan(&policy.ID); err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}
	return nil
}

func (r *PolicyRepository) GetByID(ctx context.Context, id int64) (*domain.Policy, error) {
	row := r.db.QueryRowContext(ctx, policySelectColumns+`
FROM policies
WHERE id = $1
`, id)

	policy, err := scanPolicy(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrPolicyNotFound, "get policy", err)
		}
		return nil, err
	}
	return policy, nil
}

func (r *PolicyRepository) ListByIDs(ctx context.Context, ids []int64) ([]domain.Policy, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids))
	for i, id := range ids {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, id)
	}

	rows, err := r.db.QueryContext(ctx, policySelectColumns+`
FROM policies
WHERE id IN (`+strings.Join(placeholders, ",")+`)
`, args...)
	if err != nil {
		return nil, fmt.Errorf("list policies by ids: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Policy, 0, len(ids))
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *policy)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policies: %w", err)
	}
	return out, nil
}

// Search lists catalog rows matching the filter, most recent
// announcements first.
func (r *PolicyRepository) Search(ctx context.Context, filter domain.PolicyFilter, limit, offset int) ([]domain.Policy, error) {
	if limit <= 0 {
		return nil, nil
	}
	where, args := buildPolicyWhere(filter)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, policySelectColumns+`
FROM policies
`+where+`
ORDER BY announcement_date DESC, id DESC
LIMIT $`+fmt.Sprint(len(args)-1)+` OFFSET $`+fmt.Sprint(len(args)),
		args...)
	if err != nil {
		return nil, fmt.Errorf("search policies: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Policy, 0, limit)
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *policy)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policies: %w", err)
	}
	return out, nil
}

func (r *PolicyRepository) Count(ctx context.Context, filter domain.PolicyFilter) (int, error) {
	where, args := buildPolicyWhere(filter)

	var total int
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM policies `+where, args...)
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("count policies: %w", err)
	}
	return total, nil
}

const policySelectColumns = `
SELECT id, program_id, region, category, program_name, program_overview, support_description,
	support_budget, support_scale, supervising_ministry, apply_target, announcement_date,
	application_method, contact_agency, contact_number, required_documents, collected_date,
	created_at, updated_at`

func buildPolicyWhere(filter domain.PolicyFilter) (string, []any) {
	conditions := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if filter.Region != "" {
		args = append(args, filter.Region)
		conditions = append(conditions, fmt.Sprintf("region = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (*domain.Policy, error) {
	var policy domain.Policy
	var methodRaw, agencyRaw, numberRaw, docsRaw []byte

	err := row.Scan(
		&policy.ID, &policy.ProgramID, &policy.Region, &policy.Category, &policy.ProgramName,
		&policy.ProgramOverview, &policy.SupportDescription, &policy.SupportBudget, &policy.SupportScale,
		&policy.SupervisingMinistry, &policy.ApplyTarget, &policy.AnnouncementDate,
		&methodRaw, &agencyRaw, &numberRaw, &docsRaw, &policy.CollectedDate,
		&policy.CreatedAt, &policy.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan policy: %w", err)
	}

	for _, pair := range []struct {
		raw []byte
		out *[]string
	}{
		{methodRaw, &policy.ApplicationMethod},
		{agencyRaw, &policy.ContactAgency},
		{numberRaw, &policy.ContactNumber},
		{docsRaw, &policy.RequiredDocuments},
	} {
		if len(pair.raw) == 0 {
			*pair.out = []string{}
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.out); err != nil {
			return nil, fmt.Errorf("unmarshal policy list column: %w", err)
		}
	}
	return &policy, nil
}

func marshalPolicyLists(policy *domain.Policy) (method, agency, number, docs []byte, err error) {
	marshal := func(values []string) ([]byte, error) {
		if values == nil {
			values = []string{}
		}
		return json.Marshal(values)
	}
	if method, err = marshal(policy.ApplicationMethod); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal application_method: %w", err)
	}
	if agency, err = marshal(policy.ContactAgency); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal contact_agency: %w", err)
	}
	if number, err = marshal(policy.ContactNumber); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal contact_number: %w", err)
	}
	if docs, err = marshal(policy.RequiredDocuments); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal required_documents: %w", err)
	}
	return method, agency, number, docs, nil
}
