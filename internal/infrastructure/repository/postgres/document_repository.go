package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmkang/policy-qa-agent/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) CreateDocument(ctx context.Context, doc *domain.PolicyDocument) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	row := r.db.QueryRowContext(ctx, `
INSERT INTO policy_documents (policy_id, doc_type, content, storage_key, content_type, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id
`, doc.PolicyID, string(doc.DocType), doc.Content, doc.StorageKey, doc.ContentType, doc.CreatedAt)
	if err := row.Scan(&doc.ID); err != nil {
		return fmt.Errorf("insert policy document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) ListByPolicyID(ctx context.Context, policyID int64) ([]domain.PolicyDocument, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, policy_id, doc_type, content, storage_key, content_type, created_at
FROM policy_documents
WHERE policy_id = $1
ORDER BY id ASC
`, policyID)
	if err != nil {
		return nil, fmt.Errorf("list policy documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.PolicyDocument, 0, 8)
	for rows.Next() {
		var doc domain.PolicyDocument
		var docType string
		if err := rows.Scan(&doc.ID, &doc.PolicyID, &docType, &doc.Content, &doc.StorageKey, &doc.ContentType, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan policy document: %w", err)
		}
		doc.DocType = domain.SegmentType(docType)
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policy documents: %w", err)
	}
	return out, nil
}
