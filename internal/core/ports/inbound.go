package ports

import (
	"context"

	"github.com/jmkang/policy-qa-agent/internal/core/domain"
)

// QAService is the inbound contract for the question-answering
// workflow. It always returns a well-formed result; stage failures are
// reported through the result's Err field.
type QAService interface {
	Ask(ctx context.Context, sessionID string, policyID int64, question string) (domain.QAResult, error)
}

// PolicySearchService is the inbound contract for hybrid catalog
// search.
type PolicySearchService interface {
	Search(ctx context.Context, query string, filter domain.PolicyFilter, limit, offset int) (domain.SearchResultSet, error)
	GetByID(ctx context.Context, id int64) (*domain.Policy, error)
}

// EligibilityService drives the multi-turn eligibility interview:
// extract a policy's conditions, ask about the unknowns one turn at a
// time, and render a verdict once every condition is resolved.
type EligibilityService interface {
	Start(ctx context.Context, policyID int64) (*domain.EligibilityCheck, error)
	Answer(ctx context.Context, sessionID, answer string) (*domain.EligibilityCheck, error)
	Result(ctx context.Context, sessionID string) (*domain.EligibilityCheck, error)
}

// PolicyIndexer is the inbound contract for asynchronous document
// chunking and vector indexing.
type PolicyIndexer interface {
	IndexByPolicyID(ctx context.Context, policyID int64) error
}

// CatalogImporter loads policy catalog rows and schedules indexing.
type CatalogImporter interface {
	Import(ctx context.Context, path string) (int, error)
}
