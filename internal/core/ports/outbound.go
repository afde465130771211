package ports

import (
	"context"
	"io"

	"github.com/jmkang/policy-qa-agent/internal/core/domain"
)

// Embedder builds fixed-length vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores chunk vectors and performs nearest-neighbor
// search restricted by payload filters.
type VectorIndex interface {
	IndexChunks(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int, scoreThreshold float64, filter domain.VectorFilter) ([]domain.VectorHit, error)
}

// PolicyStore reads and writes the relational policy catalog.
type PolicyStore interface {
	Create(ctx context.Context, policy *domain.Policy) error
	GetByID(ctx context.Context, id int64) (*domain.Policy, error)
	ListByIDs(ctx context.Context, ids []int64) ([]domain.Policy, error)
	Search(ctx context.Context, filter domain.PolicyFilter, limit, offset int) ([]domain.Policy, error)
	Count(ctx context.Context, filter domain.PolicyFilter) (int, error)
}

// DocumentStore persists policy source documents for indexing.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *domain.PolicyDocument) error
	ListByPolicyID(ctx context.Context, policyID int64) ([]domain.PolicyDocument, error)
}

// SessionStore persists QA sessions and their transcripts.
type SessionStore interface {
	EnsureSession(ctx context.Context, sessionID string, policyID int64) error
	AppendMessage(ctx context.Context, message domain.ChatMessage) error
	ListRecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error)
	// ResetSession deletes a session with its transcript and any
	// eligibility interview state. False means nothing matched.
	ResetSession(ctx context.Context, sessionID string) (bool, error)
}

// WebSourceStore records web results used as answer evidence and reads
// them back for the evidence inspection endpoints.
type WebSourceStore interface {
	SaveWebSources(ctx context.Context, sessionID string, policyID int64, query string, sources []domain.WebResult) error
	GetWebSource(ctx context.Context, id int64) (*domain.WebSource, error)
	ListWebSources(ctx context.Context, sessionID string, policyID int64, limit int) ([]domain.WebSource, error)
}

// EligibilityStore persists in-progress eligibility interviews.
type EligibilityStore interface {
	SaveEligibilityCheck(ctx context.Context, check *domain.EligibilityCheck) error
	GetEligibilityCheck(ctx context.Context, sessionID string) (*domain.EligibilityCheck, error)
}

// WebSearcher finds relevant live web snippets. Implementations
// degrade to an empty slice instead of failing the caller.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]domain.WebResult, error)
}

// AnswerGenerator produces one synchronous completion from a message
// sequence.
type AnswerGenerator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// Message is one turn handed to the language model.
type Message struct {
	Role    string
	Content string
}

// Chunker splits source text into overlapping bounded segments.
type Chunker interface {
	Split(text string, meta domain.ChunkMetadata) []domain.Chunk
}

// TextExtractor pulls plain text out of a stored source document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.PolicyDocument) (string, error)
}

// ObjectStorage keeps raw source files (announcement PDFs and the
// like) for the indexing worker.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// CatalogReader loads collected policy rows from a catalog file.
type CatalogReader interface {
	Read(path string) ([]domain.Policy, error)
}

// MessageQueue carries policy ingest events from importer to worker.
type MessageQueue interface {
	PublishPolicyIngested(ctx context.Context, policyID int64) error
	SubscribePolicyIngested(ctx context.Context, handler func(context.Context, int64) error) error
}
