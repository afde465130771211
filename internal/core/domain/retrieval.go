package domain

import "time"

// RetrievedPassage is one scored chunk from the vector index.
// Read-only once produced by the retriever.
type RetrievedPassage struct {
	Content    string      `json:"content"`
	Score      float64     `json:"score"`
	DocType    SegmentType `json:"doc_type"`
	PolicyID   int64       `json:"policy_id"`
	ChunkIndex int         `json:"chunk_index"`
}

// WebResult is one live web search hit. Score is nil when the provider
// does not report relevance.
type WebResult struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Snippet     string   `json:"snippet"`
	Score       *float64 `json:"score,omitempty"`
	FetchedDate string   `json:"fetched_date"`
	Provider    string   `json:"provider"`
}

// WebSource is one persisted web evidence row, readable back through
// the API after the answer that used it.
type WebSource struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"session_id"`
	PolicyID    int64     `json:"policy_id"`
	Query       string    `json:"query"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Snippet     string    `json:"snippet"`
	Score       *float64  `json:"score,omitempty"`
	Provider    string    `json:"provider"`
	FetchedDate string    `json:"fetched_date"`
	CreatedAt   time.Time `json:"created_at"`
}

// EvidenceKind distinguishes catalog passages from live web sources in
// the user-facing citation list.
type EvidenceKind string

const (
	EvidenceInternal EvidenceKind = "internal"
	EvidenceWeb      EvidenceKind = "web"
)

// EvidenceItem is one user-facing citation. Content is truncated to a
// fixed display budget at creation and never mutated afterwards.
type EvidenceItem struct {
	Kind    EvidenceKind `json:"kind"`
	Source  string       `json:"source"`
	Content string       `json:"content"`
	URL     string       `json:"url,omitempty"`
	Score   *float64     `json:"score,omitempty"`
}

// VectorFilter restricts a vector search to matching payload fields.
type VectorFilter struct {
	PolicyID *int64
	Region   string
	Category string
}

// VectorHit is one raw nearest-neighbor match with its indexed payload.
type VectorHit struct {
	Score      float64
	PolicyID   int64
	DocType    SegmentType
	ChunkIndex int
	Content    string
}

// Chunk is one bounded segment of a source text, produced by the
// splitter for indexing.
type Chunk struct {
	Index    int
	Content  string
	Metadata ChunkMetadata
}

// ChunkMetadata is copied from the caller onto every chunk of a split.
type ChunkMetadata struct {
	PolicyID int64
	DocType  SegmentType
	Region   string
	Category string
}
