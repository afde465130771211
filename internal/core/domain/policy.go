package domain

import "time"

// Policy is one government support program row from the relational
// catalog. Fields mirror the collected open-data schema.
type Policy struct {
	ID                  int64     `json:"id"`
	ProgramID           int64     `json:"program_id"`
	Region              string    `json:"region"`
	Category            string    `json:"category"`
	ProgramName         string    `json:"program_name"`
	ProgramOverview     string    `json:"program_overview"`
	SupportDescription  string    `json:"support_description"`
	SupportBudget       int64     `json:"support_budget"`
	SupportScale        string    `json:"support_scale"`
	SupervisingMinistry string    `json:"supervising_ministry"`
	ApplyTarget         string    `json:"apply_target"`
	AnnouncementDate    string    `json:"announcement_date"`
	ApplicationMethod   []string  `json:"application_method"`
	ContactAgency       []string  `json:"contact_agency"`
	ContactNumber       []string  `json:"contact_number"`
	RequiredDocuments   []string  `json:"required_documents"`
	CollectedDate       string    `json:"collected_date"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// PolicyFilter narrows relational queries; empty fields mean "any".
type PolicyFilter struct {
	Region   string
	Category string
}

// PolicyHit is one ranked search result. Score is nil for pure
// relational listings that carry no vector relevance.
type PolicyHit struct {
	Policy Policy   `json:"policy"`
	Score  *float64 `json:"score,omitempty"`
}

// SearchResultSet is the hybrid search output: hits strictly
// descending by score (when scored) and unique by policy id.
type SearchResultSet struct {
	Hits  []PolicyHit `json:"items"`
	Total int         `json:"total"`
}

// SegmentType labels which catalog section a document chunk came from.
type SegmentType string

const (
	SegmentOverview SegmentType = "overview"
	SegmentTarget   SegmentType = "target"
	SegmentSupport  SegmentType = "support"
	SegmentProcess  SegmentType = "process"
	SegmentContact  SegmentType = "contact"
	SegmentOther    SegmentType = "other"
)

// PolicyDocument is one source text attached to a policy, chunked and
// indexed by the worker.
type PolicyDocument struct {
	ID          int64       `json:"id"`
	PolicyID    int64       `json:"policy_id"`
	DocType     SegmentType `json:"doc_type"`
	Content     string      `json:"content"`
	StorageKey  string      `json:"storage_key,omitempty"`
	ContentType string      `json:"content_type,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}
