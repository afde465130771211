package domain

import "time"

// ChatRole labels one side of a session transcript.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one persisted session turn.
type ChatMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	PolicyID  int64     `json:"policy_id"`
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// QAState is the single mutable record threaded through the workflow
// stages. Each stage writes only its own output fields; the runner
// owns the instance for exactly one pass and discards it after the
// caller extracts the answer and evidence.
type QAState struct {
	SessionID     string
	PolicyID      int64
	Query         string
	History       []ChatMessage
	Passages      []RetrievedPassage
	WebSources    []WebResult
	NeedWebSearch bool
	Answer        string
	Evidence      []EvidenceItem
	Err           string
}

// SetError records a stage failure without interrupting the pipeline.
// The first recorded message wins; later stage failures append.
func (s *QAState) SetError(msg string) {
	if msg == "" {
		return
	}
	if s.Err == "" {
		s.Err = msg
		return
	}
	s.Err = s.Err + "; " + msg
}

// QAResult is the answer envelope returned to the caller. Err, when
// set, is informational only and never suppresses Answer.
type QAResult struct {
	SessionID string         `json:"session_id"`
	Answer    string         `json:"answer"`
	Evidence  []EvidenceItem `json:"evidence"`
	Err       string         `json:"error,omitempty"`
}
