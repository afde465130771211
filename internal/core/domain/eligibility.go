package domain

import "time"

// ConditionStatus tracks one eligibility condition through the
// interview.
type ConditionStatus string

const (
	ConditionPass    ConditionStatus = "PASS"
	ConditionFail    ConditionStatus = "FAIL"
	ConditionUnknown ConditionStatus = "UNKNOWN"
)

// EligibilityCondition is one requirement extracted from a policy's
// apply-target text.
type EligibilityCondition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Type        string          `json:"type"`
	Value       string          `json:"value"`
	Status      ConditionStatus `json:"status"`
	Reason      string          `json:"reason,omitempty"`
}

// EligibilityDecision is the interview verdict.
type EligibilityDecision string

const (
	DecisionEligible       EligibilityDecision = "ELIGIBLE"
	DecisionNotEligible    EligibilityDecision = "NOT_ELIGIBLE"
	DecisionPartiallyKnown EligibilityDecision = "PARTIALLY"
)

// EligibilityCheck is the persisted state of one multi-turn interview:
// the parsed conditions, the slots collected from the user so far, the
// next question to ask and, once every condition is resolved, the
// verdict. CurrentIndex points at the condition currently being asked.
type EligibilityCheck struct {
	SessionID    string                 `json:"session_id"`
	PolicyID     int64                  `json:"policy_id"`
	Conditions   []EligibilityCondition `json:"conditions"`
	CurrentIndex int                    `json:"current_index"`
	UserSlots    map[string]string      `json:"user_slots"`
	Question     string                 `json:"question,omitempty"`
	Decision     EligibilityDecision    `json:"decision,omitempty"`
	Reason       string                 `json:"reason,omitempty"`
	Err          string                 `json:"error,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// Done reports whether the interview has moved past every condition.
func (c *EligibilityCheck) Done() bool {
	return c.CurrentIndex >= len(c.Conditions)
}

// RecordError keeps degraded-stage messages without stopping the
// interview. The first recorded message wins; later failures append.
func (c *EligibilityCheck) RecordError(msg string) {
	if msg == "" {
		return
	}
	if c.Err == "" {
		c.Err = msg
		return
	}
	c.Err = c.Err + "; " + msg
}
