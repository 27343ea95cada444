package ethics

import (
	"time"

	"github.com/google/uuid"
)

// VerificationStatus is the verdict of a single ethical verification.
type VerificationStatus int

const (
	StatusApproved VerificationStatus = iota
	StatusRejected
	StatusNeedsReview
)

func (s VerificationStatus) String() string {
	switch s {
	case StatusApproved:
		return "approved"
	case StatusRejected:
		return "rejected"
	case StatusNeedsReview:
		return "needs_review"
	default:
		return "unknown"
	}
}

// Alternative is a partial override of the original action's parameters
// that would address a specific violation.
type Alternative struct {
	Pillar      *Pillar                `json:"pillar,omitempty"`
	Description string                 `json:"description"`
	Overrides   map[string]interface{} `json:"overrides"`
}

// VerificationResult is the auditable outcome of evaluating one
// proposed action against the ethical pillars. Created once per
// verification call and never mutated afterwards.
type VerificationResult struct {
	ID                    uuid.UUID          `json:"id"`
	ActionID              string             `json:"action_id"`
	Status                VerificationStatus `json:"status"`
	Justification         string             `json:"justification"`
	ViolatedPillars       []Pillar           `json:"violated_pillars"`
	ViolationMessages     map[Pillar]string  `json:"violation_messages,omitempty"`
	SuggestedAlternatives []Alternative      `json:"suggested_alternatives,omitempty"`
	Risk                  *float64           `json:"risk,omitempty"`
	Timestamp             time.Time          `json:"timestamp"`
}

// NewVerificationResult creates a result shell for an action. Violations
// and the verdict are filled in by the evaluator.
func NewVerificationResult(actionID string) *VerificationResult {
	return &VerificationResult{
		ID:                uuid.New(),
		ActionID:          actionID,
		Status:            StatusApproved,
		ViolatedPillars:   []Pillar{},
		ViolationMessages: map[Pillar]string{},
		Timestamp:         time.Now(),
	}
}

// AddViolation records a pillar violation with its message. Adding a
// violation does not decide the verdict; the decision rule over the
// full violation set does.
func (r *VerificationResult) AddViolation(pillar Pillar, message string) {
	for _, p := range r.ViolatedPillars {
		if p == pillar {
			r.ViolationMessages[pillar] = message
			return
		}
	}
	r.ViolatedPillars = append(r.ViolatedPillars, pillar)
	r.ViolationMessages[pillar] = message
}

// HasViolation reports whether the given pillar was violated.
func (r *VerificationResult) HasViolation(pillar Pillar) bool {
	for _, p := range r.ViolatedPillars {
		if p == pillar {
			return true
		}
	}
	return false
}

// IsApproved reports whether the action may proceed.
func (r *VerificationResult) IsApproved() bool {
	return r.Status == StatusApproved
}
