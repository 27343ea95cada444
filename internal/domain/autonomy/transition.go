package autonomy

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/autocura/governance-core/internal/domain/values"
)

// TransitionType distinguishes gated promotions from immediate,
// ungated safety demotions.
type TransitionType int

const (
	TransitionAdvancement TransitionType = iota
	TransitionReversion
)

func (t TransitionType) String() string {
	switch t {
	case TransitionAdvancement:
		return "advancement"
	case TransitionReversion:
		return "reversion"
	default:
		return "unknown"
	}
}

// TransitionState is the lifecycle state of a level transition.
type TransitionState int

const (
	StateRequested TransitionState = iota
	StateTesting
	StatePendingApproval
	StateApproved
	StateRejected
	StateCompleted
	StateReverted
)

func (s TransitionState) String() string {
	switch s {
	case StateRequested:
		return "requested"
	case StateTesting:
		return "testing"
	case StatePendingApproval:
		return "pending_approval"
	case StateApproved:
		return "approved"
	case StateRejected:
		return "rejected"
	case StateCompleted:
		return "completed"
	case StateReverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further state change is allowed.
func (s TransitionState) IsTerminal() bool {
	return s == StateRejected || s == StateReverted
}

// allowedNext encodes the legal state machine edges. A COMPLETED
// advancement may still move to REVERTED when a later reversion
// undoes the level it granted.
var allowedNext = map[TransitionState][]TransitionState{
	StateRequested:       {StateTesting, StateApproved, StateRejected},
	StateTesting:         {StatePendingApproval, StateRejected},
	StatePendingApproval: {StateApproved, StateRejected},
	StateApproved:        {StateCompleted},
	StateCompleted:       {StateReverted},
}

// StateChange is one entry of a transition's ordered state history.
type StateChange struct {
	State     TransitionState `json:"state"`
	Timestamp time.Time       `json:"timestamp"`
	Comment   string          `json:"comment,omitempty"`
}

// Transition records one requested autonomy level change and its full
// lifecycle. Mutated only through the state-machine methods below.
type Transition struct {
	ID          uuid.UUID       `json:"id"`
	Type        TransitionType  `json:"type"`
	Origin      Level           `json:"origin"`
	Destination Level           `json:"destination"`
	State       TransitionState `json:"state"`
	History     []StateChange   `json:"history"`

	// Advancement bookkeeping
	Evidence        map[string]interface{} `json:"evidence,omitempty"`
	CriteriaResults []CriterionResult      `json:"criteria_results,omitempty"`
	Baseline        *OperationalMetrics    `json:"baseline,omitempty"`

	// Reversion bookkeeping
	Motive  string         `json:"motive,omitempty"`
	Urgency values.Urgency `json:"urgency,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAdvancement creates an advancement request in the REQUESTED state.
func NewAdvancement(origin, destination Level, evidence map[string]interface{}) *Transition {
	now := time.Now()
	return &Transition{
		ID:          uuid.New(),
		Type:        TransitionAdvancement,
		Origin:      origin,
		Destination: destination,
		State:       StateRequested,
		History:     []StateChange{{State: StateRequested, Timestamp: now, Comment: "advancement requested"}},
		Evidence:    evidence,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewReversion creates a reversion request in the REQUESTED state.
// Reversions bypass testing and approval; the flow approves and
// completes them synchronously.
func NewReversion(origin, destination Level, motive string, urgency values.Urgency) *Transition {
	now := time.Now()
	return &Transition{
		ID:          uuid.New(),
		Type:        TransitionReversion,
		Origin:      origin,
		Destination: destination,
		State:       StateRequested,
		History:     []StateChange{{State: StateRequested, Timestamp: now, Comment: motive}},
		Motive:      motive,
		Urgency:     urgency,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (t *Transition) moveTo(state TransitionState, comment string) error {
	for _, next := range allowedNext[t.State] {
		if next == state {
			now := time.Now()
			t.State = state
			t.History = append(t.History, StateChange{State: state, Timestamp: now, Comment: comment})
			t.UpdatedAt = now
			return nil
		}
	}
	return fmt.Errorf("illegal transition state change %s -> %s", t.State, state)
}

// BeginTesting moves an advancement into its test window, recording the
// metrics baseline and the itemized criteria evaluation that passed.
func (t *Transition) BeginTesting(baseline OperationalMetrics, results []CriterionResult, comment string) error {
	if t.Type != TransitionAdvancement {
		return fmt.Errorf("only advancements carry a test window")
	}
	t.Baseline = &baseline
	t.CriteriaResults = results
	return t.moveTo(StateTesting, comment)
}

// MarkPendingApproval moves a tested advancement to the governance gate.
func (t *Transition) MarkPendingApproval(comment string) error {
	return t.moveTo(StatePendingApproval, comment)
}

// Approve records the governance (or synchronous reversion) approval.
func (t *Transition) Approve(comment string) error {
	return t.moveTo(StateApproved, comment)
}

// Complete finishes an approved transition; the owning flow switches
// the level and archives the record.
func (t *Transition) Complete(comment string) error {
	return t.moveTo(StateCompleted, comment)
}

// Reject terminates the transition with an explanation. Used for
// criteria failures, test-window degradation, governance denial and
// explicit cancellation alike.
func (t *Transition) Reject(comment string) error {
	return t.moveTo(StateRejected, comment)
}

// MarkReverted flags a completed advancement whose granted level was
// later undone by a reversion.
func (t *Transition) MarkReverted(comment string) error {
	return t.moveTo(StateReverted, comment)
}

// IsActive reports whether the transition still occupies the pipeline.
func (t *Transition) IsActive() bool {
	return t.State != StateCompleted && !t.State.IsTerminal()
}
