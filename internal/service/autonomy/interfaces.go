package autonomy

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/autocura/governance-core/internal/domain/autonomy"
)

// MetricsProvider supplies the operational metrics the flow needs to
// evaluate advancement criteria and test-window degradation. Pull
// based and read only.
type MetricsProvider interface {
	Snapshot(ctx context.Context) (autonomy.OperationalMetrics, error)
}

// ApprovalAuthority confirms transitions waiting in PENDING_APPROVAL.
// A human governance process implements this in production.
type ApprovalAuthority interface {
	Decide(ctx context.Context, transition *autonomy.Transition) (approved bool, comment string, err error)
}

// AutoApprover approves every pending transition. It reproduces the
// reference behavior and is only suitable for development.
type AutoApprover struct{}

func (AutoApprover) Decide(_ context.Context, _ *autonomy.Transition) (bool, string, error) {
	return true, "auto-approved", nil
}

// StaticProvider serves a fixed metrics snapshot. Useful for
// development and tests; production injects a live provider.
type StaticProvider struct {
	Metrics autonomy.OperationalMetrics
}

func (p StaticProvider) Snapshot(_ context.Context) (autonomy.OperationalMetrics, error) {
	m := p.Metrics
	m.CapturedAt = time.Now()
	return m, nil
}

// TransitionEvent is the audit notification emitted for every
// transition outcome.
type TransitionEvent struct {
	TransitionID uuid.UUID `json:"transition_id"`
	Type         string    `json:"type"`
	State        string    `json:"state"`
	Origin       int       `json:"origin"`
	Destination  int       `json:"destination"`
	Reason       string    `json:"reason"`
	Urgency      string    `json:"urgency,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Notifier delivers transition events to the audit sink. Fire and
// forget: implementations must never block the state machine, and
// delivery failure never fails a transition.
type Notifier interface {
	NotifyTransition(event TransitionEvent)
}

// TransitionStore persists transition records for audit. A nil store
// disables persistence; store failures are logged, never surfaced.
type TransitionStore interface {
	SaveTransition(ctx context.Context, transition *autonomy.Transition) error
}
