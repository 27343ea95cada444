package autonomy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/autocura/governance-core/internal/domain/autonomy"
	domainerrors "github.com/autocura/governance-core/internal/domain/errors"
	"github.com/autocura/governance-core/internal/domain/values"
	"github.com/autocura/governance-core/internal/infrastructure/telemetry"
)

// Config holds flow tuning. DegradationTolerance is the fraction by
// which a tracked metric may slip during a test window before the
// advancement is rejected.
type Config struct {
	InitialLevel         autonomy.Level `json:"initial_level"`
	DegradationTolerance float64        `json:"degradation_tolerance"`
}

// DefaultConfig returns the shipped flow settings.
func DefaultConfig() Config {
	return Config{
		InitialLevel:         autonomy.LevelAssistance,
		DegradationTolerance: 0.05,
	}
}

// Flow owns the process's current autonomy level and gates every level
// transition. All mutations go through the mutex: at most one
// advancement may be active, and reversions apply synchronously.
type Flow struct {
	mu sync.Mutex

	logger   *zap.Logger
	policies *autonomy.PolicySet
	metrics  MetricsProvider
	config   Config

	authority ApprovalAuthority
	notifier  Notifier
	store     TransitionStore

	current autonomy.Level
	active  *autonomy.Transition
	archive []*autonomy.Transition
}

// Option configures optional flow collaborators.
type Option func(*Flow)

// WithAuthority replaces the default auto-approving governance gate.
func WithAuthority(authority ApprovalAuthority) Option {
	return func(f *Flow) { f.authority = authority }
}

// WithNotifier attaches an audit notification sink.
func WithNotifier(notifier Notifier) Option {
	return func(f *Flow) { f.notifier = notifier }
}

// WithStore attaches transition persistence.
func WithStore(store TransitionStore) Option {
	return func(f *Flow) { f.store = store }
}

// NewFlow creates the autonomy level state machine.
func NewFlow(logger *zap.Logger, policies *autonomy.PolicySet, metrics MetricsProvider, config Config, opts ...Option) (*Flow, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if policies == nil {
		return nil, fmt.Errorf("policy set is required")
	}
	if metrics == nil {
		return nil, fmt.Errorf("metrics provider is required")
	}
	if _, err := autonomy.LevelFromInt(int(config.InitialLevel)); err != nil {
		return nil, err
	}
	if config.DegradationTolerance <= 0 {
		config.DegradationTolerance = DefaultConfig().DegradationTolerance
	}

	f := &Flow{
		logger:    logger,
		policies:  policies,
		metrics:   metrics,
		config:    config,
		authority: AutoApprover{},
		current:   config.InitialLevel,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// CurrentLevel returns the active autonomy level.
func (f *Flow) CurrentLevel() autonomy.Level {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// CurrentPermissions returns the permission map of the active level.
// Callers must consult this before submitting an action for ethical
// verification: categories blocked here never reach the gate.
func (f *Flow) CurrentPermissions() autonomy.Permissions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.policies.Permissions(f.current)
}

// ActiveAdvancement returns the in-flight advancement, if any.
func (f *Flow) ActiveAdvancement() *autonomy.Transition {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// History returns the archived terminal transitions, oldest first.
func (f *Flow) History() []*autonomy.Transition {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*autonomy.Transition(nil), f.archive...)
}

// RequestAdvancement validates and starts a promotion by exactly one
// level. Criteria failures come back as a REJECTED transition, not an
// error; invariant breaches (wrong origin, bad delta, duplicate active
// advancement) are validation errors.
func (f *Flow) RequestAdvancement(ctx context.Context, origin, destination autonomy.Level, evidence map[string]interface{}) (*autonomy.Transition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if origin != f.current {
		return nil, domainerrors.ErrLevelMismatch.WithDetails(map[string]interface{}{
			"requested_origin": int(origin),
			"current_level":    int(f.current),
		})
	}
	if f.current.IsTerminal() {
		return nil, domainerrors.ErrTerminalLevel
	}
	if destination != origin.Next() {
		return nil, domainerrors.ErrInvalidLevelDelta.WithDetails(map[string]interface{}{
			"requested_origin":      int(origin),
			"requested_destination": int(destination),
		})
	}
	if f.active != nil {
		return nil, domainerrors.ErrAdvancementInFlight.WithDetails(map[string]interface{}{
			"active_transition_id": f.active.ID.String(),
		})
	}

	snapshot, err := f.metrics.Snapshot(ctx)
	if err != nil {
		return nil, domainerrors.NewExternalError("metrics", "operational metrics unavailable").WithCause(err)
	}

	transition := autonomy.NewAdvancement(origin, destination, evidence)
	criteria := f.policies.Policy(origin).Criteria
	results := criteria.Evaluate(snapshot)

	if autonomy.AllPassed(results) {
		window := f.policies.Policy(destination).TestWindow
		if err := transition.BeginTesting(snapshot, results,
			fmt.Sprintf("criteria met, test window %s started", window)); err != nil {
			return nil, domainerrors.NewInternalError("failed to start test window").WithCause(err)
		}
		f.active = transition
		telemetry.WithTrace(ctx, f.logger).Info("advancement entered test window",
			zap.String("transition_id", transition.ID.String()),
			zap.String("origin", origin.String()),
			zap.String("destination", destination.String()),
			zap.Duration("window", window),
		)
	} else {
		transition.CriteriaResults = results
		if err := transition.Reject(itemize("advancement criteria not met", results)); err != nil {
			return nil, domainerrors.NewInternalError("failed to reject transition").WithCause(err)
		}
		f.archive = append(f.archive, transition)
		telemetry.WithTrace(ctx, f.logger).Info("advancement rejected on criteria",
			zap.String("transition_id", transition.ID.String()),
			zap.String("origin", origin.String()),
		)
	}

	f.persist(ctx, transition)
	f.emit(transition)
	return transition, nil
}

// EvaluateTestWindow closes the test window of the active advancement.
// It is triggered externally by a scheduler when the window elapses;
// the flow never blocks waiting for it. Degradation beyond tolerance,
// or any increase in incidents or false negatives, rejects the
// advancement with itemized deltas; otherwise it moves to the
// governance gate.
func (f *Flow) EvaluateTestWindow(ctx context.Context, transitionID uuid.UUID) (*autonomy.Transition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	transition, err := f.activeByID(transitionID)
	if err != nil {
		return nil, err
	}
	if transition.State != autonomy.StateTesting {
		return nil, domainerrors.NewValidationError("NOT_TESTING",
			fmt.Sprintf("transition %s is in state %s, not testing", transitionID, transition.State))
	}

	snapshot, err := f.metrics.Snapshot(ctx)
	if err != nil {
		return nil, domainerrors.NewExternalError("metrics", "operational metrics unavailable").WithCause(err)
	}

	deltas := f.degradations(*transition.Baseline, snapshot)
	if len(deltas) > 0 {
		f.active = nil
		if err := transition.Reject(itemizeStrings("test window degradation detected", deltas)); err != nil {
			return nil, domainerrors.NewInternalError("failed to reject transition").WithCause(err)
		}
		f.archive = append(f.archive, transition)
	} else {
		if err := transition.MarkPendingApproval("test window clean, awaiting governance approval"); err != nil {
			return nil, domainerrors.NewInternalError("failed to advance transition").WithCause(err)
		}
	}

	f.persist(ctx, transition)
	f.emit(transition)
	return transition, nil
}

// ResolveApproval consults the governance authority for a transition in
// PENDING_APPROVAL. Approval completes the transition and switches the
// level; denial rejects it. The decision is an explicit external
// trigger, never an in-process wait.
func (f *Flow) ResolveApproval(ctx context.Context, transitionID uuid.UUID) (*autonomy.Transition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	transition, err := f.activeByID(transitionID)
	if err != nil {
		return nil, err
	}
	if transition.State != autonomy.StatePendingApproval {
		return nil, domainerrors.NewValidationError("NOT_PENDING_APPROVAL",
			fmt.Sprintf("transition %s is in state %s, not pending approval", transitionID, transition.State))
	}

	approved, comment, err := f.authority.Decide(ctx, transition)
	if err != nil {
		return nil, domainerrors.NewExternalError("governance", "approval authority unavailable").WithCause(err)
	}

	f.active = nil
	if approved {
		if err := transition.Approve(comment); err != nil {
			return nil, domainerrors.NewInternalError("failed to approve transition").WithCause(err)
		}
		if err := transition.Complete(fmt.Sprintf("autonomy level switched to %s", transition.Destination)); err != nil {
			return nil, domainerrors.NewInternalError("failed to complete transition").WithCause(err)
		}
		f.current = transition.Destination
		telemetry.WithTrace(ctx, f.logger).Info("autonomy level advanced",
			zap.String("transition_id", transition.ID.String()),
			zap.String("level", f.current.String()),
		)
	} else {
		if err := transition.Reject(fmt.Sprintf("governance denied: %s", comment)); err != nil {
			return nil, domainerrors.NewInternalError("failed to reject transition").WithCause(err)
		}
	}
	f.archive = append(f.archive, transition)

	f.persist(ctx, transition)
	f.emit(transition)
	return transition, nil
}

// CancelAdvancement rejects the active advancement with an explicit
// cancellation reason.
func (f *Flow) CancelAdvancement(ctx context.Context, transitionID uuid.UUID, reason string) (*autonomy.Transition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	transition, err := f.activeByID(transitionID)
	if err != nil {
		return nil, err
	}

	f.active = nil
	if err := transition.Reject(fmt.Sprintf("cancelled: %s", reason)); err != nil {
		return nil, domainerrors.NewInternalError("failed to cancel transition").WithCause(err)
	}
	f.archive = append(f.archive, transition)

	f.persist(ctx, transition)
	f.emit(transition)
	return transition, nil
}

// RequestReversion drops the autonomy level immediately. Reversion is a
// safety action: it bypasses testing and approval, applies
// synchronously, and cancels any in-flight advancement, whose baseline
// is meaningless once the level changes underneath it.
func (f *Flow) RequestReversion(ctx context.Context, origin, destination autonomy.Level, motive string, urgency int) (*autonomy.Transition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if origin != f.current {
		return nil, domainerrors.ErrLevelMismatch.WithDetails(map[string]interface{}{
			"requested_origin": int(origin),
			"current_level":    int(f.current),
		})
	}
	if _, err := autonomy.LevelFromInt(int(destination)); err != nil {
		return nil, domainerrors.NewValidationError("INVALID_REVERSION_TARGET", err.Error())
	}
	if destination >= origin {
		return nil, domainerrors.NewValidationError("INVALID_REVERSION_TARGET",
			fmt.Sprintf("reversion target %s must be strictly below current level %s", destination, origin))
	}

	if f.active != nil {
		superseded := f.active
		f.active = nil
		if err := superseded.Reject(fmt.Sprintf("superseded by reversion to %s", destination)); err == nil {
			f.archive = append(f.archive, superseded)
			f.persist(ctx, superseded)
			f.emit(superseded)
		}
	}

	transition := autonomy.NewReversion(origin, destination, motive, values.UrgencyOrDefault(urgency))
	if err := transition.Approve("reversion approved immediately as safety action"); err != nil {
		return nil, domainerrors.NewInternalError("failed to approve reversion").WithCause(err)
	}
	if err := transition.Complete(fmt.Sprintf("autonomy level reverted to %s", destination)); err != nil {
		return nil, domainerrors.NewInternalError("failed to complete reversion").WithCause(err)
	}
	f.current = destination

	// Completed advancements above the new level are flagged as undone.
	for _, archived := range f.archive {
		if archived.Type == autonomy.TransitionAdvancement &&
			archived.State == autonomy.StateCompleted &&
			archived.Destination > destination {
			if err := archived.MarkReverted(fmt.Sprintf("level undone by reversion %s", transition.ID)); err == nil {
				f.persist(ctx, archived)
			}
		}
	}

	f.archive = append(f.archive, transition)
	telemetry.WithTrace(ctx, f.logger).Warn("autonomy level reverted",
		zap.String("transition_id", transition.ID.String()),
		zap.String("origin", origin.String()),
		zap.String("destination", destination.String()),
		zap.String("motive", motive),
	)

	f.persist(ctx, transition)
	f.emit(transition)
	return transition, nil
}

func (f *Flow) activeByID(transitionID uuid.UUID) (*autonomy.Transition, error) {
	if f.active == nil || f.active.ID != transitionID {
		return nil, domainerrors.ErrTransitionNotFound.WithDetails(map[string]interface{}{
			"transition_id": transitionID.String(),
		})
	}
	return f.active, nil
}

// degradations compares a test-window snapshot to its baseline and
// returns one line per degraded metric.
func (f *Flow) degradations(baseline, current autonomy.OperationalMetrics) []string {
	var deltas []string

	floor := baseline.Precision * (1 - f.config.DegradationTolerance)
	if current.Precision < floor {
		deltas = append(deltas, fmt.Sprintf("precision %.3f fell below tolerance floor %.3f (baseline %.3f)",
			current.Precision, floor, baseline.Precision))
	}
	if current.FalseNegatives > baseline.FalseNegatives {
		deltas = append(deltas, fmt.Sprintf("false negatives rose from %d to %d",
			baseline.FalseNegatives, current.FalseNegatives))
	}
	if current.Incidents > baseline.Incidents {
		deltas = append(deltas, fmt.Sprintf("incidents rose from %d to %d",
			baseline.Incidents, current.Incidents))
	}

	return deltas
}

func (f *Flow) persist(ctx context.Context, transition *autonomy.Transition) {
	if f.store == nil {
		return
	}
	if err := f.store.SaveTransition(ctx, transition); err != nil {
		f.logger.Error("transition persistence failed",
			zap.String("transition_id", transition.ID.String()),
			zap.Error(err))
	}
}

func (f *Flow) emit(transition *autonomy.Transition) {
	if f.notifier == nil {
		return
	}
	reason := ""
	if n := len(transition.History); n > 0 {
		reason = transition.History[n-1].Comment
	}
	event := TransitionEvent{
		TransitionID: transition.ID,
		Type:         transition.Type.String(),
		State:        transition.State.String(),
		Origin:       int(transition.Origin),
		Destination:  int(transition.Destination),
		Reason:       reason,
		Timestamp:    time.Now(),
	}
	if transition.Type == autonomy.TransitionReversion {
		event.Urgency = transition.Urgency.String()
	}
	f.notifier.NotifyTransition(event)
}

func itemize(header string, results []autonomy.CriterionResult) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		status := "pass"
		if !r.Passed {
			status = "fail"
		}
		lines = append(lines, fmt.Sprintf("%s: required %s, observed %s [%s]", r.Name, r.Required, r.Observed, status))
	}
	return itemizeStrings(header, lines)
}

func itemizeStrings(header string, lines []string) string {
	return header + ": " + strings.Join(lines, "; ")
}
