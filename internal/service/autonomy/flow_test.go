package autonomy

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/autocura/governance-core/internal/domain/autonomy"
	domainerrors "github.com/autocura/governance-core/internal/domain/errors"
)

// mutableProvider lets a test change the snapshot between calls to
// simulate a metrics drift across a test window.
type mutableProvider struct {
	mu      sync.Mutex
	metrics autonomy.OperationalMetrics
}

func (p *mutableProvider) Snapshot(_ context.Context) (autonomy.OperationalMetrics, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics, nil
}

func (p *mutableProvider) set(m autonomy.OperationalMetrics) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics = m
}

type denyingAuthority struct{}

func (denyingAuthority) Decide(context.Context, *autonomy.Transition) (bool, string, error) {
	return false, "insufficient track record", nil
}

type capturingNotifier struct {
	events []TransitionEvent
}

func (n *capturingNotifier) NotifyTransition(event TransitionEvent) {
	n.events = append(n.events, event)
}

func healthyMetrics() autonomy.OperationalMetrics {
	return autonomy.OperationalMetrics{
		Precision:       0.99,
		FalseNegatives:  0,
		DaysInOperation: 365,
		Incidents:       0,
		EthicsApproved:  true,
	}
}

func newTestFlow(t *testing.T, initial autonomy.Level, provider MetricsProvider, opts ...Option) *Flow {
	t.Helper()
	if provider == nil {
		provider = StaticProvider{Metrics: healthyMetrics()}
	}
	flow, err := NewFlow(zap.NewNop(), autonomy.DefaultPolicySet(), provider, Config{
		InitialLevel:         initial,
		DegradationTolerance: 0.05,
	}, opts...)
	require.NoError(t, err)
	return flow
}

func TestRequestAdvancementValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("origin must match current level", func(t *testing.T) {
		flow := newTestFlow(t, autonomy.LevelAssistance, nil)
		_, err := flow.RequestAdvancement(ctx, autonomy.LevelSupervised, autonomy.LevelConditional, nil)
		assert.ErrorIs(t, err, domainerrors.ErrLevelMismatch)
	})

	t.Run("skipping levels is rejected everywhere", func(t *testing.T) {
		for origin := autonomy.LevelAssistance; origin <= autonomy.LevelConditional; origin++ {
			flow := newTestFlow(t, origin, nil)
			_, err := flow.RequestAdvancement(ctx, origin, origin+2, nil)
			assert.ErrorIs(t, err, domainerrors.ErrInvalidLevelDelta, "origin %s", origin)
		}
	})

	t.Run("terminal level cannot advance", func(t *testing.T) {
		flow := newTestFlow(t, autonomy.LevelFull, nil)
		_, err := flow.RequestAdvancement(ctx, autonomy.LevelFull, autonomy.LevelFull, nil)
		assert.ErrorIs(t, err, domainerrors.ErrTerminalLevel)
	})

	t.Run("second advancement conflicts with the active one", func(t *testing.T) {
		flow := newTestFlow(t, autonomy.LevelAssistance, nil)
		first, err := flow.RequestAdvancement(ctx, autonomy.LevelAssistance, autonomy.LevelSupervised, nil)
		require.NoError(t, err)
		require.Equal(t, autonomy.StateTesting, first.State)

		_, err = flow.RequestAdvancement(ctx, autonomy.LevelAssistance, autonomy.LevelSupervised, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, domainerrors.ErrAdvancementInFlight)
		assert.True(t, domainerrors.IsType(err, domainerrors.ErrorTypeConflict))

		var appErr *domainerrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, first.ID.String(), appErr.Details["active_transition_id"])
	})

	t.Run("mismatch details stay with their caller", func(t *testing.T) {
		flowA := newTestFlow(t, autonomy.LevelAssistance, nil)
		_, errA := flowA.RequestAdvancement(ctx, autonomy.LevelConditional, autonomy.LevelHigh, nil)
		var appErrA *domainerrors.AppError
		require.ErrorAs(t, errA, &appErrA)
		require.Equal(t, 3, appErrA.Details["requested_origin"])

		flowB := newTestFlow(t, autonomy.LevelAssistance, nil)
		_, errB := flowB.RequestAdvancement(ctx, autonomy.LevelSupervised, autonomy.LevelConditional, nil)
		require.Error(t, errB)

		assert.Equal(t, 3, appErrA.Details["requested_origin"],
			"an unrelated failure must not rewrite an earlier caller's details")
	})
}

func TestRequestAdvancementCriteriaRejection(t *testing.T) {
	provider := &mutableProvider{metrics: autonomy.OperationalMetrics{
		Precision:       0.70,
		FalseNegatives:  9,
		DaysInOperation: 365,
		Incidents:       0,
		EthicsApproved:  true,
	}}
	flow := newTestFlow(t, autonomy.LevelAssistance, provider)

	transition, err := flow.RequestAdvancement(context.Background(),
		autonomy.LevelAssistance, autonomy.LevelSupervised, nil)
	require.NoError(t, err, "criteria failure is a rejected transition, not an error")

	assert.Equal(t, autonomy.StateRejected, transition.State)
	assert.Nil(t, flow.ActiveAdvancement())
	assert.Equal(t, autonomy.LevelAssistance, flow.CurrentLevel())

	last := transition.History[len(transition.History)-1]
	assert.Contains(t, last.Comment, "precision")
	assert.Contains(t, last.Comment, "false_negatives")
	assert.Contains(t, last.Comment, "[fail]")

	require.Len(t, flow.History(), 1)
}

func TestAdvancementPipeline(t *testing.T) {
	ctx := context.Background()
	notifier := &capturingNotifier{}
	flow := newTestFlow(t, autonomy.LevelSupervised, nil, WithNotifier(notifier))

	transition, err := flow.RequestAdvancement(ctx, autonomy.LevelSupervised, autonomy.LevelConditional,
		map[string]interface{}{"quarter": "Q3"})
	require.NoError(t, err)
	assert.Equal(t, autonomy.StateTesting, transition.State)
	require.NotNil(t, transition.Baseline)
	assert.NotNil(t, flow.ActiveAdvancement())

	transition, err = flow.EvaluateTestWindow(ctx, transition.ID)
	require.NoError(t, err)
	assert.Equal(t, autonomy.StatePendingApproval, transition.State)

	transition, err = flow.ResolveApproval(ctx, transition.ID)
	require.NoError(t, err)
	assert.Equal(t, autonomy.StateCompleted, transition.State)

	assert.Equal(t, autonomy.LevelConditional, flow.CurrentLevel())
	assert.Nil(t, flow.ActiveAdvancement())
	require.Len(t, flow.History(), 1)

	// refactor becomes available at the new level
	assert.True(t, flow.CurrentPermissions().Allows(autonomy.CategoryRefactor))

	require.Len(t, notifier.events, 3)
	assert.Equal(t, "testing", notifier.events[0].State)
	assert.Equal(t, "pending_approval", notifier.events[1].State)
	assert.Equal(t, "completed", notifier.events[2].State)
}

func TestEvaluateTestWindowDegradation(t *testing.T) {
	ctx := context.Background()
	provider := &mutableProvider{metrics: healthyMetrics()}
	flow := newTestFlow(t, autonomy.LevelSupervised, provider)

	transition, err := flow.RequestAdvancement(ctx, autonomy.LevelSupervised, autonomy.LevelConditional, nil)
	require.NoError(t, err)
	require.Equal(t, autonomy.StateTesting, transition.State)

	degraded := healthyMetrics()
	degraded.Precision = 0.90 // below 0.99 * 0.95
	degraded.Incidents = 2
	provider.set(degraded)

	transition, err = flow.EvaluateTestWindow(ctx, transition.ID)
	require.NoError(t, err)
	assert.Equal(t, autonomy.StateRejected, transition.State)
	assert.Nil(t, flow.ActiveAdvancement())
	assert.Equal(t, autonomy.LevelSupervised, flow.CurrentLevel())

	last := transition.History[len(transition.History)-1]
	assert.Contains(t, last.Comment, "precision")
	assert.Contains(t, last.Comment, "incidents rose from 0 to 2")
}

func TestEvaluateTestWindowUnknownTransition(t *testing.T) {
	flow := newTestFlow(t, autonomy.LevelSupervised, nil)
	_, err := flow.EvaluateTestWindow(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domainerrors.ErrTransitionNotFound)
}

func TestResolveApprovalDenied(t *testing.T) {
	ctx := context.Background()
	flow := newTestFlow(t, autonomy.LevelSupervised, nil, WithAuthority(denyingAuthority{}))

	transition, err := flow.RequestAdvancement(ctx, autonomy.LevelSupervised, autonomy.LevelConditional, nil)
	require.NoError(t, err)
	_, err = flow.EvaluateTestWindow(ctx, transition.ID)
	require.NoError(t, err)

	transition, err = flow.ResolveApproval(ctx, transition.ID)
	require.NoError(t, err)
	assert.Equal(t, autonomy.StateRejected, transition.State)
	assert.Equal(t, autonomy.LevelSupervised, flow.CurrentLevel(), "level unchanged on denial")

	last := transition.History[len(transition.History)-1]
	assert.Contains(t, last.Comment, "insufficient track record")
}

func TestCancelAdvancement(t *testing.T) {
	ctx := context.Background()
	flow := newTestFlow(t, autonomy.LevelAssistance, nil)

	transition, err := flow.RequestAdvancement(ctx, autonomy.LevelAssistance, autonomy.LevelSupervised, nil)
	require.NoError(t, err)

	transition, err = flow.CancelAdvancement(ctx, transition.ID, "operator requested hold")
	require.NoError(t, err)
	assert.Equal(t, autonomy.StateRejected, transition.State)
	assert.Nil(t, flow.ActiveAdvancement())

	last := transition.History[len(transition.History)-1]
	assert.Equal(t, "cancelled: operator requested hold", last.Comment)
}

func TestRequestReversion(t *testing.T) {
	ctx := context.Background()

	t.Run("applies immediately", func(t *testing.T) {
		notifier := &capturingNotifier{}
		flow := newTestFlow(t, autonomy.LevelConditional, nil, WithNotifier(notifier))

		transition, err := flow.RequestReversion(ctx, autonomy.LevelConditional, autonomy.LevelAssistance,
			"anomalous decision cluster", 5)
		require.NoError(t, err)

		assert.Equal(t, autonomy.StateCompleted, transition.State)
		assert.Equal(t, autonomy.TransitionReversion, transition.Type)
		assert.Equal(t, autonomy.LevelAssistance, flow.CurrentLevel())

		require.Len(t, notifier.events, 1)
		assert.Equal(t, "emergency", notifier.events[0].Urgency)
	})

	t.Run("target must be strictly below current", func(t *testing.T) {
		flow := newTestFlow(t, autonomy.LevelConditional, nil)
		_, err := flow.RequestReversion(ctx, autonomy.LevelConditional, autonomy.LevelConditional, "sideways", 3)
		require.Error(t, err)
		assert.True(t, domainerrors.IsType(err, domainerrors.ErrorTypeValidation))

		_, err = flow.RequestReversion(ctx, autonomy.LevelConditional, autonomy.LevelHigh, "upwards", 3)
		assert.Error(t, err)
	})

	t.Run("origin must match current level", func(t *testing.T) {
		flow := newTestFlow(t, autonomy.LevelConditional, nil)
		_, err := flow.RequestReversion(ctx, autonomy.LevelHigh, autonomy.LevelAssistance, "stale origin", 3)
		assert.ErrorIs(t, err, domainerrors.ErrLevelMismatch)
	})

	t.Run("cancels the in-flight advancement", func(t *testing.T) {
		flow := newTestFlow(t, autonomy.LevelSupervised, nil)

		advancement, err := flow.RequestAdvancement(ctx, autonomy.LevelSupervised, autonomy.LevelConditional, nil)
		require.NoError(t, err)
		require.Equal(t, autonomy.StateTesting, advancement.State)

		_, err = flow.RequestReversion(ctx, autonomy.LevelSupervised, autonomy.LevelAssistance, "incident", 4)
		require.NoError(t, err)

		assert.Equal(t, autonomy.StateRejected, advancement.State)
		last := advancement.History[len(advancement.History)-1]
		assert.Contains(t, last.Comment, "superseded by reversion")
		assert.Nil(t, flow.ActiveAdvancement())
		assert.Equal(t, autonomy.LevelAssistance, flow.CurrentLevel())
	})

	t.Run("flags undone completed advancements", func(t *testing.T) {
		flow := newTestFlow(t, autonomy.LevelSupervised, nil)

		advancement, err := flow.RequestAdvancement(ctx, autonomy.LevelSupervised, autonomy.LevelConditional, nil)
		require.NoError(t, err)
		_, err = flow.EvaluateTestWindow(ctx, advancement.ID)
		require.NoError(t, err)
		advancement, err = flow.ResolveApproval(ctx, advancement.ID)
		require.NoError(t, err)
		require.Equal(t, autonomy.StateCompleted, advancement.State)
		require.Equal(t, autonomy.LevelConditional, flow.CurrentLevel())

		_, err = flow.RequestReversion(ctx, autonomy.LevelConditional, autonomy.LevelSupervised, "rollback", 4)
		require.NoError(t, err)

		assert.Equal(t, autonomy.StateReverted, advancement.State)
	})
}

type capturingStore struct {
	saved []*autonomy.Transition
}

func (s *capturingStore) SaveTransition(_ context.Context, transition *autonomy.Transition) error {
	s.saved = append(s.saved, transition)
	return nil
}

func TestFlowPersistsTransitions(t *testing.T) {
	ctx := context.Background()
	store := &capturingStore{}
	flow := newTestFlow(t, autonomy.LevelSupervised, nil, WithStore(store))

	transition, err := flow.RequestAdvancement(ctx, autonomy.LevelSupervised, autonomy.LevelConditional, nil)
	require.NoError(t, err)
	_, err = flow.EvaluateTestWindow(ctx, transition.ID)
	require.NoError(t, err)
	_, err = flow.ResolveApproval(ctx, transition.ID)
	require.NoError(t, err)

	require.Len(t, store.saved, 3, "every lifecycle step is persisted")
	for _, saved := range store.saved {
		assert.Equal(t, transition.ID, saved.ID)
	}
}
