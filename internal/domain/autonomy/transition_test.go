package autonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autocura/governance-core/internal/domain/values"
)

func TestAdvancementLifecycle(t *testing.T) {
	tr := NewAdvancement(LevelSupervised, LevelConditional, map[string]interface{}{"reason": "stable quarter"})
	require.Equal(t, StateRequested, tr.State)
	require.True(t, tr.IsActive())

	baseline := OperationalMetrics{Precision: 0.97, DaysInOperation: 100}
	results := []CriterionResult{{Name: "precision", Passed: true}}

	require.NoError(t, tr.BeginTesting(baseline, results, "window started"))
	assert.Equal(t, StateTesting, tr.State)
	require.NotNil(t, tr.Baseline)
	assert.Equal(t, 0.97, tr.Baseline.Precision)

	require.NoError(t, tr.MarkPendingApproval("window clean"))
	require.NoError(t, tr.Approve("governance signed off"))
	require.NoError(t, tr.Complete("level switched"))
	assert.Equal(t, StateCompleted, tr.State)
	assert.False(t, tr.IsActive())

	// a completed advancement can still be undone by a later reversion
	require.NoError(t, tr.MarkReverted("level undone"))
	assert.Equal(t, StateReverted, tr.State)

	assert.Len(t, tr.History, 6)
	assert.Equal(t, "level undone", tr.History[5].Comment)
}

func TestIllegalStateChanges(t *testing.T) {
	tests := []struct {
		name string
		run  func(*Transition) error
	}{
		{
			name: "complete without approval",
			run:  func(tr *Transition) error { return tr.Complete("skip ahead") },
		},
		{
			name: "approve while testing",
			run: func(tr *Transition) error {
				require.NoError(t, tr.BeginTesting(OperationalMetrics{}, nil, ""))
				return tr.Approve("skip governance")
			},
		},
		{
			name: "revive a rejected transition",
			run: func(tr *Transition) error {
				require.NoError(t, tr.Reject("criteria not met"))
				return tr.BeginTesting(OperationalMetrics{}, nil, "")
			},
		},
		{
			name: "revert before completion",
			run:  func(tr *Transition) error { return tr.MarkReverted("too early") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewAdvancement(LevelAssistance, LevelSupervised, nil)
			assert.Error(t, tt.run(tr))
		})
	}
}

func TestReversionLifecycle(t *testing.T) {
	tr := NewReversion(LevelHigh, LevelAssistance, "critical anomaly detected", values.UrgencyEmergency)
	assert.Equal(t, TransitionReversion, tr.Type)
	assert.Equal(t, "critical anomaly detected", tr.Motive)

	require.NoError(t, tr.Approve("safety action"))
	require.NoError(t, tr.Complete("level reverted"))
	assert.Equal(t, StateCompleted, tr.State)

	// reversions never enter a test window
	err := NewReversion(LevelHigh, LevelAssistance, "m", values.UrgencyHigh).
		BeginTesting(OperationalMetrics{}, nil, "")
	assert.Error(t, err)
}

func TestRejectedIsTerminal(t *testing.T) {
	tr := NewAdvancement(LevelAssistance, LevelSupervised, nil)
	require.NoError(t, tr.Reject("not ready"))
	assert.True(t, tr.State.IsTerminal())
	assert.False(t, tr.IsActive())
	assert.Error(t, tr.Approve("second thoughts"))
}
