package ethics

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/autocura/governance-core/internal/domain/values"
)

// Action type identifiers with dedicated gate behavior.
const (
	ActionTypeRedesignSystem   = "redesign_system"
	ActionTypeStructuralChange = "structural_change"
)

// ProposedAction is an immutable description of something the system
// wants to do, submitted for ethical verification. Payloads arrive from
// heterogeneous producers, so every impact accessor applies a safe
// default instead of failing on a missing or mistyped field.
type ProposedAction struct {
	ID              string                 `json:"id"`
	Type            string                 `json:"type"`
	Parameters      map[string]interface{} `json:"parameters"`
	Context         map[string]interface{} `json:"context"`
	EstimatedImpact map[string]interface{} `json:"estimated_impact"`
	Urgency         values.Urgency         `json:"urgency"`
	Justification   string                 `json:"justification"`
	CreatedAt       time.Time              `json:"created_at"`
}

// NewProposedAction creates a ProposedAction with a generated identity.
func NewProposedAction(actionType string, parameters, context, impact map[string]interface{}, urgency int, justification string) (*ProposedAction, error) {
	if actionType == "" {
		return nil, fmt.Errorf("action type cannot be empty")
	}

	now := time.Now()
	return &ProposedAction{
		ID:              fmt.Sprintf("%s-%d-%s", actionType, now.UnixNano(), uuid.New().String()[:8]),
		Type:            actionType,
		Parameters:      parameters,
		Context:         context,
		EstimatedImpact: impact,
		Urgency:         values.UrgencyOrDefault(urgency),
		Justification:   justification,
		CreatedAt:       now,
	}, nil
}

// DirectHumanImpact returns the estimated direct human impact on a
// 0..1 scale, defaulting to 0 when absent.
func (a *ProposedAction) DirectHumanImpact() float64 {
	return numberField(a.EstimatedImpact, "direct_human_impact")
}

// GiniDelta returns the estimated change in the Gini coefficient caused
// by the action, defaulting to 0 when absent.
func (a *ProposedAction) GiniDelta() float64 {
	return numberField(nestedMap(a.EstimatedImpact, "distributive_impact"), "gini_delta")
}

// CarbonTonnes returns the estimated carbon cost in tonnes.
func (a *ProposedAction) CarbonTonnes() float64 {
	return numberField(nestedMap(a.EstimatedImpact, "environmental_impact"), "carbon")
}

// WaterLiters returns the estimated water cost in liters.
func (a *ProposedAction) WaterLiters() float64 {
	return numberField(nestedMap(a.EstimatedImpact, "environmental_impact"), "water")
}

// Reversible reports whether the action can be undone. Missing flags
// default to false: an unknown action is treated as irreversible.
func (a *ProposedAction) Reversible() bool {
	if boolField(a.EstimatedImpact, "reversible") {
		return true
	}
	return boolField(a.Parameters, "reversible")
}

// TestedPreviously reports whether an equivalent action has run before.
func (a *ProposedAction) TestedPreviously() bool {
	return boolField(a.EstimatedImpact, "tested_previously")
}

// Complexity returns the action complexity on a 1..5 scale, clamped,
// defaulting to 1.
func (a *ProposedAction) Complexity() int {
	c := int(numberField(a.EstimatedImpact, "complexity"))
	if c < 1 {
		return 1
	}
	if c > 5 {
		return 5
	}
	return c
}

// Explainable reports whether the action carries an explainability
// commitment in its parameters.
func (a *ProposedAction) Explainable() bool {
	return boolField(a.Parameters, "explainability")
}

// AutonomyLevel extracts the caller's current autonomy level from the
// action context, defaulting to the lowest level when absent.
func (a *ProposedAction) AutonomyLevel() int {
	lvl := int(numberField(a.Context, "autonomy_level"))
	if lvl < 1 {
		return 1
	}
	return lvl
}

// Summary returns a compact description for audit records.
func (a *ProposedAction) Summary() map[string]interface{} {
	return map[string]interface{}{
		"id":            a.ID,
		"type":          a.Type,
		"urgency":       a.Urgency.String(),
		"justification": a.Justification,
		"created_at":    a.CreatedAt,
	}
}

func nestedMap(m map[string]interface{}, key string) map[string]interface{} {
	if m == nil {
		return nil
	}
	nested, _ := m[key].(map[string]interface{})
	return nested
}

func numberField(m map[string]interface{}, key string) float64 {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func boolField(m map[string]interface{}, key string) bool {
	if m == nil {
		return false
	}
	v, _ := m[key].(bool)
	return v
}
