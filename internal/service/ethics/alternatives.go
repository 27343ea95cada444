package ethics

import (
	"github.com/autocura/governance-core/internal/domain/ethics"
)

// generateAlternatives produces one suggested alternative per violated
// pillar: a shallow copy of the action's parameters with a targeted
// override addressing that pillar. Pillars with no targeted remedy
// contribute a single generic reduced-scope alternative, which is also
// emitted when no pillar is named (risk-driven escalation).
func generateAlternatives(action *ethics.ProposedAction, violated []ethics.Pillar) []ethics.Alternative {
	alternatives := make([]ethics.Alternative, 0, len(violated)+1)
	genericNeeded := len(violated) == 0

	for _, pillar := range violated {
		p := pillar
		switch pillar {
		case ethics.PillarPreserveLife:
			alternatives = append(alternatives, ethics.Alternative{
				Pillar:      &p,
				Description: "Re-run with a doubled safety margin on life-affecting parameters",
				Overrides: overrideParams(action, map[string]interface{}{
					"safety_margin": doubledSafetyMargin(action),
				}),
			})
		case ethics.PillarGlobalEquity:
			alternatives = append(alternatives, ethics.Alternative{
				Pillar:      &p,
				Description: "Attach a compensation mechanism offsetting the unequal benefit distribution",
				Overrides: overrideParams(action, map[string]interface{}{
					"include_compensation": true,
				}),
			})
		case ethics.PillarRadicalTransparency:
			alternatives = append(alternatives, ethics.Alternative{
				Pillar:      &p,
				Description: "Re-submit with an explainability commitment",
				Overrides: overrideParams(action, map[string]interface{}{
					"explainability": true,
				}),
			})
		default:
			genericNeeded = true
		}
	}

	if genericNeeded {
		alternatives = append(alternatives, ethics.Alternative{
			Description: "Execute a reduced-scope variant of the action",
			Overrides: overrideParams(action, map[string]interface{}{
				"reduced_scope": true,
				"scope_factor":  0.5,
			}),
		})
	}

	return alternatives
}

// overrideParams shallow-copies the action parameters and applies the
// targeted overrides on top.
func overrideParams(action *ethics.ProposedAction, overrides map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(action.Parameters)+len(overrides))
	for k, v := range action.Parameters {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

func doubledSafetyMargin(action *ethics.ProposedAction) float64 {
	margin, _ := action.Parameters["safety_margin"].(float64)
	if margin <= 0 {
		margin = 1.0
	}
	return margin * 2
}
