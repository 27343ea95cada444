package ethics

import (
	"fmt"
	"sort"
)

// Pillar identifies one of the five fixed ethical evaluation dimensions.
type Pillar int

const (
	PillarPreserveLife Pillar = iota
	PillarGlobalEquity
	PillarRadicalTransparency
	PillarSustainability
	PillarResidualHumanControl
)

func (p Pillar) String() string {
	switch p {
	case PillarPreserveLife:
		return "preserve_life"
	case PillarGlobalEquity:
		return "global_equity"
	case PillarRadicalTransparency:
		return "radical_transparency"
	case PillarSustainability:
		return "sustainability"
	case PillarResidualHumanControl:
		return "residual_human_control"
	default:
		return "unknown"
	}
}

// Priority returns the fixed priority rank of the pillar, 1 being highest.
func (p Pillar) Priority() int {
	return int(p) + 1
}

// AllPillars returns every pillar in priority order.
func AllPillars() []Pillar {
	return []Pillar{
		PillarPreserveLife,
		PillarGlobalEquity,
		PillarRadicalTransparency,
		PillarSustainability,
		PillarResidualHumanControl,
	}
}

// PillarFromString parses a pillar name as used in configuration.
func PillarFromString(s string) (Pillar, error) {
	for _, p := range AllPillars() {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown pillar: %q", s)
}

// PillarRule is a named sub-rule under a pillar.
type PillarRule struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// knownRuleIDs is the closed set of rule identifiers each pillar may
// carry. Configuration referencing anything else fails at load time.
var knownRuleIDs = map[Pillar][]string{
	PillarPreserveLife: {
		"preserve_life.direct_impact",
		"preserve_life.irreversible_harm",
		"preserve_life.safety_margin",
	},
	PillarGlobalEquity: {
		"global_equity.gini_delta",
		"global_equity.compensation",
	},
	PillarRadicalTransparency: {
		"radical_transparency.explainability",
		"radical_transparency.audit_trail",
	},
	PillarSustainability: {
		"sustainability.carbon_budget",
		"sustainability.water_budget",
	},
	PillarResidualHumanControl: {
		"residual_human_control.redesign_approval",
		"residual_human_control.override_channel",
	},
}

// RuleTable holds the immutable per-pillar sub-rules for the process
// lifetime. Built once at startup from static configuration.
type RuleTable struct {
	rules map[Pillar][]PillarRule
}

// NewRuleTable validates and builds a rule table. Every pillar must be
// present, and every rule id must belong to the pillar it is declared
// under.
func NewRuleTable(cfg map[string][]PillarRule) (*RuleTable, error) {
	rules := make(map[Pillar][]PillarRule, len(knownRuleIDs))

	for name, pillarRules := range cfg {
		pillar, err := PillarFromString(name)
		if err != nil {
			return nil, err
		}
		if len(pillarRules) == 0 {
			return nil, fmt.Errorf("pillar %s has no rules", pillar)
		}
		for _, r := range pillarRules {
			if !isKnownRule(pillar, r.ID) {
				return nil, fmt.Errorf("pillar %s references unknown rule id %q", pillar, r.ID)
			}
		}
		rules[pillar] = append([]PillarRule(nil), pillarRules...)
	}

	for _, p := range AllPillars() {
		if _, ok := rules[p]; !ok {
			return nil, fmt.Errorf("pillar %s missing from rule table", p)
		}
	}

	return &RuleTable{rules: rules}, nil
}

func isKnownRule(p Pillar, id string) bool {
	for _, known := range knownRuleIDs[p] {
		if known == id {
			return true
		}
	}
	return false
}

// Rules returns the ordered sub-rules for a pillar.
func (t *RuleTable) Rules(p Pillar) []PillarRule {
	return t.rules[p]
}

// RuleIDs returns the ordered rule identifiers for a pillar.
func (t *RuleTable) RuleIDs(p Pillar) []string {
	ids := make([]string, 0, len(t.rules[p]))
	for _, r := range t.rules[p] {
		ids = append(ids, r.ID)
	}
	return ids
}

// DefaultRuleTable builds the rule table shipped with the process, used
// when configuration does not override pillar rules.
func DefaultRuleTable() *RuleTable {
	cfg := make(map[string][]PillarRule, len(knownRuleIDs))
	for pillar, ids := range knownRuleIDs {
		sorted := append([]string(nil), ids...)
		sort.Strings(sorted)
		rules := make([]PillarRule, 0, len(sorted))
		for _, id := range sorted {
			rules = append(rules, PillarRule{ID: id, Description: defaultRuleDescriptions[id]})
		}
		cfg[pillar.String()] = rules
	}
	table, err := NewRuleTable(cfg)
	if err != nil {
		panic(err)
	}
	return table
}

var defaultRuleDescriptions = map[string]string{
	"preserve_life.direct_impact":              "Reject actions whose direct human impact exceeds the safety threshold",
	"preserve_life.irreversible_harm":          "Flag irreversible actions touching human wellbeing",
	"preserve_life.safety_margin":              "Require an explicit safety margin on life-affecting parameters",
	"global_equity.gini_delta":                 "Reject actions that worsen distributive inequality beyond tolerance",
	"global_equity.compensation":               "Require a compensation mechanism for unequal benefit distribution",
	"radical_transparency.explainability":      "Require every autonomous action to be explainable",
	"radical_transparency.audit_trail":         "Require verifications to be recorded for audit",
	"sustainability.carbon_budget":             "Reject actions exceeding the carbon budget",
	"sustainability.water_budget":              "Reject actions exceeding the water budget",
	"residual_human_control.redesign_approval": "Structural redesign requires high autonomy or human approval",
	"residual_human_control.override_channel":  "Human override must remain available at every level",
}
