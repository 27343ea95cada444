package autonomy

import (
	"fmt"
	"time"
)

// Level is the ordinal 1..5 autonomy scale governing which action
// categories the system may execute without human approval.
type Level int

const (
	LevelAssistance Level = iota + 1
	LevelSupervised
	LevelConditional
	LevelHigh
	LevelFull
)

func (l Level) String() string {
	switch l {
	case LevelAssistance:
		return "assistance"
	case LevelSupervised:
		return "supervised"
	case LevelConditional:
		return "conditional"
	case LevelHigh:
		return "high"
	case LevelFull:
		return "full"
	default:
		return "unknown"
	}
}

// LevelFromInt validates an ordinal and returns the matching level.
func LevelFromInt(v int) (Level, error) {
	if v < int(LevelAssistance) || v > int(LevelFull) {
		return 0, fmt.Errorf("autonomy level must be between 1 and 5, got %d", v)
	}
	return Level(v), nil
}

// IsTerminal reports whether the level has no further advancement.
func (l Level) IsTerminal() bool {
	return l == LevelFull
}

// Next returns the level one step up. Callers must check IsTerminal first.
func (l Level) Next() Level {
	return l + 1
}

// ActionCategory classifies what kind of change an autonomous action makes.
type ActionCategory string

const (
	CategoryHotfix    ActionCategory = "hotfix"
	CategoryRefactor  ActionCategory = "refactor"
	CategoryRedesign  ActionCategory = "redesign"
	CategoryEvolution ActionCategory = "evolution"
)

// AllCategories returns every action category.
func AllCategories() []ActionCategory {
	return []ActionCategory{CategoryHotfix, CategoryRefactor, CategoryRedesign, CategoryEvolution}
}

// Permissions maps action categories to whether they may run
// autonomously at a given level.
type Permissions map[ActionCategory]bool

// Allows reports whether the category may run autonomously.
func (p Permissions) Allows(category ActionCategory) bool {
	return p[category]
}

// Clone returns an independent copy so callers cannot mutate the
// static policy tables.
func (p Permissions) Clone() Permissions {
	out := make(Permissions, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// AdvancementCriteria gates promotion out of a level. Levels 1..4
// carry criteria; the terminal level carries none.
type AdvancementCriteria struct {
	MinPrecision       float64 `koanf:"min_precision" json:"min_precision"`
	MaxFalseNegatives  int     `koanf:"max_false_negatives" json:"max_false_negatives"`
	MinDaysInOperation int     `koanf:"min_days_in_operation" json:"min_days_in_operation"`
	MaxIncidents       int     `koanf:"max_incidents" json:"max_incidents"`
	RequireEthicsCheck bool    `koanf:"require_ethics_check" json:"require_ethics_check"`
}

// OperationalMetrics is a point-in-time snapshot pulled from the
// metrics provider when a transition needs evaluating.
type OperationalMetrics struct {
	Precision       float64   `json:"precision"`
	FalseNegatives  int       `json:"false_negatives"`
	DaysInOperation int       `json:"days_in_operation"`
	Incidents       int       `json:"incidents"`
	EthicsApproved  bool      `json:"ethics_approved"`
	CapturedAt      time.Time `json:"captured_at"`
}

// CriterionResult is one line of an itemized pass/fail evaluation.
type CriterionResult struct {
	Name     string `json:"name"`
	Required string `json:"required"`
	Observed string `json:"observed"`
	Passed   bool   `json:"passed"`
}

// Evaluate checks the snapshot against every criterion and returns the
// itemized results. Callers decide rejection from the aggregate.
func (c AdvancementCriteria) Evaluate(m OperationalMetrics) []CriterionResult {
	results := []CriterionResult{
		{
			Name:     "precision",
			Required: fmt.Sprintf(">= %.3f", c.MinPrecision),
			Observed: fmt.Sprintf("%.3f", m.Precision),
			Passed:   m.Precision >= c.MinPrecision,
		},
		{
			Name:     "false_negatives",
			Required: fmt.Sprintf("<= %d", c.MaxFalseNegatives),
			Observed: fmt.Sprintf("%d", m.FalseNegatives),
			Passed:   m.FalseNegatives <= c.MaxFalseNegatives,
		},
		{
			Name:     "days_in_operation",
			Required: fmt.Sprintf(">= %d", c.MinDaysInOperation),
			Observed: fmt.Sprintf("%d", m.DaysInOperation),
			Passed:   m.DaysInOperation >= c.MinDaysInOperation,
		},
		{
			Name:     "incidents",
			Required: fmt.Sprintf("<= %d", c.MaxIncidents),
			Observed: fmt.Sprintf("%d", m.Incidents),
			Passed:   m.Incidents <= c.MaxIncidents,
		},
	}

	if c.RequireEthicsCheck {
		results = append(results, CriterionResult{
			Name:     "ethics_check",
			Required: "approved",
			Observed: fmt.Sprintf("%t", m.EthicsApproved),
			Passed:   m.EthicsApproved,
		})
	}

	return results
}

// AllPassed reports whether every itemized criterion passed.
func AllPassed(results []CriterionResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// LevelPolicy couples a level's permission map with the criteria and
// test window required to reach it.
type LevelPolicy struct {
	Level       Level                `json:"level"`
	Permissions Permissions          `json:"permissions"`
	Criteria    *AdvancementCriteria `json:"criteria,omitempty"`
	TestWindow  time.Duration        `json:"test_window,omitempty"`
}

// PolicySet is the immutable table of level policies loaded at startup.
type PolicySet struct {
	policies map[Level]LevelPolicy
}

// NewPolicySet validates and builds the policy table. All five levels
// must be present; levels 1..4 must carry advancement criteria; the
// terminal level must not; every destination level (2..5) must declare
// a positive test window.
func NewPolicySet(policies []LevelPolicy) (*PolicySet, error) {
	byLevel := make(map[Level]LevelPolicy, len(policies))
	for _, p := range policies {
		if _, err := LevelFromInt(int(p.Level)); err != nil {
			return nil, err
		}
		if _, dup := byLevel[p.Level]; dup {
			return nil, fmt.Errorf("duplicate policy for level %s", p.Level)
		}
		if p.Permissions == nil {
			return nil, fmt.Errorf("level %s has no permission map", p.Level)
		}
		if p.Level.IsTerminal() {
			if p.Criteria != nil {
				return nil, fmt.Errorf("terminal level %s cannot carry advancement criteria", p.Level)
			}
		} else if p.Criteria == nil {
			return nil, fmt.Errorf("level %s is missing advancement criteria", p.Level)
		}
		if p.Level > LevelAssistance && p.TestWindow <= 0 {
			return nil, fmt.Errorf("destination level %s needs a positive test window", p.Level)
		}
		byLevel[p.Level] = p
	}

	for l := LevelAssistance; l <= LevelFull; l++ {
		if _, ok := byLevel[l]; !ok {
			return nil, fmt.Errorf("policy for level %s missing", l)
		}
	}

	return &PolicySet{policies: byLevel}, nil
}

// Policy returns the policy for a level.
func (s *PolicySet) Policy(l Level) LevelPolicy {
	return s.policies[l]
}

// Permissions returns a copy of the permission map for a level.
func (s *PolicySet) Permissions(l Level) Permissions {
	return s.policies[l].Permissions.Clone()
}

// DefaultPolicySet mirrors the shipped governance defaults: permissions
// widen one category at a time, test windows lengthen with altitude.
func DefaultPolicySet() *PolicySet {
	set, err := NewPolicySet([]LevelPolicy{
		{
			Level: LevelAssistance,
			Permissions: Permissions{
				CategoryHotfix: false, CategoryRefactor: false, CategoryRedesign: false, CategoryEvolution: false,
			},
			Criteria: &AdvancementCriteria{
				MinPrecision:       0.90,
				MaxFalseNegatives:  5,
				MinDaysInOperation: 30,
				MaxIncidents:       2,
				RequireEthicsCheck: true,
			},
		},
		{
			Level: LevelSupervised,
			Permissions: Permissions{
				CategoryHotfix: true, CategoryRefactor: false, CategoryRedesign: false, CategoryEvolution: false,
			},
			Criteria: &AdvancementCriteria{
				MinPrecision:       0.93,
				MaxFalseNegatives:  3,
				MinDaysInOperation: 60,
				MaxIncidents:       1,
				RequireEthicsCheck: true,
			},
			TestWindow: 30 * 24 * time.Hour,
		},
		{
			Level: LevelConditional,
			Permissions: Permissions{
				CategoryHotfix: true, CategoryRefactor: true, CategoryRedesign: false, CategoryEvolution: false,
			},
			Criteria: &AdvancementCriteria{
				MinPrecision:       0.95,
				MaxFalseNegatives:  2,
				MinDaysInOperation: 90,
				MaxIncidents:       1,
				RequireEthicsCheck: true,
			},
			TestWindow: 60 * 24 * time.Hour,
		},
		{
			Level: LevelHigh,
			Permissions: Permissions{
				CategoryHotfix: true, CategoryRefactor: true, CategoryRedesign: true, CategoryEvolution: false,
			},
			Criteria: &AdvancementCriteria{
				MinPrecision:       0.98,
				MaxFalseNegatives:  1,
				MinDaysInOperation: 180,
				MaxIncidents:       0,
				RequireEthicsCheck: true,
			},
			TestWindow: 90 * 24 * time.Hour,
		},
		{
			Level: LevelFull,
			Permissions: Permissions{
				CategoryHotfix: true, CategoryRefactor: true, CategoryRedesign: true, CategoryEvolution: true,
			},
			TestWindow: 180 * 24 * time.Hour,
		},
	})
	if err != nil {
		panic(err)
	}
	return set
}
