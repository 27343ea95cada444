package ethics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/autocura/governance-core/internal/domain/ethics"
	domainerrors "github.com/autocura/governance-core/internal/domain/errors"
	"github.com/autocura/governance-core/internal/domain/values"
	"github.com/autocura/governance-core/internal/infrastructure/telemetry"
)

// Config holds the gate thresholds. Defaults reproduce the shipped
// governance policy.
type Config struct {
	MaxDirectHumanImpact float64 `json:"max_direct_human_impact"`
	MinRedesignLevel     int     `json:"min_redesign_level"`
	MaxGiniDelta         float64 `json:"max_gini_delta"`
	MaxCarbonTonnes      float64 `json:"max_carbon_tonnes"`
	HistoryLimit         int     `json:"history_limit"`
}

// DefaultConfig returns the shipped gate thresholds.
func DefaultConfig() Config {
	return Config{
		MaxDirectHumanImpact: 0.7,
		MinRedesignLevel:     4,
		MaxGiniDelta:         0.05,
		MaxCarbonTonnes:      1000,
		HistoryLimit:         defaultHistoryLimit,
	}
}

// Gate evaluates proposed actions against the ethical pillars through a
// three-stage cascade, short-circuiting on the first stage that does
// not approve. Evaluation is stateless and safe to run concurrently;
// only the history append is synchronized.
type Gate struct {
	logger   *zap.Logger
	rules    *ethics.RuleTable
	config   Config
	history  *history
	cache    VerificationCache
	recorder Recorder
	notifier Notifier
}

// Option configures optional gate collaborators.
type Option func(*Gate)

// WithCache attaches a write-through verification cache.
func WithCache(cache VerificationCache) Option {
	return func(g *Gate) { g.cache = cache }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(recorder Recorder) Option {
	return func(g *Gate) { g.recorder = recorder }
}

// WithNotifier attaches an audit notification sink.
func WithNotifier(notifier Notifier) Option {
	return func(g *Gate) { g.notifier = notifier }
}

// NewGate creates the ethical action gate.
func NewGate(logger *zap.Logger, rules *ethics.RuleTable, config Config, opts ...Option) (*Gate, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if rules == nil {
		return nil, fmt.Errorf("rule table is required")
	}

	g := &Gate{
		logger:  logger,
		rules:   rules,
		config:  config,
		history: newHistory(config.HistoryLimit),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Verify evaluates a proposed action and returns the auditable result.
// Malformed impact payloads never fail the call; missing fields fall
// back to least-restrictive defaults inside the action accessors.
func (g *Gate) Verify(ctx context.Context, action *ethics.ProposedAction) (*ethics.VerificationResult, error) {
	if action == nil {
		return nil, domainerrors.ErrInvalidInput
	}

	start := time.Now()
	result := ethics.NewVerificationResult(action.ID)

	g.runFastChecks(action, result)
	if result.IsApproved() {
		g.runCompoundChecks(action, result)
	}
	if result.IsApproved() {
		g.runRiskAnalysis(action, result)
	}
	if result.Justification == "" {
		result.Justification = "No pillar violations detected"
	}

	g.history.append(action, result)

	logger := telemetry.WithTrace(ctx, g.logger)
	if g.cache != nil {
		if err := g.cache.StoreResult(ctx, result); err != nil {
			logger.Warn("verification cache write failed",
				zap.String("verification_id", result.ID.String()),
				zap.Error(err))
		}
	}

	g.record(ctx, result, time.Since(start))
	g.notify(action, result)

	logger.Info("action verified",
		zap.String("verification_id", result.ID.String()),
		zap.String("action_id", action.ID),
		zap.String("action_type", action.Type),
		zap.String("status", result.Status.String()),
		zap.Int("violations", len(result.ViolatedPillars)),
	)

	return result, nil
}

// runFastChecks is the cheap deterministic stage. It only ever approves
// or rejects, never escalates.
func (g *Gate) runFastChecks(action *ethics.ProposedAction, result *ethics.VerificationResult) {
	if impact := action.DirectHumanImpact(); impact > g.config.MaxDirectHumanImpact {
		msg := fmt.Sprintf("direct human impact %.2f exceeds limit %.2f", impact, g.config.MaxDirectHumanImpact)
		result.AddViolation(ethics.PillarPreserveLife, msg)
		result.Status = ethics.StatusRejected
		result.Justification = msg
		return
	}

	if action.Type == ethics.ActionTypeRedesignSystem && action.AutonomyLevel() < g.config.MinRedesignLevel {
		msg := fmt.Sprintf("system redesign requires autonomy level %d, caller is at %d",
			g.config.MinRedesignLevel, action.AutonomyLevel())
		result.AddViolation(ethics.PillarResidualHumanControl, msg)
		result.Status = ethics.StatusRejected
		result.Justification = msg
	}
}

// runCompoundChecks evaluates the independent equity, sustainability
// and transparency rules, then applies the decision rule over the
// violation set: zero violations approve; exactly one violation with
// critical urgency escalates to review; anything else rejects.
func (g *Gate) runCompoundChecks(action *ethics.ProposedAction, result *ethics.VerificationResult) {
	if delta := action.GiniDelta(); delta > g.config.MaxGiniDelta {
		result.AddViolation(ethics.PillarGlobalEquity,
			fmt.Sprintf("distributive impact raises Gini coefficient by %.3f (limit %.3f)", delta, g.config.MaxGiniDelta))
	}

	if carbon := action.CarbonTonnes(); carbon > g.config.MaxCarbonTonnes {
		result.AddViolation(ethics.PillarSustainability,
			fmt.Sprintf("estimated carbon cost %.0f t exceeds budget %.0f t", carbon, g.config.MaxCarbonTonnes))
	}

	if !action.Explainable() {
		result.AddViolation(ethics.PillarRadicalTransparency,
			"action does not commit to explainability")
	}

	switch {
	case len(result.ViolatedPillars) == 0:
		// stage approved, risk analysis decides next
	case len(result.ViolatedPillars) == 1 && action.Urgency.IsCritical():
		result.Status = ethics.StatusNeedsReview
		result.Justification = fmt.Sprintf("single %s violation escalated for review due to %s urgency",
			result.ViolatedPillars[0], action.Urgency)
		result.SuggestedAlternatives = generateAlternatives(action, result.ViolatedPillars)
	default:
		result.Status = ethics.StatusRejected
		result.Justification = fmt.Sprintf("%d pillar violation(s) detected", len(result.ViolatedPillars))
		result.SuggestedAlternatives = generateAlternatives(action, result.ViolatedPillars)
	}
}

// runRiskAnalysis scores the risk of unintended consequences for
// actions that cleared the rule checks.
func (g *Gate) runRiskAnalysis(action *ethics.ProposedAction, result *ethics.VerificationResult) {
	raw := 0.10

	if action.Type == ethics.ActionTypeRedesignSystem || action.Type == ethics.ActionTypeStructuralChange {
		raw += 0.30
	}
	if action.Urgency.IsCritical() {
		raw += 0.20
	}
	raw += float64(action.Complexity()-1) * 0.10
	if action.TestedPreviously() {
		raw -= 0.20
	}
	if action.Reversible() {
		raw -= 0.15
	}

	risk := values.ClampedRiskScore(raw)
	v := risk.Value()
	result.Risk = &v

	switch {
	case risk.RequiresReview():
		result.Status = ethics.StatusNeedsReview
		result.Justification = fmt.Sprintf("unintended consequence risk %s exceeds review threshold", risk)
		result.SuggestedAlternatives = generateAlternatives(action, nil)
	case risk.RequiresCaution():
		result.Justification = fmt.Sprintf("approved with caution, consequence risk %s", risk)
		g.logger.Warn("action approved with elevated consequence risk",
			zap.String("action_id", action.ID),
			zap.String("action_type", action.Type),
			zap.Float64("risk", v),
		)
	default:
		result.Justification = fmt.Sprintf("approved, consequence risk %s", risk)
	}
}

func (g *Gate) record(ctx context.Context, result *ethics.VerificationResult, elapsed time.Duration) {
	if g.recorder == nil {
		return
	}
	g.recorder.RecordVerification(ctx, result.Status.String(), elapsed)
	for _, p := range result.ViolatedPillars {
		g.recorder.RecordViolation(ctx, p.String())
	}
}

func (g *Gate) notify(action *ethics.ProposedAction, result *ethics.VerificationResult) {
	if g.notifier == nil {
		return
	}
	pillars := make([]string, 0, len(result.ViolatedPillars))
	for _, p := range result.ViolatedPillars {
		pillars = append(pillars, p.String())
	}
	g.notifier.NotifyVerification(VerificationEvent{
		VerificationID: result.ID,
		ActionID:       action.ID,
		ActionType:     action.Type,
		Status:         result.Status.String(),
		Urgency:        action.Urgency.String(),
		Pillars:        pillars,
		Reason:         result.Justification,
		Timestamp:      result.Timestamp,
	})
}

// Explanation is the audit view of a stored verification. Building it
// is a pure read of history; calling Explain twice returns identical
// content.
type Explanation struct {
	VerificationID  uuid.UUID              `json:"verification_id"`
	Action          map[string]interface{} `json:"action"`
	Status          string                 `json:"status"`
	Justification   string                 `json:"justification"`
	AppliedRules    map[string][]string    `json:"applied_rules"`
	ImpactBreakdown map[string]string      `json:"impact_breakdown"`
	Alternatives    []ethics.Alternative   `json:"alternatives,omitempty"`
}

// Explain reconstructs the reasoning behind a stored verification.
func (g *Gate) Explain(verificationID uuid.UUID) (*Explanation, error) {
	entry, err := g.history.get(verificationID)
	if err != nil {
		return nil, err
	}

	applied := make(map[string][]string, len(entry.result.ViolatedPillars))
	for _, p := range entry.result.ViolatedPillars {
		applied[p.String()] = g.rules.RuleIDs(p)
	}

	return &Explanation{
		VerificationID:  verificationID,
		Action:          entry.action.Summary(),
		Status:          entry.result.Status.String(),
		Justification:   entry.result.Justification,
		AppliedRules:    applied,
		ImpactBreakdown: impactBreakdown(entry.action),
		Alternatives:    entry.result.SuggestedAlternatives,
	}, nil
}

// impactBreakdown renders a qualitative per-pillar impact description
// from the action's estimates.
func impactBreakdown(action *ethics.ProposedAction) map[string]string {
	return map[string]string{
		ethics.PillarPreserveLife.String(): fmt.Sprintf("%s direct human impact (%.2f)",
			qualify(action.DirectHumanImpact(), 0.3, 0.7), action.DirectHumanImpact()),
		ethics.PillarGlobalEquity.String(): fmt.Sprintf("%s distributive shift (gini delta %.3f)",
			qualify(action.GiniDelta(), 0.02, 0.05), action.GiniDelta()),
		ethics.PillarRadicalTransparency.String(): fmt.Sprintf("explainability committed: %t", action.Explainable()),
		ethics.PillarSustainability.String(): fmt.Sprintf("%s environmental cost (%.0f t carbon, %.0f L water)",
			qualify(action.CarbonTonnes(), 300, 1000), action.CarbonTonnes(), action.WaterLiters()),
		ethics.PillarResidualHumanControl.String(): fmt.Sprintf("caller autonomy level %d, reversible: %t",
			action.AutonomyLevel(), action.Reversible()),
	}
}

func qualify(v, moderate, severe float64) string {
	switch {
	case v > severe:
		return "severe"
	case v > moderate:
		return "moderate"
	default:
		return "low"
	}
}

// HistorySize returns the number of verifications currently retained.
func (g *Gate) HistorySize() int {
	return g.history.len()
}
