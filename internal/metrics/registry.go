package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds all domain-specific metrics for the governance core
type Registry struct {
	meter metric.Meter

	// Verification metrics
	VerificationDuration metric.Float64Histogram
	VerificationCounter  metric.Int64Counter
	ViolationCounter     metric.Int64Counter

	// Transition metrics
	TransitionCounter   metric.Int64Counter
	ReversionCounter    metric.Int64Counter
	CurrentLevel        metric.Int64ObservableGauge
	ActiveAdvancements  metric.Int64ObservableGauge
	VerificationHistory metric.Int64ObservableGauge

	// State for observable metrics
	mu                 sync.RWMutex
	currentLevel       int64
	activeAdvancements int64
	historySize        int64
}

// NewRegistry creates a new metrics registry with all domain metrics
func NewRegistry(meterName string) (*Registry, error) {
	r := &Registry{
		meter:        otel.Meter(meterName),
		currentLevel: 1,
	}

	if err := r.initVerificationMetrics(); err != nil {
		return nil, err
	}
	if err := r.initTransitionMetrics(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Registry) initVerificationMetrics() error {
	var err error

	r.VerificationDuration, err = r.meter.Float64Histogram(
		"agc.verification.duration",
		metric.WithDescription("Ethical verification duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50),
	)
	if err != nil {
		return err
	}

	r.VerificationCounter, err = r.meter.Int64Counter(
		"agc.verification.total",
		metric.WithDescription("Total ethical verifications by verdict"),
	)
	if err != nil {
		return err
	}

	r.ViolationCounter, err = r.meter.Int64Counter(
		"agc.verification.violations_total",
		metric.WithDescription("Total pillar violations detected"),
	)
	if err != nil {
		return err
	}

	r.VerificationHistory, err = r.meter.Int64ObservableGauge(
		"agc.verification.history_size",
		metric.WithDescription("Verifications currently retained in history"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.historySize)
			return nil
		}),
	)

	return err
}

func (r *Registry) initTransitionMetrics() error {
	var err error

	r.TransitionCounter, err = r.meter.Int64Counter(
		"agc.autonomy.transitions_total",
		metric.WithDescription("Total level transitions by type and outcome"),
	)
	if err != nil {
		return err
	}

	r.ReversionCounter, err = r.meter.Int64Counter(
		"agc.autonomy.reversions_total",
		metric.WithDescription("Total safety reversions applied"),
	)
	if err != nil {
		return err
	}

	r.CurrentLevel, err = r.meter.Int64ObservableGauge(
		"agc.autonomy.current_level",
		metric.WithDescription("Current autonomy level (1-5)"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.currentLevel)
			return nil
		}),
	)
	if err != nil {
		return err
	}

	r.ActiveAdvancements, err = r.meter.Int64ObservableGauge(
		"agc.autonomy.active_advancements",
		metric.WithDescription("Advancement transitions currently in the pipeline"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.activeAdvancements)
			return nil
		}),
	)

	return err
}

// RecordVerification records one gate decision. Satisfies the gate's
// Recorder interface.
func (r *Registry) RecordVerification(ctx context.Context, status string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	r.VerificationDuration.Record(ctx, float64(duration.Microseconds())/1000.0, attrs)
	r.VerificationCounter.Add(ctx, 1, attrs)
}

// RecordViolation records one pillar violation.
func (r *Registry) RecordViolation(ctx context.Context, pillar string) {
	r.ViolationCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("pillar", pillar)))
}

// RecordTransition records a level transition outcome.
func (r *Registry) RecordTransition(ctx context.Context, transitionType, state string) {
	attrs := metric.WithAttributes(
		attribute.String("type", transitionType),
		attribute.String("state", state),
	)
	r.TransitionCounter.Add(ctx, 1, attrs)
	if transitionType == "reversion" && state == "completed" {
		r.ReversionCounter.Add(ctx, 1, attrs)
	}
}

// SetCurrentLevel updates the observed autonomy level
func (r *Registry) SetCurrentLevel(level int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentLevel = level
}

// SetActiveAdvancements updates the observed pipeline depth
func (r *Registry) SetActiveAdvancements(count int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeAdvancements = count
}

// SetHistorySize updates the observed verification history size
func (r *Registry) SetHistorySize(size int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.historySize = size
}
