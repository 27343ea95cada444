package ethics

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/autocura/governance-core/internal/domain/ethics"
)

// VerificationCache is a write-through cache for verification results.
// Implementations must be safe for concurrent use. A nil cache is
// valid; caching is an optimization, never part of the verdict.
type VerificationCache interface {
	StoreResult(ctx context.Context, result *ethics.VerificationResult) error
	GetResult(ctx context.Context, id uuid.UUID) (*ethics.VerificationResult, error)
}

// Recorder receives gate telemetry. A nil recorder disables metrics.
type Recorder interface {
	RecordVerification(ctx context.Context, status string, duration time.Duration)
	RecordViolation(ctx context.Context, pillar string)
}

// VerificationEvent is the audit notification emitted for every verdict.
type VerificationEvent struct {
	VerificationID uuid.UUID `json:"verification_id"`
	ActionID       string    `json:"action_id"`
	ActionType     string    `json:"action_type"`
	Status         string    `json:"status"`
	Urgency        string    `json:"urgency"`
	Pillars        []string  `json:"pillars,omitempty"`
	Reason         string    `json:"reason"`
	Timestamp      time.Time `json:"timestamp"`
}

// Notifier delivers verification events to the audit sink. Delivery is
// fire-and-forget: implementations must never block the gate and the
// gate ignores delivery failures.
type Notifier interface {
	NotifyVerification(event VerificationEvent)
}
