package notify

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/autocura/governance-core/internal/metrics"
	autonomysvc "github.com/autocura/governance-core/internal/service/autonomy"
	ethicssvc "github.com/autocura/governance-core/internal/service/ethics"
)

// AuditNotifier delivers governance events to the audit log and the
// metrics registry. Delivery is fire-and-forget and rate limited:
// bursts beyond the limit are dropped rather than ever blocking the
// gate or the flow.
type AuditNotifier struct {
	logger   *zap.Logger
	limiter  *rate.Limiter
	registry *metrics.Registry
}

// NewAuditNotifier creates the audit notifier. registry may be nil.
func NewAuditNotifier(logger *zap.Logger, eventsPerSecond, burst int, registry *metrics.Registry) *AuditNotifier {
	if eventsPerSecond <= 0 {
		eventsPerSecond = 50
	}
	if burst <= 0 {
		burst = eventsPerSecond * 2
	}
	return &AuditNotifier{
		logger:   logger,
		limiter:  rate.NewLimiter(rate.Limit(eventsPerSecond), burst),
		registry: registry,
	}
}

// NotifyVerification implements the gate's notification sink.
func (n *AuditNotifier) NotifyVerification(event ethicssvc.VerificationEvent) {
	if !n.limiter.Allow() {
		n.logger.Debug("verification event dropped by rate limit",
			zap.String("verification_id", event.VerificationID.String()))
		return
	}

	n.logger.Info("verification event",
		zap.String("verification_id", event.VerificationID.String()),
		zap.String("action_id", event.ActionID),
		zap.String("action_type", event.ActionType),
		zap.String("status", event.Status),
		zap.String("urgency", event.Urgency),
		zap.Strings("pillars", event.Pillars),
		zap.String("reason", event.Reason),
	)
}

// NotifyTransition implements the flow's notification sink.
func (n *AuditNotifier) NotifyTransition(event autonomysvc.TransitionEvent) {
	if n.registry != nil {
		n.registry.RecordTransition(context.Background(), event.Type, event.State)
		if event.State == "completed" {
			n.registry.SetCurrentLevel(int64(event.Destination))
		}
	}

	if !n.limiter.Allow() {
		n.logger.Debug("transition event dropped by rate limit",
			zap.String("transition_id", event.TransitionID.String()))
		return
	}

	n.logger.Info("transition event",
		zap.String("transition_id", event.TransitionID.String()),
		zap.String("type", event.Type),
		zap.String("state", event.State),
		zap.Int("origin", event.Origin),
		zap.Int("destination", event.Destination),
		zap.String("reason", event.Reason),
	)
}
