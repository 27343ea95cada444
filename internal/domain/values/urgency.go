package values

import "fmt"

// Urgency represents how time-critical a proposed action is, on a
// 1 (routine) to 5 (emergency) scale.
type Urgency int

const (
	UrgencyRoutine   Urgency = 1
	UrgencyLow       Urgency = 2
	UrgencyModerate  Urgency = 3
	UrgencyHigh      Urgency = 4
	UrgencyEmergency Urgency = 5
)

// NewUrgency validates and creates an Urgency value.
func NewUrgency(value int) (Urgency, error) {
	if value < 1 || value > 5 {
		return 0, fmt.Errorf("urgency must be between 1 and 5, got %d", value)
	}
	return Urgency(value), nil
}

// UrgencyOrDefault coerces arbitrary input to a valid urgency,
// falling back to routine for out-of-range values. Heterogeneous
// action payloads must never fail evaluation on a bad field.
func UrgencyOrDefault(value int) Urgency {
	if value < 1 || value > 5 {
		return UrgencyRoutine
	}
	return Urgency(value)
}

// IsCritical returns true for the urgency band that can escalate a
// single rule violation to human review instead of rejection.
func (u Urgency) IsCritical() bool {
	return u >= UrgencyHigh
}

func (u Urgency) String() string {
	switch u {
	case UrgencyRoutine:
		return "routine"
	case UrgencyLow:
		return "low"
	case UrgencyModerate:
		return "moderate"
	case UrgencyHigh:
		return "high"
	case UrgencyEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}
