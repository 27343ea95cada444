package values

import (
	"database/sql/driver"
	"fmt"
)

// RiskScore represents a probability of unintended consequences as a value object.
// Scores live on a 0.0 - 1.0 scale.
type RiskScore struct {
	value float64
}

// Risk bands used when interpreting a score.
const (
	riskCautionFloor = 0.5
	riskReviewFloor  = 0.8
)

// NewRiskScore creates a RiskScore, rejecting values outside [0, 1].
func NewRiskScore(value float64) (RiskScore, error) {
	if value < 0.0 || value > 1.0 {
		return RiskScore{}, fmt.Errorf("risk score must be between 0.0 and 1.0, got %f", value)
	}
	return RiskScore{value: value}, nil
}

// ClampedRiskScore creates a RiskScore, clamping out-of-range values
// instead of rejecting them. Used when a score is assembled from
// additive adjustments that may overshoot the scale.
func ClampedRiskScore(value float64) RiskScore {
	if value < 0.0 {
		value = 0.0
	}
	if value > 1.0 {
		value = 1.0
	}
	return RiskScore{value: value}
}

// MustNewRiskScore creates a RiskScore and panics on error (for constants/tests)
func MustNewRiskScore(value float64) RiskScore {
	s, err := NewRiskScore(value)
	if err != nil {
		panic(err)
	}
	return s
}

// Value returns the raw score
func (s RiskScore) Value() float64 {
	return s.value
}

// RequiresReview returns true when the score is high enough that the
// decision should be escalated to a human reviewer.
func (s RiskScore) RequiresReview() bool {
	return s.value > riskReviewFloor
}

// RequiresCaution returns true when the score warrants a logged warning
// but not an escalation.
func (s RiskScore) RequiresCaution() bool {
	return s.value > riskCautionFloor && s.value <= riskReviewFloor
}

// Add returns a new score shifted by delta, clamped to the valid range.
func (s RiskScore) Add(delta float64) RiskScore {
	return ClampedRiskScore(s.value + delta)
}

func (s RiskScore) String() string {
	return fmt.Sprintf("%.2f", s.value)
}

// MarshalJSON implements json.Marshaler
func (s RiskScore) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%f", s.value)), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (s *RiskScore) UnmarshalJSON(data []byte) error {
	var v float64
	if _, err := fmt.Sscanf(string(data), "%f", &v); err != nil {
		return fmt.Errorf("invalid risk score: %w", err)
	}
	score, err := NewRiskScore(v)
	if err != nil {
		return err
	}
	*s = score
	return nil
}

// DriverValue implements driver.Valuer for database storage
func (s RiskScore) DriverValue() (driver.Value, error) {
	return s.value, nil
}

// Scan implements sql.Scanner for database retrieval
func (s *RiskScore) Scan(src interface{}) error {
	switch v := src.(type) {
	case float64:
		score, err := NewRiskScore(v)
		if err != nil {
			return err
		}
		*s = score
		return nil
	case nil:
		*s = RiskScore{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into RiskScore", src)
	}
}
