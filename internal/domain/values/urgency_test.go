package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUrgency(t *testing.T) {
	for v := 1; v <= 5; v++ {
		u, err := NewUrgency(v)
		require.NoError(t, err)
		assert.Equal(t, Urgency(v), u)
	}

	_, err := NewUrgency(0)
	assert.Error(t, err)
	_, err = NewUrgency(6)
	assert.Error(t, err)
}

func TestUrgencyOrDefault(t *testing.T) {
	assert.Equal(t, UrgencyRoutine, UrgencyOrDefault(0))
	assert.Equal(t, UrgencyRoutine, UrgencyOrDefault(-3))
	assert.Equal(t, UrgencyRoutine, UrgencyOrDefault(99))
	assert.Equal(t, UrgencyHigh, UrgencyOrDefault(4))
}

func TestUrgencyIsCritical(t *testing.T) {
	assert.False(t, UrgencyRoutine.IsCritical())
	assert.False(t, UrgencyModerate.IsCritical())
	assert.True(t, UrgencyHigh.IsCritical())
	assert.True(t, UrgencyEmergency.IsCritical())
}
