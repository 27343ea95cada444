package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorWrapping(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewExternalError("metrics", "snapshot unavailable").WithCause(cause)

	assert.Contains(t, err.Error(), "metrics service error")
	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 502, GetStatusCode(err))
}

func TestIsType(t *testing.T) {
	assert.True(t, IsType(ErrLevelMismatch, ErrorTypeValidation))
	assert.True(t, IsType(ErrTerminalLevel, ErrorTypeBusiness))
	assert.True(t, IsType(ErrVerificationNotFound, ErrorTypeNotFound))
	assert.False(t, IsType(errors.New("plain"), ErrorTypeValidation))
}

func TestEthicsError(t *testing.T) {
	err := NewEthicsError("preserve_life", "direct human impact over threshold")
	assert.True(t, IsType(err, ErrorTypeEthics))
	assert.False(t, IsRetryable(err))
	assert.Equal(t, 403, GetStatusCode(err))
	assert.Equal(t, "preserve_life", err.Details["pillar"])
}

func TestWithDetailsLeavesSentinelsUntouched(t *testing.T) {
	first := ErrLevelMismatch.WithDetails(map[string]interface{}{"requested_origin": 3})
	second := ErrLevelMismatch.WithDetails(map[string]interface{}{"requested_origin": 2})

	assert.Equal(t, 3, first.Details["requested_origin"], "earlier copy keeps its own details")
	assert.Equal(t, 2, second.Details["requested_origin"])
	assert.Nil(t, ErrLevelMismatch.Details, "sentinel never accumulates details")

	assert.ErrorIs(t, first, ErrLevelMismatch)
	assert.ErrorIs(t, second, ErrLevelMismatch)
	assert.NotErrorIs(t, first, ErrInvalidLevelDelta)
}

func TestWithCauseLeavesSentinelsUntouched(t *testing.T) {
	cause := fmt.Errorf("row scan failed")
	wrapped := ErrTransitionNotFound.WithCause(cause)

	assert.ErrorIs(t, wrapped, cause)
	assert.ErrorIs(t, wrapped, ErrTransitionNotFound)
	assert.Nil(t, ErrTransitionNotFound.Cause)
}

func TestWrap(t *testing.T) {
	require.NoError(t, Wrap(nil, "ignored"))

	wrapped := Wrap(ErrTransitionNotFound, "loading transition")
	assert.ErrorIs(t, wrapped, ErrTransitionNotFound)
	assert.Contains(t, wrapped.Error(), "loading transition")
}

func TestGetStatusCodeDefault(t *testing.T) {
	assert.Equal(t, 500, GetStatusCode(errors.New("plain")))
}
