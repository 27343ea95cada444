package repository

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autocura/governance-core/internal/domain/autonomy"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch v := d.(type) {
		case *uuid.UUID:
			*v = r.values[i].(uuid.UUID)
		case *string:
			*v = r.values[i].(string)
		case *int:
			*v = r.values[i].(int)
		case *[]byte:
			*v = r.values[i].([]byte)
		case *time.Time:
			*v = r.values[i].(time.Time)
		}
	}
	return nil
}

func TestScanTransition(t *testing.T) {
	id := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)
	history, err := json.Marshal([]autonomy.StateChange{
		{State: autonomy.StateRequested, Timestamp: now, Comment: "advancement requested"},
		{State: autonomy.StateTesting, Timestamp: now, Comment: "window started"},
	})
	require.NoError(t, err)

	row := fakeRow{values: []any{
		id, "advancement", 2, 3, "testing", history, "", now, now,
	}}

	got, err := scanTransition(row)
	require.NoError(t, err)

	assert.Equal(t, id, got.ID)
	assert.Equal(t, "advancement", got.Type)
	assert.Equal(t, 2, got.Origin)
	assert.Equal(t, 3, got.Destination)
	assert.Equal(t, "testing", got.State)
	require.Len(t, got.StateHistory, 2)
	assert.Equal(t, autonomy.StateTesting, got.StateHistory[1].State)
	assert.Equal(t, "window started", got.StateHistory[1].Comment)
}

func TestScanTransitionEmptyHistory(t *testing.T) {
	row := fakeRow{values: []any{
		uuid.New(), "reversion", 3, 1, "completed", []byte(nil), "anomaly", time.Now(), time.Now(),
	}}

	got, err := scanTransition(row)
	require.NoError(t, err)
	assert.Empty(t, got.StateHistory)
	assert.Equal(t, "anomaly", got.Motive)
}

func TestScanTransitionBadHistory(t *testing.T) {
	row := fakeRow{values: []any{
		uuid.New(), "advancement", 1, 2, "requested", []byte("{not json"), "", time.Now(), time.Now(),
	}}

	_, err := scanTransition(row)
	assert.Error(t, err)
}
