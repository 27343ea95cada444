package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/autocura/governance-core/internal/domain/autonomy"
)

// TransitionRepository persists autonomy level transitions for audit.
// It satisfies the flow's TransitionStore interface.
type TransitionRepository struct {
	db *pgxpool.Pool
}

// NewTransitionRepository creates a new transition repository
func NewTransitionRepository(db *pgxpool.Pool) *TransitionRepository {
	return &TransitionRepository{db: db}
}

// SaveTransition upserts a transition record with its full state
// history. The flow calls this on every state change, so the row always
// reflects the latest state.
func (r *TransitionRepository) SaveTransition(ctx context.Context, t *autonomy.Transition) error {
	history, err := json.Marshal(t.History)
	if err != nil {
		return fmt.Errorf("marshaling state history: %w", err)
	}
	criteria, err := json.Marshal(t.CriteriaResults)
	if err != nil {
		return fmt.Errorf("marshaling criteria results: %w", err)
	}

	query := `
		INSERT INTO autonomy_transitions (
			id, type, origin_level, destination_level, state,
			state_history, criteria_results, motive, urgency,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			state_history = EXCLUDED.state_history,
			criteria_results = EXCLUDED.criteria_results,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.Exec(ctx, query,
		t.ID,
		t.Type.String(),
		int(t.Origin),
		int(t.Destination),
		t.State.String(),
		history,
		criteria,
		t.Motive,
		int(t.Urgency),
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving transition %s: %w", t.ID, err)
	}

	return nil
}

// GetTransition loads one transition row.
func (r *TransitionRepository) GetTransition(ctx context.Context, id uuid.UUID) (*TransitionRow, error) {
	query := `
		SELECT id, type, origin_level, destination_level, state,
		       state_history, motive, created_at, updated_at
		FROM autonomy_transitions
		WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	t, err := scanTransition(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading transition %s: %w", id, err)
	}

	return t, nil
}

// ListByState returns transitions in a given lifecycle state, newest
// first, capped to limit.
func (r *TransitionRepository) ListByState(ctx context.Context, state string, limit int) ([]*TransitionRow, error) {
	query := `
		SELECT id, type, origin_level, destination_level, state,
		       state_history, motive, created_at, updated_at
		FROM autonomy_transitions
		WHERE state = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, state, limit)
	if err != nil {
		return nil, fmt.Errorf("listing transitions by state %s: %w", state, err)
	}
	defer rows.Close()

	var out []*TransitionRow
	for rows.Next() {
		t, err := scanTransition(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transition row: %w", err)
		}
		out = append(out, t)
	}

	return out, rows.Err()
}

// TransitionRow is the persisted shape of a transition, as read back
// for audit queries.
type TransitionRow struct {
	ID           uuid.UUID              `json:"id"`
	Type         string                 `json:"type"`
	Origin       int                    `json:"origin_level"`
	Destination  int                    `json:"destination_level"`
	State        string                 `json:"state"`
	StateHistory []autonomy.StateChange `json:"state_history"`
	Motive       string                 `json:"motive,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransition(row rowScanner) (*TransitionRow, error) {
	var (
		t       TransitionRow
		history []byte
	)
	if err := row.Scan(
		&t.ID, &t.Type, &t.Origin, &t.Destination, &t.State,
		&history, &t.Motive, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &t.StateHistory); err != nil {
			return nil, fmt.Errorf("unmarshaling state history: %w", err)
		}
	}
	return &t, nil
}
