package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// ControlStore implements storage.ControlStore using PostgreSQL. The engine
// state lives in a single row; transitions validate inside a transaction so
// two concurrent callers cannot both win an illegal move.
type ControlStore struct {
	pool *Pool
}

// NewControlStore creates a new ControlStore.
func NewControlStore(pool *Pool) *ControlStore {
	return &ControlStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ControlStore = (*ControlStore)(nil)

// GetEngineState returns the persisted engine state. A fresh deployment
// with no row reports STOPPED.
func (s *ControlStore) GetEngineState(ctx context.Context) (domain.EngineState, error) {
	query := `SELECT state FROM engine_control WHERE id = 1`

	var state string
	err := s.pool.QueryRow(ctx, query).Scan(&state)
	if err != nil {
		if isNotFoundError(err) {
			return domain.EngineStopped, nil
		}
		return "", fmt.Errorf("get engine state: %w", err)
	}
	return domain.EngineState(state), nil
}

// SetEngineState transitions the engine state, validating the move under a
// row lock.
func (s *ControlStore) SetEngineState(ctx context.Context, to domain.EngineState) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin engine state tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var current string
	err = tx.QueryRow(ctx, `SELECT state FROM engine_control WHERE id = 1 FOR UPDATE`).Scan(&current)
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("lock engine state: %w", err)
	}
	from := domain.EngineStopped
	if err == nil {
		from = domain.EngineState(current)
	}

	if verr := domain.ValidateEngineTransition(from, to); verr != nil {
		return verr
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO engine_control (id, state, updated_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at
	`, string(to), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set engine state: %w", err)
	}

	return tx.Commit(ctx)
}

// GetThrottles returns all module throttle states.
func (s *ControlStore) GetThrottles(ctx context.Context) ([]*domain.ThrottleState, error) {
	query := `
		SELECT module, capacity, reason, updated_at
		FROM throttles
		ORDER BY module ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get throttles: %w", err)
	}
	defer rows.Close()

	return scanThrottles(rows)
}

// SetThrottle upserts one module's throttle state.
func (s *ControlStore) SetThrottle(ctx context.Context, t *domain.ThrottleState) error {
	if t == nil || t.Capacity < 0 || t.Capacity > 1 {
		return storage.ErrInvalidInput
	}

	updatedAt := t.UpdatedAt
	if updatedAt == 0 {
		updatedAt = time.Now().UnixMilli()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO throttles (module, capacity, reason, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (module) DO UPDATE SET
			capacity = EXCLUDED.capacity,
			reason = EXCLUDED.reason,
			updated_at = EXCLUDED.updated_at
	`, t.Module, t.Capacity, t.Reason, updatedAt)
	if err != nil {
		return fmt.Errorf("set throttle: %w", err)
	}
	return nil
}

func scanThrottles(rows pgx.Rows) ([]*domain.ThrottleState, error) {
	var throttles []*domain.ThrottleState

	for rows.Next() {
		var t domain.ThrottleState
		if err := rows.Scan(&t.Module, &t.Capacity, &t.Reason, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan throttle row: %w", err)
		}
		throttles = append(throttles, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate throttle rows: %w", err)
	}

	return throttles, nil
}
