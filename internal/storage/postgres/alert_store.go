package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// AlertStore implements storage.AlertStore using PostgreSQL.
type AlertStore struct {
	pool *Pool
}

// NewAlertStore creates a new AlertStore.
func NewAlertStore(pool *Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AlertStore = (*AlertStore)(nil)

// Insert adds a new alert. Returns ErrDuplicateKey if alert_id exists.
func (s *AlertStore) Insert(ctx context.Context, a *domain.Alert) error {
	query := `
		INSERT INTO alerts (alert_id, severity, module, message, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	createdAt := a.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}

	_, err := s.pool.Exec(ctx, query,
		a.AlertID, string(a.Severity), a.Module, a.Message, createdAt, a.ResolvedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// GetUnresolved retrieves unresolved alerts, oldest first.
func (s *AlertStore) GetUnresolved(ctx context.Context) ([]*domain.Alert, error) {
	query := `
		SELECT alert_id, severity, module, message, created_at, resolved_at
		FROM alerts
		WHERE resolved_at = 0
		ORDER BY created_at ASC, alert_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get unresolved alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// GetBySeveritySince retrieves alerts of a severity created at or after the
// timestamp (ms).
func (s *AlertStore) GetBySeveritySince(ctx context.Context, severity domain.AlertSeverity, since int64) ([]*domain.Alert, error) {
	query := `
		SELECT alert_id, severity, module, message, created_at, resolved_at
		FROM alerts
		WHERE severity = $1 AND created_at >= $2
		ORDER BY created_at ASC, alert_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(severity), since)
	if err != nil {
		return nil, fmt.Errorf("get alerts by severity since: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// Resolve marks an alert resolved at the given timestamp (ms).
func (s *AlertStore) Resolve(ctx context.Context, alertID string, resolvedAt int64) error {
	query := `UPDATE alerts SET resolved_at = $2 WHERE alert_id = $1`

	tag, err := s.pool.Exec(ctx, query, alertID, resolvedAt)
	if err != nil {
		return fmt.Errorf("resolve alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanAlerts(rows pgx.Rows) ([]*domain.Alert, error) {
	var alerts []*domain.Alert

	for rows.Next() {
		var a domain.Alert
		var severity string

		err := rows.Scan(&a.AlertID, &severity, &a.Module, &a.Message, &a.CreatedAt, &a.ResolvedAt)
		if err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}

		a.Severity = domain.AlertSeverity(severity)
		alerts = append(alerts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert rows: %w", err)
	}

	return alerts, nil
}
