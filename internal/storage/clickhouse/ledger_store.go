package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// LedgerStore implements storage.LedgerStore using ClickHouse. The ledger
// is append-only; MergeTree fits because nothing ever updates a row.
type LedgerStore struct {
	conn *Conn
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(conn *Conn) *LedgerStore {
	return &LedgerStore{conn: conn}
}

// Compile-time interface check.
var _ storage.LedgerStore = (*LedgerStore)(nil)

// Append adds one entry.
func (s *LedgerStore) Append(ctx context.Context, e *domain.LedgerEntry) error {
	return s.AppendBulk(ctx, []*domain.LedgerEntry{e})
}

// AppendBulk adds multiple entries in one batch.
func (s *LedgerStore) AppendBulk(ctx context.Context, entries []*domain.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO ledger (event, actor, payload, timestamp_ms)
	`)
	if err != nil {
		return fmt.Errorf("prepare ledger batch: %w", err)
	}

	for _, e := range entries {
		if err := batch.Append(e.Event, e.Actor, e.Payload, uint64(e.Timestamp)); err != nil {
			return fmt.Errorf("append to ledger batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send ledger batch: %w", err)
	}
	return nil
}

// GetByActorSince retrieves entries from one actor at or after the
// timestamp (ms), ordered by timestamp ASC.
func (s *LedgerStore) GetByActorSince(ctx context.Context, actor string, since int64) ([]*domain.LedgerEntry, error) {
	query := `
		SELECT event, actor, payload, timestamp_ms
		FROM ledger
		WHERE actor = ? AND timestamp_ms >= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, actor, uint64(since))
	if err != nil {
		return nil, fmt.Errorf("query ledger by actor: %w", err)
	}
	defer rows.Close()

	return scanLedgerEntries(rows)
}

// GetByEventSince retrieves entries with one event name at or after the
// timestamp (ms), ordered by timestamp ASC.
func (s *LedgerStore) GetByEventSince(ctx context.Context, event string, since int64) ([]*domain.LedgerEntry, error) {
	query := `
		SELECT event, actor, payload, timestamp_ms
		FROM ledger
		WHERE event = ? AND timestamp_ms >= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, event, uint64(since))
	if err != nil {
		return nil, fmt.Errorf("query ledger by event: %w", err)
	}
	defer rows.Close()

	return scanLedgerEntries(rows)
}

func scanLedgerEntries(rows driver.Rows) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry

	for rows.Next() {
		var e domain.LedgerEntry
		var timestampMs uint64

		if err := rows.Scan(&e.Event, &e.Actor, &e.Payload, &timestampMs); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}

		e.Timestamp = int64(timestampMs)
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}

	return entries, nil
}
