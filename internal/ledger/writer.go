// Package ledger writes the append-only audit trail every stage reports
// into. Ledger failures are logged but never fail the calling stage: the
// audit trail must not take the pipeline down with it.
package ledger

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// Writer appends audit events for one or more actors.
type Writer struct {
	store  storage.LedgerStore
	logger *log.Logger
	now    func() time.Time
}

// NewWriter creates a ledger writer.
func NewWriter(store storage.LedgerStore, logger *log.Logger) *Writer {
	if logger == nil {
		logger = log.Default()
	}
	return &Writer{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock (tests).
func (w *Writer) WithClock(now func() time.Time) *Writer {
	w.now = now
	return w
}

// Write appends one event. The payload is JSON-encoded; encoding failures
// degrade to an error note so the event itself is never lost.
func (w *Writer) Write(ctx context.Context, actor, event string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		body = []byte(`{"encode_error":"` + err.Error() + `"}`)
	}

	entry := &domain.LedgerEntry{
		Event:     event,
		Actor:     actor,
		Payload:   string(body),
		Timestamp: w.now().UnixMilli(),
	}

	if err := w.store.Append(ctx, entry); err != nil {
		w.logger.Printf("[ledger] append %s failed: %v", event, err)
	}
}
