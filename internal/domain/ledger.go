package domain

// LedgerEntry is one record of the append-only audit trail. Every component
// writes an entry for every state transition and failure. Events are named
// "<stage>.<outcome>" (e.g. "buyer.purchased", "reprice.job_failed").
// Stored in ClickHouse; the dashboard reads this stream.
type LedgerEntry struct {
	Event     string
	Actor     string // stage that produced the event
	Payload   string // JSON-encoded detail
	Timestamp int64  // ms
}
