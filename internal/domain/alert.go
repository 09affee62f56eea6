package domain

// AlertSeverity grades operator-facing conditions.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "INFO"
	SeverityWarn     AlertSeverity = "WARN"
	SeverityCritical AlertSeverity = "CRITICAL"
)

// Alert is an operator-facing condition raised by any component on a
// threshold breach. Corresponds to alerts table in PostgreSQL.
type Alert struct {
	AlertID    string // PRIMARY KEY, uuid
	Severity   AlertSeverity
	Module     string // component that raised the alert
	Message    string
	CreatedAt  int64 // ms
	ResolvedAt int64 // ms, 0 while unresolved
}
