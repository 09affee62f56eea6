// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Stage metrics
	StageRunsTotal *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	StageErrors    *prometheus.CounterVec

	// Pipeline metrics
	CandidatesDiscovered *prometheus.CounterVec
	CandidatesEvaluated  *prometheus.CounterVec
	PurchasesTotal       *prometheus.CounterVec
	PurchaseSpend        prometheus.Counter
	ListingsCreated      *prometheus.CounterVec
	PriceChanges         prometheus.Counter
	DeliveriesTotal      *prometheus.CounterVec
	PaymentsReconciled   prometheus.Counter

	// Budget metrics
	BudgetAllocated *prometheus.GaugeVec
	BudgetReserved  *prometheus.GaugeVec

	// Governance metrics
	ThrottleCapacity *prometheus.GaugeVec
	GovernorTriggers *prometheus.CounterVec
	AlertsRaised     *prometheus.CounterVec
	EngineStateGauge *prometheus.GaugeVec

	// External call metrics
	MarketplaceCallLatency *prometheus.HistogramVec
	MarketplaceCallErrors  *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun *prometheus.GaugeVec
	UptimeSeconds     prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "trade_engine"
	}

	return &Metrics{
		StageRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stage",
			Name:      "runs_total",
			Help:      "Total number of stage runs by stage and status",
		}, []string{"stage", "status"}),
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stage",
			Name:      "duration_seconds",
			Help:      "Stage batch execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
		StageErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stage",
			Name:      "item_errors_total",
			Help:      "Total number of per-item failures inside stage batches",
		}, []string{"stage"}),

		CandidatesDiscovered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hunter",
			Name:      "candidates_discovered_total",
			Help:      "Total number of deal candidates inserted by source",
		}, []string{"source"}),
		CandidatesEvaluated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "candidates_evaluated_total",
			Help:      "Total number of candidates evaluated by verdict",
		}, []string{"verdict"}),
		PurchasesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "buyer",
			Name:      "purchases_total",
			Help:      "Total number of purchases by source",
		}, []string{"source"}),
		PurchaseSpend: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "buyer",
			Name:      "spend_dollars_total",
			Help:      "Total dollars spent on inventory",
		}),
		ListingsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "merchant",
			Name:      "listings_created_total",
			Help:      "Total number of listings created by marketplace",
		}, []string{"marketplace"}),
		PriceChanges: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reprice",
			Name:      "price_changes_total",
			Help:      "Total number of executed price changes",
		}),
		DeliveriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fulfillment",
			Name:      "deliveries_total",
			Help:      "Total number of deliveries by channel",
		}, []string{"channel"}),
		PaymentsReconciled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "payments_reconciled_total",
			Help:      "Total number of payments matched to transactions",
		}),

		BudgetAllocated: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "budget",
			Name:      "allocated_dollars",
			Help:      "Allocated budget per category",
		}, []string{"category"}),
		BudgetReserved: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "budget",
			Name:      "reserved_dollars",
			Help:      "Reserved budget per category",
		}, []string{"category"}),

		ThrottleCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "governor",
			Name:      "throttle_capacity",
			Help:      "Effective capacity per module, 1.0 = full speed",
		}, []string{"module"}),
		GovernorTriggers: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "governor",
			Name:      "threshold_triggers_total",
			Help:      "Total number of tripped governance thresholds by name",
		}, []string{"threshold"}),
		AlertsRaised: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "raised_total",
			Help:      "Total number of alerts raised by module and severity",
		}, []string{"module", "severity"}),
		EngineStateGauge: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "state",
			Help:      "1 for the current engine state, 0 otherwise",
		}, []string{"state"}),

		MarketplaceCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "marketplace",
			Name:      "call_latency_seconds",
			Help:      "Marketplace API call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"marketplace", "operation"}),
		MarketplaceCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketplace",
			Name:      "call_errors_total",
			Help:      "Total number of failed marketplace API calls",
		}, []string{"marketplace", "operation"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulRun: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last successful run per stage",
		}, []string{"stage"}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordStageRun records one stage batch with its outcome and duration.
func (m *Metrics) RecordStageRun(stage, status string, durationSeconds float64) {
	m.StageRunsTotal.WithLabelValues(stage, status).Inc()
	m.StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordStageErrors adds per-item failure counts for a stage batch.
func (m *Metrics) RecordStageErrors(stage string, count int) {
	if count > 0 {
		m.StageErrors.WithLabelValues(stage).Add(float64(count))
	}
}

// SetEngineState flips the engine state gauge to the given state.
func (m *Metrics) SetEngineState(state string) {
	for _, s := range []string{"STOPPED", "RUNNING", "PAUSED"} {
		v := 0.0
		if s == state {
			v = 1.0
		}
		m.EngineStateGauge.WithLabelValues(s).Set(v)
	}
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
