// Package governor is the cross-cutting control loop. It checks a fixed
// table of named risk thresholds, grades operational performance
// metrics, and runs compliance checks; triggered actions are
// materialized as throttle states, an engine pause, and alerts. The
// governor advises and records; actually slowing down is each worker's
// duty when it reads the throttle table before claiming work.
package governor

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/ledger"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/risk"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

const (
	// Throttle capacities by severity of the tripped threshold.
	capacityCritical = 0.10
	capacityDefault  = 0.50

	// trailingWindow scopes the store-derived observations.
	trailingWindow = 30 * 24 * time.Hour

	// Compliance bounds.
	retentionDays        = 365
	complianceDispute30d = 0.02
)

// Observations is the metric snapshot one governance run evaluates.
// Store-derived fields are computed when no snapshot is supplied;
// externally measured fields (satisfaction, API errors, response time,
// queue depth) default to healthy values unless fed in.
type Observations struct {
	DisputeRate           float64
	ChargebackRate        float64
	CashFlowRatio         float64
	InventoryTurnoverDays float64
	Satisfaction          float64
	APIErrorRate          float64

	ActiveListings   int
	DailySalesVolume float64
	AvgMargin        float64
	InventoryValue   float64
	ResponseTimeMs   float64
	QueueDepth       int
}

// Params configures one governance run.
type Params struct {
	// Observed overrides the store-derived snapshot entirely.
	Observed *Observations
	// EmergencyMode forces a blanket 10%-capacity throttle on top of
	// whatever the thresholds decide.
	EmergencyMode bool
	DryRun        bool
}

// PerformanceReport grades one operational metric.
type PerformanceReport struct {
	Metric    string
	Observed  float64
	Threshold float64
	Health    Health
}

// ComplianceFinding is one failed compliance check.
type ComplianceFinding struct {
	Check  string
	Detail string
}

// Result summarizes one governance run.
type Result struct {
	Triggered   []string
	Throttled   int
	Paused      bool
	Alerts      int
	Performance []PerformanceReport
	Compliance  []ComplianceFinding
	Errors      []string
}

// Governor evaluates system health and materializes control actions.
type Governor struct {
	transactionStore storage.TransactionStore
	inventoryStore   storage.InventoryStore
	listingStore     storage.ListingStore
	supplierStore    storage.SupplierStore
	alertStore       storage.AlertStore
	controlStore     storage.ControlStore
	riskMonitor      *risk.Monitor
	ledger           *ledger.Writer
	logger           *log.Logger
	now              func() time.Time
}

// Options contains dependencies for creating a Governor.
type Options struct {
	TransactionStore storage.TransactionStore
	InventoryStore   storage.InventoryStore
	ListingStore     storage.ListingStore
	SupplierStore    storage.SupplierStore
	AlertStore       storage.AlertStore
	ControlStore     storage.ControlStore
	// RiskMonitor, when set, is refreshed with per-marketplace and
	// per-category metrics on every run.
	RiskMonitor *risk.Monitor
	Ledger      *ledger.Writer
	Logger      *log.Logger
}

// New creates a Governor.
func New(opts Options) *Governor {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Governor{
		transactionStore: opts.TransactionStore,
		inventoryStore:   opts.InventoryStore,
		listingStore:     opts.ListingStore,
		supplierStore:    opts.SupplierStore,
		alertStore:       opts.AlertStore,
		controlStore:     opts.ControlStore,
		riskMonitor:      opts.RiskMonitor,
		ledger:           opts.Ledger,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock (tests).
func (g *Governor) WithClock(now func() time.Time) *Governor {
	g.now = now
	return g
}

// Run executes one full governance pass: thresholds, performance
// grading, compliance checks, then the emergency override.
func (g *Governor) Run(ctx context.Context, params Params) (*Result, error) {
	obs := params.Observed
	if obs == nil {
		var err error
		obs, err = g.observe(ctx)
		if err != nil {
			return nil, fmt.Errorf("observe metrics: %w", err)
		}
	}

	result := &Result{}

	if g.riskMonitor != nil {
		if err := g.feedRiskMonitor(ctx); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("refresh risk monitor: %v", err))
		}
	}

	for _, t := range riskThresholds {
		observed := t.Observe(obs)
		if !t.ShouldTrigger(observed) {
			continue
		}
		result.Triggered = append(result.Triggered, t.Name)
		g.execute(ctx, t, observed, params.DryRun, result)
	}

	for _, m := range performanceMetrics {
		observed := m.Observe(obs)
		result.Performance = append(result.Performance, PerformanceReport{
			Metric:    m.Name,
			Observed:  observed,
			Threshold: m.Threshold,
			Health:    m.classify(observed),
		})
	}

	g.runCompliance(ctx, obs, params.DryRun, result)

	if params.EmergencyMode && !params.DryRun {
		g.setThrottle(ctx, "all", capacityCritical, "emergency mode", result)
		g.ledger.Write(ctx, "governor", "governor.emergency_throttle", map[string]any{
			"capacity": capacityCritical,
		})
	}

	g.ledger.Write(ctx, "governor", "governor.run_completed", map[string]any{
		"triggered":  result.Triggered,
		"throttled":  result.Throttled,
		"paused":     result.Paused,
		"alerts":     result.Alerts,
		"compliance": len(result.Compliance),
		"emergency":  params.EmergencyMode,
		"dry_run":    params.DryRun,
	})
	return result, nil
}

// execute materializes one tripped threshold's action.
func (g *Governor) execute(ctx context.Context, t Threshold, observed float64, dryRun bool, result *Result) {
	detail := fmt.Sprintf("%s %.4f breaches bound %.4f (%s)", t.Name, observed, t.Bound, t.Direction)

	if dryRun {
		g.logger.Printf("[governor] dry-run: %s -> %s", detail, t.Action)
		return
	}

	switch t.Action {
	case ActionThrottle:
		capacity := capacityDefault
		if t.Severity == domain.SeverityCritical {
			capacity = capacityCritical
		}
		g.setThrottle(ctx, t.Module, capacity, detail, result)
		g.raiseAlert(ctx, t.Severity, detail, result)
		g.ledger.Write(ctx, "governor", "governor.throttle_applied", map[string]any{
			"threshold": t.Name,
			"module":    t.Module,
			"capacity":  capacity,
			"observed":  observed,
		})

	case ActionPause, ActionShutdown:
		g.pauseEngine(ctx, result)
		g.raiseAlert(ctx, domain.SeverityCritical, detail+"; engine paused", result)
		g.ledger.Write(ctx, "governor", "governor.engine_paused", map[string]any{
			"threshold": t.Name,
			"observed":  observed,
		})

	case ActionAlert:
		g.raiseAlert(ctx, t.Severity, detail, result)
	}
}

func (g *Governor) setThrottle(ctx context.Context, module string, capacity float64, reason string, result *Result) {
	err := g.controlStore.SetThrottle(ctx, &domain.ThrottleState{
		Module:    module,
		Capacity:  capacity,
		Reason:    reason,
		UpdatedAt: g.now().UnixMilli(),
	})
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("set throttle %s: %v", module, err))
		return
	}
	result.Throttled++
	g.logger.Printf("[governor] throttled %s to %.0f%%: %s", module, capacity*100, reason)
}

func (g *Governor) pauseEngine(ctx context.Context, result *Result) {
	state, err := g.controlStore.GetEngineState(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("read engine state: %v", err))
		return
	}
	if state != domain.EngineRunning {
		// Nothing to pause; a stopped engine stays stopped.
		return
	}
	if err := g.controlStore.SetEngineState(ctx, domain.EnginePaused); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("pause engine: %v", err))
		return
	}
	result.Paused = true
	g.logger.Printf("[governor] engine paused")
}

func (g *Governor) raiseAlert(ctx context.Context, severity domain.AlertSeverity, message string, result *Result) {
	err := g.alertStore.Insert(ctx, &domain.Alert{
		AlertID:   uuid.NewString(),
		Severity:  severity,
		Module:    "governor",
		Message:   message,
		CreatedAt: g.now().UnixMilli(),
	})
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("raise alert: %v", err))
		return
	}
	result.Alerts++
}

// runCompliance executes the independent compliance checks. Findings are
// recorded on the ledger and surfaced as WARN alerts; they never
// throttle or pause by themselves.
func (g *Governor) runCompliance(ctx context.Context, obs *Observations, dryRun bool, result *Result) {
	now := g.now()
	nowMs := now.UnixMilli()

	// Data retention: records older than the retention horizon should
	// have been archived out of the hot store.
	if all, err := g.transactionStore.GetSince(ctx, 0); err == nil && len(all) > 0 {
		oldest := all[0].CreatedAt
		for _, tx := range all {
			if tx.CreatedAt > 0 && tx.CreatedAt < oldest {
				oldest = tx.CreatedAt
			}
		}
		ageDays := float64(nowMs-oldest) / float64(24*time.Hour/time.Millisecond)
		if ageDays > retentionDays {
			result.Compliance = append(result.Compliance, ComplianceFinding{
				Check:  "data retention",
				Detail: fmt.Sprintf("oldest transaction is %.0f days old, retention limit is %d", ageDays, retentionDays),
			})
		}
	}

	if obs.DisputeRate > complianceDispute30d {
		result.Compliance = append(result.Compliance, ComplianceFinding{
			Check:  "dispute rate",
			Detail: fmt.Sprintf("30-day dispute rate %.2f%% over the %.0f%% compliance limit", obs.DisputeRate*100, complianceDispute30d*100),
		})
	}

	// Expired goods still marked sellable.
	if available, err := g.inventoryStore.GetByStatus(ctx, domain.InventoryAvailable); err == nil {
		expired := 0
		for _, inv := range available {
			if inv.ExpiresAt > 0 && inv.ExpiresAt < nowMs {
				expired++
			}
		}
		if expired > 0 {
			result.Compliance = append(result.Compliance, ComplianceFinding{
				Check:  "expired inventory",
				Detail: fmt.Sprintf("%d expired items still AVAILABLE", expired),
			})
		}
	}

	// Recent purchases from blacklisted suppliers.
	if blacklisted, err := g.supplierStore.GetBlacklisted(ctx); err == nil && len(blacklisted) > 0 {
		banned := make(map[string]bool, len(blacklisted))
		for _, s := range blacklisted {
			banned[strings.ToUpper(s.Name)] = true
			banned[s.SupplierID] = true
		}
		cutoff := now.Add(-trailingWindow).UnixMilli()
		count := 0
		for _, status := range []domain.InventoryStatus{domain.InventoryAvailable, domain.InventoryReserved, domain.InventoryDelivered} {
			items, err := g.inventoryStore.GetByStatus(ctx, status)
			if err != nil {
				continue
			}
			for _, inv := range items {
				if inv.AcquiredAt < cutoff {
					continue
				}
				if banned[strings.ToUpper(string(inv.Source))] || (inv.SupplierID != "" && banned[inv.SupplierID]) {
					count++
				}
			}
		}
		if count > 0 {
			result.Compliance = append(result.Compliance, ComplianceFinding{
				Check:  "blacklisted suppliers",
				Detail: fmt.Sprintf("%d recent purchases from blacklisted suppliers", count),
			})
		}
	}

	for _, f := range result.Compliance {
		g.ledger.Write(ctx, "governor", "governor.compliance_violation", map[string]any{
			"check":  f.Check,
			"detail": f.Detail,
		})
		if !dryRun {
			g.raiseAlert(ctx, domain.SeverityWarn, f.Check+": "+f.Detail, result)
		}
	}
}

// riskBucket accumulates one scope's trailing transaction outcomes.
type riskBucket struct {
	total7, total30             int
	disputes7, disputes30       int
	refunds7, refunds30         int
	chargebacks7, chargebacks30 int
	deliveryHoursSum            float64
	delivered                   int
}

func (b *riskBucket) add(tx *domain.Transaction, recent bool) {
	b.total30++
	if recent {
		b.total7++
	}
	switch tx.Status {
	case domain.TransactionDisputed:
		b.disputes30++
		if recent {
			b.disputes7++
		}
	case domain.TransactionRefunded:
		b.refunds30++
		if recent {
			b.refunds7++
		}
	case domain.TransactionChargeback:
		b.chargebacks30++
		if recent {
			b.chargebacks7++
		}
	case domain.TransactionDelivered:
		if tx.DeliveredAt > tx.SoldAt {
			b.deliveryHoursSum += float64(tx.DeliveredAt-tx.SoldAt) / float64(time.Hour/time.Millisecond)
			b.delivered++
		}
	}
}

// metrics converts the bucket's counts into rates. Figures measured
// outside the stores (satisfaction, seller performance, cash flow)
// default to healthy values so a scope is scored by what the ledgered
// outcomes actually show.
func (b *riskBucket) metrics() risk.Metrics {
	rate := func(n, total int) float64 {
		if total == 0 {
			return 0
		}
		return float64(n) / float64(total)
	}
	m := risk.Metrics{
		DisputeRate7d:     rate(b.disputes7, b.total7),
		DisputeRate30d:    rate(b.disputes30, b.total30),
		RefundRate7d:      rate(b.refunds7, b.total7),
		RefundRate30d:     rate(b.refunds30, b.total30),
		ChargebackRate7d:  rate(b.chargebacks7, b.total7),
		ChargebackRate30d: rate(b.chargebacks30, b.total30),
		Satisfaction:      4.5,
		SellerPerformance: 95,
		CashFlowRatio:     2.0,
		TransactionVolume: b.total30,
	}
	if b.delivered > 0 {
		m.AvgDeliveryHours = b.deliveryHoursSum / float64(b.delivered)
	}
	return m
}

// feedRiskMonitor rescores every marketplace and category profile from
// the trailing 30 days of transactions, so the evaluator's risk blend
// and the allocator's risk input track observed outcomes.
func (g *Governor) feedRiskMonitor(ctx context.Context) error {
	now := g.now()
	since30 := now.Add(-30 * 24 * time.Hour).UnixMilli()
	since7 := now.Add(-7 * 24 * time.Hour).UnixMilli()

	txs, err := g.transactionStore.GetSince(ctx, since30)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}

	byVenue := make(map[domain.Marketplace]*riskBucket)
	byKind := make(map[domain.InventoryKind]*riskBucket)
	kinds := make(map[string]domain.InventoryKind)

	for _, tx := range txs {
		recent := tx.SoldAt >= since7

		vb := byVenue[tx.Marketplace]
		if vb == nil {
			vb = &riskBucket{}
			byVenue[tx.Marketplace] = vb
		}
		vb.add(tx, recent)

		kind, ok := kinds[tx.InventoryID]
		if !ok {
			inv, err := g.inventoryStore.GetByID(ctx, tx.InventoryID)
			if err != nil {
				continue
			}
			kind = inv.Kind
			kinds[tx.InventoryID] = kind
		}
		kb := byKind[kind]
		if kb == nil {
			kb = &riskBucket{}
			byKind[kind] = kb
		}
		kb.add(tx, recent)
	}

	for venue, b := range byVenue {
		g.riskMonitor.UpdateMarketplace(venue, b.metrics())
	}
	for kind, b := range byKind {
		g.riskMonitor.UpdateCategory(kind, b.metrics())
	}
	return nil
}

// observe derives the metric snapshot from the stores. Externally
// measured figures default to healthy values.
func (g *Governor) observe(ctx context.Context) (*Observations, error) {
	now := g.now()
	since := now.Add(-trailingWindow).UnixMilli()

	obs := &Observations{
		Satisfaction:  4.5, // fed externally in production; assume healthy
		CashFlowRatio: 2.0,
	}

	txs, err := g.transactionStore.GetSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	var disputes, chargebacks int
	var net, marginSum float64
	var marginCount int
	dayAgo := now.Add(-24 * time.Hour).UnixMilli()

	for _, tx := range txs {
		switch tx.Status {
		case domain.TransactionDisputed:
			disputes++
		case domain.TransactionChargeback:
			chargebacks++
		case domain.TransactionDelivered:
			net += tx.Net
			if tx.SalePrice > 0 {
				if inv, err := g.inventoryStore.GetByID(ctx, tx.InventoryID); err == nil {
					marginSum += (tx.Net - inv.Cost) / tx.SalePrice
					marginCount++
				}
			}
		}
		if tx.SoldAt >= dayAgo {
			obs.DailySalesVolume += tx.SalePrice
		}
	}
	if len(txs) > 0 {
		obs.DisputeRate = float64(disputes) / float64(len(txs))
		obs.ChargebackRate = float64(chargebacks) / float64(len(txs))
	}
	if marginCount > 0 {
		obs.AvgMargin = marginSum / float64(marginCount)
	}

	var spend float64
	var turnoverSum float64
	var turnoverCount int
	for _, status := range []domain.InventoryStatus{domain.InventoryAvailable, domain.InventoryReserved, domain.InventoryDelivered} {
		items, err := g.inventoryStore.GetByStatus(ctx, status)
		if err != nil {
			return nil, fmt.Errorf("load inventory: %w", err)
		}
		for _, inv := range items {
			if status == domain.InventoryAvailable || status == domain.InventoryReserved {
				obs.InventoryValue += inv.Cost
			}
			if inv.AcquiredAt >= since {
				spend += inv.Cost
			}
			if status == domain.InventoryDelivered && inv.DeliveredAt >= since && inv.DeliveredAt > inv.AcquiredAt {
				turnoverSum += float64(inv.DeliveredAt-inv.AcquiredAt) / float64(24*time.Hour/time.Millisecond)
				turnoverCount++
			}
		}
	}
	if spend > 0 {
		obs.CashFlowRatio = net / spend
	}
	if turnoverCount > 0 {
		obs.InventoryTurnoverDays = turnoverSum / float64(turnoverCount)
	}

	if active, err := g.listingStore.GetByStatus(ctx, domain.ListingActive); err == nil {
		obs.ActiveListings = len(active)
	}

	return obs, nil
}
