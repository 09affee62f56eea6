// Package collector reconciles marketplace payouts against internal
// transactions and reports on the money flow. Matching is tolerant
// (price within a cent, time within a day) because marketplaces batch
// and round; anything the tolerance cannot explain becomes a
// discrepancy event, never a silent adjustment.
package collector

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/fees"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/ledger"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

const (
	// priceTolerance and timeTolerance bound what counts as a match.
	priceTolerance = 0.01
	timeTolerance  = 24 * time.Hour

	// feeTolerance is the largest fee mismatch reconciliation forgives.
	feeTolerance = 0.01

	// Anomaly bounds.
	anomalyFeeFactor       = 2.0
	anomalyUnreconciledPct = 0.30
)

// reconcilableStatuses are the transaction states payouts can land in.
var reconcilableStatuses = []domain.TransactionStatus{
	domain.TransactionDelivered,
	domain.TransactionDisputed,
	domain.TransactionRefunded,
}

// Params scopes one collector run.
type Params struct {
	Marketplaces []domain.Marketplace // default: all
	TrailingDays int                  // default 7
	DryRun       bool
}

// MarketplaceSummary totals one venue's matched payouts.
type MarketplaceSummary struct {
	Marketplace      domain.Marketplace
	Matched          int
	Unmatched        int
	Gross            float64
	Fees             float64
	Net              float64
	EffectiveFeeRate float64 // Fees / Gross over matched payouts
	Discrepancies    int
}

// Result summarizes one reconciliation run.
type Result struct {
	Considered    int
	Matched       int
	Unmatched     int
	Discrepancies int
	Summaries     []MarketplaceSummary
	Errors        []string
}

// FeeLine itemizes the recomputed fees on one delivered transaction.
type FeeLine struct {
	TransactionID string
	Marketplace   domain.Marketplace
	SalePrice     float64
	ReportedFees  float64
	ExpectedFees  float64
	Breakdown     fees.Breakdown
	Mismatch      bool
}

// Anomaly is one suspicious pattern in the payment stream.
type Anomaly struct {
	Kind        string // "fee_spike" or "unreconciled_backlog"
	Marketplace domain.Marketplace
	Detail      string
}

// Collector reconciles payments and produces financial reports.
type Collector struct {
	transactionStore storage.TransactionStore
	inventoryStore   storage.InventoryStore
	alertStore       storage.AlertStore
	payments         PaymentSource
	calc             *fees.Calculator
	ledger           *ledger.Writer
	logger           *log.Logger
	now              func() time.Time
}

// Options contains dependencies for creating a Collector.
type Options struct {
	TransactionStore storage.TransactionStore
	InventoryStore   storage.InventoryStore
	// AlertStore, when set, receives a WARN alert per detected anomaly.
	AlertStore storage.AlertStore
	Payments   PaymentSource
	Calculator *fees.Calculator
	Ledger     *ledger.Writer
	Logger     *log.Logger
}

// New creates a Collector.
func New(opts Options) *Collector {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Collector{
		transactionStore: opts.TransactionStore,
		inventoryStore:   opts.InventoryStore,
		alertStore:       opts.AlertStore,
		payments:         opts.Payments,
		calc:             opts.Calculator,
		ledger:           opts.Ledger,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock (tests).
func (c *Collector) WithClock(now func() time.Time) *Collector {
	c.now = now
	return c
}

// Reconcile matches external payment records to internal transactions
// per marketplace. Per-venue failures never abort the run.
func (c *Collector) Reconcile(ctx context.Context, params Params) (*Result, error) {
	marketplaces := params.Marketplaces
	if len(marketplaces) == 0 {
		marketplaces = domain.AllMarketplaces
	}
	days := params.TrailingDays
	if days <= 0 {
		days = 7
	}
	since := c.now().Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()

	result := &Result{}
	for _, m := range marketplaces {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		summary, err := c.reconcileMarketplace(ctx, m, since, params.DryRun, result)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", m, err))
			continue
		}
		if summary.Matched > 0 || summary.Unmatched > 0 {
			result.Summaries = append(result.Summaries, *summary)
		}
	}

	c.ledger.Write(ctx, "collector", "collector.reconcile_completed", map[string]any{
		"considered":    result.Considered,
		"matched":       result.Matched,
		"unmatched":     result.Unmatched,
		"discrepancies": result.Discrepancies,
		"errors":        len(result.Errors),
		"dry_run":       params.DryRun,
	})
	return result, nil
}

func (c *Collector) reconcileMarketplace(ctx context.Context, m domain.Marketplace, since int64, dryRun bool, result *Result) (*MarketplaceSummary, error) {
	records, err := c.payments.FetchPayments(ctx, m, since)
	if err != nil {
		return nil, fmt.Errorf("fetch payments: %w", err)
	}

	txs, err := c.transactionStore.GetByMarketplaceSince(ctx, m, since)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	// Only unreconciled transactions in a payout-bearing state are
	// candidates; everything else was either matched already or is
	// still awaiting delivery.
	open := make([]*domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.ReconciledAt != 0 {
			continue
		}
		for _, s := range reconcilableStatuses {
			if tx.Status == s {
				open = append(open, tx)
				break
			}
		}
	}

	summary := &MarketplaceSummary{Marketplace: m}
	claimed := make(map[string]bool)

	for _, rec := range records {
		result.Considered++

		tx := matchRecord(rec, open, claimed)
		if tx == nil {
			summary.Unmatched++
			result.Unmatched++
			c.logger.Printf("[collector] unmatched payment %s on %s: $%.2f at %d", rec.PaymentID, m, rec.Gross, rec.PaidAt)
			continue
		}
		claimed[tx.TransactionID] = true

		if !dryRun {
			tx.PaymentRef = rec.PaymentID
			tx.ReconciledAt = c.now().UnixMilli()
			if err := c.transactionStore.Update(ctx, tx); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: annotate %s: %v", m, tx.TransactionID, err))
				continue
			}
		}

		summary.Matched++
		result.Matched++
		summary.Gross += rec.Gross
		summary.Fees += rec.Fee
		summary.Net += rec.Net

		if math.Abs(rec.Fee-tx.Fees) > feeTolerance {
			summary.Discrepancies++
			result.Discrepancies++
			c.ledger.Write(ctx, "collector", "collector.fee_discrepancy", map[string]any{
				"transaction_id": tx.TransactionID,
				"payment_id":     rec.PaymentID,
				"marketplace":    m,
				"reported_fee":   tx.Fees,
				"payout_fee":     rec.Fee,
				"difference":     rec.Fee - tx.Fees,
			})
		}
	}

	if summary.Gross > 0 {
		summary.EffectiveFeeRate = summary.Fees / summary.Gross
	}
	return summary, nil
}

// matchRecord finds the closest unclaimed transaction within both
// tolerances, preferring the smallest time distance.
func matchRecord(rec PaymentRecord, open []*domain.Transaction, claimed map[string]bool) *domain.Transaction {
	var best *domain.Transaction
	var bestDist int64 = math.MaxInt64

	for _, tx := range open {
		if claimed[tx.TransactionID] {
			continue
		}
		if math.Abs(rec.Gross-tx.SalePrice) > priceTolerance {
			continue
		}
		dist := rec.PaidAt - tx.SoldAt
		if dist < 0 {
			dist = -dist
		}
		if dist > timeTolerance.Milliseconds() {
			continue
		}
		if dist < bestDist {
			best = tx
			bestDist = dist
		}
	}
	return best
}

// FeeBreakdowns recomputes the expected fees for every delivered
// transaction in the window from the marketplace's declared fee types.
func (c *Collector) FeeBreakdowns(ctx context.Context, params Params) ([]FeeLine, error) {
	days := params.TrailingDays
	if days <= 0 {
		days = 7
	}
	since := c.now().Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()

	txs, err := c.transactionStore.GetSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	var lines []FeeLine
	for _, tx := range txs {
		if tx.Status != domain.TransactionDelivered {
			continue
		}
		inv, err := c.inventoryStore.GetByID(ctx, tx.InventoryID)
		if err != nil {
			c.logger.Printf("[collector] fee breakdown %s: load inventory: %v", tx.TransactionID, err)
			continue
		}
		b, err := c.calc.CalculateFees(tx.Marketplace, inv.Kind, tx.SalePrice, fees.Options{})
		if err != nil {
			c.logger.Printf("[collector] fee breakdown %s: %v", tx.TransactionID, err)
			continue
		}
		lines = append(lines, FeeLine{
			TransactionID: tx.TransactionID,
			Marketplace:   tx.Marketplace,
			SalePrice:     tx.SalePrice,
			ReportedFees:  tx.Fees,
			ExpectedFees:  b.TotalFees,
			Breakdown:     *b,
			Mismatch:      math.Abs(tx.Fees-b.TotalFees) > feeTolerance,
		})
	}
	return lines, nil
}

// GenerateReports writes the four financial report types to the ledger:
// revenue summary, fee analysis, payment status, and discrepancy.
func (c *Collector) GenerateReports(ctx context.Context, params Params) error {
	days := params.TrailingDays
	if days <= 0 {
		days = 7
	}
	since := c.now().Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()

	txs, err := c.transactionStore.GetSince(ctx, since)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}

	// Revenue summary: per-marketplace gross/fees/net over the window.
	type venueTotals struct {
		Gross, Fees, Net float64
		Count            int
	}
	revenue := make(map[domain.Marketplace]*venueTotals)
	statusCounts := make(map[domain.TransactionStatus]int)
	var reconciled, unreconciled int

	for _, tx := range txs {
		statusCounts[tx.Status]++
		if tx.Status == domain.TransactionDelivered {
			vt := revenue[tx.Marketplace]
			if vt == nil {
				vt = &venueTotals{}
				revenue[tx.Marketplace] = vt
			}
			vt.Gross += tx.SalePrice
			vt.Fees += tx.Fees
			vt.Net += tx.Net
			vt.Count++
			if tx.ReconciledAt != 0 {
				reconciled++
			} else {
				unreconciled++
			}
		}
	}

	revenuePayload := make(map[string]any)
	for m, vt := range revenue {
		rate := 0.0
		if vt.Gross > 0 {
			rate = vt.Fees / vt.Gross
		}
		revenuePayload[string(m)] = map[string]any{
			"transactions":       vt.Count,
			"gross":              roundCents(vt.Gross),
			"fees":               roundCents(vt.Fees),
			"net":                roundCents(vt.Net),
			"effective_fee_rate": rate,
		}
	}
	c.ledger.Write(ctx, "collector", "collector.report_revenue_summary", map[string]any{
		"window_days": days,
		"venues":      revenuePayload,
	})

	// Fee analysis: observed vs recomputed fees.
	lines, err := c.FeeBreakdowns(ctx, params)
	if err != nil {
		return err
	}
	var observed, expected float64
	mismatches := 0
	for _, l := range lines {
		observed += l.ReportedFees
		expected += l.ExpectedFees
		if l.Mismatch {
			mismatches++
		}
	}
	c.ledger.Write(ctx, "collector", "collector.report_fee_analysis", map[string]any{
		"window_days":   days,
		"transactions":  len(lines),
		"observed_fees": roundCents(observed),
		"expected_fees": roundCents(expected),
		"mismatches":    mismatches,
	})

	// Payment status: lifecycle and reconciliation counts.
	c.ledger.Write(ctx, "collector", "collector.report_payment_status", map[string]any{
		"window_days":  days,
		"by_status":    statusCounts,
		"reconciled":   reconciled,
		"unreconciled": unreconciled,
	})

	// Discrepancy report: every fee mismatch, itemized.
	var items []map[string]any
	for _, l := range lines {
		if !l.Mismatch {
			continue
		}
		items = append(items, map[string]any{
			"transaction_id": l.TransactionID,
			"marketplace":    l.Marketplace,
			"reported":       l.ReportedFees,
			"expected":       l.ExpectedFees,
			"difference":     roundCents(l.ReportedFees - l.ExpectedFees),
		})
	}
	c.ledger.Write(ctx, "collector", "collector.report_discrepancy", map[string]any{
		"window_days":   days,
		"discrepancies": items,
	})

	// Payout schedule: when each venue is expected to settle next.
	var payouts []map[string]any
	for _, p := range c.ProjectPayouts() {
		payouts = append(payouts, map[string]any{
			"marketplace":    p.Marketplace,
			"cadence":        p.Cadence,
			"next_payout_ms": p.NextPayout,
		})
	}
	c.ledger.Write(ctx, "collector", "collector.report_payout_schedule", map[string]any{
		"projections": payouts,
	})

	return nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
