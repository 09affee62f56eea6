package collector

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/fees"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/ledger"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage/memory"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	collector        *Collector
	payments         *FakePaymentSource
	transactionStore *memory.TransactionStore
	inventoryStore   *memory.InventoryStore
	alertStore       *memory.AlertStore
	ledgerStore      *memory.LedgerStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		payments:         NewFakePaymentSource(),
		transactionStore: memory.NewTransactionStore(),
		inventoryStore:   memory.NewInventoryStore(),
		alertStore:       memory.NewAlertStore(),
		ledgerStore:      memory.NewLedgerStore(),
	}
	f.collector = New(Options{
		TransactionStore: f.transactionStore,
		InventoryStore:   f.inventoryStore,
		AlertStore:       f.alertStore,
		Payments:         f.payments,
		Calculator:       fees.NewCalculator(),
		Ledger:           ledger.NewWriter(f.ledgerStore, nil),
	}).WithClock(func() time.Time { return testNow })
	return f
}

// addDelivered records one delivered KEY sale on Gameflip.
func (f *fixture) addDelivered(t *testing.T, id string, salePrice, feesAmt float64, soldHoursAgo int) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.inventoryStore.Insert(ctx, &domain.Inventory{
		InventoryID: "inv-" + id,
		SKU:         "sku-" + id,
		Kind:        domain.KindKey,
		Cost:        20,
		Source:      domain.SourceG2A,
		Status:      domain.InventoryDelivered,
	}))
	require.NoError(t, f.transactionStore.Insert(ctx, &domain.Transaction{
		TransactionID: "tx-" + id,
		InventoryID:   "inv-" + id,
		Marketplace:   domain.MarketplaceGameflip,
		SalePrice:     salePrice,
		Fees:          feesAmt,
		Net:           salePrice - feesAmt,
		Status:        domain.TransactionDelivered,
		SoldAt:        testNow.Add(-time.Duration(soldHoursAgo) * time.Hour).UnixMilli(),
		CreatedAt:     testNow.Add(-time.Duration(soldHoursAgo) * time.Hour).UnixMilli(),
	}))
}

func (f *fixture) transaction(t *testing.T, id string) *domain.Transaction {
	t.Helper()
	tx, err := f.transactionStore.GetByID(context.Background(), "tx-"+id)
	require.NoError(t, err)
	return tx
}

func TestReconcile_MatchesWithinTolerance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addDelivered(t, "a", 35, 4.12, 6)
	f.payments.Add(PaymentRecord{
		PaymentID:   "pay-1",
		Marketplace: domain.MarketplaceGameflip,
		Gross:       35,
		Fee:         4.12,
		Net:         30.88,
		PaidAt:      testNow.Add(-4 * time.Hour).UnixMilli(),
	})

	result, err := f.collector.Reconcile(ctx, Params{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Matched)
	assert.Zero(t, result.Unmatched)
	assert.Zero(t, result.Discrepancies)

	tx := f.transaction(t, "a")
	assert.Equal(t, "pay-1", tx.PaymentRef)
	assert.Equal(t, testNow.UnixMilli(), tx.ReconciledAt)

	require.Len(t, result.Summaries, 1)
	s := result.Summaries[0]
	assert.Equal(t, domain.MarketplaceGameflip, s.Marketplace)
	assert.InDelta(t, 4.12/35.0, s.EffectiveFeeRate, 0.0001)
}

func TestReconcile_PriceOutsideToleranceUnmatched(t *testing.T) {
	f := newFixture(t)
	f.addDelivered(t, "a", 35, 4.12, 6)
	f.payments.Add(PaymentRecord{
		PaymentID:   "pay-1",
		Marketplace: domain.MarketplaceGameflip,
		Gross:       35.05,
		Fee:         4.12,
		Net:         30.93,
		PaidAt:      testNow.Add(-4 * time.Hour).UnixMilli(),
	})

	result, err := f.collector.Reconcile(context.Background(), Params{})
	require.NoError(t, err)
	assert.Zero(t, result.Matched)
	assert.Equal(t, 1, result.Unmatched)
	assert.Zero(t, f.transaction(t, "a").ReconciledAt)
}

func TestReconcile_TimeOutsideToleranceUnmatched(t *testing.T) {
	f := newFixture(t)
	f.addDelivered(t, "a", 35, 4.12, 60)
	f.payments.Add(PaymentRecord{
		PaymentID:   "pay-1",
		Marketplace: domain.MarketplaceGameflip,
		Gross:       35,
		Fee:         4.12,
		Net:         30.88,
		PaidAt:      testNow.Add(-4 * time.Hour).UnixMilli(),
	})

	result, err := f.collector.Reconcile(context.Background(), Params{TrailingDays: 7})
	require.NoError(t, err)
	assert.Zero(t, result.Matched)
	assert.Equal(t, 1, result.Unmatched)
}

func TestReconcile_FeeMismatchRaisesDiscrepancy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addDelivered(t, "a", 35, 4.12, 6)
	f.payments.Add(PaymentRecord{
		PaymentID:   "pay-1",
		Marketplace: domain.MarketplaceGameflip,
		Gross:       35,
		Fee:         4.62, // 50 cents more than we booked
		Net:         30.38,
		PaidAt:      testNow.Add(-4 * time.Hour).UnixMilli(),
	})

	result, err := f.collector.Reconcile(ctx, Params{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Matched)
	assert.Equal(t, 1, result.Discrepancies)

	entries, err := f.ledgerStore.GetByEventSince(ctx, "collector.fee_discrepancy", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Payload, "pay-1")
}

func TestReconcile_AlreadyReconciledNotRematched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addDelivered(t, "a", 35, 4.12, 6)
	tx := f.transaction(t, "a")
	tx.PaymentRef = "pay-0"
	tx.ReconciledAt = testNow.Add(-time.Hour).UnixMilli()
	require.NoError(t, f.transactionStore.Update(ctx, tx))

	f.payments.Add(PaymentRecord{
		PaymentID:   "pay-9",
		Marketplace: domain.MarketplaceGameflip,
		Gross:       35,
		Fee:         4.12,
		Net:         30.88,
		PaidAt:      testNow.Add(-4 * time.Hour).UnixMilli(),
	})

	result, err := f.collector.Reconcile(ctx, Params{})
	require.NoError(t, err)
	assert.Zero(t, result.Matched)
	assert.Equal(t, 1, result.Unmatched)
	assert.Equal(t, "pay-0", f.transaction(t, "a").PaymentRef)
}

func TestReconcile_PrefersClosestInTime(t *testing.T) {
	f := newFixture(t)
	f.addDelivered(t, "near", 35, 4.12, 2)
	f.addDelivered(t, "far", 35, 4.12, 10)
	f.payments.Add(PaymentRecord{
		PaymentID:   "pay-1",
		Marketplace: domain.MarketplaceGameflip,
		Gross:       35,
		Fee:         4.12,
		Net:         30.88,
		PaidAt:      testNow.Add(-1 * time.Hour).UnixMilli(),
	})

	result, err := f.collector.Reconcile(context.Background(), Params{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Matched)
	assert.Equal(t, "pay-1", f.transaction(t, "near").PaymentRef)
	assert.Empty(t, f.transaction(t, "far").PaymentRef)
}

func TestReconcile_DryRunAnnotatesNothing(t *testing.T) {
	f := newFixture(t)
	f.addDelivered(t, "a", 35, 4.12, 6)
	f.payments.Add(PaymentRecord{
		PaymentID:   "pay-1",
		Marketplace: domain.MarketplaceGameflip,
		Gross:       35,
		Fee:         4.12,
		Net:         30.88,
		PaidAt:      testNow.Add(-4 * time.Hour).UnixMilli(),
	})

	result, err := f.collector.Reconcile(context.Background(), Params{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Matched)
	assert.Zero(t, f.transaction(t, "a").ReconciledAt)
}

func TestReconcile_SourceFailureIsIsolated(t *testing.T) {
	f := newFixture(t)
	f.payments.Fail = true

	result, err := f.collector.Reconcile(context.Background(), Params{})
	require.NoError(t, err)
	assert.Len(t, result.Errors, len(domain.AllMarketplaces))
}

func TestFeeBreakdowns_RecomputesDeclaredFees(t *testing.T) {
	f := newFixture(t)
	// Booked exactly what Gameflip charges a $35 KEY sale.
	f.addDelivered(t, "good", 35, 4.12, 6)
	// Booked fees that do not add up.
	f.addDelivered(t, "bad", 35, 2.00, 6)

	lines, err := f.collector.FeeBreakdowns(context.Background(), Params{})
	require.NoError(t, err)
	require.Len(t, lines, 2)

	byID := make(map[string]FeeLine)
	for _, l := range lines {
		byID[l.TransactionID] = l
	}

	good := byID["tx-good"]
	assert.False(t, good.Mismatch)
	assert.InDelta(t, 2.80, good.Breakdown.FinalValueFee, 0.001)
	assert.InDelta(t, 1.32, good.Breakdown.PaymentProcessingFee, 0.001)
	assert.InDelta(t, 4.12, good.ExpectedFees, 0.001)

	bad := byID["tx-bad"]
	assert.True(t, bad.Mismatch)
}

func TestGenerateReports_WritesEveryReport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addDelivered(t, "a", 35, 4.12, 6)
	f.addDelivered(t, "b", 50, 2.00, 8)

	require.NoError(t, f.collector.GenerateReports(ctx, Params{}))

	for _, event := range []string{
		"collector.report_revenue_summary",
		"collector.report_fee_analysis",
		"collector.report_payment_status",
		"collector.report_discrepancy",
		"collector.report_payout_schedule",
	} {
		entries, err := f.ledgerStore.GetByEventSince(ctx, event, 0)
		require.NoError(t, err)
		assert.Len(t, entries, 1, event)
	}

	entries, err := f.ledgerStore.GetByEventSince(ctx, "collector.report_revenue_summary", 0)
	require.NoError(t, err)
	assert.Contains(t, entries[0].Payload, `"GAMEFLIP"`)
	assert.Contains(t, entries[0].Payload, `"gross":85`)

	entries, err = f.ledgerStore.GetByEventSince(ctx, "collector.report_payout_schedule", 0)
	require.NoError(t, err)
	for _, m := range domain.AllMarketplaces {
		assert.Contains(t, entries[0].Payload, string(m))
	}
}

func TestProjectPayouts_NextBoundaryPlusDelay(t *testing.T) {
	f := newFixture(t)

	projections := f.collector.ProjectPayouts()
	require.Len(t, projections, len(domain.AllMarketplaces))

	nowMs := testNow.UnixMilli()
	for _, p := range projections {
		sched := payoutSchedule[p.Marketplace]
		periodMs := sched.Cadence.period().Milliseconds()
		boundary := p.NextPayout - sched.Delay.Milliseconds()

		assert.Greater(t, p.NextPayout, nowMs, string(p.Marketplace))
		assert.Zero(t, boundary%periodMs, string(p.Marketplace))
		assert.LessOrEqual(t, boundary-nowMs, periodMs, string(p.Marketplace))
	}
}

func TestScanAnomalies_FeeSpike(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	// Two normal sales around 10-12% and one at 50%.
	f.addDelivered(t, "a", 35, 3.50, 6)
	f.addDelivered(t, "b", 40, 4.80, 8)
	f.addDelivered(t, "c", 30, 15.00, 10)

	// Reconcile everything so the backlog check stays quiet.
	for i, id := range []string{"a", "b", "c"} {
		tx := f.transaction(t, id)
		tx.ReconciledAt = testNow.UnixMilli()
		tx.PaymentRef = fmt.Sprintf("pay-%d", i)
		require.NoError(t, f.transactionStore.Update(ctx, tx))
	}

	anomalies, err := f.collector.ScanAnomalies(ctx, Params{})
	require.NoError(t, err)
	require.Len(t, anomalies, 1)
	assert.Equal(t, "fee_spike", anomalies[0].Kind)
	assert.Contains(t, anomalies[0].Detail, "tx-c")

	entries, err := f.ledgerStore.GetByEventSince(ctx, "collector.anomaly_detected", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestScanAnomalies_UnreconciledBacklog(t *testing.T) {
	f := newFixture(t)
	f.addDelivered(t, "a", 35, 4.12, 6)
	f.addDelivered(t, "b", 40, 4.70, 8)

	anomalies, err := f.collector.ScanAnomalies(context.Background(), Params{})
	require.NoError(t, err)
	require.Len(t, anomalies, 1)
	assert.Equal(t, "unreconciled_backlog", anomalies[0].Kind)
}

func TestScanAnomalies_RaisesWarnAlerts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addDelivered(t, "a", 35, 4.12, 6)
	f.addDelivered(t, "b", 40, 4.70, 8)

	_, err := f.collector.ScanAnomalies(ctx, Params{})
	require.NoError(t, err)

	alerts, err := f.alertStore.GetBySeveritySince(ctx, domain.SeverityWarn, 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "collector", alerts[0].Module)
	assert.Contains(t, alerts[0].Message, "unreconciled_backlog")
}

func TestScanAnomalies_DryRunRaisesNoAlerts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addDelivered(t, "a", 35, 4.12, 6)
	f.addDelivered(t, "b", 40, 4.70, 8)

	anomalies, err := f.collector.ScanAnomalies(ctx, Params{DryRun: true})
	require.NoError(t, err)
	require.Len(t, anomalies, 1)

	alerts, err := f.alertStore.GetBySeveritySince(ctx, domain.SeverityWarn, 0)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}
