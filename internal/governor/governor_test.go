package governor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/ledger"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/risk"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage/memory"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	governor         *Governor
	transactionStore *memory.TransactionStore
	inventoryStore   *memory.InventoryStore
	listingStore     *memory.ListingStore
	supplierStore    *memory.SupplierStore
	alertStore       *memory.AlertStore
	controlStore     *memory.ControlStore
	ledgerStore      *memory.LedgerStore
	riskMonitor      *risk.Monitor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		transactionStore: memory.NewTransactionStore(),
		inventoryStore:   memory.NewInventoryStore(),
		listingStore:     memory.NewListingStore(),
		supplierStore:    memory.NewSupplierStore(),
		alertStore:       memory.NewAlertStore(),
		controlStore:     memory.NewControlStore(),
		ledgerStore:      memory.NewLedgerStore(),
		riskMonitor:      risk.NewMonitor(),
	}
	f.governor = New(Options{
		TransactionStore: f.transactionStore,
		InventoryStore:   f.inventoryStore,
		ListingStore:     f.listingStore,
		SupplierStore:    f.supplierStore,
		AlertStore:       f.alertStore,
		ControlStore:     f.controlStore,
		RiskMonitor:      f.riskMonitor,
		Ledger:           ledger.NewWriter(f.ledgerStore, nil),
	}).WithClock(func() time.Time { return testNow })
	return f
}

// healthyObs passes every threshold and performance check.
func healthyObs() *Observations {
	return &Observations{
		DisputeRate:           0.005,
		ChargebackRate:        0.002,
		CashFlowRatio:         1.8,
		InventoryTurnoverDays: 12,
		Satisfaction:          4.6,
		APIErrorRate:          0.01,
		ActiveListings:        40,
		DailySalesVolume:      800,
		AvgMargin:             0.25,
		InventoryValue:        3000,
		ResponseTimeMs:        300,
		QueueDepth:            5,
	}
}

func TestRun_HealthySystemTakesNoAction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.controlStore.SetEngineState(ctx, domain.EngineRunning))

	result, err := f.governor.Run(ctx, Params{Observed: healthyObs()})
	require.NoError(t, err)
	assert.Empty(t, result.Triggered)
	assert.Zero(t, result.Throttled)
	assert.False(t, result.Paused)
	assert.Zero(t, result.Alerts)

	for _, p := range result.Performance {
		assert.Equal(t, HealthHealthy, p.Health, p.Metric)
	}

	throttles, err := f.controlStore.GetThrottles(ctx)
	require.NoError(t, err)
	assert.Empty(t, throttles)
}

func TestRun_CriticalAlertIffThresholdTriggers(t *testing.T) {
	cases := []struct {
		name         string
		mutate       func(o *Observations)
		wantCritical bool
	}{
		{"dispute rate over bound", func(o *Observations) { o.DisputeRate = 0.03 }, true},
		{"dispute rate at bound", func(o *Observations) { o.DisputeRate = 0.02 }, false},
		{"api error rate over bound", func(o *Observations) { o.APIErrorRate = 0.08 }, true},
		{"chargeback rate over bound", func(o *Observations) { o.ChargebackRate = 0.015 }, true},
		{"satisfaction below bound is only WARN", func(o *Observations) { o.Satisfaction = 3.5 }, false},
		{"satisfaction at bound", func(o *Observations) { o.Satisfaction = 4.0 }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			require.NoError(t, f.controlStore.SetEngineState(ctx, domain.EngineRunning))

			obs := healthyObs()
			tc.mutate(obs)

			_, err := f.governor.Run(ctx, Params{Observed: obs})
			require.NoError(t, err)

			critical, err := f.alertStore.GetBySeveritySince(ctx, domain.SeverityCritical, 0)
			require.NoError(t, err)
			if tc.wantCritical {
				assert.NotEmpty(t, critical)
			} else {
				assert.Empty(t, critical)
			}
		})
	}
}

func TestRun_DisputeRateThrottlesMerchantHard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.controlStore.SetEngineState(ctx, domain.EngineRunning))

	obs := healthyObs()
	obs.DisputeRate = 0.05

	result, err := f.governor.Run(ctx, Params{Observed: obs})
	require.NoError(t, err)
	assert.Contains(t, result.Triggered, "dispute rate")
	assert.Equal(t, 1, result.Throttled)

	throttles, err := f.controlStore.GetThrottles(ctx)
	require.NoError(t, err)
	require.Len(t, throttles, 1)
	assert.Equal(t, "merchant", throttles[0].Module)
	assert.Equal(t, 0.10, throttles[0].Capacity, "critical severity throttles to 10%")
}

func TestRun_LowCashFlowThrottlesBuyerSoft(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.controlStore.SetEngineState(ctx, domain.EngineRunning))

	obs := healthyObs()
	obs.CashFlowRatio = 0.9

	result, err := f.governor.Run(ctx, Params{Observed: obs})
	require.NoError(t, err)
	assert.Contains(t, result.Triggered, "cash flow ratio")

	throttles, err := f.controlStore.GetThrottles(ctx)
	require.NoError(t, err)
	require.Len(t, throttles, 1)
	assert.Equal(t, "buyer", throttles[0].Module)
	assert.Equal(t, 0.50, throttles[0].Capacity, "WARN severity throttles to 50%")
}

func TestRun_ChargebacksPauseTheEngine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.controlStore.SetEngineState(ctx, domain.EngineRunning))

	obs := healthyObs()
	obs.ChargebackRate = 0.02

	result, err := f.governor.Run(ctx, Params{Observed: obs})
	require.NoError(t, err)
	assert.True(t, result.Paused)

	state, err := f.controlStore.GetEngineState(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.EnginePaused, state)

	entries, err := f.ledgerStore.GetByEventSince(ctx, "governor.engine_paused", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRun_PauseOnStoppedEngineIsANoOp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	obs := healthyObs()
	obs.ChargebackRate = 0.02

	result, err := f.governor.Run(ctx, Params{Observed: obs})
	require.NoError(t, err)
	assert.False(t, result.Paused)
	assert.Empty(t, result.Errors)

	state, err := f.controlStore.GetEngineState(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.EngineStopped, state)
}

func TestRun_EmergencyModeBlanketThrottle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.controlStore.SetEngineState(ctx, domain.EngineRunning))

	result, err := f.governor.Run(ctx, Params{Observed: healthyObs(), EmergencyMode: true})
	require.NoError(t, err)
	assert.Empty(t, result.Triggered)
	assert.Equal(t, 1, result.Throttled)

	throttles, err := f.controlStore.GetThrottles(ctx)
	require.NoError(t, err)
	require.Len(t, throttles, 1)
	assert.Equal(t, "all", throttles[0].Module)
	assert.Equal(t, 0.10, throttles[0].Capacity)
}

func TestRun_PerformanceHealthRatios(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.controlStore.SetEngineState(ctx, domain.EngineRunning))

	obs := healthyObs()
	obs.ActiveListings = 4     // 40% of 10: critical
	obs.DailySalesVolume = 70  // 70% of 100: warning
	obs.ResponseTimeMs = 5000  // 2000/5000 = 40%: critical
	obs.QueueDepth = 110       // 100/110 = 91%: healthy

	result, err := f.governor.Run(ctx, Params{Observed: obs})
	require.NoError(t, err)

	byName := make(map[string]Health)
	for _, p := range result.Performance {
		byName[p.Metric] = p.Health
	}
	assert.Equal(t, HealthCritical, byName["active listings"])
	assert.Equal(t, HealthWarning, byName["daily sales volume"])
	assert.Equal(t, HealthCritical, byName["response time ms"])
	assert.Equal(t, HealthHealthy, byName["queue depth"])
}

func TestRun_ComplianceFindings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.controlStore.SetEngineState(ctx, domain.EngineRunning))

	// An expired key still marked sellable.
	require.NoError(t, f.inventoryStore.Insert(ctx, &domain.Inventory{
		InventoryID: "inv-expired",
		SKU:         "sku-expired",
		Kind:        domain.KindGiftCard,
		Cost:        25,
		Source:      domain.SourceG2A,
		Status:      domain.InventoryAvailable,
		AcquiredAt:  testNow.Add(-40 * 24 * time.Hour).UnixMilli(),
		ExpiresAt:   testNow.Add(-24 * time.Hour).UnixMilli(),
	}))

	// A recent purchase from a blacklisted supplier.
	require.NoError(t, f.supplierStore.Insert(ctx, &domain.Supplier{
		SupplierID:  "sup-1",
		Name:        "shadymart",
		Source:      domain.SourceKinguin,
		Blacklisted: true,
	}))
	require.NoError(t, f.inventoryStore.Insert(ctx, &domain.Inventory{
		InventoryID: "inv-shady",
		SKU:         "sku-shady",
		Kind:        domain.KindKey,
		Cost:        10,
		Source:      domain.SourceKinguin,
		SupplierID:  "sup-1",
		Status:      domain.InventoryAvailable,
		AcquiredAt:  testNow.Add(-48 * time.Hour).UnixMilli(),
	}))

	result, err := f.governor.Run(ctx, Params{Observed: healthyObs()})
	require.NoError(t, err)

	checks := make(map[string]bool)
	for _, c := range result.Compliance {
		checks[c.Check] = true
	}
	assert.True(t, checks["expired inventory"])
	assert.True(t, checks["blacklisted suppliers"])

	violations, err := f.ledgerStore.GetByEventSince(ctx, "governor.compliance_violation", 0)
	require.NoError(t, err)
	assert.Len(t, violations, len(result.Compliance))

	// Compliance findings warn; they never escalate to CRITICAL alone.
	critical, err := f.alertStore.GetBySeveritySince(ctx, domain.SeverityCritical, 0)
	require.NoError(t, err)
	assert.Empty(t, critical)
}

func TestRun_DerivedObservationsFromStores(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.controlStore.SetEngineState(ctx, domain.EngineRunning))

	// 10 recent transactions: 9 delivered, 1 disputed.
	for i := 0; i < 10; i++ {
		invID := fmt.Sprintf("inv-%d", i)
		require.NoError(t, f.inventoryStore.Insert(ctx, &domain.Inventory{
			InventoryID: invID,
			SKU:         "sku-" + invID,
			Kind:        domain.KindKey,
			Cost:        20,
			Source:      domain.SourceG2A,
			Status:      domain.InventoryDelivered,
			AcquiredAt:  testNow.Add(-72 * time.Hour).UnixMilli(),
			DeliveredAt: testNow.Add(-24 * time.Hour).UnixMilli(),
		}))
		status := domain.TransactionDelivered
		if i == 9 {
			status = domain.TransactionDisputed
		}
		require.NoError(t, f.transactionStore.Insert(ctx, &domain.Transaction{
			TransactionID: fmt.Sprintf("tx-%d", i),
			InventoryID:   invID,
			Marketplace:   domain.MarketplaceGameflip,
			SalePrice:     35,
			Fees:          4,
			Net:           31,
			Status:        status,
			SoldAt:        testNow.Add(-36 * time.Hour).UnixMilli(),
			CreatedAt:     testNow.Add(-36 * time.Hour).UnixMilli(),
		}))
	}

	obs, err := f.governor.observe(ctx)
	require.NoError(t, err)

	assert.InDelta(t, 0.10, obs.DisputeRate, 0.001, "1 dispute out of 10")
	assert.Zero(t, obs.ChargebackRate)
	assert.InDelta(t, 2.0, obs.InventoryTurnoverDays, 0.01)
	assert.InDelta(t, (31.0-20.0)/35.0, obs.AvgMargin, 0.001)
	// 9 delivered at net 31 against $200 of recent spend.
	assert.InDelta(t, 279.0/200.0, obs.CashFlowRatio, 0.001)
}

func TestRun_DryRunTakesNoActions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.controlStore.SetEngineState(ctx, domain.EngineRunning))

	obs := healthyObs()
	obs.DisputeRate = 0.05
	obs.ChargebackRate = 0.02

	result, err := f.governor.Run(ctx, Params{Observed: obs, DryRun: true})
	require.NoError(t, err)
	assert.Len(t, result.Triggered, 2)
	assert.Zero(t, result.Throttled)
	assert.False(t, result.Paused)
	assert.Zero(t, result.Alerts)

	state, err := f.controlStore.GetEngineState(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.EngineRunning, state)
}

func TestShouldTriggerDirections(t *testing.T) {
	exceed := Threshold{Bound: 0.02, Direction: DirectionExceed}
	assert.True(t, exceed.ShouldTrigger(0.03))
	assert.False(t, exceed.ShouldTrigger(0.02))
	assert.False(t, exceed.ShouldTrigger(0.01))

	below := Threshold{Bound: 4.0, Direction: DirectionFallBelow}
	assert.True(t, below.ShouldTrigger(3.9))
	assert.False(t, below.ShouldTrigger(4.0))
	assert.False(t, below.ShouldTrigger(4.5))
}

// Dispute-heavy outcomes must raise the monitor scores that the
// evaluator and allocator read; a venue nobody has reported on scores
// zero until the first run.
func TestRun_FeedsRiskMonitor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.Zero(t, f.riskMonitor.MarketplaceScore(domain.MarketplaceEbay))
	require.Zero(t, f.riskMonitor.CategoryScore(domain.KindKey))

	for i := 0; i < 10; i++ {
		invID := fmt.Sprintf("inv-risk-%d", i)
		require.NoError(t, f.inventoryStore.Insert(ctx, &domain.Inventory{
			InventoryID: invID,
			SKU:         "sku-risk",
			Kind:        domain.KindKey,
			Cost:        20,
			Source:      domain.SourceG2A,
			Policy:      domain.DeliveryInstant,
			Status:      domain.InventoryDelivered,
			AcquiredAt:  testNow.Add(-72 * time.Hour).UnixMilli(),
			DeliveredAt: testNow.Add(-46 * time.Hour).UnixMilli(),
		}))

		status := domain.TransactionDelivered
		deliveredAt := testNow.Add(-46 * time.Hour).UnixMilli()
		if i < 3 {
			status = domain.TransactionDisputed
			deliveredAt = 0
		}
		require.NoError(t, f.transactionStore.Insert(ctx, &domain.Transaction{
			TransactionID: fmt.Sprintf("tx-risk-%d", i),
			InventoryID:   invID,
			Marketplace:   domain.MarketplaceEbay,
			SalePrice:     35,
			Net:           30,
			Status:        status,
			SoldAt:        testNow.Add(-48 * time.Hour).UnixMilli(),
			DeliveredAt:   deliveredAt,
		}))
	}

	_, err := f.governor.Run(ctx, Params{Observed: healthyObs()})
	require.NoError(t, err)

	// A 30% dispute rate is far over every venue bound.
	assert.Greater(t, f.riskMonitor.MarketplaceScore(domain.MarketplaceEbay), 0.0)
	assert.Greater(t, f.riskMonitor.CategoryScore(domain.KindKey), 0.0)
}
