package evaluator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/fees"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/ledger"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/risk"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage/memory"
)

type fixture struct {
	evaluator      *Evaluator
	candidateStore *memory.CandidateStore
	supplierStore  *memory.SupplierStore
	monitor        *risk.Monitor
	ledgerStore    *memory.LedgerStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		candidateStore: memory.NewCandidateStore(),
		supplierStore:  memory.NewSupplierStore(),
		monitor:        risk.NewMonitor(),
		ledgerStore:    memory.NewLedgerStore(),
	}
	f.evaluator = New(Options{
		CandidateStore: f.candidateStore,
		SupplierStore:  f.supplierStore,
		Calculator:     fees.NewCalculator(),
		RiskMonitor:    f.monitor,
		Ledger:         ledger.NewWriter(f.ledgerStore, nil),
	})
	return f
}

// goodCandidate satisfies every default criterion.
func goodCandidate(id string) *domain.DealCandidate {
	return &domain.DealCandidate{
		CandidateID:     id,
		Source:          domain.SourceG2A,
		SKU:             "sku-" + id,
		Kind:            domain.KindKey,
		Title:           "Elden Ring Steam Key",
		Cost:            20,
		EstimatedResale: 35,
		EstimatedFees:   4.12,
		NetMargin:       0.30,
		Confidence:      0.8,
		SellerScore:     4,
		SellThroughDays: 7,
		Quantity:        1,
		Status:          domain.CandidatePending,
	}
}

func (f *fixture) insert(t *testing.T, candidates ...*domain.DealCandidate) {
	t.Helper()
	for _, c := range candidates {
		require.NoError(t, f.candidateStore.Insert(context.Background(), c))
	}
}

func (f *fixture) get(t *testing.T, id string) *domain.DealCandidate {
	t.Helper()
	c, err := f.candidateStore.GetByID(context.Background(), id)
	require.NoError(t, err)
	return c
}

func TestEvaluateBatch_ApprovesProfitableCandidate(t *testing.T) {
	f := newFixture(t)
	f.insert(t, goodCandidate("c1"))

	result, err := f.evaluator.EvaluateBatch(context.Background(), BatchParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Evaluated)
	assert.Equal(t, 1, result.Approved)

	c := f.get(t, "c1")
	assert.Equal(t, domain.CandidateApproved, c.Status)
	assert.Equal(t, "all criteria met", c.Notes)
	assert.NotZero(t, c.ProcessedAt)
}

func TestEvaluateBatch_RejectsThinMarginRegardlessOfOtherFields(t *testing.T) {
	f := newFixture(t)
	c := goodCandidate("c1")
	c.NetMargin = 0.05
	f.insert(t, c)

	result, err := f.evaluator.EvaluateBatch(context.Background(), BatchParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rejected)

	got := f.get(t, "c1")
	assert.Equal(t, domain.CandidateRejected, got.Status)
	assert.Contains(t, got.Notes, "net margin")
}

func TestEvaluateBatch_SellerScoreSoftBand(t *testing.T) {
	f := newFixture(t)

	soft := goodCandidate("soft")
	soft.SellerScore = 3.0 // below 3.5 but above the 2.8 hard floor
	hard := goodCandidate("hard")
	hard.SellerScore = 2.0
	f.insert(t, soft, hard)

	_, err := f.evaluator.EvaluateBatch(context.Background(), BatchParams{})
	require.NoError(t, err)

	gotSoft := f.get(t, "soft")
	assert.Equal(t, domain.CandidateApproved, gotSoft.Status)
	assert.Contains(t, gotSoft.Notes, "warning: seller score")

	gotHard := f.get(t, "hard")
	assert.Equal(t, domain.CandidateRejected, gotHard.Status)
	assert.Contains(t, gotHard.Notes, "hard floor")
}

func TestEvaluateBatch_SellThroughSoftBand(t *testing.T) {
	f := newFixture(t)

	soft := goodCandidate("soft")
	soft.SellThroughDays = 16 // above 14, inside 14/0.8 = 17.5
	hard := goodCandidate("hard")
	hard.SellThroughDays = 25
	f.insert(t, soft, hard)

	_, err := f.evaluator.EvaluateBatch(context.Background(), BatchParams{})
	require.NoError(t, err)

	assert.Equal(t, domain.CandidateApproved, f.get(t, "soft").Status)
	assert.Equal(t, domain.CandidateRejected, f.get(t, "hard").Status)
}

func TestEvaluateBatch_RejectsBlacklistedSource(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.supplierStore.Insert(context.Background(), &domain.Supplier{
		SupplierID:  "sup-1",
		Name:        "g2a",
		Source:      domain.SourceG2A,
		Blacklisted: true,
	}))
	f.insert(t, goodCandidate("c1"))

	_, err := f.evaluator.EvaluateBatch(context.Background(), BatchParams{})
	require.NoError(t, err)

	got := f.get(t, "c1")
	assert.Equal(t, domain.CandidateRejected, got.Status)
	assert.Contains(t, got.Notes, "blacklisted")
}

func TestEvaluateBatch_RejectsWhenRecomputedProfitNotPositive(t *testing.T) {
	f := newFixture(t)
	c := goodCandidate("c1")
	// Naive margin looks fine, but fees eat the spread once recomputed.
	c.Cost = 33
	c.EstimatedResale = 35
	c.NetMargin = 0.25 // stale scanner estimate
	f.insert(t, c)

	_, err := f.evaluator.EvaluateBatch(context.Background(), BatchParams{})
	require.NoError(t, err)

	got := f.get(t, "c1")
	assert.Equal(t, domain.CandidateRejected, got.Status)
	assert.Contains(t, got.Notes, "not positive")
}

func TestEvaluateBatch_RejectsUnsellableCategory(t *testing.T) {
	// A custom table where nothing carries KEY.
	calc := fees.NewCalculatorWithTable(map[domain.Marketplace]fees.FeeStructure{})
	f := newFixture(t)
	f.evaluator = New(Options{
		CandidateStore: f.candidateStore,
		SupplierStore:  f.supplierStore,
		Calculator:     calc,
		RiskMonitor:    f.monitor,
		Ledger:         ledger.NewWriter(f.ledgerStore, nil),
	})
	f.insert(t, goodCandidate("c1"))

	_, err := f.evaluator.EvaluateBatch(context.Background(), BatchParams{})
	require.NoError(t, err)
	assert.Contains(t, f.get(t, "c1").Notes, "no marketplace supports")
}

func TestEvaluateBatch_RiskCeiling(t *testing.T) {
	f := newFixture(t)

	// Saturate every component so both category and marketplace profiles
	// score 100 and the 40/60 blend lands far above the 75 hard line.
	terrible := risk.Metrics{
		DisputeRate30d:    0.10,
		RefundRate30d:     0.20,
		ChargebackRate30d: 0.05,
		AvgDeliveryHours:  96,
		SellerPerformance: 0,
	}
	for _, m := range domain.AllMarketplaces {
		f.monitor.UpdateMarketplace(m, terrible)
	}
	f.monitor.UpdateCategory(domain.KindKey, terrible)

	f.insert(t, goodCandidate("c1"))
	_, err := f.evaluator.EvaluateBatch(context.Background(), BatchParams{})
	require.NoError(t, err)

	got := f.get(t, "c1")
	assert.Equal(t, domain.CandidateRejected, got.Status)
	assert.Contains(t, got.Notes, "risk score")
	assert.Greater(t, got.RiskScore, 75.0)
}

func TestEvaluateBatch_IdempotentOverDecidedCandidates(t *testing.T) {
	f := newFixture(t)
	f.insert(t, goodCandidate("c1"))

	first, err := f.evaluator.EvaluateBatch(context.Background(), BatchParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Evaluated)

	second, err := f.evaluator.EvaluateBatch(context.Background(), BatchParams{})
	require.NoError(t, err)
	assert.Zero(t, second.Evaluated, "decided candidates are no longer eligible")
	assert.Equal(t, domain.CandidateApproved, f.get(t, "c1").Status)
}

func TestEvaluateBatch_DryRunMutatesNothing(t *testing.T) {
	f := newFixture(t)
	f.insert(t, goodCandidate("c1"))

	result, err := f.evaluator.EvaluateBatch(context.Background(), BatchParams{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Approved)

	got := f.get(t, "c1")
	assert.Equal(t, domain.CandidatePending, got.Status)
	assert.Empty(t, got.Notes)
	assert.Zero(t, got.ProcessedAt)
}

func TestEvaluateBatch_WritesBatchSummary(t *testing.T) {
	f := newFixture(t)
	f.insert(t, goodCandidate("c1"))

	_, err := f.evaluator.EvaluateBatch(context.Background(), BatchParams{})
	require.NoError(t, err)

	entries, err := f.ledgerStore.GetByEventSince(context.Background(), "evaluator.batch_completed", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "evaluator", entries[0].Actor)
	assert.True(t, strings.Contains(entries[0].Payload, `"approved":1`))
}
