package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/buyer"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/evaluator"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/fees"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/hunter"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/ledger"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/marketplace"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/reprice"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/risk"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage/memory"
)

func noProgress(float64) {}

// A candidate that clears the package-default margin bar must still be
// rejected when the operator configures a stricter one.
func TestEvaluateHandler_AppliesConfiguredCriteria(t *testing.T) {
	ctx := context.Background()

	candidateStore := memory.NewCandidateStore()
	require.NoError(t, candidateStore.Insert(ctx, &domain.DealCandidate{
		CandidateID:     "cand-cfg",
		Source:          domain.SourceCDKeys,
		SKU:             "sku-cfg",
		Kind:            domain.KindKey,
		Title:           "Steam Key",
		Cost:            20,
		EstimatedResale: 35,
		NetMargin:       0.31,
		Confidence:      0.9,
		SellerScore:     4.5,
		SellThroughDays: 5,
		Quantity:        1,
		Status:          domain.CandidatePending,
		DiscoveredAt:    time.Now().UnixMilli(),
	}))

	h := &EvaluateHandler{
		Evaluator: evaluator.New(evaluator.Options{
			CandidateStore: candidateStore,
			SupplierStore:  memory.NewSupplierStore(),
			Calculator:     fees.NewCalculator(),
			RiskMonitor:    risk.NewMonitor(),
			Ledger:         ledger.NewWriter(memory.NewLedgerStore(), nil),
		}),
		Criteria: &evaluator.Criteria{
			MinNetMargin:       0.50,
			MinConfidence:      0.60,
			MinSellerScore:     3.5,
			MaxSellThroughDays: 14,
			RiskCeiling:        50,
		},
	}
	require.NoError(t, h.Handle(ctx, Job{Capacity: 1, Progress: noProgress}))

	got, err := candidateStore.GetByID(ctx, "cand-cfg")
	require.NoError(t, err)
	assert.Equal(t, domain.CandidateRejected, got.Status, "notes: %s", got.Notes)
}

// The configured per-batch spend cap must reach the buyer when the
// payload names no cap of its own.
func TestBuyHandler_AppliesConfiguredSpendCap(t *testing.T) {
	ctx := context.Background()

	source := &stubSource{deal: &hunter.Deal{
		SKU:             "sku-cap",
		Kind:            domain.KindKey,
		Cost:            20,
		EstimatedResale: 35,
		Quantity:        1,
		InstantDelivery: true,
	}}

	candidateStore := memory.NewCandidateStore()
	inventoryStore := memory.NewInventoryStore()
	budgetStore := memory.NewBudgetStore()
	require.NoError(t, budgetStore.SetAllocated(ctx, domain.KindKey, 1000))
	require.NoError(t, candidateStore.Insert(ctx, &domain.DealCandidate{
		CandidateID:     "cand-cap",
		Source:          domain.SourceCDKeys,
		SKU:             "sku-cap",
		Kind:            domain.KindKey,
		Cost:            20,
		EstimatedResale: 35,
		NetMargin:       0.31,
		Confidence:      0.9,
		Quantity:        1,
		Status:          domain.CandidateApproved,
		DiscoveredAt:    time.Now().UnixMilli(),
	}))

	h := &BuyHandler{
		Buyer: buyer.New(buyer.Options{
			Clients:        []hunter.SourceClient{source},
			CandidateStore: candidateStore,
			InventoryStore: inventoryStore,
			BudgetStore:    budgetStore,
			Ledger:         ledger.NewWriter(memory.NewLedgerStore(), nil),
		}).WithSleep(func(time.Duration) {}),
		BatchSize: 20,
		// Below the candidate's $21 worst-case cost: nothing may be bought.
		MaxSpend: 10,
	}
	require.NoError(t, h.Handle(ctx, Job{Capacity: 1, Progress: noProgress}))

	assert.Zero(t, source.purchases)

	got, err := candidateStore.GetByID(ctx, "cand-cap")
	require.NoError(t, err)
	assert.Equal(t, domain.CandidateApproved, got.Status, "skipped candidate stays APPROVED")

	available, err := inventoryStore.GetByStatus(ctx, domain.InventoryAvailable)
	require.NoError(t, err)
	assert.Empty(t, available)
}

// A tight configured decrease cap must suppress a price drop the
// package default would have taken.
func TestRepriceHandler_AppliesConfiguredStepCap(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	cfg := marketplace.DefaultConfigs()[domain.MarketplaceGameflip]
	cfg.RequestsPerMinute = 600000
	adapter := marketplace.NewFakeAdapter(domain.MarketplaceGameflip, 5)

	listingStore := memory.NewListingStore()
	inventoryStore := memory.NewInventoryStore()
	prices := reprice.NewFakePriceSource()

	require.NoError(t, inventoryStore.Insert(ctx, &domain.Inventory{
		InventoryID: "inv-step",
		SKU:         "sku-step",
		Kind:        domain.KindKey,
		Title:       "Elden Ring",
		Cost:        20,
		Source:      domain.SourceG2A,
		Policy:      domain.DeliveryInstant,
		Status:      domain.InventoryAvailable,
	}))
	variantID, err := adapter.CreateListing(ctx, marketplace.CreateRequest{
		SKU: "sku-step", Kind: domain.KindKey, Title: "Elden Ring", Price: 31,
	})
	require.NoError(t, err)
	require.NoError(t, listingStore.Insert(ctx, &domain.Listing{
		ListingID:   "lst-step",
		InventoryID: "inv-step",
		Marketplace: domain.MarketplaceGameflip,
		SKU:         "sku-step",
		Kind:        domain.KindKey,
		Title:       "Elden Ring",
		Price:       31,
		Floor:       28,
		Ceiling:     47,
		Views:       50,
		CTR:         0.02,
		Status:      domain.ListingActive,
		VariantID:   variantID,
		ListedAt:    now.Add(-24 * time.Hour).UnixMilli(),
		UpdatedAt:   now.Add(-12 * time.Hour).UnixMilli(),
	}))

	// Competitors sit at $27: the 15% package default would pull the
	// $31 ask down, the configured 1% cap rounds the move away.
	prices.Set(domain.MarketplaceGameflip, domain.KindKey, reprice.CompetitorStats{
		Lowest: 25, Average: 27, Median: 27, Highest: 33, SampleSize: 8,
	})

	h := &RepriceHandler{
		Repricer: reprice.New(reprice.Options{
			Clients:        []*marketplace.Client{marketplace.NewClient(cfg, adapter, nil)},
			ListingStore:   listingStore,
			InventoryStore: inventoryStore,
			AlertStore:     memory.NewAlertStore(),
			Prices:         prices,
			Calculator:     fees.NewCalculator(),
			Ledger:         ledger.NewWriter(memory.NewLedgerStore(), nil),
		}),
		Strategy:         reprice.StrategyCompetitive,
		MaxIncreasePct:   0.10,
		MaxDecreasePct:   0.01,
		MaxChangeDollars: 50,
	}
	require.NoError(t, h.Handle(ctx, Job{Capacity: 1, Progress: noProgress}))

	got, err := listingStore.GetByID(ctx, "lst-step")
	require.NoError(t, err)
	assert.Equal(t, 31.0, got.Price)
}
