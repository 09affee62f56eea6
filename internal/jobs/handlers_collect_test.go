package jobs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/brains"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/collector"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/fees"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/ledger"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage/memory"
)

// A collect pass must surface payment anomalies, not just reconcile
// and report.
func TestCollectHandler_ScansAnomalies(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	transactionStore := memory.NewTransactionStore()
	alertStore := memory.NewAlertStore()
	ledgerStore := memory.NewLedgerStore()

	// Two settled sales, neither reconciled: a full backlog.
	for i := 0; i < 2; i++ {
		require.NoError(t, transactionStore.Insert(ctx, &domain.Transaction{
			TransactionID: fmt.Sprintf("tx-backlog-%d", i),
			InventoryID:   fmt.Sprintf("inv-backlog-%d", i),
			Marketplace:   domain.MarketplaceGameflip,
			SalePrice:     35,
			Fees:          4.12,
			Net:           30.88,
			Status:        domain.TransactionDelivered,
			SoldAt:        now.Add(-6 * time.Hour).UnixMilli(),
			CreatedAt:     now.Add(-6 * time.Hour).UnixMilli(),
		}))
	}

	h := &CollectHandler{
		Collector: collector.New(collector.Options{
			TransactionStore: transactionStore,
			InventoryStore:   memory.NewInventoryStore(),
			AlertStore:       alertStore,
			Payments:         collector.NewFakePaymentSource(),
			Calculator:       fees.NewCalculator(),
			Ledger:           ledger.NewWriter(ledgerStore, nil),
		}),
	}
	require.NoError(t, h.Handle(ctx, Job{Progress: noProgress}))

	entries, err := ledgerStore.GetByEventSince(ctx, "collector.anomaly_detected", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Payload, "unreconciled_backlog")

	alerts, err := alertStore.GetBySeveritySince(ctx, domain.SeverityWarn, 0)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

// An experiment pass must publish what the completed experiments have
// taught, alongside analysis and proposal.
func TestExperimentHandler_PublishesInsights(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	experimentStore := memory.NewExperimentStore()
	ledgerStore := memory.NewLedgerStore()

	started := now.Add(-30 * 24 * time.Hour).UnixMilli()
	for i, lift := range []float64{0.10, 0.20} {
		require.NoError(t, experimentStore.Insert(ctx, &domain.Experiment{
			ExperimentID: fmt.Sprintf("exp-done-%d", i),
			Type:         domain.ExperimentPrice,
			Name:         "premium vs standard pricing",
			Status:       domain.ExperimentComplete,
			Winner:       domain.WinnerB,
			Lift:         lift,
			StartedAt:    started,
			CompletedAt:  started,
			CreatedAt:    started,
		}))
	}

	h := &ExperimentHandler{
		Brains: brains.New(brains.Options{
			ExperimentStore: experimentStore,
			ListingStore:    memory.NewListingStore(),
			Ledger:          ledger.NewWriter(ledgerStore, nil),
		}),
	}
	require.NoError(t, h.Handle(ctx, Job{Progress: noProgress}))

	entries, err := ledgerStore.GetByEventSince(ctx, "brains.learning_insights", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Payload, "pricing strategy")
}
