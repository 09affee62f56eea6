package hunter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/fees"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/ledger"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage/memory"
)

func newTestScanner(t *testing.T, clients ...SourceClient) (*Scanner, *memory.CandidateStore, *memory.LedgerStore) {
	t.Helper()

	candidateStore := memory.NewCandidateStore()
	ledgerStore := memory.NewLedgerStore()

	s := NewScanner(ScannerOptions{
		Clients:        clients,
		CandidateStore: candidateStore,
		Calculator:     fees.NewCalculator(),
		Ledger:         ledger.NewWriter(ledgerStore, nil),
	})
	return s, candidateStore, ledgerStore
}

func fastFake(seed int64) *FakeSource {
	f := NewFakeSource(domain.SourceG2A,
		[]domain.InventoryKind{domain.KindKey, domain.KindGiftCard}, 0.8, seed)
	f.rpm = 600000
	return f
}

func TestScan_InsertsPendingCandidates(t *testing.T) {
	ctx := context.Background()
	scanner, candidateStore, ledgerStore := newTestScanner(t, fastFake(7))

	result, err := scanner.Scan(ctx, ScanParams{
		Source:       domain.SourceG2A,
		MinNetMargin: 0.05,
	})
	require.NoError(t, err)
	assert.Greater(t, result.Discovered, 0)
	assert.Greater(t, result.Inserted, 0)

	pending, err := candidateStore.GetByStatus(ctx, domain.CandidatePending, 0)
	require.NoError(t, err)
	require.Len(t, pending, result.Inserted)

	for _, c := range pending {
		assert.Equal(t, domain.SourceG2A, c.Source)
		assert.GreaterOrEqual(t, c.NetMargin, 0.05)
		assert.Equal(t, 0.8, c.Confidence, "confidence seeded by the source reliability prior")
		assert.NotEmpty(t, c.Title)
		assert.Greater(t, c.EstimatedFees, 0.0)
	}

	entries, err := ledgerStore.GetByEventSince(ctx, "hunter.scan_completed", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestScan_RespectsCategoryRestriction(t *testing.T) {
	ctx := context.Background()
	scanner, candidateStore, _ := newTestScanner(t, fastFake(7))

	// DOMAIN is not carried by this source; only GIFTCARD should come back.
	_, err := scanner.Scan(ctx, ScanParams{
		Source:     domain.SourceG2A,
		Categories: []domain.InventoryKind{domain.KindGiftCard, domain.KindDomain},
	})
	require.NoError(t, err)

	pending, err := candidateStore.GetByStatus(ctx, domain.CandidatePending, 0)
	require.NoError(t, err)
	require.NotEmpty(t, pending)
	for _, c := range pending {
		assert.Equal(t, domain.KindGiftCard, c.Kind)
	}
}

func TestScan_MaxItemsTruncatesByMarginDesc(t *testing.T) {
	ctx := context.Background()
	scanner, candidateStore, _ := newTestScanner(t, fastFake(7))

	result, err := scanner.Scan(ctx, ScanParams{
		Source:   domain.SourceG2A,
		MaxItems: 2,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, result.Inserted, 2)

	pending, err := candidateStore.GetByStatus(ctx, domain.CandidatePending, 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(pending), 2)
}

// fixedSource replays the same deal list on every fetch, so a rescan
// rediscovers identical SKUs at identical cost.
type fixedSource struct {
	*FakeSource
	deals []*Deal
}

func (f *fixedSource) FetchDeals(_ context.Context, kind domain.InventoryKind, _ int) ([]*Deal, error) {
	var out []*Deal
	for _, d := range f.deals {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out, nil
}

func TestScan_DeduplicatesRediscoveredDeals(t *testing.T) {
	ctx := context.Background()
	src := &fixedSource{
		FakeSource: fastFake(7),
		deals: []*Deal{
			{SKU: "G2A-KEY-0001", Kind: domain.KindKey, Title: "Elden Ring Steam Key", Cost: 18.50, EstimatedResale: 34.00, Quantity: 1},
			{SKU: "G2A-KEY-0002", Kind: domain.KindKey, Title: "Cyberpunk 2077 GOG Key", Cost: 12.00, EstimatedResale: 26.50, Quantity: 2},
		},
	}
	scanner, _, _ := newTestScanner(t, src)

	first, err := scanner.Scan(ctx, ScanParams{Source: domain.SourceG2A})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Inserted)
	assert.Zero(t, first.Duplicates)

	second, err := scanner.Scan(ctx, ScanParams{Source: domain.SourceG2A})
	require.NoError(t, err)
	assert.Zero(t, second.Inserted)
	assert.Equal(t, 2, second.Duplicates)
}

func TestScan_DryRunPersistsNothing(t *testing.T) {
	ctx := context.Background()
	scanner, candidateStore, _ := newTestScanner(t, fastFake(7))

	result, err := scanner.Scan(ctx, ScanParams{Source: domain.SourceG2A, DryRun: true})
	require.NoError(t, err)
	assert.Zero(t, result.Inserted)

	pending, err := candidateStore.GetByStatus(ctx, domain.CandidatePending, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestScan_UnknownSource(t *testing.T) {
	scanner, _, _ := newTestScanner(t, fastFake(7))

	_, err := scanner.Scan(context.Background(), ScanParams{Source: domain.SupplySource("NOPE")})
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestScan_EmptySourceScansEverySource(t *testing.T) {
	ctx := context.Background()

	second := NewFakeSource(domain.SourceCDKeys,
		[]domain.InventoryKind{domain.KindKey}, 0.9, 11)
	second.rpm = 600000
	scanner, candidateStore, ledgerStore := newTestScanner(t, fastFake(7), second)

	// The scheduler enqueues hunts with no source named; that must sweep
	// every configured supplier, not fail.
	result, err := scanner.Scan(ctx, ScanParams{MinNetMargin: 0.05})
	require.NoError(t, err)
	assert.Greater(t, result.Inserted, 0)

	pending, err := candidateStore.GetByStatus(ctx, domain.CandidatePending, 0)
	require.NoError(t, err)

	seen := make(map[domain.SupplySource]bool)
	for _, c := range pending {
		seen[c.Source] = true
	}
	assert.True(t, seen[domain.SourceG2A], "first source not scanned")
	assert.True(t, seen[domain.SourceCDKeys], "second source not scanned")

	entries, err := ledgerStore.GetByEventSince(ctx, "hunter.scan_completed", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "one scan record per source")
}
