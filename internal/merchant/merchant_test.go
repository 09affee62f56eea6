package merchant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/fees"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/ledger"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/marketplace"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage/memory"
)

func testClient(m domain.Marketplace, seed int64) *marketplace.Client {
	cfg := marketplace.DefaultConfigs()[m]
	cfg.RequestsPerMinute = 600000 // effectively unthrottled in tests
	return marketplace.NewClient(cfg, marketplace.NewFakeAdapter(m, seed), nil)
}

type fixture struct {
	merchant       *Merchant
	clients        map[domain.Marketplace]*marketplace.Client
	inventoryStore *memory.InventoryStore
	listingStore   *memory.ListingStore
	ledgerStore    *memory.LedgerStore
}

func newFixture(t *testing.T, venues ...domain.Marketplace) *fixture {
	t.Helper()

	f := &fixture{
		clients:        make(map[domain.Marketplace]*marketplace.Client),
		inventoryStore: memory.NewInventoryStore(),
		listingStore:   memory.NewListingStore(),
		ledgerStore:    memory.NewLedgerStore(),
	}
	var clients []*marketplace.Client
	for _, v := range venues {
		c := testClient(v, 42)
		f.clients[v] = c
		clients = append(clients, c)
	}

	f.merchant = New(Options{
		Clients:        clients,
		InventoryStore: f.inventoryStore,
		ListingStore:   f.listingStore,
		Calculator:     fees.NewCalculator(),
		Ledger:         ledger.NewWriter(f.ledgerStore, nil),
	})
	return f
}

func (f *fixture) addInventory(t *testing.T, id string, kind domain.InventoryKind, cost float64) *domain.Inventory {
	t.Helper()
	inv := &domain.Inventory{
		InventoryID: id,
		CandidateID: "cand-" + id,
		SKU:         "sku-" + id,
		Kind:        kind,
		Title:       "Elden Ring",
		Brand:       "Steam",
		Region:      "GLOBAL",
		Cost:        cost,
		Source:      domain.SourceG2A,
		Policy:      domain.DeliveryInstant,
		Status:      domain.InventoryAvailable,
		AcquiredAt:  1000,
	}
	require.NoError(t, f.inventoryStore.Insert(context.Background(), inv))
	return inv
}

func TestListBatch_ListsOnBestVenues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.MarketplaceGameflip, domain.MarketplaceG2G, domain.MarketplaceEbay)
	f.addInventory(t, "inv1", domain.KindKey, 20)

	result, err := f.merchant.ListBatch(ctx, ListParams{MaxVenues: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Listed)
	assert.Empty(t, result.Errors)

	listings, err := f.listingStore.GetByInventoryID(ctx, "inv1")
	require.NoError(t, err)
	require.Len(t, listings, 2)

	venues := map[domain.Marketplace]bool{}
	for _, l := range listings {
		venues[l.Marketplace] = true
		assert.Equal(t, domain.ListingActive, l.Status)
		assert.NotEmpty(t, l.VariantID)
		assert.True(t, l.PriceWithinBand(), "floor %.2f <= price %.2f <= ceiling %.2f", l.Floor, l.Price, l.Ceiling)
		assert.Contains(t, l.Title, "Elden Ring")
		assert.NotContains(t, l.Title, "{") // all placeholders substituted

		// Round-trip: the venue reports the same price that was set.
		remote, err := f.clients[l.Marketplace].GetListingStatus(ctx, l.VariantID)
		require.NoError(t, err)
		assert.Equal(t, l.Price, remote.Price)
	}
	// Gameflip and G2G net out ahead of eBay for a key at this price.
	assert.True(t, venues[domain.MarketplaceGameflip])
	assert.True(t, venues[domain.MarketplaceG2G])
}

func TestListBatch_SkipsAlreadyListedItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.MarketplaceGameflip)
	f.addInventory(t, "inv1", domain.KindKey, 20)

	_, err := f.merchant.ListBatch(ctx, ListParams{MaxVenues: 1})
	require.NoError(t, err)

	second, err := f.merchant.ListBatch(ctx, ListParams{MaxVenues: 1})
	require.NoError(t, err)
	assert.Zero(t, second.Listed)
	assert.Equal(t, 1, second.Skipped)

	listings, err := f.listingStore.GetByInventoryID(ctx, "inv1")
	require.NoError(t, err)
	assert.Len(t, listings, 1)
}

func TestListBatch_ForceRepriceUpdatesPriceOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.MarketplaceGameflip)
	f.addInventory(t, "inv1", domain.KindKey, 20)

	_, err := f.merchant.ListBatch(ctx, ListParams{MaxVenues: 1})
	require.NoError(t, err)

	before, err := f.listingStore.GetByInventoryID(ctx, "inv1")
	require.NoError(t, err)
	require.Len(t, before, 1)

	// A different strategy moves the ask; content must survive untouched.
	result, err := f.merchant.ListBatch(ctx, ListParams{
		MaxVenues:    1,
		Strategy:     StrategyAggressive,
		ForceReprice: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Repriced)

	after, err := f.listingStore.GetByInventoryID(ctx, "inv1")
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.NotEqual(t, before[0].Price, after[0].Price)
	assert.Equal(t, before[0].Title, after[0].Title)
	assert.Equal(t, before[0].Description, after[0].Description)
	assert.True(t, after[0].PriceWithinBand())

	remote, err := f.clients[domain.MarketplaceGameflip].GetListingStatus(ctx, after[0].VariantID)
	require.NoError(t, err)
	assert.Equal(t, after[0].Price, remote.Price)
}

func TestListBatch_FloorLiftsUnderpricedAsk(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.MarketplaceGameflip)
	// Gift cards carry a slim markup; the fee-aware floor must win.
	f.addInventory(t, "inv1", domain.KindGiftCard, 50)

	_, err := f.merchant.ListBatch(ctx, ListParams{MaxVenues: 1})
	require.NoError(t, err)

	listings, err := f.listingStore.GetByInventoryID(ctx, "inv1")
	require.NoError(t, err)
	require.Len(t, listings, 1)

	l := listings[0]
	assert.GreaterOrEqual(t, l.Price, l.Floor)
	// Floor preserves at least the minimum margin after fees.
	b, err := fees.NewCalculator().CalculateFees(domain.MarketplaceGameflip, domain.KindGiftCard, l.Floor, fees.Options{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, (b.NetAmount-50)/l.Floor, 0.149)
}

func TestListBatch_NoVenueForCategory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.MarketplaceGameflip) // no domain venue configured
	f.addInventory(t, "inv1", domain.KindDomain, 80)

	result, err := f.merchant.ListBatch(ctx, ListParams{})
	require.NoError(t, err)
	assert.Zero(t, result.Listed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "no venue supports")
}

func TestListBatch_DryRunPersistsNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.MarketplaceGameflip)
	f.addInventory(t, "inv1", domain.KindKey, 20)

	result, err := f.merchant.ListBatch(ctx, ListParams{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Listed)

	listings, err := f.listingStore.GetByInventoryID(ctx, "inv1")
	require.NoError(t, err)
	assert.Empty(t, listings)
}

func TestMarkupPriceRounding(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"quarter steps under ten", 7.37, 7.25},
		{"whole dollars under hundred", 42.60, 43},
		{"five dollar steps above hundred", 112.40, 110},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RoundPriceStep(tt.in))
		})
	}
}
