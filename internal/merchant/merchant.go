// Package merchant puts owned inventory up for sale. It picks the venues
// with the best net proceeds, renders category copy from structured
// metadata, and prices with a markup model bounded by a fee-aware floor.
package merchant

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/fees"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/ledger"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/marketplace"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// ListParams filters one listing run.
type ListParams struct {
	BatchSize    int             // inventory items pulled per run, default 25
	MaxVenues    int             // venues per item, clamped to [1,3], default 2
	Strategy     PricingStrategy // default standard
	ForceReprice bool            // refresh prices of existing ACTIVE listings
	DryRun       bool
}

// ListResult summarizes one listing run.
type ListResult struct {
	Considered int
	Listed     int // new listings created
	Repriced   int // existing listings price-refreshed under forceReprice
	Skipped    int
	Errors     []string
}

// Merchant creates and maintains marketplace listings.
type Merchant struct {
	clients        map[domain.Marketplace]*marketplace.Client
	inventoryStore storage.InventoryStore
	listingStore   storage.ListingStore
	calc           *fees.Calculator
	ledger         *ledger.Writer
	logger         *log.Logger
	now            func() time.Time
}

// Options contains dependencies for creating a Merchant.
type Options struct {
	Clients        []*marketplace.Client
	InventoryStore storage.InventoryStore
	ListingStore   storage.ListingStore
	Calculator     *fees.Calculator
	Ledger         *ledger.Writer
	Logger         *log.Logger
}

// New creates a Merchant.
func New(opts Options) *Merchant {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	clients := make(map[domain.Marketplace]*marketplace.Client, len(opts.Clients))
	for _, c := range opts.Clients {
		clients[c.Marketplace()] = c
	}

	return &Merchant{
		clients:        clients,
		inventoryStore: opts.InventoryStore,
		listingStore:   opts.ListingStore,
		calc:           opts.Calculator,
		ledger:         opts.Ledger,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock (tests).
func (m *Merchant) WithClock(now func() time.Time) *Merchant {
	m.now = now
	return m
}

// ListBatch lists AVAILABLE inventory on its best venues. Items that
// already carry an ACTIVE listing are skipped unless ForceReprice, which
// refreshes prices only and never touches content. Per-item failures
// never abort the batch.
func (m *Merchant) ListBatch(ctx context.Context, params ListParams) (*ListResult, error) {
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = 25
	}
	maxVenues := params.MaxVenues
	if maxVenues <= 0 {
		maxVenues = 2
	}
	if maxVenues > 3 {
		maxVenues = 3
	}
	strategy := params.Strategy
	if strategy == "" {
		strategy = StrategyStandard
	}

	items, err := m.inventoryStore.GetByStatus(ctx, domain.InventoryAvailable)
	if err != nil {
		return nil, fmt.Errorf("load available inventory: %w", err)
	}
	if len(items) > batchSize {
		items = items[:batchSize]
	}

	result := &ListResult{}
	for _, inv := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Considered++

		existing, err := m.listingStore.GetByInventoryID(ctx, inv.InventoryID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: load listings: %v", inv.InventoryID, err))
			continue
		}

		active := activeListings(existing)
		switch {
		case len(active) > 0 && !params.ForceReprice:
			result.Skipped++
		case len(active) > 0:
			m.repriceExisting(ctx, inv, active, strategy, params.DryRun, result)
		default:
			m.listNew(ctx, inv, maxVenues, strategy, params.DryRun, result)
		}
	}

	m.ledger.Write(ctx, "merchant", "merchant.batch_completed", map[string]any{
		"considered": result.Considered,
		"listed":     result.Listed,
		"repriced":   result.Repriced,
		"skipped":    result.Skipped,
		"errors":     len(result.Errors),
		"dry_run":    params.DryRun,
	})

	return result, nil
}

// listNew creates listings on the item's best venues.
func (m *Merchant) listNew(ctx context.Context, inv *domain.Inventory, maxVenues int, strategy PricingStrategy, dryRun bool, result *ListResult) {
	basePrice := MarkupPrice(inv.Cost, inv.Kind, strategy)

	venues := m.pickVenues(basePrice, inv.Kind, maxVenues)
	if len(venues) == 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: no venue supports category %s", inv.InventoryID, inv.Kind))
		return
	}

	listedAny := false
	for _, venue := range venues {
		client := m.clients[venue]
		cfg := client.Config()

		floor := m.floorPrice(venue, inv)
		price := basePrice
		if price < floor {
			price = floor
		}
		ceiling := CeilingFor(price, inv.Kind)

		title, description := RenderListing(inv, cfg.MaxTitleLen, cfg.MaxDescriptionLen)

		if dryRun {
			m.logger.Printf("[merchant] dry-run: would list %s on %s at $%.2f (floor %.2f, ceiling %.2f)",
				inv.SKU, venue, price, floor, ceiling)
			listedAny = true
			continue
		}

		variantID, err := client.CreateListing(ctx, marketplace.CreateRequest{
			SKU:         inv.SKU,
			Kind:        inv.Kind,
			Title:       title,
			Description: description,
			Price:       price,
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s on %s: %v", inv.InventoryID, venue, err))
			continue
		}

		nowMs := m.now().UnixMilli()
		l := &domain.Listing{
			ListingID:   uuid.NewString(),
			InventoryID: inv.InventoryID,
			Marketplace: venue,
			SKU:         inv.SKU,
			Kind:        inv.Kind,
			Title:       title,
			Description: description,
			Price:       price,
			Floor:       floor,
			Ceiling:     ceiling,
			Status:      domain.ListingActive,
			VariantID:   variantID,
			ListedAt:    nowMs,
			UpdatedAt:   nowMs,
			CreatedAt:   nowMs,
		}
		if err := m.listingStore.Insert(ctx, l); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s on %s: insert listing: %v", inv.InventoryID, venue, err))
			continue
		}

		listedAny = true
		m.ledger.Write(ctx, "merchant", "merchant.listing_created", map[string]any{
			"listing_id":   l.ListingID,
			"inventory_id": inv.InventoryID,
			"marketplace":  venue,
			"price":        price,
			"floor":        floor,
			"ceiling":      ceiling,
		})
	}

	if listedAny {
		result.Listed++
	}
}

// repriceExisting refreshes the price of active listings only; title and
// description are never regenerated for a live listing.
func (m *Merchant) repriceExisting(ctx context.Context, inv *domain.Inventory, active []*domain.Listing, strategy PricingStrategy, dryRun bool, result *ListResult) {
	basePrice := MarkupPrice(inv.Cost, inv.Kind, strategy)

	repricedAny := false
	for _, l := range active {
		client, ok := m.clients[l.Marketplace]
		if !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: no client for %s", l.ListingID, l.Marketplace))
			continue
		}

		price := basePrice
		if price < l.Floor {
			price = l.Floor
		}
		if price > l.Ceiling {
			price = l.Ceiling
		}
		if price == l.Price {
			continue
		}

		if dryRun {
			m.logger.Printf("[merchant] dry-run: would reprice %s on %s $%.2f -> $%.2f", l.ListingID, l.Marketplace, l.Price, price)
			repricedAny = true
			continue
		}

		if err := client.UpdatePrice(ctx, l.VariantID, price); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", l.ListingID, err))
			continue
		}

		old := l.Price
		l.Price = price
		l.UpdatedAt = m.now().UnixMilli()
		if err := m.listingStore.Update(ctx, l); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: update listing: %v", l.ListingID, err))
			continue
		}

		repricedAny = true
		m.ledger.Write(ctx, "merchant", "merchant.listing_repriced", map[string]any{
			"listing_id":  l.ListingID,
			"marketplace": l.Marketplace,
			"old_price":   old,
			"new_price":   price,
		})
	}

	if repricedAny {
		result.Repriced++
	}
}

// pickVenues ranks supported venues by net proceeds at the ask price and
// keeps the top maxVenues that have a configured client.
func (m *Merchant) pickVenues(price float64, kind domain.InventoryKind, maxVenues int) []domain.Marketplace {
	var venues []domain.Marketplace
	for _, cmp := range m.calc.CompareMarketplaces(price, kind) {
		if !cmp.Supported {
			continue
		}
		if _, ok := m.clients[cmp.Marketplace]; !ok {
			continue
		}
		venues = append(venues, cmp.Marketplace)
		if len(venues) == maxVenues {
			break
		}
	}
	return venues
}

// floorPrice derives the lowest acceptable ask: the break-even price for
// the minimum listing margin, rounded up to a price step. Falls back to
// a flat markup when the venue cannot reach the margin.
func (m *Merchant) floorPrice(venue domain.Marketplace, inv *domain.Inventory) float64 {
	breakEven := m.calc.CalculateBreakEvenPrice(venue, inv.Kind, inv.Cost, minListingMargin)
	if breakEven <= 0 {
		return RoundUpPriceStep(inv.Cost * (1 + minListingMargin))
	}
	return RoundUpPriceStep(breakEven)
}

func activeListings(listings []*domain.Listing) []*domain.Listing {
	var out []*domain.Listing
	for _, l := range listings {
		if l.Status == domain.ListingActive {
			out = append(out, l)
		}
	}
	return out
}
