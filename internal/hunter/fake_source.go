package hunter

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
)

// catalogItem is one template the fake source generates deals from.
type catalogItem struct {
	kind   domain.InventoryKind
	title  string
	brand  string
	region string
	base   float64 // typical retail price
}

var fakeCatalog = []catalogItem{
	{domain.KindKey, "Elden Ring Steam Key", "Steam", "GLOBAL", 39.99},
	{domain.KindKey, "Cyberpunk 2077 GOG Key", "GOG", "GLOBAL", 29.99},
	{domain.KindKey, "Baldur's Gate 3 Steam Key", "Steam", "EU", 49.99},
	{domain.KindGiftCard, "Steam Wallet $50", "Steam", "US", 50.00},
	{domain.KindGiftCard, "PSN Card $25", "PlayStation", "US", 25.00},
	{domain.KindAccount, "Fortnite OG Account", "Epic", "GLOBAL", 120.00},
	{domain.KindSubscription, "Game Pass Ultimate 3mo", "Xbox", "US", 35.00},
	{domain.KindDomain, "retrodecks.com", "", "", 90.00},
}

// FakeSource is a deterministic, seeded SourceClient. It simulates a
// supply source with a fixed catalog, discounted prices and drifting
// availability, without any randomness outside the seed.
type FakeSource struct {
	mu          sync.Mutex
	source      domain.SupplySource
	categories  []domain.InventoryKind
	reliability float64
	rpm         int
	rng         *rand.Rand
	seq         int
	skus        map[string]*Availability

	// PriceDrift shifts the live price relative to the quoted cost on
	// availability checks; stale-price protection tests set it.
	PriceDrift float64
	// Unavailable makes every availability check report out of stock.
	Unavailable bool
	// FailPurchases makes every purchase call fail.
	FailPurchases bool
}

// NewFakeSource creates a seeded fake source.
func NewFakeSource(source domain.SupplySource, categories []domain.InventoryKind, reliability float64, seed int64) *FakeSource {
	return &FakeSource{
		source:      source,
		categories:  categories,
		reliability: reliability,
		rpm:         60,
		rng:         rand.New(rand.NewSource(seed)),
		skus:        make(map[string]*Availability),
	}
}

var _ SourceClient = (*FakeSource)(nil)

func (f *FakeSource) Source() domain.SupplySource { return f.source }

func (f *FakeSource) SupportedCategories() []domain.InventoryKind {
	return append([]domain.InventoryKind(nil), f.categories...)
}

func (f *FakeSource) Reliability() float64 { return f.reliability }

func (f *FakeSource) RequestsPerMinute() int { return f.rpm }

// FetchDeals generates up to maxItems deals for one category from the
// catalog, with seeded discount and seller quality.
func (f *FakeSource) FetchDeals(_ context.Context, kind domain.InventoryKind, maxItems int) ([]*Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.supports(kind) {
		return nil, fmt.Errorf("%s: category %s not carried", f.source, kind)
	}

	var deals []*Deal
	for _, item := range fakeCatalog {
		if item.kind != kind || len(deals) >= maxItems {
			continue
		}

		f.seq++
		discount := 0.30 + f.rng.Float64()*0.40 // cost at 30-70% off retail
		cost := round2(item.base * (1 - discount))
		resale := round2(item.base * (0.85 + f.rng.Float64()*0.10))
		sku := fmt.Sprintf("%s-%s-%04d", f.source, kind, f.seq)

		deal := &Deal{
			SKU:             sku,
			Kind:            kind,
			Title:           item.title,
			Brand:           item.brand,
			Region:          item.region,
			Cost:            cost,
			EstimatedResale: resale,
			SellerScore:     3.5 + f.rng.Float64()*1.5,
			SellThroughDays: 2 + f.rng.Float64()*12,
			Quantity:        1 + f.rng.Intn(5),
			InstantDelivery: kind == domain.KindKey || kind == domain.KindGiftCard,
			SupplierName:    fmt.Sprintf("%s-seller-%d", f.source, 1+f.rng.Intn(20)),
		}
		deals = append(deals, deal)

		f.skus[sku] = &Availability{
			Available:       true,
			Quantity:        deal.Quantity,
			CurrentPrice:    cost,
			InstantDelivery: deal.InstantDelivery,
		}
	}

	return deals, nil
}

// CheckAvailability returns the live state of a SKU.
func (f *FakeSource) CheckAvailability(_ context.Context, sku string) (*Availability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.skus[sku]
	if !ok {
		return nil, fmt.Errorf("%s: unknown sku %s", f.source, sku)
	}

	cp := *a
	if f.Unavailable {
		cp.Available = false
		cp.Quantity = 0
	}
	cp.CurrentPrice = round2(cp.CurrentPrice * (1 + f.PriceDrift))
	return &cp, nil
}

// Purchase buys a SKU at its live price, respecting the caller's cap.
func (f *FakeSource) Purchase(_ context.Context, sku string, quantity int, maxUnitPrice float64) (*PurchaseResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailPurchases {
		return nil, fmt.Errorf("%s: purchase API unavailable", f.source)
	}

	a, ok := f.skus[sku]
	if !ok {
		return nil, fmt.Errorf("%s: unknown sku %s", f.source, sku)
	}
	if !a.Available || f.Unavailable || a.Quantity < quantity {
		return nil, fmt.Errorf("%s: insufficient stock for %s", f.source, sku)
	}

	unitPrice := round2(a.CurrentPrice * (1 + f.PriceDrift))
	if unitPrice > maxUnitPrice {
		return nil, fmt.Errorf("%s: live price %.2f exceeds cap %.2f for %s", f.source, unitPrice, maxUnitPrice, sku)
	}

	a.Quantity -= quantity
	if a.Quantity == 0 {
		a.Available = false
	}

	f.seq++
	return &PurchaseResult{
		OrderRef:        fmt.Sprintf("%s-order-%06d", f.source, f.seq),
		UnitPrice:       unitPrice,
		Quantity:        quantity,
		InstantDelivery: a.InstantDelivery,
	}, nil
}

func (f *FakeSource) supports(kind domain.InventoryKind) bool {
	for _, k := range f.categories {
		if k == kind {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
