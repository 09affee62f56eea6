package hunter

import (
	"context"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
)

// Deal is a raw sourcing opportunity reported by a supply source.
type Deal struct {
	SKU    string
	Kind   domain.InventoryKind
	Title  string
	Brand  string
	Region string

	Cost            float64
	EstimatedResale float64
	SellerScore     float64 // 0-5
	SellThroughDays float64
	Quantity        int
	InstantDelivery bool
	SupplierName    string
}

// Availability is a source's live view of one SKU.
type Availability struct {
	Available       bool
	Quantity        int
	CurrentPrice    float64
	InstantDelivery bool
}

// PurchaseResult reports a completed source purchase.
type PurchaseResult struct {
	OrderRef        string
	UnitPrice       float64
	Quantity        int
	InstantDelivery bool
}

// SourceClient is the capability interface over one supply source.
// Implementations: real per-source adapters and FakeSource for tests and
// the memory-backed run mode.
type SourceClient interface {
	// Source names the supply source this client talks to.
	Source() domain.SupplySource

	// SupportedCategories lists the categories the source carries.
	SupportedCategories() []domain.InventoryKind

	// Reliability is the fixed prior in [0,1] that seeds candidate
	// confidence for deals discovered on this source.
	Reliability() float64

	// RequestsPerMinute is the source's API budget.
	RequestsPerMinute() int

	// FetchDeals returns up to maxItems current deals in one category.
	FetchDeals(ctx context.Context, kind domain.InventoryKind, maxItems int) ([]*Deal, error)

	// CheckAvailability returns the live state of one SKU.
	CheckAvailability(ctx context.Context, sku string) (*Availability, error)

	// Purchase buys quantity units of the SKU, failing if the live unit
	// price exceeds maxUnitPrice.
	Purchase(ctx context.Context, sku string, quantity int, maxUnitPrice float64) (*PurchaseResult, error)
}
