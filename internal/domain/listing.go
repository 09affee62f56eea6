package domain

// ListingStatus is the lifecycle state of a marketplace listing.
type ListingStatus string

const (
	ListingActive  ListingStatus = "ACTIVE"
	ListingPaused  ListingStatus = "PAUSED"
	ListingSold    ListingStatus = "SOLD"
	ListingEnded   ListingStatus = "ENDED"
	ListingFlagged ListingStatus = "FLAGGED"
)

// Listing represents an item offered for sale on one marketplace.
// Corresponds to listings table in PostgreSQL.
//
// Floor <= Price <= Ceiling must hold after every reprice. A violation is
// a bug signal: it raises an alert and is never silently clamped.
type Listing struct {
	ListingID   string // PRIMARY KEY, uuid
	InventoryID string
	Marketplace Marketplace
	SKU         string
	Kind        InventoryKind
	Title       string
	Description string

	Price   float64
	Floor   float64 // lowest price that preserves the minimum margin
	Ceiling float64

	Views    int
	Watchers int
	CTR      float64 // click-through rate, in [0,1]

	Status    ListingStatus
	VariantID string // marketplace-assigned listing identifier

	ListedAt  int64 // ms
	UpdatedAt int64 // ms, bumped on every price/content change
	CreatedAt int64
}

// PriceWithinBand reports whether the floor/ceiling invariant holds.
func (l *Listing) PriceWithinBand() bool {
	return l.Floor <= l.Price && l.Price <= l.Ceiling
}
