package domain

// InventoryKind classifies the digital goods the engine trades.
type InventoryKind string

const (
	KindKey          InventoryKind = "KEY"
	KindAccount      InventoryKind = "ACCOUNT"
	KindGiftCard     InventoryKind = "GIFTCARD"
	KindDomain       InventoryKind = "DOMAIN"
	KindSubscription InventoryKind = "SUBSCRIPTION"
)

// AllKinds lists every tradeable category in a stable order.
var AllKinds = []InventoryKind{
	KindKey,
	KindAccount,
	KindGiftCard,
	KindDomain,
	KindSubscription,
}

// Valid reports whether k is a known inventory kind.
func (k InventoryKind) Valid() bool {
	switch k {
	case KindKey, KindAccount, KindGiftCard, KindDomain, KindSubscription:
		return true
	}
	return false
}

// RequiresManualReview reports whether items of this kind must never be
// auto-delivered. Accounts and domains need a human transfer step.
func (k InventoryKind) RequiresManualReview() bool {
	return k == KindAccount || k == KindDomain
}
