package marketplace

import "github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"

// Config carries one marketplace's listing constraints and API budget.
type Config struct {
	Marketplace       domain.Marketplace
	MaxTitleLen       int
	MaxDescriptionLen int
	Categories        []domain.InventoryKind
	RequestsPerMinute int
}

// SupportsCategory reports whether the marketplace carries a category.
func (c Config) SupportsCategory(kind domain.InventoryKind) bool {
	for _, k := range c.Categories {
		if k == kind {
			return true
		}
	}
	return false
}

// DefaultConfigs returns the built-in per-marketplace configuration.
// Category support here must stay consistent with the fee table: a
// category priced by fees but absent here fails validation before any
// marketplace call, which is the safe direction.
func DefaultConfigs() map[domain.Marketplace]Config {
	return map[domain.Marketplace]Config{
		domain.MarketplaceG2G: {
			Marketplace:       domain.MarketplaceG2G,
			MaxTitleLen:       80,
			MaxDescriptionLen: 2000,
			Categories:        []domain.InventoryKind{domain.KindKey, domain.KindAccount, domain.KindGiftCard, domain.KindSubscription},
			RequestsPerMinute: 30,
		},
		domain.MarketplaceKinguin: {
			Marketplace:       domain.MarketplaceKinguin,
			MaxTitleLen:       100,
			MaxDescriptionLen: 3000,
			Categories:        []domain.InventoryKind{domain.KindKey, domain.KindGiftCard, domain.KindSubscription},
			RequestsPerMinute: 20,
		},
		domain.MarketplaceEbay: {
			Marketplace:       domain.MarketplaceEbay,
			MaxTitleLen:       80,
			MaxDescriptionLen: 4000,
			Categories:        []domain.InventoryKind{domain.KindKey, domain.KindGiftCard, domain.KindSubscription},
			RequestsPerMinute: 10,
		},
		domain.MarketplaceGameflip: {
			Marketplace:       domain.MarketplaceGameflip,
			MaxTitleLen:       60,
			MaxDescriptionLen: 1500,
			Categories:        []domain.InventoryKind{domain.KindKey, domain.KindAccount, domain.KindGiftCard},
			RequestsPerMinute: 30,
		},
		domain.MarketplaceGodaddy: {
			Marketplace:       domain.MarketplaceGodaddy,
			MaxTitleLen:       120,
			MaxDescriptionLen: 5000,
			Categories:        []domain.InventoryKind{domain.KindDomain},
			RequestsPerMinute: 15,
		},
		domain.MarketplaceFlippa: {
			Marketplace:       domain.MarketplaceFlippa,
			MaxTitleLen:       120,
			MaxDescriptionLen: 8000,
			Categories:        []domain.InventoryKind{domain.KindDomain, domain.KindAccount},
			RequestsPerMinute: 15,
		},
	}
}
