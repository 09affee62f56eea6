package fees

import "github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"

// unsupportedMultiplier marks a category a marketplace does not carry.
// Any multiplier at or above this value must fail closed, never price.
const unsupportedMultiplier = 10.0

// PercentFee is a percentage fee with an optional fixed part and min/max
// clamps on the percentage portion. Zero Max means no cap.
type PercentFee struct {
	Percent float64
	Fixed   float64
	Min     float64
	Max     float64
}

// FeeStructure is one marketplace's published fee schedule.
type FeeStructure struct {
	ListingFee         PercentFee
	FinalValueFee      PercentFee
	PaymentProcessing  PercentFee
	PromotionFee       PercentFee // applied only when the listing is promoted
	CategoryMultiplier map[domain.InventoryKind]float64
}

// feeTable is the static per-marketplace fee schedule. This is the most
// compatibility-sensitive external contract in the engine: a category
// missing here (or multiplied >= 10) must be rejected, never silently
// priced as if supported.
var feeTable = map[domain.Marketplace]FeeStructure{
	domain.MarketplaceEbay: {
		ListingFee:        PercentFee{Percent: 0, Fixed: 0},
		FinalValueFee:     PercentFee{Percent: 12.9, Min: 0.30, Max: 750},
		PaymentProcessing: PercentFee{Percent: 2.9, Fixed: 0.30},
		PromotionFee:      PercentFee{Percent: 2.0},
		CategoryMultiplier: map[domain.InventoryKind]float64{
			domain.KindKey:          1.0,
			domain.KindGiftCard:     1.15,
			domain.KindAccount:      10.0, // account sales prohibited
			domain.KindDomain:       10.0,
			domain.KindSubscription: 1.2,
		},
	},
	domain.MarketplaceG2G: {
		ListingFee:        PercentFee{Percent: 0, Fixed: 0},
		FinalValueFee:     PercentFee{Percent: 9.9},
		PaymentProcessing: PercentFee{Percent: 2.5, Fixed: 0.25},
		PromotionFee:      PercentFee{Percent: 3.0},
		CategoryMultiplier: map[domain.InventoryKind]float64{
			domain.KindKey:          1.0,
			domain.KindAccount:      1.0,
			domain.KindGiftCard:     1.2,
			domain.KindDomain:       10.0,
			domain.KindSubscription: 1.0,
		},
	},
	domain.MarketplaceKinguin: {
		ListingFee:        PercentFee{Percent: 0, Fixed: 0},
		FinalValueFee:     PercentFee{Percent: 10.8},
		PaymentProcessing: PercentFee{Percent: 2.7, Fixed: 0.30},
		PromotionFee:      PercentFee{Percent: 2.5},
		CategoryMultiplier: map[domain.InventoryKind]float64{
			domain.KindKey:          1.0,
			domain.KindGiftCard:     1.3,
			domain.KindAccount:      10.0,
			domain.KindDomain:       10.0,
			domain.KindSubscription: 1.1,
		},
	},
	domain.MarketplaceGameflip: {
		ListingFee:        PercentFee{Percent: 0, Fixed: 0},
		FinalValueFee:     PercentFee{Percent: 8.0},
		PaymentProcessing: PercentFee{Percent: 2.9, Fixed: 0.30},
		PromotionFee:      PercentFee{Percent: 2.0},
		CategoryMultiplier: map[domain.InventoryKind]float64{
			domain.KindKey:          1.0,
			domain.KindGiftCard:     1.0,
			domain.KindAccount:      1.25,
			domain.KindDomain:       10.0,
			domain.KindSubscription: 10.0,
		},
	},
	domain.MarketplaceGodaddy: {
		ListingFee:        PercentFee{Percent: 0, Fixed: 4.99},
		FinalValueFee:     PercentFee{Percent: 20.0, Min: 15},
		PaymentProcessing: PercentFee{Percent: 2.9, Fixed: 0.30},
		PromotionFee:      PercentFee{Percent: 1.5},
		CategoryMultiplier: map[domain.InventoryKind]float64{
			domain.KindDomain:       1.0,
			domain.KindKey:          10.0,
			domain.KindAccount:      10.0,
			domain.KindGiftCard:     10.0,
			domain.KindSubscription: 10.0,
		},
	},
	domain.MarketplaceFlippa: {
		ListingFee:        PercentFee{Percent: 0, Fixed: 9.00},
		FinalValueFee:     PercentFee{Percent: 10.0, Min: 5},
		PaymentProcessing: PercentFee{Percent: 2.9, Fixed: 0.30},
		PromotionFee:      PercentFee{Percent: 2.0},
		CategoryMultiplier: map[domain.InventoryKind]float64{
			domain.KindDomain:       1.0,
			domain.KindAccount:      1.5,
			domain.KindKey:          10.0,
			domain.KindGiftCard:     10.0,
			domain.KindSubscription: 10.0,
		},
	},
}
