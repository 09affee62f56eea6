package merchant

import (
	"math"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
)

// PricingStrategy scales the category markup.
type PricingStrategy string

const (
	StrategyConservative PricingStrategy = "conservative"
	StrategyStandard     PricingStrategy = "standard"
	StrategyAggressive   PricingStrategy = "aggressive"
)

// minListingMargin is the margin the floor price must preserve after fees.
const minListingMargin = 0.15

// categoryMarkup is the base resale multiplier over acquisition cost.
// Gift cards trade near face value; domains carry the widest spread.
var categoryMarkup = map[domain.InventoryKind]float64{
	domain.KindKey:          1.55,
	domain.KindGiftCard:     1.25,
	domain.KindAccount:      1.80,
	domain.KindDomain:       2.20,
	domain.KindSubscription: 1.50,
}

var strategyModifier = map[PricingStrategy]float64{
	StrategyConservative: 0.90,
	StrategyStandard:     1.00,
	StrategyAggressive:   1.15,
}

// ceilingFactor bounds how far repricing may ever push a listing above
// its initial price. Fast-moving categories stay tight.
var ceilingFactor = map[domain.InventoryKind]float64{
	domain.KindKey:          1.5,
	domain.KindGiftCard:     1.5,
	domain.KindAccount:      2.0,
	domain.KindDomain:       2.0,
	domain.KindSubscription: 1.8,
}

// MarkupPrice computes the initial ask from cost, category and strategy,
// rounded to a sensible price step.
func MarkupPrice(cost float64, kind domain.InventoryKind, strategy PricingStrategy) float64 {
	markup, ok := categoryMarkup[kind]
	if !ok {
		markup = 1.5
	}
	mod, ok := strategyModifier[strategy]
	if !ok {
		mod = 1.0
	}
	return RoundPriceStep(cost * markup * mod)
}

// RoundPriceStep rounds a price to the step buyers expect at its
// magnitude: quarters under $10, whole dollars under $100, $5 above.
func RoundPriceStep(price float64) float64 {
	switch {
	case price < 10:
		return math.Round(price*4) / 4
	case price < 100:
		return math.Round(price)
	default:
		return math.Round(price/5) * 5
	}
}

// RoundUpPriceStep rounds a price up to the next step. Used for floors,
// which must never round below the margin they protect.
func RoundUpPriceStep(price float64) float64 {
	switch {
	case price < 10:
		return math.Ceil(price*4) / 4
	case price < 100:
		return math.Ceil(price)
	default:
		return math.Ceil(price/5) * 5
	}
}

// CeilingFor derives the listing ceiling from its initial price.
func CeilingFor(price float64, kind domain.InventoryKind) float64 {
	factor, ok := ceilingFactor[kind]
	if !ok {
		factor = 1.5
	}
	return RoundPriceStep(price * factor)
}
