// Package fees computes per-marketplace selling costs. All money math runs
// on decimals and is rounded to cents, so salePrice - totalFees == netAmount
// holds exactly.
package fees

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
)

// ErrCategoryUnsupported is returned when a marketplace does not carry a
// category. Callers must fail closed on it.
var ErrCategoryUnsupported = errors.New("category unsupported on marketplace")

// ErrUnknownMarketplace is returned for a marketplace missing from the fee table.
var ErrUnknownMarketplace = errors.New("unknown marketplace")

// PaymentMethod selects the payment processing rate.
type PaymentMethod string

const (
	// PaymentCard is the default card/processor rate.
	PaymentCard PaymentMethod = "card"
	// PaymentWallet is marketplace wallet balance: half the percentage,
	// no fixed fee.
	PaymentWallet PaymentMethod = "wallet"
)

// Breakdown itemizes the fees on one sale.
type Breakdown struct {
	ListingFee           float64
	FinalValueFee        float64
	PaymentProcessingFee float64
	ShippingFee          float64
	AdvertisingFee       float64
	TotalFees            float64
	NetAmount            float64
}

// Options modify a fee calculation.
type Options struct {
	IsPromoted    bool
	ShippingCost  float64
	PaymentMethod PaymentMethod // defaults to PaymentCard
}

// Comparison ranks one marketplace for a prospective sale.
type Comparison struct {
	Marketplace domain.Marketplace
	Supported   bool
	Breakdown   Breakdown // zero value when unsupported
	NetAmount   float64
}

// Calculator computes fees against the static marketplace fee table.
// Construct once and inject; it holds no mutable state.
type Calculator struct {
	table map[domain.Marketplace]FeeStructure
}

// NewCalculator creates a Calculator over the built-in fee table.
func NewCalculator() *Calculator {
	return &Calculator{table: feeTable}
}

// NewCalculatorWithTable creates a Calculator over a custom table (tests).
func NewCalculatorWithTable(table map[domain.Marketplace]FeeStructure) *Calculator {
	return &Calculator{table: table}
}

// Marketplaces returns every marketplace present in the fee table,
// in the stable domain order.
func (c *Calculator) Marketplaces() []domain.Marketplace {
	var out []domain.Marketplace
	for _, m := range domain.AllMarketplaces {
		if _, ok := c.table[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Supports reports whether a marketplace carries a category.
func (c *Calculator) Supports(marketplace domain.Marketplace, category domain.InventoryKind) bool {
	fs, ok := c.table[marketplace]
	if !ok {
		return false
	}
	mult, ok := fs.CategoryMultiplier[category]
	return ok && mult < unsupportedMultiplier
}

// CalculateFees itemizes the fees for selling category at salePrice on
// marketplace. Returns ErrCategoryUnsupported when the category multiplier
// marks the category as not carried.
func (c *Calculator) CalculateFees(
	marketplace domain.Marketplace,
	category domain.InventoryKind,
	salePrice float64,
	opts Options,
) (*Breakdown, error) {
	fs, ok := c.table[marketplace]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMarketplace, marketplace)
	}
	mult, ok := fs.CategoryMultiplier[category]
	if !ok || mult >= unsupportedMultiplier {
		return nil, fmt.Errorf("%w: %s on %s", ErrCategoryUnsupported, category, marketplace)
	}
	if salePrice <= 0 {
		return nil, fmt.Errorf("sale price must be positive, got %.2f", salePrice)
	}

	price := decimal.NewFromFloat(salePrice)
	multiplier := decimal.NewFromFloat(mult)

	listing := applyPercentFee(fs.ListingFee, price)
	finalValue := applyPercentFee(fs.FinalValueFee, price).Mul(multiplier).Round(2)
	processing := applyPercentFee(paymentFee(fs.PaymentProcessing, opts.PaymentMethod), price)

	advertising := decimal.Zero
	if opts.IsPromoted {
		advertising = applyPercentFee(fs.PromotionFee, price)
	}

	shipping := decimal.Zero
	if opts.ShippingCost > 0 {
		shipping = decimal.NewFromFloat(opts.ShippingCost).Round(2)
	}

	total := listing.Add(finalValue).Add(processing).Add(advertising).Add(shipping)
	net := price.Sub(total)

	b := &Breakdown{
		ListingFee:           listing.InexactFloat64(),
		FinalValueFee:        finalValue.InexactFloat64(),
		PaymentProcessingFee: processing.InexactFloat64(),
		ShippingFee:          shipping.InexactFloat64(),
		AdvertisingFee:       advertising.InexactFloat64(),
		TotalFees:            total.InexactFloat64(),
		NetAmount:            net.InexactFloat64(),
	}
	return b, nil
}

// CompareMarketplaces ranks every marketplace by net amount for selling
// category at salePrice. Unsupported marketplaces sort last with
// Supported=false.
func (c *Calculator) CompareMarketplaces(salePrice float64, category domain.InventoryKind) []Comparison {
	comparisons := make([]Comparison, 0, len(c.table))

	for _, m := range c.Marketplaces() {
		b, err := c.CalculateFees(m, category, salePrice, Options{})
		if err != nil {
			comparisons = append(comparisons, Comparison{Marketplace: m, Supported: false})
			continue
		}
		comparisons = append(comparisons, Comparison{
			Marketplace: m,
			Supported:   true,
			Breakdown:   *b,
			NetAmount:   b.NetAmount,
		})
	}

	sort.SliceStable(comparisons, func(i, j int) bool {
		if comparisons[i].Supported != comparisons[j].Supported {
			return comparisons[i].Supported
		}
		return comparisons[i].NetAmount > comparisons[j].NetAmount
	})

	return comparisons
}

// CalculateBreakEvenPrice finds the sale price that achieves targetMargin
// ((net - cost) / price) on the marketplace, by bounded binary search:
// at most 50 iterations, $0.01 tolerance. Returns -1 when the category is
// unsupported or the margin is unreachable.
func (c *Calculator) CalculateBreakEvenPrice(
	marketplace domain.Marketplace,
	category domain.InventoryKind,
	cost float64,
	targetMargin float64,
) float64 {
	if !c.Supports(marketplace, category) || cost <= 0 || targetMargin < 0 || targetMargin >= 1 {
		return -1
	}

	lo := cost
	hi := cost * 20 // generous upper bound for digital-goods markups

	marginAt := func(price float64) float64 {
		b, err := c.CalculateFees(marketplace, category, price, Options{})
		if err != nil {
			return -1
		}
		return (b.NetAmount - cost) / price
	}

	if marginAt(hi) < targetMargin {
		return -1
	}

	for i := 0; i < 50 && hi-lo > 0.01; i++ {
		mid := (lo + hi) / 2
		if marginAt(mid) >= targetMargin {
			hi = mid
		} else {
			lo = mid
		}
	}

	return roundCents(hi)
}

// BestMarketplace returns the supported marketplace maximizing net profit
// (net amount - cost) at targetSalePrice, or nil when no marketplace
// supports the category.
func (c *Calculator) BestMarketplace(cost, targetSalePrice float64, category domain.InventoryKind) *Comparison {
	comparisons := c.CompareMarketplaces(targetSalePrice, category)

	var best *Comparison
	for i := range comparisons {
		cmp := &comparisons[i]
		if !cmp.Supported {
			continue
		}
		if best == nil || cmp.NetAmount-cost > best.NetAmount-cost {
			best = cmp
		}
	}
	return best
}

// applyPercentFee evaluates a fee against a price: percentage portion
// clamped to [Min, Max], plus the fixed portion, rounded to cents.
func applyPercentFee(fee PercentFee, price decimal.Decimal) decimal.Decimal {
	pct := price.Mul(decimal.NewFromFloat(fee.Percent)).Div(decimal.NewFromInt(100))

	if fee.Min > 0 {
		min := decimal.NewFromFloat(fee.Min)
		if pct.LessThan(min) {
			pct = min
		}
	}
	if fee.Max > 0 {
		max := decimal.NewFromFloat(fee.Max)
		if pct.GreaterThan(max) {
			pct = max
		}
	}

	return pct.Add(decimal.NewFromFloat(fee.Fixed)).Round(2)
}

// paymentFee adjusts the processing schedule for the payment method.
func paymentFee(base PercentFee, method PaymentMethod) PercentFee {
	if method == PaymentWallet {
		return PercentFee{Percent: base.Percent / 2}
	}
	return base
}

// roundCents rounds a float64 price to cents.
func roundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
