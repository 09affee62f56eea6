package fees

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
)

func TestCalculateFees_EbayKey100(t *testing.T) {
	calc := NewCalculator()

	b, err := calc.CalculateFees(domain.MarketplaceEbay, domain.KindKey, 100, Options{})
	require.NoError(t, err)

	assert.InDelta(t, 12.90, b.FinalValueFee, 0.001, "final value fee")
	assert.InDelta(t, 3.20, b.PaymentProcessingFee, 0.001, "2.9%% + $0.30")
	assert.InDelta(t, 0.0, b.ListingFee, 0.001)
	assert.InDelta(t, 16.10, b.TotalFees, 0.001)
	assert.InDelta(t, 83.90, b.NetAmount, 0.001)
}

func TestCalculateFees_NetEqualsPriceMinusTotal(t *testing.T) {
	calc := NewCalculator()

	prices := []float64{0.99, 5.49, 19.99, 100, 249.95, 1999.99}
	for _, m := range calc.Marketplaces() {
		for _, kind := range domain.AllKinds {
			if !calc.Supports(m, kind) {
				continue
			}
			for _, price := range prices {
				b, err := calc.CalculateFees(m, kind, price, Options{})
				require.NoError(t, err, "%s/%s @ %.2f", m, kind, price)
				assert.GreaterOrEqual(t, b.TotalFees, 0.0)
				assert.InDelta(t, price-b.TotalFees, b.NetAmount, 1e-9,
					"%s/%s @ %.2f", m, kind, price)
			}
		}
	}
}

func TestCalculateFees_UnsupportedCategory(t *testing.T) {
	calc := NewCalculator()

	// eBay prohibits account sales; the multiplier >= 10 must fail closed.
	_, err := calc.CalculateFees(domain.MarketplaceEbay, domain.KindAccount, 50, Options{})
	require.ErrorIs(t, err, ErrCategoryUnsupported)

	_, err = calc.CalculateFees(domain.MarketplaceGodaddy, domain.KindKey, 50, Options{})
	require.ErrorIs(t, err, ErrCategoryUnsupported)
}

func TestCalculateFees_RejectsNonPositivePrice(t *testing.T) {
	calc := NewCalculator()

	_, err := calc.CalculateFees(domain.MarketplaceEbay, domain.KindKey, 0, Options{})
	require.Error(t, err)

	_, err = calc.CalculateFees(domain.MarketplaceEbay, domain.KindKey, -5, Options{})
	require.Error(t, err)
}

func TestCalculateFees_PromotionAndWallet(t *testing.T) {
	calc := NewCalculator()

	plain, err := calc.CalculateFees(domain.MarketplaceG2G, domain.KindKey, 100, Options{})
	require.NoError(t, err)
	assert.Zero(t, plain.AdvertisingFee)

	promoted, err := calc.CalculateFees(domain.MarketplaceG2G, domain.KindKey, 100, Options{IsPromoted: true})
	require.NoError(t, err)
	assert.InDelta(t, 3.00, promoted.AdvertisingFee, 0.001)
	assert.Greater(t, promoted.TotalFees, plain.TotalFees)

	wallet, err := calc.CalculateFees(domain.MarketplaceG2G, domain.KindKey, 100, Options{PaymentMethod: PaymentWallet})
	require.NoError(t, err)
	assert.Less(t, wallet.PaymentProcessingFee, plain.PaymentProcessingFee)
}

func TestCompareMarketplaces_RanksByNetDesc(t *testing.T) {
	calc := NewCalculator()

	comparisons := calc.CompareMarketplaces(50, domain.KindKey)
	require.Len(t, comparisons, len(calc.Marketplaces()))

	sawUnsupported := false
	var prevNet float64
	for i, cmp := range comparisons {
		if !cmp.Supported {
			sawUnsupported = true
			continue
		}
		require.False(t, sawUnsupported, "supported marketplace ranked after unsupported")
		if i > 0 && comparisons[i-1].Supported {
			assert.LessOrEqual(t, cmp.NetAmount, prevNet)
		}
		prevNet = cmp.NetAmount
	}

	// Keys are not carried by the domain marketplaces.
	for _, cmp := range comparisons {
		if cmp.Marketplace == domain.MarketplaceGodaddy || cmp.Marketplace == domain.MarketplaceFlippa {
			assert.False(t, cmp.Supported)
		}
	}
}

func TestBestMarketplace_NeverUnsupported(t *testing.T) {
	calc := NewCalculator()

	for _, kind := range domain.AllKinds {
		best := calc.BestMarketplace(10, 35, kind)
		if best == nil {
			continue
		}
		assert.True(t, calc.Supports(best.Marketplace, kind),
			"best marketplace %s must support %s", best.Marketplace, kind)
	}
}

func TestBestMarketplace_NilWhenNoneSupport(t *testing.T) {
	table := map[domain.Marketplace]FeeStructure{
		domain.MarketplaceEbay: {
			FinalValueFee:     PercentFee{Percent: 12.9},
			PaymentProcessing: PercentFee{Percent: 2.9, Fixed: 0.30},
			CategoryMultiplier: map[domain.InventoryKind]float64{
				domain.KindDomain: 10.0,
			},
		},
	}
	calc := NewCalculatorWithTable(table)

	assert.Nil(t, calc.BestMarketplace(10, 35, domain.KindDomain))
}

func TestCalculateBreakEvenPrice(t *testing.T) {
	calc := NewCalculator()

	cost := 20.0
	target := 0.25

	price := calc.CalculateBreakEvenPrice(domain.MarketplaceEbay, domain.KindKey, cost, target)
	require.Greater(t, price, cost)

	b, err := calc.CalculateFees(domain.MarketplaceEbay, domain.KindKey, price, Options{})
	require.NoError(t, err)
	margin := (b.NetAmount - cost) / price
	assert.InDelta(t, target, margin, 0.005, "margin at break-even price")
}

func TestCalculateBreakEvenPrice_Unsupported(t *testing.T) {
	calc := NewCalculator()

	assert.Equal(t, -1.0, calc.CalculateBreakEvenPrice(domain.MarketplaceGodaddy, domain.KindKey, 20, 0.2))
	assert.Equal(t, -1.0, calc.CalculateBreakEvenPrice(domain.MarketplaceEbay, domain.KindKey, 20, 0.995))
	assert.Equal(t, -1.0, calc.CalculateBreakEvenPrice(domain.MarketplaceEbay, domain.KindKey, -1, 0.2))
}
