package risk

import "github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"

// Metrics is a snapshot of the observable risk inputs for one scope
// (a marketplace or a category). Rates are fractions of transactions.
type Metrics struct {
	DisputeRate7d     float64
	DisputeRate30d    float64
	RefundRate7d      float64
	RefundRate30d     float64
	ChargebackRate7d  float64
	ChargebackRate30d float64

	AvgDeliveryHours  float64
	Satisfaction      float64 // buyer satisfaction, 0-5
	SellerPerformance float64 // marketplace seller score, 0-100

	InventoryTurnoverDays float64
	CashFlowRatio         float64 // liquid funds / committed funds

	TransactionVolume int // trailing 30d, weights the overall aggregate
}

// Thresholds bound acceptable metrics. Rates and delivery time trigger on
// exceeding; satisfaction, performance and cash flow trigger on falling below.
type Thresholds struct {
	MaxDisputeRate    float64
	MaxRefundRate     float64
	MaxChargebackRate float64
	MaxDeliveryHours  float64
	MinSatisfaction   float64
	MinPerformance    float64
	MaxTurnoverDays   float64
	MinCashFlowRatio  float64
}

// DefaultThresholds returns the global defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxDisputeRate:    0.02,
		MaxRefundRate:     0.05,
		MaxChargebackRate: 0.01,
		MaxDeliveryHours:  24,
		MinSatisfaction:   4.0,
		MinPerformance:    85,
		MaxTurnoverDays:   30,
		MinCashFlowRatio:  0.25,
	}
}

// marketplaceOverrides holds per-marketplace threshold overrides. eBay
// suspends sellers well before the generic bounds, so its dispute and
// performance bounds are stricter.
var marketplaceOverrides = map[domain.Marketplace]Thresholds{
	domain.MarketplaceEbay: {
		MaxDisputeRate:    0.01,
		MaxRefundRate:     0.04,
		MaxChargebackRate: 0.005,
		MaxDeliveryHours:  24,
		MinSatisfaction:   4.5,
		MinPerformance:    95,
		MaxTurnoverDays:   30,
		MinCashFlowRatio:  0.25,
	},
}

// ThresholdsFor returns the thresholds applying to a marketplace.
func ThresholdsFor(m domain.Marketplace) Thresholds {
	if t, ok := marketplaceOverrides[m]; ok {
		return t
	}
	return DefaultThresholds()
}
