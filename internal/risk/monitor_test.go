package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
)

func cleanMetrics() Metrics {
	return Metrics{
		DisputeRate30d:    0.001,
		RefundRate30d:     0.005,
		ChargebackRate30d: 0.0005,
		AvgDeliveryHours:  2,
		Satisfaction:      4.8,
		SellerPerformance: 98,
		CashFlowRatio:     0.6,
		TransactionVolume: 100,
	}
}

func TestCalculateRiskScore_Clamped(t *testing.T) {
	th := DefaultThresholds()

	assert.Zero(t, CalculateRiskScore(Metrics{SellerPerformance: 100}, th))

	disaster := Metrics{
		DisputeRate30d:    1,
		RefundRate30d:     1,
		ChargebackRate30d: 1,
		AvgDeliveryHours:  500,
		SellerPerformance: 0,
	}
	score := CalculateRiskScore(disaster, th)
	assert.LessOrEqual(t, score, 100.0)
	assert.GreaterOrEqual(t, score, scoreCritical)
}

func TestCalculateRiskScore_ChargebackWeighsMost(t *testing.T) {
	th := DefaultThresholds()
	base := cleanMetrics()

	chargeback := base
	chargeback.ChargebackRate30d = th.MaxChargebackRate * 2

	dispute := base
	dispute.DisputeRate30d = th.MaxDisputeRate * 2

	assert.Greater(t, CalculateRiskScore(chargeback, th), CalculateRiskScore(dispute, th))
}

func TestUpdateMarketplace_StatusMapping(t *testing.T) {
	m := NewMonitor()

	healthy := m.UpdateMarketplace(domain.MarketplaceG2G, cleanMetrics())
	assert.Equal(t, StatusHealthy, healthy.Status)
	assert.Empty(t, healthy.Alerts)

	// A single critical threshold breach forces CRITICAL even with a
	// moderate composite score.
	breached := cleanMetrics()
	breached.ChargebackRate30d = DefaultThresholds().MaxChargebackRate * 2
	p := m.UpdateMarketplace(domain.MarketplaceG2G, breached)
	assert.Equal(t, StatusCritical, p.Status)

	found := false
	for _, a := range p.Alerts {
		if a.Severity == domain.SeverityCritical {
			found = true
		}
	}
	assert.True(t, found, "expected a critical profile alert")
}

func TestEbayOverridesAreStricter(t *testing.T) {
	m := NewMonitor()

	// Dispute rate acceptable globally but above eBay's stricter bound.
	metrics := cleanMetrics()
	metrics.DisputeRate30d = 0.015

	g2g := m.UpdateMarketplace(domain.MarketplaceG2G, metrics)
	assert.Empty(t, g2g.Alerts)

	ebay := m.UpdateMarketplace(domain.MarketplaceEbay, metrics)
	require.NotEmpty(t, ebay.Alerts)
}

func TestEvaluateOverallRisk_VolumeWeighted(t *testing.T) {
	m := NewMonitor()

	quiet := cleanMetrics()
	quiet.TransactionVolume = 1
	quiet.DisputeRate30d = 0.1 // terrible, but nearly no traffic
	m.UpdateMarketplace(domain.MarketplaceFlippa, quiet)

	busy := cleanMetrics()
	busy.TransactionVolume = 1000
	m.UpdateMarketplace(domain.MarketplaceG2G, busy)

	overall := m.EvaluateOverallRisk()
	assert.Less(t, overall.Score, scoreWarning,
		"high-volume healthy marketplace should dominate the weighted score")
	// The quiet marketplace's critical breach still surfaces.
	assert.Equal(t, StatusCritical, overall.Status)
	assert.NotEmpty(t, overall.CriticalAlerts)
	assert.NotEmpty(t, overall.Recommendations)
}

func TestEvaluateOverallRisk_Empty(t *testing.T) {
	overall := NewMonitor().EvaluateOverallRisk()
	assert.Equal(t, StatusHealthy, overall.Status)
	assert.Zero(t, overall.Score)
}

func TestCategoryScores(t *testing.T) {
	m := NewMonitor()
	assert.Zero(t, m.CategoryScore(domain.KindKey))

	metrics := cleanMetrics()
	metrics.RefundRate30d = DefaultThresholds().MaxRefundRate * 2
	m.UpdateCategory(domain.KindKey, metrics)
	assert.Greater(t, m.CategoryScore(domain.KindKey), 0.0)
}
