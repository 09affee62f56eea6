// Package risk scores marketplace and category exposure. The Monitor is
// constructed once at process start and injected into every stage that
// needs a risk signal (Evaluator, Governor).
package risk

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
)

// Status grades a risk profile.
type Status string

const (
	StatusHealthy  Status = "HEALTHY"
	StatusWarning  Status = "WARNING"
	StatusCritical Status = "CRITICAL"
)

// Score thresholds for status mapping.
const (
	scoreWarning  = 40.0
	scoreCritical = 80.0
)

// Component weights of the risk score. Chargebacks carry the highest
// weight: enough of them ends the account, not just the margin.
const (
	weightDispute     = 0.25
	weightRefund      = 0.20
	weightChargeback  = 0.30
	weightPerformance = 0.15
	weightDelivery    = 0.10
)

// ProfileAlert is one threshold breach inside a profile.
type ProfileAlert struct {
	Severity domain.AlertSeverity
	Message  string
}

// Profile is the scored risk snapshot for one scope.
type Profile struct {
	Scope      string // marketplace or category name
	Metrics    Metrics
	Thresholds Thresholds
	Score      float64
	Status     Status
	Alerts     []ProfileAlert
}

// Overall is the aggregate risk picture across all profiles.
type Overall struct {
	Score           float64 // transaction-volume-weighted
	Status          Status
	CriticalAlerts  []string
	Recommendations []string
}

// Monitor maintains per-marketplace and per-category risk profiles.
type Monitor struct {
	mu           sync.RWMutex
	marketplaces map[domain.Marketplace]*Profile
	categories   map[domain.InventoryKind]*Profile
}

// NewMonitor creates an empty Monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		marketplaces: make(map[domain.Marketplace]*Profile),
		categories:   make(map[domain.InventoryKind]*Profile),
	}
}

// UpdateMarketplace rescores one marketplace from fresh metrics and
// returns the resulting profile.
func (m *Monitor) UpdateMarketplace(marketplace domain.Marketplace, metrics Metrics) *Profile {
	p := buildProfile(string(marketplace), metrics, ThresholdsFor(marketplace))

	m.mu.Lock()
	m.marketplaces[marketplace] = p
	m.mu.Unlock()

	return cloneProfile(p)
}

// UpdateCategory rescores one category from fresh metrics and returns the
// resulting profile. Categories use the global default thresholds.
func (m *Monitor) UpdateCategory(kind domain.InventoryKind, metrics Metrics) *Profile {
	p := buildProfile(string(kind), metrics, DefaultThresholds())

	m.mu.Lock()
	m.categories[kind] = p
	m.mu.Unlock()

	return cloneProfile(p)
}

// MarketplaceScore returns the current risk score for a marketplace,
// or 0 when no metrics have been reported yet.
func (m *Monitor) MarketplaceScore(marketplace domain.Marketplace) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if p, ok := m.marketplaces[marketplace]; ok {
		return p.Score
	}
	return 0
}

// CategoryScore returns the current risk score for a category,
// or 0 when no metrics have been reported yet.
func (m *Monitor) CategoryScore(kind domain.InventoryKind) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if p, ok := m.categories[kind]; ok {
		return p.Score
	}
	return 0
}

// CalculateRiskScore computes the weighted risk score for metrics against
// thresholds, clamped to [0,100]. Each rate component is the ratio of the
// observed 30d rate to its bound, saturating at 2x; the performance
// component is the relative deficit below the minimum; the delivery
// component is the ratio of observed to allowed delivery time.
func CalculateRiskScore(metrics Metrics, t Thresholds) float64 {
	dispute := saturatingRatio(metrics.DisputeRate30d, t.MaxDisputeRate)
	refund := saturatingRatio(metrics.RefundRate30d, t.MaxRefundRate)
	chargeback := saturatingRatio(metrics.ChargebackRate30d, t.MaxChargebackRate)

	perfDeficit := 0.0
	if t.MinPerformance > 0 && metrics.SellerPerformance < t.MinPerformance {
		perfDeficit = (t.MinPerformance - metrics.SellerPerformance) / t.MinPerformance
	}

	delivery := saturatingRatio(metrics.AvgDeliveryHours, t.MaxDeliveryHours)

	score := 100 * (weightDispute*dispute +
		weightRefund*refund +
		weightChargeback*chargeback +
		weightPerformance*perfDeficit +
		weightDelivery*delivery)

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// EvaluateOverallRisk aggregates every profile into one volume-weighted
// score, collecting critical alerts and remediation recommendations.
func (m *Monitor) EvaluateOverallRisk() *Overall {
	m.mu.RLock()
	profiles := make([]*Profile, 0, len(m.marketplaces)+len(m.categories))
	for _, p := range m.marketplaces {
		profiles = append(profiles, p)
	}
	for _, p := range m.categories {
		profiles = append(profiles, p)
	}
	m.mu.RUnlock()

	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Scope < profiles[j].Scope })

	overall := &Overall{Status: StatusHealthy}
	if len(profiles) == 0 {
		return overall
	}

	var weightedSum, totalVolume float64
	anyCritical := false
	for _, p := range profiles {
		volume := float64(p.Metrics.TransactionVolume)
		if volume <= 0 {
			volume = 1 // scopes with no traffic still count, just barely
		}
		weightedSum += p.Score * volume
		totalVolume += volume

		if p.Status == StatusCritical {
			anyCritical = true
		}
		for _, a := range p.Alerts {
			if a.Severity == domain.SeverityCritical {
				overall.CriticalAlerts = append(overall.CriticalAlerts,
					fmt.Sprintf("%s: %s", p.Scope, a.Message))
			}
		}
		overall.Recommendations = append(overall.Recommendations, recommend(p)...)
	}

	overall.Score = weightedSum / totalVolume
	switch {
	case anyCritical || overall.Score >= scoreCritical:
		overall.Status = StatusCritical
	case overall.Score >= scoreWarning:
		overall.Status = StatusWarning
	}

	return overall
}

// buildProfile scores metrics and derives status and threshold alerts.
func buildProfile(scope string, metrics Metrics, t Thresholds) *Profile {
	p := &Profile{
		Scope:      scope,
		Metrics:    metrics,
		Thresholds: t,
		Score:      CalculateRiskScore(metrics, t),
	}

	p.Alerts = collectAlerts(metrics, t)

	anyCritical := false
	for _, a := range p.Alerts {
		if a.Severity == domain.SeverityCritical {
			anyCritical = true
			break
		}
	}

	switch {
	case anyCritical || p.Score >= scoreCritical:
		p.Status = StatusCritical
	case p.Score >= scoreWarning:
		p.Status = StatusWarning
	default:
		p.Status = StatusHealthy
	}

	return p
}

// collectAlerts lists threshold breaches. A breach beyond 1.5x the bound
// (or performance below half the minimum) is CRITICAL, otherwise WARN.
func collectAlerts(metrics Metrics, t Thresholds) []ProfileAlert {
	var alerts []ProfileAlert

	exceed := func(name string, observed, bound float64) {
		if bound <= 0 || observed <= bound {
			return
		}
		sev := domain.SeverityWarn
		if observed >= bound*1.5 {
			sev = domain.SeverityCritical
		}
		alerts = append(alerts, ProfileAlert{
			Severity: sev,
			Message:  fmt.Sprintf("%s %.4f exceeds bound %.4f", name, observed, bound),
		})
	}

	fallBelow := func(name string, observed, bound float64) {
		if bound <= 0 || observed >= bound {
			return
		}
		sev := domain.SeverityWarn
		if observed <= bound*0.5 {
			sev = domain.SeverityCritical
		}
		alerts = append(alerts, ProfileAlert{
			Severity: sev,
			Message:  fmt.Sprintf("%s %.2f below minimum %.2f", name, observed, bound),
		})
	}

	exceed("dispute rate (30d)", metrics.DisputeRate30d, t.MaxDisputeRate)
	exceed("refund rate (30d)", metrics.RefundRate30d, t.MaxRefundRate)
	exceed("chargeback rate (30d)", metrics.ChargebackRate30d, t.MaxChargebackRate)
	exceed("avg delivery hours", metrics.AvgDeliveryHours, t.MaxDeliveryHours)
	exceed("inventory turnover days", metrics.InventoryTurnoverDays, t.MaxTurnoverDays)
	fallBelow("satisfaction", metrics.Satisfaction, t.MinSatisfaction)
	fallBelow("seller performance", metrics.SellerPerformance, t.MinPerformance)
	fallBelow("cash flow ratio", metrics.CashFlowRatio, t.MinCashFlowRatio)

	return alerts
}

// recommend produces remediation text for a degraded profile.
func recommend(p *Profile) []string {
	if p.Status == StatusHealthy {
		return nil
	}

	var recs []string
	t := p.Thresholds
	m := p.Metrics

	if m.ChargebackRate30d > t.MaxChargebackRate {
		recs = append(recs, fmt.Sprintf(
			"%s: chargeback rate %.2f%% threatens the account; pause new listings and tighten buyer screening",
			p.Scope, m.ChargebackRate30d*100))
	}
	if m.DisputeRate30d > t.MaxDisputeRate {
		recs = append(recs, fmt.Sprintf(
			"%s: dispute rate %.2f%% over bound; review delivery templates and response times",
			p.Scope, m.DisputeRate30d*100))
	}
	if m.RefundRate30d > t.MaxRefundRate {
		recs = append(recs, fmt.Sprintf(
			"%s: refund rate %.2f%% over bound; audit supplier quality for recent purchases",
			p.Scope, m.RefundRate30d*100))
	}
	if m.SellerPerformance < t.MinPerformance {
		recs = append(recs, fmt.Sprintf(
			"%s: seller performance %.0f below %.0f; slow purchasing until the score recovers",
			p.Scope, m.SellerPerformance, t.MinPerformance))
	}
	if m.AvgDeliveryHours > t.MaxDeliveryHours {
		recs = append(recs, fmt.Sprintf(
			"%s: average delivery %.0fh over %.0fh; raise fulfillment concurrency or cut escrow inventory",
			p.Scope, m.AvgDeliveryHours, t.MaxDeliveryHours))
	}

	return recs
}

// saturatingRatio returns observed/bound scaled so the bound itself maps
// to 0.5 and 2x the bound (or more) maps to 1.0.
func saturatingRatio(observed, bound float64) float64 {
	if bound <= 0 || observed <= 0 {
		return 0
	}
	r := observed / bound / 2
	if r > 1 {
		return 1
	}
	return r
}

func cloneProfile(p *Profile) *Profile {
	cp := *p
	cp.Alerts = append([]ProfileAlert(nil), p.Alerts...)
	return &cp
}
