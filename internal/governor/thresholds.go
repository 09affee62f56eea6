package governor

import "github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"

// Action is what a tripped threshold does to the system.
type Action string

const (
	ActionThrottle Action = "throttle"
	ActionPause    Action = "pause"
	ActionAlert    Action = "alert"
	// ActionShutdown is accepted in the table but executed as a pause;
	// killing processes is the control plane's job, not a worker's.
	ActionShutdown Action = "shutdown"
)

// Direction says which side of the bound is unhealthy.
type Direction string

const (
	// DirectionExceed triggers when the observed value rises above the
	// bound (rates, delays, queue depths).
	DirectionExceed Direction = "exceed"
	// DirectionFallBelow triggers when the observed value drops under
	// the bound (satisfaction, cash flow).
	DirectionFallBelow Direction = "fall_below"
)

// Threshold is one named row of the governance table.
type Threshold struct {
	Name      string
	Bound     float64
	Direction Direction
	Severity  domain.AlertSeverity
	Action    Action
	Module    string // throttle target; "all" hits every module
	Observe   func(o *Observations) float64
}

// riskThresholds is the fixed governance table. Order is evaluation
// order; every row is checked every run.
var riskThresholds = []Threshold{
	{
		Name:      "dispute rate",
		Bound:     0.02,
		Direction: DirectionExceed,
		Severity:  domain.SeverityCritical,
		Action:    ActionThrottle,
		Module:    "merchant",
		Observe:   func(o *Observations) float64 { return o.DisputeRate },
	},
	{
		Name:      "chargeback rate",
		Bound:     0.01,
		Direction: DirectionExceed,
		Severity:  domain.SeverityCritical,
		Action:    ActionPause,
		Observe:   func(o *Observations) float64 { return o.ChargebackRate },
	},
	{
		Name:      "cash flow ratio",
		Bound:     1.2,
		Direction: DirectionFallBelow,
		Severity:  domain.SeverityWarn,
		Action:    ActionThrottle,
		Module:    "buyer",
		Observe:   func(o *Observations) float64 { return o.CashFlowRatio },
	},
	{
		Name:      "inventory turnover days",
		Bound:     30,
		Direction: DirectionExceed,
		Severity:  domain.SeverityWarn,
		Action:    ActionAlert,
		Observe:   func(o *Observations) float64 { return o.InventoryTurnoverDays },
	},
	{
		Name:      "satisfaction",
		Bound:     4.0,
		Direction: DirectionFallBelow,
		Severity:  domain.SeverityWarn,
		Action:    ActionAlert,
		Observe:   func(o *Observations) float64 { return o.Satisfaction },
	},
	{
		Name:      "api error rate",
		Bound:     0.05,
		Direction: DirectionExceed,
		Severity:  domain.SeverityCritical,
		Action:    ActionThrottle,
		Module:    "all",
		Observe:   func(o *Observations) float64 { return o.APIErrorRate },
	},
}

// ShouldTrigger applies the threshold's direction to an observed value.
func (t Threshold) ShouldTrigger(observed float64) bool {
	switch t.Direction {
	case DirectionFallBelow:
		return observed < t.Bound
	default:
		return observed > t.Bound
	}
}

// Health grades a performance metric against its static threshold.
type Health string

const (
	HealthHealthy  Health = "healthy"
	HealthWarning  Health = "warning"
	HealthCritical Health = "critical"
)

// performanceMetric is one monitored operational figure. HigherIsBetter
// metrics compare observed/threshold; the rest compare threshold/observed.
type performanceMetric struct {
	Name           string
	Threshold      float64
	HigherIsBetter bool
	Observe        func(o *Observations) float64
}

var performanceMetrics = []performanceMetric{
	{"active listings", 10, true, func(o *Observations) float64 { return float64(o.ActiveListings) }},
	{"daily sales volume", 100, true, func(o *Observations) float64 { return o.DailySalesVolume }},
	{"average margin", 0.15, true, func(o *Observations) float64 { return o.AvgMargin }},
	{"inventory value", 500, true, func(o *Observations) float64 { return o.InventoryValue }},
	{"response time ms", 2000, false, func(o *Observations) float64 { return o.ResponseTimeMs }},
	{"queue depth", 100, false, func(o *Observations) float64 { return float64(o.QueueDepth) }},
}

// classify maps the ratio to threshold into a health grade:
// under 50% of healthy is critical, under 80% is warning.
func (m performanceMetric) classify(observed float64) Health {
	var ratio float64
	if m.HigherIsBetter {
		ratio = observed / m.Threshold
	} else {
		if observed <= 0 {
			return HealthHealthy
		}
		ratio = m.Threshold / observed
	}

	switch {
	case ratio < 0.5:
		return HealthCritical
	case ratio < 0.8:
		return HealthWarning
	default:
		return HealthHealthy
	}
}
