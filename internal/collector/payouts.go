package collector

import (
	"time"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
)

// PayoutCadence is how often a marketplace settles.
type PayoutCadence string

const (
	CadenceDaily    PayoutCadence = "daily"
	CadenceWeekly   PayoutCadence = "weekly"
	CadenceBiweekly PayoutCadence = "biweekly"
	CadenceMonthly  PayoutCadence = "monthly"
)

// period returns the cadence length. Monthly is modeled as 30 days;
// projection is an estimate, not an accounting commitment.
func (c PayoutCadence) period() time.Duration {
	switch c {
	case CadenceDaily:
		return 24 * time.Hour
	case CadenceWeekly:
		return 7 * 24 * time.Hour
	case CadenceBiweekly:
		return 14 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

// payoutSchedule is each venue's settlement cadence and processing
// delay, from their published payout terms.
var payoutSchedule = map[domain.Marketplace]struct {
	Cadence PayoutCadence
	Delay   time.Duration
}{
	domain.MarketplaceGameflip: {CadenceDaily, 24 * time.Hour},
	domain.MarketplaceEbay:     {CadenceBiweekly, 48 * time.Hour},
	domain.MarketplaceG2G:      {CadenceWeekly, 72 * time.Hour},
	domain.MarketplaceKinguin:  {CadenceWeekly, 48 * time.Hour},
	domain.MarketplaceGodaddy:  {CadenceMonthly, 5 * 24 * time.Hour},
	domain.MarketplaceFlippa:   {CadenceMonthly, 7 * 24 * time.Hour},
}

// PayoutProjection is the next expected settlement for one venue.
type PayoutProjection struct {
	Marketplace domain.Marketplace
	Cadence     PayoutCadence
	NextPayout  int64 // ms
}

// ProjectPayouts estimates each marketplace's next settlement time: the
// next cadence boundary (anchored to the Unix epoch) plus the venue's
// processing delay.
func (c *Collector) ProjectPayouts() []PayoutProjection {
	nowMs := c.now().UnixMilli()

	out := make([]PayoutProjection, 0, len(domain.AllMarketplaces))
	for _, m := range domain.AllMarketplaces {
		sched, ok := payoutSchedule[m]
		if !ok {
			continue
		}
		periodMs := sched.Cadence.period().Milliseconds()
		nextBoundary := (nowMs/periodMs + 1) * periodMs
		out = append(out, PayoutProjection{
			Marketplace: m,
			Cadence:     sched.Cadence,
			NextPayout:  nextBoundary + sched.Delay.Milliseconds(),
		})
	}
	return out
}
