// Package reprice adjusts the ask of stale active listings against
// competitor prices and demand signals. Every executed change carries its
// full reasoning chain into the ledger; the floor/ceiling invariant is
// checked after the fact and alerted on, never silently clamped.
package reprice

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/fees"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/ledger"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/marketplace"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/merchant"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// Strategy selects the competitor adjustment.
type Strategy string

const (
	// StrategyCompetitive pulls the ask toward the market average.
	StrategyCompetitive Strategy = "competitive"
	// StrategyMarketFollow undercuts the lowest competitor.
	StrategyMarketFollow Strategy = "market_follow"
	// StrategyPremium targets 15% above the market average.
	StrategyPremium Strategy = "premium"
	// StrategyQuickSell prices just below the lowest competitor.
	StrategyQuickSell Strategy = "quick_sell"
)

// minRepriceMargin is the margin the reprice floor preserves after fees.
const minRepriceMargin = 0.15

// materialityPct skips changes too small to matter.
const materialityPct = 0.02

// CompetitorStats summarizes comparable listings on one venue.
type CompetitorStats struct {
	Lowest     float64
	Average    float64
	Median     float64
	Highest    float64
	SampleSize int
}

// PriceSource supplies competitor price data. Implementations: per-venue
// scrapers and FakePriceSource for tests.
type PriceSource interface {
	CompetitorStats(ctx context.Context, m domain.Marketplace, kind domain.InventoryKind, title string) (*CompetitorStats, error)
}

// Params filters one repricing run.
type Params struct {
	BatchSize        int           // stale listings pulled per run, default 20
	StaleAfter       time.Duration // minimum age since last update, default 6h
	Strategy         Strategy      // default competitive
	MaxIncreasePct   float64       // per-cycle increase clamp, default 0.10
	MaxDecreasePct   float64       // per-cycle decrease clamp, default 0.15
	MaxChangeDollars float64       // job cap; larger swings are skipped, default 50
	DryRun           bool
}

// Result summarizes one repricing run.
type Result struct {
	Considered int
	Repriced   int
	Skipped    int
	Errors     []string
}

// Repricer adjusts active listing prices.
type Repricer struct {
	clients        map[domain.Marketplace]*marketplace.Client
	listingStore   storage.ListingStore
	inventoryStore storage.InventoryStore
	alertStore     storage.AlertStore
	prices         PriceSource
	calc           *fees.Calculator
	ledger         *ledger.Writer
	logger         *log.Logger
	now            func() time.Time
}

// Options contains dependencies for creating a Repricer.
type Options struct {
	Clients        []*marketplace.Client
	ListingStore   storage.ListingStore
	InventoryStore storage.InventoryStore
	AlertStore     storage.AlertStore
	Prices         PriceSource
	Calculator     *fees.Calculator
	Ledger         *ledger.Writer
	Logger         *log.Logger
}

// New creates a Repricer.
func New(opts Options) *Repricer {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	clients := make(map[domain.Marketplace]*marketplace.Client, len(opts.Clients))
	for _, c := range opts.Clients {
		clients[c.Marketplace()] = c
	}

	return &Repricer{
		clients:        clients,
		listingStore:   opts.ListingStore,
		inventoryStore: opts.InventoryStore,
		alertStore:     opts.AlertStore,
		prices:         opts.Prices,
		calc:           opts.Calculator,
		ledger:         opts.Ledger,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock (tests).
func (r *Repricer) WithClock(now func() time.Time) *Repricer {
	r.now = now
	return r
}

// Run reprices stale ACTIVE listings, most-viewed first. Per-listing
// failures never abort the batch.
func (r *Repricer) Run(ctx context.Context, params Params) (*Result, error) {
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 6 * time.Hour
	}
	if params.Strategy == "" {
		params.Strategy = StrategyCompetitive
	}
	if params.MaxIncreasePct <= 0 {
		params.MaxIncreasePct = 0.10
	}
	if params.MaxDecreasePct <= 0 {
		params.MaxDecreasePct = 0.15
	}
	if params.MaxChangeDollars <= 0 {
		params.MaxChangeDollars = 50
	}

	cutoff := r.now().Add(-staleAfter).UnixMilli()
	listings, err := r.listingStore.GetStaleActive(ctx, cutoff, batchSize)
	if err != nil {
		return nil, fmt.Errorf("load stale listings: %w", err)
	}

	result := &Result{}
	for _, l := range listings {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Considered++

		if err := r.repriceOne(ctx, l, params, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", l.ListingID, err))
		}
	}

	r.ledger.Write(ctx, "reprice", "reprice.batch_completed", map[string]any{
		"considered": result.Considered,
		"repriced":   result.Repriced,
		"skipped":    result.Skipped,
		"errors":     len(result.Errors),
		"strategy":   params.Strategy,
		"dry_run":    params.DryRun,
	})

	return result, nil
}

func (r *Repricer) repriceOne(ctx context.Context, l *domain.Listing, params Params, result *Result) error {
	inv, err := r.inventoryStore.GetByID(ctx, l.InventoryID)
	if err != nil {
		return fmt.Errorf("load inventory: %w", err)
	}

	var reasons []string
	price := l.Price

	// Demand-driven performance multiplier.
	multiplier, why := performanceMultiplier(l, r.now().UnixMilli())
	price *= multiplier
	reasons = append(reasons, why)

	// Strategy adjustment against competitor prices, when available.
	if r.prices != nil {
		stats, err := r.prices.CompetitorStats(ctx, l.Marketplace, l.Kind, l.Title)
		if err != nil {
			reasons = append(reasons, fmt.Sprintf("competitor data unavailable: %v", err))
		} else if stats != nil && stats.SampleSize > 0 {
			price, why = applyStrategy(params.Strategy, price, stats)
			reasons = append(reasons, why)
		}
	}

	// Minimum-margin floor from accurate fees.
	feeFloor := r.marginFloor(l.Marketplace, l.Kind, inv.Cost)
	if price < feeFloor {
		reasons = append(reasons, fmt.Sprintf("lifted to fee-aware floor $%.2f", feeFloor))
		price = feeFloor
	}

	// Per-cycle step clamps.
	maxUp := l.Price * (1 + params.MaxIncreasePct)
	maxDown := l.Price * (1 - params.MaxDecreasePct)
	if price > maxUp {
		reasons = append(reasons, fmt.Sprintf("clamped to max increase $%.2f", maxUp))
		price = maxUp
	}
	if price < maxDown {
		reasons = append(reasons, fmt.Sprintf("clamped to max decrease $%.2f", maxDown))
		price = maxDown
	}

	price = merchant.RoundPriceStep(price)
	if price < feeFloor {
		// Rounding must never eat the protected margin. The floor
		// outranks the step clamps above: when they conflict, the
		// restored price may move further in one cycle than the
		// clamps alone would allow.
		price = merchant.RoundUpPriceStep(feeFloor)
	}

	delta := price - l.Price
	switch {
	case math.Abs(delta)/l.Price < materialityPct:
		result.Skipped++
		return nil
	case math.Abs(delta) > params.MaxChangeDollars:
		r.logger.Printf("[reprice] skip %s: change $%.2f exceeds job cap $%.2f", l.ListingID, delta, params.MaxChangeDollars)
		result.Skipped++
		return nil
	}

	if params.DryRun {
		r.logger.Printf("[reprice] dry-run %s: $%.2f -> $%.2f (%v)", l.ListingID, l.Price, price, reasons)
		result.Skipped++
		return nil
	}

	client, ok := r.clients[l.Marketplace]
	if !ok {
		return fmt.Errorf("no client for %s", l.Marketplace)
	}
	if err := client.UpdatePrice(ctx, l.VariantID, price); err != nil {
		return err
	}

	old := l.Price
	l.Price = price
	l.UpdatedAt = r.now().UnixMilli()
	if err := r.listingStore.Update(ctx, l); err != nil {
		return fmt.Errorf("update listing: %w", err)
	}

	// Post-condition, not a clamp: a price outside the band means the
	// recommendation logic is wrong somewhere and should be heard about.
	if !l.PriceWithinBand() {
		r.raiseAlert(ctx, fmt.Sprintf(
			"listing %s repriced to $%.2f outside band [$%.2f, $%.2f]", l.ListingID, l.Price, l.Floor, l.Ceiling))
	}

	result.Repriced++
	r.ledger.Write(ctx, "reprice", "reprice.price_changed", map[string]any{
		"listing_id":  l.ListingID,
		"marketplace": l.Marketplace,
		"old_price":   old,
		"new_price":   price,
		"strategy":    params.Strategy,
		"reasoning":   reasons,
	})
	return nil
}

// performanceMultiplier derives a small adjustment from demand signals.
func performanceMultiplier(l *domain.Listing, nowMs int64) (float64, string) {
	const (
		lowViews  = 10
		highViews = 100
		highCTR   = 0.05
	)
	ageDays := float64(nowMs-l.ListedAt) / float64(24*time.Hour/time.Millisecond)

	switch {
	case l.Views >= highViews && l.CTR >= highCTR:
		return 1.03, fmt.Sprintf("high demand (%d views, %.1f%% ctr): +3%%", l.Views, l.CTR*100)
	case l.Views < lowViews && ageDays > 2:
		return 0.97, fmt.Sprintf("low interest (%d views over %.0fd): -3%%", l.Views, ageDays)
	case ageDays > 14:
		return 0.95, fmt.Sprintf("stale listing (%.0fd old): -5%%", ageDays)
	default:
		return 1.0, "demand signals neutral"
	}
}

// applyStrategy produces the competitor-informed price.
func applyStrategy(s Strategy, price float64, stats *CompetitorStats) (float64, string) {
	switch s {
	case StrategyMarketFollow:
		target := stats.Lowest * 0.99
		return target, fmt.Sprintf("market_follow: undercut lowest $%.2f", stats.Lowest)
	case StrategyPremium:
		target := stats.Average * 1.15
		return target, fmt.Sprintf("premium: 15%% above average $%.2f", stats.Average)
	case StrategyQuickSell:
		target := stats.Lowest - 0.01
		return target, fmt.Sprintf("quick_sell: just below lowest $%.2f", stats.Lowest)
	default: // competitive
		target := (price + stats.Average) / 2
		return target, fmt.Sprintf("competitive: pulled toward average $%.2f", stats.Average)
	}
}

// marginFloor is the lowest ask preserving the minimum margin after fees.
func (r *Repricer) marginFloor(m domain.Marketplace, kind domain.InventoryKind, cost float64) float64 {
	breakEven := r.calc.CalculateBreakEvenPrice(m, kind, cost, minRepriceMargin)
	if breakEven <= 0 {
		return cost * (1 + minRepriceMargin)
	}
	return breakEven
}

func (r *Repricer) raiseAlert(ctx context.Context, message string) {
	err := r.alertStore.Insert(ctx, &domain.Alert{
		AlertID:   uuid.NewString(),
		Severity:  domain.SeverityWarn,
		Module:    "reprice",
		Message:   message,
		CreatedAt: r.now().UnixMilli(),
	})
	if err != nil {
		r.logger.Printf("[reprice] raise alert failed: %v", err)
	}
}
