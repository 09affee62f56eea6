// Package allocator rebalances the purchasing budget across categories
// like a small portfolio: trailing performance decides where the next
// dollar goes, a diversification cap keeps any one category from eating
// the book, and changes under the noise threshold are left alone.
package allocator

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/ledger"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/risk"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// Strategy names a rebalance posture.
type Strategy string

const (
	StrategyConservative Strategy = "conservative"
	StrategyBalanced     Strategy = "balanced"
	StrategyAggressive   Strategy = "aggressive"
)

// Trend classifies a category's direction against its own recent history.
type Trend string

const (
	TrendGrowing   Trend = "growing"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// noiseThreshold ignores allocation differences too small to act on.
const noiseThreshold = 100.0

// CategoryPerformance is the trailing read on one category.
type CategoryPerformance struct {
	Kind               domain.InventoryKind
	ROI                float64 // (net - cost) / cost over the window
	SuccessRate        float64 // delivered / all settled
	AvgSellThroughDays float64
	RiskScore          float64
	Trend              Trend
	SampleSize         int // delivered transactions in the window
}

// AllocationItem is one category's slice of the plan.
type AllocationItem struct {
	Kind      domain.InventoryKind
	Current   float64
	Target    float64
	Priority  int // 1 is the strongest category
	Reasoning string
}

// AllocationPlan is the output of one rebalance.
type AllocationPlan struct {
	Strategy    Strategy
	TotalBudget float64
	Items       []AllocationItem
	GeneratedAt int64
}

// Params filters one rebalance run.
type Params struct {
	TrailingDays int      // performance window, default 30
	TotalBudget  float64  // 0 means the sum of current allocations
	Strategy     Strategy // empty means pick by budget size and portfolio shape
	DryRun       bool
}

// Result summarizes one rebalance run.
type Result struct {
	Plan    *AllocationPlan
	Applied int // categories whose allocation actually moved
	Ignored int // differences under the noise threshold
}

// Allocator periodically rebalances category budgets.
type Allocator struct {
	transactionStore storage.TransactionStore
	inventoryStore   storage.InventoryStore
	budgetStore      storage.BudgetStore
	monitor          *risk.Monitor
	ledger           *ledger.Writer
	logger           *log.Logger
	now              func() time.Time
}

// Options contains dependencies for creating an Allocator.
type Options struct {
	TransactionStore storage.TransactionStore
	InventoryStore   storage.InventoryStore
	BudgetStore      storage.BudgetStore
	RiskMonitor      *risk.Monitor
	Ledger           *ledger.Writer
	Logger           *log.Logger
}

// New creates an Allocator.
func New(opts Options) *Allocator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Allocator{
		transactionStore: opts.TransactionStore,
		inventoryStore:   opts.InventoryStore,
		budgetStore:      opts.BudgetStore,
		monitor:          opts.RiskMonitor,
		ledger:           opts.Ledger,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock (tests).
func (a *Allocator) WithClock(now func() time.Time) *Allocator {
	a.now = now
	return a
}

// Rebalance computes a fresh allocation plan and, unless DryRun, applies
// every target that moves an allocation by at least the noise threshold.
func (a *Allocator) Rebalance(ctx context.Context, params Params) (*Result, error) {
	trailingDays := params.TrailingDays
	if trailingDays <= 0 {
		trailingDays = 30
	}

	current, err := a.currentAllocations(ctx)
	if err != nil {
		return nil, err
	}

	totalBudget := params.TotalBudget
	if totalBudget <= 0 {
		for _, amount := range current {
			totalBudget += amount
		}
	}
	if totalBudget <= 0 {
		return nil, fmt.Errorf("no budget to allocate: %w", storage.ErrInvalidInput)
	}

	performance, err := a.measurePerformance(ctx, trailingDays)
	if err != nil {
		return nil, err
	}

	strategy := params.Strategy
	if strategy == "" {
		strategy = pickStrategy(totalBudget, performance)
	}

	plan := buildPlan(strategy, totalBudget, current, performance, a.now().UnixMilli())

	result := &Result{Plan: plan}
	for _, item := range plan.Items {
		diff := item.Target - item.Current
		if math.Abs(diff) < noiseThreshold {
			result.Ignored++
			continue
		}
		if params.DryRun {
			a.logger.Printf("[allocator] dry-run: would move %s $%.2f -> $%.2f", item.Kind, item.Current, item.Target)
			continue
		}
		if err := a.budgetStore.SetAllocated(ctx, item.Kind, item.Target); err != nil {
			return result, fmt.Errorf("set %s allocation: %w", item.Kind, err)
		}
		result.Applied++
		a.ledger.Write(ctx, "allocator", "allocator.allocation_changed", map[string]any{
			"category": item.Kind,
			"from":     item.Current,
			"to":       item.Target,
			"reason":   item.Reasoning,
		})
	}

	a.ledger.Write(ctx, "allocator", "allocator.plan_generated", map[string]any{
		"strategy":     strategy,
		"total_budget": totalBudget,
		"applied":      result.Applied,
		"ignored":      result.Ignored,
		"dry_run":      params.DryRun,
	})

	return result, nil
}

// currentAllocations reads the budget table into a map, defaulting every
// tradeable category to zero.
func (a *Allocator) currentAllocations(ctx context.Context) (map[domain.InventoryKind]float64, error) {
	out := make(map[domain.InventoryKind]float64, len(domain.AllKinds))
	for _, k := range domain.AllKinds {
		out[k] = 0
	}

	accounts, err := a.budgetStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load budget accounts: %w", err)
	}
	for _, acc := range accounts {
		out[acc.Category] = acc.Allocated
	}
	return out, nil
}

// measurePerformance computes trailing per-category performance from
// settled transactions, falling back to static priors where a category
// has no data.
func (a *Allocator) measurePerformance(ctx context.Context, trailingDays int) (map[domain.InventoryKind]*CategoryPerformance, error) {
	since := a.now().Add(-time.Duration(trailingDays) * 24 * time.Hour).UnixMilli()
	midpoint := a.now().Add(-time.Duration(trailingDays) * 12 * time.Hour).UnixMilli()

	transactions, err := a.transactionStore.GetSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load trailing transactions: %w", err)
	}

	type agg struct {
		cost, profit           float64
		earlyProfit, lateProfit float64
		sellThroughDays        float64
		delivered, settled     int
	}
	byKind := make(map[domain.InventoryKind]*agg)

	for _, tx := range transactions {
		inv, err := a.inventoryStore.GetByID(ctx, tx.InventoryID)
		if err != nil {
			continue // orphaned transaction; reconciliation's problem
		}
		s := byKind[inv.Kind]
		if s == nil {
			s = &agg{}
			byKind[inv.Kind] = s
		}

		switch tx.Status {
		case domain.TransactionDelivered:
			profit := tx.Net - inv.Cost
			s.cost += inv.Cost
			s.profit += profit
			s.delivered++
			s.settled++
			if tx.SoldAt >= inv.AcquiredAt {
				s.sellThroughDays += float64(tx.SoldAt-inv.AcquiredAt) / float64(24*time.Hour/time.Millisecond)
			}
			if tx.SoldAt < midpoint {
				s.earlyProfit += profit
			} else {
				s.lateProfit += profit
			}
		case domain.TransactionRefunded, domain.TransactionDisputed, domain.TransactionChargeback:
			s.settled++
		}
	}

	out := make(map[domain.InventoryKind]*CategoryPerformance, len(domain.AllKinds))
	for _, kind := range domain.AllKinds {
		s := byKind[kind]
		if s == nil || s.delivered == 0 {
			// Static prior: modest, middle-of-the-road category.
			out[kind] = &CategoryPerformance{
				Kind:               kind,
				ROI:                0.15,
				SuccessRate:        0.90,
				AvgSellThroughDays: 10,
				RiskScore:          a.monitor.CategoryScore(kind),
				Trend:              TrendStable,
			}
			continue
		}

		p := &CategoryPerformance{
			Kind:               kind,
			SuccessRate:        float64(s.delivered) / float64(s.settled),
			AvgSellThroughDays: s.sellThroughDays / float64(s.delivered),
			RiskScore:          a.monitor.CategoryScore(kind),
			SampleSize:         s.delivered,
			Trend:              TrendStable,
		}
		if s.cost > 0 {
			p.ROI = s.profit / s.cost
		}
		switch {
		case s.lateProfit > s.earlyProfit*1.1:
			p.Trend = TrendGrowing
		case s.lateProfit < s.earlyProfit*0.9:
			p.Trend = TrendDeclining
		}
		out[kind] = p
	}
	return out, nil
}

// pickStrategy selects a posture from budget size and portfolio shape.
func pickStrategy(totalBudget float64, performance map[domain.InventoryKind]*CategoryPerformance) Strategy {
	var roiSum, riskSum float64
	for _, p := range performance {
		roiSum += p.ROI
		riskSum += p.RiskScore
	}
	n := float64(len(performance))
	avgROI, avgRisk := roiSum/n, riskSum/n

	switch {
	case totalBudget < 1000 || avgRisk > 60 || avgROI < 0.10:
		return StrategyConservative
	case totalBudget >= 5000 && avgROI > 0.25 && avgRisk < 40:
		return StrategyAggressive
	default:
		return StrategyBalanced
	}
}

// diversificationCap is the maximum single-category share per strategy.
var diversificationCap = map[Strategy]float64{
	StrategyConservative: 0.25,
	StrategyBalanced:     0.35,
	StrategyAggressive:   0.60,
}

// buildPlan weights categories by performance, caps single-category
// share and converts shares to dollar targets.
func buildPlan(strategy Strategy, totalBudget float64, current map[domain.InventoryKind]float64, performance map[domain.InventoryKind]*CategoryPerformance, nowMs int64) *AllocationPlan {
	maxShare := diversificationCap[strategy]

	weights := make(map[domain.InventoryKind]float64, len(performance))
	var totalWeight float64
	for kind, p := range performance {
		w := math.Max(p.ROI, 0.01) * p.SuccessRate * (1 - p.RiskScore/200)
		switch p.Trend {
		case TrendGrowing:
			w *= 1.2
		case TrendDeclining:
			w *= 0.8
		}
		weights[kind] = w
		totalWeight += w
	}

	shares := make(map[domain.InventoryKind]float64, len(weights))
	for kind, w := range weights {
		shares[kind] = w / totalWeight
	}

	// Cap dominant categories and spill the excess onto the rest,
	// proportionally. A few passes settle any knock-on overflow.
	for range weights {
		overflow := 0.0
		var uncappedWeight float64
		for kind, share := range shares {
			if share > maxShare {
				overflow += share - maxShare
				shares[kind] = maxShare
			} else if share < maxShare {
				uncappedWeight += weights[kind]
			}
		}
		if overflow < 1e-9 || uncappedWeight == 0 {
			break
		}
		for kind, share := range shares {
			if share < maxShare {
				shares[kind] = share + overflow*(weights[kind]/uncappedWeight)
			}
		}
	}

	plan := &AllocationPlan{
		Strategy:    strategy,
		TotalBudget: totalBudget,
		GeneratedAt: nowMs,
	}
	for kind, share := range shares {
		p := performance[kind]
		plan.Items = append(plan.Items, AllocationItem{
			Kind:    kind,
			Current: current[kind],
			Target:  math.Round(share*totalBudget*100) / 100,
			Reasoning: fmt.Sprintf("roi %.2f, success %.0f%%, risk %.0f, trend %s, share %.0f%%",
				p.ROI, p.SuccessRate*100, p.RiskScore, p.Trend, share*100),
		})
	}

	sort.Slice(plan.Items, func(i, j int) bool {
		if plan.Items[i].Target != plan.Items[j].Target {
			return plan.Items[i].Target > plan.Items[j].Target
		}
		return plan.Items[i].Kind < plan.Items[j].Kind
	})
	for i := range plan.Items {
		plan.Items[i].Priority = i + 1
	}

	return plan
}
