// Package brains runs the experimentation loop: it completes RUNNING
// A/B experiments once their evidence is strong enough, proposes new
// ones from a fixed template catalog, and distills completed results
// into cross-experiment learning insights.
package brains

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/ledger"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

const (
	// minRunTime is how long an experiment must run before analysis.
	minRunTime = 3 * 24 * time.Hour
	// maxRunTime closes experiments that never reached significance.
	maxRunTime = 21 * 24 * time.Hour
	// minSamplesPerVariant gates analysis on sample size.
	minSamplesPerVariant = 30
	// significanceLevel is the p-value cutoff for declaring an effect.
	significanceLevel = 0.05
	// minEffectSize is the smallest |lift| that counts as a real win.
	minEffectSize = 0.05
	// idleAfter marks an experiment type as overdue for another run.
	idleAfter = 60 * 24 * time.Hour
	// defaultMaxConcurrent caps simultaneously RUNNING experiments.
	defaultMaxConcurrent = 3

	// Listing-signal cutoffs used to prioritize experiment types.
	weakCTR       = 0.03
	staleAfterDay = 14
)

// AnalyzeParams filters one analysis run.
type AnalyzeParams struct {
	DryRun bool
}

// AnalyzeResult summarizes one analysis run.
type AnalyzeResult struct {
	Considered   int
	Completed    int
	Inconclusive int
	Errors       []string
}

// ProposeParams filters one proposal run.
type ProposeParams struct {
	MaxConcurrent int // cap on RUNNING experiments, default 3
	DryRun        bool
}

// ProposeResult summarizes one proposal run.
type ProposeResult struct {
	Running  int
	Proposed int
	Errors   []string
}

// Insight is an aggregated lesson across completed experiments.
type Insight struct {
	Type        domain.ExperimentType
	Finding     string
	Confidence  float64 // fraction of completed experiments agreeing
	SampleCount int     // completed experiments backing the finding
	AverageLift float64
	Suggestion  string
}

// Brains manages the experiment lifecycle.
type Brains struct {
	experimentStore storage.ExperimentStore
	listingStore    storage.ListingStore
	ledger          *ledger.Writer
	logger          *log.Logger
	now             func() time.Time
}

// Options contains dependencies for creating a Brains.
type Options struct {
	ExperimentStore storage.ExperimentStore
	ListingStore    storage.ListingStore
	Ledger          *ledger.Writer
	Logger          *log.Logger
}

// New creates a Brains.
func New(opts Options) *Brains {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Brains{
		experimentStore: opts.ExperimentStore,
		listingStore:    opts.ListingStore,
		ledger:          opts.Ledger,
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock (tests).
func (b *Brains) WithClock(now func() time.Time) *Brains {
	b.now = now
	return b
}

// AnalyzeExperiments evaluates every RUNNING experiment and completes
// those with a significant result, or ties them off after the maximum
// run time. Per-experiment failures never abort the batch.
func (b *Brains) AnalyzeExperiments(ctx context.Context, params AnalyzeParams) (*AnalyzeResult, error) {
	running, err := b.experimentStore.GetByStatus(ctx, domain.ExperimentRunning)
	if err != nil {
		return nil, fmt.Errorf("load running experiments: %w", err)
	}

	result := &AnalyzeResult{}
	nowMs := b.now().UnixMilli()

	for _, e := range running {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Considered++

		if err := b.analyzeOne(ctx, e, nowMs, params.DryRun, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", e.ExperimentID, err))
		}
	}

	b.ledger.Write(ctx, "brains", "brains.analyze_completed", map[string]any{
		"considered":   result.Considered,
		"completed":    result.Completed,
		"inconclusive": result.Inconclusive,
		"errors":       len(result.Errors),
		"dry_run":      params.DryRun,
	})
	return result, nil
}

func (b *Brains) analyzeOne(ctx context.Context, e *domain.Experiment, nowMs int64, dryRun bool, result *AnalyzeResult) error {
	age := time.Duration(nowMs-e.StartedAt) * time.Millisecond
	if age < minRunTime {
		result.Inconclusive++
		return nil
	}

	enoughSamples := e.SamplesA >= minSamplesPerVariant && e.SamplesB >= minSamplesPerVariant

	var (
		winner    domain.ExperimentWinner
		reasoning string
		p         = 0.50
		effect    float64
	)

	if enoughSamples {
		t := tStatistic(e.MeanA, e.MeanB, e.StdDevA, e.StdDevB, e.SamplesA, e.SamplesB)
		p = approxPValue(t)
		effect = lift(e.MeanA, e.MeanB)

		if p < significanceLevel {
			switch {
			case effect > minEffectSize:
				winner = domain.WinnerB
				reasoning = fmt.Sprintf("B beats A: lift %.1f%% at p=%.3f (t=%.2f, n=%d/%d)",
					effect*100, p, t, e.SamplesA, e.SamplesB)
			case effect < -minEffectSize:
				winner = domain.WinnerA
				reasoning = fmt.Sprintf("A beats B: lift %.1f%% at p=%.3f (t=%.2f, n=%d/%d)",
					effect*100, p, t, e.SamplesA, e.SamplesB)
			default:
				winner = domain.WinnerTie
				reasoning = fmt.Sprintf("significant at p=%.3f but effect %.1f%% is below the %.0f%% threshold",
					p, effect*100, minEffectSize*100)
			}
		}
	}

	if winner == "" {
		if age < maxRunTime {
			result.Inconclusive++
			return nil
		}
		// Out of runway: call it, whatever the evidence says.
		winner = domain.WinnerTie
		effect = lift(e.MeanA, e.MeanB)
		if enoughSamples {
			reasoning = fmt.Sprintf("no significant difference after %.0f days (p=%.2f)", age.Hours()/24, p)
		} else {
			reasoning = fmt.Sprintf("insufficient samples after %.0f days (%d/%d, need %d each)",
				age.Hours()/24, e.SamplesA, e.SamplesB, minSamplesPerVariant)
		}
	}

	if dryRun {
		b.logger.Printf("[brains] dry-run %s (%s): winner=%s %s", e.ExperimentID, e.Name, winner, reasoning)
		result.Completed++
		return nil
	}

	e.Status = domain.ExperimentComplete
	e.Winner = winner
	e.Lift = effect
	e.PValue = p
	e.Reasoning = reasoning
	e.CompletedAt = nowMs
	if err := b.experimentStore.Update(ctx, e); err != nil {
		return fmt.Errorf("complete experiment: %w", err)
	}

	result.Completed++
	b.ledger.Write(ctx, "brains", "brains.experiment_completed", map[string]any{
		"experiment_id": e.ExperimentID,
		"type":          e.Type,
		"name":          e.Name,
		"winner":        winner,
		"lift":          effect,
		"p_value":       p,
		"reasoning":     reasoning,
	})
	return nil
}

// ProposeExperiments starts new experiments from the template catalog,
// up to the concurrency cap. Types that have not run recently and types
// whose listing signals look weak go first.
func (b *Brains) ProposeExperiments(ctx context.Context, params ProposeParams) (*ProposeResult, error) {
	maxConcurrent := params.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}

	all, err := b.experimentStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load experiments: %w", err)
	}

	result := &ProposeResult{}
	lastRun := make(map[domain.ExperimentType]int64)
	runs := make(map[domain.ExperimentType]int)
	runningTypes := make(map[domain.ExperimentType]bool)
	for _, e := range all {
		runs[e.Type]++
		if e.StartedAt > lastRun[e.Type] {
			lastRun[e.Type] = e.StartedAt
		}
		if e.Status == domain.ExperimentRunning {
			result.Running++
			runningTypes[e.Type] = true
		}
	}

	slots := maxConcurrent - result.Running
	if slots <= 0 {
		b.writeProposeLedger(ctx, result, params)
		return result, nil
	}

	candidates := b.rankTypes(ctx, lastRun, runningTypes)
	nowMs := b.now().UnixMilli()

	for _, t := range candidates {
		if slots <= 0 {
			break
		}
		tpl, ok := templateFor(t, runs[t])
		if !ok {
			continue
		}

		if params.DryRun {
			b.logger.Printf("[brains] dry-run propose %s: %s", t, tpl.Name)
			result.Proposed++
			slots--
			continue
		}

		e := &domain.Experiment{
			ExperimentID: uuid.NewString(),
			Type:         t,
			Name:         tpl.Name,
			VariantA:     tpl.VariantA,
			VariantB:     tpl.VariantB,
			Status:       domain.ExperimentRunning,
			StartedAt:    nowMs,
			CreatedAt:    nowMs,
		}
		if err := b.experimentStore.Insert(ctx, e); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", t, err))
			continue
		}

		result.Proposed++
		slots--
		b.ledger.Write(ctx, "brains", "brains.experiment_started", map[string]any{
			"experiment_id": e.ExperimentID,
			"type":          t,
			"name":          tpl.Name,
			"variant_a":     tpl.VariantA,
			"variant_b":     tpl.VariantB,
		})
	}

	b.writeProposeLedger(ctx, result, params)
	return result, nil
}

func (b *Brains) writeProposeLedger(ctx context.Context, result *ProposeResult, params ProposeParams) {
	b.ledger.Write(ctx, "brains", "brains.propose_completed", map[string]any{
		"running":  result.Running,
		"proposed": result.Proposed,
		"errors":   len(result.Errors),
		"dry_run":  params.DryRun,
	})
}

// rankTypes orders experiment types by how much they deserve a run.
// Types already RUNNING are excluded; idle time dominates, then weak
// listing signals break ties.
func (b *Brains) rankTypes(ctx context.Context, lastRun map[domain.ExperimentType]int64, running map[domain.ExperimentType]bool) []domain.ExperimentType {
	nowMs := b.now().UnixMilli()
	avgCTR, staleShare := b.listingSignals(ctx)

	type scored struct {
		t     domain.ExperimentType
		score float64
	}
	var ranked []scored

	for _, t := range domain.AllExperimentTypes {
		if running[t] {
			continue
		}

		var score float64
		last, ever := lastRun[t]
		if !ever {
			score += 100 // never run at all
		} else {
			idleDays := float64(nowMs-last) / float64(24*time.Hour/time.Millisecond)
			if idleDays >= idleAfter.Hours()/24 {
				score += 50
			}
			score += math.Min(idleDays, 30)
		}

		// Weak click-through points at merchandising experiments; a
		// stale book points at pricing.
		if avgCTR < weakCTR {
			switch t {
			case domain.ExperimentTitle, domain.ExperimentThumbnail, domain.ExperimentCopy:
				score += 20
			}
		}
		if staleShare > 0.5 && t == domain.ExperimentPrice {
			score += 20
		}

		ranked = append(ranked, scored{t: t, score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	out := make([]domain.ExperimentType, len(ranked))
	for i, s := range ranked {
		out[i] = s.t
	}
	return out
}

// listingSignals reads the active book for demand health. Errors fall
// back to neutral signals; proposal must not depend on listings being
// queryable.
func (b *Brains) listingSignals(ctx context.Context) (avgCTR, staleShare float64) {
	avgCTR = weakCTR // neutral default: no boost either way

	if b.listingStore == nil {
		return avgCTR, 0
	}
	active, err := b.listingStore.GetByStatus(ctx, domain.ListingActive)
	if err != nil || len(active) == 0 {
		return avgCTR, 0
	}

	nowMs := b.now().UnixMilli()
	var ctrSum float64
	var stale int
	for _, l := range active {
		ctrSum += l.CTR
		ageDays := float64(nowMs-l.ListedAt) / float64(24*time.Hour/time.Millisecond)
		if ageDays > staleAfterDay {
			stale++
		}
	}
	return ctrSum / float64(len(active)), float64(stale) / float64(len(active))
}

// LearningInsights aggregates completed experiments into per-type
// lessons with a consistency-based confidence.
func (b *Brains) LearningInsights(ctx context.Context) ([]Insight, error) {
	completed, err := b.experimentStore.GetByStatus(ctx, domain.ExperimentComplete)
	if err != nil {
		return nil, fmt.Errorf("load completed experiments: %w", err)
	}

	byType := make(map[domain.ExperimentType][]*domain.Experiment)
	for _, e := range completed {
		byType[e.Type] = append(byType[e.Type], e)
	}

	var insights []Insight
	for _, t := range domain.AllExperimentTypes {
		exps := byType[t]
		if len(exps) < 2 {
			continue
		}

		var bWins, aWins int
		var liftSum float64
		for _, e := range exps {
			switch e.Winner {
			case domain.WinnerB:
				bWins++
				liftSum += e.Lift
			case domain.WinnerA:
				aWins++
				liftSum += e.Lift
			}
		}

		decisive := bWins + aWins
		if decisive == 0 {
			continue
		}

		total := len(exps)
		avgLift := liftSum / float64(decisive)

		var finding, suggestion string
		var confidence float64
		if bWins >= aWins {
			confidence = float64(bWins) / float64(total)
			finding = fmt.Sprintf("challenger variants win %d of %d %s experiments (avg lift %.1f%%)",
				bWins, total, t, avgLift*100)
			suggestion = "roll the winning challenger treatment into the default " + suggestionTarget(t)
		} else {
			confidence = float64(aWins) / float64(total)
			finding = fmt.Sprintf("control variants hold in %d of %d %s experiments (avg lift %.1f%%)",
				aWins, total, t, avgLift*100)
			suggestion = "keep the current default " + suggestionTarget(t)
		}

		insights = append(insights, Insight{
			Type:        t,
			Finding:     finding,
			Confidence:  confidence,
			SampleCount: total,
			AverageLift: avgLift,
			Suggestion:  suggestion,
		})
	}
	return insights, nil
}

// PublishInsights writes the current learning insights to the ledger
// so operators see what the experiment history recommends. Nothing is
// written while too few experiments have completed.
func (b *Brains) PublishInsights(ctx context.Context) ([]Insight, error) {
	insights, err := b.LearningInsights(ctx)
	if err != nil {
		return nil, err
	}
	if len(insights) == 0 {
		return nil, nil
	}

	var items []map[string]any
	for _, in := range insights {
		items = append(items, map[string]any{
			"type":         in.Type,
			"finding":      in.Finding,
			"confidence":   in.Confidence,
			"sample_count": in.SampleCount,
			"average_lift": in.AverageLift,
			"suggestion":   in.Suggestion,
		})
	}
	b.ledger.Write(ctx, "brains", "brains.learning_insights", map[string]any{
		"insights": items,
	})
	return insights, nil
}

func suggestionTarget(t domain.ExperimentType) string {
	switch t {
	case domain.ExperimentPrice:
		return "pricing strategy"
	case domain.ExperimentTitle:
		return "title template"
	case domain.ExperimentThumbnail:
		return "thumbnail"
	case domain.ExperimentCopy:
		return "description template"
	case domain.ExperimentSourcing:
		return "sourcing policy"
	case domain.ExperimentDelivery:
		return "delivery channel"
	default:
		return "configuration"
	}
}
