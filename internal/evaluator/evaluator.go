// Package evaluator decides which pending deal candidates are worth
// buying. It re-derives fees through the fee calculator rather than
// trusting the scanner's estimate, so every approval carries a margin
// the rest of the pipeline can rely on.
package evaluator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/fees"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/ledger"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/risk"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// Criteria bound what the evaluator accepts. Seller score and expected
// sell-through carry a soft band: inside 80% of the bound the candidate
// passes with a warning note, outside it the candidate is rejected.
type Criteria struct {
	MinNetMargin       float64
	MinConfidence      float64
	MinSellerScore     float64
	MaxSellThroughDays float64
	RiskCeiling        float64 // combined risk score; 1.5x is the hard reject line
}

// DefaultCriteria returns the production evaluation bounds.
func DefaultCriteria() Criteria {
	return Criteria{
		MinNetMargin:       0.20,
		MinConfidence:      0.60,
		MinSellerScore:     3.5,
		MaxSellThroughDays: 14,
		RiskCeiling:        50,
	}
}

// softBandRatio is the fraction of a soft bound a candidate may miss by
// and still pass with a warning.
const softBandRatio = 0.80

// Combined risk blends the category and marketplace profiles; the venue
// where the item will actually sell dominates.
const (
	riskWeightCategory    = 0.40
	riskWeightMarketplace = 0.60
)

// BatchParams filters one evaluation run.
type BatchParams struct {
	BatchSize int  // candidates pulled per run, default 50
	DryRun    bool // evaluate and log without mutating candidates
	Criteria  *Criteria
}

// BatchResult summarizes one evaluation run.
type BatchResult struct {
	Evaluated int
	Approved  int
	Rejected  int
	Errors    []string
}

// Evaluator scores PENDING candidates against the criteria.
type Evaluator struct {
	candidateStore storage.CandidateStore
	supplierStore  storage.SupplierStore
	calc           *fees.Calculator
	monitor        *risk.Monitor
	ledger         *ledger.Writer
	logger         *log.Logger
	now            func() time.Time
}

// Options contains dependencies for creating an Evaluator.
type Options struct {
	CandidateStore storage.CandidateStore
	SupplierStore  storage.SupplierStore
	Calculator     *fees.Calculator
	RiskMonitor    *risk.Monitor
	Ledger         *ledger.Writer
	Logger         *log.Logger
}

// New creates an Evaluator.
func New(opts Options) *Evaluator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Evaluator{
		candidateStore: opts.CandidateStore,
		supplierStore:  opts.SupplierStore,
		calc:           opts.Calculator,
		monitor:        opts.RiskMonitor,
		ledger:         opts.Ledger,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock (tests).
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now
	return e
}

// EvaluateBatch pulls PENDING candidates (best margin first) and decides
// each one. Only PENDING candidates are eligible, so re-running a batch
// never touches already-decided candidates. Per-candidate store failures
// are recorded and skipped.
func (e *Evaluator) EvaluateBatch(ctx context.Context, params BatchParams) (*BatchResult, error) {
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	criteria := DefaultCriteria()
	if params.Criteria != nil {
		criteria = *params.Criteria
	}

	candidates, err := e.candidateStore.GetByStatus(ctx, domain.CandidatePending, batchSize)
	if err != nil {
		return nil, fmt.Errorf("load pending candidates: %w", err)
	}

	blacklisted, err := e.blacklistedSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("load blacklisted suppliers: %w", err)
	}

	result := &BatchResult{}
	for _, c := range candidates {
		decision := e.decide(c, criteria, blacklisted)
		result.Evaluated++

		if params.DryRun {
			e.logger.Printf("[evaluator] dry-run %s: %s (%s)", c.CandidateID, decision.status, decision.reasoning())
			if decision.status == domain.CandidateApproved {
				result.Approved++
			} else {
				result.Rejected++
			}
			continue
		}

		c.Status = decision.status
		c.Notes = decision.reasoning()
		c.RiskScore = decision.riskScore
		c.ProcessedAt = e.now().UnixMilli()

		if err := e.candidateStore.Update(ctx, c); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("update %s: %v", c.CandidateID, err))
			continue
		}

		if decision.status == domain.CandidateApproved {
			result.Approved++
		} else {
			result.Rejected++
		}
	}

	e.ledger.Write(ctx, "evaluator", "evaluator.batch_completed", map[string]any{
		"evaluated": result.Evaluated,
		"approved":  result.Approved,
		"rejected":  result.Rejected,
		"errors":    len(result.Errors),
		"dry_run":   params.DryRun,
	})

	return result, nil
}

// decision accumulates the reasoning for one candidate.
type decision struct {
	status    domain.CandidateStatus
	riskScore float64
	reasons   []string
}

func (d *decision) reject(reason string) {
	d.status = domain.CandidateRejected
	d.reasons = append(d.reasons, reason)
}

func (d *decision) warn(reason string) {
	d.reasons = append(d.reasons, "warning: "+reason)
}

func (d *decision) reasoning() string {
	if len(d.reasons) == 0 {
		return "all criteria met"
	}
	return strings.Join(d.reasons, "; ")
}

// decide applies every criterion, accumulating reasons. Criteria keep
// running after the first failure so the notes explain the whole picture.
func (e *Evaluator) decide(c *domain.DealCandidate, criteria Criteria, blacklisted map[domain.SupplySource]bool) *decision {
	d := &decision{status: domain.CandidateApproved}

	if blacklisted[c.Source] {
		d.reject(fmt.Sprintf("source %s is blacklisted", c.Source))
	}

	if c.NetMargin < criteria.MinNetMargin {
		d.reject(fmt.Sprintf("net margin %.2f below minimum %.2f", c.NetMargin, criteria.MinNetMargin))
	}
	if c.Confidence < criteria.MinConfidence {
		d.reject(fmt.Sprintf("confidence %.2f below minimum %.2f", c.Confidence, criteria.MinConfidence))
	}

	switch {
	case c.SellerScore >= criteria.MinSellerScore:
	case c.SellerScore >= criteria.MinSellerScore*softBandRatio:
		d.warn(fmt.Sprintf("seller score %.1f below preferred %.1f", c.SellerScore, criteria.MinSellerScore))
	default:
		d.reject(fmt.Sprintf("seller score %.1f below hard floor %.1f", c.SellerScore, criteria.MinSellerScore*softBandRatio))
	}

	softMaxDays := criteria.MaxSellThroughDays / softBandRatio
	switch {
	case c.SellThroughDays <= criteria.MaxSellThroughDays:
	case c.SellThroughDays <= softMaxDays:
		d.warn(fmt.Sprintf("sell-through %.0fd above preferred %.0fd", c.SellThroughDays, criteria.MaxSellThroughDays))
	default:
		d.reject(fmt.Sprintf("sell-through %.0fd above hard ceiling %.0fd", c.SellThroughDays, softMaxDays))
	}

	// Recompute economics with accurate fees; the scanner's estimate is
	// only a prior.
	best := e.calc.BestMarketplace(c.Cost, c.EstimatedResale, c.Kind)
	if best == nil {
		d.reject(fmt.Sprintf("no marketplace supports category %s", c.Kind))
		return d
	}

	recomputedMargin := (c.EstimatedResale - c.Cost - best.Breakdown.TotalFees) / c.EstimatedResale
	projectedProfit := best.NetAmount - c.Cost
	if recomputedMargin <= 0 || projectedProfit <= 0 {
		d.reject(fmt.Sprintf("recomputed margin %.2f / profit $%.2f on %s not positive",
			recomputedMargin, projectedProfit, best.Marketplace))
	}

	d.riskScore = riskWeightCategory*e.monitor.CategoryScore(c.Kind) +
		riskWeightMarketplace*e.monitor.MarketplaceScore(best.Marketplace)

	switch {
	case d.riskScore > criteria.RiskCeiling*1.5:
		d.reject(fmt.Sprintf("risk score %.0f above hard ceiling %.0f", d.riskScore, criteria.RiskCeiling*1.5))
	case d.riskScore > criteria.RiskCeiling:
		d.warn(fmt.Sprintf("risk score %.0f above ceiling %.0f", d.riskScore, criteria.RiskCeiling))
	}

	return d
}

// blacklistedSources maps blacklisted supplier names onto supply sources.
func (e *Evaluator) blacklistedSources(ctx context.Context) (map[domain.SupplySource]bool, error) {
	suppliers, err := e.supplierStore.GetBlacklisted(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[domain.SupplySource]bool, len(suppliers))
	for _, s := range suppliers {
		out[domain.SupplySource(strings.ToUpper(s.Name))] = true
	}
	return out, nil
}
