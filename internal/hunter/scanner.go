// Package hunter discovers deal candidates from supply sources.
package hunter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/fees"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/idhash"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/ledger"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// ErrUnknownSource is returned when a scan names a source with no client.
var ErrUnknownSource = errors.New("unknown supply source")

// ScanParams filters one hunting run. Zero values fall back to defaults.
type ScanParams struct {
	Source        domain.SupplySource
	Categories    []domain.InventoryKind // empty means every supported category
	MaxItems      int                    // cap after filtering and sorting, default 25
	MinNetMargin  float64
	MinConfidence float64
	DryRun        bool
}

// ScanResult summarizes one hunting run.
type ScanResult struct {
	Discovered int // deals fetched from the source
	Filtered   int // dropped by margin/confidence/venue filters
	Inserted   int // new candidates persisted
	Duplicates int // already-known candidates skipped
	Errors     []string
}

// Scanner turns source deals into PENDING deal candidates.
type Scanner struct {
	clients        map[domain.SupplySource]SourceClient
	limiters       map[domain.SupplySource]*rate.Limiter
	candidateStore storage.CandidateStore
	calc           *fees.Calculator
	ledger         *ledger.Writer
	logger         *log.Logger
	now            func() time.Time
}

// ScannerOptions contains dependencies for creating a Scanner.
type ScannerOptions struct {
	Clients        []SourceClient
	CandidateStore storage.CandidateStore
	Calculator     *fees.Calculator
	Ledger         *ledger.Writer
	Logger         *log.Logger
}

// NewScanner creates a Scanner. One blocking rate limiter per source
// paces category scans to the source's requests-per-minute budget.
func NewScanner(opts ScannerOptions) *Scanner {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	clients := make(map[domain.SupplySource]SourceClient, len(opts.Clients))
	limiters := make(map[domain.SupplySource]*rate.Limiter, len(opts.Clients))
	for _, c := range opts.Clients {
		clients[c.Source()] = c
		rpm := c.RequestsPerMinute()
		if rpm <= 0 {
			rpm = 30
		}
		limiters[c.Source()] = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1)
	}

	return &Scanner{
		clients:        clients,
		limiters:       limiters,
		candidateStore: opts.CandidateStore,
		calc:           opts.Calculator,
		ledger:         opts.Ledger,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock (tests).
func (s *Scanner) WithClock(now func() time.Time) *Scanner {
	s.now = now
	return s
}

// Scan fetches deals from one source, filters them and persists new
// PENDING candidates. An empty Source scans every configured source.
// Per-category failures are recorded and skipped; they never abort
// the run.
func (s *Scanner) Scan(ctx context.Context, params ScanParams) (*ScanResult, error) {
	if params.Source == "" {
		return s.scanAll(ctx, params)
	}

	client, ok := s.clients[params.Source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, params.Source)
	}

	maxItems := params.MaxItems
	if maxItems <= 0 {
		maxItems = 25
	}

	categories := intersectCategories(client.SupportedCategories(), params.Categories)
	result := &ScanResult{}

	var deals []*Deal
	for _, kind := range categories {
		if err := s.limiters[params.Source].Wait(ctx); err != nil {
			return result, fmt.Errorf("rate limit wait for %s: %w", params.Source, err)
		}

		fetched, err := client.FetchDeals(ctx, kind, maxItems)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("fetch %s/%s: %v", params.Source, kind, err))
			continue
		}
		deals = append(deals, fetched...)
	}
	result.Discovered = len(deals)

	candidates := s.buildCandidates(client, deals, params, result)

	// Best deals first, cap the batch.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].NetMargin > candidates[j].NetMargin
	})
	if len(candidates) > maxItems {
		result.Filtered += len(candidates) - maxItems
		candidates = candidates[:maxItems]
	}

	for _, c := range candidates {
		if params.DryRun {
			s.logger.Printf("[hunter] dry-run: would insert %s (%s, margin %.2f)", c.SKU, c.Kind, c.NetMargin)
			continue
		}
		if err := s.candidateStore.Insert(ctx, c); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				result.Duplicates++
				continue
			}
			result.Errors = append(result.Errors, fmt.Sprintf("insert %s: %v", c.SKU, err))
			continue
		}
		result.Inserted++
	}

	s.ledger.Write(ctx, "hunter", "hunter.scan_completed", map[string]any{
		"source":     params.Source,
		"discovered": result.Discovered,
		"inserted":   result.Inserted,
		"duplicates": result.Duplicates,
		"filtered":   result.Filtered,
		"errors":     len(result.Errors),
		"dry_run":    params.DryRun,
	})

	return result, nil
}

// scanAll runs one scan per configured source in name order, merging
// the results. A failing source is recorded and skipped so one supplier
// outage cannot blind discovery entirely.
func (s *Scanner) scanAll(ctx context.Context, params ScanParams) (*ScanResult, error) {
	sources := make([]domain.SupplySource, 0, len(s.clients))
	for src := range s.clients {
		sources = append(sources, src)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })

	total := &ScanResult{}
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		p := params
		p.Source = src
		r, err := s.Scan(ctx, p)
		if r != nil {
			total.Discovered += r.Discovered
			total.Filtered += r.Filtered
			total.Inserted += r.Inserted
			total.Duplicates += r.Duplicates
			total.Errors = append(total.Errors, r.Errors...)
		}
		if err != nil {
			total.Errors = append(total.Errors, fmt.Sprintf("scan %s: %v", src, err))
		}
	}
	return total, nil
}

// buildCandidates converts deals to candidates, applying margin and
// confidence filters with accurate fee estimates.
func (s *Scanner) buildCandidates(client SourceClient, deals []*Deal, params ScanParams, result *ScanResult) []*domain.DealCandidate {
	nowMs := s.now().UnixMilli()
	confidence := client.Reliability()

	var candidates []*domain.DealCandidate
	for _, d := range deals {
		if d.Cost <= 0 || d.EstimatedResale <= d.Cost {
			result.Filtered++
			continue
		}

		best := s.calc.BestMarketplace(d.Cost, d.EstimatedResale, d.Kind)
		if best == nil {
			// No venue carries this category; nothing to resell into.
			result.Filtered++
			continue
		}

		estimatedFees := best.Breakdown.TotalFees
		netMargin := (d.EstimatedResale - d.Cost - estimatedFees) / d.EstimatedResale

		if netMargin < params.MinNetMargin || confidence < params.MinConfidence {
			result.Filtered++
			continue
		}

		candidates = append(candidates, &domain.DealCandidate{
			CandidateID:     idhash.ComputeCandidateID(client.Source(), d.SKU, d.Kind, d.Cost),
			Source:          client.Source(),
			SKU:             d.SKU,
			Kind:            d.Kind,
			Title:           d.Title,
			Brand:           d.Brand,
			Region:          d.Region,
			Cost:            d.Cost,
			EstimatedResale: d.EstimatedResale,
			EstimatedFees:   estimatedFees,
			NetMargin:       netMargin,
			Confidence:      confidence,
			SellerScore:     d.SellerScore,
			SellThroughDays: d.SellThroughDays,
			Quantity:        d.Quantity,
			Status:          domain.CandidatePending,
			DiscoveredAt:    nowMs,
			CreatedAt:       nowMs,
		})
	}

	return candidates
}

// intersectCategories restricts requested categories to the supported
// set, preserving the supported order. Empty requested means all.
func intersectCategories(supported, requested []domain.InventoryKind) []domain.InventoryKind {
	if len(requested) == 0 {
		return supported
	}

	want := make(map[domain.InventoryKind]bool, len(requested))
	for _, k := range requested {
		want[k] = true
	}

	var out []domain.InventoryKind
	for _, k := range supported {
		if want[k] {
			out = append(out, k)
		}
	}
	return out
}
