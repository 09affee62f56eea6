// Package buyer turns approved deal candidates into owned inventory.
// Spending is bounded twice: a per-batch ceiling passed on the job, and
// the per-category budget accounts reserved atomically before any money
// moves. A failed purchase releases its reservation and leaves the
// candidate APPROVED so the next run can retry it.
package buyer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/hunter"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/ledger"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// priceDriftTolerance bounds how far the live price may move from the
// recorded candidate cost before the purchase is refused.
const priceDriftTolerance = 0.10

// ErrUnknownSource is returned when a candidate names a source with no client.
var ErrUnknownSource = errors.New("unknown supply source")

// PurchaseParams filters one buying run.
type PurchaseParams struct {
	CandidateID    string  // buy one specific candidate; empty means batch mode
	BatchSize      int     // candidates pulled in batch mode, default 20
	MaxSpendAmount float64 // hard ceiling for the whole batch, default 500
	DryRun         bool
}

// PurchaseRecord describes one completed purchase.
type PurchaseRecord struct {
	CandidateID string
	InventoryID string
	OrderRef    string
	UnitPrice   float64
	Quantity    int
	Spent       float64
}

// BatchResult summarizes one buying run.
type BatchResult struct {
	Considered int
	Purchased  int
	Skipped    int // budget-bound or drifted items left APPROVED for retry
	TotalSpent float64
	Records    []PurchaseRecord
	Errors     []string
}

// Buyer executes purchases for approved candidates.
type Buyer struct {
	clients        map[domain.SupplySource]hunter.SourceClient
	candidateStore storage.CandidateStore
	inventoryStore storage.InventoryStore
	budgetStore    storage.BudgetStore
	ledger         *ledger.Writer
	logger         *log.Logger
	now            func() time.Time
	sleep          func(time.Duration)
	rng            *rand.Rand
}

// Options contains dependencies for creating a Buyer.
type Options struct {
	Clients        []hunter.SourceClient
	CandidateStore storage.CandidateStore
	InventoryStore storage.InventoryStore
	BudgetStore    storage.BudgetStore
	Ledger         *ledger.Writer
	Logger         *log.Logger
}

// New creates a Buyer.
func New(opts Options) *Buyer {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	clients := make(map[domain.SupplySource]hunter.SourceClient, len(opts.Clients))
	for _, c := range opts.Clients {
		clients[c.Source()] = c
	}

	return &Buyer{
		clients:        clients,
		candidateStore: opts.CandidateStore,
		inventoryStore: opts.InventoryStore,
		budgetStore:    opts.BudgetStore,
		ledger:         opts.Ledger,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
		sleep:          time.Sleep,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithClock sets a custom clock (tests).
func (b *Buyer) WithClock(now func() time.Time) *Buyer {
	b.now = now
	return b
}

// WithSleep replaces the inter-purchase delay (tests).
func (b *Buyer) WithSleep(sleep func(time.Duration)) *Buyer {
	b.sleep = sleep
	return b
}

// WithSeed reseeds the inter-purchase jitter (tests).
func (b *Buyer) WithSeed(seed int64) *Buyer {
	b.rng = rand.New(rand.NewSource(seed))
	return b
}

// ProcessBatch buys approved candidates greedily, best margin first.
// A candidate whose worst-case cost does not fit the remaining batch
// ceiling is skipped, not failed; later cheaper candidates may still
// fit. Per-item failures never abort the batch.
func (b *Buyer) ProcessBatch(ctx context.Context, params PurchaseParams) (*BatchResult, error) {
	maxSpend := params.MaxSpendAmount
	if maxSpend <= 0 {
		maxSpend = 500
	}

	candidates, err := b.loadCandidates(ctx, params)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{}
	remaining := maxSpend

	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if i > 0 {
			// Politeness jitter between source API purchases.
			b.sleep(time.Duration(200+b.rng.Intn(600)) * time.Millisecond)
		}

		result.Considered++

		// Worst-case spend includes the tolerated price drift; checking
		// against it keeps the batch ceiling hard even if the live price
		// moved up within tolerance.
		capCost := c.Cost * (1 + priceDriftTolerance) * float64(c.Quantity)
		if capCost > remaining {
			b.logger.Printf("[buyer] skip %s: cost $%.2f over remaining budget $%.2f", c.CandidateID, capCost, remaining)
			result.Skipped++
			continue
		}

		record, skipped, err := b.purchaseOne(ctx, c, capCost, params.DryRun)
		switch {
		case err != nil:
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", c.CandidateID, err))
		case skipped:
			result.Skipped++
		default:
			result.Purchased++
			result.TotalSpent += record.Spent
			remaining -= record.Spent
			result.Records = append(result.Records, *record)
		}
	}

	b.ledger.Write(ctx, "buyer", "buyer.batch_completed", map[string]any{
		"considered":  result.Considered,
		"purchased":   result.Purchased,
		"skipped":     result.Skipped,
		"total_spent": result.TotalSpent,
		"errors":      len(result.Errors),
		"dry_run":     params.DryRun,
	})

	return result, nil
}

// loadCandidates resolves the work list: one named candidate, or the
// approved backlog ordered by margin.
func (b *Buyer) loadCandidates(ctx context.Context, params PurchaseParams) ([]*domain.DealCandidate, error) {
	if params.CandidateID != "" {
		c, err := b.candidateStore.GetByID(ctx, params.CandidateID)
		if err != nil {
			return nil, fmt.Errorf("load candidate %s: %w", params.CandidateID, err)
		}
		if c.Status != domain.CandidateApproved {
			return nil, fmt.Errorf("candidate %s is %s, not APPROVED: %w", c.CandidateID, c.Status, storage.ErrInvalidInput)
		}
		return []*domain.DealCandidate{c}, nil
	}

	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}
	candidates, err := b.candidateStore.GetByStatus(ctx, domain.CandidateApproved, batchSize)
	if err != nil {
		return nil, fmt.Errorf("load approved candidates: %w", err)
	}
	return candidates, nil
}

// purchaseOne reserves budget, re-checks the live source state and buys.
// skipped=true means a recoverable condition (insufficient category
// budget, out of stock, price drift): the candidate stays APPROVED and
// nothing is recorded as an error.
func (b *Buyer) purchaseOne(ctx context.Context, c *domain.DealCandidate, capCost float64, dryRun bool) (*PurchaseRecord, bool, error) {
	client, ok := b.clients[c.Source]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownSource, c.Source)
	}

	avail, err := client.CheckAvailability(ctx, c.SKU)
	if err != nil {
		return nil, false, fmt.Errorf("availability check: %w", err)
	}
	if !avail.Available || avail.Quantity < c.Quantity {
		b.logger.Printf("[buyer] skip %s: %d of %d units available", c.CandidateID, avail.Quantity, c.Quantity)
		return nil, true, nil
	}

	drift := math.Abs(avail.CurrentPrice-c.Cost) / c.Cost
	if drift > priceDriftTolerance {
		b.logger.Printf("[buyer] skip %s: live price $%.2f drifted %.0f%% from recorded $%.2f",
			c.CandidateID, avail.CurrentPrice, drift*100, c.Cost)
		return nil, true, nil
	}

	if dryRun {
		b.logger.Printf("[buyer] dry-run: would buy %dx %s at $%.2f", c.Quantity, c.SKU, avail.CurrentPrice)
		return nil, true, nil
	}

	if err := b.budgetStore.Reserve(ctx, c.Kind, capCost); err != nil {
		if errors.Is(err, storage.ErrInsufficientBudget) {
			b.logger.Printf("[buyer] skip %s: insufficient %s budget for $%.2f", c.CandidateID, c.Kind, capCost)
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("reserve budget: %w", err)
	}

	maxUnit := c.Cost * (1 + priceDriftTolerance)
	purchase, err := client.Purchase(ctx, c.SKU, c.Quantity, maxUnit)
	if err != nil {
		b.releaseBudget(ctx, c.Kind, capCost)
		return nil, false, fmt.Errorf("purchase: %w", err)
	}

	spent := purchase.UnitPrice * float64(purchase.Quantity)
	// Settle the reservation down to the actual spend.
	if excess := capCost - spent; excess > 0 {
		b.releaseBudget(ctx, c.Kind, excess)
	}

	nowMs := b.now().UnixMilli()
	policy := domain.DeliveryEscrow
	if purchase.InstantDelivery {
		policy = domain.DeliveryInstant
	}

	inv := &domain.Inventory{
		InventoryID: uuid.NewString(),
		CandidateID: c.CandidateID,
		SKU:         c.SKU,
		Kind:        c.Kind,
		Title:       c.Title,
		Brand:       c.Brand,
		Region:      c.Region,
		Cost:        purchase.UnitPrice,
		Source:      c.Source,
		Policy:      policy,
		Status:      domain.InventoryAvailable,
		AcquiredAt:  nowMs,
		CreatedAt:   nowMs,
	}
	if err := b.inventoryStore.Insert(ctx, inv); err != nil {
		return nil, false, fmt.Errorf("insert inventory: %w", err)
	}

	c.Status = domain.CandidatePurchased
	c.ProcessedAt = nowMs
	if err := b.candidateStore.Update(ctx, c); err != nil {
		// The inventory exists; surface the inconsistency loudly.
		return nil, false, fmt.Errorf("mark candidate purchased (inventory %s created): %w", inv.InventoryID, err)
	}

	b.ledger.Write(ctx, "buyer", "buyer.purchase_completed", map[string]any{
		"candidate_id": c.CandidateID,
		"inventory_id": inv.InventoryID,
		"order_ref":    purchase.OrderRef,
		"unit_price":   purchase.UnitPrice,
		"quantity":     purchase.Quantity,
		"policy":       policy,
	})

	return &PurchaseRecord{
		CandidateID: c.CandidateID,
		InventoryID: inv.InventoryID,
		OrderRef:    purchase.OrderRef,
		UnitPrice:   purchase.UnitPrice,
		Quantity:    purchase.Quantity,
		Spent:       spent,
	}, false, nil
}

func (b *Buyer) releaseBudget(ctx context.Context, kind domain.InventoryKind, amount float64) {
	if err := b.budgetStore.Release(ctx, kind, amount); err != nil {
		b.logger.Printf("[buyer] release %s budget $%.2f failed: %v", kind, amount, err)
	}
}
