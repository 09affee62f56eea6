package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/allocator"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/brains"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/buyer"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/collector"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/evaluator"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/fulfillment"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/governor"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/hunter"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/merchant"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/reprice"
)

// unmarshal decodes a payload, tolerating an empty body.
func unmarshal(payload []byte, v any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// HuntHandler runs deal discovery jobs.
type HuntHandler struct {
	Scanner *hunter.Scanner
}

func (h *HuntHandler) Queue() string { return QueueHunt }

func (h *HuntHandler) Handle(ctx context.Context, job Job) error {
	var p HuntPayload
	if err := unmarshal(job.Payload, &p); err != nil {
		return err
	}
	job.Progress(0)
	_, err := h.Scanner.Scan(ctx, hunter.ScanParams{
		Source:     domain.SupplySource(p.Source),
		Categories: parseKinds(p.Categories),
		MaxItems:   job.ScaledBatch(p.MaxItems, 25),
		DryRun:     p.DryRun,
	})
	if err != nil {
		return err
	}
	job.Progress(100)
	return nil
}

// EvaluateHandler runs candidate evaluation jobs.
type EvaluateHandler struct {
	Evaluator *evaluator.Evaluator
	// Criteria is the operator-configured approval bar; nil keeps the
	// package defaults.
	Criteria *evaluator.Criteria
}

func (h *EvaluateHandler) Queue() string { return QueueEvaluate }

func (h *EvaluateHandler) Handle(ctx context.Context, job Job) error {
	var p EvaluatePayload
	if err := unmarshal(job.Payload, &p); err != nil {
		return err
	}
	job.Progress(0)
	_, err := h.Evaluator.EvaluateBatch(ctx, evaluator.BatchParams{
		BatchSize: job.ScaledBatch(p.BatchSize, 50),
		Criteria:  h.Criteria,
		DryRun:    p.DryRun,
	})
	if err != nil {
		return err
	}
	job.Progress(100)
	return nil
}

// BuyHandler runs purchasing jobs. BatchSize and MaxSpend are the
// operator-configured defaults, applied when the payload leaves them
// zero; zero values here fall through to the package defaults.
type BuyHandler struct {
	Buyer     *buyer.Buyer
	BatchSize int
	MaxSpend  float64
}

func (h *BuyHandler) Queue() string { return QueueBuy }

func (h *BuyHandler) Handle(ctx context.Context, job Job) error {
	var p BuyPayload
	if err := unmarshal(job.Payload, &p); err != nil {
		return err
	}
	if p.BatchSize == 0 {
		p.BatchSize = h.BatchSize
	}
	if p.MaxSpendAmount == 0 {
		p.MaxSpendAmount = h.MaxSpend
	}
	job.Progress(0)
	_, err := h.Buyer.ProcessBatch(ctx, buyer.PurchaseParams{
		CandidateID:    p.CandidateID,
		BatchSize:      job.ScaledBatch(p.BatchSize, 20),
		MaxSpendAmount: p.MaxSpendAmount,
		DryRun:         p.DryRun,
	})
	if err != nil {
		return err
	}
	job.Progress(100)
	return nil
}

// ListHandler runs listing jobs.
type ListHandler struct {
	Merchant *merchant.Merchant
}

func (h *ListHandler) Queue() string { return QueueList }

func (h *ListHandler) Handle(ctx context.Context, job Job) error {
	var p ListPayload
	if err := unmarshal(job.Payload, &p); err != nil {
		return err
	}
	job.Progress(0)
	_, err := h.Merchant.ListBatch(ctx, merchant.ListParams{
		BatchSize:    job.ScaledBatch(p.BatchSize, 25),
		MaxVenues:    p.MaxVenues,
		Strategy:     merchant.PricingStrategy(p.Strategy),
		ForceReprice: p.ForceReprice,
		DryRun:       p.DryRun,
	})
	if err != nil {
		return err
	}
	job.Progress(100)
	return nil
}

// DeliverHandler runs fulfillment jobs.
type DeliverHandler struct {
	Fulfiller *fulfillment.Fulfiller
}

func (h *DeliverHandler) Queue() string { return QueueDeliver }

func (h *DeliverHandler) Handle(ctx context.Context, job Job) error {
	var p DeliverPayload
	if err := unmarshal(job.Payload, &p); err != nil {
		return err
	}
	job.Progress(0)
	_, err := h.Fulfiller.DeliverBatch(ctx, fulfillment.DeliverParams{
		BatchSize:        job.ScaledBatch(p.BatchSize, 50),
		MaxDeliveryHours: p.MaxDeliveryHours,
		DryRun:           p.DryRun,
	})
	if err != nil {
		return err
	}
	job.Progress(100)
	return nil
}

// RepriceHandler runs repricing jobs. The exported fields are the
// operator-configured defaults, applied when the payload leaves them
// zero; zero values here fall through to the package defaults.
type RepriceHandler struct {
	Repricer         *reprice.Repricer
	Strategy         reprice.Strategy
	MaxIncreasePct   float64
	MaxDecreasePct   float64
	MaxChangeDollars float64
}

func (h *RepriceHandler) Queue() string { return QueueReprice }

func (h *RepriceHandler) Handle(ctx context.Context, job Job) error {
	var p RepricePayload
	if err := unmarshal(job.Payload, &p); err != nil {
		return err
	}
	if p.Strategy == "" {
		p.Strategy = string(h.Strategy)
	}
	if p.MaxIncreasePct == 0 {
		p.MaxIncreasePct = h.MaxIncreasePct
	}
	if p.MaxDecreasePct == 0 {
		p.MaxDecreasePct = h.MaxDecreasePct
	}
	if p.MaxChangeDollars == 0 {
		p.MaxChangeDollars = h.MaxChangeDollars
	}
	job.Progress(0)
	_, err := h.Repricer.Run(ctx, reprice.Params{
		BatchSize:        job.ScaledBatch(p.BatchSize, 20),
		StaleAfter:       time.Duration(p.StaleAfterHours * float64(time.Hour)),
		Strategy:         reprice.Strategy(p.Strategy),
		MaxIncreasePct:   p.MaxIncreasePct,
		MaxDecreasePct:   p.MaxDecreasePct,
		MaxChangeDollars: p.MaxChangeDollars,
		DryRun:           p.DryRun,
	})
	if err != nil {
		return err
	}
	job.Progress(100)
	return nil
}

// AllocateHandler runs budget rebalancing jobs.
type AllocateHandler struct {
	Allocator *allocator.Allocator
}

func (h *AllocateHandler) Queue() string { return QueueAllocate }

func (h *AllocateHandler) Handle(ctx context.Context, job Job) error {
	var p AllocatePayload
	if err := unmarshal(job.Payload, &p); err != nil {
		return err
	}
	job.Progress(0)
	_, err := h.Allocator.Rebalance(ctx, allocator.Params{
		TrailingDays: p.TrailingDays,
		TotalBudget:  p.TotalBudget,
		Strategy:     allocator.Strategy(p.Strategy),
		DryRun:       p.DryRun,
	})
	if err != nil {
		return err
	}
	job.Progress(100)
	return nil
}

// ExperimentHandler analyzes running experiments, proposes new ones
// into the freed slots, and publishes the accumulated learning
// insights.
type ExperimentHandler struct {
	Brains *brains.Brains
}

func (h *ExperimentHandler) Queue() string { return QueueExperiment }

func (h *ExperimentHandler) Handle(ctx context.Context, job Job) error {
	var p ExperimentPayload
	if err := unmarshal(job.Payload, &p); err != nil {
		return err
	}
	job.Progress(0)
	if _, err := h.Brains.AnalyzeExperiments(ctx, brains.AnalyzeParams{DryRun: p.DryRun}); err != nil {
		return err
	}
	job.Progress(40)
	_, err := h.Brains.ProposeExperiments(ctx, brains.ProposeParams{
		MaxConcurrent: p.MaxConcurrent,
		DryRun:        p.DryRun,
	})
	if err != nil {
		return err
	}
	job.Progress(80)
	if _, err := h.Brains.PublishInsights(ctx); err != nil {
		return err
	}
	job.Progress(100)
	return nil
}

// GovernHandler runs governance passes. Its queue bypasses the engine
// gate so a paused system still gets supervised.
type GovernHandler struct {
	Governor *governor.Governor
}

func (h *GovernHandler) Queue() string { return QueueGovern }

func (h *GovernHandler) Handle(ctx context.Context, job Job) error {
	var p GovernPayload
	if err := unmarshal(job.Payload, &p); err != nil {
		return err
	}
	job.Progress(0)
	_, err := h.Governor.Run(ctx, governor.Params{
		EmergencyMode: p.EmergencyMode,
		DryRun:        p.DryRun,
	})
	if err != nil {
		return err
	}
	job.Progress(100)
	return nil
}

// CollectHandler reconciles payments, refreshes the financial reports,
// and scans for payment anomalies in one pass.
type CollectHandler struct {
	Collector *collector.Collector
}

func (h *CollectHandler) Queue() string { return QueueCollect }

func (h *CollectHandler) Handle(ctx context.Context, job Job) error {
	var p CollectPayload
	if err := unmarshal(job.Payload, &p); err != nil {
		return err
	}
	params := collector.Params{
		Marketplaces: parseMarketplaces(p.Marketplaces),
		TrailingDays: p.TrailingDays,
		DryRun:       p.DryRun,
	}
	job.Progress(0)
	if _, err := h.Collector.Reconcile(ctx, params); err != nil {
		return err
	}
	job.Progress(50)
	if err := h.Collector.GenerateReports(ctx, params); err != nil {
		return err
	}
	job.Progress(80)
	if _, err := h.Collector.ScanAnomalies(ctx, params); err != nil {
		return err
	}
	job.Progress(100)
	return nil
}
