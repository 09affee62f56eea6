package jobs

import "github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"

// Queue names, one per pipeline stage.
const (
	QueueHunt       = "hunt"
	QueueEvaluate   = "evaluate"
	QueueBuy        = "buy"
	QueueList       = "list"
	QueueDeliver    = "deliver"
	QueueReprice    = "reprice"
	QueueAllocate   = "allocate"
	QueueExperiment = "experiment"
	QueueGovern     = "govern"
	QueueCollect    = "collect"
)

// Per-stage job payloads, matching what the dashboard enqueues. Every
// field is optional; zero values fall back to the stage's defaults.

type HuntPayload struct {
	Source     string   `json:"source"`
	Categories []string `json:"categories,omitempty"`
	MaxItems   int      `json:"maxItems,omitempty"`
	DryRun     bool     `json:"dryRun,omitempty"`
}

type EvaluatePayload struct {
	BatchSize int  `json:"batchSize,omitempty"`
	DryRun    bool `json:"dryRun,omitempty"`
}

type BuyPayload struct {
	CandidateID    string  `json:"candidateId,omitempty"`
	BatchSize      int     `json:"batchSize,omitempty"`
	MaxSpendAmount float64 `json:"maxSpendAmount,omitempty"`
	DryRun         bool    `json:"dryRun,omitempty"`
}

type ListPayload struct {
	BatchSize    int    `json:"batchSize,omitempty"`
	MaxVenues    int    `json:"maxVenues,omitempty"`
	Strategy     string `json:"strategy,omitempty"`
	ForceReprice bool   `json:"forceReprice,omitempty"`
	DryRun       bool   `json:"dryRun,omitempty"`
}

type DeliverPayload struct {
	BatchSize        int     `json:"batchSize,omitempty"`
	MaxDeliveryHours float64 `json:"maxDeliveryHours,omitempty"`
	DryRun           bool    `json:"dryRun,omitempty"`
}

type RepricePayload struct {
	BatchSize        int     `json:"batchSize,omitempty"`
	StaleAfterHours  float64 `json:"staleAfterHours,omitempty"`
	Strategy         string  `json:"strategy,omitempty"`
	MaxIncreasePct   float64 `json:"maxIncreasePct,omitempty"`
	MaxDecreasePct   float64 `json:"maxDecreasePct,omitempty"`
	MaxChangeDollars float64 `json:"maxChangeDollars,omitempty"`
	DryRun           bool    `json:"dryRun,omitempty"`
}

type AllocatePayload struct {
	TrailingDays int     `json:"trailingDays,omitempty"`
	TotalBudget  float64 `json:"totalBudget,omitempty"`
	Strategy     string  `json:"strategy,omitempty"`
	DryRun       bool    `json:"dryRun,omitempty"`
}

type ExperimentPayload struct {
	MaxConcurrent int  `json:"maxConcurrent,omitempty"`
	DryRun        bool `json:"dryRun,omitempty"`
}

type GovernPayload struct {
	EmergencyMode bool `json:"emergencyMode,omitempty"`
	DryRun        bool `json:"dryRun,omitempty"`
}

type CollectPayload struct {
	Marketplaces []string `json:"marketplaces,omitempty"`
	TrailingDays int      `json:"trailingDays,omitempty"`
	DryRun       bool     `json:"dryRun,omitempty"`
}

// parseKinds converts payload category strings, dropping unknowns.
func parseKinds(names []string) []domain.InventoryKind {
	var kinds []domain.InventoryKind
	for _, n := range names {
		k := domain.InventoryKind(n)
		if k.Valid() {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// parseMarketplaces converts payload marketplace strings as-is; unknown
// venues fail downstream with a per-venue error rather than silently
// narrowing the run.
func parseMarketplaces(names []string) []domain.Marketplace {
	var out []domain.Marketplace
	for _, n := range names {
		out = append(out, domain.Marketplace(n))
	}
	return out
}
