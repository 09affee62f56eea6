package domain

// CandidateStatus is the lifecycle state of a deal candidate.
// Transitions are forward-only: PENDING → {APPROVED, REJECTED} → PURCHASED.
type CandidateStatus string

const (
	CandidatePending   CandidateStatus = "PENDING"
	CandidateApproved  CandidateStatus = "APPROVED"
	CandidateRejected  CandidateStatus = "REJECTED"
	CandidatePurchased CandidateStatus = "PURCHASED"
)

// DealCandidate represents a discovered, not-yet-purchased sourcing
// opportunity. Corresponds to deal_candidates table in PostgreSQL.
type DealCandidate struct {
	CandidateID string // PRIMARY KEY, deterministic hash
	Source      SupplySource
	SKU         string // opaque supplier identifier, never parsed
	Kind        InventoryKind
	Title       string // display title carried as data, not derived from SKU
	Brand       string
	Region      string

	Cost            float64 // acquisition cost, USD
	EstimatedResale float64
	EstimatedFees   float64
	NetMargin       float64 // (resale - cost - fees) / resale, in [0,1]
	Confidence      float64 // in [0,1], seeded by the source reliability prior
	SellerScore     float64 // supplier rating, 0-5
	SellThroughDays float64 // expected days from listing to sale
	Quantity        int

	Status    CandidateStatus
	Notes     string  // accumulated evaluation reasoning
	RiskScore float64 // combined category/marketplace risk at evaluation time

	DiscoveredAt int64 // Unix timestamp in milliseconds
	ProcessedAt  int64 // when Evaluator or Buyer last acted on it (ms, 0 if never)
	CreatedAt    int64 // record creation timestamp (ms)
}

// CanTransition reports whether moving to next is a legal forward transition.
func (s CandidateStatus) CanTransition(next CandidateStatus) bool {
	switch s {
	case CandidatePending:
		return next == CandidateApproved || next == CandidateRejected
	case CandidateApproved:
		return next == CandidatePurchased
	default:
		return false
	}
}
