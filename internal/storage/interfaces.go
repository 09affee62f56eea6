package storage

import (
	"context"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
)

// CandidateStore provides access to deal_candidates storage.
type CandidateStore interface {
	// Insert adds a new candidate. Returns ErrDuplicateKey if candidate_id exists.
	Insert(ctx context.Context, c *domain.DealCandidate) error

	// GetByID retrieves a candidate by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, candidateID string) (*domain.DealCandidate, error)

	// GetByStatus retrieves candidates in a status, ordered by net_margin DESC
	// then confidence DESC. limit <= 0 means no limit.
	GetByStatus(ctx context.Context, status domain.CandidateStatus, limit int) ([]*domain.DealCandidate, error)

	// GetBySource retrieves all candidates discovered from a supply source.
	GetBySource(ctx context.Context, source domain.SupplySource) ([]*domain.DealCandidate, error)

	// Update overwrites a candidate by ID. Returns ErrNotFound if not exists.
	Update(ctx context.Context, c *domain.DealCandidate) error
}

// InventoryStore provides access to inventory storage.
type InventoryStore interface {
	// Insert adds a new inventory item. Returns ErrDuplicateKey if inventory_id exists.
	Insert(ctx context.Context, inv *domain.Inventory) error

	// GetByID retrieves an item by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, inventoryID string) (*domain.Inventory, error)

	// GetByStatus retrieves all items in a status, ordered by acquired_at ASC.
	GetByStatus(ctx context.Context, status domain.InventoryStatus) ([]*domain.Inventory, error)

	// GetAcquiredSince retrieves items acquired at or after the timestamp (ms).
	GetAcquiredSince(ctx context.Context, since int64) ([]*domain.Inventory, error)

	// Update overwrites an item by ID. Returns ErrNotFound if not exists.
	Update(ctx context.Context, inv *domain.Inventory) error
}

// ListingStore provides access to listings storage.
type ListingStore interface {
	// Insert adds a new listing. Returns ErrDuplicateKey if listing_id exists.
	Insert(ctx context.Context, l *domain.Listing) error

	// GetByID retrieves a listing by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, listingID string) (*domain.Listing, error)

	// GetByStatus retrieves all listings in a status, ordered by listed_at ASC.
	GetByStatus(ctx context.Context, status domain.ListingStatus) ([]*domain.Listing, error)

	// GetByInventoryID retrieves all listings for an inventory item.
	GetByInventoryID(ctx context.Context, inventoryID string) ([]*domain.Listing, error)

	// GetStaleActive retrieves ACTIVE listings not updated since the cutoff
	// (ms), ordered by views DESC. limit <= 0 means no limit.
	GetStaleActive(ctx context.Context, updatedBefore int64, limit int) ([]*domain.Listing, error)

	// Update overwrites a listing by ID. Returns ErrNotFound if not exists.
	Update(ctx context.Context, l *domain.Listing) error
}

// TransactionStore provides access to transactions storage.
type TransactionStore interface {
	// Insert adds a new transaction. Returns ErrDuplicateKey if transaction_id exists.
	Insert(ctx context.Context, tx *domain.Transaction) error

	// GetByID retrieves a transaction by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, transactionID string) (*domain.Transaction, error)

	// GetByStatus retrieves all transactions in a status, ordered by sold_at ASC.
	GetByStatus(ctx context.Context, status domain.TransactionStatus) ([]*domain.Transaction, error)

	// GetByInventoryID retrieves all transactions for an inventory item.
	GetByInventoryID(ctx context.Context, inventoryID string) ([]*domain.Transaction, error)

	// GetSince retrieves transactions sold at or after the timestamp (ms).
	GetSince(ctx context.Context, since int64) ([]*domain.Transaction, error)

	// GetByMarketplaceSince retrieves transactions for one marketplace sold
	// at or after the timestamp (ms).
	GetByMarketplaceSince(ctx context.Context, marketplace domain.Marketplace, since int64) ([]*domain.Transaction, error)

	// Update overwrites a transaction by ID. Returns ErrNotFound if not exists.
	Update(ctx context.Context, tx *domain.Transaction) error
}

// ExperimentStore provides access to experiments storage.
type ExperimentStore interface {
	// Insert adds a new experiment. Returns ErrDuplicateKey if experiment_id exists.
	Insert(ctx context.Context, e *domain.Experiment) error

	// GetByID retrieves an experiment by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, experimentID string) (*domain.Experiment, error)

	// GetByStatus retrieves all experiments in a status, ordered by started_at ASC.
	GetByStatus(ctx context.Context, status domain.ExperimentStatus) ([]*domain.Experiment, error)

	// GetAll retrieves every experiment, ordered by started_at ASC.
	GetAll(ctx context.Context) ([]*domain.Experiment, error)

	// Update overwrites an experiment by ID. Returns ErrNotFound if not exists.
	Update(ctx context.Context, e *domain.Experiment) error
}

// AlertStore provides access to alerts storage.
type AlertStore interface {
	// Insert adds a new alert. Returns ErrDuplicateKey if alert_id exists.
	Insert(ctx context.Context, a *domain.Alert) error

	// GetUnresolved retrieves unresolved alerts, ordered by created_at ASC.
	GetUnresolved(ctx context.Context) ([]*domain.Alert, error)

	// GetBySeveritySince retrieves alerts of a severity created at or after
	// the timestamp (ms).
	GetBySeveritySince(ctx context.Context, severity domain.AlertSeverity, since int64) ([]*domain.Alert, error)

	// Resolve marks an alert resolved at the given timestamp (ms).
	Resolve(ctx context.Context, alertID string, resolvedAt int64) error
}

// SupplierStore provides access to suppliers storage.
type SupplierStore interface {
	// Insert adds a new supplier. Returns ErrDuplicateKey if supplier_id exists.
	Insert(ctx context.Context, s *domain.Supplier) error

	// GetByID retrieves a supplier by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, supplierID string) (*domain.Supplier, error)

	// GetBlacklisted retrieves all blacklisted suppliers.
	GetBlacklisted(ctx context.Context) ([]*domain.Supplier, error)

	// Update overwrites a supplier by ID. Returns ErrNotFound if not exists.
	Update(ctx context.Context, s *domain.Supplier) error
}

// LedgerStore provides access to the append-only audit trail.
type LedgerStore interface {
	// Append adds one entry. The ledger never updates or deletes.
	Append(ctx context.Context, e *domain.LedgerEntry) error

	// AppendBulk adds multiple entries.
	AppendBulk(ctx context.Context, entries []*domain.LedgerEntry) error

	// GetByActorSince retrieves entries from one actor at or after the
	// timestamp (ms), ordered by timestamp ASC.
	GetByActorSince(ctx context.Context, actor string, since int64) ([]*domain.LedgerEntry, error)

	// GetByEventSince retrieves entries with one event name at or after the
	// timestamp (ms), ordered by timestamp ASC.
	GetByEventSince(ctx context.Context, event string, since int64) ([]*domain.LedgerEntry, error)
}

// ControlStore provides access to the shared engine/throttle control table.
// Small, frequently read, rarely written; every stage consults it before
// claiming work.
type ControlStore interface {
	// GetEngineState returns the persisted engine state.
	// A fresh deployment reports STOPPED.
	GetEngineState(ctx context.Context) (domain.EngineState, error)

	// SetEngineState transitions the engine state, validating the move.
	SetEngineState(ctx context.Context, to domain.EngineState) error

	// GetThrottles returns all module throttle states.
	GetThrottles(ctx context.Context) ([]*domain.ThrottleState, error)

	// SetThrottle upserts one module's throttle state.
	SetThrottle(ctx context.Context, t *domain.ThrottleState) error
}

// BudgetStore provides atomic budget accounting per category.
type BudgetStore interface {
	// Get retrieves one category account. Returns ErrNotFound if not exists.
	Get(ctx context.Context, category domain.InventoryKind) (*domain.BudgetAccount, error)

	// GetAll retrieves every category account.
	GetAll(ctx context.Context) ([]*domain.BudgetAccount, error)

	// SetAllocated upserts the allocation for a category.
	SetAllocated(ctx context.Context, category domain.InventoryKind, amount float64) error

	// Reserve atomically increments the reserved amount. Returns
	// ErrInsufficientBudget when the unreserved allocation is too small.
	Reserve(ctx context.Context, category domain.InventoryKind, amount float64) error

	// Release atomically decrements the reserved amount (purchase settled
	// or failed). Releasing more than is reserved clamps to zero.
	Release(ctx context.Context, category domain.InventoryKind, amount float64) error
}
