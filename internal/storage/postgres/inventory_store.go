package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// InventoryStore implements storage.InventoryStore using PostgreSQL.
type InventoryStore struct {
	pool *Pool
}

// NewInventoryStore creates a new InventoryStore.
func NewInventoryStore(pool *Pool) *InventoryStore {
	return &InventoryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.InventoryStore = (*InventoryStore)(nil)

const inventoryColumns = `
	inventory_id, candidate_id, sku, kind, title, brand, region,
	cost, source, supplier_id, policy, status,
	acquired_at, delivered_at, expires_at, created_at
`

// Insert adds a new inventory item. Returns ErrDuplicateKey if inventory_id exists.
func (s *InventoryStore) Insert(ctx context.Context, inv *domain.Inventory) error {
	query := `
		INSERT INTO inventory (
			inventory_id, candidate_id, sku, kind, title, brand, region,
			cost, source, supplier_id, policy, status,
			acquired_at, delivered_at, expires_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15, $16
		)
	`

	createdAt := inv.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}

	_, err := s.pool.Exec(ctx, query,
		inv.InventoryID, inv.CandidateID, inv.SKU, string(inv.Kind), inv.Title, inv.Brand, inv.Region,
		inv.Cost, string(inv.Source), inv.SupplierID, string(inv.Policy), string(inv.Status),
		inv.AcquiredAt, inv.DeliveredAt, inv.ExpiresAt, createdAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert inventory: %w", err)
	}
	return nil
}

// GetByID retrieves an item by its ID. Returns ErrNotFound if not exists.
func (s *InventoryStore) GetByID(ctx context.Context, inventoryID string) (*domain.Inventory, error) {
	query := `SELECT ` + inventoryColumns + ` FROM inventory WHERE inventory_id = $1`

	row := s.pool.QueryRow(ctx, query, inventoryID)
	inv, err := scanInventory(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get inventory by id: %w", err)
	}
	return inv, nil
}

// GetByStatus retrieves all items in a status, oldest acquisitions first.
func (s *InventoryStore) GetByStatus(ctx context.Context, status domain.InventoryStatus) ([]*domain.Inventory, error) {
	query := `
		SELECT ` + inventoryColumns + `
		FROM inventory
		WHERE status = $1
		ORDER BY acquired_at ASC, inventory_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("get inventory by status: %w", err)
	}
	defer rows.Close()

	return scanInventories(rows)
}

// GetAcquiredSince retrieves items acquired at or after the timestamp (ms).
func (s *InventoryStore) GetAcquiredSince(ctx context.Context, since int64) ([]*domain.Inventory, error) {
	query := `
		SELECT ` + inventoryColumns + `
		FROM inventory
		WHERE acquired_at >= $1
		ORDER BY acquired_at ASC, inventory_id ASC
	`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("get inventory acquired since: %w", err)
	}
	defer rows.Close()

	return scanInventories(rows)
}

// Update overwrites an item by ID. Returns ErrNotFound if not exists.
func (s *InventoryStore) Update(ctx context.Context, inv *domain.Inventory) error {
	query := `
		UPDATE inventory SET
			candidate_id = $2, sku = $3, kind = $4, title = $5, brand = $6, region = $7,
			cost = $8, source = $9, supplier_id = $10, policy = $11, status = $12,
			acquired_at = $13, delivered_at = $14, expires_at = $15
		WHERE inventory_id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		inv.InventoryID, inv.CandidateID, inv.SKU, string(inv.Kind), inv.Title, inv.Brand, inv.Region,
		inv.Cost, string(inv.Source), inv.SupplierID, string(inv.Policy), string(inv.Status),
		inv.AcquiredAt, inv.DeliveredAt, inv.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("update inventory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanInventory(row pgx.Row) (*domain.Inventory, error) {
	var inv domain.Inventory
	var kind, source, policy, status string

	err := row.Scan(
		&inv.InventoryID, &inv.CandidateID, &inv.SKU, &kind, &inv.Title, &inv.Brand, &inv.Region,
		&inv.Cost, &source, &inv.SupplierID, &policy, &status,
		&inv.AcquiredAt, &inv.DeliveredAt, &inv.ExpiresAt, &inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	inv.Kind = domain.InventoryKind(kind)
	inv.Source = domain.SupplySource(source)
	inv.Policy = domain.DeliveryPolicy(policy)
	inv.Status = domain.InventoryStatus(status)
	return &inv, nil
}

func scanInventories(rows pgx.Rows) ([]*domain.Inventory, error) {
	var items []*domain.Inventory

	for rows.Next() {
		inv, err := scanInventory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inventory row: %w", err)
		}
		items = append(items, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory rows: %w", err)
	}

	return items, nil
}
