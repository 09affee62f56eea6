package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// SupplierStore implements storage.SupplierStore using PostgreSQL.
type SupplierStore struct {
	pool *Pool
}

// NewSupplierStore creates a new SupplierStore.
func NewSupplierStore(pool *Pool) *SupplierStore {
	return &SupplierStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SupplierStore = (*SupplierStore)(nil)

// Insert adds a new supplier. Returns ErrDuplicateKey if supplier_id exists.
func (s *SupplierStore) Insert(ctx context.Context, sup *domain.Supplier) error {
	query := `
		INSERT INTO suppliers (supplier_id, name, source, rating, country, blacklisted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	createdAt := sup.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}

	_, err := s.pool.Exec(ctx, query,
		sup.SupplierID, sup.Name, string(sup.Source), sup.Rating, sup.Country, sup.Blacklisted, createdAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert supplier: %w", err)
	}
	return nil
}

// GetByID retrieves a supplier by its ID. Returns ErrNotFound if not exists.
func (s *SupplierStore) GetByID(ctx context.Context, supplierID string) (*domain.Supplier, error) {
	query := `
		SELECT supplier_id, name, source, rating, country, blacklisted, created_at
		FROM suppliers
		WHERE supplier_id = $1
	`

	row := s.pool.QueryRow(ctx, query, supplierID)
	sup, err := scanSupplier(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get supplier by id: %w", err)
	}
	return sup, nil
}

// GetBlacklisted retrieves all blacklisted suppliers.
func (s *SupplierStore) GetBlacklisted(ctx context.Context) ([]*domain.Supplier, error) {
	query := `
		SELECT supplier_id, name, source, rating, country, blacklisted, created_at
		FROM suppliers
		WHERE blacklisted = TRUE
		ORDER BY supplier_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get blacklisted suppliers: %w", err)
	}
	defer rows.Close()

	var suppliers []*domain.Supplier
	for rows.Next() {
		sup, err := scanSupplier(rows)
		if err != nil {
			return nil, fmt.Errorf("scan supplier row: %w", err)
		}
		suppliers = append(suppliers, sup)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate supplier rows: %w", err)
	}
	return suppliers, nil
}

// Update overwrites a supplier by ID. Returns ErrNotFound if not exists.
func (s *SupplierStore) Update(ctx context.Context, sup *domain.Supplier) error {
	query := `
		UPDATE suppliers SET
			name = $2, source = $3, rating = $4, country = $5, blacklisted = $6
		WHERE supplier_id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		sup.SupplierID, sup.Name, string(sup.Source), sup.Rating, sup.Country, sup.Blacklisted,
	)
	if err != nil {
		return fmt.Errorf("update supplier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanSupplier(row pgx.Row) (*domain.Supplier, error) {
	var sup domain.Supplier
	var source string

	err := row.Scan(
		&sup.SupplierID, &sup.Name, &source, &sup.Rating, &sup.Country, &sup.Blacklisted, &sup.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	sup.Source = domain.SupplySource(source)
	return &sup, nil
}
