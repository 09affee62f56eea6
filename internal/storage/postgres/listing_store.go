package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// ListingStore implements storage.ListingStore using PostgreSQL.
type ListingStore struct {
	pool *Pool
}

// NewListingStore creates a new ListingStore.
func NewListingStore(pool *Pool) *ListingStore {
	return &ListingStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ListingStore = (*ListingStore)(nil)

const listingColumns = `
	listing_id, inventory_id, marketplace, sku, kind, title, description,
	price, floor, ceiling, views, watchers, ctr,
	status, variant_id, listed_at, updated_at, created_at
`

// Insert adds a new listing. Returns ErrDuplicateKey if listing_id exists.
func (s *ListingStore) Insert(ctx context.Context, l *domain.Listing) error {
	query := `
		INSERT INTO listings (
			listing_id, inventory_id, marketplace, sku, kind, title, description,
			price, floor, ceiling, views, watchers, ctr,
			status, variant_id, listed_at, updated_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18
		)
	`

	createdAt := l.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}

	_, err := s.pool.Exec(ctx, query,
		l.ListingID, l.InventoryID, string(l.Marketplace), l.SKU, string(l.Kind), l.Title, l.Description,
		l.Price, l.Floor, l.Ceiling, l.Views, l.Watchers, l.CTR,
		string(l.Status), l.VariantID, l.ListedAt, l.UpdatedAt, createdAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// GetByID retrieves a listing by its ID. Returns ErrNotFound if not exists.
func (s *ListingStore) GetByID(ctx context.Context, listingID string) (*domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE listing_id = $1`

	row := s.pool.QueryRow(ctx, query, listingID)
	l, err := scanListing(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get listing by id: %w", err)
	}
	return l, nil
}

// GetByStatus retrieves all listings in a status, oldest first.
func (s *ListingStore) GetByStatus(ctx context.Context, status domain.ListingStatus) ([]*domain.Listing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE status = $1
		ORDER BY listed_at ASC, listing_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("get listings by status: %w", err)
	}
	defer rows.Close()

	return scanListings(rows)
}

// GetByInventoryID retrieves all listings for an inventory item.
func (s *ListingStore) GetByInventoryID(ctx context.Context, inventoryID string) ([]*domain.Listing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE inventory_id = $1
		ORDER BY listed_at ASC, listing_id ASC
	`

	rows, err := s.pool.Query(ctx, query, inventoryID)
	if err != nil {
		return nil, fmt.Errorf("get listings by inventory id: %w", err)
	}
	defer rows.Close()

	return scanListings(rows)
}

// GetStaleActive retrieves ACTIVE listings not updated since the cutoff,
// most-viewed first so repricing attention goes where the traffic is.
func (s *ListingStore) GetStaleActive(ctx context.Context, updatedBefore int64, limit int) ([]*domain.Listing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE status = $1 AND updated_at < $2
		ORDER BY views DESC, listing_id ASC
	`
	args := []any{string(domain.ListingActive), updatedBefore}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get stale active listings: %w", err)
	}
	defer rows.Close()

	return scanListings(rows)
}

// Update overwrites a listing by ID. Returns ErrNotFound if not exists.
func (s *ListingStore) Update(ctx context.Context, l *domain.Listing) error {
	query := `
		UPDATE listings SET
			inventory_id = $2, marketplace = $3, sku = $4, kind = $5, title = $6,
			description = $7, price = $8, floor = $9, ceiling = $10,
			views = $11, watchers = $12, ctr = $13,
			status = $14, variant_id = $15, listed_at = $16, updated_at = $17
		WHERE listing_id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		l.ListingID, l.InventoryID, string(l.Marketplace), l.SKU, string(l.Kind), l.Title,
		l.Description, l.Price, l.Floor, l.Ceiling,
		l.Views, l.Watchers, l.CTR,
		string(l.Status), l.VariantID, l.ListedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanListing(row pgx.Row) (*domain.Listing, error) {
	var l domain.Listing
	var marketplace, kind, status string

	err := row.Scan(
		&l.ListingID, &l.InventoryID, &marketplace, &l.SKU, &kind, &l.Title, &l.Description,
		&l.Price, &l.Floor, &l.Ceiling, &l.Views, &l.Watchers, &l.CTR,
		&status, &l.VariantID, &l.ListedAt, &l.UpdatedAt, &l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Marketplace = domain.Marketplace(marketplace)
	l.Kind = domain.InventoryKind(kind)
	l.Status = domain.ListingStatus(status)
	return &l, nil
}

func scanListings(rows pgx.Rows) ([]*domain.Listing, error) {
	var listings []*domain.Listing

	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing row: %w", err)
		}
		listings = append(listings, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listing rows: %w", err)
	}

	return listings, nil
}
