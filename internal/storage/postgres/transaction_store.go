package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

const transactionColumns = `
	transaction_id, inventory_id, listing_id, marketplace,
	sale_price, fees, net, status,
	sold_at, delivered_at, payment_ref, reconciled_at, created_at
`

// Insert adds a new transaction. Returns ErrDuplicateKey if transaction_id exists.
func (s *TransactionStore) Insert(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (
			transaction_id, inventory_id, listing_id, marketplace,
			sale_price, fees, net, status,
			sold_at, delivered_at, payment_ref, reconciled_at, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12, $13
		)
	`

	createdAt := tx.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}

	_, err := s.pool.Exec(ctx, query,
		tx.TransactionID, tx.InventoryID, tx.ListingID, string(tx.Marketplace),
		tx.SalePrice, tx.Fees, tx.Net, string(tx.Status),
		tx.SoldAt, tx.DeliveredAt, tx.PaymentRef, tx.ReconciledAt, createdAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a transaction by its ID. Returns ErrNotFound if not exists.
func (s *TransactionStore) GetByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE transaction_id = $1`

	row := s.pool.QueryRow(ctx, query, transactionID)
	tx, err := scanTransaction(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get transaction by id: %w", err)
	}
	return tx, nil
}

// GetByStatus retrieves all transactions in a status, oldest sales first.
func (s *TransactionStore) GetByStatus(ctx context.Context, status domain.TransactionStatus) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE status = $1
		ORDER BY sold_at ASC, transaction_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("get transactions by status: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// GetByInventoryID retrieves all transactions for an inventory item.
func (s *TransactionStore) GetByInventoryID(ctx context.Context, inventoryID string) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE inventory_id = $1
		ORDER BY sold_at ASC, transaction_id ASC
	`

	rows, err := s.pool.Query(ctx, query, inventoryID)
	if err != nil {
		return nil, fmt.Errorf("get transactions by inventory id: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// GetSince retrieves transactions sold at or after the timestamp (ms).
func (s *TransactionStore) GetSince(ctx context.Context, since int64) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE sold_at >= $1
		ORDER BY sold_at ASC, transaction_id ASC
	`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("get transactions since: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// GetByMarketplaceSince retrieves one marketplace's transactions sold at or
// after the timestamp (ms).
func (s *TransactionStore) GetByMarketplaceSince(ctx context.Context, marketplace domain.Marketplace, since int64) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE marketplace = $1 AND sold_at >= $2
		ORDER BY sold_at ASC, transaction_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(marketplace), since)
	if err != nil {
		return nil, fmt.Errorf("get transactions by marketplace since: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// Update overwrites a transaction by ID. Returns ErrNotFound if not exists.
func (s *TransactionStore) Update(ctx context.Context, tx *domain.Transaction) error {
	query := `
		UPDATE transactions SET
			inventory_id = $2, listing_id = $3, marketplace = $4,
			sale_price = $5, fees = $6, net = $7, status = $8,
			sold_at = $9, delivered_at = $10, payment_ref = $11, reconciled_at = $12
		WHERE transaction_id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		tx.TransactionID, tx.InventoryID, tx.ListingID, string(tx.Marketplace),
		tx.SalePrice, tx.Fees, tx.Net, string(tx.Status),
		tx.SoldAt, tx.DeliveredAt, tx.PaymentRef, tx.ReconciledAt,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var tx domain.Transaction
	var marketplace, status string

	err := row.Scan(
		&tx.TransactionID, &tx.InventoryID, &tx.ListingID, &marketplace,
		&tx.SalePrice, &tx.Fees, &tx.Net, &status,
		&tx.SoldAt, &tx.DeliveredAt, &tx.PaymentRef, &tx.ReconciledAt, &tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Marketplace = domain.Marketplace(marketplace)
	tx.Status = domain.TransactionStatus(status)
	return &tx, nil
}

func scanTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	var txs []*domain.Transaction

	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}

	return txs, nil
}
