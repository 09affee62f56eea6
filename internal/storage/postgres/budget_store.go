package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// BudgetStore implements storage.BudgetStore using PostgreSQL. Reserve is a
// single guarded UPDATE so concurrent buyers cannot overspend a category.
type BudgetStore struct {
	pool *Pool
}

// NewBudgetStore creates a new BudgetStore.
func NewBudgetStore(pool *Pool) *BudgetStore {
	return &BudgetStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BudgetStore = (*BudgetStore)(nil)

// Get retrieves one category account. Returns ErrNotFound if not exists.
func (s *BudgetStore) Get(ctx context.Context, category domain.InventoryKind) (*domain.BudgetAccount, error) {
	query := `
		SELECT category, allocated, reserved, updated_at
		FROM budget_accounts
		WHERE category = $1
	`

	row := s.pool.QueryRow(ctx, query, string(category))
	a, err := scanBudgetAccount(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get budget account: %w", err)
	}
	return a, nil
}

// GetAll retrieves every category account.
func (s *BudgetStore) GetAll(ctx context.Context) ([]*domain.BudgetAccount, error) {
	query := `
		SELECT category, allocated, reserved, updated_at
		FROM budget_accounts
		ORDER BY category ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all budget accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.BudgetAccount
	for rows.Next() {
		a, err := scanBudgetAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget account row: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budget account rows: %w", err)
	}
	return accounts, nil
}

// SetAllocated upserts the allocation for a category.
func (s *BudgetStore) SetAllocated(ctx context.Context, category domain.InventoryKind, amount float64) error {
	if amount < 0 {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO budget_accounts (category, allocated, reserved, updated_at)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (category) DO UPDATE SET
			allocated = EXCLUDED.allocated,
			updated_at = EXCLUDED.updated_at
	`, string(category), amount, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set allocated: %w", err)
	}
	return nil
}

// Reserve atomically increments the reserved amount. The WHERE guard makes
// the check-and-increment one statement; zero rows affected means the
// unreserved allocation was too small (or the account does not exist).
func (s *BudgetStore) Reserve(ctx context.Context, category domain.InventoryKind, amount float64) error {
	if amount <= 0 {
		return storage.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE budget_accounts
		SET reserved = reserved + $2, updated_at = $3
		WHERE category = $1 AND allocated - reserved >= $2
	`, string(category), amount, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("reserve budget: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrInsufficientBudget
	}
	return nil
}

// Release atomically decrements the reserved amount, clamping at zero.
func (s *BudgetStore) Release(ctx context.Context, category domain.InventoryKind, amount float64) error {
	if amount <= 0 {
		return storage.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE budget_accounts
		SET reserved = GREATEST(reserved - $2, 0), updated_at = $3
		WHERE category = $1
	`, string(category), amount, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("release budget: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanBudgetAccount(row pgx.Row) (*domain.BudgetAccount, error) {
	var a domain.BudgetAccount
	var category string

	err := row.Scan(&category, &a.Allocated, &a.Reserved, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.Category = domain.InventoryKind(category)
	return &a, nil
}
