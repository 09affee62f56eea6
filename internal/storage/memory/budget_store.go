package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// BudgetStore is an in-memory implementation of storage.BudgetStore.
// Reserve/Release are atomic under the store mutex, mirroring the
// row-level guard the postgres implementation uses.
type BudgetStore struct {
	mu       sync.Mutex
	accounts map[domain.InventoryKind]*domain.BudgetAccount
}

// NewBudgetStore creates a new in-memory budget store.
func NewBudgetStore() *BudgetStore {
	return &BudgetStore{accounts: make(map[domain.InventoryKind]*domain.BudgetAccount)}
}

var _ storage.BudgetStore = (*BudgetStore)(nil)

// Get retrieves one category account. Returns ErrNotFound if not exists.
func (s *BudgetStore) Get(_ context.Context, category domain.InventoryKind) (*domain.BudgetAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.accounts[category]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// GetAll retrieves every category account.
func (s *BudgetStore) GetAll(_ context.Context) ([]*domain.BudgetAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*domain.BudgetAccount, 0, len(s.accounts))
	for _, a := range s.accounts {
		cp := *a
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Category < result[j].Category })
	return result, nil
}

// SetAllocated upserts the allocation for a category.
func (s *BudgetStore) SetAllocated(_ context.Context, category domain.InventoryKind, amount float64) error {
	if amount < 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.accounts[category]
	if !exists {
		a = &domain.BudgetAccount{Category: category}
		s.accounts[category] = a
	}
	a.Allocated = amount
	a.UpdatedAt = time.Now().UnixMilli()
	return nil
}

// Reserve atomically increments the reserved amount.
func (s *BudgetStore) Reserve(_ context.Context, category domain.InventoryKind, amount float64) error {
	if amount <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.accounts[category]
	if !exists || a.Allocated-a.Reserved < amount {
		return storage.ErrInsufficientBudget
	}
	a.Reserved += amount
	a.UpdatedAt = time.Now().UnixMilli()
	return nil
}

// Release atomically decrements the reserved amount, clamping at zero.
func (s *BudgetStore) Release(_ context.Context, category domain.InventoryKind, amount float64) error {
	if amount <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.accounts[category]
	if !exists {
		return storage.ErrNotFound
	}
	a.Reserved -= amount
	if a.Reserved < 0 {
		a.Reserved = 0
	}
	a.UpdatedAt = time.Now().UnixMilli()
	return nil
}
