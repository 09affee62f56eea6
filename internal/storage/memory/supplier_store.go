package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// SupplierStore is an in-memory implementation of storage.SupplierStore.
type SupplierStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Supplier
}

// NewSupplierStore creates a new in-memory supplier store.
func NewSupplierStore() *SupplierStore {
	return &SupplierStore{data: make(map[string]*domain.Supplier)}
}

var _ storage.SupplierStore = (*SupplierStore)(nil)

// Insert adds a new supplier. Returns ErrDuplicateKey if supplier_id exists.
func (s *SupplierStore) Insert(_ context.Context, sup *domain.Supplier) error {
	if sup == nil || sup.SupplierID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sup.SupplierID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *sup
	s.data[sup.SupplierID] = &cp
	return nil
}

// GetByID retrieves a supplier by its ID. Returns ErrNotFound if not exists.
func (s *SupplierStore) GetByID(_ context.Context, supplierID string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sup, exists := s.data[supplierID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *sup
	return &cp, nil
}

// GetBlacklisted retrieves all blacklisted suppliers.
func (s *SupplierStore) GetBlacklisted(_ context.Context) ([]*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Supplier
	for _, sup := range s.data {
		if sup.Blacklisted {
			cp := *sup
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].SupplierID < result[j].SupplierID
	})
	return result, nil
}

// Update overwrites a supplier by ID. Returns ErrNotFound if not exists.
func (s *SupplierStore) Update(_ context.Context, sup *domain.Supplier) error {
	if sup == nil || sup.SupplierID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sup.SupplierID]; !exists {
		return storage.ErrNotFound
	}

	cp := *sup
	s.data[sup.SupplierID] = &cp
	return nil
}
