package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// InventoryStore is an in-memory implementation of storage.InventoryStore.
type InventoryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Inventory
}

// NewInventoryStore creates a new in-memory inventory store.
func NewInventoryStore() *InventoryStore {
	return &InventoryStore{data: make(map[string]*domain.Inventory)}
}

var _ storage.InventoryStore = (*InventoryStore)(nil)

// Insert adds a new inventory item. Returns ErrDuplicateKey if inventory_id exists.
func (s *InventoryStore) Insert(_ context.Context, inv *domain.Inventory) error {
	if inv == nil || inv.InventoryID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[inv.InventoryID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *inv
	s.data[inv.InventoryID] = &cp
	return nil
}

// GetByID retrieves an item by its ID. Returns ErrNotFound if not exists.
func (s *InventoryStore) GetByID(_ context.Context, inventoryID string) (*domain.Inventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, exists := s.data[inventoryID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

// GetByStatus retrieves all items in a status, ordered by acquired_at ASC.
func (s *InventoryStore) GetByStatus(_ context.Context, status domain.InventoryStatus) ([]*domain.Inventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Inventory
	for _, inv := range s.data {
		if inv.Status == status {
			cp := *inv
			result = append(result, &cp)
		}
	}
	sortInventory(result)
	return result, nil
}

// GetAcquiredSince retrieves items acquired at or after the timestamp (ms).
func (s *InventoryStore) GetAcquiredSince(_ context.Context, since int64) ([]*domain.Inventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Inventory
	for _, inv := range s.data {
		if inv.AcquiredAt >= since {
			cp := *inv
			result = append(result, &cp)
		}
	}
	sortInventory(result)
	return result, nil
}

// Update overwrites an item by ID. Returns ErrNotFound if not exists.
func (s *InventoryStore) Update(_ context.Context, inv *domain.Inventory) error {
	if inv == nil || inv.InventoryID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[inv.InventoryID]; !exists {
		return storage.ErrNotFound
	}

	cp := *inv
	s.data[inv.InventoryID] = &cp
	return nil
}

func sortInventory(items []*domain.Inventory) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].AcquiredAt != items[j].AcquiredAt {
			return items[i].AcquiredAt < items[j].AcquiredAt
		}
		return items[i].InventoryID < items[j].InventoryID
	})
}
