package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// ListingStore is an in-memory implementation of storage.ListingStore.
type ListingStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Listing
}

// NewListingStore creates a new in-memory listing store.
func NewListingStore() *ListingStore {
	return &ListingStore{data: make(map[string]*domain.Listing)}
}

var _ storage.ListingStore = (*ListingStore)(nil)

// Insert adds a new listing. Returns ErrDuplicateKey if listing_id exists.
func (s *ListingStore) Insert(_ context.Context, l *domain.Listing) error {
	if l == nil || l.ListingID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[l.ListingID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *l
	s.data[l.ListingID] = &cp
	return nil
}

// GetByID retrieves a listing by its ID. Returns ErrNotFound if not exists.
func (s *ListingStore) GetByID(_ context.Context, listingID string) (*domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, exists := s.data[listingID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

// GetByStatus retrieves all listings in a status, ordered by listed_at ASC.
func (s *ListingStore) GetByStatus(_ context.Context, status domain.ListingStatus) ([]*domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Listing
	for _, l := range s.data {
		if l.Status == status {
			cp := *l
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ListedAt != result[j].ListedAt {
			return result[i].ListedAt < result[j].ListedAt
		}
		return result[i].ListingID < result[j].ListingID
	})
	return result, nil
}

// GetByInventoryID retrieves all listings for an inventory item.
func (s *ListingStore) GetByInventoryID(_ context.Context, inventoryID string) ([]*domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Listing
	for _, l := range s.data {
		if l.InventoryID == inventoryID {
			cp := *l
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ListedAt != result[j].ListedAt {
			return result[i].ListedAt < result[j].ListedAt
		}
		return result[i].ListingID < result[j].ListingID
	})
	return result, nil
}

// GetStaleActive retrieves ACTIVE listings not updated since the cutoff,
// ordered by views DESC.
func (s *ListingStore) GetStaleActive(_ context.Context, updatedBefore int64, limit int) ([]*domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Listing
	for _, l := range s.data {
		if l.Status == domain.ListingActive && l.UpdatedAt < updatedBefore {
			cp := *l
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Views != result[j].Views {
			return result[i].Views > result[j].Views
		}
		return result[i].ListingID < result[j].ListingID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Update overwrites a listing by ID. Returns ErrNotFound if not exists.
func (s *ListingStore) Update(_ context.Context, l *domain.Listing) error {
	if l == nil || l.ListingID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[l.ListingID]; !exists {
		return storage.ErrNotFound
	}

	cp := *l
	s.data[l.ListingID] = &cp
	return nil
}
