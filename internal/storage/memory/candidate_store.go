package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// CandidateStore is an in-memory implementation of storage.CandidateStore.
type CandidateStore struct {
	mu   sync.RWMutex
	data map[string]*domain.DealCandidate
}

// NewCandidateStore creates a new in-memory candidate store.
func NewCandidateStore() *CandidateStore {
	return &CandidateStore{data: make(map[string]*domain.DealCandidate)}
}

var _ storage.CandidateStore = (*CandidateStore)(nil)

// Insert adds a new candidate. Returns ErrDuplicateKey if candidate_id exists.
func (s *CandidateStore) Insert(_ context.Context, c *domain.DealCandidate) error {
	if c == nil || c.CandidateID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[c.CandidateID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *c
	s.data[c.CandidateID] = &cp
	return nil
}

// GetByID retrieves a candidate by its ID. Returns ErrNotFound if not exists.
func (s *CandidateStore) GetByID(_ context.Context, candidateID string) (*domain.DealCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.data[candidateID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// GetByStatus retrieves candidates in a status, ordered by net margin DESC
// then confidence DESC.
func (s *CandidateStore) GetByStatus(_ context.Context, status domain.CandidateStatus, limit int) ([]*domain.DealCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DealCandidate
	for _, c := range s.data {
		if c.Status == status {
			cp := *c
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].NetMargin != result[j].NetMargin {
			return result[i].NetMargin > result[j].NetMargin
		}
		if result[i].Confidence != result[j].Confidence {
			return result[i].Confidence > result[j].Confidence
		}
		return result[i].CandidateID < result[j].CandidateID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetBySource retrieves all candidates discovered from a supply source.
func (s *CandidateStore) GetBySource(_ context.Context, source domain.SupplySource) ([]*domain.DealCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DealCandidate
	for _, c := range s.data {
		if c.Source == source {
			cp := *c
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].DiscoveredAt != result[j].DiscoveredAt {
			return result[i].DiscoveredAt < result[j].DiscoveredAt
		}
		return result[i].CandidateID < result[j].CandidateID
	})
	return result, nil
}

// Update overwrites a candidate by ID. Returns ErrNotFound if not exists.
func (s *CandidateStore) Update(_ context.Context, c *domain.DealCandidate) error {
	if c == nil || c.CandidateID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[c.CandidateID]; !exists {
		return storage.ErrNotFound
	}

	cp := *c
	s.data[c.CandidateID] = &cp
	return nil
}
