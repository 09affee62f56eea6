package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// ExperimentStore is an in-memory implementation of storage.ExperimentStore.
type ExperimentStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Experiment
}

// NewExperimentStore creates a new in-memory experiment store.
func NewExperimentStore() *ExperimentStore {
	return &ExperimentStore{data: make(map[string]*domain.Experiment)}
}

var _ storage.ExperimentStore = (*ExperimentStore)(nil)

// Insert adds a new experiment. Returns ErrDuplicateKey if experiment_id exists.
func (s *ExperimentStore) Insert(_ context.Context, e *domain.Experiment) error {
	if e == nil || e.ExperimentID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.ExperimentID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *e
	s.data[e.ExperimentID] = &cp
	return nil
}

// GetByID retrieves an experiment by its ID. Returns ErrNotFound if not exists.
func (s *ExperimentStore) GetByID(_ context.Context, experimentID string) (*domain.Experiment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[experimentID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

// GetByStatus retrieves all experiments in a status, ordered by started_at ASC.
func (s *ExperimentStore) GetByStatus(_ context.Context, status domain.ExperimentStatus) ([]*domain.Experiment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Experiment
	for _, e := range s.data {
		if e.Status == status {
			cp := *e
			result = append(result, &cp)
		}
	}
	sortExperiments(result)
	return result, nil
}

// GetAll retrieves every experiment, ordered by started_at ASC.
func (s *ExperimentStore) GetAll(_ context.Context) ([]*domain.Experiment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Experiment, 0, len(s.data))
	for _, e := range s.data {
		cp := *e
		result = append(result, &cp)
	}
	sortExperiments(result)
	return result, nil
}

// Update overwrites an experiment by ID. Returns ErrNotFound if not exists.
func (s *ExperimentStore) Update(_ context.Context, e *domain.Experiment) error {
	if e == nil || e.ExperimentID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.ExperimentID]; !exists {
		return storage.ErrNotFound
	}

	cp := *e
	s.data[e.ExperimentID] = &cp
	return nil
}

func sortExperiments(exps []*domain.Experiment) {
	sort.Slice(exps, func(i, j int) bool {
		if exps[i].StartedAt != exps[j].StartedAt {
			return exps[i].StartedAt < exps[j].StartedAt
		}
		return exps[i].ExperimentID < exps[j].ExperimentID
	})
}
