package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// ControlStore is an in-memory implementation of storage.ControlStore.
type ControlStore struct {
	mu        sync.RWMutex
	state     domain.EngineState
	throttles map[string]*domain.ThrottleState
}

// NewControlStore creates a new in-memory control store. The engine
// starts STOPPED, matching a fresh deployment.
func NewControlStore() *ControlStore {
	return &ControlStore{
		state:     domain.EngineStopped,
		throttles: make(map[string]*domain.ThrottleState),
	}
}

var _ storage.ControlStore = (*ControlStore)(nil)

// GetEngineState returns the persisted engine state.
func (s *ControlStore) GetEngineState(_ context.Context) (domain.EngineState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, nil
}

// SetEngineState transitions the engine state, validating the move.
func (s *ControlStore) SetEngineState(_ context.Context, to domain.EngineState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := domain.ValidateEngineTransition(s.state, to); err != nil {
		return err
	}
	s.state = to
	return nil
}

// GetThrottles returns all module throttle states.
func (s *ControlStore) GetThrottles(_ context.Context) ([]*domain.ThrottleState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.ThrottleState, 0, len(s.throttles))
	for _, t := range s.throttles {
		cp := *t
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Module < result[j].Module })
	return result, nil
}

// SetThrottle upserts one module's throttle state.
func (s *ControlStore) SetThrottle(_ context.Context, t *domain.ThrottleState) error {
	if t == nil || t.Capacity < 0 || t.Capacity > 1 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *t
	s.throttles[t.Module] = &cp
	return nil
}
