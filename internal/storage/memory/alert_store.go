package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// AlertStore is an in-memory implementation of storage.AlertStore.
type AlertStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Alert
}

// NewAlertStore creates a new in-memory alert store.
func NewAlertStore() *AlertStore {
	return &AlertStore{data: make(map[string]*domain.Alert)}
}

var _ storage.AlertStore = (*AlertStore)(nil)

// Insert adds a new alert. Returns ErrDuplicateKey if alert_id exists.
func (s *AlertStore) Insert(_ context.Context, a *domain.Alert) error {
	if a == nil || a.AlertID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.AlertID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *a
	s.data[a.AlertID] = &cp
	return nil
}

// GetUnresolved retrieves unresolved alerts, ordered by created_at ASC.
func (s *AlertStore) GetUnresolved(_ context.Context) ([]*domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Alert
	for _, a := range s.data {
		if a.ResolvedAt == 0 {
			cp := *a
			result = append(result, &cp)
		}
	}
	sortAlerts(result)
	return result, nil
}

// GetBySeveritySince retrieves alerts of a severity created at or after
// the timestamp (ms).
func (s *AlertStore) GetBySeveritySince(_ context.Context, severity domain.AlertSeverity, since int64) ([]*domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Alert
	for _, a := range s.data {
		if a.Severity == severity && a.CreatedAt >= since {
			cp := *a
			result = append(result, &cp)
		}
	}
	sortAlerts(result)
	return result, nil
}

// Resolve marks an alert resolved at the given timestamp (ms).
func (s *AlertStore) Resolve(_ context.Context, alertID string, resolvedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.data[alertID]
	if !exists {
		return storage.ErrNotFound
	}
	a.ResolvedAt = resolvedAt
	return nil
}

func sortAlerts(alerts []*domain.Alert) {
	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].CreatedAt != alerts[j].CreatedAt {
			return alerts[i].CreatedAt < alerts[j].CreatedAt
		}
		return alerts[i].AlertID < alerts[j].AlertID
	})
}
