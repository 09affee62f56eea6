package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// LedgerStore is an in-memory implementation of storage.LedgerStore.
type LedgerStore struct {
	mu      sync.RWMutex
	entries []*domain.LedgerEntry
}

// NewLedgerStore creates a new in-memory ledger store.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{}
}

var _ storage.LedgerStore = (*LedgerStore)(nil)

// Append adds one entry.
func (s *LedgerStore) Append(_ context.Context, e *domain.LedgerEntry) error {
	if e == nil || e.Event == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *e
	s.entries = append(s.entries, &cp)
	return nil
}

// AppendBulk adds multiple entries.
func (s *LedgerStore) AppendBulk(ctx context.Context, entries []*domain.LedgerEntry) error {
	for _, e := range entries {
		if err := s.Append(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// GetByActorSince retrieves entries from one actor at or after the
// timestamp (ms), ordered by timestamp ASC.
func (s *LedgerStore) GetByActorSince(_ context.Context, actor string, since int64) ([]*domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.LedgerEntry
	for _, e := range s.entries {
		if e.Actor == actor && e.Timestamp >= since {
			cp := *e
			result = append(result, &cp)
		}
	}
	sortEntries(result)
	return result, nil
}

// GetByEventSince retrieves entries with one event name at or after the
// timestamp (ms), ordered by timestamp ASC.
func (s *LedgerStore) GetByEventSince(_ context.Context, event string, since int64) ([]*domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.LedgerEntry
	for _, e := range s.entries {
		if e.Event == event && e.Timestamp >= since {
			cp := *e
			result = append(result, &cp)
		}
	}
	sortEntries(result)
	return result, nil
}

// All returns a copy of every entry in append order (test hook).
func (s *LedgerStore) All() []*domain.LedgerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.LedgerEntry, 0, len(s.entries))
	for _, e := range s.entries {
		cp := *e
		result = append(result, &cp)
	}
	return result
}

func sortEntries(entries []*domain.LedgerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp < entries[j].Timestamp
	})
}
