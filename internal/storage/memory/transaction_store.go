package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
type TransactionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Transaction
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{data: make(map[string]*domain.Transaction)}
}

var _ storage.TransactionStore = (*TransactionStore)(nil)

// Insert adds a new transaction. Returns ErrDuplicateKey if transaction_id exists.
func (s *TransactionStore) Insert(_ context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.TransactionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[tx.TransactionID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *tx
	s.data[tx.TransactionID] = &cp
	return nil
}

// GetByID retrieves a transaction by its ID. Returns ErrNotFound if not exists.
func (s *TransactionStore) GetByID(_ context.Context, transactionID string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, exists := s.data[transactionID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

// GetByStatus retrieves all transactions in a status, ordered by sold_at ASC.
func (s *TransactionStore) GetByStatus(_ context.Context, status domain.TransactionStatus) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, tx := range s.data {
		if tx.Status == status {
			cp := *tx
			result = append(result, &cp)
		}
	}
	sortTransactions(result)
	return result, nil
}

// GetByInventoryID retrieves all transactions for an inventory item.
func (s *TransactionStore) GetByInventoryID(_ context.Context, inventoryID string) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, tx := range s.data {
		if tx.InventoryID == inventoryID {
			cp := *tx
			result = append(result, &cp)
		}
	}
	sortTransactions(result)
	return result, nil
}

// GetSince retrieves transactions sold at or after the timestamp (ms).
func (s *TransactionStore) GetSince(_ context.Context, since int64) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, tx := range s.data {
		if tx.SoldAt >= since {
			cp := *tx
			result = append(result, &cp)
		}
	}
	sortTransactions(result)
	return result, nil
}

// GetByMarketplaceSince retrieves transactions for one marketplace sold at
// or after the timestamp (ms).
func (s *TransactionStore) GetByMarketplaceSince(_ context.Context, marketplace domain.Marketplace, since int64) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, tx := range s.data {
		if tx.Marketplace == marketplace && tx.SoldAt >= since {
			cp := *tx
			result = append(result, &cp)
		}
	}
	sortTransactions(result)
	return result, nil
}

// Update overwrites a transaction by ID. Returns ErrNotFound if not exists.
func (s *TransactionStore) Update(_ context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.TransactionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[tx.TransactionID]; !exists {
		return storage.ErrNotFound
	}

	cp := *tx
	s.data[tx.TransactionID] = &cp
	return nil
}

func sortTransactions(txs []*domain.Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].SoldAt != txs[j].SoldAt {
			return txs[i].SoldAt < txs[j].SoldAt
		}
		return txs[i].TransactionID < txs[j].TransactionID
	})
}
