package postgres

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

func TestBudgetStore_ReserveAndRelease(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBudgetStore(pool)
	ctx := context.Background()

	require.NoError(t, store.SetAllocated(ctx, domain.KindKey, 100))

	require.NoError(t, store.Reserve(ctx, domain.KindKey, 60))

	a, err := store.Get(ctx, domain.KindKey)
	require.NoError(t, err)
	assert.Equal(t, 100.0, a.Allocated)
	assert.Equal(t, 60.0, a.Reserved)
	assert.Equal(t, 40.0, a.Available())

	// The remaining 40 cannot cover 50.
	assert.ErrorIs(t, store.Reserve(ctx, domain.KindKey, 50), storage.ErrInsufficientBudget)

	require.NoError(t, store.Release(ctx, domain.KindKey, 60))
	require.NoError(t, store.Reserve(ctx, domain.KindKey, 50))
}

func TestBudgetStore_ReserveUnknownCategory(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBudgetStore(pool)
	err := store.Reserve(context.Background(), domain.KindDomain, 10)
	assert.ErrorIs(t, err, storage.ErrInsufficientBudget)
}

func TestBudgetStore_ReleaseClampsAtZero(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBudgetStore(pool)
	ctx := context.Background()

	require.NoError(t, store.SetAllocated(ctx, domain.KindGiftCard, 50))
	require.NoError(t, store.Reserve(ctx, domain.KindGiftCard, 20))
	require.NoError(t, store.Release(ctx, domain.KindGiftCard, 100))

	a, err := store.Get(ctx, domain.KindGiftCard)
	require.NoError(t, err)
	assert.Zero(t, a.Reserved)
}

// Ten workers race to reserve 20 from a 100 allocation; exactly five may win.
func TestBudgetStore_ConcurrentReserveNeverOverspends(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBudgetStore(pool)
	ctx := context.Background()

	require.NoError(t, store.SetAllocated(ctx, domain.KindKey, 100))

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.Reserve(ctx, domain.KindKey, 20)
		}()
	}
	wg.Wait()
	close(results)

	var wins int
	for err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, storage.ErrInsufficientBudget)
		}
	}
	assert.Equal(t, 5, wins)

	a, err := store.Get(ctx, domain.KindKey)
	require.NoError(t, err)
	assert.Equal(t, 100.0, a.Reserved)
}
