package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

func TestBudgetStore_ReserveRelease(t *testing.T) {
	ctx := context.Background()
	s := NewBudgetStore()

	require.NoError(t, s.SetAllocated(ctx, domain.KindKey, 100))

	require.NoError(t, s.Reserve(ctx, domain.KindKey, 60))
	require.ErrorIs(t, s.Reserve(ctx, domain.KindKey, 50), storage.ErrInsufficientBudget)
	require.NoError(t, s.Reserve(ctx, domain.KindKey, 40))

	a, err := s.Get(ctx, domain.KindKey)
	require.NoError(t, err)
	assert.Equal(t, 0.0, a.Available())

	require.NoError(t, s.Release(ctx, domain.KindKey, 40))
	a, err = s.Get(ctx, domain.KindKey)
	require.NoError(t, err)
	assert.Equal(t, 40.0, a.Available())
}

func TestBudgetStore_ReserveNeverOverspendsConcurrently(t *testing.T) {
	ctx := context.Background()
	s := NewBudgetStore()
	require.NoError(t, s.SetAllocated(ctx, domain.KindKey, 100))

	var wg sync.WaitGroup
	granted := make(chan struct{}, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Reserve(ctx, domain.KindKey, 10) == nil {
				granted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(granted)

	count := 0
	for range granted {
		count++
	}
	assert.Equal(t, 10, count, "exactly allocated/amount reservations may succeed")
}

func TestBudgetStore_UnknownCategory(t *testing.T) {
	ctx := context.Background()
	s := NewBudgetStore()

	_, err := s.Get(ctx, domain.KindDomain)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.Reserve(ctx, domain.KindDomain, 1), storage.ErrInsufficientBudget)
	assert.ErrorIs(t, s.Release(ctx, domain.KindDomain, 1), storage.ErrNotFound)
}
