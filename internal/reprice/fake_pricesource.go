package reprice

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
)

// FakePriceSource serves scripted competitor stats keyed by
// (marketplace, kind). Tests and the memory-backed run mode use it.
type FakePriceSource struct {
	mu    sync.Mutex
	stats map[string]*CompetitorStats

	// Fail makes every lookup fail.
	Fail bool
}

// NewFakePriceSource creates an empty fake.
func NewFakePriceSource() *FakePriceSource {
	return &FakePriceSource{stats: make(map[string]*CompetitorStats)}
}

var _ PriceSource = (*FakePriceSource)(nil)

// Set scripts the stats for one (marketplace, kind).
func (f *FakePriceSource) Set(m domain.Marketplace, kind domain.InventoryKind, stats CompetitorStats) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats[key(m, kind)] = &stats
}

// CompetitorStats returns the scripted stats, or an empty sample when
// nothing was scripted.
func (f *FakePriceSource) CompetitorStats(_ context.Context, m domain.Marketplace, kind domain.InventoryKind, _ string) (*CompetitorStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Fail {
		return nil, errors.New("price source unavailable")
	}
	if s, ok := f.stats[key(m, kind)]; ok {
		cp := *s
		return &cp, nil
	}
	return &CompetitorStats{}, nil
}

func key(m domain.Marketplace, kind domain.InventoryKind) string {
	return fmt.Sprintf("%s/%s", m, kind)
}
