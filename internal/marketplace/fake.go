package marketplace

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
)

// FakeAdapter is a deterministic in-memory Adapter for tests and the
// memory-backed run mode. Outcomes depend only on the seed, never on
// wall-clock or global randomness.
type FakeAdapter struct {
	mu       sync.Mutex
	prefix   string
	rng      *rand.Rand
	seq      int
	listings map[string]*RemoteStatus
	messages []FakeMessage

	// FailureRate in [0,1] makes that fraction of mutating calls fail,
	// drawn from the seeded rng.
	FailureRate float64
}

// FakeMessage records one SendMessage call.
type FakeMessage struct {
	BuyerRef string
	Subject  string
	Body     string
}

// NewFakeAdapter creates a seeded fake for one marketplace.
func NewFakeAdapter(marketplace domain.Marketplace, seed int64) *FakeAdapter {
	return &FakeAdapter{
		prefix:   string(marketplace),
		rng:      rand.New(rand.NewSource(seed)),
		listings: make(map[string]*RemoteStatus),
	}
}

var _ Adapter = (*FakeAdapter)(nil)

// CreateListing stores the listing and assigns a variant ID.
func (f *FakeAdapter) CreateListing(_ context.Context, req CreateRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.shouldFail() {
		return "", fmt.Errorf("%s: venue temporarily unavailable", f.prefix)
	}

	f.seq++
	variantID := fmt.Sprintf("%s-%06d", f.prefix, f.seq)
	f.listings[variantID] = &RemoteStatus{
		VariantID: variantID,
		Status:    domain.ListingActive,
		Price:     req.Price,
	}
	return variantID, nil
}

// UpdatePrice changes the stored price.
func (f *FakeAdapter) UpdatePrice(_ context.Context, variantID string, price float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.shouldFail() {
		return fmt.Errorf("%s: venue temporarily unavailable", f.prefix)
	}

	l, ok := f.listings[variantID]
	if !ok {
		return fmt.Errorf("%s: unknown variant %s", f.prefix, variantID)
	}
	l.Price = price
	return nil
}

// DeleteListing removes the listing.
func (f *FakeAdapter) DeleteListing(_ context.Context, variantID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.listings[variantID]; !ok {
		return fmt.Errorf("%s: unknown variant %s", f.prefix, variantID)
	}
	delete(f.listings, variantID)
	return nil
}

// GetListingStatus returns the stored view of a listing.
func (f *FakeAdapter) GetListingStatus(_ context.Context, variantID string) (*RemoteStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	l, ok := f.listings[variantID]
	if !ok {
		return nil, fmt.Errorf("%s: unknown variant %s", f.prefix, variantID)
	}
	cp := *l
	return &cp, nil
}

// SendMessage records the message.
func (f *FakeAdapter) SendMessage(_ context.Context, buyerRef, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.shouldFail() {
		return fmt.Errorf("%s: messaging temporarily unavailable", f.prefix)
	}

	f.messages = append(f.messages, FakeMessage{BuyerRef: buyerRef, Subject: subject, Body: body})
	return nil
}

// Messages returns a copy of all recorded messages.
func (f *FakeAdapter) Messages() []FakeMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeMessage(nil), f.messages...)
}

// SetViews sets demand counters on a stored listing (test hook).
func (f *FakeAdapter) SetViews(variantID string, views, watchers int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.listings[variantID]; ok {
		l.Views = views
		l.Watchers = watchers
	}
}

func (f *FakeAdapter) shouldFail() bool {
	return f.FailureRate > 0 && f.rng.Float64() < f.FailureRate
}
