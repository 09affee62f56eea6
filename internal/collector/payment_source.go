package collector

import (
	"context"
	"errors"
	"sync"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
)

// PaymentRecord is one payout line as the marketplace reports it.
type PaymentRecord struct {
	PaymentID   string
	Marketplace domain.Marketplace
	Gross       float64 // sale price the buyer paid
	Fee         float64 // fees the marketplace withheld
	Net         float64
	PaidAt      int64 // ms
}

// PaymentSource pulls external payment records for reconciliation.
// Implementations: per-marketplace payout APIs and FakePaymentSource.
type PaymentSource interface {
	FetchPayments(ctx context.Context, m domain.Marketplace, since int64) ([]PaymentRecord, error)
}

// FakePaymentSource is a scriptable in-memory PaymentSource for tests.
type FakePaymentSource struct {
	mu       sync.Mutex
	payments map[domain.Marketplace][]PaymentRecord

	// Fail makes every fetch return an error.
	Fail bool
}

// NewFakePaymentSource creates an empty FakePaymentSource.
func NewFakePaymentSource() *FakePaymentSource {
	return &FakePaymentSource{payments: make(map[domain.Marketplace][]PaymentRecord)}
}

var _ PaymentSource = (*FakePaymentSource)(nil)

// Add scripts one payment record.
func (f *FakePaymentSource) Add(p PaymentRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[p.Marketplace] = append(f.payments[p.Marketplace], p)
}

// FetchPayments returns the scripted records at or after since.
func (f *FakePaymentSource) FetchPayments(_ context.Context, m domain.Marketplace, since int64) ([]PaymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Fail {
		return nil, errors.New("payment api unavailable")
	}

	var out []PaymentRecord
	for _, p := range f.payments[m] {
		if p.PaidAt >= since {
			out = append(out, p)
		}
	}
	return out, nil
}
