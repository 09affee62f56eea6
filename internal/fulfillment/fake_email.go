package fulfillment

import (
	"context"
	"errors"
	"sync"
)

// SentEmail records one FakeEmailSender delivery.
type SentEmail struct {
	To      string
	Subject string
	Body    string
}

// FakeEmailSender is an in-memory EmailSender for tests and the
// memory-backed run mode.
type FakeEmailSender struct {
	mu   sync.Mutex
	sent []SentEmail

	// Fail makes every send fail.
	Fail bool
}

// NewFakeEmailSender creates an empty fake.
func NewFakeEmailSender() *FakeEmailSender {
	return &FakeEmailSender{}
}

var _ EmailSender = (*FakeEmailSender)(nil)

// Send records the email.
func (f *FakeEmailSender) Send(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Fail {
		return errors.New("smtp relay unavailable")
	}
	f.sent = append(f.sent, SentEmail{To: to, Subject: subject, Body: body})
	return nil
}

// Sent returns a copy of every recorded email.
func (f *FakeEmailSender) Sent() []SentEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentEmail(nil), f.sent...)
}
