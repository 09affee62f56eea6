// Package marketplace wraps per-venue listing APIs behind one Client with
// validation, blocking rate limiting and a circuit breaker. Business logic
// never talks to an Adapter directly and never knows whether the adapter
// is real or a fake.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
)

// Validation errors. These reject a request before any marketplace call
// and are never retried automatically.
var (
	ErrUnsupportedCategory = errors.New("marketplace does not support category")
	ErrTitleTooLong        = errors.New("title exceeds marketplace limit")
	ErrDescriptionTooLong  = errors.New("description exceeds marketplace limit")
	ErrInvalidPrice        = errors.New("price must be positive")
)

// CreateRequest is the input to CreateListing.
type CreateRequest struct {
	SKU         string
	Kind        domain.InventoryKind
	Title       string
	Description string
	Price       float64
}

// RemoteStatus is a venue's view of one listing.
type RemoteStatus struct {
	VariantID string
	Status    domain.ListingStatus
	Price     float64
	Views     int
	Watchers  int
}

// Adapter is the raw venue API. Implementations: a real HTTP adapter per
// marketplace, and FakeAdapter for tests and simulation.
type Adapter interface {
	CreateListing(ctx context.Context, req CreateRequest) (variantID string, err error)
	UpdatePrice(ctx context.Context, variantID string, price float64) error
	DeleteListing(ctx context.Context, variantID string) error
	GetListingStatus(ctx context.Context, variantID string) (*RemoteStatus, error)
	SendMessage(ctx context.Context, buyerRef, subject, body string) error
}

// Client is one marketplace's validated, rate-limited API surface.
type Client struct {
	cfg     Config
	adapter Adapter
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[any]
	logger  *log.Logger
}

// NewClient creates a Client for one marketplace. The limiter enforces the
// venue's requests-per-minute budget with burst 1, which makes Wait behave
// as a minimum inter-request interval; callers block for their turn
// instead of failing.
func NewClient(cfg Config, adapter Adapter, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 10
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    fmt.Sprintf("marketplace-%s", cfg.Marketplace),
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		cfg:     cfg,
		adapter: adapter,
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		breaker: breaker,
		logger:  logger,
	}
}

// Marketplace returns the venue this client targets.
func (c *Client) Marketplace() domain.Marketplace {
	return c.cfg.Marketplace
}

// Config returns the venue configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// CreateListing validates the request and creates the listing, returning
// the marketplace-assigned variant ID.
func (c *Client) CreateListing(ctx context.Context, req CreateRequest) (string, error) {
	if err := c.validate(req); err != nil {
		return "", err
	}
	if err := c.enforceRateLimit(ctx); err != nil {
		return "", err
	}

	out, err := c.breaker.Execute(func() (any, error) {
		return c.adapter.CreateListing(ctx, req)
	})
	if err != nil {
		return "", fmt.Errorf("create listing on %s: %w", c.cfg.Marketplace, err)
	}
	return out.(string), nil
}

// UpdatePrice changes the price of an existing listing.
func (c *Client) UpdatePrice(ctx context.Context, variantID string, price float64) error {
	if price <= 0 {
		return ErrInvalidPrice
	}
	if err := c.enforceRateLimit(ctx); err != nil {
		return err
	}

	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.adapter.UpdatePrice(ctx, variantID, price)
	})
	if err != nil {
		return fmt.Errorf("update price on %s: %w", c.cfg.Marketplace, err)
	}
	return nil
}

// DeleteListing removes a listing from the venue.
func (c *Client) DeleteListing(ctx context.Context, variantID string) error {
	if err := c.enforceRateLimit(ctx); err != nil {
		return err
	}

	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.adapter.DeleteListing(ctx, variantID)
	})
	if err != nil {
		return fmt.Errorf("delete listing on %s: %w", c.cfg.Marketplace, err)
	}
	return nil
}

// GetListingStatus fetches the venue's view of a listing.
func (c *Client) GetListingStatus(ctx context.Context, variantID string) (*RemoteStatus, error) {
	if err := c.enforceRateLimit(ctx); err != nil {
		return nil, err
	}

	out, err := c.breaker.Execute(func() (any, error) {
		return c.adapter.GetListingStatus(ctx, variantID)
	})
	if err != nil {
		return nil, fmt.Errorf("get listing status on %s: %w", c.cfg.Marketplace, err)
	}
	return out.(*RemoteStatus), nil
}

// SendMessage delivers content to a buyer through the venue's messaging
// API (instant key/giftcard delivery path).
func (c *Client) SendMessage(ctx context.Context, buyerRef, subject, body string) error {
	if err := c.enforceRateLimit(ctx); err != nil {
		return err
	}

	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.adapter.SendMessage(ctx, buyerRef, subject, body)
	})
	if err != nil {
		return fmt.Errorf("send message on %s: %w", c.cfg.Marketplace, err)
	}
	return nil
}

// validate rejects requests that would fail venue-side.
func (c *Client) validate(req CreateRequest) error {
	if !c.cfg.SupportsCategory(req.Kind) {
		return fmt.Errorf("%w: %s on %s", ErrUnsupportedCategory, req.Kind, c.cfg.Marketplace)
	}
	if c.cfg.MaxTitleLen > 0 && len(req.Title) > c.cfg.MaxTitleLen {
		return fmt.Errorf("%w: %d > %d on %s", ErrTitleTooLong, len(req.Title), c.cfg.MaxTitleLen, c.cfg.Marketplace)
	}
	if c.cfg.MaxDescriptionLen > 0 && len(req.Description) > c.cfg.MaxDescriptionLen {
		return fmt.Errorf("%w: %d > %d on %s", ErrDescriptionTooLong, len(req.Description), c.cfg.MaxDescriptionLen, c.cfg.Marketplace)
	}
	if req.Price <= 0 {
		return ErrInvalidPrice
	}
	return nil
}

// enforceRateLimit blocks until the venue's request budget allows another
// call, or the context is cancelled.
func (c *Client) enforceRateLimit(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", c.cfg.Marketplace, err)
	}
	return nil
}
