// Package fulfillment delivers sold goods to their buyers. Keys and gift
// cards held under an instant policy go out through the venue's messaging
// API; everything else ships by templated email. Accounts and domains are
// never auto-delivered: they hard-gate behind a manual review alert.
package fulfillment

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/ledger"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/marketplace"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// EmailSender delivers content outside the marketplace channel.
// Implementations: an SMTP adapter and FakeEmailSender for tests.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// DeliverParams filters one fulfillment run.
type DeliverParams struct {
	BatchSize        int     // transactions pulled per run, default 50
	MaxDeliveryHours float64 // orders older than this are left for operators, default 24
	DryRun           bool
}

// DeliverResult summarizes one fulfillment run.
type DeliverResult struct {
	Considered   int
	Delivered    int
	ManualReview int // account/domain orders gated behind an operator
	Stale        int // past the delivery window, left untouched
	Errors       []string
}

// Fulfiller processes PAID transactions to delivery.
type Fulfiller struct {
	clients          map[domain.Marketplace]*marketplace.Client
	transactionStore storage.TransactionStore
	inventoryStore   storage.InventoryStore
	listingStore     storage.ListingStore
	alertStore       storage.AlertStore
	email            EmailSender
	ledger           *ledger.Writer
	logger           *log.Logger
	now              func() time.Time
}

// Options contains dependencies for creating a Fulfiller.
type Options struct {
	Clients          []*marketplace.Client
	TransactionStore storage.TransactionStore
	InventoryStore   storage.InventoryStore
	ListingStore     storage.ListingStore
	AlertStore       storage.AlertStore
	Email            EmailSender
	Ledger           *ledger.Writer
	Logger           *log.Logger
}

// New creates a Fulfiller.
func New(opts Options) *Fulfiller {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	clients := make(map[domain.Marketplace]*marketplace.Client, len(opts.Clients))
	for _, c := range opts.Clients {
		clients[c.Marketplace()] = c
	}

	return &Fulfiller{
		clients:          clients,
		transactionStore: opts.TransactionStore,
		inventoryStore:   opts.InventoryStore,
		listingStore:     opts.ListingStore,
		alertStore:       opts.AlertStore,
		email:            opts.Email,
		ledger:           opts.Ledger,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock (tests).
func (f *Fulfiller) WithClock(now func() time.Time) *Fulfiller {
	f.now = now
	return f
}

// DeliverBatch processes PAID transactions inside the delivery window.
// A delivery failure raises a CRITICAL alert and leaves the transaction
// PAID so the next run retries it; partial state is never rolled back.
func (f *Fulfiller) DeliverBatch(ctx context.Context, params DeliverParams) (*DeliverResult, error) {
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	maxHours := params.MaxDeliveryHours
	if maxHours <= 0 {
		maxHours = 24
	}

	paid, err := f.transactionStore.GetByStatus(ctx, domain.TransactionPaid)
	if err != nil {
		return nil, fmt.Errorf("load paid transactions: %w", err)
	}
	if len(paid) > batchSize {
		paid = paid[:batchSize]
	}

	nowMs := f.now().UnixMilli()
	windowStart := nowMs - int64(maxHours*float64(time.Hour/time.Millisecond))

	result := &DeliverResult{}
	for _, tx := range paid {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Considered++

		if tx.SoldAt < windowStart {
			// Auto-delivering a very stale order invites disputes; leave
			// it for an operator.
			result.Stale++
			continue
		}

		if err := f.deliverOne(ctx, tx, params.DryRun, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", tx.TransactionID, err))
			f.raiseAlert(ctx, domain.SeverityCritical,
				fmt.Sprintf("delivery failed for transaction %s on %s: %v", tx.TransactionID, tx.Marketplace, err))
		}
	}

	f.ledger.Write(ctx, "fulfillment", "fulfillment.batch_completed", map[string]any{
		"considered":    result.Considered,
		"delivered":     result.Delivered,
		"manual_review": result.ManualReview,
		"stale":         result.Stale,
		"errors":        len(result.Errors),
		"dry_run":       params.DryRun,
	})

	return result, nil
}

// deliverOne routes a transaction to its delivery channel and advances
// transaction, inventory and listing state on success.
func (f *Fulfiller) deliverOne(ctx context.Context, tx *domain.Transaction, dryRun bool, result *DeliverResult) error {
	inv, err := f.inventoryStore.GetByID(ctx, tx.InventoryID)
	if err != nil {
		return fmt.Errorf("load inventory: %w", err)
	}

	if inv.Kind.RequiresManualReview() {
		result.ManualReview++
		if !dryRun {
			f.raiseAlert(ctx, domain.SeverityInfo,
				fmt.Sprintf("transaction %s (%s %s) needs manual handover", tx.TransactionID, inv.Kind, inv.Title))
			f.ledger.Write(ctx, "fulfillment", "fulfillment.manual_review", map[string]any{
				"transaction_id": tx.TransactionID,
				"inventory_id":   inv.InventoryID,
				"kind":           inv.Kind,
			})
		}
		return nil
	}

	if dryRun {
		f.logger.Printf("[fulfillment] dry-run: would deliver %s via %s", tx.TransactionID, f.channelFor(inv))
		result.Delivered++
		return nil
	}

	subject, body := renderDelivery(inv, tx)
	switch f.channelFor(inv) {
	case "marketplace_message":
		client, ok := f.clients[tx.Marketplace]
		if !ok {
			return fmt.Errorf("no client for %s", tx.Marketplace)
		}
		if err := client.SendMessage(ctx, tx.TransactionID, subject, body); err != nil {
			return err
		}
	default:
		if err := f.email.Send(ctx, buyerAddress(tx), subject, body); err != nil {
			return fmt.Errorf("send email: %w", err)
		}
	}

	nowMs := f.now().UnixMilli()

	tx.Status = domain.TransactionDelivered
	tx.DeliveredAt = nowMs
	if err := f.transactionStore.Update(ctx, tx); err != nil {
		return fmt.Errorf("mark transaction delivered: %w", err)
	}

	inv.Status = domain.InventoryDelivered
	inv.DeliveredAt = nowMs
	if err := f.inventoryStore.Update(ctx, inv); err != nil {
		return fmt.Errorf("mark inventory delivered: %w", err)
	}

	if tx.ListingID != "" {
		if l, err := f.listingStore.GetByID(ctx, tx.ListingID); err == nil {
			l.Status = domain.ListingSold
			l.UpdatedAt = nowMs
			if err := f.listingStore.Update(ctx, l); err != nil {
				return fmt.Errorf("mark listing sold: %w", err)
			}
		}
	}

	result.Delivered++
	f.ledger.Write(ctx, "fulfillment", "fulfillment.delivered", map[string]any{
		"transaction_id": tx.TransactionID,
		"inventory_id":   inv.InventoryID,
		"listing_id":     tx.ListingID,
		"channel":        f.channelFor(inv),
	})
	return nil
}

// channelFor picks the delivery channel by (kind, policy).
func (f *Fulfiller) channelFor(inv *domain.Inventory) string {
	instant := inv.Kind == domain.KindKey || inv.Kind == domain.KindGiftCard
	if instant && inv.Policy == domain.DeliveryInstant {
		return "marketplace_message"
	}
	return "email"
}

func (f *Fulfiller) raiseAlert(ctx context.Context, severity domain.AlertSeverity, message string) {
	err := f.alertStore.Insert(ctx, &domain.Alert{
		AlertID:   uuid.NewString(),
		Severity:  severity,
		Module:    "fulfillment",
		Message:   message,
		CreatedAt: f.now().UnixMilli(),
	})
	if err != nil {
		f.logger.Printf("[fulfillment] raise alert failed: %v", err)
	}
}

// renderDelivery fills the delivery template from structured metadata.
func renderDelivery(inv *domain.Inventory, tx *domain.Transaction) (subject, body string) {
	subject = fmt.Sprintf("Your order: %s", inv.Title)

	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for your purchase of %s.\n\n", inv.Title)
	switch inv.Kind {
	case domain.KindKey:
		fmt.Fprintf(&b, "Your activation key is attached to this order.\nRedeem it on %s.\n", brandOr(inv, "the publisher's platform"))
	case domain.KindGiftCard:
		b.WriteString("Your gift card code is attached to this order.\n")
	case domain.KindSubscription:
		fmt.Fprintf(&b, "Your subscription code is attached to this order.\nActivate it on %s.\n", brandOr(inv, "the provider's site"))
	default:
		b.WriteString("Delivery details are attached to this order.\n")
	}
	fmt.Fprintf(&b, "\nOrder reference: %s\n", tx.TransactionID)
	return subject, b.String()
}

func brandOr(inv *domain.Inventory, fallback string) string {
	if inv.Brand != "" {
		return inv.Brand
	}
	return fallback
}

// buyerAddress resolves the email recipient. Marketplaces mask buyer
// addresses behind per-transaction relays.
func buyerAddress(tx *domain.Transaction) string {
	return fmt.Sprintf("%s@buyers.%s.invalid", tx.TransactionID, strings.ToLower(string(tx.Marketplace)))
}
