package billing

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultInvoicePrefix is used when no prefix is configured.
const DefaultInvoicePrefix = "INV"

// OrderRef identifies the order being billed.
type OrderRef struct {
	ID     string
	UserID string
}

// Initiator creates the invoice and payment for an order.
type Initiator struct {
	repo   Repository
	links  LinkProvider
	prefix string
	offset int64
	now    func() time.Time
}

// InitiatorConfig configures invoice numbering.
type InitiatorConfig struct {
	Prefix string
	// SeedOffset is added to the sequence value before formatting.
	SeedOffset int64
}

// NewInitiator creates an Initiator.
func NewInitiator(repo Repository, links LinkProvider, cfg InitiatorConfig) *Initiator {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultInvoicePrefix
	}
	return &Initiator{
		repo:   repo,
		links:  links,
		prefix: prefix,
		offset: cfg.SeedOffset,
		now:    time.Now,
	}
}

// Initiate creates an invoice for net and a pending transfer payment with a
// checkout link. A zero net total produces a paid invoice with a completed
// payment and no link.
func (i *Initiator) Initiate(ctx context.Context, order OrderRef, net decimal.Decimal) (Invoice, Payment, error) {
	seq, err := i.repo.NextInvoiceSeq(ctx)
	if err != nil {
		return Invoice{}, Payment{}, errors.Wrap(err, "next invoice number")
	}
	seed := seq + i.offset

	now := i.now()
	inv := Invoice{
		ID:        uuid.New().String(),
		OrderID:   order.ID,
		Number:    InvoiceNumber(i.prefix, seed),
		Total:     net,
		Status:    InvoiceUnpaid,
		CreatedAt: now,
		UpdatedAt: now,
	}
	settled := net.IsZero()
	if settled {
		inv.Status = InvoicePaid
	}
	if err := i.repo.CreateInvoice(ctx, inv); err != nil {
		return Invoice{}, Payment{}, errors.Wrap(err, "create invoice")
	}

	pay := Payment{
		ID:        uuid.New().String(),
		InvoiceID: inv.ID,
		Amount:    decimal.Zero,
		Method:    MethodTransfer,
		Status:    PaymentPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if settled {
		pay.Status = PaymentCompleted
	}
	if err := i.repo.CreatePayment(ctx, pay); err != nil {
		return Invoice{}, Payment{}, errors.Wrap(err, "create payment")
	}

	inv.PaymentID = pay.ID
	if err := i.repo.UpdateInvoice(ctx, inv); err != nil {
		return Invoice{}, Payment{}, errors.Wrap(err, "link payment")
	}

	if settled {
		return inv, pay, nil
	}

	url, err := i.link(ctx, inv.ID, seed)
	if err != nil {
		return Invoice{}, Payment{}, err
	}
	pay.CheckoutURL = url
	if err := i.repo.UpdatePayment(ctx, pay); err != nil {
		return Invoice{}, Payment{}, errors.Wrap(err, "store checkout url")
	}

	return inv, pay, nil
}

// link reloads the persisted invoice and requests a checkout link for it.
func (i *Initiator) link(ctx context.Context, invoiceID string, seed int64) (string, error) {
	inv, err := i.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			return "", ErrInvoiceNotFound
		}
		return "", errors.Wrap(err, "get invoice")
	}

	url, err := i.links.CreateLink(ctx, LinkRequest{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.Number,
		OrderCode:     seed,
		Amount:        inv.Total,
		Description:   "Invoice " + inv.Number,
	})
	if err != nil {
		return "", errors.Wrap(err, "create payment link")
	}
	return url, nil
}
