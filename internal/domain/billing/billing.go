// Package billing creates the invoice and payment for a placed order and
// obtains the external checkout link for it.
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// InvoiceStatus is the settlement state of an invoice.
type InvoiceStatus string

const (
	InvoiceUnpaid InvoiceStatus = "UNPAID"
	InvoicePaid   InvoiceStatus = "PAID"
)

// PaymentMethod is how the customer pays.
type PaymentMethod string

const (
	MethodTransfer PaymentMethod = "TRANSFER"
	MethodCash     PaymentMethod = "CASH"
)

// PaymentStatus is the state of a payment attempt.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

// ErrInvoiceNotFound is returned when an invoice id does not exist.
var ErrInvoiceNotFound = errors.New("invoice not found")

// Invoice is the billing record of exactly one order.
type Invoice struct {
	ID        string
	OrderID   string
	Number    string
	Total     decimal.Decimal
	Status    InvoiceStatus
	PaymentID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Payment is a payment attempt against an invoice.
type Payment struct {
	ID          string
	InvoiceID   string
	Amount      decimal.Decimal
	Method      PaymentMethod
	Status      PaymentStatus
	CheckoutURL string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository provides invoice and payment persistence.
type Repository interface {
	// NextInvoiceSeq returns the next value of the invoice number sequence.
	NextInvoiceSeq(ctx context.Context) (int64, error)
	CreateInvoice(ctx context.Context, inv Invoice) error
	GetInvoice(ctx context.Context, id string) (Invoice, error)
	UpdateInvoice(ctx context.Context, inv Invoice) error
	CreatePayment(ctx context.Context, p Payment) error
	UpdatePayment(ctx context.Context, p Payment) error
}

// LinkRequest describes the invoice a checkout link is created for.
type LinkRequest struct {
	InvoiceID     string
	InvoiceNumber string
	// OrderCode is the numeric part of the invoice number.
	OrderCode   int64
	Amount      decimal.Decimal
	Description string
}

// LinkProvider creates hosted checkout pages.
type LinkProvider interface {
	CreateLink(ctx context.Context, req LinkRequest) (string, error)
}

// InvoiceNumber formats prefix and seed into an invoice number. The result is
// deterministic for the same inputs.
func InvoiceNumber(prefix string, seed int64) string {
	return fmt.Sprintf("%s%06d", prefix, seed)
}
