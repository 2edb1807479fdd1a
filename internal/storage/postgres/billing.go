package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/billing"
)

const (
	nextInvoiceSeqSQL = `SELECT nextval('invoice_number_seq')`

	createInvoiceSQL = `INSERT INTO invoices (id, order_id, number, total, status, payment_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	getInvoiceSQL = `SELECT id, order_id, number, total, status, payment_id, created_at, updated_at
		FROM invoices WHERE id = $1`

	updateInvoiceSQL = `UPDATE invoices SET status = $2, payment_id = $3, updated_at = $4 WHERE id = $1`

	createPaymentSQL = `INSERT INTO payments (id, invoice_id, amount, method, status, checkout_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	updatePaymentSQL = `UPDATE payments SET amount = $2, status = $3, checkout_url = $4, updated_at = $5 WHERE id = $1`
)

var _ billing.Repository = (*BillingRepository)(nil)

// BillingRepository implements billing.Repository backed by PostgreSQL.
type BillingRepository struct {
	db DBTX
}

// NewBillingRepository returns a BillingRepository that uses db.
func NewBillingRepository(db DBTX) *BillingRepository {
	return &BillingRepository{db: db}
}

// NextInvoiceSeq draws from invoice_number_seq. Sequence values are not
// returned on rollback, so invoice numbers may have gaps.
func (r *BillingRepository) NextInvoiceSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := r.db.QueryRow(ctx, nextInvoiceSeqSQL).Scan(&seq); err != nil {
		return 0, fmt.Errorf("drawing invoice sequence: %w", err)
	}
	return seq, nil
}

func (r *BillingRepository) CreateInvoice(ctx context.Context, inv billing.Invoice) error {
	_, err := r.db.Exec(ctx, createInvoiceSQL,
		inv.ID, inv.OrderID, inv.Number, inv.Total, string(inv.Status),
		nullable(inv.PaymentID), inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating invoice %q: %w", inv.Number, err)
	}
	return nil
}

// GetInvoice returns the invoice with id or billing.ErrInvoiceNotFound.
func (r *BillingRepository) GetInvoice(ctx context.Context, id string) (billing.Invoice, error) {
	var (
		inv       billing.Invoice
		status    string
		paymentID *string
	)
	err := r.db.QueryRow(ctx, getInvoiceSQL, id).Scan(
		&inv.ID, &inv.OrderID, &inv.Number, &inv.Total, &status, &paymentID, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return billing.Invoice{}, billing.ErrInvoiceNotFound
		}
		return billing.Invoice{}, fmt.Errorf("getting invoice %q: %w", id, err)
	}
	inv.Status = billing.InvoiceStatus(status)
	inv.PaymentID = deref(paymentID)
	return inv, nil
}

func (r *BillingRepository) UpdateInvoice(ctx context.Context, inv billing.Invoice) error {
	tag, err := r.db.Exec(ctx, updateInvoiceSQL, inv.ID, string(inv.Status), nullable(inv.PaymentID), inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating invoice %q: %w", inv.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrInvoiceNotFound
	}
	return nil
}

func (r *BillingRepository) CreatePayment(ctx context.Context, p billing.Payment) error {
	_, err := r.db.Exec(ctx, createPaymentSQL,
		p.ID, p.InvoiceID, p.Amount, string(p.Method), string(p.Status), p.CheckoutURL, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating payment for invoice %q: %w", p.InvoiceID, err)
	}
	return nil
}

func (r *BillingRepository) UpdatePayment(ctx context.Context, p billing.Payment) error {
	_, err := r.db.Exec(ctx, updatePaymentSQL, p.ID, p.Amount, string(p.Status), p.CheckoutURL, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating payment %q: %w", p.ID, err)
	}
	return nil
}
