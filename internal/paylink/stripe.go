// Package paylink creates hosted checkout pages for unpaid invoices.
package paylink

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/billing"
)

var _ billing.LinkProvider = (*Stripe)(nil)

type sessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeConfig configures the Stripe provider.
type StripeConfig struct {
	APIKey     string
	Currency   string
	SuccessURL string
	CancelURL  string
	Backends   *stripe.Backends
}

// Stripe creates Stripe Checkout sessions and returns their URL.
type Stripe struct {
	sessions   sessionAPI
	currency   string
	successURL string
	cancelURL  string
}

// NewStripe builds a Stripe provider.
func NewStripe(cfg StripeConfig) (*Stripe, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.New("stripe: api key is required")
	}
	sc := client.New(key, cfg.Backends)
	return newStripe(sc.CheckoutSessions, cfg), nil
}

func newStripe(sessions sessionAPI, cfg StripeConfig) *Stripe {
	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "usd"
	}
	return &Stripe{
		sessions:   sessions,
		currency:   currency,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
	}
}

// CreateLink opens a one-line checkout session for the invoice. The idempotency
// key is derived from the invoice id, so network retries inside the Stripe
// client reuse one session. A retried transaction creates a new invoice and
// therefore a new session; the abandoned one is never linked and expires.
func (s *Stripe) CreateLink(ctx context.Context, req billing.LinkRequest) (string, error) {
	if !req.Amount.IsPositive() {
		return "", errors.Errorf("stripe: invoice %s has non-positive amount %s", req.InvoiceNumber, req.Amount)
	}

	metadata := map[string]string{
		"invoice_id":     req.InvoiceID,
		"invoice_number": req.InvoiceNumber,
		"order_code":     strconv.FormatInt(req.OrderCode, 10),
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(req.InvoiceNumber),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(s.currency),
				UnitAmount: stripe.Int64(req.Amount.Shift(2).Round(0).IntPart()),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.Description),
				},
			},
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	params.Context = ctx
	params.Metadata = metadata
	params.SetIdempotencyKey("invoice-" + req.InvoiceID)

	session, err := s.sessions.New(params)
	if err != nil {
		return "", errors.Wrap(err, "stripe: create checkout session")
	}
	if session.URL == "" {
		return "", errors.Errorf("stripe: session %s has no url", session.ID)
	}

	zctx.From(ctx).Debug("Checkout session created",
		zap.String("session_id", session.ID),
		zap.String("invoice_number", req.InvoiceNumber),
	)
	return session.URL, nil
}
