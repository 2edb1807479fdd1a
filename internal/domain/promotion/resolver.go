package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/catalog"
)

var hundred = decimal.NewFromInt(100)

// Quote is the unit price of a product after promotion. Promotion is nil when
// the base price applies.
type Quote struct {
	UnitPrice decimal.Decimal
	Promotion *Promotion
}

// Resolver prices products against their first applicable promotion.
type Resolver struct {
	repo Repository
	now  func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the time source used to pick active promotions.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// NewResolver creates a Resolver over repo.
func NewResolver(repo Repository, opts ...Option) *Resolver {
	r := &Resolver{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PriceFor quotes a single product.
func (r *Resolver) PriceFor(ctx context.Context, p catalog.Product) (Quote, error) {
	quotes, err := r.Quote(ctx, []catalog.Product{p})
	if err != nil {
		return Quote{}, err
	}
	return quotes[p.ID], nil
}

// Quote prices all products with one repository lookup and returns the
// quotes keyed by product id.
func (r *Resolver) Quote(ctx context.Context, products []catalog.Product) (map[string]Quote, error) {
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}

	now := r.now()
	applicable, err := r.repo.ListApplicable(ctx, ids, now)
	if err != nil {
		return nil, errors.Wrap(err, "list promotions")
	}

	quotes := make(map[string]Quote, len(products))
	for _, p := range products {
		quotes[p.ID] = quote(p.Price, first(applicable[p.ID], now))
	}
	return quotes, nil
}

// first returns the first promotion in repository order that is active at
// now. It does not look for the largest discount.
func first(promos []Promotion, now time.Time) *Promotion {
	for i := range promos {
		if promos[i].ActiveAt(now) {
			p := promos[i]
			return &p
		}
	}
	return nil
}

func quote(base decimal.Decimal, p *Promotion) Quote {
	if p == nil {
		return Quote{UnitPrice: base}
	}
	return Quote{UnitPrice: Apply(base, p.Percentage), Promotion: p}
}

// Apply returns base reduced by pct percent, rounded to 2 decimal places and
// never below zero.
func Apply(base, pct decimal.Decimal) decimal.Decimal {
	factor := hundred.Sub(pct).Div(hundred)
	price := base.Mul(factor).Round(2)
	if price.IsNegative() {
		return decimal.Zero
	}
	return price
}
