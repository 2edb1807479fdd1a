package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Result is the outcome of applying a discount to a subtotal. Amount is what
// was actually taken off, so it never exceeds the subtotal. When Applied is
// false the subtotal was below MinOrderValue and Net equals the subtotal; the
// redemption is recorded either way.
type Result struct {
	Discount   Discount
	Amount     decimal.Decimal
	Net        decimal.Decimal
	Applied    bool
	Redemption *Redemption
}

// Engine validates and redeems discounts.
type Engine struct {
	repo       Repository
	now        func() time.Time
	countUsage bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithUsageCounting makes every redemption also increment Discount.UsedCount,
// so MaxUses caps redemptions across all users.
func WithUsageCounting(enabled bool) Option {
	return func(e *Engine) {
		e.countUsage = enabled
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an Engine over repo.
func NewEngine(repo Repository, opts ...Option) *Engine {
	e := &Engine{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply validates discountID for userID and records the redemption. The amount
// is only taken off when subtotal reaches the minimum order value.
//
// Checks run in order and the first failure wins: prior redemption, existence,
// exhaustion, validity window.
func (e *Engine) Apply(ctx context.Context, discountID, userID string, subtotal decimal.Decimal) (*Result, error) {
	prior, err := e.repo.FindRedemption(ctx, userID, discountID)
	switch {
	case err == nil:
		if prior.UsesCount >= 1 {
			return nil, ErrAlreadyUsed
		}
	case errors.Is(err, ErrRedemptionNotFound):
	default:
		return nil, errors.Wrap(err, "find redemption")
	}

	d, err := e.repo.GetByID(ctx, discountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get discount")
	}

	if d.UsedCount >= d.MaxUses {
		return nil, ErrOutOfStock
	}

	now := e.now()
	if now.Before(d.StartsAt) || now.After(d.ExpiresAt) {
		return nil, ErrNotYetValid
	}

	applied := !subtotal.LessThan(d.MinOrderValue)
	amount := zero
	if applied {
		if amount, err = Amount(d, subtotal); err != nil {
			return nil, err
		}
	}

	if e.countUsage {
		if err := e.repo.IncrementUsage(ctx, d); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				return nil, ErrVersionConflict
			}
			return nil, errors.Wrap(err, "increment discount usage")
		}
		d.UsedCount++
		d.Version++
	}

	r := Redemption{
		ID:         uuid.New().String(),
		UserID:     userID,
		DiscountID: d.ID,
		UsesCount:  1,
		CreatedAt:  now,
	}
	if err := e.repo.CreateRedemption(ctx, r); err != nil {
		return nil, errors.Wrap(err, "create redemption")
	}

	net := Net(subtotal, amount)
	return &Result{
		Discount:   d,
		Amount:     subtotal.Sub(net),
		Net:        net,
		Applied:    applied,
		Redemption: &r,
	}, nil
}
