// Package promotion resolves automatic, time-boxed percentage discounts on
// individual products.
package promotion

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Promotion is a percentage discount valid between StartsAt and EndsAt. It
// applies to every product when ApplyToAll is set, otherwise to linked
// products only.
type Promotion struct {
	ID         string
	Name       string
	Percentage decimal.Decimal
	StartsAt   time.Time
	EndsAt     time.Time
	Active     bool
	ApplyToAll bool
	CreatedAt  time.Time
}

// ActiveAt reports whether p is enabled and inside its window at now.
// Both window edges are inclusive.
func (p Promotion) ActiveAt(now time.Time) bool {
	return p.Active && !now.Before(p.StartsAt) && !now.After(p.EndsAt)
}

// Repository looks up promotions.
type Repository interface {
	// ListApplicable returns, per product id, the promotions active at now,
	// ordered by creation time then id. Products without promotions may be
	// absent from the map.
	ListApplicable(ctx context.Context, productIDs []string, now time.Time) (map[string][]Promotion, error)
}
