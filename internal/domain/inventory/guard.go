package inventory

import (
	"context"

	"github.com/go-faster/errors"
)

// Guard checks and decrements stock one line at a time.
type Guard struct {
	repo Repository
}

// NewGuard creates a Guard over repo.
func NewGuard(repo Repository) *Guard {
	return &Guard{repo: repo}
}

// Reserve takes qty units of the given variant and persists the new quantity
// immediately. The returned Stock carries the post-write version.
func (g *Guard) Reserve(ctx context.Context, productID, sizeID string, qty int) (Stock, error) {
	if qty <= 0 {
		return Stock{}, ErrInvalidQuantity
	}

	s, err := g.repo.Get(ctx, productID, sizeID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Stock{}, ErrNotFound
		}
		return Stock{}, errors.Wrap(err, "get stock")
	}

	if s.Quantity < qty {
		return Stock{}, &InsufficientStockError{
			ProductID: productID,
			SizeID:    sizeID,
			Available: s.Quantity,
			Requested: qty,
		}
	}

	s.Quantity -= qty
	if err := g.repo.Update(ctx, s); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return Stock{}, ErrVersionConflict
		}
		return Stock{}, errors.Wrap(err, "update stock")
	}
	s.Version++

	return s, nil
}
