// Package cart reads a user's pre-checkout selection.
package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when the user has no cart.
var ErrNotFound = errors.New("cart not found")

// Cart is owned by exactly one user.
type Cart struct {
	ID        string
	UserID    string
	CreatedAt time.Time
}

// Item is one product variant and quantity in a cart.
type Item struct {
	ID        string
	CartID    string
	ProductID string
	SizeID    string
	Quantity  int
}

// Repository provides cart persistence.
type Repository interface {
	GetByUser(ctx context.Context, userID string) (Cart, error)
	// ListItems returns the cart's items in insertion order.
	ListItems(ctx context.Context, cartID string) ([]Item, error)
	// DeleteItems empties the cart. The cart row itself is kept.
	DeleteItems(ctx context.Context, cartID string) error
}

// Reader loads a cart together with its items.
type Reader struct {
	repo Repository
}

// NewReader creates a Reader over repo.
func NewReader(repo Repository) *Reader {
	return &Reader{repo: repo}
}

// Load returns the user's cart and its items. The item slice may be empty.
func (r *Reader) Load(ctx context.Context, userID string) (Cart, []Item, error) {
	c, err := r.repo.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Cart{}, nil, ErrNotFound
		}
		return Cart{}, nil, errors.Wrap(err, "get cart")
	}

	items, err := r.repo.ListItems(ctx, c.ID)
	if err != nil {
		return Cart{}, nil, errors.Wrap(err, "list cart items")
	}
	return c, items, nil
}

// ProductIDs returns the distinct product ids referenced by items, in first-seen order.
func ProductIDs(items []Item) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}
