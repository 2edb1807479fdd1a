package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/cart"
)

const (
	getCartByUserSQL = `SELECT id, user_id, created_at FROM carts WHERE user_id = $1`

	listCartItemsSQL = `SELECT id, cart_id, product_id, size_id, quantity
		FROM cart_items WHERE cart_id = $1 ORDER BY seq`

	deleteCartItemsSQL = `DELETE FROM cart_items WHERE cart_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	db DBTX
}

// NewCartRepository returns a CartRepository that uses db.
func NewCartRepository(db DBTX) *CartRepository {
	return &CartRepository{db: db}
}

// GetByUser returns the cart owned by userID or cart.ErrNotFound.
func (r *CartRepository) GetByUser(ctx context.Context, userID string) (cart.Cart, error) {
	var c cart.Cart
	err := r.db.QueryRow(ctx, getCartByUserSQL, userID).Scan(&c.ID, &c.UserID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cart.Cart{}, cart.ErrNotFound
		}
		return cart.Cart{}, fmt.Errorf("getting cart of user %q: %w", userID, err)
	}
	return c, nil
}

// ListItems returns the items of cartID in insertion order.
func (r *CartRepository) ListItems(ctx context.Context, cartID string) ([]cart.Item, error) {
	rows, err := r.db.Query(ctx, listCartItemsSQL, cartID)
	if err != nil {
		return nil, fmt.Errorf("listing items of cart %q: %w", cartID, err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Item, error) {
		var it cart.Item
		err := row.Scan(&it.ID, &it.CartID, &it.ProductID, &it.SizeID, &it.Quantity)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing items of cart %q: %w", cartID, err)
	}
	return items, nil
}

// DeleteItems removes every item of cartID.
func (r *CartRepository) DeleteItems(ctx context.Context, cartID string) error {
	if _, err := r.db.Exec(ctx, deleteCartItemsSQL, cartID); err != nil {
		return fmt.Errorf("deleting items of cart %q: %w", cartID, err)
	}
	return nil
}
