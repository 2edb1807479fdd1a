package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, user_id, redemption_id, address_id, status,
		total_before_discount, total_after_discount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	createOrderItemSQL = `INSERT INTO order_items (id, order_id, product_id, size_id, quantity, price, promotion_id, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	selectOrderSQL = `SELECT o.id, o.user_id, o.redemption_id, o.status,
		o.total_before_discount, o.total_after_discount, o.created_at, o.updated_at,
		a.id, a.user_id, a.recipient, a.phone, a.line1, a.city, a.country
		FROM orders o JOIN addresses a ON a.id = o.address_id`

	listOrderItemsSQL = `SELECT id, order_id, product_id, size_id, quantity, price, promotion_id
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`

	updateOrderSQL = `UPDATE orders SET address_id = $2, status = $3, updated_at = $4 WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	db DBTX
}

// NewOrderRepository returns an OrderRepository that uses db.
func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create persists the order row and its items in one batch.
func (r *OrderRepository) Create(ctx context.Context, o order.Order) error {
	b := &pgx.Batch{}
	b.Queue(createOrderSQL,
		o.ID, o.UserID, nullable(o.RedemptionID), o.ShippingAddress.ID, string(o.Status),
		o.TotalBeforeDiscount, o.TotalAfterDiscount, o.CreatedAt, o.UpdatedAt,
	)
	for i, it := range o.Items {
		b.Queue(createOrderItemSQL,
			it.ID, o.ID, it.ProductID, it.SizeID, it.Quantity, it.Price, nullable(it.PromotionID), i,
		)
	}

	if err := r.db.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns the order with its items or order.ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (order.Order, error) {
	orders, err := r.query(ctx, selectOrderSQL+` WHERE o.id = $1`, id)
	if err != nil {
		return order.Order{}, fmt.Errorf("getting order %q: %w", id, err)
	}
	if len(orders) == 0 {
		return order.Order{}, order.ErrNotFound
	}
	return orders[0], nil
}

// Update stores the order's address, status and update time.
func (r *OrderRepository) Update(ctx context.Context, o order.Order) error {
	tag, err := r.db.Exec(ctx, updateOrderSQL, o.ID, o.ShippingAddress.ID, string(o.Status), o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	return r.List(ctx, order.Filter{UserID: userID})
}

// List returns orders matching f, newest first.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("o.user_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("o.status = $%d", len(args)))
	}

	var sb strings.Builder
	sb.WriteString(selectOrderSQL)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY o.created_at DESC, o.id")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}

	orders, err := r.query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return orders, nil
}

func (r *OrderRepository) query(ctx context.Context, sql string, args ...any) ([]order.Order, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	byID := make(map[string]*order.Order, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		byID[orders[i].ID] = &orders[i]
	}

	rows, err = r.db.Query(ctx, listOrderItemsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "query items")
	}
	items, err := pgx.CollectRows(rows, scanOrderItem)
	if err != nil {
		return nil, errors.Wrap(err, "scan items")
	}
	for _, it := range items {
		o := byID[it.OrderID]
		o.Items = append(o.Items, it)
	}
	return orders, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o            order.Order
		redemptionID *string
		status       string
	)
	a := &o.ShippingAddress
	err := row.Scan(
		&o.ID, &o.UserID, &redemptionID, &status,
		&o.TotalBeforeDiscount, &o.TotalAfterDiscount, &o.CreatedAt, &o.UpdatedAt,
		&a.ID, &a.UserID, &a.Recipient, &a.Phone, &a.Line1, &a.City, &a.Country,
	)
	o.RedemptionID = deref(redemptionID)
	o.Status = order.Status(status)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var (
		it          order.Item
		promotionID *string
	)
	err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.SizeID, &it.Quantity, &it.Price, &promotionID)
	it.PromotionID = deref(promotionID)
	return it, err
}
