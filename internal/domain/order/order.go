package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/billing"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/inventory"
	"github.com/xenking/storefront/internal/domain/promotion"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipping  Status = "SHIPPING"
	StatusDelivered Status = "DELIVERED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

var statuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusShipping,
	StatusDelivered,
	StatusCompleted,
	StatusCancelled,
}

// ParseStatus parses a status name case-insensitively.
func ParseStatus(s string) (Status, error) {
	v := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range statuses {
		if st == v {
			return v, nil
		}
	}
	return "", errors.Wrapf(ErrInvalidStatus, "%q", s)
}

// Order is the aggregate created by checkout.
type Order struct {
	ID     string
	UserID string
	// RedemptionID links the discount redemption consumed by this order.
	// Empty when no discount was applied.
	RedemptionID        string
	ShippingAddress     catalog.Address
	Status              Status
	TotalBeforeDiscount decimal.Decimal
	TotalAfterDiscount  decimal.Decimal
	Items               []Item
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Item is a priced snapshot of one cart line. PromotionID is empty when the
// base price was charged.
type Item struct {
	ID          string
	OrderID     string
	ProductID   string
	SizeID      string
	Quantity    int
	Price       decimal.Decimal
	PromotionID string
}

// Filter narrows an order listing. Zero fields match everything.
type Filter struct {
	Status Status
	UserID string
	Limit  int
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create stores the order and all of its items.
	Create(ctx context.Context, o Order) error
	GetByID(ctx context.Context, id string) (Order, error)
	// Update stores the order's shipping address, status and update time.
	Update(ctx context.Context, o Order) error
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	List(ctx context.Context, f Filter) ([]Order, error)
}

// Store is the set of repositories sharing one unit of work.
type Store interface {
	Carts() cart.Repository
	Catalog() catalog.Repository
	Inventory() inventory.Repository
	Promotions() promotion.Repository
	Discounts() discount.Repository
	Orders() Repository
	Billing() billing.Repository
}

// Transactor runs work atomically. If fn returns an error every write made
// through its Store is rolled back.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
	// Store returns repositories that are not bound to a transaction.
	Store() Store
}

// Receipt is the result of a successful checkout.
type Receipt struct {
	Order   Order
	Invoice billing.Invoice
	Payment billing.Payment
}
