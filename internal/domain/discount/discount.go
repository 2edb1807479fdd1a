// Package discount validates order-level discount codes and computes how much
// they take off an order.
package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates discount strategies.
type Type string

const (
	// TypePercentage takes a percentage of the subtotal, capped at MaxDiscountValue.
	TypePercentage Type = "PERCENTAGE"
	// TypeValue takes a fixed amount.
	TypeValue Type = "VALUE"
)

var (
	// ErrNotFound is returned when the discount id does not exist.
	ErrNotFound = errors.New("discount not found")
	// ErrAlreadyUsed is returned when the user has already redeemed the discount.
	ErrAlreadyUsed = errors.New("discount has been used")
	// ErrOutOfStock is returned when the discount reached MaxUses.
	ErrOutOfStock = errors.New("discount is out of stock")
	// ErrNotYetValid is returned outside the discount's start/expiry window.
	ErrNotYetValid = errors.New("discount is not yet valid")
	// ErrVersionConflict is returned when the discount row changed under an update.
	ErrVersionConflict = errors.New("discount version conflict")
	// ErrRedemptionNotFound is returned by Repository.FindRedemption when the
	// user never redeemed the discount.
	ErrRedemptionNotFound = errors.New("redemption not found")
)

// Discount is a user-entered, order-level code.
type Discount struct {
	ID               string
	Code             string
	Type             Type
	Percentage       decimal.Decimal
	Value            decimal.Decimal
	MaxDiscountValue decimal.Decimal
	MinOrderValue    decimal.Decimal
	MaxUses          int
	UsedCount        int
	StartsAt         time.Time
	ExpiresAt        time.Time
	Version          int64
}

// Redemption records that a user consumed a discount.
type Redemption struct {
	ID         string
	UserID     string
	DiscountID string
	UsesCount  int
	CreatedAt  time.Time
}

// Repository provides discount persistence.
type Repository interface {
	GetByID(ctx context.Context, id string) (Discount, error)
	FindRedemption(ctx context.Context, userID, discountID string) (Redemption, error)
	CreateRedemption(ctx context.Context, r Redemption) error
	// IncrementUsage bumps UsedCount by one if the stored version still
	// equals d.Version and returns ErrVersionConflict otherwise.
	IncrementUsage(ctx context.Context, d Discount) error
}
