// Package inventory guards the per-(product, size) stock ledger.
package inventory

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when no stock row exists for a product and size.
	ErrNotFound = errors.New("product inventory not found")
	// ErrInsufficientStock is matched by InsufficientStockError.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrVersionConflict is returned when a stock row changed between read and write.
	ErrVersionConflict = errors.New("inventory version conflict")
	// ErrInvalidQuantity is returned for non-positive reservations.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// Stock is the quantity on hand for one product variant. Version is bumped on
// every successful write.
type Stock struct {
	ProductID string
	SizeID    string
	Quantity  int
	Version   int64
}

// Repository provides stock persistence.
type Repository interface {
	Get(ctx context.Context, productID, sizeID string) (Stock, error)
	// Update writes s.Quantity if the stored version still equals s.Version
	// and returns ErrVersionConflict otherwise.
	Update(ctx context.Context, s Stock) error
}

// InsufficientStockError reports how much was available for a failed reservation.
type InsufficientStockError struct {
	ProductID string
	SizeID    string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s size %s: available %d, requested %d",
		e.ProductID, e.SizeID, e.Available, e.Requested)
}

// Is reports ErrInsufficientStock equivalence.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
