// Package catalog holds the read-only product and address lookups used by
// checkout. Catalog CRUD lives elsewhere.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrProductNotFound is returned when a product id does not exist.
	ErrProductNotFound = errors.New("product not found")
	// ErrAddressNotFound is returned when a shipping address id does not exist
	// or belongs to another user.
	ErrAddressNotFound = errors.New("shipping address not found")
)

// Product is the priced catalog entry a cart item points at.
type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// Address is a user's shipping address.
type Address struct {
	ID        string
	UserID    string
	Recipient string
	Phone     string
	Line1     string
	City      string
	Country   string
}

// Repository provides catalog lookups.
type Repository interface {
	// GetProducts returns the products that exist among ids, in no particular
	// order. Missing ids are silently skipped.
	GetProducts(ctx context.Context, ids []string) ([]Product, error)
	GetAddress(ctx context.Context, id string) (Address, error)
}

// ProductNotFoundError names the missing product.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return "product " + e.ProductID + " not found"
}

// Is reports ErrProductNotFound equivalence.
func (e *ProductNotFoundError) Is(target error) bool {
	return target == ErrProductNotFound
}

// IndexProducts fetches ids in one batch and returns them keyed by id. It fails
// with ProductNotFoundError on the first id that is absent.
func IndexProducts(ctx context.Context, repo Repository, ids []string) (map[string]Product, error) {
	fetched, err := repo.GetProducts(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	byID := make(map[string]Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, &ProductNotFoundError{ProductID: id}
		}
	}
	return byID, nil
}
