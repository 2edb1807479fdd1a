package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/inventory"
)

const (
	getStockSQL = `SELECT product_id, size_id, quantity, version
		FROM inventory WHERE product_id = $1 AND size_id = $2`

	updateStockSQL = `UPDATE inventory SET quantity = $3, version = version + 1
		WHERE product_id = $1 AND size_id = $2 AND version = $4`
)

var _ inventory.Repository = (*InventoryRepository)(nil)

// InventoryRepository implements inventory.Repository backed by PostgreSQL.
type InventoryRepository struct {
	db DBTX
}

// NewInventoryRepository returns an InventoryRepository that uses db.
func NewInventoryRepository(db DBTX) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// Get returns the stock row of a product variant or inventory.ErrNotFound.
func (r *InventoryRepository) Get(ctx context.Context, productID, sizeID string) (inventory.Stock, error) {
	var s inventory.Stock
	err := r.db.QueryRow(ctx, getStockSQL, productID, sizeID).Scan(&s.ProductID, &s.SizeID, &s.Quantity, &s.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return inventory.Stock{}, inventory.ErrNotFound
		}
		return inventory.Stock{}, fmt.Errorf("getting stock %s/%s: %w", productID, sizeID, err)
	}
	return s, nil
}

// Update writes s.Quantity when the row is still at s.Version.
func (r *InventoryRepository) Update(ctx context.Context, s inventory.Stock) error {
	tag, err := r.db.Exec(ctx, updateStockSQL, s.ProductID, s.SizeID, s.Quantity, s.Version)
	if err != nil {
		return fmt.Errorf("updating stock %s/%s: %w", s.ProductID, s.SizeID, err)
	}
	if tag.RowsAffected() == 0 {
		return inventory.ErrVersionConflict
	}
	return nil
}
