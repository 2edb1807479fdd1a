package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/catalog"
)

const (
	getProductsSQL = `SELECT id, name, price FROM products WHERE id = ANY($1)`

	getAddressSQL = `SELECT id, user_id, recipient, phone, line1, city, country
		FROM addresses WHERE id = $1`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	db DBTX
}

// NewCatalogRepository returns a CatalogRepository that uses db.
func NewCatalogRepository(db DBTX) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// GetProducts fetches all products among ids in one query.
func (r *CatalogRepository) GetProducts(ctx context.Context, ids []string) ([]catalog.Product, error) {
	rows, err := r.db.Query(ctx, getProductsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products: %w", err)
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Product, error) {
		var p catalog.Product
		err := row.Scan(&p.ID, &p.Name, &p.Price)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("getting products: %w", err)
	}
	return products, nil
}

// GetAddress returns the address with id or catalog.ErrAddressNotFound.
func (r *CatalogRepository) GetAddress(ctx context.Context, id string) (catalog.Address, error) {
	var a catalog.Address
	err := r.db.QueryRow(ctx, getAddressSQL, id).Scan(
		&a.ID, &a.UserID, &a.Recipient, &a.Phone, &a.Line1, &a.City, &a.Country,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Address{}, catalog.ErrAddressNotFound
		}
		return catalog.Address{}, fmt.Errorf("getting address %q: %w", id, err)
	}
	return a, nil
}
