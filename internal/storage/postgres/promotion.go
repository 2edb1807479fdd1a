package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/promotion"
)

// Linked and store-wide promotions are merged; UNION drops a promotion that is
// both store-wide and linked.
const listApplicablePromotionsSQL = `
	SELECT pp.product_id, p.id, p.name, p.percentage, p.starts_at, p.ends_at,
		p.active, p.apply_to_all, p.created_at
	FROM promotions p
	JOIN promotion_products pp ON pp.promotion_id = p.id
	WHERE pp.product_id = ANY($1)
		AND p.active AND p.starts_at <= $2 AND p.ends_at >= $2
	UNION
	SELECT ids.product_id, p.id, p.name, p.percentage, p.starts_at, p.ends_at,
		p.active, p.apply_to_all, p.created_at
	FROM promotions p
	CROSS JOIN unnest($1::text[]) AS ids(product_id)
	WHERE p.apply_to_all
		AND p.active AND p.starts_at <= $2 AND p.ends_at >= $2
	ORDER BY 1, 9, 2`

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository implements promotion.Repository backed by PostgreSQL.
type PromotionRepository struct {
	db DBTX
}

// NewPromotionRepository returns a PromotionRepository that uses db.
func NewPromotionRepository(db DBTX) *PromotionRepository {
	return &PromotionRepository{db: db}
}

type productPromotion struct {
	productID string
	promo     promotion.Promotion
}

// ListApplicable returns the promotions active at now for each of productIDs,
// ordered by creation time then id.
func (r *PromotionRepository) ListApplicable(ctx context.Context, productIDs []string, now time.Time) (map[string][]promotion.Promotion, error) {
	rows, err := r.db.Query(ctx, listApplicablePromotionsSQL, productIDs, now)
	if err != nil {
		return nil, fmt.Errorf("listing applicable promotions: %w", err)
	}
	found, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (productPromotion, error) {
		var pp productPromotion
		p := &pp.promo
		err := row.Scan(&pp.productID, &p.ID, &p.Name, &p.Percentage, &p.StartsAt, &p.EndsAt,
			&p.Active, &p.ApplyToAll, &p.CreatedAt)
		return pp, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing applicable promotions: %w", err)
	}

	out := make(map[string][]promotion.Promotion, len(productIDs))
	for _, pp := range found {
		out[pp.productID] = append(out[pp.productID], pp.promo)
	}
	return out, nil
}
