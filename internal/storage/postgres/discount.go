package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/discount"
)

const (
	getDiscountSQL = `SELECT id, code, type, percentage, value, max_discount_value,
		min_order_value, max_uses, used_count, starts_at, expires_at, version
		FROM discounts WHERE id = $1`

	findRedemptionSQL = `SELECT id, user_id, discount_id, uses_count, created_at
		FROM discount_redemptions WHERE user_id = $1 AND discount_id = $2`

	createRedemptionSQL = `INSERT INTO discount_redemptions (id, user_id, discount_id, uses_count, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	incrementDiscountUsageSQL = `UPDATE discounts SET used_count = used_count + 1, version = version + 1
		WHERE id = $1 AND version = $2 AND used_count < max_uses`
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	db DBTX
}

// NewDiscountRepository returns a DiscountRepository that uses db.
func NewDiscountRepository(db DBTX) *DiscountRepository {
	return &DiscountRepository{db: db}
}

// GetByID returns the discount with id or discount.ErrNotFound.
func (r *DiscountRepository) GetByID(ctx context.Context, id string) (discount.Discount, error) {
	var (
		d   discount.Discount
		typ string
	)
	err := r.db.QueryRow(ctx, getDiscountSQL, id).Scan(
		&d.ID, &d.Code, &typ, &d.Percentage, &d.Value, &d.MaxDiscountValue,
		&d.MinOrderValue, &d.MaxUses, &d.UsedCount, &d.StartsAt, &d.ExpiresAt, &d.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return discount.Discount{}, discount.ErrNotFound
		}
		return discount.Discount{}, fmt.Errorf("getting discount %q: %w", id, err)
	}
	d.Type = discount.Type(typ)
	return d, nil
}

// FindRedemption returns the user's redemption of discountID or
// discount.ErrRedemptionNotFound.
func (r *DiscountRepository) FindRedemption(ctx context.Context, userID, discountID string) (discount.Redemption, error) {
	var red discount.Redemption
	err := r.db.QueryRow(ctx, findRedemptionSQL, userID, discountID).Scan(
		&red.ID, &red.UserID, &red.DiscountID, &red.UsesCount, &red.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return discount.Redemption{}, discount.ErrRedemptionNotFound
		}
		return discount.Redemption{}, fmt.Errorf("finding redemption of %q by %q: %w", discountID, userID, err)
	}
	return red, nil
}

// CreateRedemption stores red. A concurrent redemption by the same user is
// reported as discount.ErrAlreadyUsed.
func (r *DiscountRepository) CreateRedemption(ctx context.Context, red discount.Redemption) error {
	_, err := r.db.Exec(ctx, createRedemptionSQL, red.ID, red.UserID, red.DiscountID, red.UsesCount, red.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return discount.ErrAlreadyUsed
		}
		return fmt.Errorf("creating redemption of %q: %w", red.DiscountID, err)
	}
	return nil
}

// IncrementUsage bumps used_count when the row is still at d.Version and has
// uses left.
func (r *DiscountRepository) IncrementUsage(ctx context.Context, d discount.Discount) error {
	tag, err := r.db.Exec(ctx, incrementDiscountUsageSQL, d.ID, d.Version)
	if err != nil {
		return fmt.Errorf("incrementing usage of discount %q: %w", d.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return discount.ErrVersionConflict
	}
	return nil
}
