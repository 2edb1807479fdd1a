package postgres

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/billing"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/inventory"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/promotion"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateUniqueViolation      = "23505"
)

var (
	_ order.Transactor = (*Store)(nil)
	_ order.Store      = repos{}
)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithMaxAttempts sets how many times a conflicting unit of work is run
// before the conflict is returned. Values below 1 are ignored.
func WithMaxAttempts(n int) StoreOption {
	return func(s *Store) {
		if n >= 1 {
			s.maxAttempts = n
		}
	}
}

// WithBackoff overrides the delay policy between attempts.
func WithBackoff(newBackOff func() backoff.BackOff) StoreOption {
	return func(s *Store) {
		if newBackOff != nil {
			s.newBackOff = newBackOff
		}
	}
}

// Store runs units of work in serializable transactions.
type Store struct {
	pool        *pgxpool.Pool
	maxAttempts int
	newBackOff  func() backoff.BackOff
}

// NewStore returns a Store over pool.
func NewStore(pool *pgxpool.Pool, opts ...StoreOption) *Store {
	s := &Store{
		pool:        pool,
		maxAttempts: 3,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 20 * time.Millisecond
			b.MaxInterval = 500 * time.Millisecond
			return b
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InTx runs fn in a serializable transaction. Serialization failures,
// deadlocks and optimistic version conflicts restart fn from scratch.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, st order.Store) error) error {
	return s.retry(ctx, func() error {
		return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
			return fn(ctx, repos{db: tx})
		})
	})
}

// Store returns repositories bound to the pool.
func (s *Store) Store() order.Store {
	return repos{db: s.pool}
}

func (s *Store) retry(ctx context.Context, op func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), uint64(s.maxAttempts-1)), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err == nil || retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, b)
}

func retryable(err error) bool {
	if errors.Is(err, inventory.ErrVersionConflict) || errors.Is(err, discount.ErrVersionConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlStateUniqueViolation
}

type repos struct{ db DBTX }

func (r repos) Carts() cart.Repository { return NewCartRepository(r.db) }
func (r repos) Catalog() catalog.Repository { return NewCatalogRepository(r.db) }
func (r repos) Inventory() inventory.Repository { return NewInventoryRepository(r.db) }
func (r repos) Promotions() promotion.Repository { return NewPromotionRepository(r.db) }
func (r repos) Discounts() discount.Repository { return NewDiscountRepository(r.db) }
func (r repos) Orders() order.Repository { return NewOrderRepository(r.db) }
func (r repos) Billing() billing.Repository { return NewBillingRepository(r.db) }
