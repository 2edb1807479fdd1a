package order

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/inventory"
)

const instrumentationName = "github.com/xenking/storefront/internal/domain/order"

type metrics struct {
	placed metric.Int64Counter
	failed metric.Int64Counter
	edited metric.Int64Counter
}

func newMetrics(mp metric.MeterProvider) (metrics, error) {
	meter := mp.Meter(instrumentationName)

	var (
		m   metrics
		err error
	)
	if m.placed, err = meter.Int64Counter("checkout.placed",
		metric.WithDescription("Orders placed through checkout"),
	); err != nil {
		return metrics{}, errors.Wrap(err, "checkout.placed")
	}
	if m.failed, err = meter.Int64Counter("checkout.failed",
		metric.WithDescription("Checkouts that were rolled back"),
	); err != nil {
		return metrics{}, errors.Wrap(err, "checkout.failed")
	}
	if m.edited, err = meter.Int64Counter("order.edited",
		metric.WithDescription("Order edits by actor"),
	); err != nil {
		return metrics{}, errors.Wrap(err, "order.edited")
	}
	return m, nil
}

func (m metrics) checkoutFailed(ctx context.Context, err error) {
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", failureReason(err))))
}

// failureReason buckets checkout errors into a low-cardinality label.
func failureReason(err error) string {
	switch {
	case errors.Is(err, cart.ErrNotFound), errors.Is(err, ErrEmptyCart):
		return "cart"
	case errors.Is(err, catalog.ErrAddressNotFound), errors.Is(err, catalog.ErrProductNotFound):
		return "catalog"
	case errors.Is(err, inventory.ErrNotFound), errors.Is(err, inventory.ErrInsufficientStock):
		return "stock"
	case errors.Is(err, inventory.ErrVersionConflict), errors.Is(err, discount.ErrVersionConflict):
		return "conflict"
	case errors.Is(err, discount.ErrNotFound),
		errors.Is(err, discount.ErrAlreadyUsed),
		errors.Is(err, discount.ErrOutOfStock),
		errors.Is(err, discount.ErrNotYetValid):
		return "discount"
	default:
		return "internal"
	}
}
