package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/billing"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/inventory"
	"github.com/xenking/storefront/internal/domain/promotion"
)

// Config holds checkout business settings.
type Config struct {
	// CountDiscountUsage increments Discount.UsedCount on every redemption.
	CountDiscountUsage bool
	InvoicePrefix      string
	InvoiceSeedOffset  int64
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the post-commit event publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracerProvider = tp
		}
	}
}

// WithMeterProvider sets the meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) {
		if mp != nil {
			s.meterProvider = mp
		}
	}
}

// Service runs checkout and the order edit workflow.
type Service struct {
	tx    Transactor
	links billing.LinkProvider
	cfg   Config

	events Publisher
	now    func() time.Time

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer
	metrics        metrics
}

// NewService creates an order Service.
func NewService(tx Transactor, links billing.LinkProvider, cfg Config, opts ...Option) (*Service, error) {
	s := &Service{
		tx:             tx,
		links:          links,
		cfg:            cfg,
		events:         nopPublisher{},
		now:            time.Now,
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(s)
	}

	m, err := newMetrics(s.meterProvider)
	if err != nil {
		return nil, errors.Wrap(err, "create metrics")
	}
	s.metrics = m
	s.tracer = s.tracerProvider.Tracer(instrumentationName)

	return s, nil
}

// Checkout converts the user's cart into a pending order, reserving stock,
// pricing promotions, redeeming the optional discount and creating the
// invoice and payment. All writes happen in one unit of work.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "order.Checkout",
		trace.WithAttributes(attribute.String("user.id", req.UserID())),
	)
	defer span.End()

	var receipt *Receipt
	err := s.tx.InTx(ctx, func(ctx context.Context, st Store) error {
		r, err := s.checkout(ctx, st, req)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout failed")
		s.metrics.checkoutFailed(ctx, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", receipt.Order.ID))
	s.metrics.placed.Add(ctx, 1)
	s.publish(ctx, newEvent(EventPlaced, receipt.Order, s.now()))

	return receipt, nil
}

func (s *Service) checkout(ctx context.Context, st Store, req CheckoutRequest) (*Receipt, error) {
	c, lines, err := cart.NewReader(st.Carts()).Load(ctx, req.UserID())
	if err != nil {
		return nil, err
	}

	addr, err := s.address(ctx, st, req.AddressID(), req.UserID())
	if err != nil {
		return nil, err
	}

	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	ids := cart.ProductIDs(lines)
	products, err := catalog.IndexProducts(ctx, st.Catalog(), ids)
	if err != nil {
		return nil, err
	}
	ordered := make([]catalog.Product, len(ids))
	for i, id := range ids {
		ordered[i] = products[id]
	}

	quotes, err := promotion.NewResolver(st.Promotions(), promotion.WithClock(s.now)).Quote(ctx, ordered)
	if err != nil {
		return nil, errors.Wrap(err, "quote promotions")
	}

	guard := inventory.NewGuard(st.Inventory())
	orderID := uuid.New().String()
	items := make([]Item, 0, len(lines))
	before, after := decimal.Zero, decimal.Zero

	for _, line := range lines {
		if _, err := guard.Reserve(ctx, line.ProductID, line.SizeID, line.Quantity); err != nil {
			return nil, errors.Wrapf(err, "reserve %s/%s", line.ProductID, line.SizeID)
		}

		p := products[line.ProductID]
		q := quotes[line.ProductID]
		qty := decimal.NewFromInt(int64(line.Quantity))

		before = before.Add(p.Price.Mul(qty))
		after = after.Add(q.UnitPrice.Mul(qty))

		item := Item{
			ID:        uuid.New().String(),
			OrderID:   orderID,
			ProductID: line.ProductID,
			SizeID:    line.SizeID,
			Quantity:  line.Quantity,
			Price:     q.UnitPrice,
		}
		if q.Promotion != nil {
			item.PromotionID = q.Promotion.ID
		}
		items = append(items, item)
	}

	net := after
	var redemptionID string
	if id := req.DiscountID(); id != "" {
		engine := discount.NewEngine(st.Discounts(),
			discount.WithClock(s.now),
			discount.WithUsageCounting(s.cfg.CountDiscountUsage),
		)
		res, err := engine.Apply(ctx, id, req.UserID(), after)
		if err != nil {
			return nil, errors.Wrap(err, "apply discount")
		}
		net = res.Net
		if res.Redemption != nil {
			redemptionID = res.Redemption.ID
		}
	}

	now := s.now()
	o := Order{
		ID:                  orderID,
		UserID:              req.UserID(),
		RedemptionID:        redemptionID,
		ShippingAddress:     addr,
		Status:              StatusPending,
		TotalBeforeDiscount: before,
		TotalAfterDiscount:  net,
		Items:               items,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := st.Orders().Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	if err := st.Carts().DeleteItems(ctx, c.ID); err != nil {
		return nil, errors.Wrap(err, "clear cart")
	}

	initiator := billing.NewInitiator(st.Billing(), s.links, billing.InitiatorConfig{
		Prefix:     s.cfg.InvoicePrefix,
		SeedOffset: s.cfg.InvoiceSeedOffset,
	})
	inv, pay, err := initiator.Initiate(ctx, billing.OrderRef{ID: o.ID, UserID: o.UserID}, net)
	if err != nil {
		return nil, errors.Wrap(err, "initiate billing")
	}

	return &Receipt{Order: o, Invoice: inv, Payment: pay}, nil
}

// GetForUser returns an order owned by userID.
func (s *Service) GetForUser(ctx context.Context, orderID, userID string) (Order, error) {
	o, err := s.order(ctx, s.tx.Store(), orderID)
	if err != nil {
		return Order{}, err
	}
	if o.UserID != userID {
		return Order{}, ErrForbidden
	}
	return o, nil
}

// ListByUser returns the user's orders, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	orders, err := s.tx.Store().Orders().ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// List returns orders matching f, newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]Order, error) {
	orders, err := s.tx.Store().Orders().List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

func (s *Service) order(ctx context.Context, st Store, id string) (Order, error) {
	o, err := st.Orders().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Order{}, ErrNotFound
		}
		return Order{}, errors.Wrap(err, "get order")
	}
	return o, nil
}

// address loads a shipping address. When ownerID is set, addresses of other
// users are reported as not found.
func (s *Service) address(ctx context.Context, st Store, id, ownerID string) (catalog.Address, error) {
	addr, err := st.Catalog().GetAddress(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrAddressNotFound) {
			return catalog.Address{}, catalog.ErrAddressNotFound
		}
		return catalog.Address{}, errors.Wrap(err, "get address")
	}
	if ownerID != "" && addr.UserID != ownerID {
		return catalog.Address{}, catalog.ErrAddressNotFound
	}
	return addr, nil
}

// publish delivers e after commit. Failures are logged; the change is
// already durable.
func (s *Service) publish(ctx context.Context, e Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		zctx.From(ctx).Warn("Publish order event",
			zap.String("type", string(e.Type)),
			zap.String("order_id", e.OrderID),
			zap.Error(err),
		)
	}
}
