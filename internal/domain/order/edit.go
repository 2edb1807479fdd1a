package order

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ClientEdit lets the owner change the shipping address of a pending order.
func (s *Service) ClientEdit(ctx context.Context, req ClientEditRequest) (Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.ClientEdit")
	defer span.End()

	var out Order
	err := s.tx.InTx(ctx, func(ctx context.Context, st Store) error {
		o, err := s.order(ctx, st, req.OrderID())
		if err != nil {
			return err
		}
		if o.UserID != req.UserID() {
			return ErrForbidden
		}
		if o.Status != StatusPending {
			return ErrInvalidState
		}

		if id := req.AddressID(); id != "" {
			addr, err := s.address(ctx, st, id, o.UserID)
			if err != nil {
				return err
			}
			o.ShippingAddress = addr
		}

		o.UpdatedAt = s.now()
		if err := st.Orders().Update(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}
		out = o
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return Order{}, err
	}

	s.metrics.edited.Add(ctx, 1, metric.WithAttributes(attribute.String("actor", "client")))
	s.publish(ctx, newEvent(EventUpdated, out, out.UpdatedAt))
	return out, nil
}

// AdminEdit changes the address and/or status of any order. Any status may be
// set from any status.
func (s *Service) AdminEdit(ctx context.Context, req AdminEditRequest) (Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.AdminEdit")
	defer span.End()

	var out Order
	err := s.tx.InTx(ctx, func(ctx context.Context, st Store) error {
		o, err := s.order(ctx, st, req.OrderID())
		if err != nil {
			return err
		}

		if id := req.AddressID(); id != "" {
			addr, err := s.address(ctx, st, id, "")
			if err != nil {
				return err
			}
			o.ShippingAddress = addr
		}
		if status, ok := req.Status(); ok {
			o.Status = status
		}

		o.UpdatedAt = s.now()
		if err := st.Orders().Update(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}
		out = o
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return Order{}, err
	}

	s.metrics.edited.Add(ctx, 1, metric.WithAttributes(attribute.String("actor", "admin")))
	s.publish(ctx, newEvent(EventUpdated, out, out.UpdatedAt))
	return out, nil
}
