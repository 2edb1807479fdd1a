package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// EventType names an order lifecycle event.
type EventType string

const (
	EventPlaced  EventType = "order.placed"
	EventUpdated EventType = "order.updated"
)

// Event is published after an order change has been committed.
type Event struct {
	Type       EventType
	OrderID    string
	UserID     string
	Status     Status
	Total      decimal.Decimal
	OccurredAt time.Time
}

// Publisher delivers order events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }

func newEvent(t EventType, o Order, at time.Time) Event {
	return Event{
		Type:       t,
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     o.Status,
		Total:      o.TotalAfterDiscount,
		OccurredAt: at,
	}
}
