// Package handler exposes the order workflows over HTTP.
package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// OrderService is the part of order.Service the handlers use.
type OrderService interface {
	Checkout(ctx context.Context, req order.CheckoutRequest) (*order.Receipt, error)
	GetForUser(ctx context.Context, orderID, userID string) (order.Order, error)
	ListByUser(ctx context.Context, userID string) ([]order.Order, error)
	List(ctx context.Context, f order.Filter) ([]order.Order, error)
	ClientEdit(ctx context.Context, req order.ClientEditRequest) (order.Order, error)
	AdminEdit(ctx context.Context, req order.AdminEditRequest) (order.Order, error)
}

var _ OrderService = (*order.Service)(nil)

// Config holds non-dependency handler settings.
type Config struct {
	// Idempotency, when set, guards checkout.
	Idempotency httpmiddleware.Middleware
	// MaxListLimit caps the admin listing limit. Defaults to 100.
	MaxListLimit int
}

// Handler serves the order API.
type Handler struct {
	orders       OrderService
	idempotency  httpmiddleware.Middleware
	maxListLimit int
}

// New creates a Handler.
func New(orders OrderService, cfg Config) *Handler {
	h := &Handler{
		orders:       orders,
		idempotency:  cfg.Idempotency,
		maxListLimit: cfg.MaxListLimit,
	}
	if h.idempotency == nil {
		h.idempotency = func(next http.Handler) http.Handler { return next }
	}
	if h.maxListLimit <= 0 {
		h.maxListLimit = 100
	}
	return h
}

// Mount registers the API routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Use(requireUser)
			r.With(h.idempotency).Post("/checkout", h.Checkout)
			r.Get("/", h.ListOrders)
			r.Get("/{orderID}", h.GetOrder)
			r.Patch("/{orderID}", h.EditOrder)
		})
		r.Route("/admin/orders", func(r chi.Router) {
			r.Get("/", h.AdminListOrders)
			r.Patch("/{orderID}", h.AdminEditOrder)
		})
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
}

type userKey struct{}

// requireUser reads the caller id set by the gateway.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(httpmiddleware.HeaderUserID))
		if id == "" {
			httpmiddleware.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing "+httpmiddleware.HeaderUserID+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, id)))
	})
}

func userFrom(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}
