package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/order"
)

// Checkout handles POST /api/v1/orders/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var addressID, discountID string
	if err := decodeStrings(w, r, map[string]*string{
		"shippingAddressId": &addressID,
		"discountId":        &discountID,
	}); err != nil {
		writeError(w, r, err)
		return
	}

	req, err := order.NewCheckoutRequest(userFrom(r.Context()), addressID, discountID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	receipt, err := h.orders.Checkout(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeReceipt(&e, receipt)
	writeJSON(w, http.StatusCreated, &e)
}

// ListOrders handles GET /api/v1/orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListByUser(r.Context(), userFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrders(&e, orders)
	writeJSON(w, http.StatusOK, &e)
}

// GetOrder handles GET /api/v1/orders/{orderID}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetForUser(r.Context(), chi.URLParam(r, "orderID"), userFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}

// EditOrder handles PATCH /api/v1/orders/{orderID}.
func (h *Handler) EditOrder(w http.ResponseWriter, r *http.Request) {
	var addressID string
	if err := decodeStrings(w, r, map[string]*string{"shippingAddressId": &addressID}); err != nil {
		writeError(w, r, err)
		return
	}

	req, err := order.NewClientEditRequest(chi.URLParam(r, "orderID"), userFrom(r.Context()), addressID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.ClientEdit(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}

// AdminListOrders handles GET /api/v1/admin/orders.
func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	f, err := h.filter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	orders, err := h.orders.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrders(&e, orders)
	writeJSON(w, http.StatusOK, &e)
}

// AdminEditOrder handles PATCH /api/v1/admin/orders/{orderID}.
func (h *Handler) AdminEditOrder(w http.ResponseWriter, r *http.Request) {
	var addressID, status string
	if err := decodeStrings(w, r, map[string]*string{
		"shippingAddressId": &addressID,
		"status":            &status,
	}); err != nil {
		writeError(w, r, err)
		return
	}

	req, err := order.NewAdminEditRequest(chi.URLParam(r, "orderID"), addressID, status)
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.AdminEdit(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}

// filter parses ?status=&user_id=&limit= for the admin listing.
func (h *Handler) filter(r *http.Request) (order.Filter, error) {
	q := r.URL.Query()
	f := order.Filter{UserID: q.Get("user_id"), Limit: h.maxListLimit}

	if s := q.Get("status"); s != "" {
		status, err := order.ParseStatus(s)
		if err != nil {
			return order.Filter{}, err
		}
		f.Status = status
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return order.Filter{}, errors.Wrapf(order.ErrInvalidRequest, "limit %q", s)
		}
		f.Limit = min(n, h.maxListLimit)
	}
	return f, nil
}
