package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/billing"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/inventory"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// errorMappings is matched in order with errors.Is.
var errorMappings = []errorMapping{
	{errBadBody, http.StatusBadRequest, "invalid_request"},
	{order.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},
	{order.ErrInvalidStatus, http.StatusBadRequest, "invalid_status"},
	{inventory.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},

	{order.ErrForbidden, http.StatusForbidden, "forbidden"},

	{order.ErrNotFound, http.StatusNotFound, "order_not_found"},
	{cart.ErrNotFound, http.StatusNotFound, "cart_not_found"},
	{catalog.ErrAddressNotFound, http.StatusNotFound, "address_not_found"},
	{catalog.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
	{inventory.ErrNotFound, http.StatusNotFound, "inventory_not_found"},
	{discount.ErrNotFound, http.StatusNotFound, "discount_not_found"},
	{billing.ErrInvoiceNotFound, http.StatusNotFound, "invoice_not_found"},

	{inventory.ErrInsufficientStock, http.StatusConflict, "insufficient_stock"},
	{inventory.ErrVersionConflict, http.StatusConflict, "conflict"},
	{discount.ErrVersionConflict, http.StatusConflict, "conflict"},
	{discount.ErrAlreadyUsed, http.StatusConflict, "discount_used"},
	{discount.ErrOutOfStock, http.StatusConflict, "discount_out_of_stock"},

	{discount.ErrNotYetValid, http.StatusUnprocessableEntity, "discount_not_valid"},
	{order.ErrInvalidState, http.StatusUnprocessableEntity, "invalid_state"},
	{order.ErrEmptyCart, http.StatusUnprocessableEntity, "empty_cart"},
}

// writeError maps err to a status and writes the error body. Unmapped errors
// are logged and answered with a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			httpmiddleware.WriteError(w, m.status, m.code, clientMessage(err, m.target))
			return
		}
	}

	zctx.From(r.Context()).Error("Request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	httpmiddleware.WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

// clientMessage prefers the message of a typed domain error over the sentinel
// so details like available stock reach the client without internal wrapping.
func clientMessage(err, target error) string {
	var (
		stock *inventory.InsufficientStockError
		prod  *catalog.ProductNotFoundError
		valid *order.ValidationError
	)
	switch {
	case errors.As(err, &stock):
		return stock.Error()
	case errors.As(err, &prod):
		return prod.Error()
	case errors.As(err, &valid):
		return valid.Error()
	case errors.Is(target, order.ErrInvalidStatus), errors.Is(target, errBadBody):
		return err.Error()
	default:
		return target.Error()
	}
}
