package order

import (
	"strings"

	"github.com/go-faster/errors"
)

// Sentinel errors for order workflows.
var (
	ErrNotFound       = errors.New("order not found")
	ErrForbidden      = errors.New("you do not have permission to edit this order")
	ErrInvalidState   = errors.New("order cannot be edited at this stage")
	ErrEmptyCart      = errors.New("cart is empty")
	ErrInvalidStatus  = errors.New("invalid order status")
	ErrInvalidRequest = errors.New("invalid request")
)

// ValidationError names the request field that failed validation.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return e.Field + " is required"
}

// Is reports ErrInvalidRequest equivalence.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

func required(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", &ValidationError{Field: field}
	}
	return v, nil
}

// CheckoutRequest asks to turn a user's cart into an order.
type CheckoutRequest struct {
	userID     string
	addressID  string
	discountID string
}

// NewCheckoutRequest validates and builds a CheckoutRequest. discountID may be
// empty.
func NewCheckoutRequest(userID, addressID, discountID string) (CheckoutRequest, error) {
	var (
		r   CheckoutRequest
		err error
	)
	if r.userID, err = required("userId", userID); err != nil {
		return CheckoutRequest{}, err
	}
	if r.addressID, err = required("shippingAddressId", addressID); err != nil {
		return CheckoutRequest{}, err
	}
	r.discountID = strings.TrimSpace(discountID)
	return r, nil
}

func (r CheckoutRequest) UserID() string     { return r.userID }
func (r CheckoutRequest) AddressID() string  { return r.addressID }
func (r CheckoutRequest) DiscountID() string { return r.discountID }

// ClientEditRequest is an owner's change to a pending order.
type ClientEditRequest struct {
	orderID   string
	userID    string
	addressID string
}

// NewClientEditRequest validates and builds a ClientEditRequest. addressID may
// be empty to leave the address unchanged.
func NewClientEditRequest(orderID, userID, addressID string) (ClientEditRequest, error) {
	var (
		r   ClientEditRequest
		err error
	)
	if r.orderID, err = required("orderId", orderID); err != nil {
		return ClientEditRequest{}, err
	}
	if r.userID, err = required("userId", userID); err != nil {
		return ClientEditRequest{}, err
	}
	r.addressID = strings.TrimSpace(addressID)
	return r, nil
}

func (r ClientEditRequest) OrderID() string   { return r.orderID }
func (r ClientEditRequest) UserID() string    { return r.userID }
func (r ClientEditRequest) AddressID() string { return r.addressID }

// AdminEditRequest is an administrative change to any order.
type AdminEditRequest struct {
	orderID   string
	addressID string
	status    Status
}

// NewAdminEditRequest validates and builds an AdminEditRequest. Empty
// addressID or status leave the corresponding field unchanged.
func NewAdminEditRequest(orderID, addressID, status string) (AdminEditRequest, error) {
	var (
		r   AdminEditRequest
		err error
	)
	if r.orderID, err = required("orderId", orderID); err != nil {
		return AdminEditRequest{}, err
	}
	r.addressID = strings.TrimSpace(addressID)
	if strings.TrimSpace(status) != "" {
		if r.status, err = ParseStatus(status); err != nil {
			return AdminEditRequest{}, err
		}
	}
	return r, nil
}

func (r AdminEditRequest) OrderID() string   { return r.orderID }
func (r AdminEditRequest) AddressID() string { return r.addressID }

// Status returns the requested status and whether one was set.
func (r AdminEditRequest) Status() (Status, bool) { return r.status, r.status != "" }
