package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/billing"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/inventory"
	"github.com/xenking/storefront/internal/domain/promotion"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type fixture struct {
	state  *memState
	tx     *memTx
	links  *mockLinks
	events *mockPublisher
	svc    *Service
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	st := newMemState()
	st.carts["user-1"] = cart.Cart{ID: "cart-1", UserID: "user-1"}
	st.carts["user-2"] = cart.Cart{ID: "cart-2", UserID: "user-2"}
	st.addresses["addr-1"] = catalog.Address{ID: "addr-1", UserID: "user-1", City: "Hanoi"}
	st.addresses["addr-2"] = catalog.Address{ID: "addr-2", UserID: "user-1", City: "Da Nang"}
	st.addresses["addr-other"] = catalog.Address{ID: "addr-other", UserID: "user-2", City: "Hue"}
	st.addresses["addr-u2"] = catalog.Address{ID: "addr-u2", UserID: "user-2", City: "Hue"}
	st.products["shirt"] = catalog.Product{ID: "shirt", Name: "Shirt", Price: d("100")}
	st.products["socks"] = catalog.Product{ID: "socks", Name: "Socks", Price: d("10")}
	st.stock[stockKey{"shirt", "m"}] = inventory.Stock{ProductID: "shirt", SizeID: "m", Quantity: 5}
	st.stock[stockKey{"socks", "m"}] = inventory.Stock{ProductID: "socks", SizeID: "m", Quantity: 20}

	tx := newMemTx(st)
	links := &mockLinks{}
	events := &mockPublisher{}
	svc, err := NewService(tx, links, cfg,
		WithClock(func() time.Time { return fixedNow }),
		WithPublisher(events),
	)
	require.NoError(t, err)

	return &fixture{state: st, tx: tx, links: links, events: events, svc: svc}
}

func (f *fixture) fillCart(cartID string, items ...cart.Item) {
	for i := range items {
		items[i].CartID = cartID
		if items[i].ID == "" {
			items[i].ID = cartID + "-" + items[i].ProductID + "-" + items[i].SizeID
		}
	}
	f.state.cartItems[cartID] = items
}

func (f *fixture) addDiscount(x discount.Discount) {
	if x.StartsAt.IsZero() {
		x.StartsAt = fixedNow.Add(-24 * time.Hour)
	}
	if x.ExpiresAt.IsZero() {
		x.ExpiresAt = fixedNow.Add(24 * time.Hour)
	}
	if x.MaxUses == 0 {
		x.MaxUses = 100
	}
	f.state.discounts[x.ID] = x
}

func (f *fixture) quantity(product string) int {
	return f.state.stock[stockKey{product, "m"}].Quantity
}

func checkoutReq(t *testing.T, user, addr, disc string) CheckoutRequest {
	t.Helper()
	req, err := NewCheckoutRequest(user, addr, disc)
	require.NoError(t, err)
	return req
}

func TestCheckout_Success(t *testing.T) {
	f := newFixture(t, Config{InvoicePrefix: "INV", InvoiceSeedOffset: 5})
	f.state.promos["shirt"] = []promotion.Promotion{{
		ID:         "summer",
		Percentage: d("10"),
		StartsAt:   fixedNow.Add(-time.Hour),
		EndsAt:     fixedNow.Add(time.Hour),
		Active:     true,
	}}
	f.fillCart("cart-1",
		cart.Item{ProductID: "shirt", SizeID: "m", Quantity: 2},
		cart.Item{ProductID: "socks", SizeID: "m", Quantity: 3},
	)

	r, err := f.svc.Checkout(context.Background(), checkoutReq(t, "user-1", "addr-1", ""))
	require.NoError(t, err)

	o := r.Order
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "user-1", o.UserID)
	assert.Equal(t, "addr-1", o.ShippingAddress.ID)
	assert.Empty(t, o.RedemptionID)
	assert.True(t, d("230").Equal(o.TotalBeforeDiscount), "before: %s", o.TotalBeforeDiscount)
	assert.True(t, d("210").Equal(o.TotalAfterDiscount), "after: %s", o.TotalAfterDiscount)

	require.Len(t, o.Items, 2)
	assert.Equal(t, "shirt", o.Items[0].ProductID)
	assert.True(t, d("90").Equal(o.Items[0].Price))
	assert.Equal(t, "summer", o.Items[0].PromotionID)
	assert.True(t, d("10").Equal(o.Items[1].Price))
	assert.Empty(t, o.Items[1].PromotionID)
	for _, it := range o.Items {
		assert.Equal(t, o.ID, it.OrderID)
	}

	// stock decremented by exactly the ordered quantity
	assert.Equal(t, 3, f.quantity("shirt"))
	assert.Equal(t, 17, f.quantity("socks"))

	// cart emptied but kept
	assert.Empty(t, f.state.cartItems["cart-1"])
	assert.Contains(t, f.state.carts, "user-1")

	assert.Equal(t, "INV000006", r.Invoice.Number)
	assert.Equal(t, billing.InvoiceUnpaid, r.Invoice.Status)
	assert.True(t, d("210").Equal(r.Invoice.Total))
	assert.Equal(t, billing.PaymentPending, r.Payment.Status)
	assert.Equal(t, billing.MethodTransfer, r.Payment.Method)
	assert.True(t, r.Payment.Amount.IsZero())
	assert.Equal(t, "https://pay.example.com/checkout/"+r.Invoice.ID, r.Payment.CheckoutURL)

	assert.Contains(t, f.state.orders, o.ID)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, EventPlaced, f.events.events[0].Type)
	assert.Equal(t, o.ID, f.events.events[0].OrderID)
}

func TestCheckout_DiscountProperties(t *testing.T) {
	tests := []struct {
		name         string
		discount     discount.Discount
		cartQty      int // shirts at 100 each
		wantBefore   string
		wantAfter    string
		wantInvoice  billing.InvoiceStatus
		wantRedeemed bool
	}{
		{
			name: "percentage under cap",
			discount: discount.Discount{
				ID: "pct", Type: discount.TypePercentage, Percentage: d("10"),
				MaxDiscountValue: d("50"), MinOrderValue: d("100"),
			},
			cartQty:      2,
			wantBefore:   "200",
			wantAfter:    "180",
			wantInvoice:  billing.InvoiceUnpaid,
			wantRedeemed: true,
		},
		{
			name: "percentage capped",
			discount: discount.Discount{
				ID: "pct", Type: discount.TypePercentage, Percentage: d("50"),
				MaxDiscountValue: d("30"),
			},
			cartQty:      2,
			wantBefore:   "200",
			wantAfter:    "170",
			wantInvoice:  billing.InvoiceUnpaid,
			wantRedeemed: true,
		},
		{
			name: "fixed value larger than subtotal is floored at zero",
			discount: discount.Discount{
				ID: "fixed", Type: discount.TypeValue, Value: d("500"),
			},
			cartQty:      1,
			wantBefore:   "100",
			wantAfter:    "0",
			wantInvoice:  billing.InvoicePaid,
			wantRedeemed: true,
		},
		{
			name: "below minimum order value",
			discount: discount.Discount{
				ID: "min", Type: discount.TypeValue, Value: d("10"), MinOrderValue: d("150"),
			},
			cartQty:      1,
			wantBefore:   "100",
			wantAfter:    "100",
			wantInvoice:  billing.InvoiceUnpaid,
			wantRedeemed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			f.addDiscount(tt.discount)
			f.fillCart("cart-1", cart.Item{ProductID: "shirt", SizeID: "m", Quantity: tt.cartQty})

			r, err := f.svc.Checkout(context.Background(), checkoutReq(t, "user-1", "addr-1", tt.discount.ID))
			require.NoError(t, err)

			assert.True(t, d(tt.wantBefore).Equal(r.Order.TotalBeforeDiscount), "before: %s", r.Order.TotalBeforeDiscount)
			assert.True(t, d(tt.wantAfter).Equal(r.Order.TotalAfterDiscount), "after: %s", r.Order.TotalAfterDiscount)
			assert.False(t, r.Order.TotalAfterDiscount.IsNegative())
			assert.Equal(t, tt.wantInvoice, r.Invoice.Status)
			assert.True(t, r.Invoice.Total.Equal(r.Order.TotalAfterDiscount))

			red, redeemed := f.state.redemptions["user-1/"+tt.discount.ID]
			assert.Equal(t, tt.wantRedeemed, redeemed)
			if tt.wantRedeemed {
				assert.Equal(t, red.ID, r.Order.RedemptionID)
			} else {
				assert.Empty(t, r.Order.RedemptionID)
			}
		})
	}
}

func TestCheckout_ZeroTotalInvoiceIsPaid(t *testing.T) {
	f := newFixture(t, Config{})
	f.addDiscount(discount.Discount{ID: "free", Type: discount.TypeValue, Value: d("1000")})
	f.fillCart("cart-1", cart.Item{ProductID: "socks", SizeID: "m", Quantity: 1})

	r, err := f.svc.Checkout(context.Background(), checkoutReq(t, "user-1", "addr-1", "free"))
	require.NoError(t, err)

	assert.Equal(t, billing.InvoicePaid, r.Invoice.Status)
	assert.Equal(t, billing.PaymentCompleted, r.Payment.Status)
	assert.True(t, r.Payment.Amount.IsZero())
	assert.Empty(t, r.Payment.CheckoutURL)
	assert.Zero(t, f.links.calls)
}

func TestCheckout_DiscountReuseRejected(t *testing.T) {
	f := newFixture(t, Config{})
	f.addDiscount(discount.Discount{ID: "once", Type: discount.TypeValue, Value: d("5")})
	ctx := context.Background()

	f.fillCart("cart-1", cart.Item{ProductID: "socks", SizeID: "m", Quantity: 1})
	_, err := f.svc.Checkout(ctx, checkoutReq(t, "user-1", "addr-1", "once"))
	require.NoError(t, err)

	f.fillCart("cart-1", cart.Item{ProductID: "socks", SizeID: "m", Quantity: 2})
	_, err = f.svc.Checkout(ctx, checkoutReq(t, "user-1", "addr-1", "once"))
	require.ErrorIs(t, err, discount.ErrAlreadyUsed)

	// the failed attempt released its stock reservation and kept the cart
	assert.Equal(t, 19, f.quantity("socks"))
	assert.Len(t, f.state.cartItems["cart-1"], 1)
	assert.Len(t, f.state.orders, 1)
}

func TestCheckout_BelowMinimumDiscountCannotBeReused(t *testing.T) {
	f := newFixture(t, Config{})
	f.addDiscount(discount.Discount{ID: "min", Type: discount.TypeValue, Value: d("10"), MinOrderValue: d("150")})
	ctx := context.Background()

	f.fillCart("cart-1", cart.Item{ProductID: "shirt", SizeID: "m", Quantity: 1})
	r, err := f.svc.Checkout(ctx, checkoutReq(t, "user-1", "addr-1", "min"))
	require.NoError(t, err)
	assert.True(t, d("100").Equal(r.Order.TotalAfterDiscount))
	assert.NotEmpty(t, r.Order.RedemptionID)

	f.fillCart("cart-1", cart.Item{ProductID: "shirt", SizeID: "m", Quantity: 2})
	_, err = f.svc.Checkout(ctx, checkoutReq(t, "user-1", "addr-1", "min"))
	require.ErrorIs(t, err, discount.ErrAlreadyUsed)
}

func TestCheckout_DiscountUsageCounting(t *testing.T) {
	tests := []struct {
		name       string
		counting   bool
		wantUsed   int
		wantSecond error
		wantOrders int
	}{
		{name: "counted", counting: true, wantUsed: 1, wantSecond: discount.ErrOutOfStock, wantOrders: 1},
		{name: "not counted", counting: false, wantUsed: 0, wantOrders: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{CountDiscountUsage: tt.counting})
			f.addDiscount(discount.Discount{ID: "single", Type: discount.TypeValue, Value: d("1"), MaxUses: 1})
			f.fillCart("cart-1", cart.Item{ProductID: "socks", SizeID: "m", Quantity: 1})
			f.fillCart("cart-2", cart.Item{ProductID: "socks", SizeID: "m", Quantity: 1})
			ctx := context.Background()

			_, err := f.svc.Checkout(ctx, checkoutReq(t, "user-1", "addr-1", "single"))
			require.NoError(t, err)
			assert.Equal(t, tt.wantUsed, f.state.discounts["single"].UsedCount)

			_, err = f.svc.Checkout(ctx, checkoutReq(t, "user-2", "addr-u2", "single"))
			if tt.wantSecond != nil {
				require.ErrorIs(t, err, tt.wantSecond)
			} else {
				require.NoError(t, err)
			}
			assert.Len(t, f.state.orders, tt.wantOrders)
		})
	}
}

func TestCheckout_Failures(t *testing.T) {
	tests := []struct {
		name    string
		user    string
		addr    string
		disc    string
		setup   func(f *fixture)
		wantErr error
	}{
		{
			name:    "no cart",
			user:    "user-9",
			addr:    "addr-1",
			wantErr: cart.ErrNotFound,
		},
		{
			name:    "missing address",
			user:    "user-1",
			addr:    "nope",
			setup:   func(f *fixture) { f.fillCart("cart-1", cart.Item{ProductID: "shirt", SizeID: "m", Quantity: 1}) },
			wantErr: catalog.ErrAddressNotFound,
		},
		{
			name:    "address of another user",
			user:    "user-1",
			addr:    "addr-other",
			setup:   func(f *fixture) { f.fillCart("cart-1", cart.Item{ProductID: "shirt", SizeID: "m", Quantity: 1}) },
			wantErr: catalog.ErrAddressNotFound,
		},
		{
			name:    "empty cart",
			user:    "user-1",
			addr:    "addr-1",
			wantErr: ErrEmptyCart,
		},
		{
			name:    "unknown product",
			user:    "user-1",
			addr:    "addr-1",
			setup:   func(f *fixture) { f.fillCart("cart-1", cart.Item{ProductID: "ghost", SizeID: "m", Quantity: 1}) },
			wantErr: catalog.ErrProductNotFound,
		},
		{
			name: "missing inventory row",
			user: "user-1",
			addr: "addr-1",
			setup: func(f *fixture) {
				f.fillCart("cart-1",
					cart.Item{ProductID: "socks", SizeID: "m", Quantity: 1},
					cart.Item{ProductID: "shirt", SizeID: "xxl", Quantity: 1},
				)
			},
			wantErr: inventory.ErrNotFound,
		},
		{
			name: "insufficient stock on a later line",
			user: "user-1",
			addr: "addr-1",
			setup: func(f *fixture) {
				f.fillCart("cart-1",
					cart.Item{ProductID: "socks", SizeID: "m", Quantity: 4},
					cart.Item{ProductID: "shirt", SizeID: "m", Quantity: 6},
				)
			},
			wantErr: inventory.ErrInsufficientStock,
		},
		{
			name: "unknown discount",
			user: "user-1",
			addr: "addr-1",
			disc: "nope",
			setup: func(f *fixture) {
				f.fillCart("cart-1", cart.Item{ProductID: "socks", SizeID: "m", Quantity: 1})
			},
			wantErr: discount.ErrNotFound,
		},
		{
			name: "expired discount",
			user: "user-1",
			addr: "addr-1",
			disc: "old",
			setup: func(f *fixture) {
				f.addDiscount(discount.Discount{
					ID: "old", Type: discount.TypeValue, Value: d("1"),
					ExpiresAt: fixedNow.Add(-time.Minute),
				})
				f.fillCart("cart-1", cart.Item{ProductID: "socks", SizeID: "m", Quantity: 1})
			},
			wantErr: discount.ErrNotYetValid,
		},
		{
			name: "payment link failure",
			user: "user-1",
			addr: "addr-1",
			setup: func(f *fixture) {
				f.links.err = errors.New("gateway timeout")
				f.fillCart("cart-1", cart.Item{ProductID: "socks", SizeID: "m", Quantity: 2})
			},
		},
		{
			name: "payment insert failure",
			user: "user-1",
			addr: "addr-1",
			setup: func(f *fixture) {
				f.tx.failBilling = errors.New("disk full")
				f.fillCart("cart-1", cart.Item{ProductID: "socks", SizeID: "m", Quantity: 2})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			if tt.setup != nil {
				tt.setup(f)
			}
			itemsBefore := len(f.state.cartItems["cart-1"])

			_, err := f.svc.Checkout(context.Background(), checkoutReq(t, tt.user, tt.addr, tt.disc))
			require.Error(t, err)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}

			// nothing from the failed unit of work survives
			assert.Equal(t, 5, f.quantity("shirt"))
			assert.Equal(t, 20, f.quantity("socks"))
			assert.Empty(t, f.state.orders)
			assert.Empty(t, f.state.invoices)
			assert.Empty(t, f.state.payments)
			assert.Empty(t, f.state.redemptions)
			assert.Len(t, f.state.cartItems["cart-1"], itemsBefore)
			assert.Empty(t, f.events.events)
		})
	}
}

func TestCheckout_PublishFailureDoesNotFail(t *testing.T) {
	f := newFixture(t, Config{})
	f.events.err = errors.New("broker down")
	f.fillCart("cart-1", cart.Item{ProductID: "socks", SizeID: "m", Quantity: 1})

	r, err := f.svc.Checkout(context.Background(), checkoutReq(t, "user-1", "addr-1", ""))
	require.NoError(t, err)
	assert.Contains(t, f.state.orders, r.Order.ID)
}

func placeOrder(t *testing.T, f *fixture) Order {
	t.Helper()
	f.fillCart("cart-1", cart.Item{ProductID: "socks", SizeID: "m", Quantity: 1})
	r, err := f.svc.Checkout(context.Background(), checkoutReq(t, "user-1", "addr-1", ""))
	require.NoError(t, err)
	return r.Order
}

func TestClientEdit(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		addr     string
		status   Status
		wantErr  error
		wantAddr string
	}{
		{name: "owner swaps address", user: "user-1", addr: "addr-2", wantAddr: "addr-2"},
		{name: "owner without changes", user: "user-1", wantAddr: "addr-1"},
		{name: "non-owner is forbidden", user: "user-2", addr: "addr-2", wantErr: ErrForbidden},
		{name: "non-owner is forbidden even when not pending", user: "user-2", status: StatusShipping, wantErr: ErrForbidden},
		{name: "owner cannot edit confirmed order", user: "user-1", addr: "addr-2", status: StatusConfirmed, wantErr: ErrInvalidState},
		{name: "owner cannot edit cancelled order", user: "user-1", status: StatusCancelled, wantErr: ErrInvalidState},
		{name: "unknown address", user: "user-1", addr: "nope", wantErr: catalog.ErrAddressNotFound},
		{name: "address of another user", user: "user-1", addr: "addr-other", wantErr: catalog.ErrAddressNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			o := placeOrder(t, f)
			if tt.status != "" {
				stored := f.state.orders[o.ID]
				stored.Status = tt.status
				f.state.orders[o.ID] = stored
			}

			req, err := NewClientEditRequest(o.ID, tt.user, tt.addr)
			require.NoError(t, err)

			got, err := f.svc.ClientEdit(context.Background(), req)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, "addr-1", f.state.orders[o.ID].ShippingAddress.ID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAddr, got.ShippingAddress.ID)
			assert.Equal(t, tt.wantAddr, f.state.orders[o.ID].ShippingAddress.ID)
			assert.Equal(t, StatusPending, got.Status)
			assert.Equal(t, EventUpdated, f.events.events[len(f.events.events)-1].Type)
		})
	}
}

func TestClientEdit_NotFound(t *testing.T) {
	f := newFixture(t, Config{})
	req, err := NewClientEditRequest("missing", "user-1", "")
	require.NoError(t, err)

	_, err = f.svc.ClientEdit(context.Background(), req)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAdminEdit(t *testing.T) {
	tests := []struct {
		name       string
		from       Status
		addr       string
		status     string
		wantErr    error
		wantStatus Status
		wantAddr   string
	}{
		{name: "sets status", from: StatusPending, status: "CONFIRMED", wantStatus: StatusConfirmed, wantAddr: "addr-1"},
		{name: "any status from any status", from: StatusCompleted, status: "pending", wantStatus: StatusPending, wantAddr: "addr-1"},
		{name: "swaps address on shipped order", from: StatusShipping, addr: "addr-other", wantStatus: StatusShipping, wantAddr: "addr-other"},
		{name: "address and status together", from: StatusPending, addr: "addr-2", status: "CANCELLED", wantStatus: StatusCancelled, wantAddr: "addr-2"},
		{name: "unknown address", from: StatusPending, addr: "nope", wantErr: catalog.ErrAddressNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			o := placeOrder(t, f)
			stored := f.state.orders[o.ID]
			stored.Status = tt.from
			f.state.orders[o.ID] = stored

			req, err := NewAdminEditRequest(o.ID, tt.addr, tt.status)
			require.NoError(t, err)

			got, err := f.svc.AdminEdit(context.Background(), req)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.from, f.state.orders[o.ID].Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantAddr, got.ShippingAddress.ID)
			assert.Equal(t, tt.wantStatus, f.state.orders[o.ID].Status)
		})
	}
}

func TestAdminEdit_NotFound(t *testing.T) {
	f := newFixture(t, Config{})
	req, err := NewAdminEditRequest("missing", "", "SHIPPING")
	require.NoError(t, err)

	_, err = f.svc.AdminEdit(context.Background(), req)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetForUser(t *testing.T) {
	f := newFixture(t, Config{})
	o := placeOrder(t, f)
	ctx := context.Background()

	got, err := f.svc.GetForUser(ctx, o.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = f.svc.GetForUser(ctx, o.ID, "user-2")
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.GetForUser(ctx, "missing", "user-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	f := newFixture(t, Config{})
	o := placeOrder(t, f)
	ctx := context.Background()

	mine, err := f.svc.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, o.ID, mine[0].ID)

	none, err := f.svc.ListByUser(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, none)

	pending, err := f.svc.List(ctx, Filter{Status: StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	shipped, err := f.svc.List(ctx, Filter{Status: StatusShipping})
	require.NoError(t, err)
	assert.Empty(t, shipped)
}
