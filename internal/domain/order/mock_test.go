package order

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/xenking/storefront/internal/domain/billing"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/inventory"
	"github.com/xenking/storefront/internal/domain/promotion"
)

type stockKey struct{ product, size string }

// memState is an in-memory database. memTx snapshots it before each unit of
// work and restores the snapshot when the work fails.
type memState struct {
	carts       map[string]cart.Cart // by user id
	cartItems   map[string][]cart.Item
	products    map[string]catalog.Product
	addresses   map[string]catalog.Address
	stock       map[stockKey]inventory.Stock
	promos      map[string][]promotion.Promotion
	discounts   map[string]discount.Discount
	redemptions map[string]discount.Redemption // by user + "/" + discount
	orders      map[string]Order
	invoices    map[string]billing.Invoice
	payments    map[string]billing.Payment
	invoiceSeq  int64
}

func newMemState() *memState {
	return &memState{
		carts:       make(map[string]cart.Cart),
		cartItems:   make(map[string][]cart.Item),
		products:    make(map[string]catalog.Product),
		addresses:   make(map[string]catalog.Address),
		stock:       make(map[stockKey]inventory.Stock),
		promos:      make(map[string][]promotion.Promotion),
		discounts:   make(map[string]discount.Discount),
		redemptions: make(map[string]discount.Redemption),
		orders:      make(map[string]Order),
		invoices:    make(map[string]billing.Invoice),
		payments:    make(map[string]billing.Payment),
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		carts:       maps.Clone(s.carts),
		cartItems:   make(map[string][]cart.Item, len(s.cartItems)),
		products:    maps.Clone(s.products),
		addresses:   maps.Clone(s.addresses),
		stock:       maps.Clone(s.stock),
		promos:      maps.Clone(s.promos),
		discounts:   maps.Clone(s.discounts),
		redemptions: maps.Clone(s.redemptions),
		orders:      make(map[string]Order, len(s.orders)),
		invoices:    maps.Clone(s.invoices),
		payments:    maps.Clone(s.payments),
		invoiceSeq:  s.invoiceSeq,
	}
	for k, v := range s.cartItems {
		c.cartItems[k] = slices.Clone(v)
	}
	for k, v := range s.orders {
		v.Items = slices.Clone(v.Items)
		c.orders[k] = v
	}
	return c
}

type memTx struct {
	mu    sync.Mutex
	state *memState

	// failBilling makes every CreatePayment fail, after the order and stock
	// writes have been staged.
	failBilling error
	txCount     int
}

func newMemTx(s *memState) *memTx {
	return &memTx{state: s}
}

func (t *memTx) InTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.txCount++
	snapshot := t.state.clone()
	if err := fn(ctx, memStore{t}); err != nil {
		*t.state = *snapshot
		return err
	}
	return nil
}

func (t *memTx) Store() Store { return memStore{t} }

type memStore struct{ tx *memTx }

func (m memStore) Carts() cart.Repository { return memCarts{m.tx.state} }
func (m memStore) Catalog() catalog.Repository { return memCatalog{m.tx.state} }
func (m memStore) Inventory() inventory.Repository { return memInventory{m.tx.state} }
func (m memStore) Promotions() promotion.Repository { return memPromotions{m.tx.state} }
func (m memStore) Discounts() discount.Repository { return memDiscounts{m.tx.state} }
func (m memStore) Orders() Repository { return memOrders{m.tx.state} }
func (m memStore) Billing() billing.Repository { return memBilling{m.tx.state, m.tx.failBilling} }

type memCarts struct{ s *memState }

func (r memCarts) GetByUser(_ context.Context, userID string) (cart.Cart, error) {
	c, ok := r.s.carts[userID]
	if !ok {
		return cart.Cart{}, cart.ErrNotFound
	}
	return c, nil
}

func (r memCarts) ListItems(_ context.Context, cartID string) ([]cart.Item, error) {
	return slices.Clone(r.s.cartItems[cartID]), nil
}

func (r memCarts) DeleteItems(_ context.Context, cartID string) error {
	delete(r.s.cartItems, cartID)
	return nil
}

type memCatalog struct{ s *memState }

func (r memCatalog) GetProducts(_ context.Context, ids []string) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r memCatalog) GetAddress(_ context.Context, id string) (catalog.Address, error) {
	a, ok := r.s.addresses[id]
	if !ok {
		return catalog.Address{}, catalog.ErrAddressNotFound
	}
	return a, nil
}

type memInventory struct{ s *memState }

func (r memInventory) Get(_ context.Context, productID, sizeID string) (inventory.Stock, error) {
	st, ok := r.s.stock[stockKey{productID, sizeID}]
	if !ok {
		return inventory.Stock{}, inventory.ErrNotFound
	}
	return st, nil
}

func (r memInventory) Update(_ context.Context, st inventory.Stock) error {
	k := stockKey{st.ProductID, st.SizeID}
	if r.s.stock[k].Version != st.Version {
		return inventory.ErrVersionConflict
	}
	st.Version++
	r.s.stock[k] = st
	return nil
}

type memPromotions struct{ s *memState }

func (r memPromotions) ListApplicable(_ context.Context, productIDs []string, now time.Time) (map[string][]promotion.Promotion, error) {
	out := make(map[string][]promotion.Promotion)
	for _, id := range productIDs {
		for _, p := range r.s.promos[id] {
			if p.ActiveAt(now) {
				out[id] = append(out[id], p)
			}
		}
	}
	return out, nil
}

type memDiscounts struct{ s *memState }

func (r memDiscounts) GetByID(_ context.Context, id string) (discount.Discount, error) {
	d, ok := r.s.discounts[id]
	if !ok {
		return discount.Discount{}, discount.ErrNotFound
	}
	return d, nil
}

func (r memDiscounts) FindRedemption(_ context.Context, userID, discountID string) (discount.Redemption, error) {
	red, ok := r.s.redemptions[userID+"/"+discountID]
	if !ok {
		return discount.Redemption{}, discount.ErrRedemptionNotFound
	}
	return red, nil
}

func (r memDiscounts) CreateRedemption(_ context.Context, red discount.Redemption) error {
	r.s.redemptions[red.UserID+"/"+red.DiscountID] = red
	return nil
}

func (r memDiscounts) IncrementUsage(_ context.Context, d discount.Discount) error {
	stored := r.s.discounts[d.ID]
	if stored.Version != d.Version {
		return discount.ErrVersionConflict
	}
	stored.UsedCount++
	stored.Version++
	r.s.discounts[d.ID] = stored
	return nil
}

type memOrders struct{ s *memState }

func (r memOrders) Create(_ context.Context, o Order) error {
	o.Items = slices.Clone(o.Items)
	r.s.orders[o.ID] = o
	return nil
}

func (r memOrders) GetByID(_ context.Context, id string) (Order, error) {
	o, ok := r.s.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (r memOrders) Update(_ context.Context, o Order) error {
	stored, ok := r.s.orders[o.ID]
	if !ok {
		return ErrNotFound
	}
	stored.ShippingAddress = o.ShippingAddress
	stored.Status = o.Status
	stored.UpdatedAt = o.UpdatedAt
	r.s.orders[o.ID] = stored
	return nil
}

func (r memOrders) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return r.List(ctx, Filter{UserID: userID})
}

func (r memOrders) List(_ context.Context, f Filter) ([]Order, error) {
	var out []Order
	for _, o := range r.s.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

type memBilling struct {
	s        *memState
	failWith error
}

func (r memBilling) NextInvoiceSeq(context.Context) (int64, error) {
	r.s.invoiceSeq++
	return r.s.invoiceSeq, nil
}

func (r memBilling) CreateInvoice(_ context.Context, inv billing.Invoice) error {
	r.s.invoices[inv.ID] = inv
	return nil
}

func (r memBilling) GetInvoice(_ context.Context, id string) (billing.Invoice, error) {
	inv, ok := r.s.invoices[id]
	if !ok {
		return billing.Invoice{}, billing.ErrInvoiceNotFound
	}
	return inv, nil
}

func (r memBilling) UpdateInvoice(_ context.Context, inv billing.Invoice) error {
	r.s.invoices[inv.ID] = inv
	return nil
}

func (r memBilling) CreatePayment(_ context.Context, p billing.Payment) error {
	if r.failWith != nil {
		return r.failWith
	}
	r.s.payments[p.ID] = p
	return nil
}

func (r memBilling) UpdatePayment(_ context.Context, p billing.Payment) error {
	r.s.payments[p.ID] = p
	return nil
}

type mockLinks struct {
	err   error
	calls int
}

func (m *mockLinks) CreateLink(_ context.Context, req billing.LinkRequest) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return "https://pay.example.com/checkout/" + req.InvoiceID, nil
}

type mockPublisher struct {
	events []Event
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, e Event) error {
	m.events = append(m.events, e)
	return m.err
}
