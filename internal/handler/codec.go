package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/billing"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
)

const maxBodyBytes = 1 << 20

// errBadBody marks malformed request bodies.
var errBadBody = errors.New("malformed request body")

// decodeStrings reads a flat JSON object into the string pointers of fields.
// Unknown keys and null values are ignored. An empty body is an empty object.
func decodeStrings(w http.ResponseWriter, r *http.Request, fields map[string]*string) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(errBadBody, err.Error())
	}
	if len(body) == 0 {
		return nil
	}

	err = jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		dst, ok := fields[key]
		if !ok || d.Next() == jx.Null {
			return d.Skip()
		}
		v, err := d.Str()
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		*dst = v
		return nil
	})
	if err != nil {
		return errors.Wrap(errBadBody, err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func money(e *jx.Encoder, v decimal.Decimal) {
	e.Str(v.StringFixed(2))
}

func timestamp(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func optStr(e *jx.Encoder, field, v string) {
	if v != "" {
		e.FieldStart(field)
		e.Str(v)
	}
}

func encodeAddress(e *jx.Encoder, a catalog.Address) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(a.ID)
	e.FieldStart("recipient")
	e.Str(a.Recipient)
	optStr(e, "phone", a.Phone)
	e.FieldStart("line1")
	e.Str(a.Line1)
	e.FieldStart("city")
	e.Str(a.City)
	e.FieldStart("country")
	e.Str(a.Country)
	e.ObjEnd()
}

func encodeItem(e *jx.Encoder, it order.Item) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(it.ID)
	e.FieldStart("productId")
	e.Str(it.ProductID)
	e.FieldStart("sizeId")
	e.Str(it.SizeID)
	e.FieldStart("quantity")
	e.Int(it.Quantity)
	e.FieldStart("price")
	money(e, it.Price)
	optStr(e, "promotionId", it.PromotionID)
	e.ObjEnd()
}

// orderFields writes the OrderResult fields into an open object.
func orderFields(e *jx.Encoder, o order.Order) {
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("userId")
	e.Str(o.UserID)
	e.FieldStart("status")
	e.Str(string(o.Status))
	optStr(e, "redemptionId", o.RedemptionID)
	e.FieldStart("totalBeforeDiscount")
	money(e, o.TotalBeforeDiscount)
	e.FieldStart("totalAfterDiscount")
	money(e, o.TotalAfterDiscount)
	e.FieldStart("shippingAddress")
	encodeAddress(e, o.ShippingAddress)
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		encodeItem(e, it)
	}
	e.ArrEnd()
	e.FieldStart("createdAt")
	timestamp(e, o.CreatedAt)
	e.FieldStart("updatedAt")
	timestamp(e, o.UpdatedAt)
}

func encodeOrder(e *jx.Encoder, o order.Order) {
	e.ObjStart()
	orderFields(e, o)
	e.ObjEnd()
}

func encodeOrders(e *jx.Encoder, orders []order.Order) {
	e.ObjStart()
	e.FieldStart("orders")
	e.ArrStart()
	for _, o := range orders {
		encodeOrder(e, o)
	}
	e.ArrEnd()
	e.ObjEnd()
}

func encodeInvoice(e *jx.Encoder, inv billing.Invoice) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(inv.ID)
	e.FieldStart("number")
	e.Str(inv.Number)
	e.FieldStart("total")
	money(e, inv.Total)
	e.FieldStart("status")
	e.Str(string(inv.Status))
	e.ObjEnd()
}

func encodePayment(e *jx.Encoder, p billing.Payment) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("amount")
	money(e, p.Amount)
	e.FieldStart("method")
	e.Str(string(p.Method))
	e.FieldStart("status")
	e.Str(string(p.Status))
	optStr(e, "checkoutUrl", p.CheckoutURL)
	e.ObjEnd()
}

func encodeReceipt(e *jx.Encoder, r *order.Receipt) {
	e.ObjStart()
	orderFields(e, r.Order)
	e.FieldStart("invoice")
	encodeInvoice(e, r.Invoice)
	e.FieldStart("payment")
	encodePayment(e, r.Payment)
	e.ObjEnd()
}
