package handler

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/shopforge/orderflow/internal/domain/cart"
	"github.com/shopforge/orderflow/internal/domain/order"
	"github.com/shopforge/orderflow/internal/domain/payment"
	"github.com/shopforge/orderflow/internal/domain/pricing"
	"github.com/shopforge/orderflow/internal/domain/product"
)

// decodeOrderRequest parses a checkout request body. Unknown fields are
// skipped; missing ones keep their zero value and fail later validation.
func decodeOrderRequest(data []byte) (order.Request, error) {
	var req order.Request
	d := jx.DecodeBytes(data)

	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "customer_id":
			v, err := d.Str()
			req.CustomerID = v
			return err
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				line, err := decodeCartLine(d)
				if err != nil {
					return err
				}
				req.Items = append(req.Items, line)
				return nil
			})
		case "shipping_address":
			addr, err := decodeAddress(d)
			req.ShippingAddress = addr
			return err
		case "shipping_method":
			v, err := d.Str()
			if err != nil {
				return err
			}
			method, err := pricing.ParseMethod(v)
			req.ShippingMethod = method
			return err
		case "promotion_code":
			v, err := d.Str()
			req.PromotionCode = v
			return err
		case "billing":
			b, err := decodeBilling(d)
			req.Billing = b
			return err
		case "currency":
			v, err := d.Str()
			req.Currency = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return order.Request{}, errors.Wrap(err, "decode order request")
	}

	if req.CustomerID == "" {
		return order.Request{}, errors.New("customer_id is required")
	}
	if req.ShippingMethod == "" {
		req.ShippingMethod = pricing.MethodStandard
	}
	return req, nil
}

func decodeCartLine(d *jx.Decoder) (cart.Line, error) {
	var l cart.Line
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "product_id":
			v, err := d.Str()
			l.ProductID = v
			return err
		case "quantity":
			v, err := d.Int()
			l.Quantity = v
			return err
		case "attributes":
			return d.Obj(func(d *jx.Decoder, k string) error {
				v, err := d.Str()
				if err != nil {
					return err
				}
				if l.Attributes == nil {
					l.Attributes = make(map[string]string)
				}
				l.Attributes[k] = v
				return nil
			})
		default:
			return d.Skip()
		}
	})
	return l, err
}

func decodeAddress(d *jx.Decoder) (pricing.Address, error) {
	var a pricing.Address
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "line1":
			a.Line1, err = d.Str()
		case "city":
			a.City, err = d.Str()
		case "state":
			a.State, err = d.Str()
		case "postal_code":
			a.PostalCode, err = d.Str()
		case "country":
			a.Country, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return a, err
}

func decodeBilling(d *jx.Decoder) (payment.BillingContext, error) {
	var b payment.BillingContext
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			b.Name, err = d.Str()
		case "card_token":
			b.CardToken, err = d.Str()
		case "email":
			b.Email, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return b, err
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("customer_id")
	e.Str(o.CustomerID)

	e.FieldStart("lines")
	e.ArrStart()
	for i := range o.Lines {
		encodeLineItem(e, &o.Lines[i])
	}
	e.ArrEnd()

	e.FieldStart("subtotal")
	e.Str(o.Subtotal.StringFixed(2))
	e.FieldStart("discount")
	e.Str(o.Discount.StringFixed(2))
	e.FieldStart("tax")
	e.Str(o.Tax.StringFixed(2))
	e.FieldStart("shipping_cost")
	e.Str(o.ShippingCost.StringFixed(2))
	e.FieldStart("total")
	e.Str(o.Total.StringFixed(2))

	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("payment_status")
	e.Str(string(o.PaymentStatus))

	if o.PromotionCode != "" {
		e.FieldStart("promotion_code")
		e.Str(o.PromotionCode)
	}
	if len(o.AppliedCampaigns) > 0 {
		e.FieldStart("applied_campaigns")
		e.ArrStart()
		for _, id := range o.AppliedCampaigns {
			e.Str(id)
		}
		e.ArrEnd()
	}
	if o.TransactionID != "" {
		e.FieldStart("transaction_id")
		e.Str(o.TransactionID)
	}

	e.FieldStart("created_at")
	e.Str(o.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
	e.ObjEnd()
}

func encodeLineItem(e *jx.Encoder, l *order.LineItem) {
	e.ObjStart()
	e.FieldStart("product_id")
	e.Str(l.ProductID)
	e.FieldStart("name")
	e.Str(l.Name)
	e.FieldStart("requested_qty")
	e.Int(l.RequestedQty)
	e.FieldStart("effective_qty")
	e.Int(l.EffectiveQty)
	e.FieldStart("unit_price")
	e.Str(l.UnitPrice.StringFixed(2))
	e.FieldStart("subtotal")
	e.Str(l.Subtotal.StringFixed(2))
	if len(l.AppliedCampaigns) > 0 {
		e.FieldStart("applied_campaigns")
		e.ArrStart()
		for _, id := range l.AppliedCampaigns {
			e.Str(id)
		}
		e.ArrEnd()
	}
	e.ObjEnd()
}

func encodeProduct(e *jx.Encoder, p *product.Snapshot) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("price")
	e.Str(p.Price.StringFixed(2))
	e.FieldStart("stock")
	e.Int(p.Stock)
	e.FieldStart("categories")
	e.ArrStart()
	for _, c := range p.Categories {
		e.Str(c)
	}
	e.ArrEnd()
	e.ObjEnd()
}
