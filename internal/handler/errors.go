package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/shopforge/orderflow/internal/domain/order"
	"github.com/shopforge/orderflow/internal/domain/pricing"
	"github.com/shopforge/orderflow/internal/domain/stock"
)

// writeCheckoutError maps the checkout failure taxonomy onto HTTP status
// codes:
//
//	400 malformed request (empty cart, bad quantity)
//	402 payment declined, order persisted in failed state
//	409 stock shortage, retryable after adjusting the cart
//	422 valid request the business rules reject (promotion, pricing)
func (h *Handler) writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		shortageErr *order.ShortageError
		promoErr    *order.PromotionError
		payErr      *order.PaymentError
		qtyErr      *order.InvalidQuantityError
		totalErr    *pricing.NonPositiveTotalError
	)

	switch {
	case errors.Is(err, order.ErrEmptyCart):
		h.writeError(w, http.StatusBadRequest, "empty_cart", "cart is empty", nil)
	case errors.As(err, &qtyErr):
		h.writeError(w, http.StatusBadRequest, "invalid_quantity", qtyErr.Error(), nil)
	case errors.As(err, &shortageErr):
		h.writeError(w, http.StatusConflict, "insufficient_stock", shortageErr.Error(), shortageErr.Shortages)
	case errors.As(err, &promoErr):
		h.writeError(w, http.StatusUnprocessableEntity, "promotion_rejected", promoErr.Error(), nil)
	case errors.As(err, &totalErr):
		h.writeError(w, http.StatusUnprocessableEntity, "invalid_total", totalErr.Error(), nil)
	case errors.As(err, &payErr):
		h.writeError(w, http.StatusPaymentRequired, "payment_failed", payErr.Error(), nil)
	default:
		h.lg.Error("place order", zap.Error(err), zap.String("path", r.URL.Path))
		h.writeError(w, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string, shortages []stock.Shortage) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("error")
	e.ObjStart()
	e.FieldStart("code")
	e.Str(code)
	e.FieldStart("message")
	e.Str(message)
	if len(shortages) > 0 {
		e.FieldStart("shortages")
		e.ArrStart()
		for _, sh := range shortages {
			e.ObjStart()
			e.FieldStart("product_id")
			e.Str(sh.ProductID)
			e.FieldStart("requested")
			e.Int(sh.Requested)
			e.FieldStart("available")
			e.Int(sh.Available)
			e.FieldStart("reason")
			e.Str(string(sh.Reason))
			e.ObjEnd()
		}
		e.ArrEnd()
	}
	e.ObjEnd()
	e.ObjEnd()

	h.respond(w, status, &e)
}
