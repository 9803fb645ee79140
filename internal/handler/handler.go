// Package handler exposes the order pipeline over HTTP. Request and
// response bodies are encoded with jx; money fields are decimal strings
// with two fraction digits.
package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/shopforge/orderflow/internal/domain/order"
	"github.com/shopforge/orderflow/internal/domain/product"
)

// CheckoutService is the slice of the orchestrator the handler consumes.
type CheckoutService interface {
	PlaceOrder(ctx context.Context, req order.Request) (*order.Result, error)
}

// Handler serves the order and catalog endpoints.
type Handler struct {
	lg       *zap.Logger
	checkout CheckoutService
	products product.Repository
}

// New creates a Handler.
func New(lg *zap.Logger, checkout CheckoutService, products product.Repository) *Handler {
	return &Handler{lg: lg, checkout: checkout, products: products}
}

// Register mounts the API routes on the given mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orders", h.placeOrder)
	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "cannot read request body", nil)
		return
	}

	req, err := decodeOrderRequest(body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", err.Error(), nil)
		return
	}

	res, err := h.checkout.PlaceOrder(r.Context(), req)
	if err != nil {
		h.writeCheckoutError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, res.Order)
	h.respond(w, http.StatusCreated, &e)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	items, err := h.products.List(r.Context())
	if err != nil {
		h.lg.Error("list products", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal", "internal error", nil)
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for i := range items {
		encodeProduct(&e, &items[i])
	}
	e.ArrEnd()
	h.respond(w, http.StatusOK, &e)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "product not found", nil)
			return
		}
		h.lg.Error("get product", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal", "internal error", nil)
		return
	}

	var e jx.Encoder
	encodeProduct(&e, p)
	h.respond(w, http.StatusOK, &e)
}

func (h *Handler) respond(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(e.Bytes()); err != nil {
		h.lg.Debug("write response", zap.Error(err))
	}
}
