package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/order-pipeline/internal/domain/order"
	"github.com/xenking/order-pipeline/internal/domain/product"
	"github.com/xenking/order-pipeline/internal/inventory"
)

// OrderCreator is the handler-side view of the lifecycle coordinator.
type OrderCreator interface {
	Create(ctx context.Context, req order.CreateRequest) (*order.Order, error)
}

// OrderReader loads persisted orders for the read endpoint.
type OrderReader interface {
	Get(ctx context.Context, id string) (*order.Order, error)
}

// PaymentHandler serves the order surface of the payment service.
type PaymentHandler struct {
	coordinator OrderCreator
	orders      OrderReader
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(coordinator OrderCreator, orders OrderReader) *PaymentHandler {
	return &PaymentHandler{coordinator: coordinator, orders: orders}
}

// Register attaches the order routes to mux.
func (h *PaymentHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /orders", h.create)
	mux.HandleFunc("GET /orders/{id}", h.get)
}

type createOrderRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// orderResponse is the wire representation of an order.
type orderResponse struct {
	ID        string  `json:"id"`
	ProductID string  `json:"product_id"`
	Price     float64 `json:"price"`
	Fee       float64 `json:"fee"`
	Total     float64 `json:"total"`
	Quantity  int     `json:"quantity"`
	Status    string  `json:"status"`
}

func toOrderResponse(o *order.Order) orderResponse {
	return orderResponse{
		ID:        o.ID,
		ProductID: o.ProductID,
		Price:     o.Price.InexactFloat64(),
		Fee:       o.Fee.InexactFloat64(),
		Total:     o.Total.InexactFloat64(),
		Quantity:  o.Quantity,
		Status:    string(o.Status),
	}
}

func (h *PaymentHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.coordinator.Create(r.Context(), order.CreateRequest{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		h.mapCreateError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toOrderResponse(o))
}

func (h *PaymentHandler) get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "order not found")
			return
		}
		zctx.From(r.Context()).Error("get order", zap.String("order_id", id), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, r, http.StatusOK, toOrderResponse(o))
}

// mapCreateError translates coordinator errors to status codes. Remote
// lookup failures surface as 502 so boundary clients can retry; the
// coordinator itself never retries.
func (h *PaymentHandler) mapCreateError(w http.ResponseWriter, r *http.Request, err error) {
	lg := zctx.From(r.Context())

	var vErr *order.ValidationError
	if errors.As(err, &vErr) {
		writeError(w, r, http.StatusBadRequest, vErr.Error())
		return
	}

	if errors.Is(err, product.ErrNotFound) {
		writeError(w, r, http.StatusUnprocessableEntity, "product not found")
		return
	}

	var tErr *inventory.TransportError
	if errors.As(err, &tErr) {
		lg.Error("inventory unreachable", zap.Error(err))
		writeError(w, r, http.StatusBadGateway, "inventory service unavailable")
		return
	}

	var dErr *inventory.DecodeError
	if errors.As(err, &dErr) {
		lg.Error("inventory response malformed", zap.Error(err))
		writeError(w, r, http.StatusBadGateway, "inventory service returned a malformed response")
		return
	}

	lg.Error("create order", zap.Error(err))
	writeError(w, r, http.StatusInternalServerError, "internal error")
}
