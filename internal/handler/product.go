package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/order-pipeline/internal/domain/product"
)

// InventoryHandler serves the product catalog CRUD surface.
type InventoryHandler struct {
	products product.Repository
}

// NewInventoryHandler constructs an InventoryHandler.
func NewInventoryHandler(products product.Repository) *InventoryHandler {
	return &InventoryHandler{products: products}
}

// Register attaches the catalog routes to mux.
func (h *InventoryHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /products", h.list)
	mux.HandleFunc("POST /products", h.create)
	mux.HandleFunc("GET /products/{id}", h.get)
	mux.HandleFunc("DELETE /products/{id}", h.delete)
}

// productResponse is the wire representation of a product. Price is emitted
// as a JSON number; display rounding is the consumer's concern.
type productResponse struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

func toProductResponse(p *product.Product) productResponse {
	return productResponse{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price.InexactFloat64(),
		Quantity: p.Quantity,
	}
}

type createProductRequest struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

func (h *InventoryHandler) list(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		zctx.From(r.Context()).Error("list products", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	resp := make([]productResponse, len(products))
	for i := range products {
		resp[i] = toProductResponse(&products[i])
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (h *InventoryHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, r, http.StatusBadRequest, "name must not be empty")
		return
	}
	if req.Price < 0 {
		writeError(w, r, http.StatusBadRequest, "price must not be negative")
		return
	}
	if req.Quantity < 0 {
		writeError(w, r, http.StatusBadRequest, "quantity must not be negative")
		return
	}

	p := &product.Product{
		Name:     req.Name,
		Price:    decimal.NewFromFloat(req.Price),
		Quantity: req.Quantity,
	}
	if err := h.products.Create(r.Context(), p); err != nil {
		zctx.From(r.Context()).Error("create product", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, r, http.StatusCreated, toProductResponse(p))
}

func (h *InventoryHandler) get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	p, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "product not found")
			return
		}
		zctx.From(r.Context()).Error("get product", zap.String("product_id", id), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, r, http.StatusOK, toProductResponse(p))
}

func (h *InventoryHandler) delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.products.Delete(r.Context(), id); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "product not found")
			return
		}
		zctx.From(r.Context()).Error("delete product", zap.String("product_id", id), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
