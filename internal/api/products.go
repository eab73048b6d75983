package api

import (
	"net/http"

	"github.com/maltedev/cartsmith/internal/models"
	"github.com/maltedev/cartsmith/internal/price"
)

// CreateProductRequest is an extraction result plus the cart-only fields.
type CreateProductRequest struct {
	models.ExtractedProduct
	OriginalURL string `json:"originalUrl"`
	Quantity    *int   `json:"quantity,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.ListProducts(r.Context(), UserID(r.Context()))
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to fetch products")
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	h.respondJSON(w, http.StatusOK, products)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		h.respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	product, err := h.store.GetProduct(r.Context(), UserID(r.Context()), id)
	if err != nil {
		h.respondStoreError(w, err, "Product not found", "Invalid product data", "Failed to fetch product")
		return
	}
	h.respondJSON(w, http.StatusOK, product)
}

func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := price.Decimal(req.Price)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid product data", "price must contain a numeric amount")
		return
	}

	product := models.NewProduct(UserID(r.Context()), req.OriginalURL, req.ExtractedProduct, amount)
	if req.Quantity != nil {
		product.Quantity = *req.Quantity
	}
	product.Notes = req.Notes

	if msgs := product.Validate(); len(msgs) > 0 {
		h.respondError(w, http.StatusBadRequest, "Invalid product data", msgs...)
		return
	}

	created, err := h.store.CreateProduct(r.Context(), product)
	if err != nil {
		h.respondStoreError(w, err, "Product not found", "Invalid product data", "Failed to create product")
		return
	}

	h.logger.Info("product added", "product_id", created.ID, "store", created.StoreDomain)
	h.respondJSON(w, http.StatusCreated, created)
}

func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		h.respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	var upd models.ProductUpdate
	if err := decodeJSON(r, &upd); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if upd.Price != nil {
		amount, err := price.Decimal(*upd.Price)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "Invalid product data", "price must contain a numeric amount")
			return
		}
		upd.Price = &amount
	}

	product, err := h.store.UpdateProduct(r.Context(), UserID(r.Context()), id, upd)
	if err != nil {
		h.respondStoreError(w, err, "Product not found", "Invalid product data", "Failed to update product")
		return
	}
	h.respondJSON(w, http.StatusOK, product)
}

func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		h.respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	if err := h.store.DeleteProduct(r.Context(), UserID(r.Context()), id); err != nil {
		h.respondStoreError(w, err, "Product not found", "Invalid product data", "Failed to delete product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
