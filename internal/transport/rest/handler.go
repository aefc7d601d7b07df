// Package rest exposes the inventory core over HTTP.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"

	perrors "github.com/abgdnv/stockroom/internal/errors"
	"github.com/abgdnv/stockroom/internal/service"
	"github.com/abgdnv/stockroom/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	formContentType = "application/x-www-form-urlencoded"
	// MaxBodyBytes caps request bodies of the API routes.
	MaxBodyBytes = 1 << 20
)

// Pinger reports whether the storage behind the service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	service service.InventoryService
	pinger  Pinger
	logger  *slog.Logger
}

// NewHandler creates a new instance of the inventory REST API.
func NewHandler(service service.InventoryService, pinger Pinger, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		pinger:  pinger,
		logger:  logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the HTTP routes of the inventory API.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequestSize(MaxBodyBytes))
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Post("/", h.AddProduct)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetProduct)
				r.Put("/", h.UpdateProduct)
				r.Delete("/", h.DeleteProduct)
				r.Post("/purchase", h.PurchaseProduct)
			})
		})
		r.Get("/sales", h.ListSales)
	})
	r.Get("/healthz", h.HealthCheck)
}

// ListProducts returns the catalog, filtered by the optional q name fragment.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	h.logger.DebugContext(r.Context(), "Received request to list products", "q", term)

	products, err := h.service.SearchProducts(r.Context(), term)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to fetch products")
		return
	}
	h.logger.DebugContext(r.Context(), "Successfully retrieved product list", "count", len(products))
	web.RespondJSON(w, h.logger, http.StatusOK, products)
}

// GetProduct returns one product.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}

	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err, fmt.Sprintf("Failed to retrieve product with ID %d", id))
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, product)
}

// AddProduct creates a product from a JSON or form-encoded body.
func (h *Handler) AddProduct(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	created, err := h.service.AddProduct(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to create product")
		return
	}
	h.logger.InfoContext(r.Context(), "Product created successfully", "ID", created.ID)
	web.RespondJSON(w, h.logger, http.StatusCreated, created)
}

// UpdateProduct replaces name, quantity and price of a product.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	req, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	updated, err := h.service.UpdateProduct(r.Context(), id, req)
	if err != nil {
		h.respondServiceError(w, r, err, fmt.Sprintf("Failed to update product with ID %d", id))
		return
	}
	h.logger.InfoContext(r.Context(), "Product updated successfully", "ID", updated.ID)
	web.RespondJSON(w, h.logger, http.StatusOK, updated)
}

// DeleteProduct removes a product.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		h.respondServiceError(w, r, err, fmt.Sprintf("Failed to delete product with ID %d", id))
		return
	}
	h.logger.InfoContext(r.Context(), "Product deleted successfully", "ID", id)
	w.WriteHeader(http.StatusNoContent)
}

// PurchaseProduct sells units of a product and returns the sale.
func (h *Handler) PurchaseProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}

	var req service.PurchaseRequest
	if isForm(r) {
		if err := r.ParseForm(); err != nil {
			h.respondDecodeError(w, r, err)
			return
		}
		parsed, err := service.ParsePurchaseForm(r.PostForm.Get("quantity"))
		if err != nil {
			h.respondServiceError(w, r, err, "Invalid request body")
			return
		}
		req = parsed
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondDecodeError(w, r, err)
		return
	}

	sale, err := h.service.PurchaseProduct(r.Context(), id, req)
	if err != nil {
		h.respondServiceError(w, r, err, fmt.Sprintf("Failed to purchase product with ID %d", id))
		return
	}
	web.RespondJSON(w, h.logger, http.StatusCreated, sale)
}

// ListSales returns the ledger, newest first.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.service.ListSales(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to fetch sales")
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, sales)
}

// HealthCheck answers 200 while the storage is reachable and 503 otherwise.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.pinger.Ping(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "Health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// decodeProduct reads a ProductRequest from JSON or from the raw strings of a form.
// On failure it writes the response and returns false.
func (h *Handler) decodeProduct(w http.ResponseWriter, r *http.Request) (service.ProductRequest, bool) {
	if isForm(r) {
		if err := r.ParseForm(); err != nil {
			h.respondDecodeError(w, r, err)
			return service.ProductRequest{}, false
		}
		req, err := service.ParseProductForm(r.PostForm.Get("name"), r.PostForm.Get("quantity"), r.PostForm.Get("price"))
		if err != nil {
			h.respondServiceError(w, r, err, "Invalid request body")
			return service.ProductRequest{}, false
		}
		return req, true
	}

	var req service.ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondDecodeError(w, r, err)
		return service.ProductRequest{}, false
	}
	return req, true
}

// respondDecodeError answers 413 for bodies over MaxBodyBytes and 400 for anything unreadable.
func (h *Handler) respondDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.WarnContext(r.Context(), "Error decoding request body", "error", err)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		web.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
}

// respondServiceError maps the error taxonomy onto HTTP status codes.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var validationErr *perrors.ValidationError
	var stockErr *perrors.InsufficientStockError
	switch {
	case errors.As(err, &validationErr):
		h.logger.WarnContext(r.Context(), "Validation errors occurred", "errors", validationErr.Fields)
		web.RespondJSON(w, h.logger, http.StatusBadRequest, map[string]any{"validation_errors": validationErr.Fields})
	case errors.Is(err, perrors.ErrValidation):
		web.RespondError(w, h.logger, http.StatusBadRequest, err.Error())
	case errors.Is(err, perrors.ErrProductNotFound):
		web.RespondError(w, h.logger, http.StatusNotFound, "Product not found")
	case errors.Is(err, perrors.ErrNameConflict):
		web.RespondError(w, h.logger, http.StatusConflict, "Product name already exists")
	case errors.As(err, &stockErr):
		web.RespondJSON(w, h.logger, http.StatusUnprocessableEntity, map[string]any{
			"error":     "Insufficient stock",
			"available": stockErr.Available,
			"requested": stockErr.Requested,
		})
	default:
		h.logger.ErrorContext(r.Context(), fallback, "error", err)
		web.RespondError(w, h.logger, http.StatusInternalServerError, fallback)
	}
}

func isForm(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == formContentType
}
