package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/viajora/travel-inventory/internal/domain"
	"github.com/viajora/travel-inventory/internal/service"
	"github.com/viajora/travel-inventory/pkg/httputil"
	"github.com/viajora/travel-inventory/pkg/validator"
)

// CartHandler handles HTTP requests for cart orchestration.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateCartRequest is the JSON request body for opening a cart.
type CreateCartRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// AddItemRequest is the JSON request body for adding a single line.
type AddItemRequest struct {
	ResourceKind string `json:"resource_kind" validate:"required,oneof=activity transportation room flight"`
	ResourceID   int64  `json:"resource_id" validate:"required,gt=0"`
	Quantity     int    `json:"quantity" validate:"required,gt=0"`
	UnitPrice    int64  `json:"unit_price" validate:"gte=0"`
}

// PackageComponentRequest is one dependent reservation of a package line.
type PackageComponentRequest struct {
	ResourceKind string `json:"resource_kind" validate:"required,oneof=activity transportation room flight"`
	ResourceID   int64  `json:"resource_id" validate:"required,gt=0"`
	Quantity     int    `json:"quantity" validate:"required,gt=0"`
}

// AddPackageRequest is the JSON request body for adding a package line.
type AddPackageRequest struct {
	ResourceKind string                    `json:"resource_kind" validate:"required,oneof=activity transportation room flight"`
	ResourceID   int64                     `json:"resource_id" validate:"required,gt=0"`
	Quantity     int                       `json:"quantity" validate:"required,gt=0"`
	UnitPrice    int64                     `json:"unit_price" validate:"gte=0"`
	Components   []PackageComponentRequest `json:"components" validate:"required,min=1,dive"`
}

// UpdateQuantityRequest is the JSON request body for changing a line's
// quantity. Zero removes the line.
type UpdateQuantityRequest struct {
	ResourceKind string `json:"resource_kind" validate:"required,oneof=activity transportation room flight"`
	ResourceID   int64  `json:"resource_id" validate:"required,gt=0"`
	Quantity     int    `json:"quantity" validate:"gte=0"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return false
	}
	if err := validator.Validate(dst); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}

// --- Handlers ---

// Create handles POST /api/v1/carts
func (h *CartHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCartRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cart, err := h.service.CreateCart(r.Context(), req.UserID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: cart})
}

// Get handles GET /api/v1/carts/{cartId}
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.GetCart(r.Context(), chi.URLParam(r, "cartId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cart})
}

// AddItem handles POST /api/v1/carts/{cartId}/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cart, err := h.service.AddItem(
		r.Context(),
		chi.URLParam(r, "cartId"),
		domain.ResourceKind(req.ResourceKind),
		req.ResourceID,
		req.Quantity,
		req.UnitPrice,
		actorFromRequest(r),
	)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cart})
}

// AddPackage handles POST /api/v1/carts/{cartId}/packages
func (h *CartHandler) AddPackage(w http.ResponseWriter, r *http.Request) {
	var req AddPackageRequest
	if !decodeBody(w, r, &req) {
		return
	}

	item := domain.CartItem{
		Kind:       domain.ResourceKind(req.ResourceKind),
		ResourceID: req.ResourceID,
		Quantity:   req.Quantity,
		UnitPrice:  req.UnitPrice,
		Components: make([]domain.CartComponent, 0, len(req.Components)),
	}
	for _, comp := range req.Components {
		item.Components = append(item.Components, domain.CartComponent{
			Kind:       domain.ResourceKind(comp.ResourceKind),
			ResourceID: comp.ResourceID,
			Quantity:   comp.Quantity,
		})
	}

	cart, err := h.service.AddPackage(r.Context(), chi.URLParam(r, "cartId"), item, actorFromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cart})
}

// UpdateQuantity handles PUT /api/v1/carts/{cartId}/items
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cart, err := h.service.UpdateQuantity(
		r.Context(),
		chi.URLParam(r, "cartId"),
		domain.ResourceKind(req.ResourceKind),
		req.ResourceID,
		req.Quantity,
		actorFromRequest(r),
	)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cart})
}

// RemoveItem handles DELETE /api/v1/carts/{cartId}/items/{kind}/{id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	cart, err := h.service.RemoveItem(
		r.Context(),
		chi.URLParam(r, "cartId"),
		domain.ResourceKind(chi.URLParam(r, "kind")),
		id,
		actorFromRequest(r),
	)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cart})
}

// Checkout handles POST /api/v1/carts/{cartId}/checkout
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.Checkout(r.Context(), chi.URLParam(r, "cartId"), actorFromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cart})
}
