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

// StockHandler handles HTTP requests for stock check/reserve/release.
type StockHandler struct {
	service *service.StockService
	logger  *slog.Logger
}

// NewStockHandler creates a new stock HTTP handler.
func NewStockHandler(svc *service.StockService, logger *slog.Logger) *StockHandler {
	return &StockHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// StockOperationRequest is the JSON request body for check, reserve, and
// release operations.
type StockOperationRequest struct {
	ResourceKind string `json:"resource_kind" validate:"required,oneof=activity transportation room flight"`
	ResourceID   int64  `json:"resource_id" validate:"required,gt=0"`
	Quantity     int    `json:"quantity" validate:"required,gt=0"`
}

// BulkValidateRequest is the JSON request body for bulk dry-run validation.
type BulkValidateRequest struct {
	Items []BulkValidateItemRequest `json:"items" validate:"required,min=1,dive"`
}

// BulkValidateItemRequest is one line of a bulk validation request. Field
// presence is the only constraint here; kind, ID, and quantity problems are
// reported per line in the response rather than rejecting the whole batch.
type BulkValidateItemRequest struct {
	ResourceKind string `json:"resource_kind" validate:"required"`
	ResourceID   int64  `json:"resource_id"`
	Quantity     int    `json:"quantity"`
}

// actorFromRequest builds the audit actor from request headers set by the
// gateway.
func actorFromRequest(r *http.Request) domain.ActorContext {
	return domain.ActorContext{
		ActorID: r.Header.Get("X-User-ID"),
		ActorIP: r.RemoteAddr,
	}
}

func decodeStockOperation(w http.ResponseWriter, r *http.Request) (domain.ReservationRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req StockOperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return domain.ReservationRequest{}, false
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return domain.ReservationRequest{}, false
	}

	return domain.ReservationRequest{
		Kind:     domain.ResourceKind(req.ResourceKind),
		ID:       req.ResourceID,
		Quantity: req.Quantity,
	}, true
}

// --- Handlers ---

// Check handles POST /api/v1/stock/check
func (h *StockHandler) Check(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeStockOperation(w, r)
	if !ok {
		return
	}

	result, err := h.service.Check(r.Context(), req.Kind, req.ID, req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// Reserve handles POST /api/v1/stock/reserve
func (h *StockHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeStockOperation(w, r)
	if !ok {
		return
	}

	avail, err := h.service.Reserve(r.Context(), req, actorFromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: avail})
}

// Release handles POST /api/v1/stock/release
func (h *StockHandler) Release(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeStockOperation(w, r)
	if !ok {
		return
	}

	avail, err := h.service.Release(r.Context(), req, actorFromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: avail})
}

// Summary handles GET /api/v1/stock/{kind}/{id}
func (h *StockHandler) Summary(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	summary, err := h.service.Summary(r.Context(), domain.ResourceKind(chi.URLParam(r, "kind")), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: summary})
}

// Validate handles POST /api/v1/stock/validate
func (h *StockHandler) Validate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req BulkValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	reqs := make([]domain.ReservationRequest, 0, len(req.Items))
	for _, item := range req.Items {
		reqs = append(reqs, domain.ReservationRequest{
			Kind:     domain.ResourceKind(item.ResourceKind),
			ID:       item.ResourceID,
			Quantity: item.Quantity,
		})
	}

	result, err := h.service.ValidateBulk(r.Context(), reqs)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}
