package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/viajora/travel-inventory/pkg/errors"

	"github.com/viajora/travel-inventory/internal/domain"
	"github.com/viajora/travel-inventory/internal/service"
	"github.com/viajora/travel-inventory/pkg/httputil"
)

// AuditHandler handles HTTP requests for the audit trail query surface.
type AuditHandler struct {
	service *service.AuditService
	logger  *slog.Logger
}

// NewAuditHandler creates a new audit HTTP handler.
func NewAuditHandler(svc *service.AuditService, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{
		service: svc,
		logger:  logger,
	}
}

// auditFilterFromQuery builds an AuditFilter from query parameters. Unknown
// values are passed through; the service rejects them with a 400.
func auditFilterFromQuery(r *http.Request) (domain.AuditFilter, error) {
	q := r.URL.Query()

	filter := domain.AuditFilter{
		Kind:      domain.ResourceKind(q.Get("kind")),
		Operation: domain.OperationType(q.Get("operation")),
		ActorID:   q.Get("actor_id"),
	}

	if raw := q.Get("resource_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return filter, apperrors.InvalidInput("resource_id must be a positive integer")
		}
		filter.ResourceID = id
	}
	if raw := q.Get("success"); raw != "" {
		success, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, apperrors.InvalidInput("success must be a boolean")
		}
		filter.Success = &success
	}
	if raw := q.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, apperrors.InvalidInput("from must be an RFC 3339 timestamp")
		}
		filter.From = from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, apperrors.InvalidInput("to must be an RFC 3339 timestamp")
		}
		filter.To = to
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return filter, apperrors.InvalidInput("limit must be a positive integer")
		}
		filter.Limit = limit
	}

	return filter, nil
}

func limitFromQuery(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, apperrors.InvalidInput("limit must be a positive integer")
	}
	return limit, nil
}

// ListLogs handles GET /api/v1/audit/logs
func (h *AuditHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := auditFilterFromQuery(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	entries, err := h.service.ListEntries(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: entries})
}

// ListChanges handles GET /api/v1/audit/{kind}/{id}/changes
func (h *AuditHandler) ListChanges(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	limit, err := limitFromQuery(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	changes, err := h.service.ListChanges(r.Context(), domain.ResourceKind(chi.URLParam(r, "kind")), id, limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: changes})
}

// ListMetrics handles GET /api/v1/audit/{kind}/{id}/metrics
func (h *AuditHandler) ListMetrics(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	limit, err := limitFromQuery(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	metrics, err := h.service.ListMetrics(r.Context(), domain.ResourceKind(chi.URLParam(r, "kind")), id, limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: metrics})
}

// Summary handles GET /api/v1/audit/summary
func (h *AuditHandler) Summary(w http.ResponseWriter, r *http.Request) {
	filter, err := auditFilterFromQuery(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	summary, err := h.service.Summarize(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: summary})
}
