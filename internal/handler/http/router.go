package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/viajora/travel-inventory/internal/service"
	"github.com/viajora/travel-inventory/pkg/health"
	"github.com/viajora/travel-inventory/pkg/middleware"
)

// ContentTypeJSON rejects mutating requests that do not declare a JSON body.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && ct != "application/json" && ct != "application/json; charset=utf-8" {
				http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// NewRouter creates a chi router with all travel inventory routes registered.
func NewRouter(
	stockService *service.StockService,
	auditService *service.AuditService,
	cartService *service.CartService,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing("travel-inventory"))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("travel-inventory"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	stockHandler := NewStockHandler(stockService, logger)
	auditHandler := NewAuditHandler(auditService, logger)
	cartHandler := NewCartHandler(cartService, logger)

	r.Route("/api/v1/stock", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/check", stockHandler.Check)
		r.Post("/reserve", stockHandler.Reserve)
		r.Post("/release", stockHandler.Release)
		r.Post("/validate", stockHandler.Validate)
		r.Get("/{kind}/{id}", stockHandler.Summary)
	})

	r.Route("/api/v1/audit", func(r chi.Router) {
		r.Get("/logs", auditHandler.ListLogs)
		r.Get("/summary", auditHandler.Summary)
		r.Get("/{kind}/{id}/changes", auditHandler.ListChanges)
		r.Get("/{kind}/{id}/metrics", auditHandler.ListMetrics)
	})

	r.Route("/api/v1/carts", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", cartHandler.Create)
		r.Get("/{cartId}", cartHandler.Get)
		r.Post("/{cartId}/items", cartHandler.AddItem)
		r.Put("/{cartId}/items", cartHandler.UpdateQuantity)
		r.Delete("/{cartId}/items/{kind}/{id}", cartHandler.RemoveItem)
		r.Post("/{cartId}/packages", cartHandler.AddPackage)
		r.Post("/{cartId}/checkout", cartHandler.Checkout)
	})

	return r
}
