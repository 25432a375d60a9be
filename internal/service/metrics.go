package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Domain-level Prometheus metrics. HTTP-level metrics live in pkg/middleware.
var (
	stockOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "travel_stock_operations_total",
		Help: "Stock operations by resource kind, operation, and outcome.",
	}, []string{"kind", "operation", "outcome"})

	stockDepletions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "travel_stock_depletions_total",
		Help: "Reservations that consumed the last remaining capacity of a resource.",
	}, []string{"kind"})

	stockUtilization = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "travel_stock_utilization_percent",
		Help: "Current utilization of a resource after its latest stock mutation.",
	}, []string{"kind", "resource_id"})

	bulkValidationLines = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "travel_bulk_validation_lines_total",
		Help: "Bulk validation lines by result.",
	}, []string{"result"})

	cartsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "travel_carts_expired_total",
		Help: "Carts closed by the expiry job.",
	})
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)
