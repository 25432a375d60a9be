package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/viajora/travel-inventory/internal/domain"
	pkgkafka "github.com/viajora/travel-inventory/pkg/kafka"
)

// Kafka topics consumed by the travel inventory service.
const TopicOrderCanceled = "travel.order.canceled"

// StockReleaser defines the service operation required by the event consumer.
type StockReleaser interface {
	Release(ctx context.Context, req domain.ReservationRequest, actor domain.ActorContext) (*domain.Availability, error)
}

// OrderLineData is one reserved line of a canceled order.
type OrderLineData struct {
	ResourceKind string `json:"resource_kind"`
	ResourceID   int64  `json:"resource_id"`
	Quantity     int    `json:"quantity"`
}

// OrderCanceledData is the expected payload of an order.canceled event.
type OrderCanceledData struct {
	OrderID string          `json:"order_id"`
	UserID  string          `json:"user_id"`
	Reason  string          `json:"reason,omitempty"`
	Lines   []OrderLineData `json:"lines"`
}

// Consumer processes incoming Kafka events for the travel inventory service.
type Consumer struct {
	stock  StockReleaser
	logger *slog.Logger
}

// NewConsumer creates a new event consumer.
func NewConsumer(stock StockReleaser, logger *slog.Logger) *Consumer {
	return &Consumer{
		stock:  stock,
		logger: logger,
	}
}

// HandleOrderCanceled processes order.canceled events by releasing every
// reserved line of the order back into availability. The stock service
// clamps each release to the consumed amount, so redelivered events settle
// as no-ops rather than double-releasing.
func (c *Consumer) HandleOrderCanceled(ctx context.Context, event *pkgkafka.Event) error {
	var data OrderCanceledData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal order.canceled data: %w", err)
	}

	c.logger.InfoContext(ctx, "processing order.canceled event",
		slog.String("order_id", data.OrderID),
		slog.Int("lines", len(data.Lines)),
		slog.String("reason", data.Reason),
	)

	actor := domain.ActorContext{ActorID: "order-lifecycle"}

	var errs []error
	for _, line := range data.Lines {
		req := domain.ReservationRequest{
			Kind:     domain.ResourceKind(line.ResourceKind),
			ID:       line.ResourceID,
			Quantity: line.Quantity,
		}
		if _, err := c.stock.Release(ctx, req, actor); err != nil {
			c.logger.ErrorContext(ctx, "failed to release stock for canceled order line",
				slog.String("order_id", data.OrderID),
				slog.String("resource_kind", line.ResourceKind),
				slog.Int64("resource_id", line.ResourceID),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("release %s/%d: %w", line.ResourceKind, line.ResourceID, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("order %s: %w", data.OrderID, errors.Join(errs...))
	}

	c.logger.InfoContext(ctx, "stock released for canceled order",
		slog.String("order_id", data.OrderID),
		slog.Int("lines", len(data.Lines)),
	)

	return nil
}
