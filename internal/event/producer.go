package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/viajora/travel-inventory/internal/domain"
	pkgkafka "github.com/viajora/travel-inventory/pkg/kafka"
)

// Kafka topics published by the travel inventory service.
const (
	TopicStockReserved  = "travel.stock.reserved"
	TopicStockReleased  = "travel.stock.released"
	TopicStockDepleted  = "travel.stock.depleted"
	TopicCartCheckedOut = "travel.cart.checked_out"
)

// Aggregate type constants.
const (
	AggregateTypeStock = "stock"
	AggregateTypeCart  = "cart"
)

// Source identifier for events originating from this service.
const SourceInventoryService = "travel-inventory"

// StockReservedData is the payload for a stock.reserved event.
type StockReservedData struct {
	ResourceKind string `json:"resource_kind"`
	ResourceID   int64  `json:"resource_id"`
	Quantity     int    `json:"quantity"`
	Consumed     int    `json:"consumed"`
	Available    int    `json:"available"`
	ActorID      string `json:"actor_id,omitempty"`
}

// StockReleasedData is the payload for a stock.released event.
type StockReleasedData struct {
	ResourceKind string `json:"resource_kind"`
	ResourceID   int64  `json:"resource_id"`
	Quantity     int    `json:"quantity"`
	Consumed     int    `json:"consumed"`
	Available    int    `json:"available"`
	ActorID      string `json:"actor_id,omitempty"`
}

// StockDepletedData is the payload for a stock.depleted event, emitted when a
// reservation consumes the last remaining capacity of a resource.
type StockDepletedData struct {
	ResourceKind  string `json:"resource_kind"`
	ResourceID    int64  `json:"resource_id"`
	TotalCapacity int    `json:"total_capacity"`
}

// CartLineData is one reserved line inside a cart.checked_out payload.
type CartLineData struct {
	ResourceKind string `json:"resource_kind"`
	ResourceID   int64  `json:"resource_id"`
	Quantity     int    `json:"quantity"`
}

// CartCheckedOutData is the payload for a cart.checked_out event. Order
// creation downstream consumes this to build the order from the cart's holds.
type CartCheckedOutData struct {
	CartID      string         `json:"cart_id"`
	UserID      string         `json:"user_id"`
	Lines       []CartLineData `json:"lines"`
	TotalAmount int64          `json:"total_amount"`
}

// Producer publishes travel inventory domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the inventory service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

func (p *Producer) aggregateID(kind domain.ResourceKind, id int64) string {
	return fmt.Sprintf("%s:%d", kind, id)
}

// PublishStockReserved publishes a stock.reserved event.
func (p *Producer) PublishStockReserved(ctx context.Context, avail *domain.Availability, quantity int, actorID string) error {
	data := StockReservedData{
		ResourceKind: string(avail.Kind),
		ResourceID:   avail.ID,
		Quantity:     quantity,
		Consumed:     avail.Consumed,
		Available:    avail.Available(),
		ActorID:      actorID,
	}

	event, err := pkgkafka.NewEvent(TopicStockReserved, p.aggregateID(avail.Kind, avail.ID), AggregateTypeStock, SourceInventoryService, data)
	if err != nil {
		return fmt.Errorf("create stock.reserved event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicStockReserved, event); err != nil {
		return fmt.Errorf("publish stock.reserved event: %w", err)
	}

	p.logger.DebugContext(ctx, "published stock.reserved event",
		slog.String("resource_kind", string(avail.Kind)),
		slog.Int64("resource_id", avail.ID),
		slog.Int("quantity", quantity),
	)

	return nil
}

// PublishStockReleased publishes a stock.released event.
func (p *Producer) PublishStockReleased(ctx context.Context, avail *domain.Availability, quantity int, actorID string) error {
	data := StockReleasedData{
		ResourceKind: string(avail.Kind),
		ResourceID:   avail.ID,
		Quantity:     quantity,
		Consumed:     avail.Consumed,
		Available:    avail.Available(),
		ActorID:      actorID,
	}

	event, err := pkgkafka.NewEvent(TopicStockReleased, p.aggregateID(avail.Kind, avail.ID), AggregateTypeStock, SourceInventoryService, data)
	if err != nil {
		return fmt.Errorf("create stock.released event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicStockReleased, event); err != nil {
		return fmt.Errorf("publish stock.released event: %w", err)
	}

	p.logger.DebugContext(ctx, "published stock.released event",
		slog.String("resource_kind", string(avail.Kind)),
		slog.Int64("resource_id", avail.ID),
		slog.Int("quantity", quantity),
	)

	return nil
}

// PublishStockDepleted publishes a stock.depleted event.
func (p *Producer) PublishStockDepleted(ctx context.Context, avail *domain.Availability) error {
	data := StockDepletedData{
		ResourceKind:  string(avail.Kind),
		ResourceID:    avail.ID,
		TotalCapacity: avail.TotalCapacity,
	}

	event, err := pkgkafka.NewEvent(TopicStockDepleted, p.aggregateID(avail.Kind, avail.ID), AggregateTypeStock, SourceInventoryService, data)
	if err != nil {
		return fmt.Errorf("create stock.depleted event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicStockDepleted, event); err != nil {
		return fmt.Errorf("publish stock.depleted event: %w", err)
	}

	p.logger.InfoContext(ctx, "published stock.depleted event",
		slog.String("resource_kind", string(avail.Kind)),
		slog.Int64("resource_id", avail.ID),
	)

	return nil
}

// PublishCartCheckedOut publishes a cart.checked_out event.
func (p *Producer) PublishCartCheckedOut(ctx context.Context, cart *domain.Cart) error {
	lines := cart.ReservationLines()
	data := CartCheckedOutData{
		CartID:      cart.ID,
		UserID:      cart.UserID,
		Lines:       make([]CartLineData, 0, len(lines)),
		TotalAmount: cart.TotalAmount(),
	}
	for _, line := range lines {
		data.Lines = append(data.Lines, CartLineData{
			ResourceKind: string(line.Kind),
			ResourceID:   line.ID,
			Quantity:     line.Quantity,
		})
	}

	event, err := pkgkafka.NewEvent(TopicCartCheckedOut, cart.ID, AggregateTypeCart, SourceInventoryService, data)
	if err != nil {
		return fmt.Errorf("create cart.checked_out event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCartCheckedOut, event); err != nil {
		return fmt.Errorf("publish cart.checked_out event: %w", err)
	}

	p.logger.InfoContext(ctx, "published cart.checked_out event",
		slog.String("cart_id", cart.ID),
		slog.String("user_id", cart.UserID),
		slog.Int("lines", len(data.Lines)),
	)

	return nil
}
