package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/viajora/travel-inventory/pkg/errors"

	"github.com/viajora/travel-inventory/internal/domain"
	"github.com/viajora/travel-inventory/internal/repository"
	"github.com/viajora/travel-inventory/pkg/database"
	"github.com/viajora/travel-inventory/pkg/tracing"
)

const tracerName = "github.com/viajora/travel-inventory/internal/service"

// EventPublisher defines the domain events the services emit. Publish
// failures are logged and swallowed; events are best-effort notifications,
// not part of the transactional contract.
type EventPublisher interface {
	PublishStockReserved(ctx context.Context, avail *domain.Availability, quantity int, actorID string) error
	PublishStockReleased(ctx context.Context, avail *domain.Availability, quantity int, actorID string) error
	PublishStockDepleted(ctx context.Context, avail *domain.Availability) error
	PublishCartCheckedOut(ctx context.Context, cart *domain.Cart) error
}

// StockService is the reservation engine. One generic check/reserve/release
// implementation serves all four resource kinds; the repository layer maps
// each kind onto its own physical table.
type StockService struct {
	availability repository.AvailabilityRepository
	auditRepo    repository.AuditRepository
	audit        *AuditService
	producer     EventPublisher
	logger       *slog.Logger
}

// NewStockService creates a new stock reservation service.
func NewStockService(
	availability repository.AvailabilityRepository,
	auditRepo repository.AuditRepository,
	audit *AuditService,
	producer EventPublisher,
	logger *slog.Logger,
) *StockService {
	return &StockService{
		availability: availability,
		auditRepo:    auditRepo,
		audit:        audit,
		producer:     producer,
		logger:       logger,
	}
}

// Check reports whether the requested quantity is currently available. It is
// a plain read: no row lock, no audit entry. The answer can be stale by the
// time the caller acts on it; Reserve re-checks under the lock.
func (s *StockService) Check(ctx context.Context, kind domain.ResourceKind, id int64, quantity int) (*domain.StockCheckResult, error) {
	if !domain.IsValidResourceKind(kind) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown resource kind %q", kind))
	}
	if quantity <= 0 {
		return nil, apperrors.InvalidQuantity(fmt.Sprintf("quantity must be positive, got %d", quantity))
	}

	avail, err := s.availability.Get(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("check stock: %w", err)
	}

	return &domain.StockCheckResult{
		Kind:          kind,
		ID:            id,
		Requested:     quantity,
		Available:     avail.Available(),
		TotalCapacity: avail.TotalCapacity,
		Consumed:      avail.Consumed,
		InStock:       avail.Available() >= quantity,
	}, nil
}

// Summary returns the full utilization picture for one resource.
func (s *StockService) Summary(ctx context.Context, kind domain.ResourceKind, id int64) (*domain.StockSummary, error) {
	if !domain.IsValidResourceKind(kind) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown resource kind %q", kind))
	}

	avail, err := s.availability.Get(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("stock summary: %w", err)
	}

	return &domain.StockSummary{
		Kind:               kind,
		ID:                 id,
		TotalCapacity:      avail.TotalCapacity,
		Consumed:           avail.Consumed,
		Available:          avail.Available(),
		UtilizationPercent: avail.UtilizationPercent(),
	}, nil
}

// Reserve atomically consumes quantity units of the resource. The row is
// locked with SELECT ... FOR UPDATE for the whole read-check-write sequence,
// and the success audit entry, change history row, and metric refresh commit
// in the same transaction as the stock mutation. Failures are audited on a
// separate connection after the transaction rolled back.
func (s *StockService) Reserve(ctx context.Context, req domain.ReservationRequest, actor domain.ActorContext) (*domain.Availability, error) {
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "stock.reserve", trace.WithAttributes(
		attribute.String("resource.kind", string(req.Kind)),
		attribute.Int64("resource.id", req.ID),
		attribute.Int("quantity", req.Quantity),
	))
	defer span.End()

	if !domain.IsValidResourceKind(req.Kind) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown resource kind %q", req.Kind))
	}
	if req.Quantity <= 0 {
		err := apperrors.InvalidQuantity(fmt.Sprintf("quantity must be positive, got %d", req.Quantity))
		s.recordFailure(ctx, domain.OperationReserve, req, actor, nil, err.Message, span)
		return nil, err
	}

	tx, err := s.availability.Pool().Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reserve transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	avail, err := s.availability.GetForUpdate(ctx, tx, req.Kind, req.ID)
	if err != nil {
		s.recordFailure(ctx, domain.OperationReserve, req, actor, nil, err.Error(), span)
		return nil, fmt.Errorf("reserve stock: %w", err)
	}

	if avail.Available() < req.Quantity {
		err := apperrors.InsufficientStock(avail.Available(), req.Quantity)
		s.recordFailure(ctx, domain.OperationReserve, req, actor, avail, err.Message, span)
		return nil, err
	}

	oldConsumed := avail.Consumed
	newConsumed := oldConsumed + req.Quantity
	// Re-check against capacity after the arithmetic. Unreachable while the
	// row lock holds; catches ledger corruption before it is written back.
	if newConsumed > avail.TotalCapacity {
		err := apperrors.StockValidation(fmt.Sprintf(
			"consumed %d would exceed capacity %d for %s %d",
			newConsumed, avail.TotalCapacity, req.Kind, req.ID,
		))
		s.recordFailure(ctx, domain.OperationReserve, req, actor, avail, err.Message, span)
		return nil, err
	}

	if err := s.availability.UpdateConsumed(ctx, tx, req.Kind, req.ID, newConsumed); err != nil {
		return nil, fmt.Errorf("reserve stock: %w", err)
	}
	avail.Consumed = newConsumed

	if err := s.recordSuccess(ctx, tx, domain.OperationReserve, req, actor, avail, oldConsumed); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reserve transaction: %w", err)
	}

	stockOperations.WithLabelValues(string(req.Kind), string(domain.OperationReserve), outcomeSuccess).Inc()
	stockUtilization.WithLabelValues(string(req.Kind), strconv.FormatInt(req.ID, 10)).Set(avail.UtilizationPercent())

	if err := s.producer.PublishStockReserved(ctx, avail, req.Quantity, actor.ActorID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish stock.reserved event",
			slog.String("resource_kind", string(req.Kind)),
			slog.Int64("resource_id", req.ID),
			slog.String("error", err.Error()),
		)
	}
	if avail.Available() == 0 {
		stockDepletions.WithLabelValues(string(req.Kind)).Inc()
		if err := s.producer.PublishStockDepleted(ctx, avail); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish stock.depleted event",
				slog.String("resource_kind", string(req.Kind)),
				slog.Int64("resource_id", req.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "stock reserved",
		slog.String("resource_kind", string(req.Kind)),
		slog.Int64("resource_id", req.ID),
		slog.Int("quantity", req.Quantity),
		slog.Int("consumed", avail.Consumed),
		slog.Int("available", avail.Available()),
		slog.String("actor_id", actor.ActorID),
	)

	return avail, nil
}

// Release returns quantity units of the resource to availability. A release
// larger than the currently consumed amount is clamped to it and logged as a
// warning rather than rejected, so retried or duplicated releases settle
// instead of failing.
func (s *StockService) Release(ctx context.Context, req domain.ReservationRequest, actor domain.ActorContext) (*domain.Availability, error) {
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "stock.release", trace.WithAttributes(
		attribute.String("resource.kind", string(req.Kind)),
		attribute.Int64("resource.id", req.ID),
		attribute.Int("quantity", req.Quantity),
	))
	defer span.End()

	if !domain.IsValidResourceKind(req.Kind) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown resource kind %q", req.Kind))
	}
	if req.Quantity <= 0 {
		err := apperrors.InvalidQuantity(fmt.Sprintf("quantity must be positive, got %d", req.Quantity))
		s.recordFailure(ctx, domain.OperationRelease, req, actor, nil, err.Message, span)
		return nil, err
	}

	tx, err := s.availability.Pool().Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin release transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	avail, err := s.availability.GetForUpdate(ctx, tx, req.Kind, req.ID)
	if err != nil {
		s.recordFailure(ctx, domain.OperationRelease, req, actor, nil, err.Error(), span)
		return nil, fmt.Errorf("release stock: %w", err)
	}

	released := req.Quantity
	if released > avail.Consumed {
		s.logger.WarnContext(ctx, "release clamped to consumed amount",
			slog.String("resource_kind", string(req.Kind)),
			slog.Int64("resource_id", req.ID),
			slog.Int("requested", req.Quantity),
			slog.Int("consumed", avail.Consumed),
		)
		released = avail.Consumed
	}

	oldConsumed := avail.Consumed
	newConsumed := oldConsumed - released
	if released > 0 {
		if err := s.availability.UpdateConsumed(ctx, tx, req.Kind, req.ID, newConsumed); err != nil {
			return nil, fmt.Errorf("release stock: %w", err)
		}
	}
	avail.Consumed = newConsumed

	auditReq := req
	auditReq.Quantity = released
	if err := s.recordSuccess(ctx, tx, domain.OperationRelease, auditReq, actor, avail, oldConsumed); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit release transaction: %w", err)
	}

	stockOperations.WithLabelValues(string(req.Kind), string(domain.OperationRelease), outcomeSuccess).Inc()
	stockUtilization.WithLabelValues(string(req.Kind), strconv.FormatInt(req.ID, 10)).Set(avail.UtilizationPercent())

	if err := s.producer.PublishStockReleased(ctx, avail, released, actor.ActorID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish stock.released event",
			slog.String("resource_kind", string(req.Kind)),
			slog.Int64("resource_id", req.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "stock released",
		slog.String("resource_kind", string(req.Kind)),
		slog.Int64("resource_id", req.ID),
		slog.Int("released", released),
		slog.Int("consumed", avail.Consumed),
		slog.Int("available", avail.Available()),
		slog.String("actor_id", actor.ActorID),
	)

	return avail, nil
}

// recordSuccess writes the audit entry, change history row, and metric
// refresh for a successful mutation inside the caller's transaction. A
// failure here rolls the whole operation back: committed stock movements and
// their audit trail stay in lockstep.
func (s *StockService) recordSuccess(
	ctx context.Context,
	tx database.Querier,
	op domain.OperationType,
	req domain.ReservationRequest,
	actor domain.ActorContext,
	avail *domain.Availability,
	oldConsumed int,
) error {
	newConsumed := avail.Consumed
	entry := &domain.AuditEntry{
		Kind:          req.Kind,
		ResourceID:    req.ID,
		Operation:     op,
		Quantity:      req.Quantity,
		PreviousValue: &oldConsumed,
		NewValue:      &newConsumed,
		Success:       true,
		ActorID:       actor.ActorID,
		ActorIP:       actor.ActorIP,
	}
	if _, err := s.auditRepo.InsertEntry(ctx, tx, entry); err != nil {
		return fmt.Errorf("audit %s: %w", op, err)
	}

	change := &domain.ChangeEntry{
		Kind:       req.Kind,
		ResourceID: req.ID,
		FieldName:  "consumed",
		OldValue:   oldConsumed,
		NewValue:   avail.Consumed,
		ActorID:    actor.ActorID,
	}
	if err := s.audit.LogChange(ctx, tx, change); err != nil {
		return fmt.Errorf("audit %s: %w", op, err)
	}

	day := time.Now().UTC().Truncate(24 * time.Hour)
	if err := s.audit.RefreshMetric(ctx, tx, avail, day); err != nil {
		return fmt.Errorf("audit %s: %w", op, err)
	}
	return nil
}

// recordFailure audits a failed operation on its own connection, so the
// entry survives the rollback of the operation's transaction. avail is the
// ledger row at rejection time when it was read, nil otherwise; a failure
// never moves the counter, so previous and new snapshots are equal.
func (s *StockService) recordFailure(
	ctx context.Context,
	op domain.OperationType,
	req domain.ReservationRequest,
	actor domain.ActorContext,
	avail *domain.Availability,
	message string,
	span trace.Span,
) {
	entry := &domain.AuditEntry{
		Kind:         req.Kind,
		ResourceID:   req.ID,
		Operation:    op,
		Quantity:     req.Quantity,
		Success:      false,
		ErrorMessage: message,
		ActorID:      actor.ActorID,
		ActorIP:      actor.ActorIP,
	}
	if avail != nil {
		consumed := avail.Consumed
		entry.PreviousValue = &consumed
		entry.NewValue = &consumed
	}
	s.audit.LogOperation(ctx, entry)
	stockOperations.WithLabelValues(string(req.Kind), string(op), outcomeFailure).Inc()
	if span != nil {
		span.AddEvent("stock operation rejected", trace.WithAttributes(
			attribute.String("reason", message),
		))
	}
}
