package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/viajora/travel-inventory/pkg/errors"

	"github.com/viajora/travel-inventory/internal/domain"
	"github.com/viajora/travel-inventory/internal/repository"
	"github.com/viajora/travel-inventory/pkg/database"
)

// AuditService records and queries the stock audit trail, change history, and
// daily utilization metrics.
type AuditService struct {
	repo   repository.AuditRepository
	logger *slog.Logger
}

// NewAuditService creates a new audit service.
func NewAuditService(repo repository.AuditRepository, logger *slog.Logger) *AuditService {
	return &AuditService{
		repo:   repo,
		logger: logger,
	}
}

// LogOperation records an audit entry on its own connection, outside any
// caller transaction, so that failed operations still leave a trace after
// their transaction rolled back. A storage failure is logged and swallowed:
// the audit trail must never break the operation it describes. Returns the
// stored entry, or nil when storage failed.
func (s *AuditService) LogOperation(ctx context.Context, entry *domain.AuditEntry) *domain.AuditEntry {
	saved, err := s.repo.InsertEntry(ctx, s.repo.Pool(), entry)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to write audit entry",
			slog.String("resource_kind", string(entry.Kind)),
			slog.Int64("resource_id", entry.ResourceID),
			slog.String("operation", string(entry.Operation)),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return saved
}

// LogChange records a counter movement in the change history. Equal old and
// new values are a no-op. The Querier lets the caller run the write inside
// the same transaction as the stock mutation it describes.
func (s *AuditService) LogChange(ctx context.Context, q database.Querier, change *domain.ChangeEntry) error {
	if change.OldValue == change.NewValue {
		return nil
	}
	change.Delta = change.NewValue - change.OldValue
	change.Direction = domain.ChangeDirection(change.OldValue, change.NewValue)

	if err := s.repo.InsertChange(ctx, q, change); err != nil {
		return fmt.Errorf("log change: %w", err)
	}
	return nil
}

// RefreshMetric recomputes the daily utilization rollup for one resource.
// The operation counters are recounted from the audit log rather than
// incremented, so a refresh after any missed write self-heals the rollup.
func (s *AuditService) RefreshMetric(ctx context.Context, q database.Querier, avail *domain.Availability, day time.Time) error {
	reservations, releases, failed, err := s.repo.CountOperations(ctx, q, avail.Kind, avail.ID, day)
	if err != nil {
		return fmt.Errorf("count operations: %w", err)
	}

	metric := &domain.UtilizationMetric{
		Kind:               avail.Kind,
		ResourceID:         avail.ID,
		MetricDate:         day,
		TotalCapacity:      avail.TotalCapacity,
		Consumed:           avail.Consumed,
		Available:          avail.Available(),
		UtilizationPercent: avail.UtilizationPercent(),
		ReservationCount:   reservations,
		ReleaseCount:       releases,
		FailedCount:        failed,
	}
	if err := s.repo.UpsertMetric(ctx, q, metric); err != nil {
		return fmt.Errorf("upsert metric: %w", err)
	}
	return nil
}

// ListEntries returns audit entries matching the filter.
func (s *AuditService) ListEntries(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	if filter.Kind != "" && !domain.IsValidResourceKind(filter.Kind) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown resource kind %q", filter.Kind))
	}
	if filter.Operation != "" && !domain.IsValidOperationType(filter.Operation) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown operation type %q", filter.Operation))
	}

	entries, err := s.repo.ListEntries(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

// ListChanges returns the change history for one resource, newest first.
func (s *AuditService) ListChanges(ctx context.Context, kind domain.ResourceKind, id int64, limit int) ([]domain.ChangeEntry, error) {
	if !domain.IsValidResourceKind(kind) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown resource kind %q", kind))
	}

	changes, err := s.repo.ListChanges(ctx, kind, id, limit)
	if err != nil {
		return nil, fmt.Errorf("list change history: %w", err)
	}
	return changes, nil
}

// ListMetrics returns the daily utilization rollups for one resource.
func (s *AuditService) ListMetrics(ctx context.Context, kind domain.ResourceKind, id int64, limit int) ([]domain.UtilizationMetric, error) {
	if !domain.IsValidResourceKind(kind) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown resource kind %q", kind))
	}

	metrics, err := s.repo.ListMetrics(ctx, kind, id, limit)
	if err != nil {
		return nil, fmt.Errorf("list metrics: %w", err)
	}
	return metrics, nil
}

// Summarize aggregates operation outcomes over the filter window.
func (s *AuditService) Summarize(ctx context.Context, filter domain.AuditFilter) (*domain.OperationSummary, error) {
	if filter.Kind != "" && !domain.IsValidResourceKind(filter.Kind) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown resource kind %q", filter.Kind))
	}

	summary, err := s.repo.Summarize(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("summarize operations: %w", err)
	}
	return summary, nil
}
