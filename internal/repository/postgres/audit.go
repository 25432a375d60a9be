package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/viajora/travel-inventory/internal/domain"
	"github.com/viajora/travel-inventory/pkg/database"
)

const defaultAuditLimit = 100

// AuditRepository implements repository.AuditRepository using PostgreSQL.
type AuditRepository struct {
	pool database.DBTX
}

// NewAuditRepository creates a new PostgreSQL-backed audit repository.
func NewAuditRepository(pool database.DBTX) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// Pool returns the underlying connection pool so failure-path entries can be
// written outside a rolled-back transaction.
func (r *AuditRepository) Pool() database.DBTX {
	return r.pool
}

// InsertEntry writes one audit row and returns it with its assigned ID and
// timestamp.
func (r *AuditRepository) InsertEntry(ctx context.Context, q database.Querier, entry *domain.AuditEntry) (*domain.AuditEntry, error) {
	query := `
		INSERT INTO stock_audit_log (resource_kind, resource_id, operation, quantity, previous_value, new_value, success, error_message, actor_id, actor_ip, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	result := *entry
	err := q.QueryRow(ctx, query,
		entry.Kind,
		entry.ResourceID,
		entry.Operation,
		entry.Quantity,
		entry.PreviousValue,
		entry.NewValue,
		entry.Success,
		entry.ErrorMessage,
		entry.ActorID,
		entry.ActorIP,
		metadata,
	).Scan(&result.ID, &result.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert audit entry: %w", err)
	}

	return &result, nil
}

// InsertChange writes one change history row.
func (r *AuditRepository) InsertChange(ctx context.Context, q database.Querier, change *domain.ChangeEntry) error {
	query := `
		INSERT INTO stock_change_history (resource_kind, resource_id, field_name, old_value, new_value, delta, direction, actor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := q.Exec(ctx, query,
		change.Kind,
		change.ResourceID,
		change.FieldName,
		change.OldValue,
		change.NewValue,
		change.Delta,
		change.Direction,
		change.ActorID,
	)
	if err != nil {
		return fmt.Errorf("insert change entry: %w", err)
	}

	return nil
}

// UpsertMetric creates or replaces the daily metric row keyed by
// (kind, resource, date).
func (r *AuditRepository) UpsertMetric(ctx context.Context, q database.Querier, metric *domain.UtilizationMetric) error {
	query := `
		INSERT INTO stock_metrics (resource_kind, resource_id, metric_date, total_capacity, consumed, available, utilization_percent, reservation_count, release_count, failed_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (resource_kind, resource_id, metric_date) DO UPDATE SET
			total_capacity = EXCLUDED.total_capacity,
			consumed = EXCLUDED.consumed,
			available = EXCLUDED.available,
			utilization_percent = EXCLUDED.utilization_percent,
			reservation_count = EXCLUDED.reservation_count,
			release_count = EXCLUDED.release_count,
			failed_count = EXCLUDED.failed_count,
			updated_at = NOW()`

	_, err := q.Exec(ctx, query,
		metric.Kind,
		metric.ResourceID,
		metric.MetricDate,
		metric.TotalCapacity,
		metric.Consumed,
		metric.Available,
		metric.UtilizationPercent,
		metric.ReservationCount,
		metric.ReleaseCount,
		metric.FailedCount,
	)
	if err != nil {
		return fmt.Errorf("upsert stock metric: %w", err)
	}

	return nil
}

// CountOperations recomputes the reserve/release/failed counters for one
// resource and day from the audit log. Counters are derived, never
// incremented, so replays and retries cannot drift them.
func (r *AuditRepository) CountOperations(ctx context.Context, q database.Querier, kind domain.ResourceKind, id int64, day time.Time) (int, int, int, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	query := `
		SELECT
			COUNT(*) FILTER (WHERE operation = 'reserve' AND success),
			COUNT(*) FILTER (WHERE operation = 'release' AND success),
			COUNT(*) FILTER (WHERE NOT success)
		FROM stock_audit_log
		WHERE resource_kind = $1 AND resource_id = $2 AND created_at >= $3 AND created_at < $4`

	var reservations, releases, failed int
	err := q.QueryRow(ctx, query, kind, id, dayStart, dayEnd).Scan(&reservations, &releases, &failed)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("count audit operations: %w", err)
	}

	return reservations, releases, failed, nil
}

// ListEntries returns audit entries matching the filter, newest first.
func (r *AuditRepository) ListEntries(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	var (
		conds []string
		args  []any
	)

	addCond := func(expr string, value any) {
		args = append(args, value)
		conds = append(conds, expr+"$"+strconv.Itoa(len(args)))
	}

	if filter.Kind != "" {
		addCond("resource_kind = ", filter.Kind)
	}
	if filter.ResourceID != 0 {
		addCond("resource_id = ", filter.ResourceID)
	}
	if filter.Operation != "" {
		addCond("operation = ", filter.Operation)
	}
	if filter.ActorID != "" {
		addCond("actor_id = ", filter.ActorID)
	}
	if filter.Success != nil {
		addCond("success = ", *filter.Success)
	}
	if !filter.From.IsZero() {
		addCond("created_at >= ", filter.From)
	}
	if !filter.To.IsZero() {
		addCond("created_at <= ", filter.To)
	}

	query := `
		SELECT id, resource_kind, resource_id, operation, quantity, previous_value, new_value, success, error_message, actor_id, actor_ip, metadata, created_at
		FROM stock_audit_log`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	args = append(args, limit)
	query += " ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(
			&e.ID,
			&e.Kind,
			&e.ResourceID,
			&e.Operation,
			&e.Quantity,
			&e.PreviousValue,
			&e.NewValue,
			&e.Success,
			&e.ErrorMessage,
			&e.ActorID,
			&e.ActorIP,
			&e.Metadata,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry row: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entry rows: %w", err)
	}

	if entries == nil {
		entries = []domain.AuditEntry{}
	}

	return entries, nil
}

// ListChanges returns change history for one resource, newest first.
func (r *AuditRepository) ListChanges(ctx context.Context, kind domain.ResourceKind, id int64, limit int) ([]domain.ChangeEntry, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}

	query := `
		SELECT id, resource_kind, resource_id, field_name, old_value, new_value, delta, direction, actor_id, created_at
		FROM stock_change_history
		WHERE resource_kind = $1 AND resource_id = $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, kind, id, limit)
	if err != nil {
		return nil, fmt.Errorf("list change entries: %w", err)
	}
	defer rows.Close()

	var changes []domain.ChangeEntry
	for rows.Next() {
		var c domain.ChangeEntry
		if err := rows.Scan(
			&c.ID,
			&c.Kind,
			&c.ResourceID,
			&c.FieldName,
			&c.OldValue,
			&c.NewValue,
			&c.Delta,
			&c.Direction,
			&c.ActorID,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan change entry row: %w", err)
		}
		changes = append(changes, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate change entry rows: %w", err)
	}

	if changes == nil {
		changes = []domain.ChangeEntry{}
	}

	return changes, nil
}

// ListMetrics returns daily metric rows for one resource, newest first.
func (r *AuditRepository) ListMetrics(ctx context.Context, kind domain.ResourceKind, id int64, limit int) ([]domain.UtilizationMetric, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}

	query := `
		SELECT id, resource_kind, resource_id, metric_date, total_capacity, consumed, available, utilization_percent, reservation_count, release_count, failed_count, updated_at
		FROM stock_metrics
		WHERE resource_kind = $1 AND resource_id = $2
		ORDER BY metric_date DESC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, kind, id, limit)
	if err != nil {
		return nil, fmt.Errorf("list stock metrics: %w", err)
	}
	defer rows.Close()

	var metrics []domain.UtilizationMetric
	for rows.Next() {
		var m domain.UtilizationMetric
		if err := rows.Scan(
			&m.ID,
			&m.Kind,
			&m.ResourceID,
			&m.MetricDate,
			&m.TotalCapacity,
			&m.Consumed,
			&m.Available,
			&m.UtilizationPercent,
			&m.ReservationCount,
			&m.ReleaseCount,
			&m.FailedCount,
			&m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stock metric row: %w", err)
		}
		metrics = append(metrics, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock metric rows: %w", err)
	}

	if metrics == nil {
		metrics = []domain.UtilizationMetric{}
	}

	return metrics, nil
}

// Summarize aggregates audit outcomes over the filter window.
func (r *AuditRepository) Summarize(ctx context.Context, filter domain.AuditFilter) (*domain.OperationSummary, error) {
	var (
		conds []string
		args  []any
	)

	addCond := func(expr string, value any) {
		args = append(args, value)
		conds = append(conds, expr+"$"+strconv.Itoa(len(args)))
	}

	if filter.Kind != "" {
		addCond("resource_kind = ", filter.Kind)
	}
	if filter.ResourceID != 0 {
		addCond("resource_id = ", filter.ResourceID)
	}
	if filter.Operation != "" {
		addCond("operation = ", filter.Operation)
	}
	if filter.ActorID != "" {
		addCond("actor_id = ", filter.ActorID)
	}
	if filter.Success != nil {
		addCond("success = ", *filter.Success)
	}
	if !filter.From.IsZero() {
		addCond("created_at >= ", filter.From)
	}
	if !filter.To.IsZero() {
		addCond("created_at <= ", filter.To)
	}

	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE success)
		FROM stock_audit_log`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	var summary domain.OperationSummary
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&summary.Total, &summary.Successful); err != nil {
		return nil, fmt.Errorf("summarize audit entries: %w", err)
	}

	summary.Failed = summary.Total - summary.Successful
	if summary.Total > 0 {
		summary.SuccessRate = float64(summary.Successful) / float64(summary.Total) * 100
	}

	return &summary, nil
}
