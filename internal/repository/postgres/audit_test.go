package postgres

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viajora/travel-inventory/internal/domain"
	"github.com/viajora/travel-inventory/pkg/database"
)

func setupAuditRepo(t *testing.T) (*AuditRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewAuditRepository(mock), mock
}

func TestAuditRepository_InsertEntry(t *testing.T) {
	repo, mock := setupAuditRepo(t)

	previous, current := 5, 8
	entry := &domain.AuditEntry{
		Kind:          domain.KindActivity,
		ResourceID:    42,
		Operation:     domain.OperationReserve,
		Quantity:      3,
		PreviousValue: &previous,
		NewValue:      &current,
		Success:       true,
		ActorID:       "user-1",
		Metadata:      map[string]string{"cart_id": "cart-9"},
	}

	createdAt := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO stock_audit_log`).
		WithArgs(entry.Kind, entry.ResourceID, entry.Operation, entry.Quantity,
			entry.PreviousValue, entry.NewValue,
			entry.Success, entry.ErrorMessage, entry.ActorID, entry.ActorIP, entry.Metadata).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(11), createdAt))

	got, err := repo.InsertEntry(context.Background(), mock, entry)
	require.NoError(t, err)
	assert.Equal(t, int64(11), got.ID)
	assert.Equal(t, createdAt, got.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_InsertChange(t *testing.T) {
	repo, mock := setupAuditRepo(t)

	change := &domain.ChangeEntry{
		Kind:       domain.KindRoom,
		ResourceID: 7,
		FieldName:  "consumed",
		OldValue:   4,
		NewValue:   6,
		Delta:      2,
		Direction:  domain.DirectionIncrease,
		ActorID:    "user-1",
	}

	mock.ExpectExec(`INSERT INTO stock_change_history`).
		WithArgs(change.Kind, change.ResourceID, change.FieldName, change.OldValue,
			change.NewValue, change.Delta, change.Direction, change.ActorID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.InsertChange(context.Background(), mock, change))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_UpsertMetric(t *testing.T) {
	repo, mock := setupAuditRepo(t)

	metric := &domain.UtilizationMetric{
		Kind:               domain.KindFlight,
		ResourceID:         3,
		MetricDate:         time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		TotalCapacity:      180,
		Consumed:           150,
		Available:          30,
		UtilizationPercent: 83.33,
		ReservationCount:   12,
		ReleaseCount:       2,
		FailedCount:        1,
	}

	mock.ExpectExec(`INSERT INTO stock_metrics .+ ON CONFLICT \(resource_kind, resource_id, metric_date\) DO UPDATE`).
		WithArgs(metric.Kind, metric.ResourceID, metric.MetricDate, metric.TotalCapacity,
			metric.Consumed, metric.Available, metric.UtilizationPercent,
			metric.ReservationCount, metric.ReleaseCount, metric.FailedCount).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.UpsertMetric(context.Background(), mock, metric))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_CountOperations(t *testing.T) {
	repo, mock := setupAuditRepo(t)

	day := time.Date(2026, 9, 1, 15, 30, 0, 0, time.UTC)
	dayStart := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	mock.ExpectQuery(`SELECT .+ FROM stock_audit_log`).
		WithArgs(domain.KindActivity, int64(42), dayStart, dayEnd).
		WillReturnRows(pgxmock.NewRows([]string{"reserve", "release", "failed"}).AddRow(5, 2, 1))

	reservations, releases, failed, err := repo.CountOperations(context.Background(), mock, domain.KindActivity, 42, day)
	require.NoError(t, err)
	assert.Equal(t, 5, reservations)
	assert.Equal(t, 2, releases)
	assert.Equal(t, 1, failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_ListEntries_Filters(t *testing.T) {
	repo, mock := setupAuditRepo(t)

	success := true
	previous, current := 5, 8
	createdAt := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM stock_audit_log WHERE resource_kind = \$1 AND resource_id = \$2 AND success = \$3 ORDER BY created_at DESC LIMIT \$4`).
		WithArgs(domain.KindActivity, int64(42), true, 10).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "resource_kind", "resource_id", "operation", "quantity",
			"previous_value", "new_value",
			"success", "error_message", "actor_id", "actor_ip", "metadata", "created_at",
		}).AddRow(int64(1), domain.KindActivity, int64(42), domain.OperationReserve, 3,
			&previous, &current,
			true, "", "user-1", "", map[string]string{}, createdAt))

	entries, err := repo.ListEntries(context.Background(), domain.AuditFilter{
		Kind:       domain.KindActivity,
		ResourceID: 42,
		Success:    &success,
		Limit:      10,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.OperationReserve, entries[0].Operation)
	require.NotNil(t, entries[0].PreviousValue)
	require.NotNil(t, entries[0].NewValue)
	assert.Equal(t, 5, *entries[0].PreviousValue)
	assert.Equal(t, 8, *entries[0].NewValue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_ListEntries_DefaultLimit(t *testing.T) {
	repo, mock := setupAuditRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM stock_audit_log ORDER BY created_at DESC LIMIT \$1`).
		WithArgs(defaultAuditLimit).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "resource_kind", "resource_id", "operation", "quantity",
			"previous_value", "new_value",
			"success", "error_message", "actor_id", "actor_ip", "metadata", "created_at",
		}))

	entries, err := repo.ListEntries(context.Background(), domain.AuditFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NotNil(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_Summarize(t *testing.T) {
	repo, mock := setupAuditRepo(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\), COUNT\(\*\) FILTER \(WHERE success\)`).
		WithArgs(domain.KindActivity).
		WillReturnRows(pgxmock.NewRows([]string{"total", "successful"}).AddRow(10, 8))

	summary, err := repo.Summarize(context.Background(), domain.AuditFilter{Kind: domain.KindActivity})
	require.NoError(t, err)
	assert.Equal(t, 10, summary.Total)
	assert.Equal(t, 8, summary.Successful)
	assert.Equal(t, 2, summary.Failed)
	assert.InDelta(t, 80.0, summary.SuccessRate, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_Summarize_ActorAndSuccessFilters(t *testing.T) {
	repo, mock := setupAuditRepo(t)

	success := true
	mock.ExpectQuery(`SELECT COUNT\(\*\), COUNT\(\*\) FILTER \(WHERE success\) FROM stock_audit_log WHERE actor_id = \$1 AND success = \$2`).
		WithArgs("user-42", true).
		WillReturnRows(pgxmock.NewRows([]string{"total", "successful"}).AddRow(4, 4))

	summary, err := repo.Summarize(context.Background(), domain.AuditFilter{
		ActorID: "user-42",
		Success: &success,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 4, summary.Successful)
	assert.Zero(t, summary.Failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_Summarize_Empty(t *testing.T) {
	repo, mock := setupAuditRepo(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\), COUNT\(\*\) FILTER \(WHERE success\)`).
		WillReturnRows(pgxmock.NewRows([]string{"total", "successful"}).AddRow(0, 0))

	summary, err := repo.Summarize(context.Background(), domain.AuditFilter{})
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.Zero(t, summary.SuccessRate)
	assert.NoError(t, mock.ExpectationsWereMet())
}
