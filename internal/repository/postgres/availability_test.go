package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viajora/travel-inventory/internal/domain"
	"github.com/viajora/travel-inventory/pkg/database"
	apperrors "github.com/viajora/travel-inventory/pkg/errors"
)

func setupAvailabilityRepo(t *testing.T) (*AvailabilityRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewAvailabilityRepository(mock), mock
}

var availabilityColumns = []string{"id", "capacity", "counter", "date", "updated_at"}

var testDate = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

func TestAvailabilityRepository_Get_Activity(t *testing.T) {
	repo, mock := setupAvailabilityRepo(t)

	mock.ExpectQuery(`SELECT id, total_seats, reserved_seats, activity_date, updated_at FROM activity_availability WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows(availabilityColumns).
			AddRow(int64(42), 20, 5, testDate, testDate))

	a, err := repo.Get(context.Background(), domain.KindActivity, 42)
	require.NoError(t, err)
	assert.Equal(t, domain.KindActivity, a.Kind)
	assert.Equal(t, 20, a.TotalCapacity)
	assert.Equal(t, 5, a.Consumed)
	assert.Equal(t, 15, a.Available())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepository_Get_RoomDerivesConsumed(t *testing.T) {
	repo, mock := setupAvailabilityRepo(t)

	// room_availability stores the remaining quantity, not the consumed count.
	mock.ExpectQuery(`SELECT id, max_quantity, available_quantity, stay_date, updated_at FROM room_availability WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(availabilityColumns).
			AddRow(int64(7), 10, 4, testDate, testDate))

	a, err := repo.Get(context.Background(), domain.KindRoom, 7)
	require.NoError(t, err)
	assert.Equal(t, 10, a.TotalCapacity)
	assert.Equal(t, 6, a.Consumed)
	assert.Equal(t, 4, a.Available())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepository_Get_FlightDerivesConsumed(t *testing.T) {
	repo, mock := setupAvailabilityRepo(t)

	mock.ExpectQuery(`SELECT id, capacity, available_seats, departure_date, updated_at FROM flights WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows(availabilityColumns).
			AddRow(int64(3), 180, 30, testDate, testDate))

	a, err := repo.Get(context.Background(), domain.KindFlight, 3)
	require.NoError(t, err)
	assert.Equal(t, 150, a.Consumed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepository_Get_NotFound(t *testing.T) {
	repo, mock := setupAvailabilityRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM transportation_availability WHERE id = \$1`).
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Get(context.Background(), domain.KindTransportation, 99)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepository_Get_UnknownKind(t *testing.T) {
	repo, _ := setupAvailabilityRepo(t)

	_, err := repo.Get(context.Background(), "hotel", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestAvailabilityRepository_GetForUpdate_LocksRow(t *testing.T) {
	repo, mock := setupAvailabilityRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM activity_availability WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows(availabilityColumns).
			AddRow(int64(42), 20, 5, testDate, testDate))

	a, err := repo.GetForUpdate(context.Background(), mock, domain.KindActivity, 42)
	require.NoError(t, err)
	assert.Equal(t, 5, a.Consumed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepository_UpdateConsumed_Activity(t *testing.T) {
	repo, mock := setupAvailabilityRepo(t)

	mock.ExpectExec(`UPDATE activity_availability SET reserved_seats = \$1, updated_at = NOW\(\) WHERE id = \$2`).
		WithArgs(8, int64(42)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.UpdateConsumed(context.Background(), mock, domain.KindActivity, 42, 8)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepository_UpdateConsumed_RoomWritesRemaining(t *testing.T) {
	repo, mock := setupAvailabilityRepo(t)

	// Writing consumed=6 against max_quantity must store available_quantity = max_quantity - 6.
	mock.ExpectExec(`UPDATE room_availability SET available_quantity = max_quantity - \$1, updated_at = NOW\(\) WHERE id = \$2`).
		WithArgs(6, int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.UpdateConsumed(context.Background(), mock, domain.KindRoom, 7, 6)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepository_UpdateConsumed_NotFound(t *testing.T) {
	repo, mock := setupAvailabilityRepo(t)

	mock.ExpectExec(`UPDATE flights SET`).
		WithArgs(2, int64(404)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateConsumed(context.Background(), mock, domain.KindFlight, 404, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepository_BulkGet(t *testing.T) {
	repo, mock := setupAvailabilityRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM activity_availability WHERE id = ANY\(\$1\)`).
		WithArgs([]int64{1, 2}).
		WillReturnRows(pgxmock.NewRows(availabilityColumns).
			AddRow(int64(1), 20, 5, testDate, testDate))

	reqs := []domain.ReservationRequest{
		{Kind: domain.KindActivity, ID: 1, Quantity: 3},
		{Kind: domain.KindActivity, ID: 2, Quantity: 1},
	}

	result, err := repo.BulkGet(context.Background(), reqs)
	require.NoError(t, err)
	require.Contains(t, result, domain.KindActivity)
	assert.Contains(t, result[domain.KindActivity], int64(1))
	// Resource 2 does not exist; it must simply be absent.
	assert.NotContains(t, result[domain.KindActivity], int64(2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepository_BulkGet_SkipsUnknownKinds(t *testing.T) {
	repo, mock := setupAvailabilityRepo(t)

	result, err := repo.BulkGet(context.Background(), []domain.ReservationRequest{
		{Kind: "hotel", ID: 1, Quantity: 1},
	})
	require.NoError(t, err)
	assert.Empty(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}
