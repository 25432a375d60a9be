package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viajora/travel-inventory/internal/domain"
	"github.com/viajora/travel-inventory/internal/repository/postgres"
	redisrepo "github.com/viajora/travel-inventory/internal/repository/redis"
	"github.com/viajora/travel-inventory/internal/service"
	"github.com/viajora/travel-inventory/pkg/database"
	"github.com/viajora/travel-inventory/pkg/health"
)

// noopPublisher drops events; the HTTP layer is not concerned with Kafka.
type noopPublisher struct{}

func (noopPublisher) PublishStockReserved(context.Context, *domain.Availability, int, string) error {
	return nil
}

func (noopPublisher) PublishStockReleased(context.Context, *domain.Availability, int, string) error {
	return nil
}

func (noopPublisher) PublishStockDepleted(context.Context, *domain.Availability) error {
	return nil
}

func (noopPublisher) PublishCartCheckedOut(context.Context, *domain.Cart) error {
	return nil
}

type routerFixture struct {
	handler http.Handler
	pool    pgxmock.PgxPoolIface
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	pool, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	auditRepo := postgres.NewAuditRepository(pool)
	auditService := service.NewAuditService(auditRepo, logger)
	stockService := service.NewStockService(postgres.NewAvailabilityRepository(pool), auditRepo, auditService, noopPublisher{}, logger)
	cartService := service.NewCartService(redisrepo.NewCartRepository(client), stockService, noopPublisher{}, logger, 30*time.Minute)

	return &routerFixture{
		handler: NewRouter(stockService, auditService, cartService, health.NewHandler(), logger),
		pool:    pool,
	}
}

func (f *routerFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

var auditColumns = []string{
	"id", "resource_kind", "resource_id", "operation", "quantity",
	"previous_value", "new_value",
	"success", "error_message", "actor_id", "actor_ip", "metadata", "created_at",
}

func intPtr(v int) *int { return &v }

func TestStockCheck_OK(t *testing.T) {
	f := newRouterFixture(t)

	f.pool.ExpectQuery(`SELECT .+ FROM activity_availability WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "capacity", "counter", "date", "updated_at"}).
			AddRow(int64(42), 20, 5, time.Now(), time.Now()))

	rec := f.do(t, http.MethodPost, "/api/v1/stock/check",
		`{"resource_kind":"activity","resource_id":42,"quantity":15}`)

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	data := envelope["data"].(map[string]any)
	assert.Equal(t, float64(15), data["available"])
	assert.Equal(t, float64(20), data["total_capacity"])
	assert.Equal(t, float64(5), data["consumed"])
	assert.Equal(t, true, data["in_stock"])
	require.NoError(t, f.pool.ExpectationsWereMet())
}

func TestStockCheck_UnknownKindRejectedByValidation(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/stock/check",
		`{"resource_kind":"cruise","resource_id":42,"quantity":1}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeEnvelope(t, rec)
	errObj := envelope["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_ERROR", errObj["code"])
}

func TestStockCheck_MalformedBody(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/stock/check", `{"resource_kind":`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeEnvelope(t, rec)
	errObj := envelope["error"].(map[string]any)
	assert.Equal(t, "INVALID_INPUT", errObj["code"])
}

func TestStockSummary_NotFound(t *testing.T) {
	f := newRouterFixture(t)

	f.pool.ExpectQuery(`SELECT .+ FROM flights WHERE id = \$1`).
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)

	rec := f.do(t, http.MethodGet, "/api/v1/stock/flight/404", "")

	require.Equal(t, http.StatusNotFound, rec.Code)
	envelope := decodeEnvelope(t, rec)
	errObj := envelope["error"].(map[string]any)
	assert.Equal(t, "RESOURCE_NOT_FOUND", errObj["code"])
}

func TestStockSummary_BadID(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/stock/activity/zero", "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeEnvelope(t, rec)
	errObj := envelope["error"].(map[string]any)
	assert.Equal(t, "INVALID_PARAMETER", errObj["code"])
}

func TestStockReserve_FullTransaction(t *testing.T) {
	f := newRouterFixture(t)

	f.pool.ExpectBegin()
	f.pool.ExpectQuery(`SELECT .+ FROM activity_availability WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "capacity", "counter", "date", "updated_at"}).
			AddRow(int64(42), 20, 5, time.Now(), time.Now()))
	f.pool.ExpectExec(`UPDATE activity_availability SET reserved_seats = \$1`).
		WithArgs(10, int64(42)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	f.pool.ExpectQuery(`INSERT INTO stock_audit_log`).
		WithArgs(domain.KindActivity, int64(42), domain.OperationReserve, 5, intPtr(5), intPtr(10), true, "", "user-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), time.Now()))
	f.pool.ExpectExec(`INSERT INTO stock_change_history`).
		WithArgs(domain.KindActivity, int64(42), "consumed", 5, 10, 5, domain.DirectionIncrease, "user-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	f.pool.ExpectQuery(`SELECT(.|\n)+COUNT(.|\n)+FROM stock_audit_log`).
		WithArgs(domain.KindActivity, int64(42), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"reservations", "releases", "failed"}).AddRow(1, 0, 0))
	f.pool.ExpectExec(`INSERT INTO stock_metrics`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	f.pool.ExpectCommit()

	rec := f.do(t, http.MethodPost, "/api/v1/stock/reserve",
		`{"resource_kind":"activity","resource_id":42,"quantity":5}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	envelope := decodeEnvelope(t, rec)
	data := envelope["data"].(map[string]any)
	assert.Equal(t, float64(10), data["consumed"])
	require.NoError(t, f.pool.ExpectationsWereMet())
}

func TestStockReserve_InsufficientStock(t *testing.T) {
	f := newRouterFixture(t)

	f.pool.ExpectBegin()
	f.pool.ExpectQuery(`SELECT .+ FROM activity_availability WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "capacity", "counter", "date", "updated_at"}).
			AddRow(int64(42), 20, 15, time.Now(), time.Now()))
	// Failure audit is written on its own connection after the rollback.
	f.pool.ExpectQuery(`INSERT INTO stock_audit_log`).
		WithArgs(domain.KindActivity, int64(42), domain.OperationReserve, 20, intPtr(15), intPtr(15), false, pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(2), time.Now()))
	f.pool.ExpectRollback()

	rec := f.do(t, http.MethodPost, "/api/v1/stock/reserve",
		`{"resource_kind":"activity","resource_id":42,"quantity":20}`)

	require.Equal(t, http.StatusConflict, rec.Code)
	envelope := decodeEnvelope(t, rec)
	errObj := envelope["error"].(map[string]any)
	assert.Equal(t, "INSUFFICIENT_STOCK", errObj["code"])
	require.NoError(t, f.pool.ExpectationsWereMet())
}

func TestBulkValidate_Partition(t *testing.T) {
	f := newRouterFixture(t)

	f.pool.ExpectQuery(`SELECT .+ FROM activity_availability WHERE id = ANY\(\$1\)`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "capacity", "counter", "date", "updated_at"}).
			AddRow(int64(42), 20, 5, time.Now(), time.Now()))

	rec := f.do(t, http.MethodPost, "/api/v1/stock/validate",
		`{"items":[
			{"resource_kind":"activity","resource_id":42,"quantity":3},
			{"resource_kind":"activity","resource_id":42,"quantity":999}
		]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	data := envelope["data"].(map[string]any)
	assert.Len(t, data["valid"], 1)
	assert.Len(t, data["invalid"], 1)
}

func TestAuditLogs_OK(t *testing.T) {
	f := newRouterFixture(t)

	f.pool.ExpectQuery(`FROM stock_audit_log WHERE resource_kind = \$1`).
		WithArgs(domain.KindActivity, 100).
		WillReturnRows(pgxmock.NewRows(auditColumns).
			AddRow(int64(1), domain.KindActivity, int64(42), domain.OperationReserve, 5, intPtr(5), intPtr(10), true, "", "user-1", "10.0.0.1", map[string]string{}, time.Now()))

	rec := f.do(t, http.MethodGet, "/api/v1/audit/logs?kind=activity", "")

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Len(t, envelope["data"], 1)
}

func TestAuditLogs_BadLimit(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/audit/logs?limit=-1", "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartLifecycleOverHTTP(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/carts", `{"user_id":"user-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	envelope := decodeEnvelope(t, rec)
	cartID := envelope["data"].(map[string]any)["id"].(string)
	require.NotEmpty(t, cartID)

	rec = f.do(t, http.MethodGet, "/api/v1/carts/"+cartID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Checkout of an empty cart is refused.
	rec = f.do(t, http.MethodPost, "/api/v1/carts/"+cartID+"/checkout", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/carts/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContentTypeJSON_RejectsOtherTypes(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/stock/check", strings.NewReader("quantity=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestHealthLive(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/health/live", "")

	require.Equal(t, http.StatusOK, rec.Code)
}
