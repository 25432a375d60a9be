package repository

import (
	"context"
	"time"

	"github.com/viajora/travel-inventory/internal/domain"
	"github.com/viajora/travel-inventory/pkg/database"
)

// AvailabilityRepository defines persistence for the four availability tables,
// normalized into the single domain.Availability shape.
type AvailabilityRepository interface {
	// Get reads current availability without locking. Used by the read-only
	// check path and the bulk validator.
	Get(ctx context.Context, kind domain.ResourceKind, id int64) (*domain.Availability, error)

	// GetForUpdate reads availability with a SELECT ... FOR UPDATE row lock.
	// It must run on a transaction Querier; the lock holds until that
	// transaction ends.
	GetForUpdate(ctx context.Context, q database.Querier, kind domain.ResourceKind, id int64) (*domain.Availability, error)

	// UpdateConsumed writes a new consumed value for the resource, translating
	// back into the kind's physical column encoding.
	UpdateConsumed(ctx context.Context, q database.Querier, kind domain.ResourceKind, id int64, consumed int) error

	// BulkGet reads availability for multiple resources of mixed kinds in one
	// round trip per kind. Missing resources are absent from the result map.
	BulkGet(ctx context.Context, reqs []domain.ReservationRequest) (map[domain.ResourceKind]map[int64]*domain.Availability, error)

	// Pool exposes the underlying connection for service-managed transactions.
	Pool() database.DBTX
}

// AuditRepository defines persistence for the audit trail, change history,
// and utilization metrics. Write methods take a Querier so the service can
// run them inside the same transaction as the stock mutation, or directly on
// the pool for failure-path entries.
type AuditRepository interface {
	InsertEntry(ctx context.Context, q database.Querier, entry *domain.AuditEntry) (*domain.AuditEntry, error)
	InsertChange(ctx context.Context, q database.Querier, change *domain.ChangeEntry) error
	UpsertMetric(ctx context.Context, q database.Querier, metric *domain.UtilizationMetric) error

	// CountOperations recomputes the reserve/release/failed counters for one
	// resource and day from the audit log.
	CountOperations(ctx context.Context, q database.Querier, kind domain.ResourceKind, id int64, day time.Time) (reservations, releases, failed int, err error)

	ListEntries(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error)
	ListChanges(ctx context.Context, kind domain.ResourceKind, id int64, limit int) ([]domain.ChangeEntry, error)
	ListMetrics(ctx context.Context, kind domain.ResourceKind, id int64, limit int) ([]domain.UtilizationMetric, error)
	Summarize(ctx context.Context, filter domain.AuditFilter) (*domain.OperationSummary, error)

	// Pool exposes the underlying connection for failure-path writes that must
	// happen outside a rolled-back transaction.
	Pool() database.DBTX
}

// CartRepository defines persistence for traveler carts.
type CartRepository interface {
	Get(ctx context.Context, cartID string) (*domain.Cart, error)
	Save(ctx context.Context, cart *domain.Cart) error
	Delete(ctx context.Context, cartID string) error

	// ListExpired returns the IDs of open carts whose expiry deadline passed
	// at or before the given time.
	ListExpired(ctx context.Context, now time.Time) ([]string, error)
}
