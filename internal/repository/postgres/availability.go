package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/viajora/travel-inventory/internal/domain"
	"github.com/viajora/travel-inventory/pkg/database"
	apperrors "github.com/viajora/travel-inventory/pkg/errors"
)

// kindSpec maps a resource kind onto its physical table. Kinds either store
// the consumed counter directly (counterIsConsumed) or store the remaining
// availability, from which consumed is derived as capacity - counter.
type kindSpec struct {
	table             string
	capacityCol       string
	counterCol        string
	dateCol           string
	counterIsConsumed bool
}

var kindSpecs = map[domain.ResourceKind]kindSpec{
	domain.KindActivity: {
		table:             "activity_availability",
		capacityCol:       "total_seats",
		counterCol:        "reserved_seats",
		dateCol:           "activity_date",
		counterIsConsumed: true,
	},
	domain.KindTransportation: {
		table:             "transportation_availability",
		capacityCol:       "total_seats",
		counterCol:        "reserved_seats",
		dateCol:           "travel_date",
		counterIsConsumed: true,
	},
	domain.KindRoom: {
		table:       "room_availability",
		capacityCol: "max_quantity",
		counterCol:  "available_quantity",
		dateCol:     "stay_date",
	},
	domain.KindFlight: {
		table:       "flights",
		capacityCol: "capacity",
		counterCol:  "available_seats",
		dateCol:     "departure_date",
	},
}

func specFor(kind domain.ResourceKind) (kindSpec, error) {
	spec, ok := kindSpecs[kind]
	if !ok {
		return kindSpec{}, apperrors.InvalidInput(fmt.Sprintf("unknown resource kind %q", kind))
	}
	return spec, nil
}

// AvailabilityRepository implements repository.AvailabilityRepository using
// PostgreSQL, one physical table per resource kind.
type AvailabilityRepository struct {
	pool database.DBTX
}

// NewAvailabilityRepository creates a new PostgreSQL-backed availability repository.
func NewAvailabilityRepository(pool database.DBTX) *AvailabilityRepository {
	return &AvailabilityRepository{pool: pool}
}

// Pool returns the underlying connection pool for transactional operations in
// the service layer.
func (r *AvailabilityRepository) Pool() database.DBTX {
	return r.pool
}

func (r *AvailabilityRepository) scanRow(row pgx.Row, kind domain.ResourceKind, spec kindSpec) (*domain.Availability, error) {
	var (
		a       domain.Availability
		counter int
	)
	if err := row.Scan(&a.ID, &a.TotalCapacity, &counter, &a.Date, &a.UpdatedAt); err != nil {
		return nil, err
	}

	a.Kind = kind
	if spec.counterIsConsumed {
		a.Consumed = counter
	} else {
		a.Consumed = a.TotalCapacity - counter
	}

	return &a, nil
}

// Get reads current availability without locking.
func (r *AvailabilityRepository) Get(ctx context.Context, kind domain.ResourceKind, id int64) (*domain.Availability, error) {
	return r.get(ctx, r.pool, kind, id, false)
}

// GetForUpdate reads availability with a SELECT ... FOR UPDATE row lock. The
// caller must pass a transaction Querier; the lock holds until the
// transaction ends.
func (r *AvailabilityRepository) GetForUpdate(ctx context.Context, q database.Querier, kind domain.ResourceKind, id int64) (*domain.Availability, error) {
	return r.get(ctx, q, kind, id, true)
}

func (r *AvailabilityRepository) get(ctx context.Context, q database.Querier, kind domain.ResourceKind, id int64, forUpdate bool) (*domain.Availability, error) {
	spec, err := specFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`SELECT id, %s, %s, %s, updated_at FROM %s WHERE id = $1`,
		spec.capacityCol, spec.counterCol, spec.dateCol, spec.table,
	)
	if forUpdate {
		query += " FOR UPDATE"
	}

	ctx, end := database.TraceQuery(ctx, "GetAvailability", query)
	a, err := r.scanRow(q.QueryRow(ctx, query, id), kind, spec)
	end(err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ResourceNotFound(string(kind), id)
		}
		return nil, fmt.Errorf("get %s availability: %w", kind, err)
	}

	return a, nil
}

// UpdateConsumed writes a new consumed value, translating back into the
// kind's physical column encoding.
func (r *AvailabilityRepository) UpdateConsumed(ctx context.Context, q database.Querier, kind domain.ResourceKind, id int64, consumed int) error {
	spec, err := specFor(kind)
	if err != nil {
		return err
	}

	var query string
	if spec.counterIsConsumed {
		query = fmt.Sprintf(
			`UPDATE %s SET %s = $1, updated_at = NOW() WHERE id = $2`,
			spec.table, spec.counterCol,
		)
	} else {
		query = fmt.Sprintf(
			`UPDATE %s SET %s = %s - $1, updated_at = NOW() WHERE id = $2`,
			spec.table, spec.counterCol, spec.capacityCol,
		)
	}

	ctx, end := database.TraceQuery(ctx, "UpdateConsumed", query)
	ct, err := q.Exec(ctx, query, consumed, id)
	end(err)
	if err != nil {
		return fmt.Errorf("update %s consumed: %w", kind, err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ResourceNotFound(string(kind), id)
	}

	return nil
}

// BulkGet reads availability for multiple resources, one query per distinct
// kind. Missing resources are simply absent from the result map.
func (r *AvailabilityRepository) BulkGet(ctx context.Context, reqs []domain.ReservationRequest) (map[domain.ResourceKind]map[int64]*domain.Availability, error) {
	result := make(map[domain.ResourceKind]map[int64]*domain.Availability)
	if len(reqs) == 0 {
		return result, nil
	}

	idsByKind := make(map[domain.ResourceKind][]int64)
	for _, req := range reqs {
		if _, ok := kindSpecs[req.Kind]; !ok {
			continue
		}
		idsByKind[req.Kind] = append(idsByKind[req.Kind], req.ID)
	}

	for kind, ids := range idsByKind {
		spec := kindSpecs[kind]
		query := fmt.Sprintf(
			`SELECT id, %s, %s, %s, updated_at FROM %s WHERE id = ANY($1)`,
			spec.capacityCol, spec.counterCol, spec.dateCol, spec.table,
		)

		rows, err := r.pool.Query(ctx, query, ids)
		if err != nil {
			return nil, fmt.Errorf("bulk get %s availability: %w", kind, err)
		}

		byID := make(map[int64]*domain.Availability, len(ids))
		for rows.Next() {
			a, err := r.scanRow(rows, kind, spec)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan %s availability row: %w", kind, err)
			}
			byID[a.ID] = a
		}
		rows.Close()

		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate %s availability rows: %w", kind, err)
		}

		result[kind] = byID
	}

	return result, nil
}
