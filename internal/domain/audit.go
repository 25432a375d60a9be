package domain

import (
	"time"
)

// OperationType classifies audit log entries.
type OperationType string

const (
	OperationReserve OperationType = "reserve"
	OperationRelease OperationType = "release"
	OperationCheck   OperationType = "check"
	OperationModify  OperationType = "modify"
	OperationCreate  OperationType = "create"
	OperationDelete  OperationType = "delete"
)

// ValidOperationTypes returns the set of audit operation types.
func ValidOperationTypes() []OperationType {
	return []OperationType{
		OperationReserve, OperationRelease, OperationCheck,
		OperationModify, OperationCreate, OperationDelete,
	}
}

// IsValidOperationType checks whether the given operation type is known.
func IsValidOperationType(op OperationType) bool {
	for _, o := range ValidOperationTypes() {
		if o == op {
			return true
		}
	}
	return false
}

// Change directions recorded in the change history.
const (
	DirectionIncrease = "increase"
	DirectionDecrease = "decrease"
	DirectionSet      = "set"
)

// ActorContext carries the identity behind a stock operation for auditing.
type ActorContext struct {
	ActorID string `json:"actor_id"`
	ActorIP string `json:"actor_ip,omitempty"`
}

// AuditEntry is one row of the stock audit trail. PreviousValue and NewValue
// snapshot the consumed counter around the operation; they are nil when the
// ledger row was never read (unknown resource, rejected quantity).
type AuditEntry struct {
	ID            int64             `json:"id"`
	Kind          ResourceKind      `json:"resource_kind"`
	ResourceID    int64             `json:"resource_id"`
	Operation     OperationType     `json:"operation"`
	Quantity      int               `json:"quantity"`
	PreviousValue *int              `json:"previous_value,omitempty"`
	NewValue      *int              `json:"new_value,omitempty"`
	Success       bool              `json:"success"`
	ErrorMessage  string            `json:"error_message,omitempty"`
	ActorID       string            `json:"actor_id,omitempty"`
	ActorIP       string            `json:"actor_ip,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// ChangeEntry records a single counter movement on an availability row.
type ChangeEntry struct {
	ID         int64        `json:"id"`
	Kind       ResourceKind `json:"resource_kind"`
	ResourceID int64        `json:"resource_id"`
	FieldName  string       `json:"field_name"`
	OldValue   int          `json:"old_value"`
	NewValue   int          `json:"new_value"`
	Delta      int          `json:"delta"`
	Direction  string       `json:"direction"`
	ActorID    string       `json:"actor_id,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// ChangeDirection infers the direction label from old and new values.
func ChangeDirection(oldValue, newValue int) string {
	switch {
	case newValue > oldValue:
		return DirectionIncrease
	case newValue < oldValue:
		return DirectionDecrease
	default:
		return DirectionSet
	}
}

// UtilizationMetric is the daily rollup row for one resource, keyed by
// (kind, resource, date).
type UtilizationMetric struct {
	ID                 int64        `json:"id"`
	Kind               ResourceKind `json:"resource_kind"`
	ResourceID         int64        `json:"resource_id"`
	MetricDate         time.Time    `json:"metric_date"`
	TotalCapacity      int          `json:"total_capacity"`
	Consumed           int          `json:"consumed"`
	Available          int          `json:"available"`
	UtilizationPercent float64      `json:"utilization_percent"`
	ReservationCount   int          `json:"reservation_count"`
	ReleaseCount       int          `json:"release_count"`
	FailedCount        int          `json:"failed_count"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// AuditFilter selects audit entries for the query surface. Zero values mean
// "no constraint on this field".
type AuditFilter struct {
	Kind       ResourceKind
	ResourceID int64
	Operation  OperationType
	ActorID    string
	Success    *bool
	From       time.Time
	To         time.Time
	Limit      int
}

// OperationSummary aggregates audit outcomes over a filter window.
type OperationSummary struct {
	Total       int     `json:"total"`
	Successful  int     `json:"successful"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}
