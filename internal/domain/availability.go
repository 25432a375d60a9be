package domain

import (
	"time"
)

// ResourceKind identifies which availability table a stock operation targets.
type ResourceKind string

const (
	KindActivity       ResourceKind = "activity"
	KindTransportation ResourceKind = "transportation"
	KindRoom           ResourceKind = "room"
	KindFlight         ResourceKind = "flight"
)

// ValidResourceKinds returns the set of reservable resource kinds.
func ValidResourceKinds() []ResourceKind {
	return []ResourceKind{KindActivity, KindTransportation, KindRoom, KindFlight}
}

// IsValidResourceKind checks whether the given kind names a reservable resource.
func IsValidResourceKind(kind ResourceKind) bool {
	for _, k := range ValidResourceKinds() {
		if k == kind {
			return true
		}
	}
	return false
}

// Availability is the normalized stock view of a reservable resource. Each
// kind stores capacity differently on disk; the repository layer maps every
// row into this shape so the reservation engine has a single code path.
type Availability struct {
	Kind          ResourceKind `json:"resource_kind"`
	ID            int64        `json:"resource_id"`
	TotalCapacity int          `json:"total_capacity"`
	Consumed      int          `json:"consumed"`
	Date          time.Time    `json:"date"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Available returns the remaining reservable quantity.
func (a *Availability) Available() int {
	return a.TotalCapacity - a.Consumed
}

// UtilizationPercent returns consumed capacity as a percentage. Zero-capacity
// resources report 0 rather than dividing by zero.
func (a *Availability) UtilizationPercent() float64 {
	if a.TotalCapacity == 0 {
		return 0
	}
	return float64(a.Consumed) / float64(a.TotalCapacity) * 100
}

// StockCheckResult is the outcome of a read-only availability check.
type StockCheckResult struct {
	Kind          ResourceKind `json:"resource_kind"`
	ID            int64        `json:"resource_id"`
	Requested     int          `json:"requested"`
	Available     int          `json:"available"`
	TotalCapacity int          `json:"total_capacity"`
	Consumed      int          `json:"consumed"`
	InStock       bool         `json:"in_stock"`
}

// StockSummary reports the full utilization picture for one resource.
type StockSummary struct {
	Kind               ResourceKind `json:"resource_kind"`
	ID                 int64        `json:"resource_id"`
	TotalCapacity      int          `json:"total_capacity"`
	Consumed           int          `json:"consumed"`
	Available          int          `json:"available"`
	UtilizationPercent float64      `json:"utilization_percent"`
}

// ReservationRequest is one prospective reservation line, used by both the
// reserve path and the bulk dry-run validator.
type ReservationRequest struct {
	Kind     ResourceKind `json:"resource_kind"`
	ID       int64        `json:"resource_id"`
	Quantity int          `json:"quantity"`
}

// BulkValidationItem is the per-line outcome of a bulk dry-run validation.
type BulkValidationItem struct {
	Request   ReservationRequest `json:"request"`
	Valid     bool               `json:"valid"`
	Available int                `json:"available"`
	Reason    string             `json:"reason,omitempty"`
}

// BulkValidationResult partitions a bulk request into valid and invalid lines.
// One invalid line never aborts validation of the rest.
type BulkValidationResult struct {
	Valid   []BulkValidationItem `json:"valid"`
	Invalid []BulkValidationItem `json:"invalid"`
}

// AllValid reports whether every line passed validation.
func (r *BulkValidationResult) AllValid() bool {
	return len(r.Invalid) == 0
}
