package service

import (
	"context"
	"fmt"

	apperrors "github.com/viajora/travel-inventory/pkg/errors"

	"github.com/viajora/travel-inventory/internal/domain"
)

// ValidateBulk dry-run checks a set of prospective reservations and
// partitions them into valid and invalid lines. Nothing is reserved and no
// audit entries are written; one bad line never aborts validation of the
// rest. Like Check, the answer can be stale by the time the caller reserves.
func (s *StockService) ValidateBulk(ctx context.Context, reqs []domain.ReservationRequest) (*domain.BulkValidationResult, error) {
	if len(reqs) == 0 {
		return nil, apperrors.InvalidInput("items list cannot be empty")
	}

	availability, err := s.availability.BulkGet(ctx, reqs)
	if err != nil {
		return nil, fmt.Errorf("bulk validate: %w", err)
	}

	result := &domain.BulkValidationResult{
		Valid:   []domain.BulkValidationItem{},
		Invalid: []domain.BulkValidationItem{},
	}

	for _, req := range reqs {
		item := domain.BulkValidationItem{Request: req}

		switch {
		case !domain.IsValidResourceKind(req.Kind):
			item.Reason = fmt.Sprintf("unknown resource kind %q", req.Kind)
		case req.ID <= 0:
			item.Reason = "resource_id must be positive"
		case req.Quantity <= 0:
			item.Reason = fmt.Sprintf("quantity must be positive, got %d", req.Quantity)
		default:
			avail, ok := availability[req.Kind][req.ID]
			if !ok {
				item.Reason = fmt.Sprintf("%s %d not found", req.Kind, req.ID)
				break
			}
			item.Available = avail.Available()
			if item.Available < req.Quantity {
				item.Reason = fmt.Sprintf("insufficient stock: requested %d, available %d", req.Quantity, item.Available)
				break
			}
			item.Valid = true
		}

		if item.Valid {
			result.Valid = append(result.Valid, item)
			bulkValidationLines.WithLabelValues("valid").Inc()
		} else {
			result.Invalid = append(result.Invalid, item)
			bulkValidationLines.WithLabelValues("invalid").Inc()
		}
	}

	return result, nil
}
