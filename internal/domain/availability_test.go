package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAvailability_Available(t *testing.T) {
	a := &Availability{TotalCapacity: 20, Consumed: 5}
	assert.Equal(t, 15, a.Available())
}

func TestAvailability_UtilizationPercent(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		consumed int
		want     float64
	}{
		{name: "quarter used", capacity: 20, consumed: 5, want: 25},
		{name: "fully consumed", capacity: 10, consumed: 10, want: 100},
		{name: "untouched", capacity: 10, consumed: 0, want: 0},
		{name: "zero capacity", capacity: 0, consumed: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Availability{TotalCapacity: tt.capacity, Consumed: tt.consumed}
			assert.InDelta(t, tt.want, a.UtilizationPercent(), 0.001)
		})
	}
}

func TestIsValidResourceKind(t *testing.T) {
	for _, k := range ValidResourceKinds() {
		assert.True(t, IsValidResourceKind(k))
	}
	assert.False(t, IsValidResourceKind("hotel"))
	assert.False(t, IsValidResourceKind(""))
}

func TestChangeDirection(t *testing.T) {
	assert.Equal(t, DirectionIncrease, ChangeDirection(5, 8))
	assert.Equal(t, DirectionDecrease, ChangeDirection(8, 5))
	assert.Equal(t, DirectionSet, ChangeDirection(5, 5))
}

func TestBulkValidationResult_AllValid(t *testing.T) {
	r := &BulkValidationResult{
		Valid: []BulkValidationItem{{Valid: true}},
	}
	assert.True(t, r.AllValid())

	r.Invalid = append(r.Invalid, BulkValidationItem{Valid: false, Reason: "insufficient stock"})
	assert.False(t, r.AllValid())
}

func TestCart_ReservationLines(t *testing.T) {
	c := &Cart{
		Items: []CartItem{
			{
				Kind: KindActivity, ResourceID: 1, Quantity: 2,
				Components: []CartComponent{
					{Kind: KindTransportation, ResourceID: 9, Quantity: 2},
				},
			},
			{Kind: KindRoom, ResourceID: 4, Quantity: 1},
		},
	}

	lines := c.ReservationLines()
	assert.Len(t, lines, 3)
	assert.Equal(t, ReservationRequest{Kind: KindActivity, ID: 1, Quantity: 2}, lines[0])
	assert.Equal(t, ReservationRequest{Kind: KindTransportation, ID: 9, Quantity: 2}, lines[1])
	assert.Equal(t, ReservationRequest{Kind: KindRoom, ID: 4, Quantity: 1}, lines[2])
}

func TestCart_FindItemIndex(t *testing.T) {
	c := &Cart{
		Items: []CartItem{
			{Kind: KindFlight, ResourceID: 3, Quantity: 1},
		},
	}
	assert.Equal(t, 0, c.FindItemIndex(KindFlight, 3))
	assert.Equal(t, -1, c.FindItemIndex(KindFlight, 4))
}

func TestCart_IsExpired(t *testing.T) {
	open := &Cart{Status: CartStatusOpen, ExpiresAt: time.Now().UTC().Add(time.Hour)}
	assert.True(t, open.IsOpen())
	assert.False(t, open.IsExpired())

	stale := &Cart{Status: CartStatusOpen, ExpiresAt: time.Now().UTC().Add(-time.Minute)}
	assert.True(t, stale.IsExpired())
}

func TestSagaStep_Lifecycle(t *testing.T) {
	step := NewSagaStep("reserve_activity", ReservationRequest{Kind: KindActivity, ID: 1, Quantity: 2})
	assert.Equal(t, SagaStepPending, step.Status)

	step.Complete()
	assert.Equal(t, SagaStepCompleted, step.Status)
	assert.False(t, step.ExecutedAt.IsZero())

	step.Compensate()
	assert.Equal(t, SagaStepCompensated, step.Status)

	failed := NewSagaStep("reserve_room", ReservationRequest{Kind: KindRoom, ID: 2, Quantity: 1})
	failed.Fail("insufficient stock")
	assert.Equal(t, SagaStepFailed, failed.Status)
	assert.Equal(t, "insufficient stock", failed.Error)
}
