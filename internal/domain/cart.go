package domain

import "time"

// Cart status constants.
const (
	CartStatusOpen    = "open"
	CartStatusOrdered = "ordered"
	CartStatusExpired = "expired"
)

// Cart represents a traveler's shopping cart. Every line holds committed
// stock; closing the cart (order or expiry) settles those holds.
type Cart struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Status    string     `json:"status"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// CartItem is a single reserved line in the cart. A package line carries the
// component reservations made alongside the main resource.
type CartItem struct {
	ID         string          `json:"id"`
	Kind       ResourceKind    `json:"resource_kind"`
	ResourceID int64           `json:"resource_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  int64           `json:"unit_price"`
	Components []CartComponent `json:"components,omitempty"`
	AddedAt    time.Time       `json:"added_at"`
}

// CartComponent is a dependent reservation bundled with a package line, e.g.
// the transport leg sold with an activity.
type CartComponent struct {
	Kind       ResourceKind `json:"resource_kind"`
	ResourceID int64        `json:"resource_id"`
	Quantity   int          `json:"quantity"`
}

// IsOpen reports whether the cart still accepts mutations.
func (c *Cart) IsOpen() bool {
	return c.Status == CartStatusOpen
}

// IsExpired reports whether the cart has passed its expiry deadline.
func (c *Cart) IsExpired() bool {
	return time.Now().UTC().After(c.ExpiresAt)
}

// TotalAmount calculates the total price of all items in the cart (in cents).
func (c *Cart) TotalAmount() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}

// ItemCount returns the total quantity across all cart lines.
func (c *Cart) ItemCount() int {
	var count int
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// FindItemIndex returns the index of the cart line matching the given
// resource, or -1 if the cart holds no such line.
func (c *Cart) FindItemIndex(kind ResourceKind, resourceID int64) int {
	for i := range c.Items {
		if c.Items[i].Kind == kind && c.Items[i].ResourceID == resourceID {
			return i
		}
	}
	return -1
}

// ReservationLines flattens the cart into reservation requests, main lines
// and package components alike. Used to release or re-validate everything the
// cart holds.
func (c *Cart) ReservationLines() []ReservationRequest {
	var lines []ReservationRequest
	for _, item := range c.Items {
		lines = append(lines, ReservationRequest{
			Kind:     item.Kind,
			ID:       item.ResourceID,
			Quantity: item.Quantity,
		})
		for _, comp := range item.Components {
			lines = append(lines, ReservationRequest{
				Kind:     comp.Kind,
				ID:       comp.ResourceID,
				Quantity: comp.Quantity,
			})
		}
	}
	return lines
}
