package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/viajora/travel-inventory/pkg/errors"

	"github.com/viajora/travel-inventory/internal/domain"
	"github.com/viajora/travel-inventory/internal/repository"
)

// StockOperator defines the reservation engine operations the cart
// orchestrator drives. Every cart mutation settles its stock movement
// through this interface before the cart itself is saved.
type StockOperator interface {
	Reserve(ctx context.Context, req domain.ReservationRequest, actor domain.ActorContext) (*domain.Availability, error)
	Release(ctx context.Context, req domain.ReservationRequest, actor domain.ActorContext) (*domain.Availability, error)
	Summary(ctx context.Context, kind domain.ResourceKind, id int64) (*domain.StockSummary, error)
}

// CartService orchestrates traveler carts. Stock is committed at the moment
// a line enters the cart and returned when the line leaves it, so a cart's
// contents always mirror real holds in the ledger.
type CartService struct {
	carts    repository.CartRepository
	stock    StockOperator
	producer EventPublisher
	logger   *slog.Logger
	ttl      time.Duration
}

// NewCartService creates a new cart service. ttl is how long an open cart
// may hold stock before the expiry job reclaims it.
func NewCartService(
	carts repository.CartRepository,
	stock StockOperator,
	producer EventPublisher,
	logger *slog.Logger,
	ttl time.Duration,
) *CartService {
	return &CartService{
		carts:    carts,
		stock:    stock,
		producer: producer,
		logger:   logger,
		ttl:      ttl,
	}
}

// CreateCart opens a new empty cart for the user.
func (s *CartService) CreateCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user_id is required")
	}

	now := time.Now().UTC()
	cart := &domain.Cart{
		ID:        uuid.New().String(),
		UserID:    userID,
		Status:    domain.CartStatusOpen,
		Items:     []domain.CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}

	s.logger.InfoContext(ctx, "cart created",
		slog.String("cart_id", cart.ID),
		slog.String("user_id", userID),
		slog.Time("expires_at", cart.ExpiresAt),
	)

	return cart, nil
}

// GetCart returns the cart by ID.
func (s *CartService) GetCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

// openCart loads the cart and verifies it still accepts mutations. An open
// cart past its deadline is refused here and left for the expiry job to
// settle; mutating it would race the job's releases.
func (s *CartService) openCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if !cart.IsOpen() || cart.IsExpired() {
		return nil, apperrors.CartClosed(cartID)
	}
	return cart, nil
}

// AddItem reserves stock for one line and adds it to the cart. A line for
// the same resource merges quantities. If the cart cannot be saved after the
// reservation succeeded, the reservation is released again.
func (s *CartService) AddItem(ctx context.Context, cartID string, kind domain.ResourceKind, resourceID int64, quantity int, unitPrice int64, actor domain.ActorContext) (*domain.Cart, error) {
	cart, err := s.openCart(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("add cart item: %w", err)
	}

	req := domain.ReservationRequest{Kind: kind, ID: resourceID, Quantity: quantity}
	if _, err := s.stock.Reserve(ctx, req, actor); err != nil {
		return nil, fmt.Errorf("add cart item: %w", err)
	}

	now := time.Now().UTC()
	if idx := cart.FindItemIndex(kind, resourceID); idx >= 0 {
		cart.Items[idx].Quantity += quantity
	} else {
		cart.Items = append(cart.Items, domain.CartItem{
			ID:         uuid.New().String(),
			Kind:       kind,
			ResourceID: resourceID,
			Quantity:   quantity,
			UnitPrice:  unitPrice,
			AddedAt:    now,
		})
	}
	cart.UpdatedAt = now

	if err := s.carts.Save(ctx, cart); err != nil {
		s.compensate(ctx, []domain.ReservationRequest{req}, actor)
		return nil, fmt.Errorf("save cart: %w", err)
	}

	s.logger.InfoContext(ctx, "cart item added",
		slog.String("cart_id", cartID),
		slog.String("resource_kind", string(kind)),
		slog.Int64("resource_id", resourceID),
		slog.Int("quantity", quantity),
	)

	return cart, nil
}

// AddPackage adds a multi-component line to the cart: the main resource plus
// its dependent components, reserved one at a time as a saga. On the first
// failed reservation every completed step is compensated in reverse order
// and the cart is left untouched.
func (s *CartService) AddPackage(ctx context.Context, cartID string, item domain.CartItem, actor domain.ActorContext) (*domain.Cart, error) {
	cart, err := s.openCart(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("add cart package: %w", err)
	}

	steps := make([]domain.SagaStep, 0, 1+len(item.Components))
	steps = append(steps, domain.NewSagaStep("main", domain.ReservationRequest{
		Kind:     item.Kind,
		ID:       item.ResourceID,
		Quantity: item.Quantity,
	}))
	for i, comp := range item.Components {
		steps = append(steps, domain.NewSagaStep(fmt.Sprintf("component-%d", i), domain.ReservationRequest{
			Kind:     comp.Kind,
			ID:       comp.ResourceID,
			Quantity: comp.Quantity,
		}))
	}

	for i := range steps {
		if _, err := s.stock.Reserve(ctx, steps[i].Request, actor); err != nil {
			steps[i].Fail(err.Error())
			s.compensateSteps(ctx, steps[:i], actor)
			return nil, fmt.Errorf("add cart package: step %s: %w", steps[i].Name, err)
		}
		steps[i].Complete()
	}

	now := time.Now().UTC()
	item.ID = uuid.New().String()
	item.AddedAt = now
	cart.Items = append(cart.Items, item)
	cart.UpdatedAt = now

	if err := s.carts.Save(ctx, cart); err != nil {
		s.compensateSteps(ctx, steps, actor)
		return nil, fmt.Errorf("save cart: %w", err)
	}

	s.logger.InfoContext(ctx, "cart package added",
		slog.String("cart_id", cartID),
		slog.String("resource_kind", string(item.Kind)),
		slog.Int64("resource_id", item.ResourceID),
		slog.Int("components", len(item.Components)),
	)

	return cart, nil
}

// UpdateQuantity changes the quantity of an existing line, reserving or
// releasing only the difference. Quantity zero removes the line. Package
// components keep their original quantities.
func (s *CartService) UpdateQuantity(ctx context.Context, cartID string, kind domain.ResourceKind, resourceID int64, quantity int, actor domain.ActorContext) (*domain.Cart, error) {
	if quantity < 0 {
		return nil, apperrors.InvalidQuantity(fmt.Sprintf("quantity must be non-negative, got %d", quantity))
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, cartID, kind, resourceID, actor)
	}

	cart, err := s.openCart(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("update cart quantity: %w", err)
	}

	idx := cart.FindItemIndex(kind, resourceID)
	if idx < 0 {
		return nil, apperrors.NotFound("cart item", fmt.Sprintf("%s/%d", kind, resourceID))
	}

	delta := quantity - cart.Items[idx].Quantity
	req := domain.ReservationRequest{Kind: kind, ID: resourceID}
	switch {
	case delta > 0:
		req.Quantity = delta
		if _, err := s.stock.Reserve(ctx, req, actor); err != nil {
			return nil, fmt.Errorf("update cart quantity: %w", err)
		}
	case delta < 0:
		req.Quantity = -delta
		if _, err := s.stock.Release(ctx, req, actor); err != nil {
			return nil, fmt.Errorf("update cart quantity: %w", err)
		}
	default:
		return cart, nil
	}

	cart.Items[idx].Quantity = quantity
	cart.UpdatedAt = time.Now().UTC()

	if err := s.carts.Save(ctx, cart); err != nil {
		// Undo the diff so the ledger matches the stored cart again.
		if delta > 0 {
			s.compensate(ctx, []domain.ReservationRequest{req}, actor)
		} else if _, rerr := s.stock.Reserve(ctx, req, actor); rerr != nil {
			s.logger.ErrorContext(ctx, "failed to re-reserve stock after cart save failure",
				slog.String("cart_id", cartID),
				slog.String("error", rerr.Error()),
			)
		}
		return nil, fmt.Errorf("save cart: %w", err)
	}

	s.logger.InfoContext(ctx, "cart quantity updated",
		slog.String("cart_id", cartID),
		slog.String("resource_kind", string(kind)),
		slog.Int64("resource_id", resourceID),
		slog.Int("quantity", quantity),
		slog.Int("delta", delta),
	)

	return cart, nil
}

// RemoveItem releases the line's stock, component holds included, and drops
// it from the cart.
func (s *CartService) RemoveItem(ctx context.Context, cartID string, kind domain.ResourceKind, resourceID int64, actor domain.ActorContext) (*domain.Cart, error) {
	cart, err := s.openCart(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("remove cart item: %w", err)
	}

	idx := cart.FindItemIndex(kind, resourceID)
	if idx < 0 {
		return nil, apperrors.NotFound("cart item", fmt.Sprintf("%s/%d", kind, resourceID))
	}

	item := cart.Items[idx]
	lines := []domain.ReservationRequest{{Kind: item.Kind, ID: item.ResourceID, Quantity: item.Quantity}}
	for _, comp := range item.Components {
		lines = append(lines, domain.ReservationRequest{Kind: comp.Kind, ID: comp.ResourceID, Quantity: comp.Quantity})
	}
	if err := s.releaseLines(ctx, lines, actor); err != nil {
		return nil, fmt.Errorf("remove cart item: %w", err)
	}

	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	cart.UpdatedAt = time.Now().UTC()

	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}

	s.logger.InfoContext(ctx, "cart item removed",
		slog.String("cart_id", cartID),
		slog.String("resource_kind", string(kind)),
		slog.Int64("resource_id", resourceID),
	)

	return cart, nil
}

// Checkout closes the cart for ordering. Every line is re-validated against
// the ledger first: the resource must still exist and its counters must be
// readable. Quantities are not re-checked because the cart already holds its
// stock. On success the cart becomes ORDERED and a cart.checked_out event
// hands the lines to order creation.
func (s *CartService) Checkout(ctx context.Context, cartID string, actor domain.ActorContext) (*domain.Cart, error) {
	cart, err := s.openCart(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("checkout cart: %w", err)
	}
	if len(cart.Items) == 0 {
		return nil, apperrors.InvalidInput("cart is empty")
	}

	for _, line := range cart.ReservationLines() {
		if _, err := s.stock.Summary(ctx, line.Kind, line.ID); err != nil {
			return nil, fmt.Errorf("checkout cart: validate line %s/%d: %w", line.Kind, line.ID, err)
		}
	}

	cart.Status = domain.CartStatusOrdered
	cart.UpdatedAt = time.Now().UTC()
	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}

	if err := s.producer.PublishCartCheckedOut(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.checked_out event",
			slog.String("cart_id", cartID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "cart checked out",
		slog.String("cart_id", cartID),
		slog.String("user_id", cart.UserID),
		slog.Int("items", len(cart.Items)),
		slog.Int64("total_amount", cart.TotalAmount()),
	)

	return cart, nil
}

// ExpireCarts settles every open cart whose deadline passed: all held stock
// is released and the cart is marked expired. Returns how many carts were
// settled. One failing cart does not stop the sweep.
func (s *CartService) ExpireCarts(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.carts.ListExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list expired carts: %w", err)
	}

	actor := domain.ActorContext{ActorID: "cart-expiry"}
	expired := 0
	var errs []error
	for _, id := range ids {
		cart, err := s.carts.Get(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("cart %s: %w", id, err))
			continue
		}
		if !cart.IsOpen() {
			continue
		}

		if err := s.releaseLines(ctx, cart.ReservationLines(), actor); err != nil {
			errs = append(errs, fmt.Errorf("cart %s: %w", id, err))
			continue
		}

		cart.Status = domain.CartStatusExpired
		cart.UpdatedAt = time.Now().UTC()
		if err := s.carts.Save(ctx, cart); err != nil {
			errs = append(errs, fmt.Errorf("cart %s: %w", id, err))
			continue
		}

		cartsExpired.Inc()
		expired++
		s.logger.InfoContext(ctx, "cart expired",
			slog.String("cart_id", id),
			slog.String("user_id", cart.UserID),
			slog.Int("items", len(cart.Items)),
		)
	}

	return expired, errors.Join(errs...)
}

// releaseLines releases each line, continuing past failures so one stuck
// resource does not strand the rest of the holds.
func (s *CartService) releaseLines(ctx context.Context, lines []domain.ReservationRequest, actor domain.ActorContext) error {
	var errs []error
	for _, line := range lines {
		if _, err := s.stock.Release(ctx, line, actor); err != nil {
			errs = append(errs, fmt.Errorf("release %s/%d: %w", line.Kind, line.ID, err))
		}
	}
	return errors.Join(errs...)
}

// compensate releases reservations made earlier in a failed cart mutation.
// Compensation failures are logged, not returned: the caller's original
// error is the one the client needs to see.
func (s *CartService) compensate(ctx context.Context, lines []domain.ReservationRequest, actor domain.ActorContext) {
	for _, line := range lines {
		if _, err := s.stock.Release(ctx, line, actor); err != nil {
			s.logger.ErrorContext(ctx, "failed to compensate reservation",
				slog.String("resource_kind", string(line.Kind)),
				slog.Int64("resource_id", line.ID),
				slog.Int("quantity", line.Quantity),
				slog.String("error", err.Error()),
			)
		}
	}
}

// compensateSteps rolls completed saga steps back in reverse order.
func (s *CartService) compensateSteps(ctx context.Context, steps []domain.SagaStep, actor domain.ActorContext) {
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].Status != domain.SagaStepCompleted {
			continue
		}
		if _, err := s.stock.Release(ctx, steps[i].Request, actor); err != nil {
			s.logger.ErrorContext(ctx, "failed to compensate saga step",
				slog.String("step", steps[i].Name),
				slog.String("resource_kind", string(steps[i].Request.Kind)),
				slog.Int64("resource_id", steps[i].Request.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		steps[i].Compensate()
	}
}
