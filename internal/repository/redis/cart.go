package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/viajora/travel-inventory/internal/domain"
	apperrors "github.com/viajora/travel-inventory/pkg/errors"
)

const (
	keyPrefix   = "cart:"
	expiryIndex = "carts:by_expiry"
)

// CartRepository implements repository.CartRepository using Redis. Carts are
// stored as JSON blobs without a Redis TTL: the cart must survive until the
// expiry job has released its stock, so expiry is tracked in a sorted set
// scored by the expiry deadline instead.
type CartRepository struct {
	client *redis.Client
}

// NewCartRepository creates a new Redis-backed cart repository.
func NewCartRepository(client *redis.Client) *CartRepository {
	return &CartRepository{client: client}
}

// Get retrieves a cart by ID.
func (r *CartRepository) Get(ctx context.Context, cartID string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, keyPrefix+cartID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("cart", cartID)
		}
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}

	return &cart, nil
}

// Save persists a cart. Open carts are indexed by expiry deadline; closed
// carts are removed from the index so the expiry job skips them.
func (r *CartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, keyPrefix+cart.ID, data, 0)
	if cart.Status == domain.CartStatusOpen {
		pipe.ZAdd(ctx, expiryIndex, redis.Z{
			Score:  float64(cart.ExpiresAt.Unix()),
			Member: cart.ID,
		})
	} else {
		pipe.ZRem(ctx, expiryIndex, cart.ID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save cart: %w", err)
	}

	return nil
}

// Delete removes a cart and its expiry index entry.
func (r *CartRepository) Delete(ctx context.Context, cartID string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, keyPrefix+cartID)
	pipe.ZRem(ctx, expiryIndex, cartID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete cart: %w", err)
	}

	return nil
}

// ListExpired returns the IDs of open carts whose deadline passed at or
// before now.
func (r *CartRepository) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	ids, err := r.client.ZRangeByScore(ctx, expiryIndex, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.Unix()),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list expired carts: %w", err)
	}

	return ids, nil
}
