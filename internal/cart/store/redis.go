package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kimspro130/promode/internal/cart/domain"
	"github.com/redis/go-redis/v9"
)

// RedisStore holds guest carts keyed by an opaque cart token issued to
// the client. Carts expire after the TTL; a corrupt payload decodes to
// an empty cart rather than an error, matching how the client side
// treats unreadable local storage.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    30 * 24 * time.Hour,
	}
}

func (r *RedisStore) Get(ctx context.Context, ownerKey string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, guestCartKey(ownerKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	return decodeCart(ownerKey, data), nil
}

func (r *RedisStore) Save(ctx context.Context, cart *domain.Cart) error {
	now := time.Now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now

	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	if err := r.client.Set(ctx, guestCartKey(cart.OwnerKey), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, ownerKey string) error {
	if err := r.client.Del(ctx, guestCartKey(ownerKey)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// decodeCart falls back to an empty cart on any corrupt payload.
func decodeCart(ownerKey string, data []byte) *domain.Cart {
	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil || cart.Items == nil {
		return &domain.Cart{OwnerKey: ownerKey}
	}
	cart.OwnerKey = ownerKey
	return &cart
}

func guestCartKey(ownerKey string) string {
	return fmt.Sprintf("guest-cart:%s", ownerKey)
}
