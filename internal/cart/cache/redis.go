package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/kimspro130/promode/internal/cart/domain"
	"github.com/redis/go-redis/v9"
)

const defaultBaseTTL = 15 * time.Minute

// RedisCache fronts the Mongo store for signed-in users' carts. Guest
// carts never pass through it; they live in Redis as a store of their
// own under the guest-cart keyspace.
type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCache(client *redis.Client, baseTTL time.Duration) *RedisCache {
	if baseTTL <= 0 {
		baseTTL = defaultBaseTTL
	}
	return &RedisCache{
		client:  client,
		baseTTL: baseTTL,
	}
}

func (r *RedisCache) Get(ctx context.Context, ownerKey string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, userCartKey(ownerKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err2 := json.Unmarshal(data, &cart); err2 != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err2)
	}

	return &cart, nil
}

func (r *RedisCache) Set(ctx context.Context, ownerKey string, cart *domain.Cart) error {
	jsonCart, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	if err := r.client.Set(ctx, userCartKey(ownerKey), jsonCart, r.ttl()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, ownerKey string) error {
	if err := r.client.Del(ctx, userCartKey(ownerKey)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}

	return nil
}

// ttl spreads expiries over an extra 0-20% of the base so carts warmed
// in a burst do not all fall out of the cache at the same instant.
func (r *RedisCache) ttl() time.Duration {
	jitter := time.Duration(rand.Int63n(int64(r.baseTTL) / 5))
	return r.baseTTL + jitter
}

// userCartKey keeps cached user carts disjoint from the guest-cart
// keyspace the guest store writes to.
func userCartKey(ownerKey string) string {
	return "cart:user:" + ownerKey
}
