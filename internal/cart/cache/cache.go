package cache

import (
	"context"
	"errors"

	"github.com/kimspro130/promode/internal/cart/domain"
)

type CartCache interface {
	Get(ctx context.Context, ownerKey string) (*domain.Cart, error)
	Set(ctx context.Context, ownerKey string, cart *domain.Cart) error
	Delete(ctx context.Context, ownerKey string) error
}

var ErrCacheMiss = errors.New("cache miss")
