package store

import (
	"context"
	"errors"

	"github.com/kimspro130/promode/internal/cart/domain"
)

var ErrCartNotFound = errors.New("cart not found")

// CartStore persists whole carts keyed by owner: a user id for
// authenticated carts, an opaque cart token for guest carts. Merge and
// pricing logic lives on the domain aggregate, not here.
type CartStore interface {
	Get(ctx context.Context, ownerKey string) (*domain.Cart, error)
	Save(ctx context.Context, cart *domain.Cart) error
	Delete(ctx context.Context, ownerKey string) error
}
