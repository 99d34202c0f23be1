package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kimspro130/promode/internal/cart/cache"
	"github.com/kimspro130/promode/internal/cart/domain"
	"github.com/kimspro130/promode/internal/cart/store"
	"golang.org/x/sync/singleflight"
)

// CartService layers a read-through cache over a CartStore and applies
// aggregate mutations as load-mutate-save. Two instances exist at
// runtime: one over the mongo store for signed-in users, one over the
// redis store for guests.
type CartService struct {
	store store.CartStore
	cache cache.CartCache
	sfg   singleflight.Group // Prevents cache stampede
}

func NewCartService(st store.CartStore, c cache.CartCache) *CartService {
	return &CartService{
		store: st,
		cache: c,
	}
}

func (s *CartService) GetCart(ctx context.Context, ownerKey string) (*domain.Cart, error) {
	// Use singleflight so concurrent misses for the same key hit the
	// store once.
	v, err, _ := s.sfg.Do(ownerKey, func() (interface{}, error) {
		if s.cache != nil {
			cart, err := s.cache.Get(ctx, ownerKey)
			if err == nil {
				return cart, nil
			}
			if !errors.Is(err, cache.ErrCacheMiss) {
				log.Printf("cache get error: %v", err) // log cache error but continue
			}
		}

		cart, errGet := s.store.Get(ctx, ownerKey)
		if errors.Is(errGet, store.ErrCartNotFound) {
			// A missing cart is an empty cart, never an error.
			return &domain.Cart{
				OwnerKey:  ownerKey,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		if s.cache != nil {
			go func() {
				if errSet := s.cache.Set(context.Background(), ownerKey, cart); errSet != nil {
					log.Printf("cache set error: %v", errSet)
				}
			}()
		}

		return cart, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

func (s *CartService) AddItem(ctx context.Context, ownerKey string, item domain.CartItem) (*domain.Cart, error) {
	return s.mutate(ctx, ownerKey, func(cart *domain.Cart) {
		item.AddedAt = time.Now()
		cart.AddItem(item)
	})
}

func (s *CartService) UpdateQuantity(ctx context.Context, ownerKey, productID, size string, quantity int) (*domain.Cart, error) {
	return s.mutate(ctx, ownerKey, func(cart *domain.Cart) {
		cart.UpdateQuantity(productID, size, quantity)
	})
}

func (s *CartService) RemoveItem(ctx context.Context, ownerKey, productID, size string) (*domain.Cart, error) {
	return s.mutate(ctx, ownerKey, func(cart *domain.Cart) {
		cart.RemoveItem(productID, size)
	})
}

func (s *CartService) RemoveProduct(ctx context.Context, ownerKey, productID string) (*domain.Cart, error) {
	return s.mutate(ctx, ownerKey, func(cart *domain.Cart) {
		cart.RemoveProduct(productID)
	})
}

func (s *CartService) Clear(ctx context.Context, ownerKey string) error {
	if err := s.store.Delete(ctx, ownerKey); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	s.invalidate(ownerKey)
	return nil
}

func (s *CartService) mutate(ctx context.Context, ownerKey string, fn func(*domain.Cart)) (*domain.Cart, error) {
	cart, err := s.store.Get(ctx, ownerKey)
	if errors.Is(err, store.ErrCartNotFound) {
		cart = &domain.Cart{OwnerKey: ownerKey}
	} else if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	fn(cart)

	if err := s.store.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}

	s.invalidate(ownerKey)
	return cart, nil
}

func (s *CartService) invalidate(ownerKey string) {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, ownerKey); err != nil {
		log.Printf("cache invalidate error: %v", err)
	}
}
