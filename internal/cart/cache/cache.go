package cache

import (
	"context"
	"errors"

	"github.com/gostore/marketplace/internal/domain"
)

// CartCache sits in front of the cart repository for reads. Get returns
// ErrCacheMiss when the user has no cached cart; mutating code paths call
// Delete so the next read repopulates from the repository.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
