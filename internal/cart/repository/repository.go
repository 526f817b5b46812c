package repository

import (
	"context"
	"errors"

	"github.com/gostore/marketplace/internal/domain"
)

var ErrCartNotFound = errors.New("cart not found")

// CartRepository defines the interface for cart data operations.
// The cart is written whole: every mutation recomputes the derived summary,
// so partial field updates would let it drift from the line items.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	UpsertCart(ctx context.Context, cart *domain.Cart) error
	DeleteCart(ctx context.Context, userID string) error
}
