// Package checkout converts a cart into an immutable order. Stock
// re-validation, the stock decrement, and order creation happen as one
// storage transaction; the cart is disposed of only after that commits.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/gostore/marketplace/internal/domain"
)

var ErrEmptyCart = errors.New("cart is empty, nothing to checkout")

// CartManager reads and disposes of the user's cart.
type CartManager interface {
	GetOrCreate(ctx context.Context, userID string) (*domain.Cart, error)
	Clear(ctx context.Context, userID string) (*domain.Cart, error)
}

// OrderPlacer atomically validates stock, decrements it, and persists the
// order. On failure nothing is written.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, order *domain.Order) error
}

type Service struct {
	carts  CartManager
	orders OrderPlacer
}

func NewService(carts CartManager, orders OrderPlacer) *Service {
	return &Service{
		carts:  carts,
		orders: orders,
	}
}

// Checkout materializes the user's cart into an order. Stock levels may
// have drifted since items were added, so every line is re-validated at
// commit time; the first shortfall fails the whole operation and no order
// is created.
func (s *Service) Checkout(ctx context.Context, userID string, address domain.Address, paymentMethod string) (*domain.Order, error) {
	cart, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	order := buildOrder(cart, address, paymentMethod)
	if err := s.orders.PlaceOrder(ctx, order); err != nil {
		return nil, err
	}

	s.disposeCart(ctx, userID)
	return order, nil
}

// buildOrder snapshots the cart into a new pending order. Prices come from
// the cart's last computed summary; product name and vendor are filled in
// by the store from the same rows it decrements.
func buildOrder(cart *domain.Cart, address domain.Address, paymentMethod string) *domain.Order {
	items := make([]domain.OrderItem, len(cart.Items))
	for i, item := range cart.Items {
		items[i] = domain.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}

	now := time.Now()
	return &domain.Order{
		ID:              uuid.New(),
		UserID:          cart.UserID,
		Items:           items,
		Status:          domain.OrderStatusPending,
		ShippingAddress: address,
		PaymentMethod:   paymentMethod,
		ItemsPrice:      cart.Summary.Subtotal,
		ShippingPrice:   cart.Summary.Shipping,
		TaxPrice:        cart.Summary.Tax,
		DiscountPrice:   cart.Summary.Discount,
		TotalPrice:      cart.Summary.Total,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// disposeCart deletes the consumed cart. The order is already committed at
// this point, so a failure here cannot be rolled back; the delete is retried
// once and otherwise logged. A leftover cart is superseded on next access.
func (s *Service) disposeCart(ctx context.Context, userID string) {
	if _, err := s.carts.Clear(ctx, userID); err != nil {
		if _, retryErr := s.carts.Clear(ctx, userID); retryErr != nil {
			log.Printf("failed to dispose cart for user %s after checkout: %v", userID, retryErr)
		}
	}
}
