// Package cart owns the per-user shopping cart aggregate. Every mutation
// recomputes the derived pricing summary before the cart is persisted, so a
// stored cart is never stale relative to its line items.
package cart

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gostore/marketplace/internal/cart/cache"
	"github.com/gostore/marketplace/internal/cart/repository"
	"github.com/gostore/marketplace/internal/coupon"
	"github.com/gostore/marketplace/internal/domain"
	"github.com/gostore/marketplace/internal/pricing"
)

var (
	ErrItemNotInCart   = errors.New("item is not in the cart")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// Catalog supplies current price and stock for a product. A nil product
// with a nil error means the product does not exist.
type Catalog interface {
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)
}

type Service struct {
	repo    repository.CartRepository
	cache   cache.CartCache
	catalog Catalog
	pricer  *pricing.Engine
	coupons *coupon.Evaluator
	sfg     singleflight.Group // Prevents cache stampede
}

func NewService(
	repo repository.CartRepository,
	cache cache.CartCache,
	catalog Catalog,
	pricer *pricing.Engine,
	coupons *coupon.Evaluator,
) *Service {
	return &Service{
		repo:    repo,
		cache:   cache,
		catalog: catalog,
		pricer:  pricer,
		coupons: coupons,
	}
}

// GetOrCreate returns the user's cart, creating and persisting an empty one
// if none exists yet.
func (s *Service) GetOrCreate(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cached, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("cache get error: %v", err) // log cache error but continue
		}

		cart, errGet := s.repo.GetCart(ctx, userID)
		if errors.Is(errGet, repository.ErrCartNotFound) {
			cart = s.emptyCart(userID)
			if errUpsert := s.repo.UpsertCart(ctx, cart); errUpsert != nil {
				return nil, errUpsert
			}
		} else if errGet != nil {
			return nil, errGet
		}

		go func() {
			setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if errSet := s.cache.Set(setCtx, userID, cart); errSet != nil {
				log.Printf("cache set error: %v", errSet)
			}
		}()

		return cart, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// AddItem puts quantity units of the product into the cart. If the line item
// already exists the quantities are summed and its price snapshot refreshed
// to the catalog's current price.
func (s *Service) AddItem(ctx context.Context, userID string, productID int64, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	cart, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		cart = s.emptyCart(userID)
	} else if err != nil {
		return nil, err
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}

	now := time.Now()
	if idx := cart.FindItem(productID); idx >= 0 {
		wanted := cart.Items[idx].Quantity + quantity
		if product.Stock < wanted {
			return nil, &domain.InsufficientStockError{ProductName: product.Name}
		}
		cart.Items[idx].Quantity = wanted
		cart.Items[idx].UnitPrice = product.Price
		cart.Items[idx].AddedAt = now
	} else {
		if product.Stock < quantity {
			return nil, &domain.InsufficientStockError{ProductName: product.Name}
		}
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: productID,
			Quantity:  quantity,
			UnitPrice: product.Price,
			AddedAt:   now,
		})
	}

	return s.saveRepriced(ctx, cart)
}

// UpdateItemQuantity sets the line item's quantity to the given absolute
// value. A quantity of zero or less removes the item; a line item with
// quantity 0 must never exist.
func (s *Service) UpdateItemQuantity(ctx context.Context, userID string, productID int64, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, userID, productID)
	}

	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	idx := cart.FindItem(productID)
	if idx < 0 {
		return nil, ErrItemNotInCart
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}
	if product.Stock < quantity {
		return nil, &domain.InsufficientStockError{ProductName: product.Name}
	}

	cart.Items[idx].Quantity = quantity
	cart.Items[idx].UnitPrice = product.Price
	cart.Items[idx].AddedAt = time.Now()

	return s.saveRepriced(ctx, cart)
}

// RemoveItem takes the product out of the cart. Removing an item that is
// not there is a no-op, not an error.
func (s *Service) RemoveItem(ctx context.Context, userID string, productID int64) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return s.emptyCart(userID), nil
	}
	if err != nil {
		return nil, err
	}

	idx := cart.FindItem(productID)
	if idx < 0 {
		return cart, nil
	}

	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	return s.saveRepriced(ctx, cart)
}

// Clear deletes the cart record entirely; a fresh empty cart is lazily
// created on next access.
func (s *Service) Clear(ctx context.Context, userID string) (*domain.Cart, error) {
	err := s.repo.DeleteCart(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		return nil, err
	}

	s.invalidateCache(userID)
	return s.emptyCart(userID), nil
}

// ApplyCoupon validates the code against the cart and, if eligible, stores
// the coupon with its discount amount frozen at application time.
func (s *Service) ApplyCoupon(ctx context.Context, userID, code string) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		cart = s.emptyCart(userID)
	} else if err != nil {
		return nil, err
	}

	// Reprice before validating so the minimum-purchase check runs against
	// the current, pre-discount subtotal.
	cart.Summary = s.pricer.Recompute(cart.Items, cart.Coupons)

	promo, err := s.coupons.Validate(ctx, code, cart, time.Now())
	if err != nil {
		return nil, err
	}

	amount := s.coupons.ComputeDiscount(promo, cart.Summary.Subtotal)
	cart.Coupons = append(cart.Coupons, domain.AppliedCoupon{
		Code:      promo.Code,
		Kind:      promo.Type,
		Amount:    amount,
		AppliedAt: time.Now(),
	})

	return s.saveRepriced(ctx, cart)
}

// RemoveCoupon removes the coupon by exact code match. Removing a coupon
// that is not applied is a no-op.
func (s *Service) RemoveCoupon(ctx context.Context, userID, code string) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return s.emptyCart(userID), nil
	}
	if err != nil {
		return nil, err
	}

	kept := cart.Coupons[:0]
	for _, c := range cart.Coupons {
		if c.Code != code {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(cart.Coupons) {
		return cart, nil
	}
	cart.Coupons = kept

	return s.saveRepriced(ctx, cart)
}

func (s *Service) saveRepriced(ctx context.Context, cart *domain.Cart) (*domain.Cart, error) {
	cart.Summary = s.pricer.Recompute(cart.Items, cart.Coupons)

	if err := s.repo.UpsertCart(ctx, cart); err != nil {
		return nil, err
	}

	s.invalidateCache(cart.UserID)
	return cart, nil
}

func (s *Service) emptyCart(userID string) *domain.Cart {
	now := time.Now()
	return &domain.Cart{
		UserID:    userID,
		Items:     []domain.CartItem{},
		Coupons:   []domain.AppliedCoupon{},
		Summary:   s.pricer.Recompute(nil, nil),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Service) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		log.Printf("cache invalidate error: %v", err)
	}
}
