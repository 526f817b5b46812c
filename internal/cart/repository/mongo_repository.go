package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/gostore/marketplace/internal/domain"
)

// Money fields are stored as strings so amounts survive the round trip
// exactly; BSON doubles would not.
type cartDoc struct {
	UserID    string      `bson:"user_id"`
	Items     []itemDoc   `bson:"items"`
	Coupons   []couponDoc `bson:"coupons"`
	Summary   summaryDoc  `bson:"summary"`
	CreatedAt time.Time   `bson:"created_at"`
	UpdatedAt time.Time   `bson:"updated_at"`
}

type itemDoc struct {
	ProductID int64     `bson:"product_id"`
	Quantity  int       `bson:"quantity"`
	UnitPrice string    `bson:"unit_price"`
	AddedAt   time.Time `bson:"added_at"`
}

type couponDoc struct {
	Code      string    `bson:"code"`
	Kind      string    `bson:"kind"`
	Amount    string    `bson:"amount"`
	AppliedAt time.Time `bson:"applied_at"`
}

type summaryDoc struct {
	Subtotal string `bson:"subtotal"`
	Shipping string `bson:"shipping"`
	Tax      string `bson:"tax"`
	Discount string `bson:"discount"`
	Total    string `bson:"total"`
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) CartRepository {
	return &mongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m *mongoRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var doc cartDoc

	filter := bson.M{"user_id": userID}
	err := m.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	cart, err := fromDoc(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cart for user %s: %w", userID, err)
	}
	return cart, nil
}

func (m *mongoRepository) UpsertCart(ctx context.Context, cart *domain.Cart) error {
	now := time.Now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now

	filter := bson.M{"user_id": cart.UserID}
	update := bson.M{"$set": toDoc(cart)}
	opts := options.Update().SetUpsert(true)

	_, err := m.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}

	return nil
}

func (m *mongoRepository) DeleteCart(ctx context.Context, userID string) error {
	filter := bson.M{"user_id": userID}

	result, err := m.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}

	return nil
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

func toDoc(cart *domain.Cart) *cartDoc {
	doc := &cartDoc{
		UserID: cart.UserID,
		Items:  make([]itemDoc, len(cart.Items)),
		Summary: summaryDoc{
			Subtotal: cart.Summary.Subtotal.String(),
			Shipping: cart.Summary.Shipping.String(),
			Tax:      cart.Summary.Tax.String(),
			Discount: cart.Summary.Discount.String(),
			Total:    cart.Summary.Total.String(),
		},
		CreatedAt: cart.CreatedAt,
		UpdatedAt: cart.UpdatedAt,
	}
	for i, item := range cart.Items {
		doc.Items[i] = itemDoc{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.String(),
			AddedAt:   item.AddedAt,
		}
	}
	doc.Coupons = make([]couponDoc, len(cart.Coupons))
	for i, c := range cart.Coupons {
		doc.Coupons[i] = couponDoc{
			Code:      c.Code,
			Kind:      string(c.Kind),
			Amount:    c.Amount.String(),
			AppliedAt: c.AppliedAt,
		}
	}
	return doc
}

func fromDoc(doc *cartDoc) (*domain.Cart, error) {
	cart := &domain.Cart{
		UserID:    doc.UserID,
		Items:     make([]domain.CartItem, len(doc.Items)),
		Coupons:   make([]domain.AppliedCoupon, len(doc.Coupons)),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}

	var err error
	for i, item := range doc.Items {
		price, perr := decimal.NewFromString(item.UnitPrice)
		if perr != nil {
			return nil, fmt.Errorf("bad unit price %q: %w", item.UnitPrice, perr)
		}
		cart.Items[i] = domain.CartItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: price,
			AddedAt:   item.AddedAt,
		}
	}
	for i, c := range doc.Coupons {
		amount, aerr := decimal.NewFromString(c.Amount)
		if aerr != nil {
			return nil, fmt.Errorf("bad coupon amount %q: %w", c.Amount, aerr)
		}
		cart.Coupons[i] = domain.AppliedCoupon{
			Code:      c.Code,
			Kind:      domain.PromotionType(c.Kind),
			Amount:    amount,
			AppliedAt: c.AppliedAt,
		}
	}

	if cart.Summary.Subtotal, err = decimal.NewFromString(doc.Summary.Subtotal); err != nil {
		return nil, fmt.Errorf("bad summary subtotal %q: %w", doc.Summary.Subtotal, err)
	}
	if cart.Summary.Shipping, err = decimal.NewFromString(doc.Summary.Shipping); err != nil {
		return nil, fmt.Errorf("bad summary shipping %q: %w", doc.Summary.Shipping, err)
	}
	if cart.Summary.Tax, err = decimal.NewFromString(doc.Summary.Tax); err != nil {
		return nil, fmt.Errorf("bad summary tax %q: %w", doc.Summary.Tax, err)
	}
	if cart.Summary.Discount, err = decimal.NewFromString(doc.Summary.Discount); err != nil {
		return nil, fmt.Errorf("bad summary discount %q: %w", doc.Summary.Discount, err)
	}
	if cart.Summary.Total, err = decimal.NewFromString(doc.Summary.Total); err != nil {
		return nil, fmt.Errorf("bad summary total %q: %w", doc.Summary.Total, err)
	}

	return cart, nil
}
