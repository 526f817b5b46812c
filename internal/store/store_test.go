package store

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gostore/marketplace/internal/domain"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "../../migrations",
	}

	store, err := New(creds)
	require.NoError(t, err)

	err = store.RunMigrations(creds)
	require.NoError(t, err)

	cleanup := func() {
		store.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return store, cleanup
}

func seedProduct(t *testing.T, store *Store, id int64, name, price string, stock int) {
	t.Helper()
	err := store.UpsertProduct(context.Background(), &domain.Product{
		ID:       id,
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		VendorID: "vendor-1",
	})
	require.NoError(t, err)
}

func seedPromotion(t *testing.T, store *Store, code string, kind domain.PromotionType, value string) {
	t.Helper()
	query := `INSERT INTO promotions (code, type, value, minimum_purchase, start_date, end_date)
	          VALUES ($1, $2, $3, 0, NOW() - INTERVAL '1 day', NOW() + INTERVAL '1 day')`
	_, err := store.db.ExecContext(context.Background(), query, code, kind, value)
	require.NoError(t, err)
}

func pendingOrder(userID string, productID int64, quantity int) *domain.Order {
	now := time.Now()
	return &domain.Order{
		ID:     uuid.New(),
		UserID: userID,
		Items: []domain.OrderItem{
			{ProductID: productID, Quantity: quantity, UnitPrice: decimal.RequireFromString("10.00")},
		},
		Status: domain.OrderStatusPending,
		ShippingAddress: domain.Address{
			AddressLine: "1 Main St",
			City:        "Springfield",
			PostalCode:  "12345",
			Country:     "US",
		},
		PaymentMethod: "card",
		ItemsPrice:    decimal.RequireFromString("10.00").Mul(decimal.NewFromInt(int64(quantity))),
		ShippingPrice: decimal.RequireFromString("10.00"),
		TaxPrice:      decimal.RequireFromString("1.00"),
		DiscountPrice: decimal.Zero,
		TotalPrice:    decimal.RequireFromString("21.00"),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	p, err := store.GetProduct(context.Background(), 999)

	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestUpsertProduct_RoundTrip(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	seedProduct(t, store, 1, "Widget", "19.99", 10)

	p, err := store.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Widget", p.Name)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("19.99")))
	assert.Equal(t, 10, p.Stock)
	assert.Equal(t, "vendor-1", p.VendorID)
}

func TestFindPromotionByCode_CaseInsensitive(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	seedPromotion(t, store, "SAVE10", domain.PromotionPercentage, "10")

	promo, err := store.FindPromotionByCode(context.Background(), "save10")
	require.NoError(t, err)
	require.NotNil(t, promo)
	assert.Equal(t, "SAVE10", promo.Code)
	assert.Equal(t, domain.PromotionPercentage, promo.Type)
	assert.True(t, promo.Value.Equal(decimal.NewFromInt(10)))
}

func TestFindPromotionByCode_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	promo, err := store.FindPromotionByCode(context.Background(), "nope")

	require.NoError(t, err)
	assert.Nil(t, promo)
}

func TestPlaceOrder_DecrementsStockAndSnapshotsItems(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	seedProduct(t, store, 1, "Widget", "10.00", 5)

	order := pendingOrder("user123", 1, 3)
	require.NoError(t, store.PlaceOrder(ctx, order))

	// item snapshot filled from the decremented row
	assert.Equal(t, "Widget", order.Items[0].ProductName)
	assert.Equal(t, "vendor-1", order.Items[0].VendorID)

	p, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stock)

	stored, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, stored.Status)
	assert.Equal(t, "user123", stored.UserID)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "Widget", stored.Items[0].ProductName)
	assert.True(t, stored.TotalPrice.Equal(decimal.RequireFromString("21.00")))
	assert.Equal(t, "Springfield", stored.ShippingAddress.City)
}

func TestPlaceOrder_WritesOutboxEvent(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	seedProduct(t, store, 1, "Widget", "10.00", 5)

	order := pendingOrder("user123", 1, 1)
	require.NoError(t, store.PlaceOrder(ctx, order))

	events, err := store.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, order.ID.String(), events[0].AggregateID)
	assert.Equal(t, EventOrderPlaced, events[0].EventType)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, order.ID.String(), payload["order_id"])
	assert.Equal(t, "user123", payload["user_id"])
}

func TestPlaceOrder_InsufficientStock_NothingWritten(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	seedProduct(t, store, 1, "Widget", "10.00", 2)

	order := pendingOrder("user123", 1, 5)
	err := store.PlaceOrder(ctx, order)

	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "Widget", stockErr.ProductName)

	p, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stock, "stock untouched after rollback")

	_, err = store.GetOrder(ctx, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	events, err := store.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestPlaceOrder_PartialShortfall_RollsBackEarlierDecrements(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	seedProduct(t, store, 1, "Widget", "10.00", 5)
	seedProduct(t, store, 2, "Gadget", "20.00", 1)

	order := pendingOrder("user123", 1, 2)
	order.Items = append(order.Items, domain.OrderItem{
		ProductID: 2, Quantity: 3, UnitPrice: decimal.RequireFromString("20.00"),
	})

	err := store.PlaceOrder(ctx, order)

	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "Gadget", stockErr.ProductName)

	p, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock, "first item's decrement must be rolled back")
}

func TestPlaceOrder_UnknownProduct(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	order := pendingOrder("user123", 999, 1)
	err := store.PlaceOrder(context.Background(), order)

	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestPlaceOrder_DuplicateID(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	seedProduct(t, store, 1, "Widget", "10.00", 10)

	order := pendingOrder("user123", 1, 1)
	require.NoError(t, store.PlaceOrder(ctx, order))

	dup := pendingOrder("user123", 1, 1)
	dup.ID = order.ID
	err := store.PlaceOrder(ctx, dup)

	assert.ErrorIs(t, err, ErrDuplicateOrder)

	p, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 9, p.Stock, "duplicate attempt must not eat stock")
}

// Concurrent checkouts racing for the same stock: the conditional decrement
// must hand out exactly the available units, never more.
func TestPlaceOrder_ConcurrentOrders_StockNeverNegative(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	seedProduct(t, store, 1, "Widget", "10.00", 5)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.PlaceOrder(ctx, pendingOrder("user123", 1, 1))
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			var stockErr *domain.InsufficientStockError
			require.ErrorAs(t, err, &stockErr)
		}
	}
	assert.Equal(t, 5, succeeded)

	p, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)
}

func TestGetOrder_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.GetOrder(context.Background(), uuid.New())

	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestListOrdersByUser(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	seedProduct(t, store, 1, "Widget", "10.00", 10)

	first := pendingOrder("user123", 1, 1)
	require.NoError(t, store.PlaceOrder(ctx, first))
	second := pendingOrder("user123", 1, 1)
	require.NoError(t, store.PlaceOrder(ctx, second))
	other := pendingOrder("someone-else", 1, 1)
	require.NoError(t, store.PlaceOrder(ctx, other))

	orders, err := store.ListOrdersByUser(ctx, "user123")
	require.NoError(t, err)
	assert.Len(t, orders, 2)
	for _, o := range orders {
		assert.Equal(t, "user123", o.UserID)
	}

	orders, err = store.ListOrdersByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestUpdateOrderStatus_LegalTransition(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	seedProduct(t, store, 1, "Widget", "10.00", 10)

	order := pendingOrder("user123", 1, 1)
	require.NoError(t, store.PlaceOrder(ctx, order))

	err := store.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusProcessing)
	require.NoError(t, err)

	stored, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, stored.Status)

	// both the placement and the status change are in the outbox
	events, err := store.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventOrderStatusChanged, events[1].EventType)
}

func TestUpdateOrderStatus_IllegalTransition(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	seedProduct(t, store, 1, "Widget", "10.00", 10)

	order := pendingOrder("user123", 1, 1)
	require.NoError(t, store.PlaceOrder(ctx, order))

	err := store.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusDelivered)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	stored, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, stored.Status, "status unchanged on rejection")
}

func TestUpdateOrderStatus_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.UpdateOrderStatus(context.Background(), uuid.New(), domain.OrderStatusProcessing)

	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOutbox_MarkEventProcessed(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	seedProduct(t, store, 1, "Widget", "10.00", 10)

	order := pendingOrder("user123", 1, 1)
	require.NoError(t, store.PlaceOrder(ctx, order))

	events, err := store.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	require.NoError(t, store.MarkEventProcessed(ctx, events[0].ID))

	events, err = store.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
