package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/gostore/marketplace/internal/domain"
)

const (
	EventOrderPlaced        = "order_placed"
	EventOrderStatusChanged = "order_status_changed"
)

// PlaceOrder commits the whole checkout write in one transaction: for every
// item it conditionally decrements catalog stock, then inserts the order and
// an outbox event. If any item's stock is short, nothing is written.
//
// The decrement uses `stock = stock - n WHERE stock >= n`, so two concurrent
// checkouts can never both take the last unit. Product name and vendor are
// captured from the same statement into the order's item snapshot.
func (s *Store) PlaceOrder(ctx context.Context, order *domain.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin place order: %w", err)
	}
	defer tx.Rollback()

	decrement := `UPDATE products SET stock = stock - $2
	              WHERE id = $1 AND stock >= $2
	              RETURNING name, vendor_id`

	for i := range order.Items {
		item := &order.Items[i]
		err := tx.QueryRowContext(ctx, decrement, item.ProductID, item.Quantity).
			Scan(&item.ProductName, &item.VendorID)
		if errors.Is(err, sql.ErrNoRows) {
			return s.stockFailure(ctx, tx, item.ProductID)
		}
		if err != nil {
			return fmt.Errorf("decrement stock for product %d: %w", item.ProductID, err)
		}
	}

	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("marshal order items: %w", err)
	}
	addressJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}

	insert := `INSERT INTO orders
	           (id, user_id, status, items, shipping_address, payment_method,
	            items_price, shipping_price, tax_price, discount_price, total_price,
	            created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`

	_, insertErr := tx.ExecContext(ctx, insert,
		order.ID,
		order.UserID,
		order.Status,
		itemsJSON,
		addressJSON,
		order.PaymentMethod,
		order.ItemsPrice,
		order.ShippingPrice,
		order.TaxPrice,
		order.DiscountPrice,
		order.TotalPrice,
	)
	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"order_id":     order.ID,
		"user_id":      order.UserID,
		"items":        order.Items,
		"total_amount": order.TotalPrice,
		"placed_at":    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	if err := insertOutboxEvent(ctx, tx, order.ID.String(), EventOrderPlaced, payload); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit place order: %w", err)
	}
	return nil
}

// stockFailure tells a missing product apart from one that is merely short,
// still inside the transaction that is about to roll back.
func (s *Store) stockFailure(ctx context.Context, tx *sql.Tx, productID int64) error {
	var name string
	err := tx.QueryRowContext(ctx, `SELECT name FROM products WHERE id = $1`, productID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("query product %d after failed decrement: %w", productID, err)
	}
	return &domain.InsufficientStockError{ProductName: name}
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT id, user_id, status, items, shipping_address, payment_method,
	                 items_price, shipping_price, tax_price, discount_price, total_price,
	                 created_at, updated_at
	          FROM orders WHERE id = $1`

	order, err := scanOrder(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return order, nil
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	query := `SELECT id, user_id, status, items, shipping_address, payment_method,
	                 items_price, shipping_price, tax_price, discount_price, total_price,
	                 created_at, updated_at
	          FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, nil
}

// UpdateOrderStatus moves the order to next if the transition table allows
// it. The current status is read under a row lock so two racing updates
// cannot both pass the check.
func (s *Store) UpdateOrderStatus(ctx context.Context, id uuid.UUID, next domain.OrderStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin status update: %w", err)
	}
	defer tx.Rollback()

	var current domain.OrderStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("query order status: %w", err)
	}

	if !current.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, next)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, next); err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"order_id":   id,
		"old_status": current,
		"new_status": next,
		"changed_at": time.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshal status payload: %w", err)
	}
	if err := insertOutboxEvent(ctx, tx, id.String(), EventOrderStatusChanged, payload); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status update: %w", err)
	}
	return nil
}

func insertOutboxEvent(ctx context.Context, tx *sql.Tx, aggregateID, eventType string, payload []byte) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO order_outbox (aggregate_id, event_type, payload, created_at)
		 VALUES ($1, $2, $3, NOW())`,
		aggregateID, eventType, payload)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (s *Store) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at
	          FROM order_outbox WHERE processed_at IS NULL
	          ORDER BY id LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return events, nil
}

func (s *Store) MarkEventProcessed(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE order_outbox SET processed_at = NOW() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("mark event %d processed: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var itemsJSON, addressJSON []byte
	if err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.Status,
		&itemsJSON,
		&addressJSON,
		&order.PaymentMethod,
		&order.ItemsPrice,
		&order.ShippingPrice,
		&order.TaxPrice,
		&order.DiscountPrice,
		&order.TotalPrice,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	return &order, nil
}
