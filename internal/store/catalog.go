package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gostore/marketplace/internal/domain"
)

// GetProduct returns the product or (nil, nil) when no such product exists.
func (s *Store) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	query := `SELECT id, name, price, stock, vendor_id, created_at
	          FROM products WHERE id = $1`

	var p domain.Product
	err := s.db.QueryRowContext(ctx, query, productID).Scan(
		&p.ID,
		&p.Name,
		&p.Price,
		&p.Stock,
		&p.VendorID,
		&p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product %d: %w", productID, err)
	}

	return &p, nil
}

// UpsertProduct writes a catalog entry. The catalog is managed by an
// external service in production; this exists for seeding and tests.
func (s *Store) UpsertProduct(ctx context.Context, p *domain.Product) error {
	query := `INSERT INTO products (id, name, price, stock, vendor_id, created_at)
	          VALUES ($1, $2, $3, $4, $5, NOW())
	          ON CONFLICT (id) DO UPDATE
	          SET name = EXCLUDED.name, price = EXCLUDED.price,
	              stock = EXCLUDED.stock, vendor_id = EXCLUDED.vendor_id`

	if _, err := s.db.ExecContext(ctx, query, p.ID, p.Name, p.Price, p.Stock, p.VendorID); err != nil {
		return fmt.Errorf("upsert product %d: %w", p.ID, err)
	}
	return nil
}
