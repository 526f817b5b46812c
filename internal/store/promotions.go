package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gostore/marketplace/internal/domain"
)

// FindPromotionByCode looks a promotion up case-insensitively. Activity
// window checks belong to the coupon evaluator, which needs to tell an
// expired code apart from an unknown one; the lookup returns the row either
// way, or (nil, nil) when the code does not exist.
func (s *Store) FindPromotionByCode(ctx context.Context, code string) (*domain.Promotion, error) {
	query := `SELECT id, code, type, value, minimum_purchase, maximum_discount, start_date, end_date
	          FROM promotions WHERE LOWER(code) = LOWER($1)`

	var p domain.Promotion
	err := s.db.QueryRowContext(ctx, query, code).Scan(
		&p.ID,
		&p.Code,
		&p.Type,
		&p.Value,
		&p.MinimumPurchase,
		&p.MaximumDiscount,
		&p.StartDate,
		&p.EndDate,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query promotion %q: %w", code, err)
	}

	return &p, nil
}
