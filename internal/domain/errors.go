package domain

import (
	"errors"
	"fmt"
)

// ErrProductNotFound is returned when a referenced product id does not
// exist in the catalog.
var ErrProductNotFound = errors.New("product not found")

// InsufficientStockError is returned when a requested quantity exceeds the
// available stock, at add-to-cart, quantity-update, or checkout time. It
// carries the product name so callers can say which line failed.
type InsufficientStockError struct {
	ProductName string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %q", e.ProductName)
}
