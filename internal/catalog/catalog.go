package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("product not found")

type Product struct {
	ID    string          `json:"id"`
	Slug  string          `json:"slug"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	// Stock is informational only; stock decisions re-read it under a row lock.
	Stock int `json:"stock"`
}

// Lookup resolves a product by id. Implementations return ErrNotFound for unknown ids.
type Lookup interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
}
