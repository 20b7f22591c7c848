package catalog

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/ariefcatur/go-storefront-stock/internal/postgres"
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) GetProduct(ctx context.Context, id string) (*Product, error) {
	var (
		p     Product
		price pgtype.Numeric
	)
	err := r.DB.QueryRow(ctx, `SELECT id, slug, name, price, stock FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Slug, &p.Name, &price, &p.Stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "select product %s", id)
	}
	p.Price = postgres.Decimal(price)
	return &p, nil
}
