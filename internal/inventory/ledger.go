// Package inventory is the durable per-product stock ledger. Stock only moves
// through Deduct at checkout; reads that feed a stock decision go
// through Lock so concurrent writers on the same product serialize.
package inventory

import (
	"context"
	"errors"
	"sort"

	pkgerrors "github.com/pkg/errors"

	"github.com/ariefcatur/go-storefront-stock/internal/postgres"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrStockUnderflow  = errors.New("stock would go negative")
)

type Ledger struct{}

// Lock takes FOR UPDATE row locks on the given products, in ascending id order,
// and returns their current stock. Ids with no row are absent from the result.
// Must be called inside a transaction; locks are held until it ends.
func (Ledger) Lock(ctx context.Context, tx postgres.DBTX, productIDs ...string) (map[string]int, error) {
	ids := uniqueSorted(productIDs)
	rows, err := tx.Query(ctx, `SELECT id, stock FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "lock products")
	}
	defer rows.Close()

	out := make(map[string]int, len(ids))
	for rows.Next() {
		var (
			id    string
			stock int
		)
		if err := rows.Scan(&id, &stock); err != nil {
			return nil, pkgerrors.Wrap(err, "scan product stock")
		}
		out[id] = stock
	}
	return out, pkgerrors.Wrap(rows.Err(), "lock products")
}

// LockOne is Lock for a single product; a missing row is ErrProductNotFound.
func (l Ledger) LockOne(ctx context.Context, tx postgres.DBTX, productID string) (int, error) {
	m, err := l.Lock(ctx, tx, productID)
	if err != nil {
		return 0, err
	}
	stock, ok := m[productID]
	if !ok {
		return 0, ErrProductNotFound
	}
	return stock, nil
}

// Stock reads total stock without locking. Display only.
func (Ledger) Stock(ctx context.Context, db postgres.DBTX, productID string) (int, error) {
	var stock int
	err := db.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1`, productID).Scan(&stock)
	if err != nil {
		return 0, err
	}
	return stock, nil
}

func (Ledger) Deduct(ctx context.Context, tx postgres.DBTX, productID string, qty int) error {
	ct, err := tx.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		return pkgerrors.Wrapf(err, "deduct stock %s", productID)
	}
	if ct.RowsAffected() != 1 {
		return ErrStockUnderflow
	}
	return nil
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
