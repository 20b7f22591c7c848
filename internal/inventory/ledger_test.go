package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront-stock/internal/postgres/pgtest"
)

func TestUniqueSorted(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, uniqueSorted([]string{"c", "a", "b", "a"}))
	assert.Empty(t, uniqueSorted(nil))
}

func TestLedger(t *testing.T) {
	db := pgtest.New(t)
	ctx := context.Background()
	pgtest.SeedProduct(t, db, "p1", "Headphones", "2999", 5)
	pgtest.SeedProduct(t, db, "p2", "Speaker", "899", 0)

	var l Ledger

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	stock, err := l.Lock(ctx, tx, "p2", "p1", "missing", "p1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p1": 5, "p2": 0}, stock)

	_, err = l.LockOne(ctx, tx, "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)

	require.NoError(t, l.Deduct(ctx, tx, "p1", 5))
	assert.ErrorIs(t, l.Deduct(ctx, tx, "p2", 1), ErrStockUnderflow)
	require.NoError(t, tx.Commit(ctx))

	assert.Equal(t, 0, pgtest.Stock(t, db, "p1"))

	n, err := l.Stock(ctx, db, "p2")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
