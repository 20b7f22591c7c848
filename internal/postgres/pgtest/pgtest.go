// Package pgtest starts a throwaway Postgres for package tests.
package pgtest

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/ariefcatur/go-storefront-stock/internal/postgres"
)

// New returns a migrated pool backed by a fresh postgres:16-alpine container.
// The test is skipped under -short or when no container runtime is reachable.
func New(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container tests skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pgC, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("storefront"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		tcpostgres.BasicWaitStrategies(),
	)
	t.Cleanup(func() {
		if pgC != nil {
			_ = pgC.Terminate(context.Background())
		}
	})
	require.NoError(t, err)

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := postgres.Connect(ctx, dsn, 32)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Migrate(ctx, pool))
	return pool
}

// SeedProduct inserts (or resets) a product row.
func SeedProduct(t *testing.T, db postgres.DBTX, id, name, price string, stock int) {
	t.Helper()
	_, err := db.Exec(context.Background(), `
		INSERT INTO products(id, slug, name, price, stock)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name=$3, price=$4, stock=$5`,
		id, id+"-slug", name, postgres.Numeric(decimal.RequireFromString(price)), stock)
	require.NoError(t, err)
}

func Stock(t *testing.T, db postgres.DBTX, id string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(context.Background(), `SELECT stock FROM products WHERE id=$1`, id).Scan(&n))
	return n
}

func Count(t *testing.T, db postgres.DBTX, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(context.Background(), `SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}
