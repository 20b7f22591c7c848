package redisx_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront-stock/internal/redisx"
	"github.com/ariefcatur/go-storefront-stock/internal/redisx/redistest"
)

func TestLease(t *testing.T) {
	rdb := redistest.New(t)
	ctx := context.Background()

	ok, err := redisx.TryLock(ctx, rdb, redisx.KeySweepLock, "worker-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = redisx.TryLock(ctx, rdb, redisx.KeySweepLock, "worker-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// only the owner can release
	require.NoError(t, redisx.Unlock(ctx, rdb, redisx.KeySweepLock, "worker-b"))
	held, err := redisx.Exists(ctx, rdb, redisx.KeySweepLock)
	require.NoError(t, err)
	assert.True(t, held)

	require.NoError(t, redisx.Unlock(ctx, rdb, redisx.KeySweepLock, "worker-a"))
	held, err = redisx.Exists(ctx, rdb, redisx.KeySweepLock)
	require.NoError(t, err)
	assert.False(t, held)
}
