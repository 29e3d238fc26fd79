package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
)

func newRedis(t *testing.T) (*RedisRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	repo := NewRedisRepository(&config.RedisConfig{Addr: mr.Addr()})
	t.Cleanup(func() { _ = repo.Close() })
	return repo, mr
}

func TestRedis_ProductCache(t *testing.T) {
	repo, mr := newRedis(t)
	ctx := context.Background()
	p := models.NewProduct("Desk Lamp", 25, 5)

	_, ok, err := repo.GetProduct(ctx, p.ID.Hex())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.SetProduct(ctx, p, time.Minute))
	got, ok, err := repo.GetProduct(ctx, p.ID.Hex())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, 5, got.StockQuantity)

	require.NoError(t, repo.InvalidateProducts(ctx, p.ID.Hex()))
	_, ok, err = repo.GetProduct(ctx, p.ID.Hex())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.SetProduct(ctx, p, time.Minute))
	mr.FastForward(2 * time.Minute)
	_, ok, err = repo.GetProduct(ctx, p.ID.Hex())
	require.NoError(t, err)
	assert.False(t, ok, "entries expire")
}

func TestRedis_IdempotencyKeys(t *testing.T) {
	repo, _ := newRedis(t)
	ctx := context.Background()

	ok, orderID, err := repo.ClaimIdempotencyKey(ctx, "u1", "k1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, orderID)

	ok, orderID, err = repo.ClaimIdempotencyKey(ctx, "u1", "k1", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, orderID, "first request still in flight")

	ok, _, err = repo.ClaimIdempotencyKey(ctx, "u2", "k1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "keys are scoped per user")

	require.NoError(t, repo.CompleteIdempotencyKey(ctx, "u1", "k1", "order-1", time.Hour))
	ok, orderID, err = repo.ClaimIdempotencyKey(ctx, "u1", "k1", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "order-1", orderID)

	require.NoError(t, repo.ReleaseIdempotencyKey(ctx, "u2", "k1"))
	ok, _, err = repo.ClaimIdempotencyKey(ctx, "u2", "k1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedis_Ping(t *testing.T) {
	repo, mr := newRedis(t)
	require.NoError(t, repo.Ping(context.Background()))
	mr.Close()
	assert.Error(t, repo.Ping(context.Background()))
}
