package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository/memory"
)

func setup(t *testing.T) (*Service, *memory.Store, string) {
	t.Helper()
	store := memory.New()
	return NewService(store, store, zap.NewNop()), store, primitive.NewObjectID().Hex()
}

func TestCart_AddMergesAndUpdates(t *testing.T) {
	svc, store, user := setup(t)
	ctx := context.Background()
	lamp := models.NewProduct("Desk Lamp", 25, 5)
	require.NoError(t, store.InsertProducts(ctx, lamp))

	items, err := svc.Add(ctx, user, lamp.ID.Hex(), 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity)

	items, err = svc.Add(ctx, user, lamp.ID.Hex(), 2)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	require.NotNil(t, items[0].Product)
	assert.Equal(t, "Desk Lamp", items[0].Product.Name)

	_, err = svc.Add(ctx, user, lamp.ID.Hex(), 3)
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), "Only 5 of Desk Lamp left")

	items, err = svc.Update(ctx, user, lamp.ID.Hex(), 4)
	require.NoError(t, err)
	assert.Equal(t, 4, items[0].Quantity)

	items, err = svc.Update(ctx, user, lamp.ID.Hex(), 0)
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = svc.Update(ctx, user, lamp.ID.Hex(), 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCart_RemoveAndClear(t *testing.T) {
	svc, store, user := setup(t)
	ctx := context.Background()
	lamp := models.NewProduct("Desk Lamp", 25, 5)
	mug := models.NewProduct("Mug", 5, 5)
	require.NoError(t, store.InsertProducts(ctx, lamp, mug))

	_, err := svc.Add(ctx, user, lamp.ID.Hex(), 1)
	require.NoError(t, err)
	_, err = svc.Add(ctx, user, mug.ID.Hex(), 2)
	require.NoError(t, err)

	items, err := svc.Remove(ctx, user, lamp.ID.Hex())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, mug.ID, items[0].ProductID)

	require.NoError(t, svc.Clear(ctx, user))
	items, err = svc.Cart(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCart_SkipsDeletedProducts(t *testing.T) {
	svc, store, user := setup(t)
	ctx := context.Background()
	lamp := models.NewProduct("Desk Lamp", 25, 5)
	require.NoError(t, store.InsertProducts(ctx, lamp))
	_, err := svc.Add(ctx, user, lamp.ID.Hex(), 1)
	require.NoError(t, err)

	require.NoError(t, store.DeleteProduct(ctx, lamp.ID.Hex()))
	items, err := svc.Cart(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCart_Rejections(t *testing.T) {
	svc, store, user := setup(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, user, primitive.NewObjectID().Hex(), 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.Cart(ctx, "not-a-user")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	old := models.NewProduct("Old Radio", 15, 5)
	old.Status = models.ProductDiscontinued
	require.NoError(t, store.InsertProducts(ctx, old))
	_, err = svc.Add(ctx, user, old.ID.Hex(), 1)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestWishlist(t *testing.T) {
	svc, store, user := setup(t)
	ctx := context.Background()
	lamp := models.NewProduct("Desk Lamp", 25, 5)
	require.NoError(t, store.InsertProducts(ctx, lamp))

	list, err := svc.AddToWishlist(ctx, user, lamp.ID.Hex())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Desk Lamp", list[0].Name)

	_, err = svc.AddToWishlist(ctx, user, lamp.ID.Hex())
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.EqualError(t, err, "Product already in wishlist")

	_, err = svc.AddToWishlist(ctx, user, primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	list, err = svc.RemoveFromWishlist(ctx, user, lamp.ID.Hex())
	require.NoError(t, err)
	assert.Empty(t, list)
}
