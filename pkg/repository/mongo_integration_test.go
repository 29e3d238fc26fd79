//go:build integration

package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
)

func newMongo(t *testing.T) *MongoRepository {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := mongodb.Run(ctx, "mongo:7", mongodb.WithReplicaSet("rs0"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	repo, err := NewMongoRepository(ctx, &config.MongoDBConfig{
		URI:          uri + "/?directConnection=true",
		Database:     "storefront_test",
		Transactions: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close(context.Background()) })
	require.NoError(t, repo.EnsureIndexes(ctx))
	return repo
}

func TestMongo_StockGuard(t *testing.T) {
	repo := newMongo(t)
	ctx := context.Background()
	p := models.NewProduct("Desk Lamp", 25, 5)
	require.NoError(t, repo.InsertProducts(ctx, p))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.ConditionalDecrementStock(ctx, p.ID.Hex(), 2); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 2, ok)

	got, err := repo.FindProductByID(ctx, p.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 1, got.StockQuantity)
	assert.Equal(t, 4, got.TotalSold)

	require.NoError(t, repo.ConditionalDecrementStock(ctx, p.ID.Hex(), 1))
	got, err = repo.FindProductByID(ctx, p.ID.Hex())
	require.NoError(t, err)
	assert.False(t, got.InStock)
	assert.Equal(t, models.ProductOutOfStock, got.Status)

	require.NoError(t, repo.IncrementStock(ctx, p.ID.Hex(), 3))
	got, err = repo.FindProductByID(ctx, p.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 3, got.StockQuantity)
	assert.Equal(t, 2, got.TotalSold)
	assert.Equal(t, models.ProductActive, got.Status)

	err = repo.ConditionalDecrementStock(ctx, primitive.NewObjectID().Hex(), 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMongo_TransactionRollsBack(t *testing.T) {
	repo := newMongo(t)
	ctx := context.Background()
	p := models.NewProduct("Kettle", 40, 5)
	require.NoError(t, repo.InsertProducts(ctx, p))

	err := repo.WithTransaction(ctx, func(ctx context.Context) error {
		if err := repo.ConditionalDecrementStock(ctx, p.ID.Hex(), 3); err != nil {
			return err
		}
		return apperr.InsufficientStock("Mug", 0, 1)
	})
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)

	got, err := repo.FindProductByID(ctx, p.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 5, got.StockQuantity)
}

func TestMongo_OrderStatusCompareAndSet(t *testing.T) {
	repo := newMongo(t)
	ctx := context.Background()
	o := &models.Order{
		UserID:      primitive.NewObjectID(),
		OrderStatus: models.OrderProcessing,
		TotalAmount: 120,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.CreateOrder(ctx, o))

	now := time.Now().UTC()
	change := models.StatusChange{To: models.OrderCancelled, At: now, CancelledAt: &now}
	require.NoError(t, repo.UpdateOrderStatus(ctx, o.ID.Hex(), models.OrderProcessing, change))
	err := repo.UpdateOrderStatus(ctx, o.ID.Hex(), models.OrderProcessing, change)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	got, err := repo.FindOrderByID(ctx, o.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, got.OrderStatus)
	assert.NotNil(t, got.CancelledAt)

	mine, err := repo.ListOrdersByUser(ctx, o.UserID.Hex())
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestMongo_Wishlist(t *testing.T) {
	repo := newMongo(t)
	ctx := context.Background()
	user := primitive.NewObjectID().Hex()
	product := primitive.NewObjectID().Hex()

	added, err := repo.AddToWishlist(ctx, user, product)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = repo.AddToWishlist(ctx, user, product)
	require.NoError(t, err)
	assert.False(t, added)

	require.NoError(t, repo.RemoveFromWishlist(ctx, user, product))
	u, err := repo.FindUser(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, u.Wishlist)
}
