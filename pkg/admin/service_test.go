package admin

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository/memory"
)

func TestStats(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.InsertProducts(ctx, models.NewProduct("A", 1, 1), models.NewProduct("B", 1, 1)))
	require.NoError(t, store.SaveCart(ctx, primitive.NewObjectID().Hex(), nil))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	statuses := []models.OrderStatus{
		models.OrderDelivered, models.OrderDelivered, models.OrderCancelled,
		models.OrderProcessing, models.OrderShipped, models.OrderPending,
	}
	var newest *models.Order
	for i, status := range statuses {
		o := &models.Order{
			ID:          primitive.NewObjectID(),
			UserID:      primitive.NewObjectID(),
			OrderStatus: status,
			TotalAmount: float64(100 * (i + 1)),
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, store.CreateOrder(ctx, o))
		newest = o
	}

	stats, err := NewService(store).Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalProducts)
	assert.Equal(t, int64(1), stats.TotalUsers)
	assert.Equal(t, int64(6), stats.TotalOrders)
	assert.Equal(t, 300.0, stats.TotalRevenue)

	require.Len(t, stats.RecentOrders, 5)
	first := stats.RecentOrders[0]
	assert.Equal(t, newest.ID.Hex(), first.ID)
	hex := newest.ID.Hex()
	assert.Equal(t, "ORD"+strings.ToUpper(hex[len(hex)-6:]), first.OrderNumber)
	assert.Equal(t, models.OrderPending, first.OrderStatus)
}

type failingStore struct {
	*memory.Store
}

func (failingStore) DeliveredRevenue(context.Context) (float64, error) {
	return 0, errors.New("aggregate failed")
}

func TestStats_Failure(t *testing.T) {
	_, err := NewService(failingStore{memory.New()}).Stats(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}
