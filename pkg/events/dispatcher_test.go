package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/models"
)

type fakeSinks struct {
	mu          sync.Mutex
	rows        []*models.StockMovement
	invalidated []string
	placed      int
	cancelledBy []models.Role
	statuses    []models.OrderStatus
	restocked   int
	ledgerErr   error
}

func (f *fakeSinks) Record(_ context.Context, rows ...*models.StockMovement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ledgerErr != nil {
		return f.ledgerErr
	}
	f.rows = append(f.rows, rows...)
	return nil
}

func (f *fakeSinks) InvalidateProducts(_ context.Context, ids ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, ids...)
	return nil
}

func (f *fakeSinks) OrderPlaced(*models.Order, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed++
}

func (f *fakeSinks) OrderCancelled(by models.Role, _ int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelledBy = append(f.cancelledBy, by)
}

func (f *fakeSinks) StatusChanged(to models.OrderStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, to)
}

func (f *fakeSinks) Restocked(quantity int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restocked += quantity
}

func newDispatcher(t *testing.T, sinks *fakeSinks) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(actor.NewActorSystem(), Sinks{Ledger: sinks, Cache: sinks, Metrics: sinks}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { d.Stop(time.Second) })
	return d
}

func TestDispatcher_AppliesEventsInOrder(t *testing.T) {
	sinks := &fakeSinks{}
	d := newDispatcher(t, sinks)

	order := &models.Order{
		ID:          primitive.NewObjectID(),
		UserID:      primitive.NewObjectID(),
		OrderStatus: models.OrderProcessing,
		CreatedAt:   time.Now().UTC(),
	}
	lines := []StockLine{{ProductID: "p1", Quantity: 3}, {ProductID: "p2", Quantity: 1}}

	d.Publish(&OrderPlaced{Order: order, Reserved: lines})
	d.Publish(&OrderStatusChanged{OrderID: order.ID.Hex(), From: models.OrderProcessing, To: models.OrderConfirmed})
	cancelled := order.Clone()
	cancelled.OrderStatus = models.OrderCancelled
	d.Publish(&OrderCancelled{Order: cancelled, Restored: lines[:1], By: models.RoleAdmin})
	d.Publish(&StockRestocked{ProductID: "p2", Quantity: 10})
	require.NoError(t, d.Flush(time.Second))

	sinks.mu.Lock()
	defer sinks.mu.Unlock()

	require.Len(t, sinks.rows, 4)
	assert.Equal(t, models.MovementReserve, sinks.rows[0].Kind)
	assert.Equal(t, -3, sinks.rows[0].Delta)
	assert.Equal(t, order.ID.Hex(), sinks.rows[0].OrderID)
	assert.Equal(t, -1, sinks.rows[1].Delta)
	assert.Equal(t, models.MovementRestore, sinks.rows[2].Kind)
	assert.Equal(t, 3, sinks.rows[2].Delta)
	assert.Equal(t, models.MovementRestock, sinks.rows[3].Kind)
	assert.Equal(t, 10, sinks.rows[3].Delta)

	assert.Equal(t, []string{"p1", "p2", "p1", "p2"}, sinks.invalidated)
	assert.Equal(t, 1, sinks.placed)
	assert.Equal(t, []models.Role{models.RoleAdmin}, sinks.cancelledBy)
	assert.Equal(t, []models.OrderStatus{models.OrderConfirmed}, sinks.statuses)
	assert.Equal(t, 10, sinks.restocked)
}

func TestDispatcher_LedgerFailureDoesNotStopProcessing(t *testing.T) {
	sinks := &fakeSinks{ledgerErr: errors.New("mysql is down")}
	d := newDispatcher(t, sinks)

	d.Publish(&StockRestocked{ProductID: "p1", Quantity: 2})
	d.Publish(&StockRestocked{ProductID: "p1", Quantity: 3})
	require.NoError(t, d.Flush(time.Second))

	sinks.mu.Lock()
	defer sinks.mu.Unlock()
	assert.Empty(t, sinks.rows)
	assert.Equal(t, 5, sinks.restocked)
	assert.Equal(t, []string{"p1", "p1"}, sinks.invalidated)
}

func TestDispatcher_NilSinks(t *testing.T) {
	d, err := NewDispatcher(actor.NewActorSystem(), Sinks{}, zap.NewNop())
	require.NoError(t, err)
	defer d.Stop(time.Second)

	d.Publish(&OrderPlaced{Order: &models.Order{ID: primitive.NewObjectID()}})
	d.Publish("unknown event")
	assert.NoError(t, d.Flush(time.Second))
}
