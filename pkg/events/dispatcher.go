package events

import (
	"context"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/storefront/pkg/models"
	"go.uber.org/zap"
)

type Ledger interface {
	Record(ctx context.Context, movements ...*models.StockMovement) error
}

type ProductCache interface {
	InvalidateProducts(ctx context.Context, ids ...string) error
}

type Observer interface {
	OrderPlaced(order *models.Order, reserved int)
	OrderCancelled(by models.Role, restored int)
	StatusChanged(to models.OrderStatus)
	Restocked(quantity int)
}

// Sinks are the side effects applied to every event. Nil sinks are skipped.
type Sinks struct {
	Ledger  Ledger
	Cache   ProductCache
	Metrics Observer
}

type flush struct{}

type flushed struct{}

// Dispatcher publishes events to a single actor that applies them in order.
type Dispatcher struct {
	system *actor.ActorSystem
	pid    *actor.PID
	logger *zap.Logger
}

func NewDispatcher(system *actor.ActorSystem, sinks Sinks, logger *zap.Logger) (*Dispatcher, error) {
	props := actor.PropsFromProducer(func() actor.Actor {
		return &dispatchActor{sinks: sinks, logger: logger, timeout: 5 * time.Second}
	})
	pid, err := system.Root.SpawnNamed(props, "event-dispatcher")
	if err != nil {
		return nil, fmt.Errorf("failed to spawn event dispatcher: %w", err)
	}
	return &Dispatcher{system: system, pid: pid, logger: logger}, nil
}

func (d *Dispatcher) Publish(event any) {
	d.system.Root.Send(d.pid, event)
}

// Flush waits until every event published before the call has been handled.
func (d *Dispatcher) Flush(timeout time.Duration) error {
	_, err := d.system.Root.RequestFuture(d.pid, &flush{}, timeout).Result()
	return err
}

// Stop drains the mailbox and stops the actor.
func (d *Dispatcher) Stop(timeout time.Duration) {
	if err := d.Flush(timeout); err != nil {
		d.logger.Warn("Event dispatcher did not drain", zap.Error(err))
	}
	d.system.Root.Stop(d.pid)
}

type dispatchActor struct {
	sinks   Sinks
	logger  *zap.Logger
	timeout time.Duration
}

func (a *dispatchActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *OrderPlaced:
		a.orderPlaced(msg)
	case *OrderCancelled:
		a.orderCancelled(msg)
	case *OrderStatusChanged:
		a.statusChanged(msg)
	case *StockRestocked:
		a.restocked(msg)
	case *flush:
		ctx.Respond(&flushed{})

	case *actor.Started:
		a.logger.Info("Event dispatcher started")
	case *actor.Stopped:
		a.logger.Info("Event dispatcher stopped")
	}
}

func (a *dispatchActor) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.timeout)
}

func (a *dispatchActor) orderPlaced(e *OrderPlaced) {
	ctx, cancel := a.context()
	defer cancel()

	orderID := e.Order.ID.Hex()
	a.record(ctx, movements(e.Reserved, orderID, models.MovementReserve, -1, e.Order.CreatedAt))
	a.invalidate(ctx, e.Reserved)
	if a.sinks.Metrics != nil {
		a.sinks.Metrics.OrderPlaced(e.Order, units(e.Reserved))
	}
	a.notify(e.Order.UserID.Hex(), e.Order.OrderNumber(), "Your order has been placed", e.Order.OrderStatus)
}

func (a *dispatchActor) orderCancelled(e *OrderCancelled) {
	ctx, cancel := a.context()
	defer cancel()

	at := e.Order.UpdatedAt
	if e.Order.CancelledAt != nil {
		at = *e.Order.CancelledAt
	}
	a.record(ctx, movements(e.Restored, e.Order.ID.Hex(), models.MovementRestore, 1, at))
	a.invalidate(ctx, e.Restored)
	if a.sinks.Metrics != nil {
		a.sinks.Metrics.OrderCancelled(e.By, units(e.Restored))
	}
	a.notify(e.Order.UserID.Hex(), e.Order.OrderNumber(), "Your order has been cancelled", e.Order.OrderStatus)
}

func (a *dispatchActor) statusChanged(e *OrderStatusChanged) {
	if a.sinks.Metrics != nil {
		a.sinks.Metrics.StatusChanged(e.To)
	}
	a.logger.Info("Order status notification",
		zap.String("user_id", e.UserID),
		zap.String("order_id", e.OrderID),
		zap.String("from", string(e.From)),
		zap.String("to", string(e.To)))
}

func (a *dispatchActor) restocked(e *StockRestocked) {
	ctx, cancel := a.context()
	defer cancel()

	lines := []StockLine{{ProductID: e.ProductID, Quantity: e.Quantity}}
	a.record(ctx, movements(lines, "", models.MovementRestock, 1, time.Now().UTC()))
	a.invalidate(ctx, lines)
	if a.sinks.Metrics != nil {
		a.sinks.Metrics.Restocked(e.Quantity)
	}
}

func (a *dispatchActor) record(ctx context.Context, rows []*models.StockMovement) {
	if a.sinks.Ledger == nil || len(rows) == 0 {
		return
	}
	if err := a.sinks.Ledger.Record(ctx, rows...); err != nil {
		a.logger.Error("Failed to record stock movements",
			zap.String("order_id", rows[0].OrderID),
			zap.Int("rows", len(rows)),
			zap.Error(err))
	}
}

func (a *dispatchActor) invalidate(ctx context.Context, lines []StockLine) {
	if a.sinks.Cache == nil || len(lines) == 0 {
		return
	}
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	if err := a.sinks.Cache.InvalidateProducts(ctx, ids...); err != nil {
		a.logger.Warn("Failed to invalidate cached products", zap.Strings("product_ids", ids), zap.Error(err))
	}
}

func (a *dispatchActor) notify(userID, orderNumber, message string, status models.OrderStatus) {
	a.logger.Info("Sending notification",
		zap.String("recipient", userID),
		zap.String("order_number", orderNumber),
		zap.String("status", string(status)),
		zap.String("message", message))
}

func movements(lines []StockLine, orderID string, kind models.MovementKind, sign int, at time.Time) []*models.StockMovement {
	rows := make([]*models.StockMovement, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, &models.StockMovement{
			ProductID: l.ProductID,
			OrderID:   orderID,
			Kind:      kind,
			Delta:     sign * l.Quantity,
			CreatedAt: at,
		})
	}
	return rows
}

func units(lines []StockLine) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}
