// Package orders implements stock reservation at checkout and the order
// lifecycle that follows it.
//
// Placement validates every line against current stock, takes the stock with
// guarded decrements and inserts the order inside one Transactor unit, so a
// rejected order leaves no product touched. Cancellation gives the reserved
// units back. Every status change, customer or admin, goes through the same
// transition table.
package orders

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/events"
	"github.com/example/storefront/pkg/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Options struct {
	// HonorBackorders lets products flagged allowBackorders accept lines
	// larger than their stock. Only the units on hand are reserved.
	HonorBackorders bool
	// TotalTolerance is the largest accepted difference between the client's
	// totals and the server-computed ones.
	TotalTolerance float64
}

type Service struct {
	products ProductStore
	orders   OrderStore
	tx       Transactor
	events   events.Publisher
	logger   *zap.Logger
	opts     Options
	now      func() time.Time
}

func NewService(products ProductStore, orders OrderStore, tx Transactor, publisher events.Publisher, logger *zap.Logger, opts Options) *Service {
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &Service{
		products: products,
		orders:   orders,
		tx:       tx,
		events:   publisher,
		logger:   logger,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type ItemRequest struct {
	ProductID string
	Quantity  int
}

type PlaceOrderRequest struct {
	UserID          string
	Items           []ItemRequest
	ShippingAddress *models.ShippingAddress
	PaymentMethod   models.PaymentMethod
	Totals          Totals
}

// validate checks the request shape and merges repeated products into one line.
func (r PlaceOrderRequest) validate() (primitive.ObjectID, []ItemRequest, error) {
	userID, err := primitive.ObjectIDFromHex(r.UserID)
	if err != nil {
		return primitive.NilObjectID, nil, apperr.Validation("Invalid user id")
	}
	if len(r.Items) == 0 || r.ShippingAddress == nil || r.PaymentMethod == "" || r.Totals.TotalAmount <= 0 {
		return primitive.NilObjectID, nil, apperr.Validation("All fields are required")
	}
	if missing := r.ShippingAddress.MissingFields(); len(missing) > 0 {
		return primitive.NilObjectID, nil, apperr.Validation("Shipping address is missing: %s", strings.Join(missing, ", "))
	}
	if !r.PaymentMethod.Valid() {
		return primitive.NilObjectID, nil, apperr.Validation("Invalid payment method: %s", r.PaymentMethod)
	}
	if r.Totals.Shipping < 0 || r.Totals.Tax < 0 {
		return primitive.NilObjectID, nil, apperr.Validation("Shipping and tax must not be negative")
	}

	merged := make([]ItemRequest, 0, len(r.Items))
	index := make(map[string]int, len(r.Items))
	for _, item := range r.Items {
		if item.ProductID == "" {
			return primitive.NilObjectID, nil, apperr.Validation("Every item needs a productId")
		}
		if item.Quantity < 1 {
			return primitive.NilObjectID, nil, apperr.Validation("Quantity must be at least 1")
		}
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return userID, merged, nil
}

// reservation is one validated line: the product as read and how much of the
// requested quantity comes out of stock.
type reservation struct {
	product     *models.Product
	quantity    int
	reserve     int
	backordered int
}

func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*models.Order, error) {
	userID, items, err := req.validate()
	if err != nil {
		return nil, err
	}

	var (
		order    *models.Order
		reserved []events.StockLine
	)
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		plan, err := s.checkStock(ctx, items)
		if err != nil {
			return err
		}

		o, err := s.buildOrder(userID, plan, req)
		if err != nil {
			return err
		}

		done, err := s.reserve(ctx, plan)
		if err != nil {
			return err
		}

		if err := s.orders.CreateOrder(ctx, o); err != nil {
			s.release(ctx, done)
			return apperr.Internal(err, "failed to create order")
		}
		order, reserved = o, done
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			s.logger.Error("Failed to place order", zap.String("user_id", req.UserID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("Order placed",
		zap.String("order_id", order.ID.Hex()),
		zap.String("user_id", order.UserID.Hex()),
		zap.Int("items", len(order.Items)),
		zap.Float64("total_amount", order.TotalAmount))

	s.events.Publish(&events.OrderPlaced{Order: order.Clone(), Reserved: reserved})

	s.populate(ctx, order)
	return order, nil
}

// checkStock reads every product before anything is written.
func (s *Service) checkStock(ctx context.Context, items []ItemRequest) ([]reservation, error) {
	plan := make([]reservation, 0, len(items))
	for _, item := range items {
		p, err := s.products.FindProductByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, apperr.NotFound("Product %s not found", item.ProductID)
			}
			return nil, apperr.Internal(err, "failed to load product %s", item.ProductID)
		}
		if p.Status == models.ProductInactive || p.Status == models.ProductDiscontinued {
			return nil, apperr.Validation("%s is not available for purchase", p.Name)
		}
		if p.MaxOrderQuantity > 0 && item.Quantity > p.MaxOrderQuantity {
			return nil, apperr.Validation("Cannot order more than %d of %s", p.MaxOrderQuantity, p.Name)
		}

		r := reservation{product: p, quantity: item.Quantity}
		switch {
		case !p.TrackInventory:
		case p.StockQuantity >= item.Quantity:
			r.reserve = item.Quantity
		case s.opts.HonorBackorders && p.AllowBackorders:
			r.reserve = p.StockQuantity
			r.backordered = item.Quantity - p.StockQuantity
		default:
			return nil, apperr.InsufficientStock(p.Name, p.StockQuantity, item.Quantity)
		}
		plan = append(plan, r)
	}
	return plan, nil
}

func (s *Service) buildOrder(userID primitive.ObjectID, plan []reservation, req PlaceOrderRequest) (*models.Order, error) {
	now := s.now()
	o := &models.Order{
		ID:              primitive.NewObjectID(),
		UserID:          userID,
		Items:           make([]models.LineItem, len(plan)),
		ShippingAddress: *req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   models.PaymentCompleted,
		OrderStatus:     models.OrderProcessing,
		IsPaid:          true,
		PaidAt:          &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.PaymentMethod == models.PaymentCOD {
		o.PaymentStatus = models.PaymentPending
		o.IsPaid = false
		o.PaidAt = nil
	}
	for i, r := range plan {
		o.Items[i] = models.LineItem{
			ProductID:           r.product.ID,
			Name:                r.product.Name,
			Price:               r.product.Price,
			Image:               r.product.Image,
			Quantity:            r.quantity,
			ReservedQuantity:    r.reserve,
			BackorderedQuantity: r.backordered,
		}
	}

	totals, err := price(o.Items, req.Totals, s.opts.TotalTolerance)
	if err != nil {
		return nil, err
	}
	totals.apply(o)
	return o, nil
}

// reserve takes stock line by line. On failure the lines already taken are
// given back before returning, so callers without a transaction are left
// with the stock they started with.
func (s *Service) reserve(ctx context.Context, plan []reservation) ([]events.StockLine, error) {
	done := make([]events.StockLine, 0, len(plan))
	for _, r := range plan {
		if r.reserve == 0 {
			continue
		}
		id := r.product.ID.Hex()
		if err := s.products.ConditionalDecrementStock(ctx, id, r.reserve); err != nil {
			s.release(ctx, done)
			switch {
			case errors.Is(err, apperr.ErrInsufficientStock):
				available := 0
				if p, ferr := s.products.FindProductByID(ctx, id); ferr == nil {
					available = p.StockQuantity
				}
				return nil, apperr.InsufficientStock(r.product.Name, available, r.quantity)
			case errors.Is(err, apperr.ErrNotFound):
				return nil, apperr.NotFound("Product %s not found", id)
			default:
				return nil, apperr.Internal(err, "failed to reserve stock for %s", id)
			}
		}
		done = append(done, events.StockLine{ProductID: id, Quantity: r.reserve})
	}
	return done, nil
}

func (s *Service) release(ctx context.Context, lines []events.StockLine) {
	for _, line := range lines {
		if err := s.products.IncrementStock(ctx, line.ProductID, line.Quantity); err != nil {
			s.logger.Error("Failed to release reserved stock",
				zap.String("product_id", line.ProductID),
				zap.Int("quantity", line.Quantity),
				zap.Error(err))
		}
	}
}

// CancelOrder is the customer path: only the owner may cancel, and only
// before fulfilment starts.
func (s *Service) CancelOrder(ctx context.Context, orderID, userID string) (*models.Order, error) {
	by := models.Principal{UserID: userID, Role: models.RoleCustomer}
	return s.transition(ctx, orderID, by, models.OrderCancelled, true)
}

// UpdateStatus is the admin path. It obeys the same transition table as
// CancelOrder, with the admin column.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, by models.Principal, to models.OrderStatus) (*models.Order, error) {
	if !by.IsAdmin() {
		return nil, apperr.AccessDenied("Access denied")
	}
	if !slices.Contains(adminSettable, to) {
		return nil, apperr.Validation("Invalid order status")
	}
	return s.transition(ctx, orderID, by, to, false)
}

func (s *Service) transition(ctx context.Context, orderID string, by models.Principal, to models.OrderStatus, ownerOnly bool) (*models.Order, error) {
	var (
		updated  *models.Order
		from     models.OrderStatus
		restored []events.StockLine
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.findOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if ownerOnly && o.UserID.Hex() != by.UserID {
			return apperr.AccessDenied("Access denied")
		}
		if err := checkTransition(by.Role, o.OrderStatus, to); err != nil {
			return err
		}

		change := s.statusChange(o, to)
		if err := s.orders.UpdateOrderStatus(ctx, orderID, o.OrderStatus, change); err != nil {
			if errors.Is(err, apperr.ErrInvalidTransition) {
				return apperr.InvalidTransition("Order was updated concurrently, please retry")
			}
			return apperr.Internal(err, "failed to update order %s", orderID)
		}

		var lines []events.StockLine
		if to == models.OrderCancelled {
			if lines, err = s.restoreStock(ctx, o); err != nil {
				return err
			}
		}

		from = o.OrderStatus
		change.Apply(o)
		updated, restored = o, lines
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			s.logger.Error("Failed to update order status",
				zap.String("order_id", orderID),
				zap.String("to", string(to)),
				zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("Order status changed",
		zap.String("order_id", orderID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("by", string(by.Role)))

	if to == models.OrderCancelled {
		s.events.Publish(&events.OrderCancelled{Order: updated.Clone(), Restored: restored, By: by.Role})
	} else {
		s.events.Publish(&events.OrderStatusChanged{
			OrderID: orderID,
			UserID:  updated.UserID.Hex(),
			From:    from,
			To:      to,
		})
	}

	s.populate(ctx, updated)
	return updated, nil
}

func (s *Service) statusChange(o *models.Order, to models.OrderStatus) models.StatusChange {
	now := s.now()
	change := models.StatusChange{To: to, At: now}
	switch to {
	case models.OrderDelivered:
		change.DeliveredAt = &now
		if o.PaymentMethod == models.PaymentCOD && !o.IsPaid {
			paid := true
			change.IsPaid = &paid
			change.PaidAt = &now
			change.PaymentStatus = models.PaymentCompleted
		}
	case models.OrderCancelled:
		change.CancelledAt = &now
	}
	return change
}

// restoreStock gives every reserved unit back. Products deleted since the
// order was placed are skipped.
func (s *Service) restoreStock(ctx context.Context, o *models.Order) ([]events.StockLine, error) {
	var lines []events.StockLine
	for _, item := range o.Items {
		if item.ReservedQuantity == 0 {
			continue
		}
		id := item.ProductID.Hex()
		if err := s.products.IncrementStock(ctx, id, item.ReservedQuantity); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				s.logger.Warn("Skipping stock restore for missing product",
					zap.String("order_id", o.ID.Hex()),
					zap.String("product_id", id))
				continue
			}
			return nil, apperr.Internal(err, "failed to restore stock for %s", id)
		}
		lines = append(lines, events.StockLine{ProductID: id, Quantity: item.ReservedQuantity})
	}
	return lines, nil
}

func (s *Service) findOrder(ctx context.Context, orderID string) (*models.Order, error) {
	o, err := s.orders.FindOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("Order not found")
		}
		return nil, apperr.Internal(err, "failed to load order %s", orderID)
	}
	return o, nil
}

// GetOrder returns an order to its owner or to an admin.
func (s *Service) GetOrder(ctx context.Context, orderID string, by models.Principal) (*models.Order, error) {
	o, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID.Hex() != by.UserID && !by.IsAdmin() {
		return nil, apperr.AccessDenied("Access denied")
	}
	s.populate(ctx, o)
	return o, nil
}

func (s *Service) ListUserOrders(ctx context.Context, userID string) ([]*models.Order, error) {
	list, err := s.orders.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list orders for %s", userID)
	}
	s.populate(ctx, list...)
	return list, nil
}

func (s *Service) ListOrders(ctx context.Context, page models.Page) ([]*models.Order, models.Pagination, error) {
	page = page.Normalize(10)
	list, total, err := s.orders.ListOrders(ctx, page)
	if err != nil {
		return nil, models.Pagination{}, apperr.Internal(err, "failed to list orders")
	}
	return list, models.NewPagination(page, total), nil
}

// populate attaches the live product to each line for responses. Missing
// products leave the snapshot alone.
func (s *Service) populate(ctx context.Context, list ...*models.Order) {
	seen := make(map[primitive.ObjectID]*models.Product)
	for _, o := range list {
		for i := range o.Items {
			id := o.Items[i].ProductID
			p, ok := seen[id]
			if !ok {
				var err error
				p, err = s.products.FindProductByID(ctx, id.Hex())
				if err != nil && !errors.Is(err, apperr.ErrNotFound) {
					s.logger.Warn("Failed to load product for order line",
						zap.String("order_id", o.ID.Hex()),
						zap.String("product_id", id.Hex()),
						zap.Error(err))
				}
				seen[id] = p
			}
			o.Items[i].Product = p
		}
	}
}
