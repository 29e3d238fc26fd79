package orders

import (
	"context"

	"github.com/example/storefront/pkg/models"
)

// ProductStore is the stock side of the workflow. Lookups of unknown ids
// return apperr.ErrNotFound; ConditionalDecrementStock returns
// apperr.ErrInsufficientStock when fewer than amount units are left and never
// lets the counter drop below zero.
type ProductStore interface {
	FindProductByID(ctx context.Context, id string) (*models.Product, error)
	ConditionalDecrementStock(ctx context.Context, id string, amount int) error
	IncrementStock(ctx context.Context, id string, amount int) error
}

// OrderStore persists orders. UpdateOrderStatus only applies when the stored
// status still equals from, otherwise it returns apperr.ErrInvalidTransition.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrderByID(ctx context.Context, id string) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, from models.OrderStatus, change models.StatusChange) error
	ListOrdersByUser(ctx context.Context, userID string) ([]*models.Order, error)
	ListOrders(ctx context.Context, page models.Page) ([]*models.Order, int64, error)
}

// Transactor runs fn as one atomic unit. Store calls made with the ctx passed
// to fn join the unit; fn may be invoked more than once on transient conflicts.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
