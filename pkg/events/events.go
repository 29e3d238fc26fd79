package events

import (
	"github.com/example/storefront/pkg/models"
)

// StockLine is a quantity of one product moved in or out of physical stock.
type StockLine struct {
	ProductID string
	Quantity  int
}

// Messages published after a store change committed.

type OrderPlaced struct {
	Order    *models.Order
	Reserved []StockLine
}

type OrderCancelled struct {
	Order    *models.Order
	Restored []StockLine
	By       models.Role
}

type OrderStatusChanged struct {
	OrderID string
	UserID  string
	From    models.OrderStatus
	To      models.OrderStatus
}

type StockRestocked struct {
	ProductID string
	Quantity  int
}

// Publisher accepts events for asynchronous handling. Publish never blocks on
// the handlers.
type Publisher interface {
	Publish(event any)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(any) {}
