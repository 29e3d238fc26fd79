package orders

import (
	"slices"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
)

// transitions is the single order state machine. Customers may only cancel
// before fulfilment starts; admins drive fulfilment and may force-cancel a
// confirmed order that has not been handed to the carrier yet.
var transitions = map[models.Role]map[models.OrderStatus][]models.OrderStatus{
	models.RoleCustomer: {
		models.OrderPending:    {models.OrderCancelled},
		models.OrderProcessing: {models.OrderCancelled},
	},
	models.RoleAdmin: {
		models.OrderPending:    {models.OrderConfirmed, models.OrderCancelled},
		models.OrderProcessing: {models.OrderConfirmed, models.OrderCancelled},
		models.OrderConfirmed:  {models.OrderShipped, models.OrderCancelled},
		models.OrderShipped:    {models.OrderDelivered},
	},
}

// adminSettable are the statuses the admin status endpoint accepts as input.
var adminSettable = []models.OrderStatus{
	models.OrderPending,
	models.OrderConfirmed,
	models.OrderShipped,
	models.OrderDelivered,
	models.OrderCancelled,
}

func CanTransition(role models.Role, from, to models.OrderStatus) bool {
	if from.Terminal() {
		return false
	}
	return slices.Contains(transitions[role][from], to)
}

func checkTransition(role models.Role, from, to models.OrderStatus) error {
	if CanTransition(role, from, to) {
		return nil
	}
	if to == models.OrderCancelled {
		return apperr.InvalidTransition("Order cannot be cancelled in its current status: %s", from)
	}
	return apperr.InvalidTransition("Order cannot move from %s to %s", from, to)
}
