package gateway

import (
	"context"
	"net/http"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/orders"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const headerIdempotencyKey = "Idempotency-Key"

// createOrderRequest mirrors the checkout payload. Client-side names, prices
// and images of the items are ignored; the order snapshots the catalog.
type createOrderRequest struct {
	Items []struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	ShippingAddress *models.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   models.PaymentMethod    `json:"paymentMethod"`
	TotalAmount     float64                 `json:"totalAmount"`
	Subtotal        *float64                `json:"subtotal"`
	Shipping        float64                 `json:"shipping"`
	Tax             float64                 `json:"tax"`
}

func (r createOrderRequest) toPlaceOrder(userID string) orders.PlaceOrderRequest {
	req := orders.PlaceOrderRequest{
		UserID:          userID,
		Items:           make([]orders.ItemRequest, len(r.Items)),
		ShippingAddress: r.ShippingAddress,
		PaymentMethod:   r.PaymentMethod,
		Totals: orders.Totals{
			TotalAmount: r.TotalAmount,
			Subtotal:    r.Subtotal,
			Shipping:    r.Shipping,
			Tax:         r.Tax,
		},
	}
	for i, item := range r.Items {
		req.Items[i] = orders.ItemRequest{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return req
}

// createOrder godoc
// @Summary Place an order
// @Description Reserves stock for every line and creates the order, or changes nothing.
// @Param Idempotency-Key header string false "Retry key"
// @Router /orders [post]
func (g *Gateway) createOrder(c *gin.Context) {
	var body createOrderRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "All fields are required")
		return
	}
	ctx := c.Request.Context()
	user := principal(c)

	key := c.GetHeader(headerIdempotencyKey)
	if key != "" && g.services.Idempotency != nil {
		done, handled := g.claimIdempotencyKey(c, user, key)
		if handled {
			return
		}
		defer done()
	}

	order, err := g.services.Orders.PlaceOrder(ctx, body.toPlaceOrder(user.UserID))
	if err != nil {
		g.fail(c, err, "Error creating order")
		return
	}
	c.Set("order_id", order.ID.Hex())

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Order created successfully",
		"order":   order,
	})
}

// claimIdempotencyKey answers retries of a request already seen. When the
// request should proceed it returns a func that records its outcome.
func (g *Gateway) claimIdempotencyKey(c *gin.Context, user models.Principal, key string) (func(), bool) {
	ctx := c.Request.Context()
	store := g.services.Idempotency
	ttl := g.config.Orders.IdempotencyTTL

	ok, orderID, err := store.ClaimIdempotencyKey(ctx, user.UserID, key, ttl)
	if err != nil {
		g.logger.Warn("Idempotency store unavailable, placing order without it", zap.Error(err))
		return func() {}, false
	}
	if !ok {
		if orderID == "" {
			g.fail(c, apperr.New(apperr.KindConflict, "An order with this Idempotency-Key is still being processed"), "")
			return nil, true
		}
		order, err := g.services.Orders.GetOrder(ctx, orderID, user)
		if err != nil {
			g.fail(c, err, "Error fetching order")
			return nil, true
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Order already created",
			"order":   order,
		})
		return nil, true
	}

	return func() {
		bg := context.WithoutCancel(ctx)
		if id := c.GetString("order_id"); id != "" {
			if err := store.CompleteIdempotencyKey(bg, user.UserID, key, id, ttl); err != nil {
				g.logger.Warn("Failed to record idempotency key", zap.String("order_id", id), zap.Error(err))
			}
			return
		}
		if err := store.ReleaseIdempotencyKey(bg, user.UserID, key); err != nil {
			g.logger.Warn("Failed to release idempotency key", zap.Error(err))
		}
	}, false
}

func (g *Gateway) myOrders(c *gin.Context) {
	list, err := g.services.Orders.ListUserOrders(c.Request.Context(), principal(c).UserID)
	if err != nil {
		g.fail(c, err, "Error fetching orders")
		return
	}
	if list == nil {
		list = []*models.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": list})
}

func (g *Gateway) getOrder(c *gin.Context) {
	order, err := g.services.Orders.GetOrder(c.Request.Context(), c.Param("id"), principal(c))
	if err != nil {
		g.fail(c, err, "Error fetching order")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
}

// cancelOrder godoc
// @Summary Cancel an order
// @Description Only the owner may cancel, and only while pending or processing. Reserved stock is restored.
// @Param id path string true "Order ID"
// @Router /orders/{id}/cancel [put]
func (g *Gateway) cancelOrder(c *gin.Context) {
	order, err := g.services.Orders.CancelOrder(c.Request.Context(), c.Param("id"), principal(c).UserID)
	if err != nil {
		g.fail(c, err, "Error cancelling order")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Order cancelled successfully",
		"order":   order,
	})
}
