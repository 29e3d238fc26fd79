package gateway

import (
	"net/http"

	"github.com/example/storefront/pkg/models"
	"github.com/gin-gonic/gin"
)

type statusRequest struct {
	Status models.OrderStatus `json:"status"`
}

type restockRequest struct {
	Quantity int `json:"quantity"`
}

func (g *Gateway) dashboardStats(c *gin.Context) {
	stats, err := g.services.Admin.Stats(c.Request.Context())
	if err != nil {
		g.fail(c, err, "Error fetching dashboard statistics")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

func (g *Gateway) adminProducts(c *gin.Context) {
	list, page, err := g.services.Catalog.ListProducts(c.Request.Context(), models.ProductFilter{Page: pageQuery(c, 50)})
	if err != nil {
		g.fail(c, err, "Error fetching products")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "products": viewProducts(list), "pagination": page})
}

func (g *Gateway) adminOrders(c *gin.Context) {
	list, page, err := g.services.Orders.ListOrders(c.Request.Context(), pageQuery(c, 10))
	if err != nil {
		g.fail(c, err, "Error fetching orders")
		return
	}
	if list == nil {
		list = []*models.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": list, "pagination": page})
}

func (g *Gateway) adminOrder(c *gin.Context) {
	order, err := g.services.Orders.GetOrder(c.Request.Context(), c.Param("id"), principal(c))
	if err != nil {
		g.fail(c, err, "Error fetching order details")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
}

// updateOrderStatus godoc
// @Summary Move an order through fulfilment
// @Description Accepts pending, confirmed, shipped, delivered or cancelled, subject to the transition table.
// @Param id path string true "Order ID"
// @Router /admin/orders/{id}/status [put]
func (g *Gateway) updateOrderStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid order status")
		return
	}
	order, err := g.services.Orders.UpdateStatus(c.Request.Context(), c.Param("id"), principal(c), req.Status)
	if err != nil {
		g.fail(c, err, "Error updating order status")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Order status updated successfully",
		"order":   order,
	})
}

func (g *Gateway) restockProduct(c *gin.Context) {
	var req restockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "quantity is required")
		return
	}
	p, err := g.services.Catalog.Restock(c.Request.Context(), c.Param("id"), req.Quantity)
	if err != nil {
		g.fail(c, err, "Error restocking product")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Product restocked successfully",
		"product": viewProduct(p),
	})
}

func (g *Gateway) lowStock(c *gin.Context) {
	list, err := g.services.Catalog.LowStock(c.Request.Context())
	if err != nil {
		g.fail(c, err, "Error fetching low stock products")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "products": viewProducts(list), "count": len(list)})
}

func (g *Gateway) outOfStock(c *gin.Context) {
	list, err := g.services.Catalog.OutOfStock(c.Request.Context())
	if err != nil {
		g.fail(c, err, "Error fetching out of stock products")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "products": viewProducts(list), "count": len(list)})
}

func (g *Gateway) stockLedger(c *gin.Context) {
	report, err := g.services.Catalog.Ledger(c.Request.Context(), c.Param("productId"))
	if err != nil {
		g.fail(c, err, "Error fetching stock ledger")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "ledger": report})
}
