package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type cartRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity"`
}

type wishlistRequest struct {
	ProductID string `json:"productId"`
}

func (g *Gateway) getCart(c *gin.Context) {
	items, err := g.services.Cart.Cart(c.Request.Context(), principal(c).UserID)
	if err != nil {
		g.fail(c, err, "Server error while fetching cart")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cart": items, "message": "Cart fetched successfully"})
}

func (g *Gateway) addToCart(c *gin.Context) {
	var req cartRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProductID == "" {
		badRequest(c, "productId is required")
		return
	}
	items, err := g.services.Cart.Add(c.Request.Context(), principal(c).UserID, req.ProductID, req.Quantity)
	if err != nil {
		g.fail(c, err, "Server error while adding to cart")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Product added to cart", "cart": items})
}

func (g *Gateway) updateCartItem(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Quantity == nil {
		badRequest(c, "quantity is required")
		return
	}
	items, err := g.services.Cart.Update(c.Request.Context(), principal(c).UserID, c.Param("productId"), *req.Quantity)
	if err != nil {
		g.fail(c, err, "Server error while updating cart")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Cart updated", "cart": items})
}

func (g *Gateway) removeFromCart(c *gin.Context) {
	items, err := g.services.Cart.Remove(c.Request.Context(), principal(c).UserID, c.Param("productId"))
	if err != nil {
		g.fail(c, err, "Server error while removing from cart")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Item removed from cart", "cart": items})
}

func (g *Gateway) clearCart(c *gin.Context) {
	if err := g.services.Cart.Clear(c.Request.Context(), principal(c).UserID); err != nil {
		g.fail(c, err, "Server error while clearing cart")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Cart cleared successfully", "cart": []any{}})
}

func (g *Gateway) getWishlist(c *gin.Context) {
	list, err := g.services.Cart.Wishlist(c.Request.Context(), principal(c).UserID)
	if err != nil {
		g.fail(c, err, "Server error while fetching wishlist")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "wishlist": viewProducts(list)})
}

func (g *Gateway) addToWishlist(c *gin.Context) {
	var req wishlistRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProductID == "" {
		badRequest(c, "productId is required")
		return
	}
	list, err := g.services.Cart.AddToWishlist(c.Request.Context(), principal(c).UserID, req.ProductID)
	if err != nil {
		g.fail(c, err, "Server error while adding to wishlist")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Product added to wishlist", "wishlist": viewProducts(list)})
}

func (g *Gateway) removeFromWishlist(c *gin.Context) {
	list, err := g.services.Cart.RemoveFromWishlist(c.Request.Context(), principal(c).UserID, c.Param("productId"))
	if err != nil {
		g.fail(c, err, "Server error while removing from wishlist")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Product removed from wishlist", "wishlist": viewProducts(list)})
}
