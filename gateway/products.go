package gateway

import (
	"net/http"

	"github.com/example/storefront/pkg/models"
	"github.com/gin-gonic/gin"
)

// productView adds the derived stock fields to a product response.
type productView struct {
	*models.Product
	StockStatus        models.StockStatus `json:"stockStatus"`
	IsPurchasable      bool               `json:"isPurchasable"`
	DiscountPercentage int                `json:"discountPercentage"`
}

func viewProduct(p *models.Product) productView {
	return productView{
		Product:            p,
		StockStatus:        p.StockStatus(),
		IsPurchasable:      p.IsPurchasable(),
		DiscountPercentage: p.DiscountPercentage(),
	}
}

func viewProducts(list []*models.Product) []productView {
	out := make([]productView, len(list))
	for i, p := range list {
		out[i] = viewProduct(p)
	}
	return out
}

// listProducts godoc
// @Summary List products
// @Param category query string false "Category"
// @Param search query string false "Name search"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Router /products [get]
func (g *Gateway) listProducts(c *gin.Context) {
	filter := models.ProductFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
		Page:     pageQuery(c, 20),
	}
	list, page, err := g.services.Catalog.ListProducts(c.Request.Context(), filter)
	if err != nil {
		g.fail(c, err, "Server error while fetching products")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"products":   viewProducts(list),
		"total":      page.Total,
		"pagination": page,
	})
}

func (g *Gateway) getCategories(c *gin.Context) {
	categories, err := g.services.Catalog.Categories(c.Request.Context())
	if err != nil {
		g.fail(c, err, "Server error while fetching categories")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "categories": categories})
}

// getProduct godoc
// @Summary Get a product
// @Param id path string true "Product ID"
// @Router /products/{id} [get]
func (g *Gateway) getProduct(c *gin.Context) {
	p, err := g.services.Catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.fail(c, err, "Server error while fetching product")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "product": viewProduct(p)})
}
