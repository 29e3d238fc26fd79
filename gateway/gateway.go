package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/example/storefront/gateway/docs"
	"github.com/example/storefront/pkg/admin"
	"github.com/example/storefront/pkg/cart"
	"github.com/example/storefront/pkg/catalog"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/metrics"
	"github.com/example/storefront/pkg/orders"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// IdempotencyStore deduplicates order placement retries keyed by the
// Idempotency-Key header.
type IdempotencyStore interface {
	ClaimIdempotencyKey(ctx context.Context, userID, key string, ttl time.Duration) (bool, string, error)
	CompleteIdempotencyKey(ctx context.Context, userID, key, orderID string, ttl time.Duration) error
	ReleaseIdempotencyKey(ctx context.Context, userID, key string) error
}

// Services are the backends behind the routes. Idempotency, Metrics and
// Gatherer are optional.
type Services struct {
	Orders      *orders.Service
	Catalog     *catalog.Service
	Cart        *cart.Service
	Admin       *admin.Service
	Idempotency IdempotencyStore
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
}

type Gateway struct {
	config   *config.Config
	logger   *zap.Logger
	router   *gin.Engine
	server   *http.Server
	services Services
}

func NewGateway(cfg *config.Config, logger *zap.Logger, services Services) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(loggerMiddleware(logger))
	if services.Metrics != nil {
		router.Use(metricsMiddleware(services.Metrics))
	}

	g := &Gateway{
		config:   cfg,
		logger:   logger,
		router:   router,
		services: services,
	}
	g.server = &http.Server{
		Addr:              g.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return g
}

func (g *Gateway) SetupRoutes() {
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if g.services.Gatherer != nil {
		g.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(g.services.Gatherer, promhttp.HandlerOpts{})))
	}

	api := g.router.Group("/api")
	{
		products := api.Group("/products")
		{
			products.GET("", g.listProducts)
			products.GET("/categories", g.getCategories)
			products.GET("/:id", g.getProduct)
		}

		users := api.Group("/users", authenticate())
		{
			users.GET("/wishlist", g.getWishlist)
			users.POST("/wishlist", g.addToWishlist)
			users.DELETE("/wishlist/:productId", g.removeFromWishlist)

			users.GET("/cart", g.getCart)
			users.POST("/cart", g.addToCart)
			users.DELETE("/cart", g.clearCart)
			users.PUT("/cart/:productId", g.updateCartItem)
			users.DELETE("/cart/:productId", g.removeFromCart)
		}

		orderGroup := api.Group("/orders", authenticate())
		{
			orderGroup.POST("", g.createOrder)
			orderGroup.GET("/my-orders", g.myOrders)
			orderGroup.GET("/:id", g.getOrder)
			orderGroup.PUT("/:id/cancel", g.cancelOrder)
		}

		adminGroup := api.Group("/admin", authenticate(), requireAdmin())
		{
			adminGroup.GET("/dashboard/stats", g.dashboardStats)
			adminGroup.GET("/products", g.adminProducts)
			adminGroup.POST("/products/:id/restock", g.restockProduct)
			adminGroup.GET("/orders", g.adminOrders)
			adminGroup.GET("/orders/:id", g.adminOrder)
			adminGroup.PUT("/orders/:id/status", g.updateOrderStatus)
			adminGroup.GET("/inventory/low-stock", g.lowStock)
			adminGroup.GET("/inventory/out-of-stock", g.outOfStock)
			adminGroup.GET("/inventory/:productId/ledger", g.stockLedger)
		}
	}

	docs.SwaggerInfo.Host = fmt.Sprintf("%s:%d", g.config.Gateway.Host, g.config.Gateway.Port)
	g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Handler exposes the router, mainly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) Addr() string {
	return fmt.Sprintf("%s:%d", g.config.Gateway.Host, g.config.Gateway.Port)
}

func (g *Gateway) Start() error {
	g.logger.Info("Gateway starting", zap.String("address", g.server.Addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	return g.server.Shutdown(ctx)
}
