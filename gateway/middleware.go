package gateway

import (
	"net/http"
	"time"

	"github.com/example/storefront/pkg/metrics"
	"github.com/example/storefront/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	headerRequestID = "X-Request-ID"
	headerUserID    = "X-User-ID"
	headerUserRole  = "X-User-Role"

	keyRequestID = "request_id"
	keyPrincipal = "principal"
)

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(keyRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(keyRequestID)),
		)
	}
}

func metricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// authenticate trusts the identity headers set by the auth proxy in front of
// the storefront.
func authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(headerUserID)
		if !primitive.IsValidObjectID(userID) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Not authorized, no token",
			})
			return
		}
		role := models.RoleCustomer
		if c.GetHeader(headerUserRole) == string(models.RoleAdmin) {
			role = models.RoleAdmin
		}
		c.Set(keyPrincipal, models.Principal{UserID: userID, Role: role})
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !principal(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"message": "Not authorized as admin",
			})
			return
		}
		c.Next()
	}
}

func principal(c *gin.Context) models.Principal {
	p, _ := c.Get(keyPrincipal)
	pr, _ := p.(models.Principal)
	return pr
}
