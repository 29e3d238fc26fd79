package gateway

import (
	"net/http"
	"strconv"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindInsufficientStock, apperr.KindInvalidTransition:
		return http.StatusBadRequest
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindAccessDenied:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error body. Internal causes are logged, never returned;
// fallback is the message shown instead.
func (g *Gateway) fail(c *gin.Context, err error, fallback string) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		g.logger.Error(fallback,
			zap.String("request_id", c.GetString(keyRequestID)),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(statusOf(kind), gin.H{
		"success": false,
		"message": apperr.Message(err, fallback),
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": message})
}

func pageQuery(c *gin.Context, defaultLimit int) models.Page {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit > 100 {
		limit = 100
	}
	return models.Page{Page: page, Limit: limit}.Normalize(defaultLimit)
}
