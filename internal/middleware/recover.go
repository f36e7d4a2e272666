package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/penguinmails/tenantcore/internal/common/errorx"
)

// Recover turns panics into sanitized 500 responses. Panic values are
// logged with the request id, never echoed to the client.
func Recover(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				rc := GetRequestContext(c)
				logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", rc.RequestID),
					zap.Stack("stack"))
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorx.ErrorEnvelope{
					Success:   false,
					Error:     "internal error",
					Code:      errorx.CodeBackendError,
					Timestamp: time.Now().UTC(),
				})
			}
		}()
		c.Next()
	}
}

// Logging logs incoming requests and outgoing responses.
func Logging(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		logger.Debug("incoming request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("remote_addr", c.ClientIP()),
		)

		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", GetRequestContext(c).RequestID),
		)
	}
}
