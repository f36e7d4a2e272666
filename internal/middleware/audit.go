package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/penguinmails/tenantcore/internal/database"
)

// Audit appends an audit record after the handler completes. Records
// are written asynchronously and include staff bypasses, so privileged
// access always leaves a trace. Write failures are logged, never
// surfaced to the caller.
func Audit(store database.AuditStore, operation string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		rc := GetRequestContext(c)
		record := &database.AuditRecord{
			RequestID:   rc.RequestID,
			UserID:      rc.UserID,
			TenantID:    rc.TenantID,
			Operation:   operation,
			Outcome:     outcome(c.Writer.Status()),
			StaffBypass: rc.StaffBypass,
			DurationMS:  time.Since(rc.StartedAt).Milliseconds(),
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.SaveAuditRecord(ctx, record); err != nil {
				logger.Warn("failed to save audit record",
					zap.String("request_id", record.RequestID),
					zap.String("operation", operation),
					zap.Error(err))
			}
		}()
	}
}

func outcome(status int) string {
	switch {
	case status == http.StatusForbidden || status == http.StatusUnauthorized:
		return "denied"
	case status >= http.StatusInternalServerError:
		return "error"
	case status >= http.StatusBadRequest:
		return "rejected"
	default:
		return "allowed"
	}
}
