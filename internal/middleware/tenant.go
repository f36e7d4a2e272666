package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/penguinmails/tenantcore/internal/access"
	"github.com/penguinmails/tenantcore/internal/common/errorx"
	"github.com/penguinmails/tenantcore/internal/database"
	"github.com/penguinmails/tenantcore/pkg/metrics"
)

// RequireTenant guards tenant-scoped routes. The tenant id comes from
// the :tenantId route parameter; the caller must be staff or hold a
// role at or above minRole inside the tenant. Staff bypasses are
// recorded on the request context so the audit trail keeps them.
func RequireTenant(validator *access.Validator, minRole database.Role, m *metrics.Metrics, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			errorx.RespondError(c, logger, errorx.AuthRequired())
			return
		}
		tenantID := c.Param("tenantId")
		rc := GetRequestContext(c)
		rc.TenantID = tenantID

		result := validator.TenantAccess(c.Request.Context(), user.User.ID, tenantID, minRole)
		if m != nil {
			m.GateDecision("tenant", gateDecision(result))
		}
		if result.Unavailable {
			logger.Warn("tenant gate unavailable, denying",
				zap.String("user_id", user.User.ID),
				zap.String("tenant_id", tenantID),
				zap.Error(result.Err))
		}
		if !result.Allowed {
			errorx.RespondError(c, logger, errorx.AccessDenied(""))
			return
		}

		rc.StaffBypass = result.StaffBypass
		c.Next()
	}
}

func gateDecision(result access.GateResult) string {
	switch {
	case result.StaffBypass:
		return "staff_bypass"
	case result.Unavailable:
		return "unavailable"
	case result.Allowed:
		return "allowed"
	default:
		return "denied"
	}
}
