package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/penguinmails/tenantcore/internal/access"
	"github.com/penguinmails/tenantcore/internal/common/errorx"
)

// RequireStaff restricts a route to staff users.
func RequireStaff(validator *access.Validator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			errorx.RespondError(c, logger, errorx.AuthRequired())
			return
		}
		if !validator.IsStaff(c.Request.Context(), user.User.ID) {
			errorx.RespondError(c, logger, errorx.AccessDenied(""))
			return
		}

		rc := GetRequestContext(c)
		rc.StaffBypass = true
		c.Next()
	}
}
