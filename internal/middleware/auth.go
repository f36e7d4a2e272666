package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/penguinmails/tenantcore/internal/auth/session"
	"github.com/penguinmails/tenantcore/internal/common/cnst"
	"github.com/penguinmails/tenantcore/internal/common/errorx"
)

// Credential extracts the request credential: a Bearer token when the
// Authorization header carries one, otherwise the session cookie.
func Credential(c *gin.Context) string {
	header := c.GetHeader(cnst.HeaderAuthorization)
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := c.Cookie(cnst.SessionCookie); err == nil {
		return cookie
	}
	return ""
}

// Auth resolves and asserts the caller's session, storing the user
// with profile in the context. Requests without a valid session stop
// here with 401.
func Auth(resolver *session.Resolver, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := resolver.ValidateSession(c.Request.Context(), Credential(c))
		if err != nil {
			errorx.RespondError(c, logger, err)
			return
		}

		c.Set(cnst.CtxUser, user)
		rc := GetRequestContext(c)
		rc.UserID = user.User.ID
		rc.Email = user.User.Email
		c.Next()
	}
}
