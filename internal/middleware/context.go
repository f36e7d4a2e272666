package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/penguinmails/tenantcore/internal/auth/session"
	"github.com/penguinmails/tenantcore/internal/common/cnst"
	"github.com/penguinmails/tenantcore/pkg/utils"
)

// RequestContext carries the per-request identity and scope resolved
// by the middleware chain. Handlers read it, middleware fills it in.
type RequestContext struct {
	RequestID   string
	UserID      string
	Email       string
	TenantID    string
	StaffBypass bool
	StartedAt   time.Time
}

// RequestID assigns each request an id, honoring an inbound
// X-Request-Id header, and seeds the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(cnst.HeaderRequestID)
		if id == "" || !utils.IsUUID(id) {
			id = utils.NewID()
		}

		c.Set(cnst.CtxRequestID, id)
		c.Set(cnst.CtxRequestContext, &RequestContext{
			RequestID: id,
			StartedAt: time.Now(),
		})
		c.Header(cnst.HeaderRequestID, id)
		c.Next()
	}
}

// GetRequestContext returns the request context, or an empty one when
// the chain was not composed with RequestID.
func GetRequestContext(c *gin.Context) *RequestContext {
	if v, ok := c.Get(cnst.CtxRequestContext); ok {
		if rc, ok := v.(*RequestContext); ok {
			return rc
		}
	}
	return &RequestContext{}
}

// CurrentUser returns the authenticated user set by Auth, or nil.
func CurrentUser(c *gin.Context) *session.UserWithProfile {
	if v, ok := c.Get(cnst.CtxUser); ok {
		if u, ok := v.(*session.UserWithProfile); ok {
			return u
		}
	}
	return nil
}
