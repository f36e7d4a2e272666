package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/penguinmails/tenantcore/internal/access"
	"github.com/penguinmails/tenantcore/internal/auth/session"
	"github.com/penguinmails/tenantcore/internal/common/config"
	"github.com/penguinmails/tenantcore/internal/database"
	"github.com/penguinmails/tenantcore/pkg/metrics"
)

// Composer assembles the ordered middleware chains used by the route
// registry. Ordering is fixed: request id, panic recovery, logging and
// metrics wrap everything; rate limiting runs after authentication so
// authenticated traffic is keyed by identity rather than IP.
type Composer struct {
	resolver    *session.Resolver
	validator   *access.Validator
	limiter     Limiter
	rateEnabled bool
	rateMax     int64
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewComposer creates a middleware composer.
func NewComposer(
	resolver *session.Resolver,
	validator *access.Validator,
	limiter Limiter,
	rateCfg *config.RateLimitConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Composer {
	return &Composer{
		resolver:    resolver,
		validator:   validator,
		limiter:     limiter,
		rateEnabled: rateCfg.Enabled,
		rateMax:     rateCfg.Max,
		metrics:     m,
		logger:      logger,
	}
}

// Base is the outer chain applied to every route.
func (p *Composer) Base() []gin.HandlerFunc {
	chain := []gin.HandlerFunc{
		RequestID(),
		Recover(p.logger),
		Logging(p.logger),
	}
	if p.metrics != nil {
		chain = append(chain, p.metrics.Middleware())
	}
	return chain
}

// Public guards unauthenticated routes with IP-keyed rate limiting.
func (p *Composer) Public() []gin.HandlerFunc {
	return p.rateLimit()
}

// Authenticated requires a valid session, then rate-limits by identity.
func (p *Composer) Authenticated() []gin.HandlerFunc {
	chain := []gin.HandlerFunc{Auth(p.resolver, p.logger)}
	return append(chain, p.rateLimit()...)
}

// Tenant extends Authenticated with the tenant gate at minRole.
func (p *Composer) Tenant(minRole database.Role) []gin.HandlerFunc {
	return append(p.Authenticated(), p.TenantGate(minRole))
}

// TenantGate is just the tenant gate, for groups that already
// authenticate.
func (p *Composer) TenantGate(minRole database.Role) gin.HandlerFunc {
	return RequireTenant(p.validator, minRole, p.metrics, p.logger)
}

// StaffGate restricts a route to staff users.
func (p *Composer) StaffGate() gin.HandlerFunc {
	return RequireStaff(p.validator, p.logger)
}

// Audited wraps a guarded operation with audit recording.
func (p *Composer) Audited(store database.AuditStore, operation string) gin.HandlerFunc {
	return Audit(store, operation, p.logger)
}

func (p *Composer) rateLimit() []gin.HandlerFunc {
	if !p.rateEnabled || p.limiter == nil {
		return nil
	}
	return []gin.HandlerFunc{RateLimit(p.limiter, p.rateMax, p.metrics, p.logger)}
}
