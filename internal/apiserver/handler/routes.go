package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/penguinmails/tenantcore/internal/middleware"
	"github.com/penguinmails/tenantcore/pkg/version"
)

// RegisterRoutes wires every route with its middleware chain.
func RegisterRoutes(r *gin.Engine, h *Handler, composer *middleware.Composer) {
	r.Use(composer.Base()...)

	r.GET("/health", append(composer.Public(), h.Health)...)
	r.GET("/version", append(composer.Public(), h.Version)...)

	api := r.Group("/api")
	api.Use(composer.Authenticated()...)

	api.GET("/me", h.GetMe)
	api.PUT("/me/preferences",
		middleware.ValidateBody[UpdatePreferencesRequest](h.logger),
		h.UpdateMyPreferences)
	api.GET("/me/companies", h.GetMyCompanies)
	api.GET("/users/:userId/companies", h.GetUserCompanies)

	// Audit runs ahead of the tenant gate so denials leave a trace too.
	tenants := api.Group("/tenants/:tenantId")

	tenants.GET("/companies",
		composer.Audited(h.db, "company.list"),
		composer.TenantGate(""),
		h.ListCompanies)
	tenants.POST("/companies",
		composer.Audited(h.db, "company.create"),
		composer.TenantGate(""),
		middleware.ValidateBody[CreateCompanyRequest](h.logger),
		h.CreateCompany)
	tenants.GET("/companies/:companyId",
		composer.Audited(h.db, "company.get"),
		composer.TenantGate(""),
		h.GetCompany)
	tenants.PUT("/companies/:companyId",
		composer.Audited(h.db, "company.update"),
		composer.TenantGate(""),
		middleware.ValidateBody[UpdateCompanyRequest](h.logger),
		h.UpdateCompany)
	tenants.DELETE("/companies/:companyId",
		composer.Audited(h.db, "company.delete"),
		composer.TenantGate(""),
		h.DeleteCompany)
	tenants.GET("/companies/:companyId/users",
		composer.Audited(h.db, "company.users.list"),
		composer.TenantGate(""),
		h.GetCompanyUsers)
	tenants.POST("/companies/:companyId/users",
		composer.Audited(h.db, "company.users.add"),
		composer.TenantGate(""),
		middleware.ValidateBody[CompanyUserRequest](h.logger),
		h.AddCompanyUser)
	tenants.PUT("/companies/:companyId/users/:userId",
		composer.Audited(h.db, "company.users.role"),
		composer.TenantGate(""),
		middleware.ValidateBody[CompanyUserRequest](h.logger),
		h.UpdateCompanyUser)
	tenants.DELETE("/companies/:companyId/users/:userId",
		composer.Audited(h.db, "company.users.remove"),
		composer.TenantGate(""),
		h.RemoveCompanyUser)
	tenants.GET("/companies/:companyId/statistics",
		composer.Audited(h.db, "company.statistics"),
		composer.TenantGate(""),
		h.GetCompanyStatistics)

	admin := api.Group("/admin")
	admin.Use(composer.StaffGate())
	admin.GET("/tenants", h.ListTenants)
	admin.GET("/tenants/:tenantId/audit", h.ListAuditRecords)
	admin.GET("/integrity", h.RunIntegrityCheck)
	admin.POST("/integrity/repair",
		composer.Audited(h.db, "integrity.repair"),
		h.RepairIntegrity)
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	status := "ok"
	code := http.StatusOK
	if err := h.pingDatabase(c); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"version":   version.Get(),
		"timestamp": time.Now().UTC(),
	})
}

// Version handles GET /version.
func (h *Handler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": version.Get()})
}

func (h *Handler) pingDatabase(c *gin.Context) error {
	_, err := h.db.ListTenants(c.Request.Context())
	return err
}
