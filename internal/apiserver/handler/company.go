package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/penguinmails/tenantcore/internal/common/errorx"
	"github.com/penguinmails/tenantcore/internal/company"
	"github.com/penguinmails/tenantcore/internal/database"
	"github.com/penguinmails/tenantcore/internal/middleware"
)

// CreateCompanyRequest is the body of POST /tenants/:tenantId/companies.
type CreateCompanyRequest struct {
	Name     string           `json:"name" validate:"required,max=255"`
	Email    string           `json:"email" validate:"omitempty,email"`
	Settings database.JSONMap `json:"settings"`
}

// UpdateCompanyRequest is the body of PUT /tenants/:tenantId/companies/:companyId.
type UpdateCompanyRequest struct {
	Name     *string           `json:"name" validate:"omitempty,max=255"`
	Email    *string           `json:"email" validate:"omitempty,email"`
	Settings *database.JSONMap `json:"settings"`
}

// CompanyUserRequest is the body of the add-member and update-role calls.
type CompanyUserRequest struct {
	UserID      string           `json:"userId" validate:"omitempty,uuid4"`
	Role        database.Role    `json:"role" validate:"required,oneof=member admin owner"`
	Permissions database.JSONMap `json:"permissions"`
}

// ListCompanies handles GET /tenants/:tenantId/companies.
func (h *Handler) ListCompanies(c *gin.Context) {
	companies, err := h.companies.ListCompanies(c.Request.Context(),
		c.Param("tenantId"), h.currentUserID(c))
	if err != nil {
		errorx.RespondError(c, h.logger, err)
		return
	}
	errorx.RespondSuccess(c, companies, "")
}

// GetCompany handles GET /tenants/:tenantId/companies/:companyId.
func (h *Handler) GetCompany(c *gin.Context) {
	got, err := h.companies.GetCompany(c.Request.Context(),
		c.Param("tenantId"), c.Param("companyId"), h.currentUserID(c))
	if err != nil {
		errorx.RespondError(c, h.logger, err)
		return
	}
	if got == nil {
		errorx.RespondError(c, h.logger, errorx.NotFound("company"))
		return
	}
	errorx.RespondSuccess(c, got, "")
}

// CreateCompany handles POST /tenants/:tenantId/companies.
func (h *Handler) CreateCompany(c *gin.Context) {
	req := middleware.Body[CreateCompanyRequest](c)
	created, err := h.companies.CreateCompany(c.Request.Context(), c.Param("tenantId"),
		company.CreateCompanyInput{
			Name:     req.Name,
			Email:    req.Email,
			Settings: req.Settings,
		}, h.currentUserID(c))
	if err != nil {
		errorx.RespondError(c, h.logger, err)
		return
	}
	errorx.RespondCreated(c, created, "company created")
}

// UpdateCompany handles PUT /tenants/:tenantId/companies/:companyId.
func (h *Handler) UpdateCompany(c *gin.Context) {
	req := middleware.Body[UpdateCompanyRequest](c)
	updated, err := h.companies.UpdateCompany(c.Request.Context(),
		c.Param("tenantId"), c.Param("companyId"),
		company.UpdateCompanyInput{
			Name:     req.Name,
			Email:    req.Email,
			Settings: req.Settings,
		}, h.currentUserID(c))
	if err != nil {
		errorx.RespondError(c, h.logger, err)
		return
	}
	errorx.RespondSuccess(c, updated, "company updated")
}

// DeleteCompany handles DELETE /tenants/:tenantId/companies/:companyId.
func (h *Handler) DeleteCompany(c *gin.Context) {
	err := h.companies.DeleteCompany(c.Request.Context(),
		c.Param("tenantId"), c.Param("companyId"), h.currentUserID(c))
	if err != nil {
		errorx.RespondError(c, h.logger, err)
		return
	}
	errorx.RespondSuccess(c, nil, "company deleted")
}

// GetCompanyUsers handles GET /tenants/:tenantId/companies/:companyId/users.
func (h *Handler) GetCompanyUsers(c *gin.Context) {
	members, err := h.companies.GetCompanyUsers(c.Request.Context(),
		c.Param("tenantId"), c.Param("companyId"), h.currentUserID(c))
	if err != nil {
		errorx.RespondError(c, h.logger, err)
		return
	}
	errorx.RespondSuccess(c, members, "")
}

// AddCompanyUser handles POST /tenants/:tenantId/companies/:companyId/users.
func (h *Handler) AddCompanyUser(c *gin.Context) {
	req := middleware.Body[CompanyUserRequest](c)
	edge, err := h.companies.AddUserToCompany(c.Request.Context(),
		c.Param("tenantId"), req.UserID, c.Param("companyId"),
		req.Role, req.Permissions, h.currentUserID(c))
	if err != nil {
		errorx.RespondError(c, h.logger, err)
		return
	}
	errorx.RespondCreated(c, edge, "user added to company")
}

// UpdateCompanyUser handles PUT /tenants/:tenantId/companies/:companyId/users/:userId.
func (h *Handler) UpdateCompanyUser(c *gin.Context) {
	req := middleware.Body[CompanyUserRequest](c)
	edge, err := h.companies.UpdateUserCompanyRole(c.Request.Context(),
		c.Param("tenantId"), c.Param("userId"), c.Param("companyId"),
		req.Role, req.Permissions, h.currentUserID(c))
	if err != nil {
		errorx.RespondError(c, h.logger, err)
		return
	}
	errorx.RespondSuccess(c, edge, "role updated")
}

// RemoveCompanyUser handles DELETE /tenants/:tenantId/companies/:companyId/users/:userId.
func (h *Handler) RemoveCompanyUser(c *gin.Context) {
	err := h.companies.RemoveUserFromCompany(c.Request.Context(),
		c.Param("tenantId"), c.Param("userId"), c.Param("companyId"), h.currentUserID(c))
	if err != nil {
		errorx.RespondError(c, h.logger, err)
		return
	}
	errorx.RespondSuccess(c, nil, "user removed from company")
}

// GetCompanyStatistics handles GET /tenants/:tenantId/companies/:companyId/statistics.
func (h *Handler) GetCompanyStatistics(c *gin.Context) {
	stats, err := h.companies.GetCompanyStatistics(c.Request.Context(),
		c.Param("tenantId"), c.Param("companyId"), h.currentUserID(c))
	if err != nil {
		errorx.RespondError(c, h.logger, err)
		return
	}
	errorx.RespondSuccess(c, stats, "")
}

func (h *Handler) currentUserID(c *gin.Context) string {
	if user := middleware.CurrentUser(c); user != nil {
		return user.User.ID
	}
	return ""
}
