package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/penguinmails/tenantcore/internal/common/errorx"
)

// Staff-only operational endpoints: integrity scans, repairs and the
// audit trail.

// RunIntegrityCheck handles GET /admin/integrity.
func (h *Handler) RunIntegrityCheck(c *gin.Context) {
	report, err := h.recovery.RunIntegrityCheck(c.Request.Context())
	if err != nil {
		errorx.RespondError(c, h.logger, err)
		return
	}
	errorx.RespondSuccess(c, report, "")
}

// RepairIntegrity handles POST /admin/integrity/repair.
func (h *Handler) RepairIntegrity(c *gin.Context) {
	report, err := h.recovery.RepairAll(c.Request.Context())
	if err != nil {
		errorx.RespondError(c, h.logger, err)
		return
	}
	errorx.RespondSuccess(c, report, "integrity repair completed")
}

// ListTenants handles GET /admin/tenants.
func (h *Handler) ListTenants(c *gin.Context) {
	tenants, err := h.db.ListTenants(c.Request.Context())
	if err != nil {
		errorx.RespondError(c, h.logger, errorx.Backend(err))
		return
	}
	errorx.RespondSuccess(c, tenants, "")
}

// ListAuditRecords handles GET /admin/tenants/:tenantId/audit.
func (h *Handler) ListAuditRecords(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			errorx.RespondError(c, h.logger,
				errorx.FieldValidation("limit", "limit must be a positive integer"))
			return
		}
		if parsed < limit {
			limit = parsed
		}
	}

	records, err := h.db.ListAuditRecords(c.Request.Context(), c.Param("tenantId"), limit)
	if err != nil {
		errorx.RespondError(c, h.logger, errorx.Backend(err))
		return
	}
	errorx.RespondSuccess(c, records, "")
}
