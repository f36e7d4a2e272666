package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/penguinmails/tenantcore/internal/common/errorx"
	"github.com/penguinmails/tenantcore/internal/database"
	"github.com/penguinmails/tenantcore/internal/middleware"
)

// Preference keys recognized on a user profile.
var recognizedPreferences = map[string]bool{
	"theme":               true,
	"locale":              true,
	"timezone":            true,
	"email_notifications": true,
}

// UpdatePreferencesRequest is the body of PUT /me/preferences.
type UpdatePreferencesRequest struct {
	Preferences database.JSONMap `json:"preferences" validate:"required"`
}

// GetMe handles GET /me.
func (h *Handler) GetMe(c *gin.Context) {
	errorx.RespondSuccess(c, middleware.CurrentUser(c), "")
}

// UpdateMyPreferences handles PUT /me/preferences. Unknown keys are
// rejected so the bag stays schema-checked.
func (h *Handler) UpdateMyPreferences(c *gin.Context) {
	req := middleware.Body[UpdatePreferencesRequest](c)
	for key := range req.Preferences {
		if !recognizedPreferences[key] {
			errorx.RespondError(c, h.logger,
				errorx.FieldValidation("preferences", "unrecognized preferences key: "+key))
			return
		}
	}

	user := middleware.CurrentUser(c)
	user.Profile.Preferences = req.Preferences
	if err := h.db.UpdateProfile(c.Request.Context(), user.Profile); err != nil {
		errorx.RespondError(c, h.logger, errorx.Backend(err))
		return
	}
	errorx.RespondSuccess(c, user.Profile, "preferences updated")
}

// GetMyCompanies handles GET /me/companies.
func (h *Handler) GetMyCompanies(c *gin.Context) {
	userID := h.currentUserID(c)
	details, err := h.companies.GetUserCompanies(c.Request.Context(), userID, userID)
	if err != nil {
		errorx.RespondError(c, h.logger, err)
		return
	}
	errorx.RespondSuccess(c, details, "")
}

// GetUserCompanies handles GET /users/:userId/companies. The service
// only permits the user themselves or staff.
func (h *Handler) GetUserCompanies(c *gin.Context) {
	details, err := h.companies.GetUserCompanies(c.Request.Context(),
		c.Param("userId"), h.currentUserID(c))
	if err != nil {
		errorx.RespondError(c, h.logger, err)
		return
	}
	errorx.RespondSuccess(c, details, "")
}
