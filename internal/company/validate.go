package company

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/penguinmails/tenantcore/internal/common/errorx"
	"github.com/penguinmails/tenantcore/internal/database"
)

var validate = validator.New()

// Recognized keys for the schema-validated key-value bags. Unknown
// keys are rejected so the bags stay checkable.
var (
	recognizedSettings = map[string]bool{
		"industry":      true,
		"website":       true,
		"phone":         true,
		"address":       true,
		"billing_email": true,
	}
	recognizedPermissions = map[string]bool{
		"can_invite":  true,
		"can_export":  true,
		"can_billing": true,
	}
)

// normalizeName trims and validates a company name.
func normalizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", errorx.FieldValidation("name", "name is required")
	}
	if len(trimmed) > 255 {
		return "", errorx.FieldValidation("name", "name must be at most 255 characters")
	}
	return trimmed, nil
}

// validateEmail checks email format; empty means "not set".
func validateEmail(email string) error {
	if email == "" {
		return nil
	}
	if err := validate.Var(email, "email"); err != nil {
		return errorx.FieldValidation("email", "email format is invalid")
	}
	return nil
}

func validateSettings(settings database.JSONMap) error {
	return validateBag("settings", settings, recognizedSettings)
}

func validatePermissions(permissions database.JSONMap) error {
	return validateBag("permissions", permissions, recognizedPermissions)
}

func validateBag(field string, bag database.JSONMap, recognized map[string]bool) error {
	for key := range bag {
		if !recognized[key] {
			return errorx.FieldValidation(field, fmt.Sprintf("unrecognized %s key: %s", field, key))
		}
	}
	return nil
}
