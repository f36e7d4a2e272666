package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/penguinmails/tenantcore/internal/common/cnst"
	"github.com/penguinmails/tenantcore/internal/common/errorx"
)

var validate = validator.New()

// ValidateBody binds and validates the JSON request body into T before
// the handler runs. Malformed or invalid bodies stop the chain with a
// 400 naming the first failing field.
func ValidateBody[T any](logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body T
		if err := c.ShouldBindJSON(&body); err != nil {
			errorx.RespondError(c, logger,
				errorx.Validation(errorx.CodeValidationFailed, "request body is not valid JSON").WithCause(err))
			return
		}
		if err := validate.Struct(&body); err != nil {
			verr := errorx.Validation(errorx.CodeValidationFailed, "request body failed validation")
			if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
				verr.WithDetail("field", fieldErrs[0].Field())
			}
			errorx.RespondError(c, logger, verr.WithCause(err))
			return
		}

		c.Set(cnst.CtxValidatedBody, &body)
		c.Next()
	}
}

// Body returns the validated request body stored by ValidateBody.
func Body[T any](c *gin.Context) *T {
	if v, ok := c.Get(cnst.CtxValidatedBody); ok {
		if body, ok := v.(*T); ok {
			return body
		}
	}
	return nil
}
