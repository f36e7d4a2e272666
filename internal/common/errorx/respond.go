package errorx

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/penguinmails/tenantcore/internal/common/cnst"
)

// SuccessEnvelope is the body of every successful response.
type SuccessEnvelope struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorEnvelope is the body of every failed response.
type ErrorEnvelope struct {
	Success   bool           `json:"success"`
	Error     string         `json:"error"`
	Code      string         `json:"code"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// RespondSuccess writes a success envelope.
func RespondSuccess(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, SuccessEnvelope{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// RespondCreated writes a success envelope with a 201 status.
func RespondCreated(c *gin.Context, data any, message string) {
	c.JSON(http.StatusCreated, SuccessEnvelope{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// RespondError classifies err, logs it with request context and writes
// a sanitized error envelope. Backend causes never reach the client.
func RespondError(c *gin.Context, logger *zap.Logger, err error) {
	e := Classify(err)
	if e == nil {
		return
	}

	fields := []zap.Field{
		zap.String("kind", string(e.Kind)),
		zap.String("code", e.Code),
		zap.String("path", c.FullPath()),
		zap.String("method", c.Request.Method),
	}
	if reqID := c.GetString(cnst.CtxRequestID); reqID != "" {
		fields = append(fields, zap.String("request_id", reqID))
	}
	if e.Kind == KindBackend {
		logger.Error("request failed", append(fields, zap.Error(err))...)
	} else {
		logger.Warn("request rejected", fields...)
	}

	if e.Kind == KindRateLimit && !e.ResetAt.IsZero() {
		retry := time.Until(e.ResetAt)
		if retry < 0 {
			retry = 0
		}
		c.Header(cnst.HeaderRetryAfter, formatSeconds(retry))
	}

	c.AbortWithStatusJSON(e.HTTPStatus(), ErrorEnvelope{
		Success:   false,
		Error:     e.Message,
		Code:      e.Code,
		Details:   e.Details,
		Timestamp: time.Now().UTC(),
	})
}

func formatSeconds(d time.Duration) string {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
