package cnst

// Header names used by the API surface.
const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-Id"
	HeaderRateLimit     = "X-RateLimit-Limit"
	HeaderRateRemaining = "X-RateLimit-Remaining"
	HeaderRetryAfter    = "Retry-After"

	// SessionCookie is the fallback credential source when no
	// Authorization header is present.
	SessionCookie = "tc_session"
)

// Gin context keys.
const (
	CtxRequestContext = "tc_request_context"
	CtxRequestID      = "tc_request_id"
	CtxUser           = "tc_user"
	CtxValidatedBody  = "tc_validated_body"
)
