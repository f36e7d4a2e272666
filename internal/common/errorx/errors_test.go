package errorx

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		err    *Error
		status int
	}{
		{FieldValidation("name", "name is required"), http.StatusBadRequest},
		{InvalidIdentifier("tenantId"), http.StatusBadRequest},
		{AuthRequired(), http.StatusUnauthorized},
		{AccessDenied(""), http.StatusForbidden},
		{NotFound("company"), http.StatusNotFound},
		{RateLimited(time.Now().Add(time.Minute)), http.StatusTooManyRequests},
		{Invariant(CodeLastOwner, "cannot remove the only owner"), http.StatusConflict},
		{Backend(errors.New("pq: connection refused")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, tt.err.HTTPStatus(), tt.err.Code)
	}
}

func TestClassifyPassesTypedErrorsThrough(t *testing.T) {
	orig := AccessDenied("")
	assert.Same(t, orig, Classify(orig))

	wrapped := Classify(errors.New("boom"))
	assert.Equal(t, KindBackend, wrapped.Kind)
	assert.Equal(t, "internal error", wrapped.Message)
}

func TestClassifyNil(t *testing.T) {
	assert.Nil(t, Classify(nil))
}

func TestBackendMessageIsSanitized(t *testing.T) {
	cause := errors.New("pq: relation \"companies\" does not exist")
	e := Backend(cause)
	// The cause stays reachable for logging but is not the client message.
	assert.ErrorIs(t, e, cause)
	assert.Equal(t, "internal error", e.Message)
}

func TestIsKind(t *testing.T) {
	assert.True(t, IsKind(AuthRequired(), KindAuthentication))
	assert.False(t, IsKind(AuthRequired(), KindValidation))
	assert.False(t, IsKind(errors.New("plain"), KindBackend))
}

func TestWithDetail(t *testing.T) {
	e := Validation(CodeValidationFailed, "bad input").WithDetail("field", "email")
	assert.Equal(t, "email", e.Details["field"])
}
