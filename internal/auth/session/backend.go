package session

import (
	"context"
	"time"

	"github.com/penguinmails/tenantcore/internal/auth/token"
)

// Session is a resolved caller session.
type Session struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// Backend is the managed auth backend's session-lookup surface.
// Implementations return (nil, nil) when the credential carries no
// session; errors are reserved for backend failures.
type Backend interface {
	LookupSession(ctx context.Context, credential string) (*Session, error)
}

// TokenBackend resolves sessions from signed bearer tokens. This is
// the deployment where the auth backend hands out HS256 credentials.
type TokenBackend struct {
	tokens *token.Service
}

// NewTokenBackend creates a token-validating session backend.
func NewTokenBackend(tokens *token.Service) *TokenBackend {
	return &TokenBackend{tokens: tokens}
}

// LookupSession validates the credential. Invalid or expired tokens
// mean "no session", not an error.
func (b *TokenBackend) LookupSession(_ context.Context, credential string) (*Session, error) {
	claims, err := b.tokens.ValidateToken(credential)
	if err != nil {
		return nil, nil
	}
	return &Session{
		UserID:    claims.UserID,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
