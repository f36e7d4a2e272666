package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/penguinmails/tenantcore/internal/common/errorx"
	"github.com/penguinmails/tenantcore/internal/database"
	"github.com/penguinmails/tenantcore/pkg/utils"
)

// UserWithProfile bundles the resolved identity with its profile.
type UserWithProfile struct {
	User    *database.User        `json:"user"`
	Profile *database.UserProfile `json:"profile"`
}

// Resolver resolves caller identity from request credentials, with a
// bounded per-credential cache in front of the auth backend.
type Resolver struct {
	backend Backend
	store   database.IdentityStore
	cache   Cache
	logger  *zap.Logger
	now     func() time.Time
}

// NewResolver creates a session resolver. A nil cache disables caching
// defaults; pass NewCache(...) for production use.
func NewResolver(backend Backend, store database.IdentityStore, cache Cache, logger *zap.Logger) *Resolver {
	if cache == nil {
		cache = NewCache(0, 0)
	}
	return &Resolver{
		backend: backend,
		store:   store,
		cache:   cache,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the resolver's clock. Test hook.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// GetSession resolves the session for a credential. A missing or
// invalid credential yields (nil, nil); only backend failures error.
func (r *Resolver) GetSession(ctx context.Context, credential string) (*Session, error) {
	if credential == "" {
		return nil, nil
	}

	if cached, ok := r.cache.Get(credential); ok {
		if cached.ExpiresAt.IsZero() || cached.ExpiresAt.After(r.now()) {
			return cached, nil
		}
		r.cache.Remove(credential)
	}

	sess, err := r.backend.LookupSession(ctx, credential)
	if err != nil {
		return nil, errorx.Backend(err)
	}
	if sess == nil {
		return nil, nil
	}

	r.cache.Add(credential, sess)
	return sess, nil
}

// ValidateSession resolves and asserts a session, returning the user
// with profile. Missing sessions fail with AUTH_REQUIRED; a session
// whose user has no resolvable profile gets one created lazily.
func (r *Resolver) ValidateSession(ctx context.Context, credential string) (*UserWithProfile, error) {
	sess, err := r.GetSession(ctx, credential)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, errorx.AuthRequired()
	}

	user, err := r.store.GetUser(ctx, sess.UserID)
	if err != nil {
		return nil, errorx.Backend(err)
	}
	if user == nil {
		return nil, profileNotFound()
	}

	profile, err := r.store.GetProfileByUserID(ctx, user.ID)
	if err != nil {
		return nil, errorx.Backend(err)
	}
	if profile == nil {
		profile = &database.UserProfile{
			ID:     utils.NewID(),
			UserID: user.ID,
			Role:   database.PlatformUser,
		}
		if err := r.store.CreateProfile(ctx, profile); err != nil {
			return nil, profileNotFound().WithCause(err)
		}
	}

	// Last-login recording is best effort and never blocks the caller.
	go func(userID string) {
		if err := r.store.RecordLogin(context.Background(), userID, r.now()); err != nil {
			r.logger.Warn("failed to record last login",
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}(user.ID)

	return &UserWithProfile{User: user, Profile: profile}, nil
}

// IsStaffUser reports whether the user carries the staff flag. A
// malformed id is a validation error; backend failures resolve to
// false so staff privilege fails closed without crashing the caller.
func (r *Resolver) IsStaffUser(ctx context.Context, userID string) (bool, error) {
	if !utils.IsUUID(userID) {
		return false, errorx.InvalidIdentifier("userId")
	}

	profile, err := r.store.GetProfileByUserID(ctx, userID)
	if err != nil {
		r.logger.Warn("staff check unavailable, denying bypass",
			zap.String("user_id", userID),
			zap.Error(err))
		return false, nil
	}
	if profile == nil {
		return false, nil
	}
	return profile.IsStaff, nil
}

// Reset clears the session cache. Test isolation hook.
func (r *Resolver) Reset() {
	r.cache.Purge()
}

func profileNotFound() *errorx.Error {
	return &errorx.Error{
		Kind:    errorx.KindNotFound,
		Code:    errorx.CodeProfileNotFound,
		Message: "user profile not found",
	}
}
