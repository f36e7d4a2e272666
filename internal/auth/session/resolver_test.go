package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/penguinmails/tenantcore/internal/common/config"
	"github.com/penguinmails/tenantcore/internal/common/errorx"
	"github.com/penguinmails/tenantcore/internal/database"
	"github.com/penguinmails/tenantcore/pkg/utils"
)

type countingBackend struct {
	calls atomic.Int64
	sess  *Session
}

func (b *countingBackend) LookupSession(_ context.Context, credential string) (*Session, error) {
	b.calls.Add(1)
	if credential == "valid" && b.sess != nil {
		return b.sess, nil
	}
	return nil, nil
}

func newSessionTestStore(t *testing.T) database.Database {
	t.Helper()
	db, err := database.NewSQLite(&config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestGetSessionEmptyCredential(t *testing.T) {
	r := NewResolver(&countingBackend{}, newSessionTestStore(t), nil, zap.NewNop())
	s, err := r.GetSession(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestGetSessionCachesWithinTTL(t *testing.T) {
	backend := &countingBackend{sess: &Session{UserID: utils.NewID(), ExpiresAt: time.Now().Add(time.Hour)}}
	cache := NewCache(16, 200*time.Millisecond)
	r := NewResolver(backend, newSessionTestStore(t), cache, zap.NewNop())
	ctx := context.Background()

	s1, err := r.GetSession(ctx, "valid")
	require.NoError(t, err)
	require.NotNil(t, s1)
	assert.Equal(t, int64(1), backend.calls.Load())

	// Second lookup inside the TTL window never touches the backend.
	s2, err := r.GetSession(ctx, "valid")
	require.NoError(t, err)
	assert.Equal(t, s1.UserID, s2.UserID)
	assert.Equal(t, int64(1), backend.calls.Load())

	// After expiry the backend is consulted again.
	time.Sleep(250 * time.Millisecond)
	_, err = r.GetSession(ctx, "valid")
	require.NoError(t, err)
	assert.Equal(t, int64(2), backend.calls.Load())
}

func TestGetSessionExpiredCachedSession(t *testing.T) {
	backend := &countingBackend{sess: &Session{UserID: utils.NewID(), ExpiresAt: time.Now().Add(time.Hour)}}
	r := NewResolver(backend, newSessionTestStore(t), NewCache(16, time.Hour), zap.NewNop())
	ctx := context.Background()

	_, err := r.GetSession(ctx, "valid")
	require.NoError(t, err)

	// Move the clock past the session's own expiry; the stale cache
	// entry is discarded and the backend re-queried.
	r.WithClock(func() time.Time { return time.Now().Add(2 * time.Hour) })
	_, err = r.GetSession(ctx, "valid")
	require.NoError(t, err)
	assert.Equal(t, int64(2), backend.calls.Load())
}

func TestResetClearsCache(t *testing.T) {
	backend := &countingBackend{sess: &Session{UserID: utils.NewID(), ExpiresAt: time.Now().Add(time.Hour)}}
	r := NewResolver(backend, newSessionTestStore(t), NewCache(16, time.Hour), zap.NewNop())
	ctx := context.Background()

	_, err := r.GetSession(ctx, "valid")
	require.NoError(t, err)
	r.Reset()
	_, err = r.GetSession(ctx, "valid")
	require.NoError(t, err)
	assert.Equal(t, int64(2), backend.calls.Load())
}

func TestValidateSessionNoSession(t *testing.T) {
	r := NewResolver(&countingBackend{}, newSessionTestStore(t), nil, zap.NewNop())
	_, err := r.ValidateSession(context.Background(), "garbage")
	require.Error(t, err)
	e := errorx.Classify(err)
	assert.Equal(t, errorx.CodeAuthRequired, e.Code)
	assert.Equal(t, errorx.KindAuthentication, e.Kind)
}

func TestValidateSessionLazyProfileAndLastLogin(t *testing.T) {
	db := newSessionTestStore(t)
	ctx := context.Background()

	user := &database.User{ID: utils.NewID(), Email: "ada@example.com", Name: "Ada"}
	require.NoError(t, db.CreateUser(ctx, user))

	backend := &countingBackend{sess: &Session{UserID: user.ID, Email: user.Email, ExpiresAt: time.Now().Add(time.Hour)}}
	r := NewResolver(backend, db, nil, zap.NewNop())

	got, err := r.ValidateSession(ctx, "valid")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.User.ID)
	require.NotNil(t, got.Profile)
	assert.Equal(t, database.PlatformUser, got.Profile.Role)

	// Last login lands asynchronously.
	require.Eventually(t, func() bool {
		p, err := db.GetProfileByUserID(ctx, user.ID)
		return err == nil && p != nil && p.LastLoginAt != nil
	}, 2*time.Second, 20*time.Millisecond)
}

func TestValidateSessionUserGone(t *testing.T) {
	backend := &countingBackend{sess: &Session{UserID: utils.NewID(), ExpiresAt: time.Now().Add(time.Hour)}}
	r := NewResolver(backend, newSessionTestStore(t), nil, zap.NewNop())

	_, err := r.ValidateSession(context.Background(), "valid")
	require.Error(t, err)
	assert.Equal(t, errorx.CodeProfileNotFound, errorx.Classify(err).Code)
}

func TestIsStaffUser(t *testing.T) {
	db := newSessionTestStore(t)
	ctx := context.Background()
	r := NewResolver(&countingBackend{}, db, nil, zap.NewNop())

	_, err := r.IsStaffUser(ctx, "not-a-uuid")
	require.Error(t, err)
	assert.Equal(t, errorx.CodeInvalidIdentifier, errorx.Classify(err).Code)

	staff := &database.User{ID: utils.NewID(), Email: "s@example.com"}
	require.NoError(t, db.CreateUser(ctx, staff))
	require.NoError(t, db.CreateProfile(ctx, &database.UserProfile{
		ID: utils.NewID(), UserID: staff.ID, Role: database.PlatformAdmin, IsStaff: true,
	}))

	ok, err := r.IsStaffUser(ctx, staff.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// Unknown user: no profile, not staff, no error.
	ok, err = r.IsStaffUser(ctx, utils.NewID())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsStaffUserFailsClosedOnBackendError(t *testing.T) {
	db := newSessionTestStore(t)
	r := NewResolver(&countingBackend{}, db, nil, zap.NewNop())
	require.NoError(t, db.Close())

	ok, err := r.IsStaffUser(context.Background(), utils.NewID())
	require.NoError(t, err)
	assert.False(t, ok)
}
