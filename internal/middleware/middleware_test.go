package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/penguinmails/tenantcore/internal/access"
	"github.com/penguinmails/tenantcore/internal/auth/session"
	"github.com/penguinmails/tenantcore/internal/auth/token"
	"github.com/penguinmails/tenantcore/internal/common/cnst"
	"github.com/penguinmails/tenantcore/internal/common/config"
	"github.com/penguinmails/tenantcore/internal/common/errorx"
	"github.com/penguinmails/tenantcore/internal/database"
	"github.com/penguinmails/tenantcore/pkg/utils"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	db       database.Database
	tokens   *token.Service
	resolver *session.Resolver
	access   *access.Validator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.NewSQLite(&config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tokens, err := token.NewService(token.Config{SecretKey: testSecret, Duration: time.Hour})
	require.NoError(t, err)

	resolver := session.NewResolver(session.NewTokenBackend(tokens), db, nil, zap.NewNop())
	return &testEnv{
		db:       db,
		tokens:   tokens,
		resolver: resolver,
		access:   access.NewValidator(db, resolver, zap.NewNop()),
	}
}

func (e *testEnv) mustUser(t *testing.T, email string, staff bool) (*database.User, string) {
	t.Helper()
	ctx := context.Background()
	user := &database.User{ID: utils.NewID(), Email: email}
	require.NoError(t, e.db.CreateUser(ctx, user))
	require.NoError(t, e.db.CreateProfile(ctx, &database.UserProfile{
		ID: utils.NewID(), UserID: user.ID, Role: database.PlatformUser, IsStaff: staff,
	}))
	cred, err := e.tokens.GenerateToken(user.ID, email)
	require.NoError(t, err)
	return user, cred
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/ping", func(c *gin.Context) {
		rc := GetRequestContext(c)
		assert.True(t, utils.IsUUID(rc.RequestID))
		c.Status(http.StatusOK)
	})

	// A well-formed inbound id is honored.
	inbound := utils.NewID()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(cnst.HeaderRequestID, inbound)
	r.ServeHTTP(w, req)
	assert.Equal(t, inbound, w.Header().Get(cnst.HeaderRequestID))

	// A garbage inbound id is replaced.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(cnst.HeaderRequestID, "garbage")
	r.ServeHTTP(w, req)
	got := w.Header().Get(cnst.HeaderRequestID)
	assert.NotEqual(t, "garbage", got)
	assert.True(t, utils.IsUUID(got))
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	env := newTestEnv(t)
	user, cred := env.mustUser(t, "ada@example.com", false)

	r := gin.New()
	r.Use(RequestID(), Auth(env.resolver, zap.NewNop()))
	r.GET("/me", func(c *gin.Context) {
		current := CurrentUser(c)
		require.NotNil(t, current)
		assert.Equal(t, user.ID, current.User.ID)
		assert.Equal(t, user.ID, GetRequestContext(c).UserID)
		c.Status(http.StatusOK)
	})

	// Bearer header works.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(cnst.HeaderAuthorization, "Bearer "+cred)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Cookie fallback works.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: cnst.SessionCookie, Value: cred})
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// No credential stops with 401 and the error envelope.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	var envelope errorx.ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, errorx.CodeAuthRequired, envelope.Code)

	// A forged token is a missing session, not a server error.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(cnst.HeaderAuthorization, "Bearer not.a.token")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireTenantMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	env := newTestEnv(t)
	ctx := context.Background()

	member, memberCred := env.mustUser(t, "member@example.com", false)
	_, outsiderCred := env.mustUser(t, "outsider@example.com", false)
	_, staffCred := env.mustUser(t, "staff@example.com", true)

	tenant := &database.Tenant{ID: utils.NewID(), Name: "acme"}
	require.NoError(t, env.db.CreateTenant(ctx, tenant))
	require.NoError(t, env.db.AddTenantMember(ctx, &database.TenantMembership{
		ID: utils.NewID(), UserID: member.ID, TenantID: tenant.ID,
		Roles: database.RoleList{database.RoleMember},
	}))

	r := gin.New()
	r.Use(RequestID(), Auth(env.resolver, zap.NewNop()))
	r.GET("/tenants/:tenantId/ping",
		RequireTenant(env.access, database.RoleMember, nil, zap.NewNop()),
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"staffBypass": GetRequestContext(c).StaffBypass})
		})

	send := func(cred string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/tenants/"+tenant.ID+"/ping", nil)
		req.Header.Set(cnst.HeaderAuthorization, "Bearer "+cred)
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send(memberCred).Code)
	assert.Equal(t, http.StatusForbidden, send(outsiderCred).Code)

	staffResp := send(staffCred)
	require.Equal(t, http.StatusOK, staffResp.Code)
	assert.True(t, strings.Contains(staffResp.Body.String(), `"staffBypass":true`))
}

type echoBody struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
}

func TestValidateBodyMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.POST("/echo", ValidateBody[echoBody](zap.NewNop()), func(c *gin.Context) {
		body := Body[echoBody](c)
		require.NotNil(t, body)
		errorx.RespondSuccess(c, body, "")
	})

	post := func(payload string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, post(`{"name":"Widgets"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"name":`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"name":"Widgets","email":"nope"}`).Code)
}

func TestAuditMiddlewareRecordsBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	env := newTestEnv(t)
	ctx := context.Background()

	_, staffCred := env.mustUser(t, "staff@example.com", true)
	tenant := &database.Tenant{ID: utils.NewID(), Name: "acme"}
	require.NoError(t, env.db.CreateTenant(ctx, tenant))

	r := gin.New()
	r.Use(RequestID(), Auth(env.resolver, zap.NewNop()))
	r.GET("/tenants/:tenantId/ping",
		Audit(env.db, "tenant.ping", zap.NewNop()),
		RequireTenant(env.access, database.RoleMember, nil, zap.NewNop()),
		func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tenants/"+tenant.ID+"/ping", nil)
	req.Header.Set(cnst.HeaderAuthorization, "Bearer "+staffCred)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Eventually(t, func() bool {
		records, err := env.db.ListAuditRecords(ctx, tenant.ID, 10)
		if err != nil || len(records) != 1 {
			return false
		}
		rec := records[0]
		return rec.Operation == "tenant.ping" &&
			rec.StaffBypass &&
			rec.Outcome == "allowed" &&
			utils.IsUUID(rec.RequestID)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRecoverMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Recover(zap.NewNop()))
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var envelope errorx.ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.False(t, envelope.Success)
	assert.NotContains(t, w.Body.String(), "kaboom")
}
