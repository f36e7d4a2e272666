package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/penguinmails/tenantcore/internal/common/config"
	"github.com/penguinmails/tenantcore/internal/database"
	"github.com/penguinmails/tenantcore/pkg/utils"
)

type stubStaff struct {
	staff map[string]bool
}

func (s *stubStaff) IsStaffUser(_ context.Context, userID string) (bool, error) {
	return s.staff[userID], nil
}

func newAccessTestDB(t *testing.T) database.Database {
	t.Helper()
	db, err := database.NewSQLite(&config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRoleHierarchy(t *testing.T) {
	assert.True(t, AtLeast(database.RoleOwner, database.RoleMember))
	assert.True(t, AtLeast(database.RoleAdmin, database.RoleMember))
	assert.True(t, AtLeast(database.RoleAdmin, database.RoleAdmin))
	assert.False(t, AtLeast(database.RoleMember, database.RoleAdmin))
	assert.False(t, AtLeast(database.RoleAdmin, database.RoleOwner))
	assert.False(t, AtLeast(database.Role("bogus"), database.RoleMember))

	assert.Equal(t, database.RoleOwner, MaxRole(database.RoleMember, database.RoleOwner, database.RoleAdmin))
	assert.Equal(t, database.Role(""), MaxRole())
	assert.True(t, ValidRole(database.RoleOwner))
	assert.False(t, ValidRole(database.Role("root")))
}

func TestValidateTenantAccessNoMembership(t *testing.T) {
	db := newAccessTestDB(t)
	v := NewValidator(db, &stubStaff{}, zap.NewNop())

	assert.False(t, v.ValidateTenantAccess(context.Background(), utils.NewID(), utils.NewID(), ""))
}

func TestValidateTenantAccessMalformedIDs(t *testing.T) {
	db := newAccessTestDB(t)
	v := NewValidator(db, &stubStaff{}, zap.NewNop())

	assert.False(t, v.ValidateTenantAccess(context.Background(), "nope", utils.NewID(), ""))
	assert.False(t, v.ValidateTenantAccess(context.Background(), utils.NewID(), "nope", ""))
}

func TestValidateTenantAccessMembershipAndMinRole(t *testing.T) {
	db := newAccessTestDB(t)
	ctx := context.Background()
	v := NewValidator(db, &stubStaff{}, zap.NewNop())

	user := &database.User{ID: utils.NewID(), Email: "ada@example.com"}
	require.NoError(t, db.CreateUser(ctx, user))
	tenant := &database.Tenant{ID: utils.NewID(), Name: "acme"}
	require.NoError(t, db.CreateTenant(ctx, tenant))
	require.NoError(t, db.AddTenantMember(ctx, &database.TenantMembership{
		ID: utils.NewID(), UserID: user.ID, TenantID: tenant.ID,
		Roles: database.RoleList{database.RoleMember},
	}))

	assert.True(t, v.ValidateTenantAccess(ctx, user.ID, tenant.ID, ""))
	assert.True(t, v.ValidateTenantAccess(ctx, user.ID, tenant.ID, database.RoleMember))
	assert.False(t, v.ValidateTenantAccess(ctx, user.ID, tenant.ID, database.RoleAdmin))
	assert.False(t, v.ValidateTenantAccess(ctx, user.ID, tenant.ID, database.RoleOwner))
}

func TestResolveTenantRoleUsesMaxSignal(t *testing.T) {
	db := newAccessTestDB(t)
	ctx := context.Background()
	v := NewValidator(db, &stubStaff{}, zap.NewNop())

	user := &database.User{ID: utils.NewID(), Email: "ada@example.com"}
	require.NoError(t, db.CreateUser(ctx, user))
	tenant := &database.Tenant{ID: utils.NewID(), Name: "acme"}
	require.NoError(t, db.CreateTenant(ctx, tenant))
	require.NoError(t, db.AddTenantMember(ctx, &database.TenantMembership{
		ID: utils.NewID(), UserID: user.ID, TenantID: tenant.ID,
		Roles: database.RoleList{database.RoleMember},
	}))

	// A member-level tenant edge plus an owner-level company edge
	// resolves to owner.
	company := &database.Company{ID: utils.NewID(), TenantID: tenant.ID, Name: "Widgets"}
	require.NoError(t, db.CreateCompany(ctx, company))
	require.NoError(t, db.CreateUserCompany(ctx, &database.UserCompany{
		ID: utils.NewID(), TenantID: tenant.ID, UserID: user.ID,
		CompanyID: company.ID, Role: database.RoleOwner,
	}))

	assert.True(t, v.ValidateTenantAccess(ctx, user.ID, tenant.ID, database.RoleOwner))
}

func TestStaffBypassesTenantChecks(t *testing.T) {
	db := newAccessTestDB(t)
	staffID := utils.NewID()
	v := NewValidator(db, &stubStaff{staff: map[string]bool{staffID: true}}, zap.NewNop())
	ctx := context.Background()

	// No membership exists at all; staff still passes, and the gate
	// records the bypass.
	result := v.TenantAccess(ctx, staffID, utils.NewID(), database.RoleOwner)
	assert.True(t, result.Allowed)
	assert.True(t, result.StaffBypass)
}

func TestTenantAccessFailsClosedOnBackendError(t *testing.T) {
	db := newAccessTestDB(t)
	v := NewValidator(db, &stubStaff{}, zap.NewNop())
	require.NoError(t, db.Close())

	result := v.TenantAccess(context.Background(), utils.NewID(), utils.NewID(), "")
	assert.False(t, result.Allowed)
	assert.True(t, result.Unavailable)
	assert.Error(t, result.Err)
	assert.False(t, v.ValidateTenantAccess(context.Background(), utils.NewID(), utils.NewID(), ""))
}
