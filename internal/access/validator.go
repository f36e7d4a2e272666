package access

import (
	"context"

	"go.uber.org/zap"

	"github.com/penguinmails/tenantcore/internal/database"
	"github.com/penguinmails/tenantcore/pkg/utils"
)

// StaffChecker answers staff-privilege queries. Implemented by the
// session resolver.
type StaffChecker interface {
	IsStaffUser(ctx context.Context, userID string) (bool, error)
}

// Validator resolves tenant membership and effective roles. All its
// boolean gates fail closed: any backend failure is a denial.
type Validator struct {
	db     database.Database
	staff  StaffChecker
	logger *zap.Logger
}

// NewValidator creates a tenant access validator.
func NewValidator(db database.Database, staff StaffChecker, logger *zap.Logger) *Validator {
	return &Validator{
		db:     db,
		staff:  staff,
		logger: logger,
	}
}

// IsStaff reports staff privilege, failing closed on any error.
func (v *Validator) IsStaff(ctx context.Context, userID string) bool {
	ok, err := v.staff.IsStaffUser(ctx, userID)
	if err != nil {
		return false
	}
	return ok
}

// TenantAccess resolves tenant access with full diagnostics. Staff is
// checked first and short-circuits to allowed.
func (v *Validator) TenantAccess(ctx context.Context, userID, tenantID string, minRole database.Role) GateResult {
	if !utils.IsUUID(userID) || !utils.IsUUID(tenantID) {
		return denied()
	}

	if v.IsStaff(ctx, userID) {
		return staffAllowed()
	}

	membership, err := v.db.GetTenantMembership(ctx, userID, tenantID)
	if err != nil {
		return unavailable(err)
	}
	if membership == nil {
		return denied()
	}
	if minRole == "" {
		return allowed()
	}

	role, err := v.resolveTenantRole(ctx, membership)
	if err != nil {
		return unavailable(err)
	}
	if AtLeast(role, minRole) {
		return allowed()
	}
	return denied()
}

// ValidateTenantAccess is the public fail-closed gate over
// TenantAccess. Unavailability is logged, never surfaced.
func (v *Validator) ValidateTenantAccess(ctx context.Context, userID, tenantID string, minRole database.Role) bool {
	result := v.TenantAccess(ctx, userID, tenantID, minRole)
	if result.Unavailable {
		v.logger.Warn("tenant access check unavailable, denying",
			zap.String("user_id", userID),
			zap.String("tenant_id", tenantID),
			zap.Error(result.Err))
	}
	return result.Allowed
}

// resolveTenantRole computes the user's effective role inside a
// tenant: the maximum across the membership's own roles and all of the
// user's company roles within that tenant.
func (v *Validator) resolveTenantRole(ctx context.Context, membership *database.TenantMembership) (database.Role, error) {
	roles := make([]database.Role, 0, len(membership.Roles)+1)
	roles = append(roles, membership.Roles...)

	edges, err := v.db.ListUserCompanyRoles(ctx, membership.TenantID, membership.UserID)
	if err != nil {
		return "", err
	}
	for _, e := range edges {
		roles = append(roles, e.Role)
	}

	if len(roles) == 0 {
		// A bare membership with no role signals still counts as member.
		return database.RoleMember, nil
	}
	role := MaxRole(roles...)
	if role == "" {
		return database.RoleMember, nil
	}
	return role, nil
}
