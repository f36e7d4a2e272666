package company

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/penguinmails/tenantcore/internal/access"
	"github.com/penguinmails/tenantcore/internal/common/errorx"
	"github.com/penguinmails/tenantcore/internal/database"
	"github.com/penguinmails/tenantcore/pkg/utils"
)

// Service is the tenant-scoped company CRUD and role-assignment
// surface. Every operation takes an optional requesting user id: when
// present, access is checked before the operation proceeds; when
// empty, the caller is trusted (internal jobs).
type Service struct {
	db     database.Database
	access *access.Validator
	logger *zap.Logger

	// retention for recovery points captured before deletes
	pointRetention time.Duration
}

// NewService creates a company service.
func NewService(db database.Database, validator *access.Validator, logger *zap.Logger) *Service {
	return &Service{
		db:             db,
		access:         validator,
		logger:         logger,
		pointRetention: 7 * 24 * time.Hour,
	}
}

// CreateCompanyInput is the validated payload for CreateCompany.
type CreateCompanyInput struct {
	Name     string           `json:"name"`
	Email    string           `json:"email"`
	Settings database.JSONMap `json:"settings"`
}

// UpdateCompanyInput is the partial-update payload. Nil fields are
// left untouched; an all-nil update is rejected.
type UpdateCompanyInput struct {
	Name     *string           `json:"name"`
	Email    *string           `json:"email"`
	Settings *database.JSONMap `json:"settings"`
}

// ListCompanies returns the non-deleted companies in a tenant ordered
// by name. Requires tenant membership.
func (s *Service) ListCompanies(ctx context.Context, tenantID, requestingUserID string) ([]*database.Company, error) {
	if !utils.IsUUID(tenantID) {
		return nil, errorx.InvalidIdentifier("tenantId")
	}
	if requestingUserID != "" {
		if !utils.IsUUID(requestingUserID) {
			return nil, errorx.InvalidIdentifier("userId")
		}
		if !s.tenantGate(ctx, requestingUserID, tenantID, "") {
			return nil, errorx.AccessDenied("")
		}
	}

	companies, err := s.db.ListCompanies(ctx, tenantID)
	if err != nil {
		return nil, errorx.Backend(err)
	}
	return companies, nil
}

// GetCompany returns one company, or nil when absent. Requires member
// access on the company.
func (s *Service) GetCompany(ctx context.Context, tenantID, companyID, requestingUserID string) (*database.Company, error) {
	if !utils.IsUUID(tenantID) {
		return nil, errorx.InvalidIdentifier("tenantId")
	}
	if !utils.IsUUID(companyID) {
		return nil, errorx.InvalidIdentifier("companyId")
	}
	if err := s.requireCompanyAccess(ctx, requestingUserID, tenantID, companyID, database.RoleMember); err != nil {
		return nil, err
	}

	company, err := s.db.GetCompany(ctx, tenantID, companyID)
	if err != nil {
		return nil, errorx.Backend(err)
	}
	return company, nil
}

// CreateCompany validates input, inserts the company and, when a
// creator is given, adds the creator as owner in the same transaction.
// Requires admin on the tenant.
func (s *Service) CreateCompany(ctx context.Context, tenantID string, input CreateCompanyInput, creatorID string) (*database.Company, error) {
	if !utils.IsUUID(tenantID) {
		return nil, errorx.InvalidIdentifier("tenantId")
	}
	if creatorID != "" {
		if !utils.IsUUID(creatorID) {
			return nil, errorx.InvalidIdentifier("creatorId")
		}
		if !s.tenantGate(ctx, creatorID, tenantID, database.RoleAdmin) {
			return nil, errorx.AccessDenied("")
		}
	}

	name, err := normalizeName(input.Name)
	if err != nil {
		return nil, err
	}
	if err := validateEmail(input.Email); err != nil {
		return nil, err
	}
	if err := validateSettings(input.Settings); err != nil {
		return nil, err
	}

	company := &database.Company{
		ID:       utils.NewID(),
		TenantID: tenantID,
		Name:     name,
		Email:    input.Email,
		Settings: input.Settings,
	}

	err = s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.db.CreateCompany(txCtx, company); err != nil {
			return err
		}
		if creatorID == "" {
			return nil
		}
		return s.db.CreateUserCompany(txCtx, &database.UserCompany{
			ID:        utils.NewID(),
			TenantID:  tenantID,
			UserID:    creatorID,
			CompanyID: company.ID,
			Role:      database.RoleOwner,
		})
	})
	if err != nil {
		return nil, errorx.Backend(err)
	}

	s.logger.Info("company created",
		zap.String("tenant_id", tenantID),
		zap.String("company_id", company.ID),
		zap.String("creator_id", creatorID))
	return company, nil
}

// UpdateCompany applies a partial update. Requires admin on the
// company. An empty update set is rejected before any write.
func (s *Service) UpdateCompany(ctx context.Context, tenantID, companyID string, input UpdateCompanyInput, requestingUserID string) (*database.Company, error) {
	if !utils.IsUUID(tenantID) {
		return nil, errorx.InvalidIdentifier("tenantId")
	}
	if !utils.IsUUID(companyID) {
		return nil, errorx.InvalidIdentifier("companyId")
	}
	if err := s.requireCompanyAccess(ctx, requestingUserID, tenantID, companyID, database.RoleAdmin); err != nil {
		return nil, err
	}

	fields := make(map[string]any)
	if input.Name != nil {
		name, err := normalizeName(*input.Name)
		if err != nil {
			return nil, err
		}
		fields["name"] = name
	}
	if input.Email != nil {
		if err := validateEmail(*input.Email); err != nil {
			return nil, err
		}
		fields["email"] = *input.Email
	}
	if input.Settings != nil {
		if err := validateSettings(*input.Settings); err != nil {
			return nil, err
		}
		fields["settings"] = *input.Settings
	}
	if len(fields) == 0 {
		return nil, errorx.Validation(errorx.CodeEmptyUpdate, "no fields to update")
	}
	fields["updated_at"] = time.Now()

	rows, err := s.db.UpdateCompany(ctx, tenantID, companyID, fields)
	if err != nil {
		return nil, errorx.Backend(err)
	}
	if rows == 0 {
		return nil, errorx.NotFound("company")
	}

	company, err := s.db.GetCompany(ctx, tenantID, companyID)
	if err != nil {
		return nil, errorx.Backend(err)
	}
	return company, nil
}

// DeleteCompany soft-deletes the company and cascades the soft delete
// to all of its membership edges. Requires owner on the company. A
// recovery point is captured first, best effort.
func (s *Service) DeleteCompany(ctx context.Context, tenantID, companyID, requestingUserID string) error {
	if !utils.IsUUID(tenantID) {
		return errorx.InvalidIdentifier("tenantId")
	}
	if !utils.IsUUID(companyID) {
		return errorx.InvalidIdentifier("companyId")
	}
	if err := s.requireCompanyAccess(ctx, requestingUserID, tenantID, companyID, database.RoleOwner); err != nil {
		return err
	}

	s.captureRecoveryPoint(ctx, tenantID, companyID)

	err := s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		rows, err := s.db.SoftDeleteCompany(txCtx, tenantID, companyID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return errorx.NotFound("company")
		}
		return s.db.SoftDeleteCompanyMembers(txCtx, tenantID, companyID)
	})
	if err != nil {
		return errorx.Classify(err)
	}

	s.logger.Info("company deleted",
		zap.String("tenant_id", tenantID),
		zap.String("company_id", companyID),
		zap.String("requested_by", requestingUserID))
	return nil
}

// GetUserCompanies lists a user's memberships across all tenants with
// joined company and user info. Only the user themselves or staff may
// ask.
func (s *Service) GetUserCompanies(ctx context.Context, userID, requestingUserID string) ([]*database.UserCompanyDetail, error) {
	if !utils.IsUUID(userID) {
		return nil, errorx.InvalidIdentifier("userId")
	}
	if requestingUserID != "" && requestingUserID != userID {
		if !utils.IsUUID(requestingUserID) {
			return nil, errorx.InvalidIdentifier("userId")
		}
		if !s.access.IsStaff(ctx, requestingUserID) {
			return nil, errorx.AccessDenied("")
		}
	}

	details, err := s.db.ListUserCompanies(ctx, userID)
	if err != nil {
		return nil, errorx.Backend(err)
	}
	return details, nil
}

// GetCompanyUsers lists company members ordered by role descending,
// then name and email. Requires member access on the company.
func (s *Service) GetCompanyUsers(ctx context.Context, tenantID, companyID, requestingUserID string) ([]*database.CompanyMember, error) {
	if !utils.IsUUID(tenantID) {
		return nil, errorx.InvalidIdentifier("tenantId")
	}
	if !utils.IsUUID(companyID) {
		return nil, errorx.InvalidIdentifier("companyId")
	}
	if err := s.requireCompanyAccess(ctx, requestingUserID, tenantID, companyID, database.RoleMember); err != nil {
		return nil, err
	}

	members, err := s.db.ListCompanyMembers(ctx, tenantID, companyID)
	if err != nil {
		return nil, errorx.Backend(err)
	}
	return members, nil
}

// AddUserToCompany adds or updates a user's company membership. The
// upsert is idempotent: an existing edge, deleted or not, is updated
// in place and revived. The target must already be a tenant member.
// Requires admin on the company for the requester.
func (s *Service) AddUserToCompany(ctx context.Context, tenantID, userID, companyID string, role database.Role, permissions database.JSONMap, requestingUserID string) (*database.UserCompany, error) {
	if !utils.IsUUID(tenantID) {
		return nil, errorx.InvalidIdentifier("tenantId")
	}
	if !utils.IsUUID(userID) {
		return nil, errorx.InvalidIdentifier("userId")
	}
	if !utils.IsUUID(companyID) {
		return nil, errorx.InvalidIdentifier("companyId")
	}
	if !access.ValidRole(role) {
		return nil, errorx.FieldValidation("role", "role must be member, admin or owner")
	}
	if err := validatePermissions(permissions); err != nil {
		return nil, err
	}
	if err := s.requireCompanyAccess(ctx, requestingUserID, tenantID, companyID, database.RoleAdmin); err != nil {
		return nil, err
	}

	company, err := s.db.GetCompany(ctx, tenantID, companyID)
	if err != nil {
		return nil, errorx.Backend(err)
	}
	if company == nil {
		return nil, errorx.NotFound("company")
	}

	membership, err := s.db.GetTenantMembership(ctx, userID, tenantID)
	if err != nil {
		return nil, errorx.Backend(err)
	}
	if membership == nil {
		return nil, errorx.Invariant(errorx.CodeNoTenantAccess, "user does not have access to this tenant")
	}

	edge, err := s.db.GetUserCompanyAny(ctx, tenantID, userID, companyID)
	if err != nil {
		return nil, errorx.Backend(err)
	}
	if edge == nil {
		edge = &database.UserCompany{
			ID:          utils.NewID(),
			TenantID:    tenantID,
			UserID:      userID,
			CompanyID:   companyID,
			Role:        role,
			Permissions: permissions,
		}
		if err := s.db.CreateUserCompany(ctx, edge); err != nil {
			return nil, errorx.Backend(err)
		}
		return edge, nil
	}

	edge.Role = role
	edge.Permissions = permissions
	edge.DeletedAt = nil
	if err := s.db.SaveUserCompany(ctx, edge); err != nil {
		return nil, errorx.Backend(err)
	}
	return edge, nil
}

// RemoveUserFromCompany soft-deletes a membership edge. Removing the
// sole remaining owner is always refused. Requires admin on the
// company for the requester.
func (s *Service) RemoveUserFromCompany(ctx context.Context, tenantID, userID, companyID, requestingUserID string) error {
	if !utils.IsUUID(tenantID) {
		return errorx.InvalidIdentifier("tenantId")
	}
	if !utils.IsUUID(userID) {
		return errorx.InvalidIdentifier("userId")
	}
	if !utils.IsUUID(companyID) {
		return errorx.InvalidIdentifier("companyId")
	}
	if err := s.requireCompanyAccess(ctx, requestingUserID, tenantID, companyID, database.RoleAdmin); err != nil {
		return err
	}

	edge, err := s.db.GetUserCompany(ctx, tenantID, userID, companyID)
	if err != nil {
		return errorx.Backend(err)
	}
	if edge == nil {
		return errorx.Invariant(errorx.CodeNotAMember, "user is not a member of this company")
	}
	if edge.Role == database.RoleOwner && s.IsOnlyCompanyOwner(ctx, tenantID, companyID, userID) {
		return errorx.Invariant(errorx.CodeLastOwner, "cannot remove the only owner")
	}

	if _, err := s.db.SoftDeleteUserCompany(ctx, tenantID, userID, companyID); err != nil {
		return errorx.Backend(err)
	}
	return nil
}

// UpdateUserCompanyRole updates an edge's role and permissions in
// place. Demoting the sole remaining owner is refused. Requires admin
// on the company for the requester.
func (s *Service) UpdateUserCompanyRole(ctx context.Context, tenantID, userID, companyID string, role database.Role, permissions database.JSONMap, requestingUserID string) (*database.UserCompany, error) {
	if !utils.IsUUID(tenantID) {
		return nil, errorx.InvalidIdentifier("tenantId")
	}
	if !utils.IsUUID(userID) {
		return nil, errorx.InvalidIdentifier("userId")
	}
	if !utils.IsUUID(companyID) {
		return nil, errorx.InvalidIdentifier("companyId")
	}
	if !access.ValidRole(role) {
		return nil, errorx.FieldValidation("role", "role must be member, admin or owner")
	}
	if err := validatePermissions(permissions); err != nil {
		return nil, err
	}
	if err := s.requireCompanyAccess(ctx, requestingUserID, tenantID, companyID, database.RoleAdmin); err != nil {
		return nil, err
	}

	edge, err := s.db.GetUserCompany(ctx, tenantID, userID, companyID)
	if err != nil {
		return nil, errorx.Backend(err)
	}
	if edge == nil {
		return nil, errorx.Invariant(errorx.CodeNotAMember, "user is not a member of this company")
	}
	if edge.Role == database.RoleOwner && role != database.RoleOwner &&
		s.IsOnlyCompanyOwner(ctx, tenantID, companyID, userID) {
		return nil, errorx.Invariant(errorx.CodeLastOwner, "cannot demote the only owner")
	}

	edge.Role = role
	edge.Permissions = permissions
	if err := s.db.SaveUserCompany(ctx, edge); err != nil {
		return nil, errorx.Backend(err)
	}
	return edge, nil
}

// GetCompanyStatistics aggregates member counts and last activity.
// Requires member access on the company.
func (s *Service) GetCompanyStatistics(ctx context.Context, tenantID, companyID, requestingUserID string) (*database.CompanyStatistics, error) {
	if !utils.IsUUID(tenantID) {
		return nil, errorx.InvalidIdentifier("tenantId")
	}
	if !utils.IsUUID(companyID) {
		return nil, errorx.InvalidIdentifier("companyId")
	}
	if err := s.requireCompanyAccess(ctx, requestingUserID, tenantID, companyID, database.RoleMember); err != nil {
		return nil, err
	}

	company, err := s.db.GetCompany(ctx, tenantID, companyID)
	if err != nil {
		return nil, errorx.Backend(err)
	}
	if company == nil {
		return nil, errorx.NotFound("company")
	}

	stats, err := s.db.GetCompanyStatistics(ctx, tenantID, companyID)
	if err != nil {
		return nil, errorx.Backend(err)
	}
	return stats, nil
}

// ValidateCompanyAccess is the fail-closed company gate: staff
// short-circuits to true, otherwise tenant membership and a company
// role at or above minRole are both required. Backend failures resolve
// to false; malformed identifiers propagate as validation errors.
func (s *Service) ValidateCompanyAccess(ctx context.Context, userID, tenantID, companyID string, minRole database.Role) (bool, error) {
	if !utils.IsUUID(userID) {
		return false, errorx.InvalidIdentifier("userId")
	}
	if !utils.IsUUID(tenantID) {
		return false, errorx.InvalidIdentifier("tenantId")
	}
	if !utils.IsUUID(companyID) {
		return false, errorx.InvalidIdentifier("companyId")
	}

	result := s.companyAccess(ctx, userID, tenantID, companyID, minRole)
	if result.Unavailable {
		s.logger.Warn("company access check unavailable, denying",
			zap.String("user_id", userID),
			zap.String("tenant_id", tenantID),
			zap.String("company_id", companyID),
			zap.Error(result.Err))
	}
	return result.Allowed, nil
}

// IsOnlyCompanyOwner reports whether exactly one non-deleted owner
// edge exists and it belongs to userID. Never errors; failures resolve
// to false.
func (s *Service) IsOnlyCompanyOwner(ctx context.Context, tenantID, companyID, userID string) bool {
	owners, err := s.db.ListCompanyOwners(ctx, tenantID, companyID)
	if err != nil {
		s.logger.Warn("owner lookup unavailable",
			zap.String("tenant_id", tenantID),
			zap.String("company_id", companyID),
			zap.Error(err))
		return false
	}
	return len(owners) == 1 && owners[0] == userID
}

// companyAccess resolves the company gate with diagnostics.
func (s *Service) companyAccess(ctx context.Context, userID, tenantID, companyID string, minRole database.Role) access.GateResult {
	if s.access.IsStaff(ctx, userID) {
		return access.GateResult{Allowed: true, StaffBypass: true}
	}

	membership, err := s.db.GetTenantMembership(ctx, userID, tenantID)
	if err != nil {
		return access.GateResult{Unavailable: true, Err: err}
	}
	if membership == nil {
		return access.GateResult{}
	}

	edge, err := s.db.GetUserCompany(ctx, tenantID, userID, companyID)
	if err != nil {
		return access.GateResult{Unavailable: true, Err: err}
	}
	if edge == nil {
		return access.GateResult{}
	}
	if minRole == "" || access.AtLeast(edge.Role, minRole) {
		return access.GateResult{Allowed: true}
	}
	return access.GateResult{}
}

// requireCompanyAccess enforces the company gate for a requesting
// user, treating an empty requester as trusted.
func (s *Service) requireCompanyAccess(ctx context.Context, requestingUserID, tenantID, companyID string, minRole database.Role) error {
	if requestingUserID == "" {
		return nil
	}
	if !utils.IsUUID(requestingUserID) {
		return errorx.InvalidIdentifier("userId")
	}
	ok, err := s.ValidateCompanyAccess(ctx, requestingUserID, tenantID, companyID, minRole)
	if err != nil {
		return err
	}
	if !ok {
		return errorx.AccessDenied("")
	}
	return nil
}

// tenantGate wraps the tenant validator's fail-closed check.
func (s *Service) tenantGate(ctx context.Context, userID, tenantID string, minRole database.Role) bool {
	return s.access.ValidateTenantAccess(ctx, userID, tenantID, minRole)
}

// captureRecoveryPoint stores a reversible snapshot of a company
// before deletion. Best effort: failure is logged, never blocks.
func (s *Service) captureRecoveryPoint(ctx context.Context, tenantID, companyID string) {
	company, err := s.db.GetCompany(ctx, tenantID, companyID)
	if err != nil || company == nil {
		return
	}
	payload, err := json.Marshal(company)
	if err != nil {
		return
	}
	point := &database.RecoveryPoint{
		ID:          utils.NewID(),
		Scope:       "company",
		ReferenceID: companyID,
		Payload:     string(payload),
		ExpiresAt:   time.Now().Add(s.pointRetention),
	}
	if err := s.db.CreateRecoveryPoint(ctx, point); err != nil {
		s.logger.Warn("failed to capture recovery point",
			zap.String("company_id", companyID),
			zap.Error(err))
	}
}
