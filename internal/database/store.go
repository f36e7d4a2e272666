package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Store implements Database on top of gorm. All three supported
// drivers share this implementation; only the dialector differs.
type Store struct {
	db *gorm.DB
}

func newStore(gormDB *gorm.DB) (*Store, error) {
	if err := gormDB.AutoMigrate(
		&User{},
		&UserProfile{},
		&Tenant{},
		&TenantMembership{},
		&Company{},
		&UserCompany{},
		&AuditRecord{},
		&RecoveryPoint{},
	); err != nil {
		return nil, err
	}
	return &Store{db: gormDB}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTransaction runs fn inside a transaction carried by the context.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ContextWithTransaction(ctx, tx))
	})
}

// ---- IdentityStore ----

// CreateUser inserts a mirrored identity record
func (s *Store) CreateUser(ctx context.Context, user *User) error {
	return getDBFromContext(ctx, s.db).Create(user).Error
}

// GetUser retrieves a user by id
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	err := getDBFromContext(ctx, s.db).
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := getDBFromContext(ctx, s.db).
		Where("email = ?", email).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// CreateProfile inserts a user profile
func (s *Store) CreateProfile(ctx context.Context, profile *UserProfile) error {
	return getDBFromContext(ctx, s.db).Create(profile).Error
}

// GetProfileByUserID retrieves the non-deleted profile for a user
func (s *Store) GetProfileByUserID(ctx context.Context, userID string) (*UserProfile, error) {
	var profile UserProfile
	err := getDBFromContext(ctx, s.db).
		Where("user_id = ? AND deleted_at IS NULL", userID).
		Order("created_at asc").
		First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile saves profile changes
func (s *Store) UpdateProfile(ctx context.Context, profile *UserProfile) error {
	return getDBFromContext(ctx, s.db).Save(profile).Error
}

// RecordLogin stamps the profile's last-login time
func (s *Store) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	return getDBFromContext(ctx, s.db).
		Model(&UserProfile{}).
		Where("user_id = ? AND deleted_at IS NULL", userID).
		Update("last_login_at", at).Error
}

// ---- TenantStore ----

// CreateTenant inserts a tenant
func (s *Store) CreateTenant(ctx context.Context, tenant *Tenant) error {
	return getDBFromContext(ctx, s.db).Create(tenant).Error
}

// GetTenant retrieves a non-deleted tenant by id
func (s *Store) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	var tenant Tenant
	err := getDBFromContext(ctx, s.db).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tenant, nil
}

// ListTenants lists non-deleted tenants
func (s *Store) ListTenants(ctx context.Context) ([]*Tenant, error) {
	var tenants []*Tenant
	err := getDBFromContext(ctx, s.db).
		Where("deleted_at IS NULL").
		Order("name asc").
		Find(&tenants).Error
	return tenants, err
}

// AddTenantMember creates or revives a membership edge
func (s *Store) AddTenantMember(ctx context.Context, membership *TenantMembership) error {
	db := getDBFromContext(ctx, s.db)

	var existing TenantMembership
	err := db.
		Where("user_id = ? AND tenant_id = ?", membership.UserID, membership.TenantID).
		Order("created_at desc").
		First(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return db.Create(membership).Error
	}

	existing.Roles = membership.Roles
	existing.DeletedAt = nil
	if err := db.Save(&existing).Error; err != nil {
		return err
	}
	*membership = existing
	return nil
}

// GetTenantMembership retrieves the non-deleted edge for a user and tenant
func (s *Store) GetTenantMembership(ctx context.Context, userID, tenantID string) (*TenantMembership, error) {
	var membership TenantMembership
	err := getDBFromContext(ctx, s.db).
		Where("user_id = ? AND tenant_id = ? AND deleted_at IS NULL", userID, tenantID).
		First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &membership, nil
}

// RemoveTenantMember soft-deletes the membership edge
func (s *Store) RemoveTenantMember(ctx context.Context, userID, tenantID string) error {
	now := time.Now()
	return getDBFromContext(ctx, s.db).
		Model(&TenantMembership{}).
		Where("user_id = ? AND tenant_id = ? AND deleted_at IS NULL", userID, tenantID).
		Update("deleted_at", now).Error
}

// ---- CompanyStore ----

// CreateCompany inserts a company
func (s *Store) CreateCompany(ctx context.Context, company *Company) error {
	return getDBFromContext(ctx, s.db).Create(company).Error
}

// GetCompany retrieves a non-deleted company scoped to a tenant
func (s *Store) GetCompany(ctx context.Context, tenantID, companyID string) (*Company, error) {
	var company Company
	err := getDBFromContext(ctx, s.db).
		Where("id = ? AND tenant_id = ? AND deleted_at IS NULL", companyID, tenantID).
		First(&company).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &company, nil
}

// ListCompanies lists non-deleted companies in a tenant ordered by name
func (s *Store) ListCompanies(ctx context.Context, tenantID string) ([]*Company, error) {
	var companies []*Company
	err := getDBFromContext(ctx, s.db).
		Where("tenant_id = ? AND deleted_at IS NULL", tenantID).
		Order("name asc").
		Find(&companies).Error
	return companies, err
}

// UpdateCompany applies a partial update and reports affected rows
func (s *Store) UpdateCompany(ctx context.Context, tenantID, companyID string, fields map[string]any) (int64, error) {
	result := getDBFromContext(ctx, s.db).
		Model(&Company{}).
		Where("id = ? AND tenant_id = ? AND deleted_at IS NULL", companyID, tenantID).
		Updates(fields)
	return result.RowsAffected, result.Error
}

// SoftDeleteCompany marks a company deleted
func (s *Store) SoftDeleteCompany(ctx context.Context, tenantID, companyID string) (int64, error) {
	result := getDBFromContext(ctx, s.db).
		Model(&Company{}).
		Where("id = ? AND tenant_id = ? AND deleted_at IS NULL", companyID, tenantID).
		Update("deleted_at", time.Now())
	return result.RowsAffected, result.Error
}

// SoftDeleteCompanyMembers marks all edges of a company deleted
func (s *Store) SoftDeleteCompanyMembers(ctx context.Context, tenantID, companyID string) error {
	return getDBFromContext(ctx, s.db).
		Model(&UserCompany{}).
		Where("company_id = ? AND tenant_id = ? AND deleted_at IS NULL", companyID, tenantID).
		Update("deleted_at", time.Now()).Error
}

// CreateUserCompany inserts a company edge
func (s *Store) CreateUserCompany(ctx context.Context, edge *UserCompany) error {
	return getDBFromContext(ctx, s.db).Create(edge).Error
}

// SaveUserCompany persists changes to an existing edge
func (s *Store) SaveUserCompany(ctx context.Context, edge *UserCompany) error {
	return getDBFromContext(ctx, s.db).Save(edge).Error
}

// GetUserCompany retrieves the non-deleted edge for the triple
func (s *Store) GetUserCompany(ctx context.Context, tenantID, userID, companyID string) (*UserCompany, error) {
	var edge UserCompany
	err := getDBFromContext(ctx, s.db).
		Where("tenant_id = ? AND user_id = ? AND company_id = ? AND deleted_at IS NULL",
			tenantID, userID, companyID).
		First(&edge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &edge, nil
}

// GetUserCompanyAny retrieves the newest edge for the triple including
// soft-deleted ones
func (s *Store) GetUserCompanyAny(ctx context.Context, tenantID, userID, companyID string) (*UserCompany, error) {
	var edge UserCompany
	err := getDBFromContext(ctx, s.db).
		Where("tenant_id = ? AND user_id = ? AND company_id = ?", tenantID, userID, companyID).
		Order("created_at desc").
		First(&edge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &edge, nil
}

// SoftDeleteUserCompany marks the edge deleted
func (s *Store) SoftDeleteUserCompany(ctx context.Context, tenantID, userID, companyID string) (int64, error) {
	result := getDBFromContext(ctx, s.db).
		Model(&UserCompany{}).
		Where("tenant_id = ? AND user_id = ? AND company_id = ? AND deleted_at IS NULL",
			tenantID, userID, companyID).
		Update("deleted_at", time.Now())
	return result.RowsAffected, result.Error
}

// roleRankExpr orders roles owner > admin > member in SQL.
const roleRankExpr = "CASE user_companies.role WHEN 'owner' THEN 3 WHEN 'admin' THEN 2 ELSE 1 END"

// ListCompanyMembers lists members with joined user info
func (s *Store) ListCompanyMembers(ctx context.Context, tenantID, companyID string) ([]*CompanyMember, error) {
	var members []*CompanyMember
	err := getDBFromContext(ctx, s.db).
		Table("user_companies").
		Select("user_companies.user_id, user_companies.company_id, user_companies.tenant_id, "+
			"user_companies.role, user_companies.permissions, user_companies.created_at, "+
			"users.name, users.email").
		Joins("JOIN users ON users.id = user_companies.user_id").
		Where("user_companies.tenant_id = ? AND user_companies.company_id = ? AND user_companies.deleted_at IS NULL",
			tenantID, companyID).
		Order(roleRankExpr + " DESC, users.name asc, users.email asc").
		Scan(&members).Error
	return members, err
}

// ListUserCompanyRoles lists all non-deleted edges a user holds within
// one tenant
func (s *Store) ListUserCompanyRoles(ctx context.Context, tenantID, userID string) ([]*UserCompany, error) {
	var edges []*UserCompany
	err := getDBFromContext(ctx, s.db).
		Where("tenant_id = ? AND user_id = ? AND deleted_at IS NULL", tenantID, userID).
		Find(&edges).Error
	return edges, err
}

// ListUserCompanies lists a user's memberships across tenants
func (s *Store) ListUserCompanies(ctx context.Context, userID string) ([]*UserCompanyDetail, error) {
	var details []*UserCompanyDetail
	err := getDBFromContext(ctx, s.db).
		Table("user_companies").
		Select("user_companies.id, user_companies.tenant_id, user_companies.user_id, "+
			"user_companies.company_id, user_companies.role, user_companies.created_at, "+
			"companies.name AS company_name, companies.email AS company_email, "+
			"users.name AS user_name, users.email AS user_email").
		Joins("JOIN companies ON companies.id = user_companies.company_id").
		Joins("JOIN users ON users.id = user_companies.user_id").
		Where("user_companies.user_id = ? AND user_companies.deleted_at IS NULL AND companies.deleted_at IS NULL", userID).
		Order("companies.name asc").
		Scan(&details).Error
	return details, err
}

// ListCompanyOwners returns user ids holding a non-deleted owner edge
func (s *Store) ListCompanyOwners(ctx context.Context, tenantID, companyID string) ([]string, error) {
	var owners []string
	err := getDBFromContext(ctx, s.db).
		Model(&UserCompany{}).
		Where("tenant_id = ? AND company_id = ? AND role = ? AND deleted_at IS NULL",
			tenantID, companyID, RoleOwner).
		Pluck("user_id", &owners).Error
	return owners, err
}

// GetCompanyStatistics aggregates member counts and last activity
func (s *Store) GetCompanyStatistics(ctx context.Context, tenantID, companyID string) (*CompanyStatistics, error) {
	db := getDBFromContext(ctx, s.db)
	stats := &CompanyStatistics{}

	type roleCount struct {
		Role  Role
		Count int64
	}
	var counts []roleCount
	err := db.
		Model(&UserCompany{}).
		Select("role, COUNT(*) AS count").
		Where("tenant_id = ? AND company_id = ? AND deleted_at IS NULL", tenantID, companyID).
		Group("role").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	for _, rc := range counts {
		switch rc.Role {
		case RoleOwner:
			stats.OwnerCount = rc.Count
		case RoleAdmin:
			stats.AdminCount = rc.Count
		default:
			stats.MemberCount += rc.Count
		}
		stats.TotalCount += rc.Count
	}

	var last sql.NullTime
	err = db.
		Model(&UserCompany{}).
		Select("MAX(updated_at)").
		Where("tenant_id = ? AND company_id = ? AND deleted_at IS NULL", tenantID, companyID).
		Scan(&last).Error
	if err != nil {
		return nil, err
	}
	if last.Valid {
		t := last.Time
		stats.LastActivityAt = &t
	}

	return stats, nil
}

// ---- AuditStore ----

// SaveAuditRecord appends an audit record
func (s *Store) SaveAuditRecord(ctx context.Context, record *AuditRecord) error {
	return getDBFromContext(ctx, s.db).Create(record).Error
}

// ListAuditRecords lists the newest records for a tenant
func (s *Store) ListAuditRecords(ctx context.Context, tenantID string, limit int) ([]*AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []*AuditRecord
	err := getDBFromContext(ctx, s.db).
		Where("tenant_id = ?", tenantID).
		Order("created_at desc").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// ---- RecoveryStore ----

// CreateRecoveryPoint stores a reversible snapshot pointer
func (s *Store) CreateRecoveryPoint(ctx context.Context, point *RecoveryPoint) error {
	return getDBFromContext(ctx, s.db).Create(point).Error
}

// PurgeExpiredRecoveryPoints removes points past their expiry
func (s *Store) PurgeExpiredRecoveryPoints(ctx context.Context, now time.Time) (int64, error) {
	result := getDBFromContext(ctx, s.db).
		Where("expires_at < ?", now).
		Delete(&RecoveryPoint{})
	return result.RowsAffected, result.Error
}

// FindOrphanedProfiles lists non-deleted profiles without a user
func (s *Store) FindOrphanedProfiles(ctx context.Context) ([]*UserProfile, error) {
	var profiles []*UserProfile
	err := getDBFromContext(ctx, s.db).
		Table("user_profiles").
		Select("user_profiles.*").
		Joins("LEFT JOIN users ON users.id = user_profiles.user_id").
		Where("user_profiles.deleted_at IS NULL AND users.id IS NULL").
		Scan(&profiles).Error
	return profiles, err
}

// FindOrphanedMemberships lists non-deleted edges whose tenant is
// missing or deleted
func (s *Store) FindOrphanedMemberships(ctx context.Context) ([]*TenantMembership, error) {
	var memberships []*TenantMembership
	err := getDBFromContext(ctx, s.db).
		Table("tenant_memberships").
		Select("tenant_memberships.*").
		Joins("LEFT JOIN tenants ON tenants.id = tenant_memberships.tenant_id").
		Where("tenant_memberships.deleted_at IS NULL AND (tenants.id IS NULL OR tenants.deleted_at IS NOT NULL)").
		Scan(&memberships).Error
	return memberships, err
}

// FindCompaniesWithoutTenant lists non-deleted companies whose tenant
// is missing or deleted
func (s *Store) FindCompaniesWithoutTenant(ctx context.Context) ([]*Company, error) {
	var companies []*Company
	err := getDBFromContext(ctx, s.db).
		Table("companies").
		Select("companies.*").
		Joins("LEFT JOIN tenants ON tenants.id = companies.tenant_id").
		Where("companies.deleted_at IS NULL AND (tenants.id IS NULL OR tenants.deleted_at IS NOT NULL)").
		Scan(&companies).Error
	return companies, err
}

// FindDuplicateProfiles lists surplus non-deleted profiles beyond the
// oldest one per user
func (s *Store) FindDuplicateProfiles(ctx context.Context) ([]*UserProfile, error) {
	var profiles []*UserProfile
	err := getDBFromContext(ctx, s.db).
		Where("deleted_at IS NULL").
		Order("user_id asc, created_at asc").
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(profiles))
	var extras []*UserProfile
	for _, p := range profiles {
		if seen[p.UserID] {
			extras = append(extras, p)
			continue
		}
		seen[p.UserID] = true
	}
	return extras, nil
}

// SoftDeleteProfiles marks the given profiles deleted
func (s *Store) SoftDeleteProfiles(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := getDBFromContext(ctx, s.db).
		Model(&UserProfile{}).
		Where("id IN ? AND deleted_at IS NULL", ids).
		Update("deleted_at", time.Now())
	return result.RowsAffected, result.Error
}

// SoftDeleteMemberships marks the given membership edges deleted
func (s *Store) SoftDeleteMemberships(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := getDBFromContext(ctx, s.db).
		Model(&TenantMembership{}).
		Where("id IN ? AND deleted_at IS NULL", ids).
		Update("deleted_at", time.Now())
	return result.RowsAffected, result.Error
}

// SoftDeleteCompanies marks the given companies deleted
func (s *Store) SoftDeleteCompanies(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := getDBFromContext(ctx, s.db).
		Model(&Company{}).
		Where("id IN ? AND deleted_at IS NULL", ids).
		Update("deleted_at", time.Now())
	return result.RowsAffected, result.Error
}
