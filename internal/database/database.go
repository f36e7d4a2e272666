package database

import (
	"context"
	"time"
)

// IdentityStore covers the auth-owned side of the schema: users and
// their profiles.
type IdentityStore interface {
	// CreateUser inserts a mirrored identity record.
	CreateUser(ctx context.Context, user *User) error

	// GetUser retrieves a user by id.
	GetUser(ctx context.Context, id string) (*User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// CreateProfile inserts a user profile.
	CreateProfile(ctx context.Context, profile *UserProfile) error

	// GetProfileByUserID retrieves the non-deleted profile for a user.
	GetProfileByUserID(ctx context.Context, userID string) (*UserProfile, error)

	// UpdateProfile saves profile changes.
	UpdateProfile(ctx context.Context, profile *UserProfile) error

	// RecordLogin stamps the profile's last-login time.
	RecordLogin(ctx context.Context, userID string, at time.Time) error
}

// TenantStore covers tenants and tenant memberships.
type TenantStore interface {
	// CreateTenant inserts a tenant.
	CreateTenant(ctx context.Context, tenant *Tenant) error

	// GetTenant retrieves a non-deleted tenant by id.
	GetTenant(ctx context.Context, id string) (*Tenant, error)

	// ListTenants lists non-deleted tenants.
	ListTenants(ctx context.Context) ([]*Tenant, error)

	// AddTenantMember creates a membership edge, reviving a previously
	// soft-deleted edge when one exists.
	AddTenantMember(ctx context.Context, membership *TenantMembership) error

	// GetTenantMembership retrieves the non-deleted edge for a user and
	// tenant, or nil when absent.
	GetTenantMembership(ctx context.Context, userID, tenantID string) (*TenantMembership, error)

	// RemoveTenantMember soft-deletes the membership edge.
	RemoveTenantMember(ctx context.Context, userID, tenantID string) error
}

// CompanyStore covers companies and user-company edges.
type CompanyStore interface {
	// CreateCompany inserts a company.
	CreateCompany(ctx context.Context, company *Company) error

	// GetCompany retrieves a non-deleted company scoped to a tenant, or
	// nil when absent.
	GetCompany(ctx context.Context, tenantID, companyID string) (*Company, error)

	// ListCompanies lists non-deleted companies in a tenant ordered by name.
	ListCompanies(ctx context.Context, tenantID string) ([]*Company, error)

	// UpdateCompany applies a partial update and reports affected rows.
	UpdateCompany(ctx context.Context, tenantID, companyID string, fields map[string]any) (int64, error)

	// SoftDeleteCompany marks a company deleted and reports affected rows.
	SoftDeleteCompany(ctx context.Context, tenantID, companyID string) (int64, error)

	// SoftDeleteCompanyMembers marks all edges of a company deleted.
	SoftDeleteCompanyMembers(ctx context.Context, tenantID, companyID string) error

	// CreateUserCompany inserts a company edge.
	CreateUserCompany(ctx context.Context, edge *UserCompany) error

	// SaveUserCompany persists changes to an existing edge.
	SaveUserCompany(ctx context.Context, edge *UserCompany) error

	// GetUserCompany retrieves the non-deleted edge for the triple, or
	// nil when absent.
	GetUserCompany(ctx context.Context, tenantID, userID, companyID string) (*UserCompany, error)

	// GetUserCompanyAny retrieves the newest edge for the triple
	// including soft-deleted ones; used by the idempotent upsert.
	GetUserCompanyAny(ctx context.Context, tenantID, userID, companyID string) (*UserCompany, error)

	// SoftDeleteUserCompany marks the edge deleted and reports affected rows.
	SoftDeleteUserCompany(ctx context.Context, tenantID, userID, companyID string) (int64, error)

	// ListCompanyMembers lists members with joined user info, ordered by
	// role descending then name and email.
	ListCompanyMembers(ctx context.Context, tenantID, companyID string) ([]*CompanyMember, error)

	// ListUserCompanyRoles lists all non-deleted edges a user holds
	// within one tenant.
	ListUserCompanyRoles(ctx context.Context, tenantID, userID string) ([]*UserCompany, error)

	// ListUserCompanies lists a user's memberships across tenants with
	// joined company and user info.
	ListUserCompanies(ctx context.Context, userID string) ([]*UserCompanyDetail, error)

	// ListCompanyOwners returns the user ids holding a non-deleted owner
	// edge on the company.
	ListCompanyOwners(ctx context.Context, tenantID, companyID string) ([]string, error)

	// GetCompanyStatistics aggregates member counts and last activity.
	GetCompanyStatistics(ctx context.Context, tenantID, companyID string) (*CompanyStatistics, error)
}

// AuditStore persists audit records.
type AuditStore interface {
	// SaveAuditRecord appends an audit record.
	SaveAuditRecord(ctx context.Context, record *AuditRecord) error

	// ListAuditRecords lists the newest records for a tenant.
	ListAuditRecords(ctx context.Context, tenantID string, limit int) ([]*AuditRecord, error)
}

// RecoveryStore covers recovery points and integrity scans.
type RecoveryStore interface {
	// CreateRecoveryPoint stores a reversible snapshot pointer.
	CreateRecoveryPoint(ctx context.Context, point *RecoveryPoint) error

	// PurgeExpiredRecoveryPoints removes points past their expiry.
	PurgeExpiredRecoveryPoints(ctx context.Context, now time.Time) (int64, error)

	// FindOrphanedProfiles lists non-deleted profiles without a user.
	FindOrphanedProfiles(ctx context.Context) ([]*UserProfile, error)

	// FindOrphanedMemberships lists non-deleted edges whose tenant is
	// missing or deleted.
	FindOrphanedMemberships(ctx context.Context) ([]*TenantMembership, error)

	// FindCompaniesWithoutTenant lists non-deleted companies whose
	// tenant is missing or deleted.
	FindCompaniesWithoutTenant(ctx context.Context) ([]*Company, error)

	// FindDuplicateProfiles lists surplus non-deleted profiles beyond
	// the oldest one per user.
	FindDuplicateProfiles(ctx context.Context) ([]*UserProfile, error)

	// SoftDeleteProfiles marks the given profiles deleted.
	SoftDeleteProfiles(ctx context.Context, ids []string) (int64, error)

	// SoftDeleteMemberships marks the given membership edges deleted.
	SoftDeleteMemberships(ctx context.Context, ids []string) (int64, error)

	// SoftDeleteCompanies marks the given companies deleted.
	SoftDeleteCompanies(ctx context.Context, ids []string) (int64, error)
}

// Database is the full storage surface composed of the repository
// groups. The identity/tenant split keeps cross-schema joins at the
// service layer.
type Database interface {
	IdentityStore
	TenantStore
	CompanyStore
	AuditStore
	RecoveryStore

	// WithTransaction runs fn inside a backend transaction. The context
	// passed to fn carries the transaction for all store calls.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the database connection.
	Close() error
}
