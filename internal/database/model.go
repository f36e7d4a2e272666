package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PlatformRole is the platform-wide role on a user profile, distinct
// from tenant-level and company-level roles.
type PlatformRole string

const (
	PlatformUser       PlatformRole = "user"
	PlatformAdmin      PlatformRole = "admin"
	PlatformSuperAdmin PlatformRole = "super_admin"
)

// Role is a tenant- or company-scoped role.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

// JSONMap is an opaque key-value bag stored as JSON text.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for JSONMap: %T", value)
	}
	if len(data) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(data, m)
}

// RoleList is a set of roles stored comma-joined.
type RoleList []Role

// Value implements driver.Valuer.
func (r RoleList) Value() (driver.Value, error) {
	parts := make([]string, 0, len(r))
	for _, role := range r {
		parts = append(parts, string(role))
	}
	return strings.Join(parts, ","), nil
}

// Scan implements sql.Scanner.
func (r *RoleList) Scan(value any) error {
	var s string
	switch v := value.(type) {
	case []byte:
		s = string(v)
	case string:
		s = v
	case nil:
		*r = nil
		return nil
	default:
		return fmt.Errorf("unsupported type for RoleList: %T", value)
	}
	if s == "" {
		*r = nil
		return nil
	}
	parts := strings.Split(s, ",")
	out := make(RoleList, 0, len(parts))
	for _, p := range parts {
		out = append(out, Role(strings.TrimSpace(p)))
	}
	*r = out
	return nil
}

// User mirrors the identity record owned by the managed auth backend.
// This layer never creates users on the live backend; rows here exist
// for joins, local deployments and tests.
type User struct {
	ID            string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email         string    `json:"email" gorm:"type:varchar(255);uniqueIndex"`
	Name          string    `json:"name" gorm:"type:varchar(255)"`
	EmailVerified bool      `json:"emailVerified" gorm:"not null;default:false"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// UserProfile extends a User with platform role, staff flag and
// preferences. At most one non-deleted profile exists per user.
type UserProfile struct {
	ID          string       `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID      string       `json:"userId" gorm:"type:varchar(36);index"`
	Role        PlatformRole `json:"role" gorm:"type:varchar(20);not null;default:'user'"`
	IsStaff     bool         `json:"isStaff" gorm:"not null;default:false"`
	Preferences JSONMap      `json:"preferences" gorm:"type:text"`
	LastLoginAt *time.Time   `json:"lastLoginAt"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	DeletedAt   *time.Time   `json:"-" gorm:"index"`
}

// Tenant is the top-level isolation boundary.
type Tenant struct {
	ID        string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name      string     `json:"name" gorm:"type:varchar(255);not null"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"-" gorm:"index"`
}

// TenantMembership is the user-to-tenant edge. Tenant-scoped access
// requires a non-deleted edge unless the user is staff.
type TenantMembership struct {
	ID        string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string     `json:"userId" gorm:"type:varchar(36);index:idx_membership_user_tenant"`
	TenantID  string     `json:"tenantId" gorm:"type:varchar(36);index:idx_membership_user_tenant"`
	Roles     RoleList   `json:"roles" gorm:"type:varchar(255)"`
	CreatedAt time.Time  `json:"createdAt"`
	DeletedAt *time.Time `json:"-" gorm:"index"`
}

// Company is a business entity scoped to exactly one tenant. TenantID
// is immutable after creation.
type Company struct {
	ID        string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID  string     `json:"tenantId" gorm:"type:varchar(36);index"`
	Name      string     `json:"name" gorm:"type:varchar(255);not null"`
	Email     string     `json:"email,omitempty" gorm:"type:varchar(255)"`
	Settings  JSONMap    `json:"settings" gorm:"type:text"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"-" gorm:"index"`
}

// UserCompany is the user-to-company edge carrying the company role.
// The (tenant_id, user_id, company_id) triple is unique among
// non-deleted rows.
type UserCompany struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID    string     `json:"tenantId" gorm:"type:varchar(36);index:idx_uc_triple"`
	UserID      string     `json:"userId" gorm:"type:varchar(36);index:idx_uc_triple"`
	CompanyID   string     `json:"companyId" gorm:"type:varchar(36);index:idx_uc_triple"`
	Role        Role       `json:"role" gorm:"type:varchar(20);not null;default:'member'"`
	Permissions JSONMap    `json:"permissions" gorm:"type:text"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	DeletedAt   *time.Time `json:"-" gorm:"index"`
}

// CompanyMember is a joined view of a company edge with user info.
type CompanyMember struct {
	UserID      string    `json:"userId"`
	CompanyID   string    `json:"companyId"`
	TenantID    string    `json:"tenantId"`
	Role        Role      `json:"role"`
	Permissions JSONMap   `json:"permissions"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UserCompanyDetail is a cross-tenant joined view of a user's company
// memberships.
type UserCompanyDetail struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenantId"`
	UserID       string    `json:"userId"`
	CompanyID    string    `json:"companyId"`
	Role         Role      `json:"role"`
	CompanyName  string    `json:"companyName"`
	CompanyEmail string    `json:"companyEmail"`
	UserName     string    `json:"userName"`
	UserEmail    string    `json:"userEmail"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CompanyStatistics aggregates membership counts for a company.
type CompanyStatistics struct {
	MemberCount    int64      `json:"memberCount"`
	AdminCount     int64      `json:"adminCount"`
	OwnerCount     int64      `json:"ownerCount"`
	TotalCount     int64      `json:"totalCount"`
	LastActivityAt *time.Time `json:"lastActivityAt"`
}

// AuditRecord is written by the audit middleware for every guarded
// operation, including staff bypasses.
type AuditRecord struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	RequestID   string    `json:"requestId" gorm:"type:varchar(36);index"`
	UserID      string    `json:"userId" gorm:"type:varchar(36);index"`
	TenantID    string    `json:"tenantId" gorm:"type:varchar(36);index"`
	Operation   string    `json:"operation" gorm:"type:varchar(100)"`
	Outcome     string    `json:"outcome" gorm:"type:varchar(20)"`
	StaffBypass bool      `json:"staffBypass" gorm:"not null;default:false"`
	DurationMS  int64     `json:"durationMs"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RecoveryPoint is a reversible pointer captured before a risky
// operation. It stores a JSON snapshot, not a full backup.
type RecoveryPoint struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Scope       string    `json:"scope" gorm:"type:varchar(50);index"`
	ReferenceID string    `json:"referenceId" gorm:"type:varchar(36);index"`
	Payload     string    `json:"payload" gorm:"type:text"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt" gorm:"index"`
}
