package recovery

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/penguinmails/tenantcore/internal/common/config"
	"github.com/penguinmails/tenantcore/internal/common/errorx"
	"github.com/penguinmails/tenantcore/internal/database"
	"github.com/penguinmails/tenantcore/pkg/utils"
)

// Manager captures recovery points and keeps the soft-delete graph
// consistent: profiles without users, membership edges without
// tenants, companies without tenants and duplicate profiles are found
// and, on repair, soft-deleted with a snapshot taken first.
type Manager struct {
	db        database.Database
	logger    *zap.Logger
	retention time.Duration
}

// NewManager creates a recovery manager.
func NewManager(db database.Database, cfg *config.RecoveryConfig, logger *zap.Logger) *Manager {
	retention := cfg.PointRetention
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &Manager{
		db:        db,
		logger:    logger,
		retention: retention,
	}
}

// IntegrityReport summarizes one integrity scan, and the repairs when
// the scan was run in repair mode.
type IntegrityReport struct {
	CheckedAt              time.Time `json:"checkedAt"`
	OrphanedProfiles       int       `json:"orphanedProfiles"`
	OrphanedMemberships    int       `json:"orphanedMemberships"`
	CompaniesWithoutTenant int       `json:"companiesWithoutTenant"`
	DuplicateProfiles      int       `json:"duplicateProfiles"`
	Repaired               int64     `json:"repaired"`
	PurgedPoints           int64     `json:"purgedPoints"`
}

// Clean reports whether the scan found nothing to fix.
func (r *IntegrityReport) Clean() bool {
	return r.OrphanedProfiles == 0 &&
		r.OrphanedMemberships == 0 &&
		r.CompaniesWithoutTenant == 0 &&
		r.DuplicateProfiles == 0
}

// CreateRecoveryPoint snapshots any payload under a scope so the
// change it precedes can be reversed by hand. Points expire after the
// configured retention.
func (m *Manager) CreateRecoveryPoint(ctx context.Context, scope, referenceID string, payload any) (*database.RecoveryPoint, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errorx.Validation(errorx.CodeValidationFailed, "payload is not serializable").WithCause(err)
	}
	point := &database.RecoveryPoint{
		ID:          utils.NewID(),
		Scope:       scope,
		ReferenceID: referenceID,
		Payload:     string(data),
		ExpiresAt:   time.Now().Add(m.retention),
	}
	if err := m.db.CreateRecoveryPoint(ctx, point); err != nil {
		return nil, errorx.Backend(err)
	}
	return point, nil
}

// RunIntegrityCheck scans for inconsistencies without touching data.
func (m *Manager) RunIntegrityCheck(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{CheckedAt: time.Now()}

	profiles, err := m.db.FindOrphanedProfiles(ctx)
	if err != nil {
		return nil, errorx.Backend(err)
	}
	report.OrphanedProfiles = len(profiles)

	memberships, err := m.db.FindOrphanedMemberships(ctx)
	if err != nil {
		return nil, errorx.Backend(err)
	}
	report.OrphanedMemberships = len(memberships)

	companies, err := m.db.FindCompaniesWithoutTenant(ctx)
	if err != nil {
		return nil, errorx.Backend(err)
	}
	report.CompaniesWithoutTenant = len(companies)

	duplicates, err := m.db.FindDuplicateProfiles(ctx)
	if err != nil {
		return nil, errorx.Backend(err)
	}
	report.DuplicateProfiles = len(duplicates)

	return report, nil
}

// RepairAll scans and soft-deletes every inconsistency found. Each
// repair batch gets a recovery point first, then runs in one
// transaction so a partial repair never lands.
func (m *Manager) RepairAll(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{CheckedAt: time.Now()}

	profiles, err := m.db.FindOrphanedProfiles(ctx)
	if err != nil {
		return nil, errorx.Backend(err)
	}
	duplicates, err := m.db.FindDuplicateProfiles(ctx)
	if err != nil {
		return nil, errorx.Backend(err)
	}
	memberships, err := m.db.FindOrphanedMemberships(ctx)
	if err != nil {
		return nil, errorx.Backend(err)
	}
	companies, err := m.db.FindCompaniesWithoutTenant(ctx)
	if err != nil {
		return nil, errorx.Backend(err)
	}

	report.OrphanedProfiles = len(profiles)
	report.DuplicateProfiles = len(duplicates)
	report.OrphanedMemberships = len(memberships)
	report.CompaniesWithoutTenant = len(companies)
	if report.Clean() {
		return report, nil
	}

	profileIDs := collectIDs(profiles, func(p *database.UserProfile) string { return p.ID })
	profileIDs = append(profileIDs, collectIDs(duplicates, func(p *database.UserProfile) string { return p.ID })...)
	membershipIDs := collectIDs(memberships, func(e *database.TenantMembership) string { return e.ID })
	companyIDs := collectIDs(companies, func(c *database.Company) string { return c.ID })

	snapshot := map[string]any{
		"profiles":    append(profiles, duplicates...),
		"memberships": memberships,
		"companies":   companies,
	}
	if _, err := m.CreateRecoveryPoint(ctx, "integrity_repair", "", snapshot); err != nil {
		return nil, err
	}

	err = m.db.WithTransaction(ctx, func(txCtx context.Context) error {
		if len(profileIDs) > 0 {
			n, err := m.db.SoftDeleteProfiles(txCtx, profileIDs)
			if err != nil {
				return err
			}
			report.Repaired += n
		}
		if len(membershipIDs) > 0 {
			n, err := m.db.SoftDeleteMemberships(txCtx, membershipIDs)
			if err != nil {
				return err
			}
			report.Repaired += n
		}
		if len(companyIDs) > 0 {
			n, err := m.db.SoftDeleteCompanies(txCtx, companyIDs)
			if err != nil {
				return err
			}
			report.Repaired += n
		}
		return nil
	})
	if err != nil {
		return nil, errorx.Backend(err)
	}

	m.logger.Info("integrity repair completed",
		zap.Int("orphaned_profiles", report.OrphanedProfiles),
		zap.Int("orphaned_memberships", report.OrphanedMemberships),
		zap.Int("companies_without_tenant", report.CompaniesWithoutTenant),
		zap.Int("duplicate_profiles", report.DuplicateProfiles),
		zap.Int64("repaired", report.Repaired))
	return report, nil
}

// PurgeExpiredPoints removes recovery points past their expiry.
func (m *Manager) PurgeExpiredPoints(ctx context.Context) (int64, error) {
	n, err := m.db.PurgeExpiredRecoveryPoints(ctx, time.Now())
	if err != nil {
		return 0, errorx.Backend(err)
	}
	return n, nil
}

// Sweep runs a repair pass followed by a point purge. This is the body
// of both the cron job and the sweep command.
func (m *Manager) Sweep(ctx context.Context) (*IntegrityReport, error) {
	report, err := m.RepairAll(ctx)
	if err != nil {
		return nil, err
	}
	purged, err := m.PurgeExpiredPoints(ctx)
	if err != nil {
		return nil, err
	}
	report.PurgedPoints = purged
	return report, nil
}

func collectIDs[T any](items []T, id func(T) string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, id(item))
	}
	return out
}
