package database

import (
	"context"
	"time"

	"github.com/penguinmails/tenantcore/pkg/utils"
)

// InitDefaultTenant initializes the default tenant if it doesn't exist
// and grants staff users membership on it. Used by local deployments.
func InitDefaultTenant(ctx context.Context, db Database) (*Tenant, error) {
	tenants, err := db.ListTenants(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range tenants {
		if t.Name == "default" {
			return t, nil
		}
	}

	tenant := &Tenant{
		ID:        utils.NewID(),
		Name:      "default",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.CreateTenant(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}
