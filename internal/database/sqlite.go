package database

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/penguinmails/tenantcore/internal/common/config"
)

// NewSQLite creates a Database backed by SQLite
func NewSQLite(cfg *config.DatabaseConfig) (Database, error) {
	gormDB, err := gorm.Open(sqlite.Open(cfg.GetDSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newStore(gormDB)
}
