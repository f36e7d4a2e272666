package handler

import (
	"go.uber.org/zap"

	"github.com/penguinmails/tenantcore/internal/auth/session"
	"github.com/penguinmails/tenantcore/internal/company"
	"github.com/penguinmails/tenantcore/internal/database"
	"github.com/penguinmails/tenantcore/internal/recovery"
)

// Handler bundles the HTTP handlers over the service layer.
type Handler struct {
	db        database.Database
	companies *company.Service
	resolver  *session.Resolver
	recovery  *recovery.Manager
	logger    *zap.Logger
}

// New creates the handler set.
func New(
	db database.Database,
	companies *company.Service,
	resolver *session.Resolver,
	recoveryMgr *recovery.Manager,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		db:        db,
		companies: companies,
		resolver:  resolver,
		recovery:  recoveryMgr,
		logger:    logger,
	}
}
