package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/penguinmails/tenantcore/internal/access"
	"github.com/penguinmails/tenantcore/internal/apiserver/handler"
	"github.com/penguinmails/tenantcore/internal/auth/session"
	"github.com/penguinmails/tenantcore/internal/auth/token"
	"github.com/penguinmails/tenantcore/internal/common/config"
	"github.com/penguinmails/tenantcore/internal/company"
	"github.com/penguinmails/tenantcore/internal/database"
	"github.com/penguinmails/tenantcore/internal/middleware"
	"github.com/penguinmails/tenantcore/internal/recovery"
	"github.com/penguinmails/tenantcore/pkg/logger"
	"github.com/penguinmails/tenantcore/pkg/metrics"
	"github.com/penguinmails/tenantcore/pkg/version"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "tenantcore",
		Short: "Tenant-scoped access control and session context service",
		Run: func(cmd *cobra.Command, args []string) {
			serve()
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Run: func(cmd *cobra.Command, args []string) {
			serve()
		},
	}

	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Run one integrity repair and recovery point purge, then exit",
		Run: func(cmd *cobra.Command, args []string) {
			sweep()
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of tenantcore",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tenantcore version %s\n", version.Get())
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "conf", "tenantcore.yaml", "path to configuration file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       database.Database
	resolver *session.Resolver
	access   *access.Validator
	recovery *recovery.Manager
	metrics  *metrics.Metrics
}

func newApp() *app {
	cfg, cfgPath, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	zlog, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	zlog.Info("configuration loaded", zap.String("path", cfgPath))

	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		zlog.Fatal("failed to initialize database", zap.Error(err))
	}

	tokens, err := token.NewService(token.Config{
		SecretKey: cfg.Auth.SecretKey,
		Duration:  cfg.Auth.Duration,
	})
	if err != nil {
		zlog.Fatal("failed to initialize token service", zap.Error(err))
	}

	cache := session.NewCache(cfg.Session.CacheSize, cfg.Session.CacheTTL)
	resolver := session.NewResolver(session.NewTokenBackend(tokens), db, cache, zlog)
	validator := access.NewValidator(db, resolver, zlog)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics)
	}

	return &app{
		cfg:      cfg,
		logger:   zlog,
		db:       db,
		resolver: resolver,
		access:   validator,
		recovery: recovery.NewManager(db, &cfg.Recovery, zlog),
		metrics:  m,
	}
}

func serve() {
	a := newApp()
	defer a.logger.Sync()
	defer a.db.Close()

	ctx := context.Background()
	if _, err := database.InitDefaultTenant(ctx, a.db); err != nil {
		a.logger.Fatal("failed to initialize default tenant", zap.Error(err))
	}

	limiter, err := middleware.NewLimiter(&a.cfg.RateLimit)
	if err != nil {
		a.logger.Fatal("failed to initialize rate limiter", zap.Error(err))
	}
	composer := middleware.NewComposer(a.resolver, a.access, limiter,
		&a.cfg.RateLimit, a.metrics, a.logger)

	companies := company.NewService(a.db, a.access, a.logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	handler.RegisterRoutes(router,
		handler.New(a.db, companies, a.resolver, a.recovery, a.logger), composer)
	if a.metrics != nil {
		router.GET("/metrics", gin.WrapH(a.metrics.Handler()))
	}

	var sweeper *recovery.Sweeper
	if a.cfg.Recovery.Enabled {
		sweeper, err = recovery.NewSweeper(a.recovery, a.cfg.Recovery.Schedule, a.logger)
		if err != nil {
			a.logger.Fatal("invalid recovery schedule",
				zap.String("schedule", a.cfg.Recovery.Schedule),
				zap.Error(err))
		}
		sweeper.Start()
		defer sweeper.Stop()
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler: router,
	}

	go func() {
		a.logger.Info("starting server",
			zap.Int("port", a.cfg.Server.Port),
			zap.String("version", version.Get()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	a.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("forced shutdown", zap.Error(err))
	}
	a.logger.Info("server stopped")
}

func sweep() {
	a := newApp()
	defer a.logger.Sync()
	defer a.db.Close()

	report, err := a.recovery.Sweep(context.Background())
	if err != nil {
		a.logger.Fatal("sweep failed", zap.Error(err))
	}
	a.logger.Info("sweep completed",
		zap.Int("orphaned_profiles", report.OrphanedProfiles),
		zap.Int("orphaned_memberships", report.OrphanedMemberships),
		zap.Int("companies_without_tenant", report.CompaniesWithoutTenant),
		zap.Int("duplicate_profiles", report.DuplicateProfiles),
		zap.Int64("repaired", report.Repaired),
		zap.Int64("purged_points", report.PurgedPoints))
}
