package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/uniauth/internal/api"
	"github.com/charlesng35/uniauth/internal/app"
	"github.com/charlesng35/uniauth/internal/app/maintenance"
	"github.com/charlesng35/uniauth/internal/database"
	"github.com/charlesng35/uniauth/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB       *gorm.DB
	Services *api.Services
	Cleaner  *maintenance.Cleaner
	Router   *gin.Engine
}

// bootstrapRuntime initialises the database, services, background jobs and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	stack.Services, err = api.NewServices(stack.DB, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialise services: %w", err)
	}

	if cfg.Identity.ReconcileOnStartup {
		created, err := stack.Services.Identity.ReconcileProfiles(ctx)
		if err != nil {
			log.Warn("profile reconciliation incomplete", zap.Int("created", created), zap.Error(err))
		} else if created > 0 {
			log.Info("reconciled missing profiles", zap.Int("created", created))
		}
	}

	if cfg.Maintenance.Enabled {
		stack.Cleaner = newCleaner(cfg, stack.Services)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.Router, err = api.NewRouter(cfg, stack.Services)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

func newCleaner(cfg *app.Config, svc *api.Services) *maintenance.Cleaner {
	svc.Jobs.Expect(maintenance.SweepJob)
	svc.Jobs.Expect(maintenance.AuditJob)
	return maintenance.NewCleaner(svc.Identity, svc.Audit,
		maintenance.WithJobRecorder(svc.Jobs),
		maintenance.WithSweepSchedule(cfg.Maintenance.SweepSchedule),
		maintenance.WithAuditSchedule(cfg.Maintenance.AuditSchedule),
		maintenance.WithAuditRetentionDays(cfg.Maintenance.AuditRetentionDays),
	)
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			ctx = stopCtx
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		closeDatabase(db, logger.WithModule("database"))
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver:          strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:            strings.TrimSpace(cfg.Database.Path),
		DSN:             strings.TrimSpace(cfg.Database.DSN),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	var auth *app.DBAuthConfig
	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		auth = &cfg.Database.Postgres
	case "mysql":
		auth = &cfg.Database.MySQL
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	if auth != nil {
		dbCfg.Host = strings.TrimSpace(auth.Host)
		dbCfg.Port = auth.Port
		dbCfg.Name = strings.TrimSpace(auth.Database)
		dbCfg.User = strings.TrimSpace(auth.Username)
		dbCfg.Password = auth.Password
		dbCfg.Options = auth.Options
	}

	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
