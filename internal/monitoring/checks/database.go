package checks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/uniauth/internal/database"
	"github.com/charlesng35/uniauth/internal/monitoring"
)

const defaultDatabaseTimeout = 2 * time.Second

// Database pings the identity store and confirms every schema migration has
// been applied. An unreachable store is down; a store behind on migrations is
// degraded since profile bootstrapping may fail against it.
func Database(db *gorm.DB, timeout time.Duration) monitoring.Check {
	if timeout <= 0 {
		timeout = defaultDatabaseTimeout
	}

	return monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if db == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "database not configured"}
		}

		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(probeCtx)
		}
		if err != nil {
			return monitoring.ResultFromError("database", err, time.Since(start))
		}

		pending, err := database.PendingMigrations(db.WithContext(probeCtx))
		if err != nil {
			return monitoring.ResultFromError("database", err, time.Since(start))
		}
		if len(pending) > 0 {
			return monitoring.ProbeResult{
				Component: "database",
				Status:    monitoring.StatusDegraded,
				Details:   fmt.Sprintf("pending migrations: %s", strings.Join(pending, ", ")),
				Duration:  time.Since(start),
			}
		}
		return monitoring.ProbeResult{Component: "database", Status: monitoring.StatusUp, Duration: time.Since(start)}
	})
}
