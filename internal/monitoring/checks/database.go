package checks

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/database"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/models"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/monitoring"
)

const defaultDatabaseTimeout = 2 * time.Second

// Database returns a readiness probe that pings the configured database handle.
func Database(db *gorm.DB, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if db == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "database not configured"}
		}

		sqlDB, err := db.DB()
		if err != nil {
			return monitoring.ResultFromError("database", err, time.Since(start))
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout, defaultDatabaseTimeout))
		defer cancel()

		return monitoring.ResultFromError("database", sqlDB.PingContext(probeCtx), time.Since(start))
	})
}

// Schema verifies that the credential tables and the single-active index are
// in place. Without the index concurrent issuance is only serialised by the
// transaction, so its absence degrades rather than fails readiness.
func Schema(db *gorm.DB) monitoring.Check {
	return monitoring.NewCheck("schema", func(ctx context.Context) monitoring.ProbeResult {
		if db == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "database not configured"}
		}

		migrator := db.WithContext(ctx).Migrator()
		for _, model := range []any{&models.Credential{}, &models.AuditLog{}} {
			if !migrator.HasTable(model) {
				return monitoring.ResultFromError("schema", errors.New("missing table, run migrations"), 0)
			}
		}

		if database.SupportsPartialIndex(db) && !migrator.HasIndex(&models.Credential{}, database.ActiveCredentialIndex) {
			return monitoring.ProbeResult{
				Status:  monitoring.StatusDegraded,
				Details: database.ActiveCredentialIndex + " missing",
			}
		}
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	})
}

func chooseTimeout(provided, fallback time.Duration) time.Duration {
	if provided <= 0 {
		return fallback
	}
	return provided
}
