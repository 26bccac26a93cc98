package checks

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/regprofile/internal/monitoring"
)

const defaultProbeTimeout = 2 * time.Second

// Database pings the relational store backing users, the ledger and drafts.
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

		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout(timeout))
		defer cancel()

		// A ping that outlives the deadline means the pool is unusable.
		if err := sqlDB.PingContext(probeCtx); err != nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: err.Error(), Duration: time.Since(start)}
		}
		return monitoring.ProbeResult{Status: monitoring.StatusUp, Duration: time.Since(start)}
	})
}

func probeTimeout(provided time.Duration) time.Duration {
	if provided <= 0 {
		return defaultProbeTimeout
	}
	return provided
}
