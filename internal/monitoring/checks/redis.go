package checks

import (
	"context"
	"time"

	"github.com/charlesng35/regprofile/internal/monitoring"
)

// Pinger is satisfied by cache.RedisClient.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RateStore probes the shared rate-limit store. Without Redis the limiter
// runs in-process, so a missing client reports degraded rather than down.
func RateStore(client Pinger, enabled bool, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("rate_store", func(ctx context.Context) monitoring.ProbeResult {
		if !enabled {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "in-process"}
		}
		if client == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "redis unavailable; using in-process counters"}
		}

		start := time.Now()
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout(timeout))
		defer cancel()

		if err := client.Ping(probeCtx); err != nil {
			result := monitoring.ResultFromError("rate_store", err, time.Since(start))
			result.Status = monitoring.StatusDegraded
			return result
		}
		return monitoring.ProbeResult{Status: monitoring.StatusUp, Duration: time.Since(start)}
	})
}
