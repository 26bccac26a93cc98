package monitoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/regprofile/internal/monitoring"
)

func TestReadinessEvaluate(t *testing.T) {
	t.Parallel()

	readiness := monitoring.NewReadiness(
		monitoring.NewCheck("database", func(context.Context) monitoring.ProbeResult {
			return monitoring.ProbeResult{Status: monitoring.StatusUp}
		}),
		monitoring.NewCheck("rate_store", func(context.Context) monitoring.ProbeResult {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "in-process"}
		}),
	)

	report := readiness.Evaluate(context.Background())
	require.True(t, report.Ready)
	require.Equal(t, monitoring.StatusDegraded, report.Status)
	require.Len(t, report.Checks, 2)
	require.Equal(t, "database", report.Checks[0].Component)
	require.Equal(t, "rate_store", report.Checks[1].Component)

	readiness.Register(monitoring.NewCheck("oauth", func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "connection refused"}
	}))
	report = readiness.Evaluate(context.Background())
	require.False(t, report.Ready)
	require.Equal(t, monitoring.StatusDown, report.Status)
}

func TestReadinessRecoversPanickingProbe(t *testing.T) {
	t.Parallel()

	readiness := monitoring.NewReadiness(monitoring.NewCheck("flaky", func(context.Context) monitoring.ProbeResult {
		panic("boom")
	}))

	report := readiness.Evaluate(context.Background())
	require.False(t, report.Ready)
	require.Equal(t, "flaky", report.Checks[0].Component)
	require.Equal(t, "boom", report.Checks[0].Details)
}

func TestReadinessIgnoresUnnamedChecks(t *testing.T) {
	t.Parallel()

	readiness := monitoring.NewReadiness(monitoring.NewCheck("", nil))
	report := readiness.Evaluate(context.Background())
	require.True(t, report.Ready)
	require.Empty(t, report.Checks)
}

func TestResultFromError(t *testing.T) {
	t.Parallel()

	require.Equal(t, monitoring.StatusUp, monitoring.ResultFromError("db", nil, time.Millisecond).Status)
	require.Equal(t, monitoring.StatusDown, monitoring.ResultFromError("db", errors.New("refused"), 0).Status)

	timeout := monitoring.ResultFromError("db", context.DeadlineExceeded, -time.Second)
	require.Equal(t, monitoring.StatusDegraded, timeout.Status)
	require.Zero(t, timeout.Duration)
}
