package checks_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/regprofile/internal/database/testutil"
	"github.com/charlesng35/regprofile/internal/monitoring"
	"github.com/charlesng35/regprofile/internal/monitoring/checks"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestDatabaseCheck(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	result := checks.Database(db, time.Second).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	result = checks.Database(db, time.Second).Run(context.Background())
	require.Equal(t, monitoring.StatusDown, result.Status)
	require.NotEmpty(t, result.Details)

	result = checks.Database(nil, 0).Run(context.Background())
	require.Equal(t, monitoring.StatusDown, result.Status)
}

func TestRateStoreCheck(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	require.Equal(t, monitoring.StatusUp, checks.RateStore(nil, false, 0).Run(ctx).Status)
	require.Equal(t, monitoring.StatusDegraded, checks.RateStore(nil, true, 0).Run(ctx).Status)
	require.Equal(t, monitoring.StatusUp, checks.RateStore(stubPinger{}, true, 0).Run(ctx).Status)

	failed := checks.RateStore(stubPinger{err: errors.New("refused")}, true, 0).Run(ctx)
	require.Equal(t, monitoring.StatusDegraded, failed.Status)
	require.Equal(t, "refused", failed.Details)
}
