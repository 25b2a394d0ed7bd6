package monitoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/database/testutil"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/monitoring"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/monitoring/checks"
)

func TestHealthManagerEvaluate(t *testing.T) {
	manager := monitoring.NewHealthManager()
	manager.RegisterReadiness(monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	manager.RegisterReadiness(monitoring.NewCheck("schema", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "index missing"}
	}))
	manager.RegisterReadiness(monitoring.NewCheck("", nil))

	report := manager.EvaluateReadiness(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDegraded, report.Status)
	require.Len(t, report.Checks, 2)
	require.Equal(t, "schema", report.Checks[1].Component)

	live := manager.EvaluateLiveness(context.Background())
	require.True(t, live.Success)
	require.Empty(t, live.Checks)
}

func TestHealthManagerRecoversPanics(t *testing.T) {
	manager := monitoring.NewHealthManager()
	manager.RegisterLiveness(monitoring.NewCheck("boom", func(context.Context) monitoring.ProbeResult {
		panic("probe exploded")
	}))

	report := manager.EvaluateLiveness(context.Background())
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Equal(t, "boom", report.Checks[0].Component)
	require.Contains(t, report.Checks[0].Details, "probe exploded")
}

func TestResultFromError(t *testing.T) {
	require.Equal(t, monitoring.StatusUp, monitoring.ResultFromError("x", nil, time.Second).Status)
	require.Equal(t, monitoring.StatusDown, monitoring.ResultFromError("x", errors.New("refused"), 0).Status)
	require.Equal(t, monitoring.StatusDegraded, monitoring.ResultFromError("x", context.DeadlineExceeded, 0).Status)
}

func TestDatabaseAndSchemaChecks(t *testing.T) {
	bare := testutil.MustOpenTestDB(t)
	require.Equal(t, monitoring.StatusUp, checks.Database(bare, 0).Run(context.Background()).Status)
	require.Equal(t, monitoring.StatusDown, checks.Schema(bare).Run(context.Background()).Status)

	migrated := testutil.MustOpenTestDB(t, testutil.WithMigrations())
	require.Equal(t, monitoring.StatusUp, checks.Schema(migrated).Run(context.Background()).Status)

	require.Equal(t, monitoring.StatusDown, checks.Database(nil, 0).Run(context.Background()).Status)
}

func TestMaintenanceCheck(t *testing.T) {
	monitoring.ResetJobs()
	t.Cleanup(monitoring.ResetJobs)

	require.Equal(t, monitoring.StatusUp, checks.Maintenance(0).Run(context.Background()).Status)

	monitoring.RecordJobRun("expiry_sweep", nil, time.Second)
	monitoring.RecordJobRun("audit_cleanup", errors.New("timeout"), time.Second)

	result := checks.Maintenance(0).Run(context.Background())
	require.Equal(t, monitoring.StatusDown, result.Status)
	require.Contains(t, result.Details, "audit_cleanup: timeout")

	monitoring.RecordJobRun("audit_cleanup", nil, time.Second)
	require.Equal(t, monitoring.StatusUp, checks.Maintenance(0).Run(context.Background()).Status)

	jobs := monitoring.Jobs()
	require.Len(t, jobs, 2)
	require.Equal(t, "audit_cleanup", jobs[0].Job)
	require.EqualValues(t, 2, jobs[0].TotalRuns)
	require.EqualValues(t, 1, jobs[0].Failures)
}
