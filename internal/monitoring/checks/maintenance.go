package checks

import (
	"context"
	"strings"
	"time"

	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/monitoring"
)

const defaultMaintenanceMaxAge = 6 * time.Hour

// Maintenance verifies that background jobs run successfully within the expected interval.
// When maxAge is zero, a default window of 6h is used.
func Maintenance(maxAge time.Duration) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultMaintenanceMaxAge
	}

	return monitoring.NewCheck("maintenance", func(ctx context.Context) monitoring.ProbeResult {
		jobs := monitoring.Jobs()
		if len(jobs) == 0 {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "no maintenance runs recorded"}
		}

		now := time.Now()
		status := monitoring.StatusUp
		var problems []string

		for _, job := range jobs {
			if job.ConsecutiveFailures > 0 {
				status = monitoring.Worst(status, monitoring.StatusDown)
				problems = append(problems, job.Job+": "+job.LastError)
			}
			if now.Sub(job.LastRunAt) > maxAge {
				status = monitoring.Worst(status, monitoring.StatusDegraded)
				problems = append(problems, job.Job+": stale run "+job.LastRunAt.UTC().Format(time.RFC3339))
			}
		}

		return monitoring.ProbeResult{
			Status:  status,
			Details: strings.Join(problems, "; "),
		}
	})
}
