package monitoring

import (
	"sort"
	"sync"
	"time"

	"github.com/LACC-DEVLINK/checkin-exercito-api/pkg/metrics"
)

// JobStatus summarises the run history of one background job.
type JobStatus struct {
	Job                 string        `json:"job"`
	TotalRuns           uint64        `json:"total_runs"`
	Failures            uint64        `json:"failures"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastError           string        `json:"last_error,omitempty"`
}

var (
	jobsMu sync.RWMutex
	jobs   = map[string]*JobStatus{}
)

// RecordJobRun stores the outcome of a background job run and counts it in
// the job metrics.
func RecordJobRun(job string, err error, duration time.Duration) {
	if job == "" {
		return
	}

	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.MaintenanceRuns.WithLabelValues(job, result).Inc()

	jobsMu.Lock()
	defer jobsMu.Unlock()

	entry, ok := jobs[job]
	if !ok {
		entry = &JobStatus{Job: job}
		jobs[job] = entry
	}

	entry.TotalRuns++
	entry.LastRunAt = time.Now()
	entry.LastDuration = duration
	if err != nil {
		entry.Failures++
		entry.ConsecutiveFailures++
		entry.LastError = err.Error()
		return
	}
	entry.ConsecutiveFailures = 0
	entry.LastError = ""
}

// Jobs returns a snapshot of every recorded job, sorted by name.
func Jobs() []JobStatus {
	jobsMu.RLock()
	defer jobsMu.RUnlock()

	out := make([]JobStatus, 0, len(jobs))
	for _, entry := range jobs {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}

// ResetJobs clears recorded job history.
func ResetJobs() {
	jobsMu.Lock()
	defer jobsMu.Unlock()
	jobs = map[string]*JobStatus{}
}
