package monitoring

import (
	"sort"
	"sync"
	"time"
)

// JobSummary describes the recent history of one background job.
type JobSummary struct {
	Job                 string        `json:"job"`
	LastStatus          string        `json:"last_status"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastError           string        `json:"last_error,omitempty"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	TotalRuns           uint64        `json:"total_runs"`
}

// JobTracker records background job outcomes for the maintenance probe.
type JobTracker struct {
	mu   sync.Mutex
	now  func() time.Time
	jobs map[string]*JobSummary
}

// NewJobTracker returns an empty tracker.
func NewJobTracker() *JobTracker {
	return &JobTracker{now: time.Now, jobs: make(map[string]*JobSummary)}
}

// Expect registers a job so the maintenance probe reports it before its first run.
func (t *JobTracker) Expect(job string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.jobs[job]; !ok {
		t.jobs[job] = &JobSummary{Job: job}
	}
}

// RecordJob stores the outcome of one run.
func (t *JobTracker) RecordJob(job string, err error, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.jobs[job]
	if !ok {
		entry = &JobSummary{Job: job}
		t.jobs[job] = entry
	}
	entry.LastRunAt = now
	entry.LastDuration = duration
	entry.TotalRuns++

	if err != nil {
		entry.LastStatus = "failure"
		entry.LastError = err.Error()
		entry.ConsecutiveFailures++
		return
	}
	entry.LastStatus = "success"
	entry.LastError = ""
	entry.LastSuccessAt = now
	entry.ConsecutiveFailures = 0
}

// Jobs returns a copy of every tracked job ordered by name.
func (t *JobTracker) Jobs() []JobSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]JobSummary, 0, len(t.jobs))
	for _, entry := range t.jobs {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}
