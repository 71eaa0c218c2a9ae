package checks

import (
	"context"
	"strings"
	"time"

	"github.com/charlesng35/uniauth/internal/monitoring"
)

// DefaultMaintenanceMaxAge tolerates a missed daily run before degrading.
const DefaultMaintenanceMaxAge = 36 * time.Hour

// Maintenance reports the background jobs recorded in tracker. A job whose
// last run failed is down; one whose last success is older than maxAge is degraded.
func Maintenance(tracker *monitoring.JobTracker, maxAge time.Duration) monitoring.Check {
	if maxAge <= 0 {
		maxAge = DefaultMaintenanceMaxAge
	}

	return monitoring.NewCheck("maintenance", func(context.Context) monitoring.ProbeResult {
		if tracker == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "maintenance disabled"}
		}

		jobs := tracker.Jobs()
		if len(jobs) == 0 {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "no maintenance jobs registered"}
		}

		now := time.Now()
		status := monitoring.StatusUp
		var notes []string

		for _, job := range jobs {
			switch {
			case job.TotalRuns == 0:
				notes = append(notes, job.Job+": pending first run")
			case job.ConsecutiveFailures > 0:
				status = monitoring.WorstStatus(status, monitoring.StatusDown)
				notes = append(notes, job.Job+": "+job.LastError)
			case now.Sub(job.LastSuccessAt) > maxAge:
				status = monitoring.WorstStatus(status, monitoring.StatusDegraded)
				notes = append(notes, job.Job+": stale run "+job.LastSuccessAt.UTC().Format(time.RFC3339))
			}
		}

		return monitoring.ProbeResult{Status: status, Details: strings.Join(notes, "; ")}
	})
}
