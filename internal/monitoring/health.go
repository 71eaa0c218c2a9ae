package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ProbeStatus encodes the outcome of a health probe.
type ProbeStatus string

const (
	StatusUp       ProbeStatus = "up"
	StatusDown     ProbeStatus = "down"
	StatusDegraded ProbeStatus = "degraded"
)

// ProbeResult captures a single dependency check outcome.
type ProbeResult struct {
	Component string        `json:"component"`
	Status    ProbeStatus   `json:"status"`
	Details   string        `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Report aggregates probe results. Healthy is false as soon as one probe is
// not up; Status carries the worst probe status.
type Report struct {
	Healthy   bool          `json:"healthy"`
	Status    ProbeStatus   `json:"status"`
	Checks    []ProbeResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Check is a named dependency probe.
type Check struct {
	Name string
	Run  func(ctx context.Context) ProbeResult
}

// NewCheck constructs a check. A nil probe always reports down.
func NewCheck(name string, fn func(ctx context.Context) ProbeResult) Check {
	if fn == nil {
		fn = func(context.Context) ProbeResult {
			return ProbeResult{Status: StatusDown, Details: "probe not implemented"}
		}
	}
	return Check{Name: name, Run: fn}
}

// HealthManager runs the registered readiness probes.
type HealthManager struct {
	mu     sync.RWMutex
	checks []Check
}

// NewHealthManager returns a manager with the given checks registered.
func NewHealthManager(checks ...Check) *HealthManager {
	m := &HealthManager{}
	for _, check := range checks {
		m.Register(check)
	}
	return m
}

// Register appends a probe. Unnamed probes are ignored.
func (m *HealthManager) Register(check Check) {
	if check.Name == "" {
		return
	}
	m.mu.Lock()
	m.checks = append(m.checks, check)
	m.mu.Unlock()
}

// Evaluate runs every probe sequentially.
func (m *HealthManager) Evaluate(ctx context.Context) Report {
	m.mu.RLock()
	checks := append([]Check(nil), m.checks...)
	m.mu.RUnlock()

	report := Report{
		Healthy:   true,
		Status:    StatusUp,
		Checks:    make([]ProbeResult, 0, len(checks)),
		CheckedAt: time.Now().UTC(),
	}

	for _, check := range checks {
		result := runCheck(ctx, check)
		report.Checks = append(report.Checks, result)
		report.Status = WorstStatus(report.Status, result.Status)
	}
	report.Healthy = report.Status == StatusUp
	return report
}

func runCheck(ctx context.Context, check Check) (result ProbeResult) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			result = ProbeResult{
				Status:   StatusDown,
				Details:  fmt.Sprint("panic: ", rec),
				Duration: time.Since(start),
			}
		}
		result.Component = check.Name
	}()

	result = check.Run(ctx)
	if result.Status == "" {
		result.Status = StatusDown
	}
	if result.Duration == 0 {
		result.Duration = time.Since(start)
	}
	return result
}

// WorstStatus orders statuses down > degraded > up.
func WorstStatus(current, candidate ProbeStatus) ProbeStatus {
	switch {
	case current == StatusDown || candidate == StatusDown:
		return StatusDown
	case current == StatusDegraded || candidate == StatusDegraded:
		return StatusDegraded
	default:
		return StatusUp
	}
}

// ResultFromError converts an error into a ProbeResult. Timeouts and
// cancellations degrade rather than fail the probe.
func ResultFromError(component string, err error, duration time.Duration) ProbeResult {
	if duration < 0 {
		duration = 0
	}
	if err == nil {
		return ProbeResult{Component: component, Status: StatusUp, Duration: duration}
	}

	status := StatusDown
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		status = StatusDegraded
	}

	return ProbeResult{
		Component: component,
		Status:    status,
		Details:   err.Error(),
		Duration:  duration,
	}
}
