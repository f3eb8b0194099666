package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Status is a check's three-valued outcome. Degraded means the layer
// works but below expectations (e.g. a cold tier answering for a dead
// hot tier); Unhealthy means it cannot serve at all.
type Status int

const (
	StatusHealthy Status = iota
	StatusDegraded
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Check probes one layer. Implementations must be safe to call
// concurrently with the layer's normal operation and must respect ctx.
type Check func(ctx context.Context) CheckResult

// CheckResult is one check invocation's outcome.
type CheckResult struct {
	Status  Status
	Message string
}

// Report is the aggregate of the most recent round of checks.
type Report struct {
	Overall   Status
	Checks    map[string]CheckResult
	CheckedAt time.Time
}

// Aggregator runs registered checks on an interval and folds their
// results into one overall status: the worst individual status wins.
type Aggregator struct {
	interval time.Duration
	logger   *logrus.Entry

	mu     sync.RWMutex
	checks map[string]Check
	last   Report
}

// NewAggregator creates an aggregator polling at interval.
func NewAggregator(interval time.Duration, logger *logrus.Logger) *Aggregator {
	return &Aggregator{
		interval: interval,
		logger:   logger.WithField("component", "health"),
		checks:   make(map[string]Check),
		last:     Report{Overall: StatusHealthy, Checks: map[string]CheckResult{}},
	}
}

// Register adds a named check. Registering an existing name replaces
// the previous check.
func (a *Aggregator) Register(name string, check Check) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checks[name] = check
}

// RunOnce executes every registered check and updates the report.
func (a *Aggregator) RunOnce(ctx context.Context) Report {
	a.mu.RLock()
	checks := make(map[string]Check, len(a.checks))
	for name, check := range a.checks {
		checks[name] = check
	}
	a.mu.RUnlock()

	report := Report{
		Overall:   StatusHealthy,
		Checks:    make(map[string]CheckResult, len(checks)),
		CheckedAt: time.Now(),
	}
	for name, check := range checks {
		result := check(ctx)
		report.Checks[name] = result
		if result.Status > report.Overall {
			report.Overall = result.Status
		}
		if result.Status != StatusHealthy {
			a.logger.WithFields(logrus.Fields{
				"check":  name,
				"status": result.Status.String(),
			}).Warn(result.Message)
		}
	}

	a.mu.Lock()
	a.last = report
	a.mu.Unlock()
	return report
}

// Run polls until ctx is cancelled. A failing check never stops the
// loop; health problems are alerts, not faults.
func (a *Aggregator) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.RunOnce(ctx)
		}
	}
}

// Last returns the most recent report without running checks.
func (a *Aggregator) Last() Report {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last
}
