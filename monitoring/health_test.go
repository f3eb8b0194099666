package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestAggregator_WorstStatusWins(t *testing.T) {
	a := NewAggregator(time.Minute, logrus.New())
	a.Register("storage", func(context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy}
	})
	a.Register("cache", func(context.Context) CheckResult {
		return CheckResult{Status: StatusDegraded, Message: "cache tier unreachable"}
	})

	report := a.RunOnce(context.Background())
	assert.Equal(t, StatusDegraded, report.Overall)
	assert.Len(t, report.Checks, 2)
	assert.Equal(t, StatusDegraded, report.Checks["cache"].Status)
}

func TestAggregator_UnhealthyOutranksDegraded(t *testing.T) {
	a := NewAggregator(time.Minute, logrus.New())
	a.Register("a", func(context.Context) CheckResult { return CheckResult{Status: StatusDegraded} })
	a.Register("b", func(context.Context) CheckResult { return CheckResult{Status: StatusUnhealthy} })

	assert.Equal(t, StatusUnhealthy, a.RunOnce(context.Background()).Overall)
}

func TestAggregator_LastReturnsMostRecentReport(t *testing.T) {
	a := NewAggregator(time.Minute, logrus.New())
	assert.Equal(t, StatusHealthy, a.Last().Overall)

	a.Register("x", func(context.Context) CheckResult { return CheckResult{Status: StatusUnhealthy} })
	a.RunOnce(context.Background())
	assert.Equal(t, StatusUnhealthy, a.Last().Overall)
}

func TestLogRecorder_SnapshotAccumulates(t *testing.T) {
	r := NewLogRecorder(logrus.New())
	r.Counter("queries_total", 1, nil)
	r.Counter("queries_total", 2, map[string]string{"db": "default"})
	r.Gauge("cache_bytes", 1024, nil)

	counters, gauges := r.Snapshot()
	assert.Equal(t, int64(3), counters["queries_total"])
	assert.Equal(t, 1024.0, gauges["cache_bytes"])
}

func TestCheckResultFromError(t *testing.T) {
	check := func(err error) CheckResult {
		if err != nil {
			return CheckResult{Status: StatusUnhealthy, Message: err.Error()}
		}
		return CheckResult{Status: StatusHealthy}
	}
	assert.Equal(t, StatusUnhealthy, check(errors.New("down")).Status)
	assert.Equal(t, StatusHealthy, check(nil).Status)
}
