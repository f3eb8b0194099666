// Package monitoring is the engine's observation side-channel: every
// layer reports counters, gauges and durations through a Recorder, and
// a health Aggregator periodically polls per-layer checks into one
// overall status. Monitoring failures are never fatal to the engine;
// the worst outcome of a broken recorder is missing telemetry.
package monitoring

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Recorder receives measurements from the engine's layers. It is
// injected at construction so storage, txlog, query and replication
// code never depend on a concrete telemetry system.
type Recorder interface {
	Counter(name string, delta int64, labels map[string]string)
	Gauge(name string, value float64, labels map[string]string)
	Duration(name string, d time.Duration, labels map[string]string)
}

// NopRecorder drops every measurement; the default when monitoring is
// disabled.
type NopRecorder struct{}

func (NopRecorder) Counter(string, int64, map[string]string)           {}
func (NopRecorder) Gauge(string, float64, map[string]string)           {}
func (NopRecorder) Duration(string, time.Duration, map[string]string)  {}

// LogRecorder writes measurements as structured log lines, adequate
// for single-node deployments where a full metrics pipeline would be
// overkill. It also keeps last-value snapshots for the health report.
type LogRecorder struct {
	logger *logrus.Entry

	mu       sync.Mutex
	counters map[string]int64
	gauges   map[string]float64
}

func NewLogRecorder(logger *logrus.Logger) *LogRecorder {
	return &LogRecorder{
		logger:   logger.WithField("component", "monitoring"),
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
	}
}

func (r *LogRecorder) Counter(name string, delta int64, labels map[string]string) {
	r.mu.Lock()
	r.counters[name] += delta
	total := r.counters[name]
	r.mu.Unlock()
	r.logger.WithFields(fieldsFrom(labels)).WithField("total", total).Debugf("counter %s += %d", name, delta)
}

func (r *LogRecorder) Gauge(name string, value float64, labels map[string]string) {
	r.mu.Lock()
	r.gauges[name] = value
	r.mu.Unlock()
	r.logger.WithFields(fieldsFrom(labels)).Debugf("gauge %s = %v", name, value)
}

func (r *LogRecorder) Duration(name string, d time.Duration, labels map[string]string) {
	r.logger.WithFields(fieldsFrom(labels)).WithField("duration", d).Debugf("timing %s", name)
}

// Snapshot returns the current counter and gauge values, feeding the
// health report's metrics section.
func (r *LogRecorder) Snapshot() (map[string]int64, map[string]float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counters := make(map[string]int64, len(r.counters))
	for k, v := range r.counters {
		counters[k] = v
	}
	gauges := make(map[string]float64, len(r.gauges))
	for k, v := range r.gauges {
		gauges[k] = v
	}
	return counters, gauges
}

func fieldsFrom(labels map[string]string) logrus.Fields {
	fields := logrus.Fields{}
	for k, v := range labels {
		fields[k] = v
	}
	return fields
}
