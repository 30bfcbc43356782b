package goReset

import "sync/atomic"

// MetricID defines a public type used by goReset APIs.
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID uint16

const (
	// MetricResetRequest is an exported constant or variable used by the reset engine.
	MetricResetRequest MetricID = iota
	// MetricResetRequestAbsorbed is an exported constant or variable used by the reset engine.
	MetricResetRequestAbsorbed
	// MetricResetThrottled is an exported constant or variable used by the reset engine.
	MetricResetThrottled
	// MetricVerifySuccess is an exported constant or variable used by the reset engine.
	MetricVerifySuccess
	// MetricVerifyFailure is an exported constant or variable used by the reset engine.
	MetricVerifyFailure
	// MetricVerifyAttemptsExceeded is an exported constant or variable used by the reset engine.
	MetricVerifyAttemptsExceeded
	// MetricFinalizeSuccess is an exported constant or variable used by the reset engine.
	MetricFinalizeSuccess
	// MetricFinalizeFailure is an exported constant or variable used by the reset engine.
	MetricFinalizeFailure
	// MetricMailFailure is an exported constant or variable used by the reset engine.
	MetricMailFailure
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters for the reset protocol. All operations are
// no-ops when metrics are disabled.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// NewMetrics creates a [Metrics] instance configured by the given
// [MetricsConfig].
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc describes the inc operation and its observable behavior.
//
// Inc may return an error when input validation, dependency calls, or security checks fail.
// Inc does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot may return an error when input validation, dependency calls, or security checks fail.
// Snapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, metricIDCount),
	}
	if m == nil || !m.enabled {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return snap
}
