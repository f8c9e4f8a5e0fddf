// Package observability provides Prometheus metrics instrumentation for
// LibPolyCall's dispatch, bridge, security, component, pool, and stream
// subsystems. Grounded on the teacher's coreengine/observability/metrics.go
// promauto idiom (CounterVec/HistogramVec pairs plus a package-level
// RecordXxx wrapper per concern); metric names and label sets are replaced
// for this domain.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// DISPATCH METRICS (C5)
// =============================================================================

var (
	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polycall_dispatch_total",
			Help: "Total number of command dispatches",
		},
		[]string{"command", "status"}, // status: success, error, validation_error, not_found
	)

	dispatchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polycall_dispatch_duration_seconds",
			Help:    "Command dispatch duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"command"},
	)
)

// RecordDispatch records a command dispatch outcome and its latency.
func RecordDispatch(command, status string, d time.Duration) {
	dispatchTotal.WithLabelValues(command, status).Inc()
	dispatchDurationSeconds.WithLabelValues(command).Observe(d.Seconds())
}

// =============================================================================
// BRIDGE METRICS (C8)
// =============================================================================

var (
	bridgeCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polycall_bridge_calls_total",
			Help: "Total FFI bridge calls, inbound and outbound",
		},
		[]string{"direction", "status"}, // direction: inbound, outbound
	)

	bridgeCallDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polycall_bridge_call_duration_seconds",
			Help:    "FFI bridge call duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"direction"},
	)
)

// RecordBridgeCall records a bridge call outcome and its latency.
func RecordBridgeCall(direction, status string, d time.Duration) {
	bridgeCallsTotal.WithLabelValues(direction, status).Inc()
	bridgeCallDurationSeconds.WithLabelValues(direction).Observe(d.Seconds())
}

// =============================================================================
// SECURITY METRICS (C9)
// =============================================================================

var (
	permissionChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polycall_permission_checks_total",
			Help: "Total permission checks performed by the security engine",
		},
		[]string{"allowed"}, // "true" / "false"
	)
)

// RecordPermissionCheck records an ACL decision.
func RecordPermissionCheck(allowed bool) {
	label := "false"
	if allowed {
		label = "true"
	}
	permissionChecksTotal.WithLabelValues(label).Inc()
}

// =============================================================================
// COMPONENT / RESOURCE LIMITER METRICS (C10)
// =============================================================================

var (
	quotaViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polycall_quota_violations_total",
			Help: "Total resource quota violations",
		},
		[]string{"component", "resource"}, // resource: "combined" (RecordUsage checks all resources together)
	)

	thresholdCrossingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polycall_threshold_crossings_total",
			Help: "Total resource threshold callback invocations",
		},
		[]string{"component", "resource"},
	)
)

// RecordQuotaViolation records a QuotaExceeded outcome for a component/resource pair.
func RecordQuotaViolation(component, resource string) {
	quotaViolationsTotal.WithLabelValues(component, resource).Inc()
}

// RecordThresholdCrossing records a threshold callback invocation.
func RecordThresholdCrossing(component, resource string) {
	thresholdCrossingsTotal.WithLabelValues(component, resource).Inc()
}

// =============================================================================
// CONNECTION POOL METRICS (C11)
// =============================================================================

var (
	poolAcquireTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polycall_pool_acquire_total",
			Help: "Total connection pool acquire attempts",
		},
		[]string{"pool", "status"}, // status: success, exhausted
	)

	poolAcquireWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polycall_pool_acquire_wait_seconds",
			Help:    "Time spent waiting to acquire a pool connection",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"pool"},
	)

	poolSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "polycall_pool_size",
			Help: "Current connection pool size by state",
		},
		[]string{"pool", "state"}, // state: idle, active, cooling
	)
)

// RecordPoolAcquire records a pool acquire outcome and the time spent waiting.
func RecordPoolAcquire(pool, status string, wait time.Duration) {
	poolAcquireTotal.WithLabelValues(pool, status).Inc()
	poolAcquireWaitSeconds.WithLabelValues(pool).Observe(wait.Seconds())
}

// SetPoolGauge sets the current gauge value for a pool/state pair.
func SetPoolGauge(pool, state string, value float64) {
	poolSize.WithLabelValues(pool, state).Set(value)
}

// =============================================================================
// STREAM METRICS (C6)
// =============================================================================

var (
	streamBackpressureTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polycall_stream_backpressure_total",
			Help: "Total times a stream crossed its buffer threshold",
		},
		[]string{"stream"},
	)
)

// RecordStreamBackpressure records an on_buffer_threshold callback firing.
func RecordStreamBackpressure(stream string) {
	streamBackpressureTotal.WithLabelValues(stream).Inc()
}
