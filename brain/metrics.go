package brain

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics provides Prometheus-compatible metrics for the robot
// brain's graph execution, all namespaced "robobrain_".
//
// Unlike a general-purpose concurrent workflow engine, the decision core
// runs one node at a time per thread (§5), so there is no inflight-node
// gauge, no queue depth, no merge-conflict counter here: those only make
// sense for a scheduler with a concurrent frontier. What remains is
// step-by-step execution health:
//
//  1. step_latency_ms (histogram): node execution duration. Labels:
//     thread_id, node_id, status (success/error).
//  2. node_errors_total (counter): node execution failures. Labels: node_id.
//  3. react_iterations_total (counter): R1 observation builds, i.e. ReAct
//     loop iterations across all threads.
//  4. dispatches_total / cancels_total (counters): successful R6 side
//     effects, labeled by skill name.
//  5. guardrail_rejections_total (counter): R4 rejections, labeled by reason.
//
// The engine records only step_latency_ms (through RecordStep) and
// node_errors_total. The other counters change only when a caller invokes
// their Record methods; no node in this module does.
type PrometheusMetrics struct {
	stepLatency         *prometheus.HistogramVec
	nodeErrors          *prometheus.CounterVec
	reactIterations     prometheus.Counter
	dispatches          *prometheus.CounterVec
	cancels             *prometheus.CounterVec
	guardrailRejections *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// NewPrometheusMetrics creates and registers all graph execution metrics
// with the given registry (use prometheus.DefaultRegisterer for the
// global registry).
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &PrometheusMetrics{
		enabled: true,
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "robobrain",
			Name:      "step_latency_ms",
			Help:      "Node execution duration in milliseconds.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"thread_id", "node_id", "status"}),
		nodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "robobrain",
			Name:      "node_errors_total",
			Help:      "Total node execution errors, by node id.",
		}, []string{"node_id"}),
		reactIterations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "robobrain",
			Name:      "react_iterations_total",
			Help:      "Total ReAct loop iterations (R1 observation builds) across all threads.",
		}),
		dispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "robobrain",
			Name:      "dispatches_total",
			Help:      "Total successful skill dispatches, by skill name.",
		}, []string{"skill"}),
		cancels: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "robobrain",
			Name:      "cancels_total",
			Help:      "Total successful skill cancellations, by skill name.",
		}, []string{"skill"}),
		guardrailRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "robobrain",
			Name:      "guardrail_rejections_total",
			Help:      "Total R4 guardrail rejections, by reason code.",
		}, []string{"reason"}),
	}
}

// RecordStep records that nodeID completed successfully, as one
// step_latency_ms observation of 0 with an empty thread_id label.
func (pm *PrometheusMetrics) RecordStep(nodeID string) {
	if pm == nil || !pm.isEnabled() {
		return
	}
	pm.stepLatency.WithLabelValues("", nodeID, "success").Observe(0)
}

// RecordStepLatency records node execution duration with an explicit
// thread id and status, for callers that track timing themselves.
func (pm *PrometheusMetrics) RecordStepLatency(threadID, nodeID string, latency time.Duration, status string) {
	if pm == nil || !pm.isEnabled() {
		return
	}
	pm.stepLatency.WithLabelValues(threadID, nodeID, status).Observe(float64(latency.Milliseconds()))
}

// RecordNodeError increments the error counter for nodeID.
func (pm *PrometheusMetrics) RecordNodeError(nodeID string) {
	if pm == nil || !pm.isEnabled() {
		return
	}
	pm.nodeErrors.WithLabelValues(nodeID).Inc()
}

// RecordReactIteration increments the ReAct loop iteration counter.
func (pm *PrometheusMetrics) RecordReactIteration() {
	if pm == nil || !pm.isEnabled() {
		return
	}
	pm.reactIterations.Inc()
}

// RecordDispatch increments the dispatch counter for skill.
func (pm *PrometheusMetrics) RecordDispatch(skill string) {
	if pm == nil || !pm.isEnabled() {
		return
	}
	pm.dispatches.WithLabelValues(skill).Inc()
}

// RecordCancel increments the cancel counter for skill.
func (pm *PrometheusMetrics) RecordCancel(skill string) {
	if pm == nil || !pm.isEnabled() {
		return
	}
	pm.cancels.WithLabelValues(skill).Inc()
}

// RecordGuardrailRejection increments the rejection counter for reason.
func (pm *PrometheusMetrics) RecordGuardrailRejection(reason string) {
	if pm == nil || !pm.isEnabled() {
		return
	}
	pm.guardrailRejections.WithLabelValues(reason).Inc()
}

func (pm *PrometheusMetrics) isEnabled() bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}

// Disable temporarily disables metric recording (useful for testing).
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable re-enables metric recording after Disable.
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}
