package observability

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

// LedgerMetrics tracks ledger operations and headline balances.
type LedgerMetrics struct {
	operations   *prometheus.CounterVec
	failures     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	totalStaked  prometheus.Gauge
	accumulator  prometheus.Gauge
	claimed      prometheus.Counter
	undistribute prometheus.Gauge
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record JSON-RPC activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "excelsior",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "excelsior",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by module, method, and error code.",
			}, []string{"module", "method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "excelsior",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "excelsior",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a JSON-RPC request. A zero code means success.
func (m *moduleMetrics) Observe(module, method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", code)).Inc()
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// Ledger returns the lazily-initialised ledger metrics registry.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "excelsior",
				Subsystem: "ledger",
				Name:      "operations_total",
				Help:      "Ledger operations segmented by operation and outcome.",
			}, []string{"op", "outcome"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "excelsior",
				Subsystem: "ledger",
				Name:      "errors_total",
				Help:      "Failed ledger operations segmented by operation and error kind.",
			}, []string{"op", "kind"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "excelsior",
				Subsystem: "ledger",
				Name:      "operation_duration_seconds",
				Help:      "Latency of ledger operations including the store commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
			totalStaked: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "excelsior",
				Subsystem: "ledger",
				Name:      "total_staked",
				Help:      "Stake tokens currently locked in positions.",
			}),
			accumulator: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "excelsior",
				Subsystem: "ledger",
				Name:      "acc_reward_per_share",
				Help:      "Reward accumulator scaled by 1e12, as a float approximation.",
			}),
			claimed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "excelsior",
				Subsystem: "distributor",
				Name:      "claimed_amount_total",
				Help:      "Tokens paid out by distribution claims.",
			}),
			undistribute: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "excelsior",
				Subsystem: "ledger",
				Name:      "undistributed_rewards",
				Help:      "Reward income carried while nothing was staked.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.operations,
			ledgerRegistry.failures,
			ledgerRegistry.latency,
			ledgerRegistry.totalStaked,
			ledgerRegistry.accumulator,
			ledgerRegistry.claimed,
			ledgerRegistry.undistribute,
		)
	})
	return ledgerRegistry
}

// ObserveOperation records the outcome of one atomic ledger operation. kind is
// empty on success.
func (m *LedgerMetrics) ObserveOperation(op, kind string, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if kind != "" {
		outcome = "error"
		m.failures.WithLabelValues(op, kind).Inc()
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// SetLedger publishes the headline ledger values after a commit.
func (m *LedgerMetrics) SetLedger(totalStaked uint64, acc *uint256.Int, undistributed uint64) {
	if m == nil {
		return
	}
	m.totalStaked.Set(float64(totalStaked))
	m.undistribute.Set(float64(undistributed))
	if acc == nil {
		m.accumulator.Set(0)
		return
	}
	value, _ := new(big.Float).SetInt(acc.ToBig()).Float64()
	m.accumulator.Set(value)
}

// AddClaimed records a paid claim.
func (m *LedgerMetrics) AddClaimed(amount uint64) {
	if m == nil {
		return
	}
	m.claimed.Add(float64(amount))
}
