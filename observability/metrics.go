/*
Package observability exposes Prometheus metrics for the reward engine.

Counters are registered lazily on first use so that test binaries which
never touch metrics do not pollute the default registry.
*/
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	rewardsApplied prometheus.Counter
	bonusesGranted prometheus.Counter
	transfers      prometheus.Counter
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
)

func register() {
	registerOnce.Do(func() {
		rewardsApplied = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reward_engine",
			Name:      "rewards_applied_total",
			Help:      "Quest rewards credited (excludes idempotent replays).",
		})
		bonusesGranted = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reward_engine",
			Name:      "bonuses_granted_total",
			Help:      "Completion bonuses credited.",
		})
		transfers = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reward_engine",
			Name:      "transfers_applied_total",
			Help:      "Coin transfers committed.",
		})
		httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reward_engine",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status class.",
		}, []string{"route", "status"})
		httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reward_engine",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"})

		prometheus.MustRegister(
			rewardsApplied,
			bonusesGranted,
			transfers,
			httpRequests,
			httpDuration,
		)
	})
}

// Metrics implements the engine's metrics hooks on top of Prometheus.
type Metrics struct{}

// NewMetrics returns the Prometheus-backed recorder, registering the
// collectors if needed.
func NewMetrics() *Metrics {
	register()
	return &Metrics{}
}

func (m *Metrics) RewardApplied()   { rewardsApplied.Inc() }
func (m *Metrics) BonusGranted()    { bonusesGranted.Inc() }
func (m *Metrics) TransferApplied() { transfers.Inc() }

// ObserveHTTP records one served HTTP request.
func (m *Metrics) ObserveHTTP(route, status string, seconds float64) {
	httpRequests.WithLabelValues(route, status).Inc()
	httpDuration.WithLabelValues(route).Observe(seconds)
}
