package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "seatctl"

// Metrics groups the process counters and gauges. A nil *Metrics is valid and records nothing.
type Metrics struct {
	LeasesActive   prometheus.Gauge
	Processes      prometheus.Gauge
	InviteOutcomes *prometheus.CounterVec
	SessionProbes  *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics registers the metric set on reg. Pass prometheus.NewRegistry() in tests.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LeasesActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "browser_leases_active",
			Help:      "Browser pool leases currently held by callers.",
		}),
		Processes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "browser_processes",
			Help:      "Browser processes owned by the pool.",
		}),
		InviteOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invite_outcomes_total",
			Help:      "Invite attempts by outcome.",
		}, []string{"status"}),
		SessionProbes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_probes_total",
			Help:      "Session detections by classified state.",
		}, []string{"state"}),
		gatherer: reg,
	}
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) LeaseAcquired() {
	if m != nil {
		m.LeasesActive.Inc()
	}
}

func (m *Metrics) LeaseReleased() {
	if m != nil {
		m.LeasesActive.Dec()
	}
}

func (m *Metrics) SetProcesses(n int) {
	if m != nil {
		m.Processes.Set(float64(n))
	}
}

func (m *Metrics) InviteOutcome(status string) {
	if m != nil {
		m.InviteOutcomes.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) SessionProbe(state string) {
	if m != nil {
		m.SessionProbes.WithLabelValues(state).Inc()
	}
}
