package registry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MARK: NewMetrics
// Creates and registers registry metrics with the given Prometheus registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		serversRegistered: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "snapcontrol_servers_registered",
			Help: "Current number of registered servers by kind",
		}, []string{"kind"}),
		discoveryEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snapcontrol_discovery_events_total",
			Help: "Discovery events applied to the registry by kind and event",
		}, []string{"kind", "event"}),
		resyncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "snapcontrol_resync_pass_duration_seconds",
			Help:    "Duration of resynchronization passes",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		refreshResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snapcontrol_refresh_results_total",
			Help: "Control server refreshes by result",
		}, []string{"result"}),
		mutationResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snapcontrol_mutations_total",
			Help: "Client mutations by action and result",
		}, []string{"action", "result"}),
	}

	registry.MustRegister(
		m.serversRegistered,
		m.discoveryEvents,
		m.resyncDuration,
		m.refreshResults,
		m.mutationResults,
	)

	return m
}

// MARK: SetRegistered
func (m *Metrics) SetRegistered(kind string, count int) {
	if m == nil {
		return
	}
	m.serversRegistered.WithLabelValues(kind).Set(float64(count))
}

// MARK: DiscoveryEvent
func (m *Metrics) DiscoveryEvent(kind, event string) {
	if m == nil {
		return
	}
	m.discoveryEvents.WithLabelValues(kind, event).Inc()
}

// MARK: ObserveResync
func (m *Metrics) ObserveResync(duration time.Duration) {
	if m == nil {
		return
	}
	m.resyncDuration.Observe(duration.Seconds())
}

// MARK: RefreshResult
func (m *Metrics) RefreshResult(result string) {
	if m == nil {
		return
	}
	m.refreshResults.WithLabelValues(result).Inc()
}

// MARK: MutationResult
func (m *Metrics) MutationResult(action, result string) {
	if m == nil {
		return
	}
	m.mutationResults.WithLabelValues(action, result).Inc()
}
