// Package metrics exposes the process's Prometheus collectors. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "unilife"

// Metrics holds every collector on a private registry
type Metrics struct {
	registry *prometheus.Registry

	snapshots          *prometheus.CounterVec
	decodeFailures     *prometheus.CounterVec
	subscriptionErrors *prometheus.CounterVec
	cachedDocuments    *prometheus.GaugeVec
	cacheDegraded      *prometheus.GaugeVec
	intents            *prometheus.CounterVec
	assistantCalls     *prometheus.CounterVec
	liveClients        prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		snapshots: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_snapshots_total",
			Help:      "Snapshots applied to a live collection cache.",
		}, []string{"collection"}),
		decodeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_decode_failures_total",
			Help:      "Documents dropped because they did not decode.",
		}, []string{"collection"}),
		subscriptionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_subscription_errors_total",
			Help:      "Errors reported by collection subscriptions.",
		}, []string{"collection"}),
		cachedDocuments: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_documents",
			Help:      "Documents currently held per collection.",
		}, []string{"collection"}),
		cacheDegraded: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_degraded",
			Help:      "1 while the collection subscription is failing.",
		}, []string{"collection"}),
		intents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "Mutation intents by outcome.",
		}, []string{"intent", "outcome"}),
		assistantCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assistant_calls_total",
			Help:      "Study assistant calls by kind and outcome.",
		}, []string{"kind", "outcome"}),
		liveClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_clients",
			Help:      "Connected WebSocket clients.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) SnapshotApplied(collection string, documents, dropped int) {
	if m == nil {
		return
	}
	m.snapshots.WithLabelValues(collection).Inc()
	m.cachedDocuments.WithLabelValues(collection).Set(float64(documents))
	m.cacheDegraded.WithLabelValues(collection).Set(0)
	if dropped > 0 {
		m.decodeFailures.WithLabelValues(collection).Add(float64(dropped))
	}
}

func (m *Metrics) SubscriptionFailed(collection string) {
	if m == nil {
		return
	}
	m.subscriptionErrors.WithLabelValues(collection).Inc()
	m.cacheDegraded.WithLabelValues(collection).Set(1)
}

func (m *Metrics) CacheCleared(collection string) {
	if m == nil {
		return
	}
	m.cachedDocuments.WithLabelValues(collection).Set(0)
	m.cacheDegraded.WithLabelValues(collection).Set(0)
}

// IntentDone counts one intent; outcome is "ok" unless err is set.
func (m *Metrics) IntentDone(intent string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.intents.WithLabelValues(intent, outcome).Inc()
}

// AssistantCall counts one assistant call; outcome is ok, cached or fallback.
func (m *Metrics) AssistantCall(kind, outcome string) {
	if m == nil {
		return
	}
	m.assistantCalls.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) LiveClientConnected() {
	if m == nil {
		return
	}
	m.liveClients.Inc()
}

func (m *Metrics) LiveClientDisconnected() {
	if m == nil {
		return
	}
	m.liveClients.Dec()
}
