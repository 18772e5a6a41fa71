package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"
)

func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metricLoop:
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if labels[pair.GetName()] != pair.GetValue() {
					continue metricLoop
				}
			}
			if c := metric.GetCounter(); c != nil {
				return c.GetValue()
			}
			return metric.GetGauge().GetValue()
		}
	}
	return 0
}

func TestMetrics(t *testing.T) {
	m := New()
	m.SnapshotApplied("circles", 3, 1)
	m.SubscriptionFailed("circles")
	m.IntentDone("join_circle", nil)
	m.IntentDone("join_circle", errors.New("boom"))
	m.AssistantCall("summary", "fallback")

	assert.Equal(t, counterValue(t, m, "unilife_cache_snapshots_total", map[string]string{"collection": "circles"}), 1.0)
	assert.Equal(t, counterValue(t, m, "unilife_cache_decode_failures_total", map[string]string{"collection": "circles"}), 1.0)
	assert.Equal(t, counterValue(t, m, "unilife_cache_degraded", map[string]string{"collection": "circles"}), 1.0)
	assert.Equal(t, counterValue(t, m, "unilife_intents_total", map[string]string{"intent": "join_circle", "outcome": "error"}), 1.0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, rec.Code, 200)
	assert.Equal(t, strings.Contains(rec.Body.String(), "unilife_assistant_calls_total"), true)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.SnapshotApplied("users", 1, 0)
	m.IntentDone("x", nil)
	m.LiveClientConnected()
	assert.Equal(t, m.Registry() == nil, true)
}
