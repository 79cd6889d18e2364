package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if matchLabels(metric, labels) {
				if c := metric.GetCounter(); c != nil {
					return c.GetValue()
				}
				if g := metric.GetGauge(); g != nil {
					return g.GetValue()
				}
			}
		}
	}
	return 0
}

func matchLabels(metric *dto.Metric, labels map[string]string) bool {
	for _, pair := range metric.GetLabel() {
		if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
			return false
		}
	}
	return true
}

func TestMetrics(t *testing.T) {
	t.Run("records polls by result", func(t *testing.T) {
		m := New()
		m.ObservePoll("playing", 10*time.Millisecond)
		m.ObservePoll("playing", 20*time.Millisecond)
		m.ObservePoll("idle", time.Millisecond)

		if got := counterValue(t, m, "spotbar_polls_total", map[string]string{"result": "playing"}); got != 2 {
			t.Errorf("playing polls = %v, want 2", got)
		}
		if got := counterValue(t, m, "spotbar_polls_total", map[string]string{"result": "idle"}); got != 1 {
			t.Errorf("idle polls = %v, want 1", got)
		}
	})

	t.Run("attached gauge", func(t *testing.T) {
		m := New()
		m.SetAttached(true)
		if got := counterValue(t, m, "spotbar_presenter_attached", nil); got != 1 {
			t.Errorf("attached = %v, want 1", got)
		}
		m.SetAttached(false)
		if got := counterValue(t, m, "spotbar_presenter_attached", nil); got != 0 {
			t.Errorf("attached = %v, want 0", got)
		}
	})

	t.Run("nil metrics is a no-op", func(t *testing.T) {
		var m *Metrics
		m.ObservePoll("playing", time.Second)
		m.ObserveAuth("success")
		m.ObserveEmit("idle")
		m.ObserveForcePoll("scheduled")
		m.SetAttached(true)

		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404 from nil handler, got %d", rec.Code)
		}
	})

	t.Run("handler exposes collectors", func(t *testing.T) {
		m := New()
		m.ObserveAuth("invalid_client")

		srv := httptest.NewServer(m.Handler())
		defer srv.Close()

		resp, err := http.Get(srv.URL)
		if err != nil {
			t.Fatalf("GET error = %v", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		if !strings.Contains(string(body), `spotbar_auth_attempts_total{outcome="invalid_client"} 1`) {
			t.Errorf("expected auth counter in exposition, got:\n%s", body)
		}
	})
}
