package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestMetricsExposition(t *testing.T) {
	m := New()
	m.ObserveSimulation("snowball", OutcomeOK, 3*time.Millisecond)
	m.ObserveSimulation("avalanche", OutcomeCeiling, time.Millisecond)
	m.ObserveSimulation("custom", OutcomeInvalid, 0)
	m.CacheHit()
	m.CacheMiss()
	m.CacheMiss()
	m.RunFinished("completed")
	m.ObserveHTTP(http.MethodPost, "/debts/simulate", http.StatusOK, 10*time.Millisecond)
	m.RateLimited()
	m.Suspicious()

	body := scrape(t, m)
	for _, want := range []string{
		`payoff_simulations_total{method="snowball",outcome="ok"} 1`,
		`payoff_simulations_total{method="avalanche",outcome="ceiling"} 1`,
		`payoff_simulations_total{method="custom",outcome="invalid"} 1`,
		`payoff_cache_requests_total{result="miss"} 2`,
		`payoff_runs_total{status="completed"} 1`,
		`payoff_http_requests_total{code="200",method="POST",route="/debts/simulate"} 1`,
		`payoff_rate_limited_total 1`,
		`payoff_suspicious_requests_total 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
	// Rejected input is counted but never timed.
	if strings.Contains(body, `payoff_simulation_duration_seconds_count{method="custom"}`) {
		t.Error("invalid simulations must not be timed")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveSimulation("snowball", OutcomeOK, time.Second)
	m.CacheHit()
	m.CacheMiss()
	m.RunFinished("failed")
	m.ObserveHTTP(http.MethodGet, "/healthz", http.StatusOK, time.Millisecond)
	m.RateLimited()
	m.Suspicious()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("nil metrics handler status = %d, want 404", rec.Code)
	}
}
