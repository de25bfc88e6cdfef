package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gathered(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			}
		}
	}
	return total
}

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SearchRequestsTotal.WithLabelValues(OutcomeResults).Inc()
	m.SearchRequestsTotal.WithLabelValues(OutcomeZeroResults).Inc()
	m.CacheHitsTotal.Inc()
	m.CircuitBreakerState.WithLabelValues("redis").Set(1)

	if got := gathered(t, reg, "helpsearch_search_requests_total"); got != 2 {
		t.Errorf("search_requests_total = %v, want 2", got)
	}
	if got := gathered(t, reg, "helpsearch_cache_hits_total"); got != 1 {
		t.Errorf("cache_hits_total = %v, want 1", got)
	}
	if got := gathered(t, reg, "helpsearch_circuit_breaker_state"); got != 1 {
		t.Errorf("circuit_breaker_state = %v, want 1", got)
	}
}

func TestNewUnregisteredIsIndependent(t *testing.T) {
	a := NewUnregistered()
	b := NewUnregistered()
	a.SuggestionsTotal.Inc()
	b.SuggestionsTotal.Inc()
}
