package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.TransactionsProcessed.WithLabelValues("deposit").Inc()
	m.TransactionsProcessed.WithLabelValues("deposit").Inc()
	m.TransactionsRejected.WithLabelValues("insufficient_funds").Inc()
	m.Evictions.Inc()
	m.HotEntries.Set(42)

	if got := testutil.ToFloat64(m.TransactionsProcessed.WithLabelValues("deposit")); got != 2 {
		t.Errorf("expected 2 deposits processed, got %v", got)
	}
	if got := testutil.ToFloat64(m.Evictions); got != 1 {
		t.Errorf("expected 1 eviction, got %v", got)
	}
	if got := testutil.ToFloat64(m.HotEntries); got != 42 {
		t.Errorf("expected hot entries 42, got %v", got)
	}
}

func TestNew_SeparateRegistries(t *testing.T) {
	// Two instances must not collide as long as they use separate
	// registries.
	_ = New(prometheus.NewRegistry())
	_ = New(prometheus.NewRegistry())
}
