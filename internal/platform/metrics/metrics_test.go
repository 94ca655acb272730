package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveVerification("initial", "ok", time.Second)
	m.ObserveTransition("assign", "ok")
	m.IncEventAppended("ISSUE_CREATED")
	m.IncPublished("hub")
	m.IncDropped("queue_full")
	m.IncSinkError("nats")
	m.AddSubscribers(1)
	m.SetDependency("database", 1)
	m.IncEscalations()
}

func TestMetricsRecordOnRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveTransition("assign", "ok")
	m.ObserveTransition("assign", "ok")
	m.IncDropped("queue_full")

	if got := testutil.ToFloat64(m.Transitions.WithLabelValues("assign", "ok")); got != 2 {
		t.Fatalf("transitions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Dropped.WithLabelValues("queue_full")); got != 1 {
		t.Fatalf("dropped = %v, want 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(families) == 0 {
		t.Fatalf("Gather() returned no families")
	}
}
