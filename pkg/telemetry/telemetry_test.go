package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/keyhole-dev/keyhole/pkg/store"
)

func counterReducer(s store.State, a store.Action) store.State {
	switch a.Kind() {
	case "increment":
		return s.With("counter", s["counter"].(int)+1)
	case "boom":
		panic("boom")
	default:
		return s
	}
}

// gatherMetric returns the first metric family with the given name.
func gatherMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func counterValue(mf *dto.MetricFamily, labels map[string]string) float64 {
	for _, m := range mf.GetMetric() {
		match := true
		for _, lp := range m.GetLabel() {
			if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
				match = false
				break
			}
		}
		if match {
			return m.GetCounter().GetValue()
		}
	}
	return -1
}

func TestInstrumentRecordsDispatches(t *testing.T) {
	reg := prometheus.NewRegistry()
	st, err := store.New(counterReducer, store.State{"counter": 0},
		store.WithInstrumentation(Instrument(WithRegistry(reg))))
	if err != nil {
		t.Fatalf("store.New() error: %v", err)
	}

	st.Subscribe(func() {})
	if err := st.Dispatch(store.Act{Type: "increment"}); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if err := st.Dispatch(store.Act{Type: "boom"}); err == nil {
		t.Fatal("expected error from panicking reducer")
	}

	dispatches := gatherMetric(t, reg, "keyhole_dispatches_total")
	if dispatches == nil {
		t.Fatal("keyhole_dispatches_total not registered")
	}
	if got := counterValue(dispatches, map[string]string{"kind": "increment", "status": "ok"}); got != 1 {
		t.Errorf("expected 1 ok increment dispatch, got %v", got)
	}
	if got := counterValue(dispatches, map[string]string{"kind": "boom", "status": "error"}); got != 1 {
		t.Errorf("expected 1 error boom dispatch, got %v", got)
	}

	notified := gatherMetric(t, reg, "keyhole_observers_notified_total")
	if notified == nil {
		t.Fatal("keyhole_observers_notified_total not registered")
	}
	if got := notified.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("expected 1 notified observer, got %v", got)
	}
}

func TestInstrumentTracksObserverGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	st, err := store.New(counterReducer, store.State{"counter": 0},
		store.WithInstrumentation(Instrument(WithRegistry(reg))))
	if err != nil {
		t.Fatalf("store.New() error: %v", err)
	}

	unsubA := st.Subscribe(func() {})
	st.Subscribe(func() {})

	gauge := gatherMetric(t, reg, "keyhole_observers")
	if gauge == nil {
		t.Fatal("keyhole_observers not registered")
	}
	if got := gauge.GetMetric()[0].GetGauge().GetValue(); got != 2 {
		t.Errorf("expected 2 observers, got %v", got)
	}

	unsubA()
	gauge = gatherMetric(t, reg, "keyhole_observers")
	if got := gauge.GetMetric()[0].GetGauge().GetValue(); got != 1 {
		t.Errorf("expected 1 observer after unsubscribe, got %v", got)
	}
}

func TestInstrumentNamespaceOption(t *testing.T) {
	reg := prometheus.NewRegistry()
	st, err := store.New(counterReducer, store.State{"counter": 0},
		store.WithInstrumentation(Instrument(
			WithRegistry(reg),
			WithNamespace("myapp"),
			WithSubsystem("ui"),
		)))
	if err != nil {
		t.Fatalf("store.New() error: %v", err)
	}
	if err := st.Dispatch(store.Act{Type: "increment"}); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	if mf := gatherMetric(t, reg, "myapp_ui_dispatches_total"); mf == nil {
		t.Error("expected namespaced metric myapp_ui_dispatches_total")
	}
}

func TestInstrumentTracingDoesNotPanic(t *testing.T) {
	// No tracer provider installed: spans go to the global no-op
	// provider. The hook must still be safe to run.
	reg := prometheus.NewRegistry()
	st, err := store.New(counterReducer, store.State{"counter": 0},
		store.WithInstrumentation(Instrument(
			WithRegistry(reg),
			WithTracerName("keyhole-test"),
		)))
	if err != nil {
		t.Fatalf("store.New() error: %v", err)
	}
	if err := st.Dispatch(store.Act{Type: "increment"}); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
}
