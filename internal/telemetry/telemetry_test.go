package telemetry

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.RequestsTotal.WithLabelValues("sql", "success").Inc()
	m.SafetyLevel.WithLabelValues("Safe").Inc()

	count, err := testCounterValue(reg, "glance_requests_total")
	if err != nil {
		t.Fatalf("gathering metrics: %v", err)
	}
	if count == 0 {
		t.Errorf("expected glance_requests_total to have been incremented")
	}
}

func testCounterValue(reg *prometheus.Registry, name string) (float64, error) {
	families, err := reg.Gather()
	if err != nil {
		return 0, err
	}
	for _, f := range families {
		if f.GetName() == name {
			var total float64
			for _, m := range f.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			return total, nil
		}
	}
	return 0, nil
}

func TestInitTracing_NoopWhenDisabled(t *testing.T) {
	shutdown, err := InitTracing(false)
	if err != nil {
		t.Fatalf("InitTracing() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}
