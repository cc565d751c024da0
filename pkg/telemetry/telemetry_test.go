package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("OTEL_METRIC_INTERVAL", "5s")

	cfg := ConfigFromEnv()
	if !cfg.Enabled {
		t.Error("expected telemetry enabled")
	}
	if cfg.ServiceName != serviceName {
		t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, serviceName)
	}
	if cfg.MetricInterval != 5*time.Second {
		t.Errorf("MetricInterval = %v, want 5s", cfg.MetricInterval)
	}
	if got := stripScheme(cfg.OTLPEndpoint); got != "collector:4318" {
		t.Errorf("stripScheme = %q", got)
	}
}

func TestDisabledProvider(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if p.Enabled() {
		t.Error("disabled provider reports enabled")
	}
	counter, err := p.Meter("test").Int64Counter("test.counter")
	if err != nil {
		t.Fatalf("Int64Counter failed: %v", err)
	}
	counter.Add(context.Background(), 1)
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}
