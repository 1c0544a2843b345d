package tracing

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(Config{ServiceName: "shopfinder-test"})
	if err != nil {
		t.Fatalf("disabled tracing should not fail: %v", err)
	}
	if provider.IsEnabled() {
		t.Error("expected tracing to be disabled")
	}
	if provider.Tracer("shopfinder") == nil {
		t.Error("disabled provider should still hand out a no-op tracer")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown of disabled provider: %v", err)
	}
}

func TestNewProvider_Rejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"missing service name", Config{Enabled: true, SamplingRate: 0.5}, ErrMissingServiceName},
		{"negative sampling", Config{Enabled: true, ServiceName: "shopfinder-test", SamplingRate: -0.1}, ErrInvalidSamplingRate},
		{"sampling above one", Config{Enabled: true, ServiceName: "shopfinder-test", SamplingRate: 1.5}, ErrInvalidSamplingRate},
		{"unknown exporter", Config{Enabled: true, ServiceName: "shopfinder-test", ExporterType: "zipkin", SamplingRate: 0.1}, ErrUnknownExporter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewProvider(tt.cfg); !errors.Is(err, tt.want) {
				t.Fatalf("NewProvider() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewProvider_Exporters(t *testing.T) {
	tests := []struct {
		name         string
		exporterType string
		endpoint     string
		samplingRate float64
	}{
		{"otlp-http partial sampling", ExporterHTTP, "localhost:4318", 0.25},
		{"otlp-grpc full sampling", ExporterGRPC, "localhost:4317", 1.0},
		{"default exporter no sampling", "", "", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(Config{
				ServiceName:  "shopfinder-test",
				Enabled:      true,
				Environment:  "test",
				ExporterType: tt.exporterType,
				OTLPEndpoint: tt.endpoint,
				SamplingRate: tt.samplingRate,
				InsecureMode: true,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !provider.IsEnabled() {
				t.Error("expected tracing to be enabled")
			}

			_, span := provider.Tracer("shopfinder").Start(context.Background(), "probe")
			span.End()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = provider.Shutdown(ctx)
		})
	}
}
