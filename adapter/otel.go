package adapter

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/srediag/cosim-shm/pkg/shm"
)

const instrumentationName = "github.com/srediag/cosim-shm"

// OTelInstruments returns the meter and tracer of the globally registered
// OpenTelemetry providers.
func OTelInstruments() (metric.Meter, trace.Tracer) {
	return otel.GetMeterProvider().Meter(instrumentationName), otel.GetTracerProvider().Tracer(instrumentationName)
}

// WithOTel sets cfg's meter and tracer from the global providers.
func WithOTel(cfg shm.Config) shm.Config {
	cfg.Meter, cfg.Tracer = OTelInstruments()
	return cfg
}
