package shm

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
)

const metricsNamespace = "cosim_shm"

// collectors are the Prometheus vectors shared by every region registered on
// one Registerer. Regions are told apart by the "region" label.
type collectors struct {
	reads         *prometheus.CounterVec
	writes        *prometheus.CounterVec
	bytesWritten  *prometheus.CounterVec
	invalidations *prometheus.CounterVec
	skippedUnits  *prometheus.CounterVec
	touches       *prometheus.CounterVec
}

func newCollectors() *collectors {
	vec := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		}, []string{"region"})
	}
	return &collectors{
		reads:         vec("reads_total", "Reads served from the shared region."),
		writes:        vec("writes_total", "Writes applied to the shared region."),
		bytesWritten:  vec("written_bytes_total", "Bytes written to the shared region."),
		invalidations: vec("invalidations_total", "Translation-cache invalidation calls issued to execution units."),
		skippedUnits:  vec("skipped_units_total", "Execution units skipped for lacking translation-cache invalidation."),
		touches:       vec("segment_touches_total", "Segments materialized into direct pointers."),
	}
}

// register registers c on reg, reusing collectors that are already registered.
func (c *collectors) register(reg prometheus.Registerer) *collectors {
	out := *c
	for _, p := range []**prometheus.CounterVec{
		&out.reads, &out.writes, &out.bytesWritten, &out.invalidations, &out.skippedUnits, &out.touches,
	} {
		if err := reg.Register(*p); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
					*p = existing
					continue
				}
			}
			internalLogger().warnf("metrics register: %v", err)
		}
	}
	return &out
}

// metrics holds one region's counters in both Prometheus and OpenTelemetry form.
type metrics struct {
	reads         prometheus.Counter
	writes        prometheus.Counter
	bytesWritten  prometheus.Counter
	invalidations prometheus.Counter
	skippedUnits  prometheus.Counter
	touches       prometheus.Counter

	otelInvalidations metric.Int64Counter
	otelWrites        metric.Int64Counter
	attrs             metric.MeasurementOption
}

func newMetrics(cfg Config) *metrics {
	c := newCollectors()
	if cfg.Registerer != nil {
		c = c.register(cfg.Registerer)
	}
	name := cfg.name()
	m := &metrics{
		reads:         c.reads.WithLabelValues(name),
		writes:        c.writes.WithLabelValues(name),
		bytesWritten:  c.bytesWritten.WithLabelValues(name),
		invalidations: c.invalidations.WithLabelValues(name),
		skippedUnits:  c.skippedUnits.WithLabelValues(name),
		touches:       c.touches.WithLabelValues(name),
		attrs:         metric.WithAttributes(attribute.String("region", name)),
	}

	meter := cfg.Meter
	if meter == nil {
		meter = metricnoop.NewMeterProvider().Meter("")
	}
	var err error
	if m.otelInvalidations, err = meter.Int64Counter(metricsNamespace+".invalidations",
		metric.WithDescription("Translation-cache invalidation calls issued to execution units.")); err != nil {
		internalLogger().warnf("otel counter: %v", err)
		m.otelInvalidations, _ = metricnoop.NewMeterProvider().Meter("").Int64Counter("")
	}
	if m.otelWrites, err = meter.Int64Counter(metricsNamespace+".writes",
		metric.WithDescription("Writes applied to the shared region.")); err != nil {
		internalLogger().warnf("otel counter: %v", err)
		m.otelWrites, _ = metricnoop.NewMeterProvider().Meter("").Int64Counter("")
	}
	return m
}

func (m *metrics) wrote(n int) {
	m.writes.Inc()
	m.bytesWritten.Add(float64(n))
	m.otelWrites.Add(context.Background(), 1, m.attrs)
}

func (m *metrics) invalidated(calls, skipped int) {
	if calls > 0 {
		m.invalidations.Add(float64(calls))
		m.otelInvalidations.Add(context.Background(), int64(calls), m.attrs)
	}
	if skipped > 0 {
		m.skippedUnits.Add(float64(skipped))
	}
}
