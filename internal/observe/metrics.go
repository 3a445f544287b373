// Package observe provides the recorder's OpenTelemetry metrics and the
// Prometheus exporter bridge that serves them on /metrics.
//
// Tests should use [NewMetrics] with their own [metric.MeterProvider]. A nil
// *Metrics is valid and records nothing.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all recorder metrics.
const meterName = "github.com/ayusman/mocaprec"

// Metrics holds all OpenTelemetry metric instruments for the recorder.
type Metrics struct {
	// Ticks counts iterations of the recording loop.
	Ticks metric.Int64Counter

	// Snapshots counts tracked skeletons. Use with attribute:
	//   attribute.Int("device", ...)
	Snapshots metric.Int64Counter

	// Rows counts CSV rows written. Use with attribute:
	//   attribute.String("format", "euler"|"quaternion")
	Rows metric.Int64Counter

	// CaptureTimeouts counts ticks skipped because a device delivered nothing.
	CaptureTimeouts metric.Int64Counter

	// Faults counts fatal recording errors. Use with attribute:
	//   attribute.String("kind", ...)
	Faults metric.Int64Counter

	// StepDuration tracks the time one device step takes.
	StepDuration metric.Float64Histogram

	// ActiveRecordings is 1 while a recording is running.
	ActiveRecordings metric.Int64UpDownCounter

	// HookRuns counts post-recording hook executions. Use with attributes:
	//   attribute.String("hook", ...), attribute.String("status", ...)
	HookRuns metric.Int64Counter
}

// stepBuckets defines histogram bucket boundaries (in seconds) around one
// 30 FPS frame interval.
var stepBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.02, 0.033, 0.05, 0.1, 0.2, 0.5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Ticks, err = m.Int64Counter("mocaprec.ticks",
		metric.WithDescription("Iterations of the recording loop."),
	); err != nil {
		return nil, err
	}
	if met.Snapshots, err = m.Int64Counter("mocaprec.snapshots",
		metric.WithDescription("Tracked skeletons by device."),
	); err != nil {
		return nil, err
	}
	if met.Rows, err = m.Int64Counter("mocaprec.csv.rows",
		metric.WithDescription("CSV rows written by format."),
	); err != nil {
		return nil, err
	}
	if met.CaptureTimeouts, err = m.Int64Counter("mocaprec.capture.timeouts",
		metric.WithDescription("Device steps that produced no capture."),
	); err != nil {
		return nil, err
	}
	if met.Faults, err = m.Int64Counter("mocaprec.faults",
		metric.WithDescription("Fatal recording errors by kind."),
	); err != nil {
		return nil, err
	}
	if met.StepDuration, err = m.Float64Histogram("mocaprec.step.duration",
		metric.WithDescription("Latency of one capture-track step."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stepBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveRecordings, err = m.Int64UpDownCounter("mocaprec.active_recordings",
		metric.WithDescription("Number of running recordings."),
	); err != nil {
		return nil, err
	}
	if met.HookRuns, err = m.Int64Counter("mocaprec.hook.runs",
		metric.WithDescription("Post-recording hook runs by hook and status."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider].
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordTick counts one loop iteration.
func (m *Metrics) RecordTick(ctx context.Context) {
	if m == nil {
		return
	}
	m.Ticks.Add(ctx, 1)
}

// RecordStep records how long a device step took and whether it timed out.
func (m *Metrics) RecordStep(ctx context.Context, device int, d time.Duration, timedOut bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Int("device", device))
	m.StepDuration.Record(ctx, d.Seconds(), attrs)
	if timedOut {
		m.CaptureTimeouts.Add(ctx, 1, attrs)
	}
}

// RecordSnapshot counts one exported skeleton and its rows in both files.
func (m *Metrics) RecordSnapshot(ctx context.Context, device int, rows int) {
	if m == nil {
		return
	}
	m.Snapshots.Add(ctx, 1, metric.WithAttributes(attribute.Int("device", device)))
	m.Rows.Add(ctx, int64(rows), metric.WithAttributes(attribute.String("format", "euler")))
	m.Rows.Add(ctx, int64(rows), metric.WithAttributes(attribute.String("format", "quaternion")))
}

// RecordFault counts a fatal error of the given kind.
func (m *Metrics) RecordFault(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.Faults.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordActive adjusts the running recording gauge by delta.
func (m *Metrics) RecordActive(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.ActiveRecordings.Add(ctx, delta)
}

// RecordHookRun counts one hook execution.
func (m *Metrics) RecordHookRun(ctx context.Context, hook string, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.HookRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("hook", hook),
		attribute.String("status", status),
	))
}
