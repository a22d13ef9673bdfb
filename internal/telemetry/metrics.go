package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/assetpack"
)

// Metrics holds the OpenTelemetry instruments recorded during a build.
type Metrics struct {
	BuildsTotal       metric.Int64Counter
	BuildErrorsTotal  metric.Int64Counter
	BuildDuration     metric.Float64Histogram
	StepDuration      metric.Float64Histogram
	CleanedEntries    metric.Int64Counter
	OutputBytesTotal  metric.Int64Counter
	RebuildsTriggered metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.BuildsTotal, _ = meter.Int64Counter(
		"assetpack.builds.total",
		metric.WithDescription("Total number of builds started"),
		metric.WithUnit("{build}"),
	)

	m.BuildErrorsTotal, _ = meter.Int64Counter(
		"assetpack.builds.errors.total",
		metric.WithDescription("Total number of builds that failed"),
		metric.WithUnit("{build}"),
	)

	m.BuildDuration, _ = meter.Float64Histogram(
		"assetpack.builds.duration",
		metric.WithDescription("Duration of a complete build including clean"),
		metric.WithUnit("ms"),
	)

	m.StepDuration, _ = meter.Float64Histogram(
		"assetpack.steps.duration",
		metric.WithDescription("Duration of a single transform step on one asset"),
		metric.WithUnit("ms"),
	)

	m.CleanedEntries, _ = meter.Int64Counter(
		"assetpack.output.cleaned.total",
		metric.WithDescription("Total number of entries removed from output directories"),
		metric.WithUnit("{entry}"),
	)

	m.OutputBytesTotal, _ = meter.Int64Counter(
		"assetpack.output.bytes.total",
		metric.WithDescription("Total bytes written to output directories"),
		metric.WithUnit("By"),
	)

	m.RebuildsTriggered, _ = meter.Int64Counter(
		"assetpack.watch.rebuilds.total",
		metric.WithDescription("Total number of rebuilds triggered by file changes"),
		metric.WithUnit("{build}"),
	)

	return m
}
