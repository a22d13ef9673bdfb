package bundler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assetpack/internal/descriptor"
	"github.com/wolfeidau/assetpack/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/wolfeidau/assetpack/internal/bundler"

// Runner prepares the output directory and drives a Bundler for a descriptor.
type Runner struct {
	bundler Bundler
	steps   StepResolver
}

// NewRunner creates a runner.
func NewRunner(bundler Bundler, steps StepResolver) *Runner {
	return &Runner{bundler: bundler, steps: steps}
}

// Run performs one build. When output.clean is set every entry in the output
// directory is removed before the bundler is invoked.
func (r *Runner) Run(ctx context.Context, d *descriptor.Descriptor) (res *Result, err error) {
	m := telemetry.GetMetrics()
	started := time.Now()

	plan, err := NewPlan(d, r.steps)
	if err != nil {
		return nil, err
	}

	attrs := metric.WithAttributes(attribute.String("mode", string(plan.Mode)))
	m.BuildsTotal.Add(ctx, 1, attrs)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "build", trace.WithAttributes(
		attribute.String("build.id", plan.BuildID),
		attribute.String("build.mode", string(plan.Mode)),
		attribute.String("build.entry", plan.Entry),
	))
	defer func() {
		m.BuildDuration.Record(ctx, float64(time.Since(started).Milliseconds()), attrs)
		if err != nil {
			m.BuildErrorsTotal.Add(ctx, 1, attrs)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	cleaned, err := r.prepareOutput(ctx, plan, d.Output.Clean)
	if err != nil {
		return nil, err
	}

	bctx, bspan := otel.Tracer(tracerName).Start(ctx, "bundle")
	res, err = r.bundler.Bundle(bctx, plan)
	bspan.End()
	if err != nil {
		return nil, err
	}

	res.Cleaned = cleaned
	m.OutputBytesTotal.Add(ctx, res.Bytes, attrs)

	log.Info().
		Str("build_id", plan.BuildID).
		Int("files", len(res.Files)).
		Int64("bytes", res.Bytes).
		Dur("duration", time.Since(started)).
		Msg("Build complete")

	return res, nil
}

func (r *Runner) prepareOutput(ctx context.Context, plan *Plan, clean bool) (int, error) {
	cleaned := 0

	if clean {
		_, span := otel.Tracer(tracerName).Start(ctx, "clean")
		n, err := CleanDir(plan.OutputDir)
		span.SetAttributes(attribute.Int("clean.removed", n))
		span.End()
		if err != nil {
			return n, err
		}
		cleaned = n
		telemetry.GetMetrics().CleanedEntries.Add(ctx, int64(n))

		log.Debug().Str("dir", plan.OutputDir).Int("removed", n).Msg("Cleaned output directory")
	}

	if err := os.MkdirAll(plan.OutputDir, 0o755); err != nil {
		return cleaned, fmt.Errorf("failed to create output directory: %w", err)
	}

	return cleaned, nil
}
