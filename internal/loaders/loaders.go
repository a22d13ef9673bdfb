package loaders

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
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

const tracerName = "github.com/wolfeidau/assetpack/internal/loaders"

// Asset is a single file moving through a transform chain.
type Asset struct {
	Path string
	// Name identifies the asset in emitted code, usually Path relative to the
	// project root with forward slashes.
	Name     string
	Kind     descriptor.Kind
	Contents []byte
}

// NewAsset creates an asset whose kind is guessed from the file extension.
func NewAsset(path string, contents []byte) *Asset {
	return &Asset{Path: path, Name: filepath.Base(path), Kind: KindFromPath(path), Contents: contents}
}

// KindFromPath maps a file extension onto an asset kind.
func KindFromPath(path string) descriptor.Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".scss", ".sass":
		return descriptor.KindSass
	case ".css":
		return descriptor.KindCSS
	default:
		return descriptor.KindJS
	}
}

// Step transforms an asset in place.
type Step interface {
	Info() descriptor.StepInfo
	Transform(ctx context.Context, asset *Asset) error
}

// Apply runs steps in order, each consuming the previous step's output.
func Apply(ctx context.Context, steps []Step, asset *Asset) error {
	tracer := otel.Tracer(tracerName)
	m := telemetry.GetMetrics()

	for _, step := range steps {
		info := step.Info()

		if err := ctx.Err(); err != nil {
			return err
		}

		ctx, span := tracer.Start(ctx, "transform "+info.ID, trace.WithAttributes(
			attribute.String("step.id", info.ID),
			attribute.String("step.stage", string(info.Stage)),
			attribute.String("asset.path", asset.Path),
		))

		started := time.Now()
		err := step.Transform(ctx, asset)
		elapsed := time.Since(started)

		m.StepDuration.Record(ctx, float64(elapsed.Milliseconds()),
			metric.WithAttributes(attribute.String("step", info.ID)))

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return fmt.Errorf("%s failed on %s: %w", info.ID, asset.Path, err)
		}
		span.End()

		asset.Kind = info.Produces

		log.Debug().
			Str("step", info.ID).
			Str("asset", asset.Path).
			Dur("duration", elapsed).
			Msg("Transformed asset")
	}

	return nil
}

// Registry holds the step implementations a descriptor can reference. It
// satisfies descriptor.Catalog.
type Registry struct {
	steps map[string]Step
}

var _ descriptor.Catalog = (*Registry)(nil)

// NewRegistry creates a registry from the given steps. Later steps replace
// earlier ones with the same identifier.
func NewRegistry(steps ...Step) *Registry {
	r := &Registry{steps: make(map[string]Step, len(steps))}
	for _, s := range steps {
		r.steps[s.Info().ID] = s
	}
	return r
}

// Lookup returns the catalog entry for id.
func (r *Registry) Lookup(id string) (descriptor.StepInfo, bool) {
	s, ok := r.steps[id]
	if !ok {
		return descriptor.StepInfo{}, false
	}
	return s.Info(), true
}

// Resolve returns the steps for a rule in execution order.
func (r *Registry) Resolve(rule descriptor.Rule) ([]Step, error) {
	chain := rule.Chain()
	steps := make([]Step, 0, len(chain))
	for _, id := range chain {
		s, ok := r.steps[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q", descriptor.ErrUnknownStep, id)
		}
		steps = append(steps, s)
	}
	return steps, nil
}

// Close releases resources held by steps, such as the Sass compiler process.
func (r *Registry) Close() error {
	var firstErr error
	for _, s := range r.steps {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
