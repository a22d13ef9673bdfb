package bundler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assetpack/internal/descriptor"
	"github.com/wolfeidau/assetpack/internal/loaders"
)

// Esbuild bundles a plan with esbuild, running the plan's transform chains
// from an OnLoad hook.
type Esbuild struct {
	// Format of the emitted bundle, defaults to an IIFE
	Format api.Format
}

var _ Bundler = (*Esbuild)(nil)

// NewEsbuild creates an esbuild backed Bundler.
func NewEsbuild() *Esbuild {
	return &Esbuild{Format: api.FormatIIFE}
}

// Bundle runs esbuild with settings derived from the plan mode.
func (e *Esbuild) Bundle(ctx context.Context, plan *Plan) (*Result, error) {
	production := plan.Mode == descriptor.ModeProduction

	log.Info().
		Str("build_id", plan.BuildID).
		Str("entry", plan.Entry).
		Str("outfile", plan.Outfile).
		Str("mode", string(plan.Mode)).
		Msg("Bundling")

	result := api.Build(api.BuildOptions{
		AbsWorkingDir:     plan.BaseDir,
		EntryPoints:       []string{plan.Entry},
		Bundle:            true,
		Write:             true,
		Outfile:           plan.Outfile,
		Format:            e.Format,
		Platform:          api.PlatformBrowser,
		MinifyWhitespace:  production,
		MinifyIdentifiers: production,
		MinifySyntax:      production,
		TreeShaking:       api.TreeShakingTrue,
		Sourcemap:         cond(production, api.SourceMapNone, api.SourceMapLinked),
		Metafile:          true,
		LogLevel:          api.LogLevelSilent,
		Plugins:           []api.Plugin{rulesPlugin(ctx, plan)},
	})

	if len(result.Errors) > 0 {
		errs := make([]error, 0, len(result.Errors))
		for _, msg := range result.Errors {
			log.Error().Str("error", msg.Text).Str("build_id", plan.BuildID).Msg("Build error")
			errs = append(errs, errors.New(formatMessage(msg)))
		}
		return nil, fmt.Errorf("esbuild failed with errors: %w", errors.Join(errs...))
	}

	res := &Result{BuildID: plan.BuildID}

	for _, msg := range result.Warnings {
		log.Warn().Str("warning", msg.Text).Str("build_id", plan.BuildID).Msg("Build warning")
		res.Warnings = append(res.Warnings, formatMessage(msg))
	}

	for _, file := range result.OutputFiles {
		log.Info().Str("file", file.Path).Int("bytes", len(file.Contents)).Msg("Built file")
		res.Files = append(res.Files, file.Path)
		res.Bytes += int64(len(file.Contents))
	}

	var metadata BuildMetadata
	if err := json.Unmarshal([]byte(result.Metafile), &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metafile: %w", err)
	}
	res.Metadata = &metadata

	return res, nil
}

// rulesPlugin registers a single OnLoad callback whose filter is the union of
// every rule pattern. esbuild filters use Go regexp syntax so patterns are
// passed through unchanged. A file matching several rules is transformed by
// the first one only.
func rulesPlugin(ctx context.Context, plan *Plan) api.Plugin {
	return api.Plugin{
		Name: "assetpack-rules",
		Setup: func(build api.PluginBuild) {
			filter := plan.filter()
			if filter == "" {
				return
			}
			build.OnLoad(api.OnLoadOptions{Filter: filter, Namespace: "file"},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					rule, ok := plan.RuleFor(args.Path)
					if !ok {
						return api.OnLoadResult{}, nil
					}
					return loadWithRule(ctx, plan, rule, args.Path)
				})
		},
	}
}

func loadWithRule(ctx context.Context, plan *Plan, rule PlannedRule, path string) (api.OnLoadResult, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return api.OnLoadResult{}, err
	}

	asset := loaders.NewAsset(path, src)
	if rel, err := filepath.Rel(plan.BaseDir, path); err == nil && filepath.IsLocal(rel) {
		asset.Name = filepath.ToSlash(rel)
	}
	if err := loaders.Apply(ctx, rule.Steps, asset); err != nil {
		return api.OnLoadResult{}, err
	}

	contents := string(asset.Contents)
	return api.OnLoadResult{
		Contents:   &contents,
		Loader:     loaderFor(asset.Kind),
		ResolveDir: filepath.Dir(path),
	}, nil
}

func loaderFor(kind descriptor.Kind) api.Loader {
	if kind == descriptor.KindCSS {
		return api.LoaderCSS
	}
	return api.LoaderJS
}

func formatMessage(msg api.Message) string {
	if msg.Location == nil {
		return msg.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text)
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
