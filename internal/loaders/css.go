package loaders

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/wolfeidau/assetpack/internal/descriptor"
)

// CSSOptions configures the css-loader step.
type CSSOptions struct {
	Minify bool
	// Loaders overrides how files referenced through url() are loaded. The step
	// writes no files, so every loader must inline its content.
	Loaders map[string]api.Loader
}

// defaultAssetLoaders inline the asset types stylesheets commonly reference.
var defaultAssetLoaders = map[string]api.Loader{
	".png":   api.LoaderDataURL,
	".jpg":   api.LoaderDataURL,
	".jpeg":  api.LoaderDataURL,
	".gif":   api.LoaderDataURL,
	".svg":   api.LoaderDataURL,
	".webp":  api.LoaderDataURL,
	".woff":  api.LoaderDataURL,
	".woff2": api.LoaderDataURL,
	".ttf":   api.LoaderDataURL,
	".eot":   api.LoaderDataURL,
}

// CSS resolves @import and url() references in a stylesheet, producing a
// single self-contained stylesheet.
type CSS struct {
	opts CSSOptions
}

// NewCSS creates the css-loader step.
func NewCSS(opts CSSOptions) *CSS {
	if opts.Loaders == nil {
		opts.Loaders = defaultAssetLoaders
	}
	return &CSS{opts: opts}
}

func (c *CSS) Info() descriptor.StepInfo {
	info, _ := descriptor.Builtin.Lookup(descriptor.StepCSS)
	return info
}

func (c *CSS) Transform(ctx context.Context, asset *Asset) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	result := api.Build(api.BuildOptions{
		Stdin: &api.StdinOptions{
			Contents:   string(asset.Contents),
			ResolveDir: filepath.Dir(asset.Path),
			Sourcefile: asset.Path,
			Loader:     api.LoaderCSS,
		},
		Bundle:            true,
		Write:             false,
		Loader:            c.opts.Loaders,
		MinifyWhitespace:  c.opts.Minify,
		MinifySyntax:      c.opts.Minify,
		MinifyIdentifiers: c.opts.Minify,
		LogLevel:          api.LogLevelSilent,
	})

	if len(result.Errors) > 0 {
		return messagesError(result.Errors)
	}

	if len(result.OutputFiles) == 0 {
		return errors.New("css bundle produced no output")
	}

	asset.Contents = result.OutputFiles[0].Contents
	return nil
}

// messagesError flattens esbuild messages into a single error.
func messagesError(msgs []api.Message) error {
	errs := make([]error, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Location != nil {
			errs = append(errs, fmt.Errorf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text))
			continue
		}
		errs = append(errs, errors.New(msg.Text))
	}
	return errors.Join(errs...)
}
