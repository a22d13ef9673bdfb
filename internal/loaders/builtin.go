package loaders

import "github.com/wolfeidau/assetpack/internal/descriptor"

// BuiltinOptions configures the steps returned by Builtin.
type BuiltinOptions struct {
	Mode       descriptor.Mode
	SassBinary string
	SassPaths  []string
}

// Builtin returns a registry containing sass-loader, css-loader and
// style-loader, minifying in production mode.
func Builtin(opts BuiltinOptions) *Registry {
	minify := opts.Mode == descriptor.ModeProduction

	return NewRegistry(
		NewSass(SassOptions{Binary: opts.SassBinary, Minify: minify, IncludePaths: opts.SassPaths}),
		NewCSS(CSSOptions{Minify: minify}),
		NewStyle(),
	)
}
