package loaders

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bep/godartsass/v2"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assetpack/internal/descriptor"
)

// ErrSassUnavailable indicates the Dart Sass compiler could not be started.
var ErrSassUnavailable = errors.New("sass compiler unavailable")

type transpiler interface {
	Execute(args godartsass.Args) (godartsass.Result, error)
	Close() error
}

// SassOptions configures the sass-loader step.
type SassOptions struct {
	// Binary is the path to the Dart Sass executable, defaults to "sass" on PATH
	Binary string
	// Minify selects compressed output
	Minify bool
	// IncludePaths are extra directories searched by @use and @import
	IncludePaths []string
	// Timeout bounds a single compilation
	Timeout time.Duration
}

// Sass compiles Sass and SCSS into CSS using the embedded Dart Sass protocol.
type Sass struct {
	opts  SassOptions
	start func(godartsass.Options) (transpiler, error)

	mu sync.Mutex
	tr transpiler
}

// NewSass creates the sass-loader step. The compiler is started on first use.
func NewSass(opts SassOptions) *Sass {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Sass{
		opts: opts,
		start: func(o godartsass.Options) (transpiler, error) {
			return godartsass.Start(o)
		},
	}
}

func (s *Sass) Info() descriptor.StepInfo {
	info, _ := descriptor.Builtin.Lookup(descriptor.StepSass)
	return info
}

func (s *Sass) Transform(ctx context.Context, asset *Asset) error {
	tr, err := s.transpiler()
	if err != nil {
		return err
	}

	style := godartsass.OutputStyleExpanded
	if s.opts.Minify {
		style = godartsass.OutputStyleCompressed
	}

	syntax := godartsass.SourceSyntaxSCSS
	switch strings.ToLower(filepath.Ext(asset.Path)) {
	case ".sass":
		syntax = godartsass.SourceSyntaxSASS
	case ".css":
		syntax = godartsass.SourceSyntaxCSS
	}

	args := godartsass.Args{
		Source:       string(asset.Contents),
		URL:          "file://" + filepath.ToSlash(asset.Path),
		OutputStyle:  style,
		SourceSyntax: syntax,
		IncludePaths: append([]string{filepath.Dir(asset.Path)}, s.opts.IncludePaths...),
	}

	type outcome struct {
		res godartsass.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := tr.Execute(args)
		done <- outcome{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case out := <-done:
		if out.err != nil {
			return fmt.Errorf("failed to compile sass: %w", out.err)
		}
		asset.Contents = []byte(out.res.CSS)
		return nil
	}
}

// Close stops the compiler process if it was started.
func (s *Sass) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tr == nil {
		return nil
	}
	err := s.tr.Close()
	s.tr = nil
	return err
}

func (s *Sass) transpiler() (transpiler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tr != nil {
		return s.tr, nil
	}

	tr, err := s.start(godartsass.Options{
		DartSassEmbeddedFilename: s.opts.Binary,
		Timeout:                  s.opts.Timeout,
		LogEventHandler: func(e godartsass.LogEvent) {
			log.Warn().Str("message", e.Message).Msg("Sass compiler")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSassUnavailable, err)
	}

	s.tr = tr
	return tr, nil
}
