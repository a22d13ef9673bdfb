package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assetpack/internal/bundler"
	"github.com/wolfeidau/assetpack/internal/descriptor"
	"github.com/wolfeidau/assetpack/internal/loaders"
	"github.com/wolfeidau/assetpack/internal/logger"
	"github.com/wolfeidau/assetpack/internal/telemetry"
	"github.com/wolfeidau/assetpack/internal/watch"
)

// BuildCmd bundles the entry module described by a descriptor file.
type BuildCmd struct {
	Config     string        `help:"Path to the descriptor file (.yaml, .json or .hcl)" short:"c" default:"assetpack.yaml" type:"path" env:"ASSETPACK_CONFIG"`
	Mode       string        `help:"Override the descriptor mode" enum:",development,production" default:"" env:"ASSETPACK_MODE"`
	Watch      bool          `help:"Rebuild when sources or the descriptor change" short:"w" default:"false" env:"ASSETPACK_WATCH"`
	Debounce   time.Duration `help:"Quiet period before a watch rebuild" default:"300ms" env:"ASSETPACK_DEBOUNCE"`
	SassBinary string        `help:"Path to the Dart Sass executable" default:"sass" env:"ASSETPACK_SASS_BINARY"`
	SassPaths  []string      `help:"Extra Sass load paths" env:"ASSETPACK_SASS_PATHS"`
	Tracing    bool          `help:"Export traces and metrics over OTLP" default:"false" env:"ASSETPACK_TRACING"`

	bundler bundler.Bundler `kong:"-"`
}

func (c *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	logger.Setup(globals.Debug)

	if c.Tracing {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{ServiceName: "assetpack", Version: globals.Version})
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				log.Warn().Err(err).Msg("Telemetry shutdown failed")
			}
		}()
	}

	d, err := loadDescriptor(c.Config, c.Mode)
	if err != nil {
		return err
	}

	b := &builder{cmd: c}
	defer b.close()

	res, err := b.build(ctx, d)
	if !c.Watch {
		if err != nil {
			return err
		}
		report(globals.stdout(), d, res)
		return nil
	}
	if err != nil {
		log.Error().Err(err).Msg("Initial build failed, watching for changes")
	} else {
		report(globals.stdout(), d, res)
	}

	return c.watch(ctx, globals.stdout(), b, d)
}

// watchSet is the paths a build depends on and the directories to ignore.
type watchSet struct {
	paths  []string
	ignore []string
}

func newWatchSet(configPath string, d *descriptor.Descriptor) watchSet {
	return watchSet{
		paths:  []string{configPath, filepath.Dir(d.EntryPath())},
		ignore: []string{d.OutputDir()},
	}
}

func (w watchSet) equal(other watchSet) bool {
	return slices.Equal(w.paths, other.paths) && slices.Equal(w.ignore, other.ignore)
}

// watch rebuilds on change until ctx is cancelled. A reloaded descriptor that
// moves the entry or output directory restarts the watcher on the new set.
func (c *BuildCmd) watch(ctx context.Context, out io.Writer, b *builder, d *descriptor.Descriptor) error {
	configPath, err := filepath.Abs(c.Config)
	if err != nil {
		return err
	}

	for {
		set := newWatchSet(configPath, d)
		runCtx, cancel := context.WithCancel(ctx)
		restart := false

		w, err := watch.New(watch.Config{
			Paths:    set.paths,
			Ignore:   set.ignore,
			Debounce: c.Debounce,
		}, func(ctx context.Context, changed []string) error {
			telemetry.GetMetrics().RebuildsTriggered.Add(ctx, 1)

			if slices.Contains(changed, configPath) {
				next, err := loadDescriptor(c.Config, c.Mode)
				if err != nil {
					return fmt.Errorf("keeping previous descriptor: %w", err)
				}
				log.Info().Str("config", configPath).Msg("Descriptor reloaded")
				d = next

				if moved := newWatchSet(configPath, d); !moved.equal(set) {
					log.Info().Strs("paths", moved.paths).Strs("ignore", moved.ignore).Msg("Watch set changed, restarting watcher")
					restart = true
					defer cancel()
				}
			}

			res, err := b.build(ctx, d)
			if err != nil {
				return err
			}
			report(out, d, res)
			return nil
		})
		if err != nil {
			cancel()
			return err
		}

		err = w.Run(runCtx)
		cancel()
		if err != nil || !restart || ctx.Err() != nil {
			return err
		}
	}
}

// report prints the build summary followed by warnings and the entry's
// scripts in load order.
func report(out io.Writer, d *descriptor.Descriptor, res *bundler.Result) {
	fmt.Fprintf(out, "built %s (%d files, %d bytes, %d cleaned, %d warnings)\n",
		d.OutputFile(), len(res.Files), res.Bytes, res.Cleaned, len(res.Warnings))

	for _, warning := range res.Warnings {
		fmt.Fprintf(out, "warning: %s\n", warning)
	}

	if res.Metadata == nil {
		return
	}
	entry, err := filepath.Rel(d.BaseDir(), d.EntryPath())
	if err != nil {
		return
	}
	scripts, err := res.Scripts(filepath.ToSlash(entry))
	if err != nil {
		log.Debug().Err(err).Msg("No script order available")
		return
	}
	for _, script := range scripts {
		fmt.Fprintf(out, "  %s\n", script)
	}
}

// builder keeps the step registry alive between watch rebuilds so the Sass
// compiler process is reused. The registry is replaced when the mode changes.
type builder struct {
	cmd  *BuildCmd
	mode descriptor.Mode
	reg  *loaders.Registry
}

func (b *builder) build(ctx context.Context, d *descriptor.Descriptor) (*bundler.Result, error) {
	if b.reg == nil || b.mode != d.Mode {
		b.close()
		b.reg = loaders.Builtin(loaders.BuiltinOptions{
			Mode:       d.Mode,
			SassBinary: b.cmd.SassBinary,
			SassPaths:  b.cmd.SassPaths,
		})
		b.mode = d.Mode
	}

	bnd := b.cmd.bundler
	if bnd == nil {
		bnd = bundler.NewEsbuild()
	}

	return bundler.NewRunner(bnd, b.reg).Run(ctx, d)
}

func (b *builder) close() {
	if b.reg == nil {
		return
	}
	if err := b.reg.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to stop transform steps")
	}
	b.reg = nil
}
