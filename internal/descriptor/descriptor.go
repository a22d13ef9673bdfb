package descriptor

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// Mode selects optimisation and debug behaviour in the bundler.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// ParseMode converts a string into a Mode. An empty string selects production.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeProduction:
		return ModeProduction, nil
	case ModeDevelopment:
		return ModeDevelopment, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Descriptor is the build configuration read once at startup. Values returned by
// New and Load are validated and must be treated as read-only.
type Descriptor struct {
	Mode   Mode   `yaml:"mode" json:"mode"`
	Entry  string `yaml:"entry" json:"entry"`
	Output Output `yaml:"output" json:"output"`
	Module Module `yaml:"module" json:"module"`

	baseDir string
}

// Output controls where the bundle is written.
type Output struct {
	Filename string `yaml:"filename" json:"filename"`
	Path     string `yaml:"path" json:"path"`
	Clean    bool   `yaml:"clean" json:"clean"`
}

// Module holds the per-file transform rules.
type Module struct {
	Rules []Rule `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// Rule maps files matching Test onto a chain of transform steps. Use is listed
// in webpack order, the last entry runs first.
type Rule struct {
	Test string   `yaml:"test" json:"test"`
	Use  []string `yaml:"use" json:"use"`
}

// Pattern compiles Test. A JavaScript style literal such as /\.scss$/ is accepted.
func (r Rule) Pattern() (*regexp.Regexp, error) {
	expr := strings.TrimSpace(r.Test)
	if len(expr) >= 2 && strings.HasPrefix(expr, "/") && strings.HasSuffix(expr, "/") {
		expr = expr[1 : len(expr)-1]
	}
	if expr == "" {
		return nil, ErrInvalidPattern
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return re, nil
}

// Chain returns the step identifiers in execution order.
func (r Rule) Chain() []string {
	chain := slices.Clone(r.Use)
	slices.Reverse(chain)
	return chain
}

// Default mirrors the stock stylesheet configuration: development mode, a
// single script entry and a Sass rule feeding style, css and sass loaders.
func Default() Descriptor {
	return Descriptor{
		Mode:  ModeDevelopment,
		Entry: "./src/index.js",
		Output: Output{
			Filename: "main.js",
			Path:     "dist",
			Clean:    true,
		},
		Module: Module{
			Rules: []Rule{
				{Test: `\.scss$`, Use: []string{StepStyle, StepCSS, StepSass}},
			},
		},
	}
}

type options struct {
	baseDir    string
	catalog    Catalog
	checkEntry bool
}

// Option customises New.
type Option func(*options)

// WithBaseDir sets the directory relative paths resolve against. Defaults to
// the working directory.
func WithBaseDir(dir string) Option {
	return func(o *options) {
		o.baseDir = dir
	}
}

// WithCatalog replaces the builtin step catalog.
func WithCatalog(c Catalog) Option {
	return func(o *options) {
		o.catalog = c
	}
}

// WithoutEntryCheck skips the existence check on the entry module, used when
// printing or scaffolding a descriptor for a project that does not exist yet.
func WithoutEntryCheck() Option {
	return func(o *options) {
		o.checkEntry = false
	}
}

// New normalises and validates d, returning an independent copy.
func New(d Descriptor, opts ...Option) (*Descriptor, error) {
	o := options{catalog: Builtin, checkEntry: true}
	for _, opt := range opts {
		opt(&o)
	}

	baseDir := o.baseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fieldError("output.path", fmt.Errorf("%w: %v", ErrUnresolvablePath, err))
		}
		baseDir = wd
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fieldError("output.path", fmt.Errorf("%w: %v", ErrUnresolvablePath, err))
	}

	out := d.clone()
	out.baseDir = abs

	mode, err := ParseMode(string(out.Mode))
	if err != nil {
		return nil, fieldError("mode", err)
	}
	out.Mode = mode
	if out.Output.Path == "" {
		out.Output.Path = "dist"
	}

	if err := out.validate(o); err != nil {
		return nil, err
	}

	return out, nil
}

// BaseDir is the absolute directory relative paths are resolved against.
func (d *Descriptor) BaseDir() string {
	return d.baseDir
}

// EntryPath is the absolute path of the entry module.
func (d *Descriptor) EntryPath() string {
	return resolve(d.baseDir, d.Entry)
}

// OutputDir is the absolute output directory.
func (d *Descriptor) OutputDir() string {
	return resolve(d.baseDir, d.Output.Path)
}

// OutputFile is the absolute path of the emitted bundle.
func (d *Descriptor) OutputFile() string {
	return filepath.Join(d.OutputDir(), d.Output.Filename)
}

// Rules returns a copy of the transform rules.
func (d *Descriptor) Rules() []Rule {
	return cloneRules(d.Module.Rules)
}

// WithMode returns a copy with the mode replaced.
func (d *Descriptor) WithMode(mode Mode) (*Descriptor, error) {
	parsed, err := ParseMode(string(mode))
	if err != nil {
		return nil, fieldError("mode", err)
	}
	next := d.clone()
	next.Mode = parsed
	return next, nil
}

func (d Descriptor) clone() *Descriptor {
	d.Module.Rules = cloneRules(d.Module.Rules)
	return &d
}

func cloneRules(rules []Rule) []Rule {
	if len(rules) == 0 {
		return nil
	}
	out := make([]Rule, len(rules))
	for i, r := range rules {
		out[i] = Rule{Test: r.Test, Use: slices.Clone(r.Use)}
	}
	return out
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}
