package descriptor

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Format is an on-disk descriptor encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatHCL  Format = "hcl"
)

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".hcl":
		return FormatHCL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Load reads, normalises and validates the descriptor at path. Relative paths
// inside the file resolve against the directory containing it.
func Load(path string, opts ...Option) (*Descriptor, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve descriptor path %q: %w", path, err)
	}

	format, err := FormatFromPath(abs)
	if err != nil {
		return nil, err
	}

	var raw Descriptor
	switch format {
	case FormatHCL:
		raw, err = decodeHCL(abs)
	default:
		raw, err = decodeYAML(abs)
	}
	if err != nil {
		return nil, err
	}

	opts = append([]Option{WithBaseDir(filepath.Dir(abs))}, opts...)
	d, err := New(raw, opts...)
	if err != nil {
		return nil, fmt.Errorf("descriptor validation failed for %q: %w", path, err)
	}
	return d, nil
}

// decodeYAML handles both YAML and JSON, JSON being a subset of YAML.
func decodeYAML(path string) (Descriptor, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return Descriptor{}, fmt.Errorf("failed to load descriptor from %q: %w", path, err)
	}

	var (
		d  Descriptor
		md mapstructure.Metadata
	)
	conf := koanf.UnmarshalConf{
		Tag: "yaml",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
			Metadata:         &md,
			Result:           &d,
			WeaklyTypedInput: true,
		},
	}
	if err := k.UnmarshalWithConf("", &d, conf); err != nil {
		return Descriptor{}, fmt.Errorf("failed to parse descriptor from %q: %w", path, err)
	}

	if len(md.Unused) > 0 {
		slices.Sort(md.Unused)
		errs := make([]error, 0, len(md.Unused))
		for _, key := range md.Unused {
			errs = append(errs, fieldError(key, ErrUnknownField))
		}
		return Descriptor{}, fmt.Errorf("descriptor validation failed for %q: %w", path, errors.Join(errs...))
	}
	return d, nil
}

// hclDescriptor is the HCL shape of a descriptor. Rules are repeated blocks
// rather than a nested list.
type hclDescriptor struct {
	Mode   string     `hcl:"mode,optional"`
	Entry  string     `hcl:"entry,optional"`
	Output *hclOutput `hcl:"output,block"`
	Rules  []hclRule  `hcl:"rule,block"`
}

type hclOutput struct {
	Filename string `hcl:"filename,optional"`
	Path     string `hcl:"path,optional"`
	Clean    bool   `hcl:"clean,optional"`
}

type hclRule struct {
	Test string   `hcl:"test"`
	Use  []string `hcl:"use"`
}

func decodeHCL(path string) (Descriptor, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return Descriptor{}, fmt.Errorf("failed to parse HCL descriptor %s: %w", path, diags)
	}

	var parsed hclDescriptor
	if diags := gohcl.DecodeBody(f.Body, nil, &parsed); diags.HasErrors() {
		return Descriptor{}, fmt.Errorf("failed to decode HCL descriptor %s: %w", path, diags)
	}

	d := Descriptor{
		Mode:  Mode(parsed.Mode),
		Entry: parsed.Entry,
	}
	if parsed.Output != nil {
		d.Output = Output(*parsed.Output)
	}
	for _, r := range parsed.Rules {
		d.Module.Rules = append(d.Module.Rules, Rule(r))
	}
	return d, nil
}

func toHCL(d *Descriptor) hclDescriptor {
	out := hclOutput(d.Output)
	h := hclDescriptor{
		Mode:   string(d.Mode),
		Entry:  d.Entry,
		Output: &out,
	}
	for _, r := range d.Module.Rules {
		h.Rules = append(h.Rules, hclRule(r))
	}
	return h
}
