package bundler

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/wolfeidau/assetpack/internal/descriptor"
	"github.com/wolfeidau/assetpack/internal/loaders"
)

// BuildMetadata is the subset of the esbuild metafile assetpack reads.
type BuildMetadata struct {
	Outputs map[string]OutputInfo `json:"outputs"`
}

type OutputInfo struct {
	EntryPoint string       `json:"entryPoint"`
	Imports    []ImportInfo `json:"imports"`
	Bytes      int64        `json:"bytes"`
}

type ImportInfo struct {
	Path string `json:"path"`
}

// Plan is a descriptor resolved against the step registry, ready to hand to a
// Bundler.
type Plan struct {
	BuildID   string
	Mode      descriptor.Mode
	BaseDir   string
	Entry     string
	OutputDir string
	Outfile   string
	Rules     []PlannedRule
}

// RuleFor returns the first rule whose pattern matches path.
func (p *Plan) RuleFor(path string) (PlannedRule, bool) {
	for _, rule := range p.Rules {
		if rule.Pattern.MatchString(path) {
			return rule, true
		}
	}
	return PlannedRule{}, false
}

func (p *Plan) filter() string {
	parts := make([]string, 0, len(p.Rules))
	for _, rule := range p.Rules {
		parts = append(parts, "(?:"+rule.Pattern.String()+")")
	}
	return strings.Join(parts, "|")
}

// PlannedRule pairs a compiled pattern with its steps in execution order.
type PlannedRule struct {
	Pattern *regexp.Regexp
	Steps   []loaders.Step
}

// Bundler performs the actual bundling for a plan. The output directory exists
// and has already been cleaned when requested.
type Bundler interface {
	Bundle(ctx context.Context, plan *Plan) (*Result, error)
}

// StepResolver turns a rule into executable steps.
type StepResolver interface {
	Resolve(rule descriptor.Rule) ([]loaders.Step, error)
}

// Result describes what a build wrote.
type Result struct {
	BuildID  string
	Files    []string
	Bytes    int64
	Cleaned  int
	Warnings []string
	Metadata *BuildMetadata
}

// Scripts returns the output paths for entryPoint followed by the chunks it
// imports, depth first, each listed once. Paths are relative to the working
// directory the bundle was built from.
func (r *Result) Scripts(entryPoint string) ([]string, error) {
	if r.Metadata == nil {
		return nil, errors.New("build produced no metadata")
	}

	for outputPath, info := range r.Metadata.Outputs {
		if info.EntryPoint != entryPoint {
			continue
		}
		scripts := []string{outputPath}
		visited := map[string]bool{outputPath: true}
		r.addDependencies(info, &scripts, visited)
		return scripts, nil
	}

	return nil, errors.New("entrypoint not found in metadata")
}

func (r *Result) addDependencies(output OutputInfo, scripts *[]string, visited map[string]bool) {
	for _, imp := range output.Imports {
		if visited[imp.Path] {
			continue
		}
		visited[imp.Path] = true
		*scripts = append(*scripts, imp.Path)

		if chunkInfo, exists := r.Metadata.Outputs[imp.Path]; exists {
			r.addDependencies(chunkInfo, scripts, visited)
		}
	}
}
