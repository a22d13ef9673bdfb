package descriptor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// validate checks every field and joins the failures so the user sees all of
// them in one pass.
func (d *Descriptor) validate(o options) error {
	var errs []error

	if err := d.validateEntry(o.checkEntry); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, d.validateOutput()...)

	for i, rule := range d.Module.Rules {
		errs = append(errs, validateRule(i, rule, o.catalog)...)
	}

	return errors.Join(errs...)
}

func (d *Descriptor) validateEntry(checkExists bool) error {
	if strings.TrimSpace(d.Entry) == "" {
		return fieldError("entry", fmt.Errorf("%w: empty path", ErrEntryNotFound))
	}
	if !checkExists {
		return nil
	}

	entry := d.EntryPath()
	info, err := os.Stat(entry)
	if err != nil {
		return fieldError("entry", fmt.Errorf("%w: %s", ErrEntryNotFound, entry))
	}
	if info.IsDir() {
		return fieldError("entry", fmt.Errorf("%w: %s is a directory", ErrEntryNotFound, entry))
	}
	return nil
}

func (d *Descriptor) validateOutput() []error {
	var errs []error

	name := d.Output.Filename
	switch {
	case strings.TrimSpace(name) == "":
		errs = append(errs, fieldError("output.filename", fmt.Errorf("%w: empty", ErrInvalidFilename)))
	case filepath.IsAbs(name):
		errs = append(errs, fieldError("output.filename", fmt.Errorf("%w: %q must be relative to output.path", ErrInvalidFilename, name)))
	case !filepath.IsLocal(name):
		errs = append(errs, fieldError("output.filename", fmt.Errorf("%w: %q escapes output.path", ErrInvalidFilename, name)))
	}

	dir, err := filepath.Abs(d.OutputDir())
	if err != nil || !filepath.IsAbs(dir) {
		errs = append(errs, fieldError("output.path", fmt.Errorf("%w: %q", ErrUnresolvablePath, d.Output.Path)))
		return errs
	}

	if d.Output.Clean && d.Entry != "" && isWithin(dir, d.EntryPath()) {
		errs = append(errs, fieldError("output.path", fmt.Errorf("%w: %s", ErrUnsafeClean, dir)))
	}

	return errs
}

func validateRule(i int, rule Rule, catalog Catalog) []error {
	var errs []error
	prefix := fmt.Sprintf("module.rules[%d]", i)

	if _, err := rule.Pattern(); err != nil {
		errs = append(errs, fieldError(prefix+".test", err))
	}

	if len(rule.Use) == 0 {
		return append(errs, fieldError(prefix+".use", ErrEmptyChain))
	}

	infos := make([]StepInfo, 0, len(rule.Use))
	for j, id := range rule.Use {
		info, ok := catalog.Lookup(id)
		if !ok {
			errs = append(errs, fieldError(fmt.Sprintf("%s.use[%d]", prefix, j), fmt.Errorf("%w: %q", ErrUnknownStep, id)))
			continue
		}
		infos = append(infos, info)
	}
	if len(infos) != len(rule.Use) {
		return errs
	}

	// infos is in webpack order; walk it in execution order.
	for j := len(infos) - 1; j > 0; j-- {
		prev, next := infos[j], infos[j-1]
		if prev.Produces != next.Consumes {
			errs = append(errs, fieldError(prefix+".use",
				fmt.Errorf("%w: %s produces %s but %s consumes %s", ErrChainMismatch, prev.ID, prev.Produces, next.ID, next.Consumes)))
		}
	}
	if last := infos[0]; last.Produces != KindJS && last.Produces != KindCSS {
		errs = append(errs, fieldError(prefix+".use",
			fmt.Errorf("%w: chain ends with %s output from %s", ErrChainMismatch, last.Produces, last.ID)))
	}

	return errs
}

func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || filepath.IsLocal(rel)
}
