package commands

import (
	"context"
	"fmt"
	"strings"
)

// ValidateCmd loads a descriptor and reports whether it is usable.
type ValidateCmd struct {
	Config string `help:"Path to the descriptor file" short:"c" default:"assetpack.yaml" type:"path" env:"ASSETPACK_CONFIG"`
}

func (c *ValidateCmd) Run(ctx context.Context, globals *Globals) error {
	d, err := loadDescriptor(c.Config, "")
	if err != nil {
		return err
	}

	out := globals.stdout()
	fmt.Fprintf(out, "%s: ok\n", c.Config)
	fmt.Fprintf(out, "  mode:   %s\n", d.Mode)
	fmt.Fprintf(out, "  entry:  %s\n", d.EntryPath())
	fmt.Fprintf(out, "  output: %s (clean: %t)\n", d.OutputFile(), d.Output.Clean)
	for i, rule := range d.Rules() {
		fmt.Fprintf(out, "  rule %d: %s -> %s\n", i, rule.Test, strings.Join(rule.Chain(), " -> "))
	}
	return nil
}
