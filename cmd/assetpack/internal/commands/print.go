package commands

import (
	"context"

	"github.com/wolfeidau/assetpack/internal/descriptor"
)

// PrintCmd re-serializes a descriptor after normalisation, optionally in a
// different format.
type PrintCmd struct {
	Config         string `help:"Path to the descriptor file" short:"c" default:"assetpack.yaml" type:"path" env:"ASSETPACK_CONFIG"`
	Format         string `help:"Output format" enum:"yaml,json,hcl" default:"yaml"`
	Mode           string `help:"Override the descriptor mode" enum:",development,production" default:""`
	SkipEntryCheck bool   `help:"Do not require the entry module to exist" default:"false"`
}

func (c *PrintCmd) Run(ctx context.Context, globals *Globals) error {
	var opts []descriptor.Option
	if c.SkipEntryCheck {
		opts = append(opts, descriptor.WithoutEntryCheck())
	}

	d, err := loadDescriptor(c.Config, c.Mode, opts...)
	if err != nil {
		return err
	}

	data, err := descriptor.Marshal(d, descriptor.Format(c.Format))
	if err != nil {
		return err
	}

	_, err = globals.stdout().Write(data)
	return err
}
