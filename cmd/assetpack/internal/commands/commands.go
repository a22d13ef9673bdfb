package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/wolfeidau/assetpack/internal/descriptor"
)

type Globals struct {
	Debug   bool
	Version string
	Stdout  io.Writer
}

func (g *Globals) stdout() io.Writer {
	if g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

// loadDescriptor loads the descriptor at path, applying a mode override when
// one is given.
func loadDescriptor(path, mode string, opts ...descriptor.Option) (*descriptor.Descriptor, error) {
	d, err := descriptor.Load(path, opts...)
	if err != nil {
		return nil, err
	}

	if mode == "" {
		return d, nil
	}

	d, err = d.WithMode(descriptor.Mode(mode))
	if err != nil {
		return nil, fmt.Errorf("invalid --mode: %w", err)
	}
	return d, nil
}
