package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wolfeidau/assetpack/internal/descriptor"
)

// ErrDescriptorExists indicates init would overwrite an existing descriptor.
var ErrDescriptorExists = errors.New("descriptor already exists")

const (
	starterScript = "import './style.scss';\n\nconsole.log('assetpack ready');\n"
	starterStyle  = "$accent: #663399;\n\nbody {\n  color: $accent;\n}\n"
)

// InitCmd writes the default descriptor and, optionally, starter sources.
type InitCmd struct {
	Dir      string `help:"Project directory" default:"." type:"path"`
	Format   string `help:"Descriptor format" enum:"yaml,json,hcl" default:"yaml"`
	Force    bool   `help:"Overwrite an existing descriptor" default:"false"`
	Scaffold bool   `help:"Create src/index.js and src/style.scss when missing" default:"true" negatable:""`
}

func (c *InitCmd) Run(ctx context.Context, globals *Globals) error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}

	path := filepath.Join(c.Dir, "assetpack."+c.Format)
	if _, err := os.Stat(path); err == nil && !c.Force {
		return fmt.Errorf("%w: %s (use --force to overwrite)", ErrDescriptorExists, path)
	}

	d, err := descriptor.New(descriptor.Default(), descriptor.WithBaseDir(c.Dir), descriptor.WithoutEntryCheck())
	if err != nil {
		return err
	}

	if err := descriptor.Save(d, path); err != nil {
		return err
	}

	out := globals.stdout()
	fmt.Fprintf(out, "Wrote %s\n", path)

	if !c.Scaffold {
		return nil
	}

	starters := []struct {
		path string
		body string
	}{
		{path: d.EntryPath(), body: starterScript},
		{path: filepath.Join(filepath.Dir(d.EntryPath()), "style.scss"), body: starterStyle},
	}
	for _, s := range starters {
		if _, err := os.Stat(s.path); err == nil {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			return fmt.Errorf("failed to create source directory: %w", err)
		}
		if err := os.WriteFile(s.path, []byte(s.body), 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", s.path, err)
		}
		fmt.Fprintf(out, "Wrote %s\n", s.path)
	}

	return nil
}
