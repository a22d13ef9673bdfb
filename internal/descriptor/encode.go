package descriptor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"gopkg.in/yaml.v3"
)

// Marshal encodes d in the given format. Loading the result yields d again.
func Marshal(d *Descriptor, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		buf := new(bytes.Buffer)
		enc := yaml.NewEncoder(buf)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return nil, fmt.Errorf("failed to encode descriptor as yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode descriptor as yaml: %w", err)
		}
		return buf.Bytes(), nil
	case FormatJSON:
		data, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode descriptor as json: %w", err)
		}
		return append(data, '\n'), nil
	case FormatHCL:
		h := toHCL(d)
		f := hclwrite.NewEmptyFile()
		gohcl.EncodeIntoBody(&h, f.Body())
		return hclwrite.Format(f.Bytes()), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Save writes d to path in the format implied by its extension.
func Save(d *Descriptor, path string) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	data, err := Marshal(d, format)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write descriptor %q: %w", path, err)
	}
	return nil
}
