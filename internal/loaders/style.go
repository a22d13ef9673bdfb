package loaders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/wolfeidau/assetpack/internal/descriptor"
)

// Style turns CSS into a script module that appends a <style> element to the
// document head when evaluated.
type Style struct {
	// Attribute marks injected elements, defaults to data-assetpack
	Attribute string
}

// NewStyle creates the style-loader step.
func NewStyle() *Style {
	return &Style{Attribute: "data-assetpack"}
}

func (s *Style) Info() descriptor.StepInfo {
	info, _ := descriptor.Builtin.Lookup(descriptor.StepStyle)
	return info
}

func (s *Style) Transform(ctx context.Context, asset *Asset) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	css, err := jsString(string(asset.Contents))
	if err != nil {
		return err
	}
	source, err := jsString(asset.Name)
	if err != nil {
		return err
	}
	attr, err := jsString(s.Attribute)
	if err != nil {
		return err
	}

	buf := new(bytes.Buffer)
	fmt.Fprintf(buf, "var css = %s;\n", css)
	buf.WriteString("if (typeof document !== \"undefined\") {\n")
	buf.WriteString("  var style = document.createElement(\"style\");\n")
	fmt.Fprintf(buf, "  style.setAttribute(%s, %s);\n", attr, source)
	buf.WriteString("  style.appendChild(document.createTextNode(css));\n")
	buf.WriteString("  document.head.appendChild(style);\n")
	buf.WriteString("}\n")
	buf.WriteString("export default css;\n")

	asset.Contents = buf.Bytes()
	return nil
}

// jsString quotes s as a JavaScript string literal. JSON escaping also
// neutralises "</style>" and "</script>" sequences.
func jsString(s string) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to quote string: %w", err)
	}
	return string(data), nil
}
