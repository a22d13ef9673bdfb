package bundler

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/wolfeidau/assetpack/internal/descriptor"
)

// NewPlan resolves every rule of d into executable steps.
func NewPlan(d *descriptor.Descriptor, steps StepResolver) (*Plan, error) {
	plan := &Plan{
		BuildID:   uuid.NewString(),
		Mode:      d.Mode,
		BaseDir:   d.BaseDir(),
		Entry:     d.EntryPath(),
		OutputDir: d.OutputDir(),
		Outfile:   d.OutputFile(),
	}

	for i, rule := range d.Rules() {
		pattern, err := rule.Pattern()
		if err != nil {
			return nil, &descriptor.ConfigError{Field: fmt.Sprintf("module.rules[%d].test", i), Err: err}
		}

		resolved, err := steps.Resolve(rule)
		if err != nil {
			return nil, &descriptor.ConfigError{Field: fmt.Sprintf("module.rules[%d].use", i), Err: err}
		}

		plan.Rules = append(plan.Rules, PlannedRule{Pattern: pattern, Steps: resolved})
	}

	return plan, nil
}
