package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/erp-workflow/internal/domain"
)

type stepTemplateFile struct {
	Steps []domain.StepTemplate `yaml:"steps"`
}

// LoadStepTemplate reads the fixed O2D step set from a YAML file of the form
//
//	steps:
//	  - name: Packing
//	    dependency_group: 1
//
// An empty path returns nil so callers fall back to the built-in template.
func LoadStepTemplate(path string) ([]domain.StepTemplate, error) {
	if path == "" {
		return nil, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read step template: %w", err)
	}
	var file stepTemplateFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("parse step template %s: %w", path, err)
	}
	for i, step := range file.Steps {
		if step.Name == "" {
			return nil, fmt.Errorf("step template %s: entry %d has no name", path, i)
		}
		if step.DependencyGroup < 1 {
			return nil, fmt.Errorf("step template %s: %q needs dependency_group >= 1", path, step.Name)
		}
	}
	return file.Steps, nil
}
