package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OverrideFileName is the optional per-project config file at the repo root.
const OverrideFileName = "arbor.yaml"

// Override holds per-project settings that win over the app config.
// A missing file is not an error; zero values mean "not set".
type Override struct {
	BranchPrefix     string   `yaml:"branch_prefix"`
	BaseBranch       string   `yaml:"base_branch"`
	PushOnCreate     *bool    `yaml:"push_on_create"`
	PreservePatterns []string `yaml:"preserve_patterns"`
}

// LoadOverride reads arbor.yaml from the project root, if present.
func LoadOverride(projectPath string) (*Override, error) {
	data, err := os.ReadFile(filepath.Join(projectPath, OverrideFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return &Override{}, nil
		}
		return nil, err
	}

	var o Override
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, err
	}
	return &o, nil
}
