package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PolicyFile is the optional ~/.coshell/policy.yaml an operator can ship
// to extend the middleware's fixed pattern classes with site-specific
// regexes, without recompiling coshell. The class names themselves are
// not extensible — only the patterns checked within each. See
// version_choices.go's EnsurePolicyFileUpToDate for how coshell installs
// and upgrades this file across releases.
type PolicyFile struct {
	Patterns map[string][]string `yaml:"patterns"`
}

func policyFilePath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "policy.yaml"), nil
}

// LoadPolicyFile reads ~/.coshell/policy.yaml. A missing file is not an
// error: it returns a nil PolicyFile, meaning "no site-specific patterns."
func LoadPolicyFile() (*PolicyFile, error) {
	path, err := policyFilePath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: read policy.yaml: %w", err)
	}
	var pf PolicyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("config: parse policy.yaml: %w", err)
	}
	return &pf, nil
}
