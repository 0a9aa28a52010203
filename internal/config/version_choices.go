package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// VersionChoices stores the user's choice, per coshell version, of whether
// to overwrite or keep a locally edited policy.yaml when upgrading.
type VersionChoices struct {
	Choices map[string]string `yaml:"choices"` // version -> "overwrite" or "keep"
}

// GetVersionChoicesFilePath returns the full path to the version choices file
func GetVersionChoicesFilePath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "policy-version-choices.yaml"), nil
}

// LoadVersionChoices loads version choices from file
// Returns empty choices map if file doesn't exist or is corrupted (non-fatal)
func LoadVersionChoices() (*VersionChoices, error) {
	filePath, err := GetVersionChoicesFilePath()
	if err != nil {
		return &VersionChoices{Choices: make(map[string]string)}, nil
	}

	// Check if file exists
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return &VersionChoices{Choices: make(map[string]string)}, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		// Non-fatal: return empty choices
		return &VersionChoices{Choices: make(map[string]string)}, nil
	}

	var choices VersionChoices
	if err := yaml.Unmarshal(data, &choices); err != nil {
		// Non-fatal: return empty choices
		return &VersionChoices{Choices: make(map[string]string)}, nil
	}

	if choices.Choices == nil {
		choices.Choices = make(map[string]string)
	}

	return &choices, nil
}

// SaveVersionChoices saves version choices to file
func SaveVersionChoices(choices *VersionChoices) error {
	// Ensure config directory exists
	if err := EnsureDirectoryStructure(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	filePath, err := GetVersionChoicesFilePath()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(choices)
	if err != nil {
		return fmt.Errorf("failed to marshal version choices: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write version choices file: %w", err)
	}

	return nil
}

// GetChoiceForVersion returns the user's choice for the given application version
// Returns empty string if no choice exists for this version
func GetChoiceForVersion(version string) (string, error) {
	choices, err := LoadVersionChoices()
	if err != nil {
		return "", err
	}

	if choice, exists := choices.Choices[version]; exists {
		return choice, nil
	}

	return "", nil
}

// SetChoiceForVersion stores the user's choice for the given application version
func SetChoiceForVersion(version, choice string) error {
	choices, err := LoadVersionChoices()
	if err != nil {
		return err
	}

	if choices.Choices == nil {
		choices.Choices = make(map[string]string)
	}

	choices.Choices[version] = choice

	return SaveVersionChoices(choices)
}

// defaultPolicyTemplate is the policy.yaml coshell writes on first run
// and offers to restore on upgrade. The four class names are fixed;
// only their pattern lists are an operator's to edit.
const defaultPolicyTemplate = `# coshell policy.yaml
#
# Extends the middleware's four fixed pattern classes with site-specific
# regexes. The class names below are fixed; only the pattern lists are
# yours to edit. Delete a class's list (or this whole file) to fall back
# to the built-in patterns alone.
patterns:
  destructive-filesystem: []
  privilege-escalation: []
  credential-exposure: []
  network-exfiltration: []
`

func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// EnsurePolicyFileUpToDate writes the default policy.yaml if none exists
// yet. If one exists but no longer matches the template coshell ships
// for appVersion, and the user hasn't already recorded a choice for this
// version, it asks confirm whether to overwrite it (losing local edits)
// or keep it, then remembers that choice via SetChoiceForVersion so the
// prompt doesn't repeat for the rest of this version's lifetime.
func EnsurePolicyFileUpToDate(appVersion string, confirm func(message string) (bool, error)) error {
	path, err := policyFilePath()
	if err != nil {
		return err
	}

	existing, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := EnsureDirectoryStructure(); err != nil {
			return fmt.Errorf("config: create config directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultPolicyTemplate), 0600); err != nil {
			return fmt.Errorf("config: write default policy.yaml: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read policy.yaml: %w", err)
	}
	if hashContent(string(existing)) == hashContent(defaultPolicyTemplate) {
		return nil
	}

	choice, err := GetChoiceForVersion(appVersion)
	if err != nil {
		return fmt.Errorf("config: load policy version choices: %w", err)
	}
	if choice == "" {
		overwrite, err := confirm(fmt.Sprintf(
			"policy.yaml differs from the defaults coshell %s ships. Overwrite with the shipped defaults? (your edits will be lost)",
			appVersion))
		switch {
		case err != nil:
			// Cancellation (e.g. Ctrl+C) defaults to "keep" so it never
			// destroys an operator's edited policy.
			choice = "keep"
		case overwrite:
			choice = "overwrite"
		default:
			choice = "keep"
		}
		if err := SetChoiceForVersion(appVersion, choice); err != nil {
			return fmt.Errorf("config: save policy version choice: %w", err)
		}
	}

	if choice == "overwrite" {
		if err := os.WriteFile(path, []byte(defaultPolicyTemplate), 0600); err != nil {
			return fmt.Errorf("config: overwrite policy.yaml: %w", err)
		}
	}
	return nil
}
