package ui

import (
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

// Confirmer asks the user a yes/no question. It is an interface so
// callers (the frontend Executor's idle-wait prompt) can be tested
// against the mock in internal/testutil/mocks without a real terminal
// attached.
type Confirmer interface {
	Confirm(message string) (bool, error)
}

// PromptUIConfirmer is the real terminal-backed Confirmer, grounded on
// the teacher's ui.ShowConfirm call sites (tool/builtin/command_tool.go's
// idle-wait prompt).
type PromptUIConfirmer struct{}

// Confirm shows message and reads a y/n answer. A Ctrl+C (promptui's
// ErrInterrupt) is returned as an error so callers can treat it as
// cancellation rather than a "no" answer.
func (PromptUIConfirmer) Confirm(message string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     message,
		IsConfirm: true,
	}
	result, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrAbort {
			return false, nil
		}
		return false, fmt.Errorf("ui: confirm prompt: %w", err)
	}
	return strings.EqualFold(result, "y") || strings.EqualFold(result, "yes"), nil
}

// ShowConfirm is a package-level convenience wrapping PromptUIConfirmer,
// matching the teacher's free-function call sites.
func ShowConfirm(message string) (bool, error) {
	return PromptUIConfirmer{}.Confirm(message)
}

// Select shows a single-choice menu and returns the chosen index and
// item. No control command calls it; /provider takes its choice as an
// argument.
func Select(label string, items []string) (int, string, error) {
	sel := promptui.Select{
		Label: label,
		Items: items,
	}
	return sel.Run()
}
