package cmd

import "github.com/pterm/pterm"

// Prompter asks the user for input. Commands take one so tests can answer
// without a terminal.
type Prompter interface {
	Text(label, def string) (string, error)
	MultiSelect(label string, options, defaults []string) ([]string, error)
	Select(label string, options []string, def string) (string, error)
	Confirm(label string) (bool, error)
}

type ptermPrompter struct{}

func (ptermPrompter) Text(label, def string) (string, error) {
	return pterm.DefaultInteractiveTextInput.WithDefaultValue(def).Show(label)
}

func (ptermPrompter) MultiSelect(label string, options, defaults []string) ([]string, error) {
	if len(options) == 0 {
		return []string{}, nil
	}
	return pterm.DefaultInteractiveMultiselect.
		WithOptions(options).
		WithDefaultOptions(defaults).
		Show(label)
}

func (ptermPrompter) Select(label string, options []string, def string) (string, error) {
	return pterm.DefaultInteractiveSelect.
		WithOptions(options).
		WithDefaultOption(def).
		Show(label)
}

func (ptermPrompter) Confirm(label string) (bool, error) {
	return pterm.DefaultInteractiveConfirm.Show(label)
}
