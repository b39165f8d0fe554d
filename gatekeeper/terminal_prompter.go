package gatekeeper

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
)

// TerminalPrompter asks the operator about unknown kick sources on an
// interactive terminal.
type TerminalPrompter struct{}

var _ Prompter = (*TerminalPrompter)(nil)

// NewTerminalPrompter creates a TerminalPrompter.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{}
}

// IsInteractive checks if we're running in an interactive terminal.
func (p *TerminalPrompter) IsInteractive() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// PromptForSource asks whether to load kicks from the source.
func (p *TerminalPrompter) PromptForSource(sourceURL string) (approved bool, always bool, err error) {
	const (
		choiceOnce   = "once"
		choiceAlways = "always"
		choiceNever  = "never"
		choiceDeny   = "deny"
	)

	choice := choiceDeny
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Load kicks from %s?", sourceURL)).
				Description("This source will run extension code inside the host.").
				Options(
					huh.NewOption("Allow once", choiceOnce),
					huh.NewOption("Always allow", choiceAlways),
					huh.NewOption("Never allow", choiceNever),
					huh.NewOption("Deny for now", choiceDeny),
				).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		return false, false, err
	}

	switch choice {
	case choiceOnce:
		return true, false, nil
	case choiceAlways:
		return true, true, nil
	case choiceNever:
		return false, true, nil
	default:
		return false, false, nil
	}
}
