// Package prompt provides interactive terminal prompts for CLI commands.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

// Confirm asks label as a yes/no question. Only an explicit y or yes answer
// returns true; n and a bare Enter decline, Ctrl+C returns ErrAborted.
// defaultYes only shapes the hint in the label.
func Confirm(label string, defaultYes bool) (bool, error) {
	hint := "y/N"
	if defaultYes {
		hint = "Y/n"
	}

	p := promptui.Prompt{
		Label:     fmt.Sprintf("%s [%s]", label, hint),
		IsConfirm: true,
	}

	result, err := p.Run()
	switch {
	case err == nil:
		answer := strings.ToLower(result)
		return answer == "y" || answer == "yes", nil
	case errors.Is(err, promptui.ErrInterrupt):
		return false, ErrAborted
	case errors.Is(err, promptui.ErrAbort):
		// promptui reports a plain "n" answer as ErrAbort.
		return false, nil
	default:
		return false, err
	}
}

// ConfirmWithForce short-circuits to yes when force is set (--yes flows
// through here) and prompts otherwise.
func ConfirmWithForce(label string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	return Confirm(label, false)
}
