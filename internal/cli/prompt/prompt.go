// Package prompt provides the interactive terminal prompts byteservectl
// uses for destructive confirmations and password entry.
package prompt

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user aborts a prompt (Ctrl+C).
var ErrAborted = errors.New("aborted")

// ErrPasswordMismatch indicates password and confirmation didn't match.
var ErrPasswordMismatch = errors.New("passwords do not match")

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) {
		return ErrAborted
	}
	return err
}

// Password prompts for a masked password with a minimum length.
func Password(label string, minLength int) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(input string) error {
			if len(input) < minLength {
				return fmt.Errorf("must be at least %d characters", minLength)
			}
			return nil
		},
	}
	result, err := p.Run()
	return result, wrapError(err)
}

// PasswordWithConfirmation prompts for a new password twice and
// returns ErrPasswordMismatch if the two entries disagree.
func PasswordWithConfirmation(minLength int) (string, error) {
	password, err := Password("Password", minLength)
	if err != nil {
		return "", err
	}
	confirm, err := Password("Confirm password", 0)
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", ErrPasswordMismatch
	}
	return password, nil
}

// Confirm prompts for yes/no confirmation, required before destructive
// operations unless the caller's --force flag bypasses it.
func Confirm(label string) (bool, error) {
	p := promptui.Prompt{
		Label:     fmt.Sprintf("%s [y/N]", label),
		IsConfirm: true,
	}
	_, err := p.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, wrapError(err)
	}
	return true, nil
}

// ConfirmOrForce returns true immediately if force is true, otherwise
// prompts for confirmation.
func ConfirmOrForce(label string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	return Confirm(label)
}
