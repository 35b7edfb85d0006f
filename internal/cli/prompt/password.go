package prompt

import (
	"github.com/manifoldco/promptui"
)

// Password prompts for a masked secret. validate may be nil.
func (p IO) Password(label string, validate func(string) error) (string, error) {
	prompt := promptui.Prompt{
		Label:    label,
		Mask:     '*',
		Validate: validate,
		Stdin:    p.In,
		Stdout:   p.Out,
	}

	result, err := prompt.Run()
	return result, wrapError(err)
}

// NewPassword prompts for a password followed by a confirmation and
// returns ErrPasswordMismatch when the two differ.
func (p IO) NewPassword(validate func(string) error) (string, error) {
	password, err := p.Password("Password", validate)
	if err != nil {
		return "", err
	}

	confirm, err := p.Password("Confirm password", nil)
	if err != nil {
		return "", err
	}

	if password != confirm {
		return "", ErrPasswordMismatch
	}
	return password, nil
}
