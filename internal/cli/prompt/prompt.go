// Package prompt wraps promptui for the interactive parts of the hostkit CLI.
package prompt

import (
	"errors"
	"io"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user aborts a prompt (Ctrl+C).
var ErrAborted = errors.New("aborted")

// ErrPasswordMismatch indicates the confirmation did not match.
var ErrPasswordMismatch = errors.New("passwords do not match")

// IO overrides the terminal streams a prompt reads from and writes to.
// Nil fields fall back to the process stdin and stdout.
type IO struct {
	In  io.ReadCloser
	Out io.WriteCloser
}

// IsAborted returns true if the error indicates the user aborted.
func IsAborted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) || errors.Is(err, ErrAborted)
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsAborted(err) {
		return ErrAborted
	}
	return err
}
