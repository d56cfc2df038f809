package command

import "errors"

// Domain errors for the command package.
var (
	// ErrEmptyCommand is returned when a dispatch carries no fields.
	ErrEmptyCommand = errors.New("command: update carries no fields")
)
