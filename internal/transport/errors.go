package transport

import (
	"errors"
	"fmt"
)

// Command error codes.
const (
	CodeInvalidURL      = "INVALID_URL"
	CodeInvalidPosition = "INVALID_POSITION"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeTextureError    = "TEXTURE_ERROR"
	CodePlayerError     = "PLAYER_ERROR"
	CodeNotImplemented  = "NOT_IMPLEMENTED"
)

// CommandError is the failure outcome of a dispatched command.
type CommandError struct {
	Code    string
	Message string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// IsArgumentError reports whether the code marks a rejected argument.
func (e *CommandError) IsArgumentError() bool {
	switch e.Code {
	case CodeInvalidURL, CodeInvalidPosition, CodeInvalidArgument:
		return true
	default:
		return false
	}
}

func newCommandError(code, message string) *CommandError {
	return &CommandError{Code: code, Message: message}
}

func playerError(err error) *CommandError {
	return &CommandError{Code: CodePlayerError, Message: err.Error(), Err: err}
}

// AsCommandError extracts a *CommandError from err.
func AsCommandError(err error) (*CommandError, bool) {
	var ce *CommandError
	ok := errors.As(err, &ce)
	return ce, ok
}
