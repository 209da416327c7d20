package sspak

import (
	"errors"
	"fmt"
)

var (
	// ErrDiscoveryFailed is returned when the site sniffer output is missing or cannot be parsed
	ErrDiscoveryFailed = errors.New("site discovery failed")
	// ErrUnsupportedDatabase is returned when no dump/restore strategy exists for a database kind
	ErrUnsupportedDatabase = errors.New("unsupported database kind")
	// ErrMalformedDescriptor is returned when a git-remote descriptor violates the key = value grammar
	ErrMalformedDescriptor = errors.New("malformed git-remote descriptor")
	// ErrPreconditionFailed is returned when an operation refuses to start, such as a destination already existing
	ErrPreconditionFailed = errors.New("precondition failed")
)

// CommandError is returned when an external command exits with a non-zero exit code.
type CommandError struct {
	Err      error
	Debug    string
	ExitCode int
	Output   string
	Stderr   string
}

// Error returns the string representation of a CommandError.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: %q (exit code %d) => %s", e.Err, e.Debug, e.ExitCode, e.Stderr)
	if e.Output != "" {
		msg += "\n" + e.Output
	}
	return msg
}

// Unwrap returns the underlying process error
func (e *CommandError) Unwrap() error {
	return e.Err
}

// IsCommandError reports whether err is (or wraps) a CommandError and returns it
func IsCommandError(err error) (*CommandError, bool) {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr, true
	}
	return nil, false
}

// Preconditionf returns an error wrapping ErrPreconditionFailed with the formatted message
func Preconditionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPreconditionFailed, fmt.Sprintf(format, args...))
}
