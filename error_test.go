package sspak

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandError(t *testing.T) {
	tests := []struct {
		err      error
		debug    string
		exitCode int
		output   string
		stderr   string
	}{
		// Empty error
		{nil, "", 0, "", ""},
		// Typical error
		{errors.New("exit status 1"), "/bin/sh -c 'foo bar qux'", 1, "", "command not found"},
		// Quoted error with output
		{errors.New("exit status 2"), "\"/sbin/foo\" bar qux", 2, "partial", "\"some\" 'random' `quotes`"},
	}

	for _, test := range tests {
		cmdErr := &CommandError{
			Err:      test.err,
			Debug:    test.debug,
			ExitCode: test.exitCode,
			Output:   test.output,
			Stderr:   test.stderr,
		}

		// Verify output format is consistent, so that any changes to the
		// Error method must be reflected by the test
		expect := fmt.Sprintf("%s: %q (exit code %d) => %s", test.err, test.debug, test.exitCode, test.stderr)
		if test.output != "" {
			expect += "\n" + test.output
		}
		require.Equal(t, expect, cmdErr.Error())
	}
}

func TestIsCommandError(t *testing.T) {
	inner := &CommandError{Err: errors.New("exit status 3"), Debug: "false", ExitCode: 3}
	wrapped := fmt.Errorf("saving database: %w", inner)

	cmdErr, ok := IsCommandError(wrapped)
	require.True(t, ok)
	require.Equal(t, 3, cmdErr.ExitCode)

	_, ok = IsCommandError(errors.New("other"))
	require.False(t, ok)
}

func TestPreconditionf(t *testing.T) {
	err := Preconditionf("file %q already exists", "x.sspak")
	require.ErrorIs(t, err, ErrPreconditionFailed)
	require.Contains(t, err.Error(), `"x.sspak"`)
}
