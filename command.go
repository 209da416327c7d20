package sspak

import (
	"strings"

	"github.com/kballard/go-shellquote"
)

// Command is a single command to execute. It is either a structured argument list, which is only
// quoted when it has to pass through a shell, or a raw shell pipeline that is passed on verbatim.
type Command struct {
	args     []string
	pipeline string
}

// NewCommand creates a command from an executable and its arguments
func NewCommand(args ...string) Command {
	return Command{args: args}
}

// ShellCommand creates a command from a raw shell pipeline, such as "mysqldump db | gzip -c".
// The caller is responsible for quoting any values interpolated into the pipeline, see Quote.
func ShellCommand(pipeline string) Command {
	return Command{pipeline: pipeline}
}

// Quote quotes a single value for safe use in a shell pipeline
func Quote(value string) string {
	return shellquote.Join(value)
}

// IsShell returns whether this is a raw shell pipeline
func (c Command) IsShell() bool {
	return c.pipeline != ""
}

// IsZero returns whether the command is empty
func (c Command) IsZero() bool {
	return len(c.args) == 0 && c.pipeline == ""
}

// Args returns the argument list of a structured command, or nil for a shell pipeline
func (c Command) Args() []string {
	if c.IsShell() {
		return nil
	}
	return append([]string(nil), c.args...)
}

// String returns the command as text that a shell will interpret as this command
func (c Command) String() string {
	if c.IsShell() {
		return c.pipeline
	}
	return shellquote.Join(c.args...)
}

// Prefixed returns this command run behind the given prefix, as in "sudo -n -u www cmd".
// A shell pipeline is wrapped in "sh -c" so the prefix applies to the whole pipeline.
func (c Command) Prefixed(prefix ...string) Command {
	args := append([]string(nil), prefix...)
	if c.IsShell() {
		return NewCommand(append(args, "sh", "-c", c.pipeline)...)
	}
	return NewCommand(append(args, c.args...)...)
}

// ParseCommand splits a command line such as "/usr/bin/env php" into a structured command
func ParseCommand(line string) (Command, error) {
	args, err := shellquote.Split(strings.TrimSpace(line))
	if err != nil {
		return Command{}, err
	}
	return NewCommand(args...), nil
}
