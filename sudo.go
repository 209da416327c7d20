package sspak

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

const sudoPrompt = "[sspak sudo] Enter your password: "

// ErrNoTerminal is returned when a password is needed but there is no terminal to ask for it
var ErrNoTerminal = errors.New("no terminal available to prompt for a password")

// PasswordPrompter asks the operator for a password
type PasswordPrompter interface {
	PromptPassword(prompt string) ([]byte, error)
}

// TerminalPrompter reads a password from a terminal without echoing it
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer
}

// NewTerminalPrompter creates a prompter on the standard input, writing the prompt to stderr
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

// PromptPassword prints the prompt and reads a password without echoing it
func (p *TerminalPrompter) PromptPassword(prompt string) ([]byte, error) {
	fd := p.In.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return nil, ErrNoTerminal
	}
	_, _ = fmt.Fprint(p.Out, prompt)
	password, err := term.ReadPassword(int(fd))
	_, _ = fmt.Fprintln(p.Out)
	if err != nil {
		return nil, fmt.Errorf("error reading password: %w", err)
	}
	return password, nil
}

// ExecSudo runs a command on the target as the sudo user, or as ourselves when no sudo user is set.
// It first tries sudo without a password. Only when that fails is the operator asked for a password once,
// which is then passed to sudo on stdin ahead of any other input. The password is reused for later commands.
func (t *Target) ExecSudo(ctx context.Context, cmd Command, options ExecOptions) (*Result, error) {
	if t.sudo == "" {
		return t.Exec(ctx, cmd, options)
	}

	if t.sudoPassword == nil {
		nonInteractive := options
		nonInteractive.IgnoreExitCode = true
		res, err := t.Exec(ctx, cmd.Prefixed("sudo", "-n", "-u", t.sudo), nonInteractive)
		if err != nil {
			return res, err
		}
		if res.ExitCode == 0 {
			return res, nil
		}
		if options.InputStream != nil {
			// The stream has been consumed by the first attempt
			return res, &CommandError{
				Err:      errors.New("sudo without password failed"),
				Debug:    cmd.Prefixed("sudo", "-n", "-u", t.sudo).String(),
				ExitCode: res.ExitCode,
				Output:   res.Output,
				Stderr:   res.Stderr,
			}
		}

		t.logger.Info("sspak.Target.ExecSudo: Sudo without password failed, asking for password",
			"target", t.String(),
			"user", t.sudo,
		)
		password, err := t.prompter.PromptPassword(sudoPrompt)
		if err != nil {
			return nil, err
		}
		t.sudoPassword = password
	}

	withPassword := options
	line := append(append([]byte(nil), t.sudoPassword...), '\n')
	switch {
	case options.InputContent != nil:
		withPassword.InputContent = append(line, options.InputContent...)
	case options.InputStream != nil:
		withPassword.InputStream = io.MultiReader(bytes.NewReader(line), options.InputStream)
	default:
		withPassword.InputContent = line
	}
	return t.Exec(ctx, cmd.Prefixed("sudo", "-S", "-p", "", "-u", t.sudo), withPassword)
}
