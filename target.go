package sspak

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Target is a local or remote endpoint that commands are executed on, such as a webroot.
// A remote target is addressed as [user@]host:path, anything else is a local path.
type Target struct {
	server   string
	path     string
	identity string
	sudo     string

	executor     *Executor
	prompter     PasswordPrompter
	sudoPassword []byte
	logger       *slog.Logger
}

// NewTarget creates a new target from a [user@]host:path or local path location
func NewTarget(location string, executor *Executor, logger *slog.Logger) *Target {
	t := &Target{
		path:     location,
		identity: executor.config.Identity,
		executor: executor,
		prompter: NewTerminalPrompter(),
		logger:   logger,
	}
	// a slash before the first colon makes it part of a local path, as with /srv/site:v2
	if idx := strings.Index(location, ":"); idx > 0 && !strings.Contains(location[:idx], "/") {
		t.server = location[:idx]
		t.path = location[idx+1:]
	}
	return t
}

// SetSudo makes commands executed with ExecSudo run as the given user
func (t *Target) SetSudo(user string) {
	t.sudo = user
}

// SetPrompter sets the prompter asking for the sudo password
func (t *Target) SetPrompter(prompter PasswordPrompter) {
	t.prompter = prompter
}

// SetIdentity sets the SSH private key used to reach a remote target.
// The key file must exist and be a parseable private key, passphrase protected keys are accepted.
func (t *Target) SetIdentity(identity string) error {
	if identity == "" {
		t.identity = ""
		return nil
	}
	data, err := os.ReadFile(identity)
	if err != nil {
		return fmt.Errorf("error reading identity file: %w", err)
	}
	_, err = ssh.ParsePrivateKey(data)
	var missingErr *ssh.PassphraseMissingError
	if err != nil && !errors.As(err, &missingErr) {
		return fmt.Errorf("invalid identity file %s: %w", identity, err)
	}
	t.identity = identity
	return nil
}

// IsLocal returns whether commands run on the local machine
func (t *Target) IsLocal() bool {
	return t.server == ""
}

// Server returns the [user@]host of a remote target, or an empty string for a local one
func (t *Target) Server() string {
	return t.server
}

// Path returns the filesystem path of interest on the target
func (t *Target) Path() string {
	return t.path
}

// Identity returns the SSH private key used for the target
func (t *Target) Identity() string {
	return t.identity
}

// String returns the location of the target
func (t *Target) String() string {
	if t.IsLocal() {
		return t.path
	}
	return t.server + ":" + t.path
}

// CreateProcess prepares a command for execution on the target
func (t *Target) CreateProcess(cmd Command, options ExecOptions) *Process {
	if t.IsLocal() {
		return t.executor.Local(cmd, options)
	}
	return t.executor.Remote(t.server, t.identity, cmd, options)
}

// Exec runs a command on the target
func (t *Target) Exec(ctx context.Context, cmd Command, options ExecOptions) (*Result, error) {
	return t.CreateProcess(cmd, options).Exec(ctx, ExecOptions{})
}

// Exists returns whether the path exists on the target
func (t *Target) Exists(ctx context.Context, path string) (bool, error) {
	if t.IsLocal() {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, os.ErrNotExist):
			return false, nil
		default:
			return false, err
		}
	}

	res, err := t.Exec(ctx, ShellCommand(fmt.Sprintf("if [ -e %s ]; then echo yes; fi", Quote(path))), ExecOptions{})
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(res.Output) == "yes", nil
}

// Upload copies a local file to a path on the target
func (t *Target) Upload(ctx context.Context, source, dest string) error {
	if t.IsLocal() {
		_, err := t.executor.ExecLocal(ctx, NewCommand("cp", source, dest), ExecOptions{})
		return err
	}
	_, err := t.executor.ExecLocal(ctx, t.scpCommand(source, t.server+":"+dest), ExecOptions{})
	return err
}

// Download copies a file on the target to a local path
func (t *Target) Download(ctx context.Context, source, dest string) error {
	if t.IsLocal() {
		_, err := t.executor.ExecLocal(ctx, NewCommand("cp", source, dest), ExecOptions{})
		return err
	}
	_, err := t.executor.ExecLocal(ctx, t.scpCommand(t.server+":"+source, dest), ExecOptions{})
	return err
}

func (t *Target) scpCommand(source, dest string) Command {
	args := []string{t.executor.config.SCPBinary}
	if t.identity != "" {
		args = append(args, "-i", t.identity)
	}
	return NewCommand(append(args, source, dest)...)
}

// WriteFile writes content to a file on the target
func (t *Target) WriteFile(ctx context.Context, path string, content []byte) error {
	if t.IsLocal() {
		return os.WriteFile(path, content, 0o644)
	}
	_, err := t.Exec(ctx, ShellCommand("cat > "+Quote(path)), ExecOptions{
		InputContent: content,
		OutputStream: io.Discard,
	})
	return err
}

// UploadContent writes content to a file on the target
func (t *Target) UploadContent(ctx context.Context, content []byte, dest string) error {
	return t.WriteFile(ctx, dest, content)
}

// Mkdir creates a directory on the target
func (t *Target) Mkdir(ctx context.Context, path string) error {
	_, err := t.Exec(ctx, NewCommand("mkdir", path), ExecOptions{})
	return err
}

// Remove recursively removes a path on the target. It refuses to remove the empty path, "/" and ".".
func (t *Target) Remove(ctx context.Context, path string) error {
	switch path {
	case "", "/", ".":
		return Preconditionf("refusing to remove %q", path)
	}
	_, err := t.Exec(ctx, NewCommand("rm", "-rf", path), ExecOptions{})
	return err
}
