package sspak

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"

	"github.com/kballard/go-shellquote"
	"golang.org/x/sync/errgroup"
)

var (
	errProcessReused  = errors.New("process has already been executed")
	errMultipleInputs = errors.New("only one of InputContent and InputStream may be set")
	errMultipleOutput = errors.New("only one of OutputFile and OutputStream may be set")
)

// ExecOptions are options you can specify to route the standard streams of a process.
// Stdin is inherited from the parent process unless an input is set,
// stdout is captured into the Result unless an output is set.
type ExecOptions struct {
	// InputContent is written to stdin, after which stdin is closed
	InputContent []byte
	// InputStream is pumped into stdin in chunks until it is exhausted
	InputStream io.Reader
	// OutputFile redirects stdout into this local file
	OutputFile string
	// OutputFileAppend appends to OutputFile instead of truncating it
	OutputFileAppend bool
	// OutputStream receives stdout in chunks as it arrives
	OutputStream io.Writer
	// IgnoreExitCode returns a Result instead of a CommandError when the exit code is not zero
	IgnoreExitCode bool
}

func (o ExecOptions) validate() error {
	if o.InputContent != nil && o.InputStream != nil {
		return errMultipleInputs
	}
	if o.OutputFile != "" && o.OutputStream != nil {
		return errMultipleOutput
	}
	return nil
}

// redirected returns whether stdout goes somewhere other than the captured output
func (o ExecOptions) redirected() bool {
	return o.OutputFile != "" || o.OutputStream != nil
}

// merge returns the options with all set fields of override applied on top
func (o ExecOptions) merge(override ExecOptions) ExecOptions {
	if override.InputContent != nil {
		o.InputContent, o.InputStream = override.InputContent, nil
	}
	if override.InputStream != nil {
		o.InputContent, o.InputStream = nil, override.InputStream
	}
	if override.OutputFile != "" {
		o.OutputFile, o.OutputFileAppend, o.OutputStream = override.OutputFile, override.OutputFileAppend, nil
	}
	if override.OutputStream != nil {
		o.OutputFile, o.OutputFileAppend, o.OutputStream = "", false, override.OutputStream
	}
	if override.IgnoreExitCode {
		o.IgnoreExitCode = true
	}
	return o
}

// Result is the outcome of an executed process
type Result struct {
	ExitCode int
	// Output is the captured stdout, empty when stdout was redirected
	Output string
	Stderr string
}

// Executor builds processes that run either locally or on a remote server over ssh
type Executor struct {
	config Config
	// stderr receives a copy of the stderr of every process, next to it being captured
	stderr io.Writer
	logger *slog.Logger
}

// NewExecutor creates a new Executor
func NewExecutor(conf Config, logger *slog.Logger) *Executor {
	if conf.Shell == "" {
		conf.Shell = defaultShell
	}
	if conf.SSHBinary == "" {
		conf.SSHBinary = defaultSSHBinary
	}
	if conf.SCPBinary == "" {
		conf.SCPBinary = defaultSCPBinary
	}
	return &Executor{
		config: conf,
		logger: logger,
	}
}

// SetStderr sets a writer receiving a copy of the stderr of every process
func (e *Executor) SetStderr(w io.Writer) {
	e.stderr = w
}

// Config returns the configuration of the executor
func (e *Executor) Config() Config {
	return e.config
}

// Local creates a process running the command on the local machine
func (e *Executor) Local(cmd Command, options ExecOptions) *Process {
	return &Process{
		executor: e,
		command:  cmd,
		options:  options,
	}
}

// Remote creates a process running the command on the server through ssh.
// The identity is passed to ssh when it is not empty.
func (e *Executor) Remote(server, identity string, cmd Command, options ExecOptions) *Process {
	return &Process{
		executor: e,
		command:  cmd,
		server:   server,
		identity: identity,
		options:  options,
	}
}

// ExecLocal runs the command on the local machine
func (e *Executor) ExecLocal(ctx context.Context, cmd Command, options ExecOptions) (*Result, error) {
	return e.Local(cmd, options).Exec(ctx, ExecOptions{})
}

// ExecRemote runs the command on the server through ssh
func (e *Executor) ExecRemote(ctx context.Context, server, identity string, cmd Command, options ExecOptions) (*Result, error) {
	return e.Remote(server, identity, cmd, options).Exec(ctx, ExecOptions{})
}

// Process is a command prepared for execution. It can be executed exactly once.
type Process struct {
	executor *Executor
	command  Command
	server   string
	identity string
	options  ExecOptions
	executed atomic.Bool
}

// Command returns the command the process runs
func (p *Process) Command() Command {
	return p.command
}

// CommandLine returns the argument list that is executed for the given options
func (p *Process) CommandLine(options ExecOptions) []string {
	if p.server == "" {
		if p.command.IsShell() {
			return []string{p.executor.config.Shell, "-c", p.command.String()}
		}
		return p.command.Args()
	}

	args := []string{p.executor.config.SSHBinary}
	// A terminal corrupts binary output, so only allocate one when output is captured
	if options.redirected() {
		args = append(args, "-T")
	} else {
		args = append(args, "-t")
	}
	if p.identity != "" {
		args = append(args, "-i", p.identity)
	}
	return append(args, p.server, p.command.String())
}

// Exec runs the process. Any field set in override replaces the corresponding option the process was created with.
func (p *Process) Exec(ctx context.Context, override ExecOptions) (*Result, error) {
	if !p.executed.CompareAndSwap(false, true) {
		return nil, errProcessReused
	}

	options := p.options.merge(override)
	err := options.validate()
	if err != nil {
		return nil, err
	}

	args := p.CommandLine(options)
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}
	debug := shellquote.Join(args...)

	procCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(procCtx, args[0], args[1:]...)
	cmd.SysProcAttr = procAttributes()

	var stdout, stderr bytes.Buffer
	cmd.Stderr = &stderr
	if p.executor.stderr != nil {
		cmd.Stderr = io.MultiWriter(&stderr, p.executor.stderr)
	}

	var input io.Reader
	switch {
	case options.InputContent != nil:
		input = bytes.NewReader(options.InputContent)
	case options.InputStream != nil:
		input = options.InputStream
	default:
		cmd.Stdin = os.Stdin
	}

	var output io.Writer
	switch {
	case options.OutputFile != "":
		file, err := openOutputFile(options.OutputFile, options.OutputFileAppend)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		cmd.Stdout = file
	case options.OutputStream != nil:
		output = options.OutputStream
	default:
		cmd.Stdout = &stdout
	}

	var stdinPipe io.WriteCloser
	if input != nil {
		stdinPipe, err = cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("error creating stdin pipe: %w", err)
		}
	}
	var stdoutPipe io.ReadCloser
	if output != nil {
		stdoutPipe, err = cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("error creating stdout pipe: %w", err)
		}
	}

	p.executor.logger.Debug("sspak.Process.Exec: Running", "command", debug)
	err = cmd.Start()
	if err != nil {
		return nil, &CommandError{Err: err, Debug: debug, ExitCode: -1}
	}

	// Stdin and stdout are pumped concurrently, so a full pipe buffer in one direction
	// cannot block the other direction.
	var pumps errgroup.Group
	if stdinPipe != nil {
		pumps.Go(func() error {
			_, err := pump(stdinPipe, input)
			closeErr := stdinPipe.Close()
			if isBrokenPipe(err) {
				// The process stopped reading, its exit code tells whether that is a problem
				err = nil
			}
			if err == nil && closeErr != nil && !isBrokenPipe(closeErr) {
				err = closeErr
			}
			if err != nil {
				cancel()
				return fmt.Errorf("error writing to stdin: %w", err)
			}
			return nil
		})
	}
	if stdoutPipe != nil {
		pumps.Go(func() error {
			_, err := pump(output, stdoutPipe)
			if err != nil {
				cancel()
				return fmt.Errorf("error streaming stdout: %w", err)
			}
			return nil
		})
	}
	pumpErr := pumps.Wait()
	waitErr := cmd.Wait()

	result := &Result{
		Output: stdout.String(),
		Stderr: stderr.String(),
	}

	if pumpErr != nil {
		return result, &CommandError{Err: pumpErr, Debug: debug, ExitCode: -1, Stderr: result.Stderr}
	}
	if ctx.Err() != nil {
		return result, ctx.Err()
	}

	var exitErr *exec.ExitError
	switch {
	case errors.As(waitErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	case waitErr != nil:
		return result, &CommandError{Err: waitErr, Debug: debug, ExitCode: -1, Stderr: result.Stderr}
	}

	if result.ExitCode != 0 && !options.IgnoreExitCode {
		return result, &CommandError{
			Err:      waitErr,
			Debug:    debug,
			ExitCode: result.ExitCode,
			Output:   result.Output,
			Stderr:   result.Stderr,
		}
	}
	return result, nil
}

func openOutputFile(name string, appendTo bool) (*os.File, error) {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if appendTo {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	file, err := os.OpenFile(name, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("error opening output file %s: %w", name, err)
	}
	return file, nil
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed)
}
