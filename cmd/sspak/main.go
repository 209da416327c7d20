// Command sspak saves, loads and moves the database, assets and git remote of PHP sites as a single pak file
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	sspak "github.com/vansante/go-sspak"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode passes on the exit code of a failed command, refused operations exit with 2
func exitCode(err error) int {
	cmdErr, ok := sspak.IsCommandError(err)
	switch {
	case ok && cmdErr.ExitCode > 0:
		return cmdErr.ExitCode
	case errors.Is(err, sspak.ErrPreconditionFailed):
		return 2
	default:
		return 1
	}
}
