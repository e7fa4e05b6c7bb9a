package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// Exit codes
const (
	ExitSuccess        = 0
	ExitGeneralError   = 1
	ExitInvalidArgs    = 2
	ExitAPIUnreachable = 3
	ExitStorageError   = 5
	ExitOutputLocked   = 6
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return execute(ctx, args, os.Stdout, os.Stderr)
}

// execute runs the CLI with the given arguments and returns an exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cc := newCommandContext(stdout, stderr)
	defer cc.close()

	cmd := newRootCommand(cc)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(stderr, "[scrub] Interrupted")
	} else {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// Errors not raised by a command come from cobra's argument handling.
	return ExitInvalidArgs
}

// exitError attaches an exit code to a command error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}
