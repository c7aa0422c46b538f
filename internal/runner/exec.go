package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"

	"stanwatch/internal/phpstan"
)

// Result is what a finished process left behind.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Runner executes an invocation and waits for it. A non-nil error means
// the process could not be started or did not exit on its own; a non-zero
// exit code alone is not an error.
type Runner interface {
	Run(ctx context.Context, inv phpstan.Invocation) (Result, error)
}

// RunFunc adapts a function to Runner.
type RunFunc func(ctx context.Context, inv phpstan.Invocation) (Result, error)

func (f RunFunc) Run(ctx context.Context, inv phpstan.Invocation) (Result, error) {
	return f(ctx, inv)
}

// ExecRunner runs invocations as real subprocesses.
type ExecRunner struct {
	// Env replaces the inherited environment when non-nil.
	Env []string
	// WaitDelay bounds how long Wait lingers on inherited pipes after a kill.
	WaitDelay time.Duration
}

// Run starts inv, drains stdout and stderr concurrently into separate
// buffers and returns them once the process has exited. Cancelling ctx
// kills the process; output still held open by its descendants is
// abandoned after WaitDelay.
func (r ExecRunner) Run(ctx context.Context, inv phpstan.Invocation) (Result, error) {
	cmd := exec.CommandContext(ctx, inv.Path, inv.Args...)
	cmd.Dir = inv.Dir
	if r.Env != nil {
		cmd.Env = r.Env
	}
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = 2 * time.Second
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("failed to start %s: %w", inv.Path, err)
	}

	var outBuf, errBuf bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(&outBuf, stdout)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(&errBuf, stderr)
		return err
	})
	// A descendant that inherited the pipes keeps them open after the
	// child is killed; close our read ends WaitDelay after cancellation.
	drained := make(chan struct{})
	go func() {
		select {
		case <-drained:
			return
		case <-ctx.Done():
		}
		grace := time.NewTimer(cmd.WaitDelay)
		defer grace.Stop()
		select {
		case <-drained:
		case <-grace.C:
			_ = stdout.Close()
			_ = stderr.Close()
		}
	}()
	// Pipes must be drained before Wait closes them.
	copyErr := g.Wait()
	close(drained)
	waitErr := cmd.Wait()

	res := Result{
		ExitCode: -1,
		Stdout:   outBuf.Bytes(),
		Stderr:   errBuf.Bytes(),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) && res.ExitCode >= 0 {
			return res, nil
		}
		return res, fmt.Errorf("wait %s: %w", inv.Path, waitErr)
	}
	if copyErr != nil && !errors.Is(copyErr, os.ErrClosed) {
		return res, fmt.Errorf("read output: %w", copyErr)
	}
	return res, nil
}
