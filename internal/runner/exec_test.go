package runner

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"stanwatch/internal/phpstan"
)

func shell(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

func TestExecRunnerSeparatesStreams(t *testing.T) {
	sh := shell(t)
	inv := phpstan.Invocation{Path: sh, Args: []string{"-c", "echo out; echo err >&2; exit 3"}, Dir: t.TempDir()}
	res, err := ExecRunner{}.Run(context.Background(), inv)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("expected exit 3, got %d", res.ExitCode)
	}
	if strings.TrimSpace(string(res.Stdout)) != "out" || strings.TrimSpace(string(res.Stderr)) != "err" {
		t.Fatalf("streams mixed up: stdout=%q stderr=%q", res.Stdout, res.Stderr)
	}
}

func TestExecRunnerSpawnFailure(t *testing.T) {
	inv := phpstan.Invocation{Path: "/nonexistent/phpstan-binary"}
	if _, err := (ExecRunner{}).Run(context.Background(), inv); err == nil {
		t.Fatal("expected spawn error")
	}
}

func TestExecRunnerKillsOnCancel(t *testing.T) {
	sh := shell(t)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	started := time.Now()
	_, err := ExecRunner{WaitDelay: 100 * time.Millisecond}.Run(ctx, phpstan.Invocation{Path: sh, Args: []string{"-c", "sleep 10"}})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if time.Since(started) > 5*time.Second {
		t.Fatalf("process was not killed in time")
	}
}

func TestExecRunnerTimeoutWithDescendantHoldingPipes(t *testing.T) {
	sh := shell(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	started := time.Now()
	inv := phpstan.Invocation{Path: sh, Args: []string{"-c", "sleep 6 & sleep 6"}}
	_, err := ExecRunner{WaitDelay: 100 * time.Millisecond}.Run(ctx, inv)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(started); elapsed > 3*time.Second {
		t.Fatalf("run outlived its deadline: %s", elapsed)
	}
}
