package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stanwatch/internal/config"
	"stanwatch/internal/diag"
	"stanwatch/internal/phpstan"
	"stanwatch/internal/project"
)

type recordingUI struct {
	mu     sync.Mutex
	status []string
	hidden int
	errors []string
}

func (u *recordingUI) ShowStatus(text string) {
	u.mu.Lock()
	u.status = append(u.status, text)
	u.mu.Unlock()
}

func (u *recordingUI) HideStatus() {
	u.mu.Lock()
	u.hidden++
	u.mu.Unlock()
}

func (u *recordingUI) ShowError(msg string) {
	u.mu.Lock()
	u.errors = append(u.errors, msg)
	u.mu.Unlock()
}

func (u *recordingUI) snapshot() (status []string, hidden int, errs []string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.status...), u.hidden, append([]string(nil), u.errors...)
}

func phpFile(t *testing.T, name string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("<?php\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func settingsWith(fn func(*config.Settings)) func() config.Settings {
	return func() config.Settings {
		s := config.Defaults()
		s.Analysis.Configuration = "/fixed/phpstan.neon"
		s.Binary = "phpstan"
		fn(&s)
		return s
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSingleFlightRejectsWhileRunning(t *testing.T) {
	target := phpFile(t, "a.php")
	release := make(chan struct{})
	var spawns atomic.Int32
	ui := &recordingUI{}
	o := New(Options{
		Settings: settingsWith(func(*config.Settings) {}),
		UI:       ui,
		Runner: RunFunc(func(ctx context.Context, inv phpstan.Invocation) (Result, error) {
			spawns.Add(1)
			<-release
			return Result{ExitCode: 0}, nil
		}),
	})
	defer o.Close()

	if !o.Start(target) {
		t.Fatal("first start must be accepted")
	}
	waitFor(t, "first spawn", func() bool { return spawns.Load() == 1 })

	if o.Start(target) {
		t.Fatal("second start must be rejected")
	}
	if _, err := o.Analyse(context.Background(), target); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	statusBefore, _, _ := ui.snapshot()

	close(release)
	waitFor(t, "flag release", func() bool { return !o.Busy() })
	if spawns.Load() != 1 {
		t.Fatalf("expected one spawn, got %d", spawns.Load())
	}

	out, err := o.Analyse(context.Background(), target)
	if err != nil {
		t.Fatalf("analyse after completion: %v", err)
	}
	if out.Kind != Succeeded || spawns.Load() != 2 {
		t.Fatalf("expected a second successful spawn, got %v spawns=%d", out.Kind, spawns.Load())
	}

	// the rejected requests must not have touched the status
	if len(statusBefore) != 1 || statusBefore[0] != StatusAnalysing {
		t.Fatalf("rejected requests changed the status: %v", statusBefore)
	}
}

func TestTriggerCoalescesBurst(t *testing.T) {
	first := phpFile(t, "first.php")
	last := phpFile(t, "last.php")
	targets := make(chan string, 8)
	o := New(Options{
		Settings: settingsWith(func(s *config.Settings) { s.Debounce = 30 * time.Millisecond }),
		Runner: RunFunc(func(ctx context.Context, inv phpstan.Invocation) (Result, error) {
			targets <- inv.Args[len(inv.Args)-1]
			return Result{ExitCode: 0}, nil
		}),
	})
	defer o.Close()

	for i := 0; i < 5; i++ {
		o.Trigger(first)
	}
	o.Trigger(last)

	select {
	case got := <-targets:
		if got != last {
			t.Fatalf("expected last target %s, got %s", last, got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("debounced run never happened")
	}
	select {
	case extra := <-targets:
		t.Fatalf("burst produced a second run for %s", extra)
	case <-time.After(150 * time.Millisecond):
	}
}

// A timer that fired just as Trigger replaced it must not run the new
// target early; only the new window's timer may.
func TestStaleFireKeepsQuietPeriod(t *testing.T) {
	first := phpFile(t, "first.php")
	last := phpFile(t, "last.php")
	targets := make(chan string, 8)
	o := New(Options{
		Settings: settingsWith(func(s *config.Settings) { s.Debounce = 200 * time.Millisecond }),
		Active:   func() string { return first },
		Runner: RunFunc(func(ctx context.Context, inv phpstan.Invocation) (Result, error) {
			targets <- inv.Args[len(inv.Args)-1]
			return Result{ExitCode: 0}, nil
		}),
	})
	defer o.Close()

	o.Trigger(first)
	o.mu.Lock()
	stale := o.gen
	o.mu.Unlock()
	o.Trigger(last)
	started := time.Now()

	o.fire(stale)
	select {
	case got := <-targets:
		t.Fatalf("stale fire ran %s before the quiet period", got)
	case <-time.After(50 * time.Millisecond):
	}

	select {
	case got := <-targets:
		if got != last {
			t.Fatalf("expected %s, got %s", last, got)
		}
		if elapsed := time.Since(started); elapsed < 150*time.Millisecond {
			t.Fatalf("run started after %s, inside the quiet period", elapsed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("debounced run never happened")
	}
	select {
	case extra := <-targets:
		t.Fatalf("unexpected second run for %s", extra)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestTriggerFallsBackToActiveAndHidesForNonPHP(t *testing.T) {
	active := phpFile(t, "active.php")
	var activeDoc atomic.Value
	activeDoc.Store(active)
	ran := make(chan string, 4)
	ui := &recordingUI{}
	o := New(Options{
		Settings: settingsWith(func(s *config.Settings) { s.Debounce = 0 }),
		Active:   func() string { return activeDoc.Load().(string) },
		UI:       ui,
		Runner: RunFunc(func(ctx context.Context, inv phpstan.Invocation) (Result, error) {
			ran <- inv.Args[len(inv.Args)-1]
			return Result{}, nil
		}),
	})
	defer o.Close()

	o.Trigger("")
	select {
	case got := <-ran:
		if got != active {
			t.Fatalf("expected active document, got %s", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("trigger did not run")
	}
	waitFor(t, "flag release", func() bool { return !o.Busy() })

	o.Trigger(filepath.Join(filepath.Dir(active), "README.md"))
	waitFor(t, "status hidden", func() bool {
		_, hidden, _ := ui.snapshot()
		return hidden == 1
	})
	select {
	case got := <-ran:
		t.Fatalf("non-PHP target must not run, got %s", got)
	default:
	}
}

func TestReportedErrorsReachSink(t *testing.T) {
	target := phpFile(t, "a.php")
	sink := diag.NewCollection()
	sink.Replace(target, []diag.Diagnostic{{File: target, Message: "stale"}})
	other := "/elsewhere/b.php"
	sink.Replace(other, []diag.Diagnostic{{File: other}, {File: other}, {File: other}})

	stdout := `PHPStan banner
{"totals":{"errors":0,"files":1},"files":{"/elsewhere/b.php":{"errors":0,"messages":[]}},"errors":[]}`
	var clearedBeforeRun bool
	o := New(Options{
		Settings: settingsWith(func(*config.Settings) {}),
		Sink:     sink,
		Runner: RunFunc(func(ctx context.Context, inv phpstan.Invocation) (Result, error) {
			clearedBeforeRun = len(sink.Get(target)) == 0
			return Result{ExitCode: 1, Stdout: []byte(stdout)}, nil
		}),
	})
	defer o.Close()

	out, err := o.Analyse(context.Background(), target)
	if err != nil {
		t.Fatalf("analyse: %v", err)
	}
	if !clearedBeforeRun {
		t.Fatal("file target diagnostics must be cleared before the run")
	}
	if out.Kind != ErrorReported || out.Status() != "[phpstan] error 0" {
		t.Fatalf("unexpected outcome %v %q", out.Kind, out.Status())
	}
	if sink.Len() != 0 {
		t.Fatalf("expected every diagnostic replaced, still have %v", sink.Sets())
	}
}

func TestFailureReleasesFlagAndSurfacesStderr(t *testing.T) {
	target := phpFile(t, "a.php")
	ui := &recordingUI{}
	calls := 0
	o := New(Options{
		Settings: settingsWith(func(*config.Settings) {}),
		UI:       ui,
		Runner: RunFunc(func(ctx context.Context, inv phpstan.Invocation) (Result, error) {
			calls++
			if calls == 1 {
				return Result{ExitCode: 255, Stderr: []byte("Allowed memory size exhausted")}, nil
			}
			return Result{}, nil
		}),
	})
	defer o.Close()

	out, err := o.Analyse(context.Background(), target)
	if err != nil || out.Kind != Failed {
		t.Fatalf("expected Failed, got %v err=%v", out.Kind, err)
	}
	status, _, errs := ui.snapshot()
	if status[len(status)-1] != "[phpstan] failed" {
		t.Fatalf("unexpected final status %v", status)
	}
	if len(errs) != 1 || errs[0] != "Allowed memory size exhausted" {
		t.Fatalf("stderr not surfaced: %v", errs)
	}
	if o.Busy() {
		t.Fatal("flag still held after failure")
	}
	if out, err := o.Analyse(context.Background(), target); err != nil || out.Kind != Succeeded {
		t.Fatalf("follow-up run: %v %v", out.Kind, err)
	}
}

func TestMissingTargetFailsAndReleases(t *testing.T) {
	ui := &recordingUI{}
	o := New(Options{
		UI: ui,
		Runner: RunFunc(func(context.Context, phpstan.Invocation) (Result, error) {
			t.Fatal("runner must not be called")
			return Result{}, nil
		}),
	})
	defer o.Close()

	out, err := o.Analyse(context.Background(), filepath.Join(t.TempDir(), "gone.php"))
	if err == nil || out.Kind != Failed {
		t.Fatalf("expected failure, got %v err=%v", out.Kind, err)
	}
	if o.Busy() {
		t.Fatal("flag must be released")
	}
	status, _, _ := ui.snapshot()
	if len(status) != 2 || status[1] != "[phpstan] failed" {
		t.Fatalf("expected analysing then failed, got %v", status)
	}
}

func TestUnsupportedTarget(t *testing.T) {
	if _, err := os.Stat("/dev/null"); err != nil {
		t.Skip("no /dev/null")
	}
	o := New(Options{Runner: RunFunc(func(context.Context, phpstan.Invocation) (Result, error) {
		return Result{}, nil
	})})
	defer o.Close()
	_, err := o.Analyse(context.Background(), "/dev/null")
	if !errors.Is(err, project.ErrUnsupportedTarget) {
		t.Fatalf("expected ErrUnsupportedTarget, got %v", err)
	}
	if o.Busy() {
		t.Fatal("flag must be released")
	}
}

func TestTimeoutKillsRun(t *testing.T) {
	target := phpFile(t, "slow.php")
	o := New(Options{
		Settings: settingsWith(func(s *config.Settings) { s.Timeout = 20 * time.Millisecond }),
		Runner: RunFunc(func(ctx context.Context, inv phpstan.Invocation) (Result, error) {
			<-ctx.Done()
			return Result{ExitCode: -1}, ctx.Err()
		}),
	})
	defer o.Close()

	out, err := o.Analyse(context.Background(), target)
	if err != nil {
		t.Fatalf("analyse: %v", err)
	}
	if out.Kind != Failed || !errors.Is(out.Err, ErrTimeout) {
		t.Fatalf("expected timeout failure, got %v %v", out.Kind, out.Err)
	}
}

func TestCloseCancelsRunningAnalysis(t *testing.T) {
	target := phpFile(t, "a.php")
	started := make(chan struct{})
	o := New(Options{
		Settings: settingsWith(func(s *config.Settings) { s.Timeout = 0 }),
		Runner: RunFunc(func(ctx context.Context, inv phpstan.Invocation) (Result, error) {
			close(started)
			<-ctx.Done()
			return Result{ExitCode: -1}, ctx.Err()
		}),
	})
	if !o.Start(target) {
		t.Fatal("start rejected")
	}
	<-started

	done := make(chan struct{})
	go func() {
		o.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not stop the running analysis")
	}
	if o.Start(target) {
		t.Fatal("closed orchestrator must reject new runs")
	}
	if _, err := o.Analyse(context.Background(), target); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestExplicitConfigurationUsesWorkspaceRoot(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "src", "a.php")
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(target, []byte("<?php\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	var got phpstan.Invocation
	o := New(Options{
		Settings: settingsWith(func(*config.Settings) {}),
		Roots:    func() []string { return []string{"/unrelated", root} },
		Runner: RunFunc(func(ctx context.Context, inv phpstan.Invocation) (Result, error) {
			got = inv
			return Result{}, nil
		}),
	})
	defer o.Close()

	if _, err := o.Analyse(context.Background(), target); err != nil {
		t.Fatalf("analyse: %v", err)
	}
	if got.Dir != root {
		t.Fatalf("expected cwd %s, got %s", root, got.Dir)
	}
}
