package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"stanwatch/internal/config"
	"stanwatch/internal/diag"
	"stanwatch/internal/observ"
	"stanwatch/internal/phpstan"
	"stanwatch/internal/project"
	"stanwatch/internal/report"
	"stanwatch/internal/trace"
)

var (
	// ErrBusy rejects a request while another analysis is running.
	// Callers drop it silently.
	ErrBusy = errors.New("analysis already running")
	// ErrClosed rejects requests after Close.
	ErrClosed = errors.New("orchestrator closed")
	// ErrTimeout marks a run killed for exceeding Settings.Timeout.
	ErrTimeout = errors.New("phpstan timed out")
)

// UI is the host's status area and message surface.
type UI interface {
	ShowStatus(text string)
	HideStatus()
	ShowError(message string)
}

type nopUI struct{}

func (nopUI) ShowStatus(string) {}
func (nopUI) HideStatus()       {}
func (nopUI) ShowError(string)  {}

// Options wires an Orchestrator to its host. Only Runner is needed in
// practice; every other field has a usable default.
type Options struct {
	// Settings is read at the start of every attempt.
	Settings func() config.Settings
	// Roots lists workspace folders for explicit-configuration runs.
	Roots func() []string
	// Active names the document implicit triggers fall back to.
	Active func() string
	// Accept filters implicit trigger targets. Defaults to *.php files.
	Accept func(path string) bool
	Lines  diag.LineProvider
	UI     UI
	Sink   diag.Sink
	Runner Runner
	Tracer trace.Tracer
	// Timer, when set, records resolve/run/map phases of every attempt.
	Timer *observ.Timer
	// Logf receives raw output of malformed runs and other notes.
	Logf func(format string, args ...any)
}

// Orchestrator runs at most one analysis at a time and coalesces implicit
// triggers. Build one per session with New and release it with Close.
type Orchestrator struct {
	opts Options

	busy   atomic.Bool
	closed bool

	mu      sync.Mutex
	timer   *time.Timer
	pending string
	// gen identifies the current debounce window; a fire from a replaced
	// window that lost the race with Stop sees a stale value and returns.
	gen uint64

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates an orchestrator. Zero fields in opts get defaults.
func New(opts Options) *Orchestrator {
	if opts.Settings == nil {
		opts.Settings = config.Defaults
	}
	if opts.Roots == nil {
		opts.Roots = func() []string { return nil }
	}
	if opts.Active == nil {
		opts.Active = func() string { return "" }
	}
	if opts.Accept == nil {
		opts.Accept = IsPHPFile
	}
	if opts.Lines == nil {
		opts.Lines = diag.Unavailable
	}
	if opts.UI == nil {
		opts.UI = nopUI{}
	}
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}
	if opts.Tracer == nil {
		opts.Tracer = trace.Nop
	}
	if opts.Logf == nil {
		opts.Logf = func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "stanwatch: "+format+"\n", args...)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{opts: opts, baseCtx: ctx, cancel: cancel}
}

// IsPHPFile reports whether path has a .php extension.
func IsPHPFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".php")
}

// Busy reports whether an analysis is in flight.
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

// Analyse runs one attempt on target and waits for it. It returns ErrBusy
// without touching the UI when another attempt holds the flag. Resolution
// failures come back both as a Failed outcome and as the error; tool
// failures are only reported through the outcome.
func (o *Orchestrator) Analyse(ctx context.Context, target string) (Outcome, error) {
	if err := o.acquire(); err != nil {
		return Outcome{}, err
	}
	return o.run(ctx, target)
}

// Start launches an attempt in the background. It reports false when the
// request was rejected because a run is in flight or the orchestrator is closed.
func (o *Orchestrator) Start(target string) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	if !o.busy.CompareAndSwap(false, true) {
		o.mu.Unlock()
		return false
	}
	o.wg.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.wg.Done()
		if _, err := o.run(o.baseCtx, target); err != nil {
			o.opts.Logf("analyse %s: %v", target, err)
		}
	}()
	return true
}

// Trigger schedules an implicit attempt after the debounce window. Later
// calls inside the window replace the target and restart the wait. An
// empty path means the active document.
func (o *Orchestrator) Trigger(path string) {
	delay := o.opts.Settings().Debounce
	if delay < 0 {
		delay = 0
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.pending = path
	if o.timer != nil {
		o.timer.Stop()
	}
	o.gen++
	gen := o.gen
	o.timer = time.AfterFunc(delay, func() { o.fire(gen) })
}

func (o *Orchestrator) fire(gen uint64) {
	o.mu.Lock()
	if gen != o.gen {
		o.mu.Unlock()
		return
	}
	target := o.pending
	o.pending = ""
	o.timer = nil
	closed := o.closed
	o.mu.Unlock()
	if closed {
		return
	}
	if target == "" {
		target = o.opts.Active()
	}
	if target == "" || !o.opts.Accept(target) {
		o.opts.UI.HideStatus()
		return
	}
	if !o.Start(target) {
		trace.Point(o.opts.Tracer, trace.ScopeRun, "trigger dropped", target, 0)
	}
}

// Close stops a pending trigger, kills a running process and waits for
// background attempts to finish.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.gen++
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.mu.Unlock()
	o.cancel()
	o.wg.Wait()
}

func (o *Orchestrator) acquire() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if !o.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

// run executes an attempt whose flag is already held.
func (o *Orchestrator) run(ctx context.Context, target string) (outcome Outcome, err error) {
	defer o.busy.Store(false)

	started := time.Now()
	tracer := o.opts.Tracer
	ctx, span := trace.StartSpan(ctx, tracer, trace.ScopeRun, "analyse")
	defer func() {
		outcome.Target = target
		outcome.Duration = time.Since(started)
		span.WithExtra("kind", outcome.Kind.String()).End(target)
		o.opts.UI.ShowStatus(outcome.Status())
		if msg := outcome.Message(); msg != "" && outcome.Kind == Failed {
			o.opts.UI.ShowError(msg)
		}
	}()

	o.opts.UI.ShowStatus(StatusAnalysing)
	settings := o.opts.Settings()

	phase := o.opts.Timer.Begin("resolve")
	res, err := project.Resolve(settings.Analysis, target, o.opts.Roots())
	if err != nil {
		o.opts.Timer.End(phase, "failed")
		return Outcome{Kind: Failed, ExitCode: -1, Err: err}, err
	}
	o.opts.Timer.End(phase, resolutionNote(res))
	target = res.Target
	if !res.IsDir && o.opts.Sink != nil {
		o.opts.Sink.Replace(res.Target, nil)
	}

	inv := phpstan.Build(settings.Analysis, res, settings.Binary)
	trace.Point(tracer, trace.ScopeProcess, "spawn", inv.String(), span.ID())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(o.baseCtx, cancel)
	defer stop()
	if settings.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, settings.Timeout)
		defer cancelTimeout()
	}

	phase = o.opts.Timer.Begin("phpstan")
	result, runErr := o.opts.Runner.Run(runCtx, inv)
	o.opts.Timer.End(phase, fmt.Sprintf("exit %d", result.ExitCode))
	trace.Point(tracer, trace.ScopeProcess, "exit", fmt.Sprintf("code=%d stdout=%dB stderr=%dB",
		result.ExitCode, len(result.Stdout), len(result.Stderr)), span.ID())

	if runErr != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			runErr = fmt.Errorf("%w after %s", ErrTimeout, settings.Timeout)
		}
		trace.Error(tracer, trace.ScopeProcess, "run failed", runErr.Error(), span.ID())
		return Outcome{Kind: Failed, ExitCode: result.ExitCode, Stderr: string(result.Stderr), Err: runErr}, nil
	}

	outcome = Classify(result.ExitCode, result.Stdout, result.Stderr)
	switch outcome.Kind {
	case ErrorReported:
		phase = o.opts.Timer.Begin("map")
		sets := diag.Map(outcome.Report, o.opts.Lines)
		diag.Publish(o.opts.Sink, sets)
		o.opts.Timer.End(phase, fmt.Sprintf("%d files", len(sets)))
	case Unknown:
		if outcome.Err != nil {
			o.logMalformed(span.ID(), outcome.Err, result.Stdout)
		}
	}
	return outcome, nil
}

func (o *Orchestrator) logMalformed(parent uint64, err error, stdout []byte) {
	raw := string(stdout)
	var se *report.SyntaxError
	if errors.As(err, &se) {
		raw = se.Raw
	}
	trace.Error(o.opts.Tracer, trace.ScopeProcess, "malformed output", raw, parent)
	o.opts.Logf("unreadable phpstan output (%v):\n%s", err, raw)
}

func resolutionNote(res project.Resolution) string {
	switch {
	case res.Configuration != "":
		return "configuration"
	case res.AutoloadFile != "":
		return "autoload"
	case res.Cwd != "":
		return "workdir"
	default:
		return "none"
	}
}
