package runner

import (
	"fmt"
	"strings"
	"time"

	"stanwatch/internal/report"
)

// Kind is the terminal state of one analysis attempt.
type Kind uint8

const (
	// Succeeded: PHPStan exited 0, whatever it printed.
	Succeeded Kind = iota + 1
	// Failed: the tool itself failed (stderr output, spawn error, timeout).
	Failed
	// ErrorReported: PHPStan found problems and printed a JSON report.
	ErrorReported
	// Unknown: non-zero exit without a usable report.
	Unknown
)

func (k Kind) String() string {
	switch k {
	case Succeeded:
		return "passed"
	case Failed:
		return "failed"
	case ErrorReported:
		return "error"
	case Unknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// StatusAnalysing is shown while a run is in flight.
const StatusAnalysing = "[phpstan] analysing..."

// Outcome describes a finished attempt.
type Outcome struct {
	Kind   Kind
	Target string
	// ExitCode is -1 when the process never exited normally.
	ExitCode int
	// Stderr is the captured error stream, verbatim.
	Stderr string
	// Report is set for ErrorReported.
	Report *report.Output
	// Err explains Failed and Unknown outcomes when there is something to say.
	Err      error
	Duration time.Duration
}

// Status is the one-line text shown in the host's status area.
func (o Outcome) Status() string {
	if o.Kind == ErrorReported {
		errors := 0
		if o.Report != nil {
			errors = o.Report.Totals.Errors
		}
		return fmt.Sprintf("[phpstan] error %d", errors)
	}
	return "[phpstan] " + o.Kind.String()
}

// Message is the user-facing explanation of a failure, empty otherwise.
func (o Outcome) Message() string {
	switch o.Kind {
	case Failed:
		if msg := strings.TrimSpace(o.Stderr); msg != "" {
			return msg
		}
		if o.Err != nil {
			return o.Err.Error()
		}
		return "phpstan failed"
	case Unknown:
		if o.Err != nil {
			return o.Err.Error()
		}
	}
	return ""
}

// Classify maps a process exit to an outcome. The checks run in a fixed
// order: exit 0, then stderr, then a report on stdout, then Unknown.
func Classify(exitCode int, stdout, stderr []byte) Outcome {
	switch {
	case exitCode == 0:
		return Outcome{Kind: Succeeded, ExitCode: exitCode}
	case len(stderr) > 0:
		return Outcome{Kind: Failed, ExitCode: exitCode, Stderr: string(stderr)}
	case len(stdout) > 0:
		out, err := report.Parse(string(stdout))
		if err != nil {
			return Outcome{Kind: Unknown, ExitCode: exitCode, Err: err}
		}
		return Outcome{Kind: ErrorReported, ExitCode: exitCode, Report: out}
	default:
		return Outcome{Kind: Unknown, ExitCode: exitCode}
	}
}
