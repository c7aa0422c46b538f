package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"stanwatch/internal/config"
	"stanwatch/internal/diag"
	"stanwatch/internal/diagfmt"
	"stanwatch/internal/observ"
	"stanwatch/internal/runner"
	"stanwatch/internal/trace"
	"stanwatch/internal/ui"
)

var analyseCmd = &cobra.Command{
	Use:     "analyse [path]",
	Aliases: []string{"analyze"},
	Short:   "Run PHPStan on a file or directory and print the findings",
	Long: `Run PHPStan once on path (default: the current directory).

Exit status is 0 when PHPStan passes and 1 when it reports errors, fails or
produces output that cannot be read.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runAnalyse,
}

func init() {
	addAnalysisFlags(analyseCmd)
	analyseCmd.Flags().String("format", "pretty", "output format (pretty|short|json|msgpack)")
	analyseCmd.Flags().String("path-mode", "auto", "how file paths are shown (auto|absolute|relative|basename)")
	analyseCmd.Flags().Bool("read-lines", false, "read reported files from disk to narrow ranges and show source")
	analyseCmd.Flags().Bool("tips", true, "show PHPStan tips")
	analyseCmd.Flags().String("ui", "auto", "status spinner (auto|on|off)")
}

// plainUI writes status changes to stderr as lines.
type plainUI struct {
	out io.Writer
}

func (p plainUI) ShowStatus(text string) { fmt.Fprintln(p.out, text) }
func (plainUI) HideStatus()              {}
func (plainUI) ShowError(string)         {}

func runAnalyse(cmd *cobra.Command, args []string) error {
	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	target := "."
	if len(args) == 1 {
		target = args[0]
	}
	format, _ := cmd.Flags().GetString("format")
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "pretty", "short", "json", "msgpack":
	default:
		return fmt.Errorf("unsupported format %q (must be pretty, short, json or msgpack)", format)
	}
	pathModeStr, _ := cmd.Flags().GetString("path-mode")
	pathMode, err := diagfmt.ParsePathMode(pathModeStr)
	if err != nil {
		return err
	}
	uiStr, _ := cmd.Flags().GetString("ui")
	mode, err := readUIMode(uiStr)
	if err != nil {
		return err
	}
	quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")
	timings, _ := cmd.Root().PersistentFlags().GetBool("timings")
	readLines, _ := cmd.Flags().GetBool("read-lines")
	tips, _ := cmd.Flags().GetBool("tips")
	colored, err := useColor(cmd, os.Stdout)
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	settings, _, err := loadSettings(cmd, cwd)
	if err != nil {
		return err
	}

	var lines diag.LineProvider = diag.Unavailable
	if readLines {
		lines = diag.NewDiskLines()
	}
	var timer *observ.Timer
	if timings {
		timer = observ.NewTimer()
	}
	collection := diag.NewCollection()

	useTUI := shouldUseTUI(mode, quiet)
	var events chan ui.Event
	var host runner.UI
	switch {
	case useTUI:
		events = make(chan ui.Event, 16)
		host = ui.ChannelUI{Ch: events}
	case !quiet && (format == "pretty" || format == "short"):
		host = plainUI{out: cmd.ErrOrStderr()}
	}

	tracer := trace.FromContext(cmd.Context())
	orch := runner.New(runner.Options{
		Settings: func() config.Settings { return settings },
		Roots:    func() []string { return []string{cwd} },
		Lines:    lines,
		UI:       host,
		Sink:     diag.MultiSink{collection, publishTracer(tracer)},
		Tracer:   tracer,
		Timer:    timer,
	})
	defer orch.Close()

	var outcome runner.Outcome
	if useTUI {
		outcome, err = runAnalyseWithUI(cmd.Context(), orch, target, events)
	} else {
		outcome, err = orch.Analyse(cmd.Context(), target)
	}
	if err != nil && outcome.Kind == 0 {
		return err
	}

	sets := collection.Sets()
	count := outcome.Report.MessageCount()
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	if err := renderOutcome(out, errOut, outcome, sets, lines, renderOptions{
		format: format,
		quiet:  quiet,
		pretty: diagfmt.PrettyOpts{
			Color:      colored,
			PathMode:   pathMode,
			BaseDir:    cwd,
			ShowSource: readLines,
			ShowTips:   tips,
		},
		count: count,
	}); err != nil {
		return err
	}
	if timings {
		printTimings(errOut, timer)
	}

	if outcome.Kind != runner.Succeeded {
		return exitCodeError{code: 1}
	}
	return nil
}

// publishTracer records every per-file replacement the run publishes.
func publishTracer(t trace.Tracer) diag.Sink {
	return diag.SinkFunc(func(file string, diags []diag.Diagnostic) {
		trace.Point(t, trace.ScopeRun, "publish", fmt.Sprintf("%s: %d", file, len(diags)), 0)
	})
}

type renderOptions struct {
	format string
	quiet  bool
	pretty diagfmt.PrettyOpts
	count  int
}

func renderOutcome(out, errOut io.Writer, outcome runner.Outcome, sets []diag.FileDiagnostics, lines diag.LineProvider, opts renderOptions) error {
	switch opts.format {
	case "json", "msgpack":
		doc := diagfmt.NewDocument(diagfmt.DocumentInput{
			Target:   outcome.Target,
			Outcome:  outcome.Kind.String(),
			Status:   outcome.Status(),
			ExitCode: outcome.ExitCode,
			Message:  outcome.Message(),
			Report:   outcome.Report,
			Sets:     sets,
		}, diagfmt.JSONOpts{PathMode: opts.pretty.PathMode, BaseDir: opts.pretty.BaseDir, Indent: true})
		if opts.format == "json" {
			return diagfmt.JSON(out, doc, diagfmt.JSONOpts{Indent: true})
		}
		return diagfmt.Msgpack(out, doc)
	case "short":
		if err := diagfmt.Short(out, sets, opts.pretty); err != nil {
			return err
		}
	default:
		if err := diagfmt.Pretty(out, sets, lines, opts.pretty); err != nil {
			return err
		}
	}

	if outcome.Report != nil {
		for _, msg := range outcome.Report.Errors {
			fmt.Fprintf(out, "error: %s\n", msg)
		}
	}
	switch outcome.Kind {
	case runner.Failed:
		fmt.Fprintf(errOut, "phpstan failed: %s\n", outcome.Message())
	case runner.Unknown:
		msg := outcome.Message()
		if msg == "" {
			msg = "no report on stdout"
		}
		fmt.Fprintf(errOut, "phpstan result unknown (exit %d): %s\n", outcome.ExitCode, msg)
	}
	if errors.Is(outcome.Err, runner.ErrTimeout) {
		fmt.Fprintln(errOut, "hint: raise --timeout or set timeout under [server] in stanwatch.toml")
	}
	if opts.quiet {
		return nil
	}
	return diagfmt.Summary(errOut, outcome.Status(), opts.count, opts.pretty)
}
