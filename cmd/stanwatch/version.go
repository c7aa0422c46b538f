package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stanwatch/internal/config"
	"stanwatch/internal/phpstan"
	"stanwatch/internal/runner"
	"stanwatch/internal/version"
)

const phpstanVersionTimeout = 10 * time.Second

// versionReport is printed by `stanwatch version`. Build metadata is only
// filled with --full; the analyser section only with --phpstan.
type versionReport struct {
	Tool       string         `json:"tool"`
	Version    string         `json:"version"`
	GitCommit  string         `json:"git_commit,omitempty"`
	GitMessage string         `json:"git_message,omitempty"`
	BuildDate  string         `json:"build_date,omitempty"`
	PHPStan    *analyserProbe `json:"phpstan,omitempty"`
}

// analyserProbe describes the PHPStan executable a run from here would use.
type analyserProbe struct {
	Path    string `json:"path"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

var versionCmd = newVersionCmd()

func newVersionCmd() *cobra.Command {
	var (
		format      string
		full        bool
		withPHPStan bool
	)
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show stanwatch build information and the PHPStan it would run",
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(strings.TrimSpace(format))
			if format != "pretty" && format != "json" {
				return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
			}
			rep := buildVersionReport(full)
			if withPHPStan {
				cwd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("failed to get working directory: %w", err)
				}
				settings, _, err := config.Load(cwd)
				if err != nil {
					return err
				}
				probe := probePHPStan(cmd.Context(), runner.ExecRunner{}, cwd, settings.Binary)
				rep.PHPStan = &probe
			}
			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			renderVersionPretty(cmd.OutOrStdout(), rep)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "pretty", "output format (pretty|json)")
	cmd.Flags().BoolVar(&full, "full", false, "include commit, commit message and build date")
	cmd.Flags().BoolVar(&withPHPStan, "phpstan", false, "locate phpstan for the current directory and ask its version")
	return cmd
}

func buildVersionReport(full bool) versionReport {
	rep := versionReport{Tool: "stanwatch", Version: strings.TrimSpace(version.Version)}
	if rep.Version == "" {
		rep.Version = "dev"
	}
	if full {
		rep.GitCommit = valueOrUnknown(version.GitCommit)
		rep.GitMessage = valueOrUnknown(version.GitMessage)
		rep.BuildDate = valueOrUnknown(version.BuildDate)
	}
	return rep
}

// probePHPStan runs `phpstan --version` with the executable an analysis
// started in cwd would pick. Failures are reported, not returned.
func probePHPStan(ctx context.Context, r runner.Runner, cwd, binary string) analyserProbe {
	path := binary
	if path == "" {
		path = phpstan.Executable(cwd)
	}
	probe := analyserProbe{Path: path}
	ctx, cancel := context.WithTimeout(ctx, phpstanVersionTimeout)
	defer cancel()
	res, err := r.Run(ctx, phpstan.Invocation{Path: path, Args: []string{"--version"}, Dir: cwd})
	switch {
	case err != nil:
		probe.Error = err.Error()
	case res.ExitCode != 0:
		probe.Error = fmt.Sprintf("exit %d: %s", res.ExitCode, firstLine(res.Stderr))
	default:
		probe.Version = firstLine(res.Stdout)
	}
	return probe
}

func firstLine(b []byte) string {
	line, _, _ := strings.Cut(strings.TrimSpace(string(b)), "\n")
	return strings.TrimSpace(line)
}

func renderVersionPretty(out io.Writer, rep versionReport) {
	fmt.Fprintf(out, "stanwatch %s\n", version.Colored(rep.Version))
	if rep.GitCommit != "" {
		fmt.Fprintf(out, "commit:  %s\n", rep.GitCommit)
		fmt.Fprintf(out, "message: %s\n", rep.GitMessage)
		fmt.Fprintf(out, "built:   %s\n", rep.BuildDate)
	}
	if p := rep.PHPStan; p != nil {
		if p.Error != "" {
			fmt.Fprintf(out, "phpstan: %s (unavailable: %s)\n", p.Path, p.Error)
		} else {
			fmt.Fprintf(out, "phpstan: %s (%s)\n", p.Path, p.Version)
		}
	}
}

func valueOrUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return s
}
