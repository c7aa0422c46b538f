package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"stanwatch/internal/phpstan"
	"stanwatch/internal/project"
)

var resolveCmd = &cobra.Command{
	Use:          "resolve [path]",
	Short:        "Show how a target would be analysed without running PHPStan",
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runResolve,
}

func init() {
	addAnalysisFlags(resolveCmd)
	resolveCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}

type resolvePayload struct {
	Target        string   `json:"target"`
	Kind          string   `json:"kind"`
	Configuration string   `json:"configuration,omitempty"`
	AutoloadFile  string   `json:"autoload_file,omitempty"`
	Cwd           string   `json:"cwd,omitempty"`
	Settings      string   `json:"settings,omitempty"`
	Command       []string `json:"command"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	format, _ := cmd.Flags().GetString("format")
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	target := "."
	if len(args) == 1 {
		target = args[0]
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	settings, settingsPath, err := loadSettings(cmd, cwd)
	if err != nil {
		return err
	}
	res, err := project.Resolve(settings.Analysis, target, []string{cwd})
	if err != nil {
		return err
	}
	inv := phpstan.Build(settings.Analysis, res, settings.Binary)

	payload := resolvePayload{
		Target:        res.Target,
		Kind:          "file",
		Configuration: res.Configuration,
		AutoloadFile:  res.AutoloadFile,
		Cwd:           res.Cwd,
		Settings:      settingsPath,
		Command:       append([]string{inv.Path}, inv.Args...),
	}
	if res.IsDir {
		payload.Kind = "directory"
	}
	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}
	renderResolvePretty(cmd.OutOrStdout(), payload, inv)
	return nil
}

func renderResolvePretty(out io.Writer, p resolvePayload, inv phpstan.Invocation) {
	fmt.Fprintf(out, "target:        %s (%s)\n", p.Target, p.Kind)
	fmt.Fprintf(out, "configuration: %s\n", valueOrNone(p.Configuration))
	fmt.Fprintf(out, "autoload:      %s\n", valueOrNone(p.AutoloadFile))
	fmt.Fprintf(out, "cwd:           %s\n", valueOrNone(p.Cwd))
	fmt.Fprintf(out, "settings:      %s\n", valueOrNone(p.Settings))
	fmt.Fprintf(out, "command:       %s\n", inv.String())
}

func valueOrNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
