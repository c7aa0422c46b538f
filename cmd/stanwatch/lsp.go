package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stanwatch/internal/lsp"
	"stanwatch/internal/trace"
	"stanwatch/internal/version"
)

var lspCmd = &cobra.Command{
	Use:          "lsp",
	Short:        "Run the stanwatch language server over stdio",
	SilenceUsage: true,
	RunE:         runLSP,
}

func runLSP(cmd *cobra.Command, _ []string) error {
	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	server := lsp.NewServer(os.Stdin, os.Stdout, lsp.ServerOptions{
		Tracer:  trace.FromContext(cmd.Context()),
		Version: version.Version,
	})
	if err := server.Run(cmd.Context()); err != nil {
		if errors.Is(err, lsp.ErrExit) {
			return nil
		}
		if errors.Is(err, lsp.ErrExitWithoutShutdown) {
			return fmt.Errorf("lsp exit without shutdown")
		}
		return err
	}
	return nil
}
