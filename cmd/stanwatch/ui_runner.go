package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"stanwatch/internal/runner"
	"stanwatch/internal/ui"
)

type analyseOutcome struct {
	outcome runner.Outcome
	err     error
}

// runAnalyseWithUI runs one analysis while a status spinner follows the
// events the orchestrator pushes. Quitting the spinner cancels the run.
func runAnalyseWithUI(ctx context.Context, orch *runner.Orchestrator, target string, events chan ui.Event) (runner.Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	outcomeCh := make(chan analyseOutcome, 1)

	go func() {
		out, err := orch.Analyse(ctx, target)
		outcomeCh <- analyseOutcome{outcome: out, err: err}
		close(events)
	}()

	model := ui.NewStatusModel(target, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stderr))
	_, uiErr := program.Run()
	cancel()
	res := <-outcomeCh
	if uiErr != nil {
		return res.outcome, uiErr
	}
	return res.outcome, res.err
}
