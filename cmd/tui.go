package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/finport/internal/shared"
	"github.com/desertthunder/finport/internal/statement"
	"github.com/desertthunder/finport/internal/ui"
)

// TUI launches the interactive terminal UI for confirming a mapping and importing one statement.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("%w: CSV file is required", shared.ErrMissingArgument)
	}

	userID, err := r.userID(ctx, cmd)
	if err != nil {
		return err
	}

	stmt, err := statement.ParseFile(path)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	if err := r.open(); err != nil {
		return err
	}

	model := ui.NewModel(ctx, r.engine, userID, sourceLabel(cmd, path), stmt, explicitMapping(cmd))
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if result, err := model.Result(); result != nil && result.Job != nil {
		r.writePlain("Last import: %s (%s)\n", result.Job.ID(), result.Job.Status())
		return err
	}
	return nil
}
