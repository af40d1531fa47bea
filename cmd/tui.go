package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/plexio/internal/shared"
	"github.com/desertthunder/plexio/internal/tasks"
	"github.com/desertthunder/plexio/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive playlist manager.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, closer, err := shared.NewFileLogger(r.config.Log)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer closer.Close()
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)

	catalog, err := r.connect(ctx)
	if err != nil {
		return err
	}

	var history tasks.HistoryRecorder
	if h, err := r.openHistory(); err != nil {
		r.logger.Warn("import history disabled", "error", err)
	} else {
		history = h
	}

	model := ui.NewModel(ctx, ui.Options{
		Catalog:    catalog,
		Engine:     r.newEngine(history),
		ImportFile: cmd.String("file"),
		ExportDir:  ".",
		AfterImport: func(*tasks.ImportResult) {
			r.writeMetrics("")
		},
	})
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
