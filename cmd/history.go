package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/plexio/internal/models"
	"github.com/desertthunder/plexio/internal/repositories"
	"github.com/desertthunder/plexio/internal/shared"
	"github.com/urfave/cli/v3"
)

type runView struct {
	ID         string     `json:"id"`
	Sequence   int        `json:"sequence"`
	SourceFile string     `json:"source_file"`
	ServerName string     `json:"server_name"`
	Status     string     `json:"status"`
	Playlists  int        `json:"playlists"`
	Summary    string     `json:"summary,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type runDetailView struct {
	runView
	Outcomes []models.OutcomeRecord `json:"outcomes"`
	Missing  []models.MissingRecord `json:"missing"`
}

func newRunView(run *models.ImportRun) runView {
	return runView{
		ID:         run.ID(),
		Sequence:   run.Sequence(),
		SourceFile: run.SourceFile(),
		ServerName: run.ServerName(),
		Status:     string(run.Status()),
		Playlists:  run.PlaylistsTotal(),
		Summary:    run.Summary(),
		Error:      run.ErrorMessage(),
		StartedAt:  run.StartedAt(),
		FinishedAt: run.FinishedAt(),
	}
}

// HistoryList prints the most recent import runs.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	history, err := r.openHistory()
	if err != nil {
		return err
	}

	runs, err := history.Recent(cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	if cmd.Bool("json") {
		views := make([]runView, 0, len(runs))
		for _, run := range runs {
			views = append(views, newRunView(run))
		}
		return r.writeJSON(views, true)
	}

	if len(runs) == 0 {
		r.writePlain("No imports recorded yet.\n")
		return nil
	}
	for _, run := range runs {
		r.writePlain("#%d  %s  %-9s  %s → %s (%d playlist(s))\n",
			run.Sequence(), run.StartedAt().Local().Format(time.DateTime), run.Status(),
			run.SourceFile(), run.ServerName(), run.PlaylistsTotal())
	}
	return nil
}

// HistoryShow prints one run, looked up by id or sequence number.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.StringArg("id")
	if ref == "" {
		return fmt.Errorf("%w: run id", shared.ErrMissingArgument)
	}

	history, err := r.openHistory()
	if err != nil {
		return err
	}
	detail, err := history.Detail(ref)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(runDetailView{newRunView(detail.Run), detail.Outcomes, detail.Missing}, true)
	}
	r.writeRunDetail(detail)
	return nil
}

func (r *Runner) writeRunDetail(detail *repositories.RunDetail) {
	run := detail.Run
	r.writePlainHeader(fmt.Sprintf("Import #%d: %s", run.Sequence(), run.Status()))
	r.writePlain("ID:      %s\n", run.ID())
	r.writePlain("File:    %s\n", run.SourceFile())
	r.writePlain("Server:  %s\n", run.ServerName())
	r.writePlain("Started: %s\n", run.StartedAt().Local().Format(time.DateTime))
	if finished := run.FinishedAt(); finished != nil {
		r.writePlain("Took:    %s\n", finished.Sub(run.StartedAt()).Round(time.Millisecond))
	}
	if run.ErrorMessage() != "" {
		r.writePlain("Error:   %s\n", run.ErrorMessage())
	}

	if len(detail.Outcomes) > 0 {
		r.writePlainln("Playlists:")
		for _, o := range detail.Outcomes {
			r.writePlain("  %-12s %s → %s (%d/%d)\n", o.Status, o.SourceName, o.TargetName, o.Matched, o.Total)
			if o.Message != "" {
				r.writePlain("               %s\n", o.Message)
			}
		}
	}

	if len(detail.Missing) > 0 {
		r.writePlainln("Missing (%d):", len(detail.Missing))
		for _, m := range detail.Missing {
			year := ""
			if m.Year != nil {
				year = fmt.Sprintf(" (%d)", *m.Year)
			}
			r.writePlain("  [%s] %s%s\n", m.Playlist, m.Title, year)
		}
	}
}
