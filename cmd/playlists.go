package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/plexio/internal/formatter"
	"github.com/desertthunder/plexio/internal/models"
	"github.com/desertthunder/plexio/internal/services"
	"github.com/desertthunder/plexio/internal/shared"
	"github.com/desertthunder/plexio/internal/tasks"
	"github.com/desertthunder/plexio/internal/ui"
	"github.com/urfave/cli/v3"
)

type playlistView struct {
	RatingKey string `json:"rating_key"`
	Title     string `json:"title"`
	Type      string `json:"type"`
	Smart     bool   `json:"smart"`
	Items     int    `json:"items"`
}

// PlaylistsList prints the playlists on the connected server.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	catalog, err := r.connect(ctx)
	if err != nil {
		return err
	}

	playlists, err := catalog.Playlists(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch playlists: %w", err)
	}

	if cmd.Bool("json") {
		views := make([]playlistView, 0, len(playlists))
		for _, pl := range playlists {
			views = append(views, playlistView{pl.RatingKey, pl.Title, pl.Type, pl.Smart, pl.ItemCount})
		}
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d playlists on %s:\n\n", len(playlists), catalog.Name())
	for i, pl := range playlists {
		r.writePlain("%d. %s\n", i+1, pl.Title)
		r.writePlain("   Items: %d\n", pl.ItemCount)
		if pl.Type != "" {
			r.writePlain("   Type: %s\n", pl.Type)
		}
		if pl.Smart {
			r.writePlain("   Smart: yes\n")
		}
		r.writePlain("\n")
	}
	return nil
}

// PlaylistsExport writes the selected playlists to a JSON document, a CSV file, or one file each
// with --bulk.
func (r *Runner) PlaylistsExport(ctx context.Context, cmd *cli.Command) error {
	format, err := parseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	catalog, err := r.connect(ctx)
	if err != nil {
		return err
	}
	playlists, err := r.selectPlaylists(ctx, catalog, cmd.StringSlice("playlist"), cmd.Bool("all"))
	if err != nil {
		return err
	}

	engine := r.newEngine(nil)
	updates, stop := r.progress()
	defer stop()

	output := cmd.String("output")
	if cmd.Bool("bulk") {
		result, err := engine.BulkExport(ctx, updates, catalog, playlists, tasks.BulkExportOpts{Format: format, OutputDir: output})
		if err != nil {
			return err
		}
		r.writePlainHeader("Bulk export")
		r.writePlain("Exported %d/%d playlists to %s\n", result.SuccessfulExports, result.TotalPlaylists, result.OutputDirectory)
		for _, res := range result.Results {
			if !res.Success {
				r.writePlain("  ✗ %s: %s\n", res.Playlist, res.Error)
			}
		}
		r.writePlain("Manifest: %s\n", result.ManifestPath)
		return nil
	}

	if format == formatter.FormatCSV {
		if len(playlists) != 1 {
			return fmt.Errorf("%w: CSV export takes exactly one playlist, got %d (use --bulk)", shared.ErrInvalidArgument, len(playlists))
		}
		if output == "" {
			output = tasks.SafeFileName(playlists[0].Title) + ".csv"
		}
		if err := engine.ExportCSV(ctx, catalog, playlists[0], output); err != nil {
			return err
		}
		r.writePlain("✓ Exported %s to %s\n", playlists[0].Title, output)
		return nil
	}

	if output == "" {
		output = ui.ExportPath(".", playlists)
	}
	if err := engine.Export(ctx, catalog, playlists, output, updates); err != nil {
		return err
	}
	r.writePlain("✓ Exported %d playlist(s) to %s\n", len(playlists), output)
	return nil
}

// PlaylistsDelete deletes the named playlists after confirmation.
func (r *Runner) PlaylistsDelete(ctx context.Context, cmd *cli.Command) error {
	catalog, err := r.connect(ctx)
	if err != nil {
		return err
	}
	playlists, err := r.selectPlaylists(ctx, catalog, cmd.StringSlice("playlist"), false)
	if err != nil {
		return err
	}

	if !cmd.Bool("yes") {
		titles := make([]string, 0, len(playlists))
		for _, pl := range playlists {
			titles = append(titles, pl.Title)
		}
		if !r.confirm(fmt.Sprintf("Delete %d playlist(s): %s?", len(playlists), strings.Join(titles, ", "))) {
			r.writePlain("Aborted.\n")
			return nil
		}
	}

	result, err := r.newEngine(nil).DeletePlaylists(ctx, catalog, playlists, nil)
	if err != nil {
		return err
	}
	r.writePlain("%s\n", result.Message())
	if len(result.Errors) > 0 {
		return fmt.Errorf("%d of %d playlists could not be deleted", len(result.Errors), len(playlists))
	}
	return nil
}

// PlaylistsSort recreates one playlist with its items ordered by year, then title.
func (r *Runner) PlaylistsSort(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	catalog, err := r.connect(ctx)
	if err != nil {
		return err
	}
	pl, err := tasks.FindPlaylist(ctx, catalog, name)
	if err != nil {
		return err
	}

	updates, stop := r.progress()
	defer stop()
	result, err := r.newEngine(nil).SortByYear(ctx, catalog, *pl, updates)
	if err != nil {
		return err
	}
	r.writePlain("%s\n", result.Summary())
	return nil
}

// selectPlaylists resolves names against the server, or returns every playlist when all is set.
func (r *Runner) selectPlaylists(ctx context.Context, catalog services.Catalog, names []string, all bool) ([]models.Playlist, error) {
	if all {
		playlists, err := catalog.Playlists(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch playlists: %w", err)
		}
		if len(playlists) == 0 {
			return nil, fmt.Errorf("%w: the server has no playlists", shared.ErrPlaylistNotFound)
		}
		return playlists, nil
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: pass --playlist or --all", shared.ErrMissingArgument)
	}

	playlists := make([]models.Playlist, 0, len(names))
	for _, name := range names {
		pl, err := tasks.FindPlaylist(ctx, catalog, name)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, *pl)
	}
	return playlists, nil
}

// progress starts a goroutine that logs engine updates. The returned func closes the channel and
// waits for the goroutine.
func (r *Runner) progress() (chan<- tasks.ProgressUpdate, func()) {
	updates := make(chan tasks.ProgressUpdate, 32)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range updates {
			r.logger.Info(u.Message, "phase", u.Phase.String(), "step", u.Step, "total", u.Total)
		}
	}()
	return updates, func() {
		close(updates)
		<-done
	}
}

func parseFormat(s string) (formatter.Format, error) {
	format, err := formatter.DetectFormat("export." + strings.TrimPrefix(strings.ToLower(s), "."))
	if err != nil {
		return 0, fmt.Errorf("%w: format must be json or csv, got %q", shared.ErrInvalidArgument, s)
	}
	return format, nil
}
