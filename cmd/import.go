package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/desertthunder/plexio/internal/formatter"
	"github.com/desertthunder/plexio/internal/shared"
	"github.com/desertthunder/plexio/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Preview lists the playlist names in an export file without touching the server.
func (r *Runner) Preview(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("file")
	if path == "" {
		return fmt.Errorf("%w: file", shared.ErrMissingArgument)
	}

	names, err := formatter.PreviewNames(r.fs, path)
	if err != nil {
		return err
	}

	r.writePlain("%d playlist(s) in %s:\n", len(names), path)
	for i, name := range names {
		r.writePlain("%d. %s\n", i+1, name)
	}
	return nil
}

// Import recreates the playlists of an export file on the connected server.
//
// The first interrupt stops the import after the item in flight and the cancelled playlist is not
// created. A second interrupt aborts the in-flight request too.
func (r *Runner) Import(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("file")
	if path == "" {
		return fmt.Errorf("%w: file", shared.ErrMissingArgument)
	}

	names, err := formatter.PreviewNames(r.fs, path)
	if err != nil {
		return err
	}
	renames, err := buildRenames(names, cmd.StringSlice("playlist"), cmd.StringSlice("rename"))
	if err != nil {
		return err
	}

	catalog, err := r.connect(ctx)
	if err != nil {
		return err
	}

	var history tasks.HistoryRecorder
	if !cmd.Bool("no-history") {
		if h, err := r.openHistory(); err != nil {
			r.logger.Warn("import history disabled", "error", err)
		} else {
			history = h
		}
	}
	engine := r.newEngine(history)

	if action := cmd.String("on-conflict"); action != "" {
		conflict, err := tasks.ParseConflictAction(action)
		if err != nil {
			return err
		}
		if renames, err = engine.ResolveConflicts(ctx, catalog, renames, conflict); err != nil {
			return err
		}
	}

	token := tasks.NewCancelToken()
	ctx, stopInterrupts := r.watchInterrupts(ctx, token)
	defer stopInterrupts()

	updates, stopUpdates := r.progress()
	result, err := engine.Import(ctx, catalog, path, renames, tasks.ImportOpts{
		Progress: r.printProgress,
		Cancel:   token,
		Updates:  updates,
	})
	stopUpdates()
	r.writeMetrics(cmd.String("metrics-file"))
	if err != nil {
		return err
	}

	r.writePlainHeader("Import summary")
	r.writePlain("%s\n", result.Summary())

	warning, err := formatter.CheckMissing(r.fs, engine.MissingDir())
	if err != nil {
		r.logger.Warn("failed to check missing items", "error", err)
	} else if warning != "" {
		r.writePlainln("%s", warning)
	}
	if result.RunID != "" {
		r.logger.Debug("import recorded", "run", result.RunID)
	}
	return nil
}

// Missing renders the missing-items report written by the last import.
func (r *Runner) Missing(ctx context.Context, cmd *cli.Command) error {
	items, err := formatter.ReadMissing(r.fs, r.config.Import.MissingDir)
	if err != nil {
		return err
	}

	switch format := strings.ToLower(cmd.String("format")); format {
	case "json":
		return r.writeJSON(items, true)
	case "txt", "text":
		_, err = r.output.Write(formatter.MissingReportText(items))
	case "md", "markdown":
		_, err = r.output.Write(formatter.MissingReportMarkdown(items))
	default:
		return fmt.Errorf("%w: format must be md, txt or json, got %q", shared.ErrInvalidArgument, format)
	}
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// buildRenames maps the selected playlists of a file to their target names.
//
// With no selection every playlist is imported under its own name. A rename (old=new) also
// selects its playlist.
func buildRenames(names, only, renames []string) (tasks.RenameMap, error) {
	m := tasks.RenameMap{}
	for _, name := range only {
		if !slices.Contains(names, name) {
			return nil, fmt.Errorf("%w: playlist %q is not in the file", shared.ErrInvalidArgument, name)
		}
		m[name] = name
	}

	for _, pair := range renames {
		from, to, ok := strings.Cut(pair, "=")
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if !ok || from == "" || to == "" {
			return nil, fmt.Errorf("%w: rename must look like old=new, got %q", shared.ErrInvalidArgument, pair)
		}
		if !slices.Contains(names, from) {
			return nil, fmt.Errorf("%w: playlist %q is not in the file", shared.ErrInvalidArgument, from)
		}
		m[from] = to
	}

	if len(m) == 0 {
		return tasks.IdentityRenames(names...), nil
	}
	return m, nil
}

func (r *Runner) printProgress(done, total int) {
	r.writePlain("\rImporting... %d / %d", done, total)
	if done == total {
		r.writePlain("\n")
	}
}

// writeMetrics dumps the metrics registry to path, or to [import].metrics_file when path is empty.
func (r *Runner) writeMetrics(path string) {
	if path == "" {
		path = r.config.Import.MetricsFile
	}
	if path == "" {
		return
	}
	if err := r.metrics.WriteTextfile(path); err != nil {
		r.logger.Warn("failed to write metrics", "path", path, "error", err)
		return
	}
	r.logger.Debug("metrics written", "path", path)
}

// watchInterrupts cancels token on the first SIGINT and the returned context on the second.
func (r *Runner) watchInterrupts(ctx context.Context, token *tasks.CancelToken) (context.Context, func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)

	ctx, cancel := context.WithCancel(ctx)
	go r.handleInterrupts(ctx, sigs, token, cancel)
	return ctx, func() {
		signal.Stop(sigs)
		cancel()
	}
}

func (r *Runner) handleInterrupts(ctx context.Context, sigs <-chan os.Signal, token *tasks.CancelToken, cancel context.CancelFunc) {
	select {
	case <-ctx.Done():
		return
	case <-sigs:
	}
	token.Cancel()
	r.logger.Warn("cancelling after the current item, interrupt again to abort")

	select {
	case <-ctx.Done():
	case <-sigs:
		cancel()
	}
}
