package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/plexio/internal/formatter"
	"github.com/desertthunder/plexio/internal/models"
	"github.com/desertthunder/plexio/internal/services"
)

// Import reads the document at path and recreates the playlists named in renames on catalog.
//
// Playlists run strictly in document order and items strictly in playlist order on the calling goroutine.
// Before each item the cancel token is polled; once it is set the current playlist is abandoned (nothing is
// created) and every later playlist stops at its first item. Unmatched items are collected across the whole
// document and written to the missing-items report; with none, a stale report is removed.
//
// Only parse, file and session failures are returned as errors. Creation failures become per-playlist
// outcomes. A cancelled ctx aborts the import and returns the partial result with ctx's error.
func (e *PlaylistEngine) Import(ctx context.Context, catalog services.Catalog, path string, renames RenameMap, opts ImportOpts) (*ImportResult, error) {
	if err := checkCatalog(catalog); err != nil {
		return nil, err
	}

	e.sendProgress(opts.Updates, readDocumentUpdate(path))
	doc, err := formatter.ReadDocument(e.fs, path)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Source: path, Outcomes: []Outcome{}, Missing: []formatter.Item{}}
	result.RunID = e.startRun(path, catalog.Name(), doc, renames)

	for _, pl := range doc.Playlists {
		target, ok := renames[pl.Name]
		if !ok {
			continue
		}

		outcome, err := e.importPlaylist(ctx, catalog, pl, target, result, opts)
		if err != nil {
			e.finishRun(result, err)
			return result, err
		}
		result.Outcomes = append(result.Outcomes, outcome)
		e.observeOutcome(outcome.Status)
		e.sendProgress(opts.Updates, createPlaylistUpdate(outcome))
	}

	missingPath, err := formatter.WriteMissing(e.fs, e.missingDir, result.Missing)
	if err != nil {
		e.logger.Error("failed to write missing items report", "error", err)
	}
	result.MissingPath = missingPath

	e.finishRun(result, nil)
	return result, nil
}

// importPlaylist matches every item of pl and creates target from the hits.
// Misses are appended to result.Missing. The only error returned is a cancelled ctx.
func (e *PlaylistEngine) importPlaylist(
	ctx context.Context,
	catalog services.Catalog,
	pl formatter.Playlist,
	target string,
	result *ImportResult,
	opts ImportOpts,
) (Outcome, error) {
	total := len(pl.Items)
	outcome := Outcome{Source: pl.Name, Target: target, Total: total}
	logger := e.logger.With("playlist", pl.Name, "target", target)
	matched := make([]models.Media, 0, total)

	for i, item := range pl.Items {
		if opts.Cancel.Cancelled() {
			outcome.Status = StatusCancelled
			outcome.Processed = i
			outcome.Matched = len(matched)
			logger.Warn("import cancelled", "at", i, "total", total)
			return outcome, nil
		}
		if err := ctx.Err(); err != nil {
			return outcome, fmt.Errorf("import of %s aborted: %w", pl.Name, err)
		}

		media, strategy := FindMedia(ctx, catalog, e.section, item)
		e.observeMatch(strategy)
		if media != nil {
			matched = append(matched, *media)
			logger.Debug("matched item", "title", item.Title, "strategy", strategy, "rating_key", media.RatingKey)
		} else {
			outcome.Unmatched = append(outcome.Unmatched, item)
			result.Missing = append(result.Missing, item)
			logger.Debug("no match", "title", item.Title, "year", item.YearValue())
		}

		if opts.Progress != nil {
			opts.Progress(i+1, total)
		}
		e.sendProgress(opts.Updates, matchItemUpdate(i+1, total, target, item.Title, media != nil))
	}

	outcome.Processed = total
	outcome.Matched = len(matched)
	if _, err := catalog.CreatePlaylist(ctx, target, matched); err != nil {
		outcome.Status = StatusCreateFailed
		outcome.Message = err.Error()
		logger.Error("failed to create playlist", "error", err)
		return outcome, nil
	}

	outcome.Status = StatusCompleted
	logger.Info("imported playlist", "matched", outcome.Matched, "total", total)
	return outcome, nil
}

func (e *PlaylistEngine) startRun(path, server string, doc *formatter.Document, renames RenameMap) string {
	if e.history == nil {
		return ""
	}
	selected := 0
	for _, pl := range doc.Playlists {
		if _, ok := renames[pl.Name]; ok {
			selected++
		}
	}
	id, err := e.history.StartRun(path, server, selected)
	if err != nil {
		e.logger.Error("failed to record import run", "error", err)
		return ""
	}
	return id
}

func (e *PlaylistEngine) finishRun(result *ImportResult, runErr error) {
	if e.history == nil || result.RunID == "" {
		return
	}
	if err := e.history.FinishRun(result.RunID, result, runErr); err != nil {
		e.logger.Error("failed to record import outcome", "run", result.RunID, "error", err)
	}
}
