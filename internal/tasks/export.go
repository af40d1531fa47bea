package tasks

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/desertthunder/plexio/internal/formatter"
	"github.com/desertthunder/plexio/internal/models"
	"github.com/desertthunder/plexio/internal/services"
	"github.com/sourcegraph/conc/iter"
)

// Export writes playlists and their items to path as a JSON document.
//
// Items are fetched concurrently, bounded by the engine's worker count; the document keeps the input order.
func (e *PlaylistEngine) Export(ctx context.Context, catalog services.Catalog, playlists []models.Playlist, path string, progress chan<- ProgressUpdate) error {
	if err := checkCatalog(catalog); err != nil {
		return err
	}

	serialized, err := e.collect(ctx, catalog, playlists, progress)
	if err != nil {
		return err
	}

	e.sendProgress(progress, writeDocumentUpdate(path, len(serialized)))
	doc := formatter.NewDocument(catalog.Name(), serialized, e.now())
	if err := formatter.WriteDocument(e.fs, path, doc); err != nil {
		return err
	}

	e.logger.Info("exported playlists", "count", len(serialized), "path", path)
	return nil
}

// ExportCSV writes a single playlist to path as CSV.
func (e *PlaylistEngine) ExportCSV(ctx context.Context, catalog services.Catalog, playlist models.Playlist, path string) error {
	if err := checkCatalog(catalog); err != nil {
		return err
	}

	media, err := catalog.PlaylistItems(ctx, playlist)
	if err != nil {
		return fmt.Errorf("failed to fetch items of %s: %w", playlist.Title, err)
	}
	pl := formatter.NewPlaylist(playlist, media)
	if err := formatter.WriteCSV(e.fs, path, pl.Items); err != nil {
		return err
	}

	e.logger.Info("exported playlist", "playlist", playlist.Title, "items", len(pl.Items), "path", path)
	return nil
}

// collect fetches and serializes every playlist, preserving order. The first failure aborts the export.
func (e *PlaylistEngine) collect(ctx context.Context, catalog services.Catalog, playlists []models.Playlist, progress chan<- ProgressUpdate) ([]formatter.Playlist, error) {
	var done atomic.Int32
	mapper := iter.Mapper[models.Playlist, formatter.Playlist]{MaxGoroutines: e.workers}

	return mapper.MapErr(playlists, func(pl *models.Playlist) (formatter.Playlist, error) {
		if err := ctx.Err(); err != nil {
			return formatter.Playlist{}, err
		}
		media, err := catalog.PlaylistItems(ctx, *pl)
		if err != nil {
			return formatter.Playlist{}, fmt.Errorf("failed to fetch items of %s: %w", pl.Title, err)
		}
		e.sendProgress(progress, fetchItemsUpdate(int(done.Add(1)), len(playlists), *pl))
		return formatter.NewPlaylist(*pl, media), nil
	})
}
