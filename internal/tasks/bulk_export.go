package tasks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/plexio/internal/formatter"
	"github.com/desertthunder/plexio/internal/models"
	"github.com/desertthunder/plexio/internal/services"
	"github.com/desertthunder/plexio/internal/shared"
	"github.com/spf13/afero"
)

// BulkExportOpts contains configuration for one-file-per-playlist exports.
type BulkExportOpts struct {
	Format     formatter.Format // JSON document or CSV per playlist
	OutputDir  string           // Base output directory (default: plexio_export_{epoch})
	NumWorkers int              // Concurrent workers (default: engine workers, at most 10)
}

// PlaylistExportJob is one playlist queued for export.
type PlaylistExportJob struct {
	Index    int
	Playlist models.Playlist
	File     string
}

type indexedExportResult struct {
	index int
	res   PlaylistExportResult
}

// PlaylistExportResult is the outcome of exporting one playlist.
type PlaylistExportResult struct {
	Playlist string `json:"playlist"`
	File     string `json:"file,omitempty"`
	Items    int    `json:"items"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// BulkExportResult summarizes a bulk export; it is also written as the manifest.
type BulkExportResult struct {
	ExportDate        string                 `json:"export_date"`
	PlexServer        string                 `json:"plex_server"`
	Format            string                 `json:"format"`
	OutputDirectory   string                 `json:"output_directory"`
	TotalPlaylists    int                    `json:"total_playlists"`
	SuccessfulExports int                    `json:"successful_exports"`
	FailedExports     int                    `json:"failed_exports"`
	Results           []PlaylistExportResult `json:"results"`
	ManifestPath      string                 `json:"-"`
}

// BulkExport writes every playlist to its own file in opts.OutputDir, followed by export_manifest.json.
//
// A worker pool exports playlists concurrently. Failures are recorded per playlist and do not stop the
// others. Results keep the input order.
func (e *PlaylistEngine) BulkExport(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	catalog services.Catalog,
	playlists []models.Playlist,
	opts BulkExportOpts,
) (*BulkExportResult, error) {
	if err := checkCatalog(catalog); err != nil {
		return nil, err
	}

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("plexio_export_%d", e.now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = e.workers
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}

	if err := e.fs.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create output directory: %v", shared.ErrIO, err)
	}

	result := &BulkExportResult{
		ExportDate:      e.now().Format(time.RFC3339),
		PlexServer:      catalog.Name(),
		Format:          opts.Format.String(),
		OutputDirectory: opts.OutputDir,
		TotalPlaylists:  len(playlists),
		Results:         make([]PlaylistExportResult, len(playlists)),
	}

	jobs := make(chan PlaylistExportJob, len(playlists))
	results := make(chan indexedExportResult, len(playlists))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					return
				}
				results <- indexedExportResult{job.Index, e.exportSinglePlaylist(ctx, catalog, job, opts)}
			}
		}()
	}

	ext := ".json"
	if opts.Format == formatter.FormatCSV {
		ext = ".csv"
	}
	names := make(map[string]int, len(playlists))
	for i, pl := range playlists {
		base := SafeFileName(pl.Title)
		names[base]++
		if n := names[base]; n > 1 {
			base = fmt.Sprintf("%s (%d)", base, n)
		}
		jobs <- PlaylistExportJob{Index: i, Playlist: pl, File: filepath.Join(opts.OutputDir, base+ext)}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for r := range results {
		completed++
		result.Results[r.index] = r.res
		if r.res.Success {
			result.SuccessfulExports++
			e.sendProgress(prog, exportCompletedUpdate(completed, len(playlists), r.res.Playlist, r.res.File))
		} else {
			result.FailedExports++
			e.sendProgress(prog, exportFailedUpdate(completed, len(playlists), r.res.Playlist, errors.New(r.res.Error)))
		}
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	data, err := shared.MarshalJSON(result, true)
	if err != nil {
		return result, fmt.Errorf("export completed but failed to encode manifest: %w", err)
	}
	if err := afero.WriteFile(e.fs, manifestPath, data, 0o644); err != nil {
		return result, fmt.Errorf("%w: export completed but failed to write manifest: %v", shared.ErrIO, err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

// exportSinglePlaylist exports one playlist to job.File.
func (e *PlaylistEngine) exportSinglePlaylist(ctx context.Context, catalog services.Catalog, job PlaylistExportJob, opts BulkExportOpts) PlaylistExportResult {
	pl := job.Playlist
	result := PlaylistExportResult{Playlist: pl.Title}

	media, err := catalog.PlaylistItems(ctx, pl)
	if err != nil {
		result.Error = fmt.Sprintf("failed to fetch items: %v", err)
		return result
	}
	serialized := formatter.NewPlaylist(pl, media)
	result.Items = len(serialized.Items)

	switch opts.Format {
	case formatter.FormatCSV:
		if err := formatter.WriteCSV(e.fs, job.File, serialized.Items); err != nil {
			result.Error = fmt.Sprintf("CSV export failed: %v", err)
			return result
		}
	default:
		doc := formatter.NewDocument(catalog.Name(), []formatter.Playlist{serialized}, e.now())
		if err := formatter.WriteDocument(e.fs, job.File, doc); err != nil {
			result.Error = fmt.Sprintf("JSON export failed: %v", err)
			return result
		}
	}
	result.File = job.File
	result.Success = true
	return result
}

var unsafeFileChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]+`)

// SafeFileName replaces characters that are not allowed in file names.
// The result keeps the playlist name readable, so a CSV re-imports under the same name when nothing was replaced.
func SafeFileName(name string) string {
	name = strings.TrimSpace(unsafeFileChars.ReplaceAllString(name, "_"))
	if name == "" || name == "." || name == ".." {
		return "playlist"
	}
	return name
}
