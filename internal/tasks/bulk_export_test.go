package tasks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/plexio/internal/formatter"
	"github.com/desertthunder/plexio/internal/models"
	"github.com/desertthunder/plexio/internal/shared"
	th "github.com/desertthunder/plexio/internal/testing"
	"github.com/goccy/go-json"
	"github.com/spf13/afero"
)

func TestBulkExport(t *testing.T) {
	tests := []struct {
		name          string
		format        formatter.Format
		titles        []string
		wantSuccess   int
		wantFailed    int
		wantFiles     []string
		validateFiles func(t *testing.T, fs afero.Fs)
	}{
		{
			name:        "single playlist json export",
			format:      formatter.FormatJSON,
			titles:      []string{"Action"},
			wantSuccess: 1,
			wantFiles:   []string{"/exports/Action.json"},
			validateFiles: func(t *testing.T, fs afero.Fs) {
				names, err := formatter.PreviewNames(fs, "/exports/Action.json")
				if err != nil || len(names) != 1 || names[0] != "Action" {
					t.Errorf("PreviewNames() = %v, %v", names, err)
				}
			},
		},
		{
			name:        "multiple playlists csv export",
			format:      formatter.FormatCSV,
			titles:      []string{"Action", "Sci/Fi", "Action"},
			wantSuccess: 3,
			wantFiles:   []string{"/exports/Action.csv", "/exports/Sci_Fi.csv", "/exports/Action (2).csv"},
			validateFiles: func(t *testing.T, fs afero.Fs) {
				content := th.MustReadFile(t, fs, "/exports/Sci_Fi.csv")
				if !strings.HasPrefix(content, "title,year,type,imdb_id,plex_rating_key\n") {
					t.Errorf("unexpected CSV:\n%s", content)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			cat := th.NewFakeCatalog("Living Room")
			var pls []models.Playlist
			for _, title := range tt.titles {
				pls = append(pls, cat.AddPlaylist(title, heat, ronin))
			}

			progressCh := make(chan ProgressUpdate, 100)
			result, err := newTestEngine(fs).BulkExport(context.Background(), progressCh, cat, pls, BulkExportOpts{
				Format:     tt.format,
				OutputDir:  "/exports",
				NumWorkers: 2,
			})
			close(progressCh)
			if err != nil {
				t.Fatalf("BulkExport() error = %v", err)
			}

			if result.TotalPlaylists != len(tt.titles) {
				t.Errorf("TotalPlaylists = %d, want %d", result.TotalPlaylists, len(tt.titles))
			}
			if result.SuccessfulExports != tt.wantSuccess || result.FailedExports != tt.wantFailed {
				t.Errorf("success/failed = %d/%d, want %d/%d", result.SuccessfulExports, result.FailedExports, tt.wantSuccess, tt.wantFailed)
			}
			for i, want := range tt.wantFiles {
				if result.Results[i].File != want {
					t.Errorf("Results[%d].File = %s, want %s", i, result.Results[i].File, want)
				}
				th.AssertFileExists(t, fs, want)
			}

			manifestPath := filepath.Join("/exports", "export_manifest.json")
			if result.ManifestPath != manifestPath {
				t.Errorf("ManifestPath = %q", result.ManifestPath)
			}
			var manifest BulkExportResult
			if err := json.Unmarshal([]byte(th.MustReadFile(t, fs, manifestPath)), &manifest); err != nil {
				t.Fatalf("failed to parse manifest: %v", err)
			}
			if manifest.Format != tt.format.String() || manifest.PlexServer != "Living Room" || len(manifest.Results) != len(tt.titles) {
				t.Errorf("unexpected manifest %+v", manifest)
			}

			if tt.validateFiles != nil {
				tt.validateFiles(t, fs)
			}
		})
	}
}

func TestBulkExport_PartialFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	cat := th.NewFakeCatalog("Living Room")
	ok := cat.AddPlaylist("Action", heat)
	gone := models.Playlist{RatingKey: "404", Title: "Deleted Meanwhile"}

	result, err := newTestEngine(fs).BulkExport(context.Background(), nil, cat, []models.Playlist{ok, gone}, BulkExportOpts{OutputDir: "/exports"})
	if err != nil {
		t.Fatalf("BulkExport() error = %v", err)
	}
	if result.SuccessfulExports != 1 || result.FailedExports != 1 {
		t.Errorf("success/failed = %d/%d", result.SuccessfulExports, result.FailedExports)
	}
	if result.Results[1].Success || !strings.Contains(result.Results[1].Error, "failed to fetch items") {
		t.Errorf("unexpected failure result %+v", result.Results[1])
	}
}

func TestBulkExport_Errors(t *testing.T) {
	t.Run("no session", func(t *testing.T) {
		_, err := newTestEngine(afero.NewMemMapFs()).BulkExport(context.Background(), nil, nil, nil, BulkExportOpts{})
		if !errors.Is(err, shared.ErrSessionUnavailable) {
			t.Errorf("expected ErrSessionUnavailable, got %v", err)
		}
	})

	t.Run("read-only output", func(t *testing.T) {
		cat := th.NewFakeCatalog("Living Room")
		pl := cat.AddPlaylist("Action", heat)
		e := newTestEngine(afero.NewReadOnlyFs(afero.NewMemMapFs()))

		_, err := e.BulkExport(context.Background(), nil, cat, []models.Playlist{pl}, BulkExportOpts{OutputDir: "/exports"})
		if !errors.Is(err, shared.ErrIO) {
			t.Errorf("expected ErrIO, got %v", err)
		}
	})

	t.Run("default output directory", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		cat := th.NewFakeCatalog("Living Room")
		pl := cat.AddPlaylist("Action", heat)

		result, err := newTestEngine(fs).BulkExport(context.Background(), nil, cat, []models.Playlist{pl}, BulkExportOpts{})
		if err != nil {
			t.Fatalf("BulkExport() error = %v", err)
		}
		want := fmt.Sprintf("plexio_export_%d", fixedTS.Unix())
		if result.OutputDirectory != want {
			t.Errorf("OutputDirectory = %s, want %s", result.OutputDirectory, want)
		}
	})
}

func TestSafeFileName(t *testing.T) {
	tc := map[string]string{
		"Action":         "Action",
		"Sci/Fi":         "Sci_Fi",
		`a<b>c:"d"|e?*`:  "a_b_c_d_e_",
		"  ":             "playlist",
		"..":             "playlist",
		"Kids' Movies ✨": "Kids' Movies ✨",
	}
	for in, want := range tc {
		if got := SafeFileName(in); got != want {
			t.Errorf("SafeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}
