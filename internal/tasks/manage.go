package tasks

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/desertthunder/plexio/internal/formatter"
	"github.com/desertthunder/plexio/internal/models"
	"github.com/desertthunder/plexio/internal/services"
	"github.com/desertthunder/plexio/internal/shared"
	"github.com/spf13/afero"
)

// ErrNothingToImport is returned by [PlaylistEngine.ResolveConflicts] when every playlist was skipped.
var ErrNothingToImport = errors.New("no playlists to import after resolving conflicts")

// FindPlaylist returns the first playlist on catalog titled name.
func FindPlaylist(ctx context.Context, catalog services.Catalog, name string) (*models.Playlist, error) {
	if err := checkCatalog(catalog); err != nil {
		return nil, err
	}
	playlists, err := catalog.Playlists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlists: %w", err)
	}
	for _, pl := range playlists {
		if pl.Title == name {
			return &pl, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", shared.ErrPlaylistNotFound, name)
}

// DeleteResult collects the outcome of a bulk delete.
type DeleteResult struct {
	Deleted []string
	Errors  []string // "<title>: <error>"
}

// Message renders the result the way it is shown to the user.
func (r *DeleteResult) Message() string {
	if len(r.Errors) > 0 {
		return "Some playlists could not be deleted:\n" + strings.Join(r.Errors, "\n")
	}
	return "Selected playlists deleted successfully."
}

// DeletePlaylists deletes each playlist, continuing past failures.
func (e *PlaylistEngine) DeletePlaylists(ctx context.Context, catalog services.Catalog, playlists []models.Playlist, progress chan<- ProgressUpdate) (*DeleteResult, error) {
	if err := checkCatalog(catalog); err != nil {
		return nil, err
	}

	result := &DeleteResult{}
	for i, pl := range playlists {
		err := catalog.DeletePlaylist(ctx, pl)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", pl.Title, err))
			e.logger.Error("failed to delete playlist", "playlist", pl.Title, "error", err)
		} else {
			result.Deleted = append(result.Deleted, pl.Title)
			e.logger.Info("deleted playlist", "playlist", pl.Title)
		}
		e.sendProgress(progress, deletePlaylistUpdate(i+1, len(playlists), pl.Title, err))
	}
	return result, nil
}

// SortItemsByYear orders items by (year, title), treating a missing year as 0. Ties keep their order.
func SortItemsByYear(items []formatter.Item) {
	slices.SortStableFunc(items, func(a, b formatter.Item) int {
		return cmp.Or(cmp.Compare(a.YearValue(), b.YearValue()), cmp.Compare(a.Title, b.Title))
	})
}

// SortByYear rebuilds a playlist with its items ordered by release year.
//
// The playlist is exported to a temporary document, sorted, deleted from the server and re-imported under
// the same name. A failed delete aborts before anything is imported. The temporary document is removed.
func (e *PlaylistEngine) SortByYear(ctx context.Context, catalog services.Catalog, playlist models.Playlist, progress chan<- ProgressUpdate) (*ImportResult, error) {
	if err := checkCatalog(catalog); err != nil {
		return nil, err
	}

	tmp, err := afero.TempFile(e.fs, "", "plexio-sort-*.json")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrIO, err)
	}
	path := tmp.Name()
	_ = tmp.Close()
	defer func() {
		if err := e.fs.Remove(path); err != nil {
			e.logger.Warn("failed to remove temporary export", "path", path, "error", err)
		}
	}()

	if err := e.Export(ctx, catalog, []models.Playlist{playlist}, path, progress); err != nil {
		return nil, err
	}

	doc, err := formatter.ReadDocument(e.fs, path)
	if err != nil {
		return nil, err
	}
	if len(doc.Playlists) != 1 {
		return nil, fmt.Errorf("%w: expected one playlist in %s", shared.ErrParse, path)
	}
	SortItemsByYear(doc.Playlists[0].Items)
	e.sendProgress(progress, sortPlaylistUpdate(playlist.Title, len(doc.Playlists[0].Items)))
	if err := formatter.WriteDocument(e.fs, path, doc); err != nil {
		return nil, err
	}

	if err := catalog.DeletePlaylist(ctx, playlist); err != nil {
		return nil, fmt.Errorf("failed to delete original playlist: %w", err)
	}

	return e.Import(ctx, catalog, path, IdentityRenames(doc.Playlists[0].Name), ImportOpts{Updates: progress})
}

// ConflictAction says what to do when an import target already exists on the server.
type ConflictAction int

const (
	ConflictReplace ConflictAction = iota // delete the existing playlist
	ConflictRename                        // import under "<name> (imported)"
	ConflictSkip                          // leave the playlist out of the import
)

func (a ConflictAction) String() string {
	switch a {
	case ConflictReplace:
		return "replace"
	case ConflictRename:
		return "rename"
	case ConflictSkip:
		return "skip"
	default:
		return ""
	}
}

// ParseConflictAction parses "replace", "rename" or "skip".
func ParseConflictAction(s string) (ConflictAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "replace":
		return ConflictReplace, nil
	case "rename":
		return ConflictRename, nil
	case "skip":
		return ConflictSkip, nil
	default:
		return 0, fmt.Errorf("%w: on-conflict must be replace, rename or skip, got %q", shared.ErrInvalidArgument, s)
	}
}

// ResolveConflicts returns a copy of renames in which no target collides with an existing playlist.
//
// Colliding targets are handled per action. Renamed targets also avoid names already chosen for other
// playlists in the same import. Returns [ErrNothingToImport] when the resulting map is empty.
func (e *PlaylistEngine) ResolveConflicts(ctx context.Context, catalog services.Catalog, renames RenameMap, action ConflictAction) (RenameMap, error) {
	if err := checkCatalog(catalog); err != nil {
		return nil, err
	}

	existing, err := catalog.Playlists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlists: %w", err)
	}
	taken := make(map[string]models.Playlist, len(existing))
	for _, pl := range existing {
		if _, dup := taken[pl.Title]; !dup {
			taken[pl.Title] = pl
		}
	}

	resolved := make(RenameMap, len(renames))
	used := make(map[string]bool, len(renames))
	for _, original := range slices.Sorted(maps.Keys(renames)) {
		target := renames[original]
		pl, conflict := taken[target]
		if !conflict {
			resolved[original] = target
			used[target] = true
			continue
		}

		switch action {
		case ConflictReplace:
			if err := catalog.DeletePlaylist(ctx, pl); err != nil {
				return nil, fmt.Errorf("failed to delete existing playlist %q: %w", target, err)
			}
			delete(taken, target)
			resolved[original] = target
			used[target] = true
			e.logger.Info("replacing existing playlist", "playlist", target)
		case ConflictRename:
			name := uniqueName(target, func(n string) bool {
				_, exists := taken[n]
				return exists || used[n]
			})
			resolved[original] = name
			used[name] = true
			e.logger.Info("renaming imported playlist", "from", target, "to", name)
		case ConflictSkip:
			e.logger.Info("skipping existing playlist", "playlist", target)
		}
	}

	if len(resolved) == 0 {
		return nil, ErrNothingToImport
	}
	return resolved, nil
}

func uniqueName(base string, exists func(string) bool) string {
	name := base + " (imported)"
	for n := 2; exists(name); n++ {
		name = fmt.Sprintf("%s (imported %d)", base, n)
	}
	return name
}
