package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/desertthunder/plexio/internal/formatter"
	"github.com/desertthunder/plexio/internal/models"
	"github.com/desertthunder/plexio/internal/shared"
	th "github.com/desertthunder/plexio/internal/testing"
	"github.com/spf13/afero"
)

func TestFindPlaylist(t *testing.T) {
	cat := th.NewFakeCatalog("Living Room")
	cat.AddPlaylist("Action", heat)
	second := cat.AddPlaylist("Drama")

	pl, err := FindPlaylist(context.Background(), cat, "Drama")
	if err != nil || pl.RatingKey != second.RatingKey {
		t.Fatalf("FindPlaylist() = %+v, %v", pl, err)
	}
	if _, err := FindPlaylist(context.Background(), cat, "Comedy"); !errors.Is(err, shared.ErrPlaylistNotFound) {
		t.Errorf("expected ErrPlaylistNotFound, got %v", err)
	}
}

func TestDeletePlaylists(t *testing.T) {
	t.Run("all deleted", func(t *testing.T) {
		cat := th.NewFakeCatalog("Living Room")
		a := cat.AddPlaylist("A")
		b := cat.AddPlaylist("B")

		res, err := newTestEngine(afero.NewMemMapFs()).DeletePlaylists(context.Background(), cat, []models.Playlist{a, b}, nil)
		if err != nil {
			t.Fatalf("DeletePlaylists() error = %v", err)
		}
		if res.Message() != "Selected playlists deleted successfully." {
			t.Errorf("Message() = %q", res.Message())
		}
		if !slices.Equal(cat.Deleted(), []string{"A", "B"}) {
			t.Errorf("Deleted() = %v", cat.Deleted())
		}
	})

	t.Run("failures are collected", func(t *testing.T) {
		cat := th.NewFakeCatalog("Living Room")
		a := cat.AddPlaylist("A")
		b := cat.AddPlaylist("B")
		c := cat.AddPlaylist("C")
		cat.DeleteErr = map[string]error{"B": errors.New("forbidden")}
		progress := make(chan ProgressUpdate, 5)

		res, err := newTestEngine(afero.NewMemMapFs()).DeletePlaylists(context.Background(), cat, []models.Playlist{a, b, c}, progress)
		if err != nil {
			t.Fatalf("DeletePlaylists() error = %v", err)
		}
		if res.Message() != "Some playlists could not be deleted:\nB: forbidden" {
			t.Errorf("Message() = %q", res.Message())
		}
		if !slices.Equal(res.Deleted, []string{"A", "C"}) {
			t.Errorf("Deleted = %v", res.Deleted)
		}
		if len(progress) != 3 {
			t.Errorf("expected 3 updates, got %d", len(progress))
		}
	})
}

func TestSortByYear(t *testing.T) {
	t.Run("SortItemsByYear", func(t *testing.T) {
		items := []formatter.Item{
			item("Ronin", 1998, "", ""),
			item("B-Side", 0, "", ""),
			item("Heat", 1995, "", ""),
			item("A-Side", 0, "", ""),
			item("Casino", 1995, "", ""),
		}
		SortItemsByYear(items)

		var got []string
		for _, it := range items {
			got = append(got, it.Title)
		}
		want := []string{"A-Side", "B-Side", "Casino", "Heat", "Ronin"}
		if !slices.Equal(got, want) {
			t.Errorf("order = %v, want %v", got, want)
		}
	})

	t.Run("rebuilds the playlist", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		cat := th.NewFakeCatalog("Living Room", heat, ronin, thief, collat)
		pl := cat.AddPlaylist("Mann", collat, heat, thief, ronin)

		res, err := newTestEngine(fs).SortByYear(context.Background(), cat, pl, nil)
		if err != nil {
			t.Fatalf("SortByYear() error = %v", err)
		}
		if res.Summary() != "Mann: added 4/4" {
			t.Errorf("Summary() = %q", res.Summary())
		}
		if !slices.Equal(cat.Deleted(), []string{"Mann"}) {
			t.Errorf("original should be deleted, got %v", cat.Deleted())
		}

		created := cat.Created()
		if len(created) != 1 {
			t.Fatalf("expected one created playlist, got %+v", created)
		}
		var years []int
		for _, m := range created[0].Items {
			years = append(years, m.Year)
		}
		if !slices.Equal(years, []int{1981, 1995, 1998, 2004}) {
			t.Errorf("years = %v", years)
		}

		tmp, _ := afero.Glob(fs, filepath.Join(os.TempDir(), "plexio-sort-*"))
		if len(tmp) != 0 {
			t.Errorf("temporary export not removed: %v", tmp)
		}
	})

	t.Run("delete failure aborts", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		cat := th.NewFakeCatalog("Living Room", heat)
		pl := cat.AddPlaylist("Mann", heat)
		cat.DeleteErr = map[string]error{"Mann": errors.New("forbidden")}

		_, err := newTestEngine(fs).SortByYear(context.Background(), cat, pl, nil)
		if err == nil || err.Error() != "failed to delete original playlist: forbidden" {
			t.Errorf("unexpected error %v", err)
		}
		if len(cat.Created()) != 0 {
			t.Error("nothing should be imported after a failed delete")
		}
	})
}

func TestResolveConflicts(t *testing.T) {
	newCatalog := func() *th.FakeCatalog {
		cat := th.NewFakeCatalog("Living Room")
		cat.AddPlaylist("Action")
		cat.AddPlaylist("Action (imported)")
		cat.AddPlaylist("Drama")
		return cat
	}
	renames := RenameMap{"Action": "Action", "Drama": "Drama", "Comedy": "Comedy"}

	t.Run("replace deletes existing", func(t *testing.T) {
		cat := newCatalog()
		got, err := newTestEngine(afero.NewMemMapFs()).ResolveConflicts(context.Background(), cat, renames, ConflictReplace)
		if err != nil {
			t.Fatalf("ResolveConflicts() error = %v", err)
		}
		if len(got) != 3 || got["Action"] != "Action" {
			t.Errorf("unexpected map %v", got)
		}
		if !slices.Equal(cat.Deleted(), []string{"Action", "Drama"}) {
			t.Errorf("Deleted() = %v", cat.Deleted())
		}
	})

	t.Run("rename picks a free name", func(t *testing.T) {
		cat := newCatalog()
		got, err := newTestEngine(afero.NewMemMapFs()).ResolveConflicts(context.Background(), cat, renames, ConflictRename)
		if err != nil {
			t.Fatalf("ResolveConflicts() error = %v", err)
		}
		want := RenameMap{"Action": "Action (imported 2)", "Drama": "Drama (imported)", "Comedy": "Comedy"}
		for k, v := range want {
			if got[k] != v {
				t.Errorf("got[%q] = %q, want %q", k, got[k], v)
			}
		}
		if len(cat.Deleted()) != 0 {
			t.Errorf("rename must not delete: %v", cat.Deleted())
		}
	})

	t.Run("skip drops conflicts", func(t *testing.T) {
		got, err := newTestEngine(afero.NewMemMapFs()).ResolveConflicts(context.Background(), newCatalog(), renames, ConflictSkip)
		if err != nil {
			t.Fatalf("ResolveConflicts() error = %v", err)
		}
		if len(got) != 1 || got["Comedy"] != "Comedy" {
			t.Errorf("unexpected map %v", got)
		}
	})

	t.Run("nothing left", func(t *testing.T) {
		_, err := newTestEngine(afero.NewMemMapFs()).ResolveConflicts(context.Background(), newCatalog(), RenameMap{"Drama": "Drama"}, ConflictSkip)
		if !errors.Is(err, ErrNothingToImport) {
			t.Errorf("expected ErrNothingToImport, got %v", err)
		}
	})

	t.Run("replace failure aborts", func(t *testing.T) {
		cat := newCatalog()
		cat.DeleteErr = map[string]error{"Drama": errors.New("forbidden")}
		if _, err := newTestEngine(afero.NewMemMapFs()).ResolveConflicts(context.Background(), cat, renames, ConflictReplace); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("ParseConflictAction", func(t *testing.T) {
		for _, s := range []string{"replace", "Rename", " skip "} {
			a, err := ParseConflictAction(s)
			if err != nil {
				t.Errorf("ParseConflictAction(%q) error = %v", s, err)
			}
			if a.String() == "" {
				t.Errorf("ParseConflictAction(%q) = %v", s, a)
			}
		}
		if _, err := ParseConflictAction("merge"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
