// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/plexio/internal/models"
	"github.com/desertthunder/plexio/internal/shared"
	"github.com/spf13/afero"
)

// CreatedPlaylist records a CreatePlaylist call on [FakeCatalog].
type CreatedPlaylist struct {
	Name  string
	Items []models.Media
}

// FakeCatalog is an in-memory test double for [services.Catalog].
//
// Library holds the searchable "Movies" section; Items holds playlist contents keyed by playlist rating key.
// Every call is recorded in order so tests can assert on exactly what the engine asked for.
type FakeCatalog struct {
	ServerName string
	Lists      []models.Playlist
	Items      map[string][]models.Media
	Library    []models.Media

	PlaylistsErr error
	ItemsErr     error
	FetchErr     error
	SectionErr   error
	SearchErr    error
	CreateErr    error
	DeleteErr    map[string]error // by playlist title

	// OnFetch runs before every FetchItem; tests use it to cancel mid-import.
	OnFetch func(ratingKey string)

	mu      sync.Mutex
	calls   []string
	created []CreatedPlaylist
	deleted []string
	nextKey int
}

// NewFakeCatalog returns a catalog named name whose Movies section holds library.
func NewFakeCatalog(name string, library ...models.Media) *FakeCatalog {
	return &FakeCatalog{ServerName: name, Library: library, Items: map[string][]models.Media{}, nextKey: 1000}
}

// AddPlaylist registers a playlist with the given items and returns its handle.
func (f *FakeCatalog) AddPlaylist(title string, items ...models.Media) models.Playlist {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.newPlaylist(title, items)
}

func (f *FakeCatalog) newPlaylist(title string, items []models.Media) models.Playlist {
	f.nextKey++
	if f.Items == nil {
		f.Items = map[string][]models.Media{}
	}
	pl := models.Playlist{RatingKey: strconv.Itoa(f.nextKey), Title: title, Type: "video", ItemCount: len(items)}
	f.Lists = append(f.Lists, pl)
	f.Items[pl.RatingKey] = slices.Clone(items)
	return pl
}

func (f *FakeCatalog) record(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

// Calls returns every recorded call, e.g. "FetchItem 7" or "Search Movies Heat 1995".
func (f *FakeCatalog) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// Created returns the playlists created so far.
func (f *FakeCatalog) Created() []CreatedPlaylist {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.created)
}

// Deleted returns the titles of deleted playlists.
func (f *FakeCatalog) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.deleted)
}

func (f *FakeCatalog) Name() string { return f.ServerName }

func (f *FakeCatalog) Playlists(context.Context) ([]models.Playlist, error) {
	f.record("Playlists")
	if f.PlaylistsErr != nil {
		return nil, f.PlaylistsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.Lists), nil
}

func (f *FakeCatalog) PlaylistItems(_ context.Context, pl models.Playlist) ([]models.Media, error) {
	f.record("PlaylistItems %s", pl.Title)
	if f.ItemsErr != nil {
		return nil, f.ItemsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	items, ok := f.Items[pl.RatingKey]
	if !ok {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, pl.Title)
	}
	return slices.Clone(items), nil
}

func (f *FakeCatalog) DeletePlaylist(_ context.Context, pl models.Playlist) error {
	f.record("DeletePlaylist %s", pl.Title)
	if err, ok := f.DeleteErr[pl.Title]; ok {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Lists = slices.DeleteFunc(f.Lists, func(p models.Playlist) bool { return p.RatingKey == pl.RatingKey })
	delete(f.Items, pl.RatingKey)
	f.deleted = append(f.deleted, pl.Title)
	return nil
}

func (f *FakeCatalog) FetchItem(_ context.Context, ratingKey string) (*models.Media, error) {
	if f.OnFetch != nil {
		f.OnFetch(ratingKey)
	}
	f.record("FetchItem %s", ratingKey)
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	for _, m := range f.Library {
		if m.RatingKey == ratingKey {
			return &m, nil
		}
	}
	return nil, fmt.Errorf("%w: item %s", shared.ErrNotFound, ratingKey)
}

func (f *FakeCatalog) Section(_ context.Context, name string) (*models.Section, error) {
	f.record("Section %s", name)
	if f.SectionErr != nil {
		return nil, f.SectionErr
	}
	return &models.Section{Key: "1", Title: name, Type: "movie"}, nil
}

// Search matches titles case-insensitively by substring, like the Plex title filter.
func (f *FakeCatalog) Search(_ context.Context, section models.Section, title string, year int) ([]models.Media, error) {
	f.record("Search %s %s %d", section.Title, title, year)
	if f.SearchErr != nil {
		return nil, f.SearchErr
	}
	var out []models.Media
	for _, m := range f.Library {
		if !strings.Contains(strings.ToLower(m.Title), strings.ToLower(title)) {
			continue
		}
		if year > 0 && m.Year != year {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// CreatePlaylist accepts empty item lists, unlike a real server.
func (f *FakeCatalog) CreatePlaylist(_ context.Context, name string, items []models.Media) (*models.Playlist, error) {
	f.record("CreatePlaylist %s %d", name, len(items))
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, CreatedPlaylist{Name: name, Items: slices.Clone(items)})
	pl := f.newPlaylist(name, items)
	return &pl, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
	calls    int
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	m.calls++
	return m.response, m.err
}

// Calls returns how many requests reached the transport.
func (m *MockRoundTripper) Calls() int { return m.calls }

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	if ok, _ := afero.Exists(fs, path); !ok {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertFileMissing(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	if ok, _ := afero.Exists(fs, path); ok {
		t.Errorf("File should not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	content, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func MustWriteFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}
