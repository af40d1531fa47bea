// package formatter reads and writes the playlist interchange formats (JSON document, single-playlist CSV)
// and renders the missing-items report as Markdown or plain text
package formatter

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/plexio/internal/models"
	"github.com/desertthunder/plexio/internal/shared"
	"github.com/goccy/go-json"
	"github.com/spf13/afero"
)

// Format identifies an interchange file type by extension.
type Format int

const (
	FormatJSON Format = iota
	FormatCSV
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatCSV:
		return "csv"
	default:
		return "unknown"
	}
}

// DetectFormat picks the format from the path's extension, case-insensitively.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return 0, fmt.Errorf("%w: unsupported file type %q", shared.ErrParse, filepath.Ext(path))
	}
}

// RatingKey is a catalog rating key as stored in an export.
//
// Plex hands out numeric keys, so they are written as JSON numbers when possible. Both strings and
// numbers are accepted on input; the empty key is written as null.
type RatingKey string

func (k RatingKey) MarshalJSON() ([]byte, error) {
	if k == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseUint(string(k), 10, 64); err == nil {
		return []byte(k), nil
	}
	return json.Marshal(string(k))
}

func (k *RatingKey) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*k = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*k = RatingKey(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("plex_rating_key must be a string or integer: %w", err)
		}
		if _, err := n.Int64(); err != nil {
			return fmt.Errorf("plex_rating_key must be a string or integer, got %s", n)
		}
		*k = RatingKey(n.String())
	}
	return nil
}

// Item is one serialized playlist entry.
type Item struct {
	Title     string    `json:"title"`
	Year      *int      `json:"year"`
	Type      string    `json:"type"`
	IMDbID    *string   `json:"imdb_id"`
	RatingKey RatingKey `json:"plex_rating_key"`
}

// NewItem serializes a catalog item. A zero year and an empty GUID are written as null.
func NewItem(m models.Media) Item {
	item := Item{Title: m.Title, Type: m.Type, RatingKey: RatingKey(m.RatingKey)}
	if m.Year != 0 {
		year := m.Year
		item.Year = &year
	}
	if m.GUID != "" {
		id := m.ExternalID()
		item.IMDbID = &id
	}
	return item
}

// YearValue returns the year, or 0 when absent.
func (i Item) YearValue() int {
	if i.Year == nil {
		return 0
	}
	return *i.Year
}

// ExternalID returns the imdb id, or "" when absent.
func (i Item) ExternalID() string {
	if i.IMDbID == nil {
		return ""
	}
	return *i.IMDbID
}

// Playlist is one serialized playlist.
type Playlist struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Items       []Item `json:"items"`
}

// NewPlaylist serializes a catalog playlist and its items.
func NewPlaylist(pl models.Playlist, media []models.Media) Playlist {
	items := make([]Item, 0, len(media))
	for _, m := range media {
		items = append(items, NewItem(m))
	}
	return Playlist{Name: pl.Title, Description: pl.Summary, Items: items}
}

// Document is the JSON export document.
type Document struct {
	ExportDate string     `json:"export_date"`
	PlexServer string     `json:"plex_server"`
	Playlists  []Playlist `json:"playlists"`
}

// NewDocument wraps playlists with the export timestamp and the server's display name.
func NewDocument(server string, playlists []Playlist, now time.Time) *Document {
	if playlists == nil {
		playlists = []Playlist{}
	}
	return &Document{ExportDate: now.Format(time.RFC3339), PlexServer: server, Playlists: playlists}
}

// WriteDocument writes doc to path as indented JSON.
func WriteDocument(fs afero.Fs, path string, doc *Document) error {
	data, err := shared.MarshalJSON(doc, true)
	if err != nil {
		return fmt.Errorf("failed to encode export document: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrIO, err)
	}
	return nil
}

// ReadDocument loads an interchange file.
//
// A CSV file becomes a document holding one playlist named after the file's base name, with no
// export date or server name.
func ReadDocument(fs afero.Fs, path string) (*Document, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrIO, err)
	}

	if format == FormatCSV {
		items, err := DecodeCSV(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return &Document{Playlists: []Playlist{{Name: BaseName(path), Items: items}}}, nil
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrParse, err)
	}
	return &doc, nil
}

// PreviewNames lists the playlist names in path, in document order, without validating items.
func PreviewNames(fs afero.Fs, path string) ([]string, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	if format == FormatCSV {
		return []string{BaseName(path)}, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrIO, err)
	}

	var preview struct {
		Playlists []struct {
			Name *string `json:"name"`
		} `json:"playlists"`
	}
	if err := json.Unmarshal(data, &preview); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrParse, err)
	}

	names := make([]string, 0, len(preview.Playlists))
	for i, pl := range preview.Playlists {
		if pl.Name == nil {
			return nil, fmt.Errorf("%w: playlist %d has no name", shared.ErrParse, i)
		}
		names = append(names, *pl.Name)
	}
	return names, nil
}

// BaseName returns the file name of path without directory or extension.
func BaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
