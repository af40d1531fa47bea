package formatter

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/plexio/internal/shared"
	"github.com/goccy/go-json"
	"github.com/spf13/afero"
)

// MissingFileName is the name of the missing-items report written after an import.
const MissingFileName = "Missing Movies.json"

// MissingWarning is shown after an import that left a non-empty missing report.
const MissingWarning = "Some movies were not imported because they were not found on your Plex server. " +
	"A list of missing movies has been saved as 'Missing Movies.json'."

// MissingPath returns the report path inside dir.
func MissingPath(dir string) string {
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, MissingFileName)
}

// WriteMissing writes items as a JSON array to the report in dir.
//
// With no items, any stale report is removed instead and the returned path is empty.
func WriteMissing(fs afero.Fs, dir string, items []Item) (string, error) {
	path := MissingPath(dir)
	if len(items) == 0 {
		if err := fs.Remove(path); err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %v", shared.ErrIO, err)
		}
		return "", nil
	}

	data, err := shared.MarshalJSON(items, true)
	if err != nil {
		return "", fmt.Errorf("failed to encode missing items: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrIO, err)
	}
	return path, nil
}

// ReadMissing loads the report in dir. A missing file yields no items and no error.
func ReadMissing(fs afero.Fs, dir string) ([]Item, error) {
	data, err := afero.ReadFile(fs, MissingPath(dir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrIO, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrParse, err)
	}
	return items, nil
}

// CheckMissing reads the report in dir and returns [MissingWarning] when it lists anything.
// An existing but empty report is removed.
func CheckMissing(fs afero.Fs, dir string) (string, error) {
	items, err := ReadMissing(fs, dir)
	if err != nil {
		return "", err
	}
	if len(items) > 0 {
		return MissingWarning, nil
	}
	if err := fs.Remove(MissingPath(dir)); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %v", shared.ErrIO, err)
	}
	return "", nil
}

// MissingReportMarkdown renders items as a Markdown table.
func MissingReportMarkdown(items []Item) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Missing Movies\n\n")
	fmt.Fprintf(&buf, "**Items**: %d\n\n", len(items))
	if len(items) == 0 {
		return buf.Bytes()
	}

	buf.WriteString("| # | Title | Year | Type | IMDb | Rating Key |\n")
	buf.WriteString("|---|-------|------|------|------|------------|\n")
	for i, item := range items {
		fmt.Fprintf(&buf, "| %d | %s | %s | %s | %s | %s |\n",
			i+1, escapeCell(item.Title), yearString(item), escapeCell(item.Type), escapeCell(item.ExternalID()), item.RatingKey)
	}
	return buf.Bytes()
}

// MissingReportText renders items as a numbered plain-text list.
func MissingReportText(items []Item) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Missing items: %d\n\n", len(items))
	for i, item := range items {
		fmt.Fprintf(&buf, "%d. %s", i+1, item.Title)
		if y := yearString(item); y != "" {
			fmt.Fprintf(&buf, " (%s)", y)
		}
		if id := item.ExternalID(); id != "" {
			fmt.Fprintf(&buf, " [%s]", id)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func yearString(item Item) string {
	if item.Year == nil {
		return ""
	}
	return fmt.Sprint(*item.Year)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
