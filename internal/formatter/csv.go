package formatter

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/desertthunder/plexio/internal/shared"
	"github.com/spf13/afero"
)

// CSVHeader is the column order of a single-playlist CSV export.
var CSVHeader = []string{"title", "year", "type", "imdb_id", "plex_rating_key"}

// EncodeCSV converts items to CSV, header row first. Null fields are written as empty cells.
func EncodeCSV(items []Item) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(CSVHeader); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, item := range items {
		year := ""
		if item.Year != nil {
			year = strconv.Itoa(*item.Year)
		}
		record := []string{item.Title, year, item.Type, item.ExternalID(), string(item.RatingKey)}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteCSV writes items to path as CSV.
func WriteCSV(fs afero.Fs, path string, items []Item) error {
	data, err := EncodeCSV(items)
	if err != nil {
		return err
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrIO, err)
	}
	return nil
}

// DecodeCSV reads items from r. Columns are located by header name, so their order does not matter
// and unknown columns are ignored. Empty cells become null.
func DecodeCSV(r io.Reader) ([]Item, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []Item{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrParse, err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	if _, ok := cols["title"]; !ok {
		return nil, fmt.Errorf("%w: CSV has no title column", shared.ErrParse)
	}
	cell := func(record []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	items := []Item{}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrParse, err)
		}

		item := Item{
			Title:     cell(record, "title"),
			Type:      cell(record, "type"),
			RatingKey: RatingKey(cell(record, "plex_rating_key")),
		}
		if y := cell(record, "year"); y != "" {
			year, err := strconv.Atoi(y)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: invalid year %q", shared.ErrParse, line, y)
			}
			item.Year = &year
		}
		if id := cell(record, "imdb_id"); id != "" {
			item.IMDbID = &id
		}
		items = append(items, item)
	}
	return items, nil
}
