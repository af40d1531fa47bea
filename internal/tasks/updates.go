package tasks

import (
	"fmt"

	"github.com/desertthunder/plexio/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchPlaylists Phase = iota
	FetchItems
	WriteDocument
	ReadDocument
	MatchItems
	CreatePlaylist
	DeletePlaylist
	SortPlaylist
	ExportPlaylist
)

func (p Phase) String() string {
	switch p {
	case FetchPlaylists:
		return "fetch_playlists"
	case FetchItems:
		return "fetch_items"
	case WriteDocument:
		return "write_document"
	case ReadDocument:
		return "read_document"
	case MatchItems:
		return "match_items"
	case CreatePlaylist:
		return "create_playlist"
	case DeletePlaylist:
		return "delete_playlist"
	case SortPlaylist:
		return "sort_playlist"
	case ExportPlaylist:
		return "export_playlist"
	default:
		return ""
	}
}

func fetchItemsUpdate(step, total int, pl models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchItems,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetched %s", step, total, pl.Title),
		Data:    pl,
	}
}

func writeDocumentUpdate(path string, playlists int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteDocument,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Writing %d playlist(s) to %s...", playlists, path),
	}
}

func readDocumentUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReadDocument,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Reading %s...", path),
	}
}

func matchItemUpdate(step, total int, playlist, title string, matched bool) ProgressUpdate {
	mark := "✓"
	if !matched {
		mark = "✗"
	}
	return ProgressUpdate{
		Phase:   MatchItems,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s: %s", step, total, mark, playlist, title),
	}
}

func createPlaylistUpdate(outcome Outcome) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    outcome.Matched,
		Total:   outcome.Total,
		Message: outcome.String(),
		Data:    outcome,
	}
}

func deletePlaylistUpdate(step, total int, title string, err error) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ Deleted %s", step, total, title)
	if err != nil {
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, title, err)
	}
	return ProgressUpdate{
		Phase:   DeletePlaylist,
		Step:    step,
		Total:   total,
		Message: msg,
	}
}

func sortPlaylistUpdate(title string, items int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SortPlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Sorting %s (%d items) by year...", title, items),
	}
}

func exportCompletedUpdate(step, total int, name string, path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%s)", step, total, name, path),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
