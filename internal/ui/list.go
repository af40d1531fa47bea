package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/plexio/internal/models"
)

var _ list.Item = playlistItem{}

// playlistItem wraps [models.Playlist] to implement [list.Item].
type playlistItem struct {
	playlist models.Playlist
	selected bool
}

func (i playlistItem) FilterValue() string { return i.playlist.Title }

func (i playlistItem) Title() string {
	if i.selected {
		return "[x] " + i.playlist.Title
	}
	return "[ ] " + i.playlist.Title
}

func (i playlistItem) Description() string {
	desc := fmt.Sprintf("%d items", i.playlist.ItemCount)
	if i.playlist.Smart {
		desc += " • smart"
	}
	if i.playlist.Summary != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.playlist.Summary)
	}
	return desc
}
