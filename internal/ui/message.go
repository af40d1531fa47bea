package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/plexio/internal/models"
	"github.com/desertthunder/plexio/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistsFetched MsgKind = iota
	MsgProgressUpdate
	MsgImportProgress
	MsgOperationDone
)

type playlistsPayload struct {
	playlists []models.Playlist
	err       error
}

type importProgressPayload struct {
	done, total int
}

// operationPayload is the final message of a background operation.
type operationPayload struct {
	op      string
	summary string
	err     error
	result  *tasks.ImportResult // set by imports only
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(playlists []models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistsFetched, data: playlistsPayload{playlists, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// importProgressMsg is the constructor for [MsgImportProgress]
func importProgressMsg(done, total int) Msg {
	return Msg{kind: MsgImportProgress, data: importProgressPayload{done, total}}
}

// operationDoneMsg is the constructor for [MsgOperationDone]
func operationDoneMsg(op, summary string, result *tasks.ImportResult, err error) Msg {
	return Msg{kind: MsgOperationDone, data: operationPayload{op: op, summary: summary, err: err, result: result}}
}
