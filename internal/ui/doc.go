// Package ui implements an interactive playlist manager using bubbletea's Elm architecture.
//
// The TUI has one main view and a few transient ones:
//  1. [PlaylistListView] : Browse the server's playlists, marking several with space
//  2. [ConfirmDeleteView] : Confirm deleting the marked (or highlighted) playlists
//  3. [ProgressView] : Follow a running export, delete, sort or import; `c` cancels an import
//  4. [ResultView] : Summary of the last operation, including the missing-items warning
//  5. [ErrorView] : Any failure, including an unreachable server
//
// The [Model] implements bubbletea's Init/Update/View pattern, receiving messages via the [Msg] union type.
// Operations run on a background goroutine; their progress reaches the update loop through a channel that
// is drained one message per command, so the UI never blocks on the server.
package ui
