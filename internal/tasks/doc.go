// Package tasks exports, imports and maintains Plex playlists with real-time progress reporting.
//
// # Core Operations
//
// [PlaylistEngine] implements the [Exporter] and [Importer] interfaces:
//
//  1. [PlaylistEngine.Export] : JSON document of one or more playlists
//     - Fetches playlist items concurrently (bounded by the worker count), keeping input order
//     - Serializes title, year, type, imdb id (last GUID segment) and rating key per item
//
//  2. [PlaylistEngine.ExportCSV] : single playlist as CSV
//
//  3. [PlaylistEngine.Import] : reconcile a document against a catalog
//     - Imports only playlists named in the [RenameMap], under their mapped name
//     - Resolves each item with [FindMedia] (rating key, imdb id, title and year, title)
//     - Creates the playlist from the matched items, in order
//     - Writes unmatched items to "Missing Movies.json"
//
// Maintenance operations build on these: [PlaylistEngine.DeletePlaylists], [PlaylistEngine.SortByYear],
// [PlaylistEngine.ResolveConflicts] and [PlaylistEngine.BulkExport].
//
// # Cancellation
//
// Import runs on the calling goroutine and polls a [CancelToken] once per item. A cancelled playlist is
// never created, and its outcome reads "Import cancelled at k/N". The context is only for hard aborts.
//
// # Progress Reporting
//
// The [ProgressFunc] in [ImportOpts] is called exactly once per processed item, in order.
// Everything else is reported as [ProgressUpdate] values on optional non-blocking channels.
//
// # History and Metrics
//
// The optional [HistoryRecorder] persists each import run (repositories.ImportRunRepository).
// Recording errors are logged and never fail an import. The optional [Observer] counts the
// matching strategy of every item and the status of every playlist.
package tasks
