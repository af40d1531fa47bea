// package tasks implements the playlist export, import and maintenance operations.
//
// The core abstraction is PlaylistEngine, which serializes catalog playlists, reconciles serialized items
// back against a live catalog, and performs bulk delete and re-ordering. Operations emit progress updates
// via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexio/internal/formatter"
	"github.com/desertthunder/plexio/internal/models"
	"github.com/desertthunder/plexio/internal/services"
	"github.com/desertthunder/plexio/internal/shared"
	"github.com/spf13/afero"
)

// DefaultSection is the library section searched when matching items by external id, year or title.
const DefaultSection = "Movies"

// RenameMap maps original playlist names to the names they are imported under.
// Playlists whose name is not a key are not imported.
type RenameMap map[string]string

// IdentityRenames maps every name to itself.
func IdentityRenames(names ...string) RenameMap {
	m := make(RenameMap, len(names))
	for _, n := range names {
		m[n] = n
	}
	return m
}

// OutcomeStatus is the terminal state of one imported playlist.
type OutcomeStatus string

const (
	StatusCompleted    OutcomeStatus = "completed"
	StatusCancelled    OutcomeStatus = "cancelled"
	StatusCreateFailed OutcomeStatus = "create_failed"
)

// Outcome is the result of importing one playlist.
type Outcome struct {
	Source    string // name in the document
	Target    string // name on the server
	Matched   int
	Processed int // items looked at before the playlist finished or was cancelled
	Total     int
	Status    OutcomeStatus
	Message   string // creation error, when Status is [StatusCreateFailed]
	Unmatched []formatter.Item
}

// String renders the outcome as a summary line.
func (o Outcome) String() string {
	switch o.Status {
	case StatusCancelled:
		return fmt.Sprintf("%s: Import cancelled at %d/%d", o.Target, o.Processed, o.Total)
	case StatusCreateFailed:
		return fmt.Sprintf("%s: ERROR %s", o.Target, o.Message)
	default:
		return fmt.Sprintf("%s: added %d/%d", o.Target, o.Matched, o.Total)
	}
}

// ImportResult aggregates one import call.
type ImportResult struct {
	RunID       string           // history id, empty when history is disabled
	Source      string           // imported file
	Outcomes    []Outcome        // one per imported playlist, in document order
	Missing     []formatter.Item // unmatched items across all playlists
	MissingPath string           // written report, empty when nothing was missing
}

// Summary joins the outcome lines with newlines.
func (r *ImportResult) Summary() string {
	lines := make([]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		lines = append(lines, o.String())
	}
	return strings.Join(lines, "\n")
}

// Cancelled reports whether any playlist stopped on the cancel token.
func (r *ImportResult) Cancelled() bool {
	for _, o := range r.Outcomes {
		if o.Status == StatusCancelled {
			return true
		}
	}
	return false
}

// CancelToken is a cooperative cancellation flag polled once per imported item.
//
// It is separate from [context.Context]: cancelling the token lets the in-flight catalog call finish,
// while cancelling the context aborts it.
type CancelToken struct {
	set atomic.Bool
}

func NewCancelToken() *CancelToken { return &CancelToken{} }

// Cancel raises the flag. Safe to call from any goroutine, more than once.
func (t *CancelToken) Cancel() { t.set.Store(true) }

// Cancelled reports whether [CancelToken.Cancel] was called. A nil token is never cancelled.
func (t *CancelToken) Cancelled() bool { return t != nil && t.set.Load() }

// ProgressFunc receives (items processed so far, item count) for the playlist being imported.
type ProgressFunc func(done, total int)

// ImportOpts carries the optional collaborators of an import call.
type ImportOpts struct {
	Progress ProgressFunc
	Cancel   *CancelToken
	Updates  chan<- ProgressUpdate
}

// Observer receives match and outcome events, e.g. for metrics.
type Observer interface {
	MatchResolved(strategy Strategy)
	PlaylistOutcome(status OutcomeStatus)
}

// HistoryRecorder persists import runs. Errors are logged and never fail an import.
type HistoryRecorder interface {
	StartRun(source, server string, playlists int) (string, error)
	FinishRun(id string, result *ImportResult, runErr error) error
}

// Exporter serializes catalog playlists.
type Exporter interface {
	Export(ctx context.Context, catalog services.Catalog, playlists []models.Playlist, path string, progress chan<- ProgressUpdate) error
	ExportCSV(ctx context.Context, catalog services.Catalog, playlist models.Playlist, path string) error
}

// Importer reconciles a serialized document against a catalog.
type Importer interface {
	Import(ctx context.Context, catalog services.Catalog, path string, renames RenameMap, opts ImportOpts) (*ImportResult, error)
}

// EngineOpts configures a [PlaylistEngine]. Zero values select the defaults.
type EngineOpts struct {
	Fs         afero.Fs        // defaults to the OS filesystem
	Workers    int             // concurrent playlist fetches on export (default 4)
	Section    string          // library section for searches (default [DefaultSection])
	MissingDir string          // directory of the missing-items report (default ".")
	Observer   Observer        // optional
	History    HistoryRecorder // optional
	Logger     *log.Logger
	Clock      func() time.Time
}

// PlaylistEngine implements [Exporter] and [Importer] plus playlist maintenance.
type PlaylistEngine struct {
	fs         afero.Fs
	workers    int
	section    string
	missingDir string
	observer   Observer
	history    HistoryRecorder
	logger     *log.Logger
	now        func() time.Time
}

var (
	_ Exporter = (*PlaylistEngine)(nil)
	_ Importer = (*PlaylistEngine)(nil)
)

// NewPlaylistEngine creates a new PlaylistEngine.
func NewPlaylistEngine(opts EngineOpts) *PlaylistEngine {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Section == "" {
		opts.Section = DefaultSection
	}
	if opts.MissingDir == "" {
		opts.MissingDir = "."
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &PlaylistEngine{
		fs:         opts.Fs,
		workers:    opts.Workers,
		section:    opts.Section,
		missingDir: opts.MissingDir,
		observer:   opts.Observer,
		history:    opts.History,
		logger:     opts.Logger,
		now:        opts.Clock,
	}
}

// Fs returns the filesystem the engine reads and writes.
func (e *PlaylistEngine) Fs() afero.Fs { return e.fs }

// MissingDir returns the directory of the missing-items report.
func (e *PlaylistEngine) MissingDir() string { return e.missingDir }

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *PlaylistEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}

func (e *PlaylistEngine) observeMatch(s Strategy) {
	if e.observer != nil {
		e.observer.MatchResolved(s)
	}
}

func (e *PlaylistEngine) observeOutcome(s OutcomeStatus) {
	if e.observer != nil {
		e.observer.PlaylistOutcome(s)
	}
}

func checkCatalog(catalog services.Catalog) error {
	if catalog == nil {
		return fmt.Errorf("%w: not connected to a Plex server", shared.ErrSessionUnavailable)
	}
	return nil
}
