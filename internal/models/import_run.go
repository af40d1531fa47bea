package models

import (
	"fmt"
	"time"
)

// RunStatus is the terminal state of an [ImportRun].
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunCancelled RunStatus = "cancelled"
	RunFailed    RunStatus = "failed"
)

// ImportRun records one import invocation for later inspection with `plexio history`.
type ImportRun struct {
	id             string
	sequence       int
	sourceFile     string
	serverName     string
	status         RunStatus
	playlistsTotal int
	summary        string
	errorMessage   string
	startedAt      time.Time
	finishedAt     *time.Time
	createdAt      time.Time
	updatedAt      time.Time
	deletedAt      *time.Time
}

// NewImportRun creates a running ImportRun started now.
func NewImportRun(sequence int, sourceFile, serverName string) *ImportRun {
	now := time.Now()
	return &ImportRun{
		sequence:   sequence,
		sourceFile: sourceFile,
		serverName: serverName,
		status:     RunRunning,
		startedAt:  now,
		createdAt:  now,
		updatedAt:  now,
	}
}

func (r *ImportRun) ID() string                { return r.id }
func (r *ImportRun) Sequence() int             { return r.sequence }
func (r *ImportRun) SourceFile() string        { return r.sourceFile }
func (r *ImportRun) ServerName() string        { return r.serverName }
func (r *ImportRun) Status() RunStatus         { return r.status }
func (r *ImportRun) PlaylistsTotal() int       { return r.playlistsTotal }
func (r *ImportRun) Summary() string           { return r.summary }
func (r *ImportRun) ErrorMessage() string      { return r.errorMessage }
func (r *ImportRun) StartedAt() time.Time      { return r.startedAt }
func (r *ImportRun) FinishedAt() *time.Time    { return r.finishedAt }
func (r *ImportRun) CreatedAt() time.Time      { return r.createdAt }
func (r *ImportRun) UpdatedAt() time.Time      { return r.updatedAt }
func (r *ImportRun) DeletedAt() *time.Time     { return r.deletedAt }
func (r *ImportRun) SetID(id string)           { r.id = id }
func (r *ImportRun) SetSequence(seq int)       { r.sequence = seq }
func (r *ImportRun) SetUpdatedAt(t time.Time)  { r.updatedAt = t }
func (r *ImportRun) SetDeletedAt(t *time.Time) { r.deletedAt = t }
func (r *ImportRun) SetPlaylistsTotal(n int)   { r.playlistsTotal = n }

// SetTimes restores persisted timestamps.
func (r *ImportRun) SetTimes(started time.Time, finished *time.Time, created time.Time) {
	r.startedAt = started
	r.finishedAt = finished
	r.createdAt = created
}

// Finish moves the run to a terminal status.
func (r *ImportRun) Finish(status RunStatus, summary, errMsg string) {
	now := time.Now()
	r.status = status
	r.summary = summary
	r.errorMessage = errMsg
	r.finishedAt = &now
	r.updatedAt = now
}

// Restore sets the mutable result columns when scanning from storage.
func (r *ImportRun) Restore(status RunStatus, summary, errMsg string) {
	r.status = status
	r.summary = summary
	r.errorMessage = errMsg
}

// Validate checks required fields and the status value.
func (r *ImportRun) Validate() error {
	if r.id == "" {
		return fmt.Errorf("import run id is required")
	}
	if r.sourceFile == "" {
		return fmt.Errorf("import run source file is required")
	}
	switch r.status {
	case RunRunning, RunCompleted, RunCancelled, RunFailed:
	default:
		return fmt.Errorf("invalid import run status: %q", r.status)
	}
	if r.playlistsTotal < 0 {
		return fmt.Errorf("playlists total cannot be negative")
	}
	return nil
}

// OutcomeRecord is a persisted per-playlist import outcome.
type OutcomeRecord struct {
	Position   int    `json:"position"`
	SourceName string `json:"source_name"`
	TargetName string `json:"target_name"`
	Matched    int    `json:"matched"`
	Total      int    `json:"total"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
}

// MissingRecord is a persisted unmatched item.
type MissingRecord struct {
	Playlist  string `json:"playlist"`
	Title     string `json:"title"`
	Year      *int   `json:"year"`
	Type      string `json:"type"`
	IMDbID    string `json:"imdb_id,omitempty"`
	RatingKey string `json:"rating_key,omitempty"`
}
