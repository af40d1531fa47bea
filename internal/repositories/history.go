package repositories

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/desertthunder/plexio/internal/models"
	"github.com/desertthunder/plexio/internal/tasks"
)

// HistoryAdapter implements tasks.HistoryRecorder using ImportRunRepository.
type HistoryAdapter struct {
	repo *ImportRunRepository
}

var _ tasks.HistoryRecorder = (*HistoryAdapter)(nil)

// NewHistoryAdapter creates a new HistoryAdapter with the given repository
func NewHistoryAdapter(repo *ImportRunRepository) *HistoryAdapter {
	return &HistoryAdapter{repo: repo}
}

// StartRun stores a running import and returns its id.
func (a *HistoryAdapter) StartRun(source, server string, playlists int) (string, error) {
	run := models.NewImportRun(0, source, server)
	run.SetPlaylistsTotal(playlists)
	if err := a.repo.Create(run); err != nil {
		return "", fmt.Errorf("failed to start import run: %w", err)
	}
	return run.ID(), nil
}

// FinishRun stores the outcomes and unmatched items of result and moves the run to its terminal status.
//
// A run is failed when runErr is set, cancelled when any playlist stopped on the cancel token and
// completed otherwise.
func (a *HistoryAdapter) FinishRun(id string, result *tasks.ImportResult, runErr error) error {
	run, err := a.repo.Get(id)
	if err != nil {
		return err
	}

	outcomes := make([]models.OutcomeRecord, 0, len(result.Outcomes))
	var missing []models.MissingRecord
	for i, o := range result.Outcomes {
		outcomes = append(outcomes, models.OutcomeRecord{
			Position:   i,
			SourceName: o.Source,
			TargetName: o.Target,
			Matched:    o.Matched,
			Total:      o.Total,
			Status:     string(o.Status),
			Message:    o.Message,
		})
		for _, item := range o.Unmatched {
			rec := models.MissingRecord{
				Playlist:  o.Source,
				Title:     item.Title,
				Year:      item.Year,
				Type:      item.Type,
				RatingKey: string(item.RatingKey),
			}
			if item.IMDbID != nil {
				rec.IMDbID = *item.IMDbID
			}
			missing = append(missing, rec)
		}
	}

	if err := a.repo.SaveOutcomes(id, outcomes); err != nil {
		return err
	}
	if err := a.repo.SaveMissing(id, missing); err != nil {
		return err
	}

	status, errMsg := models.RunCompleted, ""
	switch {
	case runErr != nil:
		status, errMsg = models.RunFailed, runErr.Error()
	case result.Cancelled():
		status = models.RunCancelled
	}
	run.Finish(status, result.Summary(), errMsg)
	return a.repo.Update(run)
}

// RunDetail is a stored run with its outcomes and unmatched items.
type RunDetail struct {
	Run      *models.ImportRun
	Outcomes []models.OutcomeRecord
	Missing  []models.MissingRecord
}

// Detail loads a run by id, falling back to its sequence number when ref is numeric.
func (a *HistoryAdapter) Detail(ref string) (*RunDetail, error) {
	run, err := a.repo.Get(ref)
	if err != nil {
		seq, convErr := strconv.Atoi(ref)
		if convErr != nil {
			return nil, err
		}
		if run, err = a.repo.GetBySequence(seq); err != nil {
			return nil, err
		}
	}

	outcomes, err := a.repo.Outcomes(run.ID())
	if err != nil {
		return nil, err
	}
	missing, err := a.repo.Missing(run.ID())
	if err != nil {
		return nil, err
	}
	return &RunDetail{Run: run, Outcomes: outcomes, Missing: missing}, nil
}

// Recent lists the latest runs, newest first.
func (a *HistoryAdapter) Recent(limit int) ([]*models.ImportRun, error) {
	if limit < 0 {
		return nil, errors.New("limit cannot be negative")
	}
	return a.repo.List(map[string]any{"limit": limit})
}
