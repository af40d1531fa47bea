package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/plexio/internal/models"
	"github.com/desertthunder/plexio/internal/shared"
	"github.com/sony/gobreaker/v2"
)

// flakyCatalog fails FetchItem with err and counts calls.
type flakyCatalog struct {
	err   error
	calls int
}

func (f *flakyCatalog) Name() string { return "flaky" }
func (f *flakyCatalog) Playlists(context.Context) ([]models.Playlist, error) {
	return []models.Playlist{{Title: "Action"}}, nil
}
func (f *flakyCatalog) PlaylistItems(context.Context, models.Playlist) ([]models.Media, error) {
	return nil, nil
}
func (f *flakyCatalog) DeletePlaylist(context.Context, models.Playlist) error { return f.err }
func (f *flakyCatalog) FetchItem(_ context.Context, key string) (*models.Media, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.Media{RatingKey: key}, nil
}
func (f *flakyCatalog) Section(context.Context, string) (*models.Section, error) {
	return &models.Section{Key: "1", Title: "Movies"}, nil
}
func (f *flakyCatalog) Search(context.Context, models.Section, string, int) ([]models.Media, error) {
	return nil, nil
}
func (f *flakyCatalog) CreatePlaylist(_ context.Context, name string, _ []models.Media) (*models.Playlist, error) {
	return &models.Playlist{Title: name}, nil
}

type recordingObserver struct {
	mu       sync.Mutex
	states   []gobreaker.State
	requests map[string]int
}

func (o *recordingObserver) BreakerState(_ string, s gobreaker.State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, s)
}

func (o *recordingObserver) BreakerRequest(_ string, result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.requests == nil {
		o.requests = map[string]int{}
	}
	o.requests[result]++
}

func TestBreakerCatalog(t *testing.T) {
	t.Run("passes results through", func(t *testing.T) {
		b := NewBreakerCatalog(&flakyCatalog{}, BreakerOpts{})

		m, err := b.FetchItem(context.Background(), "7")
		if err != nil || m.RatingKey != "7" {
			t.Fatalf("FetchItem() = %+v, %v", m, err)
		}
		pls, err := b.Playlists(context.Background())
		if err != nil || len(pls) != 1 {
			t.Fatalf("Playlists() = %+v, %v", pls, err)
		}
		if b.Name() != "flaky" {
			t.Errorf("Name() = %q", b.Name())
		}
	})

	t.Run("opens after repeated transient failures", func(t *testing.T) {
		inner := &flakyCatalog{err: fmt.Errorf("%w: boom", shared.ErrTransient)}
		obs := &recordingObserver{}
		b := NewBreakerCatalog(inner, BreakerOpts{MinRequests: 3, FailureRate: 0.5, Timeout: time.Hour, Observer: obs})

		for range 3 {
			if _, err := b.FetchItem(context.Background(), "1"); !errors.Is(err, shared.ErrTransient) {
				t.Fatalf("expected transient error, got %v", err)
			}
		}
		if b.State() != gobreaker.StateOpen {
			t.Fatalf("expected open breaker, got %s", b.State())
		}

		_, err := b.FetchItem(context.Background(), "1")
		if !errors.Is(err, shared.ErrTransient) {
			t.Errorf("rejected call should map to ErrTransient, got %v", err)
		}
		if inner.calls != 3 {
			t.Errorf("open breaker should not call through, got %d calls", inner.calls)
		}
		if obs.requests["rejected"] != 1 || obs.requests["failure"] != 3 {
			t.Errorf("unexpected observed requests: %v", obs.requests)
		}
		if obs.states[len(obs.states)-1] != gobreaker.StateOpen {
			t.Errorf("observer should see open state, got %v", obs.states)
		}
	})

	t.Run("not found does not trip", func(t *testing.T) {
		inner := &flakyCatalog{err: fmt.Errorf("%w: item", shared.ErrNotFound)}
		b := NewBreakerCatalog(inner, BreakerOpts{MinRequests: 2, FailureRate: 0.5})

		for range 5 {
			if _, err := b.FetchItem(context.Background(), "1"); !errors.Is(err, shared.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		}
		if b.State() != gobreaker.StateClosed {
			t.Errorf("expected closed breaker, got %s", b.State())
		}
	})

	t.Run("DeletePlaylist error", func(t *testing.T) {
		b := NewBreakerCatalog(&flakyCatalog{err: errors.New("denied")}, BreakerOpts{})
		if err := b.DeletePlaylist(context.Background(), models.Playlist{}); err == nil || err.Error() != "denied" {
			t.Errorf("expected denied, got %v", err)
		}
	})
}
