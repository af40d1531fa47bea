package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexio/internal/models"
	"github.com/desertthunder/plexio/internal/shared"
	"github.com/sony/gobreaker/v2"
)

// BreakerObserver receives circuit breaker state changes and request results.
type BreakerObserver interface {
	BreakerState(name string, state gobreaker.State)
	BreakerRequest(name, result string)
}

// BreakerOpts configures a [BreakerCatalog].
type BreakerOpts struct {
	Name        string
	MaxRequests uint32        // allowed through in half-open state
	Interval    time.Duration // closed-state count reset
	Timeout     time.Duration // open to half-open
	MinRequests uint32
	FailureRate float64
	Observer    BreakerObserver
	Logger      *log.Logger
}

// BreakerCatalog wraps a [Catalog] with a circuit breaker so a struggling server fails fast
// instead of absorbing one timeout per item for the rest of an import.
//
// Not-found results count as successes: a missing item says nothing about server health.
type BreakerCatalog struct {
	next Catalog
	cb   *gobreaker.CircuitBreaker[any]
	name string
	obs  BreakerObserver
}

var _ Catalog = (*BreakerCatalog)(nil)

// NewBreakerCatalog wraps next.
func NewBreakerCatalog(next Catalog, opts BreakerOpts) *BreakerCatalog {
	if opts.Name == "" {
		opts.Name = "plex"
	}
	if opts.MaxRequests == 0 {
		opts.MaxRequests = 1
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MinRequests == 0 {
		opts.MinRequests = 5
	}
	if opts.FailureRate <= 0 {
		opts.FailureRate = 0.6
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}

	b := &BreakerCatalog{next: next, name: opts.Name, obs: opts.Observer}
	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: opts.MaxRequests,
		Interval:    opts.Interval,
		Timeout:     opts.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < opts.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= opts.FailureRate {
				opts.Logger.Warn("opening circuit", "breaker", opts.Name, "failures", counts.TotalFailures, "requests", counts.Requests)
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			opts.Logger.Info("circuit state change", "breaker", name, "from", from.String(), "to", to.String())
			if b.obs != nil {
				b.obs.BreakerState(name, to)
			}
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, shared.ErrNotFound) || errors.Is(err, context.Canceled)
		},
	})

	if b.obs != nil {
		b.obs.BreakerState(opts.Name, gobreaker.StateClosed)
	}
	return b
}

// State returns the breaker's current state.
func (b *BreakerCatalog) State() gobreaker.State { return b.cb.State() }

func (b *BreakerCatalog) Name() string { return b.next.Name() }

func (b *BreakerCatalog) Playlists(ctx context.Context) ([]models.Playlist, error) {
	return execute(b, func() ([]models.Playlist, error) { return b.next.Playlists(ctx) })
}

func (b *BreakerCatalog) PlaylistItems(ctx context.Context, pl models.Playlist) ([]models.Media, error) {
	return execute(b, func() ([]models.Media, error) { return b.next.PlaylistItems(ctx, pl) })
}

func (b *BreakerCatalog) DeletePlaylist(ctx context.Context, pl models.Playlist) error {
	_, err := execute(b, func() (struct{}, error) { return struct{}{}, b.next.DeletePlaylist(ctx, pl) })
	return err
}

func (b *BreakerCatalog) FetchItem(ctx context.Context, ratingKey string) (*models.Media, error) {
	return execute(b, func() (*models.Media, error) { return b.next.FetchItem(ctx, ratingKey) })
}

func (b *BreakerCatalog) Section(ctx context.Context, name string) (*models.Section, error) {
	return execute(b, func() (*models.Section, error) { return b.next.Section(ctx, name) })
}

func (b *BreakerCatalog) Search(ctx context.Context, section models.Section, title string, year int) ([]models.Media, error) {
	return execute(b, func() ([]models.Media, error) { return b.next.Search(ctx, section, title, year) })
}

func (b *BreakerCatalog) CreatePlaylist(ctx context.Context, name string, items []models.Media) (*models.Playlist, error) {
	return execute(b, func() (*models.Playlist, error) { return b.next.CreatePlaylist(ctx, name, items) })
}

// execute runs fn through the breaker and restores its concrete result type.
func execute[T any](b *BreakerCatalog, fn func() (T, error)) (T, error) {
	var zero T
	res, err := b.cb.Execute(func() (any, error) { return fn() })
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			b.observe("rejected")
			return zero, fmt.Errorf("%w: %s circuit %v", shared.ErrTransient, b.name, err)
		}
		if errors.Is(err, shared.ErrNotFound) {
			b.observe("not_found")
		} else {
			b.observe("failure")
		}
		return zero, err
	}
	b.observe("success")

	v, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected result type %T", res)
	}
	return v, nil
}

func (b *BreakerCatalog) observe(result string) {
	if b.obs != nil {
		b.obs.BreakerRequest(b.name, result)
	}
}
