package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/plexio/internal/models"
	"github.com/desertthunder/plexio/internal/shared"
	th "github.com/desertthunder/plexio/internal/testing"
)

const identityJSON = `{"MediaContainer":{"size":0,"friendlyName":"Living Room","machineIdentifier":"abc123"}}`

// newPlexTestServer returns a server answering the identity endpoint plus any extra routes.
func newPlexTestServer(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Plex-Token") != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, identityJSON)
	})
	for pattern, h := range routes {
		mux.HandleFunc(pattern, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestPlex(t *testing.T, srv *httptest.Server, retries int) *PlexService {
	t.Helper()
	p, err := NewPlexService(PlexOpts{
		BaseURL:           srv.URL,
		Token:             "tok",
		ClientID:          "client-1",
		RequestsPerSecond: 1000,
		MaxRetries:        retries,
		RetryDelay:        time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewPlexService() error = %v", err)
	}
	if err := p.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return p
}

func TestNewPlexService(t *testing.T) {
	tc := []struct {
		name    string
		opts    PlexOpts
		wantErr error
	}{
		{name: "missing URL", opts: PlexOpts{Token: "tok"}, wantErr: shared.ErrMissingConfig},
		{name: "missing token", opts: PlexOpts{BaseURL: "http://localhost:32400"}, wantErr: shared.ErrMissingCredentials},
		{name: "bad URL", opts: PlexOpts{BaseURL: "localhost", Token: "tok"}, wantErr: shared.ErrInvalidConfig},
		{name: "valid", opts: PlexOpts{BaseURL: "http://localhost:32400/", Token: "tok"}},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPlexService(tt.opts)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name() != "localhost:32400" {
				t.Errorf("Name() before Connect = %q, want host", p.Name())
			}
		})
	}
}

func TestPlexService(t *testing.T) {
	t.Run("Connect", func(t *testing.T) {
		srv := newPlexTestServer(t, nil)
		p := newTestPlex(t, srv, 0)

		if p.Name() != "Living Room" {
			t.Errorf("Name() = %q, want Living Room", p.Name())
		}
		if p.MachineID() != "abc123" {
			t.Errorf("MachineID() = %q, want abc123", p.MachineID())
		}
	})

	t.Run("Connect with bad token", func(t *testing.T) {
		srv := newPlexTestServer(t, nil)
		p, _ := NewPlexService(PlexOpts{BaseURL: srv.URL, Token: "wrong", RequestsPerSecond: 1000})

		err := p.Connect(context.Background())
		if !errors.Is(err, shared.ErrSessionUnavailable) {
			t.Errorf("expected ErrSessionUnavailable, got %v", err)
		}
	})

	t.Run("Playlists and items", func(t *testing.T) {
		srv := newPlexTestServer(t, map[string]http.HandlerFunc{
			"GET /playlists": func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("X-Plex-Client-Identifier") != "client-1" {
					t.Errorf("missing client identifier header")
				}
				if r.Header.Get("Accept") != "application/json" {
					t.Errorf("expected Accept: application/json")
				}
				fmt.Fprint(w, `{"MediaContainer":{"size":1,"Metadata":[
					{"ratingKey":"77","title":"Action","summary":"loud","playlistType":"video","smart":false,"leafCount":2}]}}`)
			},
			"GET /playlists/77/items": func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"MediaContainer":{"size":2,"Metadata":[
					{"ratingKey":"1","guid":"imdb://tt0133093","title":"The Matrix","year":1999,"type":"movie"},
					{"ratingKey":"2","title":"Heat","type":"movie"}]}}`)
			},
		})
		p := newTestPlex(t, srv, 0)

		playlists, err := p.Playlists(context.Background())
		if err != nil {
			t.Fatalf("Playlists() error = %v", err)
		}
		if len(playlists) != 1 || playlists[0].Title != "Action" || playlists[0].ItemCount != 2 || playlists[0].Summary != "loud" {
			t.Fatalf("unexpected playlists: %+v", playlists)
		}

		items, err := p.PlaylistItems(context.Background(), playlists[0])
		if err != nil {
			t.Fatalf("PlaylistItems() error = %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("expected 2 items, got %d", len(items))
		}
		if items[0].ExternalID() != "tt0133093" || items[0].Year != 1999 {
			t.Errorf("unexpected first item: %+v", items[0])
		}
		if items[1].Year != 0 || items[1].GUID != "" {
			t.Errorf("unexpected second item: %+v", items[1])
		}
	})

	t.Run("FetchItem not found", func(t *testing.T) {
		srv := newPlexTestServer(t, map[string]http.HandlerFunc{
			"GET /library/metadata/{key}": func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
		})
		p := newTestPlex(t, srv, 2)

		_, err := p.FetchItem(context.Background(), "999")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("FetchItem empty container", func(t *testing.T) {
		srv := newPlexTestServer(t, map[string]http.HandlerFunc{
			"GET /library/metadata/{key}": func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"MediaContainer":{"size":0}}`)
			},
		})
		p := newTestPlex(t, srv, 0)

		if _, err := p.FetchItem(context.Background(), "5"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("transport failure is transient and retried", func(t *testing.T) {
		rt := th.NewMockRoundTripper(nil, errors.New("connection refused"))
		p, err := NewPlexService(PlexOpts{
			BaseURL:           "http://plex.invalid:32400",
			Token:             "tok",
			HTTPClient:        &http.Client{Transport: rt},
			RequestsPerSecond: 1000,
			MaxRetries:        2,
			RetryDelay:        time.Millisecond,
		})
		if err != nil {
			t.Fatalf("NewPlexService() error = %v", err)
		}

		if _, err := p.FetchItem(context.Background(), "1"); !errors.Is(err, shared.ErrTransient) {
			t.Errorf("expected ErrTransient, got %v", err)
		}
		if rt.Calls() != 3 {
			t.Errorf("expected 3 attempts, got %d", rt.Calls())
		}
	})

	t.Run("unreadable body", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusOK, Body: &th.FCloser{}, Header: http.Header{}}
		p, err := NewPlexService(PlexOpts{
			BaseURL:           "http://plex.invalid:32400",
			Token:             "tok",
			HTTPClient:        &http.Client{Transport: th.NewMockRoundTripper(resp, nil)},
			RequestsPerSecond: 1000,
		})
		if err != nil {
			t.Fatalf("NewPlexService() error = %v", err)
		}

		_, err = p.Playlists(context.Background())
		if err == nil || errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected decode error, got %v", err)
		}
	})

	t.Run("retries 429 then succeeds", func(t *testing.T) {
		var calls atomic.Int32
		srv := newPlexTestServer(t, map[string]http.HandlerFunc{
			"GET /library/metadata/{key}": func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) < 3 {
					w.WriteHeader(http.StatusTooManyRequests)
					return
				}
				fmt.Fprintf(w, `{"MediaContainer":{"size":1,"Metadata":[{"ratingKey":"%s","title":"Heat","type":"movie","year":1995}]}}`, r.PathValue("key"))
			},
		})
		p := newTestPlex(t, srv, 3)

		m, err := p.FetchItem(context.Background(), "42")
		if err != nil {
			t.Fatalf("FetchItem() error = %v", err)
		}
		if m.RatingKey != "42" || m.Title != "Heat" {
			t.Errorf("unexpected media: %+v", m)
		}
		if calls.Load() != 3 {
			t.Errorf("expected 3 attempts, got %d", calls.Load())
		}
	})

	t.Run("does not retry 404", func(t *testing.T) {
		var calls atomic.Int32
		srv := newPlexTestServer(t, map[string]http.HandlerFunc{
			"GET /library/metadata/{key}": func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				http.NotFound(w, r)
			},
		})
		p := newTestPlex(t, srv, 3)

		_, _ = p.FetchItem(context.Background(), "1")
		if calls.Load() != 1 {
			t.Errorf("expected 1 attempt, got %d", calls.Load())
		}
	})

	t.Run("5xx exhausts retries as transient", func(t *testing.T) {
		var calls atomic.Int32
		srv := newPlexTestServer(t, map[string]http.HandlerFunc{
			"GET /playlists": func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusBadGateway)
			},
		})
		p := newTestPlex(t, srv, 2)

		_, err := p.Playlists(context.Background())
		if !errors.Is(err, shared.ErrTransient) {
			t.Errorf("expected ErrTransient, got %v", err)
		}
		if calls.Load() != 3 {
			t.Errorf("expected 3 attempts, got %d", calls.Load())
		}
	})

	t.Run("Section is cached", func(t *testing.T) {
		var calls atomic.Int32
		srv := newPlexTestServer(t, map[string]http.HandlerFunc{
			"GET /library/sections": func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				fmt.Fprint(w, `{"MediaContainer":{"size":2,"Directory":[
					{"key":"1","title":"Movies","type":"movie"},
					{"key":"2","title":"TV Shows","type":"show"}]}}`)
			},
		})
		p := newTestPlex(t, srv, 0)

		for range 3 {
			s, err := p.Section(context.Background(), "movies")
			if err != nil {
				t.Fatalf("Section() error = %v", err)
			}
			if s.Key != "1" || s.Title != "Movies" {
				t.Errorf("unexpected section: %+v", s)
			}
		}
		if _, err := p.Section(context.Background(), "TV Shows"); err != nil {
			t.Fatalf("Section(TV Shows) error = %v", err)
		}
		if calls.Load() != 1 {
			t.Errorf("expected sections to be listed once, got %d", calls.Load())
		}

		if _, err := p.Section(context.Background(), "Music"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown section, got %v", err)
		}
	})

	t.Run("Search passes title and year", func(t *testing.T) {
		srv := newPlexTestServer(t, map[string]http.HandlerFunc{
			"GET /library/sections/1/all": func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				if q.Get("title") != "Heat" {
					t.Errorf("expected title=Heat, got %q", q.Get("title"))
				}
				if q.Get("year") != "1995" {
					t.Errorf("expected year=1995, got %q", q.Get("year"))
				}
				fmt.Fprint(w, `{"MediaContainer":{"size":1,"Metadata":[{"ratingKey":"9","guid":"imdb://tt0113277","title":"Heat","year":1995,"type":"movie"}]}}`)
			},
		})
		p := newTestPlex(t, srv, 0)

		res, err := p.Search(context.Background(), models.Section{Key: "1", Title: "Movies"}, "Heat", 1995)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(res) != 1 || res[0].RatingKey != "9" {
			t.Errorf("unexpected results: %+v", res)
		}
	})

	t.Run("Search omits zero year", func(t *testing.T) {
		srv := newPlexTestServer(t, map[string]http.HandlerFunc{
			"GET /library/sections/1/all": func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Has("year") {
					t.Errorf("year should be omitted, got %q", r.URL.RawQuery)
				}
				fmt.Fprint(w, `{"MediaContainer":{"size":0}}`)
			},
		})
		p := newTestPlex(t, srv, 0)

		res, err := p.Search(context.Background(), models.Section{Key: "1"}, "Heat", 0)
		if err != nil || len(res) != 0 {
			t.Errorf("Search() = %v, %v", res, err)
		}
	})

	t.Run("CreatePlaylist", func(t *testing.T) {
		srv := newPlexTestServer(t, map[string]http.HandlerFunc{
			"POST /playlists": func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				if q.Get("title") != "Weekend" || q.Get("type") != "video" || q.Get("smart") != "0" {
					t.Errorf("unexpected query: %s", r.URL.RawQuery)
				}
				want := "server://abc123/com.plexapp.plugins.library/library/metadata/1,2"
				if q.Get("uri") != want {
					t.Errorf("uri = %q, want %q", q.Get("uri"), want)
				}
				fmt.Fprint(w, `{"MediaContainer":{"size":1,"Metadata":[{"ratingKey":"500","title":"Weekend","playlistType":"video","leafCount":2}]}}`)
			},
		})
		p := newTestPlex(t, srv, 0)

		pl, err := p.CreatePlaylist(context.Background(), "Weekend", []models.Media{
			{RatingKey: "1", Type: "movie"}, {RatingKey: "2", Type: "movie"},
		})
		if err != nil {
			t.Fatalf("CreatePlaylist() error = %v", err)
		}
		if pl.RatingKey != "500" || pl.ItemCount != 2 {
			t.Errorf("unexpected playlist: %+v", pl)
		}
	})

	t.Run("CreatePlaylist rejected", func(t *testing.T) {
		srv := newPlexTestServer(t, map[string]http.HandlerFunc{
			"POST /playlists": func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "bad request", http.StatusBadRequest)
			},
		})
		p := newTestPlex(t, srv, 0)

		_, err := p.CreatePlaylist(context.Background(), "Weekend", []models.Media{{RatingKey: "1"}})
		if !errors.Is(err, shared.ErrCreation) {
			t.Errorf("expected ErrCreation, got %v", err)
		}
	})

	t.Run("CreatePlaylist empty", func(t *testing.T) {
		srv := newPlexTestServer(t, nil)
		p := newTestPlex(t, srv, 0)

		_, err := p.CreatePlaylist(context.Background(), "Empty", nil)
		if !errors.Is(err, shared.ErrCreation) || !strings.Contains(err.Error(), "must include items") {
			t.Errorf("expected ErrCreation for empty playlist, got %v", err)
		}
	})

	t.Run("DeletePlaylist", func(t *testing.T) {
		var deleted string
		srv := newPlexTestServer(t, map[string]http.HandlerFunc{
			"DELETE /playlists/{key}": func(w http.ResponseWriter, r *http.Request) {
				deleted = r.PathValue("key")
				w.WriteHeader(http.StatusNoContent)
			},
		})
		p := newTestPlex(t, srv, 0)

		if err := p.DeletePlaylist(context.Background(), models.Playlist{RatingKey: "77", Title: "Action"}); err != nil {
			t.Fatalf("DeletePlaylist() error = %v", err)
		}
		if deleted != "77" {
			t.Errorf("expected playlist 77 deleted, got %q", deleted)
		}
	})
}

func TestPlaylistType(t *testing.T) {
	tc := map[string]string{"movie": "video", "episode": "video", "track": "audio", "photo": "photo", "": "video"}
	for in, want := range tc {
		if got := PlaylistType(in); got != want {
			t.Errorf("PlaylistType(%q) = %q, want %q", in, got, want)
		}
	}
}
