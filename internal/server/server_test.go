package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/plexio/internal/shared"
)

func TestMux(t *testing.T) {
	t.Run("method filtering", func(t *testing.T) {
		router := NewMux()
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			io.WriteString(w, "pong")
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
			t.Errorf("GET /ping = %d %q", rec.Code, rec.Body.String())
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed || !strings.Contains(rec.Header().Get("Allow"), "GET") {
			t.Errorf("POST /ping = %d, Allow %q", rec.Code, rec.Header().Get("Allow"))
		}
	})

	t.Run("unknown path", func(t *testing.T) {
		router := NewMux()
		router.Handler(NewLoginCallback("s"))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/elsewhere", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET /elsewhere = %d, want 404", rec.Code)
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewMux()
		router.Use(mark("first"), mark("second"))
		router.Handler(NewLoginCallback("s"))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=s", nil))
		if strings.Join(order, ",") != "first,second" {
			t.Errorf("order = %v", order)
		}
	})
}

func TestLoginCallback(t *testing.T) {
	t.Run("valid state pokes the poller", func(t *testing.T) {
		h := NewLoginCallback("abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=abc", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "return to the terminal") {
			t.Errorf("unexpected page:\n%s", rec.Body.String())
		}
		select {
		case <-h.Pokes():
		default:
			t.Error("expected a poke")
		}
	})

	t.Run("pokes coalesce", func(t *testing.T) {
		h := NewLoginCallback("abc")
		for range 3 {
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=abc", nil))
		}
		if h.Hits() != 3 {
			t.Errorf("Hits() = %d, want 3", h.Hits())
		}
		<-h.Pokes()
		select {
		case <-h.Pokes():
			t.Error("expected pending pokes to coalesce")
		default:
		}
	})

	t.Run("wrong state", func(t *testing.T) {
		h := NewLoginCallback("abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=xyz", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if h.Hits() != 0 || len(h.Pokes()) != 0 {
			t.Error("invalid callbacks must not poke")
		}
	})

	t.Run("CallbackURL", func(t *testing.T) {
		h := NewLoginCallback("abc")
		if got := h.CallbackURL("http://127.0.0.1:3000"); got != "http://127.0.0.1:3000/callback?state=abc" {
			t.Errorf("CallbackURL() = %q", got)
		}
	})
}

func TestServer(t *testing.T) {
	h := NewLoginCallback("abc")
	router := NewMux()
	router.Use(RequestLogger(shared.NewLogger(io.Discard)))
	router.Handler(h)

	srv, err := Start("127.0.0.1:0", router)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get(h.CallbackURL("http://" + srv.Addr()))
	if err != nil {
		t.Fatalf("GET callback error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if srv.URL("/callback") != "http://"+srv.Addr()+"/callback" {
		t.Errorf("URL() = %q", srv.URL("/callback"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err, ok := <-srv.Errors(); ok {
		t.Errorf("unexpected serve error %v", err)
	}

	if _, err := Start(srv.Addr()+"0", router); err == nil {
		t.Error("expected listen error for a bad address")
	}
}
