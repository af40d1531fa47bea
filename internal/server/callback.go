package server

import (
	"html/template"
	"net/http"
	"sync"
)

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>plexio</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #1f1f1f; }
        .container { text-align: center; background: #2b2b2b; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.3); }
        h1 { color: #e5a00d; margin: 0 0 1rem 0; }
        p { color: #ccc; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))

// LoginCallback receives the browser after the user approves the Plex PIN.
//
// Plex forwards the browser without any token, so the handler only proves the approval page was
// left: each valid hit pokes the PIN poller so the token is picked up without waiting for the
// next tick. The state parameter must match the one placed in the forward URL.
type LoginCallback struct {
	state string
	pokes chan struct{}

	mu   sync.Mutex
	hits int
}

// NewLoginCallback creates a handler expecting state in the callback query.
func NewLoginCallback(state string) *LoginCallback {
	return &LoginCallback{state: state, pokes: make(chan struct{}, 1)}
}

// Routes returns the HTTP routes this handler serves.
func (h *LoginCallback) Routes() []string {
	return []string{"/callback"}
}

func (h *LoginCallback) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("state") != h.state {
		w.WriteHeader(http.StatusBadRequest)
		h.render(w, "Invalid login callback", "This link does not belong to the running login. Start `plexio login` again.")
		return
	}

	h.mu.Lock()
	h.hits++
	h.mu.Unlock()

	select {
	case h.pokes <- struct{}{}:
	default:
	}

	h.render(w, "✓ Plex login approved", "You can close this window and return to the terminal.")
}

func (h *LoginCallback) render(w http.ResponseWriter, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	callbackPage.Execute(w, struct{ Title, Message string }{title, message})
}

// Pokes receives a value after each valid callback. Pending pokes coalesce.
func (h *LoginCallback) Pokes() <-chan struct{} {
	return h.pokes
}

// Hits reports how many valid callbacks were served.
func (h *LoginCallback) Hits() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hits
}

// CallbackURL returns the forward URL for a server started at base.
func (h *LoginCallback) CallbackURL(base string) string {
	return base + "/callback?state=" + h.state
}
