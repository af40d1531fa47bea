package server

import (
	"net/http"
	"slices"
)

// Mux is the [Router] used by the login server.
//
// Routes are registered as method patterns on an [http.ServeMux], so a request with the wrong
// method gets a 405 with an Allow header and unknown paths get a 404.
type Mux struct {
	mux   *http.ServeMux
	chain []Middleware
}

// NewMux creates an empty [Mux].
func NewMux() *Mux {
	return &Mux{mux: http.NewServeMux()}
}

// Use appends middleware. Only routes registered afterwards are wrapped.
func (m *Mux) Use(middleware ...Middleware) {
	m.chain = append(m.chain, middleware...)
}

// Handle registers handler for method and path.
func (m *Mux) Handle(method, path string, handler http.Handler) {
	m.mux.Handle(method+" "+path, m.wrap(handler))
}

// Handler registers a [Handler] as GET on each of its routes.
func (m *Mux) Handler(handler Handler) {
	wrapped := m.wrap(handler)
	for _, route := range handler.Routes() {
		m.mux.Handle(http.MethodGet+" "+route, wrapped)
	}
}

func (m *Mux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mux.ServeHTTP(w, r)
}

// wrap applies the chain so the first middleware added is the outermost.
func (m *Mux) wrap(handler http.Handler) http.Handler {
	for _, mw := range slices.Backward(m.chain) {
		handler = mw(handler)
	}
	return handler
}
