// Package metrics provides Prometheus instrumentation for plexio imports.
//
// plexio is a short-lived CLI, so nothing is scraped: after an import the registry is written to a
// node_exporter textfile with [Registry.WriteTextfile]. All metrics are prefixed with "plexio_".
//
// # Metrics
//
//   - plexio_match_total{strategy}: items resolved per matching strategy (rating_key, imdb,
//     title_year, title, none)
//   - plexio_playlist_outcomes_total{status}: imported playlists per outcome status
//   - plexio_circuit_breaker_state{name}: 0=closed, 1=half-open, 2=open
//   - plexio_circuit_breaker_requests_total{name,result}: success, failure or rejected
//
// [Registry] implements tasks.Observer and services.BreakerObserver.
package metrics
