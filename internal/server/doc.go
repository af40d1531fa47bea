// Package server provides HTTP routing, middleware and the local login callback used by `plexio login`.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Mux] registers method patterns on an [http.ServeMux]. [Middleware] added first runs first.
//
// # Login Callback
//
// Plex logins use a PIN: plexio creates one, opens app.plex.tv in the browser and polls plex.tv until the PIN
// carries a token. The auth URL's forwardUrl points at a [LoginCallback] served by a temporary [Server] on
// the configured host and port. The page tells the user to return to the terminal and pokes the poller.
//
// The server only lives for the duration of the login and is shut down once a token arrives or the login times out.
package server
