// Package services defines the [Catalog] interface for media servers and implements it for Plex Media Server.
//
// # Catalog Interface
//
// [Catalog] is the capability boundary the export/import engine works against: list, enumerate and delete
// playlists, fetch an item by rating key, resolve a library section, search a section by title (and year),
// and create a playlist from an ordered item list. Tests use a hand-written fake; nothing in the engine
// talks to the network directly.
//
// # Plex Implementation
//
// [PlexService] calls a single server's JSON API:
//   - GET / : friendly name and machine identifier ([PlexService.Connect])
//   - GET /playlists, GET /playlists/{key}/items, DELETE /playlists/{key}
//   - GET /library/metadata/{key}
//   - GET /library/sections, GET /library/sections/{key}/all?title=&year=
//   - POST /playlists?type=&title=&smart=0&uri=server://{machine}/com.plexapp.plugins.library/library/metadata/{keys}
//
// Requests pass through a token-bucket limiter and are retried with exponential backoff on transport errors,
// 429 and 5xx. Library sections are cached in an expiring LRU.
//
// # Account
//
// [PlexAccount] implements the plex.tv PIN login: create a PIN, send the user to [PlexAccount.AuthURL],
// poll until the PIN carries a token, then list the account's resources and connect to the first server.
//
// # Circuit Breaker
//
// [BreakerCatalog] decorates any Catalog with a circuit breaker. When the server keeps failing, calls are
// rejected immediately with [shared.ErrTransient], which the matcher treats as "no match".
//
// # Error Handling
//
// Services use sentinel errors from the shared package:
//   - [shared.ErrNotFound] : 404 or unknown section
//   - [shared.ErrTransient] : any other failed request, or an open circuit
//   - [shared.ErrCreation] : playlist creation rejected
//   - [shared.ErrSessionUnavailable] : the server could not be reached at connect time
package services
