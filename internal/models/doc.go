// Package models defines catalog views and persistence interfaces for plexio.
//
// The package contains two categories of types:
//
// 1. Catalog views: lightweight structs mapped from Plex Media Server responses
//   - [Media] : a playable item with its rating key, composite GUID, title and year
//   - [Playlist] : a playlist handle
//   - [Section] : a library section
//
// 2. Persistent entities: database-backed records of import runs
//   - [ImportRun] : one import invocation with its summary and terminal status
//   - [OutcomeRecord] : per-playlist result of a run
//   - [MissingRecord] : an item no matching strategy could resolve
//
// [ImportRun] implements the Model interface; the Repository[T] interface defines standard CRUD operations for database access.
package models
