// package services defines the [Catalog] capability interface and its Plex Media Server implementation
package services

import (
	"context"

	"github.com/desertthunder/plexio/internal/models"
)

// Catalog is the capability set plexio needs from a media server session.
//
// Every call may fail. Implementations map "no such item/section" to [shared.ErrNotFound]
// and other request failures to [shared.ErrTransient].
type Catalog interface {
	// Name returns the display name of the server.
	Name() string

	// Playlists lists every playlist on the server.
	Playlists(ctx context.Context) ([]models.Playlist, error)

	// PlaylistItems lists a playlist's items in playlist order.
	PlaylistItems(ctx context.Context, pl models.Playlist) ([]models.Media, error)

	// DeletePlaylist removes a playlist.
	DeletePlaylist(ctx context.Context, pl models.Playlist) error

	// FetchItem fetches an item by its rating key.
	FetchItem(ctx context.Context, ratingKey string) (*models.Media, error)

	// Section returns the library section with the given title.
	Section(ctx context.Context, name string) (*models.Section, error)

	// Search searches a section by title, narrowed to year when year > 0.
	Search(ctx context.Context, section models.Section, title string, year int) ([]models.Media, error)

	// CreatePlaylist creates a playlist holding items in the given order.
	CreatePlaylist(ctx context.Context, name string, items []models.Media) (*models.Playlist, error)
}
