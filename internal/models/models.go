// package models defines the catalog and persistence models shared by plexio's packages
package models

import (
	"strings"
	"time"
)

// Model defines the base interface for persisted models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// Media is a read-only view of a catalog item (movie, episode, track...).
type Media struct {
	RatingKey string // server-assigned stable identifier
	GUID      string // composite GUID, e.g. "com.plexapp.agents.imdb://tt0111161?lang=en"
	Title     string
	Year      int // 0 when the catalog has no year
	Type      string
}

// ExternalID returns the last `://`-separated segment of the GUID, or "" when there is no GUID.
func (m Media) ExternalID() string {
	if m.GUID == "" {
		return ""
	}
	parts := strings.Split(m.GUID, "://")
	return parts[len(parts)-1]
}

// Playlist is a catalog playlist handle.
type Playlist struct {
	RatingKey string
	Title     string
	Summary   string
	Type      string // video, audio or photo
	Smart     bool
	ItemCount int
}

// Section is a catalog library section.
type Section struct {
	Key   string
	Title string
	Type  string
}
