// Plex Media Server [Catalog] implementation
//
// Talks to a single server over its JSON API with the X-Plex-Token header.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexio/internal/models"
	"github.com/desertthunder/plexio/internal/shared"
	"github.com/goccy/go-json"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	plexProduct = "plexio"
	plexVersion = "0.1.0"

	libraryURIFormat = "server://%s/com.plexapp.plugins.library/library/metadata/%s"
)

// PlexMetadata is an item entry in a MediaContainer.
type PlexMetadata struct {
	RatingKey    string `json:"ratingKey"`
	Key          string `json:"key"`
	GUID         string `json:"guid"`
	Type         string `json:"type"`
	Title        string `json:"title"`
	Year         int    `json:"year"`
	Summary      string `json:"summary"`
	PlaylistType string `json:"playlistType"`
	Smart        bool   `json:"smart"`
	LeafCount    int    `json:"leafCount"`
}

// PlexDirectory is a library section entry in a MediaContainer.
type PlexDirectory struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// PlexMediaContainer is the envelope of every Plex server response.
type PlexMediaContainer struct {
	Size              int             `json:"size"`
	FriendlyName      string          `json:"friendlyName"`
	MachineIdentifier string          `json:"machineIdentifier"`
	Metadata          []PlexMetadata  `json:"Metadata"`
	Directory         []PlexDirectory `json:"Directory"`
}

type plexResponse struct {
	MediaContainer PlexMediaContainer `json:"MediaContainer"`
}

// statusError carries a non-2xx response status.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("plex returned status %d", e.code)
	}
	return fmt.Sprintf("plex returned status %d: %s", e.code, e.body)
}

// PlexOpts configures a [PlexService].
type PlexOpts struct {
	BaseURL           string
	Token             string
	ClientID          string
	HTTPClient        *http.Client
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxRetries        int
	RetryDelay        time.Duration
	CacheSize         int
	CacheTTL          time.Duration
	Logger            *log.Logger
}

// PlexService implements [Catalog] against one Plex Media Server.
//
// Requests are rate limited, transient failures (transport errors, 429, 5xx) are retried with
// exponential backoff, and library section lookups are cached.
type PlexService struct {
	baseURL    *url.URL
	token      string
	clientID   string
	httpClient *http.Client
	limiter    *rate.Limiter
	attempts   uint
	retryDelay time.Duration
	sections   *expirable.LRU[string, models.Section]
	logger     *log.Logger

	mu        sync.RWMutex
	name      string
	machineID string
}

var _ Catalog = (*PlexService)(nil)

// NewPlexService creates a PlexService. Call [PlexService.Connect] before use.
func NewPlexService(opts PlexOpts) (*PlexService, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("%w: plex server URL is empty", shared.ErrMissingConfig)
	}
	if opts.Token == "" {
		return nil, fmt.Errorf("%w: plex token is empty, run `plexio login`", shared.ErrMissingCredentials)
	}

	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid plex server URL %q", shared.ErrInvalidConfig, opts.BaseURL)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 5
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 32
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}

	return &PlexService{
		baseURL:    base,
		token:      opts.Token,
		clientID:   opts.ClientID,
		httpClient: opts.HTTPClient,
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		attempts:   uint(opts.MaxRetries) + 1,
		retryDelay: opts.RetryDelay,
		sections:   expirable.NewLRU[string, models.Section](opts.CacheSize, nil, opts.CacheTTL),
		logger:     opts.Logger,
		name:       base.Host,
	}, nil
}

// Connect reads the server identity (friendly name and machine identifier).
//
// Failure means the session is unusable and is reported as [shared.ErrSessionUnavailable].
func (p *PlexService) Connect(ctx context.Context) error {
	var resp plexResponse
	if err := p.do(ctx, http.MethodGet, "/", nil, &resp); err != nil {
		return fmt.Errorf("%w: %s: %v", shared.ErrSessionUnavailable, p.baseURL.Redacted(), err)
	}
	if resp.MediaContainer.MachineIdentifier == "" {
		return fmt.Errorf("%w: %s did not report a machine identifier", shared.ErrSessionUnavailable, p.baseURL.Redacted())
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if resp.MediaContainer.FriendlyName != "" {
		p.name = resp.MediaContainer.FriendlyName
	}
	p.machineID = resp.MediaContainer.MachineIdentifier
	p.logger.Debug("connected to plex", "server", p.name, "machine_id", p.machineID)
	return nil
}

// Name returns the server's friendly name, or its host before [PlexService.Connect].
func (p *PlexService) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}

// BaseURL returns the server URL requests are sent to.
func (p *PlexService) BaseURL() string {
	return p.baseURL.String()
}

// MachineID returns the machine identifier read by [PlexService.Connect].
func (p *PlexService) MachineID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.machineID
}

// Playlists calls GET /playlists.
func (p *PlexService) Playlists(ctx context.Context) ([]models.Playlist, error) {
	var resp plexResponse
	if err := p.do(ctx, http.MethodGet, "/playlists", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}

	playlists := make([]models.Playlist, 0, len(resp.MediaContainer.Metadata))
	for _, m := range resp.MediaContainer.Metadata {
		playlists = append(playlists, toPlaylist(m))
	}
	return playlists, nil
}

// PlaylistItems calls GET /playlists/{ratingKey}/items.
func (p *PlexService) PlaylistItems(ctx context.Context, pl models.Playlist) ([]models.Media, error) {
	var resp plexResponse
	path := "/playlists/" + url.PathEscape(pl.RatingKey) + "/items"
	if err := p.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list items of %q: %w", pl.Title, err)
	}
	return toMedia(resp.MediaContainer.Metadata), nil
}

// DeletePlaylist calls DELETE /playlists/{ratingKey}.
func (p *PlexService) DeletePlaylist(ctx context.Context, pl models.Playlist) error {
	if err := p.do(ctx, http.MethodDelete, "/playlists/"+url.PathEscape(pl.RatingKey), nil, nil); err != nil {
		return fmt.Errorf("failed to delete %q: %w", pl.Title, err)
	}
	return nil
}

// FetchItem calls GET /library/metadata/{ratingKey}.
func (p *PlexService) FetchItem(ctx context.Context, ratingKey string) (*models.Media, error) {
	var resp plexResponse
	if err := p.do(ctx, http.MethodGet, "/library/metadata/"+url.PathEscape(ratingKey), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch item %s: %w", ratingKey, err)
	}
	if len(resp.MediaContainer.Metadata) == 0 {
		return nil, fmt.Errorf("%w: item %s", shared.ErrNotFound, ratingKey)
	}
	m := toMedia(resp.MediaContainer.Metadata[:1])[0]
	return &m, nil
}

// Section resolves a library section by title (case-insensitive), consulting the cache first.
func (p *PlexService) Section(ctx context.Context, name string) (*models.Section, error) {
	cacheKey := strings.ToLower(name)
	if s, ok := p.sections.Get(cacheKey); ok {
		return &s, nil
	}

	var resp plexResponse
	if err := p.do(ctx, http.MethodGet, "/library/sections", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list library sections: %w", err)
	}

	for _, d := range resp.MediaContainer.Directory {
		s := models.Section{Key: d.Key, Title: d.Title, Type: d.Type}
		p.sections.Add(strings.ToLower(d.Title), s)
		if strings.EqualFold(d.Title, name) {
			return &s, nil
		}
	}
	return nil, fmt.Errorf("%w: library section %q", shared.ErrNotFound, name)
}

// Search calls GET /library/sections/{key}/all filtered by title and, when set, year.
func (p *PlexService) Search(ctx context.Context, section models.Section, title string, year int) ([]models.Media, error) {
	q := url.Values{}
	q.Set("title", title)
	if year > 0 {
		q.Set("year", strconv.Itoa(year))
	}

	var resp plexResponse
	path := "/library/sections/" + url.PathEscape(section.Key) + "/all"
	if err := p.do(ctx, http.MethodGet, path, q, &resp); err != nil {
		return nil, fmt.Errorf("failed to search %q for %q: %w", section.Title, title, err)
	}
	return toMedia(resp.MediaContainer.Metadata), nil
}

// CreatePlaylist calls POST /playlists with a library URI listing the items' rating keys.
func (p *PlexService) CreatePlaylist(ctx context.Context, name string, items []models.Media) (*models.Playlist, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: must include items to add when creating new playlist", shared.ErrCreation)
	}

	machineID := p.MachineID()
	if machineID == "" {
		return nil, fmt.Errorf("%w: not connected", shared.ErrSessionUnavailable)
	}

	keys := make([]string, len(items))
	for i, it := range items {
		keys[i] = it.RatingKey
	}

	q := url.Values{}
	q.Set("type", PlaylistType(items[0].Type))
	q.Set("title", name)
	q.Set("smart", "0")
	q.Set("uri", fmt.Sprintf(libraryURIFormat, machineID, strings.Join(keys, ",")))

	var resp plexResponse
	if err := p.do(ctx, http.MethodPost, "/playlists", q, &resp); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", shared.ErrCreation, name, err)
	}
	if len(resp.MediaContainer.Metadata) == 0 {
		return &models.Playlist{Title: name, ItemCount: len(items)}, nil
	}

	pl := toPlaylist(resp.MediaContainer.Metadata[0])
	return &pl, nil
}

// PlaylistType maps a media type to the playlist type Plex expects.
func PlaylistType(mediaType string) string {
	switch mediaType {
	case "track", "album", "artist":
		return "audio"
	case "photo":
		return "photo"
	default:
		return "video"
	}
}

// do performs one logical request, retrying transient failures.
func (p *PlexService) do(ctx context.Context, method, path string, query url.Values, out any) error {
	return retry.Do(
		func() error { return p.roundTrip(ctx, method, path, query, out) },
		retry.Context(ctx),
		retry.Attempts(p.attempts),
		retry.Delay(p.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Warn("retrying plex request", "method", method, "path", path, "attempt", n+1, "error", err)
		}),
	)
}

func (p *PlexService) roundTrip(ctx context.Context, method, path string, query url.Values, out any) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	u := *p.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	setPlexHeaders(req, p.clientID)
	req.Header.Set("X-Plex-Token", p.token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		serr := &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", shared.ErrNotFound, serr)
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %w", shared.ErrNotAuthenticated, serr)
		default:
			return fmt.Errorf("%w: %w", shared.ErrTransient, serr)
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// isRetryable reports whether err is worth another attempt: transport failures, 429 and 5xx.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var serr *statusError
	if errors.As(err, &serr) {
		return serr.code == http.StatusTooManyRequests || serr.code >= 500
	}
	return errors.Is(err, shared.ErrTransient)
}

// setPlexHeaders adds the client identification headers Plex requires on every request.
func setPlexHeaders(req *http.Request, clientID string) {
	req.Header.Set("X-Plex-Client-Identifier", clientID)
	req.Header.Set("X-Plex-Product", plexProduct)
	req.Header.Set("X-Plex-Version", plexVersion)
	req.Header.Set("X-Plex-Platform", "CLI")
	req.Header.Set("Accept", "application/json")
}

func toMedia(entries []PlexMetadata) []models.Media {
	media := make([]models.Media, 0, len(entries))
	for _, m := range entries {
		media = append(media, models.Media{
			RatingKey: m.RatingKey,
			GUID:      m.GUID,
			Title:     m.Title,
			Year:      m.Year,
			Type:      m.Type,
		})
	}
	return media
}

func toPlaylist(m PlexMetadata) models.Playlist {
	return models.Playlist{
		RatingKey: m.RatingKey,
		Title:     m.Title,
		Summary:   m.Summary,
		Type:      m.PlaylistType,
		Smart:     m.Smart,
		ItemCount: m.LeafCount,
	}
}
