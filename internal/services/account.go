package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexio/internal/shared"
	"github.com/goccy/go-json"
)

const (
	plexTVBaseURL = "https://plex.tv/api/v2"
	plexAuthURL   = "https://app.plex.tv/auth"
)

// PIN is a plex.tv login PIN. AuthToken is set once the user approves it.
type PIN struct {
	ID        int       `json:"id"`
	Code      string    `json:"code"`
	AuthToken string    `json:"authToken,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// ResourceConnection is one way of reaching a [Resource].
type ResourceConnection struct {
	Protocol string `json:"protocol"`
	Address  string `json:"address"`
	Port     int    `json:"port"`
	URI      string `json:"uri"`
	Local    bool   `json:"local"`
	Relay    bool   `json:"relay"`
}

// Resource is a device registered to a plex.tv account.
type Resource struct {
	Name             string               `json:"name"`
	ClientIdentifier string               `json:"clientIdentifier"`
	Provides         string               `json:"provides"`
	Owned            bool                 `json:"owned"`
	AccessToken      string               `json:"accessToken"`
	Presence         bool                 `json:"presence"`
	Connections      []ResourceConnection `json:"connections"`
}

// IsServer reports whether the resource provides a media server.
func (r Resource) IsServer() bool {
	return slices.Contains(strings.Split(r.Provides, ","), "server")
}

// PlexAccount performs the plex.tv PIN login and server discovery.
type PlexAccount struct {
	httpClient *http.Client
	clientID   string
	baseURL    string
	authURL    string
	logger     *log.Logger
}

// AccountOpts configures a [PlexAccount]. BaseURL and AuthURL default to plex.tv.
type AccountOpts struct {
	ClientID   string
	HTTPClient *http.Client
	BaseURL    string
	AuthURL    string
	Logger     *log.Logger
}

// NewPlexAccount creates a PlexAccount.
func NewPlexAccount(opts AccountOpts) *PlexAccount {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.BaseURL == "" {
		opts.BaseURL = plexTVBaseURL
	}
	if opts.AuthURL == "" {
		opts.AuthURL = plexAuthURL
	}
	if opts.ClientID == "" {
		opts.ClientID = shared.GenerateID()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}
	return &PlexAccount{
		httpClient: opts.HTTPClient,
		clientID:   opts.ClientID,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		authURL:    opts.AuthURL,
		logger:     opts.Logger,
	}
}

// ClientID returns the X-Plex-Client-Identifier sent with every request.
func (a *PlexAccount) ClientID() string { return a.clientID }

// CreatePIN calls POST /pins?strong=true.
func (a *PlexAccount) CreatePIN(ctx context.Context) (*PIN, error) {
	var pin PIN
	if err := a.request(ctx, http.MethodPost, "/pins?strong=true", "", &pin); err != nil {
		return nil, fmt.Errorf("%w: pin creation: %v", shared.ErrAuthFailed, err)
	}
	return &pin, nil
}

// CheckPIN calls GET /pins/{id}.
func (a *PlexAccount) CheckPIN(ctx context.Context, id int) (*PIN, error) {
	var pin PIN
	if err := a.request(ctx, http.MethodGet, fmt.Sprintf("/pins/%d", id), "", &pin); err != nil {
		return nil, fmt.Errorf("%w: pin check: %v", shared.ErrAuthFailed, err)
	}
	return &pin, nil
}

// AuthURL returns the app.plex.tv page where the user approves code.
//
// When forwardURL is set, Plex redirects the browser there after approval.
func (a *PlexAccount) AuthURL(code, forwardURL string) string {
	params := url.Values{}
	params.Set("clientID", a.clientID)
	params.Set("code", code)
	params.Set("context[device][product]", plexProduct)
	if forwardURL != "" {
		params.Set("forwardUrl", forwardURL)
	}
	return fmt.Sprintf("%s#?%s", a.authURL, params.Encode())
}

// WaitForToken polls the PIN every interval until it carries a token.
//
// A receive on poke triggers an immediate check. Returns [shared.ErrTimeout] when ctx expires first.
func (a *PlexAccount) WaitForToken(ctx context.Context, pin *PIN, interval time.Duration, poke <-chan struct{}) (string, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: plex login was not approved in time", shared.ErrTimeout)
		case <-ticker.C:
		case <-poke:
		}

		checked, err := a.CheckPIN(ctx, pin.ID)
		if err != nil {
			a.logger.Debug("pin check failed", "pin", pin.ID, "error", err)
			continue
		}
		if checked.AuthToken != "" {
			return checked.AuthToken, nil
		}
	}
}

// Resources calls GET /resources for the account owning token.
func (a *PlexAccount) Resources(ctx context.Context, token string) ([]Resource, error) {
	var resources []Resource
	if err := a.request(ctx, http.MethodGet, "/resources?includeHttps=1&includeRelay=1", token, &resources); err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	return resources, nil
}

// SelectServer returns the first resource that provides a server and has at least one connection.
func SelectServer(resources []Resource) (*Resource, error) {
	for _, r := range resources {
		if r.IsServer() && len(r.Connections) > 0 {
			return &r, nil
		}
	}
	return nil, fmt.Errorf("%w: no Plex servers available", shared.ErrSessionUnavailable)
}

// Connect tries the resource's connections (direct before relay) and returns the first
// [PlexService] that answers. opts.BaseURL and opts.Token are filled from the resource.
func (a *PlexAccount) Connect(ctx context.Context, res Resource, opts PlexOpts) (*PlexService, error) {
	conns := slices.Clone(res.Connections)
	slices.SortStableFunc(conns, func(x, y ResourceConnection) int {
		switch {
		case x.Relay == y.Relay:
			return 0
		case y.Relay:
			return -1
		default:
			return 1
		}
	})

	if opts.ClientID == "" {
		opts.ClientID = a.clientID
	}
	opts.Token = res.AccessToken

	var lastErr error
	for _, c := range conns {
		opts.BaseURL = c.URI
		svc, err := NewPlexService(opts)
		if err != nil {
			lastErr = err
			continue
		}
		if err := svc.Connect(ctx); err != nil {
			a.logger.Debug("connection failed", "server", res.Name, "uri", c.URI, "error", err)
			lastErr = err
			continue
		}
		return svc, nil
	}
	return nil, fmt.Errorf("%w: could not reach %s: %v", shared.ErrSessionUnavailable, res.Name, lastErr)
}

func (a *PlexAccount) request(ctx context.Context, method, path, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	setPlexHeaders(req, a.clientID)
	if token != "" {
		req.Header.Set("X-Plex-Token", token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("plex.tv request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
