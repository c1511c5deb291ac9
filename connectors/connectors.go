// Package connectors lets users authorize a meeting platform and ask it to
// join a meeting. Each platform is gated by a feature flag.
package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/oauth2"
)

var (
	// ErrDisabled is returned by every operation of a disabled connector.
	ErrDisabled = errors.New("integration disabled")

	// ErrUnknownProvider is returned by Registry.Get for unregistered names.
	ErrUnknownProvider = errors.New("unknown integration provider")
)

// Connector is an OAuth-backed meeting platform.
type Connector interface {
	Name() string
	Enabled() bool
	AuthorizationURL(state string) (string, error)
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	JoinMeeting(ctx context.Context, meetingID, accessToken string) (map[string]interface{}, error)
}

// Config holds one OAuth application.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Enabled      bool

	// AuthURL, TokenURL and APIBaseURL override the platform defaults.
	AuthURL    string
	TokenURL   string
	APIBaseURL string

	// HTTPClient is used for token exchange and API calls.
	HTTPClient *http.Client
}

// oauthConnector implements Connector for platforms that differ only in
// endpoints and the join path.
type oauthConnector struct {
	name       string
	enabled    bool
	oauth      *oauth2.Config
	apiBaseURL string
	scopes     []string
	joinPath   func(meetingID string) string
	httpClient *http.Client
}

func newOAuthConnector(name string, cfg Config, authURL, tokenURL, apiBaseURL string, scopes []string, joinPath func(string) string) *oauthConnector {
	if cfg.AuthURL != "" {
		authURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		tokenURL = cfg.TokenURL
	}
	if cfg.APIBaseURL != "" {
		apiBaseURL = cfg.APIBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &oauthConnector{
		name:    name,
		enabled: cfg.Enabled,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiBaseURL: strings.TrimRight(apiBaseURL, "/"),
		scopes:     scopes,
		joinPath:   joinPath,
		httpClient: httpClient,
	}
}

func (c *oauthConnector) Name() string  { return c.name }
func (c *oauthConnector) Enabled() bool { return c.enabled }

func (c *oauthConnector) disabled() error {
	return fmt.Errorf("%s: %w", c.name, ErrDisabled)
}

// AuthorizationURL returns the consent page URL carrying state.
func (c *oauthConnector) AuthorizationURL(state string) (string, error) {
	if !c.enabled {
		return "", c.disabled()
	}
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// Exchange trades an authorization code for a token.
func (c *oauthConnector) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if !c.enabled {
		return nil, c.disabled()
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: exchange code: %w", c.name, err)
	}
	return token, nil
}

// JoinMeeting asks the platform to join meetingID on behalf of the token
// owner and returns the platform's JSON reply.
func (c *oauthConnector) JoinMeeting(ctx context.Context, meetingID, accessToken string) (map[string]interface{}, error) {
	if !c.enabled {
		return nil, c.disabled()
	}
	if meetingID == "" {
		return nil, fmt.Errorf("%s: meeting id is required", c.name)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	endpoint := c.apiBaseURL + c.joinPath(url.PathEscape(meetingID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", c.name, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: join meeting: %w", c.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", c.name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s: join meeting failed (status %d): %s", c.name, resp.StatusCode, string(body))
	}

	result := map[string]interface{}{}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("%s: decode response: %w", c.name, err)
		}
	}
	return result, nil
}

// Registry looks connectors up by provider name.
type Registry struct {
	connectors map[string]Connector
}

// NewRegistry creates a registry of the given connectors.
func NewRegistry(cs ...Connector) *Registry {
	r := &Registry{connectors: make(map[string]Connector, len(cs))}
	for _, c := range cs {
		r.connectors[c.Name()] = c
	}
	return r
}

// Get returns the connector registered under name.
func (r *Registry) Get(name string) (Connector, error) {
	c, ok := r.connectors[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return c, nil
}

// Enabled returns the names of enabled connectors, sorted.
func (r *Registry) Enabled() []string {
	var names []string
	for name, c := range r.connectors {
		if c.Enabled() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
