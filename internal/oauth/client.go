// Package oauth exchanges provider authorization codes for a verified profile identity.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/charlesng35/regprofile/internal/models"
	"github.com/charlesng35/regprofile/pkg/logger"
	"github.com/charlesng35/regprofile/pkg/metrics"
)

// DefaultTimeout bounds a whole exchange: token request plus profile fetch.
const DefaultTimeout = 10 * time.Second

var (
	ErrTokenExchangeFailed = errors.New("oauth: token exchange failed")
	ErrProfileFetchFailed  = errors.New("oauth: profile fetch failed")
	ErrProviderDisabled    = errors.New("oauth: provider not configured")
)

// Profile is the provider identity proven by a successful exchange.
type Profile struct {
	Subject    string
	ProfileURL string
}

// ProviderConfig holds the client registration for one provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	ProfileURL   string
	Scopes       []string
}

// Config configures the exchange client.
type Config struct {
	Timeout    time.Duration
	HTTPClient *http.Client
	Providers  map[models.SocialProvider]ProviderConfig
}

// Exchanger is the contract consumed by the link flow.
type Exchanger interface {
	Exchange(ctx context.Context, provider models.SocialProvider, code, redirectURI string) (Profile, error)
	AuthCodeURL(provider models.SocialProvider, state, redirectURI string) (string, error)
}

type providerClient struct {
	oauth   oauth2.Config
	fetcher profileFetcher
}

// Client performs one-shot authorization code exchanges against LinkedIn and GitHub.
type Client struct {
	timeout    time.Duration
	httpClient *http.Client
	providers  map[models.SocialProvider]providerClient
}

// NewClient builds a Client for every provider with a client id configured.
func NewClient(cfg Config) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	client := &Client{
		timeout:    timeout,
		httpClient: httpClient,
		providers:  make(map[models.SocialProvider]providerClient, len(cfg.Providers)),
	}

	for provider, pc := range cfg.Providers {
		if strings.TrimSpace(pc.ClientID) == "" {
			continue
		}
		defaults, ok := providerDefaults[provider]
		if !ok {
			return nil, fmt.Errorf("oauth: %w: %q", models.ErrUnknownProvider, provider)
		}

		endpoint := defaults.endpoint
		if pc.AuthURL != "" {
			endpoint.AuthURL = pc.AuthURL
		}
		if pc.TokenURL != "" {
			endpoint.TokenURL = pc.TokenURL
		}
		endpoint.AuthStyle = oauth2.AuthStyleInParams

		scopes := pc.Scopes
		if len(scopes) == 0 {
			scopes = defaults.scopes
		}
		profileURL := pc.ProfileURL
		if profileURL == "" {
			profileURL = defaults.profileURL
		}

		client.providers[provider] = providerClient{
			oauth: oauth2.Config{
				ClientID:     pc.ClientID,
				ClientSecret: pc.ClientSecret,
				Endpoint:     endpoint,
				Scopes:       scopes,
			},
			fetcher: defaults.newFetcher(profileURL),
		}
	}

	return client, nil
}

// Enabled reports whether the provider has a client registration.
func (c *Client) Enabled(provider models.SocialProvider) bool {
	_, ok := c.providers[provider]
	return ok
}

// AuthCodeURL returns the provider authorize URL for the given state and redirect.
func (c *Client) AuthCodeURL(provider models.SocialProvider, state, redirectURI string) (string, error) {
	pc, ok := c.providers[provider]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrProviderDisabled, provider)
	}
	cfg := pc.oauth
	cfg.RedirectURL = redirectURI
	return cfg.AuthCodeURL(state), nil
}

// Exchange trades the authorization code for a token and fetches the caller's profile.
// A single attempt is made, bounded by the configured timeout.
func (c *Client) Exchange(ctx context.Context, provider models.SocialProvider, code, redirectURI string) (Profile, error) {
	pc, ok := c.providers[provider]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrProviderDisabled, provider)
	}
	log := logger.FromContext(ctx, "oauth").With(zap.String("provider", string(provider)))

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	cfg := pc.oauth
	cfg.RedirectURL = redirectURI

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		log.Warn("token exchange failed", zap.Error(err))
		metrics.OAuthExchanges.WithLabelValues(string(provider), "token_failed").Inc()
		return Profile{}, fmt.Errorf("%w: %v", ErrTokenExchangeFailed, err)
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		metrics.OAuthExchanges.WithLabelValues(string(provider), "token_failed").Inc()
		return Profile{}, fmt.Errorf("%w: empty access token", ErrTokenExchangeFailed)
	}

	profile, err := pc.fetcher(ctx, cfg.Client(ctx, token))
	if err != nil {
		log.Warn("profile fetch failed", zap.Error(err))
		metrics.OAuthExchanges.WithLabelValues(string(provider), "profile_failed").Inc()
		return Profile{}, fmt.Errorf("%w: %v", ErrProfileFetchFailed, err)
	}

	metrics.OAuthExchanges.WithLabelValues(string(provider), "ok").Inc()
	return profile, nil
}
