package app

import (
	"strings"

	"github.com/charlesng35/regprofile/internal/handlers"
	"github.com/charlesng35/regprofile/internal/models"
	"github.com/charlesng35/regprofile/internal/oauth"
)

// ClientConfig converts OAuthConfig into the exchange client configuration.
// Providers without a client id are left out and stay disabled.
func (c OAuthConfig) ClientConfig() oauth.Config {
	providers := make(map[models.SocialProvider]oauth.ProviderConfig, 2)
	for provider, settings := range map[models.SocialProvider]OAuthProviderSettings{
		models.ProviderLinkedIn: c.LinkedIn,
		models.ProviderGitHub:   c.GitHub,
	} {
		if strings.TrimSpace(settings.ClientID) == "" {
			continue
		}
		providers[provider] = oauth.ProviderConfig{
			ClientID:     strings.TrimSpace(settings.ClientID),
			ClientSecret: settings.ClientSecret,
			AuthURL:      strings.TrimSpace(settings.AuthURL),
			TokenURL:     strings.TrimSpace(settings.TokenURL),
			ProfileURL:   strings.TrimSpace(settings.ProfileURL),
			Scopes:       trimAll(settings.Scopes),
		}
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = oauth.DefaultTimeout
	}

	return oauth.Config{
		Timeout:   timeout,
		Providers: providers,
	}
}

// HandlerConfig converts OAuthConfig into redirect handling parameters.
func (c OAuthConfig) HandlerConfig() handlers.OAuthHandlerConfig {
	return handlers.OAuthHandlerConfig{
		CallbackBaseURL:      strings.TrimSpace(c.CallbackBaseURL),
		AllowedReturnOrigins: trimAll(c.AllowedReturnOrigins),
		DefaultReturnURL:     strings.TrimSpace(c.DefaultReturnURL),
	}
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
