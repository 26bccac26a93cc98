package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/regprofile/internal/auth"
	"github.com/charlesng35/regprofile/internal/models"
	"github.com/charlesng35/regprofile/internal/oauth"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata"))
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "console", cfg.Server.LogFormat)
	require.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	require.Equal(t, 12, cfg.Server.RateLimit.Requests)
	require.Equal(t, 30*time.Second, cfg.Server.RateLimit.Window)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)
	require.Equal(t, 3306, cfg.Database.MySQL.Port)

	require.True(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, "redis.example.com:6380", cfg.Cache.Redis.Address)
	require.Equal(t, 2, cfg.Cache.Redis.DB)
	require.Equal(t, 2*time.Second, cfg.Cache.Redis.Timeout)

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, "regprofile-api", cfg.Auth.JWT.Audience)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)
	require.False(t, cfg.Auth.UsesOIDC())

	require.Equal(t, 5*time.Second, cfg.OAuth.Timeout)
	require.Equal(t, []string{"https://app.example.com", "https://staging.example.com"}, cfg.OAuth.AllowedReturnOrigins)
	require.Equal(t, 5*time.Minute, cfg.OAuth.StateTTL)
	require.Equal(t, "gh-client", cfg.OAuth.GitHub.ClientID)
	require.Equal(t, []string{"openid", "profile", "email"}, cfg.OAuth.LinkedIn.Scopes)

	require.Equal(t, 168*time.Hour, cfg.Drafts.TTL)
	require.Equal(t, 65536, cfg.Drafts.MaxPayloadBytes)
	require.Equal(t, "@every 30m", cfg.Maintenance.DraftSweepSchedule)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.False(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, 10*time.Second, cfg.OAuth.Timeout)
	require.Equal(t, 10*time.Minute, cfg.OAuth.StateTTL)
	require.Equal(t, 720*time.Hour, cfg.Drafts.TTL)
	require.Equal(t, 256<<10, cfg.Drafts.MaxPayloadBytes)
	require.Equal(t, "@hourly", cfg.Maintenance.DraftSweepSchedule)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("REGPROFILE_SERVER_PORT", "7070")
	t.Setenv("REGPROFILE_AUTH_OIDC_ISSUER", "https://id.example.com")
	t.Setenv("REGPROFILE_DRAFTS_TTL", "48h")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 7070, cfg.Server.Port)
	require.True(t, cfg.Auth.UsesOIDC())
	require.Equal(t, 48*time.Hour, cfg.Drafts.TTL)
}

func TestAuthConfigAdapters(t *testing.T) {
	cfg := AuthConfig{
		JWT:  JWTSettings{Secret: "secret", Issuer: " issuer ", Audience: "aud", TTL: 30 * time.Minute},
		OIDC: OIDCSettings{Issuer: "https://id.example.com", ClientID: "client"},
	}

	require.Equal(t, auth.JWTConfig{
		Secret:         "secret",
		Issuer:         "issuer",
		Audience:       "aud",
		AccessTokenTTL: 30 * time.Minute,
	}, cfg.JWTServiceConfig())
	require.Equal(t, auth.OIDCConfig{Issuer: "https://id.example.com", ClientID: "client"}, cfg.OIDCVerifierConfig())

	var empty AuthConfig
	require.Equal(t, auth.DefaultAccessTokenTTL, empty.JWTServiceConfig().AccessTokenTTL)
}

func TestOAuthConfigAdapters(t *testing.T) {
	cfg := OAuthConfig{
		CallbackBaseURL:      " https://api.example.com ",
		AllowedReturnOrigins: []string{"https://app.example.com", " "},
		GitHub:               OAuthProviderSettings{ClientID: "gh", ClientSecret: "s", Scopes: []string{" read:user "}},
	}

	client := cfg.ClientConfig()
	require.Equal(t, oauth.DefaultTimeout, client.Timeout)
	require.Len(t, client.Providers, 1)
	require.Equal(t, oauth.ProviderConfig{
		ClientID:     "gh",
		ClientSecret: "s",
		Scopes:       []string{"read:user"},
	}, client.Providers[models.ProviderGitHub])

	handler := cfg.HandlerConfig()
	require.Equal(t, "https://api.example.com", handler.CallbackBaseURL)
	require.Equal(t, []string{"https://app.example.com"}, handler.AllowedReturnOrigins)
}

func TestDraftsConfigServiceOptions(t *testing.T) {
	require.Empty(t, DraftsConfig{}.ServiceOptions())
	require.Len(t, DraftsConfig{TTL: time.Hour}.ServiceOptions(), 1)
	require.Len(t, DraftsConfig{TTL: time.Hour, MaxPayloadBytes: 10}.ServiceOptions(), 2)
}
