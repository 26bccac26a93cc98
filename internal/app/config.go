package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the registration profile service.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Auth        AuthConfig        `mapstructure:"auth"`
	OAuth       OAuthConfig       `mapstructure:"oauth"`
	Drafts      DraftsConfig      `mapstructure:"drafts"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int             `mapstructure:"port"`
	LogLevel        string          `mapstructure:"log_level"`
	LogFormat       string          `mapstructure:"log_format"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig bounds requests per client IP and route on the social endpoints.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CacheConfig describes cache backends.
type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// AuthConfig captures bearer token verification settings. When OIDC.Issuer is set
// tokens are verified against the issuer's keys, otherwise with the HMAC secret.
type AuthConfig struct {
	JWT  JWTSettings  `mapstructure:"jwt"`
	OIDC OIDCSettings `mapstructure:"oidc"`
}

// JWTSettings configures HMAC signed bearer tokens.
type JWTSettings struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	Audience string        `mapstructure:"audience"`
	TTL      time.Duration `mapstructure:"access_token_ttl"`
}

// OIDCSettings configures verification of identity provider issued tokens.
type OIDCSettings struct {
	Issuer   string `mapstructure:"issuer"`
	ClientID string `mapstructure:"client_id"`
}

// OAuthConfig configures the social profile link flow.
type OAuthConfig struct {
	Timeout              time.Duration         `mapstructure:"timeout"`
	CallbackBaseURL      string                `mapstructure:"callback_base_url"`
	AllowedReturnOrigins []string              `mapstructure:"allowed_return_origins"`
	DefaultReturnURL     string                `mapstructure:"default_return_url"`
	StateKey             string                `mapstructure:"state_key"`
	StateTTL             time.Duration         `mapstructure:"state_ttl"`
	LinkedIn             OAuthProviderSettings `mapstructure:"linkedin"`
	GitHub               OAuthProviderSettings `mapstructure:"github"`
}

// OAuthProviderSettings holds one provider's client registration. Empty endpoints
// fall back to the provider's public defaults.
type OAuthProviderSettings struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	AuthURL      string   `mapstructure:"auth_url"`
	TokenURL     string   `mapstructure:"token_url"`
	ProfileURL   string   `mapstructure:"profile_url"`
	Scopes       []string `mapstructure:"scopes"`
}

// DraftsConfig configures registration draft persistence.
type DraftsConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	MaxPayloadBytes int           `mapstructure:"max_payload_bytes"`
}

// MaintenanceConfig schedules background jobs.
type MaintenanceConfig struct {
	DraftSweepSchedule string `mapstructure:"draft_sweep_schedule"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("REGPROFILE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.rate_limit.requests", 30)
	v.SetDefault("server.rate_limit.window", "1m")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/regprofile.sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.postgres.host", "")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "")
	v.SetDefault("database.postgres.username", "")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.mysql.host", "")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.database", "")
	v.SetDefault("database.mysql.username", "")
	v.SetDefault("database.mysql.password", "")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")

	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.issuer", "")
	v.SetDefault("auth.jwt.audience", "")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")
	v.SetDefault("auth.oidc.issuer", "")
	v.SetDefault("auth.oidc.client_id", "")

	v.SetDefault("oauth.timeout", "10s")
	v.SetDefault("oauth.callback_base_url", "http://localhost:8000")
	v.SetDefault("oauth.allowed_return_origins", []string{})
	v.SetDefault("oauth.default_return_url", "/")
	v.SetDefault("oauth.state_key", "")
	v.SetDefault("oauth.state_ttl", "10m")
	for _, provider := range []string{"linkedin", "github"} {
		v.SetDefault("oauth."+provider+".client_id", "")
		v.SetDefault("oauth."+provider+".client_secret", "")
		v.SetDefault("oauth."+provider+".auth_url", "")
		v.SetDefault("oauth."+provider+".token_url", "")
		v.SetDefault("oauth."+provider+".profile_url", "")
		v.SetDefault("oauth."+provider+".scopes", []string{})
	}

	v.SetDefault("drafts.ttl", "720h") // 30 days
	v.SetDefault("drafts.max_payload_bytes", 256<<10)

	v.SetDefault("maintenance.draft_sweep_schedule", "@hourly")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
