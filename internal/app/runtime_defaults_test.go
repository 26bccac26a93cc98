package app

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyRuntimeDefaultsGeneratesStateKey(t *testing.T) {
	cfg := &Config{}

	generated, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.True(t, generated["oauth.state_key"])

	key, err := cfg.OAuth.StateSigningKey()
	require.NoError(t, err)
	require.Len(t, key, stateKeyBytes)
	require.Empty(t, cfg.Auth.JWT.Secret, "bearer secrets are never generated")
}

func TestApplyRuntimeDefaultsPreservesExistingKey(t *testing.T) {
	cfg := &Config{}
	cfg.OAuth.StateKey = strings.Repeat("k", 24)

	generated, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.Empty(t, generated)
	require.Equal(t, strings.Repeat("k", 24), cfg.OAuth.StateKey)
}

func TestApplyRuntimeDefaultsNilConfig(t *testing.T) {
	_, err := ApplyRuntimeDefaults(nil)
	require.ErrorContains(t, err, "config is nil")
}

func TestGenerateHexKey(t *testing.T) {
	key, err := generateHexKey(4)
	require.NoError(t, err)
	require.Len(t, key, 8)

	_, err = generateHexKey(0)
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Auth.JWT.Secret = "secret"
		cfg.OAuth.StateKey = strings.Repeat("s", 32)
		return cfg
	}

	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Auth.JWT.Secret = ""
	require.ErrorContains(t, cfg.Validate(), "auth.jwt.secret")

	cfg.Auth.OIDC.Issuer = "https://id.example.com"
	require.ErrorContains(t, cfg.Validate(), "auth.oidc.client_id")
	cfg.Auth.OIDC.ClientID = "regprofile"
	require.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.OAuth.StateKey = "short"
	require.ErrorContains(t, cfg.Validate(), "oauth.state_key")

	cfg.OAuth.StateKey = ""
	require.ErrorContains(t, cfg.Validate(), "oauth.state_key")

	var nilCfg *Config
	require.Error(t, nilCfg.Validate())
}
