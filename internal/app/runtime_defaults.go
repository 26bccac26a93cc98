package app

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const stateKeyBytes = 32

// ApplyRuntimeDefaults fills in secrets that may safely be ephemeral. It returns the
// generated keys so callers can log the event without exposing values.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	generated := make(map[string]bool)

	// Only in-flight link flows depend on this key, so a restart costs at most one retry.
	if strings.TrimSpace(cfg.OAuth.StateKey) == "" {
		key, err := generateHexKey(stateKeyBytes)
		if err != nil {
			return nil, fmt.Errorf("generate oauth state key: %w", err)
		}
		cfg.OAuth.StateKey = key
		generated["oauth.state_key"] = true
	}

	return generated, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if !c.Auth.UsesOIDC() && strings.TrimSpace(c.Auth.JWT.Secret) == "" {
		return errors.New("auth.jwt.secret must be configured when auth.oidc.issuer is empty")
	}
	if c.Auth.UsesOIDC() && strings.TrimSpace(c.Auth.OIDC.ClientID) == "" {
		return errors.New("auth.oidc.client_id must be configured with auth.oidc.issuer")
	}
	key, err := DecodeKey(c.OAuth.StateKey)
	if err != nil {
		return fmt.Errorf("oauth.state_key: %w", err)
	}
	if len(key) < 16 {
		return fmt.Errorf("oauth.state_key must decode to at least 16 bytes (current: %d)", len(key))
	}
	return nil
}

func generateHexKey(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
