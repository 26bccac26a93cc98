package app

import (
	"strings"

	"github.com/charlesng35/regprofile/internal/auth"
)

// UsesOIDC reports whether bearer tokens should be verified against an OIDC issuer.
func (c AuthConfig) UsesOIDC() bool {
	return strings.TrimSpace(c.OIDC.Issuer) != ""
}

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         strings.TrimSpace(c.JWT.Issuer),
		Audience:       strings.TrimSpace(c.JWT.Audience),
		AccessTokenTTL: ttl,
	}
}

// OIDCVerifierConfig converts AuthConfig into OIDC verifier parameters.
func (c AuthConfig) OIDCVerifierConfig() auth.OIDCConfig {
	return auth.OIDCConfig{
		Issuer:   strings.TrimSpace(c.OIDC.Issuer),
		ClientID: strings.TrimSpace(c.OIDC.ClientID),
	}
}
