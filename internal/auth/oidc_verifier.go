package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/charlesng35/regprofile/internal/identity"
)

// OIDCConfig describes the identity provider whose ID tokens are accepted as bearer tokens.
type OIDCConfig struct {
	Issuer     string
	ClientID   string
	HTTPClient *http.Client
	Clock      func() time.Time
}

// OIDCVerifier validates bearer tokens issued by an OpenID Connect provider.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier performs discovery against the issuer and builds a verifier from its JWKS.
func NewOIDCVerifier(ctx context.Context, cfg OIDCConfig) (*OIDCVerifier, error) {
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, errors.New("oidc verifier: issuer is required")
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("oidc verifier: client id is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.HTTPClient != nil {
		ctx = oidc.ClientContext(ctx, cfg.HTTPClient)
	}

	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc verifier: discover issuer: %w", err)
	}

	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID, Now: cfg.Clock}),
	}, nil
}

// NewOIDCVerifierWithKeySet builds a verifier from an explicit key set, skipping discovery.
func NewOIDCVerifierWithKeySet(cfg OIDCConfig, keySet oidc.KeySet) (*OIDCVerifier, error) {
	if keySet == nil {
		return nil, errors.New("oidc verifier: key set is required")
	}
	if strings.TrimSpace(cfg.Issuer) == "" || strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("oidc verifier: issuer and client id are required")
	}
	return &OIDCVerifier{
		verifier: oidc.NewVerifier(cfg.Issuer, keySet, &oidc.Config{ClientID: cfg.ClientID, Now: cfg.Clock}),
	}, nil
}

// Verify implements TokenVerifier.
func (v *OIDCVerifier) Verify(ctx context.Context, raw string) (identity.Claims, error) {
	if strings.TrimSpace(raw) == "" {
		return identity.Claims{}, ErrInvalidToken
	}

	token, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return identity.Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var claims map[string]any
	if err := token.Claims(&claims); err != nil {
		return identity.Claims{}, fmt.Errorf("%w: decode claims: %v", ErrInvalidToken, err)
	}

	return identity.Claims{
		Subject:       token.Subject,
		Email:         stringValue(claims, "email"),
		EmailVerified: boolValue(claims, "email_verified"),
	}, nil
}

func stringValue(claims map[string]any, key string) string {
	if v, ok := claims[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Some providers encode email_verified as a string.
func boolValue(claims map[string]any, key string) bool {
	if v, ok := claims[key]; ok {
		switch val := v.(type) {
		case bool:
			return val
		case string:
			return strings.EqualFold(val, "true")
		}
	}
	return false
}
