package auth

import (
	"context"
	"errors"

	"github.com/charlesng35/regprofile/internal/identity"
)

// ErrInvalidToken is returned by verifiers for any token that cannot be trusted.
var ErrInvalidToken = errors.New("auth: invalid bearer token")

// TokenVerifier validates a raw bearer token and extracts identity claims.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (identity.Claims, error)
}
