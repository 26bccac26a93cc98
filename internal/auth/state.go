package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultStateTTL bounds how long an OAuth round trip may take.
const DefaultStateTTL = 10 * time.Minute

const stateAudience = "oauth-state"

var (
	ErrStateExpired = errors.New("oauth state: expired")
	ErrStateInvalid = errors.New("oauth state: invalid")
)

// StateCodec signs and verifies the state parameter carried through provider redirects.
type StateCodec struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// StatePayload captures the data needed to resume a link flow on callback.
type StatePayload struct {
	UserID    string
	Provider  string
	ReturnURL string
}

type stateClaims struct {
	Provider  string `json:"p"`
	ReturnURL string `json:"r,omitempty"`
	jwt.RegisteredClaims
}

// NewStateCodec constructs a StateCodec signing with the provided HMAC key.
func NewStateCodec(key []byte, ttl time.Duration, now func() time.Time) (*StateCodec, error) {
	if len(key) < 16 {
		return nil, fmt.Errorf("oauth state: key must be at least 16 bytes, got %d", len(key))
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	if now == nil {
		now = time.Now
	}
	return &StateCodec{key: key, ttl: ttl, now: now}, nil
}

// Encode signs the payload into a compact state string.
func (c *StateCodec) Encode(payload StatePayload) (string, error) {
	provider := strings.ToLower(strings.TrimSpace(payload.Provider))
	if provider == "" {
		return "", errors.New("oauth state: provider is required")
	}
	if strings.TrimSpace(payload.UserID) == "" {
		return "", errors.New("oauth state: user id is required")
	}

	now := c.now()
	claims := stateClaims{
		Provider:  provider,
		ReturnURL: payload.ReturnURL,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   payload.UserID,
			Audience:  jwt.ClaimStrings{stateAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("oauth state: sign: %w", err)
	}
	return signed, nil
}

// Decode verifies the state signature and expiry and returns the payload.
func (c *StateCodec) Decode(token string) (StatePayload, error) {
	if strings.TrimSpace(token) == "" {
		return StatePayload{}, ErrStateInvalid
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(stateAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	var claims stateClaims
	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return c.key, nil
	})
	if errors.Is(err, jwt.ErrTokenExpired) {
		return StatePayload{}, ErrStateExpired
	}
	if err != nil {
		return StatePayload{}, ErrStateInvalid
	}
	if claims.Provider == "" || claims.Subject == "" {
		return StatePayload{}, ErrStateInvalid
	}

	return StatePayload{
		UserID:    claims.Subject,
		Provider:  claims.Provider,
		ReturnURL: claims.ReturnURL,
	}, nil
}
