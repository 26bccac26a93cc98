// Package identity maps authenticated token claims onto a registered user row.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/charlesng35/regprofile/internal/models"
	"github.com/charlesng35/regprofile/pkg/logger"
)

// ErrUserNotFound is returned when no strategy matches a user.
var ErrUserNotFound = errors.New("identity: user not found")

// Claims carries the subset of bearer token claims used to find the caller.
type Claims struct {
	Subject       string
	Email         string
	EmailVerified bool
}

// Strategy attempts to resolve claims to a user id. matched reports whether the
// strategy found a user; a non-nil error aborts the chain.
type Strategy func(ctx context.Context, claims Claims) (userID string, matched bool, err error)

// Resolver runs an ordered list of strategies and returns the first match.
type Resolver struct {
	strategies []Strategy
}

// NewResolver builds the default chain: strict id match first, then verified email.
func NewResolver(db *gorm.DB) (*Resolver, error) {
	if db == nil {
		return nil, errors.New("identity: db is required")
	}
	return NewResolverWithStrategies(StrictID(db), VerifiedEmail(db)), nil
}

// NewResolverWithStrategies builds a resolver from a custom strategy chain.
func NewResolverWithStrategies(strategies ...Strategy) *Resolver {
	chain := make([]Strategy, 0, len(strategies))
	for _, s := range strategies {
		if s != nil {
			chain = append(chain, s)
		}
	}
	return &Resolver{strategies: chain}
}

// Resolve returns the id of the user the claims belong to.
func (r *Resolver) Resolve(ctx context.Context, claims Claims) (string, error) {
	for _, strategy := range r.strategies {
		userID, matched, err := strategy(ctx, claims)
		if err != nil {
			return "", err
		}
		if matched {
			return userID, nil
		}
	}

	logger.FromContext(ctx, "identity").Debug("no user matched token claims")
	return "", ErrUserNotFound
}

// StrictID matches when the subject claim is a UUID naming an existing user.
func StrictID(db *gorm.DB) Strategy {
	return func(ctx context.Context, claims Claims) (string, bool, error) {
		id, err := uuid.Parse(strings.TrimSpace(claims.Subject))
		if err != nil {
			return "", false, nil
		}

		var user models.User
		err = db.WithContext(ctx).Select("id").Take(&user, "id = ?", id.String()).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		if err != nil {
			return "", false, fmt.Errorf("identity: lookup by id: %w", err)
		}
		return user.ID, true, nil
	}
}

// VerifiedEmail matches on a provider-verified email. Duplicate accounts are
// disambiguated by completed profile, most recent completion, then newest row.
func VerifiedEmail(db *gorm.DB) Strategy {
	return func(ctx context.Context, claims Claims) (string, bool, error) {
		email := strings.ToLower(strings.TrimSpace(claims.Email))
		if email == "" || !claims.EmailVerified {
			return "", false, nil
		}

		var user models.User
		err := db.WithContext(ctx).
			Select("id").
			Where("LOWER(email) = ?", email).
			Order("profile_completed DESC").
			Order("CASE WHEN profile_completed_at IS NULL THEN 1 ELSE 0 END").
			Order("profile_completed_at DESC").
			Order("created_at DESC").
			Take(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		if err != nil {
			return "", false, fmt.Errorf("identity: lookup by email: %w", err)
		}
		return user.ID, true, nil
	}
}
