package services

import (
	"context"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/charlesng35/regprofile/internal/identity"
)

var (
	// ErrUserNotFound indicates the user row addressed by an operation does not exist.
	ErrUserNotFound = identity.ErrUserNotFound
	// ErrInvalidProvider indicates a provider name outside the supported set.
	ErrInvalidProvider = errors.New("social profile: invalid provider")
	// ErrInvalidProfileURL indicates an empty or malformed profile URL.
	ErrInvalidProfileURL = errors.New("social profile: invalid profile url")
	// ErrProfileConflict indicates another user already holds the verified profile.
	ErrProfileConflict = errors.New("social profile: already verified by another user")

	// ErrInvalidSection indicates a draft section outside the supported set.
	ErrInvalidSection = errors.New("draft: invalid section")
	// ErrInvalidPayload indicates a draft payload that is not a JSON document.
	ErrInvalidPayload = errors.New("draft: payload must be valid json")
	// ErrPayloadTooLarge indicates a draft payload above the configured limit.
	ErrPayloadTooLarge = errors.New("draft: payload too large")
	// ErrDraftMissing indicates no draft row exists for the section.
	ErrDraftMissing = errors.New("draft: missing")
	// ErrDraftExpired indicates the draft outlived its TTL.
	ErrDraftExpired = errors.New("draft: expired")
	// ErrDraftApplied indicates the draft has been committed and is no longer readable.
	ErrDraftApplied = errors.New("draft: already applied")
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate key") ||
		strings.Contains(lower, "duplicate entry")
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
