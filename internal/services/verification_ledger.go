package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/regprofile/internal/models"
)

// History page sizes. A non-positive limit selects the default, larger ones are capped.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// ClampHistoryLimit returns the page size actually served for a requested limit.
func ClampHistoryLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return min(limit, MaxHistoryLimit)
}

// LedgerEntry captures a single verification event to append.
type LedgerEntry struct {
	UserID        string
	Provider      models.SocialProvider
	Action        models.VerificationAction
	ProfileURL    string
	Outcome       string
	FailureReason string
}

// LedgerOption customises the VerificationLedger.
type LedgerOption func(*VerificationLedger)

// WithLedgerClock injects a custom time source.
func WithLedgerClock(clock func() time.Time) LedgerOption {
	return func(l *VerificationLedger) {
		if clock != nil {
			l.now = clock
		}
	}
}

// VerificationLedger appends and queries the immutable social verification history.
type VerificationLedger struct {
	db  *gorm.DB
	now func() time.Time
}

// NewVerificationLedger constructs a ledger on top of the provided database handle.
func NewVerificationLedger(db *gorm.DB, opts ...LedgerOption) (*VerificationLedger, error) {
	if db == nil {
		return nil, errors.New("verification ledger: db is required")
	}
	ledger := &VerificationLedger{db: db, now: time.Now}
	for _, opt := range opts {
		opt(ledger)
	}
	return ledger, nil
}

// WithTx returns a ledger that writes through the caller's transaction.
func (l *VerificationLedger) WithTx(tx *gorm.DB) *VerificationLedger {
	if tx == nil {
		return l
	}
	return &VerificationLedger{db: tx, now: l.now}
}

// Record appends one event. There is no update or delete counterpart.
func (l *VerificationLedger) Record(ctx context.Context, entry LedgerEntry) (*models.SocialVerificationEvent, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(entry.UserID) == "" {
		return nil, errors.New("verification ledger: user id is required")
	}
	if entry.Provider == "" {
		return nil, errors.New("verification ledger: provider is required")
	}
	if entry.Action == "" {
		return nil, errors.New("verification ledger: action is required")
	}
	if strings.TrimSpace(entry.Outcome) == "" {
		return nil, errors.New("verification ledger: outcome is required")
	}

	event := &models.SocialVerificationEvent{
		UserID:        entry.UserID,
		Provider:      string(entry.Provider),
		Action:        entry.Action,
		ProfileURL:    optionalString(entry.ProfileURL),
		Outcome:       entry.Outcome,
		FailureReason: optionalString(entry.FailureReason),
		CreatedAt:     l.now().UTC(),
	}

	if err := l.db.WithContext(ctx).Create(event).Error; err != nil {
		return nil, fmt.Errorf("verification ledger: append: %w", err)
	}
	return event, nil
}

// HistoryForUser returns the user's events, most recent first.
func (l *VerificationLedger) HistoryForUser(ctx context.Context, userID string, limit int) ([]models.SocialVerificationEvent, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("verification ledger: user id is required")
	}

	var events []models.SocialVerificationEvent
	err := l.newestFirst(ctx, limit).
		Where("user_id = ?", userID).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("verification ledger: history for user: %w", err)
	}
	return events, nil
}

// HistoryForProfile returns every user's events for a profile, most recent first.
func (l *VerificationLedger) HistoryForProfile(ctx context.Context, provider models.SocialProvider, profileURL string, limit int) ([]models.SocialVerificationEvent, error) {
	ctx = ensureContext(ctx)
	profileURL = models.NormalizeProfileURL(profileURL)
	if provider == "" || profileURL == "" {
		return nil, errors.New("verification ledger: provider and profile url are required")
	}

	var events []models.SocialVerificationEvent
	err := l.newestFirst(ctx, limit).
		Where("provider = ? AND profile_url = ?", string(provider), profileURL).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("verification ledger: history for profile: %w", err)
	}
	return events, nil
}

func (l *VerificationLedger) newestFirst(ctx context.Context, limit int) *gorm.DB {
	return l.db.WithContext(ctx).
		Order("created_at DESC").
		Order("sequence DESC").
		Limit(ClampHistoryLimit(limit))
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
