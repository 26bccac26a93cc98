package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/regprofile/internal/models"
	"github.com/charlesng35/regprofile/internal/oauth"
	"github.com/charlesng35/regprofile/pkg/logger"
	"github.com/charlesng35/regprofile/pkg/metrics"
)

// Ledger failure reasons.
const (
	ReasonProfileConflict     = "profile_already_verified"
	ReasonUniqueViolation     = "unique_constraint_violation"
	ReasonTokenExchangeFailed = "token_exchange_failed"
	ReasonProfileFetchFailed  = "profile_fetch_failed"
	ReasonProviderDisabled    = "provider_disabled"
	ReasonInvalidProvider     = "invalid_provider"
	ReasonInvalidProfileURL   = "invalid_profile_url"
)

// maxRejectedProvider bounds the raw provider string kept on rejected events.
const maxRejectedProvider = 32

// LinkInput describes a verified profile to attach to a user.
type LinkInput struct {
	UserID     string
	Provider   string
	ProfileURL string
	Subject    string
}

// LinkResult is returned when a profile has been linked.
type LinkResult struct {
	Provider   models.SocialProvider
	ProfileURL string
	VerifiedAt time.Time
}

// ProviderStatus is the public view of one provider's verification state.
type ProviderStatus struct {
	IsConnected bool
	ProfileURL  *string
	VerifiedAt  *time.Time
}

// SocialStatus aggregates the status of every supported provider.
type SocialStatus struct {
	LinkedIn ProviderStatus
	GitHub   ProviderStatus
}

// SocialProfileOption customises the SocialProfileService.
type SocialProfileOption func(*SocialProfileService)

// WithExchanger wires the OAuth client used by CompleteOAuth.
func WithExchanger(exchanger oauth.Exchanger) SocialProfileOption {
	return func(s *SocialProfileService) {
		s.exchanger = exchanger
	}
}

// WithSocialClock injects a custom time source.
func WithSocialClock(clock func() time.Time) SocialProfileOption {
	return func(s *SocialProfileService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// SocialProfileService links and unlinks external profiles while keeping every
// verified (provider, profile url) pair owned by at most one user.
type SocialProfileService struct {
	db        *gorm.DB
	ledger    *VerificationLedger
	exchanger oauth.Exchanger
	now       func() time.Time
}

// NewSocialProfileService constructs the service.
func NewSocialProfileService(db *gorm.DB, ledger *VerificationLedger, opts ...SocialProfileOption) (*SocialProfileService, error) {
	if db == nil {
		return nil, errors.New("social profile service: db is required")
	}
	if ledger == nil {
		return nil, errors.New("social profile service: ledger is required")
	}

	svc := &SocialProfileService{
		db:     db,
		ledger: ledger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// TryLink marks the profile as verified for the user. The pre-check only avoids
// pointless writes; the unique index on the profile url column decides races.
func (s *SocialProfileService) TryLink(ctx context.Context, input LinkInput) (*LinkResult, error) {
	ctx = ensureContext(ctx)

	userID := strings.TrimSpace(input.UserID)
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}

	provider, err := models.ParseSocialProvider(input.Provider)
	if err != nil {
		metrics.SocialLinkAttempts.WithLabelValues("unknown", "invalid_provider").Inc()
		s.recordRejected(ctx, userID, input.Provider, input.ProfileURL, ReasonInvalidProvider)
		return nil, fmt.Errorf("%w: %q", ErrInvalidProvider, input.Provider)
	}
	profileURL := models.NormalizeProfileURL(input.ProfileURL)
	if !models.IsAbsoluteProfileURL(profileURL) {
		metrics.SocialLinkAttempts.WithLabelValues(string(provider), "invalid_profile_url").Inc()
		s.recordRejected(ctx, userID, string(provider), profileURL, ReasonInvalidProfileURL)
		return nil, ErrInvalidProfileURL
	}

	log := logger.FromContext(ctx, "social").With(
		zap.String("user_id", userID),
		zap.String("provider", string(provider)),
	)
	cols := provider.Columns()

	if _, err := s.ledger.Record(ctx, LedgerEntry{
		UserID:     userID,
		Provider:   provider,
		Action:     models.ActionAttempt,
		ProfileURL: profileURL,
		Outcome:    models.OutcomePending,
	}); err != nil {
		metrics.SocialLinkAttempts.WithLabelValues(string(provider), "error").Inc()
		return nil, fmt.Errorf("social profile service: record attempt: %w", err)
	}

	var holders int64
	err = s.db.WithContext(ctx).
		Model(&models.User{}).
		Where(cols.ProfileURL+" = ? AND "+cols.Verified+" = ? AND id <> ?", profileURL, true, userID).
		Count(&holders).Error
	if err != nil {
		metrics.SocialLinkAttempts.WithLabelValues(string(provider), "error").Inc()
		return nil, fmt.Errorf("social profile service: check existing holder: %w", err)
	}
	if holders > 0 {
		s.recordConflict(ctx, log, userID, provider, profileURL, ReasonProfileConflict)
		return nil, ErrProfileConflict
	}

	verifiedAt := s.now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Updates(map[string]any{
				cols.ProfileURL: profileURL,
				cols.Subject:    optionalString(input.Subject),
				cols.Verified:   true,
				cols.VerifiedAt: verifiedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}

		_, err := s.ledger.WithTx(tx).Record(ctx, LedgerEntry{
			UserID:     userID,
			Provider:   provider,
			Action:     models.ActionSucceeded,
			ProfileURL: profileURL,
			Outcome:    models.OutcomeSucceeded,
		})
		return err
	})

	switch {
	case err == nil:
	case isUniqueConstraintError(err):
		// Lost the race between the pre-check and the write. The rollback discarded
		// our mutation; re-read so the log reflects what is actually stored.
		metrics.SocialLinkRaceLosses.WithLabelValues(string(provider)).Inc()
		var current models.User
		if readErr := s.db.WithContext(ctx).Take(&current, "id = ?", userID).Error; readErr == nil {
			state := current.Social(provider)
			log = log.With(zap.Bool("still_verified", state.Verified))
		}
		log.Warn("profile link lost uniqueness race", zap.Error(err))
		s.recordConflict(ctx, log, userID, provider, profileURL, ReasonUniqueViolation)
		return nil, ErrProfileConflict
	case errors.Is(err, ErrUserNotFound):
		return nil, err
	default:
		metrics.SocialLinkAttempts.WithLabelValues(string(provider), "error").Inc()
		s.recordFailure(ctx, log, userID, provider, profileURL, models.OutcomeError, err.Error())
		return nil, fmt.Errorf("social profile service: link profile: %w", err)
	}

	metrics.SocialLinkAttempts.WithLabelValues(string(provider), "linked").Inc()
	log.Info("social profile linked", zap.String("profile_url", profileURL))

	return &LinkResult{
		Provider:   provider,
		ProfileURL: profileURL,
		VerifiedAt: verifiedAt,
	}, nil
}

// Disconnect clears the provider's verification on the caller's own row.
func (s *SocialProfileService) Disconnect(ctx context.Context, userID, rawProvider string) (*SocialStatus, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	provider, err := models.ParseSocialProvider(rawProvider)
	if err != nil {
		if userErr := s.ensureUser(ctx, userID); userErr != nil {
			return nil, userErr
		}
		s.recordRejected(ctx, userID, rawProvider, "", ReasonInvalidProvider)
		return nil, fmt.Errorf("%w: %q", ErrInvalidProvider, rawProvider)
	}
	cols := provider.Columns()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Take(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		previous := user.Social(provider).ProfileURL

		if err := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Updates(map[string]any{
				cols.ProfileURL: nil,
				cols.Subject:    nil,
				cols.Verified:   false,
				cols.VerifiedAt: nil,
			}).Error; err != nil {
			return err
		}

		entry := LedgerEntry{
			UserID:   userID,
			Provider: provider,
			Action:   models.ActionDisconnect,
			Outcome:  models.OutcomeSucceeded,
		}
		if previous != nil {
			entry.ProfileURL = *previous
		}
		_, err := s.ledger.WithTx(tx).Record(ctx, entry)
		return err
	})
	if errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("social profile service: disconnect: %w", err)
	}

	logger.FromContext(ctx, "social").Info("social profile disconnected",
		zap.String("user_id", userID),
		zap.String("provider", string(provider)),
	)
	return s.Status(ctx, userID)
}

// Status reports the verification state of every provider for the user.
func (s *SocialProfileService) Status(ctx context.Context, userID string) (*SocialStatus, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "id = ?", strings.TrimSpace(userID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("social profile service: load user: %w", err)
	}

	return &SocialStatus{
		LinkedIn: providerStatus(user.Social(models.ProviderLinkedIn)),
		GitHub:   providerStatus(user.Social(models.ProviderGitHub)),
	}, nil
}

// History returns the user's ledger events, most recent first.
func (s *SocialProfileService) History(ctx context.Context, userID string, limit int) ([]models.SocialVerificationEvent, error) {
	return s.ledger.HistoryForUser(ctx, userID, limit)
}

// CompleteOAuth exchanges an authorization code and links the resulting profile.
// Exchange failures are recorded and returned unchanged.
func (s *SocialProfileService) CompleteOAuth(ctx context.Context, userID, rawProvider, code, redirectURI string) (*LinkResult, error) {
	ctx = ensureContext(ctx)

	if s.exchanger == nil {
		return nil, errors.New("social profile service: oauth exchanger not configured")
	}
	provider, err := models.ParseSocialProvider(rawProvider)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProvider, rawProvider)
	}
	userID = strings.TrimSpace(userID)
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}

	profile, err := s.exchanger.Exchange(ctx, provider, code, redirectURI)
	if err != nil {
		reason := ReasonProfileFetchFailed
		switch {
		case errors.Is(err, oauth.ErrProviderDisabled):
			reason = ReasonProviderDisabled
		case errors.Is(err, oauth.ErrTokenExchangeFailed):
			reason = ReasonTokenExchangeFailed
		}
		metrics.SocialLinkAttempts.WithLabelValues(string(provider), "error").Inc()
		log := logger.FromContext(ctx, "social").With(
			zap.String("user_id", userID),
			zap.String("provider", string(provider)),
		)
		s.recordFailure(ctx, log, userID, provider, "", models.OutcomeError, reason)
		return nil, err
	}

	return s.TryLink(ctx, LinkInput{
		UserID:     userID,
		Provider:   string(provider),
		ProfileURL: profile.ProfileURL,
		Subject:    profile.Subject,
	})
}

func (s *SocialProfileService) ensureUser(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUserNotFound
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return fmt.Errorf("social profile service: load user: %w", err)
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *SocialProfileService) recordConflict(ctx context.Context, log *zap.Logger, userID string, provider models.SocialProvider, profileURL, reason string) {
	metrics.SocialLinkAttempts.WithLabelValues(string(provider), "conflict").Inc()
	s.recordFailure(ctx, log, userID, provider, profileURL, models.OutcomeConflict, reason)
}

// recordFailure appends a failed event. A ledger error here must not mask the
// outcome already decided for the caller, so it is only logged.
func (s *SocialProfileService) recordFailure(ctx context.Context, log *zap.Logger, userID string, provider models.SocialProvider, profileURL, outcome, reason string) {
	_, err := s.ledger.Record(ctx, LedgerEntry{
		UserID:        userID,
		Provider:      provider,
		Action:        models.ActionFailed,
		ProfileURL:    profileURL,
		Outcome:       outcome,
		FailureReason: reason,
	})
	if err != nil {
		log.Warn("failed to record verification failure", zap.String("reason", reason), zap.Error(err))
	}
}

// recordRejected appends a failed event for input refused before any write.
// The provider is kept as supplied, lowercased and truncated to the column width.
func (s *SocialProfileService) recordRejected(ctx context.Context, userID, rawProvider, profileURL, reason string) {
	provider := strings.ToLower(strings.TrimSpace(rawProvider))
	if provider == "" {
		provider = "unknown"
	}
	if len(provider) > maxRejectedProvider {
		provider = provider[:maxRejectedProvider]
	}
	log := logger.FromContext(ctx, "social").With(
		zap.String("user_id", userID),
		zap.String("provider", provider),
	)
	s.recordFailure(ctx, log, userID, models.SocialProvider(provider), strings.TrimSpace(profileURL), models.OutcomeRejected, reason)
}

func providerStatus(state models.SocialState) ProviderStatus {
	if !state.Verified || state.ProfileURL == nil {
		return ProviderStatus{}
	}
	return ProviderStatus{
		IsConnected: true,
		ProfileURL:  state.ProfileURL,
		VerifiedAt:  state.VerifiedAt,
	}
}
