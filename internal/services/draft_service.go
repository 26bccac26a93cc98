package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/regprofile/internal/models"
	"github.com/charlesng35/regprofile/pkg/logger"
	"github.com/charlesng35/regprofile/pkg/metrics"
)

const (
	// DefaultDraftTTL is how long a draft stays readable after its latest save.
	DefaultDraftTTL = 30 * 24 * time.Hour
	// DefaultDraftMaxPayload caps the stored payload size in bytes.
	DefaultDraftMaxPayload = 256 << 10
)

// DraftOption customises the DraftService.
type DraftOption func(*DraftService)

// WithDraftTTL overrides the draft lifetime.
func WithDraftTTL(ttl time.Duration) DraftOption {
	return func(s *DraftService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithDraftMaxPayload overrides the maximum payload size in bytes.
func WithDraftMaxPayload(size int) DraftOption {
	return func(s *DraftService) {
		if size > 0 {
			s.maxPayload = size
		}
	}
}

// WithDraftClock injects a custom time source.
func WithDraftClock(clock func() time.Time) DraftOption {
	return func(s *DraftService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// DraftService persists section scoped registration progress.
type DraftService struct {
	db         *gorm.DB
	ttl        time.Duration
	maxPayload int
	now        func() time.Time
}

// NewDraftService constructs a draft store.
func NewDraftService(db *gorm.DB, opts ...DraftOption) (*DraftService, error) {
	if db == nil {
		return nil, errors.New("draft service: db is required")
	}

	svc := &DraftService{
		db:         db,
		ttl:        DefaultDraftTTL,
		maxPayload: DefaultDraftMaxPayload,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Save upserts the draft for (user, section). The newest existing row is
// overwritten and any duplicates left by concurrent first saves are removed.
func (s *DraftService) Save(ctx context.Context, userID, rawSection string, payload []byte, dataHash string) (*models.RegistrationDraft, error) {
	ctx = ensureContext(ctx)

	section, err := parseSection(rawSection)
	if err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("draft service: user id is required")
	}
	if len(payload) > s.maxPayload {
		metrics.DraftOperations.WithLabelValues("save", "rejected").Inc()
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, len(payload), s.maxPayload)
	}
	if len(payload) == 0 || !json.Valid(payload) {
		metrics.DraftOperations.WithLabelValues("save", "rejected").Inc()
		return nil, ErrInvalidPayload
	}

	now := s.now().UTC()
	var saved models.RegistrationDraft

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []models.RegistrationDraft
		if err := tx.Where("user_id = ? AND section = ?", userID, section).
			Order("updated_at DESC").
			Order("created_at DESC").
			Find(&existing).Error; err != nil {
			return err
		}

		if len(existing) == 0 {
			saved = models.RegistrationDraft{
				BaseModel: models.BaseModel{CreatedAt: now, UpdatedAt: now},
				UserID:    userID,
				Section:   section,
				Payload:   datatypes.JSON(payload),
				DataHash:  optionalString(dataHash),
				ExpiresAt: now.Add(s.ttl),
			}
			return tx.Create(&saved).Error
		}

		saved = existing[0]
		if err := tx.Model(&models.RegistrationDraft{}).
			Where("id = ?", saved.ID).
			Updates(map[string]any{
				"payload":    datatypes.JSON(payload),
				"data_hash":  optionalString(dataHash),
				"updated_at": now,
				"expires_at": now.Add(s.ttl),
				"is_applied": false,
				"applied_at": nil,
			}).Error; err != nil {
			return err
		}

		if len(existing) > 1 {
			if err := tx.Where("user_id = ? AND section = ? AND id <> ?", userID, section, saved.ID).
				Delete(&models.RegistrationDraft{}).Error; err != nil {
				return err
			}
			logger.FromContext(ctx, "drafts").Warn("removed duplicate drafts",
				zap.String("user_id", userID),
				zap.String("section", string(section)),
				zap.Int("count", len(existing)-1),
			)
		}

		return tx.Take(&saved, "id = ?", saved.ID).Error
	})
	if err != nil {
		metrics.DraftOperations.WithLabelValues("save", "error").Inc()
		return nil, fmt.Errorf("draft service: save: %w", err)
	}

	metrics.DraftOperations.WithLabelValues("save", "ok").Inc()
	return &saved, nil
}

// Get returns the live draft for (user, section). Applied is reported before expired.
func (s *DraftService) Get(ctx context.Context, userID, rawSection string) (*models.RegistrationDraft, error) {
	ctx = ensureContext(ctx)

	section, err := parseSection(rawSection)
	if err != nil {
		return nil, err
	}

	draft, err := s.latest(ctx, s.db, userID, section)
	if err != nil {
		metrics.DraftOperations.WithLabelValues("get", draftResult(err)).Inc()
		return nil, err
	}

	switch {
	case draft.IsApplied:
		err = ErrDraftApplied
	case draft.Expired(s.now()):
		err = ErrDraftExpired
	}
	if err != nil {
		metrics.DraftOperations.WithLabelValues("get", draftResult(err)).Inc()
		return nil, err
	}

	metrics.DraftOperations.WithLabelValues("get", "ok").Inc()
	return draft, nil
}

// Delete removes the draft for (user, section). Deleting an absent draft succeeds.
func (s *DraftService) Delete(ctx context.Context, userID, rawSection string) error {
	ctx = ensureContext(ctx)

	section, err := parseSection(rawSection)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND section = ?", strings.TrimSpace(userID), section).
		Delete(&models.RegistrationDraft{}).Error; err != nil {
		metrics.DraftOperations.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("draft service: delete: %w", err)
	}

	metrics.DraftOperations.WithLabelValues("delete", "ok").Inc()
	return nil
}

// MarkApplied flags the draft as committed into the registration record.
// Marking an already applied draft is a no-op.
func (s *DraftService) MarkApplied(ctx context.Context, userID, rawSection string) error {
	ctx = ensureContext(ctx)

	section, err := parseSection(rawSection)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		draft, err := s.latest(ctx, tx, userID, section)
		if err != nil {
			return err
		}
		if draft.IsApplied {
			return nil
		}
		if draft.Expired(now) {
			return ErrDraftExpired
		}
		return tx.Model(&models.RegistrationDraft{}).
			Where("id = ?", draft.ID).
			Updates(map[string]any{
				"is_applied": true,
				"applied_at": now,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		metrics.DraftOperations.WithLabelValues("apply", draftResult(err)).Inc()
		if isDraftAbsence(err) {
			return err
		}
		return fmt.Errorf("draft service: mark applied: %w", err)
	}

	metrics.DraftOperations.WithLabelValues("apply", "ok").Inc()
	return nil
}

// PurgeStale physically removes drafts that are expired or applied.
func (s *DraftService) PurgeStale(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	res := s.db.WithContext(ctx).
		Where("expires_at <= ? OR is_applied = ?", s.now().UTC(), true).
		Delete(&models.RegistrationDraft{})
	if res.Error != nil {
		return 0, fmt.Errorf("draft service: purge stale: %w", res.Error)
	}

	metrics.DraftsPurged.Add(float64(res.RowsAffected))
	return res.RowsAffected, nil
}

func (s *DraftService) latest(ctx context.Context, db *gorm.DB, userID string, section models.DraftSection) (*models.RegistrationDraft, error) {
	var draft models.RegistrationDraft
	err := db.WithContext(ctx).
		Where("user_id = ? AND section = ?", strings.TrimSpace(userID), section).
		Order("updated_at DESC").
		Order("created_at DESC").
		Take(&draft).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDraftMissing
	}
	if err != nil {
		return nil, fmt.Errorf("draft service: load draft: %w", err)
	}
	return &draft, nil
}

func parseSection(raw string) (models.DraftSection, error) {
	section, err := models.ParseDraftSection(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidSection, raw)
	}
	return section, nil
}

func isDraftAbsence(err error) bool {
	return errors.Is(err, ErrDraftMissing) || errors.Is(err, ErrDraftExpired) || errors.Is(err, ErrDraftApplied)
}

func draftResult(err error) string {
	switch {
	case errors.Is(err, ErrDraftMissing):
		return "missing"
	case errors.Is(err, ErrDraftExpired):
		return "expired"
	case errors.Is(err, ErrDraftApplied):
		return "applied"
	default:
		return "error"
	}
}
