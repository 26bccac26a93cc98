package models

import (
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// DraftSection is the closed set of registration form sections that can be autosaved.
type DraftSection string

const (
	SectionMandatory DraftSection = "mandatory"
	SectionAide      DraftSection = "aide"
)

// ErrUnknownSection is returned by ParseDraftSection for unrecognised names.
var ErrUnknownSection = errors.New("draft section: unknown section")

// ParseDraftSection validates a section name, case-insensitively.
func ParseDraftSection(raw string) (DraftSection, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(SectionMandatory):
		return SectionMandatory, nil
	case string(SectionAide):
		return SectionAide, nil
	default:
		return "", ErrUnknownSection
	}
}

// RegistrationDraft holds partially completed form data for one (user, section) pair.
// The (user_id, section) index is deliberately not unique; the draft service upserts.
type RegistrationDraft struct {
	BaseModel

	UserID    string         `gorm:"type:uuid;not null;index:idx_drafts_owner_section,priority:1" json:"user_id"`
	Section   DraftSection   `gorm:"size:32;not null;index:idx_drafts_owner_section,priority:2" json:"section"`
	Payload   datatypes.JSON `gorm:"not null" json:"payload"`
	DataHash  *string        `gorm:"size:128" json:"data_hash"`
	ExpiresAt time.Time      `gorm:"index;not null" json:"expires_at"`
	IsApplied bool           `gorm:"default:false;index" json:"is_applied"`
	AppliedAt *time.Time     `json:"applied_at"`
}

// TableName pins the drafts table name.
func (RegistrationDraft) TableName() string {
	return "registration_drafts"
}

// Expired reports whether the draft is past its expiry at the given instant.
func (d *RegistrationDraft) Expired(now time.Time) bool {
	return d != nil && !d.ExpiresAt.After(now)
}
