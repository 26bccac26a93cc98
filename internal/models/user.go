package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the identity record owned by the registration platform. This service reads it for
// identity resolution and mutates only the social verification columns.
//
// A profile URL column is non-null only while the matching verified flag is true, so the plain
// unique index on it enforces one verified owner per profile on every supported dialect.
type User struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	Email     string `gorm:"index;not null" json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	ProfileCompleted   bool       `gorm:"default:false" json:"profile_completed"`
	ProfileCompletedAt *time.Time `json:"profile_completed_at"`

	LinkedInProfileURL *string    `gorm:"column:linkedin_profile_url;uniqueIndex:idx_users_linkedin_profile_url" json:"linkedin_profile_url"`
	LinkedInSubject    *string    `gorm:"column:linkedin_subject" json:"-"`
	LinkedInVerified   bool       `gorm:"column:linkedin_verified;default:false" json:"linkedin_verified"`
	LinkedInVerifiedAt *time.Time `gorm:"column:linkedin_verified_at" json:"linkedin_verified_at"`

	GitHubProfileURL *string    `gorm:"column:github_profile_url;uniqueIndex:idx_users_github_profile_url" json:"github_profile_url"`
	GitHubSubject    *string    `gorm:"column:github_subject" json:"-"`
	GitHubVerified   bool       `gorm:"column:github_verified;default:false" json:"github_verified"`
	GitHubVerifiedAt *time.Time `gorm:"column:github_verified_at" json:"github_verified_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// SocialState is a provider-agnostic view of one provider's verification columns.
type SocialState struct {
	ProfileURL *string
	Subject    *string
	Verified   bool
	VerifiedAt *time.Time
}

// Social returns the verification state for the given provider.
func (u *User) Social(provider SocialProvider) SocialState {
	if u == nil {
		return SocialState{}
	}
	switch provider {
	case ProviderLinkedIn:
		return SocialState{
			ProfileURL: u.LinkedInProfileURL,
			Subject:    u.LinkedInSubject,
			Verified:   u.LinkedInVerified,
			VerifiedAt: u.LinkedInVerifiedAt,
		}
	case ProviderGitHub:
		return SocialState{
			ProfileURL: u.GitHubProfileURL,
			Subject:    u.GitHubSubject,
			Verified:   u.GitHubVerified,
			VerifiedAt: u.GitHubVerifiedAt,
		}
	default:
		return SocialState{}
	}
}
