package models

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VerificationAction enumerates ledger actions.
type VerificationAction string

const (
	ActionAttempt    VerificationAction = "attempt"
	ActionSucceeded  VerificationAction = "succeeded"
	ActionFailed     VerificationAction = "failed"
	ActionDisconnect VerificationAction = "disconnect"
)

// Ledger outcomes.
const (
	OutcomePending   = "pending"
	OutcomeSucceeded = "succeeded"
	OutcomeConflict  = "conflict"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

// ErrLedgerImmutable is returned by hooks when code tries to rewrite ledger history.
var ErrLedgerImmutable = errors.New("verification ledger: events are append-only")

// SocialVerificationEvent is one immutable row of the verification ledger.
type SocialVerificationEvent struct {
	ID            string             `gorm:"primaryKey;type:uuid" json:"id"`
	Sequence      int64              `gorm:"index;not null" json:"sequence"`
	UserID        string             `gorm:"type:uuid;not null;index" json:"user_id"`
	Provider      string             `gorm:"size:32;not null;index:idx_ledger_profile,priority:1" json:"provider"`
	Action        VerificationAction `gorm:"size:16;not null" json:"action"`
	ProfileURL    *string            `gorm:"index:idx_ledger_profile,priority:2" json:"profile_url"`
	Outcome       string             `gorm:"size:32;not null" json:"outcome"`
	FailureReason *string            `json:"failure_reason"`
	CreatedAt     time.Time          `gorm:"index;not null" json:"created_at"`
}

// TableName pins the ledger table name.
func (SocialVerificationEvent) TableName() string {
	return "social_verification_events"
}

// BeforeCreate assigns the identifier and the monotonic ordering key.
func (e *SocialVerificationEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Sequence == 0 {
		e.Sequence = nextSequence()
	}
	return nil
}

var lastSequence atomic.Int64

// nextSequence returns a strictly increasing, roughly wall-clock aligned ordering key.
func nextSequence() int64 {
	for {
		last := lastSequence.Load()
		next := time.Now().UnixNano()
		if next <= last {
			next = last + 1
		}
		if lastSequence.CompareAndSwap(last, next) {
			return next
		}
	}
}

// BeforeUpdate refuses any modification of a recorded event.
func (e *SocialVerificationEvent) BeforeUpdate(tx *gorm.DB) error {
	return ErrLedgerImmutable
}

// BeforeDelete refuses removal of a recorded event.
func (e *SocialVerificationEvent) BeforeDelete(tx *gorm.DB) error {
	return ErrLedgerImmutable
}
