package models

import (
	"time"
)

type AwardStatus string

const (
	AwardStatusPending AwardStatus = "pending"
	AwardStatusApplied AwardStatus = "applied"
)

// PendingAward is the outbox row for a winner bonus. It is written together
// with the winner assignment and flipped to applied in the same transaction
// that credits the XP.
type PendingAward struct {
	ID           string      `gorm:"primaryKey;type:uuid" json:"id"`
	UserID       string      `gorm:"type:uuid;not null;index" json:"user_id"`
	ChallengeID  string      `gorm:"type:uuid;not null;uniqueIndex" json:"challenge_id"`
	SubmissionID string      `gorm:"type:uuid;not null" json:"submission_id"`
	Action       string      `gorm:"type:varchar(32);not null" json:"action"`
	Status       AwardStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	Attempts     int         `gorm:"not null;default:0" json:"attempts"`
	LastError    string      `gorm:"type:text" json:"last_error,omitempty"`
	AppliedAt    *time.Time  `json:"applied_at,omitempty"`
	CreatedAt    time.Time   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
}
