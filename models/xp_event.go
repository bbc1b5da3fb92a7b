package models

import "time"

// XPEvent records one change to a profile's balance (positive or negative).
type XPEvent struct {
	ID           string  `gorm:"primaryKey;type:uuid" json:"id"`
	UserID       string  `gorm:"type:uuid;index;not null" json:"user_id"`
	ChallengeID  *string `gorm:"type:uuid;index" json:"challenge_id,omitempty"`
	SubmissionID *string `gorm:"type:uuid" json:"submission_id,omitempty"`

	Reason          string `gorm:"type:varchar(48);not null" json:"reason"`
	Delta           int64  `json:"delta"`
	CompletedDelta  int64  `json:"completed_delta"`
	ExperienceAfter int64  `json:"experience_after"`
	RankAfter       string `gorm:"type:varchar(32)" json:"rank_after"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}
