package models

import (
	"time"
)

// WeeklyChallenge is one challenge per (week, year).
type WeeklyChallenge struct {
	ID          string  `json:"id" gorm:"primaryKey;type:uuid"`
	Week        int     `json:"week" gorm:"not null;uniqueIndex:idx_weekly_challenge_week_year;check:week >= 1 AND week <= 53"`
	Year        int     `json:"year" gorm:"not null;uniqueIndex:idx_weekly_challenge_week_year"`
	Slug        string  `json:"slug" gorm:"type:varchar(160);index"`
	Title       string  `json:"title" gorm:"not null"`
	Description string  `json:"description" gorm:"type:text"`
	TikTokLink  *string `json:"tiktok_link,omitempty" gorm:"column:tiktok_link"`

	// WinnerSubmissionID is assigned once by the winner selection flow.
	WinnerSubmissionID *string `json:"winner_submission_id" gorm:"type:uuid"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
