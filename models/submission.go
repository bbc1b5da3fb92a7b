package models

import "time"

const (
	ContactEmail     = "email"
	ContactInstagram = "instagram"
)

// Submission is one attempt at a weekly challenge. A user may hold several
// rows per challenge; at most one carries CompletionMarker, enforced by the
// partial unique index below.
type Submission struct {
	ID            string  `gorm:"primaryKey;type:uuid" json:"id"`
	ChallengeID   string  `gorm:"type:uuid;not null;index;uniqueIndex:idx_submission_completion_marker,where:completion_marker = true" json:"challenge_id"`
	UserID        string  `gorm:"type:uuid;not null;index;uniqueIndex:idx_submission_completion_marker,where:completion_marker = true" json:"user_id"`
	Comment       string  `gorm:"type:text" json:"comment"`
	VideoURL      *string `gorm:"type:text" json:"video_url,omitempty"`
	ContactMethod string  `gorm:"type:varchar(16)" json:"contact_method"`
	ContactValue  string  `json:"contact_value"`
	Completed     bool    `gorm:"not null;default:true" json:"completed"`

	// CompletionMarker is set on the row that was credited as the user's
	// first completion of the challenge.
	CompletionMarker bool `gorm:"not null;default:false" json:"completion_marker"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Submission) TableName() string {
	return "challenge_submissions"
}
