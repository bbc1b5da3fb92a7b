package models

import (
	"time"
)

// Profile is one row per authenticated user. The id comes from the auth
// provider; this service never creates or deletes profiles.
type Profile struct {
	ID          string  `gorm:"primaryKey;type:uuid" json:"id"`
	Username    *string `gorm:"index" json:"username,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
	AvatarSeed  *string `json:"avatar_seed,omitempty"`
	IsAdmin     bool    `gorm:"not null;default:false" json:"is_admin"`

	// Balance columns. Written only through ProfileRepository.UpdateBalance.
	ExperiencePoints    int64  `gorm:"not null;default:0;index" json:"experience_points"`
	ChallengesCompleted int64  `gorm:"not null;default:0" json:"challenges_completed"`
	RankLevel           string `gorm:"type:varchar(32);not null;default:'Novice'" json:"rank_level"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Balance is the XP state the ledger operates on.
type Balance struct {
	ExperiencePoints    int64  `json:"experience_points"`
	ChallengesCompleted int64  `json:"challenges_completed"`
	RankLevel           string `json:"rank_level"`
}

func (p *Profile) Balance() Balance {
	return Balance{
		ExperiencePoints:    p.ExperiencePoints,
		ChallengesCompleted: p.ChallengesCompleted,
		RankLevel:           p.RankLevel,
	}
}
