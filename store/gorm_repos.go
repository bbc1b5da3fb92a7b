package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rejection-therapy/models"
	"rejection-therapy/services"
)

type gormProfiles struct{ db *gorm.DB }

func (r gormProfiles) Get(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, mapErr("get profile", err)
	}
	return &p, nil
}

func (r gormProfiles) GetMany(ctx context.Context, ids []string) ([]models.Profile, error) {
	var out []models.Profile
	if len(ids) == 0 {
		return out, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, mapErr("get profiles", err)
	}
	return out, nil
}

func (r gormProfiles) GetForUpdate(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, mapErr("lock profile", err)
	}
	return &p, nil
}

func (r gormProfiles) UpdateBalance(ctx context.Context, id string, b models.Balance, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"experience_points":    b.ExperiencePoints,
			"challenges_completed": b.ChallengesCompleted,
			"rank_level":           b.RankLevel,
			"updated_at":           at,
		})
	if res.Error != nil {
		return mapErr("update balance", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update balance %s: %w", id, services.ErrNotFound)
	}
	return nil
}

func (r gormProfiles) IsAdmin(ctx context.Context, id string) (bool, error) {
	var p models.Profile
	err := r.db.WithContext(ctx).Select("id", "is_admin").Where("id = ?", id).First(&p).Error
	if err != nil {
		return false, mapErr("admin lookup", err)
	}
	return p.IsAdmin, nil
}

func (r gormProfiles) Top(ctx context.Context, limit int) ([]models.Profile, error) {
	var out []models.Profile
	err := r.db.WithContext(ctx).
		Order("experience_points DESC").
		Order("id ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, mapErr("top profiles", err)
	}
	return out, nil
}

func (r gormProfiles) List(ctx context.Context, afterID string, limit int) ([]models.Profile, error) {
	q := r.db.WithContext(ctx).Order("id ASC").Limit(limit)
	if afterID != "" {
		q = q.Where("id > ?", afterID)
	}
	var out []models.Profile
	if err := q.Find(&out).Error; err != nil {
		return nil, mapErr("list profiles", err)
	}
	return out, nil
}

func (r gormProfiles) SetRank(ctx context.Context, id string, xp int64, rank string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ? AND experience_points = ?", id, xp).
		Update("rank_level", rank)
	if res.Error != nil {
		return false, mapErr("set rank", res.Error)
	}
	return res.RowsAffected == 1, nil
}

type gormSubmissions struct{ db *gorm.DB }

func (r gormSubmissions) Get(ctx context.Context, id string) (*models.Submission, error) {
	var s models.Submission
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, mapErr("get submission", err)
	}
	return &s, nil
}

func (r gormSubmissions) Create(ctx context.Context, s *models.Submission) error {
	return mapErr("create submission", r.db.WithContext(ctx).Create(s).Error)
}

// CreateCompletionMarker relies on the partial unique index: a second marker
// for the pair inserts nothing instead of failing the transaction.
func (r gormSubmissions) CreateCompletionMarker(ctx context.Context, s *models.Submission) error {
	s.CompletionMarker = true
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "challenge_id"}, {Name: "user_id"}},
			TargetWhere: clause.Where{Exprs: []clause.Expression{
				clause.Eq{Column: clause.Column{Name: "completion_marker"}, Value: true},
			}},
			DoNothing: true,
		}).
		Create(s)
	if res.Error != nil {
		return mapErr("create completion marker", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("completion marker %s/%s: %w", s.UserID, s.ChallengeID, services.ErrConflict)
	}
	return nil
}

func (r gormSubmissions) CountForChallenge(ctx context.Context, userID, challengeID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("user_id = ? AND challenge_id = ?", userID, challengeID).
		Count(&n).Error
	return n, mapErr("count submissions", err)
}

func (r gormSubmissions) DeleteForChallenge(ctx context.Context, userID, challengeID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND challenge_id = ?", userID, challengeID).
		Delete(&models.Submission{})
	return res.RowsAffected, mapErr("bulk delete submissions", res.Error)
}

func (r gormSubmissions) Delete(ctx context.Context, id string) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Submission{})
	return res.RowsAffected, mapErr("delete submission", res.Error)
}

func (r gormSubmissions) CountCreatedBetween(ctx context.Context, userID string, from, to time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, from, to).
		Count(&n).Error
	return n, mapErr("count daily submissions", err)
}

func (r gormSubmissions) ListByChallenge(ctx context.Context, challengeID string, newestFirst bool) ([]models.Submission, error) {
	order := "created_at ASC"
	if newestFirst {
		order = "created_at DESC"
	}
	var out []models.Submission
	err := r.db.WithContext(ctx).
		Where("challenge_id = ?", challengeID).
		Order(order).
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, mapErr("list submissions", err)
	}
	return out, nil
}

type gormChallenges struct{ db *gorm.DB }

func (r gormChallenges) Get(ctx context.Context, id string) (*models.WeeklyChallenge, error) {
	var c models.WeeklyChallenge
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, mapErr("get challenge", err)
	}
	return &c, nil
}

func (r gormChallenges) GetByWeek(ctx context.Context, week, year int) (*models.WeeklyChallenge, error) {
	var c models.WeeklyChallenge
	if err := r.db.WithContext(ctx).Where("week = ? AND year = ?", week, year).First(&c).Error; err != nil {
		return nil, mapErr("get challenge by week", err)
	}
	return &c, nil
}

func (r gormChallenges) Create(ctx context.Context, c *models.WeeklyChallenge) error {
	return mapErr("create challenge", r.db.WithContext(ctx).Create(c).Error)
}

func (r gormChallenges) Update(ctx context.Context, c *models.WeeklyChallenge) error {
	res := r.db.WithContext(ctx).
		Model(&models.WeeklyChallenge{}).
		Where("id = ?", c.ID).
		Updates(map[string]interface{}{
			"title":       c.Title,
			"slug":        c.Slug,
			"description": c.Description,
			"tiktok_link": c.TikTokLink,
			"updated_at":  c.UpdatedAt,
		})
	if res.Error != nil {
		return mapErr("update challenge", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update challenge %s: %w", c.ID, services.ErrNotFound)
	}
	return nil
}

func (r gormChallenges) Delete(ctx context.Context, id string) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.WeeklyChallenge{})
	return res.RowsAffected, mapErr("delete challenge", res.Error)
}

func (r gormChallenges) ListByYear(ctx context.Context, year int) ([]models.WeeklyChallenge, error) {
	var out []models.WeeklyChallenge
	if err := r.db.WithContext(ctx).Where("year = ?", year).Order("week ASC").Find(&out).Error; err != nil {
		return nil, mapErr("list challenges", err)
	}
	return out, nil
}

func (r gormChallenges) AssignWinner(ctx context.Context, challengeID, submissionID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.WeeklyChallenge{}).
		Where("id = ? AND winner_submission_id IS NULL", challengeID).
		Updates(map[string]interface{}{
			"winner_submission_id": submissionID,
			"updated_at":           time.Now().UTC(),
		})
	if res.Error != nil {
		return false, mapErr("assign winner", res.Error)
	}
	return res.RowsAffected == 1, nil
}

type gormAwards struct{ db *gorm.DB }

func (r gormAwards) Create(ctx context.Context, a *models.PendingAward) error {
	return mapErr("create pending award", r.db.WithContext(ctx).Create(a).Error)
}

func (r gormAwards) GetByChallenge(ctx context.Context, challengeID string) (*models.PendingAward, error) {
	var a models.PendingAward
	if err := r.db.WithContext(ctx).Where("challenge_id = ?", challengeID).First(&a).Error; err != nil {
		return nil, mapErr("get pending award", err)
	}
	return &a, nil
}

func (r gormAwards) ListPending(ctx context.Context, limit int) ([]models.PendingAward, error) {
	var out []models.PendingAward
	err := r.db.WithContext(ctx).
		Where("status = ?", models.AwardStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, mapErr("list pending awards", err)
	}
	return out, nil
}

func (r gormAwards) MarkApplied(ctx context.Context, id string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PendingAward{}).
		Where("id = ? AND status = ?", id, models.AwardStatusPending).
		Updates(map[string]interface{}{
			"status":     models.AwardStatusApplied,
			"applied_at": at,
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": at,
		})
	if res.Error != nil {
		return false, mapErr("mark award applied", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r gormAwards) RecordFailure(ctx context.Context, id string, cause string) error {
	if len(cause) > 1000 {
		cause = cause[:1000]
	}
	res := r.db.WithContext(ctx).
		Model(&models.PendingAward{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": cause,
		})
	if res.Error != nil {
		return mapErr("record award failure", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("record award failure %s: %w", id, services.ErrNotFound)
	}
	return nil
}

type gormEvents struct{ db *gorm.DB }

func (r gormEvents) Record(ctx context.Context, e *models.XPEvent) error {
	return mapErr("record xp event", r.db.WithContext(ctx).Create(e).Error)
}

func (r gormEvents) ListForUser(ctx context.Context, userID string, offset, limit int) ([]models.XPEvent, int64, error) {
	var total int64
	q := r.db.WithContext(ctx).Model(&models.XPEvent{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, mapErr("count xp events", err)
	}

	var out []models.XPEvent
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, 0, mapErr("list xp events", err)
	}
	return out, total, nil
}
