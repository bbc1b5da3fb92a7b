package services

import (
	"context"
	"time"

	"rejection-therapy/models"
)

// Store is the row store. Transact runs fn against a transaction-scoped
// Store; returning an error rolls every write in fn back. Transact on a
// transaction-scoped Store nests (savepoint semantics).
type Store interface {
	Transact(ctx context.Context, fn func(tx Store) error) error
	Profiles() ProfileRepository
	Submissions() SubmissionRepository
	Challenges() ChallengeRepository
	Awards() AwardRepository
	Events() EventRepository
}

type ProfileRepository interface {
	Get(ctx context.Context, id string) (*models.Profile, error)
	GetMany(ctx context.Context, ids []string) ([]models.Profile, error)
	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*models.Profile, error)
	// UpdateBalance writes xp, rank, counter and updated_at as one row update.
	UpdateBalance(ctx context.Context, id string, b models.Balance, at time.Time) error
	IsAdmin(ctx context.Context, id string) (bool, error)
	Top(ctx context.Context, limit int) ([]models.Profile, error)
	// List pages profiles ordered by id, starting after afterID.
	List(ctx context.Context, afterID string, limit int) ([]models.Profile, error)
	// SetRank writes rank only while experience_points still equals xp.
	SetRank(ctx context.Context, id string, xp int64, rank string) (bool, error)
}

type SubmissionRepository interface {
	Get(ctx context.Context, id string) (*models.Submission, error)
	Create(ctx context.Context, s *models.Submission) error
	// CreateCompletionMarker inserts s with CompletionMarker set. It returns
	// ErrConflict when the pair already has a marker.
	CreateCompletionMarker(ctx context.Context, s *models.Submission) error
	CountForChallenge(ctx context.Context, userID, challengeID string) (int64, error)
	DeleteForChallenge(ctx context.Context, userID, challengeID string) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
	CountCreatedBetween(ctx context.Context, userID string, from, to time.Time) (int64, error)
	ListByChallenge(ctx context.Context, challengeID string, newestFirst bool) ([]models.Submission, error)
}

type ChallengeRepository interface {
	Get(ctx context.Context, id string) (*models.WeeklyChallenge, error)
	GetByWeek(ctx context.Context, week, year int) (*models.WeeklyChallenge, error)
	// Create returns ErrConflict when (week, year) already exists.
	Create(ctx context.Context, c *models.WeeklyChallenge) error
	Update(ctx context.Context, c *models.WeeklyChallenge) error
	Delete(ctx context.Context, id string) (int64, error)
	ListByYear(ctx context.Context, year int) ([]models.WeeklyChallenge, error)
	// AssignWinner sets winner_submission_id only while it is NULL and
	// reports whether the row changed.
	AssignWinner(ctx context.Context, challengeID, submissionID string) (bool, error)
}

type AwardRepository interface {
	// Create returns ErrConflict when the challenge already has an award.
	Create(ctx context.Context, a *models.PendingAward) error
	GetByChallenge(ctx context.Context, challengeID string) (*models.PendingAward, error)
	ListPending(ctx context.Context, limit int) ([]models.PendingAward, error)
	// MarkApplied flips a pending award to applied and reports whether it
	// was still pending.
	MarkApplied(ctx context.Context, id string, at time.Time) (bool, error)
	RecordFailure(ctx context.Context, id string, cause string) error
}

type EventRepository interface {
	Record(ctx context.Context, e *models.XPEvent) error
	ListForUser(ctx context.Context, userID string, offset, limit int) ([]models.XPEvent, int64, error)
}
