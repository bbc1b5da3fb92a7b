package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"rejection-therapy/models"
)

type CleanupMode string

const (
	CleanupSingle CleanupMode = "single"
	CleanupAll    CleanupMode = "all"
)

func ParseCleanupMode(s string) (CleanupMode, bool) {
	switch CleanupMode(strings.TrimSpace(s)) {
	case "", CleanupSingle:
		return CleanupSingle, true
	case CleanupAll:
		return CleanupAll, true
	}
	return "", false
}

type DeleteRequest struct {
	SubmissionID string `json:"submissionId" form:"submissionId"`
	CleanupMode  string `json:"cleanupMode" form:"cleanupMode"`
}

type DeleteResult struct {
	NewXP                  int64  `json:"newXP"`
	NewChallengesCompleted int64  `json:"newChallengesCount"`
	NewRank                string `json:"newRank"`
	XPRemoved              int64  `json:"xpRemoved"`
	SubmissionsDeleted     int64  `json:"submissionsDeleted"`
}

// ReconciliationService deletes submissions and rolls the owner's balance
// back by one completion award.
type ReconciliationService struct {
	store   Store
	ledger  Ledger
	timeout time.Duration
	board   LeaderboardCache
	now     func() time.Time
}

func NewReconciliationService(store Store, ledger Ledger, timeout time.Duration, board LeaderboardCache) *ReconciliationService {
	if board == nil {
		board = NoopLeaderboard{}
	}
	return &ReconciliationService{store: store, ledger: ledger, timeout: timeout, board: board, now: time.Now}
}

func (s *ReconciliationService) SetClock(now func() time.Time) { s.now = now }

// DeleteSubmission removes the target submission (or every submission of the
// same user for the same challenge) and debits the completion XP. The
// completed counter drops only when no submission for the pair remains.
func (s *ReconciliationService) DeleteSubmission(ctx context.Context, actor Actor, req DeleteRequest) (*DeleteResult, error) {
	mode, ok := ParseCleanupMode(req.CleanupMode)
	if !ok {
		return nil, NewValidationError("INVALID_CLEANUP_MODE", "cleanupMode must be single or all")
	}
	submissionID := strings.TrimSpace(req.SubmissionID)
	if submissionID == "" {
		return nil, NewValidationError("SUBMISSION_ID_REQUIRED", "Submission ID is required")
	}
	if err := validateID("submissionId", submissionID); err != nil {
		return nil, err
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	var (
		res   DeleteResult
		owner string
	)
	err := s.store.Transact(ctx, func(tx Store) error {
		sub, err := tx.Submissions().Get(ctx, submissionID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return NewNotFoundError("SUBMISSION_NOT_FOUND", "Submission not found")
			}
			return storeError("get submission", err)
		}
		if !actor.CanActFor(sub.UserID) {
			return NewForbiddenError("You can only delete your own submissions")
		}
		owner = sub.UserID

		profile, err := tx.Profiles().GetForUpdate(ctx, sub.UserID)
		if err != nil {
			return profileError(err)
		}

		count, err := tx.Submissions().CountForChallenge(ctx, sub.UserID, sub.ChallengeID)
		if err != nil {
			return storeError("count submissions", err)
		}

		wholePair := mode == CleanupAll || count <= 1
		var deleted int64
		if wholePair {
			deleted, err = s.deletePair(ctx, tx, sub)
		} else {
			deleted, err = tx.Submissions().Delete(ctx, sub.ID)
		}
		if err != nil {
			return storeError("delete submission", err)
		}
		if deleted == 0 {
			// Removed by a concurrent request that already debited the owner.
			return NewNotFoundError("SUBMISSION_NOT_FOUND", "Submission not found")
		}

		before := profile.Balance()
		after := s.ledger.Debit(before, s.ledger.Points.Completion, wholePair)
		if err := writeBalance(ctx, tx, s.now().UTC(), sub.UserID, before, after, ReasonSubmissionDeleted, sub.ChallengeID, sub.ID); err != nil {
			return storeError("update profile", err)
		}

		res = DeleteResult{
			NewXP:                  after.ExperiencePoints,
			NewChallengesCompleted: after.ChallengesCompleted,
			NewRank:                after.RankLevel,
			XPRemoved:              before.ExperiencePoints - after.ExperiencePoints,
			SubmissionsDeleted:     deleted,
		}
		log.Printf("[RECONCILE] ✅ deleted %d submission(s) for user=%s challenge=%s mode=%s count=%d → xp=%d completed=%d rank=%s",
			deleted, sub.UserID, sub.ChallengeID, mode, count, after.ExperiencePoints, after.ChallengesCompleted, after.RankLevel)
		return nil
	})
	if err != nil {
		var appErr *AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, storeError("delete submission", err)
	}

	if err := s.board.Set(ctx, owner, res.NewXP); err != nil {
		log.Printf("[RECONCILE] ⚠️ leaderboard update failed for %s: %v", owner, err)
	}
	return &res, nil
}

// deletePair bulk-deletes every row for the submission's (user, challenge)
// inside a savepoint and falls back to the single target row when the bulk
// delete fails.
func (s *ReconciliationService) deletePair(ctx context.Context, tx Store, sub *models.Submission) (int64, error) {
	var n int64
	err := tx.Transact(ctx, func(inner Store) error {
		var err error
		n, err = inner.Submissions().DeleteForChallenge(ctx, sub.UserID, sub.ChallengeID)
		return err
	})
	if err == nil {
		return n, nil
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return 0, err
	}
	log.Printf("[RECONCILE] ⚠️ bulk delete failed for user=%s challenge=%s, deleting target only: %v", sub.UserID, sub.ChallengeID, err)
	return tx.Submissions().Delete(ctx, sub.ID)
}
