package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"rejection-therapy/models"
)

type WinnerRequest struct {
	SubmissionID string `json:"submissionId" form:"submissionId"`
	ChallengeID  string `json:"challengeId" form:"challengeId"`
}

type WinnerResult struct {
	ChallengeID     string       `json:"challengeId"`
	SubmissionID    string       `json:"submissionId"`
	WinnerUserID    string       `json:"winnerUserId"`
	AlreadySelected bool         `json:"alreadySelected,omitempty"`
	XPAwarded       int64        `json:"xpAwarded"`
	Award           *AwardResult `json:"award,omitempty"`
	Warning         string       `json:"warning,omitempty"`
	Message         string       `json:"message"`
}

var errAwardNotPending = errors.New("award is not pending")

// WinnerService assigns a challenge winner and pays the win bonus in two
// steps. Step one (winner + pending award row) commits on its own; step two
// credits the XP and marks the award applied. A failed step two leaves the
// award pending for RetryPendingAwards.
type WinnerService struct {
	store   Store
	xp      *XPService
	timeout time.Duration
	now     func() time.Time
}

func NewWinnerService(store Store, xp *XPService, timeout time.Duration) *WinnerService {
	return &WinnerService{store: store, xp: xp, timeout: timeout, now: time.Now}
}

func (s *WinnerService) SetClock(now func() time.Time) { s.now = now }

func (s *WinnerService) SelectWinner(ctx context.Context, actor Actor, req WinnerRequest) (*WinnerResult, error) {
	if !actor.IsAdmin {
		return nil, NewForbiddenError("Forbidden")
	}
	req.SubmissionID = strings.TrimSpace(req.SubmissionID)
	req.ChallengeID = strings.TrimSpace(req.ChallengeID)
	if req.SubmissionID == "" || req.ChallengeID == "" {
		return nil, NewValidationError("MISSING_FIELDS", "Missing required fields")
	}
	if err := validateID("submissionId", req.SubmissionID); err != nil {
		return nil, err
	}
	if err := validateID("challengeId", req.ChallengeID); err != nil {
		return nil, err
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	var (
		award   *models.PendingAward
		already bool
		winner  string
	)
	err := s.store.Transact(ctx, func(tx Store) error {
		sub, err := tx.Submissions().Get(ctx, req.SubmissionID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return NewNotFoundError("SUBMISSION_NOT_FOUND", "Submission not found")
			}
			return storeError("get submission", err)
		}
		if sub.ChallengeID != req.ChallengeID {
			return NewValidationError("SUBMISSION_CHALLENGE_MISMATCH", "Submission does not belong to this challenge")
		}
		winner = sub.UserID

		ch, err := tx.Challenges().Get(ctx, req.ChallengeID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return NewNotFoundError("CHALLENGE_NOT_FOUND", "Challenge not found")
			}
			return storeError("get challenge", err)
		}

		if ch.WinnerSubmissionID == nil {
			changed, err := tx.Challenges().AssignWinner(ctx, ch.ID, sub.ID)
			if err != nil {
				return storeError("assign winner", err)
			}
			if !changed {
				// Lost to a concurrent selection; re-read to see who won.
				if ch, err = tx.Challenges().Get(ctx, req.ChallengeID); err != nil {
					return storeError("get challenge", err)
				}
			} else {
				award = &models.PendingAward{
					ID:           uuid.NewString(),
					UserID:       sub.UserID,
					ChallengeID:  ch.ID,
					SubmissionID: sub.ID,
					Action:       string(ActionWinChallenge),
					Status:       models.AwardStatusPending,
				}
				if err := tx.Awards().Create(ctx, award); err != nil {
					return storeError("record pending award", err)
				}
				return nil
			}
		}

		if ch.WinnerSubmissionID == nil || *ch.WinnerSubmissionID != sub.ID {
			return NewConflictError("WINNER_ALREADY_SELECTED", "A different winner was already selected for this challenge")
		}
		already = true
		award, err = tx.Awards().GetByChallenge(ctx, ch.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return storeError("get pending award", err)
		}
		if errors.Is(err, ErrNotFound) {
			award = nil
		}
		return nil
	})
	if err != nil {
		var appErr *AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, storeError("select winner", err)
	}

	res := &WinnerResult{
		ChallengeID:     req.ChallengeID,
		SubmissionID:    req.SubmissionID,
		WinnerUserID:    winner,
		AlreadySelected: already,
		Message:         "Winner set successfully and XP awarded",
	}
	if already {
		res.Message = "Winner was already selected"
	}
	log.Printf("[WINNER] ✅ challenge=%s winner submission=%s user=%s already=%v", req.ChallengeID, req.SubmissionID, winner, already)

	if award == nil || award.Status != models.AwardStatusPending {
		return res, nil
	}

	bal, err := s.ApplyAward(ctx, award)
	switch {
	case err == nil:
		xp := s.xp.Ledger().Points.Win
		res.XPAwarded = xp
		res.Award = resultFor(bal, xp)
	case errors.Is(err, errAwardNotPending):
	default:
		log.Printf("[WINNER] ❌ win bonus for user=%s challenge=%s failed, left pending: %v", award.UserID, award.ChallengeID, err)
		res.Warning = "Winner set but XP award failed; it will be retried"
		res.Message = "Winner set successfully"
	}
	return res, nil
}

// ApplyAward credits a pending award and flips it to applied in one
// transaction. It returns errAwardNotPending when another worker got there
// first.
func (s *WinnerService) ApplyAward(ctx context.Context, award *models.PendingAward) (models.Balance, error) {
	action, ok := ParseAction(award.Action)
	if !ok {
		return models.Balance{}, fmt.Errorf("pending award %s: unknown action %q", award.ID, award.Action)
	}
	xp, _ := s.xp.Ledger().XPFor(action)

	var bal models.Balance
	err := s.store.Transact(ctx, func(tx Store) error {
		ok, err := tx.Awards().MarkApplied(ctx, award.ID, s.now().UTC())
		if err != nil {
			return err
		}
		if !ok {
			return errAwardNotPending
		}
		bal, err = s.xp.CreditTx(ctx, tx, CreditEntry{
			UserID:       award.UserID,
			XP:           xp,
			Reason:       string(action),
			ChallengeID:  award.ChallengeID,
			SubmissionID: award.SubmissionID,
		})
		return err
	})
	if errors.Is(err, errAwardNotPending) {
		return models.Balance{}, err
	}
	if err != nil {
		if ferr := s.store.Awards().RecordFailure(context.WithoutCancel(ctx), award.ID, err.Error()); ferr != nil {
			log.Printf("[WINNER] ⚠️ could not record failure for award %s: %v", award.ID, ferr)
		}
		return models.Balance{}, err
	}

	award.Status = models.AwardStatusApplied
	log.Printf("[WINNER] ✅ win bonus +%d applied: user=%s → xp=%d rank=%s", xp, award.UserID, bal.ExperiencePoints, bal.RankLevel)
	s.xp.PublishBalance(ctx, award.UserID, bal)
	return bal, nil
}

// RetryPendingAwards applies up to limit pending awards and reports how many
// succeeded and failed.
func (s *WinnerService) RetryPendingAwards(ctx context.Context, limit int) (applied, failed int, err error) {
	listCtx, cancel := withStoreTimeout(ctx, s.timeout)
	pending, err := s.store.Awards().ListPending(listCtx, limit)
	cancel()
	if err != nil {
		return 0, 0, storeError("list pending awards", err)
	}

	for i := range pending {
		a := &pending[i]
		awardCtx, cancel := withStoreTimeout(ctx, s.timeout)
		_, err := s.ApplyAward(awardCtx, a)
		cancel()
		switch {
		case err == nil:
			applied++
		case errors.Is(err, errAwardNotPending):
		default:
			failed++
			log.Printf("[AWARD_RETRY] ❌ award %s (user=%s) still failing: %v", a.ID, a.UserID, err)
		}
	}
	return applied, failed, nil
}
