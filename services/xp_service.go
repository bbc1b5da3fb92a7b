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

// XPService is the only writer (together with ReconciliationService) of the
// profile balance columns.
type XPService struct {
	store   Store
	ledger  Ledger
	timeout time.Duration
	board   LeaderboardCache
	now     func() time.Time
}

func NewXPService(store Store, ledger Ledger, timeout time.Duration, board LeaderboardCache) *XPService {
	if board == nil {
		board = NoopLeaderboard{}
	}
	return &XPService{
		store:   store,
		ledger:  ledger,
		timeout: timeout,
		board:   board,
		now:     time.Now,
	}
}

// SetClock overrides the time source used for updated_at and event rows.
func (s *XPService) SetClock(now func() time.Time) { s.now = now }

func (s *XPService) Ledger() Ledger { return s.ledger }

type AwardRequest struct {
	UserID      string `json:"userId" form:"userId"`
	Action      string `json:"action" form:"action"`
	ChallengeID string `json:"challengeId,omitempty" form:"challengeId"`
}

type AwardResult struct {
	NewXP                  int64  `json:"newXP"`
	NewRank                string `json:"newRank"`
	NewChallengesCompleted int64  `json:"newChallengesCompleted"`
	XPAdded                int64  `json:"xpAdded"`
	Duplicate              bool   `json:"duplicate,omitempty"`
	Message                string `json:"message,omitempty"`
	SubmissionID           string `json:"submissionId,omitempty"`
}

const duplicateCompletionMessage = "Challenge was already completed - XP awarded but counter not incremented"

// Award credits userID for action. For complete_challenge the first call per
// (user, challenge) inserts the completion marker and bumps the counter;
// later calls only add XP.
func (s *XPService) Award(ctx context.Context, actor Actor, req AwardRequest) (*AwardResult, error) {
	action, ok := ParseAction(req.Action)
	if !ok {
		return nil, NewInvalidActionError(req.Action)
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.ChallengeID = strings.TrimSpace(req.ChallengeID)
	if req.UserID == "" {
		return nil, NewValidationError("USER_ID_REQUIRED", "userId is required")
	}
	if action == ActionCompleteChallenge && req.ChallengeID == "" {
		return nil, NewValidationError("CHALLENGE_ID_REQUIRED", "challengeId is required for complete_challenge")
	}
	if err := validateID("userId", req.UserID); err != nil {
		return nil, err
	}
	if req.ChallengeID != "" {
		if err := validateID("challengeId", req.ChallengeID); err != nil {
			return nil, err
		}
	}
	if !actor.CanActFor(req.UserID) {
		return nil, NewForbiddenError("cannot award XP to another user")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.store.Profiles().Get(ctx, req.UserID); err != nil {
		return nil, profileError(err)
	}

	if action != ActionCompleteChallenge {
		xp, _ := s.ledger.XPFor(action)
		var bal models.Balance
		err := s.store.Transact(ctx, func(tx Store) error {
			var err error
			bal, err = s.CreditTx(ctx, tx, CreditEntry{
				UserID:      req.UserID,
				XP:          xp,
				Reason:      string(action),
				ChallengeID: req.ChallengeID,
			})
			return err
		})
		if err != nil {
			return nil, awardError(err)
		}
		log.Printf("[XP] ✅ %s: user=%s +%d → xp=%d rank=%s", action, req.UserID, xp, bal.ExperiencePoints, bal.RankLevel)
		s.PublishBalance(ctx, req.UserID, bal)
		return resultFor(bal, xp), nil
	}

	if _, err := s.store.Challenges().Get(ctx, req.ChallengeID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NewNotFoundError("CHALLENGE_NOT_FOUND", "challenge not found")
		}
		return nil, storeError("get challenge", err)
	}

	existing, err := s.store.Submissions().CountForChallenge(ctx, req.UserID, req.ChallengeID)
	if err != nil {
		return nil, storeError("count submissions", err)
	}
	if existing > 0 {
		return s.awardDuplicate(ctx, req.UserID, req.ChallengeID, "")
	}

	marker := &models.Submission{
		ID:          uuid.NewString(),
		ChallengeID: req.ChallengeID,
		UserID:      req.UserID,
	}
	var bal models.Balance
	err = s.store.Transact(ctx, func(tx Store) error {
		var err error
		bal, err = s.FirstCompletionTx(ctx, tx, marker)
		return err
	})
	if errors.Is(err, ErrConflict) {
		// A concurrent first completion won the marker and already credited
		// the user; report the current balance without adding anything.
		log.Printf("[XP] ⚠️ completion race lost: user=%s challenge=%s", req.UserID, req.ChallengeID)
		return s.currentAsDuplicate(ctx, req.UserID)
	}
	if err != nil {
		return nil, awardError(err)
	}

	xp := s.ledger.Points.Completion
	log.Printf("[XP] ✅ first completion: user=%s challenge=%s +%d → xp=%d completed=%d rank=%s",
		req.UserID, req.ChallengeID, xp, bal.ExperiencePoints, bal.ChallengesCompleted, bal.RankLevel)
	s.PublishBalance(ctx, req.UserID, bal)

	res := resultFor(bal, xp)
	res.SubmissionID = marker.ID
	res.Message = fmt.Sprintf("Challenge completed! +%s", formatXP(xp))
	return res, nil
}

// awardDuplicate adds the completion XP without touching the counter.
func (s *XPService) awardDuplicate(ctx context.Context, userID, challengeID, submissionID string) (*AwardResult, error) {
	xp := s.ledger.Points.Completion
	var bal models.Balance
	err := s.store.Transact(ctx, func(tx Store) error {
		var err error
		bal, err = s.CreditTx(ctx, tx, CreditEntry{
			UserID:       userID,
			XP:           xp,
			Reason:       ReasonDuplicateCompletion,
			ChallengeID:  challengeID,
			SubmissionID: submissionID,
		})
		return err
	})
	if err != nil {
		return nil, awardError(err)
	}
	log.Printf("[XP] duplicate completion: user=%s challenge=%s +%d → xp=%d (counter unchanged)", userID, challengeID, xp, bal.ExperiencePoints)
	s.PublishBalance(ctx, userID, bal)

	res := resultFor(bal, xp)
	res.Duplicate = true
	res.Message = duplicateCompletionMessage
	return res, nil
}

func (s *XPService) currentAsDuplicate(ctx context.Context, userID string) (*AwardResult, error) {
	p, err := s.store.Profiles().Get(ctx, userID)
	if err != nil {
		return nil, profileError(err)
	}
	res := resultFor(p.Balance(), 0)
	res.Duplicate = true
	res.Message = "Challenge was already completed - no additional XP awarded"
	return res, nil
}

// CreditEntry describes one balance credit written by CreditTx.
type CreditEntry struct {
	UserID          string
	XP              int64
	CountCompletion bool
	Reason          string
	ChallengeID     string
	SubmissionID    string
}

// CreditTx locks the profile, applies the credit, writes the balance as one
// row update and appends an xp_events row. tx must be transaction-scoped.
func (s *XPService) CreditTx(ctx context.Context, tx Store, e CreditEntry) (models.Balance, error) {
	p, err := tx.Profiles().GetForUpdate(ctx, e.UserID)
	if err != nil {
		return models.Balance{}, err
	}
	before := p.Balance()
	after := s.ledger.Credit(before, e.XP, e.CountCompletion)
	if err := writeBalance(ctx, tx, s.now().UTC(), e.UserID, before, after, e.Reason, e.ChallengeID, e.SubmissionID); err != nil {
		return models.Balance{}, err
	}
	return after, nil
}

// FirstCompletionTx inserts marker as the (user, challenge) completion
// marker and credits the completion XP plus one completed challenge. It
// returns ErrConflict when another marker already exists.
func (s *XPService) FirstCompletionTx(ctx context.Context, tx Store, marker *models.Submission) (models.Balance, error) {
	marker.Completed = true
	marker.CompletionMarker = true
	if err := tx.Submissions().CreateCompletionMarker(ctx, marker); err != nil {
		return models.Balance{}, err
	}
	return s.CreditTx(ctx, tx, CreditEntry{
		UserID:          marker.UserID,
		XP:              s.ledger.Points.Completion,
		CountCompletion: true,
		Reason:          string(ActionCompleteChallenge),
		ChallengeID:     marker.ChallengeID,
		SubmissionID:    marker.ID,
	})
}

// writeBalance is the single balance write shared by every path that moves
// XP: one profile row update plus its xp_events row.
func writeBalance(ctx context.Context, tx Store, now time.Time, userID string, before, after models.Balance, reason, challengeID, submissionID string) error {
	if err := tx.Profiles().UpdateBalance(ctx, userID, after, now); err != nil {
		return err
	}
	ev := &models.XPEvent{
		ID:              uuid.NewString(),
		UserID:          userID,
		ChallengeID:     optional(challengeID),
		SubmissionID:    optional(submissionID),
		Reason:          reason,
		Delta:           after.ExperiencePoints - before.ExperiencePoints,
		CompletedDelta:  after.ChallengesCompleted - before.ChallengesCompleted,
		ExperienceAfter: after.ExperiencePoints,
		RankAfter:       after.RankLevel,
		CreatedAt:       now,
	}
	return tx.Events().Record(ctx, ev)
}

// PublishBalance pushes the new XP to the leaderboard cache. Failures are
// logged only; the database stays authoritative.
func (s *XPService) PublishBalance(ctx context.Context, userID string, bal models.Balance) {
	if err := s.board.Set(ctx, userID, bal.ExperiencePoints); err != nil {
		log.Printf("[XP] ⚠️ leaderboard update failed for %s: %v", userID, err)
	}
}

func (s *XPService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return withStoreTimeout(ctx, s.timeout)
}

// withStoreTimeout bounds every store round trip of one operation.
func withStoreTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func resultFor(b models.Balance, added int64) *AwardResult {
	return &AwardResult{
		NewXP:                  b.ExperiencePoints,
		NewRank:                b.RankLevel,
		NewChallengesCompleted: b.ChallengesCompleted,
		XPAdded:                added,
	}
}

func profileError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return NewNotFoundError("USER_NOT_FOUND", "User not found")
	}
	return storeError("get profile", err)
}

// awardError maps a failed balance transaction. A missing profile row under
// lock is reported as user not found.
func awardError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return NewNotFoundError("USER_NOT_FOUND", "User not found")
	}
	return storeError("update xp", err)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
