package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/unidecode"

	"rejection-therapy/models"
	"rejection-therapy/utils"
)

const MaxVideoBytes = 100 << 20

// VideoUploader stores an uploaded proof video and returns its public URL.
type VideoUploader interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

// VideoUpload is a proof video sent as a multipart file.
type VideoUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

type SubmitRequest struct {
	ChallengeID   string `json:"challengeId" form:"challengeId" validate:"required"`
	Comment       string `json:"comment" form:"comment" validate:"required,min=10,max=500"`
	VideoURL      string `json:"videoUrl" form:"videoUrl" validate:"omitempty,url,videourl"`
	ContactMethod string `json:"contactMethod" form:"contactMethod" validate:"required,oneof=email instagram"`
	ContactValue  string `json:"contactValue" form:"contactValue" validate:"required,max=254"`

	Video *VideoUpload `json:"-" form:"-" validate:"-"`
}

type SubmitResult struct {
	Submission      *models.Submission `json:"submission"`
	FirstCompletion bool               `json:"firstCompletion"`
	Award           *AwardResult       `json:"award"`
	Limit           *DailyLimit        `json:"limit,omitempty"`
}

var instagramHandle = regexp.MustCompile(`^[a-z0-9._]{1,30}$`)

// SubmissionService records proof submissions and credits them through the
// XP service's transaction helpers.
type SubmissionService struct {
	store    Store
	xp       *XPService
	limits   *DailyLimitService
	uploader VideoUploader
	timeout  time.Duration
}

func NewSubmissionService(store Store, xp *XPService, limits *DailyLimitService, uploader VideoUploader, timeout time.Duration) *SubmissionService {
	return &SubmissionService{store: store, xp: xp, limits: limits, uploader: uploader, timeout: timeout}
}

func (s *SubmissionService) Submit(ctx context.Context, actor Actor, req SubmitRequest) (*SubmitResult, error) {
	if actor.UserID == "" || actor == SystemActor {
		return nil, NewUnauthorizedError("Unauthorized")
	}
	if err := normalizeSubmission(&req); err != nil {
		return nil, err
	}

	checkCtx, cancel := withStoreTimeout(ctx, s.timeout)
	err := s.precheck(checkCtx, actor.UserID, req.ChallengeID)
	cancel()
	if err != nil {
		return nil, err
	}

	sub := &models.Submission{
		ID:            uuid.NewString(),
		ChallengeID:   req.ChallengeID,
		UserID:        actor.UserID,
		Comment:       req.Comment,
		VideoURL:      optional(req.VideoURL),
		ContactMethod: req.ContactMethod,
		ContactValue:  req.ContactValue,
		Completed:     true,
	}
	if req.Video != nil {
		url, err := s.uploadVideo(ctx, sub, req.Video)
		if err != nil {
			return nil, err
		}
		sub.VideoURL = &url
	}

	ctx, cancel = withStoreTimeout(ctx, s.timeout)
	defer cancel()
	return s.record(ctx, sub)
}

func (s *SubmissionService) precheck(ctx context.Context, userID, challengeID string) error {
	if _, err := s.store.Profiles().Get(ctx, userID); err != nil {
		return profileError(err)
	}
	if _, err := s.store.Challenges().Get(ctx, challengeID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return NewNotFoundError("CHALLENGE_NOT_FOUND", "Challenge not found")
		}
		return storeError("get challenge", err)
	}
	limit, err := s.limits.check(ctx, s.store, userID)
	if err != nil {
		return err
	}
	if !limit.CanSubmit {
		return dailyLimitError(limit)
	}
	return nil
}

// capTx re-checks the daily cap while holding the owner's profile row lock,
// so concurrent submissions from one user are counted one at a time.
func (s *SubmissionService) capTx(ctx context.Context, tx Store, userID string) error {
	if _, err := tx.Profiles().GetForUpdate(ctx, userID); err != nil {
		return err
	}
	limit, err := s.limits.check(ctx, tx, userID)
	if err != nil {
		return err
	}
	if !limit.CanSubmit {
		return dailyLimitError(limit)
	}
	return nil
}

func dailyLimitError(limit *DailyLimit) error {
	return NewLimitExceededError("DAILY_LIMIT_REACHED",
		fmt.Sprintf("You can only submit %d times per day. Try again in %dh %dm.", limit.MaxDailySubmissions, limit.ResetTime.Hours, limit.ResetTime.Minutes))
}

// record inserts sub. The first row for the (user, challenge) pair becomes
// the completion marker; any later row, including one that loses a
// concurrent race for the marker, is credited as a duplicate completion.
// Both paths re-check the daily cap inside their transaction.
func (s *SubmissionService) record(ctx context.Context, sub *models.Submission) (*SubmitResult, error) {
	existing, err := s.store.Submissions().CountForChallenge(ctx, sub.UserID, sub.ChallengeID)
	if err != nil {
		return nil, storeError("count submissions", err)
	}

	xp := s.xp.Ledger().Points.Completion
	var bal models.Balance
	first := existing == 0
	if first {
		err = s.store.Transact(ctx, func(tx Store) error {
			if err := s.capTx(ctx, tx, sub.UserID); err != nil {
				return err
			}
			var err error
			bal, err = s.xp.FirstCompletionTx(ctx, tx, sub)
			return err
		})
		if errors.Is(err, ErrConflict) {
			log.Printf("[SUBMIT] ⚠️ completion race lost: user=%s challenge=%s, recording as duplicate", sub.UserID, sub.ChallengeID)
			sub.CompletionMarker = false
			first = false
		} else if err != nil {
			return nil, awardError(err)
		}
	}
	if !first {
		err = s.store.Transact(ctx, func(tx Store) error {
			if err := s.capTx(ctx, tx, sub.UserID); err != nil {
				return err
			}
			if err := tx.Submissions().Create(ctx, sub); err != nil {
				return err
			}
			var err error
			bal, err = s.xp.CreditTx(ctx, tx, CreditEntry{
				UserID:       sub.UserID,
				XP:           xp,
				Reason:       ReasonDuplicateCompletion,
				ChallengeID:  sub.ChallengeID,
				SubmissionID: sub.ID,
			})
			return err
		})
		if err != nil {
			return nil, awardError(err)
		}
	}
	s.xp.PublishBalance(ctx, sub.UserID, bal)

	award := resultFor(bal, xp)
	award.SubmissionID = sub.ID
	if first {
		award.Message = fmt.Sprintf("Challenge completed! +%s", formatXP(xp))
	} else {
		award.Duplicate = true
		award.Message = duplicateCompletionMessage
	}
	log.Printf("[SUBMIT] ✅ user=%s challenge=%s submission=%s first=%v → xp=%d completed=%d",
		sub.UserID, sub.ChallengeID, sub.ID, first, bal.ExperiencePoints, bal.ChallengesCompleted)

	res := &SubmitResult{Submission: sub, FirstCompletion: first, Award: award}
	if limit, err := s.limits.check(ctx, s.store, sub.UserID); err == nil {
		res.Limit = limit
	}
	return res, nil
}

func (s *SubmissionService) uploadVideo(ctx context.Context, sub *models.Submission, v *VideoUpload) (string, error) {
	if s.uploader == nil {
		return "", NewValidationError("UPLOADS_DISABLED", "Video uploads are not enabled; provide a TikTok or Instagram link instead")
	}
	if v.Size <= 0 || v.Size > MaxVideoBytes {
		return "", NewValidationError("INVALID_VIDEO", fmt.Sprintf("Video must be between 1 byte and %d MB", MaxVideoBytes>>20))
	}
	if !strings.HasPrefix(v.ContentType, "video/") {
		return "", NewValidationError("INVALID_VIDEO", "Uploaded file must be a video")
	}

	body, err := v.Open()
	if err != nil {
		return "", NewValidationError("INVALID_VIDEO", "Could not read uploaded video")
	}
	defer body.Close()

	key := fmt.Sprintf("submissions/%s/%s%s", sub.ChallengeID, sub.ID, strings.ToLower(path.Ext(v.Filename)))
	url, err := s.uploader.Upload(ctx, key, body, v.Size, v.ContentType)
	if err != nil {
		log.Printf("[SUBMIT] ❌ video upload failed for %s: %v", sub.ID, err)
		return "", &AppError{Kind: KindTransient, Code: "UPLOAD_FAILED", Message: "Video upload failed, retry later", Err: err}
	}
	return url, nil
}

func normalizeSubmission(req *SubmitRequest) error {
	req.ChallengeID = strings.TrimSpace(req.ChallengeID)
	req.Comment = strings.TrimSpace(req.Comment)
	req.VideoURL = strings.TrimSpace(req.VideoURL)
	req.ContactMethod = strings.ToLower(strings.TrimSpace(req.ContactMethod))
	req.ContactValue = strings.TrimSpace(req.ContactValue)

	if err := validateStruct(*req); err != nil {
		return err
	}
	if err := validateID("challengeId", req.ChallengeID); err != nil {
		return err
	}
	if req.VideoURL != "" && req.Video != nil {
		return NewValidationError("INVALID_REQUEST", "Provide either a video link or an uploaded video, not both")
	}

	switch req.ContactMethod {
	case models.ContactEmail:
		if err := utils.GetValidator().Var(req.ContactValue, "email"); err != nil {
			return NewValidationError("INVALID_CONTACT", "Please enter a valid email address")
		}
		req.ContactValue = strings.ToLower(req.ContactValue)
	case models.ContactInstagram:
		handle, ok := NormalizeInstagramHandle(req.ContactValue)
		if !ok {
			return NewValidationError("INVALID_CONTACT", "Please enter a valid Instagram username")
		}
		req.ContactValue = handle
	}
	return nil
}

// NormalizeInstagramHandle strips a leading @ or profile URL, transliterates
// to ASCII and lowercases.
func NormalizeInstagramHandle(raw string) (string, bool) {
	h := strings.TrimSpace(raw)
	for _, prefix := range []string{"https://www.instagram.com/", "https://instagram.com/", "www.instagram.com/", "instagram.com/"} {
		if len(h) >= len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
			h = h[len(prefix):]
			break
		}
	}
	h = strings.Trim(h, "/")
	h = strings.TrimPrefix(h, "@")
	h = strings.ToLower(unidecode.Unidecode(h))
	if !instagramHandle.MatchString(h) {
		return "", false
	}
	return h, true
}
