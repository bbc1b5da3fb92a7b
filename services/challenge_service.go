package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"rejection-therapy/models"
	"rejection-therapy/utils"
)

type ChallengeInput struct {
	Week        int    `json:"week" validate:"required,min=1,max=53"`
	Year        int    `json:"year" validate:"required,min=2024"`
	Title       string `json:"title" validate:"required,min=3,max=100"`
	Description string `json:"description" validate:"max=400"`
	TikTokLink  string `json:"tiktok_link" validate:"omitempty,url"`
}

// ChallengeUpdate changes only the fields that are set. An empty
// TikTokLink clears the link.
type ChallengeUpdate struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	TikTokLink  *string `json:"tiktok_link"`
}

// ChallengeView is a challenge plus the Monday–Sunday range of its week.
type ChallengeView struct {
	models.WeeklyChallenge
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

type ChallengeService struct {
	store   Store
	timeout time.Duration
	now     func() time.Time
}

func NewChallengeService(store Store, timeout time.Duration) *ChallengeService {
	return &ChallengeService{store: store, timeout: timeout, now: time.Now}
}

func (s *ChallengeService) SetClock(now func() time.Time) { s.now = now }

func (s *ChallengeService) Create(ctx context.Context, actor Actor, in ChallengeInput) (*ChallengeView, error) {
	if !actor.IsAdmin {
		return nil, NewForbiddenError("Only admins can create challenges")
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.TikTokLink = strings.TrimSpace(in.TikTokLink)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if weeks := utils.WeeksInYear(in.Year); in.Week > weeks {
		return nil, NewValidationError("INVALID_WEEK", fmt.Sprintf("%d only has %d weeks", in.Year, weeks))
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	c := &models.WeeklyChallenge{
		ID:          uuid.NewString(),
		Week:        in.Week,
		Year:        in.Year,
		Slug:        challengeSlug(in.Week, in.Year, in.Title),
		Title:       in.Title,
		Description: in.Description,
		TikTokLink:  optional(in.TikTokLink),
	}
	if err := s.store.Challenges().Create(ctx, c); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, NewConflictError("CHALLENGE_EXISTS", fmt.Sprintf("A challenge already exists for week %d of %d", in.Week, in.Year))
		}
		return nil, storeError("create challenge", err)
	}
	log.Printf("[CHALLENGE] ✅ created week %d/%d: %s", c.Week, c.Year, c.Title)
	return viewOf(c), nil
}

func (s *ChallengeService) Update(ctx context.Context, actor Actor, id string, upd ChallengeUpdate) (*ChallengeView, error) {
	if !actor.IsAdmin {
		return nil, NewForbiddenError("Only admins can edit challenges")
	}
	if err := validateID("id", id); err != nil {
		return nil, err
	}
	v := utils.GetValidator()
	if upd.Title != nil {
		t := strings.TrimSpace(*upd.Title)
		if err := v.Var(t, "min=3,max=100"); err != nil {
			return nil, NewValidationError("INVALID_REQUEST", "title must be between 3 and 100 characters")
		}
		upd.Title = &t
	}
	if upd.Description != nil {
		d := strings.TrimSpace(*upd.Description)
		if err := v.Var(d, "max=400"); err != nil {
			return nil, NewValidationError("INVALID_REQUEST", "description cannot exceed 400 characters")
		}
		upd.Description = &d
	}
	if upd.TikTokLink != nil {
		l := strings.TrimSpace(*upd.TikTokLink)
		if l != "" {
			if err := v.Var(l, "url"); err != nil {
				return nil, NewValidationError("INVALID_REQUEST", "tiktok_link must be a valid URL")
			}
		}
		upd.TikTokLink = &l
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	var out *models.WeeklyChallenge
	err := s.store.Transact(ctx, func(tx Store) error {
		c, err := tx.Challenges().Get(ctx, id)
		if err != nil {
			return err
		}
		if upd.Title != nil {
			c.Title = *upd.Title
			c.Slug = challengeSlug(c.Week, c.Year, c.Title)
		}
		if upd.Description != nil {
			c.Description = *upd.Description
		}
		if upd.TikTokLink != nil {
			c.TikTokLink = optional(*upd.TikTokLink)
		}
		c.UpdatedAt = s.now().UTC()
		if err := tx.Challenges().Update(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NewNotFoundError("CHALLENGE_NOT_FOUND", "Challenge not found")
		}
		return nil, storeError("update challenge", err)
	}
	return viewOf(out), nil
}

func (s *ChallengeService) Delete(ctx context.Context, actor Actor, id string) error {
	if !actor.IsAdmin {
		return NewForbiddenError("Only admins can delete challenges")
	}
	if err := validateID("id", id); err != nil {
		return err
	}
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.store.Challenges().Delete(ctx, id)
	if err != nil {
		return storeError("delete challenge", err)
	}
	if n == 0 {
		return NewNotFoundError("CHALLENGE_NOT_FOUND", "Challenge not found")
	}
	log.Printf("[CHALLENGE] deleted %s", id)
	return nil
}

func (s *ChallengeService) Get(ctx context.Context, id string) (*ChallengeView, error) {
	if err := validateID("id", id); err != nil {
		return nil, err
	}
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	c, err := s.store.Challenges().Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NewNotFoundError("CHALLENGE_NOT_FOUND", "Challenge not found")
		}
		return nil, storeError("get challenge", err)
	}
	return viewOf(c), nil
}

// ListByYear returns the year's challenges ordered by week. year 0 means the
// current ISO year.
func (s *ChallengeService) ListByYear(ctx context.Context, year int) ([]ChallengeView, error) {
	if year == 0 {
		_, year = utils.WeekNumber(s.now().UTC())
	}
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	list, err := s.store.Challenges().ListByYear(ctx, year)
	if err != nil {
		return nil, storeError("list challenges", err)
	}
	out := make([]ChallengeView, len(list))
	for i := range list {
		out[i] = *viewOf(&list[i])
	}
	return out, nil
}

// Current returns the challenge of the ISO week containing now.
func (s *ChallengeService) Current(ctx context.Context) (*ChallengeView, error) {
	week, year := utils.WeekNumber(s.now().UTC())

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	c, err := s.store.Challenges().GetByWeek(ctx, week, year)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NewNotFoundError("NO_CURRENT_CHALLENGE", fmt.Sprintf("No challenge for week %d of %d", week, year))
		}
		return nil, storeError("get current challenge", err)
	}
	return viewOf(c), nil
}

// Submissions lists a challenge's submissions, newest first. Contact details
// are only visible to admins, so the listing is admin-only.
func (s *ChallengeService) Submissions(ctx context.Context, actor Actor, challengeID string) ([]models.Submission, error) {
	if !actor.IsAdmin {
		return nil, NewForbiddenError("Only admins can list submissions")
	}
	if err := validateID("challengeId", challengeID); err != nil {
		return nil, err
	}
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.store.Challenges().Get(ctx, challengeID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NewNotFoundError("CHALLENGE_NOT_FOUND", "Challenge not found")
		}
		return nil, storeError("get challenge", err)
	}
	subs, err := s.store.Submissions().ListByChallenge(ctx, challengeID, true)
	if err != nil {
		return nil, storeError("list submissions", err)
	}
	return subs, nil
}

func challengeSlug(week, year int, title string) string {
	return slug.Make(fmt.Sprintf("%d week %d %s", year, week, title))
}

func viewOf(c *models.WeeklyChallenge) *ChallengeView {
	start, end := utils.WeekRange(c.Week, c.Year)
	return &ChallengeView{WeeklyChallenge: *c, StartsAt: start, EndsAt: end}
}

// validateID rejects ids that are not UUIDs before they reach the store.
func validateID(field, id string) error {
	if err := utils.GetValidator().Var(id, "uuid"); err != nil {
		return NewValidationError("INVALID_ID", fmt.Sprintf("%s must be a valid UUID", field))
	}
	return nil
}

func validateStruct(v any) error {
	if err := utils.GetValidator().Struct(v); err != nil {
		return NewValidationError("INVALID_REQUEST", strings.Join(utils.ParseErrors(err), "; "))
	}
	return nil
}
