package services

import (
	"context"
	"strings"
	"time"
)

const DefaultMaxDailySubmissions = 3

type ResetTime struct {
	Date    string `json:"date"`
	Hours   int64  `json:"hours"`
	Minutes int64  `json:"minutes"`
}

type DailyLimit struct {
	SubmissionsToday     int64     `json:"submissionsToday"`
	SubmissionsRemaining int64     `json:"submissionsRemaining"`
	MaxDailySubmissions  int64     `json:"maxDailySubmissions"`
	CanSubmit            bool      `json:"canSubmit"`
	ResetTime            ResetTime `json:"resetTime"`
}

// DailyLimitService counts submissions per UTC day. It never writes.
type DailyLimitService struct {
	store   Store
	max     int64
	timeout time.Duration
	now     func() time.Time
}

func NewDailyLimitService(store Store, maxPerDay int, timeout time.Duration) *DailyLimitService {
	if maxPerDay <= 0 {
		maxPerDay = DefaultMaxDailySubmissions
	}
	return &DailyLimitService{store: store, max: int64(maxPerDay), timeout: timeout, now: time.Now}
}

func (s *DailyLimitService) SetClock(now func() time.Time) { s.now = now }

func (s *DailyLimitService) Max() int64 { return s.max }

// Check reports how many submissions userID made since 00:00 UTC and how
// long until the counter resets.
func (s *DailyLimitService) Check(ctx context.Context, actor Actor, userID string) (*DailyLimit, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, NewValidationError("USER_ID_REQUIRED", "userId is required")
	}
	if err := validateID("userId", userID); err != nil {
		return nil, err
	}
	if !actor.CanActFor(userID) {
		return nil, NewForbiddenError("Forbidden")
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()
	return s.check(ctx, s.store, userID)
}

func (s *DailyLimitService) check(ctx context.Context, store Store, userID string) (*DailyLimit, error) {
	now := s.now().UTC()
	start, end := utcDay(now)

	today, err := store.Submissions().CountCreatedBetween(ctx, userID, start, end)
	if err != nil {
		return nil, storeError("count daily submissions", err)
	}

	remaining := s.max - today
	if remaining < 0 {
		remaining = 0
	}
	untilReset := end.Sub(now)
	return &DailyLimit{
		SubmissionsToday:     today,
		SubmissionsRemaining: remaining,
		MaxDailySubmissions:  s.max,
		CanSubmit:            remaining > 0,
		ResetTime: ResetTime{
			Date:    end.Format("2006-01-02T15:04:05.000Z"),
			Hours:   int64(untilReset / time.Hour),
			Minutes: int64((untilReset % time.Hour) / time.Minute),
		},
	}, nil
}

// utcDay returns [00:00 UTC of t's day, 00:00 UTC of the next day).
func utcDay(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}
