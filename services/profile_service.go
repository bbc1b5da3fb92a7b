package services

import (
	"context"
	"log"
	"time"

	"rejection-therapy/models"
)

// ProgressView is the caller's balance plus where they stand on the ladder.
type ProgressView struct {
	ID                  string           `json:"id"`
	Username            *string          `json:"username,omitempty"`
	DisplayName         *string          `json:"display_name,omitempty"`
	XP                  int64            `json:"xp"`
	XPDisplay           string           `json:"xp_display"`
	RankName            string           `json:"rank_name"`
	NextRank            *Rank            `json:"next_rank,omitempty"`
	XPToNextRank        int64            `json:"xp_to_next_rank"`
	ProgressPercent     float64          `json:"progress_percent"`
	ChallengesCompleted int64            `json:"challenges_completed"`
	RecentEvents        []models.XPEvent `json:"recent_events"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

type HistoryPage struct {
	Events     []models.XPEvent `json:"events"`
	Page       int              `json:"page"`
	Size       int              `json:"size"`
	TotalItems int64            `json:"total_items"`
	TotalPages int              `json:"total_pages"`
}

type ProfileService struct {
	store   Store
	ranks   RankTable
	timeout time.Duration
}

func NewProfileService(store Store, ranks RankTable, timeout time.Duration) *ProfileService {
	return &ProfileService{store: store, ranks: ranks, timeout: timeout}
}

// Progress returns userID's XP, rank and progress towards the next rank.
func (s *ProfileService) Progress(ctx context.Context, actor Actor, userID string) (*ProgressView, error) {
	if !actor.CanActFor(userID) {
		return nil, NewForbiddenError("Forbidden")
	}
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	p, err := s.store.Profiles().Get(ctx, userID)
	if err != nil {
		return nil, profileError(err)
	}
	recent, _, err := s.store.Events().ListForUser(ctx, userID, 0, 5)
	if err != nil {
		return nil, storeError("recent xp events", err)
	}

	v := &ProgressView{
		ID:                  p.ID,
		Username:            p.Username,
		DisplayName:         p.DisplayName,
		XP:                  p.ExperiencePoints,
		XPDisplay:           formatXP(p.ExperiencePoints),
		RankName:            s.ranks.RankFor(p.ExperiencePoints),
		ProgressPercent:     s.ranks.Progress(p.ExperiencePoints),
		ChallengesCompleted: p.ChallengesCompleted,
		RecentEvents:        recent,
		UpdatedAt:           p.UpdatedAt,
	}
	if next, remaining, ok := s.ranks.Next(p.ExperiencePoints); ok {
		v.NextRank = &next
		v.XPToNextRank = remaining
	}
	return v, nil
}

// History pages the user's XP ledger, newest first.
func (s *ProfileService) History(ctx context.Context, actor Actor, userID string, page, size int) (*HistoryPage, error) {
	if !actor.CanActFor(userID) {
		return nil, NewForbiddenError("Forbidden")
	}
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	events, total, err := s.store.Events().ListForUser(ctx, userID, offset, size)
	if err != nil {
		return nil, storeError("xp history", err)
	}
	return &HistoryPage{
		Events:     events,
		Page:       page,
		Size:       size,
		TotalItems: total,
		TotalPages: int((total + int64(size) - 1) / int64(size)),
	}, nil
}

// RepairRanks rewrites rank_level wherever it no longer matches the rank
// table (rows edited by hand, or written before a table change).
func (s *ProfileService) RepairRanks(ctx context.Context) (int, error) {
	const pageSize = 500
	fixed := 0
	after := ""
	for {
		pageCtx, cancel := withStoreTimeout(ctx, s.timeout)
		page, err := s.store.Profiles().List(pageCtx, after, pageSize)
		if err != nil {
			cancel()
			return fixed, storeError("list profiles", err)
		}
		for _, p := range page {
			want := s.ranks.RankFor(p.ExperiencePoints)
			if p.RankLevel == want {
				continue
			}
			ok, err := s.store.Profiles().SetRank(pageCtx, p.ID, p.ExperiencePoints, want)
			if err != nil {
				cancel()
				return fixed, storeError("set rank", err)
			}
			if !ok {
				// XP moved since the page was read; that write fixed the rank.
				continue
			}
			log.Printf("[RANK_REPAIR] %s: %q → %q (xp=%d)", p.ID, p.RankLevel, want, p.ExperiencePoints)
			fixed++
		}
		cancel()
		if len(page) < pageSize {
			return fixed, nil
		}
		after = page[len(page)-1].ID
	}
}
