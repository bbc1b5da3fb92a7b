package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"rejection-therapy/models"
)

const leaderboardKey = "leaderboard:xp"

// LeaderboardCache keeps a user → XP ranking outside the database.
type LeaderboardCache interface {
	Set(ctx context.Context, userID string, xp int64) error
	Top(ctx context.Context, limit int) ([]ScoreEntry, error)
	Replace(ctx context.Context, entries []ScoreEntry) error
}

type ScoreEntry struct {
	UserID string
	XP     int64
}

var ErrCacheDisabled = errors.New("leaderboard cache disabled")

// NoopLeaderboard is used when REDIS_URL is not configured.
type NoopLeaderboard struct{}

func (NoopLeaderboard) Set(context.Context, string, int64) error { return nil }
func (NoopLeaderboard) Top(context.Context, int) ([]ScoreEntry, error) {
	return nil, ErrCacheDisabled
}
func (NoopLeaderboard) Replace(context.Context, []ScoreEntry) error { return nil }

// RedisLeaderboard stores the ranking in one sorted set.
type RedisLeaderboard struct {
	rdb *redis.Client
	key string
}

func NewRedisLeaderboard(rdb *redis.Client) *RedisLeaderboard {
	return &RedisLeaderboard{rdb: rdb, key: leaderboardKey}
}

// NewRedisClient parses url, connects and pings with a short timeout.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func (l *RedisLeaderboard) Set(ctx context.Context, userID string, xp int64) error {
	return l.rdb.ZAdd(ctx, l.key, redis.Z{Score: float64(xp), Member: userID}).Err()
}

func (l *RedisLeaderboard) Top(ctx context.Context, limit int) ([]ScoreEntry, error) {
	zs, err := l.rdb.ZRevRangeWithScores(ctx, l.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]ScoreEntry, 0, len(zs))
	for _, z := range zs {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		out = append(out, ScoreEntry{UserID: id, XP: int64(z.Score)})
	}
	return out, nil
}

// Replace swaps the whole set atomically.
func (l *RedisLeaderboard) Replace(ctx context.Context, entries []ScoreEntry) error {
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, l.key)
		if len(entries) == 0 {
			return nil
		}
		zs := make([]redis.Z, len(entries))
		for i, e := range entries {
			zs[i] = redis.Z{Score: float64(e.XP), Member: e.UserID}
		}
		pipe.ZAdd(ctx, l.key, zs...)
		return nil
	})
	return err
}

type LeaderboardEntry struct {
	Position            int     `json:"position"`
	UserID              string  `json:"userId"`
	Username            *string `json:"username,omitempty"`
	DisplayName         *string `json:"displayName,omitempty"`
	AvatarSeed          *string `json:"avatarSeed,omitempty"`
	ExperiencePoints    int64   `json:"experiencePoints"`
	RankLevel           string  `json:"rankLevel"`
	ChallengesCompleted int64   `json:"challengesCompleted"`
}

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
	leaderboardPageSize     = 500
)

type LeaderboardService struct {
	store   Store
	cache   LeaderboardCache
	ranks   RankTable
	timeout time.Duration
}

func NewLeaderboardService(store Store, cache LeaderboardCache, ranks RankTable, timeout time.Duration) *LeaderboardService {
	if cache == nil {
		cache = NoopLeaderboard{}
	}
	return &LeaderboardService{store: store, cache: cache, ranks: ranks, timeout: timeout}
}

// Top returns the highest-XP profiles. The cache is tried first; the
// database answers when the cache is disabled, empty or failing.
func (s *LeaderboardService) Top(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	scores, err := s.cache.Top(ctx, limit)
	switch {
	case err == nil && len(scores) > 0:
		entries, err := s.fromScores(ctx, scores)
		if err == nil {
			return entries, nil
		}
		log.Printf("[LEADERBOARD] ⚠️ cache hydrate failed, using database: %v", err)
	case err != nil && !errors.Is(err, ErrCacheDisabled):
		log.Printf("[LEADERBOARD] ⚠️ cache read failed, using database: %v", err)
	}

	profiles, err := s.store.Profiles().Top(ctx, limit)
	if err != nil {
		return nil, storeError("leaderboard", err)
	}
	out := make([]LeaderboardEntry, len(profiles))
	for i := range profiles {
		out[i] = s.entry(i+1, &profiles[i], profiles[i].ExperiencePoints)
	}
	return out, nil
}

func (s *LeaderboardService) fromScores(ctx context.Context, scores []ScoreEntry) ([]LeaderboardEntry, error) {
	ids := make([]string, len(scores))
	for i, sc := range scores {
		ids[i] = sc.UserID
	}
	profiles, err := s.store.Profiles().GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Profile, len(profiles))
	for i := range profiles {
		byID[profiles[i].ID] = &profiles[i]
	}
	out := make([]LeaderboardEntry, 0, len(scores))
	for _, sc := range scores {
		p, ok := byID[sc.UserID]
		if !ok {
			continue
		}
		out = append(out, s.entry(len(out)+1, p, sc.XP))
	}
	return out, nil
}

func (s *LeaderboardService) entry(pos int, p *models.Profile, xp int64) LeaderboardEntry {
	return LeaderboardEntry{
		Position:            pos,
		UserID:              p.ID,
		Username:            p.Username,
		DisplayName:         p.DisplayName,
		AvatarSeed:          p.AvatarSeed,
		ExperiencePoints:    xp,
		RankLevel:           s.ranks.RankFor(xp),
		ChallengesCompleted: p.ChallengesCompleted,
	}
}

// Rebuild reloads every profile's XP into the cache.
func (s *LeaderboardService) Rebuild(ctx context.Context) (int, error) {
	var entries []ScoreEntry
	after := ""
	for {
		page, err := s.store.Profiles().List(ctx, after, leaderboardPageSize)
		if err != nil {
			return 0, storeError("list profiles", err)
		}
		for _, p := range page {
			entries = append(entries, ScoreEntry{UserID: p.ID, XP: p.ExperiencePoints})
		}
		if len(page) < leaderboardPageSize {
			break
		}
		after = page[len(page)-1].ID
	}
	if err := s.cache.Replace(ctx, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}
