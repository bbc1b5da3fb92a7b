package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"rejection-therapy/models"
	"rejection-therapy/services"
)

// Memory is an in-process Store used by tests and local runs without a
// database. Transactions are serialized and roll back on error; the
// completion-marker and (week, year) unique constraints are enforced.
type Memory struct {
	state *memState
	inTx  bool
}

type memState struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	profiles    map[string]models.Profile
	submissions map[string]models.Submission
	challenges  map[string]models.WeeklyChallenge
	awards      map[string]models.PendingAward
	events      []models.XPEvent

	now func() time.Time
}

type memSnapshot struct {
	profiles    map[string]models.Profile
	submissions map[string]models.Submission
	challenges  map[string]models.WeeklyChallenge
	awards      map[string]models.PendingAward
	events      []models.XPEvent
}

func NewMemory() *Memory {
	return &Memory{state: &memState{
		profiles:    make(map[string]models.Profile),
		submissions: make(map[string]models.Submission),
		challenges:  make(map[string]models.WeeklyChallenge),
		awards:      make(map[string]models.PendingAward),
		now:         time.Now,
	}}
}

// SetClock sets the time used for created_at defaults.
func (m *Memory) SetClock(now func() time.Time) {
	m.state.mu.Lock()
	m.state.now = now
	m.state.mu.Unlock()
}

// PutProfile inserts or replaces a profile row. Profiles belong to the auth
// provider, so this is the only way to create one.
func (m *Memory) PutProfile(p models.Profile) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	if p.RankLevel == "" {
		p.RankLevel = services.DefaultRankTable().Base().Name
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.state.now().UTC()
	}
	m.state.profiles[p.ID] = p
}

// AllEvents returns every recorded xp event in insertion order.
func (m *Memory) AllEvents() []models.XPEvent {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()
	return append([]models.XPEvent(nil), m.state.events...)
}

func (m *Memory) Transact(ctx context.Context, fn func(tx services.Store) error) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if !m.inTx {
		m.state.txMu.Lock()
		defer m.state.txMu.Unlock()
	}

	snap := m.snapshot()
	tx := &Memory{state: m.state, inTx: true}
	if err := fn(tx); err != nil {
		m.restore(snap)
		return err
	}
	if err := ctxErr(ctx); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// Ping fails only when ctx is done.
func (m *Memory) Ping(ctx context.Context) error { return ctxErr(ctx) }

func (m *Memory) Profiles() services.ProfileRepository       { return memProfiles{m} }
func (m *Memory) Submissions() services.SubmissionRepository { return memSubmissions{m} }
func (m *Memory) Challenges() services.ChallengeRepository   { return memChallenges{m} }
func (m *Memory) Awards() services.AwardRepository           { return memAwards{m} }
func (m *Memory) Events() services.EventRepository           { return memEvents{m} }

func (m *Memory) snapshot() memSnapshot {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()
	return memSnapshot{
		profiles:    cloneMap(m.state.profiles),
		submissions: cloneMap(m.state.submissions),
		challenges:  cloneMap(m.state.challenges),
		awards:      cloneMap(m.state.awards),
		events:      append([]models.XPEvent(nil), m.state.events...),
	}
}

func (m *Memory) restore(s memSnapshot) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	m.state.profiles = s.profiles
	m.state.submissions = s.submissions
	m.state.challenges = s.challenges
	m.state.awards = s.awards
	m.state.events = s.events
}

// read runs fn under the read lock.
func (m *Memory) read(ctx context.Context, fn func(s *memState) error) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()
	return fn(m.state)
}

// write runs fn under the write lock. Outside a transaction it also holds
// the transaction lock so a concurrent rollback cannot discard it.
func (m *Memory) write(ctx context.Context, fn func(s *memState) error) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if !m.inTx {
		m.state.txMu.Lock()
		defer m.state.txMu.Unlock()
	}
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	return fn(m.state)
}

func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", services.ErrTransient, err)
	}
	return nil
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// profiles

type memProfiles struct{ m *Memory }

func (r memProfiles) Get(ctx context.Context, id string) (*models.Profile, error) {
	var out *models.Profile
	err := r.m.read(ctx, func(s *memState) error {
		p, ok := s.profiles[id]
		if !ok {
			return fmt.Errorf("profile %s: %w", id, services.ErrNotFound)
		}
		out = &p
		return nil
	})
	return out, err
}

func (r memProfiles) GetMany(ctx context.Context, ids []string) ([]models.Profile, error) {
	var out []models.Profile
	err := r.m.read(ctx, func(s *memState) error {
		for _, id := range ids {
			if p, ok := s.profiles[id]; ok {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}

// GetForUpdate needs no row lock: transactions are already serialized.
func (r memProfiles) GetForUpdate(ctx context.Context, id string) (*models.Profile, error) {
	return r.Get(ctx, id)
}

func (r memProfiles) UpdateBalance(ctx context.Context, id string, b models.Balance, at time.Time) error {
	return r.m.write(ctx, func(s *memState) error {
		p, ok := s.profiles[id]
		if !ok {
			return fmt.Errorf("profile %s: %w", id, services.ErrNotFound)
		}
		p.ExperiencePoints = b.ExperiencePoints
		p.ChallengesCompleted = b.ChallengesCompleted
		p.RankLevel = b.RankLevel
		p.UpdatedAt = at
		s.profiles[id] = p
		return nil
	})
}

func (r memProfiles) IsAdmin(ctx context.Context, id string) (bool, error) {
	p, err := r.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return p.IsAdmin, nil
}

func (r memProfiles) Top(ctx context.Context, limit int) ([]models.Profile, error) {
	var out []models.Profile
	err := r.m.read(ctx, func(s *memState) error {
		for _, p := range s.profiles {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExperiencePoints != out[j].ExperiencePoints {
			return out[i].ExperiencePoints > out[j].ExperiencePoints
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memProfiles) List(ctx context.Context, afterID string, limit int) ([]models.Profile, error) {
	var out []models.Profile
	err := r.m.read(ctx, func(s *memState) error {
		for id, p := range s.profiles {
			if id > afterID {
				out = append(out, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memProfiles) SetRank(ctx context.Context, id string, xp int64, rank string) (bool, error) {
	var changed bool
	err := r.m.write(ctx, func(s *memState) error {
		p, ok := s.profiles[id]
		if !ok || p.ExperiencePoints != xp {
			return nil
		}
		p.RankLevel = rank
		s.profiles[id] = p
		changed = true
		return nil
	})
	return changed, err
}

// submissions

type memSubmissions struct{ m *Memory }

func (r memSubmissions) Get(ctx context.Context, id string) (*models.Submission, error) {
	var out *models.Submission
	err := r.m.read(ctx, func(s *memState) error {
		sub, ok := s.submissions[id]
		if !ok {
			return fmt.Errorf("submission %s: %w", id, services.ErrNotFound)
		}
		out = &sub
		return nil
	})
	return out, err
}

func (r memSubmissions) Create(ctx context.Context, sub *models.Submission) error {
	return r.m.write(ctx, func(s *memState) error {
		return insertSubmission(s, sub)
	})
}

func (r memSubmissions) CreateCompletionMarker(ctx context.Context, sub *models.Submission) error {
	sub.CompletionMarker = true
	return r.m.write(ctx, func(s *memState) error {
		return insertSubmission(s, sub)
	})
}

func insertSubmission(s *memState, sub *models.Submission) error {
	if _, ok := s.submissions[sub.ID]; ok {
		return fmt.Errorf("submission %s: %w", sub.ID, services.ErrConflict)
	}
	if sub.CompletionMarker {
		for _, other := range s.submissions {
			if other.CompletionMarker && other.UserID == sub.UserID && other.ChallengeID == sub.ChallengeID {
				return fmt.Errorf("completion marker for %s/%s: %w", sub.UserID, sub.ChallengeID, services.ErrConflict)
			}
		}
	}
	now := s.now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = now
	}
	s.submissions[sub.ID] = *sub
	return nil
}

func (r memSubmissions) CountForChallenge(ctx context.Context, userID, challengeID string) (int64, error) {
	var n int64
	err := r.m.read(ctx, func(s *memState) error {
		for _, sub := range s.submissions {
			if sub.UserID == userID && sub.ChallengeID == challengeID {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r memSubmissions) DeleteForChallenge(ctx context.Context, userID, challengeID string) (int64, error) {
	var n int64
	err := r.m.write(ctx, func(s *memState) error {
		for id, sub := range s.submissions {
			if sub.UserID == userID && sub.ChallengeID == challengeID {
				delete(s.submissions, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r memSubmissions) Delete(ctx context.Context, id string) (int64, error) {
	var n int64
	err := r.m.write(ctx, func(s *memState) error {
		if _, ok := s.submissions[id]; ok {
			delete(s.submissions, id)
			n = 1
		}
		return nil
	})
	return n, err
}

func (r memSubmissions) CountCreatedBetween(ctx context.Context, userID string, from, to time.Time) (int64, error) {
	var n int64
	err := r.m.read(ctx, func(s *memState) error {
		for _, sub := range s.submissions {
			if sub.UserID == userID && !sub.CreatedAt.Before(from) && sub.CreatedAt.Before(to) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r memSubmissions) ListByChallenge(ctx context.Context, challengeID string, newestFirst bool) ([]models.Submission, error) {
	var out []models.Submission
	err := r.m.read(ctx, func(s *memState) error {
		for _, sub := range s.submissions {
			if sub.ChallengeID == challengeID {
				out = append(out, sub)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			if newestFirst {
				return out[i].CreatedAt.After(out[j].CreatedAt)
			}
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// challenges

type memChallenges struct{ m *Memory }

func (r memChallenges) Get(ctx context.Context, id string) (*models.WeeklyChallenge, error) {
	var out *models.WeeklyChallenge
	err := r.m.read(ctx, func(s *memState) error {
		c, ok := s.challenges[id]
		if !ok {
			return fmt.Errorf("challenge %s: %w", id, services.ErrNotFound)
		}
		out = &c
		return nil
	})
	return out, err
}

func (r memChallenges) GetByWeek(ctx context.Context, week, year int) (*models.WeeklyChallenge, error) {
	var out *models.WeeklyChallenge
	err := r.m.read(ctx, func(s *memState) error {
		for _, c := range s.challenges {
			if c.Week == week && c.Year == year {
				out = &c
				return nil
			}
		}
		return fmt.Errorf("challenge week %d/%d: %w", week, year, services.ErrNotFound)
	})
	return out, err
}

func (r memChallenges) Create(ctx context.Context, c *models.WeeklyChallenge) error {
	return r.m.write(ctx, func(s *memState) error {
		if _, ok := s.challenges[c.ID]; ok {
			return fmt.Errorf("challenge %s: %w", c.ID, services.ErrConflict)
		}
		for _, other := range s.challenges {
			if other.Week == c.Week && other.Year == c.Year {
				return fmt.Errorf("challenge week %d/%d: %w", c.Week, c.Year, services.ErrConflict)
			}
		}
		now := s.now().UTC()
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.UpdatedAt = now
		s.challenges[c.ID] = *c
		return nil
	})
}

func (r memChallenges) Update(ctx context.Context, c *models.WeeklyChallenge) error {
	return r.m.write(ctx, func(s *memState) error {
		if _, ok := s.challenges[c.ID]; !ok {
			return fmt.Errorf("challenge %s: %w", c.ID, services.ErrNotFound)
		}
		s.challenges[c.ID] = *c
		return nil
	})
}

func (r memChallenges) Delete(ctx context.Context, id string) (int64, error) {
	var n int64
	err := r.m.write(ctx, func(s *memState) error {
		if _, ok := s.challenges[id]; ok {
			delete(s.challenges, id)
			n = 1
		}
		return nil
	})
	return n, err
}

func (r memChallenges) ListByYear(ctx context.Context, year int) ([]models.WeeklyChallenge, error) {
	var out []models.WeeklyChallenge
	err := r.m.read(ctx, func(s *memState) error {
		for _, c := range s.challenges {
			if c.Year == year {
				out = append(out, c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Week < out[j].Week })
	return out, nil
}

func (r memChallenges) AssignWinner(ctx context.Context, challengeID, submissionID string) (bool, error) {
	var changed bool
	err := r.m.write(ctx, func(s *memState) error {
		c, ok := s.challenges[challengeID]
		if !ok || c.WinnerSubmissionID != nil {
			return nil
		}
		id := submissionID
		c.WinnerSubmissionID = &id
		c.UpdatedAt = s.now().UTC()
		s.challenges[challengeID] = c
		changed = true
		return nil
	})
	return changed, err
}

// awards

type memAwards struct{ m *Memory }

func (r memAwards) Create(ctx context.Context, a *models.PendingAward) error {
	return r.m.write(ctx, func(s *memState) error {
		for _, other := range s.awards {
			if other.ID == a.ID || other.ChallengeID == a.ChallengeID {
				return fmt.Errorf("award for challenge %s: %w", a.ChallengeID, services.ErrConflict)
			}
		}
		now := s.now().UTC()
		a.CreatedAt = now
		a.UpdatedAt = now
		if a.Status == "" {
			a.Status = models.AwardStatusPending
		}
		s.awards[a.ID] = *a
		return nil
	})
}

func (r memAwards) GetByChallenge(ctx context.Context, challengeID string) (*models.PendingAward, error) {
	var out *models.PendingAward
	err := r.m.read(ctx, func(s *memState) error {
		for _, a := range s.awards {
			if a.ChallengeID == challengeID {
				out = &a
				return nil
			}
		}
		return fmt.Errorf("award for challenge %s: %w", challengeID, services.ErrNotFound)
	})
	return out, err
}

func (r memAwards) ListPending(ctx context.Context, limit int) ([]models.PendingAward, error) {
	var out []models.PendingAward
	err := r.m.read(ctx, func(s *memState) error {
		for _, a := range s.awards {
			if a.Status == models.AwardStatusPending {
				out = append(out, a)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memAwards) MarkApplied(ctx context.Context, id string, at time.Time) (bool, error) {
	var changed bool
	err := r.m.write(ctx, func(s *memState) error {
		a, ok := s.awards[id]
		if !ok || a.Status != models.AwardStatusPending {
			return nil
		}
		a.Status = models.AwardStatusApplied
		a.AppliedAt = &at
		a.Attempts++
		a.UpdatedAt = at
		s.awards[id] = a
		changed = true
		return nil
	})
	return changed, err
}

func (r memAwards) RecordFailure(ctx context.Context, id string, cause string) error {
	return r.m.write(ctx, func(s *memState) error {
		a, ok := s.awards[id]
		if !ok {
			return fmt.Errorf("award %s: %w", id, services.ErrNotFound)
		}
		a.Attempts++
		a.LastError = cause
		a.UpdatedAt = s.now().UTC()
		s.awards[id] = a
		return nil
	})
}

// events

type memEvents struct{ m *Memory }

func (r memEvents) Record(ctx context.Context, e *models.XPEvent) error {
	return r.m.write(ctx, func(s *memState) error {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = s.now().UTC()
		}
		s.events = append(s.events, *e)
		return nil
	})
}

func (r memEvents) ListForUser(ctx context.Context, userID string, offset, limit int) ([]models.XPEvent, int64, error) {
	var all []models.XPEvent
	err := r.m.read(ctx, func(s *memState) error {
		for i := len(s.events) - 1; i >= 0; i-- {
			if s.events[i].UserID == userID {
				all = append(all, s.events[i])
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	total := int64(len(all))
	if offset >= len(all) {
		return []models.XPEvent{}, total, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}
