package services

import (
	"errors"
	"fmt"
)

// Rank is a named tier reached at Threshold XP.
type Rank struct {
	Name      string `json:"name"`
	Threshold int64  `json:"threshold"`
}

// DefaultRanks is the canonical ladder shared by every write path.
var DefaultRanks = []Rank{
	{Name: "Novice", Threshold: 0},
	{Name: "Apprentice", Threshold: 100},
	{Name: "Bronze", Threshold: 250},
	{Name: "Bronze Elite", Threshold: 500},
	{Name: "Silver", Threshold: 800},
	{Name: "Silver Elite", Threshold: 1200},
	{Name: "Gold", Threshold: 1800},
	{Name: "Gold Elite", Threshold: 2500},
	{Name: "Platinum", Threshold: 3500},
	{Name: "Diamond", Threshold: 5000},
	{Name: "Master", Threshold: 7000},
	{Name: "Grand Master", Threshold: 10000},
	{Name: "Rejection Legend", Threshold: 15000},
}

// RankTable maps XP to a rank name. Thresholds are strictly ascending.
type RankTable struct {
	ranks []Rank
}

func NewRankTable(ranks []Rank) (RankTable, error) {
	if len(ranks) == 0 {
		return RankTable{}, errors.New("rank table is empty")
	}
	seen := make(map[string]bool, len(ranks))
	for i, r := range ranks {
		if r.Name == "" {
			return RankTable{}, fmt.Errorf("rank %d has no name", i)
		}
		if seen[r.Name] {
			return RankTable{}, fmt.Errorf("duplicate rank name %q", r.Name)
		}
		seen[r.Name] = true
		if i > 0 && r.Threshold <= ranks[i-1].Threshold {
			return RankTable{}, fmt.Errorf("rank %q threshold %d is not above %q (%d)", r.Name, r.Threshold, ranks[i-1].Name, ranks[i-1].Threshold)
		}
	}
	cp := make([]Rank, len(ranks))
	copy(cp, ranks)
	return RankTable{ranks: cp}, nil
}

// DefaultRankTable returns the table built from DefaultRanks.
func DefaultRankTable() RankTable {
	t, err := NewRankTable(DefaultRanks)
	if err != nil {
		panic(err)
	}
	return t
}

// Base is the rank given to XP below every threshold.
func (t RankTable) Base() Rank {
	return t.ranks[0]
}

// RankFor returns the highest rank whose threshold is <= xp.
func (t RankTable) RankFor(xp int64) string {
	return t.ranks[t.index(xp)].Name
}

// Next returns the rank after the one xp currently holds and the XP still
// missing to reach it. ok is false at the top of the ladder.
func (t RankTable) Next(xp int64) (next Rank, remaining int64, ok bool) {
	i := t.index(xp)
	if i+1 >= len(t.ranks) {
		return Rank{}, 0, false
	}
	next = t.ranks[i+1]
	return next, next.Threshold - xp, true
}

// Progress is the percentage (0-100) covered between the current rank's
// threshold and the next one.
func (t RankTable) Progress(xp int64) float64 {
	i := t.index(xp)
	if i+1 >= len(t.ranks) {
		return 100
	}
	lo, hi := t.ranks[i].Threshold, t.ranks[i+1].Threshold
	if xp <= lo {
		return 0
	}
	return float64(xp-lo) * 100 / float64(hi-lo)
}

func (t RankTable) Ranks() []Rank {
	cp := make([]Rank, len(t.ranks))
	copy(cp, t.ranks)
	return cp
}

func (t RankTable) index(xp int64) int {
	idx := 0
	for i, r := range t.ranks {
		if xp < r.Threshold {
			break
		}
		idx = i
	}
	return idx
}
