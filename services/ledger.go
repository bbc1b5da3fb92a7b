package services

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"rejection-therapy/models"
)

// Action is the reason a user is awarded XP.
type Action string

const (
	ActionCompleteChallenge Action = "complete_challenge"
	ActionWinChallenge      Action = "win_challenge"
	ActionParticipate       Action = "participate"
)

// Reasons recorded on xp_events rows that are not award actions.
const (
	ReasonDuplicateCompletion = "duplicate_completion"
	ReasonSubmissionDeleted   = "submission_deleted"
)

func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionCompleteChallenge, ActionWinChallenge, ActionParticipate:
		return a, true
	}
	return "", false
}

// PointValues are the fixed XP amounts per action.
type PointValues struct {
	Completion    int64
	Win           int64
	Participation int64
}

var DefaultPointValues = PointValues{
	Completion:    100,
	Win:           200,
	Participation: 10,
}

// Ledger bundles the rank table and point values. Both the award and the
// reconciliation paths take the same Ledger so ranks and floors agree.
type Ledger struct {
	Ranks  RankTable
	Points PointValues
}

func DefaultLedger() Ledger {
	return Ledger{Ranks: DefaultRankTable(), Points: DefaultPointValues}
}

// XPFor returns the XP granted by action.
func (l Ledger) XPFor(a Action) (int64, bool) {
	switch a {
	case ActionCompleteChallenge:
		return l.Points.Completion, true
	case ActionWinChallenge:
		return l.Points.Win, true
	case ActionParticipate:
		return l.Points.Participation, true
	}
	return 0, false
}

// Credit adds xp and optionally one completed challenge, recomputing rank.
func (l Ledger) Credit(b models.Balance, xp int64, countCompletion bool) models.Balance {
	out := models.Balance{
		ExperiencePoints:    floorZero(b.ExperiencePoints) + xp,
		ChallengesCompleted: floorZero(b.ChallengesCompleted),
	}
	if countCompletion {
		out.ChallengesCompleted++
	}
	out.ExperiencePoints = floorZero(out.ExperiencePoints)
	out.RankLevel = l.Ranks.RankFor(out.ExperiencePoints)
	return out
}

// Debit removes xp and optionally one completed challenge. Both values are
// floored at zero.
func (l Ledger) Debit(b models.Balance, xp int64, uncountCompletion bool) models.Balance {
	out := models.Balance{
		ExperiencePoints:    floorZero(b.ExperiencePoints - xp),
		ChallengesCompleted: floorZero(b.ChallengesCompleted),
	}
	if uncountCompletion {
		out.ChallengesCompleted = floorZero(out.ChallengesCompleted - 1)
	}
	out.RankLevel = l.Ranks.RankFor(out.ExperiencePoints)
	return out
}

func floorZero(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

var printer = message.NewPrinter(language.English)

// formatXP renders an XP amount with thousands separators, e.g. "1,200 XP".
func formatXP(xp int64) string {
	return printer.Sprintf("%d XP", xp)
}
