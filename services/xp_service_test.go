package services_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"rejection-therapy/models"
	"rejection-therapy/services"
)

func TestAwardScenario(t *testing.T) {
	f := newFixture(t)

	first := f.award(t, user1ID, services.ActionCompleteChallenge, wk1ID)
	if first.Duplicate || first.XPAdded != 100 || first.SubmissionID == "" {
		t.Fatalf("first completion: got %+v", first)
	}
	if got, want := f.balance(t, user1ID), (models.Balance{ExperiencePoints: 100, ChallengesCompleted: 1, RankLevel: "Apprentice"}); got != want {
		t.Fatalf("after first completion: got %+v, want %+v", got, want)
	}

	dup := f.award(t, user1ID, services.ActionCompleteChallenge, wk1ID)
	if !dup.Duplicate || dup.XPAdded != 100 {
		t.Fatalf("duplicate: got %+v", dup)
	}
	if got := f.balance(t, user1ID); got.ExperiencePoints != 200 || got.ChallengesCompleted != 1 {
		t.Fatalf("after duplicate: got %+v", got)
	}

	f.award(t, user1ID, services.ActionWinChallenge, wk1ID)
	if got := f.balance(t, user1ID); got.ExperiencePoints != 400 || got.RankLevel != "Bronze" {
		t.Fatalf("after win: got %+v", got)
	}

	res, err := f.recon.DeleteSubmission(context.Background(), userActor, services.DeleteRequest{
		SubmissionID: first.SubmissionID,
		CleanupMode:  "all",
	})
	if err != nil {
		t.Fatalf("DeleteSubmission: %v", err)
	}
	if res.NewXP != 300 || res.NewChallengesCompleted != 0 || res.SubmissionsDeleted != 1 {
		t.Fatalf("delete result: got %+v", res)
	}
	if got, want := f.balance(t, user1ID), (models.Balance{ExperiencePoints: 300, ChallengesCompleted: 0, RankLevel: "Bronze"}); got != want {
		t.Fatalf("after delete: got %+v, want %+v", got, want)
	}

	// every balance change left an audit row
	if n := len(f.mem.AllEvents()); n != 4 {
		t.Errorf("xp events: got %d, want 4", n)
	}
}

func TestDuplicateBranchNeverTouchesCounter(t *testing.T) {
	f := newFixture(t)
	f.addSubmission(t, "s-existing", user1ID, wk1ID)

	for i := 1; i <= 3; i++ {
		res := f.award(t, user1ID, services.ActionCompleteChallenge, wk1ID)
		if !res.Duplicate {
			t.Fatalf("call %d: expected duplicate", i)
		}
		got := f.balance(t, user1ID)
		if got.ChallengesCompleted != 0 {
			t.Fatalf("call %d: counter changed to %d", i, got.ChallengesCompleted)
		}
		if got.ExperiencePoints != int64(100*i) {
			t.Fatalf("call %d: xp %d, want %d", i, got.ExperiencePoints, 100*i)
		}
	}
	// the duplicate branch inserts no rows
	n, _ := f.mem.Submissions().CountForChallenge(context.Background(), user1ID, wk1ID)
	if n != 1 {
		t.Errorf("submissions: got %d, want 1", n)
	}
}

func TestAwardFixedActions(t *testing.T) {
	tests := []struct {
		action services.Action
		want   int64
	}{
		{services.ActionWinChallenge, 200},
		{services.ActionParticipate, 10},
	}
	for _, tc := range tests {
		t.Run(string(tc.action), func(t *testing.T) {
			f := newFixture(t)
			res, err := f.xp.Award(context.Background(), userActor, services.AwardRequest{UserID: user1ID, Action: string(tc.action)})
			if err != nil {
				t.Fatal(err)
			}
			if res.XPAdded != tc.want || res.NewXP != tc.want || res.NewChallengesCompleted != 0 {
				t.Errorf("got %+v", res)
			}
		})
	}
}

func TestAwardRejections(t *testing.T) {
	tests := []struct {
		name  string
		actor services.Actor
		req   services.AwardRequest
		kind  services.ErrorKind
		code  string
	}{
		{"unknown action", userActor, services.AwardRequest{UserID: user1ID, Action: "bribe"}, services.KindInvalidAction, "INVALID_ACTION"},
		{"missing user", userActor, services.AwardRequest{Action: "participate"}, services.KindValidation, "USER_ID_REQUIRED"},
		{"missing challenge", userActor, services.AwardRequest{UserID: user1ID, Action: "complete_challenge"}, services.KindValidation, "CHALLENGE_ID_REQUIRED"},
		{"other user", otherActor, services.AwardRequest{UserID: user1ID, Action: "participate"}, services.KindForbidden, "FORBIDDEN"},
		{"unauthenticated", services.Actor{}, services.AwardRequest{UserID: user1ID, Action: "participate"}, services.KindForbidden, "FORBIDDEN"},
		{"unknown user", adminActor, services.AwardRequest{UserID: unknownID, Action: "participate"}, services.KindNotFound, "USER_NOT_FOUND"},
		{"unknown challenge", userActor, services.AwardRequest{UserID: user1ID, Action: "complete_challenge", ChallengeID: unknownID}, services.KindNotFound, "CHALLENGE_NOT_FOUND"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.xp.Award(context.Background(), tc.actor, tc.req)
			wantKind(t, err, tc.kind)
			wantCode(t, err, tc.code)
			if got := f.balance(t, user1ID); got.ExperiencePoints != 0 {
				t.Errorf("balance changed on rejection: %+v", got)
			}
		})
	}
}

// barrierStore holds the first n submission counts until all n have read,
// forcing concurrent first completions to both see zero rows.
type barrierStore struct {
	services.Store
	subs *barrierSubs
}

func (b barrierStore) Submissions() services.SubmissionRepository { return b.subs }

type barrierSubs struct {
	services.SubmissionRepository
	n       int32
	calls   int32
	release chan struct{}
	once    sync.Once
}

func (b *barrierSubs) CountForChallenge(ctx context.Context, userID, challengeID string) (int64, error) {
	n, err := b.SubmissionRepository.CountForChallenge(ctx, userID, challengeID)
	if atomic.AddInt32(&b.calls, 1) == b.n {
		b.once.Do(func() { close(b.release) })
	}
	<-b.release
	return n, err
}

func TestConcurrentFirstCompletionsCreditOnce(t *testing.T) {
	base := newFixture(t)
	const racers = 2
	subs := &barrierSubs{
		SubmissionRepository: base.mem.Submissions(),
		n:                    racers,
		release:              make(chan struct{}),
	}
	f := buildFixture(t, base.mem, barrierStore{Store: base.mem, subs: subs}, nil)

	var wg sync.WaitGroup
	results := make([]*services.AwardResult, racers)
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.xp.Award(context.Background(), userActor, services.AwardRequest{
				UserID: user1ID, Action: "complete_challenge", ChallengeID: wk1ID,
			})
		}(i)
	}
	wg.Wait()

	var credited int
	for i, err := range errs {
		if err != nil {
			t.Fatalf("racer %d: %v", i, err)
		}
		if results[i].XPAdded > 0 {
			credited++
		} else if !results[i].Duplicate {
			t.Errorf("racer %d: zero XP without duplicate flag: %+v", i, results[i])
		}
	}
	if credited != 1 {
		t.Errorf("credited racers: got %d, want 1", credited)
	}
	if got, want := base.balance(t, user1ID), (models.Balance{ExperiencePoints: 100, ChallengesCompleted: 1, RankLevel: "Apprentice"}); got != want {
		t.Errorf("balance: got %+v, want %+v", got, want)
	}
}
