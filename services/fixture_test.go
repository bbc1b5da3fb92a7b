package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"rejection-therapy/models"
	"rejection-therapy/services"
	"rejection-therapy/store"
)

// Wednesday of ISO week 11, 2025.
var testNow = time.Date(2025, time.March, 12, 15, 30, 0, 0, time.UTC)

const (
	adminID   = "00000000-0000-4000-8000-000000000000"
	user1ID   = "00000000-0000-4000-8000-000000000001"
	user2ID   = "00000000-0000-4000-8000-000000000002"
	wk1ID     = "c0000000-0000-4000-8000-000000000011"
	wk2ID     = "c0000000-0000-4000-8000-000000000012"
	sub1ID    = "50000000-0000-4000-8000-000000000001"
	sub2ID    = "50000000-0000-4000-8000-000000000002"
	sub3ID    = "50000000-0000-4000-8000-000000000003"
	unknownID = "f0000000-0000-4000-8000-00000000ffff"
)

var (
	adminActor = services.Actor{UserID: adminID, IsAdmin: true}
	userActor  = services.Actor{UserID: user1ID}
	otherActor = services.Actor{UserID: user2ID}
)

type fixture struct {
	mem         *store.Memory
	ledger      services.Ledger
	xp          *services.XPService
	recon       *services.ReconciliationService
	winner      *services.WinnerService
	limits      *services.DailyLimitService
	challenges  *services.ChallengeService
	submissions *services.SubmissionService
	profiles    *services.ProfileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	mem.SetClock(func() time.Time { return testNow })
	seed(t, mem)
	return buildFixture(t, mem, mem, nil)
}

// buildFixture wires every service to s; mem is the seeded memory store s
// wraps.
func buildFixture(t *testing.T, mem *store.Memory, s services.Store, uploader services.VideoUploader) *fixture {
	t.Helper()
	clock := func() time.Time { return testNow }
	ledger := services.DefaultLedger()

	f := &fixture{mem: mem, ledger: ledger}
	f.xp = services.NewXPService(s, ledger, time.Second, nil)
	f.xp.SetClock(clock)
	f.recon = services.NewReconciliationService(s, ledger, time.Second, nil)
	f.recon.SetClock(clock)
	f.winner = services.NewWinnerService(s, f.xp, time.Second)
	f.winner.SetClock(clock)
	f.limits = services.NewDailyLimitService(s, services.DefaultMaxDailySubmissions, time.Second)
	f.limits.SetClock(clock)
	f.challenges = services.NewChallengeService(s, time.Second)
	f.challenges.SetClock(clock)
	f.submissions = services.NewSubmissionService(s, f.xp, f.limits, uploader, time.Second)
	f.profiles = services.NewProfileService(s, ledger.Ranks, time.Second)

	return f
}

func seed(t *testing.T, mem *store.Memory) {
	t.Helper()
	mem.PutProfile(models.Profile{ID: adminID, IsAdmin: true})
	mem.PutProfile(models.Profile{ID: user1ID})
	mem.PutProfile(models.Profile{ID: user2ID})
	if err := mem.Challenges().Create(context.Background(), &models.WeeklyChallenge{ID: wk1ID, Week: 11, Year: 2025, Title: "Ask for a discount"}); err != nil {
		t.Fatal(err)
	}
	if err := mem.Challenges().Create(context.Background(), &models.WeeklyChallenge{ID: wk2ID, Week: 12, Year: 2025, Title: "Ask a stranger for a ride"}); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) balance(t *testing.T, userID string) models.Balance {
	t.Helper()
	p, err := f.mem.Profiles().Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("get profile %s: %v", userID, err)
	}
	return p.Balance()
}

func (f *fixture) award(t *testing.T, userID string, action services.Action, challengeID string) *services.AwardResult {
	t.Helper()
	res, err := f.xp.Award(context.Background(), adminActor, services.AwardRequest{
		UserID:      userID,
		Action:      string(action),
		ChallengeID: challengeID,
	})
	if err != nil {
		t.Fatalf("Award(%s, %s, %s): %v", userID, action, challengeID, err)
	}
	return res
}

func (f *fixture) addSubmission(t *testing.T, id, userID, challengeID string) {
	t.Helper()
	err := f.mem.Submissions().Create(context.Background(), &models.Submission{
		ID: id, UserID: userID, ChallengeID: challengeID, Completed: true,
	})
	if err != nil {
		t.Fatalf("create submission %s: %v", id, err)
	}
}

func wantKind(t *testing.T, err error, kind services.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("got nil error, want kind %s", kind)
	}
	if got := services.KindOf(err); got != kind {
		t.Fatalf("error kind: got %s, want %s (%v)", got, kind, err)
	}
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *services.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("got %v, want AppError with code %s", err, code)
	}
	if appErr.Code != code {
		t.Fatalf("error code: got %s, want %s", appErr.Code, code)
	}
}
