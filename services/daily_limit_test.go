package services_test

import (
	"context"
	"testing"
	"time"

	"rejection-therapy/models"
	"rejection-therapy/services"
)

func TestDailyLimitCountsUTCDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addSubmission(t, "today-1", user1ID, wk1ID)
	f.addSubmission(t, "today-2", user1ID, wk2ID)
	err := f.mem.Submissions().Create(ctx, &models.Submission{
		ID: "yesterday", UserID: user1ID, ChallengeID: wk1ID,
		CreatedAt: testNow.Add(-24 * time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	f.addSubmission(t, "someone-else", user2ID, wk1ID)

	got, err := f.limits.Check(ctx, userActor, user1ID)
	if err != nil {
		t.Fatal(err)
	}
	want := services.DailyLimit{
		SubmissionsToday:     2,
		SubmissionsRemaining: 1,
		MaxDailySubmissions:  3,
		CanSubmit:            true,
		ResetTime:            services.ResetTime{Date: "2025-03-13T00:00:00.000Z", Hours: 8, Minutes: 30},
	}
	if *got != want {
		t.Errorf("got %+v, want %+v", *got, want)
	}
}

func TestDailyLimitExhausted(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"a", "b", "c", "d"} {
		f.addSubmission(t, id, user1ID, wk1ID)
	}
	got, err := f.limits.Check(context.Background(), adminActor, user1ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CanSubmit || got.SubmissionsRemaining != 0 || got.SubmissionsToday != 4 {
		t.Errorf("got %+v", got)
	}
}

func TestDailyLimitRejections(t *testing.T) {
	f := newFixture(t)
	_, err := f.limits.Check(context.Background(), otherActor, user1ID)
	wantKind(t, err, services.KindForbidden)

	_, err = f.limits.Check(context.Background(), userActor, " ")
	wantCode(t, err, "USER_ID_REQUIRED")
}
