package services_test

import (
	"context"
	"testing"
	"time"

	"rejection-therapy/models"
	"rejection-therapy/services"
)

func TestCreateChallenge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.challenges.Create(ctx, adminActor, services.ChallengeInput{
		Week: 13, Year: 2025, Title: "  Ask for a raise ", Description: "Ask your boss.",
		TikTokLink: "https://www.tiktok.com/@rt/video/1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if view.Title != "Ask for a raise" || view.Slug != "2025-week-13-ask-for-a-raise" {
		t.Errorf("title/slug: got %q / %q", view.Title, view.Slug)
	}
	wantStart := time.Date(2025, time.March, 24, 0, 0, 0, 0, time.UTC)
	if !view.StartsAt.Equal(wantStart) || !view.EndsAt.Equal(wantStart.AddDate(0, 0, 6)) {
		t.Errorf("range: got %v - %v", view.StartsAt, view.EndsAt)
	}
	if view.TikTokLink == nil {
		t.Error("tiktok link dropped")
	}
}

func TestCreateChallengeRejections(t *testing.T) {
	valid := services.ChallengeInput{Week: 20, Year: 2025, Title: "Ask for a discount"}
	tests := []struct {
		name  string
		actor services.Actor
		in    services.ChallengeInput
		kind  services.ErrorKind
		code  string
	}{
		{"not admin", userActor, valid, services.KindForbidden, "FORBIDDEN"},
		{"week taken", adminActor, services.ChallengeInput{Week: 11, Year: 2025, Title: "Another one"}, services.KindConflict, "CHALLENGE_EXISTS"},
		{"week 53 in a 52 week year", adminActor, services.ChallengeInput{Week: 53, Year: 2025, Title: "Leap"}, services.KindValidation, "INVALID_WEEK"},
		{"week out of range", adminActor, services.ChallengeInput{Week: 54, Year: 2026, Title: "Nope"}, services.KindValidation, "INVALID_REQUEST"},
		{"year too early", adminActor, services.ChallengeInput{Week: 1, Year: 2020, Title: "Past"}, services.KindValidation, "INVALID_REQUEST"},
		{"title too short", adminActor, services.ChallengeInput{Week: 1, Year: 2026, Title: "Hi"}, services.KindValidation, "INVALID_REQUEST"},
		{"bad link", adminActor, services.ChallengeInput{Week: 1, Year: 2026, Title: "Link", TikTokLink: "not a url"}, services.KindValidation, "INVALID_REQUEST"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.challenges.Create(context.Background(), tc.actor, tc.in)
			wantKind(t, err, tc.kind)
			wantCode(t, err, tc.code)
		})
	}
}

func TestUpdateAndDeleteChallenge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	title := "Ask for a bigger discount"
	empty := ""
	view, err := f.challenges.Update(ctx, adminActor, wk1ID, services.ChallengeUpdate{Title: &title, TikTokLink: &empty})
	if err != nil {
		t.Fatal(err)
	}
	if view.Title != title || view.Slug != "2025-week-11-ask-for-a-bigger-discount" || view.TikTokLink != nil {
		t.Errorf("update: got %+v", view.WeeklyChallenge)
	}

	_, err = f.challenges.Update(ctx, userActor, wk1ID, services.ChallengeUpdate{Title: &title})
	wantKind(t, err, services.KindForbidden)
	_, err = f.challenges.Update(ctx, adminActor, unknownID, services.ChallengeUpdate{Title: &title})
	wantCode(t, err, "CHALLENGE_NOT_FOUND")

	if err := f.challenges.Delete(ctx, adminActor, wk2ID); err != nil {
		t.Fatal(err)
	}
	_, err = f.challenges.Get(ctx, wk2ID)
	wantCode(t, err, "CHALLENGE_NOT_FOUND")
	wantCode(t, f.challenges.Delete(ctx, adminActor, wk2ID), "CHALLENGE_NOT_FOUND")
}

func TestListAndCurrentChallenge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	list, err := f.challenges.ListByYear(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != wk1ID || list[1].ID != wk2ID {
		t.Errorf("list: got %d items", len(list))
	}

	cur, err := f.challenges.Current(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if cur.ID != wk1ID {
		t.Errorf("current: got %s, want wk1", cur.ID)
	}

	f.challenges.SetClock(func() time.Time { return testNow.AddDate(0, 1, 0) })
	_, err = f.challenges.Current(ctx)
	wantCode(t, err, "NO_CURRENT_CHALLENGE")
}

func TestChallengeSubmissionsNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i, id := range []string{"old", "mid", "new"} {
		err := f.mem.Submissions().Create(ctx, &models.Submission{
			ID: id, UserID: user1ID, ChallengeID: wk1ID,
			CreatedAt: testNow.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	subs, err := f.challenges.Submissions(ctx, adminActor, wk1ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 3 || subs[0].ID != "new" || subs[2].ID != "old" {
		t.Errorf("order: got %v", []string{subs[0].ID, subs[1].ID, subs[2].ID})
	}

	_, err = f.challenges.Submissions(ctx, userActor, wk1ID)
	wantKind(t, err, services.KindForbidden)
}
