package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"rejection-therapy/handlers"
	"rejection-therapy/middleware"
	"rejection-therapy/models"
	"rejection-therapy/services"
	"rejection-therapy/store"
)

const (
	serviceToken = "svc-secret"

	adminID = "00000000-0000-4000-8000-000000000000"
	user1ID = "00000000-0000-4000-8000-000000000001"
	wk1ID   = "c0000000-0000-4000-8000-000000000011"
	sub1ID  = "50000000-0000-4000-8000-000000000001"
)

var tokens = map[string]string{"tok-admin": adminID, "tok-u1": user1ID}

// stubAuth resolves the fixed tokens above and reports "down" as an outage.
type stubAuth struct{}

func (stubAuth) Authenticate(_ context.Context, token string) (string, error) {
	if token == "down" {
		return "", fmt.Errorf("auth provider: %w", services.ErrTransient)
	}
	if id, ok := tokens[token]; ok {
		return id, nil
	}
	return "", services.ErrInvalidToken
}

func newTestApp(t *testing.T) (*fiber.App, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	mem.PutProfile(models.Profile{ID: adminID, IsAdmin: true})
	mem.PutProfile(models.Profile{ID: user1ID})
	if err := mem.Challenges().Create(context.Background(), &models.WeeklyChallenge{ID: wk1ID, Week: 11, Year: 2025, Title: "Ask for a discount"}); err != nil {
		t.Fatal(err)
	}

	ledger := services.DefaultLedger()
	xp := services.NewXPService(mem, ledger, time.Second, nil)
	recon := services.NewReconciliationService(mem, ledger, time.Second, nil)
	winner := services.NewWinnerService(mem, xp, time.Second)
	limits := services.NewDailyLimitService(mem, 3, time.Second)
	subs := services.NewSubmissionService(mem, xp, limits, nil, time.Second)
	challenges := services.NewChallengeService(mem, time.Second)
	profiles := services.NewProfileService(mem, ledger.Ranks, time.Second)
	board := services.NewLeaderboardService(mem, nil, ledger.Ranks, time.Second)

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	handlers.SetupHealthRoutes(app, mem)
	handlers.SetupInternalRoutes(app, serviceToken, winner, profiles, board)
	secured := app.Group("/", middleware.AuthMiddleware(stubAuth{}, mem.Profiles(), time.Second))
	handlers.SetupXPRoutes(secured, xp)
	handlers.SetupSubmissionRoutes(secured, subs, recon, limits)
	handlers.SetupChallengeRoutes(secured, challenges, winner)
	handlers.SetupProfileRoutes(secured, profiles, board)
	return app, mem
}

func do(t *testing.T, app *fiber.App, method, path, token, body string, headers ...string) (*http.Response, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && err != io.EOF {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp, out
}

func TestAuthErrors(t *testing.T) {
	app, _ := newTestApp(t)
	tests := []struct {
		name   string
		token  string
		status int
		code   string
	}{
		{"missing token", "", fiber.StatusUnauthorized, "UNAUTHORIZED"},
		{"invalid token", "nope", fiber.StatusUnauthorized, "UNAUTHORIZED"},
		{"provider down", "down", fiber.StatusServiceUnavailable, "AUTH_UNAVAILABLE"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := do(t, app, http.MethodPost, "/xp/update", tc.token, `{"userId":"` + user1ID + `","action":"participate"}`)
			if resp.StatusCode != tc.status || body["code"] != tc.code {
				t.Fatalf("got %d %v", resp.StatusCode, body)
			}
			if _, ok := body["error"].(string); !ok {
				t.Errorf("error message missing: %v", body)
			}
			if tc.status == fiber.StatusServiceUnavailable && resp.Header.Get(fiber.HeaderRetryAfter) == "" {
				t.Error("Retry-After missing on transient error")
			}
		})
	}
}

func TestXPUpdate(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := do(t, app, http.MethodPost, "/xp/update", "tok-u1", `{"userId":"` + user1ID + `","action":"participate"}`)
	if resp.StatusCode != fiber.StatusOK || body["success"] != true {
		t.Fatalf("got %d %v", resp.StatusCode, body)
	}
	data := body["data"].(map[string]any)
	if data["newXP"] != float64(10) || data["xpAdded"] != float64(10) {
		t.Errorf("data: got %v", data)
	}

	tests := []struct {
		name   string
		token  string
		body   string
		status int
		kind   string
	}{
		{"invalid action", "tok-u1", `{"userId":"` + user1ID + `","action":"dance"}`, fiber.StatusBadRequest, "invalid_action"},
		{"other user", "tok-u1", `{"userId":"` + adminID + `","action":"participate"}`, fiber.StatusForbidden, "forbidden"},
		{"unknown user", "tok-admin", `{"userId":"f0000000-0000-4000-8000-00000000ffff","action":"participate"}`, fiber.StatusNotFound, "not_found"},
		{"malformed body", "tok-u1", `{"userId":`, fiber.StatusBadRequest, "validation"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := do(t, app, http.MethodPost, "/xp/update", tc.token, tc.body)
			if resp.StatusCode != tc.status || body["kind"] != tc.kind {
				t.Fatalf("got %d %v", resp.StatusCode, body)
			}
		})
	}
}

func TestDeleteSubmissionResponseShape(t *testing.T) {
	tests := []struct {
		name     string
		accept   string
		wantData bool
	}{
		{"json client", "application/json", true},
		{"plain client", "*/*", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app, mem := newTestApp(t)
			mem.PutProfile(models.Profile{ID: user1ID, ExperiencePoints: 100, ChallengesCompleted: 1})
			if err := mem.Submissions().Create(context.Background(), &models.Submission{ID: sub1ID, UserID: user1ID, ChallengeID: wk1ID, CompletionMarker: true}); err != nil {
				t.Fatal(err)
			}

			resp, body := do(t, app, http.MethodPost, "/submissions/delete", "tok-u1", `{"submissionId":"` + sub1ID + `"}`, fiber.HeaderAccept, tc.accept)
			if resp.StatusCode != fiber.StatusOK || body["message"] != "Submission deleted successfully" {
				t.Fatalf("got %d %v", resp.StatusCode, body)
			}
			if _, ok := body["data"]; ok != tc.wantData {
				t.Errorf("data present: got %v, want %v", ok, tc.wantData)
			}
		})
	}
}

func TestDeleteMissingSubmission(t *testing.T) {
	app, _ := newTestApp(t)
	tests := []struct {
		name   string
		id     string
		status int
		code   string
	}{
		{"unknown", "f0000000-0000-4000-8000-00000000ffff", fiber.StatusNotFound, "SUBMISSION_NOT_FOUND"},
		{"malformed", "nope", fiber.StatusBadRequest, "INVALID_ID"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := do(t, app, http.MethodPost, "/submissions/delete", "tok-u1", `{"submissionId":"`+tc.id+`"}`)
			if resp.StatusCode != tc.status || body["code"] != tc.code {
				t.Fatalf("got %d %v", resp.StatusCode, body)
			}
		})
	}
}

func TestMalformedPathID(t *testing.T) {
	app, _ := newTestApp(t)
	resp, body := do(t, app, http.MethodGet, "/challenges/not-a-uuid", "tok-u1", "")
	if resp.StatusCode != fiber.StatusBadRequest || body["code"] != "INVALID_ID" {
		t.Fatalf("got %d %v", resp.StatusCode, body)
	}
}

func TestLeaderboardLimit(t *testing.T) {
	app, _ := newTestApp(t)
	for _, q := range []string{"0", "101", "ten"} {
		resp, body := do(t, app, http.MethodGet, "/leaderboard?limit="+q, "tok-u1", "")
		if resp.StatusCode != fiber.StatusBadRequest || body["code"] != "INVALID_LIMIT" {
			t.Errorf("limit=%s: got %d %v", q, resp.StatusCode, body)
		}
	}
	resp, body := do(t, app, http.MethodGet, "/leaderboard?limit=5", "tok-u1", "")
	if resp.StatusCode != fiber.StatusOK || len(body["data"].([]any)) != 2 {
		t.Errorf("got %d %v", resp.StatusCode, body)
	}
}

func TestUnknownRoute(t *testing.T) {
	app, _ := newTestApp(t)
	resp, body := do(t, app, http.MethodGet, "/nowhere", "tok-u1", "")
	if resp.StatusCode != fiber.StatusNotFound || body["code"] != "HTTP_404" || body["kind"] != "not_found" {
		t.Fatalf("got %d %v", resp.StatusCode, body)
	}
}

func TestHealthAndInternalRoutes(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := do(t, app, http.MethodGet, "/healthz", "", "")
	if resp.StatusCode != fiber.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz: got %d %v", resp.StatusCode, body)
	}

	resp, _ = do(t, app, http.MethodPost, "/internal/jobs/rank-repair", "", "")
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("no token: got %d", resp.StatusCode)
	}
	resp, _ = do(t, app, http.MethodPost, "/internal/jobs/rank-repair", "tok-admin", "")
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("user token: got %d", resp.StatusCode)
	}

	resp, body = do(t, app, http.MethodPost, "/internal/jobs/rank-repair", "", "", "X-Service-Token", serviceToken)
	if resp.StatusCode != fiber.StatusOK || body["fixed"] != float64(0) {
		t.Errorf("rank repair: got %d %v", resp.StatusCode, body)
	}
	resp, body = do(t, app, http.MethodPost, "/internal/jobs/award-retry", serviceToken, "")
	if resp.StatusCode != fiber.StatusOK || body["applied"] != float64(0) {
		t.Errorf("award retry: got %d %v", resp.StatusCode, body)
	}
}
