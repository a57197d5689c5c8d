package backend

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	perr "stakegate/internal/platform/errors"
	"stakegate/internal/platform/net/retry"
)

const (
	testKeyID  = "stakegate-bot"
	testSecret = "s3cr3t"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c := NewClient(Options{
		BaseURL: baseURL,
		KeyID:   testKeyID,
		Secret:  testSecret,
		Retry:   retry.Options{Attempts: 1, BaseDelay: time.Millisecond, Timeout: 2 * time.Second},
	})
	c.now = func() time.Time { return time.Unix(1700000000, 0) }
	return c
}

// expectSig recomputes the signature the way the backend verifies it:
// HMAC-SHA256 keyed by hex(SHA-256(secret)) over "<ts>.<message>"
func expectSig(ts int64, message string) string {
	sum := sha256.Sum256([]byte(testSecret))
	mac := hmac.New(sha256.New, []byte(hex.EncodeToString(sum[:])))
	fmt.Fprintf(mac, "%d.%s", ts, message)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func checkAuthHeaders(t *testing.T, r *http.Request, message string) {
	t.Helper()
	if got := r.Header.Get("X-Internal-Key-Id"); got != testKeyID {
		t.Errorf("key id = %q", got)
	}
	ts, err := strconv.ParseInt(r.Header.Get("X-Internal-Timestamp"), 10, 64)
	if err != nil {
		t.Fatalf("timestamp header: %v", err)
	}
	if got, want := r.Header.Get("X-Internal-Signature"), expectSig(ts, message); got != want {
		t.Errorf("signature = %q, want %q", got, want)
	}
}

func TestPushPullRequestEvent(t *testing.T) {
	req := PullRequestEventRequest{
		DeliveryID:     "dlv-123",
		EventTime:      time.Unix(1700000000, 0).UTC(),
		InstallationID: 42,
		Action:         "opened",
		Repository:     RepositoryRef{ID: 9, FullName: "acme/widgets"},
		PullRequest: PullRequestRef{
			Number: 7, ID: 5001, HTMLURL: "https://github.com/acme/widgets/pull/7",
			User: PullRequestUser{ID: 11, Login: "octocat"}, HeadSHA: "abc123", IsDraft: false,
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/internal/v1/github/events/pull-request" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		checkAuthHeaders(t, r, "dlv-123")
		var got PullRequestEventRequest
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.PullRequest.HeadSHA != "abc123" || got.Repository.FullName != "acme/widgets" {
			t.Errorf("body round-trip mismatch: %+v", got)
		}
		fmt.Fprint(w, `{"ingest_status":"ACCEPTED"}`)
	}))
	defer srv.Close()

	status, err := newTestClient(t, srv.URL).PushPullRequestEvent(context.Background(), req)
	if err != nil {
		t.Fatalf("PushPullRequestEvent: %v", err)
	}
	if status != IngestAccepted {
		t.Fatalf("status = %q", status)
	}
}

func TestPushInstallationSyncDuplicate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/internal/v1/github/events/installation-sync" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		checkAuthHeaders(t, r, "dlv-456")
		fmt.Fprint(w, `{"ingest_status":"DUPLICATE"}`)
	}))
	defer srv.Close()

	status, err := newTestClient(t, srv.URL).PushInstallationSync(context.Background(), InstallationSyncRequest{
		DeliveryID:   "dlv-456",
		EventName:    "installation",
		Action:       "created",
		Installation: InstallationRef{ID: 42, AccountLogin: "acme", AccountType: "Organization"},
	})
	if err != nil {
		t.Fatalf("PushInstallationSync: %v", err)
	}
	if status != IngestDuplicate {
		t.Fatalf("status = %q", status)
	}
}

func TestClaimActions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/internal/v1/bot-actions/claim" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		checkAuthHeaders(t, r, "bot-actions-claim:worker-1")
		var got claimRequest
		_ = json.NewDecoder(r.Body).Decode(&got)
		if got.WorkerID != "worker-1" || got.Limit != 5 {
			t.Errorf("claim body = %+v", got)
		}
		fmt.Fprint(w, `{"actions":[
			{"id":"a1","action_type":"UPSERT_PR_COMMENT","installation_id":42,
			 "github_repo_id":9,"repo_full_name":"acme/widgets","github_pr_number":7,
			 "challenge_id":"ch-1","payload":{"comment_markdown":"hi","comment_marker":"<!-- m -->"},
			 "attempts":1,"created_at":"2026-08-01T00:00:00Z"}
		]}`)
	}))
	defer srv.Close()

	actions, err := newTestClient(t, srv.URL).ClaimActions(context.Background(), "worker-1", 5)
	if err != nil {
		t.Fatalf("ClaimActions: %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("len = %d", len(actions))
	}
	a := actions[0]
	if a.ID != "a1" || a.ActionType != "UPSERT_PR_COMMENT" || a.GitHubPRNumber != 7 {
		t.Fatalf("action = %+v", a)
	}
	var payload map[string]string
	if err := json.Unmarshal(a.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["comment_marker"] != "<!-- m -->" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestReportActionResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/internal/v1/bot-actions/a1/result" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		checkAuthHeaders(t, r, "bot-actions-result:a1")
		var got ActionResultRequest
		_ = json.NewDecoder(r.Body).Decode(&got)
		if got.Outcome != OutcomeFailed || got.FailureCode != "UNSUPPORTED_ACTION" {
			t.Errorf("result body = %+v", got)
		}
		fmt.Fprint(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL).ReportActionResult(context.Background(), "a1", ActionResultRequest{
		WorkerID:    "worker-1",
		Outcome:     OutcomeFailed,
		FailureCode: "UNSUPPORTED_ACTION",
	})
	if err != nil {
		t.Fatalf("ReportActionResult: %v", err)
	}
}

func TestDeadlineCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/internal/v1/challenges/ch-9/deadline-check" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		checkAuthHeaders(t, r, "ch-9")
		fmt.Fprint(w, `{"status":"expired"}`)
	}))
	defer srv.Close()

	if err := newTestClient(t, srv.URL).DeadlineCheck(context.Background(), "ch-9"); err != nil {
		t.Fatalf("DeadlineCheck: %v", err)
	}
}

func TestStatusErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		code   perr.ErrorCode
	}{
		{http.StatusNotFound, perr.ErrorCodeNotFound},
		{http.StatusUnauthorized, perr.ErrorCodeUnauthorized},
		{http.StatusForbidden, perr.ErrorCodeUnauthorized},
		{http.StatusUnprocessableEntity, perr.ErrorCodeInvalidArgument},
		{http.StatusBadRequest, perr.ErrorCodeInvalidArgument},
		{http.StatusBadGateway, perr.ErrorCodeUnavailable},
	}
	for _, tc := range cases {
		t.Run(strconv.Itoa(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			err := newTestClient(t, srv.URL).DeadlineCheck(context.Background(), "ch-1")
			if !perr.IsCode(err, tc.code) {
				t.Fatalf("status %d: code = %v, want %v (err %v)", tc.status, perr.CodeOf(err), tc.code, err)
			}
		})
	}
}
