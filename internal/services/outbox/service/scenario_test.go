package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stakegate/internal/adapters/backend"
	"stakegate/internal/adapters/github"
	"stakegate/internal/platform/metrics"
	"stakegate/internal/platform/net/retry"
)

type forgeComment struct {
	ID   int64  `json:"id"`
	Body string `json:"body"`
}

// fakeForge is an in-memory GitHub standing in for the real API: token
// minting (with one stale installation id), comments, and PR state
type fakeForge struct {
	staleID     int64
	currentID   int64
	comments    []forgeComment
	nextComment int64
	prState     string
}

func (f *fakeForge) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case path == fmt.Sprintf("/app/installations/%d/access_tokens", f.staleID):
			w.WriteHeader(http.StatusNotFound)
		case path == "/repos/acme/widgets/installation":
			fmt.Fprintf(w, `{"id":%d}`, f.currentID)
		case path == fmt.Sprintf("/app/installations/%d/access_tokens", f.currentID):
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"token":"ghs_live"}`)
		case r.Method == http.MethodGet && strings.HasSuffix(path, "/issues/42/comments"):
			_ = json.NewEncoder(w).Encode(f.comments)
		case r.Method == http.MethodPost && strings.HasSuffix(path, "/issues/42/comments"):
			var body struct {
				Body string `json:"body"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.nextComment++
			f.comments = append(f.comments, forgeComment{ID: f.nextComment, Body: body.Body})
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{}`)
		case r.Method == http.MethodPatch && strings.Contains(path, "/issues/comments/"):
			var body struct {
				Body string `json:"body"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			for i := range f.comments {
				if strings.HasSuffix(path, fmt.Sprintf("/%d", f.comments[i].ID)) {
					f.comments[i].Body = body.Body
				}
			}
			fmt.Fprint(w, `{}`)
		case r.Method == http.MethodPatch && strings.HasSuffix(path, "/pulls/42"):
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.prState = body["state"]
			fmt.Fprint(w, `{}`)
		default:
			t.Errorf("unexpected github call %s %s", r.Method, path)
			w.WriteHeader(http.StatusTeapot)
		}
	}
}

func forgeClient(t *testing.T, baseURL string) *github.Client {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return github.NewClient(github.Options{
		BaseURL:    baseURL,
		AppID:      "424242",
		PrivateKey: key,
		Retry:      retry.Options{Attempts: 1, BaseDelay: time.Millisecond, Timeout: 2 * time.Second},
	})
}

// A challenge comment action runs twice, as a reclaimed action would.
// Exactly one comment holding the marker remains, the second markdown wins
func TestScenarioChallengeCommentConverges(t *testing.T) {
	forge := &fakeForge{staleID: -1, currentID: 777}
	srv := httptest.NewServer(forge.handler(t))
	defer srv.Close()

	marker := "<!-- stakegate:challenge:ch-1 -->"
	mkAction := func(markdown string) backend.BotAction {
		b, _ := json.Marshal(map[string]string{"comment_markdown": markdown, "comment_marker": marker})
		return backend.BotAction{
			ID:             "a1",
			ActionType:     backend.ActionUpsertPRComment,
			InstallationID: 777,
			RepoFullName:   "acme/widgets",
			GitHubPRNumber: 42,
			ChallengeID:    "ch-1",
			Payload:        b,
		}
	}

	exec := New(forgeClient(t, srv.URL))
	if out := exec.Execute(context.Background(), mkAction("Stake required to merge")); out.Outcome != backend.OutcomeSucceeded {
		t.Fatalf("first run = %+v", out)
	}
	if out := exec.Execute(context.Background(), mkAction("Stake confirmed")); out.Outcome != backend.OutcomeSucceeded {
		t.Fatalf("second run = %+v", out)
	}

	if len(forge.comments) != 1 {
		t.Fatalf("comments = %d, want exactly one", len(forge.comments))
	}
	body := forge.comments[0].Body
	if !strings.Contains(body, marker) || !strings.Contains(body, "Stake confirmed") {
		t.Fatalf("comment body = %q", body)
	}
}

// A close-with-comment action arrives holding a stale installation id.
// The token mint 404s, the repo lookup recovers the live id, the PR is
// closed, the timeout comment lands, and the ack reports SUCCEEDED
func TestScenarioStaleInstallationCloseWithComment(t *testing.T) {
	forge := &fakeForge{staleID: 123, currentID: 777}
	srv := httptest.NewServer(forge.handler(t))
	defer srv.Close()

	marker := "<!-- stakegate:timeout:ch-9 -->"
	payload, _ := json.Marshal(map[string]string{
		"comment_markdown": "Stake deadline passed; closing.",
		"comment_marker":   marker,
		"reason":           "deadline_expired",
	})
	src := newFakeSource(backend.BotAction{
		ID:             "a9",
		ActionType:     backend.ActionClosePRWithComment,
		InstallationID: 123,
		RepoFullName:   "acme/widgets",
		GitHubPRNumber: 42,
		ChallengeID:    "ch-9",
		Payload:        payload,
	})

	w := NewWorker(WorkerConfig{WorkerID: "worker-1", Interval: time.Hour, ClaimLimit: 5},
		src, New(forgeClient(t, srv.URL)), metrics.New())
	w.Tick(context.Background())

	if got := src.results["a9"]; got.Outcome != backend.OutcomeSucceeded {
		t.Fatalf("ack = %+v", got)
	}
	if forge.prState != "closed" {
		t.Fatalf("pr state = %q", forge.prState)
	}
	if len(forge.comments) != 1 || !strings.Contains(forge.comments[0].Body, marker) {
		t.Fatalf("comments = %+v", forge.comments)
	}
}
