package backend

import (
	"encoding/json"
	"time"
)

// IngestStatus is the backend's verdict on a forwarded webhook event
type IngestStatus string

const (
	IngestAccepted  IngestStatus = "ACCEPTED"
	IngestDuplicate IngestStatus = "DUPLICATE"
	IngestIgnored   IngestStatus = "IGNORED"
)

// RepositoryRef identifies a repository in forwarded events
type RepositoryRef struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
}

// PullRequestUser is the PR author as GitHub reports it
type PullRequestUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

// PullRequestRef carries the PR fields the backend keys challenges on
type PullRequestRef struct {
	Number  int             `json:"number"`
	ID      int64           `json:"id"`
	HTMLURL string          `json:"html_url"`
	User    PullRequestUser `json:"user"`
	HeadSHA string          `json:"head_sha"`
	IsDraft bool            `json:"is_draft"`
}

// PullRequestEventRequest is the normalized pull_request event pushed to
// the backend's internal ingest endpoint
type PullRequestEventRequest struct {
	DeliveryID     string         `json:"delivery_id"`
	EventTime      time.Time      `json:"event_time"`
	InstallationID int64          `json:"installation_id"`
	Action         string         `json:"action"`
	Repository     RepositoryRef  `json:"repository"`
	PullRequest    PullRequestRef `json:"pull_request"`
}

// InstallationRef identifies the App installation an event concerns
type InstallationRef struct {
	ID           int64  `json:"id"`
	AccountLogin string `json:"account_login"`
	AccountType  string `json:"account_type"`
}

// InstallationSyncRequest is the normalized installation lifecycle event.
// RepositoriesAdded and RepositoriesRemoved carry installation_repositories
// deltas; Repositories carries the full set for installation events
type InstallationSyncRequest struct {
	DeliveryID          string          `json:"delivery_id"`
	EventTime           time.Time       `json:"event_time"`
	EventName           string          `json:"event_name"`
	Action              string          `json:"action"`
	Installation        InstallationRef `json:"installation"`
	RepositoriesAdded   []RepositoryRef `json:"repositories_added"`
	RepositoriesRemoved []RepositoryRef `json:"repositories_removed"`
	Repositories        []RepositoryRef `json:"repositories"`
}

type prEventResponse struct {
	IngestStatus    IngestStatus `json:"ingest_status"`
	ChallengeID     string       `json:"challenge_id,omitempty"`
	EnqueuedActions int          `json:"enqueued_actions"`
}

type installationSyncResponse struct {
	IngestStatus          IngestStatus `json:"ingest_status"`
	UpdatedInstallationID int64        `json:"updated_installation_id,omitempty"`
	UpdatedRepositories   int          `json:"updated_repositories"`
}

type claimRequest struct {
	WorkerID string `json:"worker_id"`
	Limit    int    `json:"limit"`
}

// Action types the backend may enqueue
const (
	ActionUpsertPRComment    = "UPSERT_PR_COMMENT"
	ActionClosePRWithComment = "CLOSE_PR_WITH_COMMENT"
)

// BotAction is one claimed outbox action awaiting execution
type BotAction struct {
	ID             string          `json:"id"`
	ActionType     string          `json:"action_type"`
	InstallationID int64           `json:"installation_id"`
	GitHubRepoID   int64           `json:"github_repo_id"`
	RepoFullName   string          `json:"repo_full_name"`
	GitHubPRNumber int             `json:"github_pr_number"`
	ChallengeID    string          `json:"challenge_id,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	Attempts       int             `json:"attempts"`
	CreatedAt      time.Time       `json:"created_at"`
}

type claimResponse struct {
	Actions []BotAction `json:"actions"`
}

// ActionOutcome is the terminal classification reported for an action
type ActionOutcome string

const (
	OutcomeSucceeded        ActionOutcome = "SUCCEEDED"
	OutcomeRetryableFailure ActionOutcome = "RETRYABLE_FAILURE"
	OutcomeFailed           ActionOutcome = "FAILED"
)

// ActionResultRequest acknowledges one claimed action
type ActionResultRequest struct {
	WorkerID       string        `json:"worker_id"`
	Outcome        ActionOutcome `json:"outcome"`
	FailureCode    string        `json:"failure_code,omitempty"`
	FailureMessage string        `json:"failure_message,omitempty"`
}

type deadlineCheckResponse struct {
	Status string `json:"status"`
}
