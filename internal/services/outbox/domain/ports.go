package domain

import (
	"context"

	"stakegate/internal/adapters/backend"
)

// ActionSource is the backend surface the poll loop consumes
type ActionSource interface {
	ClaimActions(ctx context.Context, workerID string, limit int) ([]backend.BotAction, error)
	ReportActionResult(ctx context.Context, actionID string, req backend.ActionResultRequest) error
}

// Executor performs the GitHub side effects actions describe. Both
// operations are idempotent so a reclaimed action can repeat them safely
type Executor interface {
	UpsertIssueComment(ctx context.Context, installationID int64, repoFullName string, issueNumber int, marker, markdown string) error
	ClosePullRequest(ctx context.Context, installationID int64, repoFullName string, prNumber int) error
}
