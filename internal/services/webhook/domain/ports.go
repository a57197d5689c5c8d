package domain

import (
	"context"

	"stakegate/internal/adapters/backend"
)

// IngesterPort is the webhook pipeline surface the HTTP layer calls
type IngesterPort interface {
	Handle(ctx context.Context, d Delivery) (Result, error)
}

// EventPusher forwards normalized events to the backend
type EventPusher interface {
	PushPullRequestEvent(ctx context.Context, req backend.PullRequestEventRequest) (backend.IngestStatus, error)
	PushInstallationSync(ctx context.Context, req backend.InstallationSyncRequest) (backend.IngestStatus, error)
}

// RepoLister backfills repository lists for sparse installation events
type RepoLister interface {
	ListRepositories(ctx context.Context, installationID int64) ([]Repo, error)
}
