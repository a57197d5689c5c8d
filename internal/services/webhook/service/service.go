// Package service implements the webhook ingestion pipeline: verify,
// classify, parse, enrich, forward
package service

import (
	"context"
	"encoding/json"
	"time"

	"stakegate/internal/adapters/backend"
	"stakegate/internal/platform/dedup"
	"stakegate/internal/platform/logger"
	"stakegate/internal/platform/metrics"
	"stakegate/internal/platform/signing"
	"stakegate/internal/platform/validate"
	dom "stakegate/internal/services/webhook/domain"
)

// Action allow-lists per event kind; anything outside them is ignored
var (
	prActions           = map[string]bool{"opened": true, "reopened": true, "synchronize": true}
	installationActions = map[string]bool{"created": true, "deleted": true, "suspend": true, "unsuspend": true}
	instReposActions    = map[string]bool{"added": true, "removed": true}
)

// Config for the webhook service
type Config struct {
	// Secret is the GitHub webhook shared secret
	Secret []byte
}

// Service implements domain.IngesterPort. It holds no mutable state of
// its own; the optional dedup store is the one concession to the legacy
// pre-outbox design and the backend remains the authority on duplicates
type Service struct {
	cfg    Config
	pusher dom.EventPusher
	lister dom.RepoLister
	dedup  dedup.Store
	met    *metrics.Metrics
	log    logger.Logger

	now func() time.Time
}

// New constructs the pipeline. lister and dd may be nil; enrichment and
// local dedup are then skipped
func New(cfg Config, pusher dom.EventPusher, lister dom.RepoLister, dd dedup.Store, met *metrics.Metrics) *Service {
	return &Service{
		cfg:    cfg,
		pusher: pusher,
		lister: lister,
		dedup:  dd,
		met:    met,
		log:    *logger.Named("webhook"),
		now:    time.Now,
	}
}

var ignored = dom.Result{Disposition: dom.DispositionIgnored}

// Handle runs one delivery through the pipeline. Only backend push
// failures return an error; every malformed or unsupported delivery is
// answered as ignored so GitHub stops redelivering
func (s *Service) Handle(ctx context.Context, d dom.Delivery) (dom.Result, error) {
	s.met.WebhookEvents.Inc()

	if !signing.VerifyWebhookSignature(s.cfg.Secret, d.Body, d.Signature) {
		s.met.WebhookIgnored.Inc()
		s.log.Warn().Str("delivery_id", d.DeliveryID).Msg("webhook signature rejected")
		return ignored, nil
	}

	switch d.Event {
	case dom.KindPullRequest:
		return s.handlePullRequest(ctx, d)
	case dom.KindInstallation, dom.KindInstallationRepositories:
		return s.handleInstallation(ctx, d)
	default:
		s.met.WebhookIgnored.Inc()
		return ignored, nil
	}
}

func (s *Service) handlePullRequest(ctx context.Context, d dom.Delivery) (dom.Result, error) {
	var p dom.PullRequestPayload
	if err := json.Unmarshal(d.Body, &p); err != nil {
		s.met.WebhookIgnored.Inc()
		return ignored, nil
	}
	if !prActions[p.Action] {
		s.met.WebhookIgnored.Inc()
		return ignored, nil
	}
	if err := validate.Struct(&p); err != nil {
		s.met.WebhookIgnored.Inc()
		s.log.Debug().Str("delivery_id", d.DeliveryID).Err(err).Msg("pull_request payload rejected")
		return ignored, nil
	}

	if s.dedup != nil {
		key := dedup.Key(d.DeliveryID, p.Action, p.Repository.ID, p.PullRequest.Number)
		if s.dedup.Seen(key) {
			s.met.WebhookIngestStatus.WithLabelValues(string(backend.IngestDuplicate)).Inc()
			return dom.Result{Disposition: dom.DispositionForwarded, IngestStatus: string(backend.IngestDuplicate)}, nil
		}
		s.dedup.Add(key)
	}

	req := backend.PullRequestEventRequest{
		DeliveryID:     d.DeliveryID,
		EventTime:      s.now().UTC(),
		InstallationID: p.Installation.ID,
		Action:         p.Action,
		Repository:     backend.RepositoryRef{ID: p.Repository.ID, FullName: p.Repository.FullName},
		PullRequest: backend.PullRequestRef{
			Number:  p.PullRequest.Number,
			ID:      p.PullRequest.ID,
			HTMLURL: p.PullRequest.HTMLURL,
			User:    backend.PullRequestUser{ID: p.PullRequest.User.ID, Login: p.PullRequest.User.Login},
			HeadSHA: p.PullRequest.Head.SHA,
			IsDraft: p.PullRequest.Draft,
		},
	}

	status, err := s.pusher.PushPullRequestEvent(ctx, req)
	if err != nil {
		s.met.Errors.Inc()
		return dom.Result{}, err
	}
	s.met.WebhookForwarded.WithLabelValues(dom.KindPullRequest).Inc()
	s.met.WebhookIngestStatus.WithLabelValues(string(status)).Inc()
	return dom.Result{Disposition: dom.DispositionForwarded, IngestStatus: string(status)}, nil
}

func (s *Service) handleInstallation(ctx context.Context, d dom.Delivery) (dom.Result, error) {
	var p dom.InstallationPayload
	if err := json.Unmarshal(d.Body, &p); err != nil {
		s.met.WebhookIgnored.Inc()
		return ignored, nil
	}

	allowed := installationActions
	if d.Event == dom.KindInstallationRepositories {
		allowed = instReposActions
	}
	if !allowed[p.Action] {
		s.met.WebhookIgnored.Inc()
		return ignored, nil
	}
	if err := validate.Struct(&p); err != nil {
		s.met.WebhookIgnored.Inc()
		s.log.Debug().Str("delivery_id", d.DeliveryID).Err(err).Msg("installation payload rejected")
		return ignored, nil
	}

	repos := p.Repositories
	if s.needsBackfill(d.Event, p.Action, repos) {
		listed, err := s.lister.ListRepositories(ctx, p.Installation.ID)
		if err != nil {
			// forward the sparse event rather than drop it
			s.log.Warn().Int64("installation_id", p.Installation.ID).Err(err).
				Msg("repository backfill failed")
		} else {
			for _, r := range listed {
				repos = append(repos, dom.RepoRef{ID: r.ID, FullName: r.FullName})
			}
		}
	}

	req := backend.InstallationSyncRequest{
		DeliveryID: d.DeliveryID,
		EventTime:  s.now().UTC(),
		EventName:  d.Event,
		Action:     p.Action,
		Installation: backend.InstallationRef{
			ID:           p.Installation.ID,
			AccountLogin: p.Installation.Account.Login,
			AccountType:  p.Installation.Account.Type,
		},
		RepositoriesAdded:   toRefs(p.RepositoriesAdded),
		RepositoriesRemoved: toRefs(p.RepositoriesRemoved),
		Repositories:        toRefs(repos),
	}

	status, err := s.pusher.PushInstallationSync(ctx, req)
	if err != nil {
		s.met.Errors.Inc()
		return dom.Result{}, err
	}
	s.met.WebhookForwarded.WithLabelValues(d.Event).Inc()
	s.met.WebhookIngestStatus.WithLabelValues(string(status)).Inc()
	return dom.Result{Disposition: dom.DispositionForwarded, IngestStatus: string(status)}, nil
}

// needsBackfill is true when GitHub omitted the repository list from an
// installation created or unsuspend event and a lister is available
func (s *Service) needsBackfill(event, action string, repos []dom.RepoRef) bool {
	if s.lister == nil || event != dom.KindInstallation {
		return false
	}
	return (action == "created" || action == "unsuspend") && len(repos) == 0
}

func toRefs(in []dom.RepoRef) []backend.RepositoryRef {
	out := make([]backend.RepositoryRef, 0, len(in))
	for _, r := range in {
		out = append(out, backend.RepositoryRef{ID: r.ID, FullName: r.FullName})
	}
	return out
}
