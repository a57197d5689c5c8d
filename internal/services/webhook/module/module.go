// Package module wires the webhook ingestion service
package module

import (
	"context"

	"stakegate/internal/adapters/github"
	"stakegate/internal/modkit"
	"stakegate/internal/platform/dedup"
	phttp "stakegate/internal/platform/net/http"
	dom "stakegate/internal/services/webhook/domain"
	whhttp "stakegate/internal/services/webhook/http"
	"stakegate/internal/services/webhook/service"
)

// Ports exposed by the webhook module
type Ports struct {
	Ingester dom.IngesterPort
}

// Options carries the collaborators the module cannot build itself
type Options struct {
	Secret []byte
	Pusher dom.EventPusher
	GitHub *github.Client
	Dedup  dedup.Store
}

// Module implements the webhook service module
type Module struct {
	deps    modkit.Deps
	ports   Ports
	handler *whhttp.Handler
}

// New constructs the webhook module
func New(deps modkit.Deps, opts Options) *Module {
	var lister dom.RepoLister
	if opts.GitHub != nil {
		lister = ghLister{c: opts.GitHub}
	}

	svc := service.New(service.Config{Secret: opts.Secret}, opts.Pusher, lister, opts.Dedup, deps.Metrics)

	m := &Module{deps: deps, handler: whhttp.NewHandler(svc)}
	m.ports = Ports{Ingester: svc}
	return m
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "webhook" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(r phttp.Router) {
	r.Post("/webhooks/github", m.handler.Webhook)
}

// ghLister adapts the GitHub client to the domain port
type ghLister struct{ c *github.Client }

func (l ghLister) ListRepositories(ctx context.Context, installationID int64) ([]dom.Repo, error) {
	repos, err := l.c.ListInstallationRepositories(ctx, installationID)
	if err != nil {
		return nil, err
	}
	out := make([]dom.Repo, 0, len(repos))
	for _, r := range repos {
		out = append(out, dom.Repo{ID: r.ID, FullName: r.FullName})
	}
	return out, nil
}
