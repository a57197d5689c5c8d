// Package module wires the outbox worker
package module

import (
	"time"

	"stakegate/internal/modkit"
	phttp "stakegate/internal/platform/net/http"
	dom "stakegate/internal/services/outbox/domain"
	"stakegate/internal/services/outbox/service"
)

// Ports exposed by the outbox module
type Ports struct {
	Worker *service.Worker
}

// Options carries the collaborators the module cannot build itself
type Options struct {
	WorkerID   string
	Interval   time.Duration
	ClaimLimit int

	Source dom.ActionSource
	GitHub dom.Executor
}

// Module implements the outbox service module. It mounts no routes; the
// worker runs as a background loop started by the process entrypoint
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the outbox module
func New(deps modkit.Deps, opts Options) *Module {
	exec := service.New(opts.GitHub)
	worker := service.NewWorker(service.WorkerConfig{
		WorkerID:   opts.WorkerID,
		Interval:   opts.Interval,
		ClaimLimit: opts.ClaimLimit,
	}, opts.Source, exec, deps.Metrics)

	return &Module{deps: deps, ports: Ports{Worker: worker}}
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "outbox" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(r phttp.Router) {}
