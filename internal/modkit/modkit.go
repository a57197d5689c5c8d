// Package modkit provides module wiring and core deps
package modkit

import (
	"stakegate/internal/platform/config"
	"stakegate/internal/platform/logger"
	"stakegate/internal/platform/metrics"
	phttp "stakegate/internal/platform/net/http"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log     logger.Logger
	Cfg     config.Conf
	Metrics *metrics.Metrics
}

// Module is the common surface for modules that can mount routes and
// expose ports. Keep this tiny so modules stay decoupled
type Module interface {
	// MountRoutes mounts HTTP routes under the provided router seam
	MountRoutes(r phttp.Router)
	// Ports returns a module specific port set interface for cross wiring
	Ports() any

	// Name returns the module name
	Name() string
}
