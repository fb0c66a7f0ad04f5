package service

import (
	"log/slog"

	"github.com/yndnr/pathnet-go/internal/core/domain"
)

// TerminationObserver receives release notifications for endpoint handles
// from the execution engine.
//
// It is inert by default: notifications are logged and dropped. When enabled
// it terminates the connection the released handle belongs to.
type TerminationObserver struct {
	registry *Registry
	enabled  bool
	logger   *slog.Logger
}

// NewTerminationObserver creates an observer for registry. enabled turns on
// forwarding to Registry.Terminate.
func NewTerminationObserver(registry *Registry, enabled bool) *TerminationObserver {
	return &TerminationObserver{
		registry: registry,
		enabled:  enabled,
		logger:   registry.logger,
	}
}

// Enabled reports whether releases are forwarded.
func (o *TerminationObserver) Enabled() bool {
	return o.enabled
}

// ObjectReleased handles the release of h.
func (o *TerminationObserver) ObjectReleased(h domain.Endpoint) {
	if !o.enabled {
		o.logger.Debug("endpoint released", "endpoint", h.String(), "forwarded", false)
		return
	}
	if err := o.registry.Terminate(h); err != nil {
		o.logger.Warn("terminate on release failed", "endpoint", h.String(), "error", err)
		return
	}
	o.logger.Debug("endpoint released", "endpoint", h.String(), "forwarded", true)
}
