// Package commands is the caller-facing command layer: it answers front-end
// requests over the service manager and the backend probe.
package commands

import (
	"context"
	"errors"
	"sync"

	"github.com/JBibu/backupone/internal/backend"
	"github.com/JBibu/backupone/internal/logging"
	"github.com/JBibu/backupone/internal/service"
)

// ErrBusy is returned when a mutating request arrives while another one runs.
var ErrBusy = errors.New("another service operation is already in progress")

// Prober reports whether the backend answers its health endpoint.
type Prober interface {
	IsServiceRunning(ctx context.Context) bool
}

// Handler serves lifecycle commands. At most one mutating command runs at a
// time; a second one fails fast with ErrBusy instead of queueing a second
// consent prompt.
type Handler struct {
	manager service.Manager
	prober  Prober
	ports   backend.Ports
	logger  *logging.Logger

	mu sync.Mutex
}

// NewHandler creates a Handler.
func NewHandler(manager service.Manager, prober Prober, ports backend.Ports, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Handler{
		manager: manager,
		prober:  prober,
		ports:   ports,
		logger:  logger,
	}
}

// GetServiceStatus returns a fresh service snapshot.
func (h *Handler) GetServiceStatus(ctx context.Context) service.ServiceStatus {
	return h.manager.Status(ctx)
}

// IsServiceRunning probes the backend health endpoint. It is false on
// platforms without Windows services.
func (h *Handler) IsServiceRunning(ctx context.Context) bool {
	if !h.manager.Supported() || h.prober == nil {
		return false
	}
	return h.prober.IsServiceRunning(ctx)
}

// InstallService installs the service from resourceDir.
func (h *Handler) InstallService(ctx context.Context, resourceDir string) error {
	return h.exclusive("install", func() error {
		return h.manager.Install(ctx, resourceDir)
	})
}

// UninstallService removes the service.
func (h *Handler) UninstallService(ctx context.Context) error {
	return h.exclusive("uninstall", func() error {
		return h.manager.Uninstall(ctx)
	})
}

// StartService starts the service.
func (h *Handler) StartService(ctx context.Context) error {
	return h.exclusive("start", func() error {
		return h.manager.Start(ctx)
	})
}

// StopService stops the service.
func (h *Handler) StopService(ctx context.Context) error {
	return h.exclusive("stop", func() error {
		return h.manager.Stop(ctx)
	})
}

// GetBackendURL returns the backend base URL. A non-positive sidecar port
// falls back to the configured one.
func (h *Handler) GetBackendURL(usingService bool, sidecarPort int) string {
	ports := h.ports
	if sidecarPort > 0 {
		ports.Sidecar = sidecarPort
	}
	return ports.URL(usingService)
}

func (h *Handler) exclusive(op string, fn func() error) error {
	if !h.mu.TryLock() {
		h.logger.Warn().Str("operation", op).Msg("Rejected concurrent service operation")
		return ErrBusy
	}
	defer h.mu.Unlock()

	h.logger.Info().Str("operation", op).Msg("Service operation requested")
	if err := fn(); err != nil {
		h.logger.Error().Err(err).Str("operation", op).Str("kind", service.KindOf(err).String()).Msg("Service operation failed")
		return err
	}
	h.logger.Info().Str("operation", op).Msg("Service operation completed")
	return nil
}
