// Package service manages the lifecycle of the backup Windows service from an
// unprivileged process. Mutating operations run as elevated scripts whose
// outcome is confirmed by an independent Service Control Manager query.
package service

import (
	"context"
	"fmt"
	"strings"
)

// Status represents the raw SCM state of an installed service.
type Status int

const (
	StatusUnknown Status = iota
	StatusStopped
	StatusStartPending
	StatusStopPending
	StatusRunning
	StatusContinuePending
	StatusPausePending
	StatusPaused
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "Stopped"
	case StatusStartPending:
		return "Start Pending"
	case StatusStopPending:
		return "Stop Pending"
	case StatusRunning:
		return "Running"
	case StatusContinuePending:
		return "Continue Pending"
	case StatusPausePending:
		return "Pause Pending"
	case StatusPaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// StartType is the configured start mode of an installed service.
type StartType int

const (
	StartAutomatic StartType = iota
	StartManual
	StartDisabled
)

// String returns the lower-case start type name.
func (t StartType) String() string {
	switch t {
	case StartAutomatic:
		return "automatic"
	case StartManual:
		return "manual"
	case StartDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t StartType) MarshalText() ([]byte, error) {
	switch t {
	case StartAutomatic, StartManual, StartDisabled:
		return []byte(t.String()), nil
	}
	return nil, fmt.Errorf("invalid start type %d", int(t))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *StartType) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "automatic":
		*t = StartAutomatic
	case "manual":
		*t = StartManual
	case "disabled":
		*t = StartDisabled
	default:
		return fmt.Errorf("invalid start type %q", string(text))
	}
	return nil
}

// ServiceStatus is a point-in-time snapshot of the service, derived fresh on
// every query and never cached.
type ServiceStatus struct {
	Installed bool       `json:"installed"`
	Running   bool       `json:"running"`
	StartType *StartType `json:"start_type"`

	// State is the raw SCM state, for display only.
	State Status `json:"-"`
}

// NotInstalled returns the status of an absent service.
func NotInstalled() ServiceStatus {
	return ServiceStatus{}
}

// Normalize enforces that an absent service is neither running nor has a start type.
func (s ServiceStatus) Normalize() ServiceStatus {
	if !s.Installed {
		return NotInstalled()
	}
	return s
}

// Equal compares two snapshots by value.
func (s ServiceStatus) Equal(o ServiceStatus) bool {
	if s.Installed != o.Installed || s.Running != o.Running || s.State != o.State {
		return false
	}
	if s.StartType == nil || o.StartType == nil {
		return s.StartType == nil && o.StartType == nil
	}
	return *s.StartType == *o.StartType
}

// String renders the snapshot for humans.
func (s ServiceStatus) String() string {
	if !s.Installed {
		return "not installed"
	}
	state := "stopped"
	if s.Running {
		state = "running"
	}
	if s.State != StatusUnknown && s.State != StatusRunning && s.State != StatusStopped {
		state = strings.ToLower(s.State.String())
	}
	if s.StartType != nil {
		return fmt.Sprintf("installed, %s, start type %s", state, s.StartType)
	}
	return "installed, " + state
}

// StartTypePtr returns a pointer to t.
func StartTypePtr(t StartType) *StartType {
	return &t
}

// StatusQuerier reads the current service state. Implementations must be side
// effect free and must not require administrator rights.
type StatusQuerier interface {
	QueryStatus(ctx context.Context) (ServiceStatus, error)
}

// QuerierFunc adapts a function to StatusQuerier.
type QuerierFunc func(ctx context.Context) (ServiceStatus, error)

// QueryStatus calls f.
func (f QuerierFunc) QueryStatus(ctx context.Context) (ServiceStatus, error) {
	return f(ctx)
}

// Manager is the caller-facing lifecycle surface.
type Manager interface {
	// Supported reports whether this platform can manage the service.
	Supported() bool

	// Status never fails; an unreadable service reports NotInstalled.
	Status(ctx context.Context) ServiceStatus

	Install(ctx context.Context, resourceDir string) error
	Uninstall(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
