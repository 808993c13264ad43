//go:build windows

package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

// SCMQuerier reads service state from the Service Control Manager using only
// the access rights granted to unprivileged users.
type SCMQuerier struct {
	Name string
}

// QueryStatus implements StatusQuerier.
func (q SCMQuerier) QueryStatus(ctx context.Context) (ServiceStatus, error) {
	if err := ctx.Err(); err != nil {
		return ServiceStatus{}, err
	}

	// mgr.Connect asks for SC_MANAGER_ALL_ACCESS, which requires elevation.
	h, err := windows.OpenSCManager(nil, nil, windows.SC_MANAGER_CONNECT)
	if err != nil {
		return ServiceStatus{}, fmt.Errorf("failed to connect to service manager: %w", err)
	}
	m := &mgr.Mgr{Handle: h}
	defer m.Disconnect()

	name, err := windows.UTF16PtrFromString(q.Name)
	if err != nil {
		return ServiceStatus{}, fmt.Errorf("invalid service name: %w", err)
	}
	sh, err := windows.OpenService(h, name, windows.SERVICE_QUERY_STATUS|windows.SERVICE_QUERY_CONFIG)
	if err != nil {
		if errors.Is(err, windows.ERROR_SERVICE_DOES_NOT_EXIST) {
			return NotInstalled(), nil
		}
		return ServiceStatus{}, fmt.Errorf("failed to open service %s: %w", q.Name, err)
	}
	s := &mgr.Service{Name: q.Name, Handle: sh}
	defer s.Close()

	status, err := s.Query()
	if err != nil {
		return ServiceStatus{}, fmt.Errorf("failed to query service status: %w", err)
	}

	st := ServiceStatus{
		Installed: true,
		Running:   status.State == svc.Running,
		State:     svcStateToStatus(status.State),
	}

	cfg, err := s.Config()
	if err != nil {
		return ServiceStatus{}, fmt.Errorf("failed to query service config: %w", err)
	}
	st.StartType = startTypeFromConfig(cfg.StartType)

	return st, nil
}

// svcStateToStatus converts Windows service state to our Status type.
func svcStateToStatus(state svc.State) Status {
	switch state {
	case svc.Stopped:
		return StatusStopped
	case svc.StartPending:
		return StatusStartPending
	case svc.StopPending:
		return StatusStopPending
	case svc.Running:
		return StatusRunning
	case svc.ContinuePending:
		return StatusContinuePending
	case svc.PausePending:
		return StatusPausePending
	case svc.Paused:
		return StatusPaused
	default:
		return StatusUnknown
	}
}

// startTypeFromConfig maps SCM start types; boot and system drivers have no equivalent.
func startTypeFromConfig(t uint32) *StartType {
	switch t {
	case mgr.StartAutomatic:
		return StartTypePtr(StartAutomatic)
	case mgr.StartManual:
		return StartTypePtr(StartManual)
	case mgr.StartDisabled:
		return StartTypePtr(StartDisabled)
	default:
		return nil
	}
}
