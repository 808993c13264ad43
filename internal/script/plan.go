package script

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// Step is one entry of a privileged sequence.
//
// A step may announce a line, run a command, pause, or any combination, in that
// order. A step with a non-empty OnError is checked: a non-zero exit writes
// "ERROR: <OnError>" to the log and ends the script. Unchecked steps tolerate
// failure.
type Step struct {
	Announce string
	Command  []string
	OnError  string
	Pause    time.Duration
}

// Checked reports whether a failing command aborts the script.
func (s Step) Checked() bool {
	return s.OnError != "" && len(s.Command) > 0
}

// Plan is the full privileged sequence for one operation.
type Plan struct {
	Operation     Operation
	Header        string
	Steps         []Step
	SuccessMarker string
	ScriptPath    string
	LogPath       string
}

// Params carries per-invocation inputs.
type Params struct {
	// BinaryPath is the service executable registered by Install.
	BinaryPath string
}

// ErrMissingBinary is returned when an install plan is built without an executable.
var ErrMissingBinary = errors.New("install requires a service executable path")

// Builder produces plans for a single service.
type Builder struct {
	ServiceName string
	DisplayName string
	Description string

	// TempDir receives the script and its log.
	TempDir string

	// StopSettle is the pause between stop and delete during uninstall.
	StopSettle time.Duration
}

// Paths returns the script and log paths used for op.
func (b Builder) Paths(op Operation) (scriptPath, logPath string) {
	return filepath.Join(b.TempDir, op.ScriptName()), filepath.Join(b.TempDir, op.LogName())
}

// Build returns the plan for op.
func (b Builder) Build(op Operation, params Params) (Plan, error) {
	if b.ServiceName == "" {
		return Plan{}, errors.New("service name is required")
	}

	scriptPath, logPath := b.Paths(op)
	plan := Plan{
		Operation:     op,
		Header:        op.Header(),
		SuccessMarker: op.SuccessMarker(),
		ScriptPath:    scriptPath,
		LogPath:       logPath,
	}

	switch op {
	case Install:
		if params.BinaryPath == "" {
			return Plan{}, ErrMissingBinary
		}
		plan.Steps = []Step{
			{
				Command: []string{"sc", "create", b.ServiceName,
					"binPath=", params.BinaryPath,
					"start=", "auto",
					"DisplayName=", b.displayName()},
				OnError: "Failed to create service",
			},
			{Command: []string{"sc", "description", b.ServiceName, b.Description}},
			{Command: []string{"sc", "start", b.ServiceName}},
		}
	case Uninstall:
		plan.Steps = []Step{
			{Command: []string{"sc", "stop", b.ServiceName}, Pause: b.StopSettle},
			{
				Announce: "Deleting service...",
				Command:  []string{"sc", "delete", b.ServiceName},
				OnError:  "Failed to delete service",
			},
		}
	case Start:
		plan.Steps = []Step{
			{Command: []string{"sc", "start", b.ServiceName}, OnError: "Failed to start service"},
		}
	case Stop:
		plan.Steps = []Step{
			{Command: []string{"sc", "stop", b.ServiceName}, OnError: "Failed to stop service"},
		}
	default:
		return Plan{}, fmt.Errorf("unsupported operation %d", int(op))
	}

	return plan, nil
}

func (b Builder) displayName() string {
	if b.DisplayName != "" {
		return b.DisplayName
	}
	return b.ServiceName
}
