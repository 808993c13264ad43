// Package elevation launches commands with administrator rights.
//
// Launches are fire-and-forget: no process handle is kept and the caller
// learns nothing about the child's exit status. Results must be observed
// through side channels such as a log file.
package elevation

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrDeclined is returned when the user dismisses the consent prompt.
	ErrDeclined = errors.New("elevation was declined by the user")

	// ErrNotSupported is returned when elevation is attempted on non-Windows platforms.
	ErrNotSupported = errors.New("UAC elevation is only supported on Windows")
)

// Request describes one elevated launch.
type Request struct {
	Executable string
	// Args are passed verbatim; callers quote them for the target program.
	Args       []string
	WorkingDir string
	Hidden     bool
}

// Parameters returns the argument string handed to the shell.
func (r Request) Parameters() string {
	return strings.Join(r.Args, " ")
}

// CommandLine returns the full command line, executable first.
func (r Request) CommandLine() string {
	exe := r.Executable
	if strings.ContainsAny(exe, " \t") {
		exe = `"` + exe + `"`
	}
	if len(r.Args) == 0 {
		return exe
	}
	return exe + " " + r.Parameters()
}

// ScriptRequest returns a hidden cmd.exe launch of the batch file at path.
func ScriptRequest(path, workingDir string) Request {
	return Request{
		Executable: "cmd.exe",
		Args:       []string{"/c", `"` + path + `"`},
		WorkingDir: workingDir,
		Hidden:     true,
	}
}

// Launcher starts a request with elevated rights and returns once the launch
// was accepted or refused. It never waits for the child to exit.
type Launcher interface {
	Launch(ctx context.Context, req Request) error
}

// LaunchError wraps a failure to start the elevated process other than a
// declined prompt.
type LaunchError struct {
	Executable string
	Err        error
}

func (e *LaunchError) Error() string {
	return "failed to launch elevated " + e.Executable + ": " + e.Err.Error()
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context, req Request) error

// Launch calls f.
func (f LauncherFunc) Launch(ctx context.Context, req Request) error {
	return f(ctx, req)
}
