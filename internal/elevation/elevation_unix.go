//go:build !windows

package elevation

import (
	"context"
	"os"
)

// ShellLauncher is not supported on non-Windows platforms.
type ShellLauncher struct{}

// Launch always returns ErrNotSupported.
func (ShellLauncher) Launch(context.Context, Request) error {
	return ErrNotSupported
}

// DirectLauncher is not supported on non-Windows platforms.
type DirectLauncher struct{}

// Launch always returns ErrNotSupported.
func (DirectLauncher) Launch(context.Context, Request) error {
	return ErrNotSupported
}

// IsElevated reports whether the process runs as root.
func IsElevated() bool {
	return os.Geteuid() == 0
}

// Select returns a launcher that refuses every request.
func Select() Launcher {
	return ShellLauncher{}
}
