package service

import (
	"context"

	"github.com/JBibu/backupone/internal/script"
)

// Unsupported is the Manager used where Windows services do not exist.
// It has no side effects.
type Unsupported struct{}

// Supported implements Manager.
func (Unsupported) Supported() bool { return false }

// Status implements Manager.
func (Unsupported) Status(context.Context) ServiceStatus { return NotInstalled() }

// Install implements Manager.
func (Unsupported) Install(context.Context, string) error { return unsupported(script.Install) }

// Uninstall implements Manager.
func (Unsupported) Uninstall(context.Context) error { return unsupported(script.Uninstall) }

// Start implements Manager.
func (Unsupported) Start(context.Context) error { return unsupported(script.Start) }

// Stop implements Manager.
func (Unsupported) Stop(context.Context) error { return unsupported(script.Stop) }

func unsupported(op script.Operation) error {
	return &OperationError{Op: op, Kind: KindPlatformUnsupported, Message: UnsupportedMessage}
}
