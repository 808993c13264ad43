package service

import (
	"errors"

	"github.com/JBibu/backupone/internal/script"
)

// Kind classifies a lifecycle failure.
type Kind int

const (
	// KindElevationDeclined: the consent prompt was refused or the launch failed.
	KindElevationDeclined Kind = iota + 1
	// KindStepFailed: a checked step in the elevated script reported ERROR:.
	KindStepFailed
	// KindVerificationMismatch: the log claimed success or timed out, but the
	// service is not in the expected state.
	KindVerificationMismatch
	// KindPlatformUnsupported: the platform cannot manage Windows services.
	KindPlatformUnsupported
	// KindPrecondition: the operation was refused before anything was launched.
	KindPrecondition
	// KindCancelled: the caller stopped waiting.
	KindCancelled
	// KindStatusUnavailable: the service control manager could not be queried,
	// so the outcome is unknown.
	KindStatusUnavailable
)

// UnsupportedMessage is returned by every mutating call on unsupported platforms.
const UnsupportedMessage = "Windows Service is only supported on Windows"

// Sentinels matched with errors.Is against an *OperationError.
var (
	ErrElevationDeclined    = errors.New("elevation declined")
	ErrStepFailed           = errors.New("script step failed")
	ErrVerificationMismatch = errors.New("service state does not match expected outcome")
	ErrPlatformUnsupported  = errors.New(UnsupportedMessage)
	ErrPrecondition         = errors.New("operation precondition not met")
	ErrCancelled            = errors.New("operation cancelled")
	ErrStatusUnavailable    = errors.New("service status unavailable")
)

func (k Kind) String() string {
	switch k {
	case KindElevationDeclined:
		return "elevation_declined"
	case KindStepFailed:
		return "step_failed"
	case KindVerificationMismatch:
		return "verification_mismatch"
	case KindPlatformUnsupported:
		return "platform_unsupported"
	case KindPrecondition:
		return "precondition"
	case KindCancelled:
		return "cancelled"
	case KindStatusUnavailable:
		return "status_unavailable"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String. Unknown names return 0.
func ParseKind(name string) Kind {
	for k := KindElevationDeclined; k <= KindStatusUnavailable; k++ {
		if k.String() == name {
			return k
		}
	}
	return 0
}

func (k Kind) sentinel() error {
	switch k {
	case KindElevationDeclined:
		return ErrElevationDeclined
	case KindStepFailed:
		return ErrStepFailed
	case KindVerificationMismatch:
		return ErrVerificationMismatch
	case KindPlatformUnsupported:
		return ErrPlatformUnsupported
	case KindPrecondition:
		return ErrPrecondition
	case KindCancelled:
		return ErrCancelled
	case KindStatusUnavailable:
		return ErrStatusUnavailable
	default:
		return nil
	}
}

// OperationError is the single error type returned by Manager operations.
type OperationError struct {
	Op      script.Operation
	Kind    Kind
	Message string

	// Log holds the script log, or the no-log message, for script-backed failures.
	Log     string
	LogPath string

	// Err is the underlying cause, if any.
	Err error
}

func (e *OperationError) Error() string {
	return e.Message
}

// Unwrap exposes the kind sentinel and the underlying cause.
func (e *OperationError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the kind of err, or 0 when err is not an *OperationError.
func KindOf(err error) Kind {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	return 0
}

// failureHeadline is the first line of a script-backed failure message.
func failureHeadline(op script.Operation) string {
	switch op {
	case script.Install:
		return "Service installation failed."
	case script.Uninstall:
		return "Service uninstallation failed."
	case script.Start:
		return "Failed to start service."
	case script.Stop:
		return "Failed to stop service."
	default:
		return "Service operation failed."
	}
}

func detailsError(op script.Operation, kind Kind, details, logPath string) *OperationError {
	return &OperationError{
		Op:      op,
		Kind:    kind,
		Message: failureHeadline(op) + " Details:\n" + details,
		Log:     details,
		LogPath: logPath,
	}
}
