//go:build windows

package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/Microsoft/go-winio"
	"golang.org/x/sys/windows"

	"github.com/JBibu/backupone/internal/constants"
	"github.com/JBibu/backupone/internal/logging"
)

// Windows error codes for named pipes
const (
	ERROR_FILE_NOT_FOUND = syscall.Errno(2)
	ERROR_PIPE_BUSY      = syscall.Errno(231)
	ERROR_ACCESS_DENIED  = syscall.Errno(5)
)

// DefaultEndpoint returns the control pipe name.
func DefaultEndpoint() (string, error) {
	return constants.PipeName, nil
}

// listen creates the named pipe. Only the current user and SYSTEM may connect,
// so another account on the machine cannot drive elevation prompts here.
func listen(endpoint string, logger *logging.Logger) (net.Listener, error) {
	sid, err := currentUserSID()
	if err != nil {
		return nil, err
	}
	cfg := &winio.PipeConfig{
		SecurityDescriptor: pipeSecurityDescriptor(sid),
		MessageMode:        true,
		InputBufferSize:    4096,
		OutputBufferSize:   4096,
	}

	listener, err := winio.ListenPipe(endpoint, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create named pipe: %w", err)
	}
	logger.Debug().Str("owner_sid", sid).Msg("Control pipe restricted to owner")
	return listener, nil
}

// pipeSecurityDescriptor grants generic-all to the owner and SYSTEM only.
func pipeSecurityDescriptor(ownerSID string) string {
	return fmt.Sprintf("D:P(A;;GA;;;%s)(A;;GA;;;SY)", ownerSID)
}

func dial(ctx context.Context, endpoint string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, endpoint)
}

// cleanupEndpoint is a no-op: a pipe disappears with its last handle.
func cleanupEndpoint(string) {}

// currentUserSID returns the SID of the current process owner.
func currentUserSID() (string, error) {
	token, err := windows.OpenCurrentProcessToken()
	if err != nil {
		return "", fmt.Errorf("failed to open process token: %w", err)
	}
	defer token.Close()

	user, err := token.GetTokenUser()
	if err != nil {
		return "", fmt.Errorf("failed to get token user: %w", err)
	}

	return user.User.Sid.String(), nil
}

// EndpointInUse reports whether a control server already owns the pipe.
// Only ERROR_FILE_NOT_FOUND means the pipe is absent; os.IsNotExist is
// unreliable for pipes.
func EndpointInUse(endpoint string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	conn, err := winio.DialPipeContext(ctx, endpoint)
	if conn != nil {
		conn.Close()
		return true
	}
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		if errno == ERROR_FILE_NOT_FOUND {
			return false
		}
		// ERROR_PIPE_BUSY, ERROR_ACCESS_DENIED -> pipe exists
		return true
	}

	// Timeouts and other wrapped errors: assume a server is there.
	return true
}
