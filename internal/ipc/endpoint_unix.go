//go:build !windows

package ipc

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/JBibu/backupone/internal/config"
	"github.com/JBibu/backupone/internal/constants"
	"github.com/JBibu/backupone/internal/logging"
)

// DefaultEndpoint returns the control socket path: ~/.config/backupone/control.sock.
func DefaultEndpoint() (string, error) {
	dir, err := config.AppDirectory()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.SocketName), nil
}

// listen creates the Unix socket, replacing a stale one left by a crashed
// server. The socket is readable and writable by its owner only.
func listen(endpoint string, logger *logging.Logger) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(endpoint), 0700); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}

	if _, err := os.Stat(endpoint); err == nil {
		if EndpointInUse(endpoint) {
			return nil, fmt.Errorf("another control server is listening on %s", endpoint)
		}
		logger.Debug().Str("socket", endpoint).Msg("Removing stale control socket")
		if err := os.Remove(endpoint); err != nil {
			return nil, fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	listener, err := net.Listen("unix", endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", endpoint, err)
	}
	if err := os.Chmod(endpoint, 0600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}
	return listener, nil
}

func dial(ctx context.Context, endpoint string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", endpoint)
}

// cleanupEndpoint removes the socket file after the listener is closed.
func cleanupEndpoint(endpoint string) {
	os.Remove(endpoint)
}

// EndpointInUse reports whether a server answers on the socket.
func EndpointInUse(endpoint string) bool {
	conn, err := net.DialTimeout("unix", endpoint, 100*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
