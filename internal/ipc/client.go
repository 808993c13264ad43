package ipc

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/JBibu/backupone/internal/constants"
	"github.com/JBibu/backupone/internal/service"
)

// Client connects to the IPC server to send requests.
type Client struct {
	endpoint string

	// timeout bounds connect and simple queries; opTimeout bounds mutating
	// requests, which wait for a full elevation and poll window.
	timeout   time.Duration
	opTimeout time.Duration
}

// NewClient creates a client for the default endpoint.
func NewClient() (*Client, error) {
	endpoint, err := DefaultEndpoint()
	if err != nil {
		return nil, err
	}
	return NewClientWithEndpoint(endpoint), nil
}

// NewClientWithEndpoint creates a client for a specific pipe name or socket path.
func NewClientWithEndpoint(endpoint string) *Client {
	return &Client{
		endpoint:  endpoint,
		timeout:   5 * time.Second,
		opTimeout: constants.IPCOperationTimeout,
	}
}

// SetTimeout sets the connection and query timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// SetOperationTimeout sets the timeout for mutating requests.
func (c *Client) SetOperationTimeout(timeout time.Duration) {
	c.opTimeout = timeout
}

func (c *Client) connect(ctx context.Context) (net.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := dial(dialCtx, c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IPC server at %s: %w", c.endpoint, err)
	}
	return conn, nil
}

// sendRequest sends a request and receives a response.
func (c *Client) sendRequest(ctx context.Context, req *Request) (*Response, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	timeout := c.timeout
	if req.Type.Mutating() {
		timeout = c.opTimeout
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetDeadline(deadline)

	// Unblock I/O when the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	data, err := req.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	data = append(data, '\n')

	if _, err := conn.Write(data); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	resp, err := DecodeResponse(respData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp, nil
}

// call sends a request and converts a failed response into an error.
func (c *Client) call(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.sendRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(req.Type); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetServiceStatus retrieves the current service status.
func (c *Client) GetServiceStatus(ctx context.Context) (service.ServiceStatus, error) {
	resp, err := c.call(ctx, NewRequest(MsgGetServiceStatus))
	if err != nil {
		return service.NotInstalled(), err
	}
	return resp.GetServiceStatus()
}

// IsServiceRunning asks the server whether the service answers its health probe.
func (c *Client) IsServiceRunning(ctx context.Context) (bool, error) {
	resp, err := c.call(ctx, NewRequest(MsgIsServiceRunning))
	if err != nil {
		return false, err
	}
	return resp.GetBool()
}

// InstallService installs the service from the given resource directory.
func (c *Client) InstallService(ctx context.Context, resourceDir string) error {
	_, err := c.call(ctx, NewInstallRequest(resourceDir))
	return err
}

// UninstallService removes the service.
func (c *Client) UninstallService(ctx context.Context) error {
	_, err := c.call(ctx, NewRequest(MsgUninstallService))
	return err
}

// StartService starts the service.
func (c *Client) StartService(ctx context.Context) error {
	_, err := c.call(ctx, NewRequest(MsgStartService))
	return err
}

// StopService stops the service.
func (c *Client) StopService(ctx context.Context) error {
	_, err := c.call(ctx, NewRequest(MsgStopService))
	return err
}

// GetBackendURL returns the backend base URL the front end should use.
func (c *Client) GetBackendURL(ctx context.Context, usingService bool, sidecarPort int) (string, error) {
	resp, err := c.call(ctx, NewBackendURLRequest(usingService, sidecarPort))
	if err != nil {
		return "", err
	}
	return resp.GetURL()
}

// Ping checks if the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.GetServiceStatus(ctx)
	return err
}
