// Package backend locates and probes the backup backend, either the installed
// service or the in-process sidecar.
package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/JBibu/backupone/internal/constants"
	"github.com/JBibu/backupone/internal/logging"
)

// retryLogger implements the retryablehttp.LeveledLogger interface.
// Probe failures are expected whenever the service is down, so only debug output.
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

// HealthChecker probes the health endpoint of the installed service.
type HealthChecker struct {
	client  *http.Client
	baseURL string
	timeout time.Duration
}

// NewHealthChecker returns a checker for http://localhost:<port>. The timeout
// bounds the whole probe including retries.
func NewHealthChecker(port int, timeout time.Duration, retries int, logger *logging.Logger) *HealthChecker {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if timeout <= 0 {
		timeout = constants.HealthCheckTimeout
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = retries
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 500 * time.Millisecond
	retryClient.Logger = &retryLogger{logger: logger}

	client := retryClient.StandardClient()
	client.Timeout = timeout

	return &HealthChecker{
		client:  client,
		baseURL: localURL(port),
		timeout: timeout,
	}
}

// Endpoint returns the probed URL.
func (h *HealthChecker) Endpoint() string {
	return h.baseURL + constants.HealthCheckPath
}

// Check performs one probe and returns an error unless the endpoint answered 2xx.
func (h *HealthChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.Endpoint(), nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health check returned %s", resp.Status)
	}
	return nil
}

// IsServiceRunning reports whether the service answers its health endpoint.
// Any failure, including a timeout, reports false.
func (h *HealthChecker) IsServiceRunning(ctx context.Context) bool {
	return h.Check(ctx) == nil
}
