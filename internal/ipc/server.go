package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/JBibu/backupone/internal/constants"
	"github.com/JBibu/backupone/internal/logging"
	"github.com/JBibu/backupone/internal/service"
)

// Handler answers IPC requests. commands.Handler is the production implementation.
type Handler interface {
	GetServiceStatus(ctx context.Context) service.ServiceStatus
	IsServiceRunning(ctx context.Context) bool
	InstallService(ctx context.Context, resourceDir string) error
	UninstallService(ctx context.Context) error
	StartService(ctx context.Context) error
	StopService(ctx context.Context) error
	GetBackendURL(usingService bool, sidecarPort int) string
}

// Server handles IPC requests from clients.
type Server struct {
	handler  Handler
	logger   *logging.Logger
	endpoint string
	listener net.Listener

	readTimeout time.Duration
	opTimeout   time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a server on the default endpoint for this platform.
func NewServer(handler Handler, logger *logging.Logger) (*Server, error) {
	endpoint, err := DefaultEndpoint()
	if err != nil {
		return nil, err
	}
	return NewServerWithEndpoint(handler, logger, endpoint), nil
}

// NewServerWithEndpoint creates a server on a specific pipe name or socket path.
func NewServerWithEndpoint(handler Handler, logger *logging.Logger, endpoint string) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		handler:     handler,
		logger:      logger,
		endpoint:    endpoint,
		readTimeout: constants.IPCReadTimeout,
		opTimeout:   constants.IPCOperationTimeout,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Endpoint returns the pipe name or socket path the server listens on.
func (s *Server) Endpoint() string {
	return s.endpoint
}

// Start begins listening for IPC connections.
func (s *Server) Start() error {
	listener, err := listen(s.endpoint, s.logger)
	if err != nil {
		return err
	}
	s.listener = listener

	s.logger.Info().Str("endpoint", s.endpoint).Msg("IPC server started")

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop closes the listener, cancels in-flight operations and waits for
// connection goroutines to finish.
func (s *Server) Stop() {
	s.logger.Debug().Msg("Stopping IPC server")
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.wg.Wait()
	cleanupEndpoint(s.endpoint)
	s.logger.Info().Msg("IPC server stopped")
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			// A closed listener fails every Accept.
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn().Err(err).Msg("Failed to accept IPC connection")
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection processes a single request/response exchange.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(s.readTimeout))

	reader := bufio.NewReader(conn)

	// Read request (newline-delimited JSON)
	data, err := reader.ReadBytes('\n')
	if err != nil {
		if err != io.EOF {
			s.logger.Warn().Err(err).Msg("Failed to read IPC request")
		}
		return
	}

	req, err := DecodeRequest(data)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to decode IPC request")
		s.sendResponse(conn, NewErrorResponse("invalid request format"))
		return
	}

	s.logger.Debug().Str("type", string(req.Type)).Msg("Received IPC request")

	timeout := s.readTimeout
	if req.Type.Mutating() {
		timeout = s.opTimeout
	}
	conn.SetDeadline(time.Now().Add(timeout))
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	resp := s.handleRequest(ctx, req)
	s.sendResponse(conn, resp)
}

// handleRequest dispatches a request to the handler.
func (s *Server) handleRequest(ctx context.Context, req *Request) *Response {
	switch req.Type {
	case MsgGetServiceStatus:
		return NewStatusResponse(s.handler.GetServiceStatus(ctx))

	case MsgIsServiceRunning:
		return NewBoolResponse(s.handler.IsServiceRunning(ctx))

	case MsgInstallService:
		return s.okOrFailure(req, s.handler.InstallService(ctx, req.ResourceDir))

	case MsgUninstallService:
		return s.okOrFailure(req, s.handler.UninstallService(ctx))

	case MsgStartService:
		return s.okOrFailure(req, s.handler.StartService(ctx))

	case MsgStopService:
		return s.okOrFailure(req, s.handler.StopService(ctx))

	case MsgGetBackendURL:
		return NewURLResponse(s.handler.GetBackendURL(req.UsingService, req.SidecarPort))

	default:
		return NewErrorResponse(fmt.Sprintf("unknown message type: %s", req.Type))
	}
}

func (s *Server) okOrFailure(req *Request, err error) *Response {
	if err != nil {
		s.logger.Info().Err(err).Str("type", string(req.Type)).Msg("IPC operation failed")
		return NewFailureResponse(err)
	}
	return NewOKResponse()
}

// sendResponse sends a response to the client.
func (s *Server) sendResponse(conn net.Conn, resp *Response) {
	data, err := resp.Encode()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode IPC response")
		return
	}

	// Append newline delimiter
	data = append(data, '\n')

	if _, err := conn.Write(data); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to send IPC response")
	}
}
