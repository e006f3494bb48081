package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	engerrors "github.com/Aman-CERP/catindex/internal/errors"
	"github.com/Aman-CERP/catindex/internal/logging"
	"github.com/Aman-CERP/catindex/internal/searchindex"
)

// Handler executes admin requests. engine.Engine implements it.
type Handler interface {
	Status(ctx context.Context) StatusResult
	Queue(sample int) QueueResult
	SetState(state string) (SetStateResult, error)
	Refresh() (RefreshResult, error)
	Reindex(ctx context.Context, zones []string) (ReindexResult, error)
	Submit(ctx context.Context, event string, fields map[string]any) (SubmitResult, error)
	Search(ctx context.Context, req searchindex.Request) (*searchindex.Response, error)
	Leases() LeasesResult
	EvictLease(zone string, all bool) EvictLeaseResult
	DeadLetters(ctx context.Context, limit int) (DeadLettersResult, error)
}

// Server listens on a Unix socket and handles admin requests.
type Server struct {
	socketPath string
	listener   net.Listener
	handler    Handler
	logger     *slog.Logger
	timeout    time.Duration
	started    time.Time
	ready      chan struct{}

	mu       sync.Mutex
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a server for socketPath. A nil logger discards.
func NewServer(socketPath string, handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		logger:     logger,
		timeout:    30 * time.Second,
		ready:      make(chan struct{}),
	}
}

// SetTimeout sets the per-connection deadline.
func (s *Server) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// Ready is closed once the socket accepts connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// ListenAndServe starts the server and blocks until context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	// Clean up any stale socket
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.started = time.Now()
	s.mu.Unlock()
	close(s.ready)

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	s.logger.Info("admin_listening", slog.String("socket", s.socketPath))

	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	})
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			s.logger.Error("admin_accept_failed", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.wg.Wait()
	return ctx.Err()
}

// handleConnection processes a single client connection.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		s.logger.Warn("admin_deadline_failed", slog.String("error", err.Error()))
	}

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		_ = encoder.Encode(NewErrorResponse("", ErrCodeParseError, "failed to parse request"))
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		_ = encoder.Encode(NewErrorResponse(req.ID, ErrCodeInvalidRequest, "invalid JSON-RPC 2.0 request"))
		return
	}

	start := time.Now()
	resp := s.handleRequest(ctx, req)
	attrs := []any{slog.String("method", req.Method), slog.Duration("took", time.Since(start))}
	if resp.Error != nil {
		attrs = append(attrs, slog.Int("code", resp.Error.Code), slog.String("error", resp.Error.Message))
		s.logger.Warn("admin_request_failed", attrs...)
	} else {
		s.logger.Debug("admin_request", attrs...)
	}
	_ = encoder.Encode(resp)
}

// handleRequest dispatches a request to the appropriate handler.
func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	if req.Method == MethodPing {
		return NewSuccessResponse(req.ID, PingResult{Pong: true, Time: time.Now().UTC()})
	}
	if s.handler == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no handler configured")
	}

	switch req.Method {
	case MethodStatus:
		return NewSuccessResponse(req.ID, s.getStatus(ctx))

	case MethodQueue:
		var p QueueParams
		if err := decodeParams(req.Params, &p); err != nil {
			return invalidParams(req.ID, err)
		}
		p.Normalize()
		return NewSuccessResponse(req.ID, s.handler.Queue(p.Sample))

	case MethodSetState:
		var p SetStateParams
		if err := decodeParams(req.Params, &p); err != nil {
			return invalidParams(req.ID, err)
		}
		if err := p.Validate(); err != nil {
			return invalidParams(req.ID, err)
		}
		res, err := s.handler.SetState(p.State)
		return reply(req.ID, res, err, ErrCodeInternalError)

	case MethodRefresh:
		res, err := s.handler.Refresh()
		return reply(req.ID, res, err, ErrCodeIndexFailed)

	case MethodReindex:
		var p ReindexParams
		if err := decodeParams(req.Params, &p); err != nil {
			return invalidParams(req.ID, err)
		}
		res, err := s.handler.Reindex(ctx, p.Zones)
		return reply(req.ID, res, err, ErrCodeIndexFailed)

	case MethodSubmit:
		var p SubmitParams
		if err := decodeParams(req.Params, &p); err != nil {
			return invalidParams(req.ID, err)
		}
		if err := p.Validate(); err != nil {
			return invalidParams(req.ID, err)
		}
		res, err := s.handler.Submit(ctx, p.Event, p.Fields)
		return reply(req.ID, res, err, ErrCodeInternalError)

	case MethodSearch:
		var p SearchParams
		if err := decodeParams(req.Params, &p); err != nil {
			return invalidParams(req.ID, err)
		}
		if err := p.Validate(); err != nil {
			return invalidParams(req.ID, err)
		}
		res, err := s.handler.Search(ctx, p.Request())
		return reply(req.ID, res, err, ErrCodeSearchFailed)

	case MethodLeases:
		return NewSuccessResponse(req.ID, s.handler.Leases())

	case MethodEvictLease:
		var p EvictLeaseParams
		if err := decodeParams(req.Params, &p); err != nil {
			return invalidParams(req.ID, err)
		}
		if err := p.Validate(); err != nil {
			return invalidParams(req.ID, err)
		}
		return NewSuccessResponse(req.ID, s.handler.EvictLease(p.Zone, p.All))

	case MethodDeadLetters:
		var p DeadLettersParams
		if err := decodeParams(req.Params, &p); err != nil {
			return invalidParams(req.ID, err)
		}
		res, err := s.handler.DeadLetters(ctx, p.Limit)
		return reply(req.ID, res, err, ErrCodeInternalError)

	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

// decodeParams re-decodes the generic params value into dst. Absent
// params leave dst at its zero value.
func decodeParams(params any, dst any) error {
	if params == nil {
		return nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode params: %w", err)
	}
	return nil
}

func invalidParams(id string, err error) Response {
	return NewErrorResponse(id, ErrCodeInvalidParams, err.Error())
}

func reply(id string, result any, err error, fallback int) Response {
	if err != nil {
		resp := NewErrorResponse(id, errorCode(err, fallback), err.Error())
		if _, ok := engerrors.As(err); ok {
			resp.Error.Data = engerrors.DetailOf(err)
		}
		return resp
	}
	return NewSuccessResponse(id, result)
}

// getStatus merges process facts into the handler's status.
func (s *Server) getStatus(ctx context.Context) StatusResult {
	status := s.handler.Status(ctx)
	status.Running = true
	status.PID = os.Getpid()
	s.mu.Lock()
	status.Uptime = time.Since(s.started).Round(time.Second).String()
	s.mu.Unlock()
	return status
}

// Close stops the server.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true

	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
