package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/1broseidon/tiletree/internal/runtimepath"
)

// Handler executes IPC commands against the running window manager.
type Handler interface {
	Status(ctx context.Context) (StatusData, error)
	Tree(ctx context.Context) (TreeNode, error)
	Minimize(ctx context.Context, window uint32) error
	Restore(ctx context.Context, window uint32) error
	Focus(ctx context.Context, window uint32) error
	Redraw(ctx context.Context) (RedrawData, error)
	Reload(ctx context.Context) error
	RunAction(ctx context.Context, name string) error
}

// Server handles IPC requests from clients
type Server struct {
	socketPath string
	handler    Handler
	logger     *slog.Logger
	timeout    time.Duration

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a server on the default runtime socket.
func NewServer(handler Handler, logger *slog.Logger) (*Server, error) {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
	}
	return NewServerAt(socketPath, handler, logger), nil
}

// NewServerAt creates a server listening on socketPath.
func NewServerAt(socketPath string, handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		logger:     logger.With("component", "ipc"),
		timeout:    10 * time.Second,
	}
}

func (s *Server) String() string {
	return "ipc.Server"
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Serve listens for connections until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	// Remove a stale socket left by a previous run.
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("IPC server listening", "socket", s.socketPath)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return ctx.Err()
			}
			s.logger.Warn("IPC accept error", "error", err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

// handleConnection handles a single IPC connection
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(s.timeout))

	reader := bufio.NewReader(conn)

	// Read the request (expect JSON on a single line)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.logger.Warn("IPC read error", "error", err)
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	resp := s.handleCommand(ctx, req)

	respData, err := resp.Marshal()
	if err != nil {
		s.logger.Error("Failed to marshal response", "error", err)
		return
	}

	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		s.logger.Warn("Failed to send response", "error", err)
	}
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(ctx context.Context, req *Request) *Response {
	s.logger.Debug("IPC request", "command", req.Command)

	switch req.Command {
	case CommandPing:
		return ok(nil)
	case CommandGetStatus:
		status, err := s.handler.Status(ctx)
		if err != nil {
			return NewErrorResponse(fmt.Sprintf("Failed to get status: %v", err))
		}
		return ok(status)
	case CommandGetTree:
		tree, err := s.handler.Tree(ctx)
		if err != nil {
			return NewErrorResponse(fmt.Sprintf("Failed to get tree: %v", err))
		}
		return ok(tree)
	case CommandMinimize:
		return s.windowCommand(ctx, req.Payload, "minimize", s.handler.Minimize)
	case CommandRestore:
		return s.windowCommand(ctx, req.Payload, "restore", s.handler.Restore)
	case CommandFocus:
		return s.windowCommand(ctx, req.Payload, "focus", s.handler.Focus)
	case CommandRedraw:
		res, err := s.handler.Redraw(ctx)
		if err != nil {
			return NewErrorResponse(fmt.Sprintf("Failed to redraw: %v", err))
		}
		return ok(res)
	case CommandReload:
		if err := s.handler.Reload(ctx); err != nil {
			return NewErrorResponse(fmt.Sprintf("Failed to reload config: %v", err))
		}
		return ok(nil)
	case CommandAction:
		var p ActionPayload
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid payload: %v", err))
		}
		if p.Action == "" {
			return NewErrorResponse("Invalid payload: action is required")
		}
		if err := s.handler.RunAction(ctx, p.Action); err != nil {
			return NewErrorResponse(fmt.Sprintf("Failed to run %s: %v", p.Action, err))
		}
		return ok(nil)
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

func (s *Server) windowCommand(ctx context.Context, payload json.RawMessage, verb string, fn func(context.Context, uint32) error) *Response {
	var p WindowPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid payload: %v", err))
	}
	if p.Window == 0 {
		return NewErrorResponse("Invalid payload: window is required")
	}
	if err := fn(ctx, p.Window); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to %s window 0x%x: %v", verb, p.Window, err))
	}
	return ok(nil)
}

func ok(data any) *Response {
	resp, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

// sendError sends an error response
func (s *Server) sendError(conn net.Conn, errMsg string) {
	resp := NewErrorResponse(errMsg)
	data, _ := resp.Marshal()
	data = append(data, '\n')
	conn.Write(data)
}

// Stop closes the listener and removes the socket.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		s.listener.Close()
		s.listener = nil
		os.Remove(s.socketPath)
	}
}
