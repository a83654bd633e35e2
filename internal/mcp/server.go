package mcp

import (
	"context"
	"fmt"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/tiletree/internal/ipc"
)

const (
	ServerName    = "tiletree"
	ServerVersion = "0.1.0"
)

// Controller is the daemon surface the tools drive. *ipc.Client satisfies it.
type Controller interface {
	GetStatus() (*ipc.StatusData, error)
	GetTree() (*ipc.TreeNode, error)
	Minimize(window uint32) error
	Restore(window uint32) error
	Focus(window uint32) error
	Redraw() (*ipc.RedrawData, error)
	RunAction(name string) error
}

var _ Controller = (*ipc.Client)(nil)

// Server is the MCP server exposing the tiling tree to model clients.
type Server struct {
	mcpServer *mcpsdk.Server
	ctl       Controller
	logger    *slog.Logger
}

// NewServer creates an MCP server that forwards tool calls to ctl.
func NewServer(ctl Controller, logger *slog.Logger) (*Server, error) {
	if ctl == nil {
		return nil, fmt.Errorf("mcp: controller is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		ctl:    ctl,
		logger: logger.With("component", "mcp"),
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Connect serves a single session over transport. Used by tests with
// in-memory transports.
func (s *Server) Connect(ctx context.Context, transport mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	return s.mcpServer.Connect(ctx, transport, nil)
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_status",
		Description: "Summarize the window manager: monitor, workspace, window and minimized counts, plus the focused workspace and window.",
	}, s.handleGetStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_tree",
		Description: "Return the container tree (monitors, workspaces, splits and windows) with computed rectangles. Pass workspace to limit the result to one workspace subtree.",
	}, s.handleGetTree)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "minimize_window",
		Description: "Minimize a window by its native handle. Siblings in the same split expand to take its space.",
	}, s.handleMinimize)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "restore_window",
		Description: "Restore a minimized, maximized or fullscreen window to the mode it had before.",
	}, s.handleRestore)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "focus_window",
		Description: "Focus a window by its native handle, switching to its workspace if that workspace is hidden.",
	}, s.handleFocus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "redraw",
		Description: "Recompute the layout of every workspace and push the resulting positions to the window system.",
	}, s.handleRedraw)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "run_action",
		Description: "Run a named action relative to the current focus: minimize the focused window, restore_all minimized windows of the focused workspace, cycle with next_workspace or prev_workspace, or redraw.",
	}, s.handleRunAction)
}
