package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/tiletree/internal/ipc"
)

func (s *Server) handleGetStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ GetStatusInput) (*mcpsdk.CallToolResult, ipc.StatusData, error) {
	status, err := s.ctl.GetStatus()
	if err != nil {
		return nil, ipc.StatusData{}, err
	}
	return nil, *status, nil
}

// handleGetTree returns the snapshot as JSON text. The tree type is
// recursive, so it carries no output schema.
func (s *Server) handleGetTree(_ context.Context, _ *mcpsdk.CallToolRequest, args GetTreeInput) (*mcpsdk.CallToolResult, any, error) {
	tree, err := s.ctl.GetTree()
	if err != nil {
		return nil, nil, err
	}
	if args.Workspace != "" {
		tree = findWorkspace(tree, args.Workspace)
		if tree == nil {
			return nil, nil, fmt.Errorf("workspace %q not found", args.Workspace)
		}
	}

	data, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encode tree: %w", err)
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, nil, nil
}

func findWorkspace(tree *ipc.TreeNode, name string) *ipc.TreeNode {
	var found *ipc.TreeNode
	tree.Walk(func(n *ipc.TreeNode, _ int) bool {
		if n.Kind == "workspace" && n.Name == name {
			found = n
			return false
		}
		return true
	})
	return found
}

func (s *Server) handleMinimize(_ context.Context, _ *mcpsdk.CallToolRequest, args WindowInput) (*mcpsdk.CallToolResult, WindowOutput, error) {
	return s.windowCommand("minimize", args.Window, s.ctl.Minimize)
}

func (s *Server) handleRestore(_ context.Context, _ *mcpsdk.CallToolRequest, args WindowInput) (*mcpsdk.CallToolResult, WindowOutput, error) {
	return s.windowCommand("restore", args.Window, s.ctl.Restore)
}

func (s *Server) handleFocus(_ context.Context, _ *mcpsdk.CallToolRequest, args WindowInput) (*mcpsdk.CallToolResult, WindowOutput, error) {
	return s.windowCommand("focus", args.Window, s.ctl.Focus)
}

func (s *Server) windowCommand(action string, window uint32, fn func(uint32) error) (*mcpsdk.CallToolResult, WindowOutput, error) {
	if window == 0 {
		return nil, WindowOutput{}, fmt.Errorf("window is required")
	}
	if err := fn(window); err != nil {
		s.logger.Debug("window command failed", "action", action, "window", window, "error", err)
		return nil, WindowOutput{}, fmt.Errorf("%s window %d: %w", action, window, err)
	}
	s.logger.Info("window command", "action", action, "window", window)
	return nil, WindowOutput{Window: window, Action: action}, nil
}

func (s *Server) handleRedraw(_ context.Context, _ *mcpsdk.CallToolRequest, _ RedrawInput) (*mcpsdk.CallToolResult, ipc.RedrawData, error) {
	res, err := s.ctl.Redraw()
	if err != nil {
		return nil, ipc.RedrawData{}, err
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: fmt.Sprintf("Arranged %d containers, positioned %d windows", res.Arranged, res.Windows)},
		},
	}, *res, nil
}

func (s *Server) handleRunAction(_ context.Context, _ *mcpsdk.CallToolRequest, args ActionInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	if args.Action == "" {
		return nil, ActionOutput{}, fmt.Errorf("action is required")
	}
	if err := s.ctl.RunAction(args.Action); err != nil {
		return nil, ActionOutput{}, fmt.Errorf("run %s: %w", args.Action, err)
	}
	s.logger.Info("action", "name", args.Action)
	return nil, ActionOutput{Action: args.Action}, nil
}
