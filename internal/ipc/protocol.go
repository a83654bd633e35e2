package ipc

import (
	"encoding/json"
	"fmt"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandPing      CommandType = "PING"
	CommandGetStatus CommandType = "GET_STATUS"
	CommandGetTree   CommandType = "GET_TREE"
	CommandMinimize  CommandType = "MINIMIZE"
	CommandRestore   CommandType = "RESTORE"
	CommandFocus     CommandType = "FOCUS"
	CommandRedraw    CommandType = "REDRAW"
	CommandReload    CommandType = "RELOAD"
	CommandAction    CommandType = "ACTION"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	Monitors         int    `json:"monitors"`
	Workspaces       int    `json:"workspaces"`
	Windows          int    `json:"windows"`
	Minimized        int    `json:"minimized"`
	FocusedWorkspace string `json:"focused_workspace,omitempty"`
	FocusedWindow    uint32 `json:"focused_window,omitempty"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
	DaemonRunning    bool   `json:"daemon_running"`
}

// Rect is a screen rectangle in a snapshot.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TreeNode is a snapshot of one container and its subtree.
type TreeNode struct {
	ID          uint64     `json:"id"`
	Kind        string     `json:"kind"`
	Name        string     `json:"name,omitempty"`
	Orientation string     `json:"orientation,omitempty"`
	Mode        string     `json:"mode,omitempty"`
	Previous    string     `json:"previous_state,omitempty"`
	Window      uint32     `json:"window,omitempty"`
	Rect        Rect       `json:"rect"`
	Percentage  float64    `json:"size_percentage,omitempty"`
	Focused     bool       `json:"focused,omitempty"`
	Hidden      bool       `json:"hidden,omitempty"`
	Children    []TreeNode `json:"children,omitempty"`
}

// Walk visits n and its descendants in pre-order until fn returns false.
func (n *TreeNode) Walk(fn func(node *TreeNode, depth int) bool) {
	n.walk(fn, 0)
}

func (n *TreeNode) walk(fn func(*TreeNode, int) bool, depth int) bool {
	if !fn(n, depth) {
		return false
	}
	for i := range n.Children {
		if !n.Children[i].walk(fn, depth+1) {
			return false
		}
	}
	return true
}

// WindowPayload names the target of MINIMIZE, RESTORE and FOCUS.
type WindowPayload struct {
	Window uint32 `json:"window"`
}

// ActionPayload names the action run by ACTION.
type ActionPayload struct {
	Action string `json:"action"`
}

// RedrawData represents the data returned by REDRAW
type RedrawData struct {
	Arranged int `json:"arranged"`
	Windows  int `json:"windows"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data any) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
