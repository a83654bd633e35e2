package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/tiletree/internal/runtimepath"
)

// Client handles IPC communication with the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new IPC client
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}

	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// NewClientAt creates a client for the socket at socketPath.
func NewClientAt(socketPath string) *Client {
	return &Client{socketPath: socketPath, timeout: 5 * time.Second}
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(req *Request) (*Response, error) {
	// Connect to socket
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()

	// Set deadline
	conn.SetDeadline(time.Now().Add(c.timeout))

	// Marshal request
	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Send request
	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	// Read response
	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Parse response
	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// Check for error response
	if resp.Status == "ERROR" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}

	return &resp, nil
}

// Ping checks if the daemon is responding
func (c *Client) Ping() error {
	_, err := c.sendRequest(&Request{Command: CommandPing})
	return err
}

// GetStatus retrieves daemon status
func (c *Client) GetStatus() (*StatusData, error) {
	var status StatusData
	if err := c.query(CommandGetStatus, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetTree retrieves a snapshot of the container tree.
func (c *Client) GetTree() (*TreeNode, error) {
	var tree TreeNode
	if err := c.query(CommandGetTree, &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

// Minimize asks the daemon to minimize a window.
func (c *Client) Minimize(window uint32) error {
	return c.windowCommand(CommandMinimize, window)
}

// Restore asks the daemon to restore a minimized window.
func (c *Client) Restore(window uint32) error {
	return c.windowCommand(CommandRestore, window)
}

// Focus asks the daemon to focus a window.
func (c *Client) Focus(window uint32) error {
	return c.windowCommand(CommandFocus, window)
}

// Redraw forces a full layout pass.
func (c *Client) Redraw() (*RedrawData, error) {
	var res RedrawData
	if err := c.query(CommandRedraw, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Reload sends a RELOAD command to the daemon
func (c *Client) Reload() error {
	_, err := c.sendRequest(&Request{Command: CommandReload})
	return err
}

// RunAction asks the daemon to run a named action such as "restore_all".
func (c *Client) RunAction(name string) error {
	payload, err := json.Marshal(ActionPayload{Action: name})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	_, err = c.sendRequest(&Request{Command: CommandAction, Payload: payload})
	return err
}

func (c *Client) query(cmd CommandType, out any) error {
	resp, err := c.sendRequest(&Request{Command: cmd})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", cmd, err)
	}
	return nil
}

func (c *Client) windowCommand(cmd CommandType, window uint32) error {
	payload, err := json.Marshal(WindowPayload{Window: window})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	_, err = c.sendRequest(&Request{Command: cmd, Payload: payload})
	return err
}
