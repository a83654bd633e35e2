package ipc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeHandler struct {
	mu        sync.Mutex
	minimized []uint32
	restored  []uint32
	focused   []uint32
	reloads   int
	actions   []string
	err       error
}

func (f *fakeHandler) Status(context.Context) (StatusData, error) {
	return StatusData{Workspaces: 2, Windows: 3, DaemonRunning: true}, nil
}

func (f *fakeHandler) Tree(context.Context) (TreeNode, error) {
	return TreeNode{
		ID:   1,
		Kind: "root",
		Children: []TreeNode{{
			ID:   2,
			Kind: "monitor",
			Name: "DP-1",
			Children: []TreeNode{{
				ID:   3,
				Kind: "workspace",
				Name: "1",
				Children: []TreeNode{
					{ID: 4, Kind: "window", Window: 0xA, Mode: "tiling", Percentage: 0.5},
					{ID: 5, Kind: "window", Window: 0xB, Mode: "minimized", Previous: "tiling"},
				},
			}},
		}},
	}, nil
}

func (f *fakeHandler) record(list *[]uint32, w uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	*list = append(*list, w)
	return f.err
}

func (f *fakeHandler) Minimize(_ context.Context, w uint32) error { return f.record(&f.minimized, w) }
func (f *fakeHandler) Restore(_ context.Context, w uint32) error  { return f.record(&f.restored, w) }
func (f *fakeHandler) Focus(_ context.Context, w uint32) error    { return f.record(&f.focused, w) }

func (f *fakeHandler) Redraw(context.Context) (RedrawData, error) {
	return RedrawData{Arranged: 1, Windows: 2}, nil
}

func (f *fakeHandler) Reload(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	return nil
}

func (f *fakeHandler) RunAction(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name == "undo" {
		return errors.New(`unknown action "undo"`)
	}
	f.actions = append(f.actions, name)
	return nil
}

func startServer(t *testing.T, h Handler) *Client {
	t.Helper()
	path := filepath.Join(t.TempDir(), "t.sock")
	srv := NewServerAt(path, h, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Errorf("server did not stop")
		}
	})

	client := NewClientAt(path)
	deadline := time.Now().Add(2 * time.Second)
	for {
		if err := client.Ping(); err == nil {
			return client
		} else if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServer_Queries(t *testing.T) {
	client := startServer(t, &fakeHandler{})

	status, err := client.GetStatus()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Workspaces != 2 || status.Windows != 3 || !status.DaemonRunning {
		t.Fatalf("unexpected status %+v", status)
	}

	tree, err := client.GetTree()
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	var windows []uint32
	tree.Walk(func(n *TreeNode, depth int) bool {
		if n.Kind == "window" {
			if depth != 3 {
				t.Errorf("window depth = %d, want 3", depth)
			}
			windows = append(windows, n.Window)
		}
		return true
	})
	if len(windows) != 2 || windows[0] != 0xA || windows[1] != 0xB {
		t.Fatalf("unexpected windows %v", windows)
	}

	res, err := client.Redraw()
	if err != nil {
		t.Fatalf("redraw: %v", err)
	}
	if res.Arranged != 1 || res.Windows != 2 {
		t.Fatalf("unexpected redraw result %+v", res)
	}
}

func TestServer_WindowCommands(t *testing.T) {
	h := &fakeHandler{}
	client := startServer(t, h)

	if err := client.Minimize(0xA); err != nil {
		t.Fatalf("minimize: %v", err)
	}
	if err := client.Restore(0xA); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if err := client.Focus(0xB); err != nil {
		t.Fatalf("focus: %v", err)
	}
	if err := client.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if err := client.RunAction("restore_all"); err != nil {
		t.Fatalf("action: %v", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.minimized) != 1 || h.minimized[0] != 0xA {
		t.Fatalf("minimized = %v", h.minimized)
	}
	if len(h.restored) != 1 || len(h.focused) != 1 || h.focused[0] != 0xB {
		t.Fatalf("restored = %v focused = %v", h.restored, h.focused)
	}
	if h.reloads != 1 {
		t.Fatalf("reloads = %d", h.reloads)
	}
	if len(h.actions) != 1 || h.actions[0] != "restore_all" {
		t.Fatalf("actions = %v", h.actions)
	}
}

func TestServer_Errors(t *testing.T) {
	h := &fakeHandler{err: errors.New("window not managed")}
	client := startServer(t, h)

	err := client.Minimize(0xC)
	if err == nil || !strings.Contains(err.Error(), "window not managed") {
		t.Fatalf("expected handler error, got %v", err)
	}

	if err := client.Focus(0); err == nil || !strings.Contains(err.Error(), "window is required") {
		t.Fatalf("expected payload error, got %v", err)
	}

	if err := client.RunAction("undo"); err == nil || !strings.Contains(err.Error(), `unknown action "undo"`) {
		t.Fatalf("expected action error, got %v", err)
	}
	if err := client.RunAction(""); err == nil || !strings.Contains(err.Error(), "action is required") {
		t.Fatalf("expected payload error, got %v", err)
	}

	if _, err := client.sendRequest(&Request{Command: "UNDO"}); err == nil || !strings.Contains(err.Error(), "Unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestClient_NoDaemon(t *testing.T) {
	client := NewClientAt(filepath.Join(t.TempDir(), "missing.sock"))
	if err := client.Ping(); err == nil || !strings.Contains(err.Error(), "is the daemon running") {
		t.Fatalf("expected connection error, got %v", err)
	}
}
