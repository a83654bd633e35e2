// Package wm implements the window-state transitions of the tiling window
// manager on top of the container tree and the command bus.
package wm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/1broseidon/tiletree/internal/bus"
	"github.com/1broseidon/tiletree/internal/container"
	"github.com/1broseidon/tiletree/internal/layout"
)

var (
	// ErrNotManaged is returned when a handle has no window node.
	ErrNotManaged = errors.New("window not managed")
	// ErrNoWorkspace is returned when a window cannot be placed anywhere.
	ErrNoWorkspace = errors.New("no workspace available")
)

// Focuser applies focus in the window system.
type Focuser interface {
	FocusWindow(h container.Handle) error
	// FocusNone clears native focus, used when a workspace has no window left.
	FocusNone() error
}

// Manager owns the transition handlers.
type Manager struct {
	tree    *container.Tree
	coord   *layout.Coordinator
	focuser Focuser
	logger  *slog.Logger
	bus     *bus.Bus
}

// New creates a manager. focuser may be nil, in which case focus only
// changes in the tree.
func New(tree *container.Tree, coord *layout.Coordinator, focuser Focuser, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		tree:    tree,
		coord:   coord,
		focuser: focuser,
		logger:  logger.With("component", "wm"),
	}
}

// Register installs every command handler and event subscriber on b.
func (m *Manager) Register(b *bus.Bus) {
	m.bus = b

	bus.HandleCommand(b, m.handleAttach)
	bus.HandleCommand(b, m.handleDetach)
	bus.HandleCommand(b, m.handleMove)
	bus.HandleCommand(b, m.handleReplace)
	bus.HandleCommand(b, m.handleFocusWindow)
	bus.HandleCommand(b, m.handleFocusWorkspace)
	bus.HandleCommand(b, m.handleSetWindowMode)

	bus.Subscribe(b, "wm.minimize", m.onMinimized)
	bus.Subscribe(b, "wm.restore", m.onRestored)
	bus.Subscribe(b, "wm.maximize", m.onMaximized)
	bus.Subscribe(b, "wm.fullscreen", m.onFullscreened)
	bus.Subscribe(b, "wm.open", m.onOpened)
	bus.Subscribe(b, "wm.close", m.onClosed)
	bus.Subscribe(b, "wm.focus", m.onFocused)
}

// Managed resolves a handle to its window node.
func (m *Manager) Managed(h container.Handle) (*container.Node, error) {
	n, ok := m.tree.FindWindowByHandle(h)
	if !ok {
		return nil, fmt.Errorf("window 0x%x: %w", uint32(h), ErrNotManaged)
	}
	return n, nil
}

// invoke dispatches cmd and unwraps the response error.
func invoke[C any](ctx context.Context, m *Manager, cmd C) (any, error) {
	resp := bus.Invoke(ctx, m.bus, cmd)
	return resp.Data, resp.Err
}

// focusFallback focuses the last focused window of ws other than excluded,
// or the workspace itself when there is none.
func (m *Manager) focusFallback(ctx context.Context, ws *container.Node, excluded container.NodeID) error {
	if target, ok := m.tree.LastFocusedDescendantExcluding(ws.ID, excluded); ok {
		_, err := invoke(ctx, m, FocusWindow{Node: target.ID})
		return err
	}
	_, err := invoke(ctx, m, FocusWorkspace{Name: ws.Name})
	return err
}

// redrawWorkspace marks ws dirty and runs a redraw.
func (m *Manager) redrawWorkspace(ctx context.Context, ws *container.Node) error {
	m.coord.MarkContainer(ws.ID)
	_, err := invoke(ctx, m, layout.RedrawContainers{})
	return err
}
