package wm

import (
	"context"
	"fmt"

	"github.com/1broseidon/tiletree/internal/bus"
	"github.com/1broseidon/tiletree/internal/container"
	"github.com/1broseidon/tiletree/internal/layout"
)

func (m *Manager) handleFocusWindow(ctx context.Context, cmd FocusWindow) bus.Response {
	n, err := m.node(cmd.Node)
	if err != nil {
		return bus.Fail(err)
	}
	if n.Kind != container.KindWindow {
		return bus.Fail(fmt.Errorf("focus %s: not a window", n))
	}
	m.tree.SetFocused(n.ID)
	m.publishFocus(ctx, n)

	if m.focuser != nil {
		if err := m.focuser.FocusWindow(n.Window.Handle); err != nil {
			return bus.Fail(fmt.Errorf("focus window 0x%x: %w", uint32(n.Window.Handle), err))
		}
	}
	return bus.OK(n.ID)
}

func (m *Manager) handleFocusWorkspace(ctx context.Context, cmd FocusWorkspace) bus.Response {
	ws, ok := m.tree.WorkspaceByName(cmd.Name)
	if !ok {
		return bus.Fail(fmt.Errorf("workspace %q: %w", cmd.Name, container.ErrNotFound))
	}
	m.tree.SetFocused(ws.ID)
	m.publishFocus(ctx, ws)
	if err := m.showWorkspace(ctx, ws); err != nil {
		return bus.Fail(fmt.Errorf("show workspace %q: %w", cmd.Name, err))
	}

	if m.focuser != nil {
		if err := m.focuser.FocusNone(); err != nil {
			return bus.Fail(fmt.Errorf("focus workspace %q: %w", cmd.Name, err))
		}
	}
	return bus.OK(ws.ID)
}

// showWorkspace makes ws the visible workspace of its monitor. Windows of
// the sibling workspaces are hidden; nothing is redrawn when ws was already
// the visible one.
func (m *Manager) showWorkspace(ctx context.Context, ws *container.Node) error {
	mon, ok := m.tree.MonitorOf(ws.ID)
	if !ok {
		return nil
	}
	var dirty []container.NodeID
	for _, sib := range m.tree.Children(mon.ID) {
		hide := sib.ID != ws.ID
		changed := false
		for n := range m.tree.Flatten(sib.ID) {
			if n.Window != nil && n.Window.Hidden != hide {
				n.Window.Hidden = hide
				changed = true
			}
		}
		if changed {
			dirty = append(dirty, sib.ID)
		}
	}
	if len(dirty) == 0 {
		return nil
	}
	for _, id := range dirty {
		m.coord.MarkContainer(id)
	}
	_, err := invoke(ctx, m, layout.RedrawContainers{})
	return err
}

// onFocused records focus the window system already applied.
func (m *Manager) onFocused(ctx context.Context, ev WindowFocused) error {
	n, ok := m.tree.FindWindowByHandle(ev.Handle)
	if !ok {
		return nil
	}
	if f, ok := m.tree.Focused(); ok && f.ID == n.ID {
		return nil
	}
	m.tree.SetFocused(n.ID)
	m.publishFocus(ctx, n)
	return nil
}

func (m *Manager) publishFocus(ctx context.Context, n *container.Node) {
	ev := FocusChanged{Node: n.ID}
	if n.Window != nil {
		ev.Handle = n.Window.Handle
	}
	if ws, ok := m.tree.WorkspaceOf(n.ID); ok {
		ev.Workspace = ws.Name
	}
	bus.Publish(ctx, m.bus, ev)
}
