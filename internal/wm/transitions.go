package wm

import (
	"context"
	"errors"
	"fmt"

	"github.com/1broseidon/tiletree/internal/container"
)

// onMinimized swaps a window for a minimized placeholder at the same
// position, hands focus to the workspace's previous window and redraws.
// Tiling windows are first lifted to be direct children of the workspace.
func (m *Manager) onMinimized(ctx context.Context, ev WindowMinimized) error {
	win, ok := m.tree.FindWindowByHandle(ev.Handle)
	if !ok {
		m.logger.Debug("minimize of unmanaged window ignored", "window", fmt.Sprintf("0x%x", uint32(ev.Handle)))
		return nil
	}
	if win.IsWindow(container.ModeMinimized) {
		return nil
	}
	ws, ok := m.tree.WorkspaceOf(win.ID)
	if !ok {
		return fmt.Errorf("minimize %s: %w", win, ErrNoWorkspace)
	}

	if win.IsTiled() {
		if _, err := invoke(ctx, m, MoveContainerWithinTree{Node: win.ID, Target: ws.ID}); err != nil {
			return fmt.Errorf("minimize %s: %w", win, err)
		}
	}

	minimized := m.tree.NewWindow(container.Window{
		Handle:            win.Window.Handle,
		Mode:              container.ModeMinimized,
		FloatingPlacement: win.Window.FloatingPlacement,
		PreviousState:     win.Window.Mode,
	})
	if _, err := invoke(ctx, m, ReplaceContainer{Replacement: minimized, Parent: win.Parent, Index: m.tree.Index(win.ID)}); err != nil {
		m.tree.Delete(minimized)
		return fmt.Errorf("minimize 0x%x: %w", uint32(ev.Handle), err)
	}

	m.logger.Debug("window minimized", "window", fmt.Sprintf("0x%x", uint32(ev.Handle)), "workspace", ws.Name)

	return errors.Join(
		m.focusFallback(ctx, ws, minimized),
		m.redrawWorkspace(ctx, ws),
	)
}

// onRestored rebuilds a minimized window in its previous mode, or returns a
// maximized or fullscreen window to tiling.
func (m *Manager) onRestored(ctx context.Context, ev WindowRestored) error {
	win, ok := m.tree.FindWindowByHandle(ev.Handle)
	if !ok {
		return nil
	}

	var mode container.Mode
	switch win.Window.Mode {
	case container.ModeMinimized:
		mode = win.Window.PreviousState
	case container.ModeMaximized, container.ModeFullscreen:
		mode = container.ModeTiling
	default:
		return nil
	}
	ws, ok := m.tree.WorkspaceOf(win.ID)
	if !ok {
		return fmt.Errorf("restore %s: %w", win, ErrNoWorkspace)
	}

	restored := m.tree.NewWindow(container.Window{
		Handle:            win.Window.Handle,
		Mode:              mode,
		FloatingPlacement: win.Window.FloatingPlacement,
		Hidden:            win.Window.Hidden,
	})
	if _, err := invoke(ctx, m, ReplaceContainer{Replacement: restored, Parent: win.Parent, Index: m.tree.Index(win.ID)}); err != nil {
		m.tree.Delete(restored)
		return fmt.Errorf("restore 0x%x: %w", uint32(ev.Handle), err)
	}

	m.logger.Debug("window restored", "window", fmt.Sprintf("0x%x", uint32(ev.Handle)), "mode", mode.String())

	_, ferr := invoke(ctx, m, FocusWindow{Node: restored})
	return errors.Join(ferr, m.redrawWorkspace(ctx, ws))
}

func (m *Manager) onMaximized(ctx context.Context, ev WindowMaximized) error {
	return m.changeMode(ctx, ev.Handle, container.ModeMaximized)
}

func (m *Manager) onFullscreened(ctx context.Context, ev WindowFullscreened) error {
	return m.changeMode(ctx, ev.Handle, container.ModeFullscreen)
}

func (m *Manager) changeMode(ctx context.Context, h container.Handle, mode container.Mode) error {
	win, ok := m.tree.FindWindowByHandle(h)
	if !ok || win.Window.Mode == mode {
		return nil
	}
	ws, ok := m.tree.WorkspaceOf(win.ID)
	if !ok {
		return fmt.Errorf("%s %s: %w", mode, win, ErrNoWorkspace)
	}

	data, err := invoke(ctx, m, SetWindowMode{Node: win.ID, Mode: mode})
	if err != nil {
		return err
	}
	_, ferr := invoke(ctx, m, FocusWindow{Node: data.(container.NodeID)})
	return errors.Join(ferr, m.redrawWorkspace(ctx, ws))
}

// onOpened attaches a new window next to the focused tiled window, or at
// the end of the focused workspace.
func (m *Manager) onOpened(ctx context.Context, ev WindowOpened) error {
	if _, ok := m.tree.FindWindowByHandle(ev.Handle); ok {
		return nil
	}

	ws, parent, index, err := m.insertionPoint(ev.Floating)
	if err != nil {
		return fmt.Errorf("manage 0x%x: %w", uint32(ev.Handle), err)
	}

	mode := container.ModeTiling
	if ev.Floating {
		mode = container.ModeFloating
	}
	id := m.tree.NewWindow(container.Window{
		Handle:            ev.Handle,
		Mode:              mode,
		FloatingPlacement: ev.Placement,
	})
	if _, err := invoke(ctx, m, AttachContainer{Child: id, Parent: parent, Index: index}); err != nil {
		m.tree.Delete(id)
		return fmt.Errorf("manage 0x%x: %w", uint32(ev.Handle), err)
	}

	m.logger.Info("managing window", "window", fmt.Sprintf("0x%x", uint32(ev.Handle)), "workspace", ws.Name, "mode", mode.String())

	_, ferr := invoke(ctx, m, FocusWindow{Node: id})
	return errors.Join(ferr, m.redrawWorkspace(ctx, ws))
}

func (m *Manager) insertionPoint(floating bool) (ws *container.Node, parent container.NodeID, index int, err error) {
	focused, hasFocus := m.tree.Focused()
	if hasFocus {
		ws, _ = m.tree.WorkspaceOf(focused.ID)
	}
	if ws == nil {
		for w := range m.tree.Workspaces() {
			ws = w
			break
		}
	}
	if ws == nil {
		return nil, container.NoNode, 0, ErrNoWorkspace
	}

	if !floating && hasFocus && focused.IsWindow(container.ModeTiling) {
		if p, ok := m.tree.Node(focused.Parent); ok && p.IsSplitLike() {
			if owner, ok := m.tree.WorkspaceOf(p.ID); ok && owner.ID == ws.ID {
				return ws, p.ID, m.tree.Index(focused.ID) + 1, nil
			}
		}
	}
	return ws, ws.ID, -1, nil
}

// onClosed stops managing a window, removes splits it leaves empty and
// moves focus if the closed window had it.
func (m *Manager) onClosed(ctx context.Context, ev WindowClosed) error {
	win, ok := m.tree.FindWindowByHandle(ev.Handle)
	if !ok {
		return nil
	}
	ws, ok := m.tree.WorkspaceOf(win.ID)
	if !ok {
		return fmt.Errorf("unmanage %s: %w", win, ErrNoWorkspace)
	}
	focused, hasFocus := m.tree.Focused()
	wasFocused := hasFocus && focused.ID == win.ID
	parent := win.Parent

	if _, err := invoke(ctx, m, DetachContainer{Node: win.ID}); err != nil {
		return fmt.Errorf("unmanage 0x%x: %w", uint32(ev.Handle), err)
	}
	m.tree.Delete(win.ID)
	m.pruneEmptySplits(parent)

	m.logger.Info("stopped managing window", "window", fmt.Sprintf("0x%x", uint32(ev.Handle)), "workspace", ws.Name)

	var ferr error
	if wasFocused {
		ferr = m.focusFallback(ctx, ws, container.NoNode)
	}
	return errors.Join(ferr, m.redrawWorkspace(ctx, ws))
}
