package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/1broseidon/tiletree/internal/bus"
	"github.com/1broseidon/tiletree/internal/container"
	"github.com/1broseidon/tiletree/internal/ipc"
	"github.com/1broseidon/tiletree/internal/layout"
	"github.com/1broseidon/tiletree/internal/wm"
)

var _ ipc.Handler = (*Daemon)(nil)

// Status summarizes the tree.
func (d *Daemon) Status(ctx context.Context) (ipc.StatusData, error) {
	var st ipc.StatusData
	err := d.Do(ctx, func(context.Context) error {
		st = ipc.StatusData{
			Monitors:      len(d.monitors),
			UptimeSeconds: int64(time.Since(d.started).Seconds()),
			DaemonRunning: true,
		}
		for range d.tree.Workspaces() {
			st.Workspaces++
		}
		for n := range d.tree.Windows() {
			st.Windows++
			if n.IsWindow(container.ModeMinimized) {
				st.Minimized++
			}
		}
		if f, ok := d.tree.Focused(); ok {
			if ws, ok := d.tree.WorkspaceOf(f.ID); ok {
				st.FocusedWorkspace = ws.Name
			}
			if f.Window != nil {
				st.FocusedWindow = uint32(f.Window.Handle)
			}
		}
		return nil
	})
	return st, err
}

// Tree returns a snapshot of the whole container tree.
func (d *Daemon) Tree(ctx context.Context) (ipc.TreeNode, error) {
	var snap ipc.TreeNode
	err := d.Do(ctx, func(context.Context) error {
		snap = Snapshot(d.tree, d.tree.Root())
		return nil
	})
	return snap, err
}

// Minimize hides a managed window and runs the minimize transition.
func (d *Daemon) Minimize(ctx context.Context, window uint32) error {
	h := container.Handle(window)
	return d.Do(ctx, func(ctx context.Context) error {
		n, err := d.manager.Managed(h)
		if err != nil {
			return err
		}
		if n.IsWindow(container.ModeMinimized) {
			return nil
		}
		if err := d.push(n, layout.FlagNoActivate|layout.FlagHide); err != nil {
			return err
		}
		bus.Publish(ctx, d.bus, wm.WindowMinimized{Handle: h})
		return d.expectMode(h, true, "minimize")
	})
}

// Restore runs the restore transition for a managed window.
func (d *Daemon) Restore(ctx context.Context, window uint32) error {
	h := container.Handle(window)
	return d.Do(ctx, func(ctx context.Context) error {
		if _, err := d.manager.Managed(h); err != nil {
			return err
		}
		return d.restore(ctx, h)
	})
}

// restore runs the restore transition and then un-iconifies the window
// natively, since it may have been minimized outside the daemon.
func (d *Daemon) restore(ctx context.Context, h container.Handle) error {
	bus.Publish(ctx, d.bus, wm.WindowRestored{Handle: h})
	if err := d.expectMode(h, false, "restore"); err != nil {
		return err
	}
	n, err := d.manager.Managed(h)
	if err != nil || n.Window.Hidden {
		return err
	}
	return d.push(n, layout.FlagNoActivate|layout.FlagShow|layout.FlagDeiconify)
}

// Focus focuses a managed window, switching to its workspace first when
// that workspace is not visible.
func (d *Daemon) Focus(ctx context.Context, window uint32) error {
	h := container.Handle(window)
	return d.Do(ctx, func(ctx context.Context) error {
		n, err := d.manager.Managed(h)
		if err != nil {
			return err
		}
		if n.IsWindow(container.ModeMinimized) {
			return fmt.Errorf("window 0x%x is minimized", window)
		}
		if n.Window.Hidden {
			ws, _ := d.tree.WorkspaceOf(n.ID)
			if resp := bus.Invoke(ctx, d.bus, wm.FocusWorkspace{Name: ws.Name}); resp.Failed() {
				return resp.Err
			}
		}
		return bus.Invoke(ctx, d.bus, wm.FocusWindow{Node: n.ID}).Err
	})
}

// Redraw lays out every workspace.
func (d *Daemon) Redraw(ctx context.Context) (ipc.RedrawData, error) {
	var out ipc.RedrawData
	err := d.Do(ctx, func(ctx context.Context) error {
		for ws := range d.tree.Workspaces() {
			d.coord.MarkContainer(ws.ID)
		}
		resp := bus.Invoke(ctx, d.bus, layout.RedrawContainers{})
		if resp.Failed() {
			return resp.Err
		}
		if res, ok := resp.Data.(layout.RedrawResult); ok {
			out = ipc.RedrawData{Arranged: res.Arranged, Windows: res.Windows}
		}
		return nil
	})
	return out, err
}

// Reload reads the config again and applies it.
func (d *Daemon) Reload(ctx context.Context) error {
	cfg, err := d.loadConfig()
	if err != nil {
		return err
	}
	err = d.Do(ctx, func(ctx context.Context) error {
		return d.reconfigure(ctx, cfg)
	})
	if err == nil {
		d.logger.Info("config reloaded")
	}
	return err
}

// push sends n at its current rect with flags in a one-window batch.
func (d *Daemon) push(n *container.Node, flags layout.Flags) error {
	if d.backend == nil {
		return nil
	}
	batch, err := d.backend.BeginBatch(1)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	serr := d.backend.SetWindowPosition(batch, n.Window.Handle, n.Rect, flags)
	eerr := d.backend.EndBatch(batch)
	if serr != nil {
		return serr
	}
	return eerr
}

func (d *Daemon) expectMode(h container.Handle, minimized bool, verb string) error {
	n, err := d.manager.Managed(h)
	if err != nil {
		return err
	}
	if n.IsWindow(container.ModeMinimized) != minimized {
		return fmt.Errorf("%s 0x%x did not apply", verb, uint32(h))
	}
	return nil
}

// Snapshot copies the subtree at id into an ipc.TreeNode.
func Snapshot(t *container.Tree, id container.NodeID) ipc.TreeNode {
	n, ok := t.Node(id)
	if !ok {
		return ipc.TreeNode{}
	}
	out := ipc.TreeNode{
		ID:         uint64(n.ID),
		Kind:       n.Kind.String(),
		Name:       n.Name,
		Rect:       ipc.Rect{X: n.Rect.X, Y: n.Rect.Y, Width: n.Rect.Width, Height: n.Rect.Height},
		Percentage: n.SizePercentage,
	}
	if n.IsSplitLike() {
		out.Orientation = n.Orientation.String()
	}
	if w := n.Window; w != nil {
		out.Window = uint32(w.Handle)
		out.Mode = w.Mode.String()
		out.Hidden = w.Hidden
		if w.Mode == container.ModeMinimized {
			out.Previous = w.PreviousState.String()
		}
	}
	if f, ok := t.Focused(); ok && f.ID == n.ID {
		out.Focused = true
	}
	for _, c := range t.Children(id) {
		out.Children = append(out.Children, Snapshot(t, c.ID))
	}
	return out
}
