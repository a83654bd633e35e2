package daemon

import (
	"context"
	"fmt"
	"slices"

	"github.com/1broseidon/tiletree/internal/bus"
	"github.com/1broseidon/tiletree/internal/container"
	"github.com/1broseidon/tiletree/internal/platform"
	"github.com/1broseidon/tiletree/internal/wm"
)

type monitor struct {
	node   container.NodeID
	usable container.Rect
}

// HandleEvent translates a window-system event into bus traffic. It must
// run on the control goroutine.
func (d *Daemon) HandleEvent(ctx context.Context, ev platform.Event) error {
	d.logger.Debug("window event", "kind", ev.Kind.String(), "window", fmt.Sprintf("0x%x", uint32(ev.Window)))

	switch ev.Kind {
	case platform.EventOpened:
		d.manage(ctx, ev.Info)
	case platform.EventClosed:
		bus.Publish(ctx, d.bus, wm.WindowClosed{Handle: ev.Window})
	case platform.EventFocused:
		bus.Publish(ctx, d.bus, wm.WindowFocused{Handle: ev.Window})
	case platform.EventMinimized:
		bus.Publish(ctx, d.bus, wm.WindowMinimized{Handle: ev.Window})
	case platform.EventRestored:
		bus.Publish(ctx, d.bus, wm.WindowRestored{Handle: ev.Window})
	case platform.EventMaximized:
		bus.Publish(ctx, d.bus, wm.WindowMaximized{Handle: ev.Window})
	case platform.EventFullscreened:
		bus.Publish(ctx, d.bus, wm.WindowFullscreened{Handle: ev.Window})
	case platform.EventDisplaysChanged:
		return d.refreshDisplays(ctx)
	default:
		return fmt.Errorf("unknown event kind %s", ev.Kind)
	}
	return nil
}

// manage opens w in the tree and replays the native state it already has.
func (d *Daemon) manage(ctx context.Context, w platform.Window) {
	if _, ok := d.tree.FindWindowByHandle(w.ID); ok {
		return
	}
	bus.Publish(ctx, d.bus, wm.WindowOpened{
		Handle:    w.ID,
		Placement: w.Bounds,
		Floating:  w.Transient || w.Sticky || d.cfg.IsFloatingClass(w.AppID),
	})

	switch {
	case w.State.Hidden:
		bus.Publish(ctx, d.bus, wm.WindowMinimized{Handle: w.ID})
	case w.State.Fullscreen:
		bus.Publish(ctx, d.bus, wm.WindowFullscreened{Handle: w.ID})
	case w.State.Maximized:
		bus.Publish(ctx, d.bus, wm.WindowMaximized{Handle: w.ID})
	}
}

// refreshDisplays re-reads the displays after a screen change.
func (d *Daemon) refreshDisplays(ctx context.Context) error {
	displays, err := d.backend.Displays()
	if err != nil {
		return fmt.Errorf("list displays: %w", err)
	}
	if len(displays) == 0 {
		d.logger.Warn("screen change left no displays; keeping the current layout")
		return nil
	}
	d.syncDisplays(displays)
	for ws := range d.tree.Workspaces() {
		d.coord.MarkContainer(ws.ID)
	}
	_, err = d.coord.Redraw(ctx)
	return err
}

// syncDisplays makes the monitor nodes match displays. The first monitor
// ever created receives the configured workspaces; later monitors get one
// workspace named after the output. Workspaces of a vanished monitor move
// to the first remaining one, hidden.
func (d *Daemon) syncDisplays(displays []platform.Display) {
	live := make(map[int]struct{}, len(displays))
	for _, disp := range displays {
		live[disp.ID] = struct{}{}

		m, ok := d.monitors[disp.ID]
		if !ok {
			first := len(d.monitors) == 0
			m = monitor{node: d.tree.NewMonitor(disp.Name, disp.Bounds)}
			d.tree.Attach(m.node, d.tree.Root(), -1)
			if first {
				for _, name := range d.cfg.Workspaces {
					d.addWorkspace(name, m.node)
				}
			} else {
				d.addWorkspace(d.uniqueWorkspaceName(disp.Name), m.node)
			}
			d.logger.Info("monitor added", "name", disp.Name, "bounds", disp.Bounds.String())
		}
		m.usable = disp.Usable
		d.monitors[disp.ID] = m

		mon, _ := d.tree.Node(m.node)
		mon.Rect = disp.Bounds
		for _, ws := range d.tree.Children(m.node) {
			ws.Rect = disp.Usable
		}
	}

	target, ok := d.firstMonitorWhere(func(id int) bool {
		_, ok := live[id]
		return ok
	})
	if !ok {
		return
	}
	var gone []int
	for id := range d.monitors {
		if _, ok := live[id]; !ok {
			gone = append(gone, id)
		}
	}
	slices.Sort(gone)
	for _, id := range gone {
		m := d.monitors[id]
		for _, ws := range d.tree.Children(m.node) {
			d.tree.Move(ws.ID, target.node, -1)
			ws.Rect = target.usable
			for n := range d.tree.Flatten(ws.ID) {
				if n.Window != nil {
					n.Window.Hidden = true
				}
			}
		}
		mon, _ := d.tree.Node(m.node)
		d.logger.Info("monitor removed", "name", mon.Name)
		d.tree.Detach(m.node)
		d.tree.Delete(m.node)
		delete(d.monitors, id)
	}
}

// firstMonitor returns the attached monitor that comes first in the tree.
func (d *Daemon) firstMonitor() (monitor, bool) {
	return d.firstMonitorWhere(func(int) bool { return true })
}

// firstMonitorWhere is firstMonitor restricted to display ids keep accepts.
func (d *Daemon) firstMonitorWhere(keep func(id int) bool) (monitor, bool) {
	for _, n := range d.tree.Children(d.tree.Root()) {
		for id, m := range d.monitors {
			if m.node == n.ID && keep(id) {
				return m, true
			}
		}
	}
	return monitor{}, false
}

func (d *Daemon) addWorkspace(name string, mon container.NodeID) {
	ws := d.tree.NewWorkspace(name, d.cfg.Orientation())
	d.tree.Attach(ws, mon, -1)
	n, _ := d.tree.Node(ws)
	for _, m := range d.monitors {
		if m.node == mon {
			n.Rect = m.usable
		}
	}
}

func (d *Daemon) uniqueWorkspaceName(base string) string {
	name := base
	for i := 2; ; i++ {
		if _, exists := d.tree.WorkspaceByName(name); !exists {
			return name
		}
		name = fmt.Sprintf("%s-%d", base, i)
	}
}
