package daemon

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/1broseidon/tiletree/internal/bus"
	"github.com/1broseidon/tiletree/internal/container"
	"github.com/1broseidon/tiletree/internal/wm"
)

// Actions bindable to keys.
const (
	ActionMinimize      = "minimize"
	ActionRestoreAll    = "restore_all"
	ActionNextWorkspace = "next_workspace"
	ActionPrevWorkspace = "prev_workspace"
	ActionRedraw        = "redraw"
)

// Actions lists every name RunAction accepts.
var Actions = []string{
	ActionMinimize,
	ActionRestoreAll,
	ActionNextWorkspace,
	ActionPrevWorkspace,
	ActionRedraw,
}

var errNoFocusedWindow = errors.New("no focused window")

// RunAction performs a named action relative to the current focus.
func (d *Daemon) RunAction(ctx context.Context, name string) error {
	switch name {
	case ActionMinimize:
		var h container.Handle
		err := d.Do(ctx, func(context.Context) error {
			f, ok := d.tree.Focused()
			if !ok || f.Window == nil {
				return errNoFocusedWindow
			}
			h = f.Window.Handle
			return nil
		})
		if err != nil {
			return err
		}
		return d.Minimize(ctx, uint32(h))

	case ActionRestoreAll:
		return d.Do(ctx, d.restoreAll)

	case ActionNextWorkspace:
		return d.Do(ctx, func(ctx context.Context) error { return d.cycleWorkspace(ctx, 1) })

	case ActionPrevWorkspace:
		return d.Do(ctx, func(ctx context.Context) error { return d.cycleWorkspace(ctx, -1) })

	case ActionRedraw:
		_, err := d.Redraw(ctx)
		return err

	default:
		return fmt.Errorf("unknown action %q", name)
	}
}

// restoreAll restores every minimized window of the focused workspace.
func (d *Daemon) restoreAll(ctx context.Context) error {
	ws, ok := d.focusedWorkspace()
	if !ok {
		return nil
	}
	var handles []container.Handle
	for n := range d.tree.Flatten(ws.ID) {
		if n.IsWindow(container.ModeMinimized) {
			handles = append(handles, n.Window.Handle)
		}
	}
	var errs []error
	for _, h := range handles {
		if err := d.restore(ctx, h); err != nil {
			errs = append(errs, fmt.Errorf("restore 0x%x: %w", uint32(h), err))
		}
	}
	return errors.Join(errs...)
}

// cycleWorkspace focuses the workspace step positions away on the focused
// monitor, wrapping at either end.
func (d *Daemon) cycleWorkspace(ctx context.Context, step int) error {
	ws, ok := d.focusedWorkspace()
	if !ok {
		return nil
	}
	mon, ok := d.tree.MonitorOf(ws.ID)
	if !ok {
		return nil
	}
	siblings := d.tree.Children(mon.ID)
	if len(siblings) < 2 {
		return nil
	}
	i := slices.IndexFunc(siblings, func(n *container.Node) bool { return n.ID == ws.ID })
	next := siblings[(i+step+len(siblings))%len(siblings)]
	return bus.Invoke(ctx, d.bus, wm.FocusWorkspace{Name: next.Name}).Err
}

func (d *Daemon) focusedWorkspace() (*container.Node, bool) {
	f, ok := d.tree.Focused()
	if !ok {
		return nil, false
	}
	return d.tree.WorkspaceOf(f.ID)
}
