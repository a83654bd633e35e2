package wm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/1broseidon/tiletree/internal/bus"
	"github.com/1broseidon/tiletree/internal/container"
	"github.com/1broseidon/tiletree/internal/layout"
)

type recordingSync struct {
	batches int
	pushed  map[container.Handle]container.Rect
	flags   map[container.Handle]layout.Flags
}

func (r *recordingSync) BeginBatch(count int) (layout.BatchID, error) {
	r.batches++
	r.pushed = make(map[container.Handle]container.Rect)
	r.flags = make(map[container.Handle]layout.Flags)
	return layout.BatchID(r.batches), nil
}

func (r *recordingSync) SetWindowPosition(_ layout.BatchID, h container.Handle, rect container.Rect, flags layout.Flags) error {
	r.pushed[h] = rect
	r.flags[h] = flags
	return nil
}

func (r *recordingSync) EndBatch(layout.BatchID) error { return nil }

type fakeFocuser struct {
	windows []container.Handle
	none    int
	err     error
}

func (f *fakeFocuser) FocusWindow(h container.Handle) error {
	f.windows = append(f.windows, h)
	return f.err
}

func (f *fakeFocuser) FocusNone() error {
	f.none++
	return f.err
}

type harness struct {
	tree    *container.Tree
	bus     *bus.Bus
	coord   *layout.Coordinator
	mgr     *Manager
	sync    *recordingSync
	focuser *fakeFocuser
	ws      container.NodeID
	focus   []FocusChanged
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tree := container.NewTree()
	mon := tree.NewMonitor("DP-1", container.Rect{Width: 1000, Height: 500})
	tree.Attach(mon, tree.Root(), 0)
	ws := tree.NewWorkspace("main", container.Horizontal)
	tree.Attach(ws, mon, 0)
	wn, _ := tree.Node(ws)
	wn.Rect = container.Rect{Width: 1000, Height: 500}

	h := &harness{
		tree:    tree,
		bus:     bus.New(logger),
		sync:    &recordingSync{},
		focuser: &fakeFocuser{},
		ws:      ws,
	}
	h.coord = layout.NewCoordinator(tree, h.sync, layout.StaticGaps{Gap: 10}, logger)
	h.coord.Register(h.bus)
	h.mgr = New(tree, h.coord, h.focuser, logger)
	h.mgr.Register(h.bus)
	bus.Subscribe(h.bus, "test", func(ctx context.Context, e FocusChanged) error {
		h.focus = append(h.focus, e)
		return nil
	})
	return h
}

func (h *harness) open(t *testing.T, handle container.Handle, floating bool) *container.Node {
	t.Helper()
	if err := h.mgr.onOpened(context.Background(), WindowOpened{
		Handle:    handle,
		Floating:  floating,
		Placement: container.Rect{X: 10, Y: 20, Width: 300, Height: 200},
	}); err != nil {
		t.Fatalf("open 0x%x: %v", handle, err)
	}
	n, ok := h.tree.FindWindowByHandle(handle)
	if !ok {
		t.Fatalf("window 0x%x not managed after open", handle)
	}
	return n
}

func (h *harness) assertClean(t *testing.T) {
	t.Helper()
	if err := h.tree.Validate(); err != nil {
		t.Fatalf("tree invalid: %v", err)
	}
	splits, containers := h.coord.Pending()
	if len(splits) != 0 || len(containers) != 0 {
		t.Fatalf("redraw sets not drained: %v %v", splits, containers)
	}
}

func TestMinimize_SoleWindowFocusesWorkspace(t *testing.T) {
	h := newHarness(t)
	h.open(t, 0xA, false)
	h.sync.pushed = nil

	if err := h.mgr.onMinimized(context.Background(), WindowMinimized{Handle: 0xA}); err != nil {
		t.Fatalf("minimize: %v", err)
	}

	n, _ := h.tree.FindWindowByHandle(0xA)
	if !n.IsWindow(container.ModeMinimized) {
		t.Fatalf("window mode = %s, want minimized", n.Window.Mode)
	}
	if n.Window.PreviousState != container.ModeTiling {
		t.Fatalf("previous state = %s", n.Window.PreviousState)
	}
	f, ok := h.tree.Focused()
	if !ok || f.ID != h.ws {
		t.Fatalf("focus should fall back to the workspace, got %v", f)
	}
	if h.focuser.none != 1 {
		t.Fatalf("expected native focus to be cleared once, got %d", h.focuser.none)
	}
	if _, pushed := h.sync.pushed[0xA]; pushed {
		t.Fatalf("minimized window must not be repositioned")
	}
	h.assertClean(t)
}

func TestMinimize_FocusesPreviousWindow(t *testing.T) {
	h := newHarness(t)
	a := h.open(t, 0xA, false)
	h.open(t, 0xB, false)

	if err := h.mgr.onMinimized(context.Background(), WindowMinimized{Handle: 0xB}); err != nil {
		t.Fatalf("minimize: %v", err)
	}

	f, ok := h.tree.Focused()
	if !ok || f.ID != a.ID {
		t.Fatalf("focus = %v, want window A", f)
	}
	if got := h.sync.pushed[0xA]; got != (container.Rect{Width: 1000, Height: 500}) {
		t.Fatalf("remaining window should fill the workspace, got %+v", got)
	}
	last := h.focus[len(h.focus)-1]
	if last.Handle != 0xA || last.Workspace != "main" {
		t.Fatalf("last FocusChanged = %+v", last)
	}
	h.assertClean(t)
}

func TestMinimize_KeepsPositionInParent(t *testing.T) {
	h := newHarness(t)
	h.open(t, 0xA, false)
	b := h.open(t, 0xB, false)
	h.open(t, 0xC, false)
	idx := h.tree.Index(b.ID)

	if err := h.mgr.onMinimized(context.Background(), WindowMinimized{Handle: 0xB}); err != nil {
		t.Fatalf("minimize: %v", err)
	}

	n, _ := h.tree.FindWindowByHandle(0xB)
	if n.Parent != h.ws || h.tree.Index(n.ID) != idx {
		t.Fatalf("placeholder at parent #%d index %d, want #%d index %d", n.Parent, h.tree.Index(n.ID), h.ws, idx)
	}
}

func TestMinimize_LiftsNestedTilingWindowToWorkspace(t *testing.T) {
	h := newHarness(t)
	h.open(t, 0xA, false)
	split := h.tree.NewSplit(container.Vertical)
	h.tree.Attach(split, h.ws, 1)
	w := h.tree.NewWindow(container.Window{Handle: 0xB})
	h.tree.Attach(w, split, 0)
	h.tree.SetFocused(w)

	if err := h.mgr.onMinimized(context.Background(), WindowMinimized{Handle: 0xB}); err != nil {
		t.Fatalf("minimize: %v", err)
	}

	n, _ := h.tree.FindWindowByHandle(0xB)
	if n.Parent != h.ws {
		t.Fatalf("minimized window parent = #%d, want workspace #%d", n.Parent, h.ws)
	}
	if _, ok := h.tree.Node(split); ok {
		t.Fatalf("emptied split should be removed")
	}
	h.assertClean(t)
}

func TestMinimizeRestore_RoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		floating bool
		maximize bool
		want     container.Mode
	}{
		{name: "tiling", want: container.ModeTiling},
		{name: "floating", floating: true, want: container.ModeFloating},
		{name: "maximized", maximize: true, want: container.ModeMaximized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.open(t, 0xA, false)
			w := h.open(t, 0xB, tt.floating)
			placement := w.Window.FloatingPlacement
			ctx := context.Background()

			if tt.maximize {
				if err := h.mgr.onMaximized(ctx, WindowMaximized{Handle: 0xB}); err != nil {
					t.Fatalf("maximize: %v", err)
				}
			}
			if err := h.mgr.onMinimized(ctx, WindowMinimized{Handle: 0xB}); err != nil {
				t.Fatalf("minimize: %v", err)
			}
			if err := h.mgr.onRestored(ctx, WindowRestored{Handle: 0xB}); err != nil {
				t.Fatalf("restore: %v", err)
			}

			n, _ := h.tree.FindWindowByHandle(0xB)
			if n.Window.Mode != tt.want {
				t.Fatalf("restored mode = %s, want %s", n.Window.Mode, tt.want)
			}
			if n.Window.FloatingPlacement != placement {
				t.Fatalf("placement = %+v, want %+v", n.Window.FloatingPlacement, placement)
			}
			if f, ok := h.tree.Focused(); !ok || f.ID != n.ID {
				t.Fatalf("restored window should be focused")
			}
			h.assertClean(t)
		})
	}
}

func TestRestore_TiledSharesRebalance(t *testing.T) {
	h := newHarness(t)
	h.open(t, 0xA, false)
	h.open(t, 0xB, false)
	ctx := context.Background()

	if err := h.mgr.onMinimized(ctx, WindowMinimized{Handle: 0xA}); err != nil {
		t.Fatalf("minimize: %v", err)
	}
	if err := h.mgr.onRestored(ctx, WindowRestored{Handle: 0xA}); err != nil {
		t.Fatalf("restore: %v", err)
	}

	for _, c := range h.tree.TiledChildren(h.ws) {
		if math.Abs(c.SizePercentage-0.5) > container.Epsilon {
			t.Fatalf("share = %v, want 0.5", c.SizePercentage)
		}
	}
	if got := h.sync.pushed[0xA]; got != (container.Rect{X: 0, Width: 495, Height: 500}) {
		t.Fatalf("restored rect = %+v", got)
	}
}

func TestRestore_NonMinimizedTilingIsNoop(t *testing.T) {
	h := newHarness(t)
	w := h.open(t, 0xA, false)
	batches := h.sync.batches

	if err := h.mgr.onRestored(context.Background(), WindowRestored{Handle: 0xA}); err != nil {
		t.Fatalf("restore: %v", err)
	}
	n, _ := h.tree.FindWindowByHandle(0xA)
	if n.ID != w.ID || h.sync.batches != batches {
		t.Fatalf("restoring a tiling window should do nothing")
	}
}

func TestUnmanagedHandlesAreIgnored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	before := h.tree.Len()

	if err := h.mgr.onMinimized(ctx, WindowMinimized{Handle: 0xDEAD}); err != nil {
		t.Fatalf("minimize unmanaged: %v", err)
	}
	if err := h.mgr.onClosed(ctx, WindowClosed{Handle: 0xDEAD}); err != nil {
		t.Fatalf("close unmanaged: %v", err)
	}
	if h.tree.Len() != before || h.sync.batches != 0 {
		t.Fatalf("unmanaged handle changed state")
	}
	if _, err := h.mgr.Managed(0xDEAD); !errors.Is(err, ErrNotManaged) {
		t.Fatalf("expected ErrNotManaged, got %v", err)
	}
}

func TestOpen_InsertsAfterFocusedWindow(t *testing.T) {
	h := newHarness(t)
	a := h.open(t, 0xA, false)
	h.open(t, 0xB, false)
	if err := h.mgr.onFocused(context.Background(), WindowFocused{Handle: 0xA}); err != nil {
		t.Fatalf("focus: %v", err)
	}

	c := h.open(t, 0xC, false)
	if got := h.tree.Index(c.ID); got != h.tree.Index(a.ID)+1 {
		t.Fatalf("new window index = %d, want right after A", got)
	}
	h.assertClean(t)
}

func TestClose_RemovesEmptySplitAndRefocuses(t *testing.T) {
	h := newHarness(t)
	a := h.open(t, 0xA, false)
	split := h.tree.NewSplit(container.Vertical)
	h.tree.Attach(split, h.ws, 1)
	w := h.tree.NewWindow(container.Window{Handle: 0xB})
	h.tree.Attach(w, split, 0)
	h.tree.SetFocused(w)

	if err := h.mgr.onClosed(context.Background(), WindowClosed{Handle: 0xB}); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, ok := h.tree.Node(split); ok {
		t.Fatalf("empty split should be removed")
	}
	if f, ok := h.tree.Focused(); !ok || f.ID != a.ID {
		t.Fatalf("focus should return to A")
	}
	if got := h.sync.pushed[0xA]; got.Width != 1000 {
		t.Fatalf("A should fill the workspace, got %+v", got)
	}
	h.assertClean(t)
}

func TestFullscreenUsesMonitorRect(t *testing.T) {
	h := newHarness(t)
	h.open(t, 0xA, false)

	if err := h.mgr.onFullscreened(context.Background(), WindowFullscreened{Handle: 0xA}); err != nil {
		t.Fatalf("fullscreen: %v", err)
	}
	n, _ := h.tree.FindWindowByHandle(0xA)
	if !n.IsWindow(container.ModeFullscreen) {
		t.Fatalf("mode = %s", n.Window.Mode)
	}
	if got := h.sync.pushed[0xA]; got != (container.Rect{Width: 1000, Height: 500}) {
		t.Fatalf("fullscreen rect = %+v", got)
	}
}

func TestFocusFailureStillRedraws(t *testing.T) {
	h := newHarness(t)
	h.open(t, 0xA, false)
	h.open(t, 0xB, false)
	h.focuser.err = errors.New("activation refused")
	batches := h.sync.batches

	err := h.mgr.onMinimized(context.Background(), WindowMinimized{Handle: 0xB})
	if err == nil || !errors.Is(err, h.focuser.err) {
		t.Fatalf("expected focus failure, got %v", err)
	}
	if h.sync.batches != batches+1 {
		t.Fatalf("redraw should still run after a focus failure")
	}
	n, _ := h.tree.FindWindowByHandle(0xB)
	if !n.IsWindow(container.ModeMinimized) {
		t.Fatalf("earlier steps must stay applied")
	}
}

func TestTransitionsThroughBus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bus.Publish(ctx, h.bus, WindowOpened{Handle: 0x1})
	bus.Publish(ctx, h.bus, WindowOpened{Handle: 0x2})
	bus.Publish(ctx, h.bus, WindowMinimized{Handle: 0x1})

	n, ok := h.tree.FindWindowByHandle(0x1)
	if !ok || !n.IsWindow(container.ModeMinimized) {
		t.Fatalf("minimize via bus did not apply")
	}
	if h.bus.Depth() != 0 {
		t.Fatalf("dispatch depth leaked: %d", h.bus.Depth())
	}

	resp := bus.Invoke(ctx, h.bus, SetWindowMode{Node: n.ID, Mode: container.ModeMinimized})
	if !resp.Failed() {
		t.Fatalf("SetWindowMode to minimized should fail")
	}
}

func TestFocusWorkspace_HidesSiblingWorkspace(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.open(t, 0xA, false)

	mon, _ := h.tree.MonitorOf(h.ws)
	web := h.tree.NewWorkspace("web", container.Horizontal)
	h.tree.Attach(web, mon.ID, -1)
	wn, _ := h.tree.Node(web)
	wn.Rect = container.Rect{Width: 1000, Height: 500}

	resp := bus.Invoke(ctx, h.bus, FocusWorkspace{Name: "web"})
	if resp.Failed() {
		t.Fatalf("focus workspace: %v", resp.Err)
	}
	if !h.sync.flags[0xA].Has(layout.FlagHide) {
		t.Fatalf("window of the left workspace should be hidden, flags %s", h.sync.flags[0xA])
	}

	h.open(t, 0xB, false)
	if got := h.sync.pushed[0xB]; got != (container.Rect{Width: 1000, Height: 500}) {
		t.Fatalf("window on the new workspace rect = %s", got)
	}

	batches := h.sync.batches
	resp = bus.Invoke(ctx, h.bus, FocusWorkspace{Name: "main"})
	if resp.Failed() {
		t.Fatalf("focus workspace: %v", resp.Err)
	}
	if h.sync.batches != batches+1 {
		t.Fatalf("switching back should redraw once")
	}
	if !h.sync.flags[0xA].Has(layout.FlagShow) || !h.sync.flags[0xB].Has(layout.FlagHide) {
		t.Fatalf("unexpected flags after switch: %v", h.sync.flags)
	}

	batches = h.sync.batches
	bus.Invoke(ctx, h.bus, FocusWorkspace{Name: "main"})
	if h.sync.batches != batches {
		t.Fatalf("focusing the visible workspace must not redraw")
	}
	h.assertClean(t)
}
