package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/tiletree/internal/config"
	"github.com/1broseidon/tiletree/internal/container"
	"github.com/1broseidon/tiletree/internal/ipc"
	"github.com/1broseidon/tiletree/internal/layout"
	"github.com/1broseidon/tiletree/internal/platform"
)

type update struct {
	handle container.Handle
	rect   container.Rect
	flags  layout.Flags
}

type fakeBackend struct {
	mu       sync.Mutex
	displays []platform.Display
	windows  []platform.Window
	active   platform.WindowID
	updates  []update
	batches  int
	focused  []container.Handle
	events   chan platform.Event
}

func (f *fakeBackend) BeginBatch(int) (layout.BatchID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	return layout.BatchID(f.batches), nil
}

func (f *fakeBackend) SetWindowPosition(_ layout.BatchID, h container.Handle, r container.Rect, flags layout.Flags) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update{h, r, flags})
	return nil
}

func (f *fakeBackend) EndBatch(layout.BatchID) error { return nil }

func (f *fakeBackend) FocusWindow(h container.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focused = append(f.focused, h)
	return nil
}

func (f *fakeBackend) FocusNone() error { return nil }

func (f *fakeBackend) Displays() ([]platform.Display, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.Display(nil), f.displays...), nil
}

func (f *fakeBackend) ActiveWindow() (platform.WindowID, error) { return f.active, nil }

func (f *fakeBackend) ListWindows() ([]platform.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.Window(nil), f.windows...), nil
}

func (f *fakeBackend) Close(platform.WindowID) error { return nil }

func (f *fakeBackend) Watch(ctx context.Context, sink func(platform.Event)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-f.events:
			sink(ev)
		}
	}
}

func (f *fakeBackend) last(h container.Handle) (update, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.updates) - 1; i >= 0; i-- {
		if f.updates[i].handle == h {
			return f.updates[i], true
		}
	}
	return update{}, false
}

// deiconified reports whether h was ever pushed with the deiconify flag.
func (f *fakeBackend) deiconified(h container.Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.ContainsFunc(f.updates, func(u update) bool {
		return u.handle == h && u.flags.Has(layout.FlagShow|layout.FlagDeiconify)
	})
}

var (
	left  = platform.Display{ID: 0, Name: "DP-1", Bounds: container.Rect{Width: 1000, Height: 530}, Usable: container.Rect{Y: 30, Width: 1000, Height: 500}}
	right = platform.Display{ID: 1, Name: "DP-2", Bounds: container.Rect{X: 1000, Width: 800, Height: 600}, Usable: container.Rect{X: 1000, Width: 800, Height: 600}}
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Workspaces = []string{"main", "web"}
	cfg.FloatingClasses = []string{"Pavucontrol"}
	return cfg
}

// start runs the control loop and returns the daemon once bootstrap is done.
func start(t *testing.T, backend *fakeBackend, cfg *config.Config) *Daemon {
	t.Helper()
	if backend.events == nil {
		backend.events = make(chan platform.Event)
	}
	d := New(Options{
		Config:  cfg,
		Backend: backend,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Serve(ctx) }()
	go NewEventSource(d).Serve(ctx)
	t.Cleanup(func() {
		cancel()
		<-done
	})

	if err := d.Do(ctx, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("daemon did not start: %v", err)
	}
	return d
}

// deliver feeds events through the backend watch. The trailing no-op event
// guarantees every real one has been queued on the control loop.
func deliver(backend *fakeBackend, events ...platform.Event) {
	for _, ev := range events {
		backend.events <- ev
	}
	backend.events <- platform.Event{Kind: platform.EventFocused}
}

// inspect runs fn on the control loop and fails the test with its error.
// fn must not call t.Fatal: it runs on the daemon's goroutine.
func inspect(t *testing.T, d *Daemon, fn func(tree *container.Tree) error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Do(ctx, func(context.Context) error {
		return fn(d.Containers())
	}); err != nil {
		t.Fatalf("inspect: %v", err)
	}
}

func TestBootstrap_BuildsMonitorsAndAdoptsWindows(t *testing.T) {
	backend := &fakeBackend{
		displays: []platform.Display{left, right},
		windows: []platform.Window{
			{ID: 0xA, AppID: "xterm"},
			{ID: 0xB, AppID: "pavucontrol", Bounds: container.Rect{X: 50, Y: 60, Width: 400, Height: 300}},
			{ID: 0xC, AppID: "xterm", State: platform.WindowState{Hidden: true}},
		},
		active: 0xA,
	}
	d := start(t, backend, testConfig())

	inspect(t, d, func(tree *container.Tree) error {
		if err := tree.Validate(); err != nil {
			return fmt.Errorf("tree invalid: %w", err)
		}
		var names []string
		for ws := range tree.Workspaces() {
			names = append(names, ws.Name)
		}
		if !slices.Equal(names, []string{"main", "web", "DP-2"}) {
			return fmt.Errorf("workspaces = %v", names)
		}
		main, _ := tree.WorkspaceByName("main")
		if main.Rect != left.Usable {
			return fmt.Errorf("workspace rect = %s, want usable area %s", main.Rect, left.Usable)
		}

		a, okA := tree.FindWindowByHandle(0xA)
		b, okB := tree.FindWindowByHandle(0xB)
		c, okC := tree.FindWindowByHandle(0xC)
		if !okA || !okB || !okC {
			return fmt.Errorf("windows not adopted: %v %v %v", okA, okB, okC)
		}
		if !a.IsWindow(container.ModeTiling) || !b.IsWindow(container.ModeFloating) || !c.IsWindow(container.ModeMinimized) {
			return fmt.Errorf("modes = %s %s %s", a.Window.Mode, b.Window.Mode, c.Window.Mode)
		}
		if f, ok := tree.Focused(); !ok || f.ID != a.ID {
			return fmt.Errorf("active window should be focused")
		}
		return nil
	})

	if u, ok := backend.last(0xA); !ok || u.rect != left.Usable {
		t.Fatalf("sole tiled window should fill the usable area, got %+v", u)
	}
	if u, ok := backend.last(0xB); !ok || u.rect != (container.Rect{X: 50, Y: 60, Width: 400, Height: 300}) {
		t.Fatalf("floating window should keep its placement, got %+v", u)
	}
}

func TestBootstrap_NoDisplays(t *testing.T) {
	d := New(Options{Backend: &fakeBackend{}, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	if err := d.Serve(context.Background()); err == nil {
		t.Fatalf("expected bootstrap error without displays")
	}
}

func TestEvents_FlowThroughControlLoop(t *testing.T) {
	backend := &fakeBackend{displays: []platform.Display{left}, events: make(chan platform.Event)}
	d := start(t, backend, testConfig())

	deliver(backend,
		platform.Event{Kind: platform.EventOpened, Window: 0x1, Info: platform.Window{ID: 0x1}},
		platform.Event{Kind: platform.EventOpened, Window: 0x2, Info: platform.Window{ID: 0x2}},
		platform.Event{Kind: platform.EventMinimized, Window: 0x1},
	)

	inspect(t, d, func(tree *container.Tree) error {
		n, ok := tree.FindWindowByHandle(0x1)
		if !ok || !n.IsWindow(container.ModeMinimized) {
			return fmt.Errorf("window 0x1 should be minimized")
		}
		m, ok := tree.FindWindowByHandle(0x2)
		if !ok || m.SizePercentage != 1 {
			return fmt.Errorf("remaining window should take the whole workspace")
		}
		return nil
	})

	deliver(backend,
		platform.Event{Kind: platform.EventRestored, Window: 0x1},
		platform.Event{Kind: platform.EventClosed, Window: 0x2},
	)

	inspect(t, d, func(tree *container.Tree) error {
		if _, ok := tree.FindWindowByHandle(0x2); ok {
			return fmt.Errorf("closed window still managed")
		}
		n, ok := tree.FindWindowByHandle(0x1)
		if !ok || !n.IsWindow(container.ModeTiling) {
			return fmt.Errorf("window 0x1 should be tiling again")
		}
		return nil
	})
}

func TestDisplaysChanged_MovesOrphanedWorkspaces(t *testing.T) {
	backend := &fakeBackend{displays: []platform.Display{left, right}, events: make(chan platform.Event)}
	d := start(t, backend, testConfig())

	err := d.Do(context.Background(), func(ctx context.Context) error {
		dp2, _ := d.tree.WorkspaceByName("DP-2")
		d.tree.SetFocused(dp2.ID)
		d.manage(ctx, platform.Window{ID: 0x7})
		return nil
	})
	if err != nil {
		t.Fatalf("manage: %v", err)
	}

	backend.mu.Lock()
	backend.displays = []platform.Display{left}
	backend.mu.Unlock()
	deliver(backend, platform.Event{Kind: platform.EventDisplaysChanged})

	inspect(t, d, func(tree *container.Tree) error {
		return checkMoved(tree, "DP-2", "DP-1", left.Usable, 0x7)
	})
	if u, ok := backend.last(0x7); !ok || !u.flags.Has(layout.FlagHide) {
		t.Fatalf("moved window should be pushed hidden, got %+v", u)
	}
}

func TestDisplaysChanged_FirstMonitorRemoved(t *testing.T) {
	backend := &fakeBackend{
		displays: []platform.Display{left, right},
		windows:  []platform.Window{{ID: 0x5}},
		events:   make(chan platform.Event),
	}
	d := start(t, backend, testConfig())

	backend.mu.Lock()
	backend.displays = []platform.Display{right}
	backend.mu.Unlock()
	deliver(backend, platform.Event{Kind: platform.EventDisplaysChanged})

	inspect(t, d, func(tree *container.Tree) error {
		var names []string
		for ws := range tree.Workspaces() {
			names = append(names, ws.Name)
		}
		if !slices.Equal(names, []string{"DP-2", "main", "web"}) {
			return fmt.Errorf("workspaces = %v", names)
		}
		return checkMoved(tree, "main", "DP-2", right.Usable, 0x5)
	})
}

// checkMoved verifies that workspace ws now lives on monitor mon with the
// given rect and that window h survived, hidden.
func checkMoved(tree *container.Tree, ws, mon string, rect container.Rect, h container.Handle) error {
	if err := tree.Validate(); err != nil {
		return fmt.Errorf("tree invalid: %w", err)
	}
	w, ok := tree.WorkspaceByName(ws)
	if !ok {
		return fmt.Errorf("workspace %s of the removed monitor was dropped", ws)
	}
	m, ok := tree.MonitorOf(w.ID)
	if !ok || m.Name != mon || w.Rect != rect {
		return fmt.Errorf("workspace %s not moved to %s: rect %s", ws, mon, w.Rect)
	}
	n, ok := tree.FindWindowByHandle(h)
	if !ok {
		return fmt.Errorf("window 0x%x no longer managed", uint32(h))
	}
	if !n.Window.Hidden {
		return fmt.Errorf("windows of a moved workspace should be hidden")
	}
	return nil
}

func TestReconciler_FixesDrift(t *testing.T) {
	backend := &fakeBackend{
		displays: []platform.Display{left},
		windows:  []platform.Window{{ID: 0x1}, {ID: 0x2}},
	}
	d := start(t, backend, testConfig())

	live := []platform.Window{{ID: 0x2}, {ID: 0x3}}
	r := NewReconciler(ReconcilerConfig{Interval: time.Hour}, d, func() ([]platform.Window, error) {
		return live, nil
	})
	if err := r.ReconcileNow(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	inspect(t, d, func(tree *container.Tree) error {
		if _, ok := tree.FindWindowByHandle(0x1); ok {
			return fmt.Errorf("vanished window still managed")
		}
		if _, ok := tree.FindWindowByHandle(0x3); !ok {
			return fmt.Errorf("new window not adopted")
		}
		return nil
	})

	failing := NewReconciler(ReconcilerConfig{}, d, func() ([]platform.Window, error) {
		return nil, errors.New("connection lost")
	})
	if err := failing.ReconcileNow(context.Background()); err == nil {
		t.Fatalf("expected lister error")
	}
}

func TestHandler_MinimizeRestoreFocus(t *testing.T) {
	backend := &fakeBackend{
		displays: []platform.Display{left},
		windows:  []platform.Window{{ID: 0x1}, {ID: 0x2}},
	}
	d := start(t, backend, testConfig())
	ctx := context.Background()

	if err := d.Minimize(ctx, 0x1); err != nil {
		t.Fatalf("minimize: %v", err)
	}
	if u, ok := backend.last(0x1); !ok || !u.flags.Has(layout.FlagHide) {
		t.Fatalf("minimize should hide natively, got %+v", u)
	}
	st, err := d.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Windows != 2 || st.Minimized != 1 || st.FocusedWindow != 0x2 || st.FocusedWorkspace != "main" {
		t.Fatalf("unexpected status %+v", st)
	}

	if err := d.Restore(ctx, 0x1); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if u, ok := backend.last(0x1); !ok || !u.flags.Has(layout.FlagShow|layout.FlagDeiconify) {
		t.Fatalf("restore should show the window, got %+v", u)
	}

	if err := d.Focus(ctx, 0x2); err != nil {
		t.Fatalf("focus: %v", err)
	}
	if err := d.Focus(ctx, 0x99); err == nil {
		t.Fatalf("expected error for unmanaged window")
	}

	tree, err := d.Tree(ctx)
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	focused := 0
	tree.Walk(func(n *ipc.TreeNode, _ int) bool {
		if n.Focused {
			focused++
			if n.Window != 0x2 {
				t.Errorf("focused node is %+v", n)
			}
		}
		return true
	})
	if focused != 1 {
		t.Fatalf("expected exactly one focused node, got %d", focused)
	}

	res, err := d.Redraw(ctx)
	if err != nil {
		t.Fatalf("redraw: %v", err)
	}
	if res.Windows != 2 {
		t.Fatalf("redraw pushed %d windows, want 2", res.Windows)
	}
}

func TestHandler_RestoreDeiconifiesNativelyMinimized(t *testing.T) {
	backend := &fakeBackend{
		displays: []platform.Display{left},
		windows:  []platform.Window{{ID: 0x1}, {ID: 0x2}, {ID: 0x3}},
		events:   make(chan platform.Event),
	}
	d := start(t, backend, testConfig())
	ctx := context.Background()

	// Minimized by the user, not through the daemon.
	deliver(backend,
		platform.Event{Kind: platform.EventMinimized, Window: 0x1},
		platform.Event{Kind: platform.EventMinimized, Window: 0x2},
		platform.Event{Kind: platform.EventMinimized, Window: 0x3},
	)

	if err := d.Restore(ctx, 0x1); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if err := d.RunAction(ctx, ActionRestoreAll); err != nil {
		t.Fatalf("restore_all: %v", err)
	}

	for _, h := range []container.Handle{0x1, 0x2, 0x3} {
		if !backend.deiconified(h) {
			t.Errorf("window 0x%x not deiconified", uint32(h))
		}
	}
}

func TestHandler_Reload(t *testing.T) {
	backend := &fakeBackend{displays: []platform.Display{left}, windows: []platform.Window{{ID: 0x1}}}
	next := testConfig()
	next.Workspaces = append(next.Workspaces, "chat")
	next.InnerGapPx = 0
	next.Padding = config.Margins{Left: 20}

	d := New(Options{
		Config:     testConfig(),
		Backend:    backend,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		LoadConfig: func() (*config.Config, error) { return next, nil },
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Serve(ctx)

	if err := d.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	inspect(t, d, func(tree *container.Tree) error {
		if _, ok := tree.WorkspaceByName("chat"); !ok {
			return fmt.Errorf("new workspace not created on reload")
		}
		return nil
	})
	want := container.Rect{X: 20, Y: 30, Width: 980, Height: 500}
	if u, ok := backend.last(0x1); !ok || u.rect != want {
		t.Fatalf("padding not applied after reload: got %+v want %s", u, want)
	}
}

func TestDo_RecoversPanics(t *testing.T) {
	d := start(t, &fakeBackend{displays: []platform.Display{left}}, testConfig())

	err := d.Do(context.Background(), func(context.Context) error {
		d.tree.Detach(d.tree.Root())
		return nil
	})
	if err == nil {
		t.Fatalf("expected panic to surface as an error")
	}
	if err := d.Do(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("control loop should survive a panic: %v", err)
	}
}

func TestDo_CancelledContext(t *testing.T) {
	d := New(Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for range cap(d.ops) {
		d.ops <- op{fn: func(context.Context) error { return nil }}
	}
	if err := d.Do(ctx, func(context.Context) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestActionsMatchBindableConfig(t *testing.T) {
	if !slices.Equal(Actions, config.BindableActions) {
		t.Fatalf("Actions = %v, config.BindableActions = %v", Actions, config.BindableActions)
	}
}

func TestRunAction(t *testing.T) {
	backend := &fakeBackend{
		displays: []platform.Display{left},
		windows:  []platform.Window{{ID: 0x1}, {ID: 0x2}},
		active:   0x2,
	}
	d := start(t, backend, testConfig())
	ctx := context.Background()

	mode := func(h container.Handle) container.Mode {
		var m container.Mode
		inspect(t, d, func(tree *container.Tree) error {
			n, ok := tree.FindWindowByHandle(h)
			if !ok {
				return fmt.Errorf("window 0x%x not managed", uint32(h))
			}
			m = n.Window.Mode
			return nil
		})
		return m
	}
	focusedWorkspace := func() string {
		st, err := d.Status(ctx)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		return st.FocusedWorkspace
	}

	if err := d.RunAction(ctx, ActionMinimize); err != nil {
		t.Fatalf("minimize focused: %v", err)
	}
	if mode(0x2) != container.ModeMinimized {
		t.Fatalf("focused window 0x2 should be minimized")
	}
	if err := d.RunAction(ctx, ActionMinimize); err != nil {
		t.Fatalf("minimize next focused: %v", err)
	}
	if mode(0x1) != container.ModeMinimized {
		t.Fatalf("window 0x1 should be minimized once focus moved to it")
	}
	if err := d.RunAction(ctx, ActionMinimize); !errors.Is(err, errNoFocusedWindow) {
		t.Fatalf("expected errNoFocusedWindow with only the workspace focused, got %v", err)
	}

	if err := d.RunAction(ctx, ActionRestoreAll); err != nil {
		t.Fatalf("restore_all: %v", err)
	}
	if mode(0x1) != container.ModeTiling || mode(0x2) != container.ModeTiling {
		t.Fatalf("restore_all left windows minimized")
	}

	if err := d.RunAction(ctx, ActionNextWorkspace); err != nil {
		t.Fatalf("next_workspace: %v", err)
	}
	if got := focusedWorkspace(); got != "web" {
		t.Fatalf("focused workspace = %q, want web", got)
	}
	if err := d.RunAction(ctx, ActionNextWorkspace); err != nil {
		t.Fatalf("next_workspace wrap: %v", err)
	}
	if got := focusedWorkspace(); got != "main" {
		t.Fatalf("next_workspace should wrap to main, got %q", got)
	}
	if err := d.RunAction(ctx, ActionPrevWorkspace); err != nil {
		t.Fatalf("prev_workspace: %v", err)
	}
	if got := focusedWorkspace(); got != "web" {
		t.Fatalf("prev_workspace should wrap to web, got %q", got)
	}

	if err := d.RunAction(ctx, ActionRedraw); err != nil {
		t.Fatalf("redraw: %v", err)
	}
	if err := d.RunAction(ctx, "undo"); err == nil {
		t.Fatalf("expected error for unknown action")
	}
}
