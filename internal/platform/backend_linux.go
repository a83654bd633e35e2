//go:build linux

package platform

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/1broseidon/tiletree/internal/layout"
	"github.com/1broseidon/tiletree/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
)

// LinuxBackend wraps an X11 connection behind the platform Backend interface.
type LinuxBackend struct {
	conn *x11.Connection

	mu         sync.Mutex
	batch      layout.BatchID
	open       bool
	selfHidden map[WindowID]struct{}
}

var _ Backend = (*LinuxBackend)(nil)

// NewLinuxBackend creates a Linux platform backend from an existing X11 connection.
func NewLinuxBackend(conn *x11.Connection) *LinuxBackend {
	return &LinuxBackend{conn: conn, selfHidden: make(map[WindowID]struct{})}
}

// NewLinuxBackendFromDisplay creates a new Linux backend by opening a fresh
// X11 connection to display ("" means $DISPLAY).
func NewLinuxBackendFromDisplay(display string) (*LinuxBackend, error) {
	conn, err := x11.NewConnection(display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	return NewLinuxBackend(conn), nil
}

// Disconnect closes the underlying X11 connection.
func (b *LinuxBackend) Disconnect() {
	if b != nil && b.conn != nil {
		b.conn.Close()
	}
}

// XUtil exposes the xgbutil handle for key grabs.
func (b *LinuxBackend) XUtil() *xgbutil.XUtil {
	if b == nil || b.conn == nil {
		return nil
	}
	return b.conn.XUtil
}

// RootWindow returns the root window of the default screen.
func (b *LinuxBackend) RootWindow() xproto.Window {
	if b == nil || b.conn == nil {
		return 0
	}
	return b.conn.Root
}

func (b *LinuxBackend) connection() (*x11.Connection, error) {
	if b == nil || b.conn == nil {
		return nil, fmt.Errorf("x11 backend connection is nil")
	}
	return b.conn, nil
}

// Displays returns all active displays with their work areas.
func (b *LinuxBackend) Displays() ([]Display, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	monitors, err := conn.GetMonitors()
	if err != nil {
		return nil, err
	}

	displays := make([]Display, 0, len(monitors))
	for _, m := range monitors {
		work := conn.WorkArea(m)
		displays = append(displays, Display{
			ID:     m.ID,
			Name:   m.Name,
			Bounds: Rect{X: m.X, Y: m.Y, Width: m.Width, Height: m.Height},
			Usable: Rect{X: work.X, Y: work.Y, Width: work.Width, Height: work.Height},
		})
	}

	sort.Slice(displays, func(i, j int) bool {
		return displays[i].ID < displays[j].ID
	})

	return displays, nil
}

// ActiveWindow returns the currently active/focused window ID.
func (b *LinuxBackend) ActiveWindow() (WindowID, error) {
	conn, err := b.connection()
	if err != nil {
		return 0, err
	}
	wid, err := conn.GetActiveWindow()
	if err != nil {
		return 0, err
	}
	return WindowID(wid), nil
}

// ListWindows lists every normal client window. Desktop membership is
// ignored: workspaces are owned by the tree, not by _NET_WM_DESKTOP.
func (b *LinuxBackend) ListWindows() ([]Window, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	clients, err := conn.ClientList()
	if err != nil {
		return nil, err
	}

	windows := make([]Window, 0, len(clients))
	for _, windowID := range clients {
		if !conn.IsNormalWindow(windowID) {
			continue
		}
		windows = append(windows, b.describe(windowID))
	}

	sort.Slice(windows, func(i, j int) bool {
		return windows[i].ID < windows[j].ID
	})
	return windows, nil
}

func (b *LinuxBackend) describe(windowID xproto.Window) Window {
	conn := b.conn
	w := Window{
		ID:        WindowID(windowID),
		PID:       conn.PID(windowID),
		AppID:     conn.Class(windowID),
		Title:     conn.Title(windowID),
		State:     StateFromAtoms(conn.States(windowID)),
		Transient: conn.IsTransient(windowID),
	}
	if desktop, err := conn.GetWindowDesktop(windowID); err == nil && desktop == -1 {
		w.Sticky = true
	}
	if x, y, width, height, err := conn.Geometry(windowID); err == nil {
		w.Bounds = Rect{X: x, Y: y, Width: width, Height: height}
	}
	return w
}

// BeginBatch grabs the server so the following updates apply together.
func (b *LinuxBackend) BeginBatch(count int) (layout.BatchID, error) {
	conn, err := b.connection()
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open {
		return 0, fmt.Errorf("batch %d still open", b.batch)
	}
	if err := conn.GrabServer(); err != nil {
		return 0, fmt.Errorf("grab server: %w", err)
	}
	b.batch++
	b.open = true
	return b.batch, nil
}

// SetWindowPosition applies one update inside an open batch.
func (b *LinuxBackend) SetWindowPosition(batch layout.BatchID, handle WindowID, rect Rect, flags layout.Flags) error {
	b.mu.Lock()
	if !b.open || batch != b.batch {
		b.mu.Unlock()
		return fmt.Errorf("batch %d is not open", batch)
	}
	win := xproto.Window(handle)
	if flags.Has(layout.FlagHide) {
		b.selfHidden[handle] = struct{}{}
		b.mu.Unlock()
		return b.conn.Iconify(win)
	}
	_, wasHidden := b.selfHidden[handle]
	delete(b.selfHidden, handle)
	b.mu.Unlock()

	if flags.Has(layout.FlagShow) && (wasHidden || flags.Has(layout.FlagDeiconify)) {
		if err := b.conn.Map(win); err != nil {
			return err
		}
	}
	return b.conn.MoveResizeWindow(win, rect.X, rect.Y, rect.Width, rect.Height)
}

// EndBatch releases the server grab and waits for the server to catch up.
func (b *LinuxBackend) EndBatch(batch layout.BatchID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open || batch != b.batch {
		return fmt.Errorf("batch %d is not open", batch)
	}
	b.open = false
	if err := b.conn.UngrabServer(); err != nil {
		return fmt.Errorf("ungrab server: %w", err)
	}
	b.conn.Sync()
	return nil
}

// FocusWindow activates a window.
func (b *LinuxBackend) FocusWindow(h WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.FocusWindow(xproto.Window(h))
}

// FocusNone leaves no client focused.
func (b *LinuxBackend) FocusNone() error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.FocusRoot()
}

// Close requests graceful window close via WM_DELETE_WINDOW.
func (b *LinuxBackend) Close(windowID WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}

	deleteReply, err := xproto.InternAtom(conn.XUtil.Conn(), false, uint16(len("WM_DELETE_WINDOW")), "WM_DELETE_WINDOW").Reply()
	if err != nil {
		return err
	}
	protocolsReply, err := xproto.InternAtom(conn.XUtil.Conn(), false, uint16(len("WM_PROTOCOLS")), "WM_PROTOCOLS").Reply()
	if err != nil {
		return err
	}

	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: xproto.Window(windowID),
		Type:   protocolsReply.Atom,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{uint32(deleteReply.Atom), 0, 0, 0, 0}),
	}

	return xproto.SendEventChecked(
		conn.XUtil.Conn(),
		false,
		xproto.Window(windowID),
		xproto.EventMaskNoEvent,
		string(ev.Bytes()),
	).Check()
}

// Watch translates X11 notifications into Events until ctx is done.
func (b *LinuxBackend) Watch(ctx context.Context, sink func(Event)) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}

	known := make(map[WindowID]WindowState)
	if clients, err := conn.ClientList(); err == nil {
		for _, win := range clients {
			known[WindowID(win)] = StateFromAtoms(conn.States(win))
		}
	}

	err = conn.Watch(x11.Listener{
		ClientsChanged: func(clients []xproto.Window) {
			live := make(map[WindowID]struct{}, len(clients))
			for _, win := range clients {
				id := WindowID(win)
				live[id] = struct{}{}
				if _, ok := known[id]; ok || !conn.IsNormalWindow(win) {
					continue
				}
				info := b.describe(win)
				known[id] = info.State
				sink(Event{Kind: EventOpened, Window: id, Info: info})
			}
			for id := range known {
				if _, ok := live[id]; !ok {
					delete(known, id)
					sink(Event{Kind: EventClosed, Window: id})
				}
			}
		},
		ActiveChanged: func(active xproto.Window) {
			if active != 0 {
				sink(Event{Kind: EventFocused, Window: WindowID(active)})
			}
		},
		StateChanged: func(win xproto.Window, states []string) {
			id := WindowID(win)
			prev, ok := known[id]
			if !ok {
				return
			}
			next := StateFromAtoms(states)
			known[id] = next

			b.mu.Lock()
			_, self := b.selfHidden[id]
			b.mu.Unlock()
			if self && next.Hidden {
				return
			}
			if kind, ok := Transition(prev, next); ok {
				sink(Event{Kind: kind, Window: id})
			}
		},
		ScreenChanged: func() {
			sink(Event{Kind: EventDisplaysChanged})
		},
	})
	if err != nil {
		return fmt.Errorf("watch x11 events: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.EventLoop()
	}()

	select {
	case <-ctx.Done():
		conn.Quit()
		<-done
		return ctx.Err()
	case <-done:
		return fmt.Errorf("x11 event loop exited")
	}
}
