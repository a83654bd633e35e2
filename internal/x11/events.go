package x11

import (
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/BurntSushi/xgbutil/xwindow"
)

// Listener receives window-manager state changes observed on the display.
// Callbacks run on the goroutine executing EventLoop.
type Listener struct {
	ClientsChanged func(clients []xproto.Window)
	ActiveChanged  func(active xproto.Window)
	StateChanged   func(win xproto.Window, states []string)
	ScreenChanged  func()
}

// Watch subscribes to root and client property changes and RandR screen
// changes. Events are delivered while EventLoop runs.
func (c *Connection) Watch(l Listener) error {
	root := xwindow.New(c.XUtil, c.Root)
	if err := root.Listen(xproto.EventMaskPropertyChange, xproto.EventMaskStructureNotify); err != nil {
		return err
	}

	watched := make(map[xproto.Window]struct{})
	watchClient := func(win xproto.Window) {
		if _, ok := watched[win]; ok {
			return
		}
		watched[win] = struct{}{}
		if err := xwindow.New(c.XUtil, win).Listen(xproto.EventMaskPropertyChange); err != nil {
			delete(watched, win)
			return
		}
		xevent.PropertyNotifyFun(func(xu *xgbutil.XUtil, ev xevent.PropertyNotifyEvent) {
			if l.StateChanged == nil {
				return
			}
			name, err := xprop.AtomName(xu, ev.Atom)
			if err != nil || name != "_NET_WM_STATE" {
				return
			}
			l.StateChanged(ev.Window, c.States(ev.Window))
		}).Connect(c.XUtil, win)
	}
	syncClients := func() {
		clients, err := c.ClientList()
		if err != nil {
			return
		}
		live := make(map[xproto.Window]struct{}, len(clients))
		for _, win := range clients {
			live[win] = struct{}{}
			watchClient(win)
		}
		for win := range watched {
			if _, ok := live[win]; !ok {
				xevent.Detach(c.XUtil, win)
				delete(watched, win)
			}
		}
		if l.ClientsChanged != nil {
			l.ClientsChanged(clients)
		}
	}

	xevent.PropertyNotifyFun(func(xu *xgbutil.XUtil, ev xevent.PropertyNotifyEvent) {
		name, err := xprop.AtomName(xu, ev.Atom)
		if err != nil {
			return
		}
		switch name {
		case "_NET_CLIENT_LIST":
			syncClients()
		case "_NET_ACTIVE_WINDOW":
			if l.ActiveChanged == nil {
				return
			}
			if active, err := c.GetActiveWindow(); err == nil {
				l.ActiveChanged(active)
			}
		}
	}).Connect(c.XUtil, c.Root)

	if err := randr.Init(c.XUtil.Conn()); err == nil {
		randr.SelectInput(c.XUtil.Conn(), c.Root, randr.NotifyMaskScreenChange)
		xevent.HookFun(func(xu *xgbutil.XUtil, event interface{}) bool {
			if _, ok := event.(randr.ScreenChangeNotifyEvent); ok && l.ScreenChanged != nil {
				l.ScreenChanged()
			}
			return true
		}).Connect(c.XUtil)
	}

	if clients, err := c.ClientList(); err == nil {
		for _, win := range clients {
			watchClient(win)
		}
	}
	return nil
}
