package x11

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xwindow"
)

// GrabServer suspends processing of other clients' requests so a batch of
// geometry changes lands at once.
func (c *Connection) GrabServer() error {
	return xproto.GrabServerChecked(c.XUtil.Conn()).Check()
}

// UngrabServer releases a grab taken by GrabServer.
func (c *Connection) UngrabServer() error {
	return xproto.UngrabServerChecked(c.XUtil.Conn()).Check()
}

// MoveResizeWindow moves and resizes a window to the specified geometry
func (c *Connection) MoveResizeWindow(windowID xproto.Window, x, y, width, height int) error {
	if width < 1 || height < 1 {
		return fmt.Errorf("window 0x%x: invalid size %dx%d", uint32(windowID), width, height)
	}

	// Use EWMH MoveResize for better WM compatibility
	if err := ewmh.MoveresizeWindow(c.XUtil, windowID, x, y, width, height); err != nil {
		// Fallback to direct window manipulation
		xwindow.New(c.XUtil, windowID).MoveResize(x, y, width, height)
	}
	return nil
}

// Iconify asks the window manager to minimize a window via WM_CHANGE_STATE.
func (c *Connection) Iconify(windowID xproto.Window) error {
	reply, err := xproto.InternAtom(c.XUtil.Conn(), false, uint16(len("WM_CHANGE_STATE")), "WM_CHANGE_STATE").Reply()
	if err != nil {
		return err
	}

	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: windowID,
		Type:   reply.Atom,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{icccm.StateIconic, 0, 0, 0, 0}),
	}

	return xproto.SendEventChecked(
		c.XUtil.Conn(),
		false,
		c.Root,
		xproto.EventMaskSubstructureRedirect|xproto.EventMaskSubstructureNotify,
		string(ev.Bytes()),
	).Check()
}

// Map makes a window visible again. For an iconic client this asks the
// window manager to return it to the normal state.
func (c *Connection) Map(windowID xproto.Window) error {
	return xproto.MapWindowChecked(c.XUtil.Conn(), windowID).Check()
}

// IsNormalWindow checks if a window is a normal application window
func (c *Connection) IsNormalWindow(windowID xproto.Window) bool {
	types, err := ewmh.WmWindowTypeGet(c.XUtil, windowID)
	if err != nil {
		// If we can't determine type, assume it's normal
		return true
	}

	for _, t := range types {
		switch t {
		case "_NET_WM_WINDOW_TYPE_NORMAL":
			return true
		case "_NET_WM_WINDOW_TYPE_DESKTOP", "_NET_WM_WINDOW_TYPE_DOCK",
			"_NET_WM_WINDOW_TYPE_SPLASH", "_NET_WM_WINDOW_TYPE_NOTIFICATION":
			return false
		}
	}

	// If no specific type is set, assume it's normal
	return len(types) == 0
}

// IsTransient reports whether a window is a dialog for another window.
func (c *Connection) IsTransient(windowID xproto.Window) bool {
	owner, err := icccm.WmTransientForGet(c.XUtil, windowID)
	return err == nil && owner != 0
}

// ClientList returns the windows the window manager is managing.
func (c *Connection) ClientList() ([]xproto.Window, error) {
	return ewmh.ClientListGet(c.XUtil)
}

func (c *Connection) GetActiveWindow() (xproto.Window, error) {
	return ewmh.ActiveWindowGet(c.XUtil)
}

// States returns the _NET_WM_STATE atoms set on a window.
func (c *Connection) States(windowID xproto.Window) []string {
	states, err := ewmh.WmStateGet(c.XUtil, windowID)
	if err != nil {
		return nil
	}
	return states
}

// Geometry returns a window's position relative to the root and its size.
func (c *Connection) Geometry(windowID xproto.Window) (x, y, width, height int, err error) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(windowID)).Reply()
	if err != nil {
		return 0, 0, 0, 0, err
	}
	translate, err := xproto.TranslateCoordinates(c.XUtil.Conn(), windowID, c.Root, 0, 0).Reply()
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return int(translate.DstX), int(translate.DstY), int(geom.Width), int(geom.Height), nil
}

// Class returns the WM_CLASS class name of a window, or "".
func (c *Connection) Class(windowID xproto.Window) string {
	wmClass, err := icccm.WmClassGet(c.XUtil, windowID)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(wmClass.Class)
}

// Title returns the EWMH or ICCCM name of a window, or "".
func (c *Connection) Title(windowID xproto.Window) string {
	if title, err := ewmh.WmNameGet(c.XUtil, windowID); err == nil {
		if title = strings.TrimSpace(title); title != "" {
			return title
		}
	}
	if title, err := icccm.WmNameGet(c.XUtil, windowID); err == nil {
		return strings.TrimSpace(title)
	}
	return ""
}

// PID returns _NET_WM_PID, or 0 if unset.
func (c *Connection) PID(windowID xproto.Window) int {
	pid, err := ewmh.WmPidGet(c.XUtil, windowID)
	if err != nil {
		return 0
	}
	return int(pid)
}
