package x11

import (
	"fmt"
	"slices"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// Monitor represents a physical display as reported by RandR.
type Monitor struct {
	ID     int
	Name   string
	X      int
	Y      int
	Width  int
	Height int
}

func (m Monitor) box() box {
	return box{x1: m.X, y1: m.Y, x2: m.X + m.Width, y2: m.Y + m.Height}
}

// GetMonitors lists the enabled CRTCs in RandR order, named after their
// first output.
func (c *Connection) GetMonitors() ([]Monitor, error) {
	conn := c.XUtil.Conn()
	if err := randr.Init(conn); err != nil {
		return nil, fmt.Errorf("randr init failed: %w", err)
	}
	resources, err := randr.GetScreenResources(conn, c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var monitors []Monitor
	for i, crtc := range resources.Crtcs {
		info, err := randr.GetCrtcInfo(conn, crtc, resources.ConfigTimestamp).Reply()
		if err != nil || info.Width == 0 || info.Height == 0 || len(info.Outputs) == 0 {
			continue
		}
		name := fmt.Sprintf("Monitor%d", i)
		if out, err := randr.GetOutputInfo(conn, info.Outputs[0], resources.ConfigTimestamp).Reply(); err == nil {
			name = string(out.Name)
		}
		monitors = append(monitors, Monitor{
			ID:     i,
			Name:   name,
			X:      int(info.X),
			Y:      int(info.Y),
			Width:  int(info.Width),
			Height: int(info.Height),
		})
	}
	return monitors, nil
}

// WorkArea returns m shrunk by the struts of dock windows overlapping it,
// or by the EWMH work area when no dock reserves space.
func (c *Connection) WorkArea(m Monitor) Monitor {
	if insets, ok := c.dockInsets(m); ok {
		return insets.shrink(m)
	}

	areas, err := ewmh.WorkareaGet(c.XUtil)
	if err != nil || len(areas) == 0 {
		return m
	}
	desktop := 0
	if cur, err := ewmh.CurrentDesktopGet(c.XUtil); err == nil && int(cur) < len(areas) {
		desktop = int(cur)
	}
	wa := areas[desktop]
	visible := m.box().intersect(box{
		x1: int(wa.X), y1: int(wa.Y),
		x2: int(wa.X) + int(wa.Width), y2: int(wa.Y) + int(wa.Height),
	})
	if visible.empty() {
		return m
	}
	m.X, m.Y = visible.x1, visible.y1
	m.Width, m.Height = visible.width(), visible.height()
	return m
}

// insets is the space docks reserve along each edge of a monitor.
type insets struct {
	left, right, top, bottom int
}

func (in insets) zero() bool { return in == insets{} }

func (in insets) shrink(m Monitor) Monitor {
	m.X += in.left
	m.Y += in.top
	m.Width = max(1, m.Width-in.left-in.right)
	m.Height = max(1, m.Height-in.top-in.bottom)
	return m
}

// dockInsets collects the struts of every dock client. It reports false when
// the root geometry or client list is unavailable or no dock touches m.
func (c *Connection) dockInsets(m Monitor) (insets, bool) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(c.Root)).Reply()
	if err != nil {
		return insets{}, false
	}
	rootW, rootH := int(geom.Width), int(geom.Height)

	clients, err := ewmh.ClientListGet(c.XUtil)
	if err != nil {
		return insets{}, false
	}

	var acc insets
	for _, win := range clients {
		types, err := ewmh.WmWindowTypeGet(c.XUtil, win)
		if err != nil || !slices.Contains(types, "_NET_WM_WINDOW_TYPE_DOCK") {
			continue
		}
		if sp, err := ewmh.WmStrutPartialGet(c.XUtil, win); err == nil {
			acc = acc.add(m, rootW, rootH, sp)
			continue
		}
		// Docks that only set _NET_WM_STRUT reserve the full root edge.
		if s, err := ewmh.WmStrutGet(c.XUtil, win); err == nil {
			acc = acc.add(m, rootW, rootH, &ewmh.WmStrutPartial{
				Left: s.Left, Right: s.Right, Top: s.Top, Bottom: s.Bottom,
				LeftEndY:   uint(rootH - 1),
				RightEndY:  uint(rootH - 1),
				TopEndX:    uint(rootW - 1),
				BottomEndX: uint(rootW - 1),
			})
		}
	}
	return acc, !acc.zero()
}

// add widens in by the part of sp's reserved regions that overlaps m.
// Strut ranges are inclusive; boxes are half-open.
func (in insets) add(m Monitor, rootW, rootH int, sp *ewmh.WmStrutPartial) insets {
	mon := m.box()
	if sp.Top > 0 {
		r := box{x1: int(sp.TopStartX), x2: int(sp.TopEndX) + 1, y1: 0, y2: int(sp.Top)}
		in.top = max(in.top, mon.intersect(r).height())
	}
	if sp.Bottom > 0 {
		r := box{x1: int(sp.BottomStartX), x2: int(sp.BottomEndX) + 1, y1: rootH - int(sp.Bottom), y2: rootH}
		in.bottom = max(in.bottom, mon.intersect(r).height())
	}
	if sp.Left > 0 {
		r := box{x1: 0, x2: int(sp.Left), y1: int(sp.LeftStartY), y2: int(sp.LeftEndY) + 1}
		in.left = max(in.left, mon.intersect(r).width())
	}
	if sp.Right > 0 {
		r := box{x1: rootW - int(sp.Right), x2: rootW, y1: int(sp.RightStartY), y2: int(sp.RightEndY) + 1}
		in.right = max(in.right, mon.intersect(r).width())
	}
	return in
}

// box is a half-open screen region [x1,x2) x [y1,y2).
type box struct {
	x1, y1, x2, y2 int
}

func (b box) intersect(o box) box {
	r := box{x1: max(b.x1, o.x1), y1: max(b.y1, o.y1), x2: min(b.x2, o.x2), y2: min(b.y2, o.y2)}
	if r.empty() {
		return box{}
	}
	return r
}

func (b box) empty() bool { return b.x2 <= b.x1 || b.y2 <= b.y1 }
func (b box) width() int { return max(0, b.x2-b.x1) }
func (b box) height() int { return max(0, b.y2-b.y1) }
