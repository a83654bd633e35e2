package platform

import "fmt"

// WindowState is the subset of native window state the manager tracks.
type WindowState struct {
	Hidden     bool
	Maximized  bool
	Fullscreen bool
}

// StateFromAtoms decodes _NET_WM_STATE atom names. A window counts as
// maximized only when both axes are.
func StateFromAtoms(atoms []string) WindowState {
	var s WindowState
	var horz, vert bool
	for _, a := range atoms {
		switch a {
		case "_NET_WM_STATE_HIDDEN":
			s.Hidden = true
		case "_NET_WM_STATE_FULLSCREEN":
			s.Fullscreen = true
		case "_NET_WM_STATE_MAXIMIZED_HORZ":
			horz = true
		case "_NET_WM_STATE_MAXIMIZED_VERT":
			vert = true
		}
	}
	s.Maximized = horz && vert
	return s
}

// EventKind identifies a native window event.
type EventKind int

const (
	EventOpened EventKind = iota
	EventClosed
	EventFocused
	EventMinimized
	EventRestored
	EventMaximized
	EventFullscreened
	EventDisplaysChanged
)

func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventClosed:
		return "closed"
	case EventFocused:
		return "focused"
	case EventMinimized:
		return "minimized"
	case EventRestored:
		return "restored"
	case EventMaximized:
		return "maximized"
	case EventFullscreened:
		return "fullscreened"
	case EventDisplaysChanged:
		return "displays-changed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is a change observed in the window system.
type Event struct {
	Kind   EventKind
	Window WindowID
	// Opened events carry the window's metadata.
	Info Window
}

// Transition maps a state change to the event the manager should see. The
// most significant change wins: hidden, then fullscreen, then maximized.
func Transition(prev, next WindowState) (EventKind, bool) {
	switch {
	case next.Hidden && !prev.Hidden:
		return EventMinimized, true
	case prev.Hidden && !next.Hidden:
		switch {
		case next.Fullscreen:
			return EventFullscreened, true
		case next.Maximized:
			return EventMaximized, true
		}
		return EventRestored, true
	case next.Hidden:
		return 0, false
	case next.Fullscreen && !prev.Fullscreen:
		return EventFullscreened, true
	case next.Maximized && !prev.Maximized && !next.Fullscreen:
		return EventMaximized, true
	case (prev.Fullscreen && !next.Fullscreen) || (prev.Maximized && !next.Maximized):
		if next.Maximized {
			return EventMaximized, true
		}
		return EventRestored, true
	}
	return 0, false
}
