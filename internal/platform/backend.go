package platform

import (
	"context"

	"github.com/1broseidon/tiletree/internal/container"
	"github.com/1broseidon/tiletree/internal/layout"
	"github.com/1broseidon/tiletree/internal/wm"
)

// WindowID is a platform-neutral window identifier.
type WindowID = container.Handle

// Rect describes a rectangular region in screen coordinates.
type Rect = container.Rect

// Display describes a physical display and its usable work area.
type Display struct {
	ID     int
	Name   string
	Bounds Rect
	Usable Rect
}

// Window contains metadata and geometry for a top-level window.
type Window struct {
	ID     WindowID
	PID    int
	AppID  string
	Title  string
	Bounds Rect
	State  WindowState
	// Transient windows are dialogs owned by another window.
	Transient bool
	// Sticky windows are shown on every desktop.
	Sticky bool
}

// Backend abstracts window-system operations across platforms.
type Backend interface {
	layout.NativeSync
	wm.Focuser

	Displays() ([]Display, error)
	ActiveWindow() (WindowID, error)
	// ListWindows returns the manageable client windows.
	ListWindows() ([]Window, error)
	Close(windowID WindowID) error
	// Watch delivers window events to sink until ctx is done.
	Watch(ctx context.Context, sink func(Event)) error
}
