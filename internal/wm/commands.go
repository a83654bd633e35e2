package wm

import "github.com/1broseidon/tiletree/internal/container"

// Tree commands. Each has exactly one handler, installed by Manager.Register.

// AttachContainer attaches an unattached Child under Parent at Index.
// A negative Index appends.
type AttachContainer struct {
	Child  container.NodeID
	Parent container.NodeID
	Index  int
}

// DetachContainer detaches Node from its parent.
type DetachContainer struct {
	Node container.NodeID
}

// MoveContainerWithinTree makes Node a direct child of Target. When Target
// is an ancestor, Node lands right after the branch that contained it.
// Moving a node that is already a direct child of Target does nothing.
type MoveContainerWithinTree struct {
	Node   container.NodeID
	Target container.NodeID
}

// ReplaceContainer swaps the child at Parent's Index for Replacement.
type ReplaceContainer struct {
	Replacement container.NodeID
	Parent      container.NodeID
	Index       int
}

// FocusWindow focuses a window node natively and in the tree.
type FocusWindow struct {
	Node container.NodeID
}

// FocusWorkspace focuses a workspace by name, leaving no window focused.
type FocusWorkspace struct {
	Name string
}

// SetWindowMode rebuilds a window node with Mode in place. The response
// carries the new node ID.
type SetWindowMode struct {
	Node container.NodeID
	Mode container.Mode
}

// Inbound events, published by the platform event source.

type WindowMinimized struct {
	Handle container.Handle
}

// WindowRestored undoes a minimize, maximize or fullscreen.
type WindowRestored struct {
	Handle container.Handle
}

type WindowMaximized struct {
	Handle container.Handle
}

type WindowFullscreened struct {
	Handle container.Handle
}

// WindowOpened asks the manager to start managing a window.
type WindowOpened struct {
	Handle    container.Handle
	Placement container.Rect
	Floating  bool
}

type WindowClosed struct {
	Handle container.Handle
}

// WindowFocused reports focus the window system already applied.
type WindowFocused struct {
	Handle container.Handle
}

// FocusChanged is published after any focus change in the tree.
type FocusChanged struct {
	Node      container.NodeID
	Handle    container.Handle
	Workspace string
}
