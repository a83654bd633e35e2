package container

import "fmt"

// NodeID addresses a node inside a Tree arena. The zero value means "no node".
type NodeID uint64

// NoNode is the parent of the root and of detached nodes.
const NoNode NodeID = 0

// Handle is the opaque native identity of a real window (an X11 window ID on Linux).
type Handle uint32

// Rect represents a position and size in screen pixels.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d at %d,%d", r.Width, r.Height, r.X, r.Y)
}

// Kind identifies the variant of a node.
type Kind uint8

const (
	KindRoot Kind = iota
	KindMonitor
	KindWorkspace
	KindSplit
	KindWindow
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindMonitor:
		return "monitor"
	case KindWorkspace:
		return "workspace"
	case KindSplit:
		return "split"
	case KindWindow:
		return "window"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Orientation selects the main axis of a split-like node.
type Orientation uint8

const (
	Horizontal Orientation = iota // children side by side, main axis is X
	Vertical                      // children stacked, main axis is Y
)

func (o Orientation) String() string {
	if o == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// ParseOrientation converts a config value into an Orientation.
func ParseOrientation(s string) (Orientation, error) {
	switch s {
	case "horizontal", "":
		return Horizontal, nil
	case "vertical":
		return Vertical, nil
	default:
		return Horizontal, fmt.Errorf("invalid orientation %q", s)
	}
}

// Mode tags the state of a window node.
type Mode uint8

const (
	ModeTiling Mode = iota
	ModeFloating
	ModeMaximized
	ModeFullscreen
	ModeMinimized
)

func (m Mode) String() string {
	switch m {
	case ModeTiling:
		return "tiling"
	case ModeFloating:
		return "floating"
	case ModeMaximized:
		return "maximized"
	case ModeFullscreen:
		return "fullscreen"
	case ModeMinimized:
		return "minimized"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Window is the payload carried by KindWindow nodes.
type Window struct {
	Handle            Handle
	Mode              Mode
	FloatingPlacement Rect
	Hidden            bool

	// PreviousState is the mode to rebuild on restore. Only meaningful when
	// Mode is ModeMinimized; never ModeMinimized itself.
	PreviousState Mode
}

// Node is one element of the container tree.
type Node struct {
	ID       NodeID
	Kind     Kind
	Parent   NodeID
	Children []NodeID

	// Rect is a cache written by the layout pass.
	Rect Rect

	// SizePercentage is the share of the parent's main axis, in (0,1].
	SizePercentage float64

	Orientation Orientation
	Name        string
	Window      *Window

	focusSeq uint64
}

// IsSplitLike reports whether the node lays out its children proportionally.
func (n *Node) IsSplitLike() bool {
	return n.Kind == KindSplit || n.Kind == KindWorkspace
}

// IsTiled reports whether the node takes part in its parent's proportional layout.
func (n *Node) IsTiled() bool {
	switch n.Kind {
	case KindSplit:
		return true
	case KindWindow:
		return n.Window != nil && n.Window.Mode == ModeTiling
	default:
		return false
	}
}

// IsWindow reports whether the node is a window with the given mode.
func (n *Node) IsWindow(mode Mode) bool {
	return n.Kind == KindWindow && n.Window != nil && n.Window.Mode == mode
}

// FocusSeq returns the focus stamp of the node; zero means never focused.
func (n *Node) FocusSeq() uint64 {
	return n.focusSeq
}

func (n *Node) String() string {
	switch n.Kind {
	case KindWindow:
		if n.Window != nil {
			return fmt.Sprintf("window#%d(0x%x %s)", n.ID, uint32(n.Window.Handle), n.Window.Mode)
		}
	case KindWorkspace, KindMonitor:
		return fmt.Sprintf("%s#%d(%s)", n.Kind, n.ID, n.Name)
	case KindSplit:
		return fmt.Sprintf("split#%d(%s)", n.ID, n.Orientation)
	}
	return fmt.Sprintf("%s#%d", n.Kind, n.ID)
}

// allowsChild encodes the nesting rules of the tree.
func allowsChild(parent, child Kind) bool {
	switch parent {
	case KindRoot:
		return child == KindMonitor
	case KindMonitor:
		return child == KindWorkspace
	case KindWorkspace, KindSplit:
		return child == KindSplit || child == KindWindow
	default:
		return false
	}
}
