package container

import (
	"fmt"
	"iter"
	"slices"
)

// Index returns the position of id within its parent's children, or -1 if
// the node is detached or unknown.
func (t *Tree) Index(id NodeID) int {
	n, ok := t.nodes[id]
	if !ok || n.Parent == NoNode {
		return -1
	}
	return slices.Index(t.nodes[n.Parent].Children, id)
}

// Depth returns the number of edges between id and the root (-1 if unknown
// or detached from the root).
func (t *Tree) Depth(id NodeID) int {
	depth := 0
	for cur := id; ; depth++ {
		n, ok := t.nodes[cur]
		if !ok {
			return -1
		}
		if cur == t.root {
			return depth
		}
		if n.Parent == NoNode {
			return -1
		}
		cur = n.Parent
	}
}

// Attached reports whether id is reachable from the root.
func (t *Tree) Attached(id NodeID) bool {
	return t.Depth(id) >= 0
}

// Ancestors yields the parent of id, then its parent, up to the root.
func (t *Tree) Ancestors(id NodeID) iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		n, ok := t.nodes[id]
		if !ok {
			return
		}
		for cur := n.Parent; cur != NoNode; {
			p, ok := t.nodes[cur]
			if !ok || !yield(p) {
				return
			}
			cur = p.Parent
		}
	}
}

func (t *Tree) nearest(id NodeID, kind Kind) (*Node, bool) {
	if n, ok := t.nodes[id]; ok && n.Kind == kind {
		return n, true
	}
	for a := range t.Ancestors(id) {
		if a.Kind == kind {
			return a, true
		}
	}
	return nil, false
}

// WorkspaceOf resolves the workspace owning id by walking up the tree. A
// workspace is its own owner.
func (t *Tree) WorkspaceOf(id NodeID) (*Node, bool) {
	return t.nearest(id, KindWorkspace)
}

// MonitorOf resolves the monitor owning id.
func (t *Tree) MonitorOf(id NodeID) (*Node, bool) {
	return t.nearest(id, KindMonitor)
}

// FindWindowByHandle returns the attached window node for a native handle.
func (t *Tree) FindWindowByHandle(h Handle) (*Node, bool) {
	for n := range t.Windows() {
		if n.Window.Handle == h {
			return n, true
		}
	}
	return nil, false
}

// LookupWindow is FindWindowByHandle with an error for callers that
// propagate lookup failures.
func (t *Tree) LookupWindow(h Handle) (*Node, error) {
	n, ok := t.FindWindowByHandle(h)
	if !ok {
		return nil, fmt.Errorf("window 0x%x: %w", uint32(h), ErrNotFound)
	}
	return n, nil
}

// Windows yields every attached window node in pre-order.
func (t *Tree) Windows() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for n := range t.Flatten(t.root) {
			if n.Kind == KindWindow && n.Window != nil && !yield(n) {
				return
			}
		}
	}
}

// Workspaces yields every attached workspace in pre-order.
func (t *Tree) Workspaces() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for n := range t.Flatten(t.root) {
			if n.Kind == KindWorkspace && !yield(n) {
				return
			}
		}
	}
}

// WorkspaceByName finds an attached workspace by name.
func (t *Tree) WorkspaceByName(name string) (*Node, bool) {
	for ws := range t.Workspaces() {
		if ws.Name == name {
			return ws, true
		}
	}
	return nil, false
}

// LastFocusedDescendantExcluding returns the most recently focused window
// below id, skipping excluded and minimized windows. It reports false when
// no descendant has ever been focused.
func (t *Tree) LastFocusedDescendantExcluding(id, excluded NodeID) (*Node, bool) {
	var best *Node
	for n := range t.Flatten(id) {
		if n.ID == id || n.ID == excluded || n.Kind != KindWindow || n.focusSeq == 0 {
			continue
		}
		if n.IsWindow(ModeMinimized) {
			continue
		}
		if best == nil || n.focusSeq > best.focusSeq {
			best = n
		}
	}
	return best, best != nil
}

// TiledChildren returns the children of id that take part in proportional layout.
func (t *Tree) TiledChildren(id NodeID) []*Node {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	return t.tiledChildren(n)
}

// Children returns the child nodes of id in order.
func (t *Tree) Children(id NodeID) []*Node {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	out := make([]*Node, 0, len(n.Children))
	for _, cid := range n.Children {
		out = append(out, t.nodes[cid])
	}
	return out
}
