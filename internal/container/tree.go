package container

import (
	"iter"
	"math"
	"slices"
)

// Epsilon is the tolerance used when checking that sibling percentages sum to 1.
const Epsilon = 1e-9

// Tree is an arena of nodes addressed by NodeID. Parent links are IDs, so
// there is no owning cycle between a node and its children.
//
// Tree is not safe for concurrent use; all mutation happens on the single
// control goroutine that drives the bus.
type Tree struct {
	nodes    map[NodeID]*Node
	root     NodeID
	nextID   NodeID
	focusSeq uint64
	focused  NodeID
}

// NewTree creates a tree holding only the root node.
func NewTree() *Tree {
	t := &Tree{nodes: make(map[NodeID]*Node)}
	t.root = t.alloc(&Node{Kind: KindRoot})
	return t
}

func (t *Tree) alloc(n *Node) NodeID {
	t.nextID++
	n.ID = t.nextID
	n.Parent = NoNode
	t.nodes[n.ID] = n
	return n.ID
}

// Root returns the ID of the root node.
func (t *Tree) Root() NodeID {
	return t.root
}

// Len returns the number of nodes in the arena, attached or not.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Node looks up a node by ID.
func (t *Tree) Node(id NodeID) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

func (t *Tree) mustNode(op string, id NodeID) *Node {
	n, ok := t.nodes[id]
	if !ok {
		violated(op, id, "unknown node")
	}
	return n
}

// NewMonitor allocates a detached monitor node.
func (t *Tree) NewMonitor(name string, bounds Rect) NodeID {
	return t.alloc(&Node{Kind: KindMonitor, Name: name, Rect: bounds})
}

// NewWorkspace allocates a detached workspace node.
func (t *Tree) NewWorkspace(name string, orientation Orientation) NodeID {
	return t.alloc(&Node{Kind: KindWorkspace, Name: name, Orientation: orientation})
}

// NewSplit allocates a detached split container.
func (t *Tree) NewSplit(orientation Orientation) NodeID {
	return t.alloc(&Node{Kind: KindSplit, Orientation: orientation})
}

// NewWindow allocates a detached window node carrying a copy of w.
func (t *Tree) NewWindow(w Window) NodeID {
	if w.Mode == ModeMinimized && w.PreviousState == ModeMinimized {
		violated("new-window", NoNode, "minimized window cannot have minimized previous state")
	}
	payload := w
	return t.alloc(&Node{Kind: KindWindow, Window: &payload})
}

// Attach inserts an unattached child into parent's children at index; a
// negative index appends. Tiled children receive an equal share and their
// siblings are rescaled so the tiled percentages still sum to 1.
func (t *Tree) Attach(child, parent NodeID, index int) {
	const op = "attach"
	c := t.mustNode(op, child)
	p := t.mustNode(op, parent)
	if child == t.root {
		violated(op, child, "cannot attach the root")
	}
	if c.Parent != NoNode {
		violated(op, child, "already attached to #%d", c.Parent)
	}
	if !allowsChild(p.Kind, c.Kind) {
		violated(op, child, "%s cannot be a child of %s", c.Kind, p.Kind)
	}
	if t.isAncestor(child, parent) {
		violated(op, child, "attaching to #%d would create a cycle", parent)
	}
	if index < 0 {
		index = len(p.Children)
	}
	if index > len(p.Children) {
		violated(op, child, "index %d out of range [0,%d]", index, len(p.Children))
	}

	p.Children = slices.Insert(p.Children, index, child)
	c.Parent = parent
	if p.IsSplitLike() && c.IsTiled() {
		t.admit(p, c, 0)
	}
}

// Detach removes node from its parent and leaves it in the arena so it can
// be attached elsewhere. Remaining tiled siblings are renormalized.
func (t *Tree) Detach(id NodeID) {
	const op = "detach"
	n := t.mustNode(op, id)
	if n.Parent == NoNode {
		violated(op, id, "node is not attached")
	}
	p := t.mustNode(op, n.Parent)
	idx := slices.Index(p.Children, id)
	if idx < 0 {
		violated(op, id, "missing from parent #%d children", p.ID)
	}
	p.Children = slices.Delete(p.Children, idx, idx+1)
	n.Parent = NoNode
	t.normalize(p)
}

// Replace puts an unattached node at the exact parent and index of old.
// The old subtree is removed from the arena. The replacement inherits the
// old node's percentage and focus stamp.
func (t *Tree) Replace(old, replacement NodeID) {
	const op = "replace"
	o := t.mustNode(op, old)
	r := t.mustNode(op, replacement)
	if o.Parent == NoNode {
		violated(op, old, "node is not attached")
	}
	if r.Parent != NoNode {
		violated(op, replacement, "replacement already attached to #%d", r.Parent)
	}
	if old == replacement {
		violated(op, old, "cannot replace a node with itself")
	}
	p := t.mustNode(op, o.Parent)
	if !allowsChild(p.Kind, r.Kind) {
		violated(op, replacement, "%s cannot be a child of %s", r.Kind, p.Kind)
	}
	if t.isAncestor(replacement, p.ID) {
		violated(op, replacement, "replacement is an ancestor of #%d", p.ID)
	}
	idx := slices.Index(p.Children, old)
	if idx < 0 {
		violated(op, old, "missing from parent #%d children", p.ID)
	}

	wasTiled := o.IsTiled()
	p.Children[idx] = replacement
	r.Parent = p.ID
	r.SizePercentage = o.SizePercentage
	r.focusSeq = o.focusSeq
	o.Parent = NoNode

	if t.focused == old {
		t.focused = replacement
	}
	t.Delete(old)

	if !p.IsSplitLike() {
		return
	}
	switch {
	case r.IsTiled() && !wasTiled:
		// A window coming back from a non-tiled mode reclaims the share it
		// had when it left.
		t.admit(p, r, r.SizePercentage)
	case !r.IsTiled() && wasTiled:
		t.normalize(p)
	}
}

// Move detaches node and attaches it under parent at index. The index is
// interpreted after the node has been removed from its old position.
func (t *Tree) Move(id, parent NodeID, index int) {
	n := t.mustNode("move", id)
	if n.Parent != NoNode {
		t.Detach(id)
	}
	t.Attach(id, parent, index)
}

// Delete removes an unattached node and its whole subtree from the arena.
func (t *Tree) Delete(id NodeID) {
	const op = "delete"
	n := t.mustNode(op, id)
	if n.Parent != NoNode {
		violated(op, id, "node is still attached to #%d", n.Parent)
	}
	if id == t.root {
		violated(op, id, "cannot delete the root")
	}
	var doomed []NodeID
	for d := range t.Flatten(id) {
		doomed = append(doomed, d.ID)
	}
	for _, d := range doomed {
		if d == t.focused {
			t.focused = NoNode
		}
		delete(t.nodes, d)
	}
}

// SetOrientation changes the main axis of a split-like node.
func (t *Tree) SetOrientation(id NodeID, o Orientation) {
	n := t.mustNode("set-orientation", id)
	if !n.IsSplitLike() {
		violated("set-orientation", id, "%s has no orientation", n.Kind)
	}
	n.Orientation = o
}

// SetFocused records id as the most recently focused node.
func (t *Tree) SetFocused(id NodeID) {
	n := t.mustNode("focus", id)
	t.focusSeq++
	n.focusSeq = t.focusSeq
	t.focused = id
}

// Focused returns the most recently focused node, if it still exists.
func (t *Tree) Focused() (*Node, bool) {
	if t.focused == NoNode {
		return nil, false
	}
	return t.Node(t.focused)
}

// Flatten returns a lazy pre-order traversal of id and its descendants: the
// node itself first, then each child subtree in child order. The sequence
// can be ranged over any number of times; the tree must not be mutated
// while it is being consumed.
func (t *Tree) Flatten(id NodeID) iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		n, ok := t.nodes[id]
		if !ok {
			return
		}
		t.walk(n, yield)
	}
}

func (t *Tree) walk(n *Node, yield func(*Node) bool) bool {
	if !yield(n) {
		return false
	}
	for _, cid := range n.Children {
		if !t.walk(t.nodes[cid], yield) {
			return false
		}
	}
	return true
}

// isAncestor reports whether candidate is id or one of its ancestors.
func (t *Tree) isAncestor(candidate, id NodeID) bool {
	for cur := id; cur != NoNode; {
		if cur == candidate {
			return true
		}
		n, ok := t.nodes[cur]
		if !ok {
			return false
		}
		cur = n.Parent
	}
	return false
}

// admit gives the newly tiled child share, or 1/n when share is not in
// (0,1), and scales the other tiled siblings into the remainder.
func (t *Tree) admit(p *Node, child *Node, share float64) {
	tiled := t.tiledChildren(p)
	if len(tiled) == 1 || share <= 0 || share >= 1 || math.IsNaN(share) {
		share = 1 / float64(len(tiled))
	}
	child.SizePercentage = share

	var rest float64
	for _, c := range tiled {
		if c != child {
			rest += c.SizePercentage
		}
	}
	for _, c := range tiled {
		if c == child {
			continue
		}
		if rest <= 0 {
			c.SizePercentage = (1 - share) / float64(len(tiled)-1)
		} else {
			c.SizePercentage = c.SizePercentage / rest * (1 - share)
		}
	}
}

// normalize rescales tiled children of p so their percentages sum to 1.
func (t *Tree) normalize(p *Node) {
	if !p.IsSplitLike() {
		return
	}
	tiled := t.tiledChildren(p)
	if len(tiled) == 0 {
		return
	}
	var sum float64
	for _, c := range tiled {
		sum += c.SizePercentage
	}
	for _, c := range tiled {
		if sum <= 0 || math.IsNaN(sum) {
			c.SizePercentage = 1 / float64(len(tiled))
		} else {
			c.SizePercentage /= sum
		}
	}
}

func (t *Tree) tiledChildren(p *Node) []*Node {
	out := make([]*Node, 0, len(p.Children))
	for _, cid := range p.Children {
		if c := t.nodes[cid]; c.IsTiled() {
			out = append(out, c)
		}
	}
	return out
}
