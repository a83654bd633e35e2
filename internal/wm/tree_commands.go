package wm

import (
	"context"
	"fmt"

	"github.com/1broseidon/tiletree/internal/bus"
	"github.com/1broseidon/tiletree/internal/container"
)

func (m *Manager) node(id container.NodeID) (*container.Node, error) {
	n, ok := m.tree.Node(id)
	if !ok {
		return nil, fmt.Errorf("node #%d: %w", id, container.ErrNotFound)
	}
	return n, nil
}

func (m *Manager) handleAttach(ctx context.Context, cmd AttachContainer) bus.Response {
	parent, err := m.node(cmd.Parent)
	if err != nil {
		return bus.Fail(err)
	}
	idx := cmd.Index
	if idx < 0 {
		idx = len(parent.Children)
	}
	m.tree.Attach(cmd.Child, cmd.Parent, idx)
	m.coord.MarkSplit(cmd.Parent)
	return bus.OK(nil)
}

func (m *Manager) handleDetach(ctx context.Context, cmd DetachContainer) bus.Response {
	n, err := m.node(cmd.Node)
	if err != nil {
		return bus.Fail(err)
	}
	parent := n.Parent
	m.tree.Detach(cmd.Node)
	if parent != container.NoNode {
		m.coord.MarkSplit(parent)
	}
	return bus.OK(nil)
}

func (m *Manager) handleMove(ctx context.Context, cmd MoveContainerWithinTree) bus.Response {
	n, err := m.node(cmd.Node)
	if err != nil {
		return bus.Fail(err)
	}
	target, err := m.node(cmd.Target)
	if err != nil {
		return bus.Fail(err)
	}
	if n.Parent == target.ID {
		return bus.OK(false)
	}

	// Insert after the branch of target that holds the node, if any.
	index := len(target.Children)
	for a := range m.tree.Ancestors(cmd.Node) {
		if a.Parent == target.ID {
			index = m.tree.Index(a.ID) + 1
			break
		}
	}

	oldParent := n.Parent
	if oldParent != container.NoNode {
		m.tree.Detach(cmd.Node)
	}
	if index > len(target.Children) {
		index = len(target.Children)
	}
	m.tree.Attach(cmd.Node, target.ID, index)

	survivor := m.pruneEmptySplits(oldParent)
	if survivor != container.NoNode {
		m.coord.MarkSplit(survivor)
	}
	m.coord.MarkSplit(target.ID)
	return bus.OK(true)
}

func (m *Manager) handleReplace(ctx context.Context, cmd ReplaceContainer) bus.Response {
	parent, err := m.node(cmd.Parent)
	if err != nil {
		return bus.Fail(err)
	}
	if cmd.Index < 0 || cmd.Index >= len(parent.Children) {
		return bus.Fail(fmt.Errorf("replace in %s: index %d: %w", parent, cmd.Index, container.ErrNotFound))
	}
	old := parent.Children[cmd.Index]
	m.tree.Replace(old, cmd.Replacement)
	m.coord.MarkSplit(parent.ID)
	return bus.OK(nil)
}

func (m *Manager) handleSetWindowMode(ctx context.Context, cmd SetWindowMode) bus.Response {
	n, err := m.node(cmd.Node)
	if err != nil {
		return bus.Fail(err)
	}
	if n.Kind != container.KindWindow {
		return bus.Fail(fmt.Errorf("set mode on %s: not a window", n))
	}
	if cmd.Mode == container.ModeMinimized {
		return bus.Fail(fmt.Errorf("set mode on %s: use WindowMinimized to minimize", n))
	}
	if n.Window.Mode == cmd.Mode {
		return bus.OK(n.ID)
	}

	w := *n.Window
	w.Mode = cmd.Mode
	w.PreviousState = container.ModeTiling
	replacement := m.tree.NewWindow(w)
	if _, err := invoke(ctx, m, ReplaceContainer{Replacement: replacement, Parent: n.Parent, Index: m.tree.Index(n.ID)}); err != nil {
		m.tree.Delete(replacement)
		return bus.Fail(err)
	}
	return bus.OK(replacement)
}

// pruneEmptySplits removes id and its ancestors while they are empty split
// containers. It returns the nearest node that survived.
func (m *Manager) pruneEmptySplits(id container.NodeID) container.NodeID {
	for id != container.NoNode {
		n, ok := m.tree.Node(id)
		if !ok {
			return container.NoNode
		}
		if n.Kind != container.KindSplit || len(n.Children) > 0 || n.Parent == container.NoNode {
			return id
		}
		parent := n.Parent
		m.tree.Detach(id)
		m.tree.Delete(id)
		m.logger.Debug("removed empty split", "split", id)
		id = parent
	}
	return id
}
