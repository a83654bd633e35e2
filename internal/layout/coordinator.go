package layout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/1broseidon/tiletree/internal/bus"
	"github.com/1broseidon/tiletree/internal/container"
)

// GapSource supplies the spacing settings, read at layout time so a config
// reload takes effect on the next redraw.
type GapSource interface {
	InnerGap() int
	ScreenPadding() Padding
}

// StaticGaps is a fixed GapSource.
type StaticGaps struct {
	Gap     int
	Padding Padding
}

func (s StaticGaps) InnerGap() int          { return s.Gap }
func (s StaticGaps) ScreenPadding() Padding { return s.Padding }

// RedrawContainers asks the coordinator to lay out every pending container
// and push the result to the window system.
type RedrawContainers struct{}

// Redrawn is published after every redraw pass.
type Redrawn struct {
	Arranged int
	Windows  int
	Duration time.Duration
	Err      error
}

// idSet is an insertion-ordered set of node IDs.
type idSet struct {
	order []container.NodeID
	seen  map[container.NodeID]struct{}
}

func (s *idSet) add(id container.NodeID) {
	if s.seen == nil {
		s.seen = make(map[container.NodeID]struct{})
	}
	if _, ok := s.seen[id]; ok {
		return
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
}

func (s *idSet) take() []container.NodeID {
	out := s.order
	s.order = nil
	s.seen = nil
	return out
}

// Coordinator owns the pending redraw sets and runs the layout pass.
type Coordinator struct {
	tree   *container.Tree
	native NativeSync
	gaps   GapSource
	logger *slog.Logger
	bus    *bus.Bus

	splits     idSet
	containers idSet
}

// NewCoordinator creates a coordinator over tree. A nil logger falls back
// to slog.Default().
func NewCoordinator(tree *container.Tree, native NativeSync, gaps GapSource, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		tree:   tree,
		native: native,
		gaps:   gaps,
		logger: logger.With("component", "layout"),
	}
}

// Register installs the RedrawContainers handler on b. Redraw results are
// published on b as Redrawn events.
func (c *Coordinator) Register(b *bus.Bus) {
	c.bus = b
	bus.HandleCommand(b, func(ctx context.Context, _ RedrawContainers) bus.Response {
		res, err := c.Redraw(ctx)
		if err != nil {
			return bus.Fail(err)
		}
		return bus.OK(res)
	})
}

// SetGapSource swaps the spacing settings used by later passes.
func (c *Coordinator) SetGapSource(g GapSource) {
	c.gaps = g
}

// MarkSplit queues a split-like node for re-layout. Any other node is
// queued as a plain container, which still reaches every split-like
// below it.
func (c *Coordinator) MarkSplit(id container.NodeID) {
	if n, ok := c.tree.Node(id); ok && !n.IsSplitLike() {
		c.containers.add(id)
		return
	}
	c.splits.add(id)
}

// MarkContainer queues any node for downstream redraw.
func (c *Coordinator) MarkContainer(id container.NodeID) {
	c.containers.add(id)
}

// Pending returns copies of the two redraw sets in insertion order.
func (c *Coordinator) Pending() (splits, containers []container.NodeID) {
	return slices.Clone(c.splits.order), slices.Clone(c.containers.order)
}

// RedrawResult reports what a redraw pass touched.
type RedrawResult struct {
	Arranged int `json:"arranged"`
	Windows  int `json:"windows"`
}

// Redraw lays out every split-like reachable from the pending sets, parents
// before children, then pushes one batch of window positions. Both sets are
// empty afterwards whether or not the batch succeeded.
func (c *Coordinator) Redraw(ctx context.Context) (RedrawResult, error) {
	start := time.Now()
	roots := append(c.splits.take(), c.containers.take()...)

	var res RedrawResult
	var err error
	defer func() {
		if c.bus != nil {
			bus.Publish(ctx, c.bus, Redrawn{
				Arranged: res.Arranged,
				Windows:  res.Windows,
				Duration: time.Since(start),
				Err:      err,
			})
		}
	}()

	var seen idSet
	for _, id := range roots {
		if !c.tree.Attached(id) {
			c.logger.Debug("skipping detached container", "id", id)
			continue
		}
		for n := range c.tree.Flatten(id) {
			seen.add(n.ID)
		}
	}
	nodes := seen.take()

	var splits []*container.Node
	var windows []*container.Node
	for _, id := range nodes {
		n, _ := c.tree.Node(id)
		switch {
		case n.IsSplitLike():
			splits = append(splits, n)
		case n.Kind == container.KindWindow:
			windows = append(windows, n)
		}
	}
	depth := make(map[container.NodeID]int, len(splits))
	for _, s := range splits {
		depth[s.ID] = c.tree.Depth(s.ID)
	}
	slices.SortStableFunc(splits, func(a, b *container.Node) int {
		return depth[a.ID] - depth[b.ID]
	})

	for _, s := range splits {
		if aerr := c.arrange(s); aerr != nil {
			err = aerr
			return res, err
		}
		res.Arranged++
	}

	var updates []Update
	for _, w := range windows {
		if w.IsWindow(container.ModeMinimized) {
			continue
		}
		flags := baseFlags | FlagShow
		if w.Window.Hidden {
			flags = baseFlags | FlagHide
		}
		updates = append(updates, Update{Handle: w.Window.Handle, Rect: w.Rect, Flags: flags})
	}
	res.Windows = len(updates)

	err = c.push(updates)
	return res, err
}

// arrange positions the children of one split-like node.
func (c *Coordinator) arrange(p *container.Node) error {
	area := p.Rect
	if p.Kind == container.KindWorkspace {
		padded, err := ApplyPadding(p.Rect, c.gaps.ScreenPadding())
		if err != nil {
			return fmt.Errorf("workspace %q: %w", p.Name, err)
		}
		area = padded
	}

	tiled := c.tree.TiledChildren(p.ID)
	pcts := make([]float64, len(tiled))
	for i, t := range tiled {
		pcts[i] = t.SizePercentage
	}
	rects := Arrange(area, p.Orientation, pcts, c.gaps.InnerGap())
	for i, t := range tiled {
		t.Rect = rects[i]
	}

	for _, child := range c.tree.Children(p.ID) {
		if child.Kind != container.KindWindow || child.IsTiled() {
			continue
		}
		switch child.Window.Mode {
		case container.ModeFloating:
			child.Rect = child.Window.FloatingPlacement
		case container.ModeMaximized:
			if ws, ok := c.tree.WorkspaceOf(p.ID); ok {
				child.Rect = ws.Rect
			}
		case container.ModeFullscreen:
			if mon, ok := c.tree.MonitorOf(p.ID); ok {
				child.Rect = mon.Rect
			}
		}
	}

	c.logger.Debug("arranged", "container", p.String(), "area", area.String(), "tiled", len(tiled))
	return nil
}

// push submits updates as a single batch. EndBatch runs even when a
// position update fails so the window system is never left mid-batch.
func (c *Coordinator) push(updates []Update) error {
	if len(updates) == 0 || c.native == nil {
		return nil
	}
	batch, err := c.native.BeginBatch(len(updates))
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}

	var errs []error
	for _, u := range updates {
		if err := c.native.SetWindowPosition(batch, u.Handle, u.Rect, u.Flags); err != nil {
			errs = append(errs, fmt.Errorf("window 0x%x: %w", uint32(u.Handle), err))
			continue
		}
		c.logger.Debug("queued window position", "window", fmt.Sprintf("0x%x", uint32(u.Handle)), "rect", u.Rect.String(), "flags", u.Flags.String())
	}
	if err := c.native.EndBatch(batch); err != nil {
		errs = append(errs, fmt.Errorf("end batch: %w", err))
	}
	return errors.Join(errs...)
}
