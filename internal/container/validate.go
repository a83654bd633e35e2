package container

import (
	"fmt"
	"math"
)

// Validate walks the attached tree and checks parent links (every child
// names its parent and appears once) and the percentage sum of tiled
// children of every split-like node.
func (t *Tree) Validate() error {
	for n := range t.Flatten(t.root) {
		seen := make(map[NodeID]struct{}, len(n.Children))
		var sum float64
		tiled := 0
		for _, cid := range n.Children {
			c, ok := t.nodes[cid]
			if !ok {
				return fmt.Errorf("%s: child #%d missing from arena", n, cid)
			}
			if c.Parent != n.ID {
				return fmt.Errorf("%s: child %s points at parent #%d", n, c, c.Parent)
			}
			if _, dup := seen[cid]; dup {
				return fmt.Errorf("%s: child %s listed twice", n, c)
			}
			seen[cid] = struct{}{}
			if c.IsTiled() {
				sum += c.SizePercentage
				tiled++
			}
		}
		if n.IsSplitLike() && tiled > 0 && math.Abs(sum-1) > Epsilon*float64(tiled+1) {
			return fmt.Errorf("%s: tiled percentages sum to %v", n, sum)
		}
	}
	return nil
}
