package layout

import (
	"fmt"
	"math"

	"github.com/1broseidon/tiletree/internal/container"
)

// Padding insets the usable area of a workspace.
type Padding struct {
	Top    int
	Bottom int
	Left   int
	Right  int
}

// IsZero reports whether no side is padded.
func (p Padding) IsZero() bool {
	return p.Top == 0 && p.Bottom == 0 && p.Left == 0 && p.Right == 0
}

// Arrange splits parent along the main axis of orientation into one rect per
// percentage. The gap is placed between consecutive children only, so the
// children and gaps together never exceed the parent's main axis. Sizes are
// truncated toward zero; leftover pixels stay at the far edge. The cross
// axis is copied from parent unchanged.
func Arrange(parent container.Rect, orientation container.Orientation, percentages []float64, gap int) []container.Rect {
	n := len(percentages)
	if n == 0 {
		return nil
	}
	if gap < 0 {
		gap = 0
	}

	main := parent.Width
	if orientation == container.Vertical {
		main = parent.Height
	}
	available := main - gap*(n-1)

	out := make([]container.Rect, n)
	next := parent.X
	if orientation == container.Vertical {
		next = parent.Y
	}
	for i, pct := range percentages {
		size := int(math.Floor(pct * float64(available)))
		if size < 0 {
			size = 0
		}

		r := parent
		if orientation == container.Vertical {
			r.Y = next
			r.Height = size
		} else {
			r.X = next
			r.Width = size
		}
		out[i] = r
		next += size + gap
	}
	return out
}

// ApplyPadding shrinks bounds by padding. It fails when nothing usable is left.
func ApplyPadding(bounds container.Rect, padding Padding) (container.Rect, error) {
	if padding.IsZero() {
		return bounds, nil
	}
	bounds.X += padding.Left
	bounds.Y += padding.Top
	bounds.Width -= padding.Left + padding.Right
	bounds.Height -= padding.Top + padding.Bottom

	if bounds.Width < 1 || bounds.Height < 1 {
		return bounds, fmt.Errorf("screen_padding leaves no usable space: %s", bounds)
	}
	return bounds, nil
}
