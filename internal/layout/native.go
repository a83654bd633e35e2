package layout

import (
	"strings"

	"github.com/1broseidon/tiletree/internal/container"
)

// BatchID identifies an open batch on a NativeSync.
type BatchID uint64

// Flags accompany every window update in a batch.
type Flags uint32

const (
	FlagFrameChanged Flags = 1 << iota
	FlagNoActivate
	FlagNoCopyBits
	FlagNoZOrder
	FlagNoOwnerZOrder
	FlagHide
	FlagShow
	// FlagDeiconify asks the backend to map the window even if it was
	// iconified by someone else.
	FlagDeiconify
)

// baseFlags is set on every update the redraw pass emits.
const baseFlags = FlagFrameChanged | FlagNoActivate | FlagNoCopyBits | FlagNoZOrder | FlagNoOwnerZOrder

// Has reports whether all bits of x are set.
func (f Flags) Has(x Flags) bool {
	return f&x == x
}

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagFrameChanged, "frame-changed"},
	{FlagNoActivate, "no-activate"},
	{FlagNoCopyBits, "no-copy-bits"},
	{FlagNoZOrder, "no-z-order"},
	{FlagNoOwnerZOrder, "no-owner-z-order"},
	{FlagHide, "hide"},
	{FlagShow, "show"},
	{FlagDeiconify, "deiconify"},
}

func (f Flags) String() string {
	var parts []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			parts = append(parts, fn.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// NativeSync pushes computed geometry to the window system in one atomic
// batch: BeginBatch, one SetWindowPosition per window, EndBatch.
type NativeSync interface {
	BeginBatch(count int) (BatchID, error)
	SetWindowPosition(batch BatchID, handle container.Handle, rect container.Rect, flags Flags) error
	EndBatch(batch BatchID) error
}

// Update is one queued window position inside a batch.
type Update struct {
	Handle container.Handle
	Rect   container.Rect
	Flags  Flags
}
