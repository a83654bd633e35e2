package container

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by lookups that reference a node or handle
// missing from the tree.
var ErrNotFound = errors.New("container not found")

// InvariantError describes a mutation that would break the tree's structural
// invariants. It is a programming fault: tree primitives panic with it.
type InvariantError struct {
	Op  string
	ID  NodeID
	Err error
}

func (e *InvariantError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("container invariant violated: %s #%d: %v", e.Op, e.ID, e.Err)
}

func (e *InvariantError) Unwrap() error {
	return e.Err
}

func violated(op string, id NodeID, format string, args ...any) {
	panic(&InvariantError{Op: op, ID: id, Err: fmt.Errorf(format, args...)})
}
