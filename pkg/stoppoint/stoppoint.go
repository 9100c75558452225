// Package stoppoint implements the two kinds of stoppoint the debugger
// can plant — software/hardware breakpoint sites and data watchpoints —
// and the generic collection that indexes either kind by id and by
// address.
package stoppoint

import "github.com/burritoOverflow/sdb/pkg/addr"

// Stoppoint is the interface the generic Collection needs from either
// concrete kind. It replaces the source's polymorphic StopPoint base
// class (see SPEC_FULL.md's Design Notes: no inheritance hierarchy is
// needed, a tagged union and one generic collection suffice).
type Stoppoint interface {
	ID() int64
	Address() addr.VirtualAddress
	IsEnabled() bool
	IsInRange(low, high addr.VirtualAddress) bool
	Disable() error
}

// IDGen is a per-collection monotonic id counter starting at 1. The
// source used a single process-wide global counter for both breakpoint
// and watchpoint ids; SPEC_FULL.md's Design Notes call for re-architecting
// that as a counter each Process owns, one per collection.
type IDGen struct {
	next int64
}

// NewIDGen constructs a counter starting at 1.
func NewIDGen() *IDGen { return &IDGen{next: 1} }

// Next returns the next id and advances the counter.
func (g *IDGen) Next() int64 {
	id := g.next
	g.next++
	return id
}

// InternalID is the fixed id carried by internal stoppoints (planted by
// the controller itself, e.g. for stepping-over, and hidden from user
// listings).
const InternalID int64 = -1
