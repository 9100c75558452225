package stoppoint

import "github.com/burritoOverflow/sdb/pkg/addr"

// MemoryIO is the slice of the process controller a software breakpoint
// site needs: enough to patch in and restore around an int3 byte.
type MemoryIO interface {
	ReadMemory(address addr.VirtualAddress, n int) ([]byte, error)
	WriteMemory(address addr.VirtualAddress, data []byte) error
}

// HardwareBreakpoints is the slice of the process controller a hardware
// breakpoint site needs: debug-register allocation and release.
type HardwareBreakpoints interface {
	SetHardwareBreakpoint(address addr.VirtualAddress) (int, error)
	ClearHardwareStoppoint(index int) error
}

const int3 = 0xCC

// BreakpointSite is a single planted breakpoint, software or hardware,
// user-visible or internal. Enabling a software site patches a single
// int3 byte into the inferior's text and remembers the byte it
// overwrote; disabling restores it. A hardware site instead claims one
// of the four debug address registers in execute mode.
type BreakpointSite struct {
	id       int64
	address  addr.VirtualAddress
	enabled  bool
	hardware bool
	internal bool

	savedByte byte
	hwIndex   int // -1 when not hardware or not currently enabled

	mem MemoryIO
	hw  HardwareBreakpoints
}

// NewBreakpointSite constructs a disabled breakpoint site at address.
func NewBreakpointSite(id int64, address addr.VirtualAddress, hardware, internal bool, mem MemoryIO, hw HardwareBreakpoints) *BreakpointSite {
	return &BreakpointSite{
		id:       id,
		address:  address,
		hardware: hardware,
		internal: internal,
		hwIndex:  -1,
		mem:      mem,
		hw:       hw,
	}
}

func (b *BreakpointSite) ID() int64                   { return b.id }
func (b *BreakpointSite) Address() addr.VirtualAddress { return b.address }
func (b *BreakpointSite) IsEnabled() bool              { return b.enabled }
func (b *BreakpointSite) IsHardware() bool             { return b.hardware }
func (b *BreakpointSite) IsInternal() bool             { return b.internal }

// SavedByte returns the original byte an enabled software site patched
// over with int3, so a caller presenting an untrapped view of memory
// (ReadMemoryWithoutTraps) can paper the patch back over.
func (b *BreakpointSite) SavedByte() byte { return b.savedByte }

// IsInRange reports whether the site's address falls in [low, high).
func (b *BreakpointSite) IsInRange(low, high addr.VirtualAddress) bool {
	return !b.address.Less(low) && b.address.Less(high)
}

// Enable plants the breakpoint: for software sites, patches int3 over
// the saved original byte; for hardware sites, claims a debug register.
func (b *BreakpointSite) Enable() error {
	if b.enabled {
		return nil
	}
	if b.hardware {
		idx, err := b.hw.SetHardwareBreakpoint(b.address)
		if err != nil {
			return err
		}
		b.hwIndex = idx
		b.enabled = true
		return nil
	}

	orig, err := b.mem.ReadMemory(b.address, 1)
	if err != nil {
		return err
	}
	b.savedByte = orig[0]
	if err := b.mem.WriteMemory(b.address, []byte{int3}); err != nil {
		return err
	}
	b.enabled = true
	return nil
}

// Disable removes the breakpoint, restoring whatever it overwrote.
func (b *BreakpointSite) Disable() error {
	if !b.enabled {
		return nil
	}
	if b.hardware {
		if err := b.hw.ClearHardwareStoppoint(b.hwIndex); err != nil {
			return err
		}
		b.hwIndex = -1
		b.enabled = false
		return nil
	}

	if err := b.mem.WriteMemory(b.address, []byte{b.savedByte}); err != nil {
		return err
	}
	b.enabled = false
	return nil
}
