package stoppoint

import "github.com/burritoOverflow/sdb/pkg/addr"

// Mode is the access type a watchpoint traps on.
type Mode int

const (
	Write Mode = iota
	ReadWrite
	Execute
)

// HardwareWatchpoints is the slice of the process controller a
// watchpoint needs: debug-register allocation in a given mode/size and
// release, plus enough memory access to track the watched value.
type HardwareWatchpoints interface {
	SetHardwareWatchpoint(address addr.VirtualAddress, mode Mode, size int) (int, error)
	ClearHardwareStoppoint(index int) error
	ReadMemory(address addr.VirtualAddress, n int) ([]byte, error)
}

// Watchpoint watches size bytes at address for accesses matching mode.
// Unlike a breakpoint site it is always hardware: there is no software
// emulation of a data watchpoint.
type Watchpoint struct {
	id      int64
	address addr.VirtualAddress
	mode    Mode
	size    int
	enabled bool
	hwIndex int

	data, previousData []byte

	hw HardwareWatchpoints
}

// NewWatchpoint constructs a disabled watchpoint. size must be one of
// 1, 2, 4, 8 and address must be aligned to size, matching what the x86
// debug-register length-encoding can express.
func NewWatchpoint(id int64, address addr.VirtualAddress, mode Mode, size int, hw HardwareWatchpoints) (*Watchpoint, error) {
	if size != 1 && size != 2 && size != 4 && size != 8 {
		return nil, errUnsupportedSize(size)
	}
	if address.Addr()&uint64(size-1) != 0 {
		return nil, errUnalignedWatchpoint(address, size)
	}
	return &Watchpoint{id: id, address: address, mode: mode, size: size, hwIndex: -1, hw: hw}, nil
}

func (w *Watchpoint) ID() int64                   { return w.id }
func (w *Watchpoint) Address() addr.VirtualAddress { return w.address }
func (w *Watchpoint) IsEnabled() bool              { return w.enabled }
func (w *Watchpoint) Mode() Mode                   { return w.mode }
func (w *Watchpoint) Size() int                    { return w.size }

func (w *Watchpoint) IsInRange(low, high addr.VirtualAddress) bool {
	return !w.address.Less(low) && w.address.Less(high)
}

// Enable claims a debug register in the watchpoint's mode and size, and
// captures the current value at its address as the baseline for
// UpdateData's change detection.
func (w *Watchpoint) Enable() error {
	if w.enabled {
		return nil
	}
	idx, err := w.hw.SetHardwareWatchpoint(w.address, w.mode, w.size)
	if err != nil {
		return err
	}
	w.hwIndex = idx
	w.enabled = true
	data, err := w.hw.ReadMemory(w.address, w.size)
	if err != nil {
		return err
	}
	w.data = data
	w.previousData = data
	return nil
}

// Disable releases the claimed debug register.
func (w *Watchpoint) Disable() error {
	if !w.enabled {
		return nil
	}
	if err := w.hw.ClearHardwareStoppoint(w.hwIndex); err != nil {
		return err
	}
	w.hwIndex = -1
	w.enabled = false
	return nil
}

// UpdateData re-reads the watched bytes and reports whether they
// changed since the previous call. The controller calls this on each
// hardware-breakpoint stop that DR6 attributes to this watchpoint.
func (w *Watchpoint) UpdateData() (changed bool, err error) {
	current, err := w.hw.ReadMemory(w.address, w.size)
	if err != nil {
		return false, err
	}
	w.previousData = w.data
	w.data = current
	return string(w.previousData) != string(w.data), nil
}

func (w *Watchpoint) Data() []byte         { return w.data }
func (w *Watchpoint) PreviousData() []byte { return w.previousData }
