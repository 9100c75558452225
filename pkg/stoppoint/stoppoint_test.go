package stoppoint_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/burritoOverflow/sdb/pkg/addr"
	"github.com/burritoOverflow/sdb/pkg/stoppoint"
)

type fakeMem struct {
	bytes map[uint64]byte
}

func newFakeMem() *fakeMem { return &fakeMem{bytes: map[uint64]byte{0x1000: 0x90}} }

func (m *fakeMem) ReadMemory(address addr.VirtualAddress, n int) ([]byte, error) {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = m.bytes[address.Addr()+uint64(i)]
	}
	return out, nil
}

func (m *fakeMem) WriteMemory(address addr.VirtualAddress, data []byte) error {
	for i, b := range data {
		m.bytes[address.Addr()+uint64(i)] = b
	}
	return nil
}

type fakeHW struct {
	nextIndex int
	cleared   []int
}

func (h *fakeHW) SetHardwareBreakpoint(address addr.VirtualAddress) (int, error) {
	idx := h.nextIndex
	h.nextIndex++
	return idx, nil
}

func (h *fakeHW) ClearHardwareStoppoint(index int) error {
	h.cleared = append(h.cleared, index)
	return nil
}

func TestSoftwareBreakpointPatchesAndRestores(t *testing.T) {
	mem := newFakeMem()
	site := stoppoint.NewBreakpointSite(1, addr.NewVirtualAddress(0x1000), false, false, mem, &fakeHW{})

	require.NoError(t, site.Enable())
	require.True(t, site.IsEnabled())
	require.Equal(t, byte(0xCC), mem.bytes[0x1000])

	require.NoError(t, site.Disable())
	require.False(t, site.IsEnabled())
	require.Equal(t, byte(0x90), mem.bytes[0x1000])
}

func TestHardwareBreakpointClaimsAndReleasesIndex(t *testing.T) {
	hw := &fakeHW{}
	site := stoppoint.NewBreakpointSite(1, addr.NewVirtualAddress(0x2000), true, false, newFakeMem(), hw)

	require.NoError(t, site.Enable())
	require.NoError(t, site.Disable())
	require.Equal(t, []int{0}, hw.cleared)
}

func TestCollectionFindAndRemove(t *testing.T) {
	c := stoppoint.NewCollection[*stoppoint.BreakpointSite]()
	mem := newFakeMem()
	hw := &fakeHW{}
	a := stoppoint.NewBreakpointSite(1, addr.NewVirtualAddress(0x1000), false, false, mem, hw)
	b := stoppoint.NewBreakpointSite(2, addr.NewVirtualAddress(0x2000), false, false, mem, hw)
	c.Push(a)
	c.Push(b)

	require.Equal(t, 2, c.Size())
	got, ok := c.GetByID(2)
	require.True(t, ok)
	require.Equal(t, b, got)

	require.True(t, c.ContainsAddress(addr.NewVirtualAddress(0x1000)))
	require.NoError(t, c.RemoveByID(1))
	require.Equal(t, 1, c.Size())
	require.False(t, c.ContainsAddress(addr.NewVirtualAddress(0x1000)))
}

func TestWatchpointRejectsUnalignedAddress(t *testing.T) {
	_, err := stoppoint.NewWatchpoint(1, addr.NewVirtualAddress(0x1001), stoppoint.Write, 4, nil)
	require.Error(t, err)
}
