package proc

import (
	sys "golang.org/x/sys/unix"

	"github.com/burritoOverflow/sdb/pkg/addr"
	"github.com/burritoOverflow/sdb/pkg/sdberr"
	"github.com/burritoOverflow/sdb/pkg/stoppoint"
)

const pageSize = 0x1000

// ReadMemory reads n bytes of the inferior's memory starting at
// address, via the kernel's scatter-read facility. The remote side of
// the transfer is split on page boundaries so no single remote iovec
// crosses a page: a iovec that straddles an unmapped page fails the
// whole call, and a caller asking to read across a mapping boundary
// should still get back whatever is mapped rather than an opaque
// failure.
func (p *Process) ReadMemory(address addr.VirtualAddress, n int) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	out := make([]byte, n)

	var remote []sys.RemoteIovec
	start := address.Addr()
	end := start + uint64(n)
	for cur := start; cur < end; {
		pageEnd := (cur &^ uint64(pageSize-1)) + pageSize
		chunkEnd := end
		if pageEnd < chunkEnd {
			chunkEnd = pageEnd
		}
		remote = append(remote, sys.RemoteIovec{Base: uintptr(cur), Len: int(chunkEnd - cur)})
		cur = chunkEnd
	}

	local := []sys.Iovec{{Base: &out[0], Len: uint64(n)}}

	read, err := sys.ProcessVMReadv(p.pid, local, remote, 0)
	if err != nil {
		return nil, sdberr.NewOS("process_vm_readv", err)
	}
	return out[:read], nil
}

// ReadMemoryWithoutTraps is ReadMemory with every enabled software
// breakpoint's patched int3 byte papered back over with the original
// byte it replaced, so callers see the inferior's logical memory rather
// than the debugger's own instrumentation.
func (p *Process) ReadMemoryWithoutTraps(address addr.VirtualAddress, n int) ([]byte, error) {
	data, err := p.ReadMemory(address, n)
	if err != nil {
		return nil, err
	}
	for _, site := range p.breakpoints.InRange(address, address.Add(int64(n))) {
		if !site.IsEnabled() || site.IsHardware() {
			continue
		}
		offset := int(site.Address().Sub(address))
		data[offset] = site.SavedByte()
	}
	return data, nil
}

// WriteMemory writes data into the inferior's memory starting at
// address, one 8-byte word at a time via PTRACE_POKEDATA. A trailing
// partial word is filled in by reading the word first and overwriting
// only the bytes data actually supplies, since POKEDATA always writes a
// full word.
func (p *Process) WriteMemory(address addr.VirtualAddress, data []byte) error {
	written := 0
	for written < len(data) {
		remaining := len(data) - written
		chunkAddr := address.Add(int64(written))
		if remaining >= 8 {
			if err := ptracePokeData(p.pid, uintptr(chunkAddr.Addr()), data[written:written+8]); err != nil {
				return sdberr.NewOS("PTRACE_POKEDATA", err)
			}
			written += 8
			continue
		}

		word, err := ptracePeekData(p.pid, uintptr(chunkAddr.Addr()), 8)
		if err != nil {
			return sdberr.NewOS("PTRACE_PEEKDATA", err)
		}
		copy(word, data[written:])
		if err := ptracePokeData(p.pid, uintptr(chunkAddr.Addr()), word); err != nil {
			return sdberr.NewOS("PTRACE_POKEDATA", err)
		}
		written += remaining
	}
	return nil
}

var _ stoppoint.MemoryIO = (*Process)(nil)
