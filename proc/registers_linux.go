package proc

import "github.com/burritoOverflow/sdb/pkg/registers"

// WriteUserArea pushes an 8-byte word to offset in the tracee's user
// area via PTRACE_POKEUSER. GPRs and debug registers both live in the
// user area at fixed offsets, so this one call serves both register
// kinds; registers.Snapshot.Write routes here for anything that is not
// an FPR.
func (p *Process) WriteUserArea(offset int, data uint64) error {
	return ptracePokeUser(p.pid, uintptr(offset), data)
}

// WriteFprs pushes the full FPR/SSE block back to the tracee via
// PTRACE_SETFPREGS. The kernel only accepts a full-block write.
func (p *Process) WriteFprs(data []byte) error {
	return ptraceSetFpRegs(p.pid, data)
}

var _ registers.Writer = (*Process)(nil)

// refreshRegisters re-reads every register from the tracee into the
// snapshot: GPRs and FPRs in bulk, debug registers one PTRACE_PEEKUSER
// at a time since the kernel has no bulk call for them. Called once per
// stop, after WaitOnSignal observes the tracee stopped.
func (p *Process) refreshRegisters() error {
	if err := ptraceGetRegs(p.pid, p.regs.GPRBytes()); err != nil {
		return err
	}
	if err := ptraceGetFpRegs(p.pid, p.regs.FPRBytes()); err != nil {
		return err
	}
	for _, info := range registers.All() {
		if info.Kind != registers.DR {
			continue
		}
		word, err := ptracePeekUser(p.pid, uintptr(info.Offset))
		if err != nil {
			return err
		}
		p.regs.FillWord(info.Offset, word)
	}
	return nil
}
