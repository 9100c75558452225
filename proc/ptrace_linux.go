package proc

import (
	"syscall"
	"unsafe"

	sys "golang.org/x/sys/unix"
)

// ptraceAttach issues PTRACE_ATTACH.
func ptraceAttach(pid int) error {
	var err error
	execOnPtraceThread(func() { err = sys.PtraceAttach(pid) })
	return err
}

// ptraceDetach issues PTRACE_DETACH, delivering sig (usually 0) to the
// tracee as it resumes outside of tracing.
func ptraceDetach(pid, sig int) error {
	var err error
	execOnPtraceThread(func() {
		_, _, errno := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_DETACH, uintptr(pid), 1, uintptr(sig), 0, 0)
		if errno != 0 {
			err = errno
		}
	})
	return err
}

// ptraceCont issues a plain PTRACE_CONT, resuming the tracee without
// syscall-entry/exit trapping.
func ptraceCont(pid, sig int) error {
	var err error
	execOnPtraceThread(func() { err = sys.PtraceCont(pid, sig) })
	return err
}

// ptraceSyscall issues PTRACE_SYSCALL: resumes the tracee but stops it
// again at the next syscall entry or exit, reported as a SIGTRAP with
// bit 0x80 set when TRACESYSGOOD is in effect.
func ptraceSyscall(pid, sig int) error {
	var err error
	execOnPtraceThread(func() {
		_, _, errno := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_SYSCALL, uintptr(pid), 0, uintptr(sig), 0, 0)
		if errno != 0 {
			err = errno
		}
	})
	return err
}

// ptraceSingleStep issues PTRACE_SINGLESTEP.
func ptraceSingleStep(pid int) error {
	var err error
	execOnPtraceThread(func() { err = sys.PtraceSingleStep(pid) })
	return err
}

// ptracePeekData reads size bytes of the tracee's memory one word at a
// time via PTRACE_PEEKDATA.
func ptracePeekData(pid int, address uintptr, size int) ([]byte, error) {
	var err error
	data := make([]byte, size)
	execOnPtraceThread(func() { _, err = sys.PtracePeekData(pid, address, data) })
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ptracePokeData writes data into the tracee's memory via
// PTRACE_POKEDATA.
func ptracePokeData(pid int, address uintptr, data []byte) error {
	var err error
	execOnPtraceThread(func() { _, err = sys.PtracePokeData(pid, address, data) })
	return err
}

// ptracePeekUser reads one word from the tracee's user area (GPRs and
// debug registers alias this area at fixed offsets) via PTRACE_PEEKUSER.
func ptracePeekUser(pid int, offset uintptr) (uint64, error) {
	var val uint64
	var err error
	execOnPtraceThread(func() {
		_, _, errno := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_PEEKUSR, uintptr(pid), offset, uintptr(unsafe.Pointer(&val)), 0, 0)
		if errno != 0 {
			err = errno
		}
	})
	return val, err
}

// ptracePokeUser writes one word into the tracee's user area via
// PTRACE_POKEUSER.
func ptracePokeUser(pid int, offset uintptr, data uint64) error {
	var err error
	execOnPtraceThread(func() {
		_, _, errno := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_POKEUSR, uintptr(pid), offset, uintptr(data), 0, 0)
		if errno != 0 {
			err = errno
		}
	})
	return err
}

// ptraceGetRegs fills buf (must be exactly the size of struct
// user_regs_struct, 216 bytes on x86-64) via PTRACE_GETREGS.
func ptraceGetRegs(pid int, buf []byte) error {
	var err error
	execOnPtraceThread(func() {
		_, _, errno := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_GETREGS, uintptr(pid), 0, uintptr(unsafe.Pointer(&buf[0])), 0, 0)
		if errno != 0 {
			err = errno
		}
	})
	return err
}

// ptraceSetRegs pushes buf back via PTRACE_SETREGS.
func ptraceSetRegs(pid int, buf []byte) error {
	var err error
	execOnPtraceThread(func() {
		_, _, errno := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_SETREGS, uintptr(pid), 0, uintptr(unsafe.Pointer(&buf[0])), 0, 0)
		if errno != 0 {
			err = errno
		}
	})
	return err
}

// ptraceGetFpRegs fills buf (struct user_fpregs_struct, 512 bytes) via
// PTRACE_GETFPREGS. golang.org/x/sys/unix does not wrap this request
// directly, so it goes through the raw syscall like the rest of this
// file's bulk register calls.
func ptraceGetFpRegs(pid int, buf []byte) error {
	var err error
	execOnPtraceThread(func() {
		_, _, errno := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_GETFPREGS, uintptr(pid), 0, uintptr(unsafe.Pointer(&buf[0])), 0, 0)
		if errno != 0 {
			err = errno
		}
	})
	return err
}

// ptraceSetFpRegs pushes buf back via PTRACE_SETFPREGS. The kernel
// rejects a partial x87/SSE write, so this is always a full 512-byte
// round trip.
func ptraceSetFpRegs(pid int, buf []byte) error {
	var err error
	execOnPtraceThread(func() {
		_, _, errno := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_SETFPREGS, uintptr(pid), 0, uintptr(unsafe.Pointer(&buf[0])), 0, 0)
		if errno != 0 {
			err = errno
		}
	})
	return err
}

// ptraceSetOptions issues PTRACE_SETOPTIONS. The only option this
// controller cares about is PTRACE_O_TRACESYSGOOD, which makes
// syscall-stops reportable as SIGTRAP | 0x80 rather than a bare SIGTRAP
// indistinguishable from a breakpoint trap.
func ptraceSetOptions(pid int, options int) error {
	var err error
	execOnPtraceThread(func() { err = syscall.PtraceSetOptions(pid, options) })
	return err
}

// sigInfo is the prefix of struct siginfo_t this controller reads: just
// enough to classify a SIGTRAP by its si_code.
type sigInfo struct {
	Signo int32
	Errno int32
	Code  int32
	_     int32
}

// ptraceGetSigInfo reads the signal-info record for the tracee's
// current stop via PTRACE_GETSIGINFO, used to tell a single-step trap
// (TRAP_TRACE) from an int3 trap (SI_KERNEL, x86-64's well-known quirk
// of reporting software breakpoints this way) from a hardware
// breakpoint/watchpoint trap (TRAP_HWBKPT).
func ptraceGetSigInfo(pid int) (sigInfo, error) {
	var info sigInfo
	var err error
	execOnPtraceThread(func() {
		_, _, errno := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_GETSIGINFO, uintptr(pid), 0, uintptr(unsafe.Pointer(&info)), 0, 0)
		if errno != 0 {
			err = errno
		}
	})
	return info, err
}
