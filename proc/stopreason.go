package proc

import (
	sys "golang.org/x/sys/unix"

	"github.com/burritoOverflow/sdb/pkg/registers"
	"github.com/burritoOverflow/sdb/pkg/sdberr"
)

// ProcessState is a position in the controller's state machine.
// Resume, StepInstruction, and WaitOnSignal are the only transitions;
// Exited and Terminated are terminal.
type ProcessState int

const (
	ProcessRunning ProcessState = iota
	ProcessStopped
	ProcessExited
	ProcessTerminated
)

func (s ProcessState) String() string {
	switch s {
	case ProcessRunning:
		return "running"
	case ProcessStopped:
		return "stopped"
	case ProcessExited:
		return "exited"
	case ProcessTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// TrapType classifies a SIGTRAP stop once the process controller has
// inspected the kernel signal-info record behind it.
type TrapType int

const (
	TrapUnknown TrapType = iota
	TrapSingleStep
	TrapSoftwareBreakpoint
	TrapHardwareBreakpoint
	TrapSyscall
)

func (t TrapType) String() string {
	switch t {
	case TrapSingleStep:
		return "single-step"
	case TrapSoftwareBreakpoint:
		return "software-breakpoint"
	case TrapHardwareBreakpoint:
		return "hardware-breakpoint"
	case TrapSyscall:
		return "syscall"
	default:
		return "unknown"
	}
}

// SyscallInfo describes a syscall-entry or syscall-exit stop trapped
// via PTRACE_O_TRACESYSGOOD.
type SyscallInfo struct {
	Entry       bool
	ID          uint64
	Args        [6]uint64
	ReturnValue uint64
}

// StopReason is the decoded, augmented result of a wait.
type StopReason struct {
	State    ProcessState
	Info     int
	TrapType TrapType
	Syscall  *SyscallInfo
}

// These si_code values for a SIGTRAP stop are not exposed by
// golang.org/x/sys/unix; no header describing them was present in the
// retrieval this package was grounded on, so they are authored
// directly from the documented Linux siginfo.h ABI (see TRAP_TRACE,
// TRAP_HWBKPT, SI_KERNEL in <bits/siginfo.h>).
const (
	siCodeTrapTrace  = 2
	siCodeTrapHwBkpt = 4
	siCodeSiKernel   = 0x80
)

const sigTrapSyscall = int(sys.SIGTRAP) | 0x80

// decodeWaitStatus turns a raw waitpid status into the coarse
// Exited/Terminated/Stopped classification. Register re-reading and
// trap-type augmentation happen separately, only when attached and
// stopped.
func decodeWaitStatus(status sys.WaitStatus) StopReason {
	switch {
	case status.Exited():
		return StopReason{State: ProcessExited, Info: status.ExitStatus()}
	case status.Signaled():
		return StopReason{State: ProcessTerminated, Info: int(status.Signal())}
	default:
		return StopReason{State: ProcessStopped, Info: int(status.StopSignal())}
	}
}

// augmentStopReason fills in the trap-type/syscall-info detail for a
// Stopped reason already carrying the raw stop signal in Info. Mutates
// reason.Info to SIGTRAP once a syscall-stop's 0x80 tag bit has been
// consumed, so callers see a plain SIGTRAP plus TrapSyscall.
func (p *Process) augmentStopReason(reason *StopReason) error {
	if reason.Info == sigTrapSyscall {
		info := SyscallInfo{}
		orig := p.regs.ReadAs(registers.MustByName("orig_rax"))
		if p.expectingSyscallExit {
			info.Entry = false
			info.ID = orig
			info.ReturnValue = p.regs.ReadAs(registers.MustByName("rax"))
			p.expectingSyscallExit = false
		} else {
			info.Entry = true
			info.ID = orig
			for i, name := range syscallArgRegisters {
				info.Args[i] = p.regs.ReadAs(registers.MustByName(name))
			}
			p.expectingSyscallExit = true
		}
		reason.Info = int(sys.SIGTRAP)
		reason.TrapType = TrapSyscall
		reason.Syscall = &info
		return nil
	}

	p.expectingSyscallExit = false
	reason.TrapType = TrapUnknown
	if reason.Info != int(sys.SIGTRAP) {
		return nil
	}

	info, err := ptraceGetSigInfo(p.pid)
	if err != nil {
		return sdberr.NewOS("PTRACE_GETSIGINFO", err)
	}
	switch info.Code {
	case siCodeTrapTrace:
		reason.TrapType = TrapSingleStep
	case siCodeSiKernel:
		reason.TrapType = TrapSoftwareBreakpoint
	case siCodeTrapHwBkpt:
		reason.TrapType = TrapHardwareBreakpoint
	}
	return nil
}

// syscallArgRegisters is the SysV ABI syscall argument order.
var syscallArgRegisters = [6]string{"rdi", "rsi", "rdx", "r10", "r8", "r9"}
