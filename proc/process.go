package proc

import (
	"os"
	"os/exec"
	"runtime"
	"syscall"

	"github.com/sirupsen/logrus"
	sys "golang.org/x/sys/unix"

	"github.com/burritoOverflow/sdb/pkg/addr"
	"github.com/burritoOverflow/sdb/pkg/registers"
	"github.com/burritoOverflow/sdb/pkg/sdberr"
	"github.com/burritoOverflow/sdb/pkg/stoppoint"
)

var launchLog = logrus.WithField("layer", "proc")

// Process controls one traced inferior: its ptrace lifecycle, register
// snapshot, and the stoppoints planted in it. There is exactly one
// Process per debugged program; multi-threaded control is out of
// scope.
type Process struct {
	pid             int
	state           ProcessState
	attached        bool
	terminateOnDrop bool

	regs *registers.Snapshot

	breakpoints *stoppoint.Collection[*stoppoint.BreakpointSite]
	watchpoints *stoppoint.Collection[*stoppoint.Watchpoint]
	bpIDs       *stoppoint.IDGen
	wpIDs       *stoppoint.IDGen

	drOwner [4]drKind

	catchPolicy          CatchPolicy
	expectingSyscallExit bool

	log *logrus.Entry
}

func newProcess(pid int, attached, terminateOnDrop bool) *Process {
	p := &Process{
		pid:             pid,
		state:           ProcessStopped,
		attached:        attached,
		terminateOnDrop: terminateOnDrop,
		breakpoints:     stoppoint.NewCollection[*stoppoint.BreakpointSite](),
		watchpoints:     stoppoint.NewCollection[*stoppoint.Watchpoint](),
		bpIDs:           stoppoint.NewIDGen(),
		wpIDs:           stoppoint.NewIDGen(),
		log:             logrus.WithFields(logrus.Fields{"layer": "proc", "pid": pid}),
	}
	p.regs = registers.New(p)
	return p
}

// addrNoRandomize is ADDR_NO_RANDOMIZE from <linux/personality.h>; not
// exposed by golang.org/x/sys/unix, so authored directly from the
// kernel ABI like the register offsets in pkg/registers.
const addrNoRandomize = 0x0040000

// disableASLR toggles personality(2)'s ADDR_NO_RANDOMIZE bit on the
// calling thread and returns a closure that restores it. personality
// is inherited across both fork and exec, which is why it has to be
// set here rather than in the child: os/exec gives no pre-exec hook to
// call it after fork but before execve. The calling goroutine is
// pinned to its OS thread for the duration, since the Go runtime forks
// from whichever thread called Start.
func disableASLR() (restore func(), err error) {
	runtime.LockOSThread()
	cur, _, errno := sys.Syscall(sys.SYS_PERSONALITY, 0xffffffff, 0, 0)
	if errno != 0 {
		runtime.UnlockOSThread()
		return nil, sdberr.NewOS("personality(query)", errno)
	}
	if _, _, errno := sys.Syscall(sys.SYS_PERSONALITY, cur|addrNoRandomize, 0, 0); errno != 0 {
		runtime.UnlockOSThread()
		return nil, sdberr.NewOS("personality(ADDR_NO_RANDOMIZE)", errno)
	}
	return func() {
		sys.Syscall(sys.SYS_PERSONALITY, cur, 0, 0)
		runtime.UnlockOSThread()
	}, nil
}

// Launch starts path as a new traced child. stdoutFD, if >= 0,
// replaces the child's standard output; otherwise the child inherits
// this process's standard output and error, so a launched program's
// own output is visible the way a shell session expects. If debug is
// false the child is not traced at all (it simply runs).
func Launch(path string, args []string, debug bool, stdoutFD int) (*Process, error) {
	cmd := exec.Command(path, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Ptrace: debug, Setpgid: true}
	if stdoutFD >= 0 {
		cmd.Stdout = os.NewFile(uintptr(stdoutFD), "stdout")
	} else {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	// The child is forked on the ptrace thread: with PTRACE_TRACEME the
	// forking thread becomes the tracer, and every later ptrace request
	// is issued from that same thread.
	var setupErr, startErr error
	execOnPtraceThread(func() {
		restore, err := disableASLR()
		if err != nil {
			setupErr = err
			return
		}
		startErr = cmd.Start()
		restore()
	})
	if setupErr != nil {
		return nil, setupErr
	}
	if startErr != nil {
		err := sdberr.NewOS("fork/exec", startErr)
		launchLog.WithError(err).Error("failed to launch inferior")
		return nil, err
	}

	p := newProcess(cmd.Process.Pid, debug, true)
	if debug {
		if _, err := p.WaitOnSignal(); err != nil {
			return nil, err
		}
		if err := ptraceSetOptions(p.pid, sys.PTRACE_O_TRACESYSGOOD); err != nil {
			return nil, sdberr.NewOS("PTRACE_SETOPTIONS", err)
		}
	}
	return p, nil
}

// Attach takes control of an already-running process by pid. The
// process is not killed when this Process is dropped, only detached.
func Attach(pid int) (*Process, error) {
	if pid <= 0 {
		return nil, sdberr.NewArgument("invalid pid %d", pid)
	}
	if err := ptraceAttach(pid); err != nil {
		wrapped := sdberr.NewOS("PTRACE_ATTACH", err)
		launchLog.WithError(wrapped).WithField("pid", pid).Error("failed to attach")
		return nil, wrapped
	}

	p := newProcess(pid, true, false)
	if _, err := p.WaitOnSignal(); err != nil {
		return nil, err
	}
	if err := ptraceSetOptions(p.pid, sys.PTRACE_O_TRACESYSGOOD); err != nil {
		return nil, sdberr.NewOS("PTRACE_SETOPTIONS", err)
	}
	return p, nil
}

func (p *Process) Pid() int            { return p.pid }
func (p *Process) State() ProcessState { return p.state }
func (p *Process) Registers() *registers.Snapshot { return p.regs }

// GetPc returns the current program counter.
func (p *Process) GetPc() addr.VirtualAddress {
	return addr.NewVirtualAddress(p.regs.ReadAs(registers.MustByName("rip")))
}

// SetPc sets the program counter, pushing the write to the inferior
// immediately.
func (p *Process) SetPc(a addr.VirtualAddress) error {
	return p.regs.Write(registers.MustByName("rip"), a.Addr())
}

func (p *Process) enabledSoftwareSiteAt(a addr.VirtualAddress) *stoppoint.BreakpointSite {
	site, ok := p.breakpoints.GetByAddress(a)
	if !ok || !site.IsEnabled() || site.IsHardware() {
		return nil
	}
	return site
}

// stepOverBreakpoint disables an enabled software breakpoint sitting
// at the current PC, single-steps past it, and re-enables it. Any
// Stopped result from the inner wait means the instruction retired;
// only Exited/Terminated there is reported back to the caller, which
// must not proceed to its own continue/step request in that case.
func (p *Process) stepOverBreakpoint() (*StopReason, error) {
	site := p.enabledSoftwareSiteAt(p.GetPc())
	if site == nil {
		return nil, nil
	}
	if err := site.Disable(); err != nil {
		return nil, err
	}
	if err := ptraceSingleStep(p.pid); err != nil {
		return nil, sdberr.NewOS("PTRACE_SINGLESTEP", err)
	}
	reason, err := p.WaitOnSignal()
	if err != nil {
		return nil, err
	}
	if reason.State == ProcessExited || reason.State == ProcessTerminated {
		return reason, nil
	}
	if err := site.Enable(); err != nil {
		return nil, err
	}
	return nil, nil
}

// Resume continues the inferior, stepping over an enabled breakpoint
// at the current PC first if needed. Uses PTRACE_SYSCALL instead of
// PTRACE_CONT whenever the syscall catch policy is not CatchNone.
func (p *Process) Resume() (*StopReason, error) {
	if p.state == ProcessExited || p.state == ProcessTerminated {
		return nil, sdberr.NewState("cannot resume a %s process", p.state)
	}
	if shortCircuit, err := p.stepOverBreakpoint(); err != nil {
		return nil, err
	} else if shortCircuit != nil {
		return shortCircuit, nil
	}

	var err error
	if p.catchPolicy.Mode == CatchNone {
		err = ptraceCont(p.pid, 0)
	} else {
		err = ptraceSyscall(p.pid, 0)
	}
	if err != nil {
		wrapped := sdberr.NewOS("resume", err)
		p.log.WithError(wrapped).Error("failed to resume inferior")
		return nil, wrapped
	}
	p.state = ProcessRunning
	return nil, nil
}

// StepInstruction executes exactly one machine instruction. If an
// enabled software breakpoint sits at the current PC, it is disabled
// before the step and re-enabled after, so the step itself is what
// carries the inferior past it rather than an extra step of its own.
func (p *Process) StepInstruction() (*StopReason, error) {
	if p.state == ProcessExited || p.state == ProcessTerminated {
		return nil, sdberr.NewState("cannot step a %s process", p.state)
	}

	site := p.enabledSoftwareSiteAt(p.GetPc())
	if site != nil {
		if err := site.Disable(); err != nil {
			return nil, err
		}
	}

	if err := ptraceSingleStep(p.pid); err != nil {
		return nil, sdberr.NewOS("PTRACE_SINGLESTEP", err)
	}
	reason, err := p.WaitOnSignal()
	if err != nil {
		return nil, err
	}
	if site != nil && reason.State == ProcessStopped {
		if err := site.Enable(); err != nil {
			return nil, err
		}
	}
	return reason, nil
}

// WaitOnSignal blocks until the inferior reports a status, decodes and
// (if attached and stopped) augments it, applies the software-
// breakpoint PC fix-up and watchpoint data refresh, then transparently
// resumes past any syscall-stop the catch policy does not want.
func (p *Process) WaitOnSignal() (*StopReason, error) {
	var status sys.WaitStatus
	if _, err := sys.Wait4(p.pid, &status, 0, nil); err != nil {
		wrapped := sdberr.NewOS("wait4", err)
		p.log.WithError(wrapped).Error("wait4 failed")
		return nil, wrapped
	}
	reason := decodeWaitStatus(status)
	p.state = reason.State

	if p.attached && reason.State == ProcessStopped {
		if err := p.refreshRegisters(); err != nil {
			wrapped := sdberr.NewOS("refresh registers", err)
			p.log.WithError(wrapped).Error("failed to refresh register snapshot")
			return nil, wrapped
		}
		if err := p.augmentStopReason(&reason); err != nil {
			return nil, err
		}

		if reason.TrapType == TrapSoftwareBreakpoint {
			instructionStart := p.GetPc().Add(-1)
			if site := p.enabledSoftwareSiteAt(instructionStart); site != nil {
				if err := p.SetPc(instructionStart); err != nil {
					return nil, err
				}
			}
		} else if reason.TrapType == TrapHardwareBreakpoint {
			stop := p.currentHardwareStop()
			if stop.Kind == HardwareStopWatchpoint {
				if wp, ok := p.watchpoints.GetByID(stop.WatchpointID); ok {
					if _, err := wp.UpdateData(); err != nil {
						return nil, err
					}
				}
			}
		} else if reason.TrapType == TrapSyscall {
			return p.maybeResumeFromSyscall(&reason)
		}
	}

	return &reason, nil
}

// maybeResumeFromSyscall implements syscall filtering: under CatchSome,
// a syscall-stop whose id is not in the catch list is transparently
// resumed past, recursing through WaitOnSignal until a wanted stop (or
// a non-syscall stop) is found.
func (p *Process) maybeResumeFromSyscall(reason *StopReason) (*StopReason, error) {
	if p.catchPolicy.Mode == CatchSome && reason.Syscall != nil {
		if !p.catchPolicy.catches(reason.Syscall.ID) {
			if _, err := p.Resume(); err != nil {
				return nil, err
			}
			return p.WaitOnSignal()
		}
	}
	return reason, nil
}

// CreateBreakpointSite constructs (but does not enable) a breakpoint
// site at address. Fails if one already exists there.
func (p *Process) CreateBreakpointSite(address addr.VirtualAddress, hardware, internal bool) (*stoppoint.BreakpointSite, error) {
	if p.breakpoints.ContainsAddress(address) {
		return nil, sdberr.NewArgument("breakpoint site already exists at %#x", address.Addr())
	}
	id := stoppoint.InternalID
	if !internal {
		id = p.bpIDs.Next()
	}
	site := stoppoint.NewBreakpointSite(id, address, hardware, internal, p, p)
	p.breakpoints.Push(site)
	return site, nil
}

// CreateWatchpoint constructs (but does not enable) a watchpoint at
// address. Fails if one already exists there or if size/alignment is
// invalid.
func (p *Process) CreateWatchpoint(address addr.VirtualAddress, mode stoppoint.Mode, size int) (*stoppoint.Watchpoint, error) {
	if p.watchpoints.ContainsAddress(address) {
		return nil, sdberr.NewArgument("watchpoint already exists at %#x", address.Addr())
	}
	wp, err := stoppoint.NewWatchpoint(p.wpIDs.Next(), address, mode, size, p)
	if err != nil {
		return nil, err
	}
	p.watchpoints.Push(wp)
	return wp, nil
}

func (p *Process) Breakpoints() *stoppoint.Collection[*stoppoint.BreakpointSite] { return p.breakpoints }
func (p *Process) Watchpoints() *stoppoint.Collection[*stoppoint.Watchpoint]     { return p.watchpoints }

// Close implements the controller's resource-ownership rule: if
// attached and still running, stop and reap it, then detach; if
// terminate-on-drop, kill and reap. Safe to call any time after
// construction, including on an already-exited process.
func (p *Process) Close() error {
	if p.pid == 0 {
		return nil
	}

	if p.attached {
		if p.state == ProcessRunning {
			if err := sys.Kill(p.pid, sys.SIGSTOP); err != nil {
				p.log.WithError(err).Warn("failed to stop inferior before detach")
			}
			var status sys.WaitStatus
			sys.Wait4(p.pid, &status, 0, nil)
		}
		if err := ptraceDetach(p.pid, 0); err != nil {
			p.log.WithError(err).Warn("failed to detach from inferior")
		}
		sys.Kill(p.pid, sys.SIGCONT)
	}

	if p.terminateOnDrop {
		sys.Kill(p.pid, sys.SIGKILL)
		var status sys.WaitStatus
		sys.Wait4(p.pid, &status, 0, nil)
	}
	return nil
}
