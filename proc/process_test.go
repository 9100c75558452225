package proc_test

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	sys "golang.org/x/sys/unix"

	"github.com/burritoOverflow/sdb/pkg/addr"
	"github.com/burritoOverflow/sdb/pkg/stoppoint"
	"github.com/burritoOverflow/sdb/proc"
)

// processExists mirrors kill(pid, 0)'s existence-and-permission-check
// idiom: no signal is actually delivered.
func processExists(pid int) bool {
	err := sys.Kill(pid, 0)
	return err == nil
}

// processStatus reads the single-character state field out of
// /proc/<pid>/stat, e.g. 'R' running, 'S' sleeping, 't' tracing-stopped.
func processStatus(t *testing.T, pid int) byte {
	t.Helper()
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	require.NoError(t, err)
	line := string(data)
	idx := strings.LastIndexByte(line, ')')
	require.Greater(t, idx, -1)
	fields := strings.Fields(line[idx+1:])
	require.NotEmpty(t, fields)
	return fields[0][0]
}

func TestLaunchSuccess(t *testing.T) {
	p, err := proc.Launch("/bin/sleep", []string{"30"}, true, -1)
	require.NoError(t, err)
	defer p.Close()

	require.True(t, processExists(p.Pid()))
}

func TestLaunchNoSuchProgram(t *testing.T) {
	_, err := proc.Launch("/no/such/program", nil, true, -1)
	require.Error(t, err)
}

func TestAttachSuccess(t *testing.T) {
	target, err := proc.Launch("/bin/sleep", []string{"30"}, false, -1)
	require.NoError(t, err)
	defer target.Close()

	p, err := proc.Attach(target.Pid())
	require.NoError(t, err)
	defer p.Close()

	require.Equal(t, byte('t'), processStatus(t, target.Pid()))
}

func TestResumeSuccess(t *testing.T) {
	p, err := proc.Launch("/bin/sleep", []string{"30"}, true, -1)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Resume()
	require.NoError(t, err)

	status := processStatus(t, p.Pid())
	require.Contains(t, "RS", string(status))
}

func TestResumeAlreadyTerminated(t *testing.T) {
	p, err := proc.Launch("/bin/true", nil, true, -1)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Resume()
	require.NoError(t, err)

	reason, err := p.WaitOnSignal()
	require.NoError(t, err)
	require.Equal(t, proc.ProcessExited, reason.State)

	_, err = p.Resume()
	require.Error(t, err)
}

func TestStepInstructionAdvancesPc(t *testing.T) {
	p, err := proc.Launch("/bin/sleep", []string{"30"}, true, -1)
	require.NoError(t, err)
	defer p.Close()

	before := p.GetPc()
	reason, err := p.StepInstruction()
	require.NoError(t, err)
	require.Equal(t, proc.ProcessStopped, reason.State)
	require.NotEqual(t, before, p.GetPc())
}

func TestCreateBreakpointSiteDuplicateAddress(t *testing.T) {
	p, err := proc.Launch("/bin/sleep", []string{"30"}, true, -1)
	require.NoError(t, err)
	defer p.Close()

	a := p.GetPc()
	_, err = p.CreateBreakpointSite(a, false, false)
	require.NoError(t, err)

	_, err = p.CreateBreakpointSite(a, false, false)
	require.Error(t, err)
}

func TestCreateWatchpointDuplicateAddress(t *testing.T) {
	p, err := proc.Launch("/bin/sleep", []string{"30"}, true, -1)
	require.NoError(t, err)
	defer p.Close()

	a := p.GetPc()
	_, err = p.CreateWatchpoint(a, stoppoint.Write, 4)
	require.NoError(t, err)

	_, err = p.CreateWatchpoint(a, stoppoint.Write, 4)
	require.Error(t, err)
}

func TestSetSyscallCatchPolicyCatchesListedSyscalls(t *testing.T) {
	p, err := proc.Launch("/bin/sleep", []string{"30"}, true, -1)
	require.NoError(t, err)
	defer p.Close()

	p.SetSyscallCatchPolicy(proc.CatchPolicy{Mode: proc.CatchSome, Syscalls: []int{1, 2, 3}})
	require.NoError(t, err)

	_, err = p.Resume()
	require.NoError(t, err)
	reason, err := p.WaitOnSignal()
	require.NoError(t, err)
	require.Equal(t, proc.TrapSyscall, reason.TrapType)
	require.Contains(t, []uint64{1, 2, 3}, reason.Syscall.ID)
}

// readProcMaps returns the lines of /proc/<pid>/maps. The hardware
// stoppoint test below uses it to check that the inferior has memory
// mappings before it plants a stoppoint.
func readProcMaps(t *testing.T, pid int) []string {
	t.Helper()
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func TestHardwareBreakpointAllocatesAndClearsRegister(t *testing.T) {
	p, err := proc.Launch("/bin/sleep", []string{"30"}, true, -1)
	require.NoError(t, err)
	defer p.Close()

	require.NotEmpty(t, readProcMaps(t, p.Pid()))

	index, err := p.SetHardwareBreakpoint(addr.NewVirtualAddress(p.GetPc().Addr()))
	require.NoError(t, err)
	require.GreaterOrEqual(t, index, 0)
	require.Less(t, index, 4)

	require.NoError(t, p.ClearHardwareStoppoint(index))
}
