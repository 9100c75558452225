// Package target binds a traced process to the ELF image it is running,
// so callers work with one handle instead of juggling a process and an
// image and remembering to relate the two.
package target

import (
	"fmt"

	"github.com/burritoOverflow/sdb/pkg/addr"
	"github.com/burritoOverflow/sdb/pkg/dwarf"
	"github.com/burritoOverflow/sdb/pkg/elf"
	"github.com/burritoOverflow/sdb/pkg/sdberr"
	"github.com/burritoOverflow/sdb/proc"
)

// Target pairs a running, traced process with the ELF image it was
// started from. Constructed only via Launch or Attach, never directly:
// the load bias it carries is only meaningful once the process exists.
type Target struct {
	process *proc.Process
	elf     *elf.File
}

// createLoadedElf opens path's ELF image and sets its load bias from
// the traced process's auxiliary vector: AT_ENTRY carries the runtime
// address of the entry point after loading, and subtracting the file's
// own recorded entry point gives the offset everything else in the
// image was relocated by.
func createLoadedElf(process *proc.Process, path string) (*elf.File, error) {
	auxv, err := readAuxv(process.Pid())
	if err != nil {
		return nil, err
	}
	entry, ok := auxv[atEntry]
	if !ok {
		return nil, sdberr.NewFormat("auxiliary vector for pid %d has no AT_ENTRY", process.Pid())
	}

	obj, err := elf.Open(path)
	if err != nil {
		return nil, err
	}

	bias := addr.NewVirtualAddress(entry - obj.Header().Entry)
	obj.NotifyLoaded(bias)
	return obj, nil
}

// Launch starts path as a new traced inferior and loads its ELF image,
// biased against the address the kernel actually loaded it at.
func Launch(path string, args []string, stdoutFD int) (*Target, error) {
	process, err := proc.Launch(path, args, true, stdoutFD)
	if err != nil {
		return nil, err
	}
	obj, err := createLoadedElf(process, path)
	if err != nil {
		process.Close()
		return nil, err
	}
	return &Target{process: process, elf: obj}, nil
}

// Attach takes control of an already-running process by pid, resolving
// its executable image via the /proc/<pid>/exe symlink.
func Attach(pid int) (*Target, error) {
	process, err := proc.Attach(pid)
	if err != nil {
		return nil, err
	}
	exePath := fmt.Sprintf("/proc/%d/exe", pid)
	obj, err := createLoadedElf(process, exePath)
	if err != nil {
		process.Close()
		return nil, err
	}
	return &Target{process: process, elf: obj}, nil
}

// Process returns the underlying traced process.
func (t *Target) Process() *proc.Process { return t.process }

// Elf returns the underlying ELF image.
func (t *Target) Elf() *elf.File { return t.elf }

// FunctionContainingAddress looks up the subprogram DIE whose range
// covers the given runtime address, converting it to a file address
// against this target's ELF image first.
func (t *Target) FunctionContainingAddress(va addr.VirtualAddress) (dwarf.Die, bool, error) {
	return t.elf.Dwarf().FunctionContainingAddress(t.elf.ToFile(va))
}

// CompileUnitContainingAddress looks up the compile unit whose root DIE
// covers the given runtime address, converting it to a file address
// against this target's ELF image first.
func (t *Target) CompileUnitContainingAddress(va addr.VirtualAddress) (*dwarf.CompileUnit, error) {
	return t.elf.Dwarf().CompileUnitContainingAddress(t.elf.ToFile(va))
}

// Close tears down the process and releases the ELF image's mapping.
func (t *Target) Close() error {
	procErr := t.process.Close()
	elfErr := t.elf.Close()
	if procErr != nil {
		return procErr
	}
	return elfErr
}
