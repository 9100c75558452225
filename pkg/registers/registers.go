// Package registers describes every user-visible x86-64 register (GPR,
// sub-GPR, FPR/SSE, and the four debug address registers plus DR6/DR7),
// each with its offset into the snapshot buffer and the kernel user-area
// offset writes are routed through, and provides typed, widening-aware
// read/write over a live snapshot.
//
// The register table mirrors the standard, publicly documented Linux
// x86-64 struct user_regs_struct / struct user_fpregs_struct / u_debugreg
// kernel ABI layouts. No header describing this table was present in the
// retrieval this package was grounded on, so the concrete offsets below
// are authored directly from that kernel ABI rather than copied from a
// source file.
package registers

import "github.com/burritoOverflow/sdb/pkg/sdberr"

// Kind classifies where a register's bytes live and how it is written
// back to the inferior.
type Kind int

const (
	GPR Kind = iota
	SubGPR
	FPR
	DR
)

// Format classifies how a register's bytes are interpreted.
type Format int

const (
	Uint Format = iota
	DoubleFloat
	LongDouble
	Vector
)

// Info is one register's metadata.
type Info struct {
	Name   string
	DwarfID int
	Size   int
	Offset int // offset into the snapshot buffer; for GPR/DR this is
	           // also the real kernel user-area offset PTRACE_PEEKUSER/
	           // POKEUSER addresses.
	Kind   Kind
	Format Format
}

// gprBase, fprBase, drBase are the snapshot buffer's section starts.
// GPR and DR offsets double as real struct-user offsets (see package
// doc); FPR offsets are only ever used to address bytes inside our own
// snapshot / the bulk GETFPREGS-SETFPREGS buffer, never POKEUSER'd
// individually, so they need not match a real struct-user offset.
const (
	gprBase = 0
	gprSize = 216
	fprBase = gprBase + gprSize // 216
	fprSize = 512
	drBase  = 848 // real offsetof(struct user, u_debugreg) on x86-64 Linux
	drSize  = 8 * 8
	// SnapshotSize is the total size of the per-process register
	// snapshot buffer. There is a deliberate unused gap between the FPR
	// block and the DR block because the DR block's offset is pinned to
	// the real kernel layout.
	SnapshotSize = drBase + drSize
)

var (
	table    []Info
	byName   map[string]*Info
	byDwarf  map[int]*Info
)

func reg(name string, dwarf, size, offset int, kind Kind, format Format) {
	info := Info{Name: name, DwarfID: dwarf, Size: size, Offset: offset, Kind: kind, Format: format}
	table = append(table, info)
	byName[name] = &table[len(table)-1]
	if dwarf >= 0 {
		byDwarf[dwarf] = &table[len(table)-1]
	}
}

// gprFamily registers the 64-bit register name64 plus its narrower
// aliasing views (32/16/8-bit, and for the legacy four GPRs an 8-bit
// high-byte view), all sharing the same starting byte offset (x86 sub-
// registers alias the low bytes of their parent, little-endian).
func gprFamily(name64 string, dwarf64, offset int, sub32, sub16, sub8 string, sub8high string) {
	reg(name64, dwarf64, 8, offset, GPR, Uint)
	reg(sub32, -1, 4, offset, SubGPR, Uint)
	reg(sub16, -1, 2, offset, SubGPR, Uint)
	reg(sub8, -1, 1, offset, SubGPR, Uint)
	if sub8high != "" {
		reg(sub8high, -1, 1, offset+1, SubGPR, Uint)
	}
}

func init() {
	byName = make(map[string]*Info)
	byDwarf = make(map[int]*Info)

	gprFamily("rax", 0, gprBase+80, "eax", "ax", "al", "ah")
	gprFamily("rdx", 1, gprBase+96, "edx", "dx", "dl", "dh")
	gprFamily("rcx", 2, gprBase+88, "ecx", "cx", "cl", "ch")
	gprFamily("rbx", 3, gprBase+40, "ebx", "bx", "bl", "bh")
	gprFamily("rsi", 4, gprBase+104, "esi", "si", "sil", "")
	gprFamily("rdi", 5, gprBase+112, "edi", "di", "dil", "")
	gprFamily("rbp", 6, gprBase+32, "ebp", "bp", "bpl", "")
	gprFamily("rsp", 7, gprBase+152, "esp", "sp", "spl", "")
	gprFamily("r8", 8, gprBase+72, "r8d", "r8w", "r8b", "")
	gprFamily("r9", 9, gprBase+64, "r9d", "r9w", "r9b", "")
	gprFamily("r10", 10, gprBase+56, "r10d", "r10w", "r10b", "")
	gprFamily("r11", 11, gprBase+48, "r11d", "r11w", "r11b", "")
	gprFamily("r12", 12, gprBase+24, "r12d", "r12w", "r12b", "")
	gprFamily("r13", 13, gprBase+16, "r13d", "r13w", "r13b", "")
	gprFamily("r14", 14, gprBase+8, "r14d", "r14w", "r14b", "")
	gprFamily("r15", 15, gprBase+0, "r15d", "r15w", "r15b", "")

	reg("rip", 16, 8, gprBase+128, GPR, Uint)
	reg("eflags", 49, 8, gprBase+144, GPR, Uint)
	reg("cs", 51, 8, gprBase+136, GPR, Uint)
	reg("ss", 52, 8, gprBase+160, GPR, Uint)
	reg("ds", 53, 8, gprBase+184, GPR, Uint)
	reg("es", 50, 8, gprBase+192, GPR, Uint)
	reg("fs", 54, 8, gprBase+200, GPR, Uint)
	reg("gs", 55, 8, gprBase+208, GPR, Uint)
	reg("fs_base", 58, 8, gprBase+168, GPR, Uint)
	reg("gs_base", 59, 8, gprBase+176, GPR, Uint)
	reg("orig_rax", -1, 8, gprBase+120, GPR, Uint)

	reg("fcw", 65, 2, fprBase+0, FPR, Uint)
	reg("fsw", 66, 2, fprBase+2, FPR, Uint)
	reg("ftw", -1, 2, fprBase+4, FPR, Uint)
	reg("fop", -1, 2, fprBase+6, FPR, Uint)
	reg("frip", -1, 8, fprBase+8, FPR, Uint)
	reg("frdp", -1, 8, fprBase+16, FPR, Uint)
	reg("mxcsr", 64, 4, fprBase+24, FPR, Uint)
	reg("mxcsr_mask", -1, 4, fprBase+28, FPR, Uint)
	for i := 0; i < 8; i++ {
		reg(stName(i), 33+i, 10, fprBase+32+16*i, FPR, LongDouble)
	}
	for i := 0; i < 16; i++ {
		reg(xmmName(i), 17+i, 16, fprBase+160+16*i, FPR, Vector)
	}

	for i := 0; i < 4; i++ {
		reg(drName(i), -1, 8, drBase+8*i, DR, Uint)
	}
	reg("dr6", -1, 8, drBase+8*6, DR, Uint)
	reg("dr7", -1, 8, drBase+8*7, DR, Uint)
}

func stName(i int) string  { return "st" + itoa(i) }
func xmmName(i int) string { return "xmm" + itoa(i) }
func drName(i int) string  { return "dr" + itoa(i) }

func itoa(i int) string {
	if i < 10 {
		return string([]byte{byte('0' + i)})
	}
	return string([]byte{byte('0' + i/10), byte('0' + i%10)})
}

// ByName returns the register with the given name.
func ByName(name string) (*Info, error) {
	info, ok := byName[name]
	if !ok {
		return nil, sdberr.NewArgument("no such register %q", name)
	}
	return info, nil
}

// MustByName is ByName, panicking on an unknown name. Used only for the
// fixed set of registers the process controller itself refers to by a
// literal name (rip, rax, ...), which can never be misspelled at
// runtime.
func MustByName(name string) *Info {
	info, err := ByName(name)
	if err != nil {
		panic(err)
	}
	return info
}

// All returns every register's metadata.
func All() []Info { return table }
