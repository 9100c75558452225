// Package addr defines the distinct address-like types the debugger
// passes around: virtual addresses in the inferior's runtime address
// space, file addresses bound to a particular ELF image, file offsets,
// and borrowed byte spans. Keeping these as separate types prevents the
// class of bug where a file address is used where a virtual address was
// meant, or vice versa.
package addr

// FileIdentity is an opaque handle to the ELF image a FileAddress is
// bound to. *elf.File satisfies this implicitly (pointer identity); this
// package does not need to import the elf package to express that.
type FileIdentity interface{}

// VirtualAddress is a 64-bit address in the inferior's runtime address
// space.
type VirtualAddress struct {
	addr uint64
}

// NewVirtualAddress constructs a VirtualAddress from a raw 64-bit value.
func NewVirtualAddress(a uint64) VirtualAddress { return VirtualAddress{addr: a} }

// Addr returns the raw 64-bit value.
func (v VirtualAddress) Addr() uint64 { return v.addr }

// Add returns v + offset.
func (v VirtualAddress) Add(offset int64) VirtualAddress {
	return VirtualAddress{addr: uint64(int64(v.addr) + offset)}
}

// Sub returns the signed distance from other to v.
func (v VirtualAddress) Sub(other VirtualAddress) int64 {
	return int64(v.addr) - int64(other.addr)
}

// IsNull reports whether this is the zero address.
func (v VirtualAddress) IsNull() bool { return v.addr == 0 }

func (v VirtualAddress) Less(other VirtualAddress) bool    { return v.addr < other.addr }
func (v VirtualAddress) LessEq(other VirtualAddress) bool  { return v.addr <= other.addr }
func (v VirtualAddress) Greater(other VirtualAddress) bool { return v.addr > other.addr }

// FileAddress is a 64-bit address as recorded in a specific ELF image.
// It carries a back-reference to that image so two FileAddresses from
// different images are never treated as comparable.
type FileAddress struct {
	file FileIdentity
	addr uint64
}

// NewFileAddress binds addr to the given file identity.
func NewFileAddress(file FileIdentity, a uint64) FileAddress {
	return FileAddress{file: file, addr: a}
}

// Addr returns the raw 64-bit value.
func (f FileAddress) Addr() uint64 { return f.addr }

// File returns the owning file's identity (nil for the zero value).
func (f FileAddress) File() FileIdentity { return f.file }

// IsNull reports whether this is the null file address (no owning file).
func (f FileAddress) IsNull() bool { return f.file == nil && f.addr == 0 }

// SameFile reports whether f and other are bound to the same ELF image.
func (f FileAddress) SameFile(other FileAddress) bool { return f.file == other.file }

// Add returns f + offset, bound to the same file.
func (f FileAddress) Add(offset int64) FileAddress {
	return FileAddress{file: f.file, addr: uint64(int64(f.addr) + offset)}
}

// Sub returns the signed distance from other to f. Panics-free: callers
// are expected to have checked SameFile first, matching the source's
// "comparison only within the same ELF identity" invariant.
func (f FileAddress) Sub(other FileAddress) int64 {
	return int64(f.addr) - int64(other.addr)
}

func (f FileAddress) Less(other FileAddress) bool    { return f.addr < other.addr }
func (f FileAddress) LessEq(other FileAddress) bool  { return f.addr <= other.addr }
func (f FileAddress) Equal(other FileAddress) bool   { return f.file == other.file && f.addr == other.addr }

// FileOffset is a byte offset from the start of an ELF image.
type FileOffset uint64

// Span is a borrowed (pointer, length) view over bytes, typically a slice
// of an ELF image's memory mapping or a DWARF section. It is a named
// type over []byte rather than a distinct struct because a Go slice
// already is a borrowed (pointer, length, capacity) view; the name
// documents intent at call sites that hand around raw section bytes.
type Span []byte

// Sub returns the sub-span [from, from+length).
func (s Span) Sub(from, length int) Span { return s[from : from+length] }
