package elf

import (
	"bytes"
	"debug/elf"
	"encoding/binary"

	"github.com/burritoOverflow/sdb/pkg/addr"
	"github.com/burritoOverflow/sdb/pkg/sdberr"
)

const shdrSize = 64 // sizeof(Elf64_Shdr)

// parseSectionHeaders reads the section header table, handling the ELF
// overflow escape: when e_shnum is zero but e_shentsize is non-zero, the
// true section count lives in sh_size of section 0 (used once a file has
// 0xff00 or more sections).
func (f *File) parseSectionHeaders() error {
	n := uint64(f.header.Shnum)
	if n == 0 && f.header.Shentsize != 0 {
		var first elf.Section64
		if err := decodeAt(f.data, int64(f.header.Shoff), &first); err != nil {
			return sdberr.NewFormat("failed to read section 0 header of %q: %v", f.path, err)
		}
		n = first.Size
	}

	f.sections = make([]elf.Section64, n)
	off := int64(f.header.Shoff)
	for i := uint64(0); i < n; i++ {
		if err := decodeAt(f.data, off, &f.sections[i]); err != nil {
			return sdberr.NewFormat("failed to read section header %d of %q: %v", i, f.path, err)
		}
		off += shdrSize
	}
	return nil
}

func (f *File) buildSectionMap() {
	f.sectionByName = make(map[string]*elf.Section64, len(f.sections))
	for i := range f.sections {
		name := f.GetSectionName(f.sections[i].Name)
		f.sectionByName[name] = &f.sections[i]
	}
}

// GetSection returns the section header with the given name, or nil.
func (f *File) GetSection(name string) *elf.Section64 {
	return f.sectionByName[name]
}

// GetSectionContents returns a borrowed view of the section's raw bytes,
// or nil if no such section exists.
func (f *File) GetSectionContents(name string) addr.Span {
	s := f.GetSection(name)
	if s == nil {
		return nil
	}
	return addr.Span(f.data[s.Off : s.Off+s.Size])
}

// GetSectionName looks up the null-terminated string at index into the
// section-header string table (identified by e_shstrndx in the header).
func (f *File) GetSectionName(index uint32) string {
	shstr := f.sections[f.header.Shstrndx]
	return cString(f.data[shstr.Off+uint64(index):])
}

// GetString looks up the null-terminated string at index into .strtab,
// falling back to .dynstr if .strtab is absent.
func (f *File) GetString(index uint64) string {
	s := f.GetSection(".strtab")
	if s == nil {
		s = f.GetSection(".dynstr")
		if s == nil {
			return ""
		}
	}
	return cString(f.data[s.Off+index:])
}

// GetSectionContainingAddress returns the section header whose
// [sh_addr, sh_addr+sh_size) range contains fa, or nil. Addresses from a
// different ELF identity never match.
func (f *File) GetSectionContainingAddress(fa addr.FileAddress) *elf.Section64 {
	if fa.File() != FileIdentity(f) {
		return nil
	}
	for i := range f.sections {
		s := &f.sections[i]
		if s.Addr <= fa.Addr() && fa.Addr() < s.Addr+s.Size {
			return s
		}
	}
	return nil
}

// GetSectionContainingVirtualAddress is the load-bias-aware counterpart
// of GetSectionContainingAddress.
func (f *File) GetSectionContainingVirtualAddress(va addr.VirtualAddress) *elf.Section64 {
	bias := f.loadBias.Addr()
	for i := range f.sections {
		s := &f.sections[i]
		lo := bias + s.Addr
		hi := lo + s.Size
		if lo <= va.Addr() && va.Addr() < hi {
			return s
		}
	}
	return nil
}

// GetSectionStartAddress returns the file address of the named section's
// start, or the null address if no such section exists.
func (f *File) GetSectionStartAddress(name string) addr.FileAddress {
	s := f.GetSection(name)
	if s == nil {
		return addr.FileAddress{}
	}
	return addr.NewFileAddress(FileIdentity(f), s.Addr)
}

// FileIdentity returns f typed as the opaque identity addr.FileAddress
// values compare against.
func FileIdentity(f *File) addr.FileIdentity { return f }

func decodeAt(data []byte, off int64, v interface{}) error {
	return binary.Read(bytes.NewReader(data[off:]), binary.LittleEndian, v)
}

func cString(b []byte) string {
	n := bytes.IndexByte(b, 0)
	if n < 0 {
		n = len(b)
	}
	return string(b[:n])
}
