// Package elf memory-maps and parses an ELF-64 image: section and symbol
// tables, a section-name index, symbol-name and symbol-address indices,
// and a load bias set once the inferior carrying this image is observed
// running. It decodes the raw bytes using the standard library's
// debug/elf struct layouts (Header64, Section64, Sym64 are binary
// compatible with the kernel ABI) but does its own mmap lifecycle,
// section-count overflow handling, and load-bias-aware containment
// queries, none of which debug/elf's own high-level File type exposes.
package elf

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"

	"golang.org/x/sys/unix"

	"github.com/burritoOverflow/sdb/pkg/addr"
	"github.com/burritoOverflow/sdb/pkg/dwarf"
	"github.com/burritoOverflow/sdb/pkg/sdberr"
)

// File is a memory-mapped, parsed ELF-64 image. Immutable after
// construction except for the load bias, which is set exactly once.
type File struct {
	path string
	fd   *os.File
	data []byte // the full mmap'd image

	header   elf.Header64
	sections []elf.Section64
	symbols  []elf.Sym64

	sectionByName map[string]*elf.Section64
	symByName     map[string][]*elf.Sym64
	symAddrMap    []symAddrEntry // sorted by low, built once

	dwarf *dwarf.Info

	loadBias addr.VirtualAddress
}

type symAddrEntry struct {
	low, high addr.FileAddress
	sym       *elf.Sym64
}

// Open opens, maps, and parses the ELF-64 image at path.
func Open(path string) (*File, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, sdberr.NewOS("open", err)
	}

	info, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, sdberr.NewOS("fstat", err)
	}
	size := info.Size()
	if size < int64(binary.Size(elf.Header64{})) {
		fd.Close()
		return nil, sdberr.NewFormat("ELF file %q is too small to contain a header", path)
	}

	data, err := unix.Mmap(int(fd.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		fd.Close()
		return nil, sdberr.NewOS("mmap", err)
	}

	f := &File{path: path, fd: fd, data: data}
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &f.header); err != nil {
		f.Close()
		return nil, sdberr.NewFormat("failed to decode ELF header of %q: %v", path, err)
	}

	if err := f.parseSectionHeaders(); err != nil {
		f.Close()
		return nil, err
	}
	f.buildSectionMap()
	if err := f.parseSymbolTable(); err != nil {
		f.Close()
		return nil, err
	}
	f.buildSymbolMaps()

	dwarfInfo, err := dwarf.New(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	f.dwarf = dwarfInfo

	return f, nil
}

// Dwarf returns the DWARF debugging information parsed from this
// image's .debug_info section.
func (f *File) Dwarf() *dwarf.Info { return f.dwarf }

// Close unmaps the image and closes the underlying file descriptor.
func (f *File) Close() error {
	var err error
	if f.data != nil {
		err = unix.Munmap(f.data)
		f.data = nil
	}
	if f.fd != nil {
		f.fd.Close()
		f.fd = nil
	}
	return err
}

// Path returns the path the image was opened from.
func (f *File) Path() string { return f.path }

// Header returns the parsed ELF header.
func (f *File) Header() elf.Header64 { return f.header }

// NotifyLoaded sets the load bias. Called once, after the inferior
// carrying this image has been observed running and its runtime entry
// point is known.
func (f *File) NotifyLoaded(bias addr.VirtualAddress) { f.loadBias = bias }

// LoadBias returns the currently-set load bias (zero before NotifyLoaded
// is called).
func (f *File) LoadBias() addr.VirtualAddress { return f.loadBias }

// ToVirtual converts a file address belonging to this image to a virtual
// address by adding the load bias. Returns the null virtual address if
// fa does not fall within any section.
func (f *File) ToVirtual(fa addr.FileAddress) addr.VirtualAddress {
	if f.GetSectionContainingAddress(fa) == nil {
		return addr.VirtualAddress{}
	}
	return addr.NewVirtualAddress(fa.Addr() + f.loadBias.Addr())
}

// ToFile converts a virtual address to a file address bound to this
// image by subtracting the load bias. Returns the null file address if
// the resulting address does not fall within any section.
func (f *File) ToFile(va addr.VirtualAddress) addr.FileAddress {
	fa := addr.NewFileAddress(f, va.Addr()-f.loadBias.Addr())
	if f.GetSectionContainingAddress(fa) == nil {
		return addr.FileAddress{}
	}
	return fa
}

