package elf

import (
	"debug/elf"
	"sort"
	"strings"

	"github.com/burritoOverflow/sdb/pkg/addr"
	"github.com/burritoOverflow/sdb/pkg/sdberr"
)

const symSize = 24 // sizeof(Elf64_Sym)

// parseSymbolTable reads .symtab, falling back to .dynsym. If neither
// exists the symbol table stays empty.
func (f *File) parseSymbolTable() error {
	s := f.GetSection(".symtab")
	if s == nil {
		s = f.GetSection(".dynsym")
		if s == nil {
			return nil
		}
	}
	if s.Entsize == 0 {
		return nil
	}
	n := s.Size / s.Entsize
	f.symbols = make([]elf.Sym64, n)
	off := int64(s.Off)
	for i := uint64(0); i < n; i++ {
		if err := decodeAt(f.data, off, &f.symbols[i]); err != nil {
			return sdberr.NewFormat("failed to read symbol %d of %q: %v", i, f.path, err)
		}
		off += symSize
	}
	return nil
}

// buildSymbolMaps indexes every symbol by name (mangled, and demangled
// when demangling succeeds) and, for symbols with a defined value, a
// name, and that are not thread-local, by address range.
func (f *File) buildSymbolMaps() {
	f.symByName = make(map[string][]*elf.Sym64)

	for i := range f.symbols {
		sym := &f.symbols[i]
		mangled := f.GetString(uint64(sym.Name))

		if demangled, ok := demangle(mangled); ok {
			f.symByName[demangled] = append(f.symByName[demangled], sym)
		}
		f.symByName[mangled] = append(f.symByName[mangled], sym)

		stType := elf.ST_TYPE(sym.Info)
		if sym.Value != 0 && sym.Name != 0 && stType != elf.STT_TLS {
			low := addr.NewFileAddress(FileIdentity(f), sym.Value)
			high := addr.NewFileAddress(FileIdentity(f), sym.Value+sym.Size)
			f.symAddrMap = append(f.symAddrMap, symAddrEntry{low: low, high: high, sym: sym})
		}
	}

	sort.Slice(f.symAddrMap, func(i, j int) bool {
		return f.symAddrMap[i].low.Less(f.symAddrMap[j].low)
	})
}

// demangle is a best-effort Itanium C++ demangler hook. No demangling
// library exists anywhere in the retrieval pack or the Go standard
// library, so this currently only recognizes the "_Z" mangled-name
// prefix and reports failure for it; such symbols remain indexed under
// their mangled name only, matching the "if demangling succeeds" clause
// of the symbol-map invariant rather than silently dropping the gap.
func demangle(mangled string) (string, bool) {
	if !strings.HasPrefix(mangled, "_Z") {
		return "", false
	}
	return "", false
}

// GetSymbolsByName returns every symbol (mangled or demangled) indexed
// under name.
func (f *File) GetSymbolsByName(name string) []*elf.Sym64 {
	return f.symByName[name]
}

// GetSymbolAtAddress returns the symbol whose range starts exactly at
// fa, or nil. Rejects addresses from a different ELF identity.
func (f *File) GetSymbolAtAddress(fa addr.FileAddress) *elf.Sym64 {
	if fa.File() != FileIdentity(f) {
		return nil
	}
	i := sort.Search(len(f.symAddrMap), func(i int) bool { return !f.symAddrMap[i].low.Less(fa) })
	if i < len(f.symAddrMap) && f.symAddrMap[i].low.Equal(fa) {
		return f.symAddrMap[i].sym
	}
	return nil
}

// GetSymbolAtVirtualAddress is the load-bias-aware counterpart of
// GetSymbolAtAddress.
func (f *File) GetSymbolAtVirtualAddress(va addr.VirtualAddress) *elf.Sym64 {
	return f.GetSymbolAtAddress(f.ToFile(va))
}

// GetSymbolContainingAddress returns the symbol whose [low, high) range
// contains fa: the lower_bound-then-back-up-one algorithm from the
// original ELF loader.
func (f *File) GetSymbolContainingAddress(fa addr.FileAddress) *elf.Sym64 {
	if fa.File() != FileIdentity(f) || len(f.symAddrMap) == 0 {
		return nil
	}

	i := sort.Search(len(f.symAddrMap), func(i int) bool { return !f.symAddrMap[i].low.Less(fa) })
	if i < len(f.symAddrMap) && f.symAddrMap[i].low.Equal(fa) {
		return f.symAddrMap[i].sym
	}
	if i == 0 {
		return nil
	}
	prev := f.symAddrMap[i-1]
	if prev.low.Less(fa) && fa.Less(prev.high) {
		return prev.sym
	}
	return nil
}

// GetSymbolContainingVirtualAddress is the load-bias-aware counterpart of
// GetSymbolContainingAddress.
func (f *File) GetSymbolContainingVirtualAddress(va addr.VirtualAddress) *elf.Sym64 {
	return f.GetSymbolContainingAddress(f.ToFile(va))
}

// SymbolName resolves a symbol's name via its st_name index into the
// string table.
func (f *File) SymbolName(sym *elf.Sym64) string {
	return f.GetString(uint64(sym.Name))
}
