package dwarf

import "github.com/burritoOverflow/sdb/pkg/addr"

// SectionSource is the slice of *elf.File the DWARF reader needs: raw
// access to the sections debug information lives in. Decoupling from a
// concrete ELF type keeps this package testable against hand-built
// section bytes.
type SectionSource interface {
	GetSectionContents(name string) addr.Span
}

// indexEntry locates one function DIE without holding the parsed Die
// itself: compile units parse their DIEs lazily, on demand, so the
// index stores the compile unit and the DIE's byte offset and
// re-parses it on lookup.
type indexEntry struct {
	cu  *CompileUnit
	pos int
}

// Info is the DWARF-4 debugging information belonging to one ELF
// image: its compile units, a cache of parsed abbreviation tables
// keyed by their .debug_abbrev offset, and a lazily built index from
// function name to defining DIE.
type Info struct {
	elfFile      SectionSource
	compileUnits []*CompileUnit

	abbrevTables map[int]map[uint64]Abbrev

	functionIndex map[string][]indexEntry
}

// New parses every compile unit in elfFile's .debug_info section.
func New(elfFile SectionSource) (*Info, error) {
	info := &Info{
		elfFile:      elfFile,
		abbrevTables: make(map[int]map[uint64]Abbrev),
	}
	units, err := parseCompileUnits(info, elfFile.GetSectionContents(".debug_info"))
	if err != nil {
		return nil, err
	}
	info.compileUnits = units
	return info, nil
}

// ElfFile returns the ELF image this debug information was read from.
func (i *Info) ElfFile() SectionSource { return i.elfFile }

// ElfIdentity returns the opaque identity FileAddresses built from this
// Info's ELF image compare against.
func (i *Info) ElfIdentity() addr.FileIdentity { return i.elfFile }

// CompileUnits returns every compile unit parsed out of .debug_info.
func (i *Info) CompileUnits() []*CompileUnit { return i.compileUnits }

// abbrevTable returns the abbreviation table starting at offset in
// .debug_abbrev, parsing and caching it on first use.
func (i *Info) abbrevTable(offset int) map[uint64]Abbrev {
	if t, ok := i.abbrevTables[offset]; ok {
		return t
	}
	t := parseAbbrevTable(i.elfFile.GetSectionContents(".debug_abbrev"), offset)
	i.abbrevTables[offset] = t
	return t
}

// CompileUnitContainingAddress returns the compile unit whose root DIE
// contains address, or nil if none does (the address may belong to
// code from another shared library, for instance).
func (i *Info) CompileUnitContainingAddress(address FileAddress) (*CompileUnit, error) {
	for _, cu := range i.compileUnits {
		root, err := cu.Root()
		if err != nil {
			return nil, err
		}
		ok, err := root.ContainsAddress(address)
		if err != nil {
			return nil, err
		}
		if ok {
			return cu, nil
		}
	}
	return nil, nil
}

// FunctionContainingAddress returns the subprogram DIE whose range
// contains address; indexed inlined-subroutine DIEs are not returned.
// Triggers indexing on first use. Returns a zero Die and ok=false if no function covers the
// address.
func (i *Info) FunctionContainingAddress(address FileAddress) (die Die, ok bool, err error) {
	if err := i.ensureIndexed(); err != nil {
		return Die{}, false, err
	}
	for _, entries := range i.functionIndex {
		for _, e := range entries {
			d, err := parseDie(e.cu, newCursor(e.cu.data, e.pos))
			if err != nil {
				return Die{}, false, err
			}
			contains, err := d.ContainsAddress(address)
			if err != nil {
				return Die{}, false, err
			}
			if contains && d.abbrev.Tag == TagSubprogram {
				return d, true, nil
			}
		}
	}
	return Die{}, false, nil
}

// FindFunctions returns every subprogram/inlined-subroutine DIE
// declaring the given name, across every compile unit.
func (i *Info) FindFunctions(name string) ([]Die, error) {
	if err := i.ensureIndexed(); err != nil {
		return nil, err
	}
	var found []Die
	for _, e := range i.functionIndex[name] {
		d, err := parseDie(e.cu, newCursor(e.cu.data, e.pos))
		if err != nil {
			return nil, err
		}
		found = append(found, d)
	}
	return found, nil
}

func (i *Info) ensureIndexed() error {
	if i.functionIndex != nil {
		return nil
	}
	i.functionIndex = make(map[string][]indexEntry)
	for _, cu := range i.compileUnits {
		root, err := cu.Root()
		if err != nil {
			return err
		}
		if err := i.indexDie(root); err != nil {
			return err
		}
	}
	return nil
}

// indexDie adds current to the function index if it declares an
// address range and is a function, then recurses into its children.
func (i *Info) indexDie(current Die) error {
	hasRange := current.Contains(AttrLowpc) || current.Contains(AttrRanges)
	isFunction := current.abbrev.Tag == TagSubprogram || current.abbrev.Tag == TagInlinedSubroutine

	if hasRange && isFunction {
		if name, ok, err := current.Name(); err != nil {
			return err
		} else if ok {
			i.functionIndex[name] = append(i.functionIndex[name], indexEntry{cu: current.cu, pos: current.pos})
		}
	}

	children, err := current.Children()
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := i.indexDie(child); err != nil {
			return err
		}
	}
	return nil
}
