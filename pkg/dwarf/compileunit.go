package dwarf

import "github.com/burritoOverflow/sdb/pkg/sdberr"

// cuHeaderSize is the DWARF-4 32-bit compile unit header: a 4-byte unit
// length, 2-byte version, 4-byte abbrev offset, 1-byte address size.
const cuHeaderSize = 11

// CompileUnit is one compile unit's worth of .debug_info data, plus the
// offset into .debug_abbrev where its abbreviation table starts.
type CompileUnit struct {
	parent       *Info
	data         []byte // this CU's slice of .debug_info, header included
	startOffset  int    // this CU's start, as an absolute .debug_info offset
	abbrevOffset int
}

// Data returns the compile unit's raw bytes, header included.
func (cu *CompileUnit) Data() []byte { return cu.data }

// StartOffset returns the compile unit's absolute byte offset into
// .debug_info.
func (cu *CompileUnit) StartOffset() int { return cu.startOffset }

// DwarfInfo returns the Info this compile unit belongs to.
func (cu *CompileUnit) DwarfInfo() *Info { return cu.parent }

// AbbrevTable returns (parsing and caching it on first use) the
// abbreviation table this compile unit's DIEs are encoded against.
func (cu *CompileUnit) AbbrevTable() map[uint64]Abbrev {
	return cu.parent.abbrevTable(cu.abbrevOffset)
}

// Root parses and returns this compile unit's root DIE.
func (cu *CompileUnit) Root() (Die, error) {
	return parseDie(cu, newCursor(cu.data, cuHeaderSize))
}

// parseCompileUnitHeader reads one compile unit header starting at
// offset start in debugInfo and returns the CompileUnit spanning it;
// the length of its Data() is how far the caller advances to find the
// next one.
func parseCompileUnitHeader(parent *Info, debugInfo []byte, start int) (*CompileUnit, error) {
	c := newCursor(debugInfo, start)
	length := c.u32()
	version := c.u16()
	abbrevOffset := c.u32()
	addrSize := c.u8()

	if length == 0xffffffff {
		return nil, sdberr.NewFormat("only DWARF32 is supported")
	}
	if version != 4 {
		return nil, sdberr.NewFormat("only DWARF version 4 is supported, got %d", version)
	}
	if addrSize != 8 {
		return nil, sdberr.NewFormat("invalid DWARF address size %d, expected 8", addrSize)
	}

	total := int(length) + 4 // the unit_length field itself is not counted in length
	return &CompileUnit{
		parent:       parent,
		data:         debugInfo[start : start+total],
		startOffset:  start,
		abbrevOffset: int(abbrevOffset),
	}, nil
}

// parseCompileUnits walks the whole .debug_info section, splitting it
// into consecutive compile units.
func parseCompileUnits(parent *Info, debugInfo []byte) ([]*CompileUnit, error) {
	var units []*CompileUnit
	pos := 0
	for pos < len(debugInfo) {
		cu, err := parseCompileUnitHeader(parent, debugInfo, pos)
		if err != nil {
			return nil, err
		}
		units = append(units, cu)
		pos += len(cu.data)
	}
	return units, nil
}
