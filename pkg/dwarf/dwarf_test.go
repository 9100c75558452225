package dwarf_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/burritoOverflow/sdb/pkg/addr"
	"github.com/burritoOverflow/sdb/pkg/dwarf"
)

// buildAbbrev writes a minimal .debug_abbrev table with two entries:
// code 1 is a DW_TAG_compile_unit with one DW_AT_low_pc (addr) and one
// DW_AT_high_pc (data8) attribute and children; code 2 is a
// DW_TAG_subprogram with DW_AT_name (strp) and DW_AT_low_pc/high_pc, no
// children.
func buildAbbrev() []byte {
	var b bytes.Buffer
	uleb := func(v uint64) { writeULEB128(&b, v) }

	// code 1: compile_unit, has_children=1
	uleb(1)
	uleb(0x11) // DW_TAG_compile_unit
	b.WriteByte(1)
	uleb(0x11) // DW_AT_low_pc
	uleb(0x01) // DW_FORM_addr
	uleb(0x12) // DW_AT_high_pc
	uleb(0x07) // DW_FORM_data8
	uleb(0)
	uleb(0)

	// code 2: subprogram, has_children=0
	uleb(2)
	uleb(0x2e) // DW_TAG_subprogram
	b.WriteByte(0)
	uleb(0x03) // DW_AT_name
	uleb(0x0e) // DW_FORM_strp
	uleb(0x11) // DW_AT_low_pc
	uleb(0x01) // DW_FORM_addr
	uleb(0x12) // DW_AT_high_pc
	uleb(0x07) // DW_FORM_data8
	uleb(0)
	uleb(0)

	uleb(0) // terminate table
	return b.Bytes()
}

func writeULEB128(b *bytes.Buffer, v uint64) {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b.WriteByte(c)
		if v == 0 {
			return
		}
	}
}

// buildCompileUnit builds one DWARF-4 compile unit with a root DIE
// (low_pc=0x1000, high_pc=0x2000) containing a single subprogram child
// (name via .debug_str offset 0, low_pc=0x1100, high_pc=0x1200).
func buildCompileUnit() (debugInfo, debugStr []byte) {
	var str bytes.Buffer
	str.WriteString("my_func\x00")

	var body bytes.Buffer
	// root DIE: abbrev code 1
	writeULEB128(&body, 1)
	binary.Write(&body, binary.LittleEndian, uint64(0x1000)) // low_pc
	binary.Write(&body, binary.LittleEndian, uint64(0x2000)) // high_pc

	// child DIE: abbrev code 2
	writeULEB128(&body, 2)
	binary.Write(&body, binary.LittleEndian, uint32(0)) // strp offset 0 -> "my_func"
	binary.Write(&body, binary.LittleEndian, uint64(0x1100))
	binary.Write(&body, binary.LittleEndian, uint64(0x1200))

	// null DIE terminating root's children
	writeULEB128(&body, 0)

	var info bytes.Buffer
	length := uint32(2 + 4 + 1 + body.Len()) // version+abbrev_offset+addr_size+body
	binary.Write(&info, binary.LittleEndian, length)
	binary.Write(&info, binary.LittleEndian, uint16(4)) // version 4
	binary.Write(&info, binary.LittleEndian, uint32(0)) // abbrev offset
	info.WriteByte(8)                                   // address size
	info.Write(body.Bytes())

	return info.Bytes(), str.Bytes()
}

type fakeSectionSource map[string][]byte

func (f fakeSectionSource) GetSectionContents(name string) addr.Span {
	return addr.Span(f[name])
}

func newTestInfo(t *testing.T, sections fakeSectionSource) *dwarf.Info {
	info, err := dwarf.New(sections)
	require.NoError(t, err)
	return info
}

func TestParseCompileUnitAndChildren(t *testing.T) {
	debugInfo, debugStr := buildCompileUnit()
	debugAbbrev := buildAbbrev()

	sections := fakeSectionSource{
		".debug_info":   debugInfo,
		".debug_abbrev": debugAbbrev,
		".debug_str":    debugStr,
	}
	info := newTestInfo(t, sections)

	require.Len(t, info.CompileUnits(), 1)
	cu := info.CompileUnits()[0]

	root, err := cu.Root()
	require.NoError(t, err)
	require.False(t, root.IsNull())
	require.True(t, root.Contains(dwarf.AttrLowpc))

	low, err := root.LowPc()
	require.NoError(t, err)
	require.Equal(t, uint64(0x1000), low.Addr())

	children, err := root.Children()
	require.NoError(t, err)
	require.Len(t, children, 1)

	name, ok, err := children[0].Name()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "my_func", name)
}

func TestFindFunctionsIndexesByName(t *testing.T) {
	debugInfo, debugStr := buildCompileUnit()
	debugAbbrev := buildAbbrev()
	sections := fakeSectionSource{
		".debug_info":   debugInfo,
		".debug_abbrev": debugAbbrev,
		".debug_str":    debugStr,
	}
	info := newTestInfo(t, sections)

	found, err := info.FindFunctions("my_func")
	require.NoError(t, err)
	require.Len(t, found, 1)
}
