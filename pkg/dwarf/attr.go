package dwarf

import (
	"github.com/burritoOverflow/sdb/pkg/addr"
	"github.com/burritoOverflow/sdb/pkg/sdberr"
)

// Attribute is one attribute value attached to a DIE: its type, the
// form it is encoded in, and where its bytes start. location is -1 for
// an attribute that was not actually found on the DIE (Die.Attr returns
// such a value rather than an error so callers can chain Contains
// checks naturally).
type Attribute struct {
	cu       *CompileUnit
	name     Attr
	form     Form
	location int
}

func (a Attribute) Name() Attr { return a.name }
func (a Attribute) Form() Form { return a.form }

func (a Attribute) cursor() (*cursor, error) {
	if a.location < 0 {
		return nil, sdberr.NewState("attribute 0x%x not present on DIE", a.name)
	}
	return newCursor(a.cu.data, a.location), nil
}

// AsAddress reads a DW_FORM_addr value: a file address in the ELF image
// this debug information belongs to.
func (a Attribute) AsAddress() (FileAddress, error) {
	if a.form != FormAddr {
		return FileAddress{}, sdberr.NewFormat("attribute 0x%x is not an address", a.name)
	}
	c, err := a.cursor()
	if err != nil {
		return FileAddress{}, err
	}
	return addrOf(a.cu, c.u64()), nil
}

// AsSectionOffset reads a DW_FORM_sec_offset value.
func (a Attribute) AsSectionOffset() (uint32, error) {
	if a.form != FormSecOffset {
		return 0, sdberr.NewFormat("attribute 0x%x is not a section offset", a.name)
	}
	c, err := a.cursor()
	if err != nil {
		return 0, err
	}
	return c.u32(), nil
}

// AsBlock reads a size-prefixed block of bytes (DW_FORM_block*).
func (a Attribute) AsBlock() ([]byte, error) {
	c, err := a.cursor()
	if err != nil {
		return nil, err
	}
	var size int
	switch a.form {
	case FormBlock1:
		size = int(c.u8())
	case FormBlock2:
		size = int(c.u16())
	case FormBlock4:
		size = int(c.u32())
	case FormBlock, FormExprloc:
		size = int(c.uleb128())
	default:
		return nil, sdberr.NewFormat("attribute 0x%x is not a block", a.name)
	}
	start := c.position()
	return a.cu.data[start : start+size], nil
}

// AsInt reads an integer value out of any of the fixed-width or
// variable-length unsigned integer forms.
func (a Attribute) AsInt() (uint64, error) {
	c, err := a.cursor()
	if err != nil {
		return 0, err
	}
	switch a.form {
	case FormData1:
		return uint64(c.u8()), nil
	case FormData2:
		return uint64(c.u16()), nil
	case FormData4:
		return uint64(c.u32()), nil
	case FormData8:
		return c.u64(), nil
	case FormUdata:
		return c.uleb128(), nil
	default:
		return 0, sdberr.NewFormat("attribute 0x%x is not an integer", a.name)
	}
}

// AsString reads a string value: either embedded directly in the DIE
// (DW_FORM_string) or as an offset into .debug_str (DW_FORM_strp).
func (a Attribute) AsString() (string, error) {
	c, err := a.cursor()
	if err != nil {
		return "", err
	}
	switch a.form {
	case FormString:
		return c.str(), nil
	case FormStrp:
		offset := c.u32()
		stab := a.cu.DwarfInfo().elfFile.GetSectionContents(".debug_str")
		sc := newCursor(stab, int(offset))
		return sc.str(), nil
	default:
		return "", sdberr.NewFormat("attribute 0x%x is not a string", a.name)
	}
}

// AsReference resolves a reference form to the DIE it points at. For
// the local forms (ref1/ref2/ref4/ref8/ref_udata) the offset is from
// the start of this attribute's own compile unit; DW_FORM_ref_addr
// instead gives an offset from the start of .debug_info and must be
// resolved against whichever compile unit actually contains it.
func (a Attribute) AsReference() (Die, error) {
	c, err := a.cursor()
	if err != nil {
		return Die{}, err
	}

	var offset int
	switch a.form {
	case FormRef1:
		offset = int(c.u8())
	case FormRef2:
		offset = int(c.u16())
	case FormRef4:
		offset = int(c.u32())
	case FormRef8:
		offset = int(c.u64())
	case FormRefUdata:
		offset = int(c.uleb128())
	case FormRefAddr:
		absOffset := int(c.u32())
		for _, other := range a.cu.DwarfInfo().compileUnits {
			if absOffset >= other.startOffset && absOffset < other.startOffset+len(other.data) {
				return parseDie(other, newCursor(other.data, absOffset-other.startOffset))
			}
		}
		return Die{}, sdberr.NewFormat("DW_FORM_ref_addr target 0x%x is not in any compile unit", absOffset)
	default:
		return Die{}, sdberr.NewFormat("attribute 0x%x is not a reference", a.name)
	}

	return parseDie(a.cu, newCursor(a.cu.data, offset))
}

// AsRangeList resolves a DW_FORM_sec_offset attribute naming an offset
// into .debug_ranges to the RangeList stored there.
func (a Attribute) AsRangeList() (RangeList, error) {
	offset, err := a.AsSectionOffset()
	if err != nil {
		return RangeList{}, err
	}
	section := a.cu.DwarfInfo().elfFile.GetSectionContents(".debug_ranges")
	data := section[offset:]

	root, err := a.cu.Root()
	if err != nil {
		return RangeList{}, err
	}
	var base FileAddress
	if root.Contains(AttrLowpc) {
		base, err = root.Attr(AttrLowpc).AsAddress()
		if err != nil {
			return RangeList{}, err
		}
	}

	return RangeList{compileUnit: a.cu, data: data, baseAddress: base}, nil
}

func addrOf(cu *CompileUnit, value uint64) FileAddress {
	return addr.NewFileAddress(cu.DwarfInfo().ElfIdentity(), value)
}
