package dwarf

import (
	"encoding/binary"

	"github.com/burritoOverflow/sdb/pkg/sdberr"
)

// cursor walks a borrowed byte span, decoding DWARF's handful of
// primitive encodings as it goes: fixed-width ints, null-terminated
// strings, and ULEB128/SLEB128 variable-length integers.
type cursor struct {
	data []byte
	pos  int
}

// newCursor starts a cursor at byte offset start within data. Positions
// reported by position() are absolute offsets into data, so they can be
// stored and compared against other offsets into the same underlying
// section (e.g. a compile unit's attr_locations, or its next-DIE
// pointer) without translation.
func newCursor(data []byte, start int) *cursor { return &cursor{data: data, pos: start} }

func (c *cursor) u8() uint8 {
	v := c.data[c.pos]
	c.pos++
	return v
}

func (c *cursor) u16() uint16 {
	v := binary.LittleEndian.Uint16(c.data[c.pos:])
	c.pos += 2
	return v
}

func (c *cursor) u32() uint32 {
	v := binary.LittleEndian.Uint32(c.data[c.pos:])
	c.pos += 4
	return v
}

func (c *cursor) u64() uint64 {
	v := binary.LittleEndian.Uint64(c.data[c.pos:])
	c.pos += 8
	return v
}

func (c *cursor) s8() int8 { return int8(c.u8()) }

// str reads a null-terminated string starting at the cursor's current
// position and advances past the terminator.
func (c *cursor) str() string {
	start := c.pos
	for c.pos < len(c.data) && c.data[c.pos] != 0 {
		c.pos++
	}
	s := string(c.data[start:c.pos])
	if c.pos < len(c.data) {
		c.pos++ // skip the terminator
	}
	return s
}

// uleb128 decodes an unsigned LEB128 integer: the bytes are read one at
// a time, the continuation bit (0x80) stripped off, and the remaining 7
// bits shifted into position; decoding stops at the first byte whose
// continuation bit is clear.
func (c *cursor) uleb128() uint64 {
	var result uint64
	var shift uint
	for {
		b := c.u8()
		result |= uint64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	return result
}

// sleb128 decodes a signed LEB128 integer: identical to uleb128 except
// that once decoding stops, if the value did not fill every bit of the
// result and the last byte's sign bit (0x40) was set, the remaining high
// bits are sign-extended.
func (c *cursor) sleb128() int64 {
	var result uint64
	var shift uint
	var b uint8
	for {
		b = c.u8()
		result |= uint64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= ^uint64(0) << shift
	}
	return int64(result)
}

func (c *cursor) position() int { return c.pos }

func (c *cursor) isFinished() bool { return c.pos >= len(c.data) }

func (c *cursor) skip(n int) { c.pos += n }

// skipForm advances the cursor past one attribute value encoded in the
// given form, without interpreting it. Used while parsing a DIE's
// attribute list to find where the next attribute (or the next DIE)
// begins.
func (c *cursor) skipForm(form Form) error {
	switch form {
	case FormFlagPresent:
		// no storage: presence alone is the value

	case FormData1, FormRef1, FormFlag:
		c.skip(1)
	case FormData2, FormRef2:
		c.skip(2)
	case FormData4, FormRef4, FormRefAddr, FormSecOffset, FormStrp:
		c.skip(4)
	case FormData8, FormAddr, FormRef8, FormRefSig8:
		c.skip(8)

	case FormSdata:
		c.sleb128()
	case FormUdata, FormRefUdata:
		c.uleb128()

	case FormBlock1:
		c.skip(int(c.u8()))
	case FormBlock2:
		c.skip(int(c.u16()))
	case FormBlock4:
		c.skip(int(c.u32()))
	case FormBlock, FormExprloc:
		c.skip(int(c.uleb128()))

	case FormString:
		c.str()

	case FormIndirect:
		return c.skipForm(Form(c.uleb128()))

	default:
		return sdberr.NewFormat("unrecognized DWARF form 0x%x", form)
	}
	return nil
}
