package registers

import (
	"encoding/binary"
	"math"

	"github.com/burritoOverflow/sdb/pkg/sdberr"
)

// Value is one of the concrete Go types a register read/write carries:
// uint8/16/32/64, int8/16/32/64, float64 (standing in for both double
// and the source's long double — Go has no native 80-bit float type, so
// LongDouble-format registers are read/written as float64, a documented
// narrowing), [8]byte (a bare 64-bit vector lane), or [16]byte (a full
// SSE lane).
type Value interface{}

// Writer is how a Registers snapshot pushes a write back to the
// inferior: per-register via the kernel user-area poke for GPR/DR
// registers, or in bulk for the FPR/SSE block (the kernel rejects
// partial x87 writes).
type Writer interface {
	WriteUserArea(offset int, data uint64) error
	WriteFprs(data []byte) error
}

// Snapshot is the in-memory register byte block plus the means to push
// writes back to the inferior it mirrors.
type Snapshot struct {
	data   [SnapshotSize]byte
	writer Writer
}

// New constructs an empty snapshot bound to writer.
func New(writer Writer) *Snapshot { return &Snapshot{writer: writer} }

// Bytes returns the raw snapshot buffer, for bulk GETREGS/GETFPREGS/
// PEEKUSER fills performed by the process controller.
func (s *Snapshot) Bytes() []byte { return s.data[:] }

// FPRBytes returns the FPR/SSE sub-span of the buffer, the shape
// WriteFprs expects.
func (s *Snapshot) FPRBytes() []byte { return s.data[fprBase : fprBase+fprSize] }

// GPRBytes returns the GPR sub-span of the buffer, the shape
// PTRACE_GETREGS/SETREGS fill and expect.
func (s *Snapshot) GPRBytes() []byte { return s.data[gprBase : gprBase+gprSize] }

// FillWord writes an 8-byte little-endian word directly into the
// snapshot at offset, bypassing the Writer. Used to fill the debug
// register block from per-register PTRACE_PEEKUSER reads, which have no
// bulk GETREGS-style kernel call of their own.
func (s *Snapshot) FillWord(offset int, word uint64) {
	binary.LittleEndian.PutUint64(s.data[offset:offset+8], word)
}

// Read returns the value of the given register, interpreted per its
// declared format and size.
func (s *Snapshot) Read(info *Info) Value {
	b := s.data[info.Offset : info.Offset+info.Size]
	switch info.Format {
	case Uint:
		switch info.Size {
		case 1:
			return b[0]
		case 2:
			return binary.LittleEndian.Uint16(b)
		case 4:
			return binary.LittleEndian.Uint32(b)
		case 8:
			return binary.LittleEndian.Uint64(b)
		}
	case DoubleFloat, LongDouble:
		return math.Float64frombits(binary.LittleEndian.Uint64(b[:8]))
	case Vector:
		if info.Size == 8 {
			var v [8]byte
			copy(v[:], b)
			return v
		}
		var v [16]byte
		copy(v[:], b)
		return v
	}
	return nil
}

// ReadAs reads a register and returns its value widened to uint64 (the
// convenient accessor the process controller uses for GPRs like rip).
func (s *Snapshot) ReadAs(info *Info) uint64 {
	switch v := s.Read(info).(type) {
	case uint8:
		return uint64(v)
	case uint16:
		return uint64(v)
	case uint32:
		return uint64(v)
	case uint64:
		return v
	default:
		return 0
	}
}

// Write stores value into the register described by info, widening it
// per the format rules (unsigned zero-extends, signed sign-extends,
// float casts to the declared float format, vectors copy byte-for-byte),
// then pushes the write to the inferior via the bound Writer.
func (s *Snapshot) Write(info *Info, value Value) error {
	wide, size, err := widen(info, value)
	if err != nil {
		return err
	}
	if size > info.Size {
		return sdberr.NewArgument("mismatched register and value sizes for %q", info.Name)
	}
	copy(s.data[info.Offset:info.Offset+info.Size], wide[:info.Size])

	if info.Kind == FPR {
		return s.writer.WriteFprs(s.FPRBytes())
	}
	alignedOffset := info.Offset &^ 0b111
	word := binary.LittleEndian.Uint64(s.data[alignedOffset : alignedOffset+8])
	return s.writer.WriteUserArea(alignedOffset, word)
}

// widen produces up to 16 little-endian bytes representing value, cast
// into the register's declared format, and the natural size of the
// input value (used only to check it does not exceed the register's
// declared size).
func widen(info *Info, value Value) (out [16]byte, size int, err error) {
	switch v := value.(type) {
	case uint8:
		out[0] = v
		return out, 1, nil
	case uint16:
		binary.LittleEndian.PutUint16(out[:2], v)
		return out, 2, nil
	case uint32:
		binary.LittleEndian.PutUint32(out[:4], v)
		return out, 4, nil
	case uint64:
		binary.LittleEndian.PutUint64(out[:8], v)
		return out, 8, nil
	case int8:
		return widenSigned(info, int64(v), 1)
	case int16:
		return widenSigned(info, int64(v), 2)
	case int32:
		return widenSigned(info, int64(v), 4)
	case int64:
		return widenSigned(info, v, 8)
	case float64:
		binary.LittleEndian.PutUint64(out[:8], math.Float64bits(v))
		return out, 8, nil
	case [8]byte:
		copy(out[:8], v[:])
		return out, 8, nil
	case [16]byte:
		copy(out[:16], v[:])
		return out, 16, nil
	default:
		return out, 0, sdberr.NewArgument("unsupported register value type %T for %q", value, info.Name)
	}
}

// widenSigned sign-extends a signed integer to 8 bytes. The register
// still stores two's-complement bytes; only the extension, not the
// format, differs from the unsigned path. Because v arrived already
// sign-extended to int64 by Go's numeric conversion from its original
// narrower type, the low N bytes of this 8-byte little-endian encoding
// equal the correctly sign-extended N-byte encoding for any N <= 8.
func widenSigned(_ *Info, v int64, nativeSize int) (out [16]byte, size int, err error) {
	binary.LittleEndian.PutUint64(out[:8], uint64(v))
	return out, nativeSize, nil
}
