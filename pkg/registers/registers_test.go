package registers_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/burritoOverflow/sdb/pkg/registers"
)

type fakeWriter struct {
	userWrites []userWrite
	fprWrites  [][]byte
}

type userWrite struct {
	offset int
	data   uint64
}

func (f *fakeWriter) WriteUserArea(offset int, data uint64) error {
	f.userWrites = append(f.userWrites, userWrite{offset, data})
	return nil
}

func (f *fakeWriter) WriteFprs(data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	f.fprWrites = append(f.fprWrites, cp)
	return nil
}

func TestReadWriteGPRRoundTrip(t *testing.T) {
	w := &fakeWriter{}
	snap := registers.New(w)
	info, err := registers.ByName("rax")
	require.NoError(t, err)

	require.NoError(t, snap.Write(info, uint64(0xdeadbeef)))
	require.Equal(t, uint64(0xdeadbeef), snap.ReadAs(info))
	require.Len(t, w.userWrites, 1)
	require.Equal(t, 0, w.userWrites[0].offset&0b111, "poke offset must be 8-byte aligned")
}

func TestWriteSignedSignExtends(t *testing.T) {
	w := &fakeWriter{}
	snap := registers.New(w)
	info, err := registers.ByName("rax")
	require.NoError(t, err)

	require.NoError(t, snap.Write(info, int32(-1)))
	require.Equal(t, uint64(0xffffffffffffffff), snap.ReadAs(info))
}

func TestSubRegisterAliasesParent(t *testing.T) {
	w := &fakeWriter{}
	snap := registers.New(w)
	rax, err := registers.ByName("rax")
	require.NoError(t, err)
	eax, err := registers.ByName("eax")
	require.NoError(t, err)

	require.NoError(t, snap.Write(rax, uint64(0x1122334455667788)))
	require.Equal(t, uint64(0x55667788), snap.ReadAs(eax))
}

func TestFPRWriteGoesThroughBulkPath(t *testing.T) {
	w := &fakeWriter{}
	snap := registers.New(w)
	mxcsr, err := registers.ByName("mxcsr")
	require.NoError(t, err)

	require.NoError(t, snap.Write(mxcsr, uint32(0x1f80)))
	require.Len(t, w.fprWrites, 1)
	require.Empty(t, w.userWrites)
}

func TestWriteRejectsOversizedValue(t *testing.T) {
	w := &fakeWriter{}
	snap := registers.New(w)
	al, err := registers.ByName("al")
	require.NoError(t, err)

	err = snap.Write(al, uint64(0xffffffffffffffff))
	require.Error(t, err)
}
