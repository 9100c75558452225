package elf_test

import (
	"bytes"
	dwelf "debug/elf"
	"encoding/binary"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/burritoOverflow/sdb/pkg/addr"
	"github.com/burritoOverflow/sdb/pkg/elf"
)

// buildELF assembles a minimal, valid little-endian ELF-64 image with a
// section header string table, one .symtab entry, and returns the path
// of a temp file holding it.
func buildELF(t *testing.T) string {
	t.Helper()

	const (
		shstrOff = 64 // right after the header
	)
	shstrtab := []byte("\x00.shstrtab\x00.symtab\x00.strtab\x00.text\x00")
	var idxShstrtab, idxSymtab, idxStrtab, idxText uint32
	idxShstrtab = 1
	idxSymtab = idxShstrtab + uint32(len(".shstrtab\x00"))
	idxStrtab = idxSymtab + uint32(len(".symtab\x00"))
	idxText = idxStrtab + uint32(len(".strtab\x00"))

	strtab := []byte("\x00my_symbol\x00")

	symOff := shstrOff + len(shstrtab)
	strtabOff := symOff + 24 // one Sym64
	textOff := strtabOff + len(strtab)
	textData := []byte{0x90, 0x90, 0x90, 0x90}
	shoff := textOff + len(textData)

	buf := &bytes.Buffer{}

	hdr := dwelf.Header64{
		Ident:     [16]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		Type:      uint16(dwelf.ET_EXEC),
		Machine:   uint16(dwelf.EM_X86_64),
		Version:   1,
		Entry:     0x401000,
		Phoff:     0,
		Shoff:     uint64(shoff),
		Flags:     0,
		Ehsize:    64,
		Phentsize: 0,
		Phnum:     0,
		Shentsize: 64,
		Shnum:     5, // null, .shstrtab, .symtab, .strtab, .text
		Shstrndx:  1,
	}
	require.NoError(t, binary.Write(buf, binary.LittleEndian, &hdr))
	buf.Write(shstrtab)

	sym := dwelf.Sym64{
		Name:  1, // "my_symbol" at offset 1 in .strtab
		Info:  uint8(dwelf.STT_FUNC),
		Other: 0,
		Shndx: 4,
		Value: 0x401000,
		Size:  4,
	}
	require.NoError(t, binary.Write(buf, binary.LittleEndian, &sym))
	buf.Write(strtab)
	buf.Write(textData)

	sections := []dwelf.Section64{
		{}, // null section
		{Name: idxShstrtab, Type: uint32(dwelf.SHT_STRTAB), Off: uint64(shstrOff), Size: uint64(len(shstrtab))},
		{Name: idxSymtab, Type: uint32(dwelf.SHT_SYMTAB), Off: uint64(symOff), Size: 24, Entsize: 24, Link: 3},
		{Name: idxStrtab, Type: uint32(dwelf.SHT_STRTAB), Off: uint64(strtabOff), Size: uint64(len(strtab))},
		{Name: idxText, Type: uint32(dwelf.SHT_PROGBITS), Addr: 0x401000, Off: uint64(textOff), Size: uint64(len(textData))},
	}
	for _, s := range sections {
		require.NoError(t, binary.Write(buf, binary.LittleEndian, &s))
	}

	f, err := os.CreateTemp(t.TempDir(), "sdb-elf-*")
	require.NoError(t, err)
	_, err = f.Write(buf.Bytes())
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

func TestOpenParsesSectionsAndSymbols(t *testing.T) {
	path := buildELF(t)
	f, err := elf.Open(path)
	require.NoError(t, err)
	defer f.Close()

	text := f.GetSection(".text")
	require.NotNil(t, text)
	require.Equal(t, uint64(0x401000), text.Addr)

	syms := f.GetSymbolsByName("my_symbol")
	require.Len(t, syms, 1)
	require.Equal(t, uint64(0x401000), syms[0].Value)
}

func TestGetSymbolContainingAddress(t *testing.T) {
	path := buildELF(t)
	f, err := elf.Open(path)
	require.NoError(t, err)
	defer f.Close()

	fa := addr.NewFileAddress(elf.FileIdentity(f), 0x401002)
	sym := f.GetSymbolContainingAddress(fa)
	require.NotNil(t, sym)
	require.Equal(t, uint64(0x401000), sym.Value)

	miss := addr.NewFileAddress(elf.FileIdentity(f), 0x500000)
	require.Nil(t, f.GetSymbolContainingAddress(miss))
}

func TestLoadBiasRoundTrip(t *testing.T) {
	path := buildELF(t)
	f, err := elf.Open(path)
	require.NoError(t, err)
	defer f.Close()

	f.NotifyLoaded(addr.NewVirtualAddress(0x7f0000000000))

	fa := addr.NewFileAddress(elf.FileIdentity(f), 0x401000)
	va := f.ToVirtual(fa)
	require.Equal(t, uint64(0x7f0000401000), va.Addr())

	back := f.ToFile(va)
	require.True(t, back.Equal(fa))
}

func TestToVirtualOutOfSectionReturnsNull(t *testing.T) {
	path := buildELF(t)
	f, err := elf.Open(path)
	require.NoError(t, err)
	defer f.Close()

	f.NotifyLoaded(addr.NewVirtualAddress(0x7f0000000000))

	fa := addr.NewFileAddress(elf.FileIdentity(f), 0xdeadbeef)
	va := f.ToVirtual(fa)
	require.True(t, va.IsNull())
}
