package target

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/burritoOverflow/sdb/pkg/sdberr"
)

// atEntry is AT_ENTRY from <linux/auxvec.h>: the auxiliary-vector entry
// carrying the inferior's real runtime entry point, post-load. Not
// exposed by golang.org/x/sys/unix and no parser for /proc/<pid>/auxv
// was present anywhere in the retrieval this package is grounded on,
// so both the constant and the parsing below are authored directly
// from the kernel ABI: a sequence of (unsigned long type, unsigned
// long value) pairs, terminated by a type-0 (AT_NULL) entry.
const atEntry = 9

// readAuxv reads /proc/<pid>/auxv and returns its type->value map.
func readAuxv(pid int) (map[uint64]uint64, error) {
	path := fmt.Sprintf("/proc/%d/auxv", pid)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, sdberr.NewOS("read "+path, err)
	}

	const entrySize = 16 // two 8-byte words per auxv entry
	out := make(map[uint64]uint64)
	for off := 0; off+entrySize <= len(data); off += entrySize {
		kind := binary.LittleEndian.Uint64(data[off : off+8])
		value := binary.LittleEndian.Uint64(data[off+8 : off+16])
		if kind == 0 { // AT_NULL
			break
		}
		out[kind] = value
	}
	return out, nil
}
