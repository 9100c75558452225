package stoppoint

import (
	"github.com/burritoOverflow/sdb/pkg/addr"
	"github.com/burritoOverflow/sdb/pkg/sdberr"
)

func errUnsupportedSize(size int) error {
	return sdberr.NewArgument("unsupported watchpoint size %d, must be one of 1, 2, 4, 8", size)
}

func errUnalignedWatchpoint(address addr.VirtualAddress, size int) error {
	return sdberr.NewArgument("watchpoint address %#x is not aligned to its size %d", address.Addr(), size)
}
