package dwarf

import "github.com/burritoOverflow/sdb/pkg/addr"

// FileAddress is reused directly rather than redefined: DWARF addresses
// are always file addresses bound to the ELF image the debug
// information was read from.
type FileAddress = addr.FileAddress
