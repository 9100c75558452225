package dwarf

// RangeEntry is one [Low, High) address range out of a range list.
type RangeEntry struct {
	Low, High FileAddress
}

// Contains reports whether address falls in [Low, High).
func (e RangeEntry) Contains(address FileAddress) bool {
	return e.Low.LessEq(address) && address.Less(e.High)
}

// RangeList is a DW_AT_ranges attribute's value: a sequence of address
// ranges read from .debug_ranges, relative to a base address that can
// be overridden partway through the list by a base-address-selection
// entry (an entry whose low value is the all-ones sentinel).
type RangeList struct {
	compileUnit *CompileUnit
	data        []byte
	baseAddress FileAddress
}

// baseAddressFlag is the sentinel low value (all bits set, for a
// 64-bit address) marking a base-address-selection entry rather than a
// regular range.
const baseAddressFlag = ^uint64(0)

// Entries decodes the full range list. Decoding stops at the first
// (0, 0) terminator pair.
func (rl RangeList) Entries() ([]RangeEntry, error) {
	var entries []RangeEntry
	base := rl.baseAddress
	c := newCursor(rl.data, 0)

	for {
		low := c.u64()
		high := c.u64()

		if low == baseAddressFlag {
			base = addr64(rl.compileUnit, high)
			continue
		}
		if low == 0 && high == 0 {
			break
		}
		entries = append(entries, RangeEntry{
			Low:  base.Add(int64(low)),
			High: base.Add(int64(high)),
		})
	}
	return entries, nil
}

// Contains reports whether address falls within any entry of the list.
func (rl RangeList) Contains(address FileAddress) (bool, error) {
	entries, err := rl.Entries()
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Contains(address) {
			return true, nil
		}
	}
	return false, nil
}

func addr64(cu *CompileUnit, value uint64) FileAddress {
	return addrOf(cu, value)
}
