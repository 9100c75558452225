package dwarf

import "github.com/burritoOverflow/sdb/pkg/sdberr"

// Die is one debugging information entry. A DIE with a nil Abbrev is a
// null DIE: a terminator marking the end of a sibling list, carrying
// only the offset of whatever comes after it.
type Die struct {
	pos           int // offset into cu.data; meaningless for a null DIE
	cu            *CompileUnit
	abbrev        *Abbrev
	next          int // offset into cu.data where the following DIE starts
	attrLocations []int
}

// CompileUnit returns the compile unit this DIE belongs to.
func (d Die) CompileUnit() *CompileUnit { return d.cu }

// Abbrev returns the abbreviation table entry this DIE was parsed
// against, or nil for a null DIE.
func (d Die) Abbrev() *Abbrev { return d.abbrev }

// Position returns the DIE's offset into its compile unit's data.
func (d Die) Position() int { return d.pos }

// IsNull reports whether this is a null (sibling-list terminator) DIE.
func (d Die) IsNull() bool { return d.abbrev == nil }

// parseDie decodes the DIE starting at the cursor's current position: a
// ULEB128 abbreviation code, followed by one value per attribute the
// abbreviation declares. A code of 0 marks a null DIE.
func parseDie(cu *CompileUnit, c *cursor) (Die, error) {
	position := c.position()
	code := c.uleb128()
	if code == 0 {
		return Die{cu: cu, next: c.position()}, nil
	}

	table := cu.AbbrevTable()
	abbrev, ok := table[code]
	if !ok {
		return Die{}, sdberr.NewFormat("unknown DWARF abbreviation code %d", code)
	}

	locations := make([]int, len(abbrev.AttrSpecs))
	for i, spec := range abbrev.AttrSpecs {
		locations[i] = c.position()
		if err := c.skipForm(spec.Form); err != nil {
			return Die{}, err
		}
	}

	return Die{
		pos:           position,
		cu:            cu,
		abbrev:        &abbrev,
		next:          c.position(),
		attrLocations: locations,
	}, nil
}

// Contains reports whether the DIE's abbreviation declares the given
// attribute. A DIE can declare an attribute of a given type at most
// once.
func (d Die) Contains(attr Attr) bool {
	if d.abbrev == nil {
		return false
	}
	for _, spec := range d.abbrev.AttrSpecs {
		if spec.Attr == attr {
			return true
		}
	}
	return false
}

// Attr returns the named attribute's value accessor. The caller must
// check Contains first; Attr on a missing attribute returns an error
// from every accessor method.
func (d Die) Attr(attr Attr) Attribute {
	if d.abbrev != nil {
		for i, spec := range d.abbrev.AttrSpecs {
			if spec.Attr == attr {
				return Attribute{cu: d.cu, name: spec.Attr, form: spec.Form, location: d.attrLocations[i]}
			}
		}
	}
	return Attribute{cu: d.cu, name: attr, form: 0, location: -1}
}

// Name returns the DIE's name: its own DW_AT_name if present, otherwise
// chasing a DW_AT_specification or DW_AT_abstract_origin reference to
// find the name of the DIE it was declared from (accounting for chains
// of references, e.g. an out-of-line definition inlined at this site).
func (d Die) Name() (string, bool, error) {
	if d.Contains(AttrName) {
		s, err := d.Attr(AttrName).AsString()
		return s, err == nil, err
	}
	if d.Contains(AttrSpecification) {
		ref, err := d.Attr(AttrSpecification).AsReference()
		if err != nil {
			return "", false, err
		}
		return ref.Name()
	}
	if d.Contains(AttrAbstractOrigin) {
		ref, err := d.Attr(AttrAbstractOrigin).AsReference()
		if err != nil {
			return "", false, err
		}
		return ref.Name()
	}
	return "", false, nil
}

// LowPc returns the DIE's lowest address: the first range-list entry's
// low bound if DW_AT_ranges is present, otherwise DW_AT_low_pc directly.
func (d Die) LowPc() (FileAddress, error) {
	if d.Contains(AttrRanges) {
		rl, err := d.Attr(AttrRanges).AsRangeList()
		if err != nil {
			return FileAddress{}, err
		}
		entries, err := rl.Entries()
		if err != nil {
			return FileAddress{}, err
		}
		if len(entries) == 0 {
			return FileAddress{}, sdberr.NewFormat("DIE has an empty range list")
		}
		return entries[0].Low, nil
	}
	if d.Contains(AttrLowpc) {
		return d.Attr(AttrLowpc).AsAddress()
	}
	return FileAddress{}, sdberr.NewState("DIE does not have a low PC")
}

// HighPc returns the DIE's exclusive upper address bound: the last
// range-list entry's high bound if DW_AT_ranges is present, otherwise
// DW_AT_high_pc (either an absolute address, or — the common case — an
// offset added to LowPc).
func (d Die) HighPc() (FileAddress, error) {
	if d.Contains(AttrRanges) {
		rl, err := d.Attr(AttrRanges).AsRangeList()
		if err != nil {
			return FileAddress{}, err
		}
		entries, err := rl.Entries()
		if err != nil {
			return FileAddress{}, err
		}
		if len(entries) == 0 {
			return FileAddress{}, sdberr.NewFormat("DIE has an empty range list")
		}
		return entries[len(entries)-1].High, nil
	}
	if d.Contains(AttrHighpc) {
		a := d.Attr(AttrHighpc)
		if a.form == FormAddr {
			return a.AsAddress()
		}
		off, err := a.AsInt()
		if err != nil {
			return FileAddress{}, err
		}
		low, err := d.LowPc()
		if err != nil {
			return FileAddress{}, err
		}
		return low.Add(int64(off)), nil
	}
	return FileAddress{}, sdberr.NewState("DIE does not have a high PC")
}

// ContainsAddress reports whether address falls within the DIE's
// declared range, per DW_AT_ranges if present, else [LowPc, HighPc).
func (d Die) ContainsAddress(address FileAddress) (bool, error) {
	if address.File() != d.cu.DwarfInfo().ElfIdentity() {
		return false, nil
	}
	if d.Contains(AttrRanges) {
		rl, err := d.Attr(AttrRanges).AsRangeList()
		if err != nil {
			return false, err
		}
		return rl.Contains(address)
	}
	if d.Contains(AttrLowpc) {
		low, err := d.LowPc()
		if err != nil {
			return false, err
		}
		high, err := d.HighPc()
		if err != nil {
			return false, err
		}
		return low.LessEq(address) && address.Less(high), nil
	}
	return false, nil
}

// Children parses and returns the DIE's full list of direct children,
// following DW_AT_sibling to skip over a child's own descendants when
// present rather than walking them one DIE at a time.
func (d Die) Children() ([]Die, error) {
	if d.abbrev == nil || !d.abbrev.HasChildren {
		return nil, nil
	}
	children, _, err := parseSiblingRange(d.cu, d.next)
	return children, err
}

// parseSiblingRange parses the run of sibling DIEs starting at pos in
// cu's data, up to and including the null DIE that terminates the run,
// and returns the non-null DIEs found plus the byte offset right after
// that null terminator (where the parent's own sibling, if any, would
// begin).
func parseSiblingRange(cu *CompileUnit, pos int) (siblings []Die, afterTerminator int, err error) {
	cur, err := parseDie(cu, newCursor(cu.data, pos))
	if err != nil {
		return nil, 0, err
	}
	for !cur.IsNull() {
		siblings = append(siblings, cur)

		var nextPos int
		switch {
		case cur.Contains(AttrSibling):
			sib, err := cur.Attr(AttrSibling).AsReference()
			if err != nil {
				return nil, 0, err
			}
			nextPos = sib.pos
		case cur.abbrev.HasChildren:
			// no sibling pointer: walk past this DIE's own subtree to
			// find where its sibling starts.
			_, afterChildren, err := parseSiblingRange(cu, cur.next)
			if err != nil {
				return nil, 0, err
			}
			nextPos = afterChildren
		default:
			nextPos = cur.next
		}

		cur, err = parseDie(cu, newCursor(cu.data, nextPos))
		if err != nil {
			return nil, 0, err
		}
	}
	return siblings, cur.next, nil
}
