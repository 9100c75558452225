package dwarf

// AttrSpec names one attribute an abbreviation declares: its type (e.g.
// AttrName) and the form its value is encoded in (e.g. FormStrp).
type AttrSpec struct {
	Attr Attr
	Form Form
}

// Abbrev is one entry of a compile unit's abbreviation table: the tag a
// DIE using this entry carries (e.g. TagSubprogram), whether it has
// children, and the ordered list of attributes it declares.
type Abbrev struct {
	Code        uint64
	Tag         Tag
	HasChildren bool
	AttrSpecs   []AttrSpec
}

// parseAbbrevTable decodes the sequence of abbreviation declarations
// starting at offset in .debug_abbrev, stopping at the first entry whose
// code is 0.
func parseAbbrevTable(debugAbbrev []byte, offset int) map[uint64]Abbrev {
	c := newCursor(debugAbbrev, offset)

	table := make(map[uint64]Abbrev)
	for {
		code := c.uleb128()
		if code == 0 {
			break
		}
		tag := Tag(c.uleb128())
		hasChildren := c.u8() != 0

		var specs []AttrSpec
		for {
			attr := Attr(c.uleb128())
			form := Form(c.uleb128())
			if attr == 0 {
				break
			}
			specs = append(specs, AttrSpec{Attr: attr, Form: form})
		}
		table[code] = Abbrev{Code: code, Tag: tag, HasChildren: hasChildren, AttrSpecs: specs}
	}
	return table
}
