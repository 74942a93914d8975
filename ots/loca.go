package ots

// loca - Index to Location
// https://learn.microsoft.com/en-us/typography/opentype/spec/loca

// LocaTable is the parsed index-to-location table. Offsets are kept in
// their 32-bit byte form regardless of the storage format on input; the
// glyf parser replaces them wholesale when it repacks glyph data.
type LocaTable struct {
	tableBase
	Offsets []uint32
}

func newLocaTable(font *Font) *LocaTable {
	return &LocaTable{tableBase: tableBase{font: font, tag: TagLoca}}
}

func (t *LocaTable) Parse(data []byte) error {
	table := NewBuffer(data)

	// Nothing useful can be validated here beyond monotonicity; the glyf
	// parser checks every offset against actual glyph data.
	head := t.font.Head()
	maxp := t.font.Maxp()
	if head == nil || maxp == nil {
		return t.Error("maxp or head tables missing from font, needed by loca")
	}

	numGlyphs := int(maxp.NumGlyphs)
	t.Offsets = make([]uint32, numGlyphs+1)
	last := uint32(0)

	if head.IndexToLocFormat == 0 {
		// There is one more offset than glyphs, giving the length of the
		// final glyph.
		for i := 0; i <= numGlyphs; i++ {
			var offset uint16
			if !table.ReadU16(&offset) {
				return t.Error("failed to read offset for glyph %d", i)
			}
			off := uint32(offset) * 2
			if off < last {
				return t.Error("out of order offset %d < %d for glyph %d", off, last, i)
			}
			last = off
			t.Offsets[i] = off
		}
	} else {
		for i := 0; i <= numGlyphs; i++ {
			var offset uint32
			if !table.ReadU32(&offset) {
				return t.Error("failed to read offset for glyph %d", i)
			}
			if offset < last {
				return t.Error("out of order offset %d < %d for glyph %d", offset, last, i)
			}
			last = offset
			t.Offsets[i] = offset
		}
	}

	return nil
}

func (t *LocaTable) Serialize(s *Serializer) error {
	head := t.font.Head()
	if head == nil {
		return t.Error("missing head table in font needed by loca")
	}

	if head.IndexToLocFormat == 0 {
		for i, off := range t.Offsets {
			short := uint16(off >> 1)
			if uint32(short) != off>>1 || off&1 != 0 {
				return t.Error("glyph offset %d for glyph %d does not fit short format", off, i)
			}
			if !s.WriteU16(short) {
				return t.Error("failed to write offset for glyph %d", i)
			}
		}
		return nil
	}
	for i, off := range t.Offsets {
		if !s.WriteU32(off) {
			return t.Error("failed to write offset for glyph %d", i)
		}
	}
	return nil
}
