package ots

// post - PostScript Information
// https://learn.microsoft.com/en-us/typography/opentype/spec/post

// PostTable validates the PostScript information. Version 2.0 glyph name
// data is checked against maxp and the table's own string storage; the
// validated bytes are then carried through unchanged.
type PostTable struct {
	tableBase
	Version uint32
	data    []byte
}

func newPostTable(font *Font) *PostTable {
	return &PostTable{tableBase: tableBase{font: font, tag: TagPost}}
}

func (t *PostTable) Parse(data []byte) error {
	table := NewBuffer(data)

	if !table.ReadU32(&t.Version) {
		return t.Error("failed to read table version")
	}
	switch t.Version {
	case 0x00010000, 0x00030000:
		// Header only.
	case 0x00020000:
		// Glyph names follow, validated below.
	case 0x00025000:
		return t.Error("deprecated table version 2.5")
	default:
		return t.Error("bad table version %#x", t.Version)
	}

	// italicAngle, underlinePosition, underlineThickness, isFixedPitch
	// and the four memory hints take arbitrary values.
	if !table.Skip(4 + 2 + 2 + 4 + 4*4) {
		return t.Error("failed to read table header")
	}

	if t.Version == 0x00020000 {
		maxp := t.font.Maxp()
		if maxp == nil {
			return t.Error("required maxp table missing")
		}
		var numGlyphs uint16
		if !table.ReadU16(&numGlyphs) {
			return t.Error("failed to read glyph count")
		}
		if numGlyphs != maxp.NumGlyphs {
			return t.Error("glyph count %d does not match maxp %d", numGlyphs, maxp.NumGlyphs)
		}

		numNewNames := 0
		for i := 0; i < int(numGlyphs); i++ {
			var index uint16
			if !table.ReadU16(&index) {
				return t.Error("failed to read glyph name index %d", i)
			}
			if index >= 258 {
				if n := int(index) - 258 + 1; n > numNewNames {
					numNewNames = n
				}
			}
		}

		// The string storage is a run of Pascal strings; there must be
		// at least as many as the highest custom index used.
		seen := 0
		for table.Remaining() > 0 {
			var length uint8
			if !table.ReadU8(&length) {
				return t.Error("failed to read glyph name length")
			}
			if !table.Skip(int(length)) {
				return t.Error("glyph name %d exceeds table bounds", seen)
			}
			seen++
		}
		if seen < numNewNames {
			return t.Error("%d glyph names stored, %d referenced", seen, numNewNames)
		}
	}

	t.data = data
	return nil
}

func (t *PostTable) Serialize(s *Serializer) error {
	if !s.Write(t.data) {
		return t.Error("failed to write table")
	}
	return nil
}
