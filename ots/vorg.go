package ots

// VORG - Vertical Origin
// https://learn.microsoft.com/en-us/typography/opentype/spec/vorg

// VorgTable is the parsed vertical origin table. It only makes sense
// alongside CFF outlines and is dropped otherwise.
type VorgTable struct {
	tableBase
	data []byte
}

func newVorgTable(font *Font) *VorgTable {
	return &VorgTable{tableBase: tableBase{font: font, tag: TagVORG}}
}

func (t *VorgTable) Parse(data []byte) error {
	table := NewBuffer(data)

	var major, minor uint16
	var defaultY int16
	var numMetrics uint16
	if !table.ReadU16(&major) || !table.ReadU16(&minor) ||
		!table.ReadS16(&defaultY) || !table.ReadU16(&numMetrics) {
		return t.Error("failed to read table header")
	}
	if major != 1 || minor != 0 {
		return t.Error("bad table version %d.%d", major, minor)
	}

	numGlyphs := t.font.NumGlyphs()
	prevGlyph := int32(-1)
	for i := 0; i < int(numMetrics); i++ {
		var glyph uint16
		var originY int16
		if !table.ReadU16(&glyph) || !table.ReadS16(&originY) {
			return t.Error("failed to read metric %d", i)
		}
		if int32(glyph) <= prevGlyph {
			return t.Error("metrics not sorted by glyph id")
		}
		prevGlyph = int32(glyph)
		if glyph >= numGlyphs {
			return t.Error("glyph id %d out of range in metric %d", glyph, i)
		}
	}

	t.data = data
	return nil
}

func (t *VorgTable) ShouldSerialize() bool {
	return t.font.CFF() != nil
}

func (t *VorgTable) Serialize(s *Serializer) error {
	if !s.Write(t.data) {
		return t.Error("failed to write table")
	}
	return nil
}
