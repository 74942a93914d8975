package ots

// GDEF - Glyph Definition Table
// https://learn.microsoft.com/en-us/typography/opentype/spec/gdef

const numGlyphClasses = 4 // base, ligature, mark, component

// GDEFTable is the parsed glyph definition table. The flags feed the
// lookup-flag checks in GSUB and GPOS.
type GDEFTable struct {
	tableBase
	HasGlyphClassDef          bool
	HasMarkAttachmentClassDef bool
	HasMarkGlyphSets          bool
	NumMarkGlyphSets          uint16
	data                      []byte
}

func newGDEFTable(font *Font) *GDEFTable {
	return &GDEFTable{tableBase: tableBase{font: font, tag: TagGDEF}}
}

func (t *GDEFTable) parseAttachList(data []byte) error {
	sub := NewBuffer(data)
	var coverageOffset, glyphCount uint16
	if !sub.ReadU16(&coverageOffset) || !sub.ReadU16(&glyphCount) {
		return t.Error("attach list: failed to read header")
	}
	numGlyphs := t.font.NumGlyphs()
	if glyphCount > numGlyphs {
		return t.Error("attach list: bad glyph count %d", glyphCount)
	}
	headerEnd := 4 + int(glyphCount)*2
	if int(coverageOffset) < headerEnd || int(coverageOffset) >= len(data) {
		return t.Error("attach list: bad coverage offset %d", coverageOffset)
	}
	if err := parseCoverage(t, data[coverageOffset:], numGlyphs, int(glyphCount)); err != nil {
		return err
	}
	for i := 0; i < int(glyphCount); i++ {
		var offset uint16
		if !sub.ReadU16(&offset) {
			return t.Error("attach list: failed to read attach point offset %d", i)
		}
		if int(offset) < headerEnd || int(offset) >= len(data) {
			return t.Error("attach list: bad attach point offset %d", offset)
		}
		points := NewBuffer(data[offset:])
		var pointCount uint16
		if !points.ReadU16(&pointCount) {
			return t.Error("attach list: failed to read point count")
		}
		if !points.Skip(int(pointCount) * 2) {
			return t.Error("attach list: point indices exceed table bounds")
		}
	}
	return nil
}

func (t *GDEFTable) parseCaretValue(data []byte) error {
	sub := NewBuffer(data)
	var format uint16
	if !sub.ReadU16(&format) {
		return t.Error("caret value: failed to read format")
	}
	switch format {
	case 1, 2:
		if !sub.Skip(2) {
			return t.Error("caret value: truncated")
		}
	case 3:
		var coordinate int16
		var deviceOffset uint16
		if !sub.ReadS16(&coordinate) || !sub.ReadU16(&deviceOffset) {
			return t.Error("caret value: truncated format 3")
		}
		if deviceOffset != 0 {
			if int(deviceOffset) >= len(data) {
				return t.Error("caret value: bad device offset %d", deviceOffset)
			}
			return parseDevice(t, data[deviceOffset:])
		}
	default:
		return t.Error("caret value: unknown format %d", format)
	}
	return nil
}

func (t *GDEFTable) parseLigCaretList(data []byte) error {
	sub := NewBuffer(data)
	var coverageOffset, ligGlyphCount uint16
	if !sub.ReadU16(&coverageOffset) || !sub.ReadU16(&ligGlyphCount) {
		return t.Error("ligature caret list: failed to read header")
	}
	numGlyphs := t.font.NumGlyphs()
	if ligGlyphCount > numGlyphs {
		return t.Error("ligature caret list: bad glyph count %d", ligGlyphCount)
	}
	headerEnd := 4 + int(ligGlyphCount)*2
	if int(coverageOffset) < headerEnd || int(coverageOffset) >= len(data) {
		return t.Error("ligature caret list: bad coverage offset %d", coverageOffset)
	}
	if err := parseCoverage(t, data[coverageOffset:], numGlyphs, int(ligGlyphCount)); err != nil {
		return err
	}
	for i := 0; i < int(ligGlyphCount); i++ {
		var offset uint16
		if !sub.ReadU16(&offset) {
			return t.Error("ligature caret list: failed to read ligature glyph offset %d", i)
		}
		if int(offset) < headerEnd || int(offset) >= len(data) {
			return t.Error("ligature caret list: bad ligature glyph offset %d", offset)
		}
		lig := data[offset:]
		ligBuf := NewBuffer(lig)
		var caretCount uint16
		if !ligBuf.ReadU16(&caretCount) {
			return t.Error("ligature caret list: failed to read caret count")
		}
		for j := 0; j < int(caretCount); j++ {
			var caretOffset uint16
			if !ligBuf.ReadU16(&caretOffset) {
				return t.Error("ligature caret list: failed to read caret offset %d", j)
			}
			if int(caretOffset) < 2+int(caretCount)*2 || int(caretOffset) >= len(lig) {
				return t.Error("ligature caret list: bad caret offset %d", caretOffset)
			}
			if err := t.parseCaretValue(lig[caretOffset:]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *GDEFTable) parseMarkGlyphSets(data []byte) error {
	sub := NewBuffer(data)
	var format, setCount uint16
	if !sub.ReadU16(&format) || !sub.ReadU16(&setCount) {
		return t.Error("mark glyph sets: failed to read header")
	}
	if format != 1 {
		return t.Error("mark glyph sets: unknown format %d", format)
	}
	numGlyphs := t.font.NumGlyphs()
	headerEnd := 4 + int(setCount)*4
	for i := 0; i < int(setCount); i++ {
		var offset uint32
		if !sub.ReadU32(&offset) {
			return t.Error("mark glyph sets: failed to read coverage offset %d", i)
		}
		if int64(offset) < int64(headerEnd) || int64(offset) >= int64(len(data)) {
			return t.Error("mark glyph sets: bad coverage offset %d", offset)
		}
		if err := parseCoverage(t, data[offset:], numGlyphs, -1); err != nil {
			return err
		}
	}
	t.NumMarkGlyphSets = setCount
	return nil
}

func (t *GDEFTable) Parse(data []byte) error {
	table := NewBuffer(data)

	var major, minor uint16
	if !table.ReadU16(&major) || !table.ReadU16(&minor) {
		return t.Error("failed to read table version")
	}
	if major != 1 || (minor != 0 && minor != 2 && minor != 3) {
		return t.Error("bad table version %d.%d", major, minor)
	}

	var glyphClassDefOffset, attachListOffset uint16
	var ligCaretListOffset, markAttachClassDefOffset uint16
	if !table.ReadU16(&glyphClassDefOffset) || !table.ReadU16(&attachListOffset) ||
		!table.ReadU16(&ligCaretListOffset) || !table.ReadU16(&markAttachClassDefOffset) {
		return t.Error("failed to read table header")
	}
	var markGlyphSetsOffset uint16
	var itemVarStoreOffset uint32
	if minor >= 2 {
		if !table.ReadU16(&markGlyphSetsOffset) {
			return t.Error("failed to read mark glyph sets offset")
		}
	}
	if minor >= 3 {
		if !table.ReadU32(&itemVarStoreOffset) {
			return t.Error("failed to read item variation store offset")
		}
	}
	headerEnd := table.Offset()
	numGlyphs := t.font.NumGlyphs()

	checkOffset := func(name string, offset int) error {
		if offset < headerEnd || offset >= len(data) {
			return t.Error("bad %s offset %d", name, offset)
		}
		return nil
	}

	if glyphClassDefOffset != 0 {
		if err := checkOffset("glyph class definition", int(glyphClassDefOffset)); err != nil {
			return err
		}
		if err := parseClassDef(t, data[glyphClassDefOffset:], numGlyphs, numGlyphClasses); err != nil {
			return err
		}
		t.HasGlyphClassDef = true
	}
	if attachListOffset != 0 {
		if err := checkOffset("attachment point list", int(attachListOffset)); err != nil {
			return err
		}
		if err := t.parseAttachList(data[attachListOffset:]); err != nil {
			return err
		}
	}
	if ligCaretListOffset != 0 {
		if err := checkOffset("ligature caret list", int(ligCaretListOffset)); err != nil {
			return err
		}
		if err := t.parseLigCaretList(data[ligCaretListOffset:]); err != nil {
			return err
		}
	}
	if markAttachClassDefOffset != 0 {
		if err := checkOffset("mark attachment class definition", int(markAttachClassDefOffset)); err != nil {
			return err
		}
		if err := parseClassDef(t, data[markAttachClassDefOffset:], numGlyphs, 0xfffe); err != nil {
			return err
		}
		t.HasMarkAttachmentClassDef = true
	}
	if markGlyphSetsOffset != 0 {
		if err := checkOffset("mark glyph sets", int(markGlyphSetsOffset)); err != nil {
			return err
		}
		if err := t.parseMarkGlyphSets(data[markGlyphSetsOffset:]); err != nil {
			return err
		}
		t.HasMarkGlyphSets = true
	}
	if itemVarStoreOffset != 0 {
		if err := checkOffset("item variation store", int(itemVarStoreOffset)); err != nil {
			return err
		}
		if err := parseItemVariationStore(t, t.font, data[itemVarStoreOffset:]); err != nil {
			return err
		}
	}

	t.data = data
	return nil
}

func (t *GDEFTable) Serialize(s *Serializer) error {
	if !s.Write(t.data) {
		return t.Error("failed to write table")
	}
	return nil
}
