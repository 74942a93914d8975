package ots

// JSTF - Justification Table
// https://learn.microsoft.com/en-us/typography/opentype/spec/jstf

// JstfTable is the parsed justification table. Its lookup-modification
// lists index into the GSUB and GPOS lookup lists, so those tables must
// be parsed first.
type JstfTable struct {
	tableBase
	data []byte
}

func newJstfTable(font *Font) *JstfTable {
	return &JstfTable{tableBase: tableBase{font: font, tag: TagJSTF}}
}

func (t *JstfTable) numLookups(tag Tag) uint16 {
	if table, ok := t.font.Table(tag).(*LayoutTable); ok {
		return table.NumLookups
	}
	return 0
}

// parseLookupIndexList validates a GSUB or GPOS lookup-modification
// list.
func (t *JstfTable) parseLookupIndexList(data []byte, numLookups uint16, name string) error {
	sub := NewBuffer(data)
	var count uint16
	if !sub.ReadU16(&count) {
		return t.Error("%s: failed to read lookup count", name)
	}
	for i := 0; i < int(count); i++ {
		var lookupIndex uint16
		if !sub.ReadU16(&lookupIndex) {
			return t.Error("%s: failed to read lookup index %d", name, i)
		}
		if lookupIndex >= numLookups {
			return t.Error("%s: bad lookup index %d", name, lookupIndex)
		}
	}
	return nil
}

func (t *JstfTable) parseJstfMax(data []byte) error {
	sub := NewBuffer(data)
	var count uint16
	if !sub.ReadU16(&count) {
		return t.Error("justification max: failed to read lookup count")
	}
	ctx := &layoutContext{
		font:       t.font,
		numGlyphs:  t.font.NumGlyphs(),
		numLookups: t.numLookups(TagGPOS),
	}
	for i := 0; i < int(count); i++ {
		var offset uint16
		if !sub.ReadU16(&offset) {
			return t.Error("justification max: failed to read lookup offset %d", i)
		}
		if int(offset) < 2+int(count)*2 || int(offset) >= len(data) {
			return t.Error("justification max: bad lookup offset %d", offset)
		}
		// The max lookups hold GPOS-type positioning lookups inline.
		if err := parseLookup(t, data[offset:], ctx, gposSubtableParsers); err != nil {
			return err
		}
	}
	return nil
}

func (t *JstfTable) parseJstfPriority(data []byte) error {
	sub := NewBuffer(data)
	gsubLookups := t.numLookups(TagGSUB)
	gposLookups := t.numLookups(TagGPOS)

	fields := []struct {
		name string
		max  bool
		num  uint16
	}{
		{"shrinkage enable GSUB", false, gsubLookups},
		{"shrinkage disable GSUB", false, gsubLookups},
		{"shrinkage enable GPOS", false, gposLookups},
		{"shrinkage disable GPOS", false, gposLookups},
		{"shrinkage max", true, 0},
		{"extension enable GSUB", false, gsubLookups},
		{"extension disable GSUB", false, gsubLookups},
		{"extension enable GPOS", false, gposLookups},
		{"extension disable GPOS", false, gposLookups},
		{"extension max", true, 0},
	}
	for _, field := range fields {
		var offset uint16
		if !sub.ReadU16(&offset) {
			return t.Error("justification priority: failed to read %s offset", field.name)
		}
		if offset == 0 {
			continue
		}
		if int(offset) >= len(data) {
			return t.Error("justification priority: bad %s offset %d", field.name, offset)
		}
		var err error
		if field.max {
			err = t.parseJstfMax(data[offset:])
		} else {
			err = t.parseLookupIndexList(data[offset:], field.num, field.name)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *JstfTable) parseJstfLangSys(data []byte) error {
	sub := NewBuffer(data)
	var count uint16
	if !sub.ReadU16(&count) {
		return t.Error("justification language system: failed to read priority count")
	}
	for i := 0; i < int(count); i++ {
		var offset uint16
		if !sub.ReadU16(&offset) {
			return t.Error("justification language system: failed to read priority offset %d", i)
		}
		if int(offset) < 2+int(count)*2 || int(offset) >= len(data) {
			return t.Error("justification language system: bad priority offset %d", offset)
		}
		if err := t.parseJstfPriority(data[offset:]); err != nil {
			return err
		}
	}
	return nil
}

func (t *JstfTable) parseJstfScript(data []byte) error {
	sub := NewBuffer(data)
	var extenderGlyphOffset, defLangSysOffset, langSysCount uint16
	if !sub.ReadU16(&extenderGlyphOffset) || !sub.ReadU16(&defLangSysOffset) ||
		!sub.ReadU16(&langSysCount) {
		return t.Error("justification script: failed to read header")
	}

	if extenderGlyphOffset != 0 {
		if int(extenderGlyphOffset) >= len(data) {
			return t.Error("justification script: bad extender glyph offset %d", extenderGlyphOffset)
		}
		ext := NewBuffer(data[extenderGlyphOffset:])
		var glyphCount uint16
		if !ext.ReadU16(&glyphCount) {
			return t.Error("justification script: failed to read extender glyph count")
		}
		numGlyphs := t.font.NumGlyphs()
		prev := int32(-1)
		for i := 0; i < int(glyphCount); i++ {
			var glyph uint16
			if !ext.ReadU16(&glyph) {
				return t.Error("justification script: failed to read extender glyph %d", i)
			}
			if glyph >= numGlyphs {
				return t.Error("justification script: bad extender glyph id %d", glyph)
			}
			if int32(glyph) <= prev {
				return t.Error("justification script: extender glyphs not sorted")
			}
			prev = int32(glyph)
		}
	}

	if defLangSysOffset != 0 {
		if int(defLangSysOffset) >= len(data) {
			return t.Error("justification script: bad default language system offset %d", defLangSysOffset)
		}
		if err := t.parseJstfLangSys(data[defLangSysOffset:]); err != nil {
			return err
		}
	}

	var lastTag Tag
	for i := 0; i < int(langSysCount); i++ {
		var langSysTag Tag
		var offset uint16
		if !sub.ReadTag(&langSysTag) || !sub.ReadU16(&offset) {
			return t.Error("justification script: failed to read language system record %d", i)
		}
		if lastTag != 0 && lastTag >= langSysTag {
			return t.Error("justification script: language system records not sorted")
		}
		lastTag = langSysTag
		if int(offset) >= len(data) {
			return t.Error("justification script: bad language system offset %d", offset)
		}
		if err := t.parseJstfLangSys(data[offset:]); err != nil {
			return err
		}
	}
	return nil
}

func (t *JstfTable) Parse(data []byte) error {
	table := NewBuffer(data)

	var major, minor uint16
	if !table.ReadU16(&major) || !table.ReadU16(&minor) {
		return t.Error("failed to read table version")
	}
	if major != 1 || minor != 0 {
		return t.Error("bad table version %d.%d", major, minor)
	}

	var scriptCount uint16
	if !table.ReadU16(&scriptCount) {
		return t.Error("failed to read script count")
	}
	recordsEnd := 6 + int(scriptCount)*6

	var lastTag Tag
	for i := 0; i < int(scriptCount); i++ {
		var scriptTag Tag
		var offset uint16
		if !table.ReadTag(&scriptTag) || !table.ReadU16(&offset) {
			return t.Error("failed to read script record %d", i)
		}
		if lastTag != 0 && lastTag >= scriptTag {
			return t.Error("script records not sorted")
		}
		lastTag = scriptTag
		if int(offset) < recordsEnd || int(offset) >= len(data) {
			return t.Error("bad script offset %d in record %d", offset, i)
		}
		if err := t.parseJstfScript(data[offset:]); err != nil {
			return err
		}
	}

	t.data = data
	return nil
}

func (t *JstfTable) Serialize(s *Serializer) error {
	if !s.Write(t.data) {
		return t.Error("failed to write table")
	}
	return nil
}
