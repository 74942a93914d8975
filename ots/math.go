package ots

// MATH - Mathematical Typesetting Table
// https://learn.microsoft.com/en-us/typography/opentype/spec/math

// MathTable is the parsed mathematical typesetting table.
type MathTable struct {
	tableBase
	data []byte
}

func newMathTable(font *Font) *MathTable {
	return &MathTable{tableBase: tableBase{font: font, tag: TagMATH}}
}

// parseMathValue validates one MathValueRecord: a coordinate plus an
// optional device offset relative to base.
func (t *MathTable) parseMathValue(sub *Buffer, base []byte) error {
	var value int16
	var deviceOffset uint16
	if !sub.ReadS16(&value) || !sub.ReadU16(&deviceOffset) {
		return t.Error("math value: truncated")
	}
	return parseOptionalDevice(t, base, deviceOffset)
}

func (t *MathTable) parseConstants(data []byte) error {
	sub := NewBuffer(data)

	// Two percentages, two minimum heights, then 51 math values, then
	// the radical degree raise percentage.
	var percent int16
	if !sub.ReadS16(&percent) || !sub.ReadS16(&percent) {
		return t.Error("math constants: failed to read scale percentages")
	}
	var minHeight uint16
	if !sub.ReadU16(&minHeight) || !sub.ReadU16(&minHeight) {
		return t.Error("math constants: failed to read minimum heights")
	}
	for i := 0; i < 51; i++ {
		if err := t.parseMathValue(sub, data); err != nil {
			return t.Error("math constants: bad value record %d", i)
		}
	}
	if !sub.ReadS16(&percent) {
		return t.Error("math constants: failed to read radical degree raise")
	}
	return nil
}

// parseMathValueList validates a coverage table plus a parallel array of
// MathValueRecords, the shape shared by italics-correction and
// top-accent tables.
func (t *MathTable) parseMathValueList(data []byte) error {
	sub := NewBuffer(data)
	var coverageOffset, count uint16
	if !sub.ReadU16(&coverageOffset) || !sub.ReadU16(&count) {
		return t.Error("math value list: failed to read header")
	}
	if int(coverageOffset) >= len(data) {
		return t.Error("math value list: bad coverage offset %d", coverageOffset)
	}
	if err := parseCoverage(t, data[coverageOffset:], t.font.NumGlyphs(), int(count)); err != nil {
		return err
	}
	for i := 0; i < int(count); i++ {
		if err := t.parseMathValue(sub, data); err != nil {
			return err
		}
	}
	return nil
}

func (t *MathTable) parseMathKern(data []byte) error {
	sub := NewBuffer(data)
	var heightCount uint16
	if !sub.ReadU16(&heightCount) {
		return t.Error("math kern: failed to read height count")
	}
	for i := 0; i < int(heightCount); i++ {
		if err := t.parseMathValue(sub, data); err != nil {
			return err
		}
	}
	for i := 0; i <= int(heightCount); i++ {
		if err := t.parseMathValue(sub, data); err != nil {
			return err
		}
	}
	return nil
}

func (t *MathTable) parseMathKernInfo(data []byte) error {
	sub := NewBuffer(data)
	var coverageOffset, count uint16
	if !sub.ReadU16(&coverageOffset) || !sub.ReadU16(&count) {
		return t.Error("math kern info: failed to read header")
	}
	if int(coverageOffset) >= len(data) {
		return t.Error("math kern info: bad coverage offset %d", coverageOffset)
	}
	if err := parseCoverage(t, data[coverageOffset:], t.font.NumGlyphs(), int(count)); err != nil {
		return err
	}
	for i := 0; i < int(count)*4; i++ { // four corners per glyph
		var kernOffset uint16
		if !sub.ReadU16(&kernOffset) {
			return t.Error("math kern info: failed to read kern offset %d", i)
		}
		if kernOffset == 0 {
			continue
		}
		if int(kernOffset) >= len(data) {
			return t.Error("math kern info: bad kern offset %d", kernOffset)
		}
		if err := t.parseMathKern(data[kernOffset:]); err != nil {
			return err
		}
	}
	return nil
}

func (t *MathTable) parseGlyphInfo(data []byte) error {
	sub := NewBuffer(data)
	var italicsOffset, topAccentOffset, extendedShapeOffset, kernInfoOffset uint16
	if !sub.ReadU16(&italicsOffset) || !sub.ReadU16(&topAccentOffset) ||
		!sub.ReadU16(&extendedShapeOffset) || !sub.ReadU16(&kernInfoOffset) {
		return t.Error("math glyph info: failed to read header")
	}
	if italicsOffset != 0 {
		if int(italicsOffset) >= len(data) {
			return t.Error("math glyph info: bad italics correction offset %d", italicsOffset)
		}
		if err := t.parseMathValueList(data[italicsOffset:]); err != nil {
			return err
		}
	}
	if topAccentOffset != 0 {
		if int(topAccentOffset) >= len(data) {
			return t.Error("math glyph info: bad top accent offset %d", topAccentOffset)
		}
		if err := t.parseMathValueList(data[topAccentOffset:]); err != nil {
			return err
		}
	}
	if extendedShapeOffset != 0 {
		if int(extendedShapeOffset) >= len(data) {
			return t.Error("math glyph info: bad extended shape coverage offset %d", extendedShapeOffset)
		}
		if err := parseCoverage(t, data[extendedShapeOffset:], t.font.NumGlyphs(), -1); err != nil {
			return err
		}
	}
	if kernInfoOffset != 0 {
		if int(kernInfoOffset) >= len(data) {
			return t.Error("math glyph info: bad kern info offset %d", kernInfoOffset)
		}
		if err := t.parseMathKernInfo(data[kernInfoOffset:]); err != nil {
			return err
		}
	}
	return nil
}

func (t *MathTable) parseGlyphConstruction(data []byte) error {
	sub := NewBuffer(data)
	var assemblyOffset, variantCount uint16
	if !sub.ReadU16(&assemblyOffset) || !sub.ReadU16(&variantCount) {
		return t.Error("math glyph construction: failed to read header")
	}
	numGlyphs := t.font.NumGlyphs()
	for i := 0; i < int(variantCount); i++ {
		var variantGlyph, advance uint16
		if !sub.ReadU16(&variantGlyph) || !sub.ReadU16(&advance) {
			return t.Error("math glyph construction: failed to read variant %d", i)
		}
		if variantGlyph >= numGlyphs {
			return t.Error("math glyph construction: bad variant glyph id %d", variantGlyph)
		}
	}
	if assemblyOffset != 0 {
		if int(assemblyOffset) >= len(data) {
			return t.Error("math glyph construction: bad assembly offset %d", assemblyOffset)
		}
		assembly := data[assemblyOffset:]
		asm := NewBuffer(assembly)
		if err := t.parseMathValue(asm, assembly); err != nil {
			return err
		}
		var partCount uint16
		if !asm.ReadU16(&partCount) {
			return t.Error("math glyph assembly: failed to read part count")
		}
		for i := 0; i < int(partCount); i++ {
			var glyph, startConnector, endConnector, fullAdvance, flags uint16
			if !asm.ReadU16(&glyph) || !asm.ReadU16(&startConnector) ||
				!asm.ReadU16(&endConnector) || !asm.ReadU16(&fullAdvance) ||
				!asm.ReadU16(&flags) {
				return t.Error("math glyph assembly: failed to read part %d", i)
			}
			if glyph >= numGlyphs {
				return t.Error("math glyph assembly: bad part glyph id %d", glyph)
			}
			if flags&^0x0001 != 0 {
				t.Warning("math glyph assembly: reserved part flags %#x", flags)
			}
		}
	}
	return nil
}

func (t *MathTable) parseVariants(data []byte) error {
	sub := NewBuffer(data)
	var minConnectorOverlap uint16
	var vertCoverageOffset, horizCoverageOffset, vertCount, horizCount uint16
	if !sub.ReadU16(&minConnectorOverlap) ||
		!sub.ReadU16(&vertCoverageOffset) || !sub.ReadU16(&horizCoverageOffset) ||
		!sub.ReadU16(&vertCount) || !sub.ReadU16(&horizCount) {
		return t.Error("math variants: failed to read header")
	}
	numGlyphs := t.font.NumGlyphs()
	if vertCoverageOffset != 0 {
		if int(vertCoverageOffset) >= len(data) {
			return t.Error("math variants: bad vertical coverage offset %d", vertCoverageOffset)
		}
		if err := parseCoverage(t, data[vertCoverageOffset:], numGlyphs, int(vertCount)); err != nil {
			return err
		}
	}
	if horizCoverageOffset != 0 {
		if int(horizCoverageOffset) >= len(data) {
			return t.Error("math variants: bad horizontal coverage offset %d", horizCoverageOffset)
		}
		if err := parseCoverage(t, data[horizCoverageOffset:], numGlyphs, int(horizCount)); err != nil {
			return err
		}
	}
	for i := 0; i < int(vertCount)+int(horizCount); i++ {
		var offset uint16
		if !sub.ReadU16(&offset) {
			return t.Error("math variants: failed to read construction offset %d", i)
		}
		if int(offset) >= len(data) {
			return t.Error("math variants: bad construction offset %d", offset)
		}
		if offset != 0 {
			if err := t.parseGlyphConstruction(data[offset:]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *MathTable) Parse(data []byte) error {
	table := NewBuffer(data)

	var major, minor uint16
	if !table.ReadU16(&major) || !table.ReadU16(&minor) {
		return t.Error("failed to read table version")
	}
	if major != 1 || minor != 0 {
		return t.Error("bad table version %d.%d", major, minor)
	}

	var constantsOffset, glyphInfoOffset, variantsOffset uint16
	if !table.ReadU16(&constantsOffset) || !table.ReadU16(&glyphInfoOffset) ||
		!table.ReadU16(&variantsOffset) {
		return t.Error("failed to read table header")
	}

	for _, part := range []struct {
		name   string
		offset uint16
		parse  func([]byte) error
	}{
		{"constants", constantsOffset, t.parseConstants},
		{"glyph info", glyphInfoOffset, t.parseGlyphInfo},
		{"variants", variantsOffset, t.parseVariants},
	} {
		if part.offset == 0 {
			continue
		}
		if int(part.offset) < 10 || int(part.offset) >= len(data) {
			return t.Error("bad %s offset %d", part.name, part.offset)
		}
		if err := part.parse(data[part.offset:]); err != nil {
			return err
		}
	}

	t.data = data
	return nil
}

func (t *MathTable) Serialize(s *Serializer) error {
	if !s.Write(t.data) {
		return t.Error("failed to write table")
	}
	return nil
}
