package ots

// EBLC - Embedded Bitmap Location Table
// https://learn.microsoft.com/en-us/typography/opentype/spec/eblc
//
// EBLC is the directory of strikes. Each strike carries an array of
// index subtables which address glyph bitmap records inside EBDT; the
// walker crosses over into EBDT for every record, and whenever a glyph
// image size is computable both from the index offsets and from the
// image format, the two must agree exactly.

const bitmapSizeRecordLength = 48

// EBLCTable is the parsed embedded bitmap location table.
type EBLCTable struct {
	tableBase
	data []byte
}

func newEBLCTable(font *Font) *EBLCTable {
	return &EBLCTable{tableBase: tableBase{font: font, tag: TagEBLC}}
}

func readOffset16or32(table *Buffer, short bool, out *uint32) bool {
	if !short {
		return table.ReadU32(out)
	}
	var half uint16
	if !table.ReadU16(&half) {
		return false
	}
	*out = uint32(half)
	return true
}

// parseIndexSubTable1or3 walks the per-glyph offset array shared by
// index formats 1 (32-bit offsets) and 3 (16-bit offsets). Consecutive
// offset differences are the per-glyph image sizes; zero-size entries
// skip a glyph.
func (t *EBLCTable) parseIndexSubTable1or3(ebdt *EBDTTable, bitDepth uint8,
	firstGlyph, lastGlyph, imageFormat uint16, imageDataOffset uint32,
	table *Buffer, shortOffsets bool) error {

	numberOfGlyphs := uint32(lastGlyph-firstGlyph) + 1
	var thisOffset, nextOffset uint32
	if !readOffset16or32(table, shortOffsets, &thisOffset) {
		return t.Error("failed to read first sbit offset")
	}
	for glyph := uint32(0); glyph < numberOfGlyphs; glyph++ {
		if !readOffset16or32(table, shortOffsets, &nextOffset) {
			return t.Error("failed to read sbit offset %d", glyph+1)
		}
		if nextOffset < thisOffset {
			return t.Error("sbit offsets not in order at glyph %d", glyph)
		}
		imageSize := nextOffset - thisOffset
		glyphDataOffset := thisOffset + imageDataOffset
		thisOffset = nextOffset
		if imageSize == 0 {
			continue
		}
		computedSize, err := ebdt.parseGlyphBitmapVariableMetrics(imageFormat,
			glyphDataOffset, bitDepth)
		if err != nil {
			return err
		}
		if computedSize != imageSize {
			return t.Error("image size %d does not match index-implied size %d",
				computedSize, imageSize)
		}
	}
	return nil
}

func (t *EBLCTable) parseIndexSubTable(ebdt *EBDTTable, bitDepth uint8,
	firstGlyph, lastGlyph uint16, data []byte) error {

	table := NewBuffer(data)
	var indexFormat, imageFormat uint16
	var imageDataOffset uint32
	if !table.ReadU16(&indexFormat) || !table.ReadU16(&imageFormat) ||
		!table.ReadU32(&imageDataOffset) {
		return t.Error("failed to read index subtable header")
	}

	switch indexFormat {
	case 1, 3: // variable metrics with 4-byte (1) or 2-byte (3) offsets
		return t.parseIndexSubTable1or3(ebdt, bitDepth, firstGlyph, lastGlyph,
			imageFormat, imageDataOffset, table, indexFormat == 3)

	case 2: // all glyphs share one size and metrics
		var imageSize uint32
		if !table.ReadU32(&imageSize) {
			return t.Error("failed to read format 2 image size")
		}
		var metrics bigGlyphMetrics
		if !parseBigGlyphMetrics(table, &metrics) {
			return t.Error("failed to read format 2 metrics")
		}
		numGlyphs := uint32(lastGlyph-firstGlyph) + 1
		for i := uint32(0); i < numGlyphs; i++ {
			glyphDataOffset := imageDataOffset + imageSize*i
			if _, err := ebdt.parseGlyphBitmapConstantMetrics(imageFormat,
				glyphDataOffset, bitDepth, metrics.width, metrics.height); err != nil {
				return err
			}
		}
		return nil

	case 4: // sparse glyph codes with variable metrics
		var numGlyphs uint16
		if !table.ReadU16(&numGlyphs) {
			return t.Error("failed to read format 4 glyph count")
		}
		var thisGlyph, thisOffset uint16
		if !table.ReadU16(&thisGlyph) || !table.ReadU16(&thisOffset) {
			return t.Error("failed to read format 4 glyph/offset pair")
		}
		for i := uint16(0); i < numGlyphs; i++ {
			var nextGlyph, nextOffset uint16
			if !table.ReadU16(&nextGlyph) || !table.ReadU16(&nextOffset) {
				return t.Error("failed to read format 4 glyph/offset pair %d", i+1)
			}
			if i < numGlyphs-1 && nextGlyph < thisGlyph {
				return t.Error("format 4 glyph ids not sorted (%d after %d)",
					nextGlyph, thisGlyph)
			}
			if thisGlyph < firstGlyph || thisGlyph > lastGlyph {
				return t.Error("format 4 glyph id %d outside range %d..%d",
					thisGlyph, firstGlyph, lastGlyph)
			}
			if nextOffset < thisOffset {
				return t.Error("format 4 offsets not in order at glyph %d", thisGlyph)
			}
			imageSize := uint32(nextOffset - thisOffset)
			glyphDataOffset := uint32(thisOffset) + imageDataOffset
			thisGlyph, thisOffset = nextGlyph, nextOffset
			if imageSize == 0 {
				continue
			}
			computedSize, err := ebdt.parseGlyphBitmapVariableMetrics(imageFormat,
				glyphDataOffset, bitDepth)
			if err != nil {
				return err
			}
			if computedSize != imageSize {
				return t.Error("image size %d does not match index-implied size %d",
					computedSize, imageSize)
			}
		}
		return nil

	case 5: // sparse glyph codes with constant metrics
		var imageSize uint32
		if !table.ReadU32(&imageSize) {
			return t.Error("failed to read format 5 image size")
		}
		var metrics bigGlyphMetrics
		if !parseBigGlyphMetrics(table, &metrics) {
			return t.Error("failed to read format 5 metrics")
		}
		var numGlyphs uint32
		if !table.ReadU32(&numGlyphs) {
			return t.Error("failed to read format 5 glyph count")
		}
		var lastSeen uint16
		for i := uint32(0); i < numGlyphs; i++ {
			var glyph uint16
			if !table.ReadU16(&glyph) {
				return t.Error("failed to read format 5 glyph id %d", i)
			}
			if lastSeen != 0 && glyph <= lastSeen {
				return t.Error("format 5 glyph ids not sorted (%d after %d)", glyph, lastSeen)
			}
			lastSeen = glyph
			glyphDataOffset := imageDataOffset + imageSize*i
			if _, err := ebdt.parseGlyphBitmapConstantMetrics(imageFormat,
				glyphDataOffset, bitDepth, metrics.width, metrics.height); err != nil {
				return err
			}
		}
		// The glyph-ID array pads to a 32-bit boundary.
		if numGlyphs%2 != 0 {
			var pad uint16
			if !table.ReadU16(&pad) {
				return t.Error("failed to read format 5 padding")
			}
			if pad != 0 {
				return t.Error("format 5 padding is %d, must be zero", pad)
			}
		}
		return nil
	}
	return t.Error("invalid index format %d", indexFormat)
}

// parseIndexSubTableArray walks one strike's array of index subtables.
func (t *EBLCTable) parseIndexSubTableArray(ebdt *EBDTTable, bitDepth uint8,
	arrayOffset uint32, numIndexSubTables uint32) error {

	if uint64(arrayOffset)+uint64(numIndexSubTables)*8 > uint64(len(t.data)) {
		return t.Error("index subtable array exceeds table bounds")
	}
	table := NewBuffer(t.data[arrayOffset:])

	for i := uint32(0); i < numIndexSubTables; i++ {
		var firstGlyph, lastGlyph uint16
		var additionalOffset uint32
		if !table.ReadU16(&firstGlyph) || !table.ReadU16(&lastGlyph) ||
			!table.ReadU32(&additionalOffset) {
			return t.Error("failed to read index subtable array entry %d", i)
		}
		if lastGlyph < firstGlyph {
			return t.Error("first glyph id %d greater than last glyph id %d",
				firstGlyph, lastGlyph)
		}
		offset := uint64(arrayOffset) + uint64(additionalOffset)
		if offset >= uint64(len(t.data)) {
			return t.Error("bad index subtable offset %d", offset)
		}
		if err := t.parseIndexSubTable(ebdt, bitDepth, firstGlyph, lastGlyph,
			t.data[offset:]); err != nil {
			return err
		}
	}
	return nil
}

func (t *EBLCTable) Parse(data []byte) error {
	t.data = data
	table := NewBuffer(data)

	ebdt := t.font.EBDT()
	if ebdt == nil {
		return t.Error("missing required table EBDT")
	}

	var versionMajor, versionMinor uint16
	var numSizes uint32
	if !table.ReadU16(&versionMajor) || !table.ReadU16(&versionMinor) ||
		!table.ReadU32(&numSizes) {
		return t.Error("incomplete table")
	}
	if versionMajor != 2 || versionMinor != 0 {
		return t.Error("bad version %d.%d", versionMajor, versionMinor)
	}

	bitmapSizeEnd := uint64(8) + uint64(numSizes)*bitmapSizeRecordLength
	if bitmapSizeEnd > uint64(len(data)) {
		return t.Error("bitmap size records exceed table bounds")
	}

	type strike struct {
		arrayOffset  uint32
		numSubTables uint32
		bitDepth     uint8
	}
	strikes := make([]strike, 0, numSizes)

	for i := uint32(0); i < numSizes; i++ {
		var arrayOffset, indexTableSize, numIndexSubTables, colorRef uint32
		var startGlyph, endGlyph uint16
		var bitDepth, flags uint8
		if !table.ReadU32(&arrayOffset) ||
			!table.ReadU32(&indexTableSize) ||
			!table.ReadU32(&numIndexSubTables) ||
			!table.ReadU32(&colorRef) ||
			!table.Skip(24) || // horizontal and vertical line metrics
			!table.ReadU16(&startGlyph) ||
			!table.ReadU16(&endGlyph) ||
			!table.Skip(2) || // ppemX, ppemY
			!table.ReadU8(&bitDepth) ||
			!table.ReadU8(&flags) {
			return t.Error("incomplete bitmap size record %d", i)
		}

		if colorRef != 0 {
			return t.Error("color ref must be 0 in bitmap size record %d", i)
		}
		if endGlyph < startGlyph {
			return t.Error("start glyph id %d greater than end glyph id %d",
				startGlyph, endGlyph)
		}
		if bitDepth != 1 && bitDepth != 2 && bitDepth != 4 && bitDepth != 8 {
			return t.Error("invalid bit depth %d in bitmap size record %d", bitDepth, i)
		}
		if flags&0xfc != 0 {
			return t.Error("reserved bitmap flags %#x in bitmap size record %d", flags, i)
		}
		if uint64(arrayOffset) < bitmapSizeEnd || arrayOffset >= uint32(len(data)) {
			return t.Error("bad index subtable array offset %d for bitmap size record %d",
				arrayOffset, i)
		}
		strikes = append(strikes, strike{arrayOffset, numIndexSubTables, bitDepth})
	}

	for i, strike := range strikes {
		if err := t.parseIndexSubTableArray(ebdt, strike.bitDepth,
			strike.arrayOffset, strike.numSubTables); err != nil {
			return t.Error("failed to parse index subtable array %d: %v", i, err)
		}
	}

	return nil
}

func (t *EBLCTable) Serialize(s *Serializer) error {
	if !s.Write(t.data) {
		return t.Error("failed to write table")
	}
	return nil
}
