package ots

// gvar - Glyph Variations
// https://learn.microsoft.com/en-us/typography/opentype/spec/gvar
//
// Problems inside the variation data do not reject the font; they strip
// the variations instead, leaving the default instance intact.

const (
	gvarEmbeddedPeakTuple  = 0x8000
	gvarIntermediateRegion = 0x4000
	gvarTupleIndexMask     = 0x0fff
	gvarTupleCountMask     = 0x0fff
)

// GvarTable validates the glyph variation data and keeps the validated
// bytes.
type GvarTable struct {
	tableBase
	data []byte
}

func newGvarTable(font *Font) *GvarTable {
	return &GvarTable{tableBase: tableBase{font: font, tag: TagGvar}}
}

// dropVariations strips the variation tables from the font and reports
// success so that parsing continues without them.
func (t *GvarTable) dropVariations(format string, args ...interface{}) error {
	t.Warning(format, args...)
	t.Warning("dropping variations")
	t.font.dropVariations = true
	return nil
}

func (t *GvarTable) parseSharedTuples(data []byte, sharedTupleCount, axisCount int) bool {
	tuples := NewBuffer(data)
	for i := 0; i < sharedTupleCount*axisCount; i++ {
		var coordinate int16
		if !tuples.ReadS16(&coordinate) {
			return false
		}
	}
	return true
}

func (t *GvarTable) parseGlyphVariationData(data []byte, axisCount, sharedTupleCount int) error {
	sub := NewBuffer(data)

	var tupleVariationCount, dataOffset uint16
	if !sub.ReadU16(&tupleVariationCount) || !sub.ReadU16(&dataOffset) {
		return t.Error("failed to read glyph variation data header")
	}
	if int(dataOffset) > len(data) {
		return t.Error("invalid serialized data offset")
	}

	count := int(tupleVariationCount & gvarTupleCountMask)
	for i := 0; i < count; i++ {
		var variationDataSize, tupleIndex uint16
		if !sub.ReadU16(&variationDataSize) || !sub.ReadU16(&tupleIndex) {
			return t.Error("failed to read tuple variation header")
		}

		if tupleIndex&gvarEmbeddedPeakTuple != 0 {
			for axis := 0; axis < axisCount; axis++ {
				var coordinate int16
				if !sub.ReadS16(&coordinate) {
					return t.Error("failed to read tuple coordinate")
				}
				if coordinate < -0x4000 || coordinate > 0x4000 {
					return t.Error("invalid tuple coordinate %d", coordinate)
				}
			}
		}

		if tupleIndex&gvarIntermediateRegion != 0 {
			start := make([]int16, axisCount)
			for axis := 0; axis < axisCount; axis++ {
				if !sub.ReadS16(&start[axis]) {
					return t.Error("failed to read tuple coordinate")
				}
				if start[axis] < -0x4000 || start[axis] > 0x4000 {
					return t.Error("invalid tuple coordinate %d", start[axis])
				}
			}
			for axis := 0; axis < axisCount; axis++ {
				var end int16
				if !sub.ReadS16(&end) {
					return t.Error("failed to read tuple coordinate")
				}
				if end < -0x4000 || end > 0x4000 {
					return t.Error("invalid tuple coordinate %d", end)
				}
				if start[axis] > end {
					return t.Error("invalid intermediate range")
				}
			}
		}

		if int(tupleIndex&gvarTupleIndexMask) >= sharedTupleCount &&
			tupleIndex&gvarEmbeddedPeakTuple == 0 {
			return t.Error("tuple index %d out of range", tupleIndex&gvarTupleIndexMask)
		}
	}

	return nil
}

func (t *GvarTable) Parse(data []byte) error {
	table := NewBuffer(data)

	var major, minor, axisCount, sharedTupleCount uint16
	var sharedTuplesOffset uint32
	var glyphCount, flags uint16
	var glyphVariationDataArrayOffset uint32
	if !table.ReadU16(&major) || !table.ReadU16(&minor) ||
		!table.ReadU16(&axisCount) || !table.ReadU16(&sharedTupleCount) ||
		!table.ReadU32(&sharedTuplesOffset) ||
		!table.ReadU16(&glyphCount) || !table.ReadU16(&flags) ||
		!table.ReadU32(&glyphVariationDataArrayOffset) {
		return t.dropVariations("failed to read table header")
	}
	if major != 1 {
		return t.dropVariations("unknown table version %d.%d", major, minor)
	}

	fvar := t.font.Fvar()
	if fvar == nil {
		return t.dropVariations("required fvar table is missing")
	}
	if axisCount != fvar.AxisCount {
		return t.dropVariations("axis count %d does not match fvar %d", axisCount, fvar.AxisCount)
	}
	maxp := t.font.Maxp()
	if maxp == nil {
		return t.dropVariations("required maxp table is missing")
	}
	if glyphCount != maxp.NumGlyphs {
		return t.dropVariations("glyph count %d does not match maxp %d", glyphCount, maxp.NumGlyphs)
	}

	if sharedTupleCount > 0 {
		if int(sharedTuplesOffset) < table.Offset() || int(sharedTuplesOffset) > len(data) {
			return t.dropVariations("invalid shared tuples offset %d", sharedTuplesOffset)
		}
		if int(sharedTuplesOffset)+int(sharedTupleCount)*int(axisCount)*2 > len(data) ||
			!t.parseSharedTuples(data[sharedTuplesOffset:], int(sharedTupleCount), int(axisCount)) {
			return t.dropVariations("failed to parse shared tuples")
		}
	}

	if glyphVariationDataArrayOffset != 0 {
		if int(glyphVariationDataArrayOffset) > len(data) {
			return t.dropVariations("invalid glyph variation data array offset")
		}
		offsets := NewBuffer(data[table.Offset():])
		longOffsets := flags&0x0001 != 0
		variationData := data[glyphVariationDataArrayOffset:]

		prevOffset := uint32(0)
		for i := 0; i <= int(glyphCount); i++ {
			var offset uint32
			if longOffsets {
				if !offsets.ReadU32(&offset) {
					return t.dropVariations("failed to read glyph variation data offset")
				}
			} else {
				var half uint16
				if !offsets.ReadU16(&half) {
					return t.dropVariations("failed to read glyph variation data offset")
				}
				offset = uint32(half) * 2
			}
			if i > 0 && offset > prevOffset {
				if int(prevOffset) > len(variationData) || int(offset) > len(variationData) {
					return t.dropVariations("invalid glyph variation data offset")
				}
				if err := t.parseGlyphVariationData(variationData[prevOffset:offset],
					int(axisCount), int(sharedTupleCount)); err != nil {
					return t.dropVariations("failed to parse glyph variation data: %v", err)
				}
			}
			prevOffset = offset
		}
	}

	t.data = data
	return nil
}

func (t *GvarTable) ShouldSerialize() bool {
	return !t.font.dropVariations
}

func (t *GvarTable) Serialize(s *Serializer) error {
	if !s.Write(t.data) {
		return t.Error("failed to write table")
	}
	return nil
}
