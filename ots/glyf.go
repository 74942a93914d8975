package ots

// glyf - Glyph Data
// https://learn.microsoft.com/en-us/typography/opentype/spec/glyf

// Composite glyph component flags.
const (
	glyfArg1And2AreWords   = 1 << 0
	glyfWeHaveAScale       = 1 << 3
	glyfMoreComponents     = 1 << 5
	glyfWeHaveAnXAndYScale = 1 << 6
	glyfWeHaveATwoByTwo    = 1 << 7
	glyfWeHaveInstructions = 1 << 8
)

var glyfPadding = [4]byte{}

// GlyfTable parses, validates and repacks the glyph data. The rewritten
// glyph blocks are tightly packed and 4-byte aligned; the loca offsets
// are regenerated accordingly, upgrading head.indexToLocFormat when the
// new offsets no longer fit the short format.
type GlyfTable struct {
	tableBase
	spans [][]byte
}

func newGlyfTable(font *Font) *GlyfTable {
	return &GlyfTable{tableBase: tableBase{font: font, tag: TagGlyf}}
}

func (t *GlyfTable) parseFlagsForSimpleGlyph(table *Buffer, glyLength uint32,
	numFlags uint32, flagsSeen *uint32, flagsPhysical *uint32, xyLength *uint32) error {

	var flag uint8
	if !table.ReadU8(&flag) {
		return t.Error("can't read glyph flag")
	}

	delta := uint32(0)
	if flag&(1<<1) != 0 { // x-Short
		delta++
	} else if flag&(1<<4) == 0 {
		delta += 2
	}
	if flag&(1<<2) != 0 { // y-Short
		delta++
	} else if flag&(1<<5) == 0 {
		delta += 2
	}

	if flag&(1<<3) != 0 { // repeat
		if *flagsSeen+1 >= numFlags {
			return t.Error("flag count too high (%d + 1 >= %d)", *flagsSeen, numFlags)
		}
		var repeat uint8
		if !table.ReadU8(&repeat) {
			return t.Error("can't read repeat value")
		}
		if repeat == 0 {
			return t.Error("zero repeat")
		}
		delta += delta * uint32(repeat)
		*flagsSeen += uint32(repeat)
		if *flagsSeen >= numFlags {
			return t.Error("flag count too high (%d >= %d)", *flagsSeen, numFlags)
		}
		*flagsPhysical++
	}

	if flag&(1<<6) != 0 || flag&(1<<7) != 0 {
		return t.Error("bad glyph flag %d, reserved flags must be zero", flag)
	}

	*xyLength += delta
	if glyLength < *xyLength {
		return t.Error("glyph coordinates length too low (%d < %d)", glyLength, *xyLength)
	}
	return nil
}

func (t *GlyfTable) parseSimpleGlyph(data []byte, table *Buffer, numContours int16,
	glyOffset, glyLength uint32) (newSize uint32, err error) {

	// End-point array; indices must increase monotonically and the
	// 0xFFFF sentinel is not a valid point index.
	numFlags := uint32(0)
	for i := int16(0); i < numContours; i++ {
		var endPt uint16
		if !table.ReadU16(&endPt) {
			return 0, t.Error("can't read contour index %d", i)
		}
		if endPt == 0xffff {
			return 0, t.Error("bad contour index %d", i)
		}
		if i > 0 && uint32(endPt)+1 <= numFlags {
			return 0, t.Error("decreasing contour index %d + 1 <= %d", endPt, numFlags)
		}
		numFlags = uint32(endPt) + 1
	}

	var bytecodeLength uint16
	if !table.ReadU16(&bytecodeLength) {
		return 0, t.Error("can't read bytecode length")
	}
	maxp := t.font.Maxp()
	if maxp == nil {
		return 0, t.Error("required maxp table missing")
	}
	if maxp.Version1 && maxp.MaxSizeOfInstructions < bytecodeLength {
		return 0, t.Error("bytecode length %d exceeds maxp limit %d",
			bytecodeLength, maxp.MaxSizeOfInstructions)
	}

	glyHeaderLength := uint32(10 + int(numContours)*2 + 2)
	if glyLength < glyHeaderLength+uint32(bytecodeLength) {
		return 0, t.Error("glyph header length too high %d", glyHeaderLength)
	}
	t.spans = append(t.spans, data[glyOffset:glyOffset+glyHeaderLength+uint32(bytecodeLength)])

	if !table.Skip(int(bytecodeLength)) {
		return 0, t.Error("can't skip bytecode of length %d", bytecodeLength)
	}

	flagsPhysical := uint32(0)
	xyLength := uint32(0)
	for flagsSeen := uint32(0); flagsSeen < numFlags; flagsSeen, flagsPhysical = flagsSeen+1, flagsPhysical+1 {
		if err := t.parseFlagsForSimpleGlyph(table, glyLength,
			numFlags, &flagsSeen, &flagsPhysical, &xyLength); err != nil {
			return 0, err
		}
	}

	used := glyHeaderLength + uint32(bytecodeLength) + flagsPhysical + xyLength
	if glyLength < used {
		return 0, t.Error("glyph too short %d", glyLength)
	}
	if glyLength-used > 3 {
		// 0-3 bytes of trailing padding come from 4-byte aligned, zero
		// padded glyph records; anything longer is garbage.
		return 0, t.Error("invalid glyph length %d", glyLength)
	}
	t.spans = append(t.spans,
		data[glyOffset+glyHeaderLength+uint32(bytecodeLength):glyOffset+used])

	return used, nil
}

func (t *GlyfTable) parseCompositeGlyph(table *Buffer,
	glyOffset, glyLength uint32, numGlyphs uint16) (newSize uint32, err error) {

	start := table.Offset()
	for {
		var flags, glyphIndex uint16
		if !table.ReadU16(&flags) || !table.ReadU16(&glyphIndex) {
			return 0, t.Error("can't read composite component")
		}
		if glyphIndex >= numGlyphs {
			return 0, t.Error("composite component glyph %d out of range", glyphIndex)
		}

		argBytes := 2
		if flags&glyfArg1And2AreWords != 0 {
			argBytes = 4
		}
		if !table.Skip(argBytes) {
			return 0, t.Error("can't read composite arguments")
		}

		scaleBytes := 0
		switch {
		case flags&glyfWeHaveAScale != 0:
			scaleBytes = 2
		case flags&glyfWeHaveAnXAndYScale != 0:
			scaleBytes = 4
		case flags&glyfWeHaveATwoByTwo != 0:
			scaleBytes = 8
		}
		if !table.Skip(scaleBytes) {
			return 0, t.Error("can't read composite transformation")
		}

		if flags&glyfMoreComponents == 0 {
			if flags&glyfWeHaveInstructions != 0 {
				var bytecodeLength uint16
				if !table.ReadU16(&bytecodeLength) {
					return 0, t.Error("can't read composite bytecode length")
				}
				maxp := t.font.Maxp()
				if maxp != nil && maxp.Version1 && maxp.MaxSizeOfInstructions < bytecodeLength {
					return 0, t.Error("composite bytecode length %d exceeds maxp limit %d",
						bytecodeLength, maxp.MaxSizeOfInstructions)
				}
				if !table.Skip(int(bytecodeLength)) {
					return 0, t.Error("can't skip composite bytecode of length %d", bytecodeLength)
				}
			}
			break
		}
	}

	used := uint32(10 + table.Offset() - start)
	if glyLength < used {
		return 0, t.Error("composite glyph too short %d", glyLength)
	}
	if glyLength-used > 3 {
		return 0, t.Error("invalid composite glyph length %d", glyLength)
	}
	t.spans = append(t.spans, table.Bytes()[glyOffset:glyOffset+used])
	return used, nil
}

func (t *GlyfTable) Parse(data []byte) error {
	table := NewBuffer(data)
	length := uint32(len(data))

	maxp := t.font.Maxp()
	loca := t.font.Loca()
	head := t.font.Head()
	if maxp == nil || loca == nil || head == nil {
		return t.Error("missing maxp or loca or head table needed by glyf table")
	}

	numGlyphs := int(maxp.NumGlyphs)
	offsets := loca.Offsets
	if len(offsets) != numGlyphs+1 {
		return t.Error("invalid glyph offsets size %d != %d", len(offsets), numGlyphs+1)
	}

	resulting := make([]uint32, numGlyphs+1)
	current := uint32(0)

	for i := 0; i < numGlyphs; i++ {
		glyOffset := offsets[i]
		// The loca parser guarantees these are monotonic.
		glyLength := offsets[i+1] - offsets[i]
		if glyLength == 0 {
			// No outline, e.g. the space character.
			resulting[i] = current
			continue
		}

		if glyOffset >= length {
			return t.Error("glyph %d offset %d too high %d", i, glyOffset, length)
		}
		if glyOffset+glyLength < glyOffset || glyOffset+glyLength > length {
			return t.Error("glyph %d length %d too high", i, glyLength)
		}

		table.SetOffset(int(glyOffset))
		var numContours, xmin, ymin, xmax, ymax int16
		if !table.ReadS16(&numContours) ||
			!table.ReadS16(&xmin) ||
			!table.ReadS16(&ymin) ||
			!table.ReadS16(&xmax) ||
			!table.ReadS16(&ymax) {
			return t.Error("can't read glyph %d header", i)
		}

		if numContours <= -2 {
			// -2 and below are reserved for future use.
			return t.Error("bad number of contours %d in glyph %d", numContours, i)
		}

		// Some fonts in the wild ship this all-bits-set sentinel box.
		if xmin == 32767 && xmax == -32767 && ymin == 32767 && ymax == -32767 {
			t.Warning("bad xmin/xmax/ymin/ymax values in glyph %d", i)
			xmin, xmax, ymin, ymax = 0, 0, 0, 0
		}
		if xmin > xmax || ymin > ymax {
			return t.Error("bad bounding box bl=(%d, %d), tr=(%d, %d) in glyph %d",
				xmin, ymin, xmax, ymax, i)
		}

		var newSize uint32
		var err error
		if numContours == 0 {
			// Empty glyph with stray data; ignore the data.
			newSize = 0
		} else if numContours > 0 {
			newSize, err = t.parseSimpleGlyph(data, table, numContours, glyOffset, glyLength)
		} else {
			newSize, err = t.parseCompositeGlyph(table, glyOffset, glyLength, maxp.NumGlyphs)
		}
		if err != nil {
			return err
		}

		resulting[i] = current
		// Glyph blocks are kept four byte aligned on output.
		if padding := (4 - (newSize & 3)) % 4; padding != 0 {
			t.spans = append(t.spans, glyfPadding[:padding])
			newSize += padding
		}
		current += newSize
	}
	resulting[numGlyphs] = current

	maxOffset := uint32(0)
	for _, off := range resulting {
		if off > maxOffset {
			maxOffset = off
		}
	}
	if maxOffset >= 0xffff*2 && head.IndexToLocFormat != 1 {
		head.IndexToLocFormat = 1
	}
	loca.Offsets = resulting

	if len(t.spans) == 0 {
		// All glyphs empty: emit a single zero byte so the table is not
		// empty, which some rasterizers reject.
		t.spans = append(t.spans, glyfPadding[:1])
	}

	return nil
}

func (t *GlyfTable) Serialize(s *Serializer) error {
	for i, span := range t.spans {
		if !s.Write(span) {
			return t.Error("failed to write glyph block %d", i)
		}
	}
	return nil
}
