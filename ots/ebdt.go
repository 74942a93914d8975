package ots

// EBDT - Embedded Bitmap Data Table
// https://learn.microsoft.com/en-us/typography/opentype/spec/ebdt
//
// Only the version header is parsed here; the glyph bitmap records are
// addressed and validated from the EBLC index subtables, which know the
// offsets, metrics style and bit depth.

const (
	bigGlyphMetricsSize   = 8
	smallGlyphMetricsSize = 5
)

type bigGlyphMetrics struct {
	height, width              uint8
	horiBearingX, horiBearingY int8
	horiAdvance                uint8
	vertBearingX, vertBearingY int8
	vertAdvance                uint8
}

type smallGlyphMetrics struct {
	height, width      uint8
	bearingX, bearingY int8
	advance            uint8
}

func parseBigGlyphMetrics(table *Buffer, metrics *bigGlyphMetrics) bool {
	return table.ReadU8(&metrics.height) &&
		table.ReadU8(&metrics.width) &&
		table.ReadS8(&metrics.horiBearingX) &&
		table.ReadS8(&metrics.horiBearingY) &&
		table.ReadU8(&metrics.horiAdvance) &&
		table.ReadS8(&metrics.vertBearingX) &&
		table.ReadS8(&metrics.vertBearingY) &&
		table.ReadU8(&metrics.vertAdvance)
}

func parseSmallGlyphMetrics(table *Buffer, metrics *smallGlyphMetrics) bool {
	return table.ReadU8(&metrics.height) &&
		table.ReadU8(&metrics.width) &&
		table.ReadS8(&metrics.bearingX) &&
		table.ReadS8(&metrics.bearingY) &&
		table.ReadU8(&metrics.advance)
}

// Pixel packing variants.
func bitAlignedImageSize(width, height uint32, bitDepth uint8) uint32 {
	return (width*height*uint32(bitDepth) + 7) / 8
}

func byteAlignedImageSize(width, height uint32, bitDepth uint8) uint32 {
	bytesPerRow := (width*uint32(bitDepth) + 7) / 8
	return bytesPerRow * height
}

func componentImageSize(numComponents uint16) uint32 {
	// component count + per component: glyph id, x offset, y offset
	return 2 + uint32(numComponents)*4
}

// EBDTTable is the parsed embedded bitmap data table.
type EBDTTable struct {
	tableBase
	data []byte
}

func newEBDTTable(font *Font) *EBDTTable {
	return &EBDTTable{tableBase: tableBase{font: font, tag: TagEBDT}}
}

func (t *EBDTTable) Parse(data []byte) error {
	table := NewBuffer(data)

	var versionMajor, versionMinor uint16
	if !table.ReadU16(&versionMajor) || !table.ReadU16(&versionMinor) {
		return t.Error("incomplete table")
	}
	if versionMajor != 2 || versionMinor > 0 {
		return t.Error("bad version %d.%d", versionMajor, versionMinor)
	}

	// The rest of the table is walked from EBLC.
	t.data = data
	return nil
}

// parseGlyphBitmapVariableMetrics validates one glyph bitmap record
// whose metrics live in EBDT, and returns its computed size so the
// caller can compare it against the index-implied size.
func (t *EBDTTable) parseGlyphBitmapVariableMetrics(imageFormat uint16,
	offset uint32, bitDepth uint8) (uint32, error) {

	if int64(offset) >= int64(len(t.data)) {
		return 0, t.Error("glyph bitmap offset %d out of bounds", offset)
	}
	table := NewBuffer(t.data[offset:])

	var imageSize uint32
	switch imageFormat {
	case 1, 2: // small metrics; byte-aligned (1) or bit-aligned (2)
		var metrics smallGlyphMetrics
		if !parseSmallGlyphMetrics(table, &metrics) {
			return 0, t.Error("failed to parse small glyph metrics")
		}
		if imageFormat == 1 {
			imageSize = smallGlyphMetricsSize +
				byteAlignedImageSize(uint32(metrics.width), uint32(metrics.height), bitDepth)
		} else {
			imageSize = smallGlyphMetricsSize +
				bitAlignedImageSize(uint32(metrics.width), uint32(metrics.height), bitDepth)
		}
	case 3:
		return 0, t.Error("obsolete image format 3")
	case 4:
		return 0, t.Error("unsupported image format 4")
	case 5:
		return 0, t.Error("constant-metrics image format 5 with variable metrics")
	case 6, 7: // big metrics; byte-aligned (6) or bit-aligned (7)
		var metrics bigGlyphMetrics
		if !parseBigGlyphMetrics(table, &metrics) {
			return 0, t.Error("failed to parse big glyph metrics")
		}
		if imageFormat == 6 {
			imageSize = bigGlyphMetricsSize +
				byteAlignedImageSize(uint32(metrics.width), uint32(metrics.height), bitDepth)
		} else {
			imageSize = bigGlyphMetricsSize +
				bitAlignedImageSize(uint32(metrics.width), uint32(metrics.height), bitDepth)
		}
	case 8: // small metrics, component data
		var metrics smallGlyphMetrics
		if !parseSmallGlyphMetrics(table, &metrics) {
			return 0, t.Error("failed to parse small glyph metrics")
		}
		var pad uint8
		if !table.ReadU8(&pad) {
			return 0, t.Error("failed to read pad byte")
		}
		var numComponents uint16
		if !table.ReadU16(&numComponents) {
			return 0, t.Error("failed to read component count")
		}
		imageSize = smallGlyphMetricsSize + 1 + componentImageSize(numComponents)
	case 9: // big metrics, component data
		var metrics bigGlyphMetrics
		if !parseBigGlyphMetrics(table, &metrics) {
			return 0, t.Error("failed to parse big glyph metrics")
		}
		var numComponents uint16
		if !table.ReadU16(&numComponents) {
			return 0, t.Error("failed to read component count")
		}
		imageSize = bigGlyphMetricsSize + componentImageSize(numComponents)
	default:
		return 0, t.Error("unsupported image format %d", imageFormat)
	}

	if uint64(offset)+uint64(imageSize) > uint64(len(t.data)) {
		return 0, t.Error("glyph image of %d bytes exceeds table bounds", imageSize)
	}
	return imageSize, nil
}

// parseGlyphBitmapConstantMetrics validates one glyph bitmap record
// whose metrics live in the EBLC index subtable (format 5).
func (t *EBDTTable) parseGlyphBitmapConstantMetrics(imageFormat uint16,
	offset uint32, bitDepth, width, height uint8) (uint32, error) {

	switch imageFormat {
	case 3:
		return 0, t.Error("obsolete image format 3")
	case 4:
		return 0, t.Error("unsupported image format 4")
	case 1, 2, 6, 7, 8, 9:
		return t.parseGlyphBitmapVariableMetrics(imageFormat, offset, bitDepth)
	case 5:
		// Metrics in EBLC, bit-aligned image data only.
	default:
		return 0, t.Error("unsupported image format %d", imageFormat)
	}

	imageSize := bitAlignedImageSize(uint32(width), uint32(height), bitDepth)
	if uint64(offset)+uint64(imageSize) > uint64(len(t.data)) {
		return 0, t.Error("glyph image of %d bytes exceeds table bounds", imageSize)
	}
	return imageSize, nil
}

func (t *EBDTTable) Serialize(s *Serializer) error {
	if !s.Write(t.data) {
		return t.Error("failed to write table")
	}
	return nil
}
