package ots

import "sort"

// cmap - Character to Glyph Index Mapping
// https://learn.microsoft.com/en-us/typography/opentype/spec/cmap
//
// Only a small set of (platform, encoding, format) combinations survives
// sanitization; everything else is dropped from the output with a warning.
// Each retained subtable is fully validated before its bytes are carried
// through, and the table itself is rebuilt from scratch so that record
// offsets cannot smuggle anything past the directory.

type cmapSubtable struct {
	platform uint16
	encoding uint16
	srcOff   uint32 // offset within the incoming table, for sharing detection
	data     []byte
}

// CmapTable holds the retained character-mapping subtables.
type CmapTable struct {
	tableBase
	subtables []cmapSubtable
}

func newCmapTable(font *Font) *CmapTable {
	return &CmapTable{tableBase: tableBase{font: font, tag: TagCmap}}
}

// retainedCmapFormats returns the subtable formats the sanitizer accepts
// for a (platform, encoding) pair, or nil when the pair is dropped.
func retainedCmapFormats(platform, encoding uint16) []uint16 {
	switch {
	case platform == 0 && encoding <= 4:
		return []uint16{4, 6, 12}
	case platform == 0 && encoding == 5:
		return []uint16{14}
	case platform == 1 && encoding == 0:
		return []uint16{0, 6}
	case platform == 3 && (encoding == 0 || encoding == 1):
		return []uint16{4}
	case platform == 3 && encoding == 10:
		return []uint16{12, 13}
	}
	return nil
}

func (t *CmapTable) Parse(data []byte) error {
	table := NewBuffer(data)

	var version, numTables uint16
	if !table.ReadU16(&version) || !table.ReadU16(&numTables) {
		return t.Error("failed to read table header")
	}
	if version != 0 {
		return t.Error("bad table version %d", version)
	}

	headerEnd := 4 + uint32(numTables)*8
	if headerEnd > uint32(len(data)) {
		return t.Error("encoding records exceed table length")
	}

	type record struct {
		platform, encoding uint16
		offset             uint32
	}
	records := make([]record, 0, numTables)
	for i := 0; i < int(numTables); i++ {
		var r record
		if !table.ReadU16(&r.platform) || !table.ReadU16(&r.encoding) ||
			!table.ReadU32(&r.offset) {
			return t.Error("failed to read encoding record %d", i)
		}
		if r.offset < headerEnd || r.offset >= uint32(len(data)) {
			return t.Error("bad subtable offset %d in encoding record %d", r.offset, i)
		}
		records = append(records, r)
	}

	for _, r := range records {
		formats := retainedCmapFormats(r.platform, r.encoding)
		if formats == nil {
			t.Warning("dropping subtable for platform %d encoding %d", r.platform, r.encoding)
			continue
		}
		sub := data[r.offset:]
		if len(sub) < 2 {
			return t.Error("subtable at %d too short", r.offset)
		}
		format := uint16(sub[0])<<8 | uint16(sub[1])
		supported := false
		for _, f := range formats {
			if f == format {
				supported = true
			}
		}
		if !supported {
			t.Warning("dropping format %d subtable for platform %d encoding %d",
				format, r.platform, r.encoding)
			continue
		}
		size, err := t.parseSubtable(format, sub)
		if err != nil {
			return err
		}
		t.subtables = append(t.subtables, cmapSubtable{
			platform: r.platform,
			encoding: r.encoding,
			srcOff:   r.offset,
			data:     sub[:size],
		})
	}

	return nil
}

func (t *CmapTable) parseSubtable(format uint16, sub []byte) (size uint32, err error) {
	switch format {
	case 0:
		return t.parseFormat0(sub)
	case 4:
		return t.parseFormat4(sub)
	case 6:
		return t.parseFormat6(sub)
	case 12, 13:
		return t.parseFormat12or13(sub, format)
	case 14:
		return t.parseFormat14(sub)
	}
	return 0, t.Error("unsupported subtable format %d", format)
}

func (t *CmapTable) parseFormat0(sub []byte) (uint32, error) {
	table := NewBuffer(sub)
	var format, length, language uint16
	if !table.ReadU16(&format) || !table.ReadU16(&length) || !table.ReadU16(&language) {
		return 0, t.Error("failed to read format 0 header")
	}
	if length != 262 {
		return 0, t.Error("bad format 0 length %d", length)
	}
	numGlyphs := t.font.NumGlyphs()
	for i := 0; i < 256; i++ {
		var glyph uint8
		if !table.ReadU8(&glyph) {
			return 0, t.Error("failed to read format 0 glyph %d", i)
		}
		if uint16(glyph) >= numGlyphs {
			return 0, t.Error("format 0 glyph id %d out of range for char %d", glyph, i)
		}
	}
	return uint32(length), nil
}

func (t *CmapTable) parseFormat4(sub []byte) (uint32, error) {
	table := NewBuffer(sub)
	var format, length, language, segCountX2 uint16
	var searchRange, entrySelector, rangeShift uint16
	if !table.ReadU16(&format) || !table.ReadU16(&length) || !table.ReadU16(&language) ||
		!table.ReadU16(&segCountX2) || !table.ReadU16(&searchRange) ||
		!table.ReadU16(&entrySelector) || !table.ReadU16(&rangeShift) {
		return 0, t.Error("failed to read format 4 header")
	}
	if uint32(length) > uint32(len(sub)) || length < 16 || length&1 != 0 {
		return 0, t.Error("bad format 4 length %d", length)
	}
	if segCountX2 == 0 || segCountX2&1 != 0 {
		return 0, t.Error("bad format 4 segCountX2 %d", segCountX2)
	}
	segCount := uint32(segCountX2 / 2)

	// The binary-search helper fields are fully determined by segCount;
	// a mismatch means the table was hand-crafted or corrupted.
	wantSearchRange := uint16(2)
	wantEntrySelector := uint16(0)
	for uint32(wantSearchRange)*2 <= segCount*2 {
		wantSearchRange *= 2
		wantEntrySelector++
	}
	if searchRange != wantSearchRange ||
		entrySelector != wantEntrySelector ||
		rangeShift != segCountX2-wantSearchRange {
		return 0, t.Error("bad format 4 search fields %d/%d/%d for %d segments",
			searchRange, entrySelector, rangeShift, segCount)
	}

	if 16+segCount*8 > uint32(length) {
		return 0, t.Error("format 4 segments exceed subtable length %d", length)
	}

	type segment struct {
		end, start, delta, rangeOffset uint16
	}
	segments := make([]segment, segCount)
	for i := range segments {
		if !table.ReadU16(&segments[i].end) {
			return 0, t.Error("failed to read format 4 end code %d", i)
		}
	}
	var pad uint16
	if !table.ReadU16(&pad) {
		return 0, t.Error("failed to read format 4 pad")
	}
	if pad != 0 {
		t.Warning("format 4 reserved pad is %d", pad)
	}
	for i := range segments {
		if !table.ReadU16(&segments[i].start) {
			return 0, t.Error("failed to read format 4 start code %d", i)
		}
	}
	for i := range segments {
		if !table.ReadU16(&segments[i].delta) {
			return 0, t.Error("failed to read format 4 id delta %d", i)
		}
	}
	rangeOffsetBase := table.Offset()
	for i := range segments {
		if !table.ReadU16(&segments[i].rangeOffset) {
			return 0, t.Error("failed to read format 4 id range offset %d", i)
		}
	}

	numGlyphs := t.font.NumGlyphs()
	prevEnd := int32(-1)
	for i, seg := range segments {
		if seg.start > seg.end {
			return 0, t.Error("format 4 segment %d start %d > end %d", i, seg.start, seg.end)
		}
		if int32(seg.start) <= prevEnd {
			return 0, t.Error("format 4 segment %d overlaps its predecessor", i)
		}
		prevEnd = int32(seg.end)
		if seg.rangeOffset != 0 {
			// The glyph for char c lives at
			// &idRangeOffset[i] + rangeOffset + 2*(c - start).
			base := uint32(rangeOffsetBase) + uint32(i)*2 + uint32(seg.rangeOffset)
			span := uint32(seg.end-seg.start)*2 + 2
			if base+span > uint32(length) {
				return 0, t.Error("format 4 segment %d glyph ids out of subtable", i)
			}
			for c := uint32(seg.start); c <= uint32(seg.end); c++ {
				off := base + (c-uint32(seg.start))*2
				glyph := uint16(sub[off])<<8 | uint16(sub[off+1])
				if glyph != 0 {
					glyph += seg.delta // modulo 65536 by wraparound
					if glyph >= numGlyphs {
						return 0, t.Error("format 4 glyph id %d out of range for char %#x", glyph, c)
					}
				}
			}
		}
	}
	if segments[segCount-1].end != 0xffff {
		return 0, t.Error("format 4 last segment must end at 0xFFFF")
	}

	return uint32(length), nil
}

func (t *CmapTable) parseFormat6(sub []byte) (uint32, error) {
	table := NewBuffer(sub)
	var format, length, language, firstCode, entryCount uint16
	if !table.ReadU16(&format) || !table.ReadU16(&length) || !table.ReadU16(&language) ||
		!table.ReadU16(&firstCode) || !table.ReadU16(&entryCount) {
		return 0, t.Error("failed to read format 6 header")
	}
	if uint32(length) > uint32(len(sub)) || uint32(length) < 10+uint32(entryCount)*2 {
		return 0, t.Error("bad format 6 length %d for %d entries", length, entryCount)
	}
	numGlyphs := t.font.NumGlyphs()
	for i := 0; i < int(entryCount); i++ {
		var glyph uint16
		if !table.ReadU16(&glyph) {
			return 0, t.Error("failed to read format 6 glyph %d", i)
		}
		if glyph >= numGlyphs {
			return 0, t.Error("format 6 glyph id %d out of range", glyph)
		}
	}
	return uint32(length), nil
}

func (t *CmapTable) parseFormat12or13(sub []byte, format uint16) (uint32, error) {
	table := NewBuffer(sub)
	var fmt16, reserved uint16
	var length, language, numGroups uint32
	if !table.ReadU16(&fmt16) || !table.ReadU16(&reserved) ||
		!table.ReadU32(&length) || !table.ReadU32(&language) ||
		!table.ReadU32(&numGroups) {
		return 0, t.Error("failed to read format %d header", format)
	}
	if length > uint32(len(sub)) || length < 16 {
		return 0, t.Error("bad format %d length %d", format, length)
	}
	if numGroups == 0 || numGroups > (length-16)/12 {
		return 0, t.Error("bad format %d group count %d", format, numGroups)
	}

	numGlyphs := uint32(t.font.NumGlyphs())
	prevEnd := int64(-1)
	for i := uint32(0); i < numGroups; i++ {
		var start, end, glyph uint32
		if !table.ReadU32(&start) || !table.ReadU32(&end) || !table.ReadU32(&glyph) {
			return 0, t.Error("failed to read format %d group %d", format, i)
		}
		if start > end || int64(start) <= prevEnd {
			return 0, t.Error("format %d group %d out of order", format, i)
		}
		if start > 0x10ffff || end > 0x10ffff {
			return 0, t.Error("format %d group %d outside Unicode range", format, i)
		}
		if format == 12 {
			if glyph+(end-start) >= numGlyphs {
				return 0, t.Error("format 12 group %d glyph ids out of range", i)
			}
		} else {
			if glyph >= numGlyphs {
				return 0, t.Error("format 13 group %d glyph id %d out of range", i, glyph)
			}
		}
		prevEnd = int64(end)
	}
	return length, nil
}

func (t *CmapTable) parseFormat14(sub []byte) (uint32, error) {
	table := NewBuffer(sub)
	var format uint16
	var length, numRecords uint32
	if !table.ReadU16(&format) || !table.ReadU32(&length) || !table.ReadU32(&numRecords) {
		return 0, t.Error("failed to read format 14 header")
	}
	if length > uint32(len(sub)) || length < 10 {
		return 0, t.Error("bad format 14 length %d", length)
	}
	if numRecords == 0 || numRecords > (length-10)/11 {
		return 0, t.Error("bad format 14 record count %d", numRecords)
	}

	numGlyphs := t.font.NumGlyphs()
	prevSelector := int64(-1)
	for i := uint32(0); i < numRecords; i++ {
		var varSelector, defaultOff, nonDefaultOff uint32
		if !table.ReadU24(&varSelector) || !table.ReadU32(&defaultOff) ||
			!table.ReadU32(&nonDefaultOff) {
			return 0, t.Error("failed to read variation selector record %d", i)
		}
		if int64(varSelector) <= prevSelector {
			return 0, t.Error("variation selector record %d out of order", i)
		}
		prevSelector = int64(varSelector)

		if defaultOff != 0 {
			if defaultOff >= length {
				return 0, t.Error("default UVS offset out of bounds in record %d", i)
			}
			uvs := NewBuffer(sub[defaultOff:length])
			var numRanges uint32
			if !uvs.ReadU32(&numRanges) {
				return 0, t.Error("failed to read default UVS table in record %d", i)
			}
			if numRanges > (length-defaultOff-4)/4 {
				return 0, t.Error("bad default UVS range count in record %d", i)
			}
			prev := int64(-1)
			for j := uint32(0); j < numRanges; j++ {
				var start uint32
				var additional uint8
				if !uvs.ReadU24(&start) || !uvs.ReadU8(&additional) {
					return 0, t.Error("failed to read default UVS range %d", j)
				}
				if int64(start) <= prev {
					return 0, t.Error("default UVS range %d out of order", j)
				}
				prev = int64(start) + int64(additional)
			}
		}
		if nonDefaultOff != 0 {
			if nonDefaultOff >= length {
				return 0, t.Error("non-default UVS offset out of bounds in record %d", i)
			}
			uvs := NewBuffer(sub[nonDefaultOff:length])
			var numMappings uint32
			if !uvs.ReadU32(&numMappings) {
				return 0, t.Error("failed to read non-default UVS table in record %d", i)
			}
			if numMappings > (length-nonDefaultOff-4)/5 {
				return 0, t.Error("bad non-default UVS mapping count in record %d", i)
			}
			prev := int64(-1)
			for j := uint32(0); j < numMappings; j++ {
				var unicodeValue uint32
				var glyph uint16
				if !uvs.ReadU24(&unicodeValue) || !uvs.ReadU16(&glyph) {
					return 0, t.Error("failed to read non-default UVS mapping %d", j)
				}
				if int64(unicodeValue) <= prev {
					return 0, t.Error("non-default UVS mapping %d out of order", j)
				}
				prev = int64(unicodeValue)
				if glyph >= numGlyphs {
					return 0, t.Error("non-default UVS glyph id %d out of range", glyph)
				}
			}
		}
	}
	return length, nil
}

func (t *CmapTable) ShouldSerialize() bool {
	return len(t.subtables) > 0
}

func (t *CmapTable) Serialize(s *Serializer) error {
	subtables := make([]cmapSubtable, len(t.subtables))
	copy(subtables, t.subtables)
	sort.SliceStable(subtables, func(i, j int) bool {
		if subtables[i].platform != subtables[j].platform {
			return subtables[i].platform < subtables[j].platform
		}
		return subtables[i].encoding < subtables[j].encoding
	})

	// Subtables shared between encoding records on input stay shared on
	// output; offsets are assigned by first appearance.
	offsets := make(map[uint32]uint32)
	next := uint32(4 + len(subtables)*8)
	for _, sub := range subtables {
		if _, ok := offsets[sub.srcOff]; !ok {
			offsets[sub.srcOff] = next
			next += uint32(len(sub.data))
		}
	}

	if !s.WriteU16(0) || !s.WriteU16(uint16(len(subtables))) {
		return t.Error("failed to write table header")
	}
	for _, sub := range subtables {
		if !s.WriteU16(sub.platform) || !s.WriteU16(sub.encoding) ||
			!s.WriteU32(offsets[sub.srcOff]) {
			return t.Error("failed to write encoding record")
		}
	}
	written := make(map[uint32]bool)
	for _, sub := range subtables {
		if written[sub.srcOff] {
			continue
		}
		written[sub.srcOff] = true
		if !s.Write(sub.data) {
			return t.Error("failed to write subtable")
		}
	}
	return nil
}
